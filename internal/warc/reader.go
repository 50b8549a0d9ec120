// Package warc reads ISO 28500 WARC files produced by the crawler,
// extracts page content from response records, normalizes URLs, and
// computes the content hash used for deduplication.
package warc

import (
	"bufio"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
)

// Record is one WARC record: its header fields and a bounded reader
// over its content block. Offset/Length are byte positions within the
// (decompressed) record stream, recorded so a Snapshot row can point
// back at the exact bytes that produced it.
type Record struct {
	Type          string
	TargetURI     string
	Date          string
	ContentLength int64

	Offset int64
	Length int64

	body io.Reader
}

// Body returns the record's content block. For a "response" record
// this is the raw HTTP response (status line, headers, blank line,
// then the HTML body).
func (r *Record) Body() io.Reader { return r.body }

// Reader iterates records of a single WARC file sequentially, without
// loading the whole file into memory: each record's content block is
// exposed as a bounded io.Reader over the underlying buffered stream.
type Reader struct {
	file   *os.File
	gz     *gzip.Reader
	br     *bufio.Reader
	offset int64
}

// Open opens path (a .warc or .warc.gz file) for streaming iteration.
// WARC files produced by the crawler are gzip-compressed one record
// per gzip member; compress/gzip's multistream support reads across
// member boundaries transparently, so the record loop never needs to
// know where one member ends and the next begins.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open warc file: %w", err)
	}

	if !strings.HasSuffix(path, ".gz") {
		return &Reader{file: f, br: bufio.NewReaderSize(f, 64*1024)}, nil
	}

	gz, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("open gzip stream: %w", err)
	}
	return &Reader{file: f, gz: gz, br: bufio.NewReaderSize(gz, 64*1024)}, nil
}

// Close releases the underlying file and gzip stream.
func (r *Reader) Close() error {
	if r.gz != nil {
		_ = r.gz.Close()
	}
	return r.file.Close()
}

// ErrNotWARCHeader is returned when the next line isn't a valid record
// start, which in a well-formed file only happens at end of stream.
var ErrNotWARCHeader = errors.New("not a WARC record header")

const warcVersionPrefix = "WARC/1.0"

// Next reads and returns the next record, or io.EOF when the stream is
// exhausted. The returned Record's Body() must be fully drained (or the
// record discarded via io.Copy(io.Discard, ...)) before calling Next
// again, since both read from the same underlying buffered stream.
func (r *Reader) Next() (*Record, error) {
	var line string
	var err error
	// Each record's content block is followed by two CRLFs before the
	// next record header; skip any number of blank separator lines.
	for {
		line, err = r.readLine()
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(line) != "" {
			break
		}
	}
	if !strings.HasPrefix(strings.TrimSpace(line), warcVersionPrefix) {
		return nil, ErrNotWARCHeader
	}

	headers := map[string]string{}
	for {
		hline, err := r.readLine()
		if err != nil {
			return nil, fmt.Errorf("read warc headers: %w", err)
		}
		trimmed := strings.TrimRight(hline, "\r\n")
		if trimmed == "" {
			break
		}
		idx := strings.Index(trimmed, ":")
		if idx < 0 {
			continue
		}
		key := strings.TrimSpace(trimmed[:idx])
		val := strings.TrimSpace(trimmed[idx+1:])
		headers[strings.ToLower(key)] = val
	}

	contentLength, _ := strconv.ParseInt(headers["content-length"], 10, 64)
	startOffset := r.offset

	rec := &Record{
		Type:          headers["warc-type"],
		TargetURI:     headers["warc-target-uri"],
		Date:          headers["warc-date"],
		ContentLength: contentLength,
		Offset:        startOffset,
		Length:        contentLength,
		body:          io.LimitReader(&countingReader{r: r.br, n: &r.offset}, contentLength),
	}

	return rec, nil
}

func (r *Reader) readLine() (string, error) {
	line, err := r.br.ReadString('\n')
	r.offset += int64(len(line))
	if err != nil && line == "" {
		return "", err
	}
	return line, nil
}

// countingReader is unused directly for line reads (those already track
// r.offset) but composes with LimitReader for the body so Length stays
// accurate even though body bytes are consumed lazily by the caller.
type countingReader struct {
	r *bufio.Reader
	n *int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	*c.n += int64(n)
	return n, err
}

// ParseHTTPResponse parses a response record's body as an HTTP/1.x
// response (status line + headers + entity body).
func ParseHTTPResponse(body io.Reader) (*http.Response, error) {
	br := bufio.NewReader(body)
	return http.ReadResponse(br, nil)
}
