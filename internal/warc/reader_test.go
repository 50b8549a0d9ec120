package warc

import (
	"compress/gzip"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeWARCRecord appends one gzip member containing a single WARC
// record to the file at path, mirroring the crawler's one-member-per-record layout.
func writeWARCRecord(t *testing.T, path string, recordType, targetURI, body string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	require.NoError(t, err)
	defer f.Close()

	gz := gzip.NewWriter(f)
	header := "WARC/1.0\r\n" +
		"WARC-Type: " + recordType + "\r\n" +
		"WARC-Target-URI: " + targetURI + "\r\n" +
		"WARC-Date: 2024-01-01T00:00:00Z\r\n" +
		"Content-Length: " + itoa(len(body)) + "\r\n" +
		"\r\n"
	_, err = gz.Write([]byte(header + body + "\r\n\r\n"))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

func TestReader_IteratesMultipleRecords(t *testing.T) {
	path := t.TempDir() + "/sample.warc.gz"
	writeWARCRecord(t, path, "warcinfo", "", "software: testcrawler")
	writeWARCRecord(t, path, "response", "https://example.com/a", "HTTP/1.1 200 OK\r\nContent-Type: text/html\r\n\r\n<html>A</html>")
	writeWARCRecord(t, path, "response", "https://example.com/b", "HTTP/1.1 200 OK\r\nContent-Type: text/html\r\n\r\n<html>B</html>")

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	var targets []string
	for {
		rec, err := r.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		if rec.Type == "response" {
			targets = append(targets, rec.TargetURI)
		}
		_, _ = io.Copy(io.Discard, rec.Body())
	}

	assert.Equal(t, []string{"https://example.com/a", "https://example.com/b"}, targets)
}

func TestReader_ParseHTTPResponse(t *testing.T) {
	path := t.TempDir() + "/single.warc.gz"
	writeWARCRecord(t, path, "response", "https://example.com/a", "HTTP/1.1 200 OK\r\nContent-Type: text/html\r\n\r\n<html>Hi</html>")

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	rec, err := r.Next()
	require.NoError(t, err)

	resp, err := ParseHTTPResponse(rec.Body())
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "<html>Hi</html>", string(body))
}
