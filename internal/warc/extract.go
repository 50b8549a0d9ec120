package warc

import (
	"bytes"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jonesrussell/healtharchive/internal/models"
)

// Extracted is everything the indexing pipeline lifts out of one
// response record's HTML body.
type Extracted struct {
	Title      string
	Text       string
	Snippet    string
	Language   *string
	IsArchived *bool
}

// contentSelectors are tried in order; the first that matches non-empty
// text wins. Grounded on the same "walk common containers, fall back to
// body" style used for article/body extraction elsewhere in the corpus.
var contentSelectors = []string{
	"article",
	"main",
	"[role='main']",
	"#content",
	".content",
	"body",
}

// archivedBannerPatterns flag government "this page has been archived"
// interstitial banners, distinguishing a genuinely-retired page from an
// ordinary capture.
var archivedBannerPatterns = []string{
	"this page has been archived",
	"archived on the web",
	"the information on this page has been archived",
	"cette page a été archivée",
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// htmlComment matches HTML comments, stripped before parsing per
// spec.md §4.3 step 5's normalization pass.
var htmlComment = regexp.MustCompile(`(?s)<!--.*?-->`)

// noiseSelectors are removed from the matched content root before its
// text is pulled, per spec.md §4.3 step 5 ("strip scripts, styles,
// ARIA-pruned nav/banner/footer regions, comments").
const noiseSelectors = "script, style, nav, header, footer, .banner, [role='banner'], [role='navigation']"

// Extract parses an HTTP response body as HTML and pulls out the fields
// a Snapshot row needs.
func Extract(resp *http.Response) (Extracted, error) {
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Extracted{}, err
	}
	cleaned := htmlComment.ReplaceAll(raw, nil)

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(cleaned))
	if err != nil {
		return Extracted{}, err
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())

	text := extractContentText(doc)
	text = models.TruncateText(text)

	result := Extracted{
		Title:      title,
		Text:       text,
		Snippet:    models.BuildSnippet(text),
		Language:   extractLanguage(doc),
		IsArchived: detectArchived(title, text),
	}
	return result, nil
}

func extractContentText(doc *goquery.Document) string {
	for _, sel := range contentSelectors {
		node := doc.Find(sel).First()
		if node.Length() == 0 {
			continue
		}
		clone := node.Clone()
		clone.Find(noiseSelectors).Remove()
		text := normalizeWhitespace(clone.Text())
		if text != "" {
			return text
		}
	}
	return ""
}

func normalizeWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(s, " "))
}

func extractLanguage(doc *goquery.Document) *string {
	if lang, exists := doc.Find("html").First().Attr("lang"); exists && lang != "" {
		normalized := strings.ToLower(strings.SplitN(lang, "-", 2)[0])
		return &normalized
	}
	if metaLang, exists := doc.Find("meta[http-equiv='content-language']").Attr("content"); exists && metaLang != "" {
		normalized := strings.ToLower(strings.SplitN(metaLang, "-", 2)[0])
		return &normalized
	}
	return nil
}

func detectArchived(title, text string) *bool {
	lowerTitle := strings.ToLower(title)
	lowerText := strings.ToLower(text)
	for _, pattern := range archivedBannerPatterns {
		if strings.Contains(lowerTitle, pattern) || strings.Contains(lowerText, pattern) {
			archived := true
			return &archived
		}
	}
	return nil
}
