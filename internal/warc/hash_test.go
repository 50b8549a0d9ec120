package warc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContentHash_Deterministic(t *testing.T) {
	html := "<html><body>Hello</body></html>"
	assert.Equal(t, ContentHash(html), ContentHash(html))
}

func TestContentHash_DiffersOnChange(t *testing.T) {
	a := ContentHash("<html><body>Hello</body></html>")
	b := ContentHash("<html><body>Goodbye</body></html>")
	assert.NotEqual(t, a, b)
}

func TestContentHash_Length(t *testing.T) {
	sum := ContentHash("anything")
	assert.Len(t, sum, 64)
}
