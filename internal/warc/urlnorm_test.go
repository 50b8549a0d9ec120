package warc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_LowercasesSchemeAndHost(t *testing.T) {
	normalized, _, err := Normalize("HTTPS://Example.COM/Path")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/Path", normalized)
}

func TestNormalize_StripsDefaultPort(t *testing.T) {
	normalized, _, err := Normalize("https://example.com:443/page")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/page", normalized)

	normalized, _, err = Normalize("http://example.com:80/page")
	require.NoError(t, err)
	assert.Equal(t, "http://example.com/page", normalized)
}

func TestNormalize_KeepsNonDefaultPort(t *testing.T) {
	normalized, _, err := Normalize("https://example.com:8443/page")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com:8443/page", normalized)
}

func TestNormalize_DropsFragment(t *testing.T) {
	normalized, _, err := Normalize("https://example.com/page#section-2")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/page", normalized)
}

func TestNormalize_TrimsTrailingSlashExceptRoot(t *testing.T) {
	normalized, _, err := Normalize("https://example.com/page/")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/page", normalized)

	normalized, _, err = Normalize("https://example.com/")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/", normalized)
}

func TestNormalize_StripsTrackingParamsFromBoth(t *testing.T) {
	normalized, group, err := Normalize("https://example.com/page?utm_source=newsletter&fbclid=abc&id=42")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/page?id=42", normalized)
	assert.Equal(t, "https://example.com/page?id=42", group)
}

func TestNormalize_GroupDropsPaginationAndSessionButNormalizedKeepsThem(t *testing.T) {
	normalized, group, err := Normalize("https://example.com/articles?page=3&sessionid=xyz&topic=health")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/articles?page=3&sessionid=xyz&topic=health", normalized)
	assert.Equal(t, "https://example.com/articles?topic=health", group)
}

func TestNormalize_SortsRemainingQueryParams(t *testing.T) {
	normalized, _, err := Normalize("https://example.com/page?z=1&a=2&m=3")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/page?a=2&m=3&z=1", normalized)
}

func TestNormalize_NoQueryParams(t *testing.T) {
	normalized, group, err := Normalize("https://example.com/page")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/page", normalized)
	assert.Equal(t, "https://example.com/page", group)
}

func TestNormalize_InvalidURL(t *testing.T) {
	_, _, err := Normalize("://not-a-url")
	assert.Error(t, err)
}
