package warc

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscover_PrefersStableDirWithValidManifest(t *testing.T) {
	outputDir := t.TempDir()
	stableDir := filepath.Join(outputDir, "warcs")
	require.NoError(t, os.MkdirAll(stableDir, 0o755))

	content := []byte("warc-bytes")
	require.NoError(t, os.WriteFile(filepath.Join(stableDir, "part-0001.warc.gz"), content, 0o644))

	sum := ContentHash(string(content))
	manifest := Manifest{Records: []ManifestEntry{
		{SourcePath: "/tmp/part-0001.warc.gz", StableName: "part-0001.warc.gz", SHA256: sum, SizeBytes: int64(len(content))},
	}}
	data, err := json.Marshal(manifest)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(stableDir, "manifest.json"), data, 0o644))

	files, warnings, err := Discover(outputDir)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, SourceStable, files[0].Source)
	assert.True(t, files[0].Verified)
	assert.Empty(t, warnings)
}

func TestDiscover_FlagsSizeMismatchWithoutFailing(t *testing.T) {
	outputDir := t.TempDir()
	stableDir := filepath.Join(outputDir, "warcs")
	require.NoError(t, os.MkdirAll(stableDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(stableDir, "part-0001.warc.gz"), []byte("short"), 0o644))

	manifest := Manifest{Records: []ManifestEntry{
		{StableName: "part-0001.warc.gz", SizeBytes: 9999},
	}}
	data, err := json.Marshal(manifest)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(stableDir, "manifest.json"), data, 0o644))

	files, warnings, err := Discover(outputDir)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.False(t, files[0].Verified)
	assert.NotEmpty(t, warnings)
}

func TestDiscover_MissingManifestEntryIsWarnedNotFatal(t *testing.T) {
	outputDir := t.TempDir()
	stableDir := filepath.Join(outputDir, "warcs")
	require.NoError(t, os.MkdirAll(stableDir, 0o755))

	manifest := Manifest{Records: []ManifestEntry{
		{StableName: "missing.warc.gz", SizeBytes: 100},
	}}
	data, err := json.Marshal(manifest)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(stableDir, "manifest.json"), data, 0o644))

	files, warnings, err := Discover(outputDir)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.False(t, files[0].Verified)
	assert.NotEmpty(t, warnings)
}

func TestDiscover_FallsBackToTempDirsWhenNoStableDir(t *testing.T) {
	outputDir := t.TempDir()
	tempDir := filepath.Join(outputDir, ".tmp12345")
	require.NoError(t, os.MkdirAll(tempDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(tempDir, "part-0001.warc.gz"), []byte("x"), 0o644))

	files, warnings, err := Discover(outputDir)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, SourceTemp, files[0].Source)
	assert.False(t, files[0].Verified)
	assert.Empty(t, warnings)
}

func TestDiscover_NoFilesAnywhereWarns(t *testing.T) {
	outputDir := t.TempDir()
	files, warnings, err := Discover(outputDir)
	require.NoError(t, err)
	assert.Empty(t, files)
	assert.NotEmpty(t, warnings)
}
