package warc

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
)

// Source tags where a discovered file came from, since a temp-directory
// fallback is only evidence the crawler did not (yet) consolidate.
type Source string

const (
	SourceStable Source = "stable"
	SourceTemp   Source = "temp"
)

// DiscoveredFile is one WARC file found for a job, with the manifest
// verification outcome if one applied.
type DiscoveredFile struct {
	Path     string
	Source   Source
	Verified bool
	Warning  string
}

// ManifestEntry mirrors one record of <output_dir>/warcs/manifest.json.
type ManifestEntry struct {
	SourcePath string `json:"source_path"`
	StableName string `json:"stable_name"`
	SHA256     string `json:"sha256"`
	SizeBytes  int64  `json:"size_bytes"`
	LinkType   string `json:"link_type"`
}

// Manifest is the top-level manifest.json document.
type Manifest struct {
	Records []ManifestEntry `json:"records"`
}

// Discover enumerates WARC files for a job's output directory: the
// stable warcs/ subdirectory (verified against manifest.json) if
// present, otherwise a fallback scan of .tmp* directories.
func Discover(outputDir string) ([]DiscoveredFile, []string, error) {
	stableDir := filepath.Join(outputDir, "warcs")
	if info, err := os.Stat(stableDir); err == nil && info.IsDir() {
		return discoverStable(stableDir)
	}
	return discoverTemp(outputDir)
}

func discoverStable(stableDir string) ([]DiscoveredFile, []string, error) {
	var warnings []string
	manifestPath := filepath.Join(stableDir, "manifest.json")
	manifest, err := readManifest(manifestPath)
	if err != nil {
		warnings = append(warnings, fmt.Sprintf("manifest unreadable: %v", err))
		files, scanErr := scanWARCFiles(stableDir)
		if scanErr != nil {
			return nil, warnings, scanErr
		}
		discovered := make([]DiscoveredFile, 0, len(files))
		for _, f := range files {
			discovered = append(discovered, DiscoveredFile{Path: f, Source: SourceStable, Verified: false})
		}
		return discovered, warnings, nil
	}

	discovered := make([]DiscoveredFile, 0, len(manifest.Records))
	for _, entry := range manifest.Records {
		path := filepath.Join(stableDir, entry.StableName)
		verified, warning := verifyManifestEntry(path, entry)
		if warning != "" {
			warnings = append(warnings, warning)
		}
		discovered = append(discovered, DiscoveredFile{
			Path: path, Source: SourceStable, Verified: verified, Warning: warning,
		})
	}
	return discovered, warnings, nil
}

// verifyManifestEntry checks file presence and size; SHA-256 is
// verified too since computing it is cheap relative to the indexing
// pass that follows. A mismatch is reported but does not abort
// discovery — the caller skips the affected file's records.
func verifyManifestEntry(path string, entry ManifestEntry) (bool, string) {
	info, err := os.Stat(path)
	if err != nil {
		return false, fmt.Sprintf("%s: missing (%v)", entry.StableName, err)
	}
	if entry.SizeBytes > 0 && info.Size() != entry.SizeBytes {
		return false, fmt.Sprintf("%s: size mismatch (manifest %d, actual %d)", entry.StableName, entry.SizeBytes, info.Size())
	}
	if entry.SHA256 == "" {
		return true, ""
	}
	sum, err := fileSHA256(path)
	if err != nil {
		return false, fmt.Sprintf("%s: sha256 unreadable (%v)", entry.StableName, err)
	}
	if sum != entry.SHA256 {
		return false, fmt.Sprintf("%s: sha256 mismatch", entry.StableName)
	}
	return true, ""
}

func fileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func readManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// discoverTemp falls back to scanning <output_dir>/.tmp*/**.warc.gz
// when the stable consolidation directory is absent — the crawler was
// interrupted before consolidating, or never will (skip_final_build).
func discoverTemp(outputDir string) ([]DiscoveredFile, []string, error) {
	entries, err := os.ReadDir(outputDir)
	if err != nil {
		return nil, nil, fmt.Errorf("read output dir: %w", err)
	}

	var discovered []DiscoveredFile
	for _, e := range entries {
		if !e.IsDir() || !isTempDir(e.Name()) {
			continue
		}
		files, err := scanWARCFiles(filepath.Join(outputDir, e.Name()))
		if err != nil {
			continue
		}
		for _, f := range files {
			discovered = append(discovered, DiscoveredFile{Path: f, Source: SourceTemp, Verified: false})
		}
	}
	sort.Slice(discovered, func(i, j int) bool { return discovered[i].Path < discovered[j].Path })

	var warnings []string
	if len(discovered) == 0 {
		warnings = append(warnings, "no stable warcs/ directory and no .tmp* fallback files found")
	}
	return discovered, warnings, nil
}

func isTempDir(name string) bool {
	return len(name) >= 4 && name[:4] == ".tmp"
}

func scanWARCFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if filepath.Ext(path) == ".gz" {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}
