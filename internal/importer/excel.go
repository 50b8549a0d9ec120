// Package importer parses the "seed-sources --from-excel" workbook into
// Source rows: one source per row (code, label, base URL, default
// seeds, default scope rules), tolerant of per-row mistakes — a
// malformed row is collected as an ImportError and skipped, not fatal
// to the whole import.
package importer

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/jonesrussell/healtharchive/internal/models"
)

// Column indices for the seed-sources workbook (0-based).
const (
	colCode              = 0 // Column A
	colLabel             = 1 // Column B
	colBaseURL           = 2 // Column C
	colDefaultSeeds      = 3 // Column D, JSON array of strings
	colDefaultScopeRules = 4 // Column E, JSON array of strings
	colPickStagger       = 5 // Column F, Go duration string, optional

	// Code and label; GetRows drops trailing empty cells, so the
	// optional columns may be absent and are read through cellAt.
	minRequiredColumns = 2
	headerRowIndex     = 1 // Excel rows are 1-based; row 1 is the header
)

// SourceRow is a single parsed, not-yet-validated row from the
// workbook.
type SourceRow struct {
	Row               int // Excel row number, for error reporting
	Code              string
	Label             string
	BaseURL           string
	DefaultSeeds      string // raw JSON array string, may be empty
	DefaultScopeRules string // raw JSON array string, may be empty
	PickStagger       string // raw duration string, may be empty
}

// ImportError is a validation failure attributed to one workbook row.
type ImportError struct {
	Row   int    `json:"row"`
	Error string `json:"error"`
}

// ParseExcelFile reads the first sheet of an Excel workbook, returning
// every row that parses cleanly plus one ImportError per row that
// doesn't. A completely empty sheet (header only) returns no rows and
// no errors.
func ParseExcelFile(r io.Reader) ([]SourceRow, []ImportError) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, []ImportError{{Row: 0, Error: fmt.Sprintf("open workbook: %v", err)}}
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	rawRows, err := f.GetRows(sheet)
	if err != nil {
		return nil, []ImportError{{Row: 0, Error: fmt.Sprintf("read sheet %q: %v", sheet, err)}}
	}

	var rows []SourceRow
	var errs []ImportError

	for i, raw := range rawRows {
		excelRow := i + 1
		if excelRow <= headerRowIndex {
			continue
		}
		if isBlankRow(raw) {
			continue
		}
		row, rowErr := parseRow(excelRow, raw)
		if rowErr != "" {
			errs = append(errs, ImportError{Row: excelRow, Error: rowErr})
			continue
		}
		rows = append(rows, row)
	}

	return rows, errs
}

func isBlankRow(raw []string) bool {
	for _, cell := range raw {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func parseRow(excelRow int, raw []string) (SourceRow, string) {
	if len(raw) < minRequiredColumns {
		return SourceRow{}, fmt.Sprintf("row has %d columns, need at least %d", len(raw), minRequiredColumns)
	}

	row := SourceRow{
		Row:               excelRow,
		Code:              strings.TrimSpace(cellAt(raw, colCode)),
		Label:             strings.TrimSpace(cellAt(raw, colLabel)),
		BaseURL:           strings.TrimSpace(cellAt(raw, colBaseURL)),
		DefaultSeeds:      strings.TrimSpace(cellAt(raw, colDefaultSeeds)),
		DefaultScopeRules: strings.TrimSpace(cellAt(raw, colDefaultScopeRules)),
		PickStagger:       strings.TrimSpace(cellAt(raw, colPickStagger)),
	}

	if errMsg := ValidateRow(row); errMsg != "" {
		return SourceRow{}, errMsg
	}
	return row, ""
}

func cellAt(raw []string, idx int) string {
	if idx >= len(raw) {
		return ""
	}
	return raw[idx]
}

// ValidateRow returns a human-readable validation error, or "" if row
// is well-formed. It does not attempt the full conversion ToSource
// does — a row can be valid here and still fail type-specific parsing
// later for a more precise reason.
func ValidateRow(row SourceRow) string {
	if row.Code == "" {
		return "code is required"
	}
	if row.Label == "" {
		return "label is required"
	}
	if row.BaseURL != "" && !strings.HasPrefix(row.BaseURL, "http://") && !strings.HasPrefix(row.BaseURL, "https://") {
		return "base_url must start with http:// or https://"
	}
	if row.DefaultSeeds != "" {
		if errMsg := validateJSONStringArray(row.DefaultSeeds); errMsg != "" {
			return "default_seeds " + errMsg
		}
	}
	if row.DefaultScopeRules != "" {
		if errMsg := validateJSONStringArray(row.DefaultScopeRules); errMsg != "" {
			return "default_scope_rules " + errMsg
		}
	}
	if row.PickStagger != "" {
		if _, err := time.ParseDuration(row.PickStagger); err != nil {
			return "pick_stagger must be a valid duration"
		}
	}
	return ""
}

func validateJSONStringArray(raw string) string {
	var arr []string
	if err := json.Unmarshal([]byte(raw), &arr); err != nil {
		return "must be a valid JSON array of strings"
	}
	return ""
}

// ToSource converts an already-validated SourceRow into a models.Source
// ready for Store.UpsertSource. Call ValidateRow first; ToSource
// re-parses the JSON/duration fields and returns their specific parse
// error rather than ValidateRow's generic one.
func ToSource(row SourceRow) (*models.Source, error) {
	src := &models.Source{
		Code:    row.Code,
		Label:   row.Label,
		BaseURL: row.BaseURL,
	}

	if row.DefaultSeeds != "" {
		var seeds []string
		if err := json.Unmarshal([]byte(row.DefaultSeeds), &seeds); err != nil {
			return nil, fmt.Errorf("parse default_seeds: %w", err)
		}
		src.DefaultSeeds = models.StringArray(seeds)
	}
	if row.DefaultScopeRules != "" {
		var rules []string
		if err := json.Unmarshal([]byte(row.DefaultScopeRules), &rules); err != nil {
			return nil, fmt.Errorf("parse default_scope_rules: %w", err)
		}
		src.DefaultScopeRules = models.StringArray(rules)
	}
	if row.PickStagger != "" {
		stagger, err := time.ParseDuration(row.PickStagger)
		if err != nil {
			return nil, fmt.Errorf("parse pick_stagger: %w", err)
		}
		src.PickStagger = stagger
	}

	return src, nil
}
