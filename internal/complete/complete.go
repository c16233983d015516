// Package complete backfills gaps in the editorial Airtable bill table with
// fixed per-field heuristics: keyword categorization, bill number padding,
// and placeholders for empty summary and status fields.
package complete

import (
	"context"
	"fmt"
	"strings"

	"github.com/seiji-watch/diet-tracker/internal/airtable"
	"github.com/seiji-watch/diet-tracker/internal/log"
	"github.com/seiji-watch/diet-tracker/internal/normalize"
)

// Field names of the editorial bill table.
const (
	FieldName       = "Name"
	FieldBillNumber = "Bill_Number"
	FieldCategory   = "Category"
	FieldSummary    = "Notes"
	FieldStatus     = "Bill_Status"
)

// Placeholders written into empty fields so editors can filter for them.
const (
	PlaceholderSummary = "要約未入力"
	PlaceholderStatus  = "審議中"
)

// categoryKeywords maps title keywords to editorial categories. The first
// matching entry wins, so more specific keywords come first.
var categoryKeywords = []struct {
	keyword  string
	category string
}{
	{"社会保障", "社会保障"},
	{"年金", "社会保障"},
	{"医療", "社会保障"},
	{"介護", "社会保障"},
	{"こども", "社会保障"},
	{"税", "経済・産業"},
	{"予算", "経済・産業"},
	{"金融", "経済・産業"},
	{"中小企業", "経済・産業"},
	{"防衛", "外交・防衛"},
	{"安全保障", "外交・防衛"},
	{"条約", "外交・防衛"},
	{"教育", "教育・文化"},
	{"学校", "教育・文化"},
	{"環境", "環境・エネルギー"},
	{"気候", "環境・エネルギー"},
	{"エネルギー", "環境・エネルギー"},
	{"労働", "労働・雇用"},
	{"雇用", "労働・雇用"},
	{"農業", "農林水産"},
	{"漁業", "農林水産"},
	{"デジタル", "行政・デジタル"},
	{"行政", "行政・デジタル"},
}

// Table is the Airtable surface the service needs.
type Table interface {
	List(ctx context.Context, table string) ([]airtable.Record, error)
	Update(ctx context.Context, table, recordID string, fields airtable.Fields) (airtable.Record, error)
}

// Report summarizes one completeness run.
type Report struct {
	Scanned    int            `json:"scanned"`
	Updated    int            `json:"updated"`
	Failed     int            `json:"failed"`
	FieldFixes map[string]int `json:"field_fixes"`
	DryRun     bool           `json:"dry_run"`
}

// Service runs completeness passes over one table.
type Service struct {
	client Table
	table  string
	dryRun bool
	logger log.Logger
}

// New creates a Service. With dryRun set, Run reports what it would change
// without writing anything.
func New(client Table, table string, dryRun bool, logger log.Logger) *Service {
	return &Service{client: client, table: table, dryRun: dryRun, logger: logger}
}

// Run lists every record, computes field fixes, and applies them. Write
// pacing is the Airtable client's concern; a failed update is counted and
// the run continues.
func (s *Service) Run(ctx context.Context) (Report, error) {
	records, err := s.client.List(ctx, s.table)
	if err != nil {
		return Report{}, fmt.Errorf("list %s: %w", s.table, err)
	}

	report := Report{
		Scanned:    len(records),
		FieldFixes: make(map[string]int),
		DryRun:     s.dryRun,
	}

	for _, rec := range records {
		fixes := Fixes(rec.Fields)
		if len(fixes) == 0 {
			continue
		}
		for field := range fixes {
			report.FieldFixes[field]++
		}

		if s.dryRun {
			s.logger.Info("would update record", "record", rec.ID, "fixes", fixes)
			report.Updated++
			continue
		}

		if _, err := s.client.Update(ctx, s.table, rec.ID, fixes); err != nil {
			report.Failed++
			s.logger.Warn("update failed", "record", rec.ID, "error", err)
			continue
		}
		report.Updated++
	}

	s.logger.Info("completeness run finished",
		"table", s.table, "scanned", report.Scanned,
		"updated", report.Updated, "failed", report.Failed, "dry_run", s.dryRun)
	return report, nil
}

// Fixes computes the field updates one record needs. An empty map means the
// record is already complete.
func Fixes(fields airtable.Fields) airtable.Fields {
	fixes := airtable.Fields{}

	if number := stringField(fields, FieldBillNumber); number != "" {
		if padded := normalize.PadBillNumber(normalize.Fold(number)); padded != number {
			fixes[FieldBillNumber] = padded
		}
	}

	if stringField(fields, FieldCategory) == "" {
		if category := CategoryForTitle(stringField(fields, FieldName)); category != "" {
			fixes[FieldCategory] = category
		}
	}

	if stringField(fields, FieldSummary) == "" {
		fixes[FieldSummary] = PlaceholderSummary
	}
	if stringField(fields, FieldStatus) == "" {
		fixes[FieldStatus] = PlaceholderStatus
	}

	if len(fixes) == 0 {
		return nil
	}
	return fixes
}

// CategoryForTitle maps a bill title to an editorial category by keyword,
// or "" when nothing matches.
func CategoryForTitle(title string) string {
	title = normalize.Fold(title)
	for _, entry := range categoryKeywords {
		if strings.Contains(title, entry.keyword) {
			return entry.category
		}
	}
	return ""
}

func stringField(fields airtable.Fields, name string) string {
	s, _ := fields[name].(string)
	return strings.TrimSpace(s)
}
