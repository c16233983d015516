// Package taxonomy syncs the CAP policy category tree from the editorial
// Airtable base into Postgres. The classifier refuses to run against an
// empty taxonomy, so this sync is a prerequisite of the classify pipeline.
package taxonomy

import (
	"context"
	"fmt"
	"sort"

	"github.com/seiji-watch/diet-tracker/internal/airtable"
	"github.com/seiji-watch/diet-tracker/internal/domain"
	"github.com/seiji-watch/diet-tracker/internal/log"
)

// DefaultTable is the editorial category table.
const DefaultTable = "IssueCategories (課題カテゴリ)"

// Field names of the editorial category table.
const (
	FieldCAPCode   = "CAP_Code"
	FieldLayer     = "Layer"
	FieldTitleJA   = "Title_JA"
	FieldTitleEN   = "Title_EN"
	FieldParentCAP = "Parent_CAP_Code"
)

// Source lists records from one Airtable table.
type Source interface {
	List(ctx context.Context, table string) ([]airtable.Record, error)
}

// Store is the category persistence surface the sync needs.
type Store interface {
	Upsert(ctx context.Context, c *domain.PolicyCategory) (*domain.PolicyCategory, error)
}

// Report summarizes one sync run.
type Report struct {
	Scanned int `json:"scanned"`
	L1      int `json:"l1"`
	L2      int `json:"l2"`
	Skipped int `json:"skipped"` // records missing a CAP code, layer, or known parent
}

// Syncer copies the category table into the store.
type Syncer struct {
	source Source
	store  Store
	table  string
	logger log.Logger
}

// New creates a Syncer reading from table.
func New(source Source, store Store, table string, logger log.Logger) *Syncer {
	if table == "" {
		table = DefaultTable
	}
	return &Syncer{source: source, store: store, table: table, logger: logger}
}

// Run lists the category table and upserts every valid record, L1 before
// L2 so parent IDs resolve within a single pass. Malformed records are
// skipped and counted, never fatal; a store failure aborts the run.
func (s *Syncer) Run(ctx context.Context) (Report, error) {
	records, err := s.source.List(ctx, s.table)
	if err != nil {
		return Report{}, fmt.Errorf("list %s: %w", s.table, err)
	}

	report := Report{Scanned: len(records)}

	var l1, l2 []*domain.PolicyCategory
	parentCAP := map[string]string{} // L2 CAP code -> parent L1 CAP code
	for _, rec := range records {
		c, parent, ok := fromRecord(rec)
		if !ok {
			s.logger.Warn("skipping malformed category record", "record_id", rec.ID)
			report.Skipped++
			continue
		}
		switch c.Layer {
		case domain.LayerL1:
			l1 = append(l1, c)
		case domain.LayerL2:
			parentCAP[c.CAPCode] = parent
			l2 = append(l2, c)
		}
	}

	// Deterministic order keeps logs and retries stable.
	sort.Slice(l1, func(i, j int) bool { return l1[i].CAPCode < l1[j].CAPCode })
	sort.Slice(l2, func(i, j int) bool { return l2[i].CAPCode < l2[j].CAPCode })

	idByCAP := map[string]*domain.PolicyCategory{}
	for _, c := range l1 {
		stored, err := s.store.Upsert(ctx, c)
		if err != nil {
			return report, fmt.Errorf("upsert L1 %q: %w", c.CAPCode, err)
		}
		idByCAP[stored.CAPCode] = stored
		report.L1++
	}

	for _, c := range l2 {
		parent, ok := idByCAP[parentCAP[c.CAPCode]]
		if !ok {
			s.logger.Warn("L2 category without known L1 parent, skipping",
				"cap_code", c.CAPCode, "parent_cap_code", parentCAP[c.CAPCode])
			report.Skipped++
			continue
		}
		c.ParentID = &parent.ID
		if _, err := s.store.Upsert(ctx, c); err != nil {
			return report, fmt.Errorf("upsert L2 %q: %w", c.CAPCode, err)
		}
		report.L2++
	}

	s.logger.Info("taxonomy sync complete",
		"scanned", report.Scanned, "l1", report.L1, "l2", report.L2, "skipped", report.Skipped)
	return report, nil
}

// fromRecord maps one Airtable record to a category. The third return is
// false when the record lacks a CAP code, title, or recognizable layer.
func fromRecord(rec airtable.Record) (*domain.PolicyCategory, string, bool) {
	code, _ := rec.Fields[FieldCAPCode].(string)
	titleJA, _ := rec.Fields[FieldTitleJA].(string)
	if code == "" || titleJA == "" {
		return nil, "", false
	}

	layerRaw, _ := rec.Fields[FieldLayer].(string)
	var layer domain.CategoryLayer
	switch layerRaw {
	case string(domain.LayerL1):
		layer = domain.LayerL1
	case string(domain.LayerL2):
		layer = domain.LayerL2
	default:
		return nil, "", false
	}

	titleEN, _ := rec.Fields[FieldTitleEN].(string)
	parent, _ := rec.Fields[FieldParentCAP].(string)

	return &domain.PolicyCategory{
		CAPCode:    code,
		Layer:      layer,
		TitleJA:    titleJA,
		TitleEN:    titleEN,
		AirtableID: rec.ID,
	}, parent, true
}
