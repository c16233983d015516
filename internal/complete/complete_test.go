package complete

import (
	"context"
	"errors"
	"testing"

	"github.com/seiji-watch/diet-tracker/internal/airtable"
	"github.com/seiji-watch/diet-tracker/internal/log"
)

type fakeTable struct {
	records []airtable.Record
	listErr error

	updates   map[string]airtable.Fields
	updateErr map[string]error
}

func (f *fakeTable) List(context.Context, string) ([]airtable.Record, error) {
	return f.records, f.listErr
}

func (f *fakeTable) Update(_ context.Context, _ string, recordID string, fields airtable.Fields) (airtable.Record, error) {
	if err, ok := f.updateErr[recordID]; ok {
		return airtable.Record{}, err
	}
	if f.updates == nil {
		f.updates = make(map[string]airtable.Fields)
	}
	f.updates[recordID] = fields
	return airtable.Record{ID: recordID, Fields: fields}, nil
}

func TestFixes(t *testing.T) {
	tests := []struct {
		name   string
		fields airtable.Fields
		want   airtable.Fields
	}{
		{
			name: "complete record needs nothing",
			fields: airtable.Fields{
				FieldName:       "環境基本法の一部を改正する法律案",
				FieldBillNumber: "005",
				FieldCategory:   "環境・エネルギー",
				FieldSummary:    "既存の要約",
				FieldStatus:     "成立",
			},
			want: nil,
		},
		{
			name: "pads bill number",
			fields: airtable.Fields{
				FieldBillNumber: "5",
				FieldCategory:   "x", FieldSummary: "x", FieldStatus: "x",
			},
			want: airtable.Fields{FieldBillNumber: "005"},
		},
		{
			name: "folds full-width bill number",
			fields: airtable.Fields{
				FieldBillNumber: "５",
				FieldCategory:   "x", FieldSummary: "x", FieldStatus: "x",
			},
			want: airtable.Fields{FieldBillNumber: "005"},
		},
		{
			name: "categorizes by title keyword",
			fields: airtable.Fields{
				FieldName:       "所得税法等の一部を改正する法律案",
				FieldBillNumber: "005",
				FieldSummary:    "x", FieldStatus: "x",
			},
			want: airtable.Fields{FieldCategory: "経済・産業"},
		},
		{
			name: "fills empty summary and status",
			fields: airtable.Fields{
				FieldBillNumber: "005",
				FieldCategory:   "x",
			},
			want: airtable.Fields{
				FieldSummary: PlaceholderSummary,
				FieldStatus:  PlaceholderStatus,
			},
		},
		{
			name: "unknown keyword leaves category empty",
			fields: airtable.Fields{
				FieldName:       "特別会計に関する件",
				FieldBillNumber: "005",
				FieldSummary:    "x", FieldStatus: "x",
			},
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Fixes(tt.fields)
			if len(got) != len(tt.want) {
				t.Fatalf("fixes = %v, want %v", got, tt.want)
			}
			for field, want := range tt.want {
				if got[field] != want {
					t.Errorf("%s = %v, want %v", field, got[field], want)
				}
			}
		})
	}
}

func TestCategoryForTitle(t *testing.T) {
	tests := []struct {
		title string
		want  string
	}{
		{"防衛省設置法の一部を改正する法律案", "外交・防衛"},
		{"介護保険法改正案", "社会保障"},
		{"労働基準法改正案", "労働・雇用"},
		{"全く関係ない件名", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := CategoryForTitle(tt.title); got != tt.want {
			t.Errorf("CategoryForTitle(%q) = %q, want %q", tt.title, got, tt.want)
		}
	}
}

func TestRun(t *testing.T) {
	table := &fakeTable{records: []airtable.Record{
		{ID: "rec1", Fields: airtable.Fields{
			FieldBillNumber: "5", FieldCategory: "x", FieldSummary: "x", FieldStatus: "x",
		}},
		{ID: "rec2", Fields: airtable.Fields{
			FieldBillNumber: "005", FieldCategory: "x", FieldSummary: "x", FieldStatus: "x",
		}},
	}}

	svc := New(table, "Bills", false, log.NewNop())
	report, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if report.Scanned != 2 || report.Updated != 1 {
		t.Errorf("report = %+v, want 2 scanned, 1 updated", report)
	}
	if report.FieldFixes[FieldBillNumber] != 1 {
		t.Errorf("field fixes = %v", report.FieldFixes)
	}
	if fields, ok := table.updates["rec1"]; !ok || fields[FieldBillNumber] != "005" {
		t.Errorf("rec1 update = %v", table.updates)
	}
	if _, ok := table.updates["rec2"]; ok {
		t.Error("complete record should not be written")
	}
}

func TestRun_DryRunWritesNothing(t *testing.T) {
	table := &fakeTable{records: []airtable.Record{
		{ID: "rec1", Fields: airtable.Fields{FieldBillNumber: "5"}},
	}}

	svc := New(table, "Bills", true, log.NewNop())
	report, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if report.Updated != 1 || !report.DryRun {
		t.Errorf("report = %+v", report)
	}
	if len(table.updates) != 0 {
		t.Errorf("dry run wrote %v", table.updates)
	}
}

func TestRun_UpdateFailureContinues(t *testing.T) {
	table := &fakeTable{
		records: []airtable.Record{
			{ID: "rec1", Fields: airtable.Fields{FieldBillNumber: "5"}},
			{ID: "rec2", Fields: airtable.Fields{FieldBillNumber: "7"}},
		},
		updateErr: map[string]error{"rec1": errors.New("422")},
	}

	svc := New(table, "Bills", false, log.NewNop())
	report, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Failed != 1 || report.Updated != 1 {
		t.Errorf("report = %+v, want one failure and one update", report)
	}
}

func TestRun_ListErrorAborts(t *testing.T) {
	table := &fakeTable{listErr: errors.New("rate limited")}
	svc := New(table, "Bills", false, log.NewNop())
	if _, err := svc.Run(context.Background()); err == nil {
		t.Fatal("expected error when listing fails")
	}
}
