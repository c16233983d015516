package dedupe

import (
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		recName  string
		want     Kind
		flagless bool
	}{
		{"iso date stamp", "bills_2024-03-15.csv", KindDateStamp, false},
		{"compact date stamp", "bills_20240315.csv", KindDateStamp, false},
		{"backup suffix", "bills_backup.csv", KindBackup, false},
		{"old suffix", "members_old.xlsx", KindBackup, false},
		{"bak suffix", "speeches_bak.json", KindBackup, false},
		{"result suffix", "classify_results.csv", KindResult, false},
		{"copy of prefix", "Copy of 法案一覧", KindCopy, false},
		{"copy suffix", "法案一覧 copy.csv", KindCopy, false},
		{"numbered duplicate", "法案一覧 (2)", KindCopy, false},
		{"clean name", "法案一覧", "", true},
		{"digits but no stamp", "第208回国会", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			matches := Classify([]Record{{ID: "rec1", Name: tt.recName}})
			if tt.flagless {
				if len(matches) != 0 {
					t.Fatalf("%q flagged as %s, want clean", tt.recName, matches[0].Kind)
				}
				return
			}
			if len(matches) != 1 {
				t.Fatalf("%q not flagged", tt.recName)
			}
			if matches[0].Kind != tt.want {
				t.Errorf("kind = %s, want %s", matches[0].Kind, tt.want)
			}
		})
	}
}

func TestClassify_FirstPatternWins(t *testing.T) {
	matches := Classify([]Record{{ID: "r", Name: "bills_2024-03-15_backup.csv"}})
	if len(matches) != 1 {
		t.Fatalf("got %d matches, want 1", len(matches))
	}
	if matches[0].Kind != KindDateStamp {
		t.Errorf("kind = %s, want date_stamp (first match)", matches[0].Kind)
	}
}

func TestGroupNearDuplicates(t *testing.T) {
	records := []Record{
		{ID: "a", Name: "令和六年度予算関連法案一覧"},
		{ID: "b", Name: "令和六年度予算関連法案一覧 "},
		{ID: "c", Name: "令和六年度予算関連法案一覧表"},
		{ID: "d", Name: "議員名簿"},
	}

	groups := GroupNearDuplicates(records, 0.8)
	if len(groups) != 1 {
		t.Fatalf("got %d groups, want 1", len(groups))
	}
	if len(groups[0].IDs) != 3 {
		t.Errorf("group = %v, want a, b, c together", groups[0].IDs)
	}
	for _, id := range groups[0].IDs {
		if id == "d" {
			t.Error("unrelated record grouped in")
		}
	}
}

func TestGroupNearDuplicates_NoGroupsForDistinctNames(t *testing.T) {
	records := []Record{
		{ID: "a", Name: "法案一覧"},
		{ID: "b", Name: "議員名簿"},
		{ID: "c", Name: "発言記録"},
	}
	if groups := GroupNearDuplicates(records, 0.8); len(groups) != 0 {
		t.Errorf("got %d groups, want none", len(groups))
	}
}

func TestGroupNearDuplicates_ThresholdFallback(t *testing.T) {
	records := []Record{
		{ID: "a", Name: "予算委員会議事録"},
		{ID: "b", Name: "予算委員会議事録2"},
	}
	// Invalid thresholds fall back rather than grouping everything.
	if groups := GroupNearDuplicates(records, -1); len(groups) != 1 {
		t.Errorf("got %d groups, want 1 with fallback threshold", len(groups))
	}
}

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"法案 リスト", "法案リスト"},
		{"法案_リスト", "法案リスト"},
		{"Bills List.CSV", "billslistcsv"},
		{"ＢＩＬＬＳ", "bills"},
	}
	for _, tt := range tests {
		if got := normalizeName(tt.in); got != tt.want {
			t.Errorf("normalizeName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestJaccard(t *testing.T) {
	a := trigrams("abcdef")
	if got := jaccard(a, a); got != 1 {
		t.Errorf("identical sets = %v, want 1", got)
	}
	if got := jaccard(a, trigrams("xyzuvw")); got != 0 {
		t.Errorf("disjoint sets = %v, want 0", got)
	}
	if got := jaccard(a, map[string]struct{}{}); got != 0 {
		t.Errorf("empty set = %v, want 0", got)
	}
}
