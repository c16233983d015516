// Package dedupe finds redundant records in the editorial Airtable base:
// names carrying backup or date-stamp suffixes, and near-duplicate names
// that differ only in spacing or minor edits.
package dedupe

import (
	"regexp"
	"sort"
	"strings"

	"github.com/seiji-watch/diet-tracker/internal/normalize"
)

// Kind classifies why a record looks redundant.
type Kind string

const (
	KindDateStamp Kind = "date_stamp" // name embeds a date stamp
	KindBackup    Kind = "backup"     // _backup / _old style suffix
	KindResult    Kind = "result"     // _result working-copy suffix
	KindCopy      Kind = "copy"       // "copy of" / (1) duplicates
)

var patterns = []struct {
	kind Kind
	re   *regexp.Regexp
}{
	{KindDateStamp, regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)},
	{KindDateStamp, regexp.MustCompile(`_\d{8}(_|$|\.)`)},
	{KindBackup, regexp.MustCompile(`(?i)_backup(_|$|\.)`)},
	{KindBackup, regexp.MustCompile(`(?i)_old(_|$|\.)`)},
	{KindBackup, regexp.MustCompile(`(?i)_bak(_|$|\.)`)},
	{KindResult, regexp.MustCompile(`(?i)_result(s)?(_|$|\.)`)},
	{KindCopy, regexp.MustCompile(`(?i)^copy of `)},
	{KindCopy, regexp.MustCompile(`(?i)[ _]copy(_|$|\.)`)},
	{KindCopy, regexp.MustCompile(`\(\d+\)\s*(\.|$)`)},
}

// Match is one record flagged by name pattern.
type Match struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Kind Kind   `json:"kind"`
}

// Group is a set of records whose normalized names are near-duplicates.
type Group struct {
	IDs   []string `json:"ids"`
	Names []string `json:"names"`
}

// Record is the minimal shape the detector needs.
type Record struct {
	ID   string
	Name string
}

// Classify flags records whose names match a redundancy pattern. The first
// matching pattern wins.
func Classify(records []Record) []Match {
	var matches []Match
	for _, rec := range records {
		for _, p := range patterns {
			if p.re.MatchString(rec.Name) {
				matches = append(matches, Match{ID: rec.ID, Name: rec.Name, Kind: p.kind})
				break
			}
		}
	}
	return matches
}

// GroupNearDuplicates clusters records whose normalized names are at least
// threshold similar (trigram Jaccard, 0..1). Only groups with two or more
// members are returned. Threshold values outside (0, 1] fall back to 0.8.
func GroupNearDuplicates(records []Record, threshold float64) []Group {
	if threshold <= 0 || threshold > 1 {
		threshold = 0.8
	}

	type prepared struct {
		rec   Record
		grams map[string]struct{}
	}
	prep := make([]prepared, 0, len(records))
	for _, rec := range records {
		prep = append(prep, prepared{rec: rec, grams: trigrams(normalizeName(rec.Name))})
	}

	assigned := make([]bool, len(prep))
	var groups []Group
	for i := range prep {
		if assigned[i] {
			continue
		}
		group := Group{IDs: []string{prep[i].rec.ID}, Names: []string{prep[i].rec.Name}}
		for j := i + 1; j < len(prep); j++ {
			if assigned[j] {
				continue
			}
			if jaccard(prep[i].grams, prep[j].grams) >= threshold {
				assigned[j] = true
				group.IDs = append(group.IDs, prep[j].rec.ID)
				group.Names = append(group.Names, prep[j].rec.Name)
			}
		}
		if len(group.IDs) > 1 {
			assigned[i] = true
			sort.Strings(group.IDs)
			groups = append(groups, group)
		}
	}
	return groups
}

// normalizeName folds width, lowercases, and strips spacing and punctuation
// so "法案リスト " and "法案_リスト" compare equal.
func normalizeName(s string) string {
	s = strings.ToLower(normalize.Fold(s))
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case ' ', '　', '_', '-', '.', '(', ')':
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// trigrams returns the set of rune trigrams of s. Names shorter than three
// runes contribute themselves as a single gram.
func trigrams(s string) map[string]struct{} {
	runes := []rune(s)
	grams := make(map[string]struct{})
	if len(runes) < 3 {
		if len(runes) > 0 {
			grams[string(runes)] = struct{}{}
		}
		return grams
	}
	for i := 0; i+3 <= len(runes); i++ {
		grams[string(runes[i:i+3])] = struct{}{}
	}
	return grams
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}
	var shared int
	for g := range small {
		if _, ok := large[g]; ok {
			shared++
		}
	}
	union := len(a) + len(b) - shared
	return float64(shared) / float64(union)
}
