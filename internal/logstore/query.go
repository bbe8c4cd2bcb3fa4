package logstore

import (
	"slices"

	"github.com/keilerkonzept/topk"
	"github.com/keilerkonzept/topk/heap"
	"github.com/sahilm/fuzzy"

	"nathanbeddoewebdev/sirius/internal/domain"
)

type entrySource []domain.LogEntry

func (e entrySource) String(i int) string { return e[i].Target + " " + e[i].Message }
func (e entrySource) Len() int            { return len(e) }

// Filter returns the entries whose target or message fuzzily matches query,
// in cursor order. An empty query returns every entry.
func (s *Store) Filter(query string) []domain.LogEntry {
	entries := s.Entries()
	if query == "" {
		return entries
	}
	matches := fuzzy.FindFrom(query, entrySource(entries))
	idx := make([]int, 0, len(matches))
	for _, m := range matches {
		idx = append(idx, m.Index)
	}
	slices.Sort(idx)

	out := make([]domain.LogEntry, 0, len(idx))
	for _, i := range idx {
		out = append(out, entries[i])
	}
	return out
}

// TopTargets returns up to k of the most frequent targets among the retained
// entries, most frequent first. Counts are sketch estimates.
func (s *Store) TopTargets(k int) []heap.Item {
	entries := s.Entries()
	if k <= 0 || len(entries) == 0 {
		return nil
	}
	sketch := topk.New(k)
	for _, e := range entries {
		sketch.Incr(e.Target)
	}
	return sketch.SortedSlice()
}
