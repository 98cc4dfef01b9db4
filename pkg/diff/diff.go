// Package diff compares a source index against a target digest set.
// Every function here is pure: no I/O, no events.
package diff

import (
	"sort"

	"github.com/sdejongh/contentsync/pkg/models"
)

// Summary counts how the source files split against the target
type Summary struct {
	Total      int
	Selected   int
	Duplicates int
	Unreadable int

	SelectedBytes  int64
	DuplicateBytes int64
}

// Select returns the source entries whose content is absent from the target,
// sorted by relative path. Entries without a digest are never selected.
func Select(index models.SourceIndex, target models.TargetDigestSet) models.Selection {
	return filter(index, func(e models.SourceEntry) bool {
		return e.Hashed() && !target.Contains(e.Digest)
	})
}

// Duplicates returns the source entries whose content already exists somewhere
// in the target, sorted by relative path.
func Duplicates(index models.SourceIndex, target models.TargetDigestSet) models.Selection {
	return filter(index, func(e models.SourceEntry) bool {
		return e.Hashed() && target.Contains(e.Digest)
	})
}

// Summarize classifies every source entry exactly once
func Summarize(index models.SourceIndex, target models.TargetDigestSet) Summary {
	s := Summary{Total: index.Len()}
	for _, e := range index {
		switch {
		case !e.Hashed():
			s.Unreadable++
		case target.Contains(e.Digest):
			s.Duplicates++
			s.DuplicateBytes += e.Size
		default:
			s.Selected++
			s.SelectedBytes += e.Size
		}
	}
	return s
}

func filter(index models.SourceIndex, keep func(models.SourceEntry) bool) models.Selection {
	selection := make(models.Selection, 0)
	for _, e := range index {
		if keep(e) {
			selection = append(selection, e)
		}
	}
	sort.Slice(selection, func(i, j int) bool {
		return selection[i].RelativePath < selection[j].RelativePath
	})
	return selection
}
