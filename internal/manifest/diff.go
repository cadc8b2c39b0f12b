package manifest

import "sort"

// Diff classifies every URL across the old and new metadata trees. Pure
// function of its inputs: new-only URLs are added, hash mismatches (or a
// missing hash on either side) are changed, matches are unchanged, and
// old-only URLs are removed. reindex is true for every status except
// unchanged and removed. Entries are emitted in sorted URL order, new tree
// first, then removals.
func (g *Generator) Diff(oldTree, newTree map[string]PageRecord) Manifest {
	m := Manifest{
		GeneratedAt: g.clock.Now(),
		Pages:       make([]Entry, 0, len(newTree)+len(oldTree)),
	}

	for _, url := range sortedKeys(newTree) {
		rec := newTree[url]
		entry := Entry{
			URL:        url,
			FolderPath: rec.FolderPath,
			Title:      rec.Meta.Title,
		}
		prev, existed := oldTree[url]
		switch {
		case !existed:
			entry.Status = StatusAdded
			entry.Reindex = true
			m.Summary.Added++
		case rec.Meta.ContentHash == "" || prev.Meta.ContentHash == "":
			entry.Status = StatusChanged
			entry.Reindex = true
			entry.Reason = ReasonNoHash
			m.Summary.Changed++
		case rec.Meta.ContentHash != prev.Meta.ContentHash:
			entry.Status = StatusChanged
			entry.Reindex = true
			m.Summary.Changed++
		default:
			entry.Status = StatusUnchanged
			m.Summary.Unchanged++
		}
		m.Pages = append(m.Pages, entry)
	}

	for _, url := range sortedKeys(oldTree) {
		if _, still := newTree[url]; still {
			continue
		}
		prev := oldTree[url]
		m.Pages = append(m.Pages, Entry{
			URL:        url,
			Status:     StatusRemoved,
			Reindex:    false,
			FolderPath: prev.FolderPath,
			Title:      prev.Meta.Title,
		})
		m.Summary.Removed++
	}

	return m
}

func sortedKeys(tree map[string]PageRecord) []string {
	keys := make([]string, 0, len(tree))
	for url := range tree {
		keys = append(keys, url)
	}
	sort.Strings(keys)
	return keys
}
