package scrape

import (
	"strings"

	dmp "github.com/sergi/go-diff/diffmatchpatch"
)

// delta returns the text present in cur but not in prev. The sink normally
// only grows, so this is the newly appended output; a rewritten sink (a new
// auth attempt truncates it) yields the inserted fragments.
func delta(prev, cur string) string {
	if prev == cur {
		return ""
	}
	if prev == "" || strings.HasPrefix(cur, prev) {
		return cur[len(prev):]
	}
	d := dmp.New()
	diffs := d.DiffMain(prev, cur, false)
	diffs = d.DiffCleanupSemantic(diffs)
	var sb strings.Builder
	for _, df := range diffs {
		if df.Type == dmp.DiffInsert {
			sb.WriteString(df.Text)
		}
	}
	return sb.String()
}
