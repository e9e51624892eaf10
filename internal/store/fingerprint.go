package store

import (
	"fmt"
	"hash/fnv"
	"strings"
)

// Fingerprint computes the content identity of a task title: the title
// is casefolded and whitespace-collapsed, then hashed (FNV-1a). Two
// titles that differ only in case or spacing share a fingerprint.
func Fingerprint(title string) string {
	normalized := strings.ToLower(strings.Join(strings.Fields(title), " "))
	if normalized == "" {
		return ""
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(normalized))
	return fmt.Sprintf("%016x", h.Sum64())
}
