package cache

import (
	"fmt"
	"slices"
	"strings"
)

// Key builds a deterministic cache key from query parameters. Label
// sets are canonicalized (sorted, comma-joined, "all" when empty) so
// permutations of the same set share an entry.
func Key(org string, labels []string, since, until string) string {
	canon := "all"
	if len(labels) > 0 {
		sorted := slices.Clone(labels)
		slices.Sort(sorted)
		canon = strings.Join(sorted, ",")
	}
	return fmt.Sprintf("org=%s|labels=%s|since=%s|until=%s", org, canon, since, until)
}
