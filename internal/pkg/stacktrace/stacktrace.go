// Package stacktrace trims goroutine dumps down to the frames that belong to
// this module so panic logs stay readable.
package stacktrace

import "strings"

// InternalPaths returns "internal/<pkg>/<file>.go:<line>" entries from a raw
// debug.Stack dump, skipping runtime and third-party frames.
func InternalPaths(stack []byte) []string {
	var paths []string

	for line := range strings.Lines(string(stack)) {
		line = strings.TrimSpace(line)

		idx := strings.Index(line, "/internal/")
		if idx == -1 {
			continue
		}

		loc := line[idx+1:]
		goIdx := strings.Index(loc, ".go:")
		if goIdx == -1 {
			continue
		}

		if end := strings.IndexByte(loc[goIdx:], ' '); end != -1 {
			loc = loc[:goIdx+end]
		}
		paths = append(paths, loc)
	}

	return paths
}
