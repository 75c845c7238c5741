package repowalk

import (
	"path"

	"codescope/server/pkg/githubapi"
)

// codeExtensions is the allow-list of reviewable source and markup files.
var codeExtensions = map[string]bool{
	".py":    true,
	".js":    true,
	".ts":    true,
	".jsx":   true,
	".tsx":   true,
	".java":  true,
	".c":     true,
	".cpp":   true,
	".cs":    true,
	".go":    true,
	".rb":    true,
	".php":   true,
	".swift": true,
	".kt":    true,
	".rs":    true,
	".html":  true,
	".css":   true,
	".scss":  true,
}

// FilterCode keeps entries that carry decoded text content and whose
// extension is on the allow-list. Pure and idempotent; the input map is not
// modified.
func FilterCode(files map[string]githubapi.File) map[string]githubapi.File {
	out := make(map[string]githubapi.File, len(files))
	for p, f := range files {
		if f.TooLarge || f.Binary {
			continue
		}
		if !codeExtensions[path.Ext(p)] {
			continue
		}
		out[p] = f
	}
	return out
}
