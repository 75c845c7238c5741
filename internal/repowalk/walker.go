// Package repowalk traverses a repository's directory tree via the GitHub
// contents API and narrows the result to reviewable source files.
package repowalk

import (
	"context"
	"strings"

	"codescope/server/pkg/githubapi"
)

// ContentFetcher is the slice of the GitHub client the walker needs.
type ContentFetcher interface {
	GetContents(ctx context.Context, owner, repo, path string) (*githubapi.File, []githubapi.DirEntry, error)
}

// maxDepth bounds traversal: a file whose path carries maxDepth or more
// separators is never fetched. Protects against rate-limit exhaustion on
// deep trees; skipped directories are not an error.
const maxDepth = 3

// Walk fetches every file reachable from the repository root within the
// depth bound and returns them keyed by repository-relative path. The first
// origin error aborts the whole walk and discards partial results: callers
// need an all-or-nothing snapshot.
func Walk(ctx context.Context, fetcher ContentFetcher, owner, repo string) (map[string]githubapi.File, error) {
	files := make(map[string]githubapi.File)

	// Explicit worklist instead of recursion: keeps the depth and
	// error-abort policies testable and the call stack flat.
	pending := []string{""}
	for len(pending) > 0 {
		dir := pending[len(pending)-1]
		pending = pending[:len(pending)-1]

		file, entries, err := fetcher.GetContents(ctx, owner, repo, dir)
		if err != nil {
			return nil, err
		}
		if file != nil {
			// Root (or pending path) resolved to a single file.
			files[file.Path] = *file
			continue
		}

		for _, e := range entries {
			switch e.Type {
			case "file":
				if e.Size >= githubapi.MaxFileSize {
					// Never content-fetch oversized entries.
					files[e.Path] = githubapi.File{Path: e.Path, Size: e.Size, TooLarge: true}
					continue
				}
				f, _, err := fetcher.GetContents(ctx, owner, repo, e.Path)
				if err != nil {
					return nil, err
				}
				if f == nil {
					continue
				}
				files[f.Path] = *f
			case "dir":
				// Files under this dir carry one more separator than the
				// dir path itself.
				if strings.Count(e.Path, "/")+1 < maxDepth {
					pending = append(pending, e.Path)
				}
			}
		}
	}
	return files, nil
}
