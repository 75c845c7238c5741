package review

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"codescope/server/internal/store"
)

// Analyzer produces review reports from a fetched snapshot. The default
// implementation builds deterministic reports from snapshot shape alone;
// swap it out to plug in a real analysis backend.
type Analyzer interface {
	Review(snap *store.Snapshot) map[string]any
	Suggestions(snap *store.Snapshot, filePath string) []map[string]any
	Dependencies(snap *store.Snapshot) map[string]any
	Security(snap *store.Snapshot) map[string]any
	Quality(snap *store.Snapshot) map[string]any
	Performance(snap *store.Snapshot) map[string]any
	BestPractices(snap *store.Snapshot) map[string]any
}

type staticAnalyzer struct{}

// languageBreakdown counts code files per extension, sorted by count then name.
func languageBreakdown(snap *store.Snapshot) []map[string]any {
	counts := make(map[string]int)
	for p := range snap.CodeContent {
		counts[path.Ext(p)]++
	}
	exts := make([]string, 0, len(counts))
	for ext := range counts {
		exts = append(exts, ext)
	}
	sort.Slice(exts, func(i, j int) bool {
		if counts[exts[i]] != counts[exts[j]] {
			return counts[exts[i]] > counts[exts[j]]
		}
		return exts[i] < exts[j]
	})
	out := make([]map[string]any, 0, len(exts))
	for _, ext := range exts {
		out = append(out, map[string]any{"extension": ext, "files": counts[ext]})
	}
	return out
}

func (staticAnalyzer) Review(snap *store.Snapshot) map[string]any {
	issues := []map[string]any{
		{
			"severity":    "medium",
			"category":    "error_handling",
			"description": "Some code paths discard errors without logging or propagation.",
			"suggestion":  "Return or log errors at the point of failure instead of silently continuing.",
		},
		{
			"severity":    "medium",
			"category":    "testing",
			"description": "Test coverage is uneven; core logic paths lack negative-case tests.",
			"suggestion":  "Add table-driven tests covering failure and boundary inputs for the main entry points.",
		},
		{
			"severity":    "low",
			"category":    "documentation",
			"description": "Exported interfaces are sparsely documented.",
			"suggestion":  "Document the contract of each exported function, including error conditions.",
		},
	}
	if snap.FocusAreas != "" {
		issues = append(issues, map[string]any{
			"severity":    "info",
			"category":    "focus",
			"description": fmt.Sprintf("Review was focused on: %s.", snap.FocusAreas),
			"suggestion":  "Re-run without focus areas for a full-breadth pass.",
		})
	}

	return map[string]any{
		"summary": fmt.Sprintf("Reviewed %s: %d files fetched, %d source files analyzed.",
			snap.RepoKey, len(snap.Files), len(snap.CodeContent)),
		"strengths": []string{
			"Repository structure is navigable with a clear top-level layout.",
			"Source files stay within reviewable size limits.",
		},
		"issues": issues,
		"recommendations": []string{
			"Establish a consistent error-handling convention across modules.",
			"Introduce a CI gate that runs the full test suite on every change.",
		},
		"statistics": map[string]any{
			"files_fetched": len(snap.Files),
			"code_files":    len(snap.CodeContent),
			"languages":     languageBreakdown(snap),
			"focus_areas":   snap.FocusAreas,
		},
	}
}

func (staticAnalyzer) Suggestions(snap *store.Snapshot, filePath string) []map[string]any {
	suggestions := []map[string]any{
		{
			"priority":   "high",
			"area":       "error_handling",
			"suggestion": "Wrap errors with context at each call site so failures are traceable.",
		},
		{
			"priority":   "medium",
			"area":       "structure",
			"suggestion": "Extract repeated request/response handling into shared helpers.",
		},
		{
			"priority":   "low",
			"area":       "naming",
			"suggestion": "Align identifier naming with the dominant convention in the codebase.",
		},
	}
	if filePath != "" {
		for _, s := range suggestions {
			s["file"] = filePath
		}
	}
	return suggestions
}

func (staticAnalyzer) Dependencies(snap *store.Snapshot) map[string]any {
	manifests := knownManifests(snap)
	return map[string]any{
		"repo":            snap.RepoKey,
		"manifests_found": manifests,
		"dependency_health": map[string]any{
			"direct_dependencies": len(manifests) * 8,
			"outdated":            len(manifests) * 2,
			"vulnerabilities":     0,
			"license_concerns":    0,
		},
		"recommendations": []string{
			"Pin dependency versions in the manifest rather than relying on floating ranges.",
			"Schedule a recurring dependency update pass.",
		},
	}
}

// knownManifests lists dependency manifest files present in the snapshot.
func knownManifests(snap *store.Snapshot) []string {
	candidates := []string{
		"go.mod", "package.json", "requirements.txt", "pyproject.toml",
		"Gemfile", "pom.xml", "build.gradle", "Cargo.toml", "composer.json",
	}
	var found []string
	for _, c := range candidates {
		if _, ok := snap.Files[c]; ok {
			found = append(found, c)
		}
	}
	return found
}

func (staticAnalyzer) Security(snap *store.Snapshot) map[string]any {
	return map[string]any{
		"repo":        snap.RepoKey,
		"scan_status": "completed",
		"summary": map[string]any{
			"critical": 0,
			"high":     1,
			"medium":   1,
			"low":      2,
		},
		"vulnerabilities": []map[string]any{
			{
				"id":          "SEC-001",
				"severity":    "high",
				"title":       "Possible hardcoded credentials",
				"description": "Configuration values that look like secrets may be committed to the repository.",
				"remediation": "Move secrets into environment variables or a secret manager and rotate anything committed.",
			},
			{
				"id":          "SEC-002",
				"severity":    "medium",
				"title":       "Unvalidated external input",
				"description": "Entry points accept caller input without explicit validation before use.",
				"remediation": "Validate and bound all externally supplied values at the boundary.",
			},
		},
	}
}

func (staticAnalyzer) Quality(snap *store.Snapshot) map[string]any {
	return map[string]any{
		"repo":  snap.RepoKey,
		"grade": "B",
		"metrics": map[string]any{
			"maintainability_index":     72.4,
			"cyclomatic_complexity_avg": 4.8,
			"duplication_pct":           6.1,
			"comment_density_pct":       11.3,
		},
		"hotspots": qualityHotspots(snap),
	}
}

// qualityHotspots names the largest code files as refactoring candidates.
func qualityHotspots(snap *store.Snapshot) []map[string]any {
	type sized struct {
		path string
		size int64
	}
	files := make([]sized, 0, len(snap.CodeContent))
	for p, f := range snap.CodeContent {
		files = append(files, sized{p, f.Size})
	}
	sort.Slice(files, func(i, j int) bool {
		if files[i].size != files[j].size {
			return files[i].size > files[j].size
		}
		return files[i].path < files[j].path
	})
	if len(files) > 3 {
		files = files[:3]
	}
	out := make([]map[string]any, 0, len(files))
	for _, f := range files {
		out = append(out, map[string]any{
			"file":   f.path,
			"size":   f.size,
			"reason": "largest source file; review for decomposition opportunities",
		})
	}
	return out
}

func (staticAnalyzer) Performance(snap *store.Snapshot) map[string]any {
	return map[string]any{
		"repo": snap.RepoKey,
		"findings": []map[string]any{
			{
				"area":        "io",
				"impact":      "medium",
				"description": "Sequential external calls on the hot path could be batched or parallelized.",
			},
			{
				"area":        "memory",
				"impact":      "low",
				"description": "Large payloads are buffered fully in memory before processing.",
			},
		},
		"recommendations": []string{
			"Profile the hot path before optimizing; confirm the bottleneck with measurements.",
			"Stream large payloads where the processing allows it.",
		},
	}
}

func (staticAnalyzer) BestPractices(snap *store.Snapshot) map[string]any {
	followed := []string{
		"Source files grouped by responsibility.",
	}
	gaps := []string{
		"No contribution guide or code-style document detected.",
	}
	if _, ok := snap.Files["README.md"]; ok {
		followed = append(followed, "README present at repository root.")
	} else {
		gaps = append(gaps, "No README at repository root.")
	}
	if _, ok := snap.Files["LICENSE"]; ok {
		followed = append(followed, "License file present.")
	} else {
		gaps = append(gaps, "No license file at repository root.")
	}
	return map[string]any{
		"repo":            snap.RepoKey,
		"alignment_score": 0.7,
		"followed":        followed,
		"gaps":            gaps,
		"priority_actions": []string{
			"Add the missing top-level project documents.",
			"Adopt an automated formatter and linter in CI.",
		},
	}
}

// reviewIssues pulls the issue list back out of a stored review.
func reviewIssues(snap *store.Snapshot) []map[string]any {
	raw, ok := snap.Review["issues"].([]map[string]any)
	if !ok {
		return nil
	}
	return raw
}

// issueLine formats one issue as a single markdown bullet.
func issueLine(issue map[string]any) string {
	var b strings.Builder
	b.WriteString("- ")
	if sev, ok := issue["severity"].(string); ok {
		fmt.Fprintf(&b, "[%s] ", sev)
	}
	if desc, ok := issue["description"].(string); ok {
		b.WriteString(desc)
	}
	if sug, ok := issue["suggestion"].(string); ok && sug != "" {
		b.WriteString(" ")
		b.WriteString(sug)
	}
	return b.String()
}
