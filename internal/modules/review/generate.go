package review

import (
	"fmt"
	"sort"
	"strings"

	"codescope/server/internal/store"
)

// pullRequestDescription renders a ready-to-paste PR body from the stored
// review issues.
func pullRequestDescription(snap *store.Snapshot) (title, body string) {
	title = fmt.Sprintf("Address code review findings for %s", snap.RepoKey)

	var b strings.Builder
	b.WriteString("## Summary\n\n")
	fmt.Fprintf(&b, "This change addresses the findings from the automated review of `%s`.\n\n", snap.RepoKey)

	b.WriteString("## Changes\n\n")
	issues := reviewIssues(snap)
	if len(issues) == 0 {
		b.WriteString("- No outstanding review findings.\n")
	}
	for _, issue := range issues {
		b.WriteString(issueLine(issue))
		b.WriteString("\n")
	}

	b.WriteString("\n## Testing\n\n")
	b.WriteString("- Existing test suite passes.\n")
	b.WriteString("- New tests cover the changed behavior.\n")
	return title, b.String()
}

// cascadePrompt renders an instruction prompt for a coding agent, enumerating
// the stored review issues as tasks.
func cascadePrompt(snap *store.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are working in the repository %s. Apply the following review findings one at a time, verifying after each step that the project still builds and its tests pass.\n\n", snap.RepoKey)

	for i, issue := range reviewIssues(snap) {
		desc, _ := issue["description"].(string)
		sug, _ := issue["suggestion"].(string)
		fmt.Fprintf(&b, "%d. %s", i+1, desc)
		if sug != "" {
			fmt.Fprintf(&b, " %s", sug)
		}
		b.WriteString("\n")
	}

	b.WriteString("\nDo not change behavior outside the scope of these findings. Prefer small, reviewable commits.\n")
	return b.String()
}

// improvementPlan renders guidance for rewriting code. When filePath is set,
// the plan targets that file; otherwise it covers the whole repository.
func improvementPlan(snap *store.Snapshot, filePath string) string {
	var b strings.Builder
	if filePath != "" {
		fmt.Fprintf(&b, "Improvement plan for %s in %s\n\n", filePath, snap.RepoKey)
	} else {
		fmt.Fprintf(&b, "Improvement plan for %s\n\n", snap.RepoKey)
	}

	for _, issue := range reviewIssues(snap) {
		cat, _ := issue["category"].(string)
		sug, _ := issue["suggestion"].(string)
		fmt.Fprintf(&b, "## %s\n\n%s\n\n", strings.ReplaceAll(cat, "_", " "), sug)
	}

	if filePath == "" && len(snap.CodeContent) > 0 {
		b.WriteString("## Suggested order\n\n")
		paths := make([]string, 0, len(snap.CodeContent))
		for p := range snap.CodeContent {
			paths = append(paths, p)
		}
		sort.Strings(paths)
		for _, p := range paths {
			fmt.Fprintf(&b, "- %s\n", p)
		}
	}
	return b.String()
}
