package review

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"codescope/server/internal/store"
	"codescope/server/pkg/githubapi"
)

// fakeOrigin is a canned GitHub origin serving one repository tree.
type fakeOrigin struct {
	repoInfo json.RawMessage
	repoErr  error
	listings map[string][]githubapi.DirEntry
	files    map[string]*githubapi.File
	calls    int
}

func (f *fakeOrigin) GetRepo(ctx context.Context, owner, repo string) (json.RawMessage, error) {
	f.calls++
	if f.repoErr != nil {
		return nil, f.repoErr
	}
	return f.repoInfo, nil
}

func (f *fakeOrigin) GetContents(ctx context.Context, owner, repo, path string) (*githubapi.File, []githubapi.DirEntry, error) {
	f.calls++
	if file, ok := f.files[path]; ok {
		cp := *file
		return &cp, nil, nil
	}
	return nil, f.listings[path], nil
}

// widgetsOrigin serves acme/widgets: one small Python file and one oversized image.
func widgetsOrigin() *fakeOrigin {
	return &fakeOrigin{
		repoInfo: json.RawMessage(`{"full_name":"acme/widgets","stargazers_count":3}`),
		listings: map[string][]githubapi.DirEntry{
			"": {
				{Path: "app.py", Type: "file", Size: 50},
				{Path: "logo.png", Type: "file", Size: 2_000_000},
			},
		},
		files: map[string]*githubapi.File{
			"app.py": {Path: "app.py", Size: 50, Content: "print('hello')\n"},
		},
	}
}

func newTestModule(origin *fakeOrigin) (*Module, *store.Store) {
	st := store.New()
	return NewWithClient(st, origin), st
}

func execute(t *testing.T, m *Module, tool string, params map[string]any) map[string]any {
	t.Helper()
	out, err := m.ExecuteTool(context.Background(), tool, params)
	if err != nil {
		t.Fatalf("%s: %v", tool, err)
	}
	var result map[string]any
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("%s returned invalid JSON %q: %v", tool, out, err)
	}
	return result
}

func TestReviewRepository(t *testing.T) {
	m, st := newTestModule(widgetsOrigin())

	result := execute(t, m, "review_repository", map[string]any{
		"repo_url":    "https://github.com/acme/widgets",
		"focus_areas": "security",
	})

	if result["status"] != "completed" {
		t.Errorf("status = %v, want completed", result["status"])
	}
	if result["repo"] != "acme/widgets" {
		t.Errorf("repo = %v, want acme/widgets", result["repo"])
	}

	snap, ok := st.Get("acme/widgets")
	if !ok {
		t.Fatal("snapshot not stored")
	}
	if len(snap.Files) != 2 {
		t.Errorf("files fetched = %d, want 2", len(snap.Files))
	}
	if len(snap.CodeContent) != 1 {
		t.Errorf("code files = %d, want 1", len(snap.CodeContent))
	}
	if logo := snap.Files["logo.png"]; !logo.TooLarge {
		t.Error("logo.png not recorded as too large")
	}
	if _, ok := snap.CodeContent["logo.png"]; ok {
		t.Error("oversized file leaked into code content")
	}
	if snap.FocusAreas != "security" {
		t.Errorf("focus areas = %q", snap.FocusAreas)
	}

	review, _ := result["review"].(map[string]any)
	if review == nil {
		t.Fatal("review report missing from result")
	}
	stats, _ := review["statistics"].(map[string]any)
	if stats == nil {
		t.Fatal("statistics missing from review")
	}
	if stats["files_fetched"] != float64(2) || stats["code_files"] != float64(1) {
		t.Errorf("statistics = %v", stats)
	}
}

func TestReviewRepositoryReplacesPrevious(t *testing.T) {
	m, st := newTestModule(widgetsOrigin())
	params := map[string]any{"repo_url": "https://github.com/acme/widgets"}

	execute(t, m, "review_repository", params)
	execute(t, m, "review_repository", params)

	if st.Len() != 1 {
		t.Errorf("store has %d entries after re-review, want 1", st.Len())
	}
	snap, _ := st.Get("acme/widgets")
	if snap.FocusAreas != "" {
		t.Errorf("focus areas from first review survived: %q", snap.FocusAreas)
	}
}

func TestReviewRepositoryBadURL(t *testing.T) {
	origin := widgetsOrigin()
	m, _ := newTestModule(origin)

	result := execute(t, m, "review_repository", map[string]any{
		"repo_url": "https://gitlab.com/acme/widgets",
	})
	if _, ok := result["error"]; !ok {
		t.Fatalf("expected error payload, got %v", result)
	}
	if origin.calls != 0 {
		t.Errorf("origin contacted %d times for a rejected URL", origin.calls)
	}
}

func TestReviewRepositoryRateLimited(t *testing.T) {
	origin := widgetsOrigin()
	origin.repoErr = &githubapi.APIError{
		Kind:    githubapi.KindRateLimited,
		Status:  403,
		Message: "API rate limit exceeded for 1.2.3.4.",
	}
	m, st := newTestModule(origin)

	result := execute(t, m, "review_repository", map[string]any{
		"repo_url": "https://github.com/acme/widgets",
	})
	if result["error"] != "GitHub API rate limit exceeded" {
		t.Errorf("error = %v", result["error"])
	}
	if result["details"] != "API rate limit exceeded for 1.2.3.4." {
		t.Errorf("details = %v", result["details"])
	}
	if st.Len() != 0 {
		t.Error("failed review left a snapshot behind")
	}
}

func TestReviewRepositoryNotFound(t *testing.T) {
	origin := widgetsOrigin()
	origin.repoErr = &githubapi.APIError{Kind: githubapi.KindNotFound, Status: 404, Message: "Not Found"}
	m, _ := newTestModule(origin)

	result := execute(t, m, "review_repository", map[string]any{
		"repo_url": "https://github.com/acme/ghost",
	})
	msg, _ := result["error"].(string)
	if !strings.Contains(msg, "acme/ghost") || !strings.Contains(msg, "not found") {
		t.Errorf("error = %q", msg)
	}
}

// Every tool that reads a stored review reports an absent key the same way.
func TestRepoKeyToolsUniformMissingError(t *testing.T) {
	m, _ := newTestModule(widgetsOrigin())

	tools := []string{
		"get_review_details",
		"suggest_improvements",
		"analyze_dependencies",
		"scan_security_vulnerabilities",
		"analyze_code_quality",
		"analyze_performance",
		"compare_with_best_practices",
		"generate_pull_request_description",
		"generate_cascade_prompt",
		"generate_improved_code",
	}
	want := "No review found for ghost/none. Run review_repository first."

	for _, tool := range tools {
		t.Run(tool, func(t *testing.T) {
			result := execute(t, m, tool, map[string]any{"repo_key": "ghost/none"})
			if result["error"] != want {
				t.Errorf("error = %v, want %q", result["error"], want)
			}
		})
	}
}

func TestGetReviewDetails(t *testing.T) {
	m, _ := newTestModule(widgetsOrigin())
	execute(t, m, "review_repository", map[string]any{"repo_url": "https://github.com/acme/widgets"})

	result := execute(t, m, "get_review_details", map[string]any{"repo_key": "acme/widgets"})

	info, _ := result["repo_info"].(map[string]any)
	if info == nil || info["full_name"] != "acme/widgets" {
		t.Errorf("repo_info not passed through: %v", result["repo_info"])
	}
	files, _ := result["files"].(map[string]any)
	if len(files) != 2 {
		t.Errorf("files = %v, want 2 entries", files)
	}
	code, _ := result["code_content"].(map[string]any)
	if len(code) != 1 {
		t.Errorf("code_content = %v, want 1 entry", code)
	}
	if result["review"] == nil {
		t.Error("review report missing")
	}
}

func TestListReviewedRepos(t *testing.T) {
	origin := widgetsOrigin()
	m, _ := newTestModule(origin)

	out, err := m.ExecuteTool(context.Background(), "list_reviewed_repos", nil)
	if err != nil {
		t.Fatalf("list_reviewed_repos: %v", err)
	}
	if out != "[]" {
		t.Errorf("empty store listed as %q, want []", out)
	}

	execute(t, m, "review_repository", map[string]any{"repo_url": "https://github.com/acme/widgets"})

	out, err = m.ExecuteTool(context.Background(), "list_reviewed_repos", nil)
	if err != nil {
		t.Fatalf("list_reviewed_repos: %v", err)
	}
	var repos []map[string]any
	if err := json.Unmarshal([]byte(out), &repos); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	if len(repos) != 1 || repos[0]["repo"] != "acme/widgets" {
		t.Errorf("repos = %v", repos)
	}
	if repos[0]["review_date"] == "" {
		t.Error("review_date missing")
	}
}

func TestSuggestImprovementsScopedToFile(t *testing.T) {
	m, _ := newTestModule(widgetsOrigin())
	execute(t, m, "review_repository", map[string]any{"repo_url": "https://github.com/acme/widgets"})

	result := execute(t, m, "suggest_improvements", map[string]any{
		"repo_key":  "acme/widgets",
		"file_path": "app.py",
	})
	suggestions, _ := result["suggestions"].([]any)
	if len(suggestions) == 0 {
		t.Fatal("no suggestions returned")
	}
	first, _ := suggestions[0].(map[string]any)
	if first["file"] != "app.py" {
		t.Errorf("suggestion not scoped to file: %v", first)
	}

	result = execute(t, m, "suggest_improvements", map[string]any{
		"repo_key":  "acme/widgets",
		"file_path": "missing.py",
	})
	msg, _ := result["error"].(string)
	if !strings.Contains(msg, "missing.py") {
		t.Errorf("error = %q, want mention of missing.py", msg)
	}
}

func TestGenerationToolsUseStoredIssues(t *testing.T) {
	m, _ := newTestModule(widgetsOrigin())
	execute(t, m, "review_repository", map[string]any{"repo_url": "https://github.com/acme/widgets"})

	pr := execute(t, m, "generate_pull_request_description", map[string]any{"repo_key": "acme/widgets"})
	body, _ := pr["body"].(string)
	if !strings.Contains(body, "## Summary") || !strings.Contains(body, "## Changes") {
		t.Errorf("PR body missing sections:\n%s", body)
	}
	if title, _ := pr["title"].(string); !strings.Contains(title, "acme/widgets") {
		t.Errorf("title = %q", title)
	}

	cascade := execute(t, m, "generate_cascade_prompt", map[string]any{"repo_key": "acme/widgets"})
	prompt, _ := cascade["prompt"].(string)
	if !strings.Contains(prompt, "acme/widgets") || !strings.Contains(prompt, "1.") {
		t.Errorf("cascade prompt missing enumerated findings:\n%s", prompt)
	}

	plan := execute(t, m, "generate_improved_code", map[string]any{
		"repo_key":  "acme/widgets",
		"file_path": "app.py",
	})
	if plan["file_path"] != "app.py" {
		t.Errorf("file_path = %v", plan["file_path"])
	}
	if text, _ := plan["plan"].(string); !strings.Contains(text, "app.py") {
		t.Errorf("plan not scoped to file:\n%s", text)
	}
}

func TestAnalysisReportsCarryRepoKey(t *testing.T) {
	m, _ := newTestModule(widgetsOrigin())
	execute(t, m, "review_repository", map[string]any{"repo_url": "https://github.com/acme/widgets"})

	for _, tool := range []string{
		"analyze_dependencies",
		"scan_security_vulnerabilities",
		"analyze_code_quality",
		"analyze_performance",
		"compare_with_best_practices",
	} {
		t.Run(tool, func(t *testing.T) {
			result := execute(t, m, tool, map[string]any{"repo_key": "acme/widgets"})
			if result["repo"] != "acme/widgets" {
				t.Errorf("repo = %v", result["repo"])
			}
		})
	}
}

func TestResources(t *testing.T) {
	m, _ := newTestModule(widgetsOrigin())

	if got := m.Resources(); len(got) != 0 {
		t.Errorf("resources before any review: %v", got)
	}

	execute(t, m, "review_repository", map[string]any{"repo_url": "https://github.com/acme/widgets"})

	resources := m.Resources()
	if len(resources) != 1 {
		t.Fatalf("resources = %v, want 1", resources)
	}
	wantURI := "review://acme/widgets"
	if resources[0].URI != wantURI {
		t.Errorf("URI = %q, want %q", resources[0].URI, wantURI)
	}

	text, err := m.ReadResource(context.Background(), wantURI)
	if err != nil {
		t.Fatalf("ReadResource: %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal([]byte(text), &doc); err != nil {
		t.Fatalf("resource is not JSON: %v", err)
	}
	if doc["repo"] != "acme/widgets" {
		t.Errorf("resource repo = %v", doc["repo"])
	}

	if _, err := m.ReadResource(context.Background(), "review://ghost/none"); err == nil {
		t.Error("unknown key should be an unknown resource")
	}
	if _, err := m.ReadResource(context.Background(), "other://acme/widgets"); err == nil {
		t.Error("foreign scheme should be an unknown resource")
	}
}

func TestUnknownToolIsGoError(t *testing.T) {
	m, _ := newTestModule(widgetsOrigin())

	_, err := m.ExecuteTool(context.Background(), "does_not_exist", nil)
	if err == nil {
		t.Fatal("expected error for unknown tool")
	}
	if want := fmt.Sprintf("unknown tool: %s", "does_not_exist"); !strings.Contains(err.Error(), want) {
		t.Errorf("err = %v", err)
	}
}
