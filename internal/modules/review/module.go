// Package review implements the GitHub repository review module: fetch a
// repository through the GitHub contents API, keep a snapshot in memory, and
// answer analysis and generation tools against it.
//
// Domain failures (bad URL, unknown repo, rate limit, missing review) are
// returned as {"error": ...} JSON data with a nil Go error, so callers can
// branch on them. Go errors are reserved for marshaling and programming
// faults.
package review

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"codescope/server/internal/modules"
	"codescope/server/internal/repowalk"
	"codescope/server/internal/store"
	"codescope/server/pkg/githubapi"
)

const resourceScheme = "review://"

// githubAPIVersion is the REST API version the fetch pipeline targets.
const githubAPIVersion = "2022-11-28"

// ContentClient is the slice of the GitHub client the module needs.
type ContentClient interface {
	GetRepo(ctx context.Context, owner, repo string) (json.RawMessage, error)
	repowalk.ContentFetcher
}

// clientAdapter narrows *githubapi.Client to ContentClient. GetRepo's jx.Raw
// converts to json.RawMessage without copying.
type clientAdapter struct {
	*githubapi.Client
}

func (a clientAdapter) GetRepo(ctx context.Context, owner, repo string) (json.RawMessage, error) {
	raw, err := a.Client.GetRepo(ctx, owner, repo)
	return json.RawMessage(raw), err
}

// Module is the review tool module.
type Module struct {
	store    *store.Store
	client   ContentClient
	analyzer Analyzer
}

// New creates the module backed by the given snapshot store and GitHub client.
func New(st *store.Store, client *githubapi.Client) *Module {
	return &Module{
		store:    st,
		client:   clientAdapter{client},
		analyzer: staticAnalyzer{},
	}
}

// NewWithClient creates the module with a custom content client (tests).
func NewWithClient(st *store.Store, client ContentClient) *Module {
	return &Module{store: st, client: client, analyzer: staticAnalyzer{}}
}

// WithAnalyzer swaps the report strategy.
func (m *Module) WithAnalyzer(a Analyzer) *Module {
	m.analyzer = a
	return m
}

func (m *Module) Name() string { return "review" }

func (m *Module) Description() string { return "GitHub repository code review tools" }

func (m *Module) APIVersion() string { return githubAPIVersion }

var repoKeyProperty = modules.Property{
	Type:        "string",
	Description: "Repository key in owner/name form, as returned by review_repository",
}

var toolDefinitions = []modules.Tool{
	{
		Name:        "review_repository",
		Description: "Fetch a GitHub repository and produce a code review. Re-running replaces any previous review of the same repository.",
		InputSchema: modules.InputSchema{
			Type: "object",
			Properties: map[string]modules.Property{
				"repo_url": {
					Type:        "string",
					Description: "GitHub repository URL, e.g. https://github.com/owner/name",
				},
				"focus_areas": {
					Type:        "string",
					Description: "Optional comma-separated areas to emphasize, e.g. security, performance",
				},
			},
			Required: []string{"repo_url"},
		},
		Annotations: modules.AnnotateUpdate,
	},
	{
		Name:        "list_reviewed_repos",
		Description: "List all repositories reviewed in this server session, in review order.",
		InputSchema: modules.InputSchema{
			Type:       "object",
			Properties: map[string]modules.Property{},
		},
		Annotations: modules.AnnotateReadOnly,
	},
	{
		Name:        "get_review_details",
		Description: "Return the full stored snapshot for a reviewed repository: metadata, files, code content and the review report.",
		InputSchema: modules.InputSchema{
			Type: "object",
			Properties: map[string]modules.Property{
				"repo_key": repoKeyProperty,
			},
			Required: []string{"repo_key"},
		},
		Annotations: modules.AnnotateReadOnly,
	},
	{
		Name:        "suggest_improvements",
		Description: "Suggest concrete improvements for a reviewed repository, optionally scoped to one file.",
		InputSchema: modules.InputSchema{
			Type: "object",
			Properties: map[string]modules.Property{
				"repo_key": repoKeyProperty,
				"file_path": {
					Type:        "string",
					Description: "Optional path of a reviewed source file to scope suggestions to",
				},
			},
			Required: []string{"repo_key"},
		},
		Annotations: modules.AnnotateReadOnly,
	},
	{
		Name:        "analyze_dependencies",
		Description: "Report on the dependency health of a reviewed repository.",
		InputSchema: modules.InputSchema{
			Type: "object",
			Properties: map[string]modules.Property{
				"repo_key": repoKeyProperty,
			},
			Required: []string{"repo_key"},
		},
		Annotations: modules.AnnotateReadOnly,
	},
	{
		Name:        "scan_security_vulnerabilities",
		Description: "Scan a reviewed repository for security vulnerabilities.",
		InputSchema: modules.InputSchema{
			Type: "object",
			Properties: map[string]modules.Property{
				"repo_key": repoKeyProperty,
			},
			Required: []string{"repo_key"},
		},
		Annotations: modules.AnnotateReadOnly,
	},
	{
		Name:        "analyze_code_quality",
		Description: "Report code quality metrics and hotspots for a reviewed repository.",
		InputSchema: modules.InputSchema{
			Type: "object",
			Properties: map[string]modules.Property{
				"repo_key": repoKeyProperty,
			},
			Required: []string{"repo_key"},
		},
		Annotations: modules.AnnotateReadOnly,
	},
	{
		Name:        "analyze_performance",
		Description: "Report likely performance issues for a reviewed repository.",
		InputSchema: modules.InputSchema{
			Type: "object",
			Properties: map[string]modules.Property{
				"repo_key": repoKeyProperty,
			},
			Required: []string{"repo_key"},
		},
		Annotations: modules.AnnotateReadOnly,
	},
	{
		Name:        "compare_with_best_practices",
		Description: "Compare a reviewed repository against common engineering best practices.",
		InputSchema: modules.InputSchema{
			Type: "object",
			Properties: map[string]modules.Property{
				"repo_key": repoKeyProperty,
			},
			Required: []string{"repo_key"},
		},
		Annotations: modules.AnnotateReadOnly,
	},
	{
		Name:        "generate_pull_request_description",
		Description: "Generate a pull request title and body from the stored review findings.",
		InputSchema: modules.InputSchema{
			Type: "object",
			Properties: map[string]modules.Property{
				"repo_key": repoKeyProperty,
			},
			Required: []string{"repo_key"},
		},
		Annotations: modules.AnnotateReadOnly,
	},
	{
		Name:        "generate_cascade_prompt",
		Description: "Generate a step-by-step prompt for a coding agent to apply the stored review findings.",
		InputSchema: modules.InputSchema{
			Type: "object",
			Properties: map[string]modules.Property{
				"repo_key": repoKeyProperty,
			},
			Required: []string{"repo_key"},
		},
		Annotations: modules.AnnotateReadOnly,
	},
	{
		Name:        "generate_improved_code",
		Description: "Generate an improvement plan for rewriting reviewed code, optionally scoped to one file.",
		InputSchema: modules.InputSchema{
			Type: "object",
			Properties: map[string]modules.Property{
				"repo_key": repoKeyProperty,
				"file_path": {
					Type:        "string",
					Description: "Optional path of a reviewed source file to scope the plan to",
				},
			},
			Required: []string{"repo_key"},
		},
		Annotations: modules.AnnotateReadOnly,
	},
}

func (m *Module) Tools() []modules.Tool {
	return toolDefinitions
}

func (m *Module) ExecuteTool(ctx context.Context, name string, params map[string]any) (string, error) {
	switch name {
	case "review_repository":
		return m.reviewRepository(ctx, params)
	case "list_reviewed_repos":
		return m.listReviewedRepos()
	case "get_review_details":
		return m.getReviewDetails(params)
	case "suggest_improvements":
		return m.suggestImprovements(params)
	case "analyze_dependencies":
		return m.reportTool(params, m.analyzer.Dependencies)
	case "scan_security_vulnerabilities":
		return m.reportTool(params, m.analyzer.Security)
	case "analyze_code_quality":
		return m.reportTool(params, m.analyzer.Quality)
	case "analyze_performance":
		return m.reportTool(params, m.analyzer.Performance)
	case "compare_with_best_practices":
		return m.reportTool(params, m.analyzer.BestPractices)
	case "generate_pull_request_description":
		return m.generatePullRequest(params)
	case "generate_cascade_prompt":
		return m.generateCascade(params)
	case "generate_improved_code":
		return m.generateImprovedCode(params)
	default:
		return "", errors.Errorf("unknown tool: %s", name)
	}
}

// errResult wraps a domain failure as error data with a nil Go error.
func errResult(msg string) (string, error) {
	return modules.ToJSON(map[string]any{"error": msg})
}

func noReview(key string) (string, error) {
	return errResult(fmt.Sprintf("No review found for %s. Run review_repository first.", key))
}

// originError maps a fetch failure to its caller-facing error payload.
func originError(key string, err error) (string, error) {
	if apiErr, ok := githubapi.AsAPIError(err); ok {
		switch apiErr.Kind {
		case githubapi.KindRateLimited:
			return modules.ToJSON(map[string]any{
				"error":   "GitHub API rate limit exceeded",
				"details": apiErr.Message,
			})
		case githubapi.KindNotFound:
			return errResult(fmt.Sprintf("Repository %s not found", key))
		default:
			return errResult(fmt.Sprintf("GitHub API error (status %d): %s", apiErr.Status, apiErr.Message))
		}
	}
	return errResult(fmt.Sprintf("Error fetching %s: %v", key, err))
}

func (m *Module) reviewRepository(ctx context.Context, params map[string]any) (string, error) {
	repoURL, _ := params["repo_url"].(string)
	focus, _ := params["focus_areas"].(string)

	owner, name, err := ResolveRepoURL(repoURL)
	if err != nil {
		return errResult(err.Error())
	}
	key := owner + "/" + name

	repoInfo, err := m.client.GetRepo(ctx, owner, name)
	if err != nil {
		return originError(key, err)
	}

	files, err := repowalk.Walk(ctx, m.client, owner, name)
	if err != nil {
		return originError(key, err)
	}

	snap := &store.Snapshot{
		RepoKey:     key,
		RepoInfo:    jx.Raw(repoInfo),
		Files:       files,
		CodeContent: repowalk.FilterCode(files),
		FocusAreas:  focus,
		ReviewedAt:  time.Now().UTC(),
	}
	snap.Review = m.analyzer.Review(snap)
	m.store.Put(key, snap)

	return modules.ToJSON(map[string]any{
		"repo":   key,
		"review": snap.Review,
		"status": "completed",
	})
}

func (m *Module) listReviewedRepos() (string, error) {
	keys := m.store.Keys()
	repos := make([]map[string]any, 0, len(keys))
	for _, key := range keys {
		snap, ok := m.store.Get(key)
		if !ok {
			continue
		}
		repos = append(repos, map[string]any{
			"repo":        key,
			"review_date": snap.ReviewedAt.Format(time.RFC3339),
			"focus_areas": snap.FocusAreas,
		})
	}
	return modules.ToJSON(repos)
}

// snapshotFor resolves the repo_key param to its stored snapshot.
func (m *Module) snapshotFor(params map[string]any) (*store.Snapshot, string, bool) {
	key, _ := params["repo_key"].(string)
	snap, ok := m.store.Get(key)
	return snap, key, ok
}

func snapshotJSON(snap *store.Snapshot) (string, error) {
	return modules.ToJSON(map[string]any{
		"repo":         snap.RepoKey,
		"repo_info":    json.RawMessage(snap.RepoInfo),
		"review_date":  snap.ReviewedAt.Format(time.RFC3339),
		"focus_areas":  snap.FocusAreas,
		"files":        snap.Files,
		"code_content": snap.CodeContent,
		"review":       snap.Review,
	})
}

func (m *Module) getReviewDetails(params map[string]any) (string, error) {
	snap, key, ok := m.snapshotFor(params)
	if !ok {
		return noReview(key)
	}
	return snapshotJSON(snap)
}

func (m *Module) suggestImprovements(params map[string]any) (string, error) {
	snap, key, ok := m.snapshotFor(params)
	if !ok {
		return noReview(key)
	}
	filePath, _ := params["file_path"].(string)
	if filePath != "" {
		if _, exists := snap.CodeContent[filePath]; !exists {
			return errResult(fmt.Sprintf("File %s not found in reviewed code for %s", filePath, key))
		}
	}
	return modules.ToJSON(map[string]any{
		"repo":        key,
		"suggestions": m.analyzer.Suggestions(snap, filePath),
	})
}

// reportTool runs one snapshot-to-report analyzer function.
func (m *Module) reportTool(params map[string]any, report func(*store.Snapshot) map[string]any) (string, error) {
	snap, key, ok := m.snapshotFor(params)
	if !ok {
		return noReview(key)
	}
	return modules.ToJSON(report(snap))
}

func (m *Module) generatePullRequest(params map[string]any) (string, error) {
	snap, key, ok := m.snapshotFor(params)
	if !ok {
		return noReview(key)
	}
	title, body := pullRequestDescription(snap)
	return modules.ToJSON(map[string]any{
		"repo":  key,
		"title": title,
		"body":  body,
	})
}

func (m *Module) generateCascade(params map[string]any) (string, error) {
	snap, key, ok := m.snapshotFor(params)
	if !ok {
		return noReview(key)
	}
	return modules.ToJSON(map[string]any{
		"repo":   key,
		"prompt": cascadePrompt(snap),
	})
}

func (m *Module) generateImprovedCode(params map[string]any) (string, error) {
	snap, key, ok := m.snapshotFor(params)
	if !ok {
		return noReview(key)
	}
	filePath, _ := params["file_path"].(string)
	if filePath != "" {
		if _, exists := snap.CodeContent[filePath]; !exists {
			return errResult(fmt.Sprintf("File %s not found in reviewed code for %s", filePath, key))
		}
	}
	result := map[string]any{
		"repo": key,
		"plan": improvementPlan(snap, filePath),
	}
	if filePath != "" {
		result["file_path"] = filePath
	}
	return modules.ToJSON(result)
}

// Resources exposes one review:// resource per stored snapshot.
func (m *Module) Resources() []modules.Resource {
	keys := m.store.Keys()
	resources := make([]modules.Resource, 0, len(keys))
	for _, key := range keys {
		resources = append(resources, modules.Resource{
			URI:         resourceScheme + key,
			Name:        key,
			Description: fmt.Sprintf("Stored review snapshot for %s", key),
			MimeType:    "application/json",
		})
	}
	return resources
}

func (m *Module) ReadResource(ctx context.Context, uri string) (string, error) {
	key, ok := strings.CutPrefix(uri, resourceScheme)
	if !ok {
		return "", modules.ErrUnknownResource
	}
	snap, found := m.store.Get(key)
	if !found {
		return "", modules.ErrUnknownResource
	}
	return snapshotJSON(snap)
}
