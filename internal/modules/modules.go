package modules

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"codescope/server/internal/middleware"
	"codescope/server/internal/observability"
)

// =============================================================================
// Registry
// =============================================================================

// registry holds all registered modules
var registry = make(map[string]Module)

// RegisterModule adds a module to the registry
func RegisterModule(m Module) {
	registry[m.Name()] = m
}

// GetModule returns a module by name
func GetModule(name string) (Module, bool) {
	m, ok := registry[name]
	return m, ok
}

// ListModules returns all registered module names, sorted.
func ListModules() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AllTools returns every tool across registered modules, grouped by module
// in sorted module order. Tool names are globally unique.
func AllTools() []Tool {
	var tools []Tool
	for _, name := range ListModules() {
		tools = append(tools, registry[name].Tools()...)
	}
	return tools
}

// FindToolModule returns the module that owns the named tool.
func FindToolModule(toolName string) (Module, bool) {
	for _, name := range ListModules() {
		m := registry[name]
		if _, ok := findTool(m.Tools(), toolName); ok {
			return m, true
		}
	}
	return nil, false
}

// AllResources returns every resource across registered modules.
func AllResources() []Resource {
	var resources []Resource
	for _, name := range ListModules() {
		resources = append(resources, registry[name].Resources()...)
	}
	return resources
}

// ErrUnknownResource is returned by ReadResource when no module serves the URI.
var ErrUnknownResource = errors.New("unknown resource")

// ReadResource reads a resource by URI from whichever module serves it.
func ReadResource(ctx context.Context, uri string) (string, error) {
	for _, name := range ListModules() {
		text, err := registry[name].ReadResource(ctx, uri)
		if err == nil {
			return text, nil
		}
		if !errors.Is(err, ErrUnknownResource) {
			return "", err
		}
	}
	return "", errors.Wrap(ErrUnknownResource, uri)
}

// =============================================================================
// Tool Execution
// =============================================================================

// toolTimeout is the maximum duration for a single tool execution. A
// repository walk issues one origin request per file, so this is generous.
const toolTimeout = 2 * time.Minute

var tracer = otel.Tracer("codescope/server/modules")

// Run executes a tool by name: schema validation, timeout, instrumentation,
// result wrapping. Execution failures come back as IsError results, never
// as transport errors.
func Run(ctx context.Context, toolName string, params map[string]any) (*ToolCallResult, error) {
	start := time.Now()

	m, ok := FindToolModule(toolName)
	if !ok {
		return &ToolCallResult{
			Content: []ContentBlock{{Type: "text", Text: fmt.Sprintf("Unknown tool: %s", toolName)}},
			IsError: true,
		}, nil
	}

	if tool, found := findTool(m.Tools(), toolName); found {
		validated, err := ValidateParams(tool.InputSchema, params)
		if err != nil {
			return &ToolCallResult{
				Content: []ContentBlock{{Type: "text", Text: err.Error()}},
				IsError: true,
			}, nil
		}
		params = validated
	}

	ctx, cancel := context.WithTimeout(ctx, toolTimeout)
	defer cancel()

	ctx, span := tracer.Start(ctx, "tools/"+toolName)
	span.SetAttributes(
		attribute.String("mcp.module", m.Name()),
		attribute.String("mcp.tool", toolName),
	)
	defer span.End()

	result, err := m.ExecuteTool(ctx, toolName, params)
	durationMs := time.Since(start).Milliseconds()
	requestID := middleware.GetRequestID(ctx)

	if err != nil {
		errMsg := err.Error()
		if ctx.Err() == context.DeadlineExceeded {
			errMsg = fmt.Sprintf("Request to %s timed out after %s. The external service did not respond in time.", m.Name(), toolTimeout)
		}
		span.SetStatus(codes.Error, errMsg)
		span.RecordError(err)
		observability.RecordToolCall(ctx, m.Name(), toolName, durationMs, "error")
		observability.LogToolCall(requestID, m.Name(), toolName, durationMs, "error", errMsg)
		return &ToolCallResult{
			Content: []ContentBlock{{Type: "text", Text: errMsg}},
			IsError: true,
		}, nil
	}

	span.SetStatus(codes.Ok, "")
	observability.RecordToolCall(ctx, m.Name(), toolName, durationMs, "success")
	observability.LogToolCall(requestID, m.Name(), toolName, durationMs, "success", "")
	return &ToolCallResult{
		Content: []ContentBlock{{Type: "text", Text: result}},
	}, nil
}
