package review

import (
	"fmt"
	"net/url"
	"strings"
)

// originHost is the only host repository URLs may point at.
const originHost = "github.com"

// ValidationReason classifies caller-input rejections.
type ValidationReason string

const (
	WrongHost     ValidationReason = "wrong_host"
	MalformedPath ValidationReason = "malformed_path"
)

// ValidationError is a rejected repository URL, surfaced to the caller
// verbatim as error data.
type ValidationError struct {
	Reason  ValidationReason
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// ResolveRepoURL resolves a repository URL into its owner and name.
// Trailing path segments (branch, subpath) are ignored.
func ResolveRepoURL(raw string) (owner, name string, err error) {
	u, parseErr := url.Parse(raw)
	if parseErr != nil || u.Host == "" {
		return "", "", &ValidationError{
			Reason:  WrongHost,
			Message: fmt.Sprintf("invalid repository URL: %s", raw),
		}
	}
	if u.Host != originHost {
		return "", "", &ValidationError{
			Reason:  WrongHost,
			Message: fmt.Sprintf("repository URL host must be %s, got %s", originHost, u.Host),
		}
	}

	var segments []string
	for _, s := range strings.Split(u.Path, "/") {
		if s != "" {
			segments = append(segments, s)
		}
	}
	if len(segments) < 2 {
		return "", "", &ValidationError{
			Reason:  MalformedPath,
			Message: "repository URL must include owner and repository name",
		}
	}

	return segments[0], strings.TrimSuffix(segments[1], ".git"), nil
}
