package review

import (
	"testing"

	"github.com/go-faster/errors"
)

func TestResolveRepoURL(t *testing.T) {
	tests := []struct {
		name       string
		url        string
		wantOwner  string
		wantName   string
		wantReason ValidationReason
	}{
		{
			name:      "plain https URL",
			url:       "https://github.com/acme/widgets",
			wantOwner: "acme",
			wantName:  "widgets",
		},
		{
			name:      "trailing slash",
			url:       "https://github.com/acme/widgets/",
			wantOwner: "acme",
			wantName:  "widgets",
		},
		{
			name:      "git suffix stripped",
			url:       "https://github.com/acme/widgets.git",
			wantOwner: "acme",
			wantName:  "widgets",
		},
		{
			name:      "branch and subpath ignored",
			url:       "https://github.com/acme/widgets/tree/main/internal",
			wantOwner: "acme",
			wantName:  "widgets",
		},
		{
			name:       "wrong host",
			url:        "https://gitlab.com/acme/widgets",
			wantReason: WrongHost,
		},
		{
			name:       "no scheme",
			url:        "github.com/acme/widgets",
			wantReason: WrongHost,
		},
		{
			name:       "owner only",
			url:        "https://github.com/acme",
			wantReason: MalformedPath,
		},
		{
			name:       "bare host",
			url:        "https://github.com/",
			wantReason: MalformedPath,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			owner, name, err := ResolveRepoURL(tt.url)

			if tt.wantReason != "" {
				var verr *ValidationError
				if !errors.As(err, &verr) {
					t.Fatalf("err = %v, want *ValidationError", err)
				}
				if verr.Reason != tt.wantReason {
					t.Errorf("reason = %q, want %q", verr.Reason, tt.wantReason)
				}
				return
			}

			if err != nil {
				t.Fatalf("ResolveRepoURL(%q): %v", tt.url, err)
			}
			if owner != tt.wantOwner || name != tt.wantName {
				t.Errorf("got %s/%s, want %s/%s", owner, name, tt.wantOwner, tt.wantName)
			}
		})
	}
}
