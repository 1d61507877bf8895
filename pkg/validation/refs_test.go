package validation

import (
	"testing"
)

func TestValidateBranch(t *testing.T) {
	tests := []struct {
		name    string
		branch  string
		wantErr bool
	}{
		// Valid branches
		{"main", "main", false},
		{"develop", "develop", false},
		{"hierarchical", "feature/payments", false},
		{"with digits", "release-2025.08", false},
		{"with underscore", "fix_router", false},
		{"deep hierarchy", "team/alice/wip-1", false},

		// Invalid branches - injection attempts
		{"empty", "", true},
		{"option injection", "-c", true},
		{"option injection long", "--upload-pack=/bin/sh", true},
		{"shell metacharacters", "main; rm -rf /", true},
		{"newline injection", "main\n--force", true},
		{"spaces", "my branch", true},
		{"leading dot", ".hidden", true},
		{"double dot", "a..b", true},
		{"lock suffix", "main.lock", true},
		{"trailing slash", "feature/", true},
		{"trailing dot", "main.", true},
		{"backtick", "main`id`", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBranch(tt.branch)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateBranch(%q) error = %v, wantErr %v", tt.branch, err, tt.wantErr)
			}
		})
	}
}

func TestValidateBranch_LengthCap(t *testing.T) {
	long := make([]byte, maxRefLength+1)
	for i := range long {
		long[i] = 'a'
	}
	if err := ValidateBranch(string(long)); err == nil {
		t.Error("expected an error for an over-long branch name")
	}
	if err := ValidateBranch(string(long[:maxRefLength])); err != nil {
		t.Errorf("a branch at the cap should pass, got %v", err)
	}
}

func TestSanitizeBranch(t *testing.T) {
	tests := []struct {
		name    string
		branch  string
		want    string
		wantErr bool
	}{
		{"passthrough", "main", "main", false},
		{"whitespace trimmed", "  main  ", "main", false},
		{"tab trimmed", "\tdevelop\n", "develop", false},
		{"invalid rejected", "-c", "", true},
		{"only whitespace", "   ", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SanitizeBranch(tt.branch)
			if (err != nil) != tt.wantErr {
				t.Errorf("SanitizeBranch(%q) error = %v, wantErr %v", tt.branch, err, tt.wantErr)
				return
			}
			if got != tt.want {
				t.Errorf("SanitizeBranch(%q) = %q, want %q", tt.branch, got, tt.want)
			}
		})
	}
}

func TestValidateImageRef(t *testing.T) {
	tests := []struct {
		name    string
		ref     string
		wantErr bool
	}{
		// Valid references
		{"bare repo", "gig-router", false},
		{"repo with tag", "gig-router:42", false},
		{"latest tag", "gig-router:latest", false},
		{"registry path", "registry.example.com/gig-router:42", false},
		{"registry with port", "registry:5000/team/gig-router:v1.2.3", false},
		{"nested path", "example.com/team/app", false},

		// Invalid references - injection and grammar violations
		{"empty", "", true},
		{"uppercase repo", "GigRouter:42", true},
		{"shell metacharacters", "app:42; docker rm -f $(docker ps -q)", true},
		{"spaces", "my app:42", true},
		{"leading dash tag", "app:-tag", true},
		{"leading dot tag", "app:.tag", true},
		{"empty repo with tag", ":42", true},
		{"double colon", "app::42", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateImageRef(tt.ref)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateImageRef(%q) error = %v, wantErr %v", tt.ref, err, tt.wantErr)
			}
		})
	}
}

func TestValidateImageRefs(t *testing.T) {
	tests := []struct {
		name    string
		refs    []string
		wantErr bool
	}{
		{"all valid", []string{"gig-router:42", "gig-router:latest"}, false},
		{"one invalid", []string{"gig-router:42", "BAD REF"}, true},
		{"all invalid", []string{"", "A B"}, true},
		{"empty slice", []string{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateImageRefs(tt.refs)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateImageRefs(%v) error = %v, wantErr %v", tt.refs, err, tt.wantErr)
			}
		})
	}
}
