// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"strings"
	"testing"
)

// plainRender replaces glamour so tests see the raw Markdown.
func plainRender(t *testing.T) {
	t.Helper()
	original := render
	t.Cleanup(func() { render = original })
	render = func(in string, _ string) (string, error) { return in, nil }
}

func TestGet(t *testing.T) {
	t.Parallel()

	tests := []struct {
		id       Id
		contains string
	}{
		{ConfigLoadFailedId, "Failed to load the devcon configuration"},
		{RuntimeNotAvailableId, "No container runtime available"},
		{DevcontainerNotFoundId, "No devcontainer.json found"},
		{DevcontainerParseErrorId, "Failed to parse devcontainer.json"},
		{FeatureFetchFailedId, "Failed to fetch a feature"},
		{FeatureCycleId, "Feature dependency cycle"},
		{ImageBuildFailedId, "Failed to build the container image"},
		{LifecycleHookFailedId, "A lifecycle command failed"},
		{BridgeAddressInUseId, "already running"},
		{BridgeSocketUnavailableId, "Cannot create the browser bridge socket"},
		{ShellNotFoundId, "No shell found"},
		{PermissionDeniedId, "Permission denied"},
	}

	for _, tt := range tests {
		t.Run(tt.contains, func(t *testing.T) {
			t.Parallel()

			got := Get(tt.id)
			if got == nil {
				t.Fatalf("Get(%d) returned nil", tt.id)
			}
			if got.Id() != tt.id {
				t.Errorf("Id() = %d, want %d", got.Id(), tt.id)
			}
			if !strings.Contains(string(got.MarkdownMsg()), tt.contains) {
				t.Errorf("MarkdownMsg() should contain %q", tt.contains)
			}
		})
	}

	if Get(Id(9999)) != nil {
		t.Error("Get(9999) should return nil")
	}
}

func TestValues(t *testing.T) {
	t.Parallel()

	values := Values()
	if len(values) != int(PermissionDeniedId) {
		t.Fatalf("Values() returned %d issues, want %d", len(values), PermissionDeniedId)
	}
	for i, v := range values {
		if v.Id() != Id(i+1) {
			t.Errorf("Values()[%d].Id() = %d, want ids in order", i, v.Id())
		}
		if v.MarkdownMsg() == "" {
			t.Errorf("issue %d has an empty message", v.Id())
		}
	}
}

func TestIssue_ExtLinksIsCopy(t *testing.T) {
	t.Parallel()

	i := Get(RuntimeNotAvailableId)
	links := i.ExtLinks()
	if len(links) == 0 {
		t.Fatal("expected external links")
	}
	original := links[0]
	links[0] = "modified"
	if i.ExtLinks()[0] != original {
		t.Error("ExtLinks() should return a clone")
	}
}

func TestIssue_Render(t *testing.T) {
	plainRender(t)

	tests := []struct {
		name        string
		issue       *Issue
		wantSeeAlso bool
	}{
		{"with links", &Issue{id: 9999, mdMsg: "# Test", extLinks: []HttpLink{"https://example.com/a"}}, true},
		{"without links", &Issue{id: 9998, mdMsg: "# Test"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rendered, err := tt.issue.Render("notty")
			if err != nil {
				t.Fatalf("Render() returned error: %v", err)
			}
			if got := strings.Contains(rendered, "See also"); got != tt.wantSeeAlso {
				t.Errorf("See also present = %v, want %v:\n%s", got, tt.wantSeeAlso, rendered)
			}
			if tt.wantSeeAlso && !strings.Contains(rendered, "<https://example.com/a>") {
				t.Errorf("link missing from output:\n%s", rendered)
			}
		})
	}
}

func TestAllIssuesRenderWithGlamour(t *testing.T) {
	t.Parallel()

	for _, i := range Values() {
		out, err := i.Render("notty")
		if err != nil {
			t.Errorf("issue %d failed to render: %v", i.Id(), err)
			continue
		}
		if strings.TrimSpace(out) == "" {
			t.Errorf("issue %d rendered to empty output", i.Id())
		}
	}
}
