// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"strings"
	"testing"
)

func TestValues_OrderedAndComplete(t *testing.T) {
	t.Parallel()

	values := Values()
	if len(values) != len(issues) {
		t.Fatalf("Values() returned %d issues, want %d", len(values), len(issues))
	}
	seen := make(map[string]bool)
	for i, v := range values {
		if i > 0 && values[i-1].Id() >= v.Id() {
			t.Errorf("Values() not ordered at %d", i)
		}
		if v.Slug() == "" || seen[v.Slug()] {
			t.Errorf("issue %d has empty or duplicate slug %q", v.Id(), v.Slug())
		}
		seen[v.Slug()] = true
		if strings.TrimSpace(string(v.MarkdownMsg())) == "" {
			t.Errorf("issue %d has no message", v.Id())
		}
	}
}

func TestLookupAndTitle(t *testing.T) {
	t.Parallel()

	i, ok := Lookup("misdeclared-boundary")
	if !ok {
		t.Fatal("Lookup(misdeclared-boundary) not found")
	}
	if i != Get(MisdeclaredBoundaryID) {
		t.Error("Lookup and Get disagree")
	}
	if got := i.Title(); got != "A boundary is imported statically" {
		t.Errorf("Title() = %q", got)
	}
	if _, ok := Lookup("nope"); ok {
		t.Error("Lookup(nope) found something")
	}
}

func TestRender(t *testing.T) {
	t.Parallel()

	out, err := Get(ConfigLoadFailedID).Render("notty")
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}
	if !strings.Contains(out, "hotswap config init") {
		t.Errorf("Render() output missing command:\n%s", out)
	}
}
