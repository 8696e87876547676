// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestActionableError_Error(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  *ActionableError
		want string
	}{
		{
			name: "operation only",
			err:  &ActionableError{Operation: "start engine"},
			want: "failed to start engine",
		},
		{
			name: "with resource",
			err:  &ActionableError{Operation: "load configuration", Resource: "hotswap.cue"},
			want: "failed to load configuration: hotswap.cue",
		},
		{
			name: "with resource and cause",
			err: &ActionableError{
				Operation: "listen",
				Resource:  "127.0.0.1:4567",
				Cause:     errors.New("address already in use"),
			},
			want: "failed to listen: 127.0.0.1:4567: address already in use",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestActionableError_Unwrap(t *testing.T) {
	t.Parallel()

	sentinel := errors.New("boom")
	err := WrapWithContext(fmt.Errorf("wrapped: %w", sentinel), "start host command", "node")
	if !errors.Is(err, sentinel) {
		t.Error("errors.Is should see through ActionableError")
	}
	ae, ok := As(fmt.Errorf("outer: %w", err))
	if !ok || ae.Resource != "node" {
		t.Errorf("As() = %+v, %v", ae, ok)
	}
	if WrapWithContext(nil, "x", "y") != nil {
		t.Error("WrapWithContext(nil) should be nil")
	}
}

func TestActionableError_Format(t *testing.T) {
	t.Parallel()

	err := NewErrorContext().
		WithOperation("load configuration").
		WithResource("hotswap.cue").
		WithSuggestion("Check the CUE syntax").
		WithSuggestion("Run 'hotswap config show'").
		WithGuide(ConfigLoadFailedID).
		Wrap(fmt.Errorf("decode: %w", errors.New("field not allowed"))).
		Build()

	plain := err.Format(false)
	for _, want := range []string{
		"failed to load configuration: hotswap.cue",
		"\n  • Check the CUE syntax",
		"\n  • Run 'hotswap config show'",
		"hotswap explain config",
	} {
		if !strings.Contains(plain, want) {
			t.Errorf("Format(false) missing %q:\n%s", want, plain)
		}
	}
	if strings.Contains(plain, "Error chain") {
		t.Error("Format(false) should not include the error chain")
	}

	verbose := err.Format(true)
	if !strings.Contains(verbose, "Error chain:\n  1. decode: field not allowed\n  2. field not allowed") {
		t.Errorf("Format(true) chain wrong:\n%s", verbose)
	}
}

func TestErrorContext_Build(t *testing.T) {
	t.Parallel()

	if NewErrorContext().WithResource("x").Build() != nil {
		t.Error("Build() without operation should be nil")
	}
	if err := NewErrorContext().BuildError(); err != nil {
		t.Errorf("BuildError() without operation = %v, want untyped nil", err)
	}

	ae := NewErrorContext().WithOperation("dump graph").Build()
	if ae == nil || ae.Operation != "dump graph" || len(ae.Suggestions) != 0 || ae.Guide != 0 {
		t.Errorf("Build() = %+v", ae)
	}
}
