package secrets

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "key")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}
	return path
}

func TestLoadPrecedence(t *testing.T) {
	t.Setenv("APPLY_COPILOT_TEST_KEY", " env-key ")

	tests := []struct {
		name   string
		src    Source
		expect string
	}{
		{name: "inline", src: Source{Value: " inline "}, expect: "inline"},
		{name: "env over inline", src: Source{Value: "inline", Env: "APPLY_COPILOT_TEST_KEY"}, expect: "env-key"},
		{name: "file over env", src: Source{Env: "APPLY_COPILOT_TEST_KEY", File: writeFile(t, "file-key\n")}, expect: "file-key"},
		{name: "empty env falls through", src: Source{Value: "inline", Env: "APPLY_COPILOT_UNSET_KEY"}, expect: "inline"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Load(tt.src)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.expect {
				t.Fatalf("expected %q, got %q", tt.expect, got)
			}
		})
	}
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(Source{Name: "api key"})
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	if !strings.Contains(err.Error(), "api key") {
		t.Fatalf("error must name the secret: %v", err)
	}

	if _, err := Load(Source{File: writeFile(t, "  \n")}); err == nil || !strings.Contains(err.Error(), "is empty") {
		t.Fatalf("expected empty file error, got %v", err)
	}

	if _, err := Load(Source{File: filepath.Join(t.TempDir(), "missing")}); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

func TestLoadOptional(t *testing.T) {
	got, err := LoadOptional(Source{})
	if err != nil || got != "" {
		t.Fatalf("expected empty secret without error, got %q %v", got, err)
	}

	if _, err := LoadOptional(Source{File: filepath.Join(t.TempDir(), "missing")}); err == nil {
		t.Fatalf("a configured but unreadable file must still fail")
	}
}
