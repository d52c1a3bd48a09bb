package secrets

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "token")
	if err := os.WriteFile(file, []byte("  from-file\n"), 0o600); err != nil {
		t.Fatalf("write token: %v", err)
	}

	t.Setenv("CV_COACH_TEST_TOKEN", " from-env ")

	tests := []struct {
		name   string
		src    Source
		expect string
	}{
		{name: "file wins", src: Source{File: file, Env: "CV_COACH_TEST_TOKEN", Value: "inline"}, expect: "from-file"},
		{name: "env before value", src: Source{Env: "CV_COACH_TEST_TOKEN", Value: "inline"}, expect: "from-env"},
		{name: "value fallback", src: Source{Env: "CV_COACH_TEST_UNSET", Value: " inline "}, expect: "inline"},
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
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty")
	if err := os.WriteFile(empty, []byte("   "), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}

	if _, err := Load(Source{Name: "api token", File: empty}); err == nil || !strings.Contains(err.Error(), "is empty") {
		t.Fatalf("expected empty file error, got %v", err)
	}

	if _, err := Load(Source{Name: "api token", File: filepath.Join(dir, "missing")}); err == nil {
		t.Fatalf("expected error for missing file")
	}

	if _, err := Load(Source{}); err == nil || !strings.Contains(err.Error(), "secret is not configured") {
		t.Fatalf("expected not configured error, got %v", err)
	}
}

func TestExpandHome(t *testing.T) {
	t.Setenv("HOME", "/home/tester")

	if got := ExpandHome("~/token"); got != "/home/tester/token" {
		t.Fatalf("unexpected expansion: %q", got)
	}
	if got := ExpandHome("/etc/token"); got != "/etc/token" {
		t.Fatalf("absolute path changed: %q", got)
	}
}
