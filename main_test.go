package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestResolveOutputPath(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	tests := []struct {
		name     string
		dir      string
		output   string
		expected string
	}{
		{
			name:     "no arguments",
			expected: "bot_ips_config.py",
		},
		{
			name:     "output file only",
			output:   "/tmp/custom.py",
			expected: "/tmp/custom.py",
		},
		{
			name:     "directory",
			dir:      filepath.Join(tmpDir, "settings"),
			expected: filepath.Join(tmpDir, "settings", "bot_ips_config.py"),
		},
		{
			name:     "directory wins over output",
			dir:      filepath.Join(tmpDir, "both"),
			output:   "/tmp/ignored.py",
			expected: filepath.Join(tmpDir, "both", "bot_ips_config.py"),
		},
		{
			name:     "nested directory is created",
			dir:      filepath.Join(tmpDir, "a", "b", "c"),
			expected: filepath.Join(tmpDir, "a", "b", "c", "bot_ips_config.py"),
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			result, err := resolveOutputPath(tt.dir, tt.output)
			if err != nil {
				t.Fatalf("resolveOutputPath() unexpected error: %v", err)
			}
			// TempDir may sit behind a symlink, e.g. /tmp on macOS
			if want, _ := filepath.EvalSymlinks(filepath.Dir(tt.expected)); tt.dir != "" && want != "" {
				tt.expected = filepath.Join(want, filepath.Base(tt.expected))
			}
			if result != tt.expected {
				t.Errorf("resolveOutputPath() = %q, expected %q", result, tt.expected)
			}
			if tt.dir != "" {
				info, err := os.Stat(filepath.Dir(result))
				if err != nil || !info.IsDir() {
					t.Errorf("output directory was not created: %v", err)
				}
			}
		})
	}
}

func TestResolveOutputPathRejectsTraversal(t *testing.T) {
	t.Parallel()

	for _, dir := range []string{"..", "../settings", "site/../../etc", "/var/www/..", "a..b"} {
		dir := dir
		t.Run(dir, func(t *testing.T) {
			t.Parallel()

			_, err := resolveOutputPath(dir, "")
			if !errors.Is(err, errPathTraversal) {
				t.Errorf("resolveOutputPath(%q) error = %v, expected errPathTraversal", dir, err)
			}
		})
	}
}

func TestResolveOutputPathExpandsHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	result, err := resolveOutputPath("~/site", "")
	if err != nil {
		t.Fatalf("resolveOutputPath() unexpected error: %v", err)
	}
	resolvedHome, err := filepath.EvalSymlinks(home)
	if err != nil {
		t.Fatal(err)
	}
	expected := filepath.Join(resolvedHome, "site", "bot_ips_config.py")
	if result != expected {
		t.Errorf("resolveOutputPath() = %q, expected %q", result, expected)
	}
}

func TestExpandHome(t *testing.T) {
	t.Setenv("HOME", "/home/someone")

	tests := map[string]string{
		"~":          "/home/someone",
		"~/site":     "/home/someone/site",
		"~other/dir": "~other/dir",
		"/srv/~":     "/srv/~",
		"relative":   "relative",
	}
	for in, expected := range tests {
		result, err := expandHome(in)
		if err != nil {
			t.Fatalf("expandHome(%q) unexpected error: %v", in, err)
		}
		if result != expected {
			t.Errorf("expandHome(%q) = %q, expected %q", in, result, expected)
		}
	}
}

func TestRunPathTraversal(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"--path", "../outside"}, &stdout, &stderr)
	if code != 1 {
		t.Fatalf("run() = %d, expected 1", code)
	}
	expected := "Error: path traversal detected: use of '..' in paths is not allowed\n"
	if stderr.String() != expected {
		t.Errorf("stderr = %q, expected %q", stderr.String(), expected)
	}
	if stdout.Len() != 0 {
		t.Errorf("nothing should be printed to stdout, got %q", stdout.String())
	}
}

func TestRunHelp(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := run(context.Background(), []string{"--help"}, &stdout, &stderr); code != 0 {
		t.Fatalf("run() = %d, expected 0", code)
	}
	for _, flag := range []string{"--path", "--output", "--additional-bots", "--index-url", "--metrics-file", "--log-level", "lookup", "version"} {
		if !strings.Contains(stdout.String(), flag) {
			t.Errorf("help output is missing %s", flag)
		}
	}
}

func TestRunVersion(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := run(context.Background(), []string{"version"}, &stdout, &stderr); code != 0 {
		t.Fatalf("run() = %d, expected 0", code)
	}
	if !strings.HasPrefix(stdout.String(), name+" ") {
		t.Errorf("version output = %q", stdout.String())
	}
}

func TestRunRejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"unknown flag", []string{"--nope"}},
		{"positional argument", []string{"extra"}},
		{"bad log level", []string{"--log-level", "loud", "-o", filepath.Join(t.TempDir(), "x.py")}},
		{"bad index url", []string{"--index-url", "not a url", "-o", filepath.Join(t.TempDir(), "x.py")}},
		{"lookup without ip", []string{"lookup"}},
		{"lookup with bad ip", []string{"lookup", "999.1.1.1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			if code := run(context.Background(), tt.args, &stdout, &stderr); code != 1 {
				t.Errorf("run(%v) = %d, expected 1", tt.args, code)
			}
			if !strings.HasPrefix(stderr.String(), "Error: ") {
				t.Errorf("stderr = %q, expected an error message", stderr.String())
			}
		})
	}
}
