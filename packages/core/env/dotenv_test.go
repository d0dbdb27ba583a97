package env

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDotEnv(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		expected map[string]string
	}{
		{
			name:    "simple key-value",
			content: "SNAPCAP_PATH=/var/captures",
			expected: map[string]string{
				"SNAPCAP_PATH": "/var/captures",
			},
		},
		{
			name:    "multiple keys",
			content: "SNAPCAP_ENABLED=true\nSNAPCAP_RETENTION=5\nSNAPCAP_MODE=sliding-window",
			expected: map[string]string{
				"SNAPCAP_ENABLED":   "true",
				"SNAPCAP_RETENTION": "5",
				"SNAPCAP_MODE":      "sliding-window",
			},
		},
		{
			name:    "double quoted value",
			content: `SNAPCAP_PATH="/captures/my app"`,
			expected: map[string]string{
				"SNAPCAP_PATH": "/captures/my app",
			},
		},
		{
			name:    "single quoted value",
			content: `SNAPCAP_PATH='/captures/my app'`,
			expected: map[string]string{
				"SNAPCAP_PATH": "/captures/my app",
			},
		},
		{
			name:    "comments are skipped",
			content: "# capture settings\nSNAPCAP_BACKEND=json",
			expected: map[string]string{
				"SNAPCAP_BACKEND": "json",
			},
		},
		{
			name:    "empty lines are skipped",
			content: "SNAPCAP_ENABLED=true\n\n\nSNAPCAP_MINIMAL=false",
			expected: map[string]string{
				"SNAPCAP_ENABLED": "true",
				"SNAPCAP_MINIMAL": "false",
			},
		},
		{
			name:    "whitespace trimmed",
			content: "  SNAPCAP_MODE  =  fill-and-stop  ",
			expected: map[string]string{
				"SNAPCAP_MODE": "fill-and-stop",
			},
		},
		{
			name:    "value with equals sign",
			content: "SNAPCAP_IGNORE_ARGS=password,token,query=raw",
			expected: map[string]string{
				"SNAPCAP_IGNORE_ARGS": "password,token,query=raw",
			},
		},
		{
			name:     "empty file",
			content:  "",
			expected: map[string]string{},
		},
		{
			name:     "only comments",
			content:  "# comment 1\n# comment 2",
			expected: map[string]string{},
		},
		{
			name:    "inline comment not supported",
			content: "SNAPCAP_PATH=/captures # this is included",
			expected: map[string]string{
				"SNAPCAP_PATH": "/captures # this is included",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpDir := t.TempDir()
			envFile := filepath.Join(tmpDir, ".env")
			if err := os.WriteFile(envFile, []byte(tt.content), 0644); err != nil {
				t.Fatalf("failed to write temp file: %v", err)
			}

			result, err := LoadDotEnv(envFile)
			if err != nil {
				t.Fatalf("LoadDotEnv() error = %v", err)
			}

			if len(result) != len(tt.expected) {
				t.Errorf("LoadDotEnv() returned %d keys, want %d", len(result), len(tt.expected))
			}

			for k, v := range tt.expected {
				if got, ok := result[k]; !ok {
					t.Errorf("LoadDotEnv() missing key %q", k)
				} else if got != v {
					t.Errorf("LoadDotEnv()[%q] = %q, want %q", k, got, v)
				}
			}
		})
	}
}

func TestLoadDotEnvFileNotFound(t *testing.T) {
	_, err := LoadDotEnv("/nonexistent/path/.env")
	if err == nil {
		t.Error("LoadDotEnv() expected error for non-existent file")
	}
}

func TestLoadAndExportDotEnv(t *testing.T) {
	tmpDir := t.TempDir()
	envFile := filepath.Join(tmpDir, ".env")
	content := "SNAPCAP_TEST_EXPORT=from-file\nSNAPCAP_TEST_PRESET=from-file"
	if err := os.WriteFile(envFile, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}

	t.Setenv("SNAPCAP_TEST_PRESET", "from-os")
	t.Setenv("SNAPCAP_TEST_EXPORT", "")
	os.Unsetenv("SNAPCAP_TEST_EXPORT")
	t.Cleanup(func() { os.Unsetenv("SNAPCAP_TEST_EXPORT") })

	vars, err := LoadAndExportDotEnv(envFile)
	if err != nil {
		t.Fatalf("LoadAndExportDotEnv() error = %v", err)
	}
	if len(vars) != 2 {
		t.Errorf("LoadAndExportDotEnv() returned %d keys, want 2", len(vars))
	}

	// Unset variables are exported; already-set ones keep the OS value.
	if got := os.Getenv("SNAPCAP_TEST_EXPORT"); got != "from-file" {
		t.Errorf("SNAPCAP_TEST_EXPORT = %q, want %q", got, "from-file")
	}
	if got := os.Getenv("SNAPCAP_TEST_PRESET"); got != "from-os" {
		t.Errorf("SNAPCAP_TEST_PRESET = %q, want %q", got, "from-os")
	}
}
