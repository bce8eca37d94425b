package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestResolveSecret(t *testing.T) {
	files := map[string]string{
		"/run/secrets/pg":    "file-value\n",
		"/run/secrets/space": "  secret-value  \n\n",
		"/run/secrets/empty": "",
	}
	readFile := func(path string) ([]byte, error) {
		content, ok := files[path]
		if !ok {
			return nil, os.ErrNotExist
		}
		return []byte(content), nil
	}

	tests := []struct {
		name    string
		env     map[string]string
		want    string
		wantErr bool
	}{
		{name: "env only", env: map[string]string{"PGPASSWORD": "env-value"}, want: "env-value"},
		{name: "file only", env: map[string]string{"PGPASSWORD_FILE": "/run/secrets/pg"}, want: "file-value"},
		{name: "file wins over env", env: map[string]string{"PGPASSWORD": "env-value", "PGPASSWORD_FILE": "/run/secrets/pg"}, want: "file-value"},
		{name: "neither set", env: map[string]string{}, want: ""},
		{name: "trims whitespace", env: map[string]string{"PGPASSWORD_FILE": "/run/secrets/space"}, want: "secret-value"},
		{name: "empty file", env: map[string]string{"PGPASSWORD_FILE": "/run/secrets/empty"}, want: ""},
		{name: "missing file", env: map[string]string{"PGPASSWORD_FILE": "/nonexistent"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			getenv := func(k string) string { return tt.env[k] }
			got, err := resolveSecret(getenv, readFile, "PGPASSWORD")
			if tt.wantErr {
				if !errors.Is(err, os.ErrNotExist) {
					t.Fatalf("expected not-exist error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolveSecretFromEnvironment(t *testing.T) {
	secretFile := filepath.Join(t.TempDir(), "secret.txt")
	if err := os.WriteFile(secretFile, []byte("from-file\n"), 0600); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	t.Setenv("TOOLBOX_TEST_SECRET", "from-env")
	t.Setenv("TOOLBOX_TEST_SECRET_FILE", secretFile)

	value, err := ResolveSecret("TOOLBOX_TEST_SECRET")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if value != "from-file" {
		t.Errorf("got %q, want %q", value, "from-file")
	}
}
