package audit

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestSanitiseKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		key, value, want string
	}{
		{"OPENAI_API_KEY", "sk-abc123", "set"},
		{"RAGCHAT_API_KEY", "hunter2", "set"},
		{"QDRANT_API_KEY", "", "unset"},
		{"AWS_SECRET_ACCESS_KEY", "abc", "set"},
		{"MODEL_PROVIDER", "azure", "azure"},
		{"RAG_TOP_K", "", "unset"},
	}
	for _, tc := range tests {
		if got := SanitiseKey(tc.key, tc.value); got != tc.want {
			t.Errorf("SanitiseKey(%s, %q) = %q, want %q", tc.key, tc.value, got, tc.want)
		}
	}
}

func TestDisplayPath(t *testing.T) {
	t.Parallel()

	if got := displayPath(""); got != "none" {
		t.Errorf("empty path = %q, want none", got)
	}
	if got := displayPath("/etc/ragchat.yaml"); got != "/etc/ragchat.yaml" {
		t.Errorf("absolute path = %q", got)
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		t.Skip("no home directory")
	}
	if got := displayPath(filepath.Join(home, ".ragchat", "config.yaml")); got != "~/.ragchat/config.yaml" {
		t.Errorf("home path = %q", got)
	}
	if got := displayPath(home + "-other/config.yaml"); got != home+"-other/config.yaml" {
		t.Errorf("sibling of home rewritten: %q", got)
	}
}

func TestLogCommandStart_RedactsSecrets(t *testing.T) {
	t.Setenv("RAGCHAT_API_KEY", "super-secret")
	t.Setenv("OLLAMA_MODEL", "llama3.2")

	var buf bytes.Buffer
	LogCommandStart(slog.New(slog.NewJSONHandler(&buf, nil)), "serve", "")

	if bytes.Contains(buf.Bytes(), []byte("super-secret")) {
		t.Fatalf("secret value leaked into audit log: %s", buf.String())
	}

	var rec struct {
		Command    string            `json:"command"`
		Version    string            `json:"version"`
		ConfigFile string            `json:"config_file"`
		Env        map[string]string `json:"env"`
	}
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("audit record is not JSON: %v", err)
	}
	if rec.Command != "serve" || rec.ConfigFile != "none" || rec.Version == "" {
		t.Errorf("header fields: %+v", rec)
	}
	if rec.Env["RAGCHAT_API_KEY"] != "set" || rec.Env["OLLAMA_MODEL"] != "llama3.2" {
		t.Errorf("env group: RAGCHAT_API_KEY=%q OLLAMA_MODEL=%q", rec.Env["RAGCHAT_API_KEY"], rec.Env["OLLAMA_MODEL"])
	}
}
