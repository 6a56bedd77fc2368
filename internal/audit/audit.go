// Package audit records which command ran and with what effective settings,
// so a log reader can reconstruct an invocation. Secret values are reduced
// to "set" or "unset" and never written.
package audit

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/54b3r/ragchat-go/internal/config"
	"github.com/54b3r/ragchat-go/internal/version"
)

// sdkSecrets are credentials read by SDKs directly rather than through
// config.Options.
var sdkSecrets = map[string]bool{
	"AWS_SECRET_ACCESS_KEY": true,
	"AWS_SESSION_TOKEN":     true,
}

// LogCommandStart writes one "audit: command start" record carrying the
// command, build version, config file and an "env" group with every
// recognised option.
func LogCommandStart(log *slog.Logger, command string, configPath string) {
	env := make([]any, 0, len(config.Options))
	for _, o := range config.Options {
		env = append(env, slog.String(o.Key, SanitiseKey(o.Key, os.Getenv(o.Key))))
	}

	log.LogAttrs(context.Background(), slog.LevelInfo, "audit: command start",
		slog.String("command", command),
		slog.String("version", version.Version),
		slog.String("config_file", displayPath(configPath)),
		slog.Group("env", env...),
	)
}

// SanitiseKey renders value for logging: secrets become "set"/"unset",
// other empty values become "unset".
func SanitiseKey(key, value string) string {
	switch {
	case value == "":
		return "unset"
	case config.IsSecret(key) || sdkSecrets[key]:
		return "set"
	default:
		return value
	}
}

// displayPath shortens the home directory to "~" and reports a missing
// config file as "none".
func displayPath(p string) string {
	if p == "" {
		return "none"
	}
	if home, err := os.UserHomeDir(); err == nil && home != "" && strings.HasPrefix(p, home+string(os.PathSeparator)) {
		return "~" + p[len(home):]
	}
	return p
}
