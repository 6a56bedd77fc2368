package rag

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestError_IsMatchesKind(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("ingest: %w", E(KindUpstreamTimeout, "embedder.embed", "", errors.New("deadline")))
	if !errors.Is(err, ErrUpstreamTimeout) {
		t.Error("want errors.Is to match ErrUpstreamTimeout through wrapping")
	}
	if errors.Is(err, ErrUpstreamUnavailable) {
		t.Error("errors.Is matched a different kind")
	}
	if got := CodeOf(err); got != "upstream_timeout" {
		t.Errorf("CodeOf: got %q", got)
	}
}

func TestError_UserMessageHidesCause(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"explicit message", E(KindValidation, "ask", "Please enter a question.", nil), "Please enter a question."},
		{"default by kind", E(KindGenerationTimeout, "generate", "", errors.New("dial tcp 10.0.0.1")), kindInfo[KindGenerationTimeout].message},
		{"untyped", errors.New("secret internals"), kindInfo[KindUnknown].message},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := UserMessage(tt.err)
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
			if strings.Contains(got, "10.0.0.1") || strings.Contains(got, "secret") {
				t.Errorf("user message leaked cause: %q", got)
			}
		})
	}
}

func TestError_CodesAreDistinct(t *testing.T) {
	t.Parallel()

	seen := map[string]Kind{}
	for k := range kindInfo {
		code := k.Code()
		if prev, ok := seen[code]; ok {
			t.Errorf("code %q shared by %d and %d", code, prev, k)
		}
		seen[code] = k
	}
}

func TestChunkID_Deterministic(t *testing.T) {
	t.Parallel()

	if ChunkID("doc.txt", 3) != ChunkID("doc.txt", 3) {
		t.Error("same source and seq produced different ids")
	}
	if ChunkID("doc.txt", 3) == ChunkID("doc.txt", 4) {
		t.Error("different seq produced the same id")
	}
}

func TestParseMetric(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]Metric{"": MetricCosine, "cosine": MetricCosine, "dot": MetricDot, "euclid": MetricEuclid} {
		got, err := ParseMetric(in)
		if err != nil || got != want {
			t.Errorf("ParseMetric(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseMetric("manhattan"); err == nil {
		t.Error("want error for unknown metric")
	}
}
