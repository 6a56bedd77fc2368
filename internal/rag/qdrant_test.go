package rag

import (
	"slices"
	"testing"
)

func TestStampInsertions(t *testing.T) {
	t.Parallel()

	a, b, c := chunk("doc", 0, "a"), chunk("doc", 1, "b"), chunk("doc", 2, "c")
	tests := []struct {
		name    string
		records []Record
		prior   map[string]int64
		want    []int64
	}{
		{
			name:    "fresh batch",
			records: []Record{{Chunk: a}, {Chunk: b}, {Chunk: c}},
			want:    []int64{100, 101, 102},
		},
		{
			name:    "stored chunk keeps its stamp",
			records: []Record{{Chunk: a}, {Chunk: b}},
			prior:   map[string]int64{b.ID: 7},
			want:    []int64{100, 7},
		},
		{
			name:    "repeated id takes the first stamp",
			records: []Record{{Chunk: a}, {Chunk: b}, {Chunk: a}},
			want:    []int64{100, 101, 100},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := stampInsertions(tc.records, tc.prior, 100); !slices.Equal(got, tc.want) {
				t.Errorf("got %v, want %v", got, tc.want)
			}
		})
	}
}
