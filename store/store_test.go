package store

import "testing"

func TestArtifactCompressionRatio(t *testing.T) {
	tests := []struct {
		name     string
		original int
		compact  int
		want     float64
	}{
		{"quarter", 1000, 250, 0.25},
		{"no reduction", 100, 100, 1.0},
		{"unknown original", 0, 50, 0},
		{"negative original", -1, 50, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &Artifact{OriginalTokens: tt.original, CompactedTokens: tt.compact}
			if got := a.CompressionRatio(); got != tt.want {
				t.Errorf("CompressionRatio() = %v, want %v", got, tt.want)
			}
		})
	}
}
