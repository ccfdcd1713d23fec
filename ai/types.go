package ai

import (
	"github.com/poiesic/machinerag/core"
)

// CompletionRequest is one chat completion call.
type CompletionRequest struct {
	Messages    []core.ChatTurn
	Temperature float64
	MaxTokens   int
}

// FitDimension returns a copy of vec with exactly dim elements.
// Longer vectors are truncated and shorter ones zero-padded. The result of a
// fitted vector is lower fidelity than a native embedding of that length.
func FitDimension(vec []float32, dim int) []float32 {
	if dim <= 0 {
		return nil
	}
	out := make([]float32, dim)
	copy(out, vec)
	return out
}
