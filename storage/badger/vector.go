package badger

import (
	"math"

	"github.com/poiesic/machinerag/storage"
)

// NormalizeVector normalizes a vector to unit length.
// Returns a new vector. If the input is a zero vector, returns a zero vector.
func NormalizeVector(v []float32) []float32 {
	if len(v) == 0 {
		return v
	}

	var magnitude float32
	for _, val := range v {
		magnitude += val * val
	}
	magnitude = float32(math.Sqrt(float64(magnitude)))

	result := make([]float32, len(v))
	if magnitude == 0 {
		return result
	}
	for i, val := range v {
		result[i] = val / magnitude
	}
	return result
}

// dotProduct calculates the dot product of two vectors.
func dotProduct(a, b []float32) float32 {
	var sum float32
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}

// scorer returns the similarity function for metric. The query vector is
// normalized once for cosine scoring.
func scorer(metric storage.Metric, query []float32) func([]float32) float32 {
	if metric == storage.MetricDot {
		return func(v []float32) float32 { return dotProduct(query, v) }
	}
	q := NormalizeVector(query)
	return func(v []float32) float32 { return dotProduct(q, NormalizeVector(v)) }
}
