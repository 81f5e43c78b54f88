package embed

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

// assertUnit asserts that an embedder returned an L2-normalized vector.
func assertUnit(t *testing.T, vec []float32) {
	t.Helper()
	var sq float64
	for _, x := range vec {
		sq += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sq), 1e-5, "vector is not unit length")
}

// assertBlank asserts the all-zero vector given to blank texts.
func assertBlank(t *testing.T, vec []float32) {
	t.Helper()
	for i, x := range vec {
		if x != 0 {
			assert.Failf(t, "blank text vector", "component %d is %v", i, x)
			return
		}
	}
}

// similarity is the dot product of two unit vectors, the score the vector
// store ranks by.
func similarity(a, b []float32) float32 {
	var dot float32
	for i := range min(len(a), len(b)) {
		dot += a[i] * b[i]
	}
	return dot
}
