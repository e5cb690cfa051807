// Package vectormath provides embedding (de)serialization and cosine
// similarity for the belief and knowledge stores.
//
// Vectors are stored in SQLite as a compact JSON numeric array rather
// than through an external vector database: the core is a single-file,
// single-process embedded store (§6 exposes no vector-db collaborator
// interface, only an embedding client), so similarity is computed
// in-process against vectors loaded from the beliefs/chunks tables.
package vectormath

import (
	"encoding/json"
	"math"
)

// Encode serializes a vector to its storage form.
func Encode(v []float64) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

// Decode deserializes a vector from its storage form. A nil or empty
// input yields a nil vector, not an error, so callers can treat a
// missing embedding as "no vector" rather than special-casing it.
func Decode(data []byte) ([]float64, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var v []float64
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// Cosine returns the cosine similarity between a and b. Cosine of a
// zero vector against anything is defined as 0, matching the §8
// testable property cos(v,0)=0 without dividing by zero.
func Cosine(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	if n == 0 {
		return 0
	}

	var dot, magA, magB float64
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
		magA += a[i] * a[i]
		magB += b[i] * b[i]
	}

	if magA == 0 || magB == 0 {
		return 0
	}

	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}
