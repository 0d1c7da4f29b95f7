package voiceprint

import (
	stderrors "errors"
	"math"

	"voicegate-server-go/internal/platform/errors"
)

// ErrUnavailable signals that a voice sample or stored signature cannot be
// compared: missing, wrong shape, or numerically degenerate. Callers treat
// it as "cannot verify voice", never as a rejection.
var ErrUnavailable = stderrors.New("embedding unavailable")

// Embedding is a fixed-length vector characterising a voice sample.
type Embedding []float64

// Validate reports whether the embedding is usable as a comparison operand.
func (e Embedding) Validate() error {
	if len(e) == 0 {
		return errors.Wrap(errors.KindDomain, "voiceprint.validate", "empty embedding", ErrUnavailable)
	}
	allZero := true
	for _, v := range e {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.Wrap(errors.KindDomain, "voiceprint.validate", "non-finite component", ErrUnavailable)
		}
		if v != 0 {
			allZero = false
		}
	}
	if allZero {
		return errors.Wrap(errors.KindDomain, "voiceprint.validate", "all-zero embedding", ErrUnavailable)
	}
	return nil
}

// Compare returns the similarity of two embeddings as a score in [0,1],
// computed as cosine similarity rescaled from [-1,1]. It is deterministic
// and side-effect free.
func Compare(a, b Embedding) (float64, error) {
	if err := a.Validate(); err != nil {
		return 0, err
	}
	if err := b.Validate(); err != nil {
		return 0, err
	}
	if len(a) != len(b) {
		return 0, errors.Wrap(errors.KindDomain, "voiceprint.compare", "dimensionality mismatch", ErrUnavailable)
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	cosine := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	// Guard against floating point drift outside [-1,1].
	if cosine > 1 {
		cosine = 1
	} else if cosine < -1 {
		cosine = -1
	}

	return (cosine + 1) / 2, nil
}
