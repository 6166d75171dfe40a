// Package ot implements entropic optimal transport: linear transport problems
// and a log-domain Sinkhorn solver.
package ot

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// relative tolerance on the difference between marginal masses.
const massTolerance = 1e-9

var (
	// ErrDegenerateMarginals is returned for marginals with no mass or with
	// negative entries.
	ErrDegenerateMarginals = errors.New("degenerate marginal distribution")
	// ErrNonFinite is returned when a cost matrix or coupling contains
	// non-finite values.
	ErrNonFinite = errors.New("non-finite value in transport problem")
)

// Epsilon schedules the entropic regularizer across Sinkhorn iterations.
// When Decay < 1 the regularizer starts at Init and decays geometrically down
// to Target; otherwise Target is used throughout.
type Epsilon struct {
	Target float64 `json:"target"`
	Init   float64 `json:"init"`
	Decay  float64 `json:"decay"`
}

// NewEpsilon returns a constant scheduler at the given target regularizer.
func NewEpsilon(target float64) *Epsilon {
	return &Epsilon{Target: target, Init: 1.0, Decay: 1.0}
}

// At returns the regularizer for the given zero-based iteration.
func (e *Epsilon) At(iteration int) float64 {
	if e.Decay >= 1 || e.Decay <= 0 {
		return e.Target
	}
	return math.Max(e.Target, e.Init*math.Pow(e.Decay, float64(iteration)))
}

// LinearProblem is an entropic linear OT problem: a cost matrix, source and
// target marginals of equal total mass, and a regularizer schedule.
type LinearProblem struct {
	C       *mat.Dense
	A, B    []float64
	Epsilon *Epsilon
}

// NewLinearProblem validates and assembles a transport problem. Costs must be
// finite; marginals must be nonnegative with equal positive total mass.
func NewLinearProblem(c *mat.Dense, a, b []float64, eps *Epsilon) (*LinearProblem, error) {
	if c == nil {
		return nil, errors.New("nil cost matrix")
	}
	m, n := c.Dims()
	if len(a) != m || len(b) != n {
		return nil, errors.Errorf("marginal lengths (%d, %d) do not match cost matrix %dx%d", len(a), len(b), m, n)
	}
	if eps == nil || eps.Target <= 0 {
		return nil, errors.New("entropic regularizer must be positive")
	}
	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			if math.IsNaN(c.At(i, j)) || math.IsInf(c.At(i, j), 0) {
				return nil, errors.Wrapf(ErrNonFinite, "cost matrix entry (%d, %d)", i, j)
			}
		}
	}
	if err := validateMarginal(a, "source"); err != nil {
		return nil, err
	}
	if err := validateMarginal(b, "target"); err != nil {
		return nil, err
	}
	massA, massB := floats.Sum(a), floats.Sum(b)
	if math.Abs(massA-massB) > massTolerance*math.Max(massA, massB) {
		return nil, errors.Errorf("marginal masses differ: %v vs %v", massA, massB)
	}
	return &LinearProblem{C: c, A: a, B: b, Epsilon: eps}, nil
}

func validateMarginal(w []float64, name string) error {
	total := 0.0
	for i, v := range w {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.Wrapf(ErrNonFinite, "%s marginal entry %d", name, i)
		}
		if v < 0 {
			return errors.Wrapf(ErrDegenerateMarginals, "%s marginal entry %d is negative", name, i)
		}
		total += v
	}
	if total <= 0 {
		return errors.Wrapf(ErrDegenerateMarginals, "%s marginal has no mass", name)
	}
	return nil
}

// UniformMarginal returns a marginal of n equal weights summing to 1.
func UniformMarginal(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 1 / float64(n)
	}
	return w
}
