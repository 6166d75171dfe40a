package ot

import (
	"math"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Sinkhorn solves entropic linear OT problems by alternating log-domain
// scaling of the dual potentials. All exponentials go through log-sum-exp so
// small regularizers do not underflow.
type Sinkhorn struct {
	threshold       float64
	innerIterations int
	maxIterations   int
	logger          golog.Logger
}

// NewSinkhorn returns a solver that checks the marginal violation every
// innerIterations scaling passes against threshold, giving up (without error)
// after maxIterations passes.
func NewSinkhorn(threshold float64, innerIterations, maxIterations int, logger golog.Logger) (*Sinkhorn, error) {
	if threshold <= 0 {
		return nil, errors.Errorf("sinkhorn threshold must be positive, got %v", threshold)
	}
	if innerIterations < 1 {
		return nil, errors.Errorf("sinkhorn inner iterations must be at least 1, got %d", innerIterations)
	}
	if maxIterations < 1 {
		return nil, errors.Errorf("sinkhorn max iterations must be at least 1, got %d", maxIterations)
	}
	return &Sinkhorn{
		threshold:       threshold,
		innerIterations: innerIterations,
		maxIterations:   maxIterations,
		logger:          logger,
	}, nil
}

// Coupling is the result of a Sinkhorn solve: the transport plan, its dual
// potentials, and how many scaling passes were run. Converged is false when
// the solver exhausted its iteration budget; the plan is then best-effort and
// the caller decides whether that matters.
type Coupling struct {
	P          *mat.Dense
	F, G       []float64
	Iterations int
	Converged  bool
}

// Solve runs iterative scaling on the given problem. Non-convergence is not an
// error; degenerate inputs and numerical blowups are.
func (s *Sinkhorn) Solve(prob *LinearProblem) (*Coupling, error) {
	if prob == nil {
		return nil, errors.New("nil transport problem")
	}
	m, n := prob.C.Dims()

	logA := logWeights(prob.A)
	logB := logWeights(prob.B)
	f := make([]float64, m)
	g := make([]float64, n)
	scratchM := make([]float64, m)
	scratchN := make([]float64, n)

	result := &Coupling{F: f, G: g}
	for it := 1; it <= s.maxIterations; it++ {
		eps := prob.Epsilon.At(it - 1)

		// g_j <- eps*log(b_j) - eps*LSE_i((f_i - C_ij)/eps)
		for j := 0; j < n; j++ {
			for i := 0; i < m; i++ {
				scratchM[i] = (f[i] - prob.C.At(i, j)) / eps
			}
			g[j] = eps * (logB[j] - floats.LogSumExp(scratchM))
		}
		// f_i <- eps*log(a_i) - eps*LSE_j((g_j - C_ij)/eps)
		for i := 0; i < m; i++ {
			for j := 0; j < n; j++ {
				scratchN[j] = (g[j] - prob.C.At(i, j)) / eps
			}
			f[i] = eps * (logA[i] - floats.LogSumExp(scratchN))
		}

		result.Iterations = it
		if it%s.innerIterations == 0 || it == s.maxIterations {
			plan, violation, err := s.planAndViolation(prob, f, g, eps)
			if err != nil {
				return nil, err
			}
			result.P = plan
			if violation < s.threshold {
				result.Converged = true
				break
			}
		}
	}
	if !result.Converged && s.logger != nil {
		s.logger.Debugf("sinkhorn did not converge within %d iterations", s.maxIterations)
	}
	return result, nil
}

// planAndViolation materializes the coupling for the current potentials and
// measures the L1 deviation of its column sums from the target marginal. The
// row marginal is exact after an f update, so only columns can deviate.
func (s *Sinkhorn) planAndViolation(prob *LinearProblem, f, g []float64, eps float64) (*mat.Dense, float64, error) {
	m, n := prob.C.Dims()
	plan := mat.NewDense(m, n, nil)
	colSums := make([]float64, n)
	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			p := math.Exp((f[i] + g[j] - prob.C.At(i, j)) / eps)
			if math.IsNaN(p) || math.IsInf(p, 0) {
				return nil, 0, errors.Wrapf(ErrNonFinite,
					"coupling entry (%d, %d); regularizer %v is likely too small for the cost scale", i, j, eps)
			}
			plan.Set(i, j, p)
			colSums[j] += p
		}
	}
	violation := 0.0
	for j := 0; j < n; j++ {
		violation += math.Abs(colSums[j] - prob.B[j])
	}
	return plan, violation, nil
}

func logWeights(w []float64) []float64 {
	out := make([]float64, len(w))
	for i, v := range w {
		// log(0) = -Inf drops the row/column from the plan, which is the
		// correct treatment of zero-mass marginal entries
		out[i] = math.Log(v)
	}
	return out
}
