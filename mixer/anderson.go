package mixer

import (
	"math"

	"github.com/molsim/scf-mix-go/vector"
	"gonum.org/v1/gonum/mat"
)

// AndersonConfig holds the Anderson mixer parameters
type AndersonConfig struct {
	// MixParam is the damping factor applied to the extrapolated residual, in (0, 1]
	MixParam float64
	// Generations is the number of iterate/residual pairs kept in history
	Generations int
	// Omega0 scales the diagonal regularization of the least-squares system;
	// zero disables regularization
	Omega0 float64
}

// Anderson accelerates the fixed-point iteration by combining the stored
// generations of iterates with coefficients that minimize the norm of the
// correspondingly combined residuals. An ill-conditioned least-squares
// system degrades the step to plain damping instead of corrupting the
// iterate.
type Anderson struct {
	config AndersonConfig
	nElem  int
	hist   *history
}

// NewAnderson creates an Anderson mixer with the given config
func NewAnderson(config AndersonConfig) (*Anderson, error) {
	if config.MixParam <= 0.0 || config.MixParam > 1.0 {
		return nil, MixParamErr
	}
	if config.Generations < 1 {
		return nil, GenerationsErr
	}
	if config.Omega0 < 0.0 {
		return nil, OmegaErr
	}
	return &Anderson{
		config: config,
		hist:   newHistory(config.Generations),
	}, nil
}

// Reset discards the stored generations and fixes the vector length
func (a *Anderson) Reset(nElem int) error {
	if nElem < 1 {
		return NElemErr
	}
	a.nElem = nElem
	a.hist.reset()
	return nil
}

// Mix appends the current pair to the history and replaces qInpRes with
// the damped residual-minimizing combination of the stored generations
func (a *Anderson) Mix(qInpRes, qDiff []float64) error {
	if a.nElem == 0 {
		return NotReadyErr
	}
	if len(qInpRes) != a.nElem || len(qDiff) != a.nElem {
		return DimsMismatchErr
	}
	a.hist.push(qInpRes, qDiff)
	k := a.hist.len()
	if k == 1 {
		vector.Axpy(a.config.MixParam, qDiff, qInpRes)
		return nil
	}

	theta, ok := a.solveCoefficients(k - 1)
	if !ok {
		// degenerate least-squares system, e.g. stalled residuals
		vector.Axpy(a.config.MixParam, qDiff, qInpRes)
		return nil
	}

	newest := a.hist.newest()
	qOpt := vector.Copy(newest.qInp)
	fOpt := vector.Copy(newest.qDiff)
	for i := 0; i < k-1; i++ {
		old := a.hist.at(i)
		vector.Axpy(theta[i], vector.Sub(old.qInp, newest.qInp), qOpt)
		vector.Axpy(theta[i], vector.Sub(old.qDiff, newest.qDiff), fOpt)
	}
	copy(qInpRes, qOpt)
	vector.Axpy(a.config.MixParam, fOpt, qInpRes)
	return nil
}

// solveCoefficients solves the n x n normal equations for the mixing
// weights of the n older generations relative to the newest one. The
// implicit weight of the newest generation is 1 - sum(theta), so the
// coefficients over the whole history sum to one.
func (a *Anderson) solveCoefficients(n int) ([]float64, bool) {
	newest := a.hist.newest()
	dDiffs := make([][]float64, n)
	for i := 0; i < n; i++ {
		dDiffs[i] = vector.Sub(newest.qDiff, a.hist.at(i).qDiff)
	}
	m := mat.NewDense(n, n, nil)
	rhs := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			v := vector.Dot(dDiffs[i], dDiffs[j])
			m.Set(i, j, v)
			m.Set(j, i, v)
		}
		rhs.SetVec(i, vector.Dot(dDiffs[i], newest.qDiff))
	}
	omega0Sq := a.config.Omega0 * a.config.Omega0
	for i := 0; i < n; i++ {
		m.Set(i, i, m.At(i, i)*(1.0+omega0Sq))
	}

	var lu mat.LU
	lu.Factorize(m)
	var coefs mat.VecDense
	if err := lu.SolveVecTo(&coefs, false, rhs); err != nil {
		return nil, false
	}
	theta := make([]float64, n)
	for i := 0; i < n; i++ {
		theta[i] = coefs.AtVec(i)
		if math.IsNaN(theta[i]) || math.IsInf(theta[i], 0) {
			return nil, false
		}
	}
	return theta, true
}

// HasInverseJacobian always returns false for the Anderson mixer
func (a *Anderson) HasInverseJacobian() bool {
	return false
}

// InverseJacobian always reports NoJacobianErr for the Anderson mixer
func (a *Anderson) InverseJacobian(dst *mat.Dense) error {
	return NoJacobianErr
}
