package mixer

import (
	"math"

	"github.com/molsim/scf-mix-go/vector"
	"gonum.org/v1/gonum/mat"
)

// DiisConfig holds the DIIS (Pulay) mixer parameters
type DiisConfig struct {
	// MixParam is the damping factor applied to the extrapolated residual, in (0, 1]
	MixParam float64
	// Generations is the number of iterate/residual pairs kept in history
	Generations int
}

// Diis implements Pulay mixing: it solves the small linear system built
// from residual overlaps, augmented with a Lagrange row enforcing
// unit-sum coefficients, and extrapolates the next iterate from the
// stored generations. A singular or ill-conditioned system evicts the
// oldest generation and retries with the smaller subspace, degrading to
// plain damping once only the newest pair is left.
type Diis struct {
	config DiisConfig
	nElem  int
	hist   *history
}

// NewDiis creates a DIIS mixer with the given config
func NewDiis(config DiisConfig) (*Diis, error) {
	if config.MixParam <= 0.0 || config.MixParam > 1.0 {
		return nil, MixParamErr
	}
	if config.Generations < 1 {
		return nil, GenerationsErr
	}
	return &Diis{
		config: config,
		hist:   newHistory(config.Generations),
	}, nil
}

// Reset discards the stored generations and fixes the vector length
func (d *Diis) Reset(nElem int) error {
	if nElem < 1 {
		return NElemErr
	}
	d.nElem = nElem
	d.hist.reset()
	return nil
}

// Mix appends the current pair to the history and replaces qInpRes with
// the Pulay extrapolation over the stored generations
func (d *Diis) Mix(qInpRes, qDiff []float64) error {
	if d.nElem == 0 {
		return NotReadyErr
	}
	if len(qInpRes) != d.nElem || len(qDiff) != d.nElem {
		return DimsMismatchErr
	}
	d.hist.push(qInpRes, qDiff)

	for d.hist.len() >= 2 {
		coefs, ok := d.solveCoefficients(d.hist.len())
		if ok {
			d.extrapolate(qInpRes, coefs)
			return nil
		}
		// singular overlap system: shrink the subspace from the old end
		d.hist.dropOldest(1)
	}
	vector.Axpy(d.config.MixParam, qDiff, qInpRes)
	return nil
}

// solveCoefficients solves the (k+1) x (k+1) Pulay system
//
//	| <f_i, f_j>  -1 | |c|   | 0|
//	|   -1         0 | |l| = |-1|
//
// for the k unit-sum extrapolation coefficients
func (d *Diis) solveCoefficients(k int) ([]float64, bool) {
	b := mat.NewDense(k+1, k+1, nil)
	for i := 0; i < k; i++ {
		fi := d.hist.at(i).qDiff
		for j := i; j < k; j++ {
			v := vector.Dot(fi, d.hist.at(j).qDiff)
			b.Set(i, j, v)
			b.Set(j, i, v)
		}
		b.Set(i, k, -1.0)
		b.Set(k, i, -1.0)
	}
	rhs := mat.NewVecDense(k+1, nil)
	rhs.SetVec(k, -1.0)

	var lu mat.LU
	lu.Factorize(b)
	var sol mat.VecDense
	if err := lu.SolveVecTo(&sol, false, rhs); err != nil {
		return nil, false
	}
	coefs := make([]float64, k)
	for i := 0; i < k; i++ {
		coefs[i] = sol.AtVec(i)
		if math.IsNaN(coefs[i]) || math.IsInf(coefs[i], 0) {
			return nil, false
		}
	}
	return coefs, true
}

// extrapolate forms the coefficient-weighted iterate combination plus
// the damped combined residual. The combined residual doubles as the
// consistency diagnostic: with exact coefficients its norm is the
// minimum reachable within the stored subspace.
func (d *Diis) extrapolate(qInpRes []float64, coefs []float64) {
	qNew := make([]float64, d.nElem)
	fNew := make([]float64, d.nElem)
	for i, c := range coefs {
		p := d.hist.at(i)
		vector.Axpy(c, p.qInp, qNew)
		vector.Axpy(c, p.qDiff, fNew)
	}
	copy(qInpRes, qNew)
	vector.Axpy(d.config.MixParam, fNew, qInpRes)
}

// HasInverseJacobian always returns false for the DIIS mixer
func (d *Diis) HasInverseJacobian() bool {
	return false
}

// InverseJacobian always reports NoJacobianErr for the DIIS mixer
func (d *Diis) InverseJacobian(dst *mat.Dense) error {
	return NoJacobianErr
}
