package mixer

import (
	"github.com/molsim/scf-mix-go/vector"
	"gonum.org/v1/gonum/mat"
)

// residual-delta norms below this are treated as a stalled step and
// skip the Jacobian update
const dfNormSqFloor = 1e-30

// BroydenConfig holds the modified-Broyden mixer parameters
type BroydenConfig struct {
	// MixParam is the damping factor seeding the inverse Jacobian as -MixParam*I, in (0, 1]
	MixParam float64
	// Omega0 damps the rank-1 updates relative to the step weight
	Omega0 float64
	// MinWeight and MaxWeight clamp the per-step weight
	MinWeight float64
	MaxWeight float64
	// WeightFactor scales the inverse residual norm into the step weight
	WeightFactor float64
}

// DefaultBroydenConfig returns the customary weighting constants of the
// modified Broyden scheme with the given damping factor
func DefaultBroydenConfig(mixParam float64) BroydenConfig {
	return BroydenConfig{
		MixParam:     mixParam,
		Omega0:       1e-2,
		MinWeight:    1.0,
		MaxWeight:    1e5,
		WeightFactor: 1.0,
	}
}

// Broyden is a quasi-Newton mixer after the modified second Broyden
// method: it maintains an explicit approximate inverse Jacobian of the
// residual map, folds a weighted rank-1 update into it on every step and
// proposes qInpRes - J^-1*qDiff as the next iterate. Steps with a large
// residual get a small weight, so noisy history is damped while
// well-converged steps dominate; updates are folded into the matrix
// rather than stored, which keeps the cumulative approximation intact
// for arbitrarily long SCF runs.
type Broyden struct {
	config   BroydenConfig
	nElem    int
	jacobian *mat.Dense
	prevInp  []float64
	prevDiff []float64
	started  bool
}

// NewBroyden creates a modified-Broyden mixer with the given config
func NewBroyden(config BroydenConfig) (*Broyden, error) {
	if config.MixParam <= 0.0 || config.MixParam > 1.0 {
		return nil, MixParamErr
	}
	if config.Omega0 < 0.0 {
		return nil, OmegaErr
	}
	if config.MinWeight <= 0.0 || config.MaxWeight < config.MinWeight || config.WeightFactor <= 0.0 {
		return nil, WeightErr
	}
	return &Broyden{config: config}, nil
}

// Reset reinitializes the inverse Jacobian to -mixParam*I and forgets
// the previous step
func (b *Broyden) Reset(nElem int) error {
	if nElem < 1 {
		return NElemErr
	}
	b.nElem = nElem
	b.jacobian = mat.NewDense(nElem, nElem, nil)
	for i := 0; i < nElem; i++ {
		b.jacobian.Set(i, i, -b.config.MixParam)
	}
	b.prevInp = nil
	b.prevDiff = nil
	b.started = false
	return nil
}

// Mix folds the latest step into the inverse Jacobian and applies the
// quasi-Newton step qInpRes -= J^-1*qDiff in place
func (b *Broyden) Mix(qInpRes, qDiff []float64) error {
	if b.nElem == 0 {
		return NotReadyErr
	}
	if len(qInpRes) != b.nElem || len(qDiff) != b.nElem {
		return DimsMismatchErr
	}
	if b.started {
		b.updateJacobian(qInpRes, qDiff)
	}
	b.prevInp = vector.Copy(qInpRes)
	b.prevDiff = vector.Copy(qDiff)
	b.started = true

	step := mat.NewVecDense(b.nElem, nil)
	step.MulVec(b.jacobian, mat.NewVecDense(b.nElem, qDiff))
	for i := range qInpRes {
		qInpRes[i] -= step.AtVec(i)
	}
	return nil
}

// updateJacobian applies the weighted rank-1 correction
// J += gamma * (dq - J*df) df^T / (df^T df) built from the deltas
// between the current and the previous iterate/residual
func (b *Broyden) updateJacobian(qInp, qDiff []float64) {
	dq := vector.Sub(qInp, b.prevInp)
	df := vector.Sub(qDiff, b.prevDiff)
	dfNormSq := vector.Dot(df, df)
	if dfNormSq <= dfNormSqFloor {
		return
	}

	weight := b.config.MaxWeight
	if fNorm := vector.Nrm2(qDiff); fNorm > 0.0 {
		weight = b.config.WeightFactor / fNorm
	}
	if weight < b.config.MinWeight {
		weight = b.config.MinWeight
	}
	if weight > b.config.MaxWeight {
		weight = b.config.MaxWeight
	}
	gamma := weight * weight / (weight*weight + b.config.Omega0*b.config.Omega0)

	dfVec := mat.NewVecDense(b.nElem, df)
	jdf := mat.NewVecDense(b.nElem, nil)
	jdf.MulVec(b.jacobian, dfVec)
	upd := mat.NewVecDense(b.nElem, nil)
	upd.SubVec(mat.NewVecDense(b.nElem, dq), jdf)
	b.jacobian.RankOne(b.jacobian, gamma/dfNormSq, upd, dfVec)
}

// HasInverseJacobian always returns true for the Broyden mixer
func (b *Broyden) HasInverseJacobian() bool {
	return true
}

// InverseJacobian copies the live approximate inverse Jacobian into dst;
// the copy stays valid across further mixing
func (b *Broyden) InverseJacobian(dst *mat.Dense) error {
	if b.jacobian == nil {
		return NotReadyErr
	}
	dst.CloneFrom(b.jacobian)
	return nil
}
