package mixer

import (
	"math"
	"testing"

	"github.com/molsim/scf-mix-go/vector"
	"gonum.org/v1/gonum/mat"
)

// linearMap is a synthetic SCF cycle g(q) = q - step*jacDiag*(q - target):
// a contraction with the fixed point at target and residual
// g(q) - q = -step*jacDiag*(q - target)
type linearMap struct {
	target  []float64
	jacDiag float64
	step    float64
}

func (m linearMap) residual(q []float64) []float64 {
	f := make([]float64, len(q))
	for i := range q {
		f[i] = -m.step * m.jacDiag * (q[i] - m.target[i])
	}
	return f
}

// driveToFixedPoint runs the mixing loop until the iterate reaches the
// target within dTol and returns the number of mixing steps used
func driveToFixedPoint(t *testing.T, h *Handle, m linearMap, q []float64, dTol float64, maxIter int) (int, bool) {
	t.Helper()
	if err := h.Reset(len(q)); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < maxIter; i++ {
		if vector.L2(q, m.target) < dTol {
			return i, true
		}
		if err := h.Mix(q, m.residual(q)); err != nil {
			t.Fatal(err)
		}
	}
	return maxIter, vector.L2(q, m.target) < dTol
}

func TestConvergenceOnLinearFixedPoint(t *testing.T) {
	t.Parallel()
	problem := linearMap{
		target:  []float64{1.0, -0.5},
		jacDiag: 2.0,
		step:    0.25,
	}
	anderson, err := NewAnderson(AndersonConfig{MixParam: 0.5, Generations: 2, Omega0: 1e-2})
	if err != nil {
		t.Fatal(err)
	}
	diis, err := NewDiis(DiisConfig{MixParam: 0.5, Generations: 4})
	if err != nil {
		t.Fatal(err)
	}
	broyden, err := NewBroyden(DefaultBroydenConfig(0.5))
	if err != nil {
		t.Fatal(err)
	}
	simple, err := NewSimple(SimpleConfig{MixParam: 0.5})
	if err != nil {
		t.Fatal(err)
	}
	cases := []struct {
		name    string
		m       Mixer
		maxIter int
	}{
		{"simple", simple, 150},
		{"anderson", anderson, 15},
		{"broyden", broyden, 15},
		{"diis", diis, 15},
	}
	for _, c := range cases {
		h := NewHandle()
		if err := h.Bind(c.m); err != nil {
			t.Fatal(err)
		}
		q := []float64{0.0, 0.0}
		iters, converged := driveToFixedPoint(t, h, problem, q, 1e-8, c.maxIter)
		if !converged {
			t.Errorf("%v: not converged to the fixed point after %v iterations, error %v",
				c.name, iters, vector.L2(q, problem.target))
		}
		t.Logf("%v converged in %v iterations", c.name, iters)
	}
}

func TestIdenticalResidualsDegenerateGracefully(t *testing.T) {
	t.Parallel()
	anderson, err := NewAnderson(AndersonConfig{MixParam: 0.2, Generations: 4, Omega0: 1e-2})
	if err != nil {
		t.Fatal(err)
	}
	diis, err := NewDiis(DiisConfig{MixParam: 0.2, Generations: 4})
	if err != nil {
		t.Fatal(err)
	}
	for name, m := range map[string]Mixer{"anderson": anderson, "diis": diis} {
		if err := m.Reset(3); err != nil {
			t.Fatal(err)
		}
		q := []float64{1.0, 2.0, 3.0}
		f := []float64{0.1, 0.1, 0.1}
		for i := 0; i < 3; i++ {
			if err := m.Mix(q, f); err != nil {
				t.Fatal(err)
			}
			for j := range q {
				if math.IsNaN(q[j]) || math.IsInf(q[j], 0) {
					t.Fatalf("%v: identical residuals produced a non-finite iterate %v", name, q)
				}
			}
		}
	}
}

func TestBroydenJacobianApproximatesTrueInverse(t *testing.T) {
	t.Parallel()
	problem := linearMap{
		target:  []float64{1.0, -0.5},
		jacDiag: 2.0,
		step:    0.25,
	}
	broyden, err := NewBroyden(DefaultBroydenConfig(0.5))
	if err != nil {
		t.Fatal(err)
	}
	h := NewHandle()
	if err := h.Bind(broyden); err != nil {
		t.Fatal(err)
	}
	q := []float64{0.0, 0.0}
	if _, converged := driveToFixedPoint(t, h, problem, q, 1e-8, 20); !converged {
		t.Fatal("Broyden did not converge on the linear problem")
	}
	// the residual map is f(q) = B(q - target) with B = -step*jacDiag*I;
	// along the explored direction J^-1 must act like B^-1
	var jac mat.Dense
	if err := h.InverseJacobian(&jac); err != nil {
		t.Fatal(err)
	}
	dir := []float64{1.0, -0.5}
	norm := vector.Nrm2(dir)
	for i := range dir {
		dir[i] /= norm
	}
	applied := mat.NewVecDense(len(dir), nil)
	applied.MulVec(&jac, mat.NewVecDense(len(dir), dir))
	wantScale := -1.0 / (problem.step * problem.jacDiag)
	for i := range dir {
		if math.Abs(applied.AtVec(i)-wantScale*dir[i]) > 1e-4 {
			t.Errorf("Inverse Jacobian along the explored direction is off: got %v want %v",
				applied.AtVec(i), wantScale*dir[i])
		}
	}
}
