package mixer

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

const tol = 1e-14

// newTestMixers builds one instance of every algorithm with the same
// damping factor
func newTestMixers(t *testing.T, mixParam float64) map[string]Mixer {
	t.Helper()
	simple, err := NewSimple(SimpleConfig{MixParam: mixParam})
	if err != nil {
		t.Fatal(err)
	}
	anderson, err := NewAnderson(AndersonConfig{MixParam: mixParam, Generations: 3, Omega0: 1e-2})
	if err != nil {
		t.Fatal(err)
	}
	broyden, err := NewBroyden(DefaultBroydenConfig(mixParam))
	if err != nil {
		t.Fatal(err)
	}
	diis, err := NewDiis(DiisConfig{MixParam: mixParam, Generations: 4})
	if err != nil {
		t.Fatal(err)
	}
	return map[string]Mixer{
		"simple":   simple,
		"anderson": anderson,
		"broyden":  broyden,
		"diis":     diis,
	}
}

func TestHandleBinding(t *testing.T) {
	t.Parallel()
	h := NewHandle()
	if err := h.Reset(2); err != NotBoundErr {
		t.Error("Reset on an unbound handle must report NotBoundErr")
	}
	if err := h.Mix([]float64{0.0}, []float64{0.0}); err != NotBoundErr {
		t.Error("Mix on an unbound handle must report NotBoundErr")
	}
	if h.HasInverseJacobian() {
		t.Error("Unbound handle must not report an inverse Jacobian")
	}
	simple, _ := NewSimple(SimpleConfig{MixParam: 0.2})
	if err := h.Bind(simple); err != nil {
		t.Fatal(err)
	}
	other, _ := NewSimple(SimpleConfig{MixParam: 0.3})
	if err := h.Bind(other); err != AlreadyBoundErr {
		t.Error("Binding a bound handle must report AlreadyBoundErr")
	}
}

func TestHandleContractChecks(t *testing.T) {
	t.Parallel()
	h := NewHandle()
	simple, _ := NewSimple(SimpleConfig{MixParam: 0.2})
	if err := h.Bind(simple); err != nil {
		t.Fatal(err)
	}
	if err := h.Mix([]float64{1.0}, []float64{0.0}); err != NotReadyErr {
		t.Error("Mix before Reset must report NotReadyErr")
	}
	if err := h.Reset(0); err != NElemErr {
		t.Error("Reset with non-positive length must report NElemErr")
	}
	if err := h.Reset(2); err != nil {
		t.Fatal(err)
	}
	if err := h.Mix([]float64{1.0}, []float64{0.0, 0.0}); err != DimsMismatchErr {
		t.Error("Mix with a short iterate must report DimsMismatchErr")
	}
	if err := h.Mix([]float64{1.0, 2.0}, []float64{0.0}); err != DimsMismatchErr {
		t.Error("Mix with a short residual must report DimsMismatchErr")
	}
	if err := h.Mix([]float64{1.0, 2.0}, []float64{0.0, 0.0}); err != nil {
		t.Error("Mix with matching lengths must succeed")
	}
}

func TestConfigValidation(t *testing.T) {
	t.Parallel()
	if _, err := NewSimple(SimpleConfig{MixParam: 0.0}); err != MixParamErr {
		t.Error("Zero mixing parameter must be rejected")
	}
	if _, err := NewSimple(SimpleConfig{MixParam: 1.5}); err != MixParamErr {
		t.Error("Mixing parameter above one must be rejected")
	}
	if _, err := NewAnderson(AndersonConfig{MixParam: 0.2, Generations: 0}); err != GenerationsErr {
		t.Error("Zero history depth must be rejected")
	}
	if _, err := NewAnderson(AndersonConfig{MixParam: 0.2, Generations: 3, Omega0: -1.0}); err != OmegaErr {
		t.Error("Negative regularization must be rejected")
	}
	if _, err := NewDiis(DiisConfig{MixParam: 0.2, Generations: 0}); err != GenerationsErr {
		t.Error("Zero DIIS history depth must be rejected")
	}
	badBroyden := DefaultBroydenConfig(0.2)
	badBroyden.MinWeight = 0.0
	if _, err := NewBroyden(badBroyden); err != WeightErr {
		t.Error("Non-positive Broyden weight bound must be rejected")
	}
}

func TestFirstStepIsSimpleDamping(t *testing.T) {
	t.Parallel()
	const mixParam = 0.2
	qInp := []float64{1.0, 2.0, 3.0}
	qDiff := []float64{0.5, -0.5, 1.0}
	want := make([]float64, len(qInp))
	for i := range want {
		want[i] = qInp[i] + mixParam*qDiff[i]
	}
	for name, m := range newTestMixers(t, mixParam) {
		h := NewHandle()
		if err := h.Bind(m); err != nil {
			t.Fatal(err)
		}
		if err := h.Reset(len(qInp)); err != nil {
			t.Fatal(err)
		}
		got := make([]float64, len(qInp))
		copy(got, qInp)
		if err := h.Mix(got, qDiff); err != nil {
			t.Fatal(err)
		}
		for i := range want {
			if math.Abs(got[i]-want[i]) > tol {
				t.Errorf("%v: first mix must equal plain damping, got %v want %v", name, got, want)
				break
			}
		}
	}
}

func TestSimpleIdempotentOnZeroResidual(t *testing.T) {
	t.Parallel()
	simple, _ := NewSimple(SimpleConfig{MixParam: 0.7})
	if err := simple.Reset(2); err != nil {
		t.Fatal(err)
	}
	q := []float64{1.5, -2.5}
	if err := simple.Mix(q, []float64{0.0, 0.0}); err != nil {
		t.Fatal(err)
	}
	if q[0] != 1.5 || q[1] != -2.5 {
		t.Error("Zero residual must leave the iterate unchanged")
	}
}

func TestInverseJacobianAvailability(t *testing.T) {
	t.Parallel()
	for name, m := range newTestMixers(t, 0.2) {
		h := NewHandle()
		if err := h.Bind(m); err != nil {
			t.Fatal(err)
		}
		if err := h.Reset(2); err != nil {
			t.Fatal(err)
		}
		var jac mat.Dense
		if name == "broyden" {
			if !h.HasInverseJacobian() {
				t.Error("Broyden must report an inverse Jacobian")
			}
			if err := h.InverseJacobian(&jac); err != nil {
				t.Error(err)
			}
			continue
		}
		if h.HasInverseJacobian() {
			t.Errorf("%v must not report an inverse Jacobian", name)
		}
		if err := h.InverseJacobian(&jac); err != NoJacobianErr {
			t.Errorf("%v: InverseJacobian must report NoJacobianErr", name)
		}
	}
}

func TestBroydenJacobianAfterReset(t *testing.T) {
	t.Parallel()
	const mixParam = 0.35
	broyden, err := NewBroyden(DefaultBroydenConfig(mixParam))
	if err != nil {
		t.Fatal(err)
	}
	var jac mat.Dense
	if err := broyden.InverseJacobian(&jac); err != NotReadyErr {
		t.Error("InverseJacobian before Reset must report NotReadyErr")
	}
	if err := broyden.Reset(3); err != nil {
		t.Fatal(err)
	}
	if err := broyden.InverseJacobian(&jac); err != nil {
		t.Fatal(err)
	}
	r, c := jac.Dims()
	if r != 3 || c != 3 {
		t.Fatalf("Inverse Jacobian has wrong shape %vx%v", r, c)
	}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			want := 0.0
			if i == j {
				want = -mixParam
			}
			if jac.At(i, j) != want {
				t.Fatalf("Inverse Jacobian after Reset must be -mixParam*I, got %v at (%v,%v)", jac.At(i, j), i, j)
			}
		}
	}
}

func TestHistoryEvictionBounded(t *testing.T) {
	t.Parallel()
	const generations = 3
	anderson, _ := NewAnderson(AndersonConfig{MixParam: 0.2, Generations: generations, Omega0: 1e-2})
	diis, _ := NewDiis(DiisConfig{MixParam: 0.2, Generations: generations})
	histories := map[string]*history{"anderson": anderson.hist, "diis": diis.hist}
	mixers := map[string]Mixer{"anderson": anderson, "diis": diis}
	for name, m := range mixers {
		if err := m.Reset(2); err != nil {
			t.Fatal(err)
		}
		q := []float64{0.0, 0.0}
		for i := 0; i < 5*generations; i++ {
			f := []float64{1.0 / float64(i+1), -1.0 / float64(i+2)}
			if err := m.Mix(q, f); err != nil {
				t.Fatal(err)
			}
			if histories[name].len() > generations {
				t.Fatalf("%v: history grew to %v beyond the cap %v", name, histories[name].len(), generations)
			}
		}
	}
}

func TestResetRoundTripDeterminism(t *testing.T) {
	t.Parallel()
	const steps = 6
	target := []float64{1.0, -0.5}
	for name, m := range newTestMixers(t, 0.4) {
		h := NewHandle()
		if err := h.Bind(m); err != nil {
			t.Fatal(err)
		}
		var runs [2][]float64
		for run := 0; run < 2; run++ {
			if err := h.Reset(len(target)); err != nil {
				t.Fatal(err)
			}
			q := []float64{0.0, 0.0}
			for i := 0; i < steps; i++ {
				f := make([]float64, len(q))
				for j := range f {
					f[j] = -0.25 * 2.0 * (q[j] - target[j])
				}
				if err := h.Mix(q, f); err != nil {
					t.Fatal(err)
				}
			}
			runs[run] = append([]float64(nil), q...)
		}
		for i := range runs[0] {
			if runs[0][i] != runs[1][i] {
				t.Errorf("%v: repeated run after Reset must be bit-identical, got %v and %v", name, runs[0], runs[1])
				break
			}
		}
	}
}
