// Package findiff sequences the displaced-geometry energy evaluations
// needed for finite-difference gradients and Hessians. The sequencer
// hands out displacement jobs one by one, so the actual energy
// evaluations (typically full SCF runs) can be executed, cached or
// distributed by the caller; recorded energies are folded into the
// derivative stencils afterwards.
package findiff

import (
	"errors"

	guuid "github.com/google/uuid"
	"github.com/molsim/scf-mix-go/vector"
	"gonum.org/v1/gonum/mat"
)

const refName = "E0"

var (
	// DeltaErr is returned for a non-positive displacement size
	DeltaErr = errors.New("displacement size must be positive")
	// EmptyGeomErr is returned for a geometry without coordinates
	EmptyGeomErr = errors.New("geometry must contain at least one coordinate")
	// MissingEnergyErr is returned when derivatives are requested before
	// all displacement energies were recorded
	MissingEnergyErr = errors.New("not all displacement energies are recorded yet")
)

// EnergyFunc evaluates the total energy of the given geometry
type EnergyFunc func(geom []float64) (float64, error)

// Step is a single displaced-geometry energy evaluation together with
// its contribution to one derivative stencil. Dsp lists signed 1-based
// coordinate indices; each entry displaces its coordinate by +delta or
// -delta. The same job name may appear in several steps (the reference
// energy E0 does), in which case it is evaluated once and reused.
type Step struct {
	Coeff   float64
	Name    string
	Dsp     []int
	Targets []int
	Scale   float64
}

// Make1D builds the central-difference steps for the first derivative
// along coordinate i (1-based)
func Make1D(i int, delta float64) []Step {
	scale := 1.0 / (2.0 * delta)
	return []Step{
		{Coeff: 1, Name: guuid.NewString(), Dsp: []int{i}, Targets: []int{i}, Scale: scale},
		{Coeff: -1, Name: guuid.NewString(), Dsp: []int{-i}, Targets: []int{i}, Scale: scale},
	}
}

// Make2D builds the central-difference steps for the second derivative
// over coordinates i and j (1-based)
func Make2D(i, j int, delta float64) []Step {
	scale := 1.0 / (4.0 * delta * delta)
	if i == j {
		// E(+i+i) - 2*E0 + E(-i-i) over (2*delta)^2
		return []Step{
			{Coeff: 1, Name: guuid.NewString(), Dsp: []int{i, i}, Targets: []int{i, i}, Scale: scale},
			{Coeff: -2, Name: refName, Dsp: []int{}, Targets: []int{i, i}, Scale: scale},
			{Coeff: 1, Name: guuid.NewString(), Dsp: []int{-i, -i}, Targets: []int{i, i}, Scale: scale},
		}
	}
	// E(+i+j) - E(+i-j) - E(-i+j) + E(-i-j) over (2*delta)^2
	return []Step{
		{Coeff: 1, Name: guuid.NewString(), Dsp: []int{i, j}, Targets: []int{i, j}, Scale: scale},
		{Coeff: -1, Name: guuid.NewString(), Dsp: []int{i, -j}, Targets: []int{i, j}, Scale: scale},
		{Coeff: -1, Name: guuid.NewString(), Dsp: []int{-i, j}, Targets: []int{i, j}, Scale: scale},
		{Coeff: 1, Name: guuid.NewString(), Dsp: []int{-i, -j}, Targets: []int{i, j}, Scale: scale},
	}
}

// Sequencer owns the full displacement job list for the gradient and
// Hessian of one geometry and collects the recorded energies
type Sequencer struct {
	geom      []float64
	delta     float64
	steps     []Step
	next      int
	handedOut map[string]bool
	energies  map[string]float64
}

// NewSequencer builds the displacement jobs for all first and second
// derivatives of the given geometry
func NewSequencer(geom []float64, delta float64) (*Sequencer, error) {
	if len(geom) == 0 {
		return nil, EmptyGeomErr
	}
	if delta <= 0.0 {
		return nil, DeltaErr
	}
	n := len(geom)
	steps := make([]Step, 0, 2*n+3*n+2*n*(n-1))
	for i := 1; i <= n; i++ {
		steps = append(steps, Make1D(i, delta)...)
	}
	for i := 1; i <= n; i++ {
		for j := i; j <= n; j++ {
			steps = append(steps, Make2D(i, j, delta)...)
		}
	}
	return &Sequencer{
		geom:      vector.Copy(geom),
		delta:     delta,
		steps:     steps,
		handedOut: make(map[string]bool),
		energies:  make(map[string]float64),
	}, nil
}

// Len returns the total number of stencil steps
func (s *Sequencer) Len() int {
	return len(s.steps)
}

// Next hands out the next displacement job still needing an energy
// evaluation; each job name is handed out exactly once
func (s *Sequencer) Next() (Step, bool) {
	for s.next < len(s.steps) {
		step := s.steps[s.next]
		s.next++
		if s.handedOut[step.Name] {
			continue
		}
		s.handedOut[step.Name] = true
		return step, true
	}
	return Step{}, false
}

// Geometry returns the displaced coordinates of the given step
func (s *Sequencer) Geometry(step Step) []float64 {
	geom := vector.Copy(s.geom)
	for _, d := range step.Dsp {
		if d > 0 {
			geom[d-1] += s.delta
		} else {
			geom[-d-1] -= s.delta
		}
	}
	return geom
}

// Record stores the energy evaluated for the named displacement job
func (s *Sequencer) Record(name string, energy float64) {
	s.energies[name] = energy
}

// Gradient folds the recorded energies into the first derivatives
func (s *Sequencer) Gradient() ([]float64, error) {
	grad := make([]float64, len(s.geom))
	for _, step := range s.steps {
		if len(step.Targets) != 1 {
			continue
		}
		energy, ok := s.energies[step.Name]
		if !ok {
			return nil, MissingEnergyErr
		}
		grad[step.Targets[0]-1] += step.Coeff * energy * step.Scale
	}
	return grad, nil
}

// Hessian folds the recorded energies into the symmetric matrix of
// second derivatives
func (s *Sequencer) Hessian() (*mat.Dense, error) {
	n := len(s.geom)
	hess := mat.NewDense(n, n, nil)
	for _, step := range s.steps {
		if len(step.Targets) != 2 {
			continue
		}
		energy, ok := s.energies[step.Name]
		if !ok {
			return nil, MissingEnergyErr
		}
		i, j := step.Targets[0]-1, step.Targets[1]-1
		hess.Set(i, j, hess.At(i, j)+step.Coeff*energy*step.Scale)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			hess.Set(j, i, hess.At(i, j))
		}
	}
	return hess, nil
}

// Compute runs the whole sequence against the given energy function and
// assembles the gradient and Hessian
func Compute(geom []float64, delta float64, ev EnergyFunc) ([]float64, *mat.Dense, error) {
	s, err := NewSequencer(geom, delta)
	if err != nil {
		return nil, nil, err
	}
	for {
		step, ok := s.Next()
		if !ok {
			break
		}
		energy, err := ev(s.Geometry(step))
		if err != nil {
			return nil, nil, err
		}
		s.Record(step.Name, energy)
	}
	grad, err := s.Gradient()
	if err != nil {
		return nil, nil, err
	}
	hess, err := s.Hessian()
	if err != nil {
		return nil, nil, err
	}
	return grad, hess, nil
}
