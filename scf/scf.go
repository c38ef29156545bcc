// Package scf drives a charge vector to the fixed point of an SCF cycle
// using a mixer handle for convergence acceleration. The driver owns the
// convergence judgment; the mixer only proposes iterates.
package scf

import (
	"errors"

	"github.com/molsim/scf-mix-go/mixer"
	"github.com/molsim/scf-mix-go/store"
	"github.com/molsim/scf-mix-go/vector"
)

var (
	// ToleranceErr is returned for a non-positive convergence tolerance
	ToleranceErr = errors.New("convergence tolerance must be positive")
	// MaxIterationsErr is returned for a non-positive iteration cap
	MaxIterationsErr = errors.New("iterations number must be a positive integer")
	// EmptyChargesErr is returned for an empty starting charge vector
	EmptyChargesErr = errors.New("starting charges must contain at least one element")
)

// Evaluator computes one SCF cycle: input charges in, output charges out.
// The returned slice must not alias the input.
type Evaluator interface {
	Output(qInp []float64) ([]float64, error)
}

// Config holds the convergence criterion of the driver loop
type Config struct {
	// Tolerance is the residual norm below which the loop stops
	Tolerance float64
	// MaxIterations caps the number of SCF cycles
	MaxIterations int
}

// Result reports the outcome of a driver run. Converged tells whether the
// tolerance was reached; running out of iterations is not an error.
type Result struct {
	Charges       []float64
	ResidualNorms []float64
	Iterations    int
	Converged     bool
}

// Run iterates the evaluator from qInit until the residual norm drops
// below the tolerance or the iteration cap is hit. The mixer handle is
// reset to the charge vector length, so a handle can be reused across
// geometries.
func Run(ev Evaluator, h *mixer.Handle, qInit []float64, config Config) (*Result, error) {
	if config.Tolerance <= 0.0 {
		return nil, ToleranceErr
	}
	if config.MaxIterations < 1 {
		return nil, MaxIterationsErr
	}
	if len(qInit) == 0 {
		return nil, EmptyChargesErr
	}
	if err := h.Reset(len(qInit)); err != nil {
		return nil, err
	}

	q := vector.Copy(qInit)
	result := &Result{
		ResidualNorms: make([]float64, 0, config.MaxIterations),
	}
	for i := 0; i < config.MaxIterations; i++ {
		qOut, err := ev.Output(q)
		if err != nil {
			return nil, err
		}
		qDiff := vector.Sub(qOut, q)
		norm := vector.Nrm2(qDiff)
		result.ResidualNorms = append(result.ResidualNorms, norm)
		result.Iterations = i + 1
		if norm < config.Tolerance {
			result.Converged = true
			break
		}
		if err := h.Mix(q, qDiff); err != nil {
			return nil, err
		}
	}
	result.Charges = q
	return result, nil
}

// RunWithRestart behaves like Run but warm-starts from charges stored
// under geomID when present and stores the converged charges back, so
// closely related geometries (e.g. finite-difference displacements)
// reuse each other's converged state.
func RunWithRestart(ev Evaluator, h *mixer.Handle, s store.Store, geomID string, qInit []float64, config Config) (*Result, error) {
	if stored, err := s.GetCharges(geomID); err == nil && len(stored) == len(qInit) {
		qInit = stored
	}
	result, err := Run(ev, h, qInit, config)
	if err != nil {
		return nil, err
	}
	if result.Converged {
		if err := s.SetCharges(geomID, result.Charges); err != nil {
			return nil, err
		}
		if err := s.AddRun(geomID, result.ResidualNorms); err != nil {
			return nil, err
		}
	}
	return result, nil
}
