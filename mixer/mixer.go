// Package mixer implements convergence acceleration for self-consistent
// field (SCF) fixed-point iterations. Four charge-mixing algorithms
// (simple damping, Anderson extrapolation, modified Broyden updating and
// Pulay/DIIS subspace minimization) share one contract and are driven
// through a single Handle bound to exactly one of them.
package mixer

import (
	"errors"

	"gonum.org/v1/gonum/mat"
)

var (
	// AlreadyBoundErr is returned on an attempt to bind an already bound handle
	AlreadyBoundErr = errors.New("mixer handle is already bound to an algorithm")
	// NotBoundErr is returned when the handle is used before binding an algorithm
	NotBoundErr = errors.New("mixer handle is not bound to any algorithm")
	// NotReadyErr is returned when Mix is called before Reset
	NotReadyErr = errors.New("mixer must be reset before mixing")
	// DimsMismatchErr is returned when vector lengths do not match the last Reset
	DimsMismatchErr = errors.New("vector length differs from the one supplied to Reset")
	// NElemErr is returned when Reset gets a non-positive vector length
	NElemErr = errors.New("number of mixed elements must be a positive integer")
	// NoJacobianErr is returned by InverseJacobian for algorithms that keep none
	NoJacobianErr = errors.New("mixer does not maintain an inverse Jacobian")
	// MixParamErr is returned for a mixing parameter outside (0, 1]
	MixParamErr = errors.New("mixing parameter must be in (0, 1]")
	// GenerationsErr is returned for a non-positive history depth
	GenerationsErr = errors.New("history depth must be a positive integer")
	// OmegaErr is returned for a negative regularization constant
	OmegaErr = errors.New("regularization constant must be non-negative")
	// WeightErr is returned for inconsistent Broyden weighting bounds
	WeightErr = errors.New("broyden weights must satisfy 0 < min <= max and a positive weight factor")
)

// Mixer is the uniform contract of all charge-mixing algorithms.
// Mix updates qInpRes in place from the current iterate (qInpRes on entry)
// and its residual qDiff (output minus input, read-only). All vectors
// passed between two Resets must have the length given to Reset.
type Mixer interface {
	Reset(nElem int) error
	Mix(qInpRes, qDiff []float64) error
	HasInverseJacobian() bool
	InverseJacobian(dst *mat.Dense) error
}

// Handle owns exactly one mixing algorithm and forwards the mixing
// contract to it. The SCF driver interacts with the bound algorithm
// only through its handle. A handle must not be used from more than
// one goroutine at a time.
type Handle struct {
	algo  Mixer
	nElem int
}

// NewHandle creates an unbound mixer handle
func NewHandle() *Handle {
	return &Handle{}
}

// Bind hands the given algorithm over to the handle; the caller must not
// keep using the algorithm directly afterwards. Binding an already bound
// handle is an error.
func (h *Handle) Bind(m Mixer) error {
	if h.algo != nil {
		return AlreadyBoundErr
	}
	h.algo = m
	return nil
}

// Reset discards the bound algorithm's history and prepares it for
// vectors of length nElem. Configuration parameters survive a Reset.
func (h *Handle) Reset(nElem int) error {
	if h.algo == nil {
		return NotBoundErr
	}
	if nElem < 1 {
		return NElemErr
	}
	if err := h.algo.Reset(nElem); err != nil {
		return err
	}
	h.nElem = nElem
	return nil
}

// Mix forwards one mixing step to the bound algorithm after checking
// the vector-length contract established by the last Reset.
func (h *Handle) Mix(qInpRes, qDiff []float64) error {
	if h.algo == nil {
		return NotBoundErr
	}
	if h.nElem == 0 {
		return NotReadyErr
	}
	if len(qInpRes) != h.nElem || len(qDiff) != h.nElem {
		return DimsMismatchErr
	}
	return h.algo.Mix(qInpRes, qDiff)
}

// HasInverseJacobian reports whether the bound algorithm maintains an
// approximate inverse Jacobian (true only for Broyden)
func (h *Handle) HasInverseJacobian() bool {
	if h.algo == nil {
		return false
	}
	return h.algo.HasInverseJacobian()
}

// InverseJacobian copies the bound algorithm's current approximate
// inverse Jacobian into dst. Algorithms without one report NoJacobianErr.
func (h *Handle) InverseJacobian(dst *mat.Dense) error {
	if h.algo == nil {
		return NotBoundErr
	}
	return h.algo.InverseJacobian(dst)
}
