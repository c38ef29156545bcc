package mixer

import (
	"github.com/molsim/scf-mix-go/vector"
	"gonum.org/v1/gonum/mat"
)

// SimpleConfig holds the simple mixer parameters
type SimpleConfig struct {
	// MixParam is the damping factor in (0, 1]
	MixParam float64
}

// Simple mixes charges by plain linear damping:
// qInpRes = qInpRes + mixParam*qDiff. It keeps no history.
type Simple struct {
	config SimpleConfig
	nElem  int
}

// NewSimple creates a simple damping mixer with the given config
func NewSimple(config SimpleConfig) (*Simple, error) {
	if config.MixParam <= 0.0 || config.MixParam > 1.0 {
		return nil, MixParamErr
	}
	return &Simple{config: config}, nil
}

// Reset records the vector length for the contract checks
func (s *Simple) Reset(nElem int) error {
	if nElem < 1 {
		return NElemErr
	}
	s.nElem = nElem
	return nil
}

// Mix applies the damped residual to the iterate in place
func (s *Simple) Mix(qInpRes, qDiff []float64) error {
	if s.nElem == 0 {
		return NotReadyErr
	}
	if len(qInpRes) != s.nElem || len(qDiff) != s.nElem {
		return DimsMismatchErr
	}
	vector.Axpy(s.config.MixParam, qDiff, qInpRes)
	return nil
}

// HasInverseJacobian always returns false for the simple mixer
func (s *Simple) HasInverseJacobian() bool {
	return false
}

// InverseJacobian always reports NoJacobianErr for the simple mixer
func (s *Simple) InverseJacobian(dst *mat.Dense) error {
	return NoJacobianErr
}
