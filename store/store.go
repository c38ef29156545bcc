// Package store defines where converged SCF charges and run traces live,
// so separate calculations (restarts, finite-difference displacements,
// distributed workers) can reuse each other's converged state.
package store

// Iterator returns the uid of the next stored run record
type Iterator interface {
	Next() (string, bool)
}

// Store holds converged charge vectors keyed by geometry label plus the
// residual-norm traces of the runs that produced them
type Store interface {
	SetCharges(geomID string, q []float64) error
	GetCharges(geomID string) ([]float64, error)
	AddRun(geomID string, residualNorms []float64) error
	GetRunIterator(geomID string) (Iterator, error)
	Clear() error
}
