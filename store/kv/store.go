// Package kv is an in-memory implementation of the charge store, meant
// for single-process runs and tests.
package kv

import (
	"errors"
	"sync"

	"github.com/molsim/scf-mix-go/store"
	"github.com/molsim/scf-mix-go/vector"
	guuid "github.com/google/uuid"
)

var (
	geomNotFoundErr = errors.New("Geometry label not found")
	// KeyNotFoundErr is returned when no charges are stored under a label
	KeyNotFoundErr = errors.New("Key not found")
)

// KVStore keeps charges and run traces in plain maps guarded by a RWMutex
type KVStore struct {
	mx      sync.RWMutex
	charges map[string][]float64
	runs    map[string]map[string][]float64
}

// NewKVStore creates an empty in-memory charge store
func NewKVStore() *KVStore {
	return &KVStore{
		charges: make(map[string][]float64),
		runs:    make(map[string]map[string][]float64),
	}
}

// KeysIterator walks run record uids over a channel
type KeysIterator struct {
	uids chan string
}

// Next returns the uid of the next run record
func (it *KeysIterator) Next() (string, bool) {
	uid, opened := <-it.uids
	if !opened {
		return "", false
	}
	return uid, true
}

// SetCharges stores a copy of the converged charges under the geometry label
func (s *KVStore) SetCharges(geomID string, q []float64) error {
	s.mx.Lock()
	defer s.mx.Unlock()
	s.charges[geomID] = vector.Copy(q)
	return nil
}

// GetCharges returns a copy of the charges stored under the geometry label
func (s *KVStore) GetCharges(geomID string) ([]float64, error) {
	s.mx.RLock()
	defer s.mx.RUnlock()
	q, ok := s.charges[geomID]
	if !ok {
		return nil, KeyNotFoundErr
	}
	return vector.Copy(q), nil
}

// AddRun records a convergence trace for the geometry under a fresh uid
func (s *KVStore) AddRun(geomID string, residualNorms []float64) error {
	s.mx.Lock()
	defer s.mx.Unlock()
	if _, ok := s.runs[geomID]; !ok {
		s.runs[geomID] = make(map[string][]float64)
	}
	uid := guuid.NewString()
	s.runs[geomID][uid] = vector.Copy(residualNorms)
	return nil
}

// GetRunIterator returns an iterator over the run record uids of a geometry
func (s *KVStore) GetRunIterator(geomID string) (store.Iterator, error) {
	s.mx.RLock()
	defer s.mx.RUnlock()
	bucket, ok := s.runs[geomID]
	if !ok {
		return nil, geomNotFoundErr
	}
	uids := make(chan string, len(bucket))
	for uid := range bucket {
		uids <- uid
	}
	close(uids)
	return &KeysIterator{uids: uids}, nil
}

// Clear drops all stored charges and run records
func (s *KVStore) Clear() error {
	s.mx.Lock()
	defer s.mx.Unlock()
	s.charges = make(map[string][]float64)
	s.runs = make(map[string]map[string][]float64)
	return nil
}
