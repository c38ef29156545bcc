// Package purekv backs the charge store with a pure-kv rpc server, so
// converged charges can be shared between distributed workers, e.g.
// finite-difference displacement jobs running on separate hosts.
package purekv

import (
	"errors"

	pkv "github.com/gasparian/pure-kv-go/client"
	guuid "github.com/google/uuid"
	"github.com/molsim/scf-mix-go/store"
)

const chargesBucket = "charges"

var (
	keyNotFoundErr  = errors.New("Key not found")
	corruptValueErr = errors.New("Stored value has an unexpected type")
)

// Config holds the rpc client connection parameters
type Config struct {
	Address string
	Timeout int
}

// PureKvStore implements the charge store on top of a pure-kv rpc client
type PureKvStore struct {
	config Config
	client *pkv.Client
}

// New creates a charge store client for the given server address
func New(config Config) *PureKvStore {
	return &PureKvStore{
		config: config,
		client: pkv.New(config.Address, config.Timeout),
	}
}

// Start opens the rpc connection and prepares the charges bucket
func (p *PureKvStore) Start() error {
	if err := p.client.Open(); err != nil {
		return err
	}
	return p.client.Create(chargesBucket)
}

// Close shuts down the rpc client
func (p *PureKvStore) Close() {
	p.client.Close()
}

func runsBucket(geomID string) string {
	return "runs_" + geomID
}

// run uids are mirrored into an index bucket whose values are iterated
// to enumerate the records
func runIdxBucket(geomID string) string {
	return "runidx_" + geomID
}

// SetCharges stores the converged charges under the geometry label
func (p *PureKvStore) SetCharges(geomID string, q []float64) error {
	return p.client.Set(chargesBucket, geomID, q)
}

// GetCharges returns the charges stored under the geometry label
func (p *PureKvStore) GetCharges(geomID string) ([]float64, error) {
	tmpVal, ok := p.client.Get(chargesBucket, geomID)
	if !ok {
		return nil, keyNotFoundErr
	}
	q, ok := tmpVal.([]float64)
	if !ok {
		return nil, corruptValueErr
	}
	return q, nil
}

// AddRun records a convergence trace for the geometry under a fresh uid
func (p *PureKvStore) AddRun(geomID string, residualNorms []float64) error {
	bucketName := runsBucket(geomID)
	if err := p.client.Create(bucketName); err != nil {
		return err
	}
	idxName := runIdxBucket(geomID)
	if err := p.client.Create(idxName); err != nil {
		return err
	}
	uid := guuid.NewString()
	if err := p.client.Set(bucketName, uid, residualNorms); err != nil {
		return err
	}
	return p.client.Set(idxName, uid, uid)
}

// KeysIterator walks run record uids stored on the server
type KeysIterator struct {
	client     *pkv.Client
	bucketName string
}

// Next returns the uid of the next run record
func (it *KeysIterator) Next() (string, bool) {
	if it.client == nil {
		return "", false
	}
	_, uidTmp, err := it.client.Next(it.bucketName)
	if uidTmp == nil || err != nil {
		it.client.Close()
		return "", false
	}
	uid, ok := uidTmp.(string)
	if !ok {
		it.client.Close()
		return "", false
	}
	return uid, true
}

// GetRunIterator returns an iterator over the run record uids of a geometry
func (p *PureKvStore) GetRunIterator(geomID string) (store.Iterator, error) {
	idxName := runIdxBucket(geomID)
	if err := p.client.MakeIterator(idxName); err != nil {
		return nil, err
	}
	it := &KeysIterator{
		client:     pkv.New(p.config.Address, p.config.Timeout),
		bucketName: idxName,
	}
	return it, nil
}

// Clear drops all buckets on the server
func (p *PureKvStore) Clear() error {
	p.client.DestroyAll()
	return nil
}
