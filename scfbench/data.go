package scfbench

import (
	"errors"
	"fmt"

	"github.com/molsim/scf-mix-go/vector"
	"gonum.org/v1/hdf5"
)

var (
	// DatasetShapeErr is returned when an hdf5 dataset does not split
	// evenly into vectors of the requested dimensionality
	DatasetShapeErr = errors.New("dataset length is not a multiple of the problem dimensionality")
)

// Objects inside the hdf5:
// targets   - flat float array, fixed points of the reference problems
// jacobians - flat float array, Jacobian diagonals, same shape

// GetVectorsFromHDF5 returns slice of feature vectors, from the hdf5 table
func GetVectorsFromHDF5(table *hdf5.File, datasetName string, vecs interface{}) error {
	dataset, err := table.OpenDataset(datasetName)
	if err != nil {
		return err
	}
	defer dataset.Close()

	fileSpace := dataset.Space()
	numTicks := fileSpace.SimpleExtentNPoints()

	switch vecs := vecs.(type) {
	case *[]float32:
		*vecs = make([]float32, numTicks)
	case *[]float64:
		*vecs = make([]float64, numTicks)
	case *[]int32:
		*vecs = make([]int32, numTicks)
	}

	err = dataset.Read(vecs)
	if err != nil {
		return err
	}

	return nil
}

// LoadProblemsFromHDF5 reads a reference problem suite from an hdf5
// file holding flat float32 "targets" and "jacobians" datasets and
// splits them into problems of the given dimensionality
func LoadProblemsFromHDF5(path string, dims int, step float64) ([]*Problem, error) {
	f, err := hdf5.OpenFile(path, hdf5.F_ACC_RDONLY)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	targets := []float32{}
	if err := GetVectorsFromHDF5(f, "targets", &targets); err != nil {
		return nil, err
	}
	jacobians := []float32{}
	if err := GetVectorsFromHDF5(f, "jacobians", &jacobians); err != nil {
		return nil, err
	}
	if len(targets) != len(jacobians) {
		return nil, DimsMismatchErr
	}
	if dims < 1 || len(targets)%dims != 0 {
		return nil, DatasetShapeErr
	}

	problems := make([]*Problem, 0, len(targets)/dims)
	for i := 0; i <= len(targets)-dims; i = i + dims {
		p, err := NewProblem(
			fmt.Sprintf("hdf5-%v", i/dims),
			vector.ConvertTo64(targets[i:i+dims]),
			vector.ConvertTo64(jacobians[i:i+dims]),
			step,
		)
		if err != nil {
			return nil, err
		}
		problems = append(problems, p)
	}
	return problems, nil
}
