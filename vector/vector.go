package vector

import (
	"math"

	"gonum.org/v1/gonum/blas/blas64"
)

const tol = 1e-12

// NewVec creates new blas vector
func NewVec(data []float64) blas64.Vector {
	if data == nil {
		data = make([]float64, 0)
	}
	return blas64.Vector{
		N:    len(data),
		Inc:  1,
		Data: data,
	}
}

// ConvertTo64 converts float32 slice to float64 slice
func ConvertTo64(ar []float32) []float64 {
	newar := make([]float64, len(ar))
	var v float32
	var i int
	for i, v = range ar {
		newar[i] = float64(v)
	}
	return newar
}

// Copy returns a fresh copy of the given vector
func Copy(a []float64) []float64 {
	res := make([]float64, len(a))
	copy(res, a)
	return res
}

// Dot calculates the dot product of the two given vectors
func Dot(a, b []float64) float64 {
	return blas64.Dot(NewVec(a), NewVec(b))
}

// Nrm2 calculates the euclidean norm of the given vector
func Nrm2(a []float64) float64 {
	return blas64.Nrm2(NewVec(a))
}

// Axpy calculates y = alpha*x + y in place
func Axpy(alpha float64, x, y []float64) {
	blas64.Axpy(alpha, NewVec(x), NewVec(y))
}

// Sub calculates the elementwise difference a - b
func Sub(a, b []float64) []float64 {
	res := Copy(a)
	Axpy(-1.0, b, res)
	return res
}

// L2 calculates l2-distance between two vectors
func L2(a, b []float64) float64 {
	return Nrm2(Sub(a, b))
}

// IsZeroVector returns true if the sum of vectors' elements close to 0.0
func IsZeroVector(v []float64) bool {
	return math.Abs(blas64.Asum(NewVec(v))) <= tol
}
