package main

import (
	"os"
	"strconv"

	cm "github.com/molsim/scf-mix-go/common"
	"github.com/molsim/scf-mix-go/scf"
	"github.com/molsim/scf-mix-go/scfbench"
)

var (
	nProblems, _ = strconv.Atoi(os.Getenv("BENCH_N_PROBLEMS"))
	dims, _      = strconv.Atoi(os.Getenv("BENCH_DIMS"))
	maxIter, _   = strconv.Atoi(os.Getenv("BENCH_MAX_ITER"))
	mixParam, _  = strconv.ParseFloat(os.Getenv("BENCH_MIX_PARAM"), 64)
	datasetPath  = os.Getenv("BENCH_HDF5_PATH")
)

const (
	defaultNProblems = 50
	defaultDims      = 32
	defaultMaxIter   = 2000
	defaultMixParam  = 0.5
	tolerance        = 1e-9
	randomSeed       = 42
	hdf5Step         = 0.25
)

func main() {
	logger := cm.GetNewLogger()
	if nProblems <= 0 {
		nProblems = defaultNProblems
	}
	if dims <= 0 {
		dims = defaultDims
	}
	if maxIter <= 0 {
		maxIter = defaultMaxIter
	}
	if mixParam <= 0 {
		mixParam = defaultMixParam
	}

	var problems []*scfbench.Problem
	if datasetPath != "" {
		logger.Info.Printf("Loading the hdf5 bench dataset from %s...", datasetPath)
		loaded, err := scfbench.LoadProblemsFromHDF5(datasetPath, dims, hdf5Step)
		if err != nil {
			logger.Err.Fatal(err)
		}
		problems = loaded
	} else {
		logger.Info.Printf("Generating %v random problems of dim %v...", nProblems, dims)
		problems = scfbench.RandomProblems(nProblems, dims, randomSeed)
	}

	config := scf.Config{
		Tolerance:     tolerance,
		MaxIterations: maxIter,
	}
	logger.Info.Printf("Running the suite: tol=%.1e, max iterations=%v, mixing parameter=%v", tolerance, maxIter, mixParam)
	records, err := scfbench.RunSuite(problems, scfbench.DefaultCases(mixParam), config, true)
	if err != nil {
		logger.Err.Fatal(err)
	}

	for _, s := range scfbench.Summarize(records) {
		logger.Info.Printf(
			"%v: converged %v/%v, iterations %.1f +/- %.1f",
			s.Case, s.Converged, s.Total, s.MeanIterations, s.StdIterations,
		)
	}
}
