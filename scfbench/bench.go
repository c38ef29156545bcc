// Package scfbench benchmarks the mixing algorithms against suites of
// synthetic fixed-point problems, reporting how many SCF cycles each
// algorithm needs to converge.
package scfbench

import (
	"errors"
	"math/rand"

	"github.com/cheggaaa/pb/v3"
	guuid "github.com/google/uuid"
	"github.com/molsim/scf-mix-go/mixer"
	"github.com/molsim/scf-mix-go/scf"
	"gonum.org/v1/gonum/stat"
)

var (
	// EmptySuiteErr is returned when there is nothing to benchmark
	EmptySuiteErr = errors.New("benchmark needs at least one problem and one case")
	// DimsMismatchErr is returned for problems with inconsistent vector lengths
	DimsMismatchErr = errors.New("target and Jacobian diagonal must have the same length")
)

// Problem is a synthetic linear SCF cycle with the fixed point at Target:
// Output(q) = q - Step*JacDiag*(q - Target), elementwise
type Problem struct {
	Name    string
	Target  []float64
	JacDiag []float64
	Step    float64
}

// NewProblem creates a linear fixed-point problem
func NewProblem(name string, target, jacDiag []float64, step float64) (*Problem, error) {
	if len(target) != len(jacDiag) {
		return nil, DimsMismatchErr
	}
	return &Problem{Name: name, Target: target, JacDiag: jacDiag, Step: step}, nil
}

// Output runs one cycle of the synthetic SCF map
func (p *Problem) Output(qInp []float64) ([]float64, error) {
	out := make([]float64, len(qInp))
	for i := range qInp {
		out[i] = qInp[i] - p.Step*p.JacDiag[i]*(qInp[i]-p.Target[i])
	}
	return out, nil
}

// RandomProblems generates n reproducible contraction problems of the
// given dimensionality
func RandomProblems(n, dims int, seed int64) []*Problem {
	rng := rand.New(rand.NewSource(seed))
	problems := make([]*Problem, n)
	for k := 0; k < n; k++ {
		target := make([]float64, dims)
		jacDiag := make([]float64, dims)
		for i := 0; i < dims; i++ {
			target[i] = -1.0 + 2.0*rng.Float64()
			jacDiag[i] = 0.5 + 2.0*rng.Float64()
		}
		problems[k] = &Problem{
			Name:    guuid.NewString(),
			Target:  target,
			JacDiag: jacDiag,
			Step:    0.25,
		}
	}
	return problems
}

// Case is a named mixer handle factory; a fresh handle is built per run
// so no history leaks between problems
type Case struct {
	Name      string
	NewHandle func() (*mixer.Handle, error)
}

// DefaultCases covers all four mixing algorithms with the given damping
// factor
func DefaultCases(mixParam float64) []Case {
	bind := func(m mixer.Mixer, err error) (*mixer.Handle, error) {
		if err != nil {
			return nil, err
		}
		h := mixer.NewHandle()
		if err := h.Bind(m); err != nil {
			return nil, err
		}
		return h, nil
	}
	return []Case{
		{
			Name: "simple",
			NewHandle: func() (*mixer.Handle, error) {
				return bind(mixer.NewSimple(mixer.SimpleConfig{MixParam: mixParam}))
			},
		},
		{
			Name: "anderson",
			NewHandle: func() (*mixer.Handle, error) {
				return bind(mixer.NewAnderson(mixer.AndersonConfig{
					MixParam:    mixParam,
					Generations: 3,
					Omega0:      1e-2,
				}))
			},
		},
		{
			Name: "broyden",
			NewHandle: func() (*mixer.Handle, error) {
				return bind(mixer.NewBroyden(mixer.DefaultBroydenConfig(mixParam)))
			},
		},
		{
			Name: "diis",
			NewHandle: func() (*mixer.Handle, error) {
				return bind(mixer.NewDiis(mixer.DiisConfig{MixParam: mixParam, Generations: 6}))
			},
		},
	}
}

// Record is the outcome of one case on one problem
type Record struct {
	RunID         string
	Case          string
	Problem       string
	Iterations    int
	Converged     bool
	FinalResidual float64
}

// RunSuite runs every case against every problem starting from zero
// charges and returns one record per run
func RunSuite(problems []*Problem, cases []Case, config scf.Config, showProgress bool) ([]Record, error) {
	if len(problems) == 0 || len(cases) == 0 {
		return nil, EmptySuiteErr
	}
	var bar *pb.ProgressBar
	if showProgress {
		bar = pb.StartNew(len(problems) * len(cases))
	}
	records := make([]Record, 0, len(problems)*len(cases))
	for _, c := range cases {
		for _, p := range problems {
			if bar != nil {
				bar.Increment()
			}
			h, err := c.NewHandle()
			if err != nil {
				return nil, err
			}
			result, err := scf.Run(p, h, make([]float64, len(p.Target)), config)
			if err != nil {
				return nil, err
			}
			records = append(records, Record{
				RunID:         guuid.NewString(),
				Case:          c.Name,
				Problem:       p.Name,
				Iterations:    result.Iterations,
				Converged:     result.Converged,
				FinalResidual: result.ResidualNorms[len(result.ResidualNorms)-1],
			})
		}
	}
	if bar != nil {
		bar.Finish()
	}
	return records, nil
}

// Summary aggregates the records of one case over a suite
type Summary struct {
	Case           string
	Converged      int
	Total          int
	MeanIterations float64
	StdIterations  float64
}

// Summarize groups the records by case, keeping the first-seen case
// order, and reports iteration statistics over the converged runs
func Summarize(records []Record) []Summary {
	order := make([]string, 0)
	iters := make(map[string][]float64)
	converged := make(map[string]int)
	total := make(map[string]int)
	for _, r := range records {
		if _, ok := total[r.Case]; !ok {
			order = append(order, r.Case)
		}
		total[r.Case]++
		if r.Converged {
			converged[r.Case]++
			iters[r.Case] = append(iters[r.Case], float64(r.Iterations))
		}
	}
	summaries := make([]Summary, 0, len(order))
	for _, name := range order {
		s := Summary{
			Case:      name,
			Converged: converged[name],
			Total:     total[name],
		}
		if len(iters[name]) > 0 {
			s.MeanIterations = stat.Mean(iters[name], nil)
			s.StdIterations = stat.StdDev(iters[name], nil)
		}
		summaries = append(summaries, s)
	}
	return summaries
}
