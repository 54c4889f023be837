package model

import (
	"fmt"

	filter "github.com/HaoWen470/pyfilter"
	"gonum.org/v1/gonum/mat"
)

// TransitionFunc deterministically maps state x and noise sample u to the
// next state given the bound parameter values ps. The returned vector must
// have the process state dimension.
type TransitionFunc func(x, u mat.Vector, ps []mat.Vector) (mat.Vector, error)

// Process is a discrete-time stochastic process driven by a deterministic
// transition function and an increment distribution.
// It implements filter.Process.
type Process struct {
	// nx is process state dimension
	nx int
	// init is initial state distribution
	init filter.Noise
	// incr is process increment distribution
	incr filter.Noise
	// fn is process transition function
	fn TransitionFunc
	// params are process functional parameters
	params []filter.Param
}

// NewProcess creates new Process and returns it.
// The initial distribution may be nil for processes which are never
// initialized directly, such as the observable leg of a state-space model.
// It returns error if the state dimension is not positive or if either the
// increment distribution or the transition function is missing.
func NewProcess(nx int, init, incr filter.Noise, fn TransitionFunc, params ...filter.Param) (*Process, error) {
	if nx <= 0 {
		return nil, fmt.Errorf("invalid process dimension: %d", nx)
	}

	if incr == nil {
		return nil, fmt.Errorf("missing increment distribution")
	}

	if fn == nil {
		return nil, fmt.Errorf("missing transition function")
	}

	return &Process{
		nx:     nx,
		init:   init,
		incr:   incr,
		fn:     fn,
		params: params,
	}, nil
}

// NumVars returns process state dimension
func (p *Process) NumVars() int {
	return p.nx
}

// InitialDist returns the initial state distribution
func (p *Process) InitialDist() filter.Noise {
	return p.init
}

// IncrementDist returns the process increment distribution
func (p *Process) IncrementDist() filter.Noise {
	return p.incr
}

// Propagate maps state x and noise sample u to the next state.
// It returns error if the noise sample dimension does not match the
// increment distribution or if the transition function misbehaves.
func (p *Process) Propagate(x, u mat.Vector, ps []mat.Vector) (mat.Vector, error) {
	if u != nil && u.Len() != p.incr.Cov().Symmetric() {
		return nil, fmt.Errorf("invalid noise sample dimension: %d", u.Len())
	}

	out, err := p.fn(x, u, ps)
	if err != nil {
		return nil, err
	}

	if out.Len() != p.nx {
		return nil, fmt.Errorf("transition returned %d vars, expected %d", out.Len(), p.nx)
	}

	return out, nil
}

// Params returns process functional parameters
func (p *Process) Params() []filter.Param {
	return p.params
}

// StaticParam is a functional parameter whose value is shared by every
// batch entry.
type StaticParam []float64

// Bind returns the parameter value; the same value for every batch entry.
func (p StaticParam) Bind(i int) (mat.Vector, error) {
	if len(p) == 0 {
		return nil, fmt.Errorf("empty parameter value")
	}

	val := make([]float64, len(p))
	copy(val, p)

	return mat.NewVecDense(len(val), val), nil
}

// Batched reports whether the value varies across batch entries: never for StaticParam.
func (p StaticParam) Batched() bool {
	return false
}

// BatchParam is a functional parameter carrying one value per batch entry
// stored in the columns of a matrix.
type BatchParam struct {
	vals *mat.Dense
}

// NewBatchParam creates new BatchParam with per-entry values stored in the
// columns of vals. It returns error if vals is nil or empty.
func NewBatchParam(vals *mat.Dense) (*BatchParam, error) {
	if vals == nil || vals.IsEmpty() {
		return nil, fmt.Errorf("invalid parameter values supplied")
	}

	v := &mat.Dense{}
	v.CloneFrom(vals)

	return &BatchParam{vals: v}, nil
}

// Bind returns the parameter value bound to batch entry i.
// It returns error if the parameter carries no value for entry i.
func (p *BatchParam) Bind(i int) (mat.Vector, error) {
	rows, cols := p.vals.Dims()
	if i < 0 || i >= cols {
		return nil, fmt.Errorf("no parameter value for batch entry %d", i)
	}

	val := mat.NewVecDense(rows, nil)
	val.CopyVec(p.vals.ColView(i))

	return val, nil
}

// Batched reports whether the value varies across batch entries: always for BatchParam.
func (p *BatchParam) Batched() bool {
	return true
}

// Entries returns the number of batch entries the parameter carries values for.
func (p *BatchParam) Entries() int {
	_, cols := p.vals.Dims()
	return cols
}
