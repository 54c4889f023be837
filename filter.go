package filter

import "gonum.org/v1/gonum/mat"

// Noise is a probability distribution driving a stochastic process:
// either its initial state distribution or its increment distribution.
type Noise interface {
	// Mean returns noise mean
	Mean() []float64
	// Cov returns covariance matrix of the noise
	Cov() mat.Symmetric
	// Sample returns a sample of the noise
	Sample() mat.Vector
	// Rank returns the event rank of the noise: 0 for scalar noise,
	// 1 for vector noise. Matrix valued noise has rank 2 and up.
	Rank() int
	// Parameterized reports whether the noise parameters are themselves
	// learnable rather than fixed values.
	Parameterized() bool
	// Reset resets the noise
	Reset() error
}

// Param is a functional parameter of a stochastic process. A parameter
// either holds a single value shared by the whole batch or one value
// per batch entry.
type Param interface {
	// Bind resolves the parameter value for batch entry i.
	Bind(i int) (mat.Vector, error)
	// Batched reports whether the value varies across batch entries.
	Batched() bool
}

// Process is a discrete-time stochastic process. Scalar processes are
// represented as 1-dimensional vector processes: Propagate always deals
// in vectors, regardless of process dimensionality.
type Process interface {
	// NumVars returns the process state dimension
	NumVars() int
	// InitialDist returns the initial state distribution.
	// It may be nil for processes which are never initialized directly,
	// such as the observable leg of a state-space model.
	InitialDist() Noise
	// IncrementDist returns the process increment (noise) distribution
	IncrementDist() Noise
	// Propagate deterministically maps state x and noise sample u to the
	// next state given the bound parameter values ps
	Propagate(x, u mat.Vector, ps []mat.Vector) (mat.Vector, error)
	// Params returns the functional parameters of the process
	Params() []Param
}

// Model is a state-space model: a hidden process observed through an
// observable process.
type Model interface {
	// Hidden returns the hidden (latent) process
	Hidden() Process
	// Observable returns the observable process
	Observable() Process
	// Dims returns hidden and observable state dimensions of the model
	Dims() (nx, ny int)
}

// Estimate is dynamical system filter estimate
type Estimate interface {
	// Val returns estimate value
	Val() mat.Vector
	// Cov returns estimate covariance
	Cov() mat.Symmetric
}

// Filter is a recursive Bayesian filter driven by a stream of measurements
type Filter interface {
	// Filter corrects the filter state using measurement z and returns
	// a new state estimate
	Filter(z mat.Vector) (Estimate, error)
}
