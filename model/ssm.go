package model

import (
	"fmt"

	filter "github.com/HaoWen470/pyfilter"
	"gonum.org/v1/gonum/mat"
)

// SSM is a state-space model: a hidden process observed through an
// observable process. It implements filter.Model.
type SSM struct {
	// hidden is the latent process
	hidden filter.Process
	// observable is the observation process
	observable filter.Process
}

// NewSSM creates new state-space model and returns it.
// It returns error if either process is missing or if the hidden process
// has no initial distribution.
func NewSSM(hidden, observable filter.Process) (*SSM, error) {
	if hidden == nil || observable == nil {
		return nil, fmt.Errorf("invalid state-space model processes supplied")
	}

	if hidden.InitialDist() == nil {
		return nil, fmt.Errorf("hidden process has no initial distribution")
	}

	return &SSM{
		hidden:     hidden,
		observable: observable,
	}, nil
}

// Hidden returns the hidden process
func (m *SSM) Hidden() filter.Process {
	return m.hidden
}

// Observable returns the observable process
func (m *SSM) Observable() filter.Process {
	return m.observable
}

// Dims returns hidden and observable state dimensions of the model
func (m *SSM) Dims() (nx, ny int) {
	return m.hidden.NumVars(), m.observable.NumVars()
}

// NewLinearProcess returns a process whose state propagates as
// x_next = A*x + u, with u drawn from the increment distribution.
// It returns error if A is not square or the process fails to be created.
func NewLinearProcess(A *mat.Dense, init, incr filter.Noise, params ...filter.Param) (*Process, error) {
	rows, cols := A.Dims()
	if rows != cols {
		return nil, fmt.Errorf("invalid propagation matrix dimensions: [%d x %d]", rows, cols)
	}

	a := &mat.Dense{}
	a.CloneFrom(A)

	fn := func(x, u mat.Vector, _ []mat.Vector) (mat.Vector, error) {
		if x.Len() != rows {
			return nil, fmt.Errorf("invalid state vector dimension: %d", x.Len())
		}

		out := mat.NewVecDense(rows, nil)
		out.MulVec(a, x)

		if u != nil {
			out.AddVec(out, u)
		}

		return out, nil
	}

	return NewProcess(rows, init, incr, fn, params...)
}

// NewLinearObservation returns a process observing a hidden state as
// y = C*x + u, with u drawn from the increment distribution.
// It returns error if the process fails to be created.
func NewLinearObservation(C *mat.Dense, incr filter.Noise, params ...filter.Param) (*Process, error) {
	ny, nx := C.Dims()

	c := &mat.Dense{}
	c.CloneFrom(C)

	fn := func(x, u mat.Vector, _ []mat.Vector) (mat.Vector, error) {
		if x.Len() != nx {
			return nil, fmt.Errorf("invalid state vector dimension: %d", x.Len())
		}

		out := mat.NewVecDense(ny, nil)
		out.MulVec(c, x)

		if u != nil {
			out.AddVec(out, u)
		}

		return out, nil
	}

	return NewProcess(ny, nil, incr, fn, params...)
}
