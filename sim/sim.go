// Package sim provides helpers to forward-simulate state-space models and
// plot filtering results.
package sim

import (
	"fmt"

	filter "github.com/HaoWen470/pyfilter"
	"gonum.org/v1/gonum/mat"
)

// Run forward-simulates the state-space model m for the given number of
// steps and returns the hidden states and the measurements, stored one
// column per step. Process parameters are resolved from the first batch
// entry of every parameter.
// It returns error if the model is nil, steps is not positive, the hidden
// process carries no initial distribution or a propagation step fails.
func Run(m filter.Model, steps int) (x, y *mat.Dense, err error) {
	if m == nil || steps <= 0 {
		return nil, nil, fmt.Errorf("invalid simulation request")
	}

	hidden := m.Hidden()
	observable := m.Observable()

	init := hidden.InitialDist()
	if init == nil {
		return nil, nil, fmt.Errorf("hidden process has no initial distribution")
	}

	hps, err := bind(hidden.Params())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to bind hidden process parameters: %v", err)
	}

	ops, err := bind(observable.Params())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to bind observable process parameters: %v", err)
	}

	nx, ny := m.Dims()
	x = mat.NewDense(nx, steps, nil)
	y = mat.NewDense(ny, steps, nil)

	state := init.Sample()
	for k := 0; k < steps; k++ {
		state, err = hidden.Propagate(state, hidden.IncrementDist().Sample(), hps)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to propagate hidden state: %v", err)
		}

		obs, err := observable.Propagate(state, observable.IncrementDist().Sample(), ops)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to observe hidden state: %v", err)
		}

		for r := 0; r < nx; r++ {
			x.Set(r, k, state.AtVec(r))
		}
		for r := 0; r < ny; r++ {
			y.Set(r, k, obs.AtVec(r))
		}
	}

	return x, y, nil
}

func bind(params []filter.Param) ([]mat.Vector, error) {
	if len(params) == 0 {
		return nil, nil
	}

	ps := make([]mat.Vector, len(params))
	for i, p := range params {
		v, err := p.Bind(0)
		if err != nil {
			return nil, err
		}
		ps[i] = v
	}

	return ps, nil
}
