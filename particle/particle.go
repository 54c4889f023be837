package particle

import (
	filter "github.com/HaoWen470/pyfilter"
	"gonum.org/v1/gonum/mat"
)

// Particle is a sequential Monte Carlo filter
type Particle interface {
	// filter.Filter is a recursive Bayesian filter
	filter.Filter
	// Weights returns particle weights
	Weights() mat.Vector
}
