package estimate

import (
	"fmt"
	"math"
	"time"

	"golang.org/x/exp/rand"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"
	"gonum.org/v1/gonum/stat/distuv"
)

// Dist is a density evaluable probability distribution.
// It packages estimated mean and covariance so callers can score
// data against the estimate, e.g. when importance weighting particles.
type Dist interface {
	// LogProb returns the natural logarithm of the density at x
	LogProb(x mat.Vector) float64
	// Rand returns a random sample from the distribution
	Rand() mat.Vector
}

// normal is a multivariate normal descriptor
type normal struct {
	dist *distmv.Normal
}

// scalarNormal is a univariate normal descriptor
type scalarNormal struct {
	dist distuv.Normal
}

// NewNormal creates a density evaluable descriptor of a normal distribution
// with the given mean and covariance: a univariate descriptor when the
// dimension is 1, a multivariate descriptor otherwise.
// It returns error on dimension mismatch or when cov is not positive definite.
func NewNormal(mean mat.Vector, cov mat.Symmetric) (Dist, error) {
	if mean == nil || cov == nil {
		return nil, fmt.Errorf("invalid distribution moments supplied")
	}

	if mean.Len() != cov.Symmetric() {
		return nil, fmt.Errorf("invalid dimensions. mean: %d, cov: %d x %d", mean.Len(), cov.Symmetric(), cov.Symmetric())
	}

	src := rand.New(rand.NewSource(uint64(time.Now().UnixNano())))

	if mean.Len() == 1 {
		return &scalarNormal{
			dist: distuv.Normal{
				Mu:    mean.AtVec(0),
				Sigma: math.Sqrt(cov.At(0, 0)),
				Src:   src,
			},
		}, nil
	}

	mu := make([]float64, mean.Len())
	for i := range mu {
		mu[i] = mean.AtVec(i)
	}

	dist, ok := distmv.NewNormal(mu, cov, src)
	if !ok {
		return nil, fmt.Errorf("covariance matrix is not positive definite")
	}

	return &normal{dist: dist}, nil
}

// LogProb returns the log density of the multivariate normal at x.
func (n *normal) LogProb(x mat.Vector) float64 {
	v := make([]float64, x.Len())
	for i := range v {
		v[i] = x.AtVec(i)
	}

	return n.dist.LogProb(v)
}

// Rand returns a random sample drawn from the multivariate normal.
func (n *normal) Rand() mat.Vector {
	r := n.dist.Rand(nil)
	return mat.NewVecDense(len(r), r)
}

// LogProb returns the log density of the univariate normal at x.
func (s *scalarNormal) LogProb(x mat.Vector) float64 {
	return s.dist.LogProb(x.AtVec(0))
}

// Rand returns a random sample drawn from the univariate normal.
func (s *scalarNormal) Rand() mat.Vector {
	return mat.NewVecDense(1, []float64{s.dist.Rand()})
}
