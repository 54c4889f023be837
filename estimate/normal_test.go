package estimate

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

func TestNewNormal(t *testing.T) {
	assert := assert.New(t)

	mean := mat.NewVecDense(2, []float64{1.0, -1.0})
	cov := mat.NewSymDense(2, []float64{1.0, 0.1, 0.1, 2.0})

	d, err := NewNormal(mean, cov)
	assert.NotNil(d)
	assert.NoError(err)

	// nil moments
	d, err = NewNormal(nil, cov)
	assert.Nil(d)
	assert.Error(err)

	// mismatched dimensions
	d, err = NewNormal(mean, mat.NewSymDense(1, []float64{1.0}))
	assert.Nil(d)
	assert.Error(err)

	// not positive definite
	bad := mat.NewSymDense(2, []float64{1.0, 2.0, 2.0, 1.0})
	d, err = NewNormal(mean, bad)
	assert.Nil(d)
	assert.Error(err)
}

func TestScalarNormal(t *testing.T) {
	assert := assert.New(t)

	mean := mat.NewVecDense(1, []float64{2.0})
	cov := mat.NewSymDense(1, []float64{4.0})

	d, err := NewNormal(mean, cov)
	assert.NotNil(d)
	assert.NoError(err)

	// density at the mean of N(2, 4): log(1/(2*sqrt(2*pi)))
	want := -math.Log(2.0 * math.Sqrt(2.0*math.Pi))
	assert.InDelta(want, d.LogProb(mean), 1e-10)

	r := d.Rand()
	assert.Equal(1, r.Len())
}

func TestNormalLogProb(t *testing.T) {
	assert := assert.New(t)

	mean := mat.NewVecDense(2, []float64{0.0, 0.0})
	cov := mat.NewSymDense(2, []float64{1.0, 0.0, 0.0, 1.0})

	d, err := NewNormal(mean, cov)
	assert.NotNil(d)
	assert.NoError(err)

	// standard bivariate normal at the origin: -log(2*pi)
	assert.InDelta(-math.Log(2.0*math.Pi), d.LogProb(mean), 1e-10)

	r := d.Rand()
	assert.Equal(2, r.Len())
}
