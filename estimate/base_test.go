package estimate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

func TestNewBase(t *testing.T) {
	assert := assert.New(t)

	val := mat.NewVecDense(2, []float64{1.0, 1.0})
	cov := mat.NewSymDense(2, []float64{1.0, 0.0, 0.0, 1.0})

	b, err := NewBase(val)
	assert.NotNil(b)
	assert.NoError(err)

	b, err = NewBaseWithCov(val, cov)
	assert.NotNil(b)
	assert.NoError(err)

	// mismatched dimensions
	b, err = NewBaseWithCov(val, mat.NewSymDense(1, []float64{1.0}))
	assert.Nil(b)
	assert.Error(err)
}

func TestValCov(t *testing.T) {
	assert := assert.New(t)

	val := mat.NewVecDense(2, []float64{1.0, 2.0})
	cov := mat.NewSymDense(2, []float64{1.0, 0.2, 0.2, 4.0})

	b, err := NewBaseWithCov(val, cov)
	assert.NotNil(b)
	assert.NoError(err)

	v := b.Val()
	for i := 0; i < val.Len(); i++ {
		assert.Equal(val.AtVec(i), v.AtVec(i))
	}

	c := b.Cov()
	r, _ := c.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < r; j++ {
			assert.Equal(cov.At(i, j), c.At(i, j))
		}
	}

	// returned values are copies: mutating them must not change the estimate
	v.(*mat.VecDense).SetVec(0, 100.0)
	assert.Equal(1.0, b.Val().AtVec(0))
}
