package rand

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

func TestWithCovN(t *testing.T) {
	assert := assert.New(t)

	cov := mat.NewSymDense(2, []float64{1.0, 0.5, 0.5, 2.0})

	samples, err := WithCovN(cov, 10)
	assert.NotNil(samples)
	assert.NoError(err)

	rows, cols := samples.Dims()
	assert.Equal(2, rows)
	assert.Equal(10, cols)

	// invalid sample count
	samples, err = WithCovN(cov, 0)
	assert.Nil(samples)
	assert.Error(err)

	samples, err = WithCovN(cov, -5)
	assert.Nil(samples)
	assert.Error(err)
}

func TestRouletteDrawN(t *testing.T) {
	assert := assert.New(t)

	p := []float64{0.1, 0.2, 0.3, 0.4}

	indices, err := RouletteDrawN(p, 10)
	assert.NotNil(indices)
	assert.NoError(err)
	assert.Equal(10, len(indices))

	for _, idx := range indices {
		assert.True(idx >= 0 && idx < len(p))
	}

	// degenerate weights always draw the only non-zero entry
	indices, err = RouletteDrawN([]float64{0.0, 1.0, 0.0}, 5)
	assert.NoError(err)
	for _, idx := range indices {
		assert.Equal(1, idx)
	}

	// empty weights
	indices, err = RouletteDrawN(nil, 10)
	assert.Nil(indices)
	assert.Error(err)
}
