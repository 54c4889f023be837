package upf

import (
	"math"
	"os"
	"testing"

	filter "github.com/HaoWen470/pyfilter"
	"github.com/HaoWen470/pyfilter/model"
	"github.com/HaoWen470/pyfilter/noise"
	"github.com/HaoWen470/pyfilter/uft"
	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

var (
	ssm *model.SSM
	c   *Config
)

func setup() {
	initNoise, _ := noise.NewGaussian([]float64{0.5}, mat.NewSymDense(1, []float64{1.0}))
	procNoise, _ := noise.NewGaussian([]float64{0}, mat.NewSymDense(1, []float64{0.1}))
	obsNoise, _ := noise.NewGaussian([]float64{0}, mat.NewSymDense(1, []float64{0.25}))

	hidden, _ := model.NewLinearProcess(mat.NewDense(1, 1, []float64{0.9}), initNoise, procNoise)
	observable, _ := model.NewLinearObservation(mat.NewDense(1, 1, []float64{1.0}), obsNoise)

	ssm, _ = model.NewSSM(hidden, observable)

	c = &Config{
		Particles: 50,
		UFT:       &uft.Config{Alpha: 0.9, Beta: 2.0, Kappa: 1.0},
	}
}

func TestMain(m *testing.M) {
	setup()
	retCode := m.Run()
	os.Exit(retCode)
}

func TestUPFNew(t *testing.T) {
	assert := assert.New(t)

	f, err := New(ssm, c)
	assert.NotNil(f)
	assert.NoError(err)

	// weights start out uniform
	w := f.Weights()
	for i := 0; i < w.Len(); i++ {
		assert.InDelta(1.0/float64(c.Particles), w.AtVec(i), 1e-12)
	}

	// missing configuration
	f, err = New(ssm, nil)
	assert.Nil(f)
	assert.Error(err)

	// invalid particle count
	f, err = New(ssm, &Config{Particles: 0, UFT: c.UFT})
	assert.Nil(f)
	assert.Error(err)

	// invalid transform configuration
	f, err = New(ssm, &Config{Particles: 10, UFT: &uft.Config{Alpha: -1.0}})
	assert.Nil(f)
	assert.Error(err)
}

func TestUPFInit(t *testing.T) {
	assert := assert.New(t)

	f, err := New(ssm, c)
	assert.NoError(err)
	assert.Nil(f.Posterior())

	err = f.Init()
	assert.NoError(err)

	post := f.Posterior()
	assert.NotNil(post)
	assert.Equal(c.Particles, post.Batch())
	assert.Equal(1, post.StateDim())
}

func TestUPFFilter(t *testing.T) {
	assert := assert.New(t)

	f, err := New(ssm, c)
	assert.NoError(err)

	// filtering before Init is rejected
	est, err := f.Filter(mat.NewVecDense(1, []float64{1.0}))
	assert.Nil(est)
	assert.Error(err)

	assert.NoError(f.Init())

	est, err = f.Filter(mat.NewVecDense(1, []float64{1.0}))
	assert.NotNil(est)
	assert.NoError(err)
	assert.Equal(1, est.Val().Len())
	assert.True(est.Cov().At(0, 0) > 0)

	// weights remain a probability distribution
	w := f.Weights()
	sum := 0.0
	for i := 0; i < w.Len(); i++ {
		assert.True(w.AtVec(i) >= 0)
		sum += w.AtVec(i)
	}
	assert.InDelta(1.0, sum, 1e-10)
}

func TestUPFTracking(t *testing.T) {
	assert := assert.New(t)

	f, err := New(ssm, c)
	assert.NoError(err)
	assert.NoError(f.Init())

	// feed a constant measurement far from the initial mean: the
	// posterior must settle near its steady state
	z := mat.NewVecDense(1, []float64{2.0})

	var est filter.Estimate
	for i := 0; i < 15; i++ {
		est, err = f.Filter(z)
		assert.NoError(err)
	}

	assert.InDelta(2.0, est.Val().AtVec(0), 1.0)
	assert.True(math.Abs(est.Val().AtVec(0)-2.0) < math.Abs(0.5-2.0))
}

func TestUPFResample(t *testing.T) {
	assert := assert.New(t)

	// a threshold above 1 forces resampling on every step
	cfg := &Config{
		Particles:         30,
		UFT:               c.UFT,
		ResampleThreshold: 1.1,
	}

	f, err := New(ssm, cfg)
	assert.NoError(err)
	assert.NoError(f.Init())

	est, err := f.Filter(mat.NewVecDense(1, []float64{0.3}))
	assert.NotNil(est)
	assert.NoError(err)

	// resampled particles carry uniform weights
	w := f.Weights()
	for i := 0; i < w.Len(); i++ {
		assert.InDelta(1.0/float64(cfg.Particles), w.AtVec(i), 1e-12)
	}
	assert.InDelta(float64(cfg.Particles), f.ESS(), 1e-9)
}

func TestAlphaGauss(t *testing.T) {
	assert := assert.New(t)

	alpha := AlphaGauss(1, 100)
	assert.InDelta(math.Pow(4.0/300.0, 0.2), alpha, 1e-12)
	assert.True(alpha > 0 && alpha < 1)
}
