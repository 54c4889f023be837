// Package upf implements an Unscented Particle Filter: a sequential Monte
// Carlo filter which drives one batched unscented filter transform across
// all of its particles and importance weights every particle by the
// predictive likelihood of the latest measurement.
package upf

import (
	"fmt"
	"math"

	filter "github.com/HaoWen470/pyfilter"
	"github.com/HaoWen470/pyfilter/estimate"
	"github.com/HaoWen470/pyfilter/rand"
	"github.com/HaoWen470/pyfilter/uft"
	"github.com/milosgajdos/matrix"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Config is UPF configuration
type Config struct {
	// Particles specifies the number of filter particles
	Particles int
	// UFT is the sigma point transform configuration shared by all particles
	UFT *uft.Config
	// ResampleThreshold is the effective sample size fraction below which
	// the particles are resampled. Defaults to 0.5 if non-positive.
	ResampleThreshold float64
	// Regularization is the kernel bandwidth used to jitter resampled
	// particles. If non-positive the optimal Gaussian kernel bandwidth is used.
	Regularization float64
}

// UPF is an Unscented Particle Filter
type UPF struct {
	// ut performs the per-particle predict/correct cycle, batched over particles
	ut *uft.UFT
	// w stores particle weights
	w []float64
	// corr is the current posterior summary, one batch entry per particle
	corr *uft.CorrectionResult
	// threshold is the effective sample size resampling fraction
	threshold float64
	// alpha is the regularization kernel bandwidth
	alpha float64
}

// New creates new UPF for the given state-space model and returns it.
// It returns error if the particle count is not positive or if the
// unscented transform fails to be created for the model.
func New(m filter.Model, c *Config) (*UPF, error) {
	if c == nil || c.Particles <= 0 {
		return nil, fmt.Errorf("invalid particle count")
	}

	ut, err := uft.New(m, c.UFT)
	if err != nil {
		return nil, fmt.Errorf("failed to create unscented transform: %v", err)
	}

	// particle weights start out as equal probabilities
	w := make([]float64, c.Particles)
	for i := range w {
		w[i] = 1 / float64(c.Particles)
	}

	threshold := c.ResampleThreshold
	if threshold <= 0 {
		threshold = 0.5
	}

	return &UPF{
		ut:        ut,
		w:         w,
		threshold: threshold,
		alpha:     c.Regularization,
	}, nil
}

// Init builds the time zero prior for every particle.
// It returns error if the transform fails to initialize.
func (f *UPF) Init() error {
	corr, err := f.ut.Initialize(len(f.w))
	if err != nil {
		return fmt.Errorf("failed to initialize particles: %v", err)
	}
	f.corr = corr

	return nil
}

// Filter runs one predict/correct cycle over all particles using the
// measurement z and returns the weighted posterior state estimate.
// Particles are reweighted by the predictive likelihood of z and resampled
// with regularization jitter whenever the effective sample size drops below
// the configured fraction.
// It returns error if the filter is not initialized, if the transform step
// fails, or if every particle weight vanishes.
func (f *UPF) Filter(z mat.Vector) (filter.Estimate, error) {
	if f.corr == nil {
		return nil, fmt.Errorf("filter is not initialized")
	}

	pred, err := f.ut.Predict(f.corr)
	if err != nil {
		return nil, fmt.Errorf("particle prediction failed: %v", err)
	}

	corr, err := f.ut.Correct(z, pred, f.corr)
	if err != nil {
		return nil, fmt.Errorf("particle correction failed: %v", err)
	}

	// importance weighting against the predictive observation density
	for i := range f.w {
		dist, err := corr.ObsDist(i)
		if err != nil {
			return nil, fmt.Errorf("failed to score particle %d: %v", i, err)
		}
		f.w[i] *= math.Exp(dist.LogProb(z))
	}

	sum := floats.Sum(f.w)
	if sum <= 0 || math.IsNaN(sum) {
		return nil, fmt.Errorf("degenerate particle weights")
	}
	floats.Scale(1/sum, f.w)

	f.corr = corr

	est, err := f.estimate()
	if err != nil {
		return nil, err
	}

	if f.ESS() < f.threshold*float64(len(f.w)) {
		if err := f.resample(); err != nil {
			return nil, fmt.Errorf("particle resampling failed: %v", err)
		}
	}

	return est, nil
}

// Weights returns a vector containing UPF particle weights
func (f *UPF) Weights() mat.Vector {
	data := make([]float64, len(f.w))
	copy(data, f.w)

	return mat.NewVecDense(len(data), data)
}

// Posterior returns the current posterior summary of all particles
func (f *UPF) Posterior() *uft.CorrectionResult {
	return f.corr
}

// ESS returns the effective sample size of the particle weights
func (f *UPF) ESS() float64 {
	sq := 0.0
	for _, w := range f.w {
		sq += w * w
	}

	return 1 / sq
}

// estimate returns the weighted Gaussian mixture moments of the particles.
func (f *UPF) estimate() (filter.Estimate, error) {
	nx := f.corr.StateDim()

	xm := mat.NewVecDense(nx, nil)
	for i := range f.w {
		xm.AddScaledVec(xm, f.w[i], f.corr.StateMean(i))
	}

	cov := mat.NewSymDense(nx, nil)
	diff := mat.NewVecDense(nx, nil)
	for i := range f.w {
		p := f.corr.StateCov(i)
		diff.SubVec(f.corr.StateMean(i), xm)
		for r := 0; r < nx; r++ {
			for c := r; c < nx; c++ {
				cov.SetSym(r, c, cov.At(r, c)+f.w[i]*(p.At(r, c)+diff.AtVec(r)*diff.AtVec(c)))
			}
		}
	}

	return estimate.NewBaseWithCov(xm, cov)
}

// resample draws a new particle set proportionally to the weights and
// jitters the resampled state means with a Gaussian regularization kernel
// to fight sample impoverishment.
func (f *UPF) resample() error {
	indices, err := rand.RouletteDrawN(f.w, len(f.w))
	if err != nil {
		return fmt.Errorf("failed to sample particle indices: %v", err)
	}

	sel, err := f.corr.Select(indices)
	if err != nil {
		return fmt.Errorf("failed to select particles: %v", err)
	}

	nx := sel.StateDim()
	count := sel.Batch()

	// particle state means stored in columns
	x := mat.NewDense(nx, count, nil)
	for i := 0; i < count; i++ {
		for r := 0; r < nx; r++ {
			x.Set(r, i, sel.StateMean(i).AtVec(r))
		}
	}

	cov, err := matrix.Cov(x, "cols")
	if err != nil {
		return fmt.Errorf("failed to calculate particle covariance: %v", err)
	}

	jitter, err := rand.WithCovN(cov, count)
	if err != nil {
		return fmt.Errorf("failed to draw particle perturbations: %v", err)
	}

	// if invalid bandwidth is given, use the optimal value for Gaussian kernel
	alpha := f.alpha
	if alpha <= 0 {
		alpha = AlphaGauss(nx, count)
	}
	jitter.Scale(alpha, jitter)

	pert, err := sel.Perturb(jitter)
	if err != nil {
		return fmt.Errorf("failed to perturb particles: %v", err)
	}

	f.corr = pert

	// resampled particles carry equal weights again
	for i := range f.w {
		f.w[i] = 1 / float64(len(f.w))
	}

	return nil
}

// AlphaGauss computes the optimal regularization bandwidth for a Gaussian
// kernel and returns it.
func AlphaGauss(r, c int) float64 {
	return math.Pow(4.0/(float64(c)*(float64(r)+2.0)), 1/(float64(r)+4.0))
}
