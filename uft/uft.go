// Package uft implements the unscented (sigma point) filter transform for
// batched Bayesian filtering of nonlinear state-space models. One UFT
// performs a single predict/correct cycle over an arbitrary number of
// independent batch entries, which makes it suitable as the per-particle
// correction step of an outer sequential Monte Carlo filter.
package uft

import (
	"errors"
	"fmt"
	"math"

	filter "github.com/HaoWen470/pyfilter"
	"github.com/HaoWen470/pyfilter/matrix"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

var (
	// ErrConfig is returned when the model cannot be handled by the transform
	ErrConfig = errors.New("unsupported model configuration")
	// ErrNumerical is returned when a filtering step fails due to numerical
	// breakdown. It is fatal to the step, not to the transform: the caller
	// may discard the offending batch entry and carry on.
	ErrNumerical = errors.New("numerical failure")
	// ErrDims is returned on dimension mismatch between the model and the data
	ErrDims = errors.New("dimension mismatch")
)

// initSamples is the number of Monte Carlo draws used to estimate the
// initial state mean when the initial distribution has no closed-form mean.
const initSamples = 1000

// Config contains UFT [unitless] scaling parameters
type Config struct {
	// Alpha controls sigma point spread, defined on (0,1]
	Alpha float64
	// Beta folds in prior knowledge of the state distribution (2 is optimal for Gaussian)
	Beta float64
	// Kappa is a secondary spread and semi-definiteness control (must be non-negative)
	Kappa float64
}

// DefaultConfig returns the default UFT configuration
func DefaultConfig() *Config {
	return &Config{
		Alpha: 1.0,
		Beta:  2.0,
		Kappa: 0.0,
	}
}

// UFT implements the unscented filter transform for a state-space model.
// Its weight vectors and slice bookkeeping are fixed at construction and
// read-only afterwards, so a single UFT is safe to share across
// concurrently filtered batches.
type UFT struct {
	// m is the state-space model
	m filter.Model
	// nx, nt, ny are hidden state, process noise and observation dimensions
	nx, nt, ny int
	// ndim is the augmented state dimension: nx + nt + ny
	ndim int
	// alpha, beta are the UFT scaling parameters
	alpha, beta float64
	// lambda is the derived scaling parameter
	lambda float64
	// wm, wc are mean and covariance sigma point weights
	wm, wc []float64
}

// New creates new UFT for the given state-space model and returns it.
// If c is nil the default configuration is used.
// It returns a configuration error if the model state is degenerate, if
// either increment distribution has event rank greater than 1, or if either
// increment distribution is parameterized: only fixed scalar or vector
// valued noise is supported by the transform.
func New(m filter.Model, c *Config) (*UFT, error) {
	if m == nil {
		return nil, fmt.Errorf("%w: no model supplied", ErrConfig)
	}

	nx, ny := m.Dims()
	if nx <= 0 || ny <= 0 {
		return nil, fmt.Errorf("%w: invalid model dimensions: [%d x %d]", ErrConfig, nx, ny)
	}

	if c == nil {
		c = DefaultConfig()
	}

	if c.Alpha <= 0 || c.Alpha > 1 || c.Beta < 0 || c.Kappa < 0 {
		return nil, fmt.Errorf("%w: invalid config supplied: %v", ErrConfig, c)
	}

	hIncr := m.Hidden().IncrementDist()
	oIncr := m.Observable().IncrementDist()
	if hIncr == nil || oIncr == nil {
		return nil, fmt.Errorf("%w: missing increment distribution", ErrConfig)
	}

	for _, dist := range []filter.Noise{hIncr, oIncr} {
		if dist.Rank() > 1 {
			return nil, fmt.Errorf("%w: can at most handle vector valued noise, got rank %d", ErrConfig, dist.Rank())
		}
		if dist.Parameterized() {
			return nil, fmt.Errorf("%w: cannot handle parameterized noise distributions", ErrConfig)
		}
	}

	nt := hIncr.Cov().Symmetric()
	if nt <= 0 {
		return nil, fmt.Errorf("%w: degenerate process noise dimension: %d", ErrConfig, nt)
	}

	if oIncr.Cov().Symmetric() != ny {
		return nil, fmt.Errorf("%w: observation noise dimension: %d, observable vars: %d", ErrConfig, oIncr.Cov().Symmetric(), ny)
	}

	ndim := nx + nt + ny
	lambda := c.Alpha*c.Alpha*(float64(ndim)+c.Kappa) - float64(ndim)

	// mean and covariance weights: wm must sum to 1, wc need not
	wm := make([]float64, 2*ndim+1)
	wc := make([]float64, 2*ndim+1)
	wm[0] = lambda / (float64(ndim) + lambda)
	wc[0] = wm[0] + (1 - c.Alpha*c.Alpha + c.Beta)
	for i := 1; i < len(wm); i++ {
		wm[i] = 1 / (2 * (float64(ndim) + lambda))
		wc[i] = wm[i]
	}

	return &UFT{
		m:      m,
		nx:     nx,
		nt:     nt,
		ny:     ny,
		ndim:   ndim,
		alpha:  c.Alpha,
		beta:   c.Beta,
		lambda: lambda,
		wm:     wm,
		wc:     wc,
	}, nil
}

// Dim returns the augmented state dimension of the transform
func (u *UFT) Dim() int {
	return u.ndim
}

// Dims returns hidden and observable state dimensions of the model
func (u *UFT) Dims() (nx, ny int) {
	return u.nx, u.ny
}

// Weights returns copies of the mean and covariance sigma point weights
func (u *UFT) Weights() (wm, wc []float64) {
	wm = make([]float64, len(u.wm))
	wc = make([]float64, len(u.wc))
	copy(wm, u.wm)
	copy(wc, u.wc)

	return wm, wc
}

// Initialize builds the time zero prior for the given batch size.
// The state block mean of every batch entry is estimated empirically from
// initSamples draws of the hidden initial distribution, the noise block
// means are zero, and the augmented covariance is block-diagonal from the
// distributions' variances.
// It returns error on invalid batch size or if the initial distribution
// produces samples of the wrong dimension.
func (u *UFT) Initialize(batch int) (*CorrectionResult, error) {
	if batch <= 0 {
		return nil, fmt.Errorf("%w: invalid batch size: %d", ErrDims, batch)
	}

	init := u.m.Hidden().InitialDist()
	if init == nil {
		return nil, fmt.Errorf("%w: hidden process has no initial distribution", ErrConfig)
	}

	if init.Cov().Symmetric() != u.nx {
		return nil, fmt.Errorf("%w: initial distribution dimension: %d, state vars: %d", ErrDims, init.Cov().Symmetric(), u.nx)
	}

	cov := matrix.BlockDiag(
		mat.NewDiagDense(u.nx, diagVariance(init.Cov(), u.nx)),
		mat.NewDiagDense(u.nt, diagVariance(u.m.Hidden().IncrementDist().Cov(), u.nt)),
		mat.NewDiagDense(u.ny, diagVariance(u.m.Observable().IncrementDist().Cov(), u.ny)),
	)

	means := make([]*mat.VecDense, batch)
	covs := make([]*mat.SymDense, batch)

	samples := mat.NewDense(u.nx, initSamples, nil)
	for i := range means {
		for s := 0; s < initSamples; s++ {
			x := init.Sample()
			if x.Len() != u.nx {
				return nil, fmt.Errorf("%w: initial sample dimension: %d, state vars: %d", ErrDims, x.Len(), u.nx)
			}
			for r := 0; r < u.nx; r++ {
				samples.Set(r, s, x.AtVec(r))
			}
		}

		m := mat.NewVecDense(u.ndim, nil)
		for r, v := range matrix.RowMeans(samples) {
			m.SetVec(r, v)
		}
		means[i] = m

		c := mat.NewSymDense(u.ndim, nil)
		c.CopySym(cov)
		covs[i] = c
	}

	return &CorrectionResult{
		mean: means,
		cov:  covs,
		nx:   u.nx,
	}, nil
}

// Predict generates sigma points from the prior and propagates them through
// the hidden and observable transition functions of the model. The batch
// entries are processed in parallel; they are independent by construction.
// It returns a numerical error if any entry's covariance fails to factorize
// and a dimension error if the prior does not belong to this transform.
func (u *UFT) Predict(prior *CorrectionResult) (*PredictionResult, error) {
	if prior == nil || prior.Dim() != u.ndim || prior.nx != u.nx {
		return nil, fmt.Errorf("%w: incompatible prior supplied", ErrDims)
	}

	batch := prior.Batch()

	hp, err := bindParams(u.m.Hidden().Params(), batch)
	if err != nil {
		return nil, err
	}

	op, err := bindParams(u.m.Observable().Params(), batch)
	if err != nil {
		return nil, err
	}

	spx := make([]*mat.Dense, batch)
	spy := make([]*mat.Dense, batch)

	g := new(errgroup.Group)
	for i := 0; i < batch; i++ {
		i := i
		g.Go(func() error {
			sp, err := u.sigmaPoints(prior.mean[i], prior.cov[i])
			if err != nil {
				return err
			}

			cols := 2*u.ndim + 1
			x := mat.NewDense(u.nx, cols, nil)
			y := mat.NewDense(u.ny, cols, nil)

			for c := 0; c < cols; c++ {
				xNext, err := u.m.Hidden().Propagate(blockCol(sp, 0, u.nx, c), blockCol(sp, u.nx, u.nx+u.nt, c), hp[i])
				if err != nil {
					return fmt.Errorf("failed to propagate state sigma point: %v", err)
				}
				if xNext.Len() != u.nx {
					return fmt.Errorf("%w: hidden transition returned %d vars, expected %d", ErrDims, xNext.Len(), u.nx)
				}
				setCol(x, c, xNext)

				yNext, err := u.m.Observable().Propagate(xNext, blockCol(sp, u.nx+u.nt, u.ndim, c), op[i])
				if err != nil {
					return fmt.Errorf("failed to observe state sigma point: %v", err)
				}
				if yNext.Len() != u.ny {
					return fmt.Errorf("%w: observable transition returned %d vars, expected %d", ErrDims, yNext.Len(), u.ny)
				}
				setCol(y, c, yNext)
			}

			spx[i], spy[i] = x, y

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &PredictionResult{spx: spx, spy: spy}, nil
}

// Aggregate computes the weighted mean and covariance of the propagated
// state and observation sigma points of every batch entry.
func (u *UFT) Aggregate(pred *PredictionResult) []AggregatedResult {
	agg := make([]AggregatedResult, pred.Batch())
	for i := range agg {
		xm, xc := u.moments(pred.spx[i])
		ym, yc := u.moments(pred.spy[i])
		agg[i] = AggregatedResult{xm: xm, xc: xc, ym: ym, yc: yc}
	}

	return agg
}

// Correct performs the Kalman style measurement update for observation y
// and returns the new posterior summary. y must have one column per batch
// entry or a single column broadcast across the batch.
// The updated state moments replace only the state block of the prior's
// augmented mean and covariance: the noise blocks are stateless and rebuilt
// by every Predict, never carried forward as correlated state.
// It returns a numerical error if the predicted observation covariance of
// any entry is singular.
func (u *UFT) Correct(y mat.Matrix, pred *PredictionResult, prior *CorrectionResult) (*CorrectionResult, error) {
	if prior == nil || pred == nil || prior.Dim() != u.ndim || prior.nx != u.nx {
		return nil, fmt.Errorf("%w: incompatible prior supplied", ErrDims)
	}

	batch := prior.Batch()
	if pred.Batch() != batch {
		return nil, fmt.Errorf("%w: prediction batch: %d, prior batch: %d", ErrDims, pred.Batch(), batch)
	}

	yr, yc := y.Dims()
	if yr != u.ny || (yc != 1 && yc != batch) {
		return nil, fmt.Errorf("%w: observation: [%d x %d], expected [%d x 1] or [%d x %d]", ErrDims, yr, yc, u.ny, u.ny, batch)
	}

	agg := u.Aggregate(pred)

	means := make([]*mat.VecDense, batch)
	covs := make([]*mat.SymDense, batch)
	yms := make([]*mat.VecDense, batch)
	ycs := make([]*mat.SymDense, batch)

	g := new(errgroup.Group)
	for i := 0; i < batch; i++ {
		i := i
		g.Go(func() error {
			a := agg[i]

			pxy := u.crossCov(pred.spx[i], pred.spy[i], a.xm, a.ym)

			var yInv mat.Dense
			if err := yInv.Inverse(a.yc); err != nil {
				return fmt.Errorf("%w: singular predicted observation covariance: %v", ErrNumerical, err)
			}

			var gain mat.Dense
			gain.Mul(pxy, &yInv)

			// innovation vector
			obs := mat.NewVecDense(u.ny, nil)
			col := 0
			if yc > 1 {
				col = i
			}
			for r := 0; r < u.ny; r++ {
				obs.SetVec(r, y.At(r, col))
			}

			inn := mat.NewVecDense(u.ny, nil)
			inn.SubVec(obs, a.ym)

			// corrected state mean: xm + gain * inn
			corr := mat.NewVecDense(u.nx, nil)
			corr.MulVec(&gain, inn)
			xm := mat.NewVecDense(u.nx, nil)
			xm.AddVec(a.xm, corr)

			// corrected state covariance: xc - gain * yc * gain^T
			var t, gyg mat.Dense
			t.Mul(a.yc, gain.T())
			gyg.Mul(&gain, &t)

			m := mat.NewVecDense(u.ndim, nil)
			m.CopyVec(prior.mean[i])
			for r := 0; r < u.nx; r++ {
				m.SetVec(r, xm.AtVec(r))
			}

			c := mat.NewSymDense(u.ndim, nil)
			c.CopySym(prior.cov[i])
			for r := 0; r < u.nx; r++ {
				for j := r; j < u.nx; j++ {
					c.SetSym(r, j, a.xc.At(r, j)-gyg.At(r, j))
				}
			}

			means[i], covs[i] = m, c
			yms[i], ycs[i] = a.ym, a.yc

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &CorrectionResult{
		mean: means,
		cov:  covs,
		nx:   u.nx,
		ym:   yms,
		yc:   ycs,
	}, nil
}

// sigmaPoints generates the deterministic 2n+1 sigma point set of the given
// moments and returns it with the points stored in columns.
// It returns a numerical error if cov is not positive definite.
func (u *UFT) sigmaPoints(mean *mat.VecDense, cov *mat.SymDense) (*mat.Dense, error) {
	var chol mat.Cholesky
	if ok := chol.Factorize(cov); !ok {
		return nil, fmt.Errorf("%w: covariance is not positive definite", ErrNumerical)
	}

	var l mat.TriDense
	chol.LTo(&l)

	scale := math.Sqrt(u.lambda + float64(u.ndim))

	sp := mat.NewDense(u.ndim, 2*u.ndim+1, nil)
	for r := 0; r < u.ndim; r++ {
		m := mean.AtVec(r)
		sp.Set(r, 0, m)
		for c := 0; c < u.ndim; c++ {
			d := scale * l.At(r, c)
			sp.Set(r, c+1, m+d)
			sp.Set(r, c+1+u.ndim, m-d)
		}
	}

	return sp, nil
}

// moments returns the weighted mean and covariance of sigma points stored
// in the columns of points.
func (u *UFT) moments(points *mat.Dense) (*mat.VecDense, *mat.SymDense) {
	dim, cols := points.Dims()

	mean := mat.NewVecDense(dim, nil)
	for c := 0; c < cols; c++ {
		mean.AddScaledVec(mean, u.wm[c], points.ColView(c))
	}

	cov := mat.NewSymDense(dim, nil)
	diff := mat.NewVecDense(dim, nil)
	for c := 0; c < cols; c++ {
		diff.SubVec(points.ColView(c), mean)
		cov.SymRankOne(cov, u.wc[c], diff)
	}

	return mean, cov
}

// crossCov returns the weighted cross covariance between two centered sigma
// point sets stored in the columns of x and y.
func (u *UFT) crossCov(x, y *mat.Dense, xm, ym *mat.VecDense) *mat.Dense {
	dx, cols := x.Dims()
	dy, _ := y.Dims()

	cov := mat.NewDense(dx, dy, nil)
	xd := mat.NewVecDense(dx, nil)
	yd := mat.NewVecDense(dy, nil)
	for c := 0; c < cols; c++ {
		xd.SubVec(x.ColView(c), xm)
		yd.SubVec(y.ColView(c), ym)
		cov.RankOne(cov, u.wc[c], xd, yd)
	}

	return cov
}

// bindParams resolves process parameters for every batch entry.
// Static parameters resolve to the same value everywhere; batched
// parameters must carry a value for every entry.
func bindParams(params []filter.Param, batch int) ([][]mat.Vector, error) {
	bound := make([][]mat.Vector, batch)
	for i := range bound {
		vals := make([]mat.Vector, len(params))
		for j, p := range params {
			v, err := p.Bind(i)
			if err != nil {
				return nil, fmt.Errorf("%w: failed to bind parameter %d: %v", ErrDims, j, err)
			}
			vals[j] = v
		}
		bound[i] = vals
	}

	return bound, nil
}

// diagVariance returns the first n diagonal entries of cov as a variance slice.
func diagVariance(cov mat.Symmetric, n int) []float64 {
	v := make([]float64, n)
	for i := range v {
		v[i] = cov.At(i, i)
	}

	return v
}

// blockCol extracts rows [lo,hi) of column c of m into a new vector.
func blockCol(m *mat.Dense, lo, hi, c int) *mat.VecDense {
	v := mat.NewVecDense(hi-lo, nil)
	for r := lo; r < hi; r++ {
		v.SetVec(r-lo, m.At(r, c))
	}

	return v
}

// setCol copies v into column c of m.
func setCol(m *mat.Dense, c int, v mat.Vector) {
	for r := 0; r < v.Len(); r++ {
		m.Set(r, c, v.AtVec(r))
	}
}
