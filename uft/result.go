package uft

import (
	"fmt"

	"github.com/HaoWen470/pyfilter/estimate"
	"gonum.org/v1/gonum/mat"
)

// CorrectionResult is the posterior summary of one filtering step passed
// between Predict and Correct calls. It holds one augmented mean and
// covariance per batch entry, with the leading state block identifying the
// true hidden state. Results are immutable: every update produces a new
// instance and all accessors return copies.
type CorrectionResult struct {
	// mean holds augmented means, one per batch entry
	mean []*mat.VecDense
	// cov holds augmented covariances, one per batch entry
	cov []*mat.SymDense
	// nx is the size of the leading hidden state block
	nx int
	// ym and yc hold predictive observation moments, nil until a correction
	ym []*mat.VecDense
	yc []*mat.SymDense
}

// NewCorrectionResult broadcasts one augmented mean and covariance across a
// batch and returns the resulting posterior summary. It is the seam for
// driving the transform from externally supplied moments.
// It returns error on invalid dimensions or batch size.
func NewCorrectionResult(mean mat.Vector, cov mat.Symmetric, stateDim, batch int) (*CorrectionResult, error) {
	if mean == nil || cov == nil {
		return nil, fmt.Errorf("%w: no moments supplied", ErrDims)
	}

	if mean.Len() != cov.Symmetric() {
		return nil, fmt.Errorf("%w: mean: %d, cov: %d x %d", ErrDims, mean.Len(), cov.Symmetric(), cov.Symmetric())
	}

	if stateDim <= 0 || stateDim > mean.Len() {
		return nil, fmt.Errorf("%w: invalid state block size: %d", ErrDims, stateDim)
	}

	if batch <= 0 {
		return nil, fmt.Errorf("%w: invalid batch size: %d", ErrDims, batch)
	}

	means := make([]*mat.VecDense, batch)
	covs := make([]*mat.SymDense, batch)
	for i := range means {
		m := mat.NewVecDense(mean.Len(), nil)
		m.CopyVec(mean)
		means[i] = m

		c := mat.NewSymDense(cov.Symmetric(), nil)
		c.CopySym(cov)
		covs[i] = c
	}

	return &CorrectionResult{
		mean: means,
		cov:  covs,
		nx:   stateDim,
	}, nil
}

// Batch returns the number of batch entries
func (r *CorrectionResult) Batch() int {
	return len(r.mean)
}

// Dim returns the augmented state dimension
func (r *CorrectionResult) Dim() int {
	return r.mean[0].Len()
}

// StateDim returns the size of the hidden state block
func (r *CorrectionResult) StateDim() int {
	return r.nx
}

// Mean returns the augmented mean of batch entry i
func (r *CorrectionResult) Mean(i int) mat.Vector {
	m := mat.NewVecDense(r.mean[i].Len(), nil)
	m.CopyVec(r.mean[i])

	return m
}

// Cov returns the augmented covariance of batch entry i
func (r *CorrectionResult) Cov(i int) mat.Symmetric {
	c := mat.NewSymDense(r.cov[i].Symmetric(), nil)
	c.CopySym(r.cov[i])

	return c
}

// StateMean returns the hidden state block of the mean of batch entry i
func (r *CorrectionResult) StateMean(i int) mat.Vector {
	m := mat.NewVecDense(r.nx, nil)
	m.CopyVec(r.mean[i].SliceVec(0, r.nx))

	return m
}

// StateCov returns the hidden state block of the covariance of batch entry i
func (r *CorrectionResult) StateCov(i int) mat.Symmetric {
	c := mat.NewSymDense(r.nx, nil)
	c.CopySym(r.cov[i].SliceSym(0, r.nx).(mat.Symmetric))

	return c
}

// HasObs reports whether the result carries predictive observation moments.
// Only results produced by Correct do; the initial prior does not.
func (r *CorrectionResult) HasObs() bool {
	return r.ym != nil
}

// ObsMean returns the predictive observation mean of batch entry i.
// It returns nil if the result carries no observation moments.
func (r *CorrectionResult) ObsMean(i int) mat.Vector {
	if r.ym == nil {
		return nil
	}

	m := mat.NewVecDense(r.ym[i].Len(), nil)
	m.CopyVec(r.ym[i])

	return m
}

// ObsCov returns the predictive observation covariance of batch entry i.
// It returns nil if the result carries no observation moments.
func (r *CorrectionResult) ObsCov(i int) mat.Symmetric {
	if r.yc == nil {
		return nil
	}

	c := mat.NewSymDense(r.yc[i].Symmetric(), nil)
	c.CopySym(r.yc[i])

	return c
}

// StateDist returns a density evaluable descriptor of the hidden state
// estimate of batch entry i.
func (r *CorrectionResult) StateDist(i int) (estimate.Dist, error) {
	return estimate.NewNormal(r.StateMean(i), r.StateCov(i))
}

// ObsDist returns a density evaluable descriptor of the predictive
// observation of batch entry i. Callers use it to score the entry against
// the actual measurement.
// It returns error if the result carries no observation moments.
func (r *CorrectionResult) ObsDist(i int) (estimate.Dist, error) {
	if r.ym == nil {
		return nil, fmt.Errorf("no predictive observation moments available")
	}

	return estimate.NewNormal(r.ObsMean(i), r.ObsCov(i))
}

// Select returns a new result assembled from the given batch entries.
// The same entry may appear more than once, so Select doubles as the
// gather step of particle resampling.
// It returns error if any index is out of range.
func (r *CorrectionResult) Select(indices []int) (*CorrectionResult, error) {
	if len(indices) == 0 {
		return nil, fmt.Errorf("%w: no entries selected", ErrDims)
	}

	means := make([]*mat.VecDense, len(indices))
	covs := make([]*mat.SymDense, len(indices))
	var yms []*mat.VecDense
	var ycs []*mat.SymDense
	if r.ym != nil {
		yms = make([]*mat.VecDense, len(indices))
		ycs = make([]*mat.SymDense, len(indices))
	}

	for i, idx := range indices {
		if idx < 0 || idx >= len(r.mean) {
			return nil, fmt.Errorf("%w: batch entry %d out of range", ErrDims, idx)
		}

		m := mat.NewVecDense(r.mean[idx].Len(), nil)
		m.CopyVec(r.mean[idx])
		means[i] = m

		c := mat.NewSymDense(r.cov[idx].Symmetric(), nil)
		c.CopySym(r.cov[idx])
		covs[i] = c

		if r.ym != nil {
			ym := mat.NewVecDense(r.ym[idx].Len(), nil)
			ym.CopyVec(r.ym[idx])
			yms[i] = ym

			yc := mat.NewSymDense(r.yc[idx].Symmetric(), nil)
			yc.CopySym(r.yc[idx])
			ycs[i] = yc
		}
	}

	return &CorrectionResult{
		mean: means,
		cov:  covs,
		nx:   r.nx,
		ym:   yms,
		yc:   ycs,
	}, nil
}

// Perturb returns a new result whose hidden state means are shifted by the
// columns of delta, one column per batch entry. Covariances and noise
// blocks are left untouched. It supports kernel regularization of
// resampled particles.
// It returns error if delta dimensions do not match the batch.
func (r *CorrectionResult) Perturb(delta mat.Matrix) (*CorrectionResult, error) {
	rows, cols := delta.Dims()
	if rows != r.nx || cols != len(r.mean) {
		return nil, fmt.Errorf("%w: perturbation: [%d x %d], state block: %d, batch: %d", ErrDims, rows, cols, r.nx, len(r.mean))
	}

	means := make([]*mat.VecDense, len(r.mean))
	for i := range means {
		m := mat.NewVecDense(r.mean[i].Len(), nil)
		m.CopyVec(r.mean[i])
		for j := 0; j < r.nx; j++ {
			m.SetVec(j, m.AtVec(j)+delta.At(j, i))
		}
		means[i] = m
	}

	return &CorrectionResult{
		mean: means,
		cov:  r.copyCovs(),
		nx:   r.nx,
		ym:   r.copyObsMeans(),
		yc:   r.copyObsCovs(),
	}, nil
}

func (r *CorrectionResult) copyCovs() []*mat.SymDense {
	covs := make([]*mat.SymDense, len(r.cov))
	for i := range covs {
		c := mat.NewSymDense(r.cov[i].Symmetric(), nil)
		c.CopySym(r.cov[i])
		covs[i] = c
	}

	return covs
}

func (r *CorrectionResult) copyObsMeans() []*mat.VecDense {
	if r.ym == nil {
		return nil
	}

	yms := make([]*mat.VecDense, len(r.ym))
	for i := range yms {
		m := mat.NewVecDense(r.ym[i].Len(), nil)
		m.CopyVec(r.ym[i])
		yms[i] = m
	}

	return yms
}

func (r *CorrectionResult) copyObsCovs() []*mat.SymDense {
	if r.yc == nil {
		return nil
	}

	ycs := make([]*mat.SymDense, len(r.yc))
	for i := range ycs {
		c := mat.NewSymDense(r.yc[i].Symmetric(), nil)
		c.CopySym(r.yc[i])
		ycs[i] = c
	}

	return ycs
}

// PredictionResult holds propagated state and observation sigma points for
// one predict/correct cycle. It is never persisted beyond the cycle which
// created it.
type PredictionResult struct {
	// spx holds state sigma points, one nx x (2n+1) matrix per batch entry
	spx []*mat.Dense
	// spy holds observation sigma points, one ny x (2n+1) matrix per batch entry
	spy []*mat.Dense
}

// Batch returns the number of batch entries
func (p *PredictionResult) Batch() int {
	return len(p.spx)
}

// StatePoints returns the propagated state sigma points of batch entry i
// stored in columns.
func (p *PredictionResult) StatePoints(i int) mat.Matrix {
	m := &mat.Dense{}
	m.CloneFrom(p.spx[i])

	return m
}

// ObsPoints returns the propagated observation sigma points of batch entry i
// stored in columns.
func (p *PredictionResult) ObsPoints(i int) mat.Matrix {
	m := &mat.Dense{}
	m.CloneFrom(p.spy[i])

	return m
}

// AggregatedResult holds the weighted moments of propagated sigma points
// for one batch entry. It is consumed immediately by Correct.
type AggregatedResult struct {
	xm *mat.VecDense
	xc *mat.SymDense
	ym *mat.VecDense
	yc *mat.SymDense
}

// StateMean returns the weighted mean of the state sigma points
func (a *AggregatedResult) StateMean() mat.Vector {
	m := mat.NewVecDense(a.xm.Len(), nil)
	m.CopyVec(a.xm)

	return m
}

// StateCov returns the weighted covariance of the state sigma points
func (a *AggregatedResult) StateCov() mat.Symmetric {
	c := mat.NewSymDense(a.xc.Symmetric(), nil)
	c.CopySym(a.xc)

	return c
}

// ObsMean returns the weighted mean of the observation sigma points
func (a *AggregatedResult) ObsMean() mat.Vector {
	m := mat.NewVecDense(a.ym.Len(), nil)
	m.CopyVec(a.ym)

	return m
}

// ObsCov returns the weighted covariance of the observation sigma points
func (a *AggregatedResult) ObsCov() mat.Symmetric {
	c := mat.NewSymDense(a.yc.Symmetric(), nil)
	c.CopySym(a.yc)

	return c
}
