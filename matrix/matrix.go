package matrix

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// BlockDiag assembles the given square blocks into one block-diagonal
// symmetric matrix. Off-diagonal cross blocks are zero.
// It panics if any block is nil.
func BlockDiag(blocks ...mat.Symmetric) *mat.SymDense {
	n := 0
	for _, b := range blocks {
		n += b.Symmetric()
	}

	d := mat.NewSymDense(n, nil)

	offset := 0
	for _, b := range blocks {
		size := b.Symmetric()
		for i := 0; i < size; i++ {
			for j := i; j < size; j++ {
				d.SetSym(offset+i, offset+j, b.At(i, j))
			}
		}
		offset += size
	}

	return d
}

// RowMeans returns a slice containing the mean of each row of m.
// With samples stored in columns this is the per-variable sample mean.
// It panics if m is nil.
func RowMeans(m *mat.Dense) []float64 {
	rows, cols := m.Dims()
	means := make([]float64, rows)

	for i := 0; i < rows; i++ {
		means[i] = floats.Sum(m.RawRowView(i)) / float64(cols)
	}

	return means
}

// ColMeans returns a slice containing the mean of each column of m.
// It panics if m is nil.
func ColMeans(m *mat.Dense) []float64 {
	rows, cols := m.Dims()
	means := make([]float64, cols)

	for i := 0; i < cols; i++ {
		means[i] = mat.Sum(m.ColView(i)) / float64(rows)
	}

	return means
}
