/*
Package sparse implements sparse float matrices for expression data with
mostly-zero entries.

Matrices are assembled in COO form (a.k.a. triplet-encoding) and compiled
into CSR form for arithmetic.

   https://medium.com/@jmaxg3/101-ways-to-store-a-sparse-matrix-c7f2bf15a229
   https://www.coin-or.org/Ipopt/documentation/node38.html


License

Governed by a 3-Clause BSD license. License file may be found in the root
folder of this module.

*/
package sparse

import (
	"fmt"

	"github.com/ternlang/tern"
	"github.com/ternlang/tern/tensor"
)

// COO is a sparse matrix under construction. Construct with
//
//     M := NewCOO(10, 10)
//
// Now
//
//     M.Set(2, 3, 4.5)       // set a value
//     M.Add(2, 3, 0.5)       // accumulate onto an entry
//     v := M.At(2, 3)        // returns 5.0
//     v = M.At(9, 9)         // returns 0, the implicit empty value
//
// Entries cannot be deleted, but may be overwritten with zero. Space for
// zero entries is not re-claimed until Compile.
type COO struct {
	values []triplet
	rowcnt int
	colcnt int
}

// Triplet values to store
type triplet struct {
	row, col int
	value    float64
}

// NewCOO creates an empty sparse matrix of size m x n.
func NewCOO(m, n int) *COO {
	return &COO{
		values: []triplet{},
		rowcnt: m,
		colcnt: n,
	}
}

// M returns the row count.
func (m *COO) M() int {
	return m.rowcnt
}

// N returns the column count.
func (m *COO) N() int {
	return m.colcnt
}

// ValueCount returns the number of stored entries, zeros included.
func (m *COO) ValueCount() int {
	return len(m.values)
}

// At returns the value at position (i,j), or 0.
func (m *COO) At(i, j int) float64 {
	for _, t := range m.values {
		if !t.storedLeftOf(i, j) { // have skipped all lesser indices
			if t.storedAt(i, j) {
				return t.value
			}
			break
		}
	}
	return 0
}

// Set a value in the matrix at position (i,j).
func (m *COO) Set(i, j int, value float64) *COO {
	return m.setOrAdd(i, j, value, false)
}

// Add accumulates a value onto position (i,j).
func (m *COO) Add(i, j int, value float64) *COO {
	return m.setOrAdd(i, j, value, true)
}

func (m *COO) setOrAdd(i, j int, value float64, doAdd bool) *COO {
	at := 0 // will be position of new value
	for k, t := range m.values {
		if !t.storedLeftOf(i, j) { // have skipped all lesser indices
			if t.storedAt(i, j) { // value already present
				if doAdd {
					m.values[k].value += value
				} else {
					m.values[k].value = value
				}
				return m // and done
			}
			break // no old value present
		}
		at++
	}
	tnew := triplet{row: i, col: j, value: value}
	// the following 3 lines have to work for at being the right edge or not
	m.values = append(m.values, tnew)    // make room
	copy(m.values[at+1:], m.values[at:]) // copy remainder values one index to right
	m.values[at] = tnew                  // if not append-case: insert new triplet
	return m
}

func (t *triplet) storedLeftOf(i, j int) bool {
	return t.row < i || t.row == i && t.col < j
}

func (t *triplet) storedAt(i, j int) bool {
	return (t.row == i && t.col == j)
}

// FromDense builds a COO matrix from a rank-2 dense tensor, storing the
// nonzero entries.
func FromDense(d *tensor.Dense) (*COO, error) {
	shape := d.Shape()
	if shape.Rank() != 2 {
		return nil, fmt.Errorf("sparse: need a rank-2 tensor, got shape %s", shape)
	}
	m := NewCOO(shape[0], shape[1])
	for i := 0; i < shape[0]; i++ {
		for j := 0; j < shape[1]; j++ {
			if v := d.At(i, j); v != 0 {
				m.Set(i, j, v)
			}
		}
	}
	return m, nil
}

// CSR is a compiled sparse matrix in compressed-sparse-row form. It is
// immutable; arithmetic lives here rather than on COO.
type CSR struct {
	rowptr []int
	cols   []int
	data   []float64
	rowcnt int
	colcnt int
}

// Compile converts the matrix to CSR form. Triplets are already held in
// row-major order, so compilation is a single pass; explicit zeros are
// dropped.
func (m *COO) Compile() *CSR {
	c := &CSR{
		rowptr: make([]int, m.rowcnt+1),
		rowcnt: m.rowcnt,
		colcnt: m.colcnt,
	}
	row := 0
	for _, t := range m.values {
		if t.value == 0 {
			continue
		}
		for row < t.row {
			row++
			c.rowptr[row] = len(c.data)
		}
		c.cols = append(c.cols, t.col)
		c.data = append(c.data, t.value)
	}
	for row < m.rowcnt {
		row++
		c.rowptr[row] = len(c.data)
	}
	return c
}

// M returns the row count.
func (c *CSR) M() int {
	return c.rowcnt
}

// N returns the column count.
func (c *CSR) N() int {
	return c.colcnt
}

// NNZ returns the number of nonzero entries.
func (c *CSR) NNZ() int {
	return len(c.data)
}

// At returns the value at position (i,j), or 0.
func (c *CSR) At(i, j int) float64 {
	for k := c.rowptr[i]; k < c.rowptr[i+1]; k++ {
		if c.cols[k] == j {
			return c.data[k]
		}
	}
	return 0
}

// MulVec computes the matrix-vector product c·x.
func (c *CSR) MulVec(x []float64) ([]float64, error) {
	if len(x) != c.colcnt {
		return nil, fmt.Errorf("sparse: vector length %d does not match %d columns", len(x), c.colcnt)
	}
	y := make([]float64, c.rowcnt)
	for i := 0; i < c.rowcnt; i++ {
		var acc float64
		for k := c.rowptr[i]; k < c.rowptr[i+1]; k++ {
			acc += c.data[k] * x[c.cols[k]]
		}
		y[i] = acc
	}
	return y, nil
}

// Dense expands the matrix into a rank-2 float64 tensor.
func (c *CSR) Dense() *tensor.Dense {
	d := tensor.New(tern.Float64, tern.Shape{c.rowcnt, c.colcnt})
	for i := 0; i < c.rowcnt; i++ {
		for k := c.rowptr[i]; k < c.rowptr[i+1]; k++ {
			d.SetAt(c.data[k], i, c.cols[k])
		}
	}
	return d
}
