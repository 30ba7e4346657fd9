package ops

import (
	"fmt"

	"github.com/ternlang/tern"
	"github.com/ternlang/tern/graph"
	"github.com/ternlang/tern/tensor"
	"golang.org/x/exp/constraints"
)

// 2-D correlation over batched, multi-channel images. Input layout is
// (batch, channels, height, width), filter layout is (count, channels,
// height, width). Correlation, not convolution: filters are not flipped.

// BorderMode controls how image borders are handled.
type BorderMode struct {
	kind     borderKind
	padH     int
	padW     int
}

type borderKind int

const (
	borderValid borderKind = iota
	borderFull
	borderHalf
	borderPad
)

// Valid keeps only fully overlapping positions.
func Valid() BorderMode { return BorderMode{kind: borderValid} }

// Full keeps every position with at least one overlapping cell.
func Full() BorderMode { return BorderMode{kind: borderFull} }

// Half pads by half the (dilated) filter size, giving same-size output for
// odd filters at unit stride.
func Half() BorderMode { return BorderMode{kind: borderHalf} }

// Pad pads explicitly by h rows and w columns on each side.
func Pad(h, w int) BorderMode { return BorderMode{kind: borderPad, padH: h, padW: w} }

func (m BorderMode) String() string {
	switch m.kind {
	case borderValid:
		return "valid"
	case borderFull:
		return "full"
	case borderHalf:
		return "half"
	}
	return fmt.Sprintf("pad(%d,%d)", m.padH, m.padW)
}

// padding resolves the pad amounts for a dilated filter extent.
func (m BorderMode) padding(kH, kW, dilH, dilW int) (int, int) {
	dkH := (kH-1)*dilH + 1
	dkW := (kW-1)*dilW + 1
	switch m.kind {
	case borderValid:
		return 0, 0
	case borderFull:
		return dkH - 1, dkW - 1
	case borderHalf:
		return dkH / 2, dkW / 2
	}
	return m.padH, m.padW
}

func corrOutDim(in, k, pad, sub, dil int) int {
	return (in+2*pad-((k-1)*dil+1))/sub + 1
}

// --- Forward op ------------------------------------------------------------

type corr2D struct {
	mode       BorderMode
	subH, subW int
	dilH, dilW int
}

var _ graph.Differentiable = (*corr2D)(nil)

func (op *corr2D) Name() string {
	return fmt.Sprintf("corr2d{%s,sub=(%d,%d),dil=(%d,%d)}",
		op.mode, op.subH, op.subW, op.dilH, op.dilW)
}

func (op *corr2D) MakeNode(inputs ...*graph.Variable) (*graph.Apply, error) {
	if len(inputs) != 2 {
		return nil, fmt.Errorf("ops: corr2d takes 2 inputs, got %d", len(inputs))
	}
	in, f := inputs[0], inputs[1]
	if in.DType != f.DType {
		return nil, fmt.Errorf("ops: corr2d dtype mismatch %s vs %s", in.DType, f.DType)
	}
	if !in.DType.IsFloat() {
		return nil, fmt.Errorf("ops: corr2d undefined for %s", in.DType)
	}
	if in.Shape.Rank() != 4 || f.Shape.Rank() != 4 {
		return nil, fmt.Errorf("ops: corr2d needs rank-4 inputs, got %s and %s", in.Shape, f.Shape)
	}
	shape := tern.UnknownShape(4)
	shape[0] = in.Shape[0]
	shape[1] = f.Shape[0]
	if in.Shape[2] != tern.UnknownDim && f.Shape[2] != tern.UnknownDim &&
		in.Shape[3] != tern.UnknownDim && f.Shape[3] != tern.UnknownDim {
		pH, pW := op.mode.padding(f.Shape[2], f.Shape[3], op.dilH, op.dilW)
		shape[2] = corrOutDim(in.Shape[2], f.Shape[2], pH, op.subH, op.dilH)
		shape[3] = corrOutDim(in.Shape[3], f.Shape[3], pW, op.subW, op.dilW)
	}
	out := &graph.Variable{DType: in.DType, Shape: shape}
	return graph.NewApply(op, inputs, []*graph.Variable{out}), nil
}

func (op *corr2D) Perform(node *graph.Apply, inputs []*tensor.Dense) ([]*tensor.Dense, error) {
	in, f := inputs[0], inputs[1]
	is, fs := in.Shape(), f.Shape()
	if is.Rank() != 4 || fs.Rank() != 4 {
		return nil, fmt.Errorf("ops: corr2d runtime rank mismatch: %s, %s", is, fs)
	}
	if is[1] != fs[1] {
		return nil, fmt.Errorf("ops: corr2d channel mismatch: %s vs %s", is, fs)
	}
	pH, pW := op.mode.padding(fs[2], fs[3], op.dilH, op.dilW)
	oH := corrOutDim(is[2], fs[2], pH, op.subH, op.dilH)
	oW := corrOutDim(is[3], fs[3], pW, op.subW, op.dilW)
	if oH <= 0 || oW <= 0 {
		return nil, fmt.Errorf("ops: corr2d output would be empty for image %s, filter %s, mode %s",
			is, fs, op.mode)
	}
	out := tensor.New(in.DType(), tern.Shape{is[0], fs[0], oH, oW})
	geom := corrGeom{
		batch: is[0], chans: is[1], inH: is[2], inW: is[3],
		count: fs[0], kH: fs[2], kW: fs[3],
		outH: oH, outW: oW,
		padH: pH, padW: pW,
		subH: op.subH, subW: op.subW, dilH: op.dilH, dilW: op.dilW,
	}
	switch in.DType() {
	case tern.Float64:
		corrFwd(out.Float64s(), in.Float64s(), f.Float64s(), geom)
	case tern.Float32:
		corrFwd(out.Float32s(), in.Float32s(), f.Float32s(), geom)
	}
	return []*tensor.Dense{out}, nil
}

func (op *corr2D) Grad(node *graph.Apply, g *graph.Variable) ([]*graph.Variable, error) {
	if op.subH != 1 || op.subW != 1 || op.dilH != 1 || op.dilW != 1 {
		return nil, fmt.Errorf("ops: corr2d gradient not implemented for subsample (%d,%d), dilation (%d,%d)",
			op.subH, op.subW, op.dilH, op.dilW)
	}
	in, f := node.Inputs[0], node.Inputs[1]
	gin, err := apply1(&corr2DGradInputs{mode: op.mode}, f, g)
	if err != nil {
		return nil, err
	}
	gf, err := apply1(&corr2DGradWeights{mode: op.mode}, in, g, f)
	if err != nil {
		return nil, err
	}
	return []*graph.Variable{gin, gf}, nil
}

// Corr2D builds the 2-D correlation of input with filters at unit stride
// and dilation.
func Corr2D(input, filters *graph.Variable, mode BorderMode) (*graph.Variable, error) {
	return Corr2DStrided(input, filters, mode, [2]int{1, 1}, [2]int{1, 1})
}

// Corr2DStrided builds a subsampled, dilated 2-D correlation.
func Corr2DStrided(input, filters *graph.Variable, mode BorderMode,
	subsample, dilation [2]int) (*graph.Variable, error) {
	if subsample[0] < 1 || subsample[1] < 1 || dilation[0] < 1 || dilation[1] < 1 {
		return nil, fmt.Errorf("ops: corr2d subsample/dilation must be >= 1")
	}
	op := &corr2D{
		mode: mode,
		subH: subsample[0], subW: subsample[1],
		dilH: dilation[0], dilW: dilation[1],
	}
	return apply1(op, input, filters)
}

// --- Kernels ---------------------------------------------------------------

type corrGeom struct {
	batch, chans, inH, inW int
	count, kH, kW          int
	outH, outW             int
	padH, padW             int
	subH, subW, dilH, dilW int
}

func corrFwd[T constraints.Float](out, in, f []T, g corrGeom) {
	for b := 0; b < g.batch; b++ {
		for k := 0; k < g.count; k++ {
			for oy := 0; oy < g.outH; oy++ {
				for ox := 0; ox < g.outW; ox++ {
					var acc T
					for c := 0; c < g.chans; c++ {
						for ky := 0; ky < g.kH; ky++ {
							iy := oy*g.subH - g.padH + ky*g.dilH
							if iy < 0 || iy >= g.inH {
								continue
							}
							for kx := 0; kx < g.kW; kx++ {
								ix := ox*g.subW - g.padW + kx*g.dilW
								if ix < 0 || ix >= g.inW {
									continue
								}
								acc += in[((b*g.chans+c)*g.inH+iy)*g.inW+ix] *
									f[((k*g.chans+c)*g.kH+ky)*g.kW+kx]
							}
						}
					}
					out[((b*g.count+k)*g.outH+oy)*g.outW+ox] = acc
				}
			}
		}
	}
}

// corrGradIn scatters output gradients back onto the input image. Unit
// stride and dilation only.
func corrGradIn[T constraints.Float](gin, f, gout []T, g corrGeom) {
	for b := 0; b < g.batch; b++ {
		for k := 0; k < g.count; k++ {
			for oy := 0; oy < g.outH; oy++ {
				for ox := 0; ox < g.outW; ox++ {
					gv := gout[((b*g.count+k)*g.outH+oy)*g.outW+ox]
					if gv == 0 {
						continue
					}
					for c := 0; c < g.chans; c++ {
						for ky := 0; ky < g.kH; ky++ {
							iy := oy - g.padH + ky
							if iy < 0 || iy >= g.inH {
								continue
							}
							for kx := 0; kx < g.kW; kx++ {
								ix := ox - g.padW + kx
								if ix < 0 || ix >= g.inW {
									continue
								}
								gin[((b*g.chans+c)*g.inH+iy)*g.inW+ix] +=
									gv * f[((k*g.chans+c)*g.kH+ky)*g.kW+kx]
							}
						}
					}
				}
			}
		}
	}
}

// corrGradW accumulates output gradients into the filter bank. Unit stride
// and dilation only.
func corrGradW[T constraints.Float](gf, in, gout []T, g corrGeom) {
	for b := 0; b < g.batch; b++ {
		for k := 0; k < g.count; k++ {
			for oy := 0; oy < g.outH; oy++ {
				for ox := 0; ox < g.outW; ox++ {
					gv := gout[((b*g.count+k)*g.outH+oy)*g.outW+ox]
					if gv == 0 {
						continue
					}
					for c := 0; c < g.chans; c++ {
						for ky := 0; ky < g.kH; ky++ {
							iy := oy - g.padH + ky
							if iy < 0 || iy >= g.inH {
								continue
							}
							for kx := 0; kx < g.kW; kx++ {
								ix := ox - g.padW + kx
								if ix < 0 || ix >= g.inW {
									continue
								}
								gf[((k*g.chans+c)*g.kH+ky)*g.kW+kx] +=
									gv * in[((b*g.chans+c)*g.inH+iy)*g.inW+ix]
							}
						}
					}
				}
			}
		}
	}
}

// --- Gradient ops ----------------------------------------------------------

type corr2DGradInputs struct {
	mode BorderMode
}

func (op *corr2DGradInputs) Name() string {
	return fmt.Sprintf("corr2d_grad_inputs{%s}", op.mode)
}

func (op *corr2DGradInputs) MakeNode(inputs ...*graph.Variable) (*graph.Apply, error) {
	if len(inputs) != 2 {
		return nil, fmt.Errorf("ops: %s takes 2 inputs, got %d", op.Name(), len(inputs))
	}
	f, gout := inputs[0], inputs[1]
	if f.Shape.Rank() != 4 || gout.Shape.Rank() != 4 {
		return nil, fmt.Errorf("ops: %s needs rank-4 inputs", op.Name())
	}
	shape := tern.UnknownShape(4)
	shape[0] = gout.Shape[0]
	shape[1] = f.Shape[1]
	if f.Shape[2] != tern.UnknownDim && gout.Shape[2] != tern.UnknownDim &&
		f.Shape[3] != tern.UnknownDim && gout.Shape[3] != tern.UnknownDim {
		pH, pW := op.mode.padding(f.Shape[2], f.Shape[3], 1, 1)
		shape[2] = gout.Shape[2] + f.Shape[2] - 1 - 2*pH
		shape[3] = gout.Shape[3] + f.Shape[3] - 1 - 2*pW
	}
	out := &graph.Variable{DType: gout.DType, Shape: shape}
	return graph.NewApply(op, inputs, []*graph.Variable{out}), nil
}

func (op *corr2DGradInputs) Perform(node *graph.Apply, inputs []*tensor.Dense) ([]*tensor.Dense, error) {
	f, gout := inputs[0], inputs[1]
	fs, gs := f.Shape(), gout.Shape()
	pH, pW := op.mode.padding(fs[2], fs[3], 1, 1)
	inH := gs[2] + fs[2] - 1 - 2*pH
	inW := gs[3] + fs[3] - 1 - 2*pW
	gin := tensor.New(gout.DType(), tern.Shape{gs[0], fs[1], inH, inW})
	geom := corrGeom{
		batch: gs[0], chans: fs[1], inH: inH, inW: inW,
		count: fs[0], kH: fs[2], kW: fs[3],
		outH: gs[2], outW: gs[3],
		padH: pH, padW: pW,
		subH: 1, subW: 1, dilH: 1, dilW: 1,
	}
	switch gout.DType() {
	case tern.Float64:
		corrGradIn(gin.Float64s(), f.Float64s(), gout.Float64s(), geom)
	case tern.Float32:
		corrGradIn(gin.Float32s(), f.Float32s(), gout.Float32s(), geom)
	default:
		return nil, fmt.Errorf("ops: %s undefined for %s", op.Name(), gout.DType())
	}
	return []*tensor.Dense{gin}, nil
}

type corr2DGradWeights struct {
	mode BorderMode
}

func (op *corr2DGradWeights) Name() string {
	return fmt.Sprintf("corr2d_grad_weights{%s}", op.mode)
}

// MakeNode takes the image, the output gradient and the original filter
// bank; the filters contribute only their runtime shape.
func (op *corr2DGradWeights) MakeNode(inputs ...*graph.Variable) (*graph.Apply, error) {
	if len(inputs) != 3 {
		return nil, fmt.Errorf("ops: %s takes 3 inputs, got %d", op.Name(), len(inputs))
	}
	in, gout, f := inputs[0], inputs[1], inputs[2]
	if in.Shape.Rank() != 4 || gout.Shape.Rank() != 4 || f.Shape.Rank() != 4 {
		return nil, fmt.Errorf("ops: %s needs rank-4 inputs", op.Name())
	}
	out := &graph.Variable{DType: gout.DType, Shape: f.Shape.Clone()}
	return graph.NewApply(op, inputs, []*graph.Variable{out}), nil
}

func (op *corr2DGradWeights) Perform(node *graph.Apply, inputs []*tensor.Dense) ([]*tensor.Dense, error) {
	in, gout, f := inputs[0], inputs[1], inputs[2]
	is, gs, fs := in.Shape(), gout.Shape(), f.Shape()
	kH, kW := fs[2], fs[3]
	pH, pW := op.mode.padding(kH, kW, 1, 1)
	gf := tensor.New(gout.DType(), tern.Shape{gs[1], is[1], kH, kW})
	geom := corrGeom{
		batch: is[0], chans: is[1], inH: is[2], inW: is[3],
		count: gs[1], kH: kH, kW: kW,
		outH: gs[2], outW: gs[3],
		padH: pH, padW: pW,
		subH: 1, subW: 1, dilH: 1, dilW: 1,
	}
	switch gout.DType() {
	case tern.Float64:
		corrGradW(gf.Float64s(), in.Float64s(), gout.Float64s(), geom)
	case tern.Float32:
		corrGradW(gf.Float32s(), in.Float32s(), gout.Float32s(), geom)
	default:
		return nil, fmt.Errorf("ops: %s undefined for %s", op.Name(), gout.DType())
	}
	return []*tensor.Dense{gf}, nil
}
