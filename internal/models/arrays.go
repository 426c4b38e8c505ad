package models

import (
	"fmt"
)

// Volume represents a dense 3D diffraction intensity volume sampled on a
// symmetric cubic reciprocal-space mesh. The volume is immutable once
// synthesized: slicing operations only ever read from Data.
type Volume struct {
	// Data is the 3D volume data as a 1D array in row-major order,
	// indexed as ix*N*N + iy*N + iz
	Data []float64

	// N is the number of voxels along each axis
	N int

	// VoxelLength is the reciprocal-space spacing between adjacent
	// voxel centers, in inverse Angstrom
	VoxelLength float64
}

// NewVolume allocates a zeroed n x n x n volume with the given voxel spacing.
func NewVolume(n int, voxelLength float64) *Volume {
	return &Volume{
		Data:        make([]float64, n*n*n),
		N:           n,
		VoxelLength: voxelLength,
	}
}

// At returns the intensity at voxel (ix, iy, iz) without bounds checking.
func (v *Volume) At(ix, iy, iz int) float64 {
	return v.Data[ix*v.N*v.N+iy*v.N+iz]
}

// Set assigns the intensity at voxel (ix, iy, iz) without bounds checking.
func (v *Volume) Set(ix, iy, iz int, value float64) {
	v.Data[ix*v.N*v.N+iy*v.N+iz] = value
}

// PatternShape describes the pixel layout of one diffraction pattern:
// a stack of detector panels, each with a fixed 2D pixel grid.
type PatternShape struct {
	// Panels is the number of detector panels
	Panels int

	// X and Y are the per-panel pixel counts along the fast and slow axes
	X int
	Y int
}

// PixelCount returns the total number of pixels in one pattern.
func (s PatternShape) PixelCount() int {
	return s.Panels * s.X * s.Y
}

// PatternStack is an ordered sequence of 2D diffraction patterns, one per
// orientation, stored as a flat array indexed
// [pattern][panel][x][y] in row-major order.
type PatternStack struct {
	// Data is the flattened pattern data
	Data []float64

	// Count is the number of patterns in the stack
	Count int

	// Shape is the per-pattern pixel layout
	Shape PatternShape
}

// NewPatternStack allocates a zeroed stack of count patterns with the
// given shape.
func NewPatternStack(count int, shape PatternShape) *PatternStack {
	return &PatternStack{
		Data:  make([]float64, count*shape.PixelCount()),
		Count: count,
		Shape: shape,
	}
}

// Pattern returns the i-th pattern as a slice view into the stack.
// The view aliases the underlying data; it is not a copy.
func (p *PatternStack) Pattern(i int) []float64 {
	n := p.Shape.PixelCount()
	return p.Data[i*n : (i+1)*n]
}

// At returns the intensity of pixel (x, y) on the given panel of the
// i-th pattern.
func (p *PatternStack) At(i, panel, x, y int) float64 {
	return p.Data[((i*p.Shape.Panels+panel)*p.Shape.X+x)*p.Shape.Y+y]
}

// OrientationStack is an ordered sequence of unit quaternions, one per
// sampled pattern, stored scalar-first at full float64 precision.
//
// The precision matters: re-deriving patterns from a reloaded volume only
// reproduces the originals if the orientations survive persistence exactly,
// so the stack must never be downcast to a narrower float type.
type OrientationStack struct {
	// Data is the flattened quaternion data, 4 components per entry
	Data []float64

	// Count is the number of orientations
	Count int
}

// NewOrientationStack allocates a zeroed stack of count quaternions.
func NewOrientationStack(count int) *OrientationStack {
	return &OrientationStack{
		Data:  make([]float64, count*4),
		Count: count,
	}
}

// Quaternion returns the i-th quaternion as a 4-element array.
func (o *OrientationStack) Quaternion(i int) [4]float64 {
	return [4]float64{o.Data[i*4], o.Data[i*4+1], o.Data[i*4+2], o.Data[i*4+3]}
}

// SetQuaternion assigns the i-th quaternion.
func (o *OrientationStack) SetQuaternion(i int, q [4]float64) {
	copy(o.Data[i*4:i*4+4], q[:])
}

// Validate checks that the three arrays agree on the number of patterns
// and that every flat buffer matches its declared dimensions.
func Validate(vol *Volume, patterns *PatternStack, orients *OrientationStack) error {
	if len(vol.Data) != vol.N*vol.N*vol.N {
		return fmt.Errorf("volume data length %d does not match %d^3", len(vol.Data), vol.N)
	}
	if len(patterns.Data) != patterns.Count*patterns.Shape.PixelCount() {
		return fmt.Errorf("pattern stack length %d does not match %d patterns of %d pixels",
			len(patterns.Data), patterns.Count, patterns.Shape.PixelCount())
	}
	if len(orients.Data) != orients.Count*4 {
		return fmt.Errorf("orientation stack length %d does not match %d quaternions",
			len(orients.Data), orients.Count)
	}
	if patterns.Count != orients.Count {
		return fmt.Errorf("pattern count %d does not match orientation count %d",
			patterns.Count, orients.Count)
	}
	return nil
}
