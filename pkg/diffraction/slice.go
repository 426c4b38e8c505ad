package diffraction

import (
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"diffvolto2d/internal/models"
	"diffvolto2d/pkg/geometry"
)

// neighborOffsets enumerates the corners of the voxel cell surrounding an
// interpolation point, in (x, y, z) order.
var neighborOffsets = [8][3]int{
	{0, 0, 0},
	{0, 0, 1},
	{0, 1, 0},
	{0, 1, 1},
	{1, 0, 0},
	{1, 0, 1},
	{1, 1, 0},
	{1, 1, 1},
}

// WeightAndIndex computes, for every pixel position, the indexes of the
// eight surrounding voxels and their trilinear interpolation weights.
//
// Positions are converted to voxel units by dividing by the voxel length
// and shifting by (n-1)/2 so the mesh center maps to the volume center.
// The returned arrays are flat: 8 index triples and 8 weights per pixel.
func WeightAndIndex(pixelPosition []float64, voxelLength float64, n int) (indexes []int, weights []float64) {
	numPixels := len(pixelPosition) / 3
	shift := float64(n-1) / 2

	indexes = make([]int, numPixels*8*3)
	weights = make([]float64, numPixels*8)

	for i := 0; i < numPixels; i++ {
		// Position in voxel units
		vx := pixelPosition[3*i]/voxelLength + shift
		vy := pixelPosition[3*i+1]/voxelLength + shift
		vz := pixelPosition[3*i+2]/voxelLength + shift

		// Nearest voxel at or below the position
		bx, by, bz := floorInt(vx), floorInt(vy), floorInt(vz)

		// Fractional distances to the floor and ceiling corners
		fx, fy, fz := vx-float64(bx), vy-float64(by), vz-float64(bz)
		cx, cy, cz := 1-fx, 1-fy, 1-fz

		wx := [2]float64{cx, fx}
		wy := [2]float64{cy, fy}
		wz := [2]float64{cz, fz}

		for k, off := range neighborOffsets {
			idx := (i*8 + k) * 3
			indexes[idx] = bx + off[0]
			indexes[idx+1] = by + off[1]
			indexes[idx+2] = bz + off[2]
			weights[i*8+k] = wx[off[0]] * wy[off[1]] * wz[off[2]]
		}
	}

	return indexes, weights
}

func floorInt(v float64) int {
	i := int(v)
	if float64(i) > v {
		i--
	}
	return i
}

// TakeSlice gathers one 2D pattern from the volume using precomputed
// neighbor indexes and weights: each pixel is the weighted sum of its
// eight surrounding voxel intensities. Neighbors falling outside the
// volume contribute zero.
func TakeSlice(vol *models.Volume, indexes []int, weights []float64, out []float64) {
	n := vol.N
	for i := range out {
		var sum float64
		for k := 0; k < 8; k++ {
			idx := (i*8 + k) * 3
			ix, iy, iz := indexes[idx], indexes[idx+1], indexes[idx+2]
			if ix < 0 || ix >= n || iy < 0 || iy >= n || iz < 0 || iz >= n {
				continue
			}
			sum += weights[i*8+k] * vol.Data[ix*n*n+iy*n+iz]
		}
		out[i] = sum
	}
}

// Sampler extracts diffraction patterns from a volume at given
// orientations. It is a pure function of its inputs: identical arguments
// always produce identical patterns.
type Sampler struct {
	// Workers bounds the number of orientations processed concurrently;
	// zero or negative means all available cores
	Workers int
}

// Sample extracts one pattern per orientation by rotating the detector's
// reciprocal-space pixel coordinates and interpolating the volume at the
// rotated positions. The pattern order matches the orientation order.
func (s *Sampler) Sample(vol *models.Volume, voxelLength float64, pixelMomentum []float64,
	orientations *models.OrientationStack, shape models.PatternShape) (*models.PatternStack, error) {

	if len(pixelMomentum) != shape.PixelCount()*3 {
		return nil, fmt.Errorf("pixel momentum has %d coordinates, want %d for shape %+v",
			len(pixelMomentum), shape.PixelCount()*3, shape)
	}
	if vol.VoxelLength != voxelLength {
		return nil, fmt.Errorf("voxel length %g does not match volume voxel length %g",
			voxelLength, vol.VoxelLength)
	}

	workers := s.Workers
	if workers < 1 {
		workers = runtime.NumCPU()
	}

	patterns := models.NewPatternStack(orientations.Count, shape)

	var g errgroup.Group
	g.SetLimit(workers)

	for l := 0; l < orientations.Count; l++ {
		l := l
		g.Go(func() error {
			quat := geometry.Quaternion(orientations.Quaternion(l))
			rot := quat.RotationMatrix()

			rotated := geometry.RotatePixels(rot, pixelMomentum)
			indexes, weights := WeightAndIndex(rotated, voxelLength, vol.N)
			TakeSlice(vol, indexes, weights, patterns.Pattern(l))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return patterns, nil
}
