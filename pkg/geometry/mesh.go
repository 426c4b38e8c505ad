package geometry

import (
	"fmt"
)

// ReciprocalMesh is a regular 3D grid of momentum-transfer sample points
// covering a cubic region of reciprocal space, centered on the origin.
type ReciprocalMesh struct {
	// N is the number of samples along each axis
	N int

	// VoxelLength is the spacing between adjacent samples in
	// inverse Angstrom
	VoxelLength float64

	// Points holds the sample coordinates as a flat array in row-major
	// order, 3 components per point, indexed (ix*N*N + iy*N + iz)*3
	Points []float64
}

// NewReciprocalMesh builds a symmetric cubic mesh of n samples per axis
// with the given voxel spacing. The mesh is symmetric about the origin:
// sample i along an axis sits at (i - (n-1)/2) * voxelLength, so the
// center voxel of an odd-sized mesh lies exactly at q = 0.
func NewReciprocalMesh(n int, voxelLength float64) (*ReciprocalMesh, error) {
	if n < 2 {
		return nil, fmt.Errorf("mesh size must be at least 2, got %d", n)
	}
	if voxelLength <= 0 {
		return nil, fmt.Errorf("voxel length must be positive, got %g", voxelLength)
	}

	shift := float64(n-1) / 2
	points := make([]float64, n*n*n*3)

	idx := 0
	for ix := 0; ix < n; ix++ {
		qx := (float64(ix) - shift) * voxelLength
		for iy := 0; iy < n; iy++ {
			qy := (float64(iy) - shift) * voxelLength
			for iz := 0; iz < n; iz++ {
				qz := (float64(iz) - shift) * voxelLength
				points[idx] = qx
				points[idx+1] = qy
				points[idx+2] = qz
				idx += 3
			}
		}
	}

	return &ReciprocalMesh{N: n, VoxelLength: voxelLength, Points: points}, nil
}

// Point returns the coordinates of mesh sample (ix, iy, iz).
func (m *ReciprocalMesh) Point(ix, iy, iz int) [3]float64 {
	i := (ix*m.N*m.N + iy*m.N + iz) * 3
	return [3]float64{m.Points[i], m.Points[i+1], m.Points[i+2]}
}

// MeshVoxelLength derives the voxel spacing needed for an n-sample mesh to
// cover momentum transfers up to qMax along each axis.
func MeshVoxelLength(n int, qMax float64) float64 {
	return 2 * qMax / float64(n-1)
}

// RotatePixels rotates a flat array of 3D pixel positions (3 components
// per pixel) by the given rotation matrix, returning a new array.
// The input is left untouched so a detector's reference coordinates can
// be reused across orientations.
func RotatePixels(rot Rotation, positions []float64) []float64 {
	rotated := make([]float64, len(positions))
	for i := 0; i+2 < len(positions); i += 3 {
		v := rot.Apply([3]float64{positions[i], positions[i+1], positions[i+2]})
		rotated[i] = v[0]
		rotated[i+1] = v[1]
		rotated[i+2] = v[2]
	}
	return rotated
}
