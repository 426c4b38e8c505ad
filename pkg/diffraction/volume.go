// Package diffraction computes 3D diffraction intensity volumes from
// molecular structures and extracts 2D detector patterns from them by
// interpolating rotated planar cuts.
package diffraction

import (
	"fmt"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"

	"diffvolto2d/internal/models"
	"diffvolto2d/pkg/geometry"
	"diffvolto2d/pkg/particle"
)

// SynthesizeVolume evaluates the kinematic diffraction intensity
// I(q) = |sum_j f_j(|q|) * exp(i q . r_j)|^2 at every point of the
// reciprocal mesh and returns the result as a dense volume.
//
// Atoms are grouped by element so each element's form factor is evaluated
// once per mesh point. The mesh planes along the first axis are processed
// in parallel; every voxel is an independent sum, so the result does not
// depend on scheduling.
func SynthesizeVolume(p *particle.Particle, mesh *geometry.ReciprocalMesh, workers int) (*models.Volume, error) {
	if p.NumAtoms() == 0 {
		return nil, fmt.Errorf("particle has no atoms")
	}
	if workers < 1 {
		workers = runtime.NumCPU()
	}

	vol := models.NewVolume(mesh.N, mesh.VoxelLength)
	n := mesh.N

	var g errgroup.Group
	g.SetLimit(workers)

	for ix := 0; ix < n; ix++ {
		ix := ix
		g.Go(func() error {
			for iy := 0; iy < n; iy++ {
				for iz := 0; iz < n; iz++ {
					q := mesh.Point(ix, iy, iz)
					vol.Set(ix, iy, iz, intensityAt(p, q))
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return vol, nil
}

// intensityAt computes |F(q)|^2 for a single momentum transfer by direct
// summation over atoms, accumulating the complex structure factor per
// element before weighting with the form factor.
func intensityAt(p *particle.Particle, q [3]float64) float64 {
	qNorm := math.Sqrt(q[0]*q[0] + q[1]*q[1] + q[2]*q[2])
	factors := p.FormFactors(qNorm)

	// Per-element partial sums of exp(i q . r)
	re := make([]float64, len(factors))
	im := make([]float64, len(factors))

	for i := 0; i < p.NumAtoms(); i++ {
		phase := q[0]*p.Positions[3*i] + q[1]*p.Positions[3*i+1] + q[2]*p.Positions[3*i+2]
		s, c := math.Sincos(phase)
		e := p.ElementIndex[i]
		re[e] += c
		im[e] += s
	}

	var fRe, fIm float64
	for e, f := range factors {
		fRe += f * re[e]
		fIm += f * im[e]
	}

	return fRe*fRe + fIm*fIm
}

// VolumeStats summarizes a synthesized volume for progress reporting.
type VolumeStats struct {
	Min, Max, Mean float64
}

// Stats computes summary statistics over the volume intensities.
func Stats(vol *models.Volume) VolumeStats {
	s := VolumeStats{Min: math.Inf(1), Max: math.Inf(-1)}
	var sum float64
	for _, v := range vol.Data {
		if v < s.Min {
			s.Min = v
		}
		if v > s.Max {
			s.Max = v
		}
		sum += v
	}
	s.Mean = sum / float64(len(vol.Data))
	return s
}
