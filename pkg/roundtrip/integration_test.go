package roundtrip

import (
	"math"
	"path/filepath"
	"testing"

	"diffvolto2d/internal/models"
	"diffvolto2d/pkg/beam"
	"diffvolto2d/pkg/detector"
	"diffvolto2d/pkg/diffraction"
	"diffvolto2d/pkg/geometry"
	"diffvolto2d/pkg/particle"
)

// TestFullPipelineVerification runs the complete sequence at reduced size:
// synthesize a volume from a small synthetic structure, sample patterns at
// the two canonical orientations, persist to HDF5, reload, and run both
// verification checks with the production sampler.
func TestFullPipelineVerification(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	// Small synthetic structure: a bent triatomic
	p, err := particle.NewParticle([]float64{
		0, 0, 0,
		1.2, 0.7, 0,
		-1.2, 0.7, 0,
	}, []string{"O", "C", "C"})
	if err != nil {
		t.Fatalf("NewParticle failed: %v", err)
	}

	// Small detector: one panel is enough to exercise the geometry path
	b, err := beam.NewBeam(4600)
	if err != nil {
		t.Fatalf("NewBeam failed: %v", err)
	}
	geom := &detector.Geometry{
		PixelSize:    110e-6,
		Distance:     0.1,
		PanelPixelsX: 16,
		PanelPixelsY: 16,
		Panels: []detector.Panel{{
			Origin:   [3]float64{-8 * 110e-6, -8 * 110e-6, 0},
			FastAxis: [3]float64{1, 0, 0},
			SlowAxis: [3]float64{0, 1, 0},
		}},
	}
	det, err := detector.NewDetector(geom, b)
	if err != nil {
		t.Fatalf("NewDetector failed: %v", err)
	}

	// Reduced mesh size keeps the direct summation fast
	const meshSize = 17
	voxelLength := geometry.MeshVoxelLength(meshSize, det.QMax())
	mesh, err := geometry.NewReciprocalMesh(meshSize, voxelLength)
	if err != nil {
		t.Fatalf("NewReciprocalMesh failed: %v", err)
	}

	vol, err := diffraction.SynthesizeVolume(p, mesh, 2)
	if err != nil {
		t.Fatalf("SynthesizeVolume failed: %v", err)
	}

	s := 1 / math.Sqrt(2)
	orients := models.NewOrientationStack(2)
	orients.SetQuaternion(0, [4]float64{s, s, 0, 0})
	orients.SetQuaternion(1, [4]float64{-s, 0, s, 0})

	sampler := &diffraction.Sampler{Workers: 2}
	patterns, err := sampler.Sample(vol, voxelLength, det.PixelMomentum(), orients, det.PatternShape())
	if err != nil {
		t.Fatalf("Sample failed: %v", err)
	}

	if patterns.Count != 2 {
		t.Fatalf("got %d patterns, want one per orientation", patterns.Count)
	}

	h := NewHarness(filepath.Join(t.TempDir(), "verify.h5"))
	if err := h.Run(sampler, vol, patterns, orients, det.PixelMomentum()); err != nil {
		t.Fatalf("verification run failed: %v", err)
	}
}
