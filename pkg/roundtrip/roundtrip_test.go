package roundtrip

import (
	"errors"
	"math"
	"math/rand"
	"strings"
	"testing"

	"diffvolto2d/internal/models"
)

// stubSampler derives each pattern pixel deterministically from the
// volume, the voxel length and the orientation, amplifying orientation
// differences so precision loss is visible in the output.
type stubSampler struct{}

func (stubSampler) Sample(vol *models.Volume, voxelLength float64, pixelMomentum []float64,
	orients *models.OrientationStack, shape models.PatternShape) (*models.PatternStack, error) {

	patterns := models.NewPatternStack(orients.Count, shape)
	for l := 0; l < orients.Count; l++ {
		q := orients.Quaternion(l)
		base := 1e6 * (q[0] + 2*q[1] + 3*q[2] + 4*q[3])
		out := patterns.Pattern(l)
		for i := range out {
			out[i] = base + vol.Data[i%len(vol.Data)]*voxelLength + float64(i)
		}
	}
	return patterns, nil
}

func testTriple(t *testing.T) (*models.Volume, *models.PatternStack, *models.OrientationStack) {
	t.Helper()
	rng := rand.New(rand.NewSource(3))

	vol := models.NewVolume(4, 0.1)
	for i := range vol.Data {
		vol.Data[i] = rng.Float64()
	}

	shape := models.PatternShape{Panels: 2, X: 4, Y: 4}
	orients := models.NewOrientationStack(2)
	s := 1 / math.Sqrt(2)
	orients.SetQuaternion(0, [4]float64{s, s, 0, 0})
	orients.SetQuaternion(1, [4]float64{-s, 0, s, 0})

	patterns, err := stubSampler{}.Sample(vol, vol.VoxelLength, nil, orients, shape)
	if err != nil {
		t.Fatalf("stub sampler failed: %v", err)
	}

	return vol, patterns, orients
}

// clone deep-copies the triple so tests can perturb one side.
func clone(vol *models.Volume, patterns *models.PatternStack, orients *models.OrientationStack) (*models.Volume, *models.PatternStack, *models.OrientationStack) {
	v := &models.Volume{Data: append([]float64(nil), vol.Data...), N: vol.N, VoxelLength: vol.VoxelLength}
	p := &models.PatternStack{Data: append([]float64(nil), patterns.Data...), Count: patterns.Count, Shape: patterns.Shape}
	o := &models.OrientationStack{Data: append([]float64(nil), orients.Data...), Count: orients.Count}
	return v, p, o
}

func TestVerifyRoundTripIdentical(t *testing.T) {
	vol, patterns, orients := testTriple(t)
	rVol, rPatterns, rOrients := clone(vol, patterns, orients)

	h := NewHarness("unused.h5")
	if err := h.VerifyRoundTrip(vol, rVol, patterns, rPatterns, orients, rOrients); err != nil {
		t.Errorf("identical arrays failed verification: %v", err)
	}
}

func TestVerifyRoundTripDetectsCorruption(t *testing.T) {
	h := NewHarness("unused.h5")

	t.Run("Volume", func(t *testing.T) {
		vol, patterns, orients := testTriple(t)
		rVol, rPatterns, rOrients := clone(vol, patterns, orients)
		rVol.Data[7] += 1e-3

		err := h.VerifyRoundTrip(vol, rVol, patterns, rPatterns, orients, rOrients)
		if err == nil {
			t.Fatal("expected corruption in the volume to be detected")
		}
		if !strings.Contains(err.Error(), "volume") {
			t.Errorf("error %q does not name the volume dataset", err)
		}
	})

	t.Run("Patterns", func(t *testing.T) {
		vol, patterns, orients := testTriple(t)
		rVol, rPatterns, rOrients := clone(vol, patterns, orients)
		rPatterns.Data[0] *= 1.001

		if err := h.VerifyRoundTrip(vol, rVol, patterns, rPatterns, orients, rOrients); err == nil {
			t.Fatal("expected corruption in the pattern stack to be detected")
		}
	})

	t.Run("Orientations", func(t *testing.T) {
		vol, patterns, orients := testTriple(t)
		rVol, rPatterns, rOrients := clone(vol, patterns, orients)
		rOrients.Data[2] += 1e-6

		if err := h.VerifyRoundTrip(vol, rVol, patterns, rPatterns, orients, rOrients); err == nil {
			t.Fatal("expected corruption in the orientations to be detected")
		}
	})

	t.Run("ShapeChange", func(t *testing.T) {
		vol, patterns, orients := testTriple(t)
		rVol, rPatterns, rOrients := clone(vol, patterns, orients)
		rPatterns.Shape.X = 8
		rPatterns.Shape.Y = 2

		if err := h.VerifyRoundTrip(vol, rVol, patterns, rPatterns, orients, rOrients); err == nil {
			t.Fatal("expected a silent reshape to be detected")
		}
	})
}

func TestVerifyRoundTripTolerance(t *testing.T) {
	vol, patterns, orients := testTriple(t)
	rVol, rPatterns, rOrients := clone(vol, patterns, orients)

	// Perturb within a loose tolerance
	rVol.Data[0] += 1e-9

	strict := &Harness{Path: "unused.h5", Tolerance: 1e-12}
	if err := strict.VerifyRoundTrip(vol, rVol, patterns, rPatterns, orients, rOrients); err == nil {
		t.Error("strict tolerance should reject the perturbation")
	}

	loose := &Harness{Path: "unused.h5", Tolerance: 1e-6}
	if err := loose.VerifyRoundTrip(vol, rVol, patterns, rPatterns, orients, rOrients); err != nil {
		t.Errorf("loose tolerance should accept the perturbation: %v", err)
	}
}

func TestVerifyResampleDeterminism(t *testing.T) {
	vol, patterns, orients := testTriple(t)
	h := NewHarness("unused.h5")

	// Unchanged inputs reproduce the original patterns exactly
	if err := h.VerifyResampleDeterminism(stubSampler{}, vol, nil, orients, patterns); err != nil {
		t.Errorf("determinism check failed on identical inputs: %v", err)
	}
}

// haltSampler fails the test if the harness ever invokes it.
type haltSampler struct{ t *testing.T }

func (s haltSampler) Sample(vol *models.Volume, voxelLength float64, pixelMomentum []float64,
	orients *models.OrientationStack, shape models.PatternShape) (*models.PatternStack, error) {

	s.t.Error("sampler invoked despite inconsistent inputs")
	return nil, errors.New("sampler must not run")
}

func TestVerifyResampleRejectsCountMismatchBeforeSampling(t *testing.T) {
	vol, patterns, _ := testTriple(t)
	h := NewHarness("unused.h5")

	// One orientation too many: the check must fail before the expensive
	// resample starts
	extra := models.NewOrientationStack(patterns.Count + 1)
	err := h.VerifyResampleDeterminism(haltSampler{t}, vol, nil, extra, patterns)
	if err == nil {
		t.Fatal("expected mismatched orientation count to be rejected")
	}
	if !strings.Contains(err.Error(), "count") {
		t.Errorf("error %q does not name the count mismatch", err)
	}
}

func TestVerifyResampleDetectsOrientationPrecisionLoss(t *testing.T) {
	vol, patterns, orients := testTriple(t)
	h := NewHarness("unused.h5")

	// Simulate storing orientations at float32 precision; the sampler
	// amplifies the difference well past tolerance
	downcast := models.NewOrientationStack(orients.Count)
	for i, v := range orients.Data {
		downcast.Data[i] = float64(float32(v))
	}

	if err := h.VerifyResampleDeterminism(stubSampler{}, vol, nil, downcast, patterns); err == nil {
		t.Fatal("expected downcast orientations to break resample determinism")
	}
}
