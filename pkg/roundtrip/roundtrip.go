// Package roundtrip implements the persistence verification harness: it
// writes the diffraction volume, pattern stack and orientation stack to an
// HDF5 container, reloads them, checks that every array survived the
// write/read cycle within tolerance, and re-derives the patterns from the
// reloaded volume to confirm the slice sampler is a deterministic pure
// function of its inputs.
//
// This is a golden-master regression check, not a general-purpose
// component: there are no retries and no partial-failure semantics. The
// first failing check aborts the run.
package roundtrip

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"diffvolto2d/internal/models"
	"diffvolto2d/pkg/hdf5io"
)

// DefaultTolerance is the relative tolerance for array comparisons.
// Values pass through an on-disk format, so comparisons are approximate
// rather than bit-exact, but HDF5 stores float64 losslessly and the
// tolerance can stay tight.
const DefaultTolerance = 1e-12

// SliceSampler re-derives diffraction patterns from a volume. The
// production implementation is diffraction.Sampler; tests substitute
// stubs.
type SliceSampler interface {
	Sample(vol *models.Volume, voxelLength float64, pixelMomentum []float64,
		orients *models.OrientationStack, shape models.PatternShape) (*models.PatternStack, error)
}

// Harness runs the round-trip verification for one persisted container.
type Harness struct {
	// Path is the location of the HDF5 container
	Path string

	// Tolerance is the relative tolerance for comparisons; zero means
	// DefaultTolerance
	Tolerance float64
}

// NewHarness creates a harness writing to the given path with the default
// tolerance.
func NewHarness(path string) *Harness {
	return &Harness{Path: path, Tolerance: DefaultTolerance}
}

func (h *Harness) tolerance() float64 {
	if h.Tolerance > 0 {
		return h.Tolerance
	}
	return DefaultTolerance
}

// Persist writes the three arrays to the container, overwriting any
// existing file. Failures propagate; no partial-write recovery is
// attempted.
func (h *Harness) Persist(vol *models.Volume, patterns *models.PatternStack, orients *models.OrientationStack) error {
	return hdf5io.Write(h.Path, vol, patterns, orients)
}

// Load reads the three arrays back from the container.
func (h *Harness) Load() (*models.Volume, *models.PatternStack, *models.OrientationStack, error) {
	return hdf5io.Read(h.Path)
}

// VerifyRoundTrip checks that each reloaded array matches its original
// element-wise within the harness tolerance, reporting the first
// mismatch.
func (h *Harness) VerifyRoundTrip(
	vol, rVol *models.Volume,
	patterns, rPatterns *models.PatternStack,
	orients, rOrients *models.OrientationStack) error {

	if rVol.N != vol.N {
		return fmt.Errorf("volume round trip changed mesh size: %d -> %d", vol.N, rVol.N)
	}
	if rPatterns.Shape != patterns.Shape || rPatterns.Count != patterns.Count {
		return fmt.Errorf("pattern round trip changed shape: %d x %+v -> %d x %+v",
			patterns.Count, patterns.Shape, rPatterns.Count, rPatterns.Shape)
	}
	if rOrients.Count != orients.Count {
		return fmt.Errorf("orientation round trip changed count: %d -> %d",
			orients.Count, rOrients.Count)
	}

	if err := compare(hdf5io.VolumeDataset, vol.Data, rVol.Data, h.tolerance()); err != nil {
		return err
	}
	if err := compare(hdf5io.PatternsDataset, patterns.Data, rPatterns.Data, h.tolerance()); err != nil {
		return err
	}
	return compare(hdf5io.OrientationsDataset, orients.Data, rOrients.Data, h.tolerance())
}

// VerifyResampleDeterminism re-invokes the sampler on the reloaded volume
// and orientations and checks the result against the originally computed
// pattern stack. This fails if any input lost precision in storage; the
// orientations are the numerically sensitive ones.
func (h *Harness) VerifyResampleDeterminism(sampler SliceSampler,
	rVol *models.Volume, pixelMomentum []float64,
	rOrients *models.OrientationStack, original *models.PatternStack) error {

	if rOrients.Count != original.Count {
		return fmt.Errorf("reloaded orientation count %d does not match %d patterns",
			rOrients.Count, original.Count)
	}

	resampled, err := sampler.Sample(rVol, rVol.VoxelLength, pixelMomentum, rOrients, original.Shape)
	if err != nil {
		return fmt.Errorf("resampling the reloaded volume failed: %v", err)
	}
	if resampled.Count != original.Count {
		return fmt.Errorf("resampling produced %d patterns, want %d", resampled.Count, original.Count)
	}

	return compare("resampled "+hdf5io.PatternsDataset, original.Data, resampled.Data, h.tolerance())
}

// Run executes the complete verification sequence: persist, reload,
// round-trip comparison, then the resample-determinism check. The first
// failure aborts; on success it prints a short statistical summary of the
// verified pattern stack.
func (h *Harness) Run(sampler SliceSampler, vol *models.Volume,
	patterns *models.PatternStack, orients *models.OrientationStack,
	pixelMomentum []float64) error {

	fmt.Printf("Writing %s...\n", h.Path)
	if err := h.Persist(vol, patterns, orients); err != nil {
		return fmt.Errorf("persist failed: %v", err)
	}

	fmt.Printf("Reloading %s...\n", h.Path)
	rVol, rPatterns, rOrients, err := h.Load()
	if err != nil {
		return fmt.Errorf("load failed: %v", err)
	}

	fmt.Println("Checking write/read round trip...")
	if err := h.VerifyRoundTrip(vol, rVol, patterns, rPatterns, orients, rOrients); err != nil {
		return fmt.Errorf("round-trip check failed: %v", err)
	}

	fmt.Println("Checking resample determinism on reloaded data...")
	if err := h.VerifyResampleDeterminism(sampler, rVol, pixelMomentum, rOrients, patterns); err != nil {
		return fmt.Errorf("resample determinism check failed: %v", err)
	}

	mean, std := stat.MeanStdDev(patterns.Data, nil)
	fmt.Printf("All checks passed: %d patterns verified (mean intensity %.6g, stddev %.6g)\n",
		patterns.Count, mean, std)

	return nil
}

// compare checks two arrays element-wise within an absolute-or-relative
// tolerance and reports the first mismatching index.
func compare(name string, want, got []float64, tol float64) error {
	if len(want) != len(got) {
		return fmt.Errorf("dataset %s changed length: %d -> %d", name, len(want), len(got))
	}
	if floats.EqualApprox(want, got, tol) {
		return nil
	}

	// Locate the first offending element for the error message
	for i := range want {
		if !floats.EqualWithinAbsOrRel(want[i], got[i], tol, tol) {
			return fmt.Errorf("dataset %s differs at index %d: %v != %v (|delta| = %g)",
				name, i, want[i], got[i], math.Abs(want[i]-got[i]))
		}
	}
	return fmt.Errorf("dataset %s differs", name)
}
