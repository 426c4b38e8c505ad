package hdf5io

import (
	"math/rand"
	"path/filepath"
	"testing"

	"gonum.org/v1/hdf5"

	"diffvolto2d/internal/models"
)

// testArrays builds a small consistent triple of volume, patterns and
// orientations filled with reproducible pseudo-random values.
func testArrays(t *testing.T) (*models.Volume, *models.PatternStack, *models.OrientationStack) {
	t.Helper()
	rng := rand.New(rand.NewSource(13))

	vol := models.NewVolume(8, 0.05)
	for i := range vol.Data {
		vol.Data[i] = rng.Float64() * 100
	}

	shape := models.PatternShape{Panels: 4, X: 6, Y: 6}
	patterns := models.NewPatternStack(2, shape)
	for i := range patterns.Data {
		patterns.Data[i] = rng.Float64()
	}

	orients := models.NewOrientationStack(2)
	orients.SetQuaternion(0, [4]float64{0.7071067811865476, 0.7071067811865476, 0, 0})
	orients.SetQuaternion(1, [4]float64{-0.7071067811865476, 0, 0.7071067811865476, 0})

	return vol, patterns, orients
}

func TestWriteReadRoundTrip(t *testing.T) {
	vol, patterns, orients := testArrays(t)
	path := filepath.Join(t.TempDir(), "test.h5")

	if err := Write(path, vol, patterns, orients); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	rVol, rPatterns, rOrients, err := Read(path)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}

	if rVol.N != vol.N {
		t.Errorf("reloaded volume size %d, want %d", rVol.N, vol.N)
	}
	if rVol.VoxelLength != vol.VoxelLength {
		t.Errorf("reloaded voxel length %v, want %v", rVol.VoxelLength, vol.VoxelLength)
	}
	for i := range vol.Data {
		if rVol.Data[i] != vol.Data[i] {
			t.Fatalf("volume voxel %d changed: %v != %v", i, rVol.Data[i], vol.Data[i])
		}
	}

	if rPatterns.Count != patterns.Count || rPatterns.Shape != patterns.Shape {
		t.Errorf("reloaded pattern stack %d/%+v, want %d/%+v",
			rPatterns.Count, rPatterns.Shape, patterns.Count, patterns.Shape)
	}
	for i := range patterns.Data {
		if rPatterns.Data[i] != patterns.Data[i] {
			t.Fatalf("pattern pixel %d changed: %v != %v", i, rPatterns.Data[i], patterns.Data[i])
		}
	}

	// Orientations must survive bit-for-bit; any precision loss breaks
	// resample determinism downstream
	for i := range orients.Data {
		if rOrients.Data[i] != orients.Data[i] {
			t.Fatalf("orientation component %d changed: %v != %v",
				i, rOrients.Data[i], orients.Data[i])
		}
	}
}

func TestWriteOverwritesExistingFile(t *testing.T) {
	vol, patterns, orients := testArrays(t)
	path := filepath.Join(t.TempDir(), "test.h5")

	if err := Write(path, vol, patterns, orients); err != nil {
		t.Fatalf("first Write failed: %v", err)
	}

	vol.Data[0] = 12345
	if err := Write(path, vol, patterns, orients); err != nil {
		t.Fatalf("second Write failed: %v", err)
	}

	rVol, _, _, err := Read(path)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if rVol.Data[0] != 12345 {
		t.Errorf("reloaded voxel 0 = %v, want the overwritten value", rVol.Data[0])
	}
}

func TestWriteRejectsInconsistentArrays(t *testing.T) {
	vol, patterns, orients := testArrays(t)
	path := filepath.Join(t.TempDir(), "test.h5")

	// One orientation too few
	bad := models.NewOrientationStack(1)
	bad.SetQuaternion(0, orients.Quaternion(0))

	if err := Write(path, vol, patterns, bad); err == nil {
		t.Error("expected error for mismatched pattern/orientation counts")
	}
}

func TestReadMissingFile(t *testing.T) {
	if _, _, _, err := Read(filepath.Join(t.TempDir(), "absent.h5")); err == nil {
		t.Error("expected error for missing file")
	}
}

// rawDataset names one zero-filled float64 dataset to create directly
// through the bindings, bypassing Write's validation.
type rawDataset struct {
	name string
	dims []uint
}

// writeRawContainer builds an HDF5 file with exactly the given datasets,
// optionally attaching the voxel length attribute to the volume dataset.
func writeRawContainer(t *testing.T, path string, sets []rawDataset, voxelAttr bool) {
	t.Helper()

	file, err := hdf5.CreateFile(path, hdf5.F_ACC_TRUNC)
	if err != nil {
		t.Fatalf("Failed to create HDF5 file: %v", err)
	}
	defer file.Close()

	for _, s := range sets {
		space, err := hdf5.CreateSimpleDataspace(s.dims, s.dims)
		if err != nil {
			t.Fatalf("Failed to create dataspace for %s: %v", s.name, err)
		}
		dset, err := file.CreateDataset(s.name, hdf5.T_NATIVE_DOUBLE, space)
		if err != nil {
			t.Fatalf("Failed to create dataset %s: %v", s.name, err)
		}
		total := uint(1)
		for _, d := range s.dims {
			total *= d
		}
		data := make([]float64, total)
		if err := dset.Write(&data); err != nil {
			t.Fatalf("Failed to write dataset %s: %v", s.name, err)
		}
		dset.Close()
		space.Close()
	}

	if voxelAttr {
		dset, err := file.OpenDataset(VolumeDataset)
		if err != nil {
			t.Fatalf("Failed to reopen volume dataset: %v", err)
		}
		space, err := hdf5.CreateDataspace(hdf5.S_SCALAR)
		if err != nil {
			t.Fatalf("Failed to create attribute dataspace: %v", err)
		}
		attr, err := dset.CreateAttribute(voxelLengthAttr, hdf5.T_NATIVE_DOUBLE, space)
		if err != nil {
			t.Fatalf("Failed to create voxel length attribute: %v", err)
		}
		v := 0.1
		if err := attr.Write(&v, hdf5.T_NATIVE_DOUBLE); err != nil {
			t.Fatalf("Failed to write voxel length attribute: %v", err)
		}
		attr.Close()
		space.Close()
		dset.Close()
	}
}

func TestReadRejectsMalformedContainer(t *testing.T) {
	volDims := []uint{4, 4, 4}
	patDims := []uint{2, 1, 3, 3}
	oriDims := []uint{2, 4}

	cases := []struct {
		name      string
		sets      []rawDataset
		voxelAttr bool
	}{
		{
			name: "MissingVolume",
			sets: []rawDataset{
				{PatternsDataset, patDims},
				{OrientationsDataset, oriDims},
			},
		},
		{
			name: "MissingPatterns",
			sets: []rawDataset{
				{VolumeDataset, volDims},
				{OrientationsDataset, oriDims},
			},
			voxelAttr: true,
		},
		{
			name: "MissingOrientations",
			sets: []rawDataset{
				{VolumeDataset, volDims},
				{PatternsDataset, patDims},
			},
			voxelAttr: true,
		},
		{
			name: "MissingVoxelLengthAttribute",
			sets: []rawDataset{
				{VolumeDataset, volDims},
				{PatternsDataset, patDims},
				{OrientationsDataset, oriDims},
			},
		},
		{
			name: "WrongVolumeRank",
			sets: []rawDataset{
				{VolumeDataset, []uint{4, 4}},
				{PatternsDataset, patDims},
				{OrientationsDataset, oriDims},
			},
		},
		{
			name: "NonCubicVolume",
			sets: []rawDataset{
				{VolumeDataset, []uint{4, 4, 5}},
				{PatternsDataset, patDims},
				{OrientationsDataset, oriDims},
			},
		},
		{
			name: "ThreeComponentOrientations",
			sets: []rawDataset{
				{VolumeDataset, volDims},
				{PatternsDataset, patDims},
				{OrientationsDataset, []uint{2, 3}},
			},
			voxelAttr: true,
		},
		{
			name: "PatternOrientationCountMismatch",
			sets: []rawDataset{
				{VolumeDataset, volDims},
				{PatternsDataset, []uint{3, 1, 3, 3}},
				{OrientationsDataset, oriDims},
			},
			voxelAttr: true,
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "malformed.h5")
			writeRawContainer(t, path, c.sets, c.voxelAttr)

			if _, _, _, err := Read(path); err == nil {
				t.Error("expected reload of the malformed container to fail")
			}
		})
	}
}
