// Package hdf5io persists the diffraction volume, the sampled pattern
// stack and the orientation stack to an HDF5 container and reads them
// back with strict shape validation.
//
// The container holds exactly three named datasets:
//
//	volume          (n, n, n)               float64
//	imUniform       (count, panels, x, y)   float64
//	imOrientations  (count, 4)              float64
//
// All datasets are 64-bit floats. Orientations in particular must stay at
// full precision: re-deriving patterns from a reloaded volume only
// reproduces the originals exactly when the stored quaternions are
// bit-identical to the ones used for the first sampling pass.
package hdf5io

import (
	"fmt"

	"gonum.org/v1/hdf5"

	"diffvolto2d/internal/models"
)

// Dataset names inside the container.
const (
	VolumeDataset       = "volume"
	PatternsDataset     = "imUniform"
	OrientationsDataset = "imOrientations"
)

// Write persists the three arrays to an HDF5 file at path, creating or
// truncating it. The write is not atomic: a failure mid-write leaves a
// partial file behind, and the error propagates to the caller.
func Write(path string, vol *models.Volume, patterns *models.PatternStack, orients *models.OrientationStack) error {
	if err := models.Validate(vol, patterns, orients); err != nil {
		return fmt.Errorf("refusing to persist inconsistent arrays: %v", err)
	}

	file, err := hdf5.CreateFile(path, hdf5.F_ACC_TRUNC)
	if err != nil {
		return fmt.Errorf("failed to create HDF5 file %s: %v", path, err)
	}
	defer file.Close()

	n := uint(vol.N)
	if err := writeDataset(file, VolumeDataset, []uint{n, n, n}, vol.Data); err != nil {
		return err
	}
	if err := writeVoxelLength(file, vol.VoxelLength); err != nil {
		return err
	}

	shape := patterns.Shape
	patternDims := []uint{uint(patterns.Count), uint(shape.Panels), uint(shape.X), uint(shape.Y)}
	if err := writeDataset(file, PatternsDataset, patternDims, patterns.Data); err != nil {
		return err
	}

	if err := writeDataset(file, OrientationsDataset, []uint{uint(orients.Count), 4}, orients.Data); err != nil {
		return err
	}

	return nil
}

// writeDataset creates one fixed-size float64 dataset and writes its data.
func writeDataset(file *hdf5.File, name string, dims []uint, data []float64) error {
	space, err := hdf5.CreateSimpleDataspace(dims, dims)
	if err != nil {
		return fmt.Errorf("failed to create dataspace for %s: %v", name, err)
	}
	defer space.Close()

	dset, err := file.CreateDataset(name, hdf5.T_NATIVE_DOUBLE, space)
	if err != nil {
		return fmt.Errorf("failed to create dataset %s: %v", name, err)
	}
	defer dset.Close()

	if err := dset.Write(&data); err != nil {
		return fmt.Errorf("failed to write dataset %s: %v", name, err)
	}

	return nil
}

// voxelLengthAttr is the attribute on the volume dataset recording the
// reciprocal-space voxel spacing, so a reloaded volume can be resampled
// without re-deriving the spacing from the detector.
const voxelLengthAttr = "voxelLength"

// writeVoxelLength attaches the voxel spacing to the volume dataset.
func writeVoxelLength(file *hdf5.File, voxelLength float64) error {
	dset, err := file.OpenDataset(VolumeDataset)
	if err != nil {
		return fmt.Errorf("failed to reopen dataset %s: %v", VolumeDataset, err)
	}
	defer dset.Close()

	space, err := hdf5.CreateDataspace(hdf5.S_SCALAR)
	if err != nil {
		return fmt.Errorf("failed to create attribute dataspace: %v", err)
	}
	defer space.Close()

	attr, err := dset.CreateAttribute(voxelLengthAttr, hdf5.T_NATIVE_DOUBLE, space)
	if err != nil {
		return fmt.Errorf("failed to create attribute %s: %v", voxelLengthAttr, err)
	}
	defer attr.Close()

	if err := attr.Write(&voxelLength, hdf5.T_NATIVE_DOUBLE); err != nil {
		return fmt.Errorf("failed to write attribute %s: %v", voxelLengthAttr, err)
	}
	return nil
}

// readVoxelLength reads the voxel spacing attribute back.
func readVoxelLength(file *hdf5.File) (float64, error) {
	dset, err := file.OpenDataset(VolumeDataset)
	if err != nil {
		return 0, fmt.Errorf("failed to reopen dataset %s: %v", VolumeDataset, err)
	}
	defer dset.Close()

	attr, err := dset.OpenAttribute(voxelLengthAttr)
	if err != nil {
		return 0, fmt.Errorf("attribute %s is missing from dataset %s: %v",
			voxelLengthAttr, VolumeDataset, err)
	}
	defer attr.Close()

	var v float64
	if err := attr.Read(&v, hdf5.T_NATIVE_DOUBLE); err != nil {
		return 0, fmt.Errorf("failed to read attribute %s: %v", voxelLengthAttr, err)
	}
	return v, nil
}

// Read loads the three arrays back from an HDF5 file. It fails fast on a
// missing dataset, a wrong rank, or an inconsistent shape; it never
// reshapes silently or fills missing data with defaults.
func Read(path string) (*models.Volume, *models.PatternStack, *models.OrientationStack, error) {
	file, err := hdf5.OpenFile(path, hdf5.F_ACC_RDONLY)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to open HDF5 file %s: %v", path, err)
	}
	defer file.Close()

	volData, volDims, err := readDataset(file, VolumeDataset, 3)
	if err != nil {
		return nil, nil, nil, err
	}
	n := int(volDims[0])
	if volDims[1] != volDims[0] || volDims[2] != volDims[0] {
		return nil, nil, nil, fmt.Errorf("dataset %s has non-cubic shape %v", VolumeDataset, volDims)
	}
	voxelLength, err := readVoxelLength(file)
	if err != nil {
		return nil, nil, nil, err
	}

	patData, patDims, err := readDataset(file, PatternsDataset, 4)
	if err != nil {
		return nil, nil, nil, err
	}

	oriData, oriDims, err := readDataset(file, OrientationsDataset, 2)
	if err != nil {
		return nil, nil, nil, err
	}
	if oriDims[1] != 4 {
		return nil, nil, nil, fmt.Errorf("dataset %s has %d components per entry, want 4",
			OrientationsDataset, oriDims[1])
	}
	if patDims[0] != oriDims[0] {
		return nil, nil, nil, fmt.Errorf("pattern count %d does not match orientation count %d",
			patDims[0], oriDims[0])
	}

	vol := &models.Volume{Data: volData, N: n, VoxelLength: voxelLength}
	patterns := &models.PatternStack{
		Data:  patData,
		Count: int(patDims[0]),
		Shape: models.PatternShape{
			Panels: int(patDims[1]),
			X:      int(patDims[2]),
			Y:      int(patDims[3]),
		},
	}
	orients := &models.OrientationStack{Data: oriData, Count: int(oriDims[0])}

	if err := models.Validate(vol, patterns, orients); err != nil {
		return nil, nil, nil, fmt.Errorf("reloaded arrays are inconsistent: %v", err)
	}

	return vol, patterns, orients, nil
}

// readDataset opens one dataset, checks its rank, and reads it into a
// flat float64 slice sized from the declared dimensions.
func readDataset(file *hdf5.File, name string, rank int) ([]float64, []uint, error) {
	dset, err := file.OpenDataset(name)
	if err != nil {
		return nil, nil, fmt.Errorf("dataset %s is missing from file: %v", name, err)
	}
	defer dset.Close()

	space := dset.Space()
	defer space.Close()

	dims, _, err := space.SimpleExtentDims()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query shape of dataset %s: %v", name, err)
	}
	if len(dims) != rank {
		return nil, nil, fmt.Errorf("dataset %s has rank %d, want %d", name, len(dims), rank)
	}

	total := uint(1)
	for _, d := range dims {
		if d == 0 {
			return nil, nil, fmt.Errorf("dataset %s has a zero-length dimension: %v", name, dims)
		}
		total *= d
	}

	data := make([]float64, total)
	if err := dset.Read(&data); err != nil {
		return nil, nil, fmt.Errorf("failed to read dataset %s: %v", name, err)
	}

	return data, dims, nil
}
