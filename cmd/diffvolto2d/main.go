package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"time"

	"diffvolto2d/internal/models"
	"diffvolto2d/pkg/beam"
	"diffvolto2d/pkg/config"
	"diffvolto2d/pkg/detector"
	"diffvolto2d/pkg/diffraction"
	"diffvolto2d/pkg/geometry"
	"diffvolto2d/pkg/particle"
	"diffvolto2d/pkg/roundtrip"
	"diffvolto2d/pkg/visualization"
)

func main() {
	// Parse command line arguments
	pdbFile := flag.String("pdb", "", "Molecular structure in PDB format")
	beamFile := flag.String("beam", "", "Beam parameter file (key = value format)")
	geomFile := flag.String("geom", "", "Detector geometry YAML (default: built-in 4-panel quad)")
	configFile := flag.String("config", "config.yaml", "Configuration YAML file")
	meshSize := flag.Int("mesh", 0, "Volume samples per axis (overrides config)")
	numOrientations := flag.Int("orientations", 0, "Number of uniform orientations (overrides config)")
	fixedOrientations := flag.Bool("fixed-orientations", false,
		"Use the two canonical verification orientations instead of a uniform set")
	outputFile := flag.String("output", "", "Output HDF5 filename (overrides config)")
	numCores := flag.Int("cores", 0, "Number of CPU cores to use (overrides config)")
	renderDir := flag.String("render-dir", "", "Directory to render pattern PNGs into (optional)")
	flag.Parse()

	// Validate inputs
	if *pdbFile == "" || *beamFile == "" {
		flag.Usage()
		log.Fatal("both -pdb and -beam are required")
	}

	// Load configuration and apply command line overrides
	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *meshSize > 0 {
		cfg.Simulation.MeshSize = *meshSize
	}
	if *numOrientations > 0 {
		cfg.Simulation.NumOrientations = *numOrientations
	}
	if *numCores > 0 {
		cfg.Simulation.NumCores = *numCores
	}
	if *outputFile != "" {
		cfg.Output.File = *outputFile
	}
	if *renderDir != "" {
		cfg.Output.RenderPatterns = true
		cfg.Output.RenderDir = *renderDir
	}

	fmt.Println("================================")
	fmt.Println("3D DIFFRACTION VOLUME SYNTHESIS AND 2D SLICE SAMPLING")
	fmt.Println("with HDF5 round-trip and resample-determinism verification")
	fmt.Println("================================")

	startTime := time.Now()

	// Step 1: Load inputs
	fmt.Println("Step 1: Loading beam parameters and molecular structure...")
	b, err := beam.LoadBeamFile(*beamFile)
	if err != nil {
		log.Fatalf("Failed to load beam file: %v", err)
	}
	fmt.Printf("Photon energy: %.1f eV (wavelength %.4f A)\n", b.PhotonEnergy, b.Wavelength())

	p, err := particle.LoadPDB(*pdbFile)
	if err != nil {
		log.Fatalf("Failed to load structure: %v", err)
	}

	// Step 2: Build the detector model
	fmt.Println("Step 2: Building detector model...")
	geom := detector.DefaultGeometry()
	if *geomFile != "" {
		geom, err = detector.LoadGeometry(*geomFile)
		if err != nil {
			log.Fatalf("Failed to load detector geometry: %v", err)
		}
	}
	det, err := detector.NewDetector(geom, b)
	if err != nil {
		log.Fatalf("Failed to build detector: %v", err)
	}
	shape := det.PatternShape()
	fmt.Printf("Detector: %d panels of %dx%d pixels, q_max %.4f A^-1\n",
		shape.Panels, shape.X, shape.Y, det.QMax())

	// Step 3: Synthesize the 3D diffraction volume
	fmt.Printf("Step 3: Synthesizing %d^3 diffraction volume on %d cores...\n",
		cfg.Simulation.MeshSize, cfg.Simulation.NumCores)
	voxelLength := geometry.MeshVoxelLength(cfg.Simulation.MeshSize,
		det.QMax()*cfg.Simulation.Oversampling)
	mesh, err := geometry.NewReciprocalMesh(cfg.Simulation.MeshSize, voxelLength)
	if err != nil {
		log.Fatalf("Failed to build reciprocal mesh: %v", err)
	}

	volumeStart := time.Now()
	vol, err := diffraction.SynthesizeVolume(p, mesh, cfg.Simulation.NumCores)
	if err != nil {
		log.Fatalf("Volume synthesis failed: %v", err)
	}
	stats := diffraction.Stats(vol)
	fmt.Printf("Synthesized volume in %.2f seconds (intensity range %.4g to %.4g)\n",
		time.Since(volumeStart).Seconds(), stats.Min, stats.Max)

	// Step 4: Choose orientations and sample patterns
	fmt.Println("Step 4: Sampling 2D patterns...")
	orients, err := chooseOrientations(cfg.Simulation.NumOrientations, *fixedOrientations)
	if err != nil {
		log.Fatalf("Failed to generate orientations: %v", err)
	}

	sampler := &diffraction.Sampler{Workers: cfg.Simulation.NumCores}
	sampleStart := time.Now()
	patterns, err := sampler.Sample(vol, voxelLength, det.PixelMomentum(), orients, shape)
	if err != nil {
		log.Fatalf("Slice sampling failed: %v", err)
	}
	fmt.Printf("Constructed %d patterns in %.2f seconds\n",
		patterns.Count, time.Since(sampleStart).Seconds())

	// Step 5: Persist, reload, and verify
	fmt.Println("Step 5: Running persistence verification...")
	harness := &roundtrip.Harness{
		Path:      cfg.Output.File,
		Tolerance: cfg.Verification.Tolerance,
	}
	if err := harness.Run(sampler, vol, patterns, orients, det.PixelMomentum()); err != nil {
		log.Fatalf("Verification failed: %v", err)
	}

	fmt.Printf("\nCompleted successfully in %.2f seconds\n", time.Since(startTime).Seconds())
	fmt.Printf("Output container: %s\n", cfg.Output.File)

	// Step 6: Optionally render patterns for inspection
	if cfg.Output.RenderPatterns {
		fmt.Printf("Rendering patterns to %s...\n", cfg.Output.RenderDir)
		viewer := visualization.NewViewer(patterns)
		if err := viewer.SavePatternSequence(cfg.Output.RenderDir); err != nil {
			log.Printf("Warning: failed to render patterns: %v", err)
		}
	}
}

// chooseOrientations builds the orientation stack: either the two
// canonical verification orientations or a uniform covering of rotation
// space.
func chooseOrientations(n int, fixed bool) (*models.OrientationStack, error) {
	if fixed {
		s := 1 / math.Sqrt(2)
		orients := models.NewOrientationStack(2)
		orients.SetQuaternion(0, [4]float64{s, s, 0, 0})
		orients.SetQuaternion(1, [4]float64{-s, 0, s, 0})
		return orients, nil
	}

	quats, err := geometry.UniformQuaternions(n)
	if err != nil {
		return nil, err
	}
	orients := models.NewOrientationStack(len(quats))
	for i, q := range quats {
		orients.SetQuaternion(i, [4]float64(q))
	}
	return orients, nil
}
