package detector

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// Panel describes the placement of one detector panel in the lab frame.
// The origin is the outer corner of pixel (0,0); the fast and slow axes
// are unit vectors along the pixel x and y directions.
type Panel struct {
	Origin   [3]float64 `yaml:"origin"`
	FastAxis [3]float64 `yaml:"fastAxis"`
	SlowAxis [3]float64 `yaml:"slowAxis"`
}

// Geometry is the calibration description of a multi-panel detector,
// loaded from a YAML file.
type Geometry struct {
	// PixelSize is the pixel pitch in meters
	PixelSize float64 `yaml:"pixelSize"`

	// Distance is the sample-to-detector distance along the beam in meters
	Distance float64 `yaml:"distance"`

	// PanelPixelsX and PanelPixelsY are the per-panel pixel counts
	PanelPixelsX int `yaml:"panelPixelsX"`
	PanelPixelsY int `yaml:"panelPixelsY"`

	// Panels lists the panel placements
	Panels []Panel `yaml:"panels"`
}

// DefaultGeometry returns a four-panel detector in a 2x2 quad arrangement
// with 512x512 pixels per panel, 110 micron pitch and a small cross-shaped
// gap between panels. This mirrors a typical pnCCD-style layout and gives
// the canonical (4, 512, 512) pattern shape without a calibration file.
func DefaultGeometry() *Geometry {
	const (
		pixels    = 512
		pixelSize = 110e-6
		gap       = 8 * pixelSize
		distance  = 0.2
	)
	extent := float64(pixels) * pixelSize

	g := &Geometry{
		PixelSize:    pixelSize,
		Distance:     distance,
		PanelPixelsX: pixels,
		PanelPixelsY: pixels,
	}

	// Quadrant corner origins, counter-clockwise from top-left, with the
	// panel axes aligned to the lab x and y axes
	corners := [4][2]float64{
		{-extent - gap/2, gap / 2},
		{gap / 2, gap / 2},
		{-extent - gap/2, -extent - gap/2},
		{gap / 2, -extent - gap/2},
	}
	for _, c := range corners {
		g.Panels = append(g.Panels, Panel{
			Origin:   [3]float64{c[0], c[1], 0},
			FastAxis: [3]float64{1, 0, 0},
			SlowAxis: [3]float64{0, 1, 0},
		})
	}

	return g
}

// LoadGeometry reads a detector geometry description from a YAML file.
func LoadGeometry(path string) (*Geometry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading geometry file: %v", err)
	}

	g := &Geometry{}
	if err := yaml.Unmarshal(data, g); err != nil {
		return nil, fmt.Errorf("error parsing geometry file: %v", err)
	}

	if err := g.validate(); err != nil {
		return nil, fmt.Errorf("invalid geometry in %s: %v", path, err)
	}

	return g, nil
}

// SaveGeometry writes the geometry description to a YAML file.
func SaveGeometry(g *Geometry, path string) error {
	data, err := yaml.Marshal(g)
	if err != nil {
		return fmt.Errorf("error marshaling geometry: %v", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("error writing geometry file: %v", err)
	}
	return nil
}

// validate checks the structural constraints a usable geometry must meet.
func (g *Geometry) validate() error {
	if g.PixelSize <= 0 {
		return fmt.Errorf("pixel size must be positive, got %g", g.PixelSize)
	}
	if g.Distance <= 0 {
		return fmt.Errorf("detector distance must be positive, got %g", g.Distance)
	}
	if g.PanelPixelsX <= 0 || g.PanelPixelsY <= 0 {
		return fmt.Errorf("panel pixel counts must be positive, got %dx%d",
			g.PanelPixelsX, g.PanelPixelsY)
	}
	if len(g.Panels) == 0 {
		return fmt.Errorf("geometry has no panels")
	}
	for i, p := range g.Panels {
		if !isUnit(p.FastAxis) || !isUnit(p.SlowAxis) {
			return fmt.Errorf("panel %d axes must be unit vectors", i)
		}
	}
	return nil
}

func isUnit(v [3]float64) bool {
	n := math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
	return math.Abs(n-1) < 1e-9
}
