// Package visualization renders sampled diffraction patterns and volume
// cross-sections as grayscale images so the operator can eyeball what was
// simulated before trusting the numerical checks.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"

	"diffvolto2d/internal/models"
)

// Viewer renders patterns from one stack. Diffraction intensities span
// many orders of magnitude, so rendering defaults to a log scale.
type Viewer struct {
	// patterns is the stack being rendered
	patterns *models.PatternStack

	// LogScale selects logarithmic intensity mapping
	LogScale bool
}

// NewViewer creates a viewer for the given pattern stack.
func NewViewer(patterns *models.PatternStack) *Viewer {
	return &Viewer{patterns: patterns, LogScale: true}
}

// RenderPanel renders one panel of one pattern as a 16-bit grayscale
// image, normalizing intensities over that panel.
func (v *Viewer) RenderPanel(patternIdx, panelIdx int) (image.Image, error) {
	shape := v.patterns.Shape
	if patternIdx < 0 || patternIdx >= v.patterns.Count {
		return nil, fmt.Errorf("pattern index %d out of range [0, %d)", patternIdx, v.patterns.Count)
	}
	if panelIdx < 0 || panelIdx >= shape.Panels {
		return nil, fmt.Errorf("panel index %d out of range [0, %d)", panelIdx, shape.Panels)
	}

	// Find the intensity range of this panel
	maxVal := 0.0
	for x := 0; x < shape.X; x++ {
		for y := 0; y < shape.Y; y++ {
			if val := v.patterns.At(patternIdx, panelIdx, x, y); val > maxVal {
				maxVal = val
			}
		}
	}

	img := image.NewGray16(image.Rect(0, 0, shape.X, shape.Y))
	if maxVal == 0 {
		return img, nil
	}

	for x := 0; x < shape.X; x++ {
		for y := 0; y < shape.Y; y++ {
			val := v.patterns.At(patternIdx, panelIdx, x, y)
			img.SetGray16(x, y, color.Gray16{Y: v.mapIntensity(val, maxVal)})
		}
	}

	return img, nil
}

// mapIntensity maps an intensity to a 16-bit gray level, linearly or
// logarithmically depending on the viewer setting.
func (v *Viewer) mapIntensity(val, maxVal float64) uint16 {
	if val <= 0 {
		return 0
	}
	var frac float64
	if v.LogScale {
		frac = math.Log1p(val) / math.Log1p(maxVal)
	} else {
		frac = val / maxVal
	}
	return uint16(math.Max(0, math.Min(65535, frac*65535)))
}

// SaveImage writes an image as a PNG file.
func (v *Viewer) SaveImage(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	return png.Encode(file, img)
}

// SavePatternSequence renders every panel of every pattern into outputDir,
// named pattern_<i>_panel_<j>.png.
func (v *Viewer) SavePatternSequence(outputDir string) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}

	for i := 0; i < v.patterns.Count; i++ {
		for j := 0; j < v.patterns.Shape.Panels; j++ {
			img, err := v.RenderPanel(i, j)
			if err != nil {
				return err
			}

			filename := filepath.Join(outputDir, fmt.Sprintf("pattern_%03d_panel_%d.png", i, j))
			if err := v.SaveImage(img, filename); err != nil {
				return err
			}
		}
	}

	return nil
}

// RenderVolumeSlice renders the axis-aligned cross-section of a volume at
// the given position along the named axis.
func RenderVolumeSlice(vol *models.Volume, axis string, position int) (image.Image, error) {
	n := vol.N
	if position < 0 || position >= n {
		return nil, fmt.Errorf("position %d exceeds volume size %d", position, n)
	}

	maxVal := 0.0
	for _, val := range vol.Data {
		if val > maxVal {
			maxVal = val
		}
	}

	img := image.NewGray16(image.Rect(0, 0, n, n))
	if maxVal == 0 {
		return img, nil
	}

	for a := 0; a < n; a++ {
		for b := 0; b < n; b++ {
			var val float64
			switch axis {
			case "x", "X":
				val = vol.At(position, a, b)
			case "y", "Y":
				val = vol.At(a, position, b)
			case "z", "Z":
				val = vol.At(a, b, position)
			default:
				return nil, fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
			}
			frac := math.Log1p(val) / math.Log1p(maxVal)
			img.SetGray16(a, b, color.Gray16{Y: uint16(math.Max(0, math.Min(65535, frac*65535)))})
		}
	}

	return img, nil
}
