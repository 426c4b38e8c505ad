// Package detector models a multi-panel pixel-array detector: the lab-frame
// pixel layout, the mapping from pixel index to reciprocal-space momentum
// transfer, and the per-pixel geometric corrections.
package detector

import (
	"fmt"
	"math"

	"diffvolto2d/internal/models"
	"diffvolto2d/pkg/beam"
)

// Detector holds the pixel layout and the derived reciprocal-space
// coordinates for one beam configuration. Initialize builds the derived
// arrays; everything is immutable afterwards.
type Detector struct {
	// geom is the panel layout this detector was built from
	geom *Geometry

	// pixelPosition holds lab-frame pixel center coordinates in meters,
	// flat, 3 components per pixel, panel-major order
	pixelPosition []float64

	// pixelMomentum holds the reciprocal-space momentum transfer of each
	// pixel in inverse Angstrom, same layout as pixelPosition
	pixelMomentum []float64

	// polarization and solidAngle are the per-pixel corrections
	polarization []float64
	solidAngle   []float64

	// pedestal is the dark-frame baseline array; its shape defines the
	// shape of every diffraction pattern
	pedestal []float64
}

// NewDetector builds a detector from a panel geometry and computes the
// reciprocal-space pixel coordinates for the given beam.
func NewDetector(geom *Geometry, b *beam.Beam) (*Detector, error) {
	if err := geom.validate(); err != nil {
		return nil, fmt.Errorf("invalid detector geometry: %v", err)
	}

	d := &Detector{geom: geom}
	d.computePixelPositions()
	d.computeReciprocalPositions(b)
	d.computeCorrections(b)
	d.pedestal = make([]float64, d.NumPixels())

	return d, nil
}

// PatternShape returns the pixel layout of one diffraction pattern:
// the panel count and per-panel pixel grid of the detector geometry.
func (d *Detector) PatternShape() models.PatternShape {
	return models.PatternShape{
		Panels: len(d.geom.Panels),
		X:      d.geom.PanelPixelsX,
		Y:      d.geom.PanelPixelsY,
	}
}

// NumPixels returns the total pixel count across all panels.
func (d *Detector) NumPixels() int {
	return len(d.geom.Panels) * d.geom.PanelPixelsX * d.geom.PanelPixelsY
}

// Pedestal returns the dark-frame baseline array, panel-major.
func (d *Detector) Pedestal() []float64 {
	return d.pedestal
}

// PixelMomentum returns the reciprocal-space coordinates of every pixel in
// inverse Angstrom: a flat array with 3 components per pixel in panel-major
// order. Callers must not modify the returned slice.
func (d *Detector) PixelMomentum() []float64 {
	return d.pixelMomentum
}

// PolarizationCorrection returns the per-pixel polarization factor.
func (d *Detector) PolarizationCorrection() []float64 {
	return d.polarization
}

// SolidAngle returns the per-pixel solid angle in steradian.
func (d *Detector) SolidAngle() []float64 {
	return d.solidAngle
}

// QMax returns the largest momentum transfer magnitude seen by any pixel,
// in inverse Angstrom. The diffraction volume must cover at least this
// radius for every pixel to land inside it.
func (d *Detector) QMax() float64 {
	var qmax2 float64
	for i := 0; i+2 < len(d.pixelMomentum); i += 3 {
		qx := d.pixelMomentum[i]
		qy := d.pixelMomentum[i+1]
		qz := d.pixelMomentum[i+2]
		q2 := qx*qx + qy*qy + qz*qz
		if q2 > qmax2 {
			qmax2 = q2
		}
	}
	return math.Sqrt(qmax2)
}

// computePixelPositions fills the lab-frame pixel center coordinates from
// the panel layout: corner origin plus pixel-size steps along the fast and
// slow axes, offset by the detector distance along the beam axis.
func (d *Detector) computePixelPositions() {
	g := d.geom
	d.pixelPosition = make([]float64, d.NumPixels()*3)

	idx := 0
	for _, panel := range g.Panels {
		for x := 0; x < g.PanelPixelsX; x++ {
			for y := 0; y < g.PanelPixelsY; y++ {
				fx := (float64(x) + 0.5) * g.PixelSize
				fy := (float64(y) + 0.5) * g.PixelSize
				d.pixelPosition[idx] = panel.Origin[0] + fx*panel.FastAxis[0] + fy*panel.SlowAxis[0]
				d.pixelPosition[idx+1] = panel.Origin[1] + fx*panel.FastAxis[1] + fy*panel.SlowAxis[1]
				d.pixelPosition[idx+2] = panel.Origin[2] + fx*panel.FastAxis[2] + fy*panel.SlowAxis[2] + g.Distance
				idx += 3
			}
		}
	}
}

// computeReciprocalPositions maps each pixel to its momentum transfer
// q = k * (s_hat - k_hat), where s_hat is the unit vector from the sample
// to the pixel and k_hat the incident beam direction. The result lands on
// the Ewald sphere of radius k.
func (d *Detector) computeReciprocalPositions(b *beam.Beam) {
	k := b.WaveVector()
	kNorm := math.Sqrt(k[0]*k[0] + k[1]*k[1] + k[2]*k[2])
	kDir := [3]float64{k[0] / kNorm, k[1] / kNorm, k[2] / kNorm}

	d.pixelMomentum = make([]float64, len(d.pixelPosition))
	for i := 0; i+2 < len(d.pixelPosition); i += 3 {
		px := d.pixelPosition[i]
		py := d.pixelPosition[i+1]
		pz := d.pixelPosition[i+2]
		norm := math.Sqrt(px*px + py*py + pz*pz)

		d.pixelMomentum[i] = kNorm * (px/norm - kDir[0])
		d.pixelMomentum[i+1] = kNorm * (py/norm - kDir[1])
		d.pixelMomentum[i+2] = kNorm * (pz/norm - kDir[2])
	}
}

// computeCorrections fills the polarization factor and solid angle of each
// pixel. The polarization factor is |s_hat x p_hat|^2 for polarization
// vector p; the solid angle is the projected pixel area over the squared
// sample-to-pixel distance.
func (d *Detector) computeCorrections(b *beam.Beam) {
	p := b.Polarization
	pNorm := math.Sqrt(p[0]*p[0] + p[1]*p[1] + p[2]*p[2])
	pDir := [3]float64{p[0] / pNorm, p[1] / pNorm, p[2] / pNorm}

	pixelArea := d.geom.PixelSize * d.geom.PixelSize

	n := d.NumPixels()
	d.polarization = make([]float64, n)
	d.solidAngle = make([]float64, n)

	for i := 0; i < n; i++ {
		px := d.pixelPosition[3*i]
		py := d.pixelPosition[3*i+1]
		pz := d.pixelPosition[3*i+2]
		norm := math.Sqrt(px*px + py*py + pz*pz)
		sx, sy, sz := px/norm, py/norm, pz/norm

		// |s_hat x p_hat|^2
		cx := sy*pDir[2] - sz*pDir[1]
		cy := sz*pDir[0] - sx*pDir[2]
		cz := sx*pDir[1] - sy*pDir[0]
		d.polarization[i] = cx*cx + cy*cy + cz*cz

		// Projection factor is the cosine between the pixel direction
		// and the detector normal (the beam axis for a flat detector)
		cosine := math.Abs(sz)
		d.solidAngle[i] = cosine * pixelArea / (norm * norm)
	}
}
