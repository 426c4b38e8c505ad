// Package beam models the incident X-ray pulse: photon energy, wavelength,
// focus geometry and fluence. Parameters are loaded from the plain-text
// key/value format used by beamline configuration files.
package beam

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
)

// hc in eV*Angstrom, CODATA value; converts photon energy to wavelength
const evAngstrom = 12398.419843320026

// Beam holds the incident beam parameters. Photon energy is the primary
// quantity; wavelength and wavenumber are derived from it.
type Beam struct {
	// PhotonEnergy is the photon energy in eV
	PhotonEnergy float64

	// PhotonsPerPulse is the number of photons in one pulse
	PhotonsPerPulse float64

	// FocusRadius is the radius of the focused beam spot in meters
	FocusRadius float64

	// Polarization is the beam polarization vector in the lab frame
	Polarization [3]float64
}

// NewBeam creates a beam with the given photon energy in eV and sensible
// defaults for the remaining parameters (horizontal polarization).
func NewBeam(photonEnergy float64) (*Beam, error) {
	if photonEnergy <= 0 {
		return nil, fmt.Errorf("photon energy must be positive, got %g eV", photonEnergy)
	}
	return &Beam{
		PhotonEnergy:    photonEnergy,
		PhotonsPerPulse: 1e12,
		FocusRadius:     1e-7,
		Polarization:    [3]float64{1, 0, 0},
	}, nil
}

// Wavelength returns the photon wavelength in Angstrom.
func (b *Beam) Wavelength() float64 {
	return evAngstrom / b.PhotonEnergy
}

// Wavenumber returns the magnitude of the wavevector, 2*pi/lambda, in
// inverse Angstrom.
func (b *Beam) Wavenumber() float64 {
	return 2 * math.Pi / b.Wavelength()
}

// WaveVector returns the incident wavevector in inverse Angstrom.
// The beam propagates along +z in the lab frame.
func (b *Beam) WaveVector() [3]float64 {
	return [3]float64{0, 0, b.Wavenumber()}
}

// FocusArea returns the area of the focus spot in square meters.
func (b *Beam) FocusArea() float64 {
	return math.Pi * b.FocusRadius * b.FocusRadius
}

// Fluence returns the photon fluence in photons per square meter.
func (b *Beam) Fluence() float64 {
	return b.PhotonsPerPulse / b.FocusArea()
}

// LoadBeamFile reads beam parameters from a key/value text file.
//
// Each non-empty line has the form "key = value"; keys are namespaced with
// a "beam/" prefix and lines starting with '#' or ';' are comments:
//
//	beam/photon_energy = 4600
//	beam/photons_per_pulse = 1e12
//	beam/radius = 1e-7
//
// The photon energy is mandatory; the other keys fall back to the
// NewBeam defaults.
func LoadBeamFile(path string) (*Beam, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open beam file: %v", err)
	}
	defer file.Close()

	values := make(map[string]float64)

	scanner := bufio.NewScanner(file)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("malformed line %d in %s: %q", lineNum, path, line)
		}

		key := strings.TrimSpace(parts[0])
		key = strings.TrimPrefix(key, "beam/")

		value, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid value on line %d in %s: %v", lineNum, path, err)
		}

		values[key] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read beam file: %v", err)
	}

	energy, ok := values["photon_energy"]
	if !ok {
		return nil, fmt.Errorf("beam file %s is missing beam/photon_energy", path)
	}

	b, err := NewBeam(energy)
	if err != nil {
		return nil, err
	}
	if v, ok := values["photons_per_pulse"]; ok {
		b.PhotonsPerPulse = v
	}
	if v, ok := values["fluence"]; ok {
		// Older files specify photons per pulse under the fluence key
		b.PhotonsPerPulse = v
	}
	if v, ok := values["radius"]; ok {
		b.FocusRadius = v
	}

	return b, nil
}
