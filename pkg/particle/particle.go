// Package particle loads molecular structures and evaluates atomic
// scattering form factors for the diffraction calculation.
package particle

import (
	"fmt"
	"math"
	"strings"

	chem "github.com/rmera/gochem"
)

// Particle holds the atomic content of a molecular structure: positions,
// element symbols, and an index of distinct elements so per-element form
// factors are evaluated once per momentum transfer instead of once per atom.
type Particle struct {
	// Positions holds the atomic coordinates in Angstrom as a flat
	// array, 3 components per atom
	Positions []float64

	// Elements lists the distinct element symbols present
	Elements []string

	// ElementIndex maps each atom to its entry in Elements
	ElementIndex []int
}

// NumAtoms returns the number of atoms in the particle.
func (p *Particle) NumAtoms() int {
	return len(p.Positions) / 3
}

// NewParticle builds a particle from explicit positions (flat, 3 per atom)
// and per-atom element symbols. Mostly useful for synthetic structures in
// tests; real structures come from LoadPDB.
func NewParticle(positions []float64, symbols []string) (*Particle, error) {
	if len(positions) != 3*len(symbols) {
		return nil, fmt.Errorf("got %d coordinates for %d atoms", len(positions), len(symbols))
	}

	p := &Particle{
		Positions:    append([]float64(nil), positions...),
		ElementIndex: make([]int, len(symbols)),
	}

	seen := make(map[string]int)
	for i, s := range symbols {
		s = canonicalSymbol(s)
		if _, ok := cromerMann[s]; !ok {
			return nil, fmt.Errorf("no form factor data for element %q", symbols[i])
		}
		idx, ok := seen[s]
		if !ok {
			idx = len(p.Elements)
			seen[s] = idx
			p.Elements = append(p.Elements, s)
		}
		p.ElementIndex[i] = idx
	}

	return p, nil
}

// LoadPDB reads a molecular structure from a PDB file, including hydrogens.
// Coordinates are centered on the structure's geometric center so the
// particle sits at the origin of the diffraction volume.
func LoadPDB(path string) (*Particle, error) {
	mol, err := chem.PDBFileRead(path, true)
	if err != nil {
		return nil, fmt.Errorf("failed to read PDB file %s: %v", path, err)
	}
	if mol.Len() == 0 {
		return nil, fmt.Errorf("PDB file %s contains no atoms", path)
	}
	if len(mol.Coords) == 0 {
		return nil, fmt.Errorf("PDB file %s contains no coordinate frame", path)
	}

	coords := mol.Coords[0]
	positions := make([]float64, 3*mol.Len())
	symbols := make([]string, mol.Len())
	for i := 0; i < mol.Len(); i++ {
		positions[3*i] = coords.At(i, 0)
		positions[3*i+1] = coords.At(i, 1)
		positions[3*i+2] = coords.At(i, 2)
		symbols[i] = mol.Atom(i).Symbol
	}

	p, err := NewParticle(positions, symbols)
	if err != nil {
		return nil, err
	}
	p.Center()

	fmt.Printf("Loaded %d atoms (%d distinct elements) from %s\n",
		p.NumAtoms(), len(p.Elements), path)

	return p, nil
}

// Center translates the particle so its geometric center is at the origin.
func (p *Particle) Center() {
	n := p.NumAtoms()
	if n == 0 {
		return
	}
	var cx, cy, cz float64
	for i := 0; i < n; i++ {
		cx += p.Positions[3*i]
		cy += p.Positions[3*i+1]
		cz += p.Positions[3*i+2]
	}
	cx /= float64(n)
	cy /= float64(n)
	cz /= float64(n)
	for i := 0; i < n; i++ {
		p.Positions[3*i] -= cx
		p.Positions[3*i+1] -= cy
		p.Positions[3*i+2] -= cz
	}
}

// Radius returns the largest atomic distance from the origin in Angstrom,
// a cheap bound on the particle extent used to pick mesh resolution.
func (p *Particle) Radius() float64 {
	var r2max float64
	for i := 0; i < p.NumAtoms(); i++ {
		x := p.Positions[3*i]
		y := p.Positions[3*i+1]
		z := p.Positions[3*i+2]
		r2 := x*x + y*y + z*z
		if r2 > r2max {
			r2max = r2
		}
	}
	return math.Sqrt(r2max)
}

// FormFactors evaluates the scattering form factor of every distinct
// element at momentum transfer q (inverse Angstrom), in the order of
// p.Elements.
func (p *Particle) FormFactors(q float64) []float64 {
	factors := make([]float64, len(p.Elements))
	for i, sym := range p.Elements {
		factors[i] = FormFactor(sym, q)
	}
	return factors
}

// FormFactor evaluates the Cromer-Mann form factor of an element at
// momentum transfer q = 4*pi*sin(theta)/lambda in inverse Angstrom.
// Unknown elements evaluate to zero; NewParticle rejects them up front.
func FormFactor(symbol string, q float64) float64 {
	cm, ok := cromerMann[canonicalSymbol(symbol)]
	if !ok {
		return 0
	}
	// Cromer-Mann parameterization uses s = sin(theta)/lambda = q/(4*pi)
	s := q / (4 * math.Pi)
	s2 := s * s
	f := cm.c
	for i := 0; i < 4; i++ {
		f += cm.a[i] * math.Exp(-cm.b[i]*s2)
	}
	return f
}

// canonicalSymbol normalizes an element symbol to title case ("FE" -> "Fe").
func canonicalSymbol(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}

// cmCoeff holds the four-Gaussian Cromer-Mann coefficients of one element.
type cmCoeff struct {
	a [4]float64
	b [4]float64
	c float64
}

// Cromer-Mann coefficients from the International Tables for
// Crystallography, Vol. C, for the elements common in biomolecules.
var cromerMann = map[string]cmCoeff{
	"H": {
		a: [4]float64{0.489918, 0.262003, 0.196767, 0.049879},
		b: [4]float64{20.6593, 7.74039, 49.5519, 2.20159},
		c: 0.001305,
	},
	"C": {
		a: [4]float64{2.31000, 1.02000, 1.58860, 0.865000},
		b: [4]float64{20.8439, 10.2075, 0.568700, 51.6512},
		c: 0.215600,
	},
	"N": {
		a: [4]float64{12.2126, 3.13220, 2.01250, 1.16630},
		b: [4]float64{0.005700, 9.89330, 28.9975, 0.582600},
		c: -11.529,
	},
	"O": {
		a: [4]float64{3.04850, 2.28680, 1.54630, 0.867000},
		b: [4]float64{13.2771, 5.70110, 0.323900, 32.9089},
		c: 0.250800,
	},
	"P": {
		a: [4]float64{6.43450, 4.17910, 1.78000, 1.49080},
		b: [4]float64{1.90670, 27.1570, 0.526000, 68.1645},
		c: 1.11490,
	},
	"S": {
		a: [4]float64{6.90530, 5.20340, 1.43790, 1.58630},
		b: [4]float64{1.46790, 22.2151, 0.253600, 56.1720},
		c: 0.866900,
	},
	"Fe": {
		a: [4]float64{11.7695, 7.35730, 3.52220, 2.30450},
		b: [4]float64{4.76110, 0.307200, 15.3535, 76.8805},
		c: 1.03690,
	},
}
