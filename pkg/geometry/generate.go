package geometry

import (
	"fmt"
	"math"
	"math/rand"
)

// UniformQuaternions distributes n unit quaternions approximately evenly
// over the hypersurface of the 4-sphere, giving a deterministic set of
// orientations that covers rotation space uniformly.
//
// The spacing parameter delta is refined iteratively until the spherical
// spiral yields exactly n points.
func UniformQuaternions(n int) ([]Quaternion, error) {
	if n < 1 {
		return nil, fmt.Errorf("number of orientations must be positive, got %d", n)
	}

	const dim = 4
	const maxIter = 1000

	// Surface area of the unit 3-sphere
	surfaceArea := dim * math.Pow(math.Pi, dim/2) / (dim / 2)
	delta := math.Exp(math.Log(surfaceArea/float64(n)) / 3)

	// The spiral rarely yields exactly n points for arbitrary n, so keep
	// the tightest overshoot seen and truncate it.
	var best []Quaternion
	for iter := 0; iter < maxIter; iter++ {
		points := make([]Quaternion, 0, 2*n)

		deltaW1 := delta
		for w1 := 0.5 * deltaW1; w1 < math.Pi; w1 += deltaW1 {
			q0 := math.Cos(w1)
			deltaW2 := deltaW1 / math.Sin(w1)
			for w2 := 0.5 * deltaW2; w2 < math.Pi; w2 += deltaW2 {
				q1 := math.Sin(w1) * math.Cos(w2)
				deltaW3 := deltaW2 / math.Sin(w2)
				for w3 := 0.5 * deltaW3; w3 < 2*math.Pi; w3 += deltaW3 {
					q2 := math.Sin(w1) * math.Sin(w2) * math.Cos(w3)
					q3 := math.Sin(w1) * math.Sin(w2) * math.Sin(w3)
					points = append(points, Quaternion{q0, q1, q2, q3})
				}
			}
		}

		count := len(points)
		if count == n {
			return points, nil
		}
		if count > n && (best == nil || count < len(best)) {
			best = points
		}
		delta *= math.Exp(math.Log(float64(count)/float64(n)) / 3)
	}

	if best == nil {
		return nil, fmt.Errorf("failed to converge on %d uniform orientations", n)
	}
	return best[:n], nil
}

// RandomQuaternions draws n unit quaternions uniformly at random over
// rotation space using Shoemake's subgroup algorithm. The caller supplies
// the random source so orientation sets are reproducible under a fixed
// seed.
func RandomQuaternions(n int, rng *rand.Rand) []Quaternion {
	points := make([]Quaternion, n)
	for i := range points {
		u1 := rng.Float64()
		u2 := rng.Float64()
		u3 := rng.Float64()
		points[i] = Quaternion{
			math.Sqrt(1-u1) * math.Sin(2*math.Pi*u2),
			math.Sqrt(1-u1) * math.Cos(2*math.Pi*u2),
			math.Sqrt(u1) * math.Sin(2*math.Pi*u3),
			math.Sqrt(u1) * math.Cos(2*math.Pi*u3),
		}
	}
	return points
}

// CircleQuaternions distributes n orientations evenly around a single
// rotation axis, useful for tomography-style sweeps.
func CircleQuaternions(n int, axisName string) ([]Quaternion, error) {
	axis, err := NamedAxis(axisName)
	if err != nil {
		return nil, err
	}

	points := make([]Quaternion, n)
	inc := 2 * math.Pi / float64(n)
	for i := range points {
		q, err := AngleAxisQuaternion(axis, float64(i)*inc)
		if err != nil {
			return nil, err
		}
		points[i] = q
	}
	return points, nil
}
