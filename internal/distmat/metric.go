package distmat

import "math"

// Metric computes the distance between two coordinate pairs.
type Metric func(a, b [2]float64) float64

// Euclidean treats coordinates as points on a plane.
func Euclidean(a, b [2]float64) float64 {
	dx := a[0] - b[0]
	dy := a[1] - b[1]
	return math.Sqrt(dx*dx + dy*dy)
}

// HaversineMeters treats coordinates as (lat, lng) degrees and returns
// great-circle distance in meters.
func HaversineMeters(a, b [2]float64) float64 {
	const R = 6371000.0
	dLat := (b[0] - a[0]) * math.Pi / 180
	dLon := (b[1] - a[1]) * math.Pi / 180
	h := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(a[0]*math.Pi/180)*math.Cos(b[0]*math.Pi/180)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return R * c
}

// Compute builds the full pairwise matrix in one batched pass over the
// upper triangle, mirroring into the lower half. Diagonal is exactly zero.
func Compute(locations [][2]float64, metric Metric) Matrix {
	n := len(locations)
	m := make(Matrix, n)
	for i := range m {
		m[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		row := m[i]
		for j := i + 1; j < n; j++ {
			d := metric(locations[i], locations[j])
			row[j] = d
			m[j][i] = d
		}
	}
	return m
}
