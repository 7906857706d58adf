package features

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/mathext"
)

// mutualInformation estimates I(X;Y) for continuous x and y with the
// Kraskov-Stögbauer-Grassberger k-nearest-neighbour estimator using the max
// norm. Negative estimates are clipped to 0. Fewer than two samples give 0.
func mutualInformation(x, y []float64, k int) float64 {
	n := len(x)
	if n < 2 {
		return 0
	}
	k = min(k, n-1)

	dist := make([]float64, 0, n-1)
	var sum float64
	for i := 0; i < n; i++ {
		dist = dist[:0]
		for j := 0; j < n; j++ {
			if j == i {
				continue
			}
			dist = append(dist, math.Max(math.Abs(x[i]-x[j]), math.Abs(y[i]-y[j])))
		}
		slices.Sort(dist)
		radius := math.Nextafter(dist[k-1], 0)

		var nx, ny int
		for j := 0; j < n; j++ {
			if j == i {
				continue
			}
			if math.Abs(x[i]-x[j]) <= radius {
				nx++
			}
			if math.Abs(y[i]-y[j]) <= radius {
				ny++
			}
		}
		sum += mathext.Digamma(float64(nx+1)) + mathext.Digamma(float64(ny+1))
	}

	mi := mathext.Digamma(float64(n)) + mathext.Digamma(float64(k)) - sum/float64(n)
	return math.Max(mi, 0)
}
