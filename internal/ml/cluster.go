package ml

import (
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// Noise is the cluster label DBSCAN assigns to unclustered points.
const Noise = -1

// CosineDistance returns 1 - cosine similarity between two vectors.
// Zero vectors are treated as maximally distant from everything.
func CosineDistance(a, b mat.Vector) float64 {
	var dot, na, nb float64
	for i := 0; i < a.Len(); i++ {
		av, bv := a.AtVec(i), b.AtVec(i)
		dot += av * bv
		na += av * av
		nb += bv * bv
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}

// CosineDistances computes the pairwise cosine-distance matrix over the rows
// of x.
func CosineDistances(x *mat.Dense) *mat.Dense {
	n, _ := x.Dims()
	d := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			dist := CosineDistance(x.RowView(i), x.RowView(j))
			d.Set(i, j, dist)
			d.Set(j, i, dist)
		}
	}
	return d
}

// DBSCAN runs density-based clustering over a precomputed distance matrix.
// Returns one cluster label per point; unclustered points get Noise.
// Cluster count is discovered, not configured.
func DBSCAN(dist *mat.Dense, eps float64, minSamples int) []int {
	n, _ := dist.Dims()
	labels := make([]int, n)
	for i := range labels {
		labels[i] = Noise
	}
	visited := make([]bool, n)

	neighbors := func(p int) []int {
		var out []int
		for q := 0; q < n; q++ {
			if dist.At(p, q) <= eps {
				out = append(out, q)
			}
		}
		return out
	}

	cluster := 0
	for p := 0; p < n; p++ {
		if visited[p] {
			continue
		}
		visited[p] = true
		seeds := neighbors(p)
		if len(seeds) < minSamples {
			continue
		}
		labels[p] = cluster
		for i := 0; i < len(seeds); i++ {
			q := seeds[i]
			if labels[q] == Noise {
				labels[q] = cluster
			}
			if visited[q] {
				continue
			}
			visited[q] = true
			labels[q] = cluster
			qn := neighbors(q)
			if len(qn) >= minSamples {
				seeds = append(seeds, qn...)
			}
		}
		cluster++
	}
	return labels
}

// KMeans partitions the rows of x into k clusters by Euclidean distance,
// taking the best of nInit seeded restarts by within-cluster inertia.
func KMeans(x *mat.Dense, k int, seed int64, nInit int) []int {
	n, d := x.Dims()
	if k > n {
		k = n
	}
	rng := rand.New(rand.NewSource(seed))

	bestInertia := math.Inf(1)
	var bestLabels []int

	for run := 0; run < nInit; run++ {
		centroids := mat.NewDense(k, d, nil)
		for i, p := range rng.Perm(n)[:k] {
			centroids.SetRow(i, mat.Row(nil, p, x))
		}
		labels := make([]int, n)

		for iter := 0; iter < 100; iter++ {
			changed := false
			for i := 0; i < n; i++ {
				best, bestDist := 0, math.Inf(1)
				for c := 0; c < k; c++ {
					var dist float64
					for j := 0; j < d; j++ {
						diff := x.At(i, j) - centroids.At(c, j)
						dist += diff * diff
					}
					if dist < bestDist {
						best, bestDist = c, dist
					}
				}
				if labels[i] != best {
					labels[i] = best
					changed = true
				}
			}
			if !changed && iter > 0 {
				break
			}
			// Recompute centroids; empty clusters keep their old position.
			counts := make([]int, k)
			next := mat.NewDense(k, d, nil)
			for i := 0; i < n; i++ {
				counts[labels[i]]++
				for j := 0; j < d; j++ {
					next.Set(labels[i], j, next.At(labels[i], j)+x.At(i, j))
				}
			}
			for c := 0; c < k; c++ {
				if counts[c] == 0 {
					next.SetRow(c, mat.Row(nil, c, centroids))
					continue
				}
				for j := 0; j < d; j++ {
					next.Set(c, j, next.At(c, j)/float64(counts[c]))
				}
			}
			centroids = next
		}

		var inertia float64
		for i := 0; i < n; i++ {
			for j := 0; j < d; j++ {
				diff := x.At(i, j) - centroids.At(labels[i], j)
				inertia += diff * diff
			}
		}
		if inertia < bestInertia {
			bestInertia = inertia
			bestLabels = labels
		}
	}
	return bestLabels
}

// Centroid returns the mean of the given rows of x.
func Centroid(x *mat.Dense, rows []int) []float64 {
	_, d := x.Dims()
	out := make([]float64, d)
	if len(rows) == 0 {
		return out
	}
	for _, r := range rows {
		for j := 0; j < d; j++ {
			out[j] += x.At(r, j)
		}
	}
	for j := range out {
		out[j] /= float64(len(rows))
	}
	return out
}

// NearestToCentroid returns the indices (into rows) of the count members
// closest to the cluster centroid by cosine distance.
func NearestToCentroid(x *mat.Dense, rows []int, count int) []int {
	c := Centroid(x, rows)
	centroid := mat.NewVecDense(len(c), c)
	type memberDist struct {
		idx  int
		dist float64
	}
	dists := make([]memberDist, len(rows))
	for i, r := range rows {
		dists[i] = memberDist{idx: i, dist: CosineDistance(x.RowView(r), centroid)}
	}
	sort.Slice(dists, func(i, j int) bool {
		if dists[i].dist != dists[j].dist {
			return dists[i].dist < dists[j].dist
		}
		return dists[i].idx < dists[j].idx
	})
	if count > len(dists) {
		count = len(dists)
	}
	out := make([]int, count)
	for i := 0; i < count; i++ {
		out[i] = dists[i].idx
	}
	return out
}
