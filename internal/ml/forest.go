package ml

import (
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// treeNode is a single node in a CART decision tree. Leaves carry a class
// distribution; internal nodes route on Feature <= Threshold.
// Exported fields keep the tree gob-encodable.
type treeNode struct {
	Feature   int
	Threshold float64
	Left      *treeNode
	Right     *treeNode
	Dist      []float64
	Leaf      bool
}

// Forest is a bagged ensemble of decision trees with per-split feature
// subsampling. Deliberately simple and robust so retraining can run as an
// unattended background job.
type Forest struct {
	NumTrees        int
	MaxDepth        int
	MinSamplesSplit int
	Seed            int64

	ClassNames []string
	Trees      []*treeNode
}

// NewForest creates an untrained forest.
func NewForest(numTrees int, seed int64) *Forest {
	return &Forest{
		NumTrees:        numTrees,
		MaxDepth:        24,
		MinSamplesSplit: 2,
		Seed:            seed,
	}
}

// Fit trains the forest on feature matrix x and class labels y.
func (f *Forest) Fit(x *mat.Dense, y []string) {
	classIndex := make(map[string]int)
	for _, label := range y {
		if _, ok := classIndex[label]; !ok {
			classIndex[label] = 0
		}
	}
	f.ClassNames = make([]string, 0, len(classIndex))
	for label := range classIndex {
		f.ClassNames = append(f.ClassNames, label)
	}
	sort.Strings(f.ClassNames)
	for i, label := range f.ClassNames {
		classIndex[label] = i
	}

	n, d := x.Dims()
	targets := make([]int, n)
	for i, label := range y {
		targets[i] = classIndex[label]
	}

	// sqrt(d) features considered per split, the usual forest default.
	mtry := int(math.Sqrt(float64(d)))
	if mtry < 1 {
		mtry = 1
	}

	rng := rand.New(rand.NewSource(f.Seed))
	f.Trees = make([]*treeNode, f.NumTrees)
	for t := 0; t < f.NumTrees; t++ {
		sample := make([]int, n)
		for i := range sample {
			sample[i] = rng.Intn(n)
		}
		f.Trees[t] = f.buildTree(x, targets, sample, mtry, 0, rng)
	}
}

func (f *Forest) leaf(targets []int, rows []int) *treeNode {
	dist := make([]float64, len(f.ClassNames))
	for _, r := range rows {
		dist[targets[r]]++
	}
	if len(rows) > 0 {
		for i := range dist {
			dist[i] /= float64(len(rows))
		}
	}
	return &treeNode{Leaf: true, Dist: dist}
}

func gini(counts []int, total int) float64 {
	if total == 0 {
		return 0
	}
	impurity := 1.0
	for _, c := range counts {
		p := float64(c) / float64(total)
		impurity -= p * p
	}
	return impurity
}

func (f *Forest) buildTree(x *mat.Dense, targets, rows []int, mtry, depth int, rng *rand.Rand) *treeNode {
	pure := true
	for _, r := range rows[1:] {
		if targets[r] != targets[rows[0]] {
			pure = false
			break
		}
	}
	if pure || depth >= f.MaxDepth || len(rows) < f.MinSamplesSplit {
		return f.leaf(targets, rows)
	}

	_, d := x.Dims()
	bestGain := 0.0
	bestFeature := -1
	bestThreshold := 0.0

	parentCounts := make([]int, len(f.ClassNames))
	for _, r := range rows {
		parentCounts[targets[r]]++
	}
	parentGini := gini(parentCounts, len(rows))

	for _, feature := range rng.Perm(d)[:mtry] {
		// Candidate thresholds from the midpoints of sorted unique values.
		values := make([]float64, len(rows))
		for i, r := range rows {
			values[i] = x.At(r, feature)
		}
		sort.Float64s(values)

		prev := values[0]
		for _, v := range values[1:] {
			if v == prev {
				continue
			}
			threshold := (prev + v) / 2
			prev = v

			leftCounts := make([]int, len(f.ClassNames))
			leftTotal := 0
			for _, r := range rows {
				if x.At(r, feature) <= threshold {
					leftCounts[targets[r]]++
					leftTotal++
				}
			}
			rightTotal := len(rows) - leftTotal
			if leftTotal == 0 || rightTotal == 0 {
				continue
			}
			rightCounts := make([]int, len(f.ClassNames))
			for i := range rightCounts {
				rightCounts[i] = parentCounts[i] - leftCounts[i]
			}
			gain := parentGini -
				(float64(leftTotal)*gini(leftCounts, leftTotal)+
					float64(rightTotal)*gini(rightCounts, rightTotal))/float64(len(rows))
			if gain > bestGain {
				bestGain = gain
				bestFeature = feature
				bestThreshold = threshold
			}
		}
	}

	if bestFeature < 0 {
		return f.leaf(targets, rows)
	}

	var left, right []int
	for _, r := range rows {
		if x.At(r, bestFeature) <= bestThreshold {
			left = append(left, r)
		} else {
			right = append(right, r)
		}
	}
	return &treeNode{
		Feature:   bestFeature,
		Threshold: bestThreshold,
		Left:      f.buildTree(x, targets, left, mtry, depth+1, rng),
		Right:     f.buildTree(x, targets, right, mtry, depth+1, rng),
	}
}

func (n *treeNode) predict(row mat.Vector) []float64 {
	node := n
	for !node.Leaf {
		if row.AtVec(node.Feature) <= node.Threshold {
			node = node.Left
		} else {
			node = node.Right
		}
	}
	return node.Dist
}

// PredictProba returns one probability vector per row of x, averaged over
// the ensemble and ordered by Classes().
func (f *Forest) PredictProba(x *mat.Dense) [][]float64 {
	n, _ := x.Dims()
	out := make([][]float64, n)
	for i := 0; i < n; i++ {
		probs := make([]float64, len(f.ClassNames))
		for _, tree := range f.Trees {
			for c, p := range tree.predict(x.RowView(i)) {
				probs[c] += p
			}
		}
		for c := range probs {
			probs[c] /= float64(len(f.Trees))
		}
		out[i] = probs
	}
	return out
}

// Classes returns the class names in probability-vector order.
func (f *Forest) Classes() []string {
	return f.ClassNames
}
