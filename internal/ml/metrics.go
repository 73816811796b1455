package ml

import (
	"math"
	"math/rand"
	"sort"
)

// entropyEpsilon guards against log(0) on zero-probability classes.
const entropyEpsilon = 1e-10

// Entropy returns the information-theoretic spread of a probability vector.
func Entropy(probs []float64) float64 {
	var h float64
	for _, p := range probs {
		h -= p * math.Log(p+entropyEpsilon)
	}
	return h
}

// Margin returns the gap between the top two probabilities, or 1.0 when only
// one class exists.
func Margin(probs []float64) float64 {
	if len(probs) < 2 {
		return 1.0
	}
	top, second := math.Inf(-1), math.Inf(-1)
	for _, p := range probs {
		if p > top {
			second = top
			top = p
		} else if p > second {
			second = p
		}
	}
	return top - second
}

// MaxProb returns the highest class probability.
func MaxProb(probs []float64) float64 {
	var max float64
	for _, p := range probs {
		if p > max {
			max = p
		}
	}
	return max
}

// ArgMax returns the index of the highest probability, lowest index winning
// ties.
func ArgMax(probs []float64) int {
	best := 0
	for i, p := range probs {
		if p > probs[best] {
			best = i
		}
	}
	return best
}

// ClassMetrics holds per-category evaluation scores.
type ClassMetrics struct {
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Support   int     `json:"support"`
}

// Report is a held-out evaluation of a trained classifier.
type Report struct {
	Accuracy   float64                 `json:"accuracy"`
	MacroF1    float64                 `json:"macro_f1"`
	PerClass   map[string]ClassMetrics `json:"per_class"`
	NumSamples int                     `json:"num_samples"`
}

// Evaluate scores predictions against ground truth.
func Evaluate(truth, predicted []string) *Report {
	classes := make(map[string]struct{})
	for _, t := range truth {
		classes[t] = struct{}{}
	}
	for _, p := range predicted {
		classes[p] = struct{}{}
	}

	perClass := make(map[string]ClassMetrics, len(classes))
	correct := 0
	var macroF1 float64
	for class := range classes {
		var tp, fp, fn, support int
		for i := range truth {
			if truth[i] == class {
				support++
				if predicted[i] == class {
					tp++
				} else {
					fn++
				}
			} else if predicted[i] == class {
				fp++
			}
		}
		var precision, recall, f1 float64
		if tp+fp > 0 {
			precision = float64(tp) / float64(tp+fp)
		}
		if tp+fn > 0 {
			recall = float64(tp) / float64(tp+fn)
		}
		if precision+recall > 0 {
			f1 = 2 * precision * recall / (precision + recall)
		}
		perClass[class] = ClassMetrics{
			Precision: precision,
			Recall:    recall,
			F1:        f1,
			Support:   support,
		}
		macroF1 += f1
	}
	for i := range truth {
		if truth[i] == predicted[i] {
			correct++
		}
	}

	report := &Report{
		PerClass:   perClass,
		NumSamples: len(truth),
	}
	if len(truth) > 0 {
		report.Accuracy = float64(correct) / float64(len(truth))
	}
	if len(classes) > 0 {
		report.MacroF1 = macroF1 / float64(len(classes))
	}
	return report
}

// StratifiedSplit partitions indices into train and test sets, preserving
// per-class proportions. Classes too small to stratify keep all members in
// the training set.
func StratifiedSplit(labels []string, testFraction float64, seed int64) (train, test []int) {
	byClass := make(map[string][]int)
	for i, label := range labels {
		byClass[label] = append(byClass[label], i)
	}
	classes := make([]string, 0, len(byClass))
	for class := range byClass {
		classes = append(classes, class)
	}
	sort.Strings(classes)

	rng := rand.New(rand.NewSource(seed))
	for _, class := range classes {
		members := byClass[class]
		rng.Shuffle(len(members), func(i, j int) {
			members[i], members[j] = members[j], members[i]
		})
		nTest := int(math.Round(float64(len(members)) * testFraction))
		if len(members)-nTest < 1 {
			nTest = 0
		}
		test = append(test, members[:nTest]...)
		train = append(train, members[nTest:]...)
	}
	sort.Ints(train)
	sort.Ints(test)
	return train, test
}
