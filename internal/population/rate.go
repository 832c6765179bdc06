package population

import (
	"math"
	"math/rand"

	"footfall/server/internal/nav"
)

// DeriveSpawnRate sums the visit rates of the sub-goals. A sub-goal with
// traffic t draws one visitor every t seconds; non-positive traffic
// contributes nothing.
func DeriveSpawnRate(subGoals []*nav.Location) float64 {
	sum := 0.0
	for _, loc := range subGoals {
		sum += loc.VisitRate()
	}
	return sum
}

// SpawnProbability thins a Poisson process of rate lambda*busyness into a
// per-tick Bernoulli trial.
func SpawnProbability(lambda, busyness, dt float64) float64 {
	rate := lambda * busyness
	if rate <= 0 || dt <= 0 {
		return 0
	}
	return 1 - math.Exp(-rate*dt)
}

// PickWeighted draws one item with probability proportional to weight.
// Negative and NaN weights count as zero; when every weight is zero the pick
// is uniform. An empty slice yields the zero value and false.
func PickWeighted[T any](rng *rand.Rand, items []T, weight func(T) float64) (T, bool) {
	var zero T
	if len(items) == 0 {
		return zero, false
	}
	weights := make([]float64, len(items))
	total := 0.0
	for i, item := range items {
		w := weight(item)
		if !(w > 0) || math.IsInf(w, 0) {
			w = 0
		}
		weights[i] = w
		total += w
	}
	if total <= 0 {
		return items[rng.Intn(len(items))], true
	}
	r := rng.Float64() * total
	for i, w := range weights {
		r -= w
		if r <= 0 && w > 0 {
			return items[i], true
		}
	}
	for i := len(items) - 1; i >= 0; i-- {
		if weights[i] > 0 {
			return items[i], true
		}
	}
	return items[len(items)-1], true
}

func entryWeight(loc *nav.Location) float64 {
	if loc.Traffic > 0 {
		return loc.Traffic
	}
	return 1
}

func exitWeight(loc *nav.Location) float64 {
	if loc.Traffic > 0 {
		return 1 / loc.Traffic
	}
	return 1
}

func subGoalWeight(loc *nav.Location) float64 {
	return loc.VisitRate()
}
