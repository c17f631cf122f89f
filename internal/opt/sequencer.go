package opt

import (
	"math"

	"medroute/internal/model"
)

// fallbackMinutesPerKm estimates travel time when no duration matrix is
// supplied (30 km/h average).
const fallbackMinutesPerKm = 2.0

// SolveTSP orders a single tour over the given distance matrix, starting at
// start. It is the capacity-free reduction of the CVRP machinery: greedy
// nearest-neighbor construction with deterministic index tie-breaking,
// then 2-opt improvement. durMin may be nil; travel time is then estimated
// from distance.
func SolveTSP(distKm, durMin [][]float64, start int, returnToStart bool) model.TSPResult {
	n := len(distKm)
	if n == 0 {
		return model.TSPResult{Sequence: []int{}}
	}
	if start < 0 || start >= n {
		start = 0
	}
	if n == 1 {
		return model.TSPResult{Sequence: []int{start}}
	}

	seq := nearestNeighborOrder(distKm, start)
	seq = improveTwoOpt(distKm, seq, returnToStart)

	var totalKm, totalMin float64
	for i := 0; i+1 < len(seq); i++ {
		totalKm += distKm[seq[i]][seq[i+1]]
		totalMin += legMinutes(distKm, durMin, seq[i], seq[i+1])
	}
	if returnToStart {
		last := seq[len(seq)-1]
		totalKm += distKm[last][seq[0]]
		totalMin += legMinutes(distKm, durMin, last, seq[0])
	}
	return model.TSPResult{Sequence: seq, TotalDistanceKm: totalKm, TotalTimeMinutes: totalMin}
}

func legMinutes(distKm, durMin [][]float64, from, to int) float64 {
	if durMin != nil {
		return durMin[from][to]
	}
	return distKm[from][to] * fallbackMinutesPerKm
}

func nearestNeighborOrder(distKm [][]float64, start int) []int {
	n := len(distKm)
	visited := make([]bool, n)
	seq := make([]int, 0, n)
	cur := start
	visited[cur] = true
	seq = append(seq, cur)
	for len(seq) < n {
		next := -1
		best := math.MaxFloat64
		for cand := 0; cand < n; cand++ {
			// strict less keeps the lowest index on ties
			if !visited[cand] && distKm[cur][cand] < best {
				best = distKm[cur][cand]
				next = cand
			}
		}
		if next < 0 {
			break
		}
		visited[next] = true
		seq = append(seq, next)
		cur = next
	}
	return seq
}

// improveTwoOpt reverses segments after the fixed start position while the
// tour shortens. The closing leg is included only when the tour returns to
// its start.
func improveTwoOpt(distKm [][]float64, seq []int, closed bool) []int {
	best := append([]int(nil), seq...)
	bestDist := tourDistance(distKm, best, closed)
	n := len(seq)
	improved := true
	for improved {
		improved = false
		for i := 1; i < n-1; i++ {
			for k := i + 1; k < n; k++ {
				cand := append([]int(nil), best...)
				for a, b := i, k; a < b; a, b = a+1, b-1 {
					cand[a], cand[b] = cand[b], cand[a]
				}
				if d := tourDistance(distKm, cand, closed); d+1e-9 < bestDist {
					best = cand
					bestDist = d
					improved = true
				}
			}
		}
	}
	return best
}

func tourDistance(distKm [][]float64, seq []int, closed bool) float64 {
	total := 0.0
	for i := 0; i+1 < len(seq); i++ {
		total += distKm[seq[i]][seq[i+1]]
	}
	if closed && len(seq) > 1 {
		total += distKm[seq[len(seq)-1]][seq[0]]
	}
	return total
}
