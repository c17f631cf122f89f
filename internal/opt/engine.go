package opt

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"medroute/internal/model"
)

// Default search budget; callers can shorten or extend it per solve.
const DefaultTimeBudget = 5 * time.Second

// Arc costs are kept as integers internally: km scaled to meters, with the
// duration term scaled the same way when a time weight is set.
const costScale = 1000

// baseDropPenalty is the cost (in arc units) of leaving a priority-1 stop
// unassigned. It matches the disjunction penalty the production planner has
// always used, and dwarfs any realistic route cost so urgent stops are only
// dropped when no feasible placement exists.
const baseDropPenalty int64 = 10_000_000

// DefaultDropPenalty maps stop priority to drop cost: lower priority numbers
// (more urgent) yield larger penalties. Exposed so callers can tune the
// mapping through Options.DropPenalty.
func DefaultDropPenalty(priority int) int64 {
	if priority < 1 {
		priority = 1
	}
	return baseDropPenalty / int64(priority)
}

// Options controls one CVRP solve.
type Options struct {
	TimeBudget     time.Duration
	Seed           int64 // fixed default keeps repeated solves deterministic
	IterationLimit int
	DistanceWeight float64 // arc cost blend; defaults to pure distance
	TimeWeight     float64
	DropPenalty    func(priority int) int64
	InitialTemp    float64
	Cooling        float64
}

// Metrics reports search behaviour for one solver run.
type Metrics struct {
	RemovalSelects        [2]int // random, related
	InsertSelects         [2]int // greedy, regret2
	Iterations            int
	Improvements          int
	AcceptedWorse         int
	BestCost              int64
	FinalCost             int64
	FinalRemovalWeights   [2]float64
	FinalInsertionWeights [2]float64
	Snapshots             []WeightSnapshot
}

type WeightSnapshot struct {
	Iteration int
	Removal   [2]float64
	Insertion [2]float64
}

// plan is one vehicle's ordered tour, as location indices without the depot.
type plan struct {
	vehicle int // index into the problem's vehicle list
	order   []int
}

type state struct {
	plans []plan
	cost  int64
}

// engine is per-solve search state. A fresh engine is built for every call,
// so concurrent solves never share anything mutable.
type engine struct {
	p        *Problem
	rng      *rand.Rand
	arc      [][]int64
	demandW  []int64 // per location, kg x100
	demandV  []int64 // per location, m3 x1000
	cold     []bool
	drop     []int64 // per location drop penalty
	capW     []int64 // per vehicle, kg x100
	capV     []int64 // per vehicle, m3 x1000
	usable   []int   // indices of available vehicles
}

// SolveCVRP finds a low-cost set of vehicle routes covering as many stops as
// feasible. Infeasibility and internal faults both surface as a failed
// Solution, never as a panic or error to the caller.
func SolveCVRP(p *Problem, opts Options) (sol model.Solution, m Metrics) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			sol = failedSolution(p, fmt.Sprintf("internal solver fault: %v", r))
			sol.ComputationMs = time.Since(start).Milliseconds()
		}
	}()

	if opts.TimeBudget <= 0 {
		opts.TimeBudget = DefaultTimeBudget
	}
	if opts.Seed == 0 {
		opts.Seed = 1
	}
	if opts.DistanceWeight == 0 && opts.TimeWeight == 0 {
		opts.DistanceWeight = 1
	}
	if opts.DropPenalty == nil {
		opts.DropPenalty = DefaultDropPenalty
	}
	temp := 1.0
	if opts.InitialTemp > 0 {
		temp = opts.InitialTemp
	}
	cool := 0.995
	if opts.Cooling > 0 && opts.Cooling < 1 {
		cool = opts.Cooling
	}

	e := newEngine(p, opts)
	curr := e.greedySeed()
	best := e.clone(curr)

	remW := []float64{1, 1} // random, related
	insW := []float64{1, 1} // greedy, regret2
	m = Metrics{BestCost: best.cost}
	deadline := start.Add(opts.TimeBudget)
	const snapshotEvery = 50

	for time.Now().Before(deadline) {
		m.Iterations++
		if opts.IterationLimit > 0 && m.Iterations >= opts.IterationLimit {
			break
		}
		k := 1 + e.rng.Intn(3)
		op := selectOp(remW, e.rng)
		m.RemovalSelects[op]++
		ip := selectOp(insW, e.rng)
		m.InsertSelects[ip]++

		var removed []int
		switch op {
		case 0:
			removed = e.randomRemoval(curr, k)
		case 1:
			removed = e.relatedRemoval(curr, k)
		}
		e.removeLocations(curr, removed)
		pool := e.insertionPool(curr, removed)
		switch ip {
		case 0:
			e.greedyInsert(curr, pool)
		case 1:
			e.regretInsert(curr, pool)
		}
		e.twoOptImprove(curr)
		e.relocateImprove(curr)
		e.crossExchangeImprove(curr)
		curr.cost = e.cost(curr)

		delta := curr.cost - best.cost
		switch {
		case delta < 0:
			best = e.clone(curr)
			remW[op] += 0.1
			insW[ip] += 0.1
			m.Improvements++
			m.BestCost = best.cost
		case e.rng.Float64() < math.Exp(-float64(delta)/(temp*float64(costScale)+1e-9)):
			remW[op] += 0.01
			insW[ip] += 0.01
			m.AcceptedWorse++
		default:
			remW[op] = math.Max(0.01, remW[op]*0.999)
			insW[ip] = math.Max(0.01, insW[ip]*0.999)
			curr = e.clone(best)
		}
		temp *= cool

		if m.Iterations%snapshotEvery == 0 {
			m.Snapshots = append(m.Snapshots, WeightSnapshot{
				Iteration: m.Iterations,
				Removal:   [2]float64{remW[0], remW[1]},
				Insertion: [2]float64{insW[0], insW[1]},
			})
		}
	}
	m.FinalCost = best.cost
	m.FinalRemovalWeights = [2]float64{remW[0], remW[1]}
	m.FinalInsertionWeights = [2]float64{insW[0], insW[1]}

	sol = e.extract(best)
	sol.ComputationMs = time.Since(start).Milliseconds()
	return sol, m
}

func newEngine(p *Problem, opts Options) *engine {
	n := p.NumLocations()
	e := &engine{
		p:       p,
		rng:     rand.New(rand.NewSource(opts.Seed)),
		arc:     make([][]int64, n),
		demandW: make([]int64, n),
		demandV: make([]int64, n),
		cold:    make([]bool, n),
		drop:    make([]int64, n),
	}
	for i := 0; i < n; i++ {
		e.arc[i] = make([]int64, n)
		for j := 0; j < n; j++ {
			c := opts.DistanceWeight*p.DistKm(i, j) + opts.TimeWeight*p.DurMin(i, j)
			e.arc[i][j] = int64(math.Round(c * costScale))
		}
	}
	for i := 0; i < n; i++ {
		if i == p.Depot() {
			continue
		}
		s := p.StopAt(i)
		e.demandW[i] = int64(math.Round(s.WeightKg * 100))
		e.demandV[i] = int64(math.Round(s.VolumeM3 * 1000))
		e.cold[i] = s.RequiresColdChain
		e.drop[i] = opts.DropPenalty(s.Priority)
	}
	for vi, v := range p.Vehicles() {
		e.capW = append(e.capW, int64(math.Round(v.CapacityKg*100)))
		e.capV = append(e.capV, int64(math.Round(v.CapacityM3*1000)))
		if v.IsAvailable {
			e.usable = append(e.usable, vi)
		}
	}
	return e
}

func (e *engine) clone(s *state) *state {
	out := &state{plans: make([]plan, len(s.plans)), cost: s.cost}
	for i := range s.plans {
		out.plans[i] = plan{vehicle: s.plans[i].vehicle, order: append([]int(nil), s.plans[i].order...)}
	}
	return out
}

// feasible reports whether loc can join pl without breaking any hard
// constraint: weight, volume, refrigeration, max stop count. Capacities are
// literal, so a zero-capacity vehicle admits nothing with positive demand.
func (e *engine) feasible(pl plan, loc int) bool {
	v := e.p.Vehicle(pl.vehicle)
	if e.cold[loc] && !v.HasRefrigeration {
		return false
	}
	if len(pl.order)+1 > v.MaxStopsLimit() {
		return false
	}
	w, vol := e.demandW[loc], e.demandV[loc]
	for _, l := range pl.order {
		w += e.demandW[l]
		vol += e.demandV[l]
	}
	if w > e.capW[pl.vehicle] {
		return false
	}
	if vol > e.capV[pl.vehicle] {
		return false
	}
	return true
}

// insertionDelta is the arc-cost change of inserting loc at pos in pl.
func (e *engine) insertionDelta(pl plan, loc, pos int) int64 {
	depot := e.p.Depot()
	prev := depot
	if pos > 0 {
		prev = pl.order[pos-1]
	}
	next := depot
	if pos < len(pl.order) {
		next = pl.order[pos]
	}
	return e.arc[prev][loc] + e.arc[loc][next] - e.arc[prev][next]
}

func (e *engine) planCost(pl plan) int64 {
	if len(pl.order) == 0 {
		return 0
	}
	depot := e.p.Depot()
	total := e.arc[depot][pl.order[0]]
	for i := 0; i+1 < len(pl.order); i++ {
		total += e.arc[pl.order[i]][pl.order[i+1]]
	}
	total += e.arc[pl.order[len(pl.order)-1]][depot]
	return total
}

func (e *engine) cost(s *state) int64 {
	total := int64(0)
	assigned := e.assignedSet(s)
	for _, pl := range s.plans {
		total += e.planCost(pl)
	}
	for loc := 0; loc < e.p.NumLocations(); loc++ {
		if loc == e.p.Depot() || assigned[loc] {
			continue
		}
		total += e.drop[loc]
	}
	return total
}

func (e *engine) assignedSet(s *state) []bool {
	assigned := make([]bool, e.p.NumLocations())
	for _, pl := range s.plans {
		for _, loc := range pl.order {
			assigned[loc] = true
		}
	}
	return assigned
}

// greedySeed builds the first feasible solution by cheapest feasible
// insertion, round-robin over usable vehicles. Ties break on the lower
// location index because candidates are scanned in ascending order.
func (e *engine) greedySeed() *state {
	s := &state{plans: make([]plan, len(e.usable))}
	for i, vi := range e.usable {
		s.plans[i] = plan{vehicle: vi, order: []int{}}
	}
	pool := e.allStopLocations()
	progress := true
	for progress && len(pool) > 0 {
		progress = false
		for pi := range s.plans {
			bestLoc, bestPos, bestIdx := -1, -1, -1
			bestDelta := int64(math.MaxInt64)
			for ci, loc := range pool {
				if !e.feasible(s.plans[pi], loc) {
					continue
				}
				for pos := 0; pos <= len(s.plans[pi].order); pos++ {
					if d := e.insertionDelta(s.plans[pi], loc, pos); d < bestDelta {
						bestDelta = d
						bestLoc, bestPos, bestIdx = loc, pos, ci
					}
				}
			}
			if bestLoc >= 0 {
				s.plans[pi].order = insertAt(s.plans[pi].order, bestPos, bestLoc)
				pool = append(pool[:bestIdx], pool[bestIdx+1:]...)
				progress = true
			}
		}
	}
	s.cost = e.cost(s)
	return s
}

func (e *engine) allStopLocations() []int {
	out := make([]int, 0, e.p.NumStops())
	for loc := 0; loc < e.p.NumLocations(); loc++ {
		if loc != e.p.Depot() {
			out = append(out, loc)
		}
	}
	return out
}

func (e *engine) randomRemoval(s *state, k int) []int {
	assigned := e.assignedList(s)
	removed := []int{}
	for i := 0; i < k && len(assigned) > 0; i++ {
		j := e.rng.Intn(len(assigned))
		removed = append(removed, assigned[j])
		assigned = append(assigned[:j], assigned[j+1:]...)
	}
	return removed
}

// relatedRemoval picks a random seed stop and removes its k-1 nearest
// assigned neighbours with it, measured by arc cost.
func (e *engine) relatedRemoval(s *state, k int) []int {
	assigned := e.assignedList(s)
	if len(assigned) == 0 {
		return nil
	}
	seed := assigned[e.rng.Intn(len(assigned))]
	type scored struct {
		loc  int
		cost int64
	}
	rel := make([]scored, 0, len(assigned))
	for _, loc := range assigned {
		if loc != seed {
			rel = append(rel, scored{loc: loc, cost: e.arc[seed][loc]})
		}
	}
	// insertion sort keeps ties ordered by the original (ascending) scan
	for i := 1; i < len(rel); i++ {
		for j := i; j > 0 && rel[j].cost < rel[j-1].cost; j-- {
			rel[j], rel[j-1] = rel[j-1], rel[j]
		}
	}
	removed := []int{seed}
	for i := 0; i < len(rel) && len(removed) < k; i++ {
		removed = append(removed, rel[i].loc)
	}
	return removed
}

func (e *engine) assignedList(s *state) []int {
	out := []int{}
	for _, pl := range s.plans {
		out = append(out, pl.order...)
	}
	return out
}

func (e *engine) removeLocations(s *state, removed []int) {
	if len(removed) == 0 {
		return
	}
	rm := map[int]bool{}
	for _, loc := range removed {
		rm[loc] = true
	}
	for i := range s.plans {
		kept := s.plans[i].order[:0]
		for _, loc := range s.plans[i].order {
			if !rm[loc] {
				kept = append(kept, loc)
			}
		}
		s.plans[i].order = kept
	}
}

// insertionPool is the removed set plus anything currently unassigned, in
// ascending location order, so dropped stops keep competing for a seat.
func (e *engine) insertionPool(s *state, removed []int) []int {
	assigned := e.assignedSet(s)
	inPool := make([]bool, e.p.NumLocations())
	for _, loc := range removed {
		inPool[loc] = true
	}
	pool := []int{}
	for loc := 0; loc < e.p.NumLocations(); loc++ {
		if loc == e.p.Depot() {
			continue
		}
		if inPool[loc] || !assigned[loc] {
			pool = append(pool, loc)
		}
	}
	return pool
}

// greedyInsert places pool locations by cheapest feasible insertion.
// Whatever cannot be placed stays unassigned and pays its drop penalty.
func (e *engine) greedyInsert(s *state, pool []int) {
	for len(pool) > 0 {
		bestIdx, bestPlan, bestPos := -1, -1, -1
		bestDelta := int64(math.MaxInt64)
		for ci, loc := range pool {
			for pi := range s.plans {
				if !e.feasible(s.plans[pi], loc) {
					continue
				}
				for pos := 0; pos <= len(s.plans[pi].order); pos++ {
					if d := e.insertionDelta(s.plans[pi], loc, pos); d < bestDelta {
						bestDelta = d
						bestIdx, bestPlan, bestPos = ci, pi, pos
					}
				}
			}
		}
		if bestIdx < 0 {
			return
		}
		s.plans[bestPlan].order = insertAt(s.plans[bestPlan].order, bestPos, pool[bestIdx])
		pool = append(pool[:bestIdx], pool[bestIdx+1:]...)
	}
}

// regretInsert prefers the location whose second-best placement is much
// worse than its best one (regret-2), so hard-to-place stops go first.
func (e *engine) regretInsert(s *state, pool []int) {
	for len(pool) > 0 {
		bestIdx, bestPlan, bestPos := -1, -1, -1
		bestRegret := int64(-1)
		bestCost := int64(math.MaxInt64)
		for ci, loc := range pool {
			best1, best2 := int64(math.MaxInt64), int64(math.MaxInt64)
			bp, bpos := -1, -1
			for pi := range s.plans {
				if !e.feasible(s.plans[pi], loc) {
					continue
				}
				for pos := 0; pos <= len(s.plans[pi].order); pos++ {
					d := e.insertionDelta(s.plans[pi], loc, pos)
					if d < best1 {
						best2 = best1
						best1 = d
						bp, bpos = pi, pos
					} else if d < best2 {
						best2 = d
					}
				}
			}
			if bp < 0 {
				continue
			}
			regret := int64(0)
			if best2 < math.MaxInt64 {
				regret = best2 - best1
			}
			if regret > bestRegret || (regret == bestRegret && best1 < bestCost) {
				bestRegret = regret
				bestCost = best1
				bestIdx, bestPlan, bestPos = ci, bp, bpos
			}
		}
		if bestIdx < 0 {
			return
		}
		s.plans[bestPlan].order = insertAt(s.plans[bestPlan].order, bestPos, pool[bestIdx])
		pool = append(pool[:bestIdx], pool[bestIdx+1:]...)
	}
}

// twoOptImprove reverses intra-route segments while that lowers arc cost.
// Load, refrigeration, and stop count are order-independent, so no
// feasibility recheck is needed inside one route.
func (e *engine) twoOptImprove(s *state) {
	for pi := range s.plans {
		order := s.plans[pi].order
		n := len(order)
		improved := true
		for improved {
			improved = false
			for i := 0; i < n-1; i++ {
				for k := i + 1; k < n; k++ {
					cand := append([]int(nil), order...)
					for a, b := i, k; a < b; a, b = a+1, b-1 {
						cand[a], cand[b] = cand[b], cand[a]
					}
					if e.planCost(plan{vehicle: s.plans[pi].vehicle, order: cand}) <
						e.planCost(plan{vehicle: s.plans[pi].vehicle, order: order}) {
						order = cand
						improved = true
					}
				}
			}
		}
		s.plans[pi].order = order
	}
}

// relocateImprove moves single stops to a cheaper feasible slot on another
// vehicle. Intra-route reordering is left to 2-opt.
func (e *engine) relocateImprove(s *state) {
	improved := true
	for improved {
		improved = false
		for ai := range s.plans {
			for i := 0; i < len(s.plans[ai].order); i++ {
				loc := s.plans[ai].order[i]
				gain := e.removalDelta(s.plans[ai], i)
				moved := false
				for bi := range s.plans {
					if bi == ai || !e.feasible(s.plans[bi], loc) {
						continue
					}
					for pos := 0; pos <= len(s.plans[bi].order); pos++ {
						if e.insertionDelta(s.plans[bi], loc, pos) < gain {
							s.plans[ai].order = withoutIndex(s.plans[ai].order, i)
							s.plans[bi].order = insertAt(s.plans[bi].order, pos, loc)
							improved, moved = true, true
							break
						}
					}
					if moved {
						break
					}
				}
				if moved {
					break
				}
			}
		}
	}
}

// removalDelta is the arc-cost saving of deleting position i from pl.
func (e *engine) removalDelta(pl plan, i int) int64 {
	depot := e.p.Depot()
	prev := depot
	if i > 0 {
		prev = pl.order[i-1]
	}
	next := depot
	if i+1 < len(pl.order) {
		next = pl.order[i+1]
	}
	loc := pl.order[i]
	return e.arc[prev][loc] + e.arc[loc][next] - e.arc[prev][next]
}

// crossExchangeImprove swaps one stop between two routes when both stay
// feasible and total arc cost drops.
func (e *engine) crossExchangeImprove(s *state) {
	m := len(s.plans)
	if m < 2 {
		return
	}
	improved := true
	for improved {
		improved = false
		for a := 0; a < m; a++ {
			for b := a + 1; b < m; b++ {
				for i := 0; i < len(s.plans[a].order); i++ {
					for j := 0; j < len(s.plans[b].order); j++ {
						ca := append([]int(nil), s.plans[a].order...)
						cb := append([]int(nil), s.plans[b].order...)
						ca[i], cb[j] = cb[j], ca[i]
						pa := plan{vehicle: s.plans[a].vehicle, order: ca}
						pb := plan{vehicle: s.plans[b].vehicle, order: cb}
						if !e.planFeasible(pa) || !e.planFeasible(pb) {
							continue
						}
						before := e.planCost(s.plans[a]) + e.planCost(s.plans[b])
						after := e.planCost(pa) + e.planCost(pb)
						if after < before {
							s.plans[a] = pa
							s.plans[b] = pb
							improved = true
						}
					}
				}
			}
		}
	}
}

// planFeasible rechecks a whole route against its vehicle's hard limits.
func (e *engine) planFeasible(pl plan) bool {
	v := e.p.Vehicle(pl.vehicle)
	if len(pl.order) > v.MaxStopsLimit() {
		return false
	}
	var w, vol int64
	for _, loc := range pl.order {
		if e.cold[loc] && !v.HasRefrigeration {
			return false
		}
		w += e.demandW[loc]
		vol += e.demandV[loc]
	}
	if w > e.capW[pl.vehicle] {
		return false
	}
	if vol > e.capV[pl.vehicle] {
		return false
	}
	return true
}

func selectOp(weights []float64, rng *rand.Rand) int {
	sum := 0.0
	for _, w := range weights {
		sum += w
	}
	if sum <= 0 {
		return 0
	}
	r := rng.Float64() * sum
	acc := 0.0
	for i, w := range weights {
		acc += w
		if r <= acc {
			return i
		}
	}
	return len(weights) - 1
}

func insertAt(order []int, pos, loc int) []int {
	if pos >= len(order) {
		return append(order, loc)
	}
	order = append(order[:pos+1], order[pos:]...)
	order[pos] = loc
	return order
}

func withoutIndex(order []int, i int) []int {
	out := append([]int(nil), order[:i]...)
	return append(out, order[i+1:]...)
}
