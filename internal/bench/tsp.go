package bench

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/cwbudde/localsearch/internal/search"
)

// City is one node of a travelling-salesman instance.
type City struct {
	ID int
	X  float64
	Y  float64
}

// Edge is an undirected connection between two city IDs, stored sorted so
// (a,b) and (b,a) compare equal.
type Edge struct {
	A, B int
}

func newEdge(a, b int) Edge {
	if a < b {
		return Edge{A: a, B: b}
	}
	return Edge{A: b, B: a}
}

// TwoOptMove records the edges removed from and inserted into the tour by a
// 2-opt segment reversal.
type TwoOptMove struct {
	Removed  [2]Edge
	Inserted [2]Edge
}

// TSP is a symmetric travelling-salesman benchmark over Euclidean
// coordinates. A solution is a closed tour: it starts and ends at the city
// with the lowest ID.
type TSP struct {
	start  int
	cities []int
	dist   map[Edge]float64
}

// NewTSP builds the instance from city coordinates. At least three cities
// are required for a 2-opt move to exist.
func NewTSP(cities []City) (*TSP, error) {
	if len(cities) < 3 {
		return nil, fmt.Errorf("need at least 3 cities, got %d", len(cities))
	}
	start := cities[0].ID
	ids := make([]int, len(cities))
	dist := make(map[Edge]float64, len(cities)*(len(cities)-1)/2)
	for i, c1 := range cities {
		ids[i] = c1.ID
		if c1.ID < start {
			start = c1.ID
		}
		for _, c2 := range cities[i+1:] {
			dist[newEdge(c1.ID, c2.ID)] = math.Hypot(c1.X-c2.X, c1.Y-c2.Y)
		}
	}
	return &TSP{start: start, cities: ids, dist: dist}, nil
}

// Score is the total length of a closed tour.
func (t *TSP) Score(tour []int) float64 {
	var sum float64
	for i := 0; i < len(tour)-1; i++ {
		sum += t.dist[newEdge(tour[i], tour[i+1])]
	}
	return sum
}

// GenerateRandomSolution shuffles the cities into a closed tour anchored at
// the start city.
func (t *TSP) GenerateRandomSolution(rng *rand.Rand) ([]int, float64, error) {
	tour := make([]int, len(t.cities), len(t.cities)+1)
	copy(tour, t.cities)
	rng.Shuffle(len(tour), func(i, j int) { tour[i], tour[j] = tour[j], tour[i] })
	for i, c := range tour {
		if c == t.start {
			tour[0], tour[i] = tour[i], tour[0]
			break
		}
	}
	tour = append(tour, t.start)
	return tour, t.Score(tour), nil
}

// GenerateTrialSolution reverses a random interior segment (a 2-opt move)
// and computes the new length incrementally from the four affected edges.
func (t *TSP) GenerateTrialSolution(current []int, currentScore float64, rng *rand.Rand) ([]int, TwoOptMove, float64) {
	// Pick two distinct interior indices; endpoints stay pinned to the
	// start city.
	lb, ub := 1, len(current)-1
	i := lb + rng.Intn(ub-lb)
	j := i
	for j == i {
		j = lb + rng.Intn(ub-lb)
	}
	if i > j {
		i, j = j, i
	}

	next := make([]int, len(current))
	copy(next, current)
	for k, l := i, j; k < l; k, l = k+1, l-1 {
		next[k], next[l] = next[l], next[k]
	}

	move := TwoOptMove{
		Removed: [2]Edge{
			newEdge(current[i-1], current[i]),
			newEdge(current[j], current[j+1]),
		},
		Inserted: [2]Edge{
			newEdge(next[i-1], next[i]),
			newEdge(next[j], next[j+1]),
		},
	}

	score := currentScore -
		t.dist[move.Removed[0]] - t.dist[move.Removed[1]] +
		t.dist[move.Inserted[0]] + t.dist[move.Inserted[1]]

	return next, move, score
}

// EdgeTabuList forbids re-inserting recently removed tour edges. It keeps
// the removed edges of accepted moves in a fixed-size ring; a move is tabu
// when either of its inserted edges is still in the ring.
type EdgeTabuList struct {
	edges []Edge
	head  int
	count int
}

// NewEdgeTabuList builds an edge tabu list with the given capacity.
func NewEdgeTabuList(capacity int) *EdgeTabuList {
	return &EdgeTabuList{edges: make([]Edge, capacity)}
}

func (l *EdgeTabuList) holds(e Edge) bool {
	for i := 0; i < l.count; i++ {
		if l.edges[i] == e {
			return true
		}
	}
	return false
}

func (l *EdgeTabuList) push(e Edge) {
	if len(l.edges) == 0 {
		return
	}
	if l.count < len(l.edges) {
		l.edges[(l.head+l.count)%len(l.edges)] = e
		l.count++
		return
	}
	l.edges[l.head] = e
	l.head = (l.head + 1) % len(l.edges)
}

// Contains implements search.TabuList.
func (l *EdgeTabuList) Contains(_ []int, move TwoOptMove) bool {
	return l.holds(move.Inserted[0]) || l.holds(move.Inserted[1])
}

// Append implements search.TabuList.
func (l *EdgeTabuList) Append(_ []int, move TwoOptMove) {
	for _, e := range move.Removed {
		if !l.holds(e) {
			l.push(e)
		}
	}
}

var _ search.TabuList[[]int, TwoOptMove] = (*EdgeTabuList)(nil)

// RandomCities generates a reproducible set of n cities on a square of the
// given side length, for self-contained benchmark runs.
func RandomCities(n int, side float64, rng *rand.Rand) []City {
	cities := make([]City, n)
	for i := range cities {
		cities[i] = City{ID: i, X: side * rng.Float64(), Y: side * rng.Float64()}
	}
	return cities
}
