package optimizer

import "math"

// flowNetwork is a small network with integral capacities. maxWeight finds
// a flow of maximum total weight (of any size) by repeatedly augmenting
// along the heaviest source-sink path until no path adds weight.
//
// Arcs are stored in pairs: a forward arc id is even and its residual twin
// is id^1.
type flowNetwork struct {
	head []int
	next []int
	to   []int
	cap  []int
	base []int
	cost []float64

	dist    []float64
	prev    []int
	inQueue []bool
	queue   []int
}

func newFlowNetwork(nodes int) *flowNetwork {
	g := &flowNetwork{
		head:    make([]int, nodes),
		dist:    make([]float64, nodes),
		prev:    make([]int, nodes),
		inQueue: make([]bool, nodes),
	}
	for i := range g.head {
		g.head[i] = -1
	}
	return g
}

func (g *flowNetwork) addArc(from, to, capacity int) int {
	id := len(g.to)
	g.to = append(g.to, to, from)
	g.base = append(g.base, capacity, 0)
	g.cap = append(g.cap, capacity, 0)
	g.cost = append(g.cost, 0, 0)
	g.next = append(g.next, g.head[from], g.head[to])
	g.head[from] = id
	g.head[to] = id + 1
	return id
}

// setWeight stores w as a negative cost so paths are found by minimising.
func (g *flowNetwork) setWeight(arc int, w float64) {
	g.cost[arc] = -w
	g.cost[arc^1] = w
}

func (g *flowNetwork) setCapacity(arc, capacity int) {
	g.base[arc] = capacity
}

func (g *flowNetwork) flow(arc int) int {
	return g.base[arc] - g.cap[arc]
}

// maxWeight discards any previous flow and solves from scratch. eps is the
// smallest path weight worth augmenting.
func (g *flowNetwork) maxWeight(source, sink int, eps float64) {
	copy(g.cap, g.base)

	limit := len(g.head) * (len(g.to) + 1)
	for {
		for i := range g.dist {
			g.dist[i] = math.Inf(1)
			g.prev[i] = -1
			g.inQueue[i] = false
		}
		g.dist[source] = 0
		g.queue = append(g.queue[:0], source)
		g.inQueue[source] = true

		relaxed := 0
		for qi := 0; qi < len(g.queue); qi++ {
			u := g.queue[qi]
			g.inQueue[u] = false
			for a := g.head[u]; a != -1; a = g.next[a] {
				if g.cap[a] == 0 {
					continue
				}
				v := g.to[a]
				if d := g.dist[u] + g.cost[a]; d < g.dist[v]-eps {
					g.dist[v] = d
					g.prev[v] = a
					relaxed++
					if !g.inQueue[v] {
						g.inQueue[v] = true
						g.queue = append(g.queue, v)
					}
				}
			}
			if relaxed > limit {
				return
			}
		}

		if g.prev[sink] == -1 || g.dist[sink] >= -eps {
			return
		}

		push := math.MaxInt
		for v := sink; v != source; v = g.to[g.prev[v]^1] {
			if c := g.cap[g.prev[v]]; c < push {
				push = c
			}
		}
		for v := sink; v != source; v = g.to[g.prev[v]^1] {
			a := g.prev[v]
			g.cap[a] -= push
			g.cap[a^1] += push
		}
	}
}
