package index

import (
	"sort"

	"github.com/mabhi256/heapscope/internal/snapshot"
)

// highlyReferencedThreshold marks objects many others point at.
const highlyReferencedThreshold = 10

// RefGraph precomputes outgoing and incoming adjacency over tracked
// objects. Dangling references (targets outside the snapshot) are
// dropped here.
type RefGraph struct {
	snap *snapshot.Snapshot

	outgoing map[snapshot.Address][]snapshot.Address
	incoming map[snapshot.Address][]snapshot.Address

	// incoming edges with their field metadata, for reference listings
	incomingRefs map[snapshot.Address][]snapshot.ObjectReference

	depths map[snapshot.Address]int // lazily computed BFS layering
}

// ReferenceStats summarizes one object's place in the reference graph.
type ReferenceStats struct {
	OutgoingCount      int
	IncomingCount      int
	ReferenceDepth     int // -1 when only reachable through cycles
	IsLikelyRoot       bool
	IsHighlyReferenced bool
}

func NewRefGraph(snap *snapshot.Snapshot) *RefGraph {
	g := &RefGraph{
		snap:         snap,
		outgoing:     make(map[snapshot.Address][]snapshot.Address),
		incoming:     make(map[snapshot.Address][]snapshot.Address),
		incomingRefs: make(map[snapshot.Address][]snapshot.ObjectReference),
	}
	snap.ForEachObject(func(obj *snapshot.Object) {
		for _, ref := range obj.References {
			if !snap.Contains(ref.Target) {
				continue
			}
			g.outgoing[obj.Address] = append(g.outgoing[obj.Address], ref.Target)
			g.incoming[ref.Target] = append(g.incoming[ref.Target], obj.Address)
			g.incomingRefs[ref.Target] = append(g.incomingRefs[ref.Target], ref)
		}
	})
	return g
}

// Outgoing returns the tracked targets referenced by addr.
func (g *RefGraph) Outgoing(addr snapshot.Address) []snapshot.Address {
	return g.outgoing[addr]
}

// Incoming returns the addresses of objects referencing addr.
func (g *RefGraph) Incoming(addr snapshot.Address) []snapshot.Address {
	return g.incoming[addr]
}

// IncomingRefs returns the full reference records targeting addr.
func (g *RefGraph) IncomingRefs(addr snapshot.Address) []snapshot.ObjectReference {
	return g.incomingRefs[addr]
}

// Reachable walks outgoing edges breadth-first from start and returns
// the tracked objects seen, in depth order, pruned at maxDepth.
// Reachable(a, 0) is [a] alone (when tracked).
func (g *RefGraph) Reachable(start snapshot.Address, maxDepth int) []*snapshot.Object {
	first := g.snap.Get(start)
	if first == nil || maxDepth < 0 {
		return nil
	}

	type visit struct {
		addr  snapshot.Address
		depth int
	}
	seen := map[snapshot.Address]struct{}{start: {}}
	queue := []visit{{start, 0}}
	out := []*snapshot.Object{first}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.depth == maxDepth {
			continue
		}
		for _, next := range g.outgoing[cur.addr] {
			if _, dup := seen[next]; dup {
				continue
			}
			seen[next] = struct{}{}
			out = append(out, g.snap.Get(next))
			queue = append(queue, visit{next, cur.depth + 1})
		}
	}
	return out
}

// ShortestPath returns the objects along a shortest reference chain
// from one address to another, endpoints included, or nil when no chain
// exists. ShortestPath(a, a) is [a].
func (g *RefGraph) ShortestPath(from, to snapshot.Address) []*snapshot.Object {
	if g.snap.Get(from) == nil || g.snap.Get(to) == nil {
		return nil
	}
	if from == to {
		return []*snapshot.Object{g.snap.Get(from)}
	}

	prev := map[snapshot.Address]snapshot.Address{from: from}
	queue := []snapshot.Address{from}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range g.outgoing[cur] {
			if _, visited := prev[next]; visited {
				continue
			}
			prev[next] = cur
			if next == to {
				return g.materializePath(prev, from, to)
			}
			queue = append(queue, next)
		}
	}
	return nil
}

func (g *RefGraph) materializePath(prev map[snapshot.Address]snapshot.Address, from, to snapshot.Address) []*snapshot.Object {
	var rev []snapshot.Address
	for cur := to; ; cur = prev[cur] {
		rev = append(rev, cur)
		if cur == from {
			break
		}
	}
	path := make([]*snapshot.Object, len(rev))
	for i, addr := range rev {
		path[len(rev)-1-i] = g.snap.Get(addr)
	}
	return path
}

// ReferenceDepth is the length of the shortest reference chain from any
// source-less object (no incoming edges) down to addr: a cheap BFS
// layering for ordering, not a dominator depth. Objects reachable only
// through cycles have no layer and report -1.
func (g *RefGraph) ReferenceDepth(addr snapshot.Address) int {
	if g.depths == nil {
		g.computeDepths()
	}
	if depth, ok := g.depths[addr]; ok {
		return depth
	}
	return -1
}

func (g *RefGraph) computeDepths() {
	g.depths = make(map[snapshot.Address]int, g.snap.NumObjects())

	// Multi-source BFS seeded from every object without incoming edges.
	var queue []snapshot.Address
	g.snap.ForEachObject(func(obj *snapshot.Object) {
		if len(g.incoming[obj.Address]) == 0 {
			g.depths[obj.Address] = 0
			queue = append(queue, obj.Address)
		}
	})

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range g.outgoing[cur] {
			if _, visited := g.depths[next]; visited {
				continue
			}
			g.depths[next] = g.depths[cur] + 1
			queue = append(queue, next)
		}
	}
}

// PotentialDominators lists the referrers of addr that sit on a
// strictly shallower BFS layer. A lightweight guide for UIs only; the
// dominator tree is the authoritative ownership structure.
func (g *RefGraph) PotentialDominators(addr snapshot.Address) []snapshot.Address {
	depth := g.ReferenceDepth(addr)
	if depth <= 0 {
		return nil
	}
	var owners []snapshot.Address
	for _, src := range g.incoming[addr] {
		if d := g.ReferenceDepth(src); d >= 0 && d < depth {
			owners = append(owners, src)
		}
	}
	sort.Slice(owners, func(i, j int) bool { return owners[i] < owners[j] })
	return owners
}

// Stats summarizes addr's reference neighborhood.
func (g *RefGraph) Stats(addr snapshot.Address) ReferenceStats {
	incoming := len(g.incoming[addr])
	return ReferenceStats{
		OutgoingCount:      len(g.outgoing[addr]),
		IncomingCount:      incoming,
		ReferenceDepth:     g.ReferenceDepth(addr),
		IsLikelyRoot:       incoming == 0,
		IsHighlyReferenced: incoming > highlyReferencedThreshold,
	}
}
