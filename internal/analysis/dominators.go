package analysis

import (
	"sort"

	"github.com/mabhi256/heapscope/internal/snapshot"
)

// DefaultMaxGraphNodes caps dominator-tree construction. The classic
// figure guards against pathological dumps; the DFS here is iterative,
// so the cap is about memory and time rather than goroutine stacks, and
// callers may raise it.
const DefaultMaxGraphNodes = 500_000

// DomTree is the dominator tree of the virtual-root-extended object
// graph. The virtual root itself is stripped from the public maps:
// objects dominated directly by it appear in RootNodes and have no
// Idom entry. Unreachable objects appear nowhere.
type DomTree struct {
	Idom      map[snapshot.Address]snapshot.Address
	Children  map[snapshot.Address][]snapshot.Address
	RootNodes []snapshot.Address
	Reachable int

	// Skipped is set when the graph exceeded the node cap and no tree
	// was built. Retained sizes must then fall back to shallow sizes.
	Skipped bool
}

// Dominates reports whether d dominates v, walking the idom chain.
func (t *DomTree) Dominates(d, v snapshot.Address) bool {
	if d == v {
		return true
	}
	for {
		parent, ok := t.Idom[v]
		if !ok {
			return false
		}
		if parent == d {
			return true
		}
		v = parent
	}
}

// virtual root is node 0; tracked objects are nodes 1..n.
type ltGraph struct {
	addrs  []snapshot.Address // node -> address (addrs[0] unused)
	nodeOf map[snapshot.Address]int32
	succ   [][]int32
	pred   [][]int32
}

// BuildDominatorTree computes immediate dominators for every object
// reachable from the snapshot's root set using the Lengauer-Tarjan
// algorithm with path compression.
func BuildDominatorTree(snap *snapshot.Snapshot, maxNodes int) *DomTree {
	if maxNodes <= 0 {
		maxNodes = DefaultMaxGraphNodes
	}
	if snap.NumObjects() > maxNodes {
		return &DomTree{Skipped: true}
	}

	g := buildGraph(snap)
	n := len(g.addrs)

	// Iterative DFS from the virtual root, numbering reachable nodes.
	dfnum := make([]int32, n)
	for i := range dfnum {
		dfnum[i] = -1
	}
	parent := make([]int32, n)
	vertex := make([]int32, 0, n)

	type dfsFrame struct {
		node int32
		next int
	}
	stack := []dfsFrame{{node: 0}}
	dfnum[0] = 0
	parent[0] = -1
	vertex = append(vertex, 0)
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if top.next >= len(g.succ[top.node]) {
			stack = stack[:len(stack)-1]
			continue
		}
		w := g.succ[top.node][top.next]
		top.next++
		if dfnum[w] >= 0 {
			continue
		}
		dfnum[w] = int32(len(vertex))
		parent[w] = top.node
		vertex = append(vertex, w)
		stack = append(stack, dfsFrame{node: w})
	}

	lt := &ltState{
		dfnum:    dfnum,
		semi:     make([]int32, n),
		ancestor: make([]int32, n),
		best:     make([]int32, n),
		visited:  make([]int32, n),
		chain:    make([]int32, 0, 64),
	}
	idom := make([]int32, n)
	bucket := make([][]int32, n)
	for i := 0; i < n; i++ {
		lt.semi[i] = dfnum[i]
		lt.ancestor[i] = -1
		lt.best[i] = int32(i)
		idom[i] = -1
	}

	// Pass 1: semidominators, processed in reverse DFS order.
	for i := len(vertex) - 1; i >= 1; i-- {
		w := vertex[i]
		for _, v := range g.pred[w] {
			if lt.dfnum[v] < 0 {
				continue // predecessor itself unreachable
			}
			var u int32
			if lt.dfnum[v] <= lt.dfnum[w] {
				u = v
			} else {
				u = lt.eval(v)
			}
			if lt.semi[u] < lt.semi[w] {
				lt.semi[w] = lt.semi[u]
			}
		}

		sv := vertex[lt.semi[w]]
		bucket[sv] = append(bucket[sv], w)

		p := parent[w]
		lt.ancestor[w] = p

		for _, v := range bucket[p] {
			u := lt.eval(v)
			if lt.semi[u] < lt.semi[v] {
				idom[v] = u
			} else {
				idom[v] = p
			}
		}
		bucket[p] = nil
	}

	// Pass 2: turn deferred entries into immediate dominators.
	for i := 1; i < len(vertex); i++ {
		w := vertex[i]
		if idom[w] != vertex[lt.semi[w]] {
			idom[w] = idom[idom[w]]
		}
	}

	tree := &DomTree{
		Idom:      make(map[snapshot.Address]snapshot.Address),
		Children:  make(map[snapshot.Address][]snapshot.Address),
		Reachable: len(vertex) - 1,
	}
	for i := 1; i < len(vertex); i++ {
		w := vertex[i]
		addr := g.addrs[w]
		if idom[w] <= 0 {
			// dominated directly by the virtual root
			tree.RootNodes = append(tree.RootNodes, addr)
			continue
		}
		dom := g.addrs[idom[w]]
		tree.Idom[addr] = dom
		tree.Children[dom] = append(tree.Children[dom], addr)
	}
	sort.Slice(tree.RootNodes, func(i, j int) bool { return tree.RootNodes[i] < tree.RootNodes[j] })
	for _, kids := range tree.Children {
		sort.Slice(kids, func(i, j int) bool { return kids[i] < kids[j] })
	}
	return tree
}

func buildGraph(snap *snapshot.Snapshot) *ltGraph {
	objects := make([]*snapshot.Object, 0, snap.NumObjects())
	snap.ForEachObject(func(obj *snapshot.Object) {
		objects = append(objects, obj)
	})
	// Stable node numbering keeps DFS order, and with it every derived
	// ordering, identical across runs on the same snapshot.
	sort.Slice(objects, func(i, j int) bool { return objects[i].Address < objects[j].Address })

	n := len(objects) + 1
	g := &ltGraph{
		addrs:  make([]snapshot.Address, n),
		nodeOf: make(map[snapshot.Address]int32, len(objects)),
		succ:   make([][]int32, n),
		pred:   make([][]int32, n),
	}
	for i, obj := range objects {
		g.addrs[i+1] = obj.Address
		g.nodeOf[obj.Address] = int32(i + 1)
	}

	for _, root := range snap.Roots() {
		if w, ok := g.nodeOf[root]; ok {
			g.succ[0] = append(g.succ[0], w)
			g.pred[w] = append(g.pred[w], 0)
		}
	}
	for i, obj := range objects {
		v := int32(i + 1)
		for _, ref := range obj.References {
			w, ok := g.nodeOf[ref.Target]
			if !ok {
				continue // dangling edge
			}
			g.succ[v] = append(g.succ[v], w)
			g.pred[w] = append(g.pred[w], v)
		}
	}
	return g
}

// ltState holds the link-eval forest. eval and compress are iterative;
// compress additionally guards against cycles in the ancestor chain,
// which cannot happen on well-formed input but would otherwise spin
// forever on a corrupt one.
type ltState struct {
	dfnum    []int32
	semi     []int32
	ancestor []int32
	best     []int32

	visited []int32 // epoch stamps for the cycle guard
	epoch   int32
	chain   []int32
}

func (lt *ltState) eval(v int32) int32 {
	if lt.ancestor[v] < 0 {
		return v
	}
	lt.compress(v)
	return lt.best[v]
}

func (lt *ltState) compress(v int32) {
	lt.epoch++
	lt.chain = lt.chain[:0]
	for u := v; lt.ancestor[u] >= 0 && lt.ancestor[lt.ancestor[u]] >= 0; u = lt.ancestor[u] {
		if lt.visited[u] == lt.epoch {
			break // ancestor cycle; stop on repeat
		}
		lt.visited[u] = lt.epoch
		lt.chain = append(lt.chain, u)
	}
	for i := len(lt.chain) - 1; i >= 0; i-- {
		u := lt.chain[i]
		anc := lt.ancestor[u]
		if lt.semi[lt.best[anc]] < lt.semi[lt.best[u]] {
			lt.best[u] = lt.best[anc]
		}
		lt.ancestor[u] = lt.ancestor[anc]
	}
}
