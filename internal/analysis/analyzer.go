// Package analysis turns a populated snapshot into retained-size data:
// root discovery, a Lengauer-Tarjan dominator tree over the
// virtual-root-extended object graph, and a bottom-up retained-size
// pass over that tree.
package analysis

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/mabhi256/heapscope/internal/snapshot"
)

// Analyzer runs the analysis pipeline over one snapshot. Stages catch
// their own failures and degrade to approximate results rather than
// aborting; only an empty snapshot is a hard error.
type Analyzer struct {
	snap   *snapshot.Snapshot
	src    snapshot.HeapSource
	logger *slog.Logger

	// MaxGraphNodes caps dominator-tree construction; zero means
	// DefaultMaxGraphNodes.
	MaxGraphNodes int
}

// Result carries the artifacts of one analysis run.
type Result struct {
	Tree     *DomTree
	Duration time.Duration
	Warnings []string
}

func NewAnalyzer(snap *snapshot.Snapshot, src snapshot.HeapSource, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{snap: snap, src: src, logger: logger}
}

// Run executes root discovery, dominator-tree construction and the
// retained-size pass in order.
func (a *Analyzer) Run() (*Result, error) {
	if a.snap.NumObjects() == 0 {
		return nil, fmt.Errorf("nothing to analyze: snapshot is empty")
	}

	start := time.Now()
	res := &Result{}

	stages := []struct {
		name string
		fn   func(*Result) error
	}{
		{"root discovery", a.discoverRoots},
		{"dominator tree", a.buildDominators},
		{"retained sizes", a.computeRetained},
	}

	for _, stage := range stages {
		stageStart := time.Now()
		if err := stage.fn(res); err != nil {
			// Degraded, not dead: the snapshot has been left in a
			// consistent approximate state by the stage itself.
			warning := fmt.Sprintf("%s: %v", stage.name, err)
			res.Warnings = append(res.Warnings, warning)
			a.logger.Warn("analysis stage degraded", "stage", stage.name, "err", err)
		}
		a.logger.Debug("analysis stage done", "stage", stage.name, "took", time.Since(stageStart))
	}

	res.Duration = time.Since(start)
	a.logger.Info("heap analysis complete",
		"objects", a.snap.NumObjects(),
		"roots", len(a.snap.Roots()),
		"reachable", reachableCount(res.Tree),
		"approximate", a.snap.RetainedApproximate,
		"took", res.Duration)
	return res, nil
}

func (a *Analyzer) discoverRoots(*Result) error {
	return DiscoverRoots(a.snap, a.src, a.logger)
}

func (a *Analyzer) buildDominators(res *Result) error {
	res.Tree = BuildDominatorTree(a.snap, a.MaxGraphNodes)
	if res.Tree.Skipped {
		return fmt.Errorf("graph exceeds %d nodes, retained sizes will equal shallow sizes",
			maxNodesOrDefault(a.MaxGraphNodes))
	}
	return nil
}

func (a *Analyzer) computeRetained(res *Result) error {
	return ComputeRetainedSizes(a.snap, res.Tree)
}

func maxNodesOrDefault(n int) int {
	if n <= 0 {
		return DefaultMaxGraphNodes
	}
	return n
}

func reachableCount(tree *DomTree) int {
	if tree == nil {
		return 0
	}
	return tree.Reachable
}
