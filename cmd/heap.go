package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/mabhi256/heapscope/internal/html"
	"github.com/mabhi256/heapscope/internal/query"
	"github.com/mabhi256/heapscope/internal/report"
	"github.com/mabhi256/heapscope/internal/snapshot"
	"github.com/mabhi256/heapscope/internal/source"
	"github.com/mabhi256/heapscope/utils"
)

var dumpExtensions = []string{".json", ".json.gz"}

var heapCmd = &cobra.Command{
	Use:   "heap",
	Short: "Analyze heap dumps",
}

var heapAnalyzeCmd = &cobra.Command{
	Use:               "analyze [dump-file]",
	Short:             "Ingest a dump, compute retained sizes and print a summary",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: utils.CompleteFilesByExtension(dumpExtensions),
	RunE: func(cmd *cobra.Command, args []string) error {
		heap, err := loadAndAnalyze(args[0])
		if err != nil {
			return err
		}
		printSummary(heap.Report())
		return nil
	},
}

var (
	reportOutput string

	heapReportCmd = &cobra.Command{
		Use:               "report [dump-file]",
		Short:             "Write a full analysis report as HTML",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: utils.CompleteFilesByExtension(dumpExtensions),
		RunE: func(cmd *cobra.Command, args []string) error {
			heap, err := loadAndAnalyze(args[0])
			if err != nil {
				return err
			}
			path, err := html.WriteReport(heap.Report(), reportOutput)
			if err != nil {
				return err
			}
			fmt.Printf("Report written to %s\n", path)
			return nil
		},
	}
)

var (
	topCount int

	heapTopCmd = &cobra.Command{
		Use:               "top [dump-file]",
		Short:             "Show the objects retaining the most memory",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: utils.CompleteFilesByExtension(dumpExtensions),
		RunE: func(cmd *cobra.Command, args []string) error {
			heap, err := loadAndAnalyze(args[0])
			if err != nil {
				return err
			}
			printTop(heap.Report(), topCount)
			return nil
		},
	}
)

func loadAndAnalyze(path string) (*query.Heap, error) {
	src, err := source.OpenJSON(path, slog.Default())
	if err != nil {
		return nil, err
	}

	snap := snapshot.New(src.ProcessID(), src.CaptureTime())
	if err := snap.Populate(src, snapshot.IngestOptions{}); err != nil {
		return nil, err
	}

	heap := query.NewHeap(snap, src, slog.Default())
	if _, err := heap.Analyze(); err != nil {
		return nil, err
	}
	return heap, nil
}

func printSummary(rep *report.HeapAnalysisReport) {
	fmt.Printf("Process %d, captured %s\n", rep.ProcessID, rep.SnapshotTime.Format("2006-01-02 15:04:05"))
	fmt.Printf("%d objects, %s total\n", rep.TotalObjects, humanize.IBytes(rep.TotalMemory))
	for _, note := range reportCaveats(rep) {
		fmt.Printf("⚠️  %s\n", note)
	}
	fmt.Println()

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TYPE\tCOUNT\tSHALLOW\tRETAINED")
	for i, ts := range rep.TypeStatistics {
		if i == 20 {
			break
		}
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\n",
			ts.Type, ts.InstanceCount,
			humanize.IBytes(ts.TotalSize), humanize.IBytes(ts.TotalRetainedSize))
	}
	w.Flush()

	if len(rep.GenerationStatistics) > 1 {
		fmt.Println()
		for _, gs := range rep.GenerationStatistics {
			fmt.Printf("gen %d: %d objects, %s\n",
				gs.Generation, gs.ObjectCount, humanize.IBytes(gs.TotalSize))
		}
	}
}

func printTop(rep *report.HeapAnalysisReport, n int) {
	for _, note := range reportCaveats(rep) {
		fmt.Printf("⚠️  %s\n", note)
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ADDRESS\tTYPE\tSHALLOW\tRETAINED")
	for i, obj := range rep.LargestObjects {
		if i == n {
			break
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			obj.Address, obj.Type,
			humanize.IBytes(obj.ShallowSize), humanize.IBytes(obj.RetainedSize))
	}
	w.Flush()
}

func reportCaveats(rep *report.HeapAnalysisReport) []string {
	var notes []string
	if rep.RootsViaRefcount {
		notes = append(notes, "roots approximated from reference counts")
	}
	if rep.RetainedIsApproximate {
		notes = append(notes, "retained sizes equal shallow sizes (dominator analysis unavailable)")
	}
	if rep.ReferencesTruncated > 0 {
		notes = append(notes, fmt.Sprintf("%d references truncated; retained sizes may be shallow-biased", rep.ReferencesTruncated))
	}
	return notes
}

func init() {
	rootCmd.AddCommand(heapCmd)

	heapReportCmd.Flags().StringVarP(&reportOutput, "output", "o", "", "output HTML path (default: heapscope-report.html in the working directory)")
	heapTopCmd.Flags().IntVarP(&topCount, "count", "n", 20, "number of objects to show")

	heapCmd.AddCommand(heapAnalyzeCmd)
	heapCmd.AddCommand(heapReportCmd)
	heapCmd.AddCommand(heapTopCmd)
}
