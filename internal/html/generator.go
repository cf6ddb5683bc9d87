// Package html renders a HeapAnalysisReport as a standalone HTML page.
package html

import (
	_ "embed"
	"fmt"
	"html/template"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/mabhi256/heapscope/internal/report"
)

// Embed template files at compile time
//
//go:embed templates/report.html
var reportTemplate string

// reportData wraps the report with presentation-only extras.
type reportData struct {
	*report.HeapAnalysisReport
	GeneratedAt time.Time
	Caveats     []string
}

// WriteReport renders rep to outputPath and returns the path written.
// An empty outputPath defaults to heapscope-report.html in the working
// directory.
func WriteReport(rep *report.HeapAnalysisReport, outputPath string) (string, error) {
	if outputPath == "" {
		outputPath = "heapscope-report.html"
	}

	tmpl, err := template.New("report").Funcs(template.FuncMap{
		"bytes": humanize.IBytes,
		"comma": func(n int) string { return humanize.Comma(int64(n)) },
	}).Parse(reportTemplate)
	if err != nil {
		return "", fmt.Errorf("parse report template: %w", err)
	}

	f, err := os.Create(outputPath)
	if err != nil {
		return "", fmt.Errorf("create report file: %w", err)
	}
	defer f.Close()

	data := reportData{
		HeapAnalysisReport: rep,
		GeneratedAt:        time.Now(),
		Caveats:            caveats(rep),
	}
	if err := tmpl.Execute(f, data); err != nil {
		return "", fmt.Errorf("render report: %w", err)
	}
	return outputPath, nil
}

func caveats(rep *report.HeapAnalysisReport) []string {
	var notes []string
	if rep.RootsViaRefcount {
		notes = append(notes, "GC roots were approximated from reference counts; retained sizes may be over- or misattributed.")
	}
	if rep.RetainedIsApproximate {
		notes = append(notes, "Dominator analysis was unavailable; retained sizes equal shallow sizes.")
	}
	if rep.ReferencesTruncated > 0 {
		notes = append(notes, fmt.Sprintf("%d references were truncated at ingestion; dominators may be shallower than reality.", rep.ReferencesTruncated))
	}
	return notes
}
