package html

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mabhi256/heapscope/internal/report"
)

func TestWriteReport(t *testing.T) {
	rep := &report.HeapAnalysisReport{
		SnapshotTime: time.Date(2026, 8, 6, 10, 0, 0, 0, time.UTC),
		ProcessID:    4242,
		TotalObjects: 2,
		TotalMemory:  104,
		TypeStatistics: []report.TypeStatistic{
			{Type: "List<Int>", InstanceCount: 1, TotalSize: 64, TotalRetainedSize: 104},
			{Type: "System.String", InstanceCount: 1, TotalSize: 40, TotalRetainedSize: 40},
		},
		LargestObjects: []report.ObjectSummary{
			{Address: 0x2000, Type: "List<Int>", ShallowSize: 64, RetainedSize: 104, IsRoot: true},
		},
		RootsViaRefcount: true,
	}

	path := filepath.Join(t.TempDir(), "out.html")
	written, err := WriteReport(rep, path)
	require.NoError(t, err)
	require.Equal(t, path, written)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	page := string(content)

	require.Contains(t, page, "process 4242")
	// Generic type names survive HTML escaping.
	require.Contains(t, page, "List&lt;Int&gt;")
	require.Contains(t, page, "0x2000")
	require.Contains(t, page, "approximated from reference counts")
}

func TestWriteReportEmpty(t *testing.T) {
	rep := &report.HeapAnalysisReport{SnapshotTime: time.Now()}
	path := filepath.Join(t.TempDir(), "empty.html")
	_, err := WriteReport(rep, path)
	require.NoError(t, err)
}
