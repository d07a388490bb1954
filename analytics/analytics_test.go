package analytics

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.opencensus.io/stats/view"
)

func TestLogFileDataCollector(t *testing.T) {
	file := filepath.Join(t.TempDir(), "analytics.log")
	c, err := NewDataCollector(DataCollectorConfig{FileName: file, CollectorType: LOG_FILE_DATA_COLLECTOR})
	require.NoError(t, err)

	rec := NodeRecord{DefinitionId: "d", TraceId: "t", ContextId: "c", NodeId: "n"}
	c.RecordNodeSuccess(rec, map[string]any{"k": "v"})
	c.RecordNodeFailure(rec, "boom")
	require.NoError(t, c.Close())

	f, err := os.Open(file)
	require.NoError(t, err)
	defer f.Close()
	var lines []map[string]any
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := map[string]any{}
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &line))
		lines = append(lines, line)
	}
	require.Len(t, lines, 2)
	require.Equal(t, "success", lines[0]["msg"])
	require.Equal(t, "n", lines[0]["nodeId"])
	require.Equal(t, "failure", lines[1]["msg"])
	require.Equal(t, "boom", lines[1]["reason"])
}

func TestNopCollector(t *testing.T) {
	c, err := NewDataCollector(DataCollectorConfig{})
	require.NoError(t, err)
	c.RecordNodeSuccess(NodeRecord{}, nil)
	require.NoError(t, c.Close())
}

func countRows(t *testing.T, name string) int64 {
	rows, err := view.RetrieveData(name)
	require.NoError(t, err)
	var total int64
	for _, row := range rows {
		total += row.Data.(*view.CountData).Value
	}
	return total
}

func TestMetrics(t *testing.T) {
	require.NoError(t, RegisterViews())
	defer view.Unregister(Views...)

	ctx := context.Background()
	RecordTransition(ctx, "ARCHIVED", true)
	RecordTransition(ctx, "NEW", false)
	RecordDispatch(ctx, "callback", nil)
	RecordDispatch(ctx, "jober", errors.New("x"))
	RecordPoolRejection()

	require.Eventually(t, func() bool {
		rows, err := view.RetrieveData(PoolRejectionsView.Name)
		return err == nil && len(rows) == 1
	}, time.Second, 10*time.Millisecond)
	require.Equal(t, int64(1), countRows(t, TransitionsView.Name))
	require.Equal(t, int64(1), countRows(t, DeniedTransitionsView.Name))
	require.Equal(t, int64(2), countRows(t, DispatchAttemptsView.Name))
}
