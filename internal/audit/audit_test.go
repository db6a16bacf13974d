package audit

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readEvents(t *testing.T, path string) []Event {
	t.Helper()
	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	var events []Event
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var ev Event
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &ev))
		events = append(events, ev)
	}
	require.NoError(t, scanner.Err())
	return events
}

func TestRecordWritesJSONLines(t *testing.T) {
	dir := t.TempDir()
	trail, err := New(dir, 1<<20, 3)
	require.NoError(t, err)
	defer trail.Close()

	trail.SetRunID("run-1")
	trail.StageStart("split")
	trail.StageComplete("split", 40*time.Millisecond, map[string]interface{}{"hosts": 2})
	trail.StageSkipped("parse", "inputs newer than output")
	trail.ValidationDrop("reason", "r1", "finding", "no_such_path", "commands.show_bgp_summary.data.x")

	events := readEvents(t, filepath.Join(dir, "events.ndjson"))
	require.Len(t, events, 4)

	assert.Equal(t, EventTypeStageStart, events[0].Type)
	assert.Equal(t, "run-1", events[0].RunID)
	assert.Equal(t, "split", events[0].Stage)

	assert.Equal(t, EventTypeStageComplete, events[1].Type)
	assert.EqualValues(t, 40, events[1].Data["duration_ms"])
	assert.EqualValues(t, 2, events[1].Data["hosts"])

	assert.Equal(t, EventTypeStageSkipped, events[2].Type)
	assert.Equal(t, "inputs newer than output", events[2].Data["reason"])

	assert.Equal(t, EventTypeValidationDrop, events[3].Type)
	assert.Equal(t, "r1", events[3].Host)
	assert.Equal(t, "finding", events[3].Data["kind"])
}

func TestRotationKeepsBoundedFiles(t *testing.T) {
	dir := t.TempDir()
	trail, err := New(dir, 2048, 2)
	require.NoError(t, err)
	defer trail.Close()

	big := strings.Repeat("x", 300)
	for i := 0; i < 40; i++ {
		trail.Record(EventTypeError, "facts", "", map[string]interface{}{"detail": big})
	}

	// active file stays under the cap
	info, err := os.Stat(filepath.Join(dir, "events.ndjson"))
	require.NoError(t, err)
	assert.LessOrEqual(t, info.Size(), int64(2048))

	_, err = os.Stat(filepath.Join(dir, "events.1.ndjson"))
	assert.NoError(t, err)

	// nothing beyond the keep count
	_, err = os.Stat(filepath.Join(dir, "events.3.ndjson"))
	assert.True(t, os.IsNotExist(err))
}

func TestWriteFileLandsInAuditDir(t *testing.T) {
	dir := t.TempDir()
	trail, err := New(dir, 1<<20, 3)
	require.NoError(t, err)
	defer trail.Close()

	trail.WriteFile(filepath.Join("llm", "r1__show_bgp_summary__extract.raw"), []byte("{}"))
	data, err := os.ReadFile(filepath.Join(dir, "llm", "r1__show_bgp_summary__extract.raw"))
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))

	trail.WriteJSON("coverage.json", map[string]int{"ok": 3})
	var cov map[string]int
	raw, err := os.ReadFile(filepath.Join(dir, "coverage.json"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &cov))
	assert.Equal(t, 3, cov["ok"])
}

func TestRecordAfterCloseIsNoop(t *testing.T) {
	dir := t.TempDir()
	trail, err := New(dir, 1<<20, 3)
	require.NoError(t, err)
	require.NoError(t, trail.Close())

	// must not panic
	trail.StageStart("split")
	trail.Record(EventTypeError, "", "", nil)
}
