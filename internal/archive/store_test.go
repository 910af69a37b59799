package archive

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T, driver string) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "sessions.db"), driver)
	if err != nil && driver == DriverCgo && strings.Contains(err.Error(), "CGO_ENABLED=0") {
		t.Skip("go-sqlite3 needs cgo")
	}
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func summaryAt(id string, start time.Time) Summary {
	return Summary{
		SessionID:      id,
		Profile:        "config-tracker",
		Target:         "training/index.html",
		StartedAt:      start,
		EndedAt:        start.Add(90 * time.Second),
		Terminal:       "closed-by-operator",
		LogPath:        "training/config_log_20240101_120000.json",
		Records:        3,
		Counts:         map[string]int{"step_change": 2, "export": 1},
		DownloadsSaved: 1,
	}
}

func TestStore_RecordList(t *testing.T) {
	for _, driver := range []string{DriverPure, DriverCgo} {
		t.Run(driver, func(t *testing.T) {
			s := openTestStore(t, driver)
			ctx := context.Background()
			base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

			require.NoError(t, s.Record(ctx, summaryAt("a", base)))
			require.NoError(t, s.Record(ctx, summaryAt("b", base.Add(time.Hour))))

			got, err := s.List(ctx, 0)
			require.NoError(t, err)
			require.Len(t, got, 2)
			assert.Equal(t, "b", got[0].SessionID, "newest first")

			want := summaryAt("a", base)
			if diff := cmp.Diff(want, got[1]); diff != "" {
				t.Errorf("summary mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestStore_ListLimit(t *testing.T) {
	s := openTestStore(t, "")
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.Record(ctx, summaryAt(id, base.Add(time.Duration(i)*time.Minute))))
	}

	got, err := s.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "c", got[0].SessionID)
	assert.Equal(t, "b", got[1].SessionID)
}

func TestStore_RecordReplaces(t *testing.T) {
	s := openTestStore(t, "")
	ctx := context.Background()
	sum := summaryAt("a", time.Now())
	require.NoError(t, s.Record(ctx, sum))

	sum.FlushError = "session log: destination missing"
	sum.LogPath = ""
	require.NoError(t, s.Record(ctx, sum))

	got, err := s.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "session log: destination missing", got[0].FlushError)
	assert.Empty(t, got[0].LogPath)
}

func TestOpen_MissingDirectory(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing", "sessions.db"), "")
	assert.Error(t, err)
}
