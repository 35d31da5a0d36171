package runstate

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bartekus/vcgen/internal/scheduler"
)

func sampleRun() LastRun {
	return LastRun{
		Status:     StatusPartial,
		StartedAt:  time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		FinishedAt: time.Date(2026, 1, 2, 4, 4, 5, 0, time.UTC),
		Language:   "C",
		Policy:     "strong",
		Division:   "percentile",
		Analyzers:  []string{"Flawfinder"},
		Entries:    10,
		Collected:  7,
		Dataset:    "out.jsonl",
		Shortfall:  []int{1},
		Workers: []scheduler.WorkerReport{
			{Index: 0, Quota: 5, Repositories: 3, Visited: 2, Collected: 5},
			{Index: 1, Quota: 5, Repositories: 3, Visited: 3, Skipped: 1, Collected: 2},
		},
	}
}

func TestStore_RoundTrip(t *testing.T) {
	store := NewStore(t.TempDir())

	last, err := store.ReadLastRun()
	require.NoError(t, err)
	assert.Nil(t, last, "no state yet")

	require.NoError(t, store.WriteLastRun(sampleRun()))

	last, err = store.ReadLastRun()
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, sampleRun(), *last)

	w, err := store.ReadWorker(1)
	require.NoError(t, err)
	require.NotNil(t, w)
	assert.Equal(t, 3, w.Shortfall())
}

func TestStore_DropsStaleWorkers(t *testing.T) {
	store := NewStore(t.TempDir())
	require.NoError(t, store.WriteLastRun(sampleRun()))

	narrow := sampleRun()
	narrow.Workers = narrow.Workers[:1]
	require.NoError(t, store.WriteLastRun(narrow))

	w, err := store.ReadWorker(1)
	require.NoError(t, err)
	assert.Nil(t, w)
}

func TestStore_Reset(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "run")
	store := NewStore(dir)
	require.NoError(t, store.WriteLastRun(sampleRun()))
	require.NoError(t, store.Reset())

	_, err := os.Stat(dir)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestStore_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "last-run.json"), []byte("{"), 0o600))

	_, err := NewStore(dir).ReadLastRun()
	assert.Error(t, err)
}

func TestStatusFor(t *testing.T) {
	met := scheduler.Result{Workers: []scheduler.WorkerReport{{Quota: 2, Collected: 2}}}
	short := scheduler.Result{Workers: []scheduler.WorkerReport{{Index: 3, Quota: 2, Collected: 1}}}

	assert.Equal(t, StatusPass, StatusFor(met, nil))
	assert.Equal(t, StatusPartial, StatusFor(short, nil))
	assert.Equal(t, StatusFail, StatusFor(met, errors.New("boom")))
	assert.Equal(t, []int{3}, ShortWorkers(short.Workers))
	assert.Equal(t, []int{}, ShortWorkers(met.Workers))
}

func TestNewStore_Default(t *testing.T) {
	assert.Equal(t, DefaultDir, NewStore("").Dir())
}
