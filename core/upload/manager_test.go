package upload

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRunningManager(t *testing.T) *Manager {
	t.Helper()
	m := NewManager()
	go m.Run()
	t.Cleanup(m.Stop)
	return m
}

func TestAddReturnsStableID(t *testing.T) {
	m := newRunningManager(t)

	id := m.Add("user-1", "track.mp3", 2048)

	assert.Equal(t, "track.mp3-2048", id)
	queue := m.Snapshot("user-1")
	require.Len(t, queue, 1)
	assert.Equal(t, StatusPending, queue[0].Status)
	assert.Equal(t, 0, queue[0].Progress)
}

func TestAddDuplicateIsNoop(t *testing.T) {
	m := newRunningManager(t)

	first := m.Add("user-1", "track.mp3", 2048)
	m.SetProgress("user-1", first, 40)
	second := m.Add("user-1", "track.mp3", 2048)

	assert.Equal(t, first, second)
	queue := m.Snapshot("user-1")
	require.Len(t, queue, 1)
	assert.Equal(t, 40, queue[0].Progress, "re-adding must not reset the record")
}

func TestProgressMovesToUploading(t *testing.T) {
	m := newRunningManager(t)
	id := m.Add("user-1", "track.wav", 100)

	m.SetProgress("user-1", id, 55)

	queue := m.Snapshot("user-1")
	require.Len(t, queue, 1)
	assert.Equal(t, StatusUploading, queue[0].Status)
	assert.Equal(t, 55, queue[0].Progress)
}

func TestSuccessPinsProgress(t *testing.T) {
	m := newRunningManager(t)
	id := m.Add("user-1", "track.wav", 100)
	m.SetProgress("user-1", id, 70)

	m.SetStatus("user-1", id, StatusSuccess, "")

	queue := m.Snapshot("user-1")
	require.Len(t, queue, 1)
	assert.Equal(t, StatusSuccess, queue[0].Status)
	assert.Equal(t, 100, queue[0].Progress)
}

func TestErrorCarriesMessage(t *testing.T) {
	m := newRunningManager(t)
	id := m.Add("user-1", "track.flac", 5)

	m.SetStatus("user-1", id, StatusError, "bucket unreachable")

	queue := m.Snapshot("user-1")
	require.Len(t, queue, 1)
	assert.Equal(t, StatusError, queue[0].Status)
	assert.Equal(t, "bucket unreachable", queue[0].Error)
}

func TestClearFinishedKeepsActive(t *testing.T) {
	m := newRunningManager(t)
	done := m.Add("user-1", "done.mp3", 1)
	failed := m.Add("user-1", "failed.mp3", 2)
	active := m.Add("user-1", "active.mp3", 3)
	m.SetStatus("user-1", done, StatusSuccess, "")
	m.SetStatus("user-1", failed, StatusError, "boom")
	m.SetProgress("user-1", active, 10)

	m.ClearFinished("user-1")

	queue := m.Snapshot("user-1")
	require.Len(t, queue, 1)
	assert.Equal(t, active, queue[0].ID)
}

func TestQueuesAreIsolatedPerUser(t *testing.T) {
	m := newRunningManager(t)
	m.Add("user-1", "a.mp3", 1)
	m.Add("user-2", "b.mp3", 2)

	m.ClearFinished("user-1")

	assert.Len(t, m.Snapshot("user-1"), 1)
	assert.Len(t, m.Snapshot("user-2"), 1)
}

func TestSnapshotIsACopy(t *testing.T) {
	m := newRunningManager(t)
	id := m.Add("user-1", "a.mp3", 1)

	snap := m.Snapshot("user-1")
	require.Len(t, snap, 1)
	snap[0].Progress = 99

	m.SetProgress("user-1", id, 10)
	fresh := m.Snapshot("user-1")
	assert.Equal(t, 10, fresh[0].Progress)
}
