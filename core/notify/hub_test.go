package notify

import (
	"testing"
	"time"

	"musaix/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRunningHub(t *testing.T) *Hub {
	t.Helper()
	h := NewHub()
	go h.Run()
	t.Cleanup(h.Stop)
	return h
}

func receiveUpdate(t *testing.T, sub *Subscription) Update {
	t.Helper()
	select {
	case u, ok := <-sub.C:
		require.True(t, ok, "channel closed before an update arrived")
		return u
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for update")
		return Update{}
	}
}

func expectClosed(t *testing.T, sub *Subscription) {
	t.Helper()
	select {
	case _, ok := <-sub.C:
		assert.False(t, ok, "expected channel close, got an update")
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for channel close")
	}
}

func TestSubscribeReceivesMatchingUpdates(t *testing.T) {
	h := newRunningHub(t)
	sub := h.Subscribe("analysis-1")
	other := h.Subscribe("analysis-2")
	defer sub.Close()
	defer other.Close()

	h.Publish(Update{AnalysisID: "analysis-1", Status: model.StatusPending})

	got := receiveUpdate(t, sub)
	assert.Equal(t, "analysis-1", got.AnalysisID)
	assert.Equal(t, model.StatusPending, got.Status)

	select {
	case u := <-other.C:
		t.Fatalf("subscriber for a different id received %+v", u)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestTerminalUpdateClosesSubscriptions(t *testing.T) {
	h := newRunningHub(t)
	first := h.Subscribe("analysis-1")
	second := h.Subscribe("analysis-1")

	h.Publish(Update{AnalysisID: "analysis-1", Status: model.StatusCompleted})

	for _, sub := range []*Subscription{first, second} {
		got := receiveUpdate(t, sub)
		assert.Equal(t, model.StatusCompleted, got.Status)
		expectClosed(t, sub)
	}
}

func TestFailedStatusIsTerminal(t *testing.T) {
	h := newRunningHub(t)
	sub := h.Subscribe("analysis-1")

	h.Publish(Update{AnalysisID: "analysis-1", Status: model.StatusFailed})

	got := receiveUpdate(t, sub)
	assert.Equal(t, model.StatusFailed, got.Status)
	expectClosed(t, sub)
}

func TestCloseIsIdempotent(t *testing.T) {
	h := newRunningHub(t)
	sub := h.Subscribe("analysis-1")

	sub.Close()
	sub.Close()
	expectClosed(t, sub)

	// A later publish must not reach the closed subscription.
	h.Publish(Update{AnalysisID: "analysis-1", Status: model.StatusPending})
}

type captureBridge struct {
	updates chan Update
}

func (b *captureBridge) Broadcast(update Update) {
	b.updates <- update
}

func TestPublishAnalysisBroadcastsWithOrigin(t *testing.T) {
	h := newRunningHub(t)
	bridge := &captureBridge{updates: make(chan Update, 1)}
	h.SetBridge(bridge)
	sub := h.Subscribe("analysis-1")
	defer sub.Close()

	h.PublishAnalysis(&model.AudioAnalysis{
		ID:               "analysis-1",
		ProcessingStatus: model.StatusPending,
	})

	local := receiveUpdate(t, sub)
	assert.Equal(t, h.ID(), local.Origin)
	require.NotNil(t, local.Analysis)

	select {
	case relayed := <-bridge.updates:
		assert.Equal(t, h.ID(), relayed.Origin, "bridge payload must carry the origin hub id")
		assert.Equal(t, "analysis-1", relayed.AnalysisID)
	case <-time.After(2 * time.Second):
		t.Fatal("update never reached the bridge")
	}
}

func TestStopClosesAllSubscriptions(t *testing.T) {
	h := NewHub()
	go h.Run()
	first := h.Subscribe("analysis-1")
	second := h.Subscribe("analysis-2")

	h.Stop()

	expectClosed(t, first)
	expectClosed(t, second)

	// Subscribe after Stop returns an already-closed subscription.
	late := h.Subscribe("analysis-3")
	expectClosed(t, late)
}
