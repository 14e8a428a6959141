package dispatch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDeadLetter struct {
	mu     sync.Mutex
	jobs   []Job
	causes []error
}

func (f *fakeDeadLetter) Record(ctx context.Context, job Job, cause error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs = append(f.jobs, job)
	f.causes = append(f.causes, cause)
}

func (f *fakeDeadLetter) recorded() []Job {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Job(nil), f.jobs...)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition never met")
}

func TestDeliverySendsAuthorizedTrigger(t *testing.T) {
	type received struct {
		auth string
		job  Job
	}
	got := make(chan received, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var job Job
		require.NoError(t, json.NewDecoder(r.Body).Decode(&job))
		got <- received{auth: r.Header.Get("Authorization"), job: job}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	dead := &fakeDeadLetter{}
	d := NewDispatcher(srv.URL, "hook-secret", 5*time.Second, 8, 2, time.Millisecond, dead)
	d.Start(1)
	defer d.Stop()

	d.Enqueue("user-1/track.mp3", "analysis-1")

	select {
	case r := <-got:
		assert.Equal(t, "Bearer hook-secret", r.auth)
		assert.Equal(t, "user-1/track.mp3", r.job.StoragePath)
		assert.Equal(t, "analysis-1", r.job.AnalysisID)
	case <-time.After(3 * time.Second):
		t.Fatal("trigger never delivered")
	}
	assert.Empty(t, dead.recorded())
}

func TestRetriesThenDeadLetters(t *testing.T) {
	var mu sync.Mutex
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		attempts++
		mu.Unlock()
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	dead := &fakeDeadLetter{}
	d := NewDispatcher(srv.URL, "hook-secret", 5*time.Second, 8, 2, time.Millisecond, dead)
	d.Start(1)
	defer d.Stop()

	d.Enqueue("user-1/track.mp3", "analysis-1")

	waitFor(t, func() bool { return len(dead.recorded()) == 1 })
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 3, attempts, "initial attempt plus two retries")
	assert.Equal(t, "analysis-1", dead.recorded()[0].AnalysisID)
}

func TestRecoversWithinRetryBudget(t *testing.T) {
	var mu sync.Mutex
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		attempts++
		n := attempts
		mu.Unlock()
		if n == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	dead := &fakeDeadLetter{}
	d := NewDispatcher(srv.URL, "hook-secret", 5*time.Second, 8, 2, time.Millisecond, dead)
	d.Start(1)
	defer d.Stop()

	d.Enqueue("user-1/track.mp3", "analysis-1")

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return attempts >= 2
	})
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, dead.recorded())
}

func TestFullQueueDeadLettersImmediately(t *testing.T) {
	dead := &fakeDeadLetter{}
	// No workers started, queue capacity one.
	d := NewDispatcher("http://127.0.0.1:0", "hook-secret", time.Second, 1, 0, 0, dead)

	d.Enqueue("user-1/a.mp3", "analysis-1")
	d.Enqueue("user-1/b.mp3", "analysis-2")

	recorded := dead.recorded()
	require.Len(t, recorded, 1)
	assert.Equal(t, "analysis-2", recorded[0].AnalysisID)
}

func TestStopDrainsQueueToDeadLetter(t *testing.T) {
	dead := &fakeDeadLetter{}
	d := NewDispatcher("http://127.0.0.1:0", "hook-secret", time.Second, 8, 0, 0, dead)

	d.Enqueue("user-1/a.mp3", "analysis-1")
	d.Enqueue("user-1/b.mp3", "analysis-2")
	d.Stop()

	recorded := dead.recorded()
	require.Len(t, recorded, 2)
	ids := []string{recorded[0].AnalysisID, recorded[1].AnalysisID}
	assert.ElementsMatch(t, []string{"analysis-1", "analysis-2"}, ids)
}
