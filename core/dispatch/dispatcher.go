package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"musaix/logger"
)

// Job is one analysis trigger: tell the external worker which object to
// analyze and which analysis row to report back against.
type Job struct {
	StoragePath string `json:"storagePath"`
	AnalysisID  string `json:"analysisId"`
}

// DeadLetter records jobs that exhausted their retries. Stranded pending
// rows stay observable this way instead of failing silently.
type DeadLetter interface {
	Record(ctx context.Context, job Job, cause error)
}

// Dispatcher delivers analysis triggers to the external analysis function.
// Enqueue is fire-and-forget from the caller's point of view: delivery
// failures are retried with backoff and finally dead-lettered, never
// propagated back to the upload path.
type Dispatcher struct {
	url     string
	secret  string
	client  *http.Client
	jobs    chan Job
	retries int
	backoff time.Duration
	dead    DeadLetter

	wg   sync.WaitGroup
	quit chan struct{}
	once sync.Once
}

// NewDispatcher creates a dispatcher. queueSize bounds the in-flight
// backlog; a full queue sends new jobs straight to the dead letter.
func NewDispatcher(url, secret string, timeout time.Duration, queueSize, retries int, backoff time.Duration, dead DeadLetter) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 256
	}
	if retries < 0 {
		retries = 0
	}
	return &Dispatcher{
		url:     url,
		secret:  secret,
		client:  &http.Client{Timeout: timeout},
		jobs:    make(chan Job, queueSize),
		retries: retries,
		backoff: backoff,
		dead:    dead,
		quit:    make(chan struct{}),
	}
}

// Start launches the delivery workers.
func (d *Dispatcher) Start(workers int) {
	if workers <= 0 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
}

// Stop shuts the workers down. Queued jobs that have not started delivery
// are dead-lettered.
func (d *Dispatcher) Stop() {
	d.once.Do(func() {
		close(d.quit)
	})
	d.wg.Wait()

	for {
		select {
		case job := <-d.jobs:
			d.recordDead(job, fmt.Errorf("dispatcher stopped before delivery"))
		default:
			return
		}
	}
}

// Enqueue queues one trigger. Never blocks; a full queue dead-letters the
// job immediately.
func (d *Dispatcher) Enqueue(storagePath, analysisID string) {
	job := Job{StoragePath: storagePath, AnalysisID: analysisID}
	select {
	case d.jobs <- job:
	default:
		logger.Error("Dispatch queue full, dead-lettering job",
			logger.String("analysisId", analysisID))
		d.recordDead(job, fmt.Errorf("dispatch queue full"))
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for {
		select {
		case <-d.quit:
			return
		case job := <-d.jobs:
			d.deliver(job)
		}
	}
}

func (d *Dispatcher) deliver(job Job) {
	var lastErr error
	for attempt := 0; attempt <= d.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-d.quit:
				d.recordDead(job, lastErr)
				return
			case <-time.After(d.backoff * time.Duration(attempt)):
			}
		}

		if err := d.send(job); err != nil {
			lastErr = err
			logger.Warn("Analysis trigger delivery failed",
				logger.String("analysisId", job.AnalysisID),
				logger.Int("attempt", attempt+1),
				logger.ErrorField(err))
			continue
		}

		logger.Info("Analysis trigger delivered",
			logger.String("analysisId", job.AnalysisID),
			logger.String("storagePath", job.StoragePath))
		return
	}

	logger.Error("Analysis trigger exhausted retries",
		logger.String("analysisId", job.AnalysisID),
		logger.ErrorField(lastErr))
	d.recordDead(job, lastErr)
}

func (d *Dispatcher) send(job Job) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to encode trigger payload: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build trigger request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+d.secret)

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call analysis function: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("analysis function returned status %d", resp.StatusCode)
	}
	return nil
}

func (d *Dispatcher) recordDead(job Job, cause error) {
	if d.dead == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	d.dead.Record(ctx, job, cause)
}
