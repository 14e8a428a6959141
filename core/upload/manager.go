package upload

import (
	"fmt"
)

// Status is the client-visible state of one upload.
type Status string

const (
	StatusPending    Status = "pending"
	StatusUploading  Status = "uploading"
	StatusProcessing Status = "processing"
	StatusSuccess    Status = "success"
	StatusError      Status = "error"
)

// Record tracks one file moving through the upload queue. Records are
// ephemeral: they live for the session and are never persisted. Completion
// of the downstream analysis is observed separately through the analysis
// subscription, not reflected here.
type Record struct {
	ID       string `json:"id"` // filename-size, stable across retries
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
	Status   Status `json:"status"`
	Progress int    `json:"progress"` // 0-100
	Error    string `json:"error,omitempty"`
}

// RecordID derives the queue id for a file.
func RecordID(filename string, size int64) string {
	return fmt.Sprintf("%s-%d", filename, size)
}

type addCmd struct {
	userID   string
	filename string
	size     int64
	reply    chan string
}

type progressCmd struct {
	userID   string
	id       string
	progress int
}

type statusCmd struct {
	userID string
	id     string
	status Status
	errMsg string
}

type clearCmd struct {
	userID string
}

type snapshotCmd struct {
	userID string
	reply  chan []Record
}

// Manager owns the per-user upload queues. All state lives inside the Run
// goroutine and is mutated only through command messages, so concurrent
// upload handlers never share mutable records.
type Manager struct {
	uploads map[string][]*Record // userID -> queue, insertion order

	commands chan interface{}
	done     chan struct{}
}

// NewManager creates a Manager. Call Run in its own goroutine.
func NewManager() *Manager {
	return &Manager{
		uploads:  make(map[string][]*Record),
		commands: make(chan interface{}, 64),
		done:     make(chan struct{}),
	}
}

// Run is the manager main loop.
func (m *Manager) Run() {
	for {
		select {
		case cmd := <-m.commands:
			m.handle(cmd)
		case <-m.done:
			return
		}
	}
}

// Stop stops the manager.
func (m *Manager) Stop() {
	close(m.done)
}

func (m *Manager) handle(cmd interface{}) {
	switch c := cmd.(type) {
	case addCmd:
		id := RecordID(c.filename, c.size)
		if m.find(c.userID, id) == nil {
			m.uploads[c.userID] = append(m.uploads[c.userID], &Record{
				ID:       id,
				Filename: c.filename,
				Size:     c.size,
				Status:   StatusPending,
			})
		}
		c.reply <- id

	case progressCmd:
		if rec := m.find(c.userID, c.id); rec != nil {
			rec.Progress = c.progress
			rec.Status = StatusUploading
		}

	case statusCmd:
		if rec := m.find(c.userID, c.id); rec != nil {
			rec.Status = c.status
			rec.Error = c.errMsg
			if c.status == StatusSuccess {
				rec.Progress = 100
			}
		}

	case clearCmd:
		kept := m.uploads[c.userID][:0]
		for _, rec := range m.uploads[c.userID] {
			if rec.Status != StatusSuccess && rec.Status != StatusError {
				kept = append(kept, rec)
			}
		}
		if len(kept) == 0 {
			delete(m.uploads, c.userID)
		} else {
			m.uploads[c.userID] = kept
		}

	case snapshotCmd:
		queue := m.uploads[c.userID]
		out := make([]Record, len(queue))
		for i, rec := range queue {
			out[i] = *rec
		}
		c.reply <- out
	}
}

func (m *Manager) find(userID, id string) *Record {
	for _, rec := range m.uploads[userID] {
		if rec.ID == id {
			return rec
		}
	}
	return nil
}

func (m *Manager) send(cmd interface{}) {
	select {
	case m.commands <- cmd:
	case <-m.done:
	}
}

// Add enqueues a file in pending state and returns its record id. Adding a
// file already in the queue is a no-op that returns the existing id.
func (m *Manager) Add(userID, filename string, size int64) string {
	reply := make(chan string, 1)
	m.send(addCmd{userID: userID, filename: filename, size: size, reply: reply})
	select {
	case id := <-reply:
		return id
	case <-m.done:
		return RecordID(filename, size)
	}
}

// SetProgress updates transfer progress; the record moves to uploading.
func (m *Manager) SetProgress(userID, id string, progress int) {
	m.send(progressCmd{userID: userID, id: id, progress: progress})
}

// SetStatus moves a record to the given status, with an optional error
// message for StatusError.
func (m *Manager) SetStatus(userID, id string, status Status, errMsg string) {
	m.send(statusCmd{userID: userID, id: id, status: status, errMsg: errMsg})
}

// ClearFinished drops success and error records from the queue.
func (m *Manager) ClearFinished(userID string) {
	m.send(clearCmd{userID: userID})
}

// Snapshot returns a copy of the user's queue in insertion order.
func (m *Manager) Snapshot(userID string) []Record {
	reply := make(chan []Record, 1)
	m.send(snapshotCmd{userID: userID, reply: reply})
	select {
	case records := <-reply:
		return records
	case <-m.done:
		return nil
	}
}
