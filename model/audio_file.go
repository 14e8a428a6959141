package model

import "time"

// AudioFile represents an uploaded audio asset. Rows are created once per
// successful upload event and are immutable afterwards in this pipeline.
type AudioFile struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	Filename    string    `json:"filename"`
	StoragePath string    `json:"storagePath"`
	FileSize    int64     `json:"fileSize"`
	Format      string    `json:"format"` // declared MIME type
	Duration    float64   `json:"duration,omitempty"`
	SampleRate  int       `json:"sampleRate,omitempty"`
	Channels    int       `json:"channels,omitempty"`
	Bitrate     int       `json:"bitrate,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// StreamInfo carries coarse audio stream parameters estimated from the MIME
// type at upload time. The analysis worker later reports precise values.
type StreamInfo struct {
	Bitrate    int
	Channels   int
	SampleRate int
}

// StorageEvent is the payload emitted when an object is created in the
// object store.
type StorageEvent struct {
	Type   string        `json:"type"`  // "INSERT"
	Table  string        `json:"table"` // "objects"
	Record StorageRecord `json:"record"`
}

// StorageRecord identifies the created object.
type StorageRecord struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Owner    string          `json:"owner"`
	BucketID string          `json:"bucket_id"`
	Metadata StorageMetadata `json:"metadata"`
}

// StorageMetadata carries object-level metadata from the store.
type StorageMetadata struct {
	MimeType string `json:"mimetype"`
	Size     int64  `json:"size"`
}
