package model

import "time"

// ProcessingStatus is the lifecycle state of an analysis row.
type ProcessingStatus string

const (
	StatusPending   ProcessingStatus = "pending"
	StatusCompleted ProcessingStatus = "completed"
	StatusFailed    ProcessingStatus = "failed"
)

// IsTerminal reports whether no further transitions occur from the status.
func (s ProcessingStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// EmbeddingDim is the required length of every stored embedding vector.
const EmbeddingDim = 1536

// SpectralFeatures bundles frame-aligned spectral measurements. All slices
// have one value per analysis frame and frame order is significant.
type SpectralFeatures struct {
	Centroid  []float64 `json:"centroid"`
	Bandwidth []float64 `json:"bandwidth"`
	Rolloff   []float64 `json:"rolloff"`
	ZCR       []float64 `json:"zcr"`
	RMS       []float64 `json:"rms"`
}

// AnalysisMetadata is the free-form bag attached to an analysis row.
// Error is set only on failed rows, Summary only on completed ones.
type AnalysisMetadata struct {
	Error      string  `json:"error,omitempty"`
	Summary    string  `json:"summary,omitempty"`
	Duration   float64 `json:"duration,omitempty"`
	SampleRate int     `json:"sample_rate,omitempty"`
}

// AudioAnalysis holds extracted features for one AudioFile (one-to-one).
type AudioAnalysis struct {
	ID               string            `json:"id"`
	AudioFileID      string            `json:"audioFileId"`
	ProcessingStatus ProcessingStatus  `json:"processingStatus"`
	Tempo            float64           `json:"tempo,omitempty"`
	BeatCount        int               `json:"beatCount,omitempty"`
	MFCCs            [][]float64       `json:"mfccs,omitempty"`
	ChromaVector     [][]float64       `json:"chromaVector,omitempty"`
	SpectralFeatures *SpectralFeatures `json:"spectralFeatures,omitempty"`
	Embedding        []float32         `json:"embedding,omitempty"`
	Metadata         *AnalysisMetadata `json:"metadata,omitempty"`
	CreatedAt        time.Time         `json:"createdAt"`
}

// AnalysisResults is the result payload delivered by the analysis worker.
// Failed results usually carry only ProcessingStatus and Error.
type AnalysisResults struct {
	Tempo            float64           `json:"tempo"`
	BeatCount        int               `json:"beat_count"`
	MFCCs            [][]float64       `json:"mfccs"`
	ChromaVector     [][]float64       `json:"chroma_vector"`
	SpectralFeatures *SpectralFeatures `json:"spectral_features"`
	Embedding        []float32         `json:"embedding"`
	ProcessingStatus ProcessingStatus  `json:"processing_status"`
	Metadata         *AnalysisMetadata `json:"metadata"`
	Error            string            `json:"error"`
}

// AnalysisWithFile joins an analysis row with its audio file for display.
type AnalysisWithFile struct {
	AudioAnalysis
	AudioFile *AudioFile `json:"audioFile,omitempty"`
}

// SimilarAudioFile is one ranked match from a similarity search. Similarity
// carries the raw cosine distance returned by the store; display code
// converts it via (1 - distance) * 100.
type SimilarAudioFile struct {
	ID          string  `json:"id"`
	Filename    string  `json:"filename"`
	StoragePath string  `json:"storage_path"`
	Duration    float64 `json:"duration"`
	Similarity  float64 `json:"similarity"`
}
