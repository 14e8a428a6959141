package analysis

import (
	"context"
	"errors"

	"musaix/model"
)

// fakeAnalysisRepo records calls and returns canned results.
type fakeAnalysisRepo struct {
	createErr     error
	createdFile   *model.AudioFile
	createdRow    *model.AudioAnalysis
	updateErr     error
	prevStatus    model.ProcessingStatus
	updated       *model.AudioAnalysis
	updateCalls   int
	gotResults    *model.AnalysisResults
	gotMetadata   *model.AnalysisMetadata
	gotUpdateID   string
	matchErr      error
	matches       []model.SimilarAudioFile
	gotEmbedding  []float32
	gotThreshold  float64
	gotMatchCount int
}

func (f *fakeAnalysisRepo) CreateFileWithAnalysis(ctx context.Context, file *model.AudioFile, analysis *model.AudioAnalysis) error {
	if f.createErr != nil {
		return f.createErr
	}
	analysis.AudioFileID = file.ID
	analysis.ProcessingStatus = model.StatusPending
	f.createdFile = file
	f.createdRow = analysis
	return nil
}

func (f *fakeAnalysisRepo) GetByID(ctx context.Context, id string) (*model.AudioAnalysis, error) {
	if f.createdRow != nil && f.createdRow.ID == id {
		return f.createdRow, nil
	}
	return nil, errors.New("analysis not found")
}

func (f *fakeAnalysisRepo) GetWithFile(ctx context.Context, id string) (*model.AnalysisWithFile, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeAnalysisRepo) ListCompletedByUser(ctx context.Context, userID string) ([]*model.AnalysisWithFile, error) {
	return nil, nil
}

func (f *fakeAnalysisRepo) UpdateResults(ctx context.Context, id string, results *model.AnalysisResults, metadata *model.AnalysisMetadata) (model.ProcessingStatus, *model.AudioAnalysis, error) {
	f.updateCalls++
	f.gotUpdateID = id
	f.gotResults = results
	f.gotMetadata = metadata
	if f.updateErr != nil {
		return "", nil, f.updateErr
	}
	updated := f.updated
	if updated == nil {
		updated = &model.AudioAnalysis{
			ID:               id,
			AudioFileID:      "file-1",
			ProcessingStatus: results.ProcessingStatus,
			Tempo:            results.Tempo,
			BeatCount:        results.BeatCount,
			Embedding:        results.Embedding,
			Metadata:         metadata,
		}
	}
	return f.prevStatus, updated, nil
}

func (f *fakeAnalysisRepo) MatchAudioFiles(ctx context.Context, embedding []float32, distanceThreshold float64, count int) ([]model.SimilarAudioFile, error) {
	f.gotEmbedding = embedding
	f.gotThreshold = distanceThreshold
	f.gotMatchCount = count
	return f.matches, f.matchErr
}

// fakeFileRepo resolves audio file owners.
type fakeFileRepo struct {
	files map[string]*model.AudioFile
	err   error
}

func (f *fakeFileRepo) GetByID(ctx context.Context, id string) (*model.AudioFile, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.files[id], nil
}

func (f *fakeFileRepo) ListByUserID(ctx context.Context, userID string) ([]*model.AudioFile, error) {
	return nil, nil
}

// fakeUsageRepo records appended entries.
type fakeUsageRepo struct {
	entries []*model.UsageLog
	err     error
}

func (f *fakeUsageRepo) Append(ctx context.Context, entry *model.UsageLog) error {
	if f.err != nil {
		return f.err
	}
	f.entries = append(f.entries, entry)
	return nil
}

// fakeQueue records enqueued trigger jobs.
type fakeQueue struct {
	storagePaths []string
	analysisIDs  []string
}

func (f *fakeQueue) Enqueue(storagePath, analysisID string) {
	f.storagePaths = append(f.storagePaths, storagePath)
	f.analysisIDs = append(f.analysisIDs, analysisID)
}

// fakePublisher records published rows.
type fakePublisher struct {
	published []*model.AudioAnalysis
}

func (f *fakePublisher) PublishAnalysis(analysis *model.AudioAnalysis) {
	f.published = append(f.published, analysis)
}

// fakeCache records cached rows.
type fakeCache struct {
	cached []*model.AudioAnalysis
}

func (f *fakeCache) SetCompleted(ctx context.Context, analysis *model.AudioAnalysis) {
	f.cached = append(f.cached, analysis)
}
