package server

import (
	"context"

	"musaix/model"
	"musaix/repository"
)

type stubAnalysisRepo struct {
	byID       map[string]*model.AudioAnalysis
	createErr  error
	updateErr  error
	created    []*model.AudioFile
	updatedIDs []string

	matches        []model.SimilarAudioFile
	matchErr       error
	matchThreshold float64
	matchCount     int
}

func newStubAnalysisRepo() *stubAnalysisRepo {
	return &stubAnalysisRepo{byID: make(map[string]*model.AudioAnalysis)}
}

func (r *stubAnalysisRepo) CreateFileWithAnalysis(ctx context.Context, file *model.AudioFile, analysis *model.AudioAnalysis) error {
	if r.createErr != nil {
		return r.createErr
	}
	analysis.AudioFileID = file.ID
	analysis.ProcessingStatus = model.StatusPending
	r.byID[analysis.ID] = analysis
	r.created = append(r.created, file)
	return nil
}

func (r *stubAnalysisRepo) GetByID(ctx context.Context, id string) (*model.AudioAnalysis, error) {
	if a, ok := r.byID[id]; ok {
		return a, nil
	}
	return nil, repository.ErrAnalysisNotFound
}

func (r *stubAnalysisRepo) GetWithFile(ctx context.Context, id string) (*model.AnalysisWithFile, error) {
	a, ok := r.byID[id]
	if !ok {
		return nil, repository.ErrAnalysisNotFound
	}
	return &model.AnalysisWithFile{AudioAnalysis: *a}, nil
}

func (r *stubAnalysisRepo) ListCompletedByUser(ctx context.Context, userID string) ([]*model.AnalysisWithFile, error) {
	return nil, nil
}

func (r *stubAnalysisRepo) UpdateResults(ctx context.Context, id string, results *model.AnalysisResults, metadata *model.AnalysisMetadata) (model.ProcessingStatus, *model.AudioAnalysis, error) {
	if r.updateErr != nil {
		return "", nil, r.updateErr
	}
	row, ok := r.byID[id]
	if !ok {
		return "", nil, repository.ErrAnalysisNotFound
	}
	prev := row.ProcessingStatus
	row.ProcessingStatus = results.ProcessingStatus
	row.Tempo = results.Tempo
	row.BeatCount = results.BeatCount
	row.Embedding = results.Embedding
	row.Metadata = metadata
	r.updatedIDs = append(r.updatedIDs, id)
	return prev, row, nil
}

func (r *stubAnalysisRepo) MatchAudioFiles(ctx context.Context, embedding []float32, distanceThreshold float64, count int) ([]model.SimilarAudioFile, error) {
	r.matchThreshold = distanceThreshold
	r.matchCount = count
	return r.matches, r.matchErr
}

type stubFileRepo struct {
	byID map[string]*model.AudioFile
}

func (r *stubFileRepo) GetByID(ctx context.Context, id string) (*model.AudioFile, error) {
	if r.byID == nil {
		return nil, nil
	}
	return r.byID[id], nil
}

func (r *stubFileRepo) ListByUserID(ctx context.Context, userID string) ([]*model.AudioFile, error) {
	return nil, nil
}

type stubUsageRepo struct {
	entries []*model.UsageLog
}

func (r *stubUsageRepo) Append(ctx context.Context, entry *model.UsageLog) error {
	r.entries = append(r.entries, entry)
	return nil
}

type stubQueue struct {
	storagePaths []string
	analysisIDs  []string
}

func (q *stubQueue) Enqueue(storagePath, analysisID string) {
	q.storagePaths = append(q.storagePaths, storagePath)
	q.analysisIDs = append(q.analysisIDs, analysisID)
}
