package search

import (
	"context"
	"errors"
	"testing"

	"musaix/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMatchRepo struct {
	matches      []model.SimilarAudioFile
	err          error
	called       bool
	gotThreshold float64
	gotCount     int
}

func (f *fakeMatchRepo) CreateFileWithAnalysis(ctx context.Context, file *model.AudioFile, analysis *model.AudioAnalysis) error {
	return errors.New("not implemented")
}

func (f *fakeMatchRepo) GetByID(ctx context.Context, id string) (*model.AudioAnalysis, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeMatchRepo) GetWithFile(ctx context.Context, id string) (*model.AnalysisWithFile, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeMatchRepo) ListCompletedByUser(ctx context.Context, userID string) ([]*model.AnalysisWithFile, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeMatchRepo) UpdateResults(ctx context.Context, id string, results *model.AnalysisResults, metadata *model.AnalysisMetadata) (model.ProcessingStatus, *model.AudioAnalysis, error) {
	return "", nil, errors.New("not implemented")
}

func (f *fakeMatchRepo) MatchAudioFiles(ctx context.Context, embedding []float32, distanceThreshold float64, count int) ([]model.SimilarAudioFile, error) {
	f.called = true
	f.gotThreshold = distanceThreshold
	f.gotCount = count
	return f.matches, f.err
}

func queryEmbedding(n int) []float32 {
	e := make([]float32, n)
	for i := range e {
		e[i] = 0.5
	}
	return e
}

func TestFindSimilarRejectsWrongLength(t *testing.T) {
	repo := &fakeMatchRepo{}
	svc := NewService(repo)

	_, err := svc.FindSimilar(context.Background(), queryEmbedding(1500), 0.78, 10)

	require.ErrorIs(t, err, ErrInvalidEmbedding)
	assert.False(t, repo.called, "no query may be issued for an invalid vector")
}

func TestFindSimilarInvertsThreshold(t *testing.T) {
	repo := &fakeMatchRepo{}
	svc := NewService(repo)

	_, err := svc.FindSimilar(context.Background(), queryEmbedding(model.EmbeddingDim), 0.9, 5)
	require.NoError(t, err)

	assert.InDelta(t, 0.1, repo.gotThreshold, 1e-12, "distance threshold is 1 - similarity")
	assert.Equal(t, 5, repo.gotCount)
}

func TestFindSimilarDefaults(t *testing.T) {
	repo := &fakeMatchRepo{}
	svc := NewService(repo)

	_, err := svc.FindSimilar(context.Background(), queryEmbedding(model.EmbeddingDim), 0, 0)
	require.NoError(t, err)

	assert.InDelta(t, 1-DefaultSimilarityThreshold, repo.gotThreshold, 1e-12)
	assert.Equal(t, DefaultMatchCount, repo.gotCount)
}

func TestFindSimilarReturnsRawDistance(t *testing.T) {
	repo := &fakeMatchRepo{matches: []model.SimilarAudioFile{
		{ID: "f-1", Filename: "a.wav", Similarity: 0.12},
		{ID: "f-2", Filename: "b.wav", Similarity: 0.20},
	}}
	svc := NewService(repo)

	matches, err := svc.FindSimilar(context.Background(), queryEmbedding(model.EmbeddingDim), 0.78, 10)
	require.NoError(t, err)
	require.Len(t, matches, 2)

	// Raw distance passes through; the display conversion (1-d)*100 stays
	// consistent with the threshold direction.
	assert.InDelta(t, 88.0, (1-matches[0].Similarity)*100, 1e-9)
	assert.Greater(t, (1-matches[0].Similarity)*100, (1-matches[1].Similarity)*100)
}

func TestFindSimilarHidesStorageErrors(t *testing.T) {
	repo := &fakeMatchRepo{err: errors.New("function match_audio_files does not exist")}
	svc := NewService(repo)

	_, err := svc.FindSimilar(context.Background(), queryEmbedding(model.EmbeddingDim), 0.78, 10)

	require.ErrorIs(t, err, ErrSearchFailed)
}
