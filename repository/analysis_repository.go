package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"musaix/db"
	"musaix/model"

	"github.com/pgvector/pgvector-go"
)

// ErrAnalysisNotFound is returned when an update or lookup targets an
// analysis id with no row behind it.
var ErrAnalysisNotFound = errors.New("analysis not found")

// AnalysisRepository defines the interface for analysis data operations.
type AnalysisRepository interface {
	// CreateFileWithAnalysis inserts the audio file row and its pending
	// analysis row in a single transaction: both land or neither does.
	CreateFileWithAnalysis(ctx context.Context, file *model.AudioFile, analysis *model.AudioAnalysis) error
	GetByID(ctx context.Context, id string) (*model.AudioAnalysis, error)
	GetWithFile(ctx context.Context, id string) (*model.AnalysisWithFile, error)
	ListCompletedByUser(ctx context.Context, userID string) ([]*model.AnalysisWithFile, error)
	// UpdateResults overwrites the result columns of exactly one row and
	// returns the row's status before the update, so callers can tell a
	// first delivery from a redelivery.
	UpdateResults(ctx context.Context, id string, results *model.AnalysisResults, metadata *model.AnalysisMetadata) (model.ProcessingStatus, *model.AudioAnalysis, error)
	MatchAudioFiles(ctx context.Context, embedding []float32, distanceThreshold float64, count int) ([]model.SimilarAudioFile, error)
}

// pgAnalysisRepository implements AnalysisRepository for PostgreSQL.
type pgAnalysisRepository struct {
	DB *sql.DB
}

// NewPgAnalysisRepository creates a new instance of pgAnalysisRepository.
func NewPgAnalysisRepository() AnalysisRepository {
	return &pgAnalysisRepository{DB: db.DB}
}

func marshalJSON(v interface{}) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

func embeddingValue(embedding []float32) interface{} {
	if len(embedding) == 0 {
		return nil
	}
	return pgvector.NewVector(embedding)
}

// CreateFileWithAnalysis inserts both pipeline rows transactionally.
func (r *pgAnalysisRepository) CreateFileWithAnalysis(ctx context.Context, file *model.AudioFile, analysis *model.AudioAnalysis) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	file.CreatedAt = now
	_, err = tx.ExecContext(ctx,
		`INSERT INTO audio_files (id, user_id, filename, storage_path, file_size, format, sample_rate, channels, bitrate, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		file.ID, file.UserID, file.Filename, file.StoragePath, file.FileSize,
		file.Format, file.SampleRate, file.Channels, file.Bitrate, now)
	if err != nil {
		return fmt.Errorf("failed to insert audio file: %w", err)
	}

	analysis.AudioFileID = file.ID
	analysis.ProcessingStatus = model.StatusPending
	analysis.CreatedAt = now
	_, err = tx.ExecContext(ctx,
		`INSERT INTO audio_analysis (id, audio_file_id, processing_status, created_at)
		 VALUES ($1, $2, $3, $4)`,
		analysis.ID, analysis.AudioFileID, analysis.ProcessingStatus, now)
	if err != nil {
		return fmt.Errorf("failed to insert analysis record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit file and analysis insert: %w", err)
	}
	return nil
}

const analysisColumns = `id, audio_file_id, processing_status, tempo, beat_count, mfccs, chroma_vector, spectral_features, metadata, created_at`

func scanAnalysis(row interface {
	Scan(dest ...interface{}) error
}) (*model.AudioAnalysis, error) {
	a := &model.AudioAnalysis{}
	var (
		tempo     sql.NullFloat64
		beatCount sql.NullInt64
		mfccs     []byte
		chroma    []byte
		spectral  []byte
		metadata  []byte
	)
	err := row.Scan(&a.ID, &a.AudioFileID, &a.ProcessingStatus, &tempo, &beatCount,
		&mfccs, &chroma, &spectral, &metadata, &a.CreatedAt)
	if err != nil {
		return nil, err
	}

	if tempo.Valid {
		a.Tempo = tempo.Float64
	}
	if beatCount.Valid {
		a.BeatCount = int(beatCount.Int64)
	}
	if len(mfccs) > 0 {
		if err := json.Unmarshal(mfccs, &a.MFCCs); err != nil {
			return nil, fmt.Errorf("failed to decode mfccs: %w", err)
		}
	}
	if len(chroma) > 0 {
		if err := json.Unmarshal(chroma, &a.ChromaVector); err != nil {
			return nil, fmt.Errorf("failed to decode chroma_vector: %w", err)
		}
	}
	if len(spectral) > 0 {
		a.SpectralFeatures = &model.SpectralFeatures{}
		if err := json.Unmarshal(spectral, a.SpectralFeatures); err != nil {
			return nil, fmt.Errorf("failed to decode spectral_features: %w", err)
		}
	}
	if len(metadata) > 0 {
		a.Metadata = &model.AnalysisMetadata{}
		if err := json.Unmarshal(metadata, a.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode metadata: %w", err)
		}
	}
	return a, nil
}

// GetByID retrieves an analysis row by its primary key.
func (r *pgAnalysisRepository) GetByID(ctx context.Context, id string) (*model.AudioAnalysis, error) {
	row := r.DB.QueryRowContext(ctx,
		`SELECT `+analysisColumns+` FROM audio_analysis WHERE id = $1`, id)

	a, err := scanAnalysis(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAnalysisNotFound
		}
		return nil, fmt.Errorf("failed to scan analysis %s: %w", id, err)
	}
	return a, nil
}

// GetWithFile retrieves an analysis row joined with its audio file.
func (r *pgAnalysisRepository) GetWithFile(ctx context.Context, id string) (*model.AnalysisWithFile, error) {
	a, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	f := &model.AudioFile{}
	var duration, sampleRate, channels, bitrate = sql.NullFloat64{}, sql.NullInt64{}, sql.NullInt64{}, sql.NullInt64{}
	row := r.DB.QueryRowContext(ctx,
		`SELECT id, user_id, filename, storage_path, file_size, format, duration, sample_rate, channels, bitrate, created_at
		 FROM audio_files WHERE id = $1`, a.AudioFileID)
	err = row.Scan(&f.ID, &f.UserID, &f.Filename, &f.StoragePath, &f.FileSize,
		&f.Format, &duration, &sampleRate, &channels, &bitrate, &f.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to scan audio file %s: %w", a.AudioFileID, err)
	}
	if duration.Valid {
		f.Duration = duration.Float64
	}
	if sampleRate.Valid {
		f.SampleRate = int(sampleRate.Int64)
	}
	if channels.Valid {
		f.Channels = int(channels.Int64)
	}
	if bitrate.Valid {
		f.Bitrate = int(bitrate.Int64)
	}

	return &model.AnalysisWithFile{AudioAnalysis: *a, AudioFile: f}, nil
}

// ListCompletedByUser returns completed analyses for a user, newest first.
func (r *pgAnalysisRepository) ListCompletedByUser(ctx context.Context, userID string) ([]*model.AnalysisWithFile, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT a.id, a.audio_file_id, a.processing_status, a.tempo, a.beat_count,
		        a.mfccs, a.chroma_vector, a.spectral_features, a.metadata, a.created_at,
		        f.filename, f.storage_path, f.file_size, f.format, f.duration
		 FROM audio_analysis a
		 JOIN audio_files f ON f.id = a.audio_file_id
		 WHERE f.user_id = $1 AND a.processing_status = 'completed'
		 ORDER BY a.created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query analyses for user %s: %w", userID, err)
	}
	defer rows.Close()

	results := make([]*model.AnalysisWithFile, 0)
	for rows.Next() {
		a := &model.AudioAnalysis{}
		f := &model.AudioFile{UserID: userID}
		var (
			tempo     sql.NullFloat64
			beatCount sql.NullInt64
			mfccs     []byte
			chroma    []byte
			spectral  []byte
			metadata  []byte
			duration  sql.NullFloat64
		)
		err := rows.Scan(&a.ID, &a.AudioFileID, &a.ProcessingStatus, &tempo, &beatCount,
			&mfccs, &chroma, &spectral, &metadata, &a.CreatedAt,
			&f.Filename, &f.StoragePath, &f.FileSize, &f.Format, &duration)
		if err != nil {
			return nil, fmt.Errorf("failed to scan analysis row in ListCompletedByUser: %w", err)
		}
		if tempo.Valid {
			a.Tempo = tempo.Float64
		}
		if beatCount.Valid {
			a.BeatCount = int(beatCount.Int64)
		}
		if len(mfccs) > 0 {
			if err := json.Unmarshal(mfccs, &a.MFCCs); err != nil {
				return nil, fmt.Errorf("failed to decode mfccs: %w", err)
			}
		}
		if len(chroma) > 0 {
			if err := json.Unmarshal(chroma, &a.ChromaVector); err != nil {
				return nil, fmt.Errorf("failed to decode chroma_vector: %w", err)
			}
		}
		if len(spectral) > 0 {
			a.SpectralFeatures = &model.SpectralFeatures{}
			if err := json.Unmarshal(spectral, a.SpectralFeatures); err != nil {
				return nil, fmt.Errorf("failed to decode spectral_features: %w", err)
			}
		}
		if len(metadata) > 0 {
			a.Metadata = &model.AnalysisMetadata{}
			if err := json.Unmarshal(metadata, a.Metadata); err != nil {
				return nil, fmt.Errorf("failed to decode metadata: %w", err)
			}
		}
		if duration.Valid {
			f.Duration = duration.Float64
		}
		f.ID = a.AudioFileID
		results = append(results, &model.AnalysisWithFile{AudioAnalysis: *a, AudioFile: f})
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration in ListCompletedByUser: %w", err)
	}
	return results, nil
}

// UpdateResults overwrites the analysis result columns by primary key.
// Runs in a transaction so the pre-update status read and the write are
// consistent under concurrent deliveries.
func (r *pgAnalysisRepository) UpdateResults(ctx context.Context, id string, results *model.AnalysisResults, metadata *model.AnalysisMetadata) (model.ProcessingStatus, *model.AudioAnalysis, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return "", nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var prevStatus model.ProcessingStatus
	err = tx.QueryRowContext(ctx,
		`SELECT processing_status FROM audio_analysis WHERE id = $1 FOR UPDATE`, id).Scan(&prevStatus)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil, ErrAnalysisNotFound
		}
		return "", nil, fmt.Errorf("failed to lock analysis %s: %w", id, err)
	}

	mfccs, err := marshalJSON(results.MFCCs)
	if err != nil {
		return "", nil, fmt.Errorf("failed to encode mfccs: %w", err)
	}
	chroma, err := marshalJSON(results.ChromaVector)
	if err != nil {
		return "", nil, fmt.Errorf("failed to encode chroma_vector: %w", err)
	}
	spectral, err := marshalJSON(results.SpectralFeatures)
	if err != nil {
		return "", nil, fmt.Errorf("failed to encode spectral_features: %w", err)
	}
	meta, err := marshalJSON(metadata)
	if err != nil {
		return "", nil, fmt.Errorf("failed to encode metadata: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE audio_analysis
		 SET tempo = $2, beat_count = $3, mfccs = $4, chroma_vector = $5,
		     spectral_features = $6, embedding = $7, processing_status = $8, metadata = $9
		 WHERE id = $1`,
		id, results.Tempo, results.BeatCount, mfccs, chroma, spectral,
		embeddingValue(results.Embedding), results.ProcessingStatus, meta)
	if err != nil {
		return "", nil, fmt.Errorf("failed to update analysis %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return "", nil, fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected != 1 {
		return "", nil, fmt.Errorf("%w: id %s", ErrAnalysisNotFound, id)
	}

	row := tx.QueryRowContext(ctx,
		`SELECT `+analysisColumns+` FROM audio_analysis WHERE id = $1`, id)
	updated, err := scanAnalysis(row)
	if err != nil {
		return "", nil, fmt.Errorf("failed to reload analysis %s: %w", id, err)
	}
	updated.Embedding = results.Embedding

	if err := tx.Commit(); err != nil {
		return "", nil, fmt.Errorf("failed to commit analysis update: %w", err)
	}
	return prevStatus, updated, nil
}

// MatchAudioFiles runs the nearest-neighbor lookup via the stored function.
// distanceThreshold is a cosine distance; rows come back distance-ranked.
func (r *pgAnalysisRepository) MatchAudioFiles(ctx context.Context, embedding []float32, distanceThreshold float64, count int) ([]model.SimilarAudioFile, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id, filename, storage_path, duration, similarity
		 FROM match_audio_files($1, $2, $3)`,
		pgvector.NewVector(embedding), distanceThreshold, count)
	if err != nil {
		return nil, fmt.Errorf("failed to query match_audio_files: %w", err)
	}
	defer rows.Close()

	matches := make([]model.SimilarAudioFile, 0, count)
	for rows.Next() {
		var m model.SimilarAudioFile
		var duration sql.NullFloat64
		if err := rows.Scan(&m.ID, &m.Filename, &m.StoragePath, &duration, &m.Similarity); err != nil {
			return nil, fmt.Errorf("failed to scan similarity match: %w", err)
		}
		if duration.Valid {
			m.Duration = duration.Float64
		}
		matches = append(matches, m)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration in MatchAudioFiles: %w", err)
	}
	return matches, nil
}
