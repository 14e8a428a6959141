package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"musaix/db"
	"musaix/model"
)

// AudioFileRepository defines the interface for audio file lookups. Writes
// go through AnalysisRepository.CreateFileWithAnalysis so the pending
// analysis row is created in the same transaction.
type AudioFileRepository interface {
	GetByID(ctx context.Context, id string) (*model.AudioFile, error)
	ListByUserID(ctx context.Context, userID string) ([]*model.AudioFile, error)
}

// pgAudioFileRepository implements AudioFileRepository for PostgreSQL.
type pgAudioFileRepository struct {
	DB *sql.DB
}

// NewPgAudioFileRepository creates a new instance of pgAudioFileRepository.
func NewPgAudioFileRepository() AudioFileRepository {
	return &pgAudioFileRepository{DB: db.DB}
}

const audioFileColumns = `id, user_id, filename, storage_path, file_size, format, duration, sample_rate, channels, bitrate, created_at`

func scanAudioFile(row interface {
	Scan(dest ...interface{}) error
}) (*model.AudioFile, error) {
	f := &model.AudioFile{}
	var (
		duration   sql.NullFloat64
		sampleRate sql.NullInt64
		channels   sql.NullInt64
		bitrate    sql.NullInt64
	)
	err := row.Scan(&f.ID, &f.UserID, &f.Filename, &f.StoragePath, &f.FileSize,
		&f.Format, &duration, &sampleRate, &channels, &bitrate, &f.CreatedAt)
	if err != nil {
		return nil, err
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
	return f, nil
}

// GetByID retrieves an audio file by its ID.
func (r *pgAudioFileRepository) GetByID(ctx context.Context, id string) (*model.AudioFile, error) {
	row := r.DB.QueryRowContext(ctx,
		`SELECT `+audioFileColumns+` FROM audio_files WHERE id = $1`, id)

	f, err := scanAudioFile(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // file not found
		}
		return nil, fmt.Errorf("failed to scan audio file %s: %w", id, err)
	}
	return f, nil
}

// ListByUserID retrieves all audio files owned by a user, newest first.
func (r *pgAudioFileRepository) ListByUserID(ctx context.Context, userID string) ([]*model.AudioFile, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+audioFileColumns+` FROM audio_files WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query audio files for user %s: %w", userID, err)
	}
	defer rows.Close()

	files := make([]*model.AudioFile, 0)
	for rows.Next() {
		f, err := scanAudioFile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audio file in ListByUserID: %w", err)
		}
		files = append(files, f)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration in ListByUserID: %w", err)
	}
	return files, nil
}
