package db

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	"musaix/config"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// DB is the global database connection pool.
var DB *sql.DB

// ConnectDB establishes the PostgreSQL connection pool.
func ConnectDB(cfg *config.Config) error {
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName, cfg.DBSSLMode)

	var err error
	DB, err = sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	DB.SetMaxIdleConns(10)
	DB.SetMaxOpenConns(100)
	DB.SetConnMaxLifetime(time.Hour)

	if err = DB.Ping(); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	log.Println("Successfully connected to the database.")
	return nil
}

// InitDB creates the schema if it does not exist: the pgvector extension,
// the pipeline tables and the match_audio_files search function.
func InitDB() error {
	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,

		`CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY,
			username VARCHAR(64) UNIQUE NOT NULL,
			email VARCHAR(255) UNIQUE NOT NULL,
			password_hash TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS audio_files (
			id UUID PRIMARY KEY,
			user_id UUID NOT NULL,
			filename VARCHAR(512) NOT NULL,
			storage_path VARCHAR(1024) NOT NULL,
			file_size BIGINT NOT NULL DEFAULT 0,
			format VARCHAR(128),
			duration DOUBLE PRECISION,
			sample_rate INTEGER,
			channels INTEGER,
			bitrate INTEGER,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS audio_analysis (
			id UUID PRIMARY KEY,
			audio_file_id UUID NOT NULL UNIQUE REFERENCES audio_files(id),
			processing_status VARCHAR(16) NOT NULL DEFAULT 'pending'
				CHECK (processing_status IN ('pending', 'completed', 'failed')),
			tempo DOUBLE PRECISION,
			beat_count INTEGER,
			mfccs JSONB,
			chroma_vector JSONB,
			spectral_features JSONB,
			embedding vector(1536),
			metadata JSONB,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS usage_logs (
			id BIGSERIAL PRIMARY KEY,
			user_id UUID,
			action VARCHAR(64) NOT NULL,
			details JSONB,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE INDEX IF NOT EXISTS idx_audio_files_user ON audio_files (user_id, created_at DESC)`,

		// Nearest-neighbor lookup over completed analyses. The caller passes
		// a cosine *distance* threshold; similarity conversion happens upstream.
		`CREATE OR REPLACE FUNCTION match_audio_files(
			query_embedding vector(1536),
			match_threshold double precision,
			match_count integer
		)
		RETURNS TABLE (
			id uuid,
			filename varchar,
			storage_path varchar,
			duration double precision,
			similarity double precision
		)
		LANGUAGE sql STABLE
		AS $$
			SELECT f.id, f.filename, f.storage_path, f.duration,
			       a.embedding <=> query_embedding AS similarity
			FROM audio_analysis a
			JOIN audio_files f ON f.id = a.audio_file_id
			WHERE a.embedding IS NOT NULL
			  AND a.processing_status = 'completed'
			  AND a.embedding <=> query_embedding < match_threshold
			ORDER BY a.embedding <=> query_embedding
			LIMIT match_count
		$$`,
	}

	for _, stmt := range statements {
		if _, err := DB.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}

	log.Println("Database schema initialized.")
	return nil
}

// CloseDB closes the database connection pool.
func CloseDB() error {
	if DB == nil {
		return nil
	}
	return DB.Close()
}
