package primary

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// StoreImpl is the SQLite-backed transcription store.
type StoreImpl struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS transcriptions (
	id                  TEXT PRIMARY KEY,
	filename            TEXT NOT NULL,
	original_path       TEXT NOT NULL,
	output_dir          TEXT,
	engine              TEXT NOT NULL,
	model               TEXT NOT NULL,
	language            TEXT,
	initial_prompt      TEXT,
	min_speakers        INTEGER,
	max_speakers        INTEGER,
	status              TEXT NOT NULL DEFAULT 'draft',
	progress            REAL NOT NULL DEFAULT 0,
	error_message       TEXT,
	duration_seconds    REAL,
	speakers_count      INTEGER,
	language_detected   TEXT,
	processing_seconds  REAL,
	asr_seconds         REAL,
	diarization_seconds REAL,
	speaker_names       TEXT,
	created_at          TIMESTAMP NOT NULL,
	started_at          TIMESTAMP,
	completed_at        TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_transcriptions_status_created
	ON transcriptions (status, created_at);
`

// NewStore opens (or creates) the SQLite database at path and ensures
// the schema exists. WAL mode and a busy timeout cover the rare case of
// the HTTP layer and the worker writing in the same instant; there is
// no multi-process access by design.
func NewStore(path string) (*StoreImpl, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// database/sql pooling would hand out multiple connections; SQLite
	// single-writer semantics want one.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &StoreImpl{db: db}, nil
}

func (s *StoreImpl) Close() error {
	return s.db.Close()
}
