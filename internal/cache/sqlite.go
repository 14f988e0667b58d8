package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/crm-enrich/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS analysis_cache (
	id                  TEXT PRIMARY KEY,
	analysis            TEXT NOT NULL,
	marketing_materials TEXT,
	similar_customers   TEXT,
	meeting_notes       TEXT,
	company_name        TEXT,
	fit_score           INTEGER,
	created_at          DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at          DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_analysis_cache_company_name ON analysis_cache(company_name);
CREATE INDEX IF NOT EXISTS idx_analysis_cache_updated_at ON analysis_cache(updated_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*model.CacheRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, analysis, marketing_materials, similar_customers, meeting_notes, company_name, fit_score, created_at, updated_at
		 FROM analysis_cache WHERE id = ?`,
		id,
	)
	return scanCacheRecord(row)
}

func (s *SQLiteStore) Put(ctx context.Context, rec *model.CacheRecord) error {
	analysisJSON, materialsJSON, customersJSON, meetingsJSON, err := marshalCacheRecord(rec)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	// Whole-record overwrite; only created_at survives an update.
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO analysis_cache (id, analysis, marketing_materials, similar_customers, meeting_notes, company_name, fit_score, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			analysis = excluded.analysis,
			marketing_materials = excluded.marketing_materials,
			similar_customers = excluded.similar_customers,
			meeting_notes = excluded.meeting_notes,
			company_name = excluded.company_name,
			fit_score = excluded.fit_score,
			updated_at = excluded.updated_at`,
		rec.ID, analysisJSON, materialsJSON, customersJSON, meetingsJSON, rec.CompanyName, rec.FitScore, now, now,
	)
	return eris.Wrapf(err, "sqlite: put cache record %s", rec.ID)
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM analysis_cache WHERE id = ?`, id)
	return eris.Wrapf(err, "sqlite: delete cache record %s", id)
}

// helpers

func marshalCacheRecord(rec *model.CacheRecord) (analysis, materials, customers, meetings string, err error) {
	a, err := json.Marshal(rec.Analysis)
	if err != nil {
		return "", "", "", "", eris.Wrap(err, "cache: marshal analysis")
	}
	m, err := json.Marshal(rec.MarketingMaterials)
	if err != nil {
		return "", "", "", "", eris.Wrap(err, "cache: marshal marketing materials")
	}
	c, err := json.Marshal(rec.SimilarCustomers)
	if err != nil {
		return "", "", "", "", eris.Wrap(err, "cache: marshal similar customers")
	}
	n, err := json.Marshal(rec.MeetingNotes)
	if err != nil {
		return "", "", "", "", eris.Wrap(err, "cache: marshal meeting notes")
	}
	return string(a), string(m), string(c), string(n), nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanCacheRecord(row scannable) (*model.CacheRecord, error) {
	var rec model.CacheRecord
	var analysisJSON string
	var materialsJSON, customersJSON, meetingsJSON, companyName sql.NullString
	var fitScore sql.NullInt64

	err := row.Scan(&rec.ID, &analysisJSON, &materialsJSON, &customersJSON, &meetingsJSON, &companyName, &fitScore, &rec.CreatedAt, &rec.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "cache: scan record")
	}

	if err := json.Unmarshal([]byte(analysisJSON), &rec.Analysis); err != nil {
		return nil, eris.Wrap(err, "cache: unmarshal analysis")
	}
	// Rows written by older builds may lack the newer columns; treat them as
	// empty rather than failing the read.
	if materialsJSON.Valid && materialsJSON.String != "" {
		if err := json.Unmarshal([]byte(materialsJSON.String), &rec.MarketingMaterials); err != nil {
			return nil, eris.Wrap(err, "cache: unmarshal marketing materials")
		}
	}
	if customersJSON.Valid && customersJSON.String != "" {
		if err := json.Unmarshal([]byte(customersJSON.String), &rec.SimilarCustomers); err != nil {
			return nil, eris.Wrap(err, "cache: unmarshal similar customers")
		}
	}
	if meetingsJSON.Valid && meetingsJSON.String != "" {
		if err := json.Unmarshal([]byte(meetingsJSON.String), &rec.MeetingNotes); err != nil {
			return nil, eris.Wrap(err, "cache: unmarshal meeting notes")
		}
	}
	rec.CompanyName = companyName.String
	rec.FitScore = int(fitScore.Int64)
	return &rec, nil
}
