package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/crm-enrich/internal/model"
)

// Pool is the subset of pgxpool.Pool the store needs. pgxmock satisfies it
// in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS analysis_cache (
	id                  TEXT PRIMARY KEY,
	analysis            JSONB NOT NULL,
	marketing_materials JSONB,
	similar_customers   JSONB,
	meeting_notes       JSONB,
	company_name        TEXT,
	fit_score           INTEGER,
	created_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at          TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_analysis_cache_company_name ON analysis_cache(company_name);
CREATE INDEX IF NOT EXISTS idx_analysis_cache_updated_at ON analysis_cache(updated_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*model.CacheRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, analysis, marketing_materials, similar_customers, meeting_notes, company_name, fit_score, created_at, updated_at
		 FROM analysis_cache WHERE id = $1`,
		id,
	)

	var rec model.CacheRecord
	var analysisJSON []byte
	var materialsJSON, customersJSON, meetingsJSON []byte
	var companyName *string
	var fitScore *int

	err := row.Scan(&rec.ID, &analysisJSON, &materialsJSON, &customersJSON, &meetingsJSON, &companyName, &fitScore, &rec.CreatedAt, &rec.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get cache record")
	}

	if err := json.Unmarshal(analysisJSON, &rec.Analysis); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal analysis")
	}
	if len(materialsJSON) > 0 {
		if err := json.Unmarshal(materialsJSON, &rec.MarketingMaterials); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal marketing materials")
		}
	}
	if len(customersJSON) > 0 {
		if err := json.Unmarshal(customersJSON, &rec.SimilarCustomers); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal similar customers")
		}
	}
	if len(meetingsJSON) > 0 {
		if err := json.Unmarshal(meetingsJSON, &rec.MeetingNotes); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal meeting notes")
		}
	}
	if companyName != nil {
		rec.CompanyName = *companyName
	}
	if fitScore != nil {
		rec.FitScore = *fitScore
	}
	return &rec, nil
}

func (s *PostgresStore) Put(ctx context.Context, rec *model.CacheRecord) error {
	analysisJSON, materialsJSON, customersJSON, meetingsJSON, err := marshalCacheRecord(rec)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	_, err = s.pool.Exec(ctx,
		`INSERT INTO analysis_cache (id, analysis, marketing_materials, similar_customers, meeting_notes, company_name, fit_score, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (id) DO UPDATE SET
			analysis = EXCLUDED.analysis,
			marketing_materials = EXCLUDED.marketing_materials,
			similar_customers = EXCLUDED.similar_customers,
			meeting_notes = EXCLUDED.meeting_notes,
			company_name = EXCLUDED.company_name,
			fit_score = EXCLUDED.fit_score,
			updated_at = EXCLUDED.updated_at`,
		rec.ID, analysisJSON, materialsJSON, customersJSON, meetingsJSON, rec.CompanyName, rec.FitScore, now, now,
	)
	return eris.Wrapf(err, "postgres: put cache record %s", rec.ID)
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM analysis_cache WHERE id = $1`, id)
	return eris.Wrapf(err, "postgres: delete cache record %s", id)
}
