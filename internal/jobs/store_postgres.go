package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yourusername/contract-forge/internal/extract"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS contracts (
	id               UUID PRIMARY KEY,
	filename         TEXT        NOT NULL,
	status           TEXT        NOT NULL,
	progress         INTEGER     NOT NULL DEFAULT 0,
	extracted_data   JSONB,
	confidence_score INTEGER,
	upload_time      TIMESTAMPTZ NOT NULL,
	updated_at       TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS contracts_status_updated_at_idx ON contracts (status, updated_at);
`

const contractColumns = `id::text, filename, status, progress, extracted_data, confidence_score, upload_time, updated_at`

// PostgresStore はジョブを PostgreSQL の contracts テーブルに保存します。
type PostgresStore struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewPostgresStore はコネクションプールを作成し、テーブルがなければ作成します。
func NewPostgresStore(ctx context.Context, url string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse postgres url: %w", err)
	}
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, unavailable("connect postgres", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, unavailable("ping postgres", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, unavailable("bootstrap postgres schema", err)
	}
	return &PostgresStore{pool: pool, now: time.Now}, nil
}

// Create は pending のジョブを作成します。
func (s *PostgresStore) Create(ctx context.Context, filename string) (string, error) {
	id := uuid.NewString()
	now := s.now().UTC()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO contracts (id, filename, status, progress, upload_time, updated_at)
		 VALUES ($1, $2, $3, 0, $4, $4)`,
		id, filename, string(StatusPending), now,
	)
	if err != nil {
		return "", unavailable("insert contract", err)
	}
	return id, nil
}

// UpdateProgress は status と progress のみを条件付きで更新します。
func (s *PostgresStore) UpdateProgress(ctx context.Context, id string, status Status, progress int) error {
	progress, err := normalizeUpdate(status, progress)
	if err != nil {
		return err
	}
	id, err = canonicalUUID(id)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE contracts SET status = $2, progress = $3, updated_at = $4
		 WHERE id = $1 AND status = ANY($5) AND progress <= $3`,
		id, string(status), progress, s.now().UTC(), statusStrings(allowedFrom(status)),
	)
	if err != nil {
		return unavailable("update contract progress", err)
	}
	if tag.RowsAffected() == 0 {
		return s.missOrConflict(ctx, id)
	}
	return nil
}

// Complete は完了状態と抽出結果を 1 つの UPDATE で書き込みます。
func (s *PostgresStore) Complete(ctx context.Context, id string, data *extract.ExtractedData, score int) error {
	if data == nil {
		return ErrInvalidInput
	}
	id, err := canonicalUUID(id)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE contracts
		 SET status = $2, progress = 100, extracted_data = $3, confidence_score = $4, updated_at = $5
		 WHERE id = $1 AND status = ANY($6)`,
		id, string(StatusCompleted), string(payload), score, s.now().UTC(), statusStrings(allowedFrom(StatusCompleted)),
	)
	if err != nil {
		return unavailable("complete contract", err)
	}
	if tag.RowsAffected() == 0 {
		return s.missOrConflict(ctx, id)
	}
	return nil
}

// Get はジョブ全体を取得します。
func (s *PostgresStore) Get(ctx context.Context, id string) (*Record, error) {
	id, err := canonicalUUID(id)
	if err != nil {
		return nil, err
	}
	row := s.pool.QueryRow(ctx, `SELECT `+contractColumns+` FROM contracts WHERE id = $1`, id)
	record, err := scanContract(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, unavailable("select contract", err)
	}
	return record, nil
}

// GetStatus は status と progress だけを取得します。
func (s *PostgresStore) GetStatus(ctx context.Context, id string) (*StatusView, error) {
	id, err := canonicalUUID(id)
	if err != nil {
		return nil, err
	}
	view := &StatusView{ID: id}
	var status string
	err = s.pool.QueryRow(ctx, `SELECT status, progress FROM contracts WHERE id = $1`, id).Scan(&status, &view.Progress)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, unavailable("select contract status", err)
	}
	view.Status = Status(status)
	return view, nil
}

// ListStale は updated_at が before より古い未完了ジョブを古い順に返します。
func (s *PostgresStore) ListStale(ctx context.Context, before time.Time, limit int) ([]*Record, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+contractColumns+` FROM contracts
		 WHERE status <> $1 AND updated_at < $2
		 ORDER BY updated_at ASC LIMIT $3`,
		string(StatusCompleted), before.UTC(), limit,
	)
	if err != nil {
		return nil, unavailable("select stale contracts", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		record, err := scanContract(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate stale contracts", err)
	}
	return records, nil
}

// Close はコネクションプールを閉じます。
func (s *PostgresStore) Close(ctx context.Context) error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) missOrConflict(ctx context.Context, id string) error {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM contracts WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return unavailable("check contract", err)
	}
	if !exists {
		return ErrNotFound
	}
	return ErrInvalidTransition
}

func scanContract(row pgx.Row) (*Record, error) {
	var (
		record Record
		status string
		data   []byte
	)
	if err := row.Scan(
		&record.ID,
		&record.Filename,
		&status,
		&record.Progress,
		&data,
		&record.ConfidenceScore,
		&record.CreatedAt,
		&record.UpdatedAt,
	); err != nil {
		return nil, err
	}
	record.Status = Status(status)
	if len(data) > 0 && string(data) != "null" {
		var extracted extract.ExtractedData
		if err := json.Unmarshal(data, &extracted); err != nil {
			return nil, fmt.Errorf("decode extracted_data for %s: %w", record.ID, err)
		}
		record.ExtractedData = &extracted
	}
	record.CreatedAt = record.CreatedAt.UTC()
	record.UpdatedAt = record.UpdatedAt.UTC()
	return &record, nil
}

// canonicalUUID は ID を PostgreSQL の uuid 型が受け付ける標準形式に揃えます。
// uuid.Parse は urn:uuid: 形式なども受け付けるため、そのままクエリに渡さないこと。
func canonicalUUID(id string) (string, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return "", ErrInvalidID
	}
	return parsed.String(), nil
}

func statusStrings(statuses []Status) []string {
	out := make([]string, len(statuses))
	for i, st := range statuses {
		out[i] = string(st)
	}
	return out
}
