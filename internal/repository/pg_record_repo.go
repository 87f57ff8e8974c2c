package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/notifyhub/suggestion-worker/internal/domain"
)

// PgRecordRepository reads records from the records table (see migrations/).
type PgRecordRepository struct {
	pool    *pgxpool.Pool
	idField string
	timeout time.Duration
}

// NewPgRecordRepository returns a repository backed by PostgreSQL. idField is
// the key under which the row id is exposed in each record.
func NewPgRecordRepository(pool *pgxpool.Pool, idField string, timeout time.Duration) *PgRecordRepository {
	return &PgRecordRepository{pool: pool, idField: idField, timeout: timeout}
}

func (r *PgRecordRepository) BatchGet(ctx context.Context, ids []domain.RecordID) (map[domain.RecordID]domain.Record, error) {
	out := make(map[domain.RecordID]domain.Record, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	keys := make([]string, 0, len(ids))
	for _, id := range dedupe(ids) {
		keys = append(keys, string(id))
	}

	rows, err := r.pool.Query(ctx, `SELECT id, attributes FROM records WHERE id = ANY($1)`, keys)
	if err != nil {
		return nil, domain.StoreTransportError("batch get records", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id    string
			attrs []byte
		)
		if err := rows.Scan(&id, &attrs); err != nil {
			return nil, domain.StoreTransportError("batch get records", fmt.Errorf("scan row: %w", err))
		}
		rec, err := decodeAttributes(attrs)
		if err != nil {
			return nil, domain.StoreTransportError("batch get records", fmt.Errorf("record %s: %w", id, err))
		}
		if _, ok := rec[r.idField]; !ok {
			rec[r.idField] = id
		}
		out[domain.RecordID(id)] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, domain.StoreTransportError("batch get records", err)
	}
	return out, nil
}

func (r *PgRecordRepository) ScanCategories(ctx context.Context, fn func(domain.RecordID, []string) error) error {
	rows, err := r.pool.Query(ctx, `SELECT id, categories FROM records ORDER BY id`)
	if err != nil {
		return fmt.Errorf("scan records: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id         string
			categories []string
		)
		if err := rows.Scan(&id, &categories); err != nil {
			return fmt.Errorf("scan row: %w", err)
		}
		if err := fn(domain.RecordID(id), categories); err != nil {
			return err
		}
	}
	return rows.Err()
}

// decodeAttributes unmarshals a JSONB document; numbers become float64 as
// they do for DynamoDB records.
func decodeAttributes(raw []byte) (domain.Record, error) {
	rec := domain.Record{}
	if len(raw) == 0 {
		return rec, nil
	}
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode attributes: %w", err)
	}
	if rec == nil {
		rec = domain.Record{}
	}
	return rec, nil
}

var (
	_ RecordRepository = (*PgRecordRepository)(nil)
	_ CategoryScanner  = (*PgRecordRepository)(nil)
)
