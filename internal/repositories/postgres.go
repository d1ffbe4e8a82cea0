package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/adreel/backend/internal/db"
	"github.com/adreel/backend/internal/models"
)

// PostgresVideoRepository provides PostgreSQL-backed persistence for video records.
type PostgresVideoRepository struct {
	pool db.Pool

	NowFunc func() time.Time
}

// NewPostgresVideoRepository constructs a video repository backed by PostgreSQL.
func NewPostgresVideoRepository(pool db.Pool) *PostgresVideoRepository {
	return &PostgresVideoRepository{pool: pool}
}

// List returns every record ordered by creation time.
func (r *PostgresVideoRepository) List(ctx context.Context) ([]models.VideoRecord, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT id, video, ad_video, ad_placement, created_at
        FROM video_records
        ORDER BY created_at, id
    `)
	if err != nil {
		return nil, fmt.Errorf("select video records: %w", err)
	}
	defer rows.Close()

	records := make([]models.VideoRecord, 0)
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate video records: %w", err)
	}

	return records, nil
}

// Get fetches a record by id.
func (r *PostgresVideoRepository) Get(ctx context.Context, id string) (models.VideoRecord, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.VideoRecord{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        SELECT id, video, ad_video, ad_placement, created_at
        FROM video_records
        WHERE id = $1
    `, id)

	record, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.VideoRecord{}, ErrNotFound
		}
		return models.VideoRecord{}, err
	}
	return record, nil
}

// Insert persists a new record.
func (r *PostgresVideoRepository) Insert(ctx context.Context, record models.VideoRecord) (models.VideoRecord, error) {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = r.now()
	}

	video, err := json.Marshal(record.Video)
	if err != nil {
		return models.VideoRecord{}, fmt.Errorf("encode video asset: %w", err)
	}
	adVideo, err := json.Marshal(record.AdVideo)
	if err != nil {
		return models.VideoRecord{}, fmt.Errorf("encode ad asset: %w", err)
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.VideoRecord{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO video_records (id, video, ad_video, ad_placement, created_at)
        VALUES ($1, $2::jsonb, $3::jsonb, $4, $5)
    `, record.ID, string(video), string(adVideo), record.AdPlacement, record.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return models.VideoRecord{}, ErrConflict
		}
		return models.VideoRecord{}, fmt.Errorf("insert video record: %w", err)
	}

	return record, nil
}

// Delete removes a record by id.
func (r *PostgresVideoRepository) Delete(ctx context.Context, id string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `DELETE FROM video_records WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete video record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresVideoRepository) now() time.Time {
	if r.NowFunc != nil {
		return r.NowFunc()
	}
	return time.Now().UTC()
}

func scanRecord(row pgx.Row) (models.VideoRecord, error) {
	var (
		record  models.VideoRecord
		video   []byte
		adVideo []byte
	)
	if err := row.Scan(&record.ID, &video, &adVideo, &record.AdPlacement, &record.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.VideoRecord{}, err
		}
		return models.VideoRecord{}, fmt.Errorf("scan video record: %w", err)
	}
	if err := json.Unmarshal(video, &record.Video); err != nil {
		return models.VideoRecord{}, fmt.Errorf("decode video asset %s: %w", record.ID, err)
	}
	if err := json.Unmarshal(adVideo, &record.AdVideo); err != nil {
		return models.VideoRecord{}, fmt.Errorf("decode ad asset %s: %w", record.ID, err)
	}
	return record, nil
}

var _ VideoRepository = (*PostgresVideoRepository)(nil)
