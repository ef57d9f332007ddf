package repositories

import (
	"context"
	"errors"
	"unicode/utf8"

	"videoproc/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrVideoNotFound = errors.New("video not found")

// ErrVideoExists is returned by MarkProcessing when the video is already
// processing or processed.
var ErrVideoExists = errors.New("video already exists")

const maxErrorText = 2000

// VideoStore tracks per-video processing status. A video whose last attempt
// failed counts as new again.
type VideoStore interface {
	MarkProcessing(ctx context.Context, v *models.Video) error
	MarkProcessed(ctx context.Context, id, processedObject, publicURL string) error
	MarkFailed(ctx context.Context, id, reason string) error
	Get(ctx context.Context, id string) (*models.Video, error)
	Ping(ctx context.Context) error
}

const schema = `
CREATE TABLE IF NOT EXISTS videos (
	id               TEXT PRIMARY KEY,
	raw_object       TEXT NOT NULL,
	processed_object TEXT NOT NULL DEFAULT '',
	status           TEXT NOT NULL,
	job_id           TEXT NOT NULL DEFAULT '',
	public_url       TEXT NOT NULL DEFAULT '',
	error_text       TEXT NOT NULL DEFAULT '',
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
)`

type VideoRepository struct {
	db *pgxpool.Pool
}

func NewVideoRepository(db *pgxpool.Pool) *VideoRepository {
	return &VideoRepository{db: db}
}

// EnsureSchema creates the videos table when missing.
func (r *VideoRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.db.Exec(ctx, schema)
	return err
}

func (r *VideoRepository) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

// MarkProcessing inserts the record, or revives a failed one, in a single
// statement so two callers cannot both start the same video.
func (r *VideoRepository) MarkProcessing(ctx context.Context, v *models.Video) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO videos (id, raw_object, processed_object, status, job_id)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (id) DO UPDATE
		SET raw_object=EXCLUDED.raw_object,
		    processed_object=EXCLUDED.processed_object,
		    status=EXCLUDED.status,
		    job_id=EXCLUDED.job_id,
		    public_url='',
		    error_text='',
		    updated_at=now()
		WHERE videos.status=$6
		RETURNING created_at, updated_at
	`, v.ID, v.RawObject, v.ProcessedObject, string(models.VideoProcessing), v.JobID, string(models.VideoFailed)).
		Scan(&v.CreatedAt, &v.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrVideoExists
	}
	if err != nil {
		return err
	}
	v.Status = models.VideoProcessing
	return nil
}

func (r *VideoRepository) MarkProcessed(ctx context.Context, id, processedObject, publicURL string) error {
	cmd, err := r.db.Exec(ctx, `
		UPDATE videos
		SET status=$2, processed_object=$3, public_url=$4, error_text='', updated_at=now()
		WHERE id=$1
	`, id, string(models.VideoProcessed), processedObject, publicURL)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrVideoNotFound
	}
	return nil
}

func (r *VideoRepository) MarkFailed(ctx context.Context, id, reason string) error {
	cmd, err := r.db.Exec(ctx, `
		UPDATE videos
		SET status=$2, error_text=$3, updated_at=now()
		WHERE id=$1
	`, id, string(models.VideoFailed), truncate(reason, maxErrorText))
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrVideoNotFound
	}
	return nil
}

func (r *VideoRepository) Get(ctx context.Context, id string) (*models.Video, error) {
	var v models.Video
	var status string
	err := r.db.QueryRow(ctx, `
		SELECT id, raw_object, processed_object, status, job_id, public_url, error_text, created_at, updated_at
		FROM videos
		WHERE id=$1
	`, id).Scan(
		&v.ID,
		&v.RawObject,
		&v.ProcessedObject,
		&status,
		&v.JobID,
		&v.PublicURL,
		&v.ErrorText,
		&v.CreatedAt,
		&v.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrVideoNotFound
	}
	if err != nil {
		return nil, err
	}
	v.Status = models.VideoStatus(status)
	return &v, nil
}

// truncate caps s at n bytes without splitting a UTF-8 sequence; Postgres
// rejects invalid text.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
