package metastore

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"wedding-gallery/gallery"
)

//go:embed schema.sql
var schemaSQL string

// Connect opens a PostgreSQL connection pool and pings it.
func Connect(ctx context.Context, connString string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse connection string: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}
	return pool, nil
}

// Postgres stores gallery and couple photo records. It implements
// gallery.PhotoStore and gallery.CoupleStore.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Migrate creates the tables if they do not exist yet.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (p *Postgres) InsertPhoto(ctx context.Context, np gallery.NewPhoto) (*gallery.Photo, error) {
	photo := gallery.Photo{
		ID:          uuid.NewString(),
		GuestName:   np.GuestName,
		ImageURL:    np.ImageURL,
		StoragePath: np.StoragePath,
	}
	query := `INSERT INTO photos (id, guest_name, image_url, storage_path) VALUES ($1, $2, $3, $4) RETURNING created_at`
	if err := p.pool.QueryRow(ctx, query, photo.ID, photo.GuestName, photo.ImageURL, photo.StoragePath).Scan(&photo.CreatedAt); err != nil {
		return nil, fmt.Errorf("insert photo: %w", err)
	}
	return &photo, nil
}

func (p *Postgres) ListPhotos(ctx context.Context, limit, offset int) ([]gallery.Photo, error) {
	query := `SELECT id::text, guest_name, image_url, storage_path, created_at
		FROM photos
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2`
	rows, err := p.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list photos: %w", err)
	}
	photos, err := pgx.CollectRows(rows, pgx.RowToStructByPos[gallery.Photo])
	if err != nil {
		return nil, fmt.Errorf("scan photos: %w", err)
	}
	return photos, nil
}

func (p *Postgres) DeletePhoto(ctx context.Context, id string) error {
	// Ids that are not UUIDs cannot match any row.
	if _, err := uuid.Parse(id); err != nil {
		return nil
	}
	if _, err := p.pool.Exec(ctx, `DELETE FROM photos WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete photo %s: %w", id, err)
	}
	return nil
}

func (p *Postgres) ListStoragePaths(ctx context.Context) ([]string, error) {
	rows, err := p.pool.Query(ctx, `SELECT storage_path FROM photos`)
	if err != nil {
		return nil, fmt.Errorf("list storage paths: %w", err)
	}
	paths, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan storage paths: %w", err)
	}
	return paths, nil
}

func (p *Postgres) LatestCouplePhoto(ctx context.Context) (*gallery.CouplePhoto, error) {
	var c gallery.CouplePhoto
	query := `SELECT id::text, image_url, storage_path, created_at FROM couple_photo ORDER BY created_at DESC LIMIT 1`
	err := p.pool.QueryRow(ctx, query).Scan(&c.ID, &c.ImageURL, &c.StoragePath, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest couple photo: %w", err)
	}
	return &c, nil
}

func (p *Postgres) DeleteCouplePhotos(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, `DELETE FROM couple_photo`); err != nil {
		return fmt.Errorf("delete couple photos: %w", err)
	}
	return nil
}

func (p *Postgres) InsertCouplePhoto(ctx context.Context, imageURL, storagePath string) (*gallery.CouplePhoto, error) {
	c := gallery.CouplePhoto{ID: uuid.NewString(), ImageURL: imageURL, StoragePath: storagePath}
	query := `INSERT INTO couple_photo (id, image_url, storage_path) VALUES ($1, $2, $3) RETURNING created_at`
	if err := p.pool.QueryRow(ctx, query, c.ID, c.ImageURL, c.StoragePath).Scan(&c.CreatedAt); err != nil {
		return nil, fmt.Errorf("insert couple photo: %w", err)
	}
	return &c, nil
}
