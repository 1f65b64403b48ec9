package metastore

import (
	"context"
	"os"
	"testing"

	"wedding-gallery/gallery"
)

// newTestPostgres connects to TEST_DATABASE_URL and empties both tables.
// Tests are skipped when no database is configured.
func newTestPostgres(t *testing.T) *Postgres {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := Connect(ctx, url)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)

	p := NewPostgres(pool)
	if err := p.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if _, err := pool.Exec(ctx, `TRUNCATE photos, couple_photo`); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	return p
}

func TestPostgres_PhotoLifecycle(t *testing.T) {
	p := newTestPostgres(t)
	ctx := context.Background()

	var inserted []*gallery.Photo
	for _, name := range []string{"Ann", "Bob", "Cat"} {
		photo, err := p.InsertPhoto(ctx, gallery.NewPhoto{
			GuestName:   name,
			ImageURL:    "https://cdn.example.test/" + name + ".jpg",
			StoragePath: name + ".jpg",
		})
		if err != nil {
			t.Fatalf("insert %s: %v", name, err)
		}
		if photo.ID == "" || photo.CreatedAt.IsZero() {
			t.Errorf("insert %s: got id %q created_at %v", name, photo.ID, photo.CreatedAt)
		}
		inserted = append(inserted, photo)
	}

	page, err := p.ListPhotos(ctx, 2, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page) != 2 || page[0].GuestName != "Cat" {
		t.Errorf("got first page %v, want Cat first and 2 items", page)
	}
	rest, err := p.ListPhotos(ctx, 2, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rest) != 1 || rest[0].GuestName != "Ann" {
		t.Errorf("got second page %v, want [Ann]", rest)
	}
	past, err := p.ListPhotos(ctx, 20, 10)
	if err != nil || len(past) != 0 {
		t.Errorf("offset past end: got %v, %v", past, err)
	}

	if err := p.DeletePhoto(ctx, inserted[1].ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := p.DeletePhoto(ctx, inserted[1].ID); err != nil {
		t.Errorf("second delete: %v", err)
	}
	if err := p.DeletePhoto(ctx, "not-a-uuid"); err != nil {
		t.Errorf("delete non-uuid id: %v", err)
	}

	paths, err := p.ListStoragePaths(ctx)
	if err != nil {
		t.Fatalf("storage paths: %v", err)
	}
	if len(paths) != 2 {
		t.Errorf("got %d paths, want 2: %v", len(paths), paths)
	}
}

func TestPostgres_CouplePhotoSlot(t *testing.T) {
	p := newTestPostgres(t)
	ctx := context.Background()

	none, err := p.LatestCouplePhoto(ctx)
	if err != nil || none != nil {
		t.Fatalf("empty table: got %v, %v; want nil, nil", none, err)
	}

	if _, err := p.InsertCouplePhoto(ctx, "https://cdn.example.test/couple-1.jpg", "couple-1.jpg"); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := p.DeleteCouplePhotos(ctx); err != nil {
		t.Fatalf("delete all: %v", err)
	}
	second, err := p.InsertCouplePhoto(ctx, "https://cdn.example.test/couple-2.jpg", "couple-2.jpg")
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	latest, err := p.LatestCouplePhoto(ctx)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest == nil || latest.ID != second.ID {
		t.Errorf("got %v, want %s", latest, second.ID)
	}
}
