// Package gallery implements the guest photo pipeline on top of two
// independent stores: an object store holding the image blobs and a table
// store holding one metadata record per blob.
package gallery

import (
	"context"
	"time"
)

// Photo is the metadata record for one guest-submitted image.
type Photo struct {
	ID          string    `json:"id"`
	GuestName   string    `json:"guest_name"`
	ImageURL    string    `json:"image_url"`
	StoragePath string    `json:"storage_path"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewPhoto holds the caller-supplied fields of a record; the store assigns
// ID and CreatedAt.
type NewPhoto struct {
	GuestName   string
	ImageURL    string
	StoragePath string
}

// CouplePhoto is the single landing-page photo row.
type CouplePhoto struct {
	ID          string    `json:"id"`
	ImageURL    string    `json:"image_url"`
	StoragePath string    `json:"storage_path"`
	CreatedAt   time.Time `json:"created_at"`
}

// Image is an uploaded image payload as received from a client.
type Image struct {
	Filename    string
	ContentType string
	Data        []byte
}

// BlobStore is the object storage collaborator.
type BlobStore interface {
	// Put writes data under key and returns the stored path.
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	// PublicURL resolves the publicly reachable URL of a stored path.
	PublicURL(path string) string
	// List returns all keys starting with prefix.
	List(ctx context.Context, prefix string) ([]string, error)
	// Remove deletes the given paths.
	Remove(ctx context.Context, paths ...string) error
}

// PhotoStore is the table store for gallery records.
type PhotoStore interface {
	InsertPhoto(ctx context.Context, p NewPhoto) (*Photo, error)
	// ListPhotos returns records newest first.
	ListPhotos(ctx context.Context, limit, offset int) ([]Photo, error)
	// DeletePhoto removes the record with id. Deleting a missing id is not an error.
	DeletePhoto(ctx context.Context, id string) error
	ListStoragePaths(ctx context.Context) ([]string, error)
}

// CoupleStore is the table store for the couple photo slot.
type CoupleStore interface {
	// LatestCouplePhoto returns nil, nil when no row exists.
	LatestCouplePhoto(ctx context.Context) (*CouplePhoto, error)
	DeleteCouplePhotos(ctx context.Context) error
	InsertCouplePhoto(ctx context.Context, imageURL, storagePath string) (*CouplePhoto, error)
}
