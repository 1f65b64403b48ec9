package gallery

import (
	"context"
	"fmt"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100

	// CouplePrefix marks couple photo blobs in the shared bucket.
	CouplePrefix = "couple-"

	defaultExt = "jpg"
)

// Service runs ingestion, pagination and deletion against the two stores.
// It holds no mutable state of its own; every call is independent.
type Service struct {
	blobs    BlobStore
	photos   PhotoStore
	couples  CoupleStore
	log      *zap.SugaredLogger
	now      func() time.Time
	suffix   func() string
	onOrphan func(stage string)
}

type Option func(*Service)

func WithLogger(l *zap.SugaredLogger) Option {
	return func(s *Service) { s.log = l }
}

// WithClock overrides the time source used for storage keys.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithOrphanHook registers a callback invoked whenever a blob is left
// without a referencing record. stage is "ingest", "delete" or "couple".
func WithOrphanHook(fn func(stage string)) Option {
	return func(s *Service) { s.onOrphan = fn }
}

func NewService(blobs BlobStore, photos PhotoStore, couples CoupleStore, opts ...Option) *Service {
	s := &Service{
		blobs:    blobs,
		photos:   photos,
		couples:  couples,
		log:      zap.NewNop().Sugar(),
		now:      time.Now,
		suffix:   randomSuffix,
		onOrphan: func(string) {},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ingest stores one guest photo: blob first, then the record that points at it.
// If the record insert fails the blob stays behind as a tolerated orphan.
func (s *Service) Ingest(ctx context.Context, guestName string, img *Image) (*Photo, error) {
	if img == nil {
		return nil, ErrMissingField
	}
	name := strings.TrimSpace(guestName)
	if name == "" {
		return nil, ErrEmptyName
	}

	key := fmt.Sprintf("%d-%s.%s", s.now().UnixMilli(), s.suffix(), fileExt(img.Filename))
	stored, err := s.blobs.Put(ctx, key, img.Data, contentType(img))
	if err != nil {
		return nil, &OpError{Kind: ErrUpload, Err: err}
	}
	if stored == "" {
		stored = key
	}

	photo, err := s.photos.InsertPhoto(ctx, NewPhoto{
		GuestName:   name,
		ImageURL:    s.blobs.PublicURL(stored),
		StoragePath: stored,
	})
	if err != nil {
		s.log.Warnw("orphaned blob after failed insert", "storage_path", stored, "error", err)
		s.onOrphan("ingest")
		return nil, &OpError{Kind: ErrPersist, Err: err}
	}
	s.log.Infow("photo ingested", "id", photo.ID, "storage_path", stored, "bytes", len(img.Data))
	return photo, nil
}

// List returns at most limit records, newest first, skipping offset records.
// An offset past the end yields an empty, non-nil slice.
func (s *Service) List(ctx context.Context, limit, offset int) ([]Photo, error) {
	if limit > MaxPageSize {
		return nil, fmt.Errorf("%w: limit cannot exceed %d", ErrInvalidParameter, MaxPageSize)
	}
	if limit < 0 || offset < 0 {
		return nil, fmt.Errorf("%w: limit and offset must be non-negative", ErrInvalidParameter)
	}
	if limit == 0 {
		return []Photo{}, nil
	}
	photos, err := s.photos.ListPhotos(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	if photos == nil {
		photos = []Photo{}
	}
	if len(photos) > limit {
		photos = photos[:limit]
	}
	return photos, nil
}

// Delete removes the record and then its blob. A failed blob removal is
// logged and swallowed: the photo is already gone from the gallery.
func (s *Service) Delete(ctx context.Context, id, storagePath string) error {
	if id == "" || storagePath == "" {
		return ErrMissingField
	}
	if err := s.photos.DeletePhoto(ctx, id); err != nil {
		return &OpError{Kind: ErrDelete, Err: err}
	}
	if err := s.blobs.Remove(ctx, storagePath); err != nil {
		s.log.Warnw("orphaned blob after record delete", "id", id, "storage_path", storagePath, "error", err)
		s.onOrphan("delete")
		return nil
	}
	s.log.Infow("photo deleted", "id", id, "storage_path", storagePath)
	return nil
}

// CouplePhoto returns the current couple photo, or nil if none was set.
func (s *Service) CouplePhoto(ctx context.Context) (*CouplePhoto, error) {
	return s.couples.LatestCouplePhoto(ctx)
}

// SetCouplePhoto replaces the couple photo slot. Cleanup of previous blobs
// and rows is best effort; only the new upload and insert can fail the call.
func (s *Service) SetCouplePhoto(ctx context.Context, img *Image) (*CouplePhoto, error) {
	if img == nil {
		return nil, ErrMissingField
	}

	if old, err := s.blobs.List(ctx, CouplePrefix); err != nil {
		s.log.Warnw("list previous couple blobs", "error", err)
	} else if len(old) > 0 {
		if err := s.blobs.Remove(ctx, old...); err != nil {
			s.log.Warnw("remove previous couple blobs", "paths", old, "error", err)
		}
	}

	key := fmt.Sprintf("%s%d.%s", CouplePrefix, s.now().UnixMilli(), fileExt(img.Filename))
	stored, err := s.blobs.Put(ctx, key, img.Data, contentType(img))
	if err != nil {
		return nil, &OpError{Kind: ErrUpload, Err: err}
	}
	if stored == "" {
		stored = key
	}

	if err := s.couples.DeleteCouplePhotos(ctx); err != nil {
		s.log.Warnw("delete previous couple rows", "error", err)
	}

	photo, err := s.couples.InsertCouplePhoto(ctx, s.blobs.PublicURL(stored), stored)
	if err != nil {
		s.log.Warnw("orphaned couple blob after failed insert", "storage_path", stored, "error", err)
		s.onOrphan("couple")
		return nil, &OpError{Kind: ErrPersist, Err: err}
	}
	return photo, nil
}

// fileExt returns the lower-cased extension of name without the dot, or
// "jpg" when name has none or it is not a plain alphanumeric token.
func fileExt(name string) string {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(name), "."))
	if ext == "" || len(ext) > 8 {
		return defaultExt
	}
	for _, r := range ext {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return defaultExt
		}
	}
	return ext
}

func contentType(img *Image) string {
	if img.ContentType != "" {
		return img.ContentType
	}
	return http.DetectContentType(img.Data)
}

func randomSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}
