// Package gallerytest provides in-memory gallery stores for tests.
package gallerytest

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"wedding-gallery/gallery"
)

// ErrInjected is a generic store failure for tests that only need "some error".
var ErrInjected = errors.New("injected store failure")

// Blob is one stored object.
type Blob struct {
	Data        []byte
	ContentType string
}

// MemBlobStore is an in-memory gallery.BlobStore. The *Err fields make the
// matching call fail.
type MemBlobStore struct {
	BaseURL string

	PutErr    error
	ListErr   error
	RemoveErr error

	mu    sync.Mutex
	blobs map[string]Blob
	puts  int
}

func NewMemBlobStore(baseURL string) *MemBlobStore {
	return &MemBlobStore{BaseURL: strings.TrimSuffix(baseURL, "/"), blobs: map[string]Blob{}}
}

func (m *MemBlobStore) Put(_ context.Context, key string, data []byte, contentType string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.puts++
	if m.PutErr != nil {
		return "", m.PutErr
	}
	m.blobs[key] = Blob{Data: append([]byte(nil), data...), ContentType: contentType}
	return key, nil
}

func (m *MemBlobStore) PublicURL(path string) string {
	return m.BaseURL + "/" + path
}

func (m *MemBlobStore) List(_ context.Context, prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	var keys []string
	for k := range m.blobs {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *MemBlobStore) Remove(_ context.Context, paths ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.RemoveErr != nil {
		return m.RemoveErr
	}
	for _, p := range paths {
		delete(m.blobs, p)
	}
	return nil
}

// Get returns the blob stored under key.
func (m *MemBlobStore) Get(key string) (Blob, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.blobs[key]
	return b, ok
}

// Len reports the number of stored blobs.
func (m *MemBlobStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.blobs)
}

// Puts reports how many Put calls were made, failed ones included.
func (m *MemBlobStore) Puts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.puts
}

// MemPhotoStore is an in-memory gallery.PhotoStore and gallery.CoupleStore.
// Every insert gets a created_at one millisecond after the previous one so
// ordering is deterministic.
type MemPhotoStore struct {
	InsertErr error
	ListErr   error
	DeleteErr error

	mu      sync.Mutex
	clock   time.Time
	photos  []gallery.Photo
	couples []gallery.CouplePhoto
}

func NewMemPhotoStore() *MemPhotoStore {
	return &MemPhotoStore{clock: time.Date(2025, 6, 14, 15, 0, 0, 0, time.UTC)}
}

func (m *MemPhotoStore) tick() time.Time {
	m.clock = m.clock.Add(time.Millisecond)
	return m.clock
}

func (m *MemPhotoStore) InsertPhoto(_ context.Context, p gallery.NewPhoto) (*gallery.Photo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.InsertErr != nil {
		return nil, m.InsertErr
	}
	photo := gallery.Photo{
		ID:          uuid.NewString(),
		GuestName:   p.GuestName,
		ImageURL:    p.ImageURL,
		StoragePath: p.StoragePath,
		CreatedAt:   m.tick(),
	}
	m.photos = append(m.photos, photo)
	return &photo, nil
}

func (m *MemPhotoStore) ListPhotos(_ context.Context, limit, offset int) ([]gallery.Photo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	sorted := append([]gallery.Photo(nil), m.photos...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].ID > sorted[j].ID
		}
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})
	if offset >= len(sorted) {
		return []gallery.Photo{}, nil
	}
	end := offset + limit
	if end > len(sorted) {
		end = len(sorted)
	}
	return sorted[offset:end], nil
}

func (m *MemPhotoStore) DeletePhoto(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	for i, p := range m.photos {
		if p.ID == id {
			m.photos = append(m.photos[:i], m.photos[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m *MemPhotoStore) ListStoragePaths(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	paths := make([]string, 0, len(m.photos))
	for _, p := range m.photos {
		paths = append(paths, p.StoragePath)
	}
	return paths, nil
}

// Photos returns a copy of all records in insertion order.
func (m *MemPhotoStore) Photos() []gallery.Photo {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]gallery.Photo(nil), m.photos...)
}

func (m *MemPhotoStore) LatestCouplePhoto(_ context.Context) (*gallery.CouplePhoto, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	if len(m.couples) == 0 {
		return nil, nil
	}
	latest := m.couples[len(m.couples)-1]
	return &latest, nil
}

func (m *MemPhotoStore) DeleteCouplePhotos(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	m.couples = nil
	return nil
}

func (m *MemPhotoStore) InsertCouplePhoto(_ context.Context, imageURL, storagePath string) (*gallery.CouplePhoto, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.InsertErr != nil {
		return nil, m.InsertErr
	}
	c := gallery.CouplePhoto{
		ID:          uuid.NewString(),
		ImageURL:    imageURL,
		StoragePath: storagePath,
		CreatedAt:   m.tick(),
	}
	m.couples = append(m.couples, c)
	return &c, nil
}

// CouplePhotos returns a copy of all couple rows.
func (m *MemPhotoStore) CouplePhotos() []gallery.CouplePhoto {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]gallery.CouplePhoto(nil), m.couples...)
}
