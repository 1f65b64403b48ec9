package photoclient

import (
	"context"
	"errors"
	"sync"

	"wedding-gallery/gallery"
)

const PageSize = 20

// ErrNotLoaded is returned by Delete for ids the viewer has not loaded.
var ErrNotLoaded = errors.New("photo not loaded")

type galleryAPI interface {
	ListPhotos(ctx context.Context, limit, offset int) ([]gallery.Photo, error)
	DeletePhoto(ctx context.Context, id, storagePath string) error
}

// Viewer holds the browsing state of one gallery session: the photos loaded
// so far, whether more may exist, and which photo (if any) is open.
//
// A full page means "maybe more", so a gallery whose size is an exact
// multiple of PageSize costs one extra empty fetch at the end.
type Viewer struct {
	api      galleryAPI
	pageSize int

	mu       sync.Mutex
	photos   []gallery.Photo
	hasMore  bool
	selected int

	// gen changes on every LoadInitial. A load only applies its page, and
	// only clears loading, while gen still matches the value it started with.
	gen     uint64
	loading bool
}

func NewViewer(api galleryAPI) *Viewer {
	return &Viewer{api: api, pageSize: PageSize, hasMore: true, selected: -1}
}

// LoadInitial fetches the first page and replaces whatever was loaded. A
// LoadMore still in flight is discarded when it returns.
func (v *Viewer) LoadInitial(ctx context.Context) error {
	v.mu.Lock()
	v.gen++
	gen := v.gen
	v.loading = true
	v.mu.Unlock()

	page, err := v.api.ListPhotos(ctx, v.pageSize, 0)

	v.mu.Lock()
	defer v.mu.Unlock()
	if gen != v.gen {
		return err
	}
	v.loading = false
	if err != nil {
		return err
	}
	v.photos = append([]gallery.Photo(nil), page...)
	v.hasMore = len(page) == v.pageSize
	v.selected = -1
	return nil
}

// LoadMore appends the next page. It reports false without fetching when a
// load is already running or the last page has been seen, and false with
// the page dropped when a LoadInitial replaced the list meanwhile.
func (v *Viewer) LoadMore(ctx context.Context) (bool, error) {
	v.mu.Lock()
	if v.loading || !v.hasMore {
		v.mu.Unlock()
		return false, nil
	}
	v.loading = true
	gen := v.gen
	offset := len(v.photos)
	v.mu.Unlock()

	page, err := v.api.ListPhotos(ctx, v.pageSize, offset)

	v.mu.Lock()
	defer v.mu.Unlock()
	if gen != v.gen {
		return false, nil
	}
	v.loading = false
	if err != nil {
		return false, err
	}
	v.photos = append(v.photos, page...)
	v.hasMore = len(page) == v.pageSize
	return true, nil
}

// Photos returns a copy of the loaded photos in display order.
func (v *Viewer) Photos() []gallery.Photo {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]gallery.Photo(nil), v.photos...)
}

func (v *Viewer) HasMore() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.hasMore
}

func (v *Viewer) Loading() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.loading
}

// Selected returns the open photo index, or -1 when the lightbox is closed.
func (v *Viewer) Selected() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.selected
}

// Current returns the open photo.
func (v *Viewer) Current() (gallery.Photo, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.selected < 0 || v.selected >= len(v.photos) {
		return gallery.Photo{}, false
	}
	return v.photos[v.selected], true
}

// Select opens photo i. Out-of-range indexes are ignored.
func (v *Viewer) Select(i int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if i >= 0 && i < len(v.photos) {
		v.selected = i
	}
}

func (v *Viewer) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.selected = -1
}

// Next moves to the following photo; it stops at the last one.
func (v *Viewer) Next() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.selected >= 0 && v.selected < len(v.photos)-1 {
		v.selected++
	}
}

// Previous moves to the preceding photo; it stops at the first one.
func (v *Viewer) Previous() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.selected > 0 {
		v.selected--
	}
}

// Delete removes the photo through the API and, only once that succeeds,
// from the loaded list. An open selection past the new end moves to the
// last photo, or closes when none are left.
func (v *Viewer) Delete(ctx context.Context, id string) error {
	v.mu.Lock()
	storagePath := ""
	for _, p := range v.photos {
		if p.ID == id {
			storagePath = p.StoragePath
			break
		}
	}
	v.mu.Unlock()
	if storagePath == "" {
		return ErrNotLoaded
	}

	if err := v.api.DeletePhoto(ctx, id, storagePath); err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	kept := v.photos[:0]
	for _, p := range v.photos {
		if p.ID != id {
			kept = append(kept, p)
		}
	}
	v.photos = kept
	if v.selected >= len(v.photos) {
		v.selected = len(v.photos) - 1
	}
	return nil
}
