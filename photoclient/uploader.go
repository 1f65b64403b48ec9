package photoclient

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"wedding-gallery/gallery"
	"wedding-gallery/transcode"
	"wedding-gallery/workpool"
)

const (
	DefaultCompressWindow = 3
	DefaultUploadWindow   = 4
)

// SelectionMessage is shown to the user when UploadBatch rejects a batch
// with ErrNoFiles or ErrEmptyName.
const SelectionMessage = "Please select at least one image and enter your name"

var (
	ErrNoFiles       = errors.New("no images selected")
	ErrEmptyName     = errors.New("guest name is empty")
	ErrProcessImages = errors.New("failed to process images")
)

// ProgressFunc reports that item index reached percent. done counts the
// items finished so far out of total. Calls are serialized.
type ProgressFunc func(index, percent, done, total int)

// ItemResult is the outcome of one file in a batch.
type ItemResult struct {
	Name  string
	Photo *gallery.Photo
	Err   error
}

type BatchResult struct {
	Items []ItemResult
}

// Uploaded counts the items that were stored.
func (b *BatchResult) Uploaded() int {
	n := 0
	for _, it := range b.Items {
		if it.Err == nil && it.Photo != nil {
			n++
		}
	}
	return n
}

// photoUploader is the part of Client the Uploader needs.
type photoUploader interface {
	UploadPhoto(ctx context.Context, guestName string, f File) (*gallery.Photo, error)
}

// Uploader compresses a batch of images and uploads them with a bounded
// number of requests in flight.
type Uploader struct {
	api            photoUploader
	transcoder     transcode.Transcoder
	constraints    transcode.Constraints
	compressWindow int
	uploadWindow   int
	progress       ProgressFunc
}

type UploaderOption func(*Uploader)

func WithConstraints(c transcode.Constraints) UploaderOption {
	return func(u *Uploader) { u.constraints = c }
}

func WithUploadWindow(n int) UploaderOption {
	return func(u *Uploader) { u.uploadWindow = n }
}

func WithCompressWindow(n int) UploaderOption {
	return func(u *Uploader) { u.compressWindow = n }
}

func WithProgress(fn ProgressFunc) UploaderOption {
	return func(u *Uploader) { u.progress = fn }
}

func NewUploader(api photoUploader, t transcode.Transcoder, opts ...UploaderOption) *Uploader {
	u := &Uploader{
		api:            api,
		transcoder:     t,
		constraints:    transcode.DefaultConstraints(),
		compressWindow: DefaultCompressWindow,
		uploadWindow:   DefaultUploadWindow,
		progress:       func(int, int, int, int) {},
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// UploadBatch compresses every file, then uploads them. A compression
// failure aborts before any request is sent. Upload failures do not stop
// the remaining uploads; the first one is returned and the rest are in the
// result.
func (u *Uploader) UploadBatch(ctx context.Context, files []File, guestName string) (*BatchResult, error) {
	if len(files) == 0 {
		return nil, ErrNoFiles
	}
	if strings.TrimSpace(guestName) == "" {
		return nil, ErrEmptyName
	}

	compressed, err := workpool.Map(ctx, u.compressWindow, files, func(ctx context.Context, _ int, f File) (File, error) {
		data, err := u.transcoder.Transcode(ctx, f.Data, u.constraints)
		if err != nil {
			return File{}, fmt.Errorf("%s: %w", f.Name, err)
		}
		return File{Name: f.Name, ContentType: "image/jpeg", Data: data}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProcessImages, err)
	}

	total := len(compressed)
	result := &BatchResult{Items: make([]ItemResult, total)}
	var (
		mu   sync.Mutex
		done int
	)
	_, err = workpool.Map(ctx, u.uploadWindow, compressed, func(ctx context.Context, i int, f File) (*gallery.Photo, error) {
		photo, err := u.api.UploadPhoto(ctx, guestName, f)
		result.Items[i] = ItemResult{Name: f.Name, Photo: photo, Err: err}
		if err != nil {
			return nil, err
		}
		mu.Lock()
		done++
		u.progress(i, 100, done, total)
		mu.Unlock()
		return photo, nil
	})
	return result, err
}
