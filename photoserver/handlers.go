package photoserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"wedding-gallery/gallery"
	"wedding-gallery/storage"
)

const (
	listTimeout   = 30 * time.Second
	deleteTimeout = 30 * time.Second
	uploadTimeout = 60 * time.Second

	// DefaultMaxUploadBytes caps one multipart request body.
	DefaultMaxUploadBytes = 50 << 20

	multipartMemory = 32 << 20
)

// Gallery is what the handlers need from gallery.Service.
type Gallery interface {
	Ingest(ctx context.Context, guestName string, img *gallery.Image) (*gallery.Photo, error)
	List(ctx context.Context, limit, offset int) ([]gallery.Photo, error)
	Delete(ctx context.Context, id, storagePath string) error
	CouplePhoto(ctx context.Context) (*gallery.CouplePhoto, error)
	SetCouplePhoto(ctx context.Context, img *gallery.Image) (*gallery.CouplePhoto, error)
}

// BlobOpener streams stored blobs for the object proxy.
type BlobOpener interface {
	Open(ctx context.Context, key string) (*storage.Object, error)
}

type errorResponse struct {
	Error string `json:"error"`
}

type deleteRequest struct {
	PhotoID     string `json:"photoId"`
	StoragePath string `json:"storagePath"`
}

type deleteResponse struct {
	Success bool   `json:"success"`
	PhotoID string `json:"photoId"`
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func listPhotosHandler(g Gallery, log *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		w.Header().Set("Cache-Control", "no-store")

		limit, errL := queryInt(r, "limit", gallery.DefaultPageSize)
		offset, errO := queryInt(r, "offset", 0)
		if errL != nil || errO != nil {
			respondError(w, http.StatusBadRequest, "limit and offset must be non-negative integers")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), listTimeout)
		defer cancel()

		photos, err := g.List(ctx, limit, offset)
		if err != nil {
			if errors.Is(err, gallery.ErrInvalidParameter) {
				if limit > gallery.MaxPageSize {
					respondError(w, http.StatusBadRequest, "Limit cannot exceed "+strconv.Itoa(gallery.MaxPageSize))
					return
				}
				respondError(w, http.StatusBadRequest, "limit and offset must be non-negative integers")
				return
			}
			log.Errorw("list photos", "limit", limit, "offset", offset, "error", err)
			respondError(w, http.StatusInternalServerError, "Failed to fetch photos")
			return
		}
		respondJSON(w, http.StatusOK, photos)
	}
}

func uploadHandler(g Gallery, m *Metrics, maxBytes int64, log *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		form, ok := parseMultipart(w, r, maxBytes)
		if !ok {
			return
		}
		if form != nil {
			defer form.RemoveAll()
		}

		img, err := formImage(form, "image")
		if err != nil {
			log.Warnw("read upload part", "error", err)
			respondError(w, http.StatusBadRequest, "Invalid multipart form")
			return
		}
		names := formValues(form, "guestName")
		if img == nil || len(names) == 0 {
			respondError(w, http.StatusBadRequest, "Missing image or guest name")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), uploadTimeout)
		defer cancel()

		photo, err := g.Ingest(ctx, names[0], img)
		if err != nil {
			m.upload(false)
			status, msg := ingestError(err)
			if status >= http.StatusInternalServerError {
				log.Errorw("ingest photo", "filename", img.Filename, "error", err)
			}
			respondError(w, status, msg)
			return
		}
		m.upload(true)
		respondJSON(w, http.StatusCreated, photo)
	}
}

func deletePhotoHandler(g Gallery, m *Metrics, log *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost && r.Method != http.MethodDelete {
			methodNotAllowed(w)
			return
		}
		var req deleteRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if req.PhotoID == "" || req.StoragePath == "" {
			respondError(w, http.StatusBadRequest, "Missing photoId or storagePath")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), deleteTimeout)
		defer cancel()

		if err := g.Delete(ctx, req.PhotoID, req.StoragePath); err != nil {
			m.delete(false)
			log.Errorw("delete photo", "id", req.PhotoID, "error", err)
			respondError(w, http.StatusInternalServerError, "Failed to delete photo: "+causeMessage(err))
			return
		}
		m.delete(true)
		respondJSON(w, http.StatusOK, deleteResponse{Success: true, PhotoID: req.PhotoID})
	}
}

func couplePhotoHandler(g Gallery, maxBytes int64, log *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			getCouplePhoto(g, log, w, r)
		case http.MethodPost:
			setCouplePhoto(g, maxBytes, log, w, r)
		default:
			methodNotAllowed(w)
		}
	}
}

func getCouplePhoto(g Gallery, log *zap.SugaredLogger, w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), listTimeout)
	defer cancel()

	photo, err := g.CouplePhoto(ctx)
	if err != nil {
		log.Errorw("couple photo", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to fetch couple photo")
		return
	}
	if photo == nil {
		respondJSON(w, http.StatusOK, map[string]any{"image_url": nil})
		return
	}
	respondJSON(w, http.StatusOK, photo)
}

func setCouplePhoto(g Gallery, maxBytes int64, log *zap.SugaredLogger, w http.ResponseWriter, r *http.Request) {
	form, ok := parseMultipart(w, r, maxBytes)
	if !ok {
		return
	}
	if form != nil {
		defer form.RemoveAll()
	}
	img, err := formImage(form, "image")
	if err != nil {
		log.Warnw("read couple photo part", "error", err)
		respondError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}
	if img == nil {
		respondError(w, http.StatusBadRequest, "Missing image file")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), uploadTimeout)
	defer cancel()

	photo, err := g.SetCouplePhoto(ctx, img)
	if err != nil {
		status, msg := ingestError(err)
		log.Errorw("set couple photo", "error", err)
		respondError(w, status, msg)
		return
	}
	respondJSON(w, http.StatusCreated, photo)
}

func orphansHandler(rec gallery.Reconciler, log *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), listTimeout)
		defer cancel()

		report, err := rec.Scan(ctx)
		if err != nil {
			log.Errorw("orphan scan", "error", err)
			respondError(w, http.StatusInternalServerError, "Failed to scan for orphans: "+err.Error())
			return
		}
		log.Infow("orphan scan", "orphan_blobs", len(report.OrphanBlobs), "orphan_records", len(report.OrphanRecords))
		respondJSON(w, http.StatusOK, report)
	}
}

// objectsHandler proxies blob reads so PUBLIC_BASE_URL can point at this
// server when the bucket is private.
func objectsHandler(blobs BlobOpener, pathPrefix string, log *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			methodNotAllowed(w)
			return
		}
		key := strings.TrimPrefix(r.URL.Path, pathPrefix)
		if key == "" {
			respondError(w, http.StatusBadRequest, "object key required")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), listTimeout)
		defer cancel()

		obj, err := blobs.Open(ctx, key)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				respondError(w, http.StatusNotFound, "object not found")
				return
			}
			log.Errorw("open object", "key", key, "error", err)
			respondError(w, http.StatusInternalServerError, "failed to get object")
			return
		}
		defer obj.Body.Close()

		if obj.ContentType != "" {
			w.Header().Set("Content-Type", obj.ContentType)
		}
		w.Header().Set("Content-Length", strconv.FormatInt(obj.Size, 10))
		w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		if r.Method == http.MethodHead {
			return
		}
		if _, err := io.Copy(w, obj.Body); err != nil {
			log.Warnw("stream object", "key", key, "error", err)
		}
	}
}

// ingestError maps a gallery write error to a status and client message.
func ingestError(err error) (int, string) {
	switch {
	case errors.Is(err, gallery.ErrMissingField):
		return http.StatusBadRequest, "Missing image or guest name"
	case errors.Is(err, gallery.ErrEmptyName):
		return http.StatusBadRequest, "Guest name cannot be empty"
	case errors.Is(err, gallery.ErrUpload):
		return http.StatusInternalServerError, "Failed to upload image: " + causeMessage(err)
	case errors.Is(err, gallery.ErrPersist):
		return http.StatusInternalServerError, "Failed to save photo: " + causeMessage(err)
	default:
		return http.StatusInternalServerError, err.Error()
	}
}

// causeMessage strips the stage prefix of a *gallery.OpError.
func causeMessage(err error) string {
	var op *gallery.OpError
	if errors.As(err, &op) {
		return op.Err.Error()
	}
	return err.Error()
}

// parseMultipart returns the parsed form, or nil when the request is not
// multipart at all. ok is false when an error response was already written.
func parseMultipart(w http.ResponseWriter, r *http.Request, maxBytes int64) (*multipart.Form, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	err := r.ParseMultipartForm(multipartMemory)
	if errors.Is(err, http.ErrNotMultipart) {
		return nil, true
	}
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid multipart form")
		return nil, false
	}
	return r.MultipartForm, true
}

// formImage reads the first file under field, or returns nil if there is none.
func formImage(form *multipart.Form, field string) (*gallery.Image, error) {
	if form == nil || len(form.File[field]) == 0 {
		return nil, nil
	}
	fh := form.File[field][0]
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	return &gallery.Image{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

func formValues(form *multipart.Form, field string) []string {
	if form == nil {
		return nil
	}
	return form.Value[field]
}

// queryInt parses a non-negative integer query parameter. Absent or empty
// values yield fallback.
func queryInt(r *http.Request, name string, fallback int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, gallery.ErrInvalidParameter
	}
	return n, nil
}

func methodNotAllowed(w http.ResponseWriter) {
	respondError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, errorResponse{Error: msg})
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
