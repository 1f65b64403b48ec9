// Package photoclient talks to the gallery API: a thin HTTP client plus the
// upload and browsing logic a guest-facing front end needs.
package photoclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"

	"wedding-gallery/gallery"
)

// APIError is a non-2xx response. Message is the server's "error" field, or
// the raw body when it is not JSON.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (HTTP %d)", e.Message, e.Status)
}

// File is one image to upload.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Client calls the gallery HTTP API. It never retries.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New returns a client for the API at baseURL. A nil httpClient gets a
// default with a two minute timeout.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 2 * time.Minute}
	}
	return &Client{baseURL: strings.TrimSuffix(baseURL, "/"), httpClient: httpClient}
}

func (c *Client) ListPhotos(ctx context.Context, limit, offset int) ([]gallery.Photo, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/photos?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build list request: %w", err)
	}
	req.Header.Set("Cache-Control", "no-cache")

	var photos []gallery.Photo
	if err := c.do(req, &photos); err != nil {
		return nil, err
	}
	if photos == nil {
		photos = []gallery.Photo{}
	}
	return photos, nil
}

// UploadPhoto sends one image with the guest's name.
func (c *Client) UploadPhoto(ctx context.Context, guestName string, f File) (*gallery.Photo, error) {
	req, err := c.multipartRequest(ctx, "/upload", map[string]string{"guestName": guestName}, f)
	if err != nil {
		return nil, err
	}
	var photo gallery.Photo
	if err := c.do(req, &photo); err != nil {
		return nil, err
	}
	return &photo, nil
}

func (c *Client) DeletePhoto(ctx context.Context, id, storagePath string) error {
	body, err := json.Marshal(map[string]string{"photoId": id, "storagePath": storagePath})
	if err != nil {
		return fmt.Errorf("marshal delete request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/photos/delete", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build delete request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, nil)
}

// CouplePhoto returns the current couple photo, or nil if none is set.
func (c *Client) CouplePhoto(ctx context.Context) (*gallery.CouplePhoto, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/couple-photo", nil)
	if err != nil {
		return nil, fmt.Errorf("build couple photo request: %w", err)
	}
	var photo gallery.CouplePhoto
	if err := c.do(req, &photo); err != nil {
		return nil, err
	}
	if photo.ImageURL == "" {
		return nil, nil
	}
	return &photo, nil
}

func (c *Client) SetCouplePhoto(ctx context.Context, f File) (*gallery.CouplePhoto, error) {
	req, err := c.multipartRequest(ctx, "/couple-photo", nil, f)
	if err != nil {
		return nil, err
	}
	var photo gallery.CouplePhoto
	if err := c.do(req, &photo); err != nil {
		return nil, err
	}
	return &photo, nil
}

func (c *Client) Orphans(ctx context.Context) (*gallery.OrphanReport, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/admin/orphans", nil)
	if err != nil {
		return nil, fmt.Errorf("build orphans request: %w", err)
	}
	var report gallery.OrphanReport
	if err := c.do(req, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

func (c *Client) multipartRequest(ctx context.Context, path string, fields map[string]string, f File) (*http.Request, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("write field %s: %w", k, err)
		}
	}
	contentType := f.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename=%q`, f.Name))
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("create image part: %w", err)
	}
	if _, err := part.Write(f.Data); err != nil {
		return nil, fmt.Errorf("write image part: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &body)
	if err != nil {
		return nil, fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req, nil
}

// do sends req and decodes a 2xx JSON body into out when out is non-nil.
func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Error string `json:"error"`
		}
		msg := strings.TrimSpace(string(body))
		if json.Unmarshal(body, &e) == nil && e.Error != "" {
			msg = e.Error
		}
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
