package main

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"wedding-gallery/gallery"
	"wedding-gallery/gallery/gallerytest"
	"wedding-gallery/photoclient"
	"wedding-gallery/photoserver"
)

func newTestClient(t *testing.T) (*photoclient.Client, *gallerytest.MemPhotoStore) {
	t.Helper()
	blobs := gallerytest.NewMemBlobStore("https://cdn.example.test/wedding-photos")
	photos := gallerytest.NewMemPhotoStore()
	srv := httptest.NewServer(photoserver.NewHandler(photoserver.Deps{
		Gallery:    gallery.NewService(blobs, photos, photos),
		Reconciler: &gallery.StoreReconciler{Blobs: blobs, Photos: photos},
	}))
	t.Cleanup(srv.Close)
	return photoclient.New(srv.URL, nil), photos
}

func writePNG(t *testing.T, dir, name string) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 64, 48))
	img.Set(1, 1, color.NRGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, buf.Bytes(), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	return p
}

func TestRun_UploadListDelete(t *testing.T) {
	c, photos := newTestClient(t)
	ctx := context.Background()
	dir := t.TempDir()
	files := []string{writePNG(t, dir, "one.png"), writePNG(t, dir, "two.png")}

	var out bytes.Buffer
	if err := run(ctx, c, "upload", append([]string{"-name", "Robin"}, files...), &out); err != nil {
		t.Fatalf("upload: %v\n%s", err, out.String())
	}
	if !strings.Contains(out.String(), "2 of 2 done") || !strings.Contains(out.String(), "all 2 photos uploaded") {
		t.Errorf("unexpected upload output:\n%s", out.String())
	}

	out.Reset()
	if err := run(ctx, c, "list", nil, &out); err != nil {
		t.Fatalf("list: %v", err)
	}
	if got := strings.Count(out.String(), "Robin"); got != 2 {
		t.Errorf("list printed %d photos, want 2:\n%s", got, out.String())
	}

	target := photos.Photos()[0]
	out.Reset()
	if err := run(ctx, c, "delete", []string{"-id", target.ID, "-path", target.StoragePath}, &out); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if n := len(photos.Photos()); n != 1 {
		t.Errorf("got %d records after delete, want 1", n)
	}
}

func TestRun_UploadRequiresName(t *testing.T) {
	c, photos := newTestClient(t)
	p := writePNG(t, t.TempDir(), "one.png")

	var out bytes.Buffer
	err := run(context.Background(), c, "upload", []string{p}, &out)

	if !errors.Is(err, photoclient.ErrEmptyName) {
		t.Errorf("got %v, want ErrEmptyName", err)
	}
	if !strings.Contains(out.String(), photoclient.SelectionMessage) {
		t.Errorf("got output %q, want the selection message", out.String())
	}
	if n := len(photos.Photos()); n != 0 {
		t.Errorf("got %d records, want 0", n)
	}
}

func TestRun_Couple(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	var out bytes.Buffer
	if err := run(ctx, c, "couple", nil, &out); err != nil {
		t.Fatalf("couple: %v", err)
	}
	if !strings.Contains(out.String(), "no couple photo set") {
		t.Errorf("got %q", out.String())
	}

	out.Reset()
	p := writePNG(t, t.TempDir(), "us.png")
	if err := run(ctx, c, "couple", []string{"-set", p}, &out); err != nil {
		t.Fatalf("couple -set: %v", err)
	}
	if !strings.Contains(out.String(), "/"+gallery.CouplePrefix) {
		t.Errorf("got %q, want a couple photo URL", out.String())
	}
}

func TestRun_Orphans(t *testing.T) {
	c, _ := newTestClient(t)
	var out bytes.Buffer

	if err := run(context.Background(), c, "orphans", nil, &out); err != nil {
		t.Fatalf("orphans: %v", err)
	}
	if !strings.Contains(out.String(), `"orphan_blobs": []`) {
		t.Errorf("got %s", out.String())
	}
}

func TestRun_UnknownCommand(t *testing.T) {
	c, _ := newTestClient(t)

	if err := run(context.Background(), c, "frobnicate", nil, &bytes.Buffer{}); err == nil {
		t.Error("got nil error for unknown command")
	}
}
