package infra

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"

	"marketwatch/internal/domain"

	"github.com/disintegration/imaging"
)

func pngServer(t *testing.T, hits *atomic.Int64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path != "/T4_MAIN_SWORD@2.png" || r.URL.Query().Get("quality") != "3" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		img := image.NewRGBA(image.Rect(0, 0, 217, 217))
		for x := 0; x < 217; x++ {
			img.Set(x, x, color.RGBA{R: 200, A: 255})
		}
		w.Header().Set("Content-Type", "image/png")
		png.Encode(w, img)
	}))
}

func TestIconDownloader_DownloadAndResize(t *testing.T) {
	var hits atomic.Int64
	server := pngServer(t, &hits)
	defer server.Close()

	d, err := NewIconDownloaderWithOptions(t.TempDir(), server.URL, 32, server.Client())
	if err != nil {
		t.Fatalf("NewIconDownloaderWithOptions failed: %v", err)
	}

	path, err := d.DownloadIcon(context.Background(), "T4_MAIN_SWORD@2", domain.QualityOutstanding)
	if err != nil {
		t.Fatalf("DownloadIcon failed: %v", err)
	}
	if path != d.IconPath("T4_MAIN_SWORD@2", domain.QualityOutstanding) {
		t.Errorf("Unexpected path %s", path)
	}

	img, err := imaging.Open(path)
	if err != nil {
		t.Fatalf("Saved icon unreadable: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 32 || b.Dy() != 32 {
		t.Errorf("Expected 32x32 icon, got %dx%d", b.Dx(), b.Dy())
	}

	// Second call is served from disk.
	if _, err := d.DownloadIcon(context.Background(), "T4_MAIN_SWORD@2", domain.QualityOutstanding); err != nil {
		t.Fatal(err)
	}
	if hits.Load() != 1 {
		t.Errorf("Expected 1 download, got %d", hits.Load())
	}
}

func TestIconDownloader_BadStatus(t *testing.T) {
	var hits atomic.Int64
	server := pngServer(t, &hits)
	defer server.Close()

	d, err := NewIconDownloaderWithOptions(t.TempDir(), server.URL, 32, server.Client())
	if err != nil {
		t.Fatal(err)
	}

	path, err := d.DownloadIcon(context.Background(), "T4_UNKNOWN", domain.QualityNormal)
	if err == nil {
		t.Fatal("Expected error for 404")
	}
	if _, statErr := os.Stat(d.IconPath("T4_UNKNOWN", domain.QualityNormal)); statErr == nil {
		t.Errorf("Nothing should be written on failure, got %s", path)
	}
}

func TestIconDownloader_RejectsTraversal(t *testing.T) {
	d, err := NewIconDownloaderWithOptions(t.TempDir(), "http://127.0.0.1:1", 32, nil)
	if err != nil {
		t.Fatal(err)
	}
	for _, id := range []string{"../../etc/passwd", "", "T4 SWORD"} {
		if _, err := d.DownloadIcon(context.Background(), id, domain.QualityNormal); err == nil {
			t.Errorf("Expected %q to be rejected", id)
		}
	}
}
