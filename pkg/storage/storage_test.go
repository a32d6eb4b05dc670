package storage_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"

	"github.com/JaimeStill/scribe/pkg/lifecycle"
	"github.com/JaimeStill/scribe/pkg/storage"
)

const azuriteConnString = "DefaultEndpointsProtocol=http;AccountName=devstoreaccount1;AccountKey=Eby8vdM02xNOcqFlqUwJPLlmEtlCDXJ1OUzFT50uSRZ6IFsuFq2UVErCz4I6tq/K1SZFPTOtr/KBHBeksoGMGw==;BlobEndpoint=http://127.0.0.1:10000/devstoreaccount1;"

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newLocal(t *testing.T) storage.System {
	t.Helper()

	cfg := &storage.Config{Provider: storage.ProviderLocal, Local: storage.LocalConfig{Root: t.TempDir()}}
	if err := cfg.Finalize(nil); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	sys, err := storage.New(cfg, discard())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	lc := lifecycle.New()
	if err := sys.Start(lc); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := lc.WaitForStartup(); err != nil {
		t.Fatalf("startup: %v", err)
	}
	return sys
}

func TestLocalRoundTrip(t *testing.T) {
	sys := newLocal(t)
	ctx := context.Background()
	key := "documents/abc/report.txt"

	if err := sys.Upload(ctx, key, strings.NewReader("hello world"), "text/plain"); err != nil {
		t.Fatalf("Upload: %v", err)
	}

	ok, err := sys.Exists(ctx, key)
	if err != nil || !ok {
		t.Fatalf("Exists = %v, %v; want true", ok, err)
	}

	rc, err := sys.Download(ctx, key)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != "hello world" {
		t.Errorf("content = %q", data)
	}

	if err := sys.Delete(ctx, key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if ok, _ := sys.Exists(ctx, key); ok {
		t.Error("object still exists after delete")
	}
	if err := sys.Delete(ctx, key); err != nil {
		t.Errorf("second Delete should be a no-op, got %v", err)
	}
}

func TestLocalDownloadMissing(t *testing.T) {
	sys := newLocal(t)

	_, err := sys.Download(context.Background(), "documents/missing.pdf")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestLocalUploadOverwrites(t *testing.T) {
	sys := newLocal(t)
	ctx := context.Background()

	for _, body := range []string{"first", "second"} {
		if err := sys.Upload(ctx, "a/b.txt", strings.NewReader(body), "text/plain"); err != nil {
			t.Fatalf("Upload: %v", err)
		}
	}

	rc, err := sys.Download(ctx, "a/b.txt")
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if string(data) != "second" {
		t.Errorf("content = %q, want second", data)
	}
}

func TestLocalUploadCancelled(t *testing.T) {
	sys := newLocal(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := sys.Upload(ctx, "a/cancelled.txt", strings.NewReader("x"), "text/plain")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
	if ok, _ := sys.Exists(context.Background(), "a/cancelled.txt"); ok {
		t.Error("cancelled upload should not leave an object behind")
	}
}

func TestKeyValidation(t *testing.T) {
	sys := newLocal(t)
	ctx := context.Background()

	tests := []struct {
		name string
		key  string
		want error
	}{
		{"empty", "", storage.ErrEmptyKey},
		{"traversal", "documents/../../etc/passwd", storage.ErrInvalidKey},
		{"absolute", "/etc/passwd", storage.ErrInvalidKey},
		{"dot segment", "documents/./x", storage.ErrInvalidKey},
		{"backslash", `documents\x`, storage.ErrInvalidKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := sys.Upload(ctx, tt.key, strings.NewReader("x"), "text/plain"); !errors.Is(err, tt.want) {
				t.Errorf("Upload error = %v, want %v", err, tt.want)
			}
			if _, err := sys.Download(ctx, tt.key); !errors.Is(err, tt.want) {
				t.Errorf("Download error = %v, want %v", err, tt.want)
			}
			if err := sys.Delete(ctx, tt.key); !errors.Is(err, tt.want) {
				t.Errorf("Delete error = %v, want %v", err, tt.want)
			}
			if _, err := sys.Exists(ctx, tt.key); !errors.Is(err, tt.want) {
				t.Errorf("Exists error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestNewAzure(t *testing.T) {
	cfg := &storage.Config{
		Provider: storage.ProviderAzure,
		Azure:    storage.AzureConfig{ContainerName: "documents", ConnectionString: azuriteConnString},
	}
	if sys, err := storage.New(cfg, discard()); err != nil || sys == nil {
		t.Fatalf("New() = %v, %v", sys, err)
	}

	cfg.Azure.ConnectionString = "not-a-connection-string"
	if _, err := storage.New(cfg, discard()); err == nil {
		t.Fatal("expected error for invalid connection string")
	}
}

func TestNewS3(t *testing.T) {
	t.Setenv("AWS_ACCESS_KEY_ID", "test")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "test")

	cfg := &storage.Config{
		Provider: storage.ProviderS3,
		S3:       storage.S3Config{Bucket: "documents", Region: "us-east-1", Endpoint: "http://127.0.0.1:9000", PathStyle: true},
	}
	if sys, err := storage.New(cfg, discard()); err != nil || sys == nil {
		t.Fatalf("New() = %v, %v", sys, err)
	}
}

func TestNewUnknownProvider(t *testing.T) {
	if _, err := storage.New(&storage.Config{Provider: "ftp"}, discard()); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestMapHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", storage.ErrNotFound, http.StatusNotFound},
		{"empty key", storage.ErrEmptyKey, http.StatusBadRequest},
		{"invalid key", storage.ErrInvalidKey, http.StatusBadRequest},
		{"wrapped", errors.Join(errors.New("ctx"), storage.ErrNotFound), http.StatusNotFound},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := storage.MapHTTPStatus(tt.err); got != tt.want {
				t.Errorf("MapHTTPStatus() = %d, want %d", got, tt.want)
			}
		})
	}
}
