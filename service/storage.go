package service

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	gstorage "cloud.google.com/go/storage"
)

// Storage persists pipeline outputs under a base location, keyed by a
// slash-separated path relative to that base.
type Storage interface {
	// Save persists the local file under relPath, overwriting any previous
	// version, and returns the destination uri.
	Save(ctx context.Context, localFile, relPath string) (string, error)
}

// NewStorage returns the storage strategy for the given base uri:
// gs://bucket[/prefix] or a local directory.
func NewStorage(ctx context.Context, baseURI string) (Storage, error) {
	if after, ok := strings.CutPrefix(baseURI, "gs://"); ok {
		bucket, prefix, _ := strings.Cut(after, "/")
		if bucket == "" {
			return nil, fmt.Errorf("NewStorage: missing bucket in %s", baseURI)
		}
		client, err := gstorage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("NewStorage.NewClient: %w", err)
		}
		return gsStorage{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}, nil
	}
	return localStorage{dir: baseURI}, nil
}

type localStorage struct {
	dir string
}

// Save implements Storage
func (s localStorage) Save(ctx context.Context, localFile, relPath string) (string, error) {
	dst := filepath.Join(s.dir, filepath.FromSlash(relPath))
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return "", fmt.Errorf("Save.MkdirAll: %w", err)
	}
	if err := os.Rename(localFile, dst); err == nil {
		return dst, nil
	}
	// Rename fails across devices, fall back to a copy
	src, err := os.Open(localFile)
	if err != nil {
		return "", fmt.Errorf("Save.Open: %w", err)
	}
	defer src.Close()
	dstf, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("Save.Create: %w", err)
	}
	if _, err := io.Copy(dstf, src); err != nil {
		dstf.Close()
		return "", fmt.Errorf("Save.Copy to %s: %w", dst, err)
	}
	if err := dstf.Close(); err != nil {
		return "", fmt.Errorf("Save.Close: %w", err)
	}
	return dst, nil
}

type gsStorage struct {
	client *gstorage.Client
	bucket string
	prefix string
}

// Save implements Storage
func (s gsStorage) Save(ctx context.Context, localFile, relPath string) (string, error) {
	src, err := os.Open(localFile)
	if err != nil {
		return "", fmt.Errorf("Save.Open: %w", err)
	}
	defer src.Close()

	object := path.Join(s.prefix, relPath)
	w := s.client.Bucket(s.bucket).Object(object).NewWriter(ctx)
	if _, err := io.Copy(w, src); err != nil {
		w.Close()
		return "", fmt.Errorf("Save.Copy to gs://%s/%s: %w", s.bucket, object, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("Save.Close: %w", err)
	}
	return "gs://" + s.bucket + "/" + object, nil
}
