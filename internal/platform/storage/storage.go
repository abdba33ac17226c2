// Package storage uploads finished run directories to a Supabase storage
// bucket.
package storage

import (
	"fmt"
	"io/fs"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	storage_go "github.com/supabase-community/storage-go"

	"admeasure/internal/config"
	"admeasure/internal/logger"
	"admeasure/internal/utils/timing"
)

const (
	uploadAttempts = 3
	uploadBackoff  = 10 * time.Second
)

type Uploader struct {
	log    *logger.Logger
	client *storage_go.Client
	bucket string
	prefix string
}

// New builds an uploader for the plan's store target. The service key comes
// from the environment, not the plan.
func New(log *logger.Logger, cfg config.Config, store *config.StoreConfig) (*Uploader, error) {
	endpoint := store.Endpoint
	if endpoint == "" {
		endpoint = cfg.SupabaseURL
	}
	if endpoint == "" || cfg.SupabaseServiceKey == "" {
		return nil, fmt.Errorf("store configured but SUPABASE_URL or SUPABASE_SERVICE_ROLE_KEY missing")
	}
	client := storage_go.NewClient(strings.TrimSuffix(endpoint, "/")+"/storage/v1", cfg.SupabaseServiceKey, nil)
	return &Uploader{log: log, client: client, bucket: store.Bucket, prefix: store.Prefix}, nil
}

// UploadDir mirrors the run directory into the bucket under prefix/runID/.
// Individual uploads are retried; the first file that keeps failing aborts
// the upload so a partial run is never mistaken for a complete one.
func (u *Uploader) UploadDir(dir, runID string) error {
	start := timing.Now()
	count := 0
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		remote := path.Join(u.prefix, runID, filepath.ToSlash(rel))
		if err := u.uploadFile(p, remote); err != nil {
			return fmt.Errorf("upload %s: %w", rel, err)
		}
		count++
		return nil
	})
	if err != nil {
		return err
	}
	u.log.LogInfof("Uploaded %d files to %s in %s", count, u.bucket, start.Elapsed())
	return nil
}

func (u *Uploader) uploadFile(local, remote string) error {
	contentType := mime.TypeByExtension(filepath.Ext(local))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err := timing.Retry(func() (struct{}, error) {
		f, err := os.Open(local)
		if err != nil {
			return struct{}{}, err
		}
		defer f.Close()
		_, err = u.client.UploadFile(u.bucket, remote, f, storage_go.FileOptions{
			ContentType: &contentType,
		})
		return struct{}{}, err
	}, func(err error) {
		u.log.LogWarnf("Upload of %s failed, retrying: %v", remote, err)
	}, uploadAttempts, uploadBackoff)
	return err
}
