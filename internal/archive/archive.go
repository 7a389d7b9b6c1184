package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/rx3lixir/astro_rtc/internal/room"
)

const defaultUploadTimeout = 10 * time.Second

// ObjectStore is the part of *minio.Client the archiver needs
type ObjectStore interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

type Stats struct {
	Archived int64 `json:"archived"`
	Failed   int64 `json:"failed"`
}

// Archiver uploads transcripts of destroyed chat rooms in the background
type Archiver struct {
	store   ObjectStore
	bucket  string
	timeout time.Duration
	log     *slog.Logger

	wg sync.WaitGroup

	archived atomic.Int64
	failed   atomic.Int64
}

func New(store ObjectStore, bucket string, timeout time.Duration, log *slog.Logger) *Archiver {
	if timeout <= 0 {
		timeout = defaultUploadTimeout
	}
	return &Archiver{
		store:   store,
		bucket:  bucket,
		timeout: timeout,
		log:     log,
	}
}

// ObjectName is where a transcript lands in the bucket
func ObjectName(t room.Transcript) string {
	closed := t.ClosedAt.UTC()
	return fmt.Sprintf(
		"transcripts/%d/%02d/%02d/%s-%d.json",
		closed.Year(),
		closed.Month(),
		closed.Day(),
		url.PathEscape(t.RoomID),
		closed.Unix(),
	)
}

// Archive schedules an upload and returns immediately
func (a *Archiver) Archive(t room.Transcript) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		defer cancel()

		if err := a.upload(ctx, t); err != nil {
			a.failed.Add(1)
			a.log.Error("failed to archive transcript",
				"room_id", t.RoomID,
				"messages", len(t.Messages),
				"error", err,
			)
			return
		}
		a.archived.Add(1)
	}()
}

func (a *Archiver) upload(ctx context.Context, t room.Transcript) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to encode transcript: %w", err)
	}

	objectName := ObjectName(t)

	_, err = a.store.PutObject(
		ctx,
		a.bucket,
		objectName,
		bytes.NewReader(data),
		int64(len(data)),
		minio.PutObjectOptions{
			ContentType: "application/json",
		},
	)
	if err != nil {
		return fmt.Errorf("failed to upload to minio: %w", err)
	}

	a.log.Info("transcript archived",
		"room_id", t.RoomID,
		"object", objectName,
		"messages", len(t.Messages),
	)
	return nil
}

// Wait blocks until in-flight uploads finish or ctx ends
func (a *Archiver) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("transcript uploads interrupted: %w", ctx.Err())
	}
}

func (a *Archiver) Stats() Stats {
	return Stats{
		Archived: a.archived.Load(),
		Failed:   a.failed.Load(),
	}
}
