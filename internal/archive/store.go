// Package archive persists raw fetched pages to MinIO object storage,
// content-addressed by SHA-256 digest and deduplicated per source.
package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"

	"github.com/jonesrussell/gocatalog/internal/domain"
	"github.com/jonesrussell/gocatalog/internal/logger"
)

// ErrNotFound is returned by Lookup when no archived response exists for
// the given hash.
var ErrNotFound = errors.New("archived response not found")

// noSuchKeyCode is the S3 error code for a missing object.
const noSuchKeyCode = "NoSuchKey"

// ObjectClient is the subset of the MinIO client the store uses.
type ObjectClient interface {
	PutObject(ctx context.Context, bucket, name string, reader io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	StatObject(ctx context.Context, bucket, name string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
}

// Store is the content-addressed raw response archive. Storage is
// append-only: no stored response is ever mutated after creation.
type Store struct {
	client ObjectClient
	bucket string
	log    logger.Logger

	// locks serializes concurrent writers targeting the same object key.
	// Entries are reference-counted and removed once the last holder
	// releases, so the map does not grow with the hash space.
	mu    sync.Mutex
	locks map[string]*keyLock
}

// keyLock is one per-object-key mutex plus its holder/waiter count.
type keyLock struct {
	mu   sync.Mutex
	refs int
}

// NewStore creates a response store writing to the given bucket.
func NewStore(client ObjectClient, bucket string, log logger.Logger) *Store {
	return &Store{
		client: client,
		bucket: bucket,
		log:    log,
		locks:  make(map[string]*keyLock),
	}
}

// ObjectKey returns the content-addressed object key for a stored response.
// Failed fetches live under a separate classification so they never mix
// into the valid-data namespace.
func ObjectKey(sourceID, status, contentHash string) string {
	return fmt.Sprintf("responses/%s/%s/%s.json", sourceID, status, contentHash)
}

// classify maps an HTTP status code to a storage status classification.
func classify(statusCode int) string {
	if statusCode >= 200 && statusCode < 300 {
		return domain.StoreStatusSuccess
	}
	return domain.StoreStatusFailed
}

// Store archives one raw page. Identical payloads for the same source map to
// the same object and are stored once; the returned record marks the
// duplicate case with Deduplicated.
func (s *Store) Store(ctx context.Context, page *domain.RawPage) (*domain.StoredResponse, error) {
	hash := page.ContentHash()
	status := classify(page.StatusCode)
	key := ObjectKey(page.SourceID, status, hash)

	unlock := s.lockKey(key)
	defer unlock()

	stored := &domain.StoredResponse{
		ContentHash: hash,
		Location:    key,
		SourceID:    page.SourceID,
		Platform:    page.Platform,
		Status:      status,
		FetchedAt:   page.FetchedAt,
		Metadata:    objectMetadata(page),
	}

	_, statErr := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if statErr == nil {
		stored.Deduplicated = true
		s.log.Debug("response already archived",
			logger.String("source_id", page.SourceID),
			logger.String("content_hash", hash),
		)
		return stored, nil
	}
	if minio.ToErrorResponse(statErr).Code != noSuchKeyCode {
		return nil, fmt.Errorf("stat archived response: %w", statErr)
	}

	opts := minio.PutObjectOptions{
		ContentType:  "application/json",
		UserMetadata: stored.Metadata,
	}

	_, putErr := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(page.Body), int64(len(page.Body)), opts)
	if putErr != nil {
		return nil, fmt.Errorf("archive response: %w", putErr)
	}

	s.log.Debug("response archived",
		logger.String("source_id", page.SourceID),
		logger.String("object_key", key),
		logger.Int("bytes", len(page.Body)),
	)
	return stored, nil
}

// Lookup reports whether a response with the given hash is archived for the
// source. Deterministic and side-effect-free.
func (s *Store) Lookup(ctx context.Context, sourceID, status, contentHash string) (*domain.StoredResponse, error) {
	key := ObjectKey(sourceID, status, contentHash)

	info, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == noSuchKeyCode {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("stat archived response: %w", err)
	}

	return &domain.StoredResponse{
		ContentHash: contentHash,
		Location:    key,
		SourceID:    sourceID,
		Status:      status,
		FetchedAt:   info.LastModified,
	}, nil
}

// objectMetadata builds the archive record metadata for one page.
func objectMetadata(page *domain.RawPage) map[string]string {
	meta := map[string]string{
		"source-id":   page.SourceID,
		"roaster-id":  page.RoasterID,
		"platform":    string(page.Platform),
		"status-code": strconv.Itoa(page.StatusCode),
		"page-number": strconv.Itoa(page.PageNumber),
		"fetched-at":  page.FetchedAt.UTC().Format(time.RFC3339),
	}
	if ct, ok := page.Headers["Content-Type"]; ok {
		meta["origin-content-type"] = ct
	}
	return meta
}

// lockKey acquires the per-key mutex and returns its release func. The
// map entry is dropped when the last holder or waiter releases.
func (s *Store) lockKey(key string) func() {
	s.mu.Lock()
	l, ok := s.locks[key]
	if !ok {
		l = &keyLock{}
		s.locks[key] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()

		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, key)
		}
		s.mu.Unlock()
	}
}
