// Package blobstore stores binary documents such as identity proofs. The
// service keeps only the returned object key; the bytes live in the store.
package blobstore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/inhalecare/inhalecare/internal/platform/apperr"
)

// Object describes a stored blob.
type Object struct {
	Key         string    `json:"key"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	SHA256      string    `json:"sha256"`
	StoredAt    time.Time `json:"stored_at"`
}

// Store is the contract for blob storage backends.
type Store interface {
	Put(ctx context.Context, key, contentType string, content io.Reader, maxSize int64) (*Object, error)
	Get(ctx context.Context, key string) (io.ReadCloser, *Object, error)
	Delete(ctx context.Context, key string) error
}

// readLimited buffers content, failing when it is larger than maxSize.
func readLimited(content io.Reader, maxSize int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(content, maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading content: %w", err)
	}
	if int64(len(data)) > maxSize {
		return nil, apperr.Validation("file exceeds maximum size of %d bytes", maxSize)
	}
	if len(data) == 0 {
		return nil, apperr.Validation("file is empty")
	}
	return data, nil
}

func checksum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

type storedObject struct {
	meta    Object
	content []byte
}

// MemoryStore is a thread-safe Store for tests and local development.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]*storedObject
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string]*storedObject)}
}

func (s *MemoryStore) Put(_ context.Context, key, contentType string, content io.Reader, maxSize int64) (*Object, error) {
	data, err := readLimited(content, maxSize)
	if err != nil {
		return nil, err
	}
	meta := Object{
		Key:         key,
		ContentType: contentType,
		Size:        int64(len(data)),
		SHA256:      checksum(data),
		StoredAt:    time.Now().UTC(),
	}

	s.mu.Lock()
	s.objects[key] = &storedObject{meta: meta, content: data}
	s.mu.Unlock()

	out := meta
	return &out, nil
}

func (s *MemoryStore) Get(_ context.Context, key string) (io.ReadCloser, *Object, error) {
	s.mu.RLock()
	obj, ok := s.objects[key]
	s.mu.RUnlock()
	if !ok {
		return nil, nil, apperr.NotFound("object %s not found", key)
	}
	meta := obj.meta
	return io.NopCloser(bytes.NewReader(obj.content)), &meta, nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[key]; !ok {
		return apperr.NotFound("object %s not found", key)
	}
	delete(s.objects, key)
	return nil
}

// Len reports how many objects are stored.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
