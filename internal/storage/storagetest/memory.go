// Package storagetest provides an in-memory storage.Storage for tests.
package storagetest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"sync"

	"github.com/Testers-Community/android-aab-signer/internal/storage"
)

// Base is the public URL root used by Memory.
const Base = "https://blob.test/signing"

// Memory is a concurrency-safe in-memory storage.Stager.
type Memory struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	deletes int
	uploads map[string]*pendingUpload
	nextID  int

	// FailStore, when set, is returned by Store for keys it matches.
	FailStore func(key string) error
	// FailDelete, when set, is returned by Delete.
	FailDelete error
	// FailPart, when set, is returned by UploadPart for the parts it matches.
	FailPart func(number int) error
}

type pendingUpload struct {
	key         string
	contentType string
	parts       map[int][]byte
}

// NewMemory creates an empty Memory.
func NewMemory() *Memory {
	return &Memory{
		objects: map[string][]byte{},
		types:   map[string]string{},
		uploads: map[string]*pendingUpload{},
	}
}

// Store implements storage.Storage.
func (m *Memory) Store(_ context.Context, key string, reader io.Reader, size int64, contentType string) (string, error) {
	if m.FailStore != nil {
		if err := m.FailStore(key); err != nil {
			return "", err
		}
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	if size >= 0 && int64(len(data)) != size {
		return "", fmt.Errorf("size mismatch: got %d want %d", len(data), size)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	m.types[key] = contentType
	return storage.ObjectURL(Base, key), nil
}

// Delete implements storage.Storage.
func (m *Memory) Delete(_ context.Context, urls []string) error {
	if m.FailDelete != nil {
		return m.FailDelete
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes++
	var errs []error
	for _, u := range urls {
		key, err := storage.KeyFromURL(Base, u)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		delete(m.objects, key)
		delete(m.types, key)
	}
	return errors.Join(errs...)
}

// Owns implements storage.Storage.
func (m *Memory) Owns(url string) bool {
	_, err := storage.KeyFromURL(Base, url)
	return err == nil
}

// BeginUpload implements storage.Multipart.
func (m *Memory) BeginUpload(_ context.Context, key, contentType string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	id := "upload-" + strconv.Itoa(m.nextID)
	m.uploads[id] = &pendingUpload{key: key, contentType: contentType, parts: map[int][]byte{}}
	return id, nil
}

// UploadPart implements storage.Multipart.
func (m *Memory) UploadPart(_ context.Context, key, uploadID string, number int, reader io.Reader, size int64) (storage.Part, error) {
	if m.FailPart != nil {
		if err := m.FailPart(number); err != nil {
			return storage.Part{}, err
		}
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return storage.Part{}, fmt.Errorf("read part: %w", err)
	}
	if int64(len(data)) != size {
		return storage.Part{}, fmt.Errorf("part size mismatch: got %d want %d", len(data), size)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.uploads[uploadID]
	if !ok || u.key != key {
		return storage.Part{}, storage.ErrUnknownUpload
	}
	u.parts[number] = data
	return storage.Part{Number: number, ETag: fmt.Sprintf("etag-%d-%d", number, len(data))}, nil
}

// CompleteUpload implements storage.Multipart. Parts are joined in number order.
func (m *Memory) CompleteUpload(_ context.Context, key, uploadID string, parts []storage.Part) (string, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.uploads[uploadID]
	if !ok || u.key != key {
		return "", 0, storage.ErrUnknownUpload
	}
	numbers := make([]int, 0, len(parts))
	for _, p := range parts {
		if _, ok := u.parts[p.Number]; !ok {
			return "", 0, fmt.Errorf("part %d was never uploaded", p.Number)
		}
		numbers = append(numbers, p.Number)
	}
	sort.Ints(numbers)
	var data []byte
	for _, n := range numbers {
		data = append(data, u.parts[n]...)
	}
	delete(m.uploads, uploadID)
	m.objects[key] = data
	m.types[key] = u.contentType
	return storage.ObjectURL(Base, key), int64(len(data)), nil
}

// AbortUpload implements storage.Multipart.
func (m *Memory) AbortUpload(_ context.Context, key, uploadID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.uploads[uploadID]; ok && u.key == key {
		delete(m.uploads, uploadID)
	}
	return nil
}

// PendingUploads returns how many multipart uploads are still open.
func (m *Memory) PendingUploads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.uploads)
}

// Object returns the stored bytes and content type for key.
func (m *Memory) Object(key string) ([]byte, string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	return data, m.types[key], ok
}

// Keys returns the stored keys in sorted order.
func (m *Memory) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// DeleteCalls returns how many successful Delete calls were made.
func (m *Memory) DeleteCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deletes
}

var _ storage.Stager = (*Memory)(nil)
