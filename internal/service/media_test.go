package service

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"sudooom.im.sync/pkg/errors"
)

// memoryStore 内存对象存储测试替身
type memoryStore struct {
	objects map[string][]byte
	fails   int // 前 N 次 Put 失败
	puts    int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{objects: make(map[string][]byte)}
}

func (s *memoryStore) Put(ctx context.Context, objectName string, data []byte) error {
	s.puts++
	if s.puts <= s.fails {
		return stderrors.New("transient storage failure")
	}
	s.objects[objectName] = data
	return nil
}

func TestMediaSignVerifyRoundtrip(t *testing.T) {
	svc := NewMediaService("test-key", 5*time.Minute, newMemoryStore())

	token, err := svc.SignURL("snaps/abc", "bob")
	if err != nil {
		t.Fatalf("SignURL failed: %v", err)
	}

	path, err := svc.VerifyURL(token, "bob")
	if err != nil {
		t.Fatalf("VerifyURL failed: %v", err)
	}
	if path != "snaps/abc" {
		t.Errorf("expected snaps/abc, got %s", path)
	}
}

func TestMediaVerifyRejectsOtherViewer(t *testing.T) {
	svc := NewMediaService("test-key", 5*time.Minute, newMemoryStore())

	token, err := svc.SignURL("snaps/abc", "bob")
	if err != nil {
		t.Fatalf("SignURL failed: %v", err)
	}

	_, err = svc.VerifyURL(token, "mallory")
	if !errors.Is(err, errors.ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
}

func TestMediaVerifyRejectsExpired(t *testing.T) {
	svc := NewMediaService("test-key", -time.Minute, newMemoryStore())

	token, err := svc.SignURL("snaps/abc", "bob")
	if err != nil {
		t.Fatalf("SignURL failed: %v", err)
	}

	_, err = svc.VerifyURL(token, "bob")
	if !errors.Is(err, errors.ErrURLExpired) {
		t.Fatalf("expected ErrURLExpired, got %v", err)
	}
}

func TestMediaVerifyRejectsWrongKey(t *testing.T) {
	signer := NewMediaService("key-a", 5*time.Minute, newMemoryStore())
	verifier := NewMediaService("key-b", 5*time.Minute, newMemoryStore())

	token, err := signer.SignURL("snaps/abc", "bob")
	if err != nil {
		t.Fatalf("SignURL failed: %v", err)
	}

	if _, err := verifier.VerifyURL(token, "bob"); err == nil {
		t.Fatal("expected verification to fail with a different key")
	}
}

func TestMediaUploadRetriesTransientFailure(t *testing.T) {
	store := newMemoryStore()
	store.fails = 2
	svc := NewMediaService("test-key", 5*time.Minute, store)

	path, err := svc.Upload(context.Background(), "snaps", []byte("photo-bytes"))
	if err != nil {
		t.Fatalf("Upload failed despite retries: %v", err)
	}
	if store.puts != 3 {
		t.Errorf("expected 3 attempts, got %d", store.puts)
	}
	if _, ok := store.objects[path]; !ok {
		t.Errorf("expected object stored at %s", path)
	}
}

func TestMediaUploadGivesUpAfterRetries(t *testing.T) {
	store := newMemoryStore()
	store.fails = 10
	svc := NewMediaService("test-key", 5*time.Minute, store)

	_, err := svc.Upload(context.Background(), "snaps", []byte("photo-bytes"))
	if !errors.Is(err, errors.ErrUploadFailed) {
		t.Fatalf("expected ErrUploadFailed, got %v", err)
	}
}
