package repository

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileObjectStore 基于本地文件系统的媒体对象存储
// 对象名形如 "snaps/<uuid>"，按目录层级落盘
type FileObjectStore struct {
	baseDir string
}

// NewFileObjectStore 创建文件对象存储
func NewFileObjectStore(baseDir string) (*FileObjectStore, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create media dir: %w", err)
	}
	return &FileObjectStore{baseDir: baseDir}, nil
}

// Put 写入媒体对象
func (s *FileObjectStore) Put(ctx context.Context, objectName string, data []byte) error {
	if strings.Contains(objectName, "..") {
		return fmt.Errorf("invalid object name: %s", objectName)
	}

	path := filepath.Join(s.baseDir, filepath.FromSlash(objectName))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create object dir: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Get 读取媒体对象
func (s *FileObjectStore) Get(ctx context.Context, objectName string) ([]byte, error) {
	if strings.Contains(objectName, "..") {
		return nil, fmt.Errorf("invalid object name: %s", objectName)
	}
	return os.ReadFile(filepath.Join(s.baseDir, filepath.FromSlash(objectName)))
}

// Delete 删除媒体对象（阅后即焚照片过期清理）
func (s *FileObjectStore) Delete(ctx context.Context, objectName string) error {
	if strings.Contains(objectName, "..") {
		return fmt.Errorf("invalid object name: %s", objectName)
	}
	err := os.Remove(filepath.Join(s.baseDir, filepath.FromSlash(objectName)))
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}
