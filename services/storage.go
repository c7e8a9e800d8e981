package services

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileStorage абстракция файлового хранилища
type FileStorage interface {
	Store(data []byte, path string) (string, error)
	Read(path string) ([]byte, error)
	Exists(path string) bool
	Delete(path string) error
	URL(path string) string
}

// LocalFileStorage хранит файлы на локальном диске
type LocalFileStorage struct {
	Root    string
	BaseURL string
}

// NewLocalFileStorage создает хранилище с корнем в указанной директории
func NewLocalFileStorage(root, baseURL string) *LocalFileStorage {
	return &LocalFileStorage{Root: root, BaseURL: baseURL}
}

// Store сохраняет файл по относительному пути и возвращает этот путь
func (fs *LocalFileStorage) Store(data []byte, path string) (string, error) {
	fullPath := filepath.Join(fs.Root, path)

	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return "", fmt.Errorf("ошибка создания директории: %w", err)
	}

	if err := os.WriteFile(fullPath, data, 0o644); err != nil {
		return "", fmt.Errorf("ошибка записи файла: %w", err)
	}

	return path, nil
}

// Read читает файл по относительному пути
func (fs *LocalFileStorage) Read(path string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(fs.Root, path))
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения файла: %w", err)
	}
	return data, nil
}

// Exists проверяет существование файла
func (fs *LocalFileStorage) Exists(path string) bool {
	_, err := os.Stat(filepath.Join(fs.Root, path))
	return err == nil
}

// Delete удаляет файл
func (fs *LocalFileStorage) Delete(path string) error {
	err := os.Remove(filepath.Join(fs.Root, path))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("ошибка удаления файла: %w", err)
	}
	return nil
}

// URL возвращает публичный URL файла
func (fs *LocalFileStorage) URL(path string) string {
	return strings.TrimSuffix(fs.BaseURL, "/") + "/" + strings.TrimPrefix(path, "/")
}
