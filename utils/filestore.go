package utils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// FileStore saves uploaded receipt images and generated documents under a
// base directory. Returned paths are opaque strings relative to the process
// working directory.
type FileStore struct {
	baseDir string
}

// NewFileStore creates a file store rooted at baseDir
func NewFileStore(baseDir string) (*FileStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create uploads directory: %v", err)
	}
	return &FileStore{baseDir: baseDir}, nil
}

// Save writes the stream to a uniquely named file and returns its path
func (fs *FileStore) Save(r io.Reader, suggestedName string) (string, error) {
	ext := filepath.Ext(suggestedName)
	uniqueName := fmt.Sprintf("%s_%s%s", time.Now().UTC().Format("20060102_150405"), randomSuffix(), ext)
	path := filepath.Join(fs.baseDir, uniqueName)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %v", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to write file: %v", err)
	}

	return path, nil
}

// SaveBytes writes a byte slice under the given name and returns its path
func (fs *FileStore) SaveBytes(data []byte, name string) (string, error) {
	path := filepath.Join(fs.baseDir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write file: %v", err)
	}
	return path, nil
}

// Exists reports whether a previously returned path still resolves
func (fs *FileStore) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func randomSuffix() string {
	token, err := GenerateSecureToken(4)
	if err != nil {
		return "0000"
	}
	return token[:6]
}
