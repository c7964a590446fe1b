// Package storage contiene los adaptadores de almacenamiento de ficheros de datos.
package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// ErrInvalidKey indica una clave que saldría del directorio raíz.
var ErrInvalidKey = errors.New("invalid storage key")

// FilesystemStorage guarda cada objeto como un fichero bajo root.
type FilesystemStorage struct {
	root    string
	baseURL string
	mu      sync.Mutex // serializa escrituras sobre la misma clave
}

// NewFilesystemStorage crea el almacenamiento. Si baseURL está vacío las URLs son file://.
func NewFilesystemStorage(root, baseURL string) (*FilesystemStorage, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve storage root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &FilesystemStorage{root: abs, baseURL: strings.TrimSuffix(baseURL, "/")}, nil
}

// Put escribe el objeto completo. Se escribe a un temporal y se renombra,
// así un lector nunca ve un fichero a medias.
func (s *FilesystemStorage) Put(ctx context.Context, key string, data []byte, contentType string) error {
	path, err := s.pathFor(key)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create object dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".upload-*")
	if err != nil {
		return fmt.Errorf("create temp object: %w", err)
	}
	defer os.Remove(tmp.Name()) // no-op tras el rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write object: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close object: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}

// Get lee un objeto. Lo usan los tests y el comando de diagnóstico.
func (s *FilesystemStorage) Get(ctx context.Context, key string) ([]byte, error) {
	path, err := s.pathFor(key)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(path)
}

// SignedURL devuelve una URL con caducidad. El sistema de ficheros no firma:
// sólo añade expires para que el contrato sea el mismo que en S3.
func (s *FilesystemStorage) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	path, err := s.pathFor(key)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("stat object %s: %w", key, err)
	}

	expires := time.Now().Add(ttl).Unix()
	if s.baseURL == "" {
		u := url.URL{Scheme: "file", Path: filepath.ToSlash(path)}
		return u.String(), nil
	}
	return fmt.Sprintf("%s/%s?expires=%d", s.baseURL, key, expires), nil
}

func (s *FilesystemStorage) pathFor(key string) (string, error) {
	if key == "" || strings.HasPrefix(key, "/") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	path := filepath.Join(s.root, filepath.FromSlash(key))
	if !strings.HasPrefix(path, s.root+string(os.PathSeparator)) {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return path, nil
}
