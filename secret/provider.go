package secret

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Provider resolves secrets by reference string.
//
// Implementations must be safe for concurrent use and must not log secret values.
type Provider interface {
	Name() string
	Resolve(ctx context.Context, ref string) (string, error)
	Close() error
}

// FileProvider reads secrets from files, one secret per file. Trailing
// newlines are stripped.
type FileProvider struct {
	dir string
}

// NewFileProvider creates a file provider rooted at dir. With an empty dir,
// refs are used as paths directly.
func NewFileProvider(dir string) *FileProvider {
	return &FileProvider{dir: dir}
}

// FileProviderFactory builds a FileProvider from {"dir": "<path>"}.
func FileProviderFactory(cfg map[string]any) (Provider, error) {
	dir, _ := cfg["dir"].(string)
	return NewFileProvider(dir), nil
}

// Name returns "file".
func (p *FileProvider) Name() string { return "file" }

// Resolve reads the file named by ref.
func (p *FileProvider) Resolve(_ context.Context, ref string) (string, error) {
	path, err := p.path(ref)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%w: file %s", ErrSecretNotFound, ref)
	}
	if err != nil {
		return "", fmt.Errorf("secret: read %s: %w", ref, err)
	}
	return strings.TrimRight(string(data), "\r\n"), nil
}

func (p *FileProvider) path(ref string) (string, error) {
	if p.dir == "" {
		return ref, nil
	}
	clean := filepath.Clean(ref)
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q escapes %s", ErrInvalidRef, ref, p.dir)
	}
	return filepath.Join(p.dir, clean), nil
}

// Close is a no-op.
func (p *FileProvider) Close() error { return nil }

// EnvProvider reads secrets from environment variables named by ref.
type EnvProvider struct{}

// EnvProviderFactory builds an EnvProvider.
func EnvProviderFactory(map[string]any) (Provider, error) {
	return EnvProvider{}, nil
}

// Name returns "env".
func (EnvProvider) Name() string { return "env" }

// Resolve returns the value of the environment variable ref.
func (EnvProvider) Resolve(_ context.Context, ref string) (string, error) {
	v, ok := os.LookupEnv(ref)
	if !ok {
		return "", fmt.Errorf("%w: environment variable %s", ErrSecretNotFound, ref)
	}
	return v, nil
}

// Close is a no-op.
func (EnvProvider) Close() error { return nil }
