package secret

import (
	"context"
	"fmt"
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

// EnvProvider resolves a reference as the name of an environment variable.
type EnvProvider struct{}

// NewEnvProvider returns the "env" provider.
func NewEnvProvider() *EnvProvider { return &EnvProvider{} }

func (*EnvProvider) Name() string { return "env" }

func (*EnvProvider) Resolve(_ context.Context, ref string) (string, error) {
	v, ok := os.LookupEnv(ref)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrMissingEnv, ref)
	}
	return v, nil
}

func (*EnvProvider) Close() error { return nil }

// FileProvider resolves a reference as a file name inside Dir. Trailing
// newlines are trimmed.
type FileProvider struct {
	Dir string
}

// NewFileProvider returns the "file" provider rooted at dir.
func NewFileProvider(dir string) *FileProvider { return &FileProvider{Dir: dir} }

func (*FileProvider) Name() string { return "file" }

func (p *FileProvider) Resolve(_ context.Context, ref string) (string, error) {
	if !filepath.IsLocal(ref) {
		return "", fmt.Errorf("%w: %q escapes %s", ErrInvalidRef, ref, p.Dir)
	}
	data, err := os.ReadFile(filepath.Join(p.Dir, ref))
	if err != nil {
		return "", fmt.Errorf("secret: read %s: %w", ref, err)
	}
	return strings.TrimRight(string(data), "\r\n"), nil
}

func (*FileProvider) Close() error { return nil }
