package archive

import (
	"context"
	"fmt"
	"io"

	"github.com/newthinker/fxmc/internal/core"
)

// Storage is where price files are read from and run artifacts are written to.
// Paths are slash-separated and relative to the backend root.
type Storage interface {
	// Open streams the object at path. A missing object yields core.ErrNoData.
	Open(ctx context.Context, path string) (io.ReadCloser, error)

	// Write stores data at the given path, replacing any existing object
	Write(ctx context.Context, path string, data []byte) error

	// List returns all paths matching the prefix
	List(ctx context.Context, prefix string) ([]string, error)

	// Exists checks if data exists at the given path
	Exists(ctx context.Context, path string) (bool, error)
}

// Config selects and configures a backend
type Config struct {
	Type string // "localfs" or "s3"
	Path string
	S3   S3Config
}

// New builds the backend named by cfg.Type
func New(cfg Config) (Storage, error) {
	switch cfg.Type {
	case "", "localfs":
		return NewLocalFS(cfg.Path)
	case "s3":
		return NewS3(cfg.S3)
	default:
		return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unknown storage type %q", cfg.Type))
	}
}

// ReadAll opens path and reads it fully
func ReadAll(ctx context.Context, s Storage, path string) ([]byte, error) {
	rc, err := s.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func notFound(path string) error {
	return core.WrapError(core.ErrNoData, fmt.Errorf("%s not found", path))
}
