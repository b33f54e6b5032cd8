package loader

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"
)

func loadFromFS(ctx context.Context, files fs.FS, name string) ([]byte, error) {
	if name == "" {
		return nil, errors.New("loader: fs path is required")
	}
	if files == nil {
		return nil, errors.New("loader: fs is nil")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := fs.ReadFile(files, strings.TrimPrefix(name, "/"))
	if err != nil {
		return nil, fmt.Errorf("loader: %w", err)
	}
	return data, nil
}
