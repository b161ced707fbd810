package modules

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"

	"github.com/midbel/xq/xpath"
)

// FileResolver reads library modules from the local file system. Relative
// hints are resolved against Dir.
type FileResolver struct {
	Dir string
}

func (r FileResolver) Resolve(ctx context.Context, namespace string, hints []string) ([]xpath.ModuleSource, error) {
	if len(hints) == 0 {
		return nil, fmt.Errorf("%s: %w", namespace, ErrLocation)
	}
	var list []xpath.ModuleSource
	for _, h := range hints {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		file, err := r.path(h)
		if err != nil {
			return nil, err
		}
		buf, err := os.ReadFile(file)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				err = ErrNotFound
			}
			return nil, fmt.Errorf("%s: %w", h, err)
		}
		src := xpath.ModuleSource{
			URI:  file,
			Text: string(buf),
		}
		list = append(list, src)
	}
	return list, nil
}

func (r FileResolver) path(hint string) (string, error) {
	file := hint
	if Scheme(hint) == "file" {
		if u, err := url.Parse(hint); err == nil && u.Scheme != "" {
			file = u.Path
		}
	} else {
		return "", fmt.Errorf("%s: %w", hint, ErrScheme)
	}
	file = filepath.FromSlash(file)
	if !filepath.IsAbs(file) && r.Dir != "" {
		file = filepath.Join(r.Dir, file)
	}
	return filepath.Clean(file), nil
}
