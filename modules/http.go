package modules

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/midbel/xq/xpath"
)

const DefaultMaxSize = 4 << 20

// HTTPResolver fetches library modules from http and https locations.
type HTTPResolver struct {
	Client *http.Client
	// MaxSize limits the size of a module; DefaultMaxSize when zero.
	MaxSize int64
}

func (r HTTPResolver) Resolve(ctx context.Context, namespace string, hints []string) ([]xpath.ModuleSource, error) {
	if len(hints) == 0 {
		return nil, fmt.Errorf("%s: %w", namespace, ErrLocation)
	}
	var list []xpath.ModuleSource
	for _, h := range hints {
		text, err := r.fetch(ctx, h)
		if err != nil {
			return nil, err
		}
		src := xpath.ModuleSource{
			URI:  h,
			Text: text,
		}
		list = append(list, src)
	}
	return list, nil
}

func (r HTTPResolver) fetch(ctx context.Context, location string) (string, error) {
	switch s := Scheme(location); s {
	case "http", "https":
	default:
		return "", fmt.Errorf("%s: %w", location, ErrScheme)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return "", err
	}
	client := r.Client
	if client == nil {
		client = http.DefaultClient
	}
	res, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()

	switch {
	case res.StatusCode == http.StatusNotFound || res.StatusCode == http.StatusGone:
		return "", fmt.Errorf("%s: %w", location, ErrNotFound)
	case res.StatusCode < 200 || res.StatusCode >= 300:
		return "", fmt.Errorf("%s: unexpected status %s", location, res.Status)
	}
	limit := r.MaxSize
	if limit <= 0 {
		limit = DefaultMaxSize
	}
	buf, err := io.ReadAll(io.LimitReader(res.Body, limit+1))
	if err != nil {
		return "", err
	}
	if int64(len(buf)) > limit {
		return "", fmt.Errorf("%s: module larger than %d bytes", location, limit)
	}
	return string(buf), nil
}
