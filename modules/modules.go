// Package modules provides the resolvers used to load the library modules
// imported by a query.
package modules

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"sync"

	"github.com/midbel/xq/xpath"
)

var (
	ErrNotFound = errors.New("module not found")
	ErrScheme   = errors.New("unsupported location scheme")
	ErrLocation = errors.New("no location hint")
)

// Scheme returns the scheme of a location hint. Hints without a scheme
// are file paths.
func Scheme(hint string) string {
	u, err := url.Parse(hint)
	if err != nil || len(u.Scheme) <= 1 {
		return "file"
	}
	return strings.ToLower(u.Scheme)
}

// Chain dispatches the location hints of an import to the resolver
// registered for their scheme.
type Chain struct {
	// Fallback resolves the imports without location hints.
	Fallback xpath.ModuleResolver

	schemes map[string]xpath.ModuleResolver
}

func NewChain() *Chain {
	return &Chain{
		schemes: make(map[string]xpath.ModuleResolver),
	}
}

func (c *Chain) Register(scheme string, resolver xpath.ModuleResolver) {
	c.schemes[strings.ToLower(scheme)] = resolver
}

func (c *Chain) Resolve(ctx context.Context, namespace string, hints []string) ([]xpath.ModuleSource, error) {
	if len(hints) == 0 {
		if c.Fallback == nil {
			return nil, fmt.Errorf("%s: %w", namespace, ErrLocation)
		}
		return c.Fallback.Resolve(ctx, namespace, hints)
	}
	var (
		groups = make(map[string][]string)
		order  []string
	)
	for _, h := range hints {
		s := Scheme(h)
		if _, ok := c.schemes[s]; !ok {
			return nil, fmt.Errorf("%s: %w", h, ErrScheme)
		}
		if _, ok := groups[s]; !ok {
			order = append(order, s)
		}
		groups[s] = append(groups[s], h)
	}
	var list []xpath.ModuleSource
	for _, s := range order {
		res, err := c.schemes[s].Resolve(ctx, namespace, groups[s])
		if err != nil {
			return nil, err
		}
		list = append(list, res...)
	}
	return list, nil
}

// First tries each resolver in turn and returns the sources of the first
// one knowing the namespace.
type First []xpath.ModuleResolver

func (f First) Resolve(ctx context.Context, namespace string, hints []string) ([]xpath.ModuleSource, error) {
	for _, r := range f {
		list, err := r.Resolve(ctx, namespace, hints)
		if err == nil {
			return list, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%s: %w", namespace, ErrNotFound)
}

// Catalog supplies the locations of the imports that do not give any.
type Catalog struct {
	Locations map[string][]string
	Next      xpath.ModuleResolver
}

func (c Catalog) Resolve(ctx context.Context, namespace string, hints []string) ([]xpath.ModuleSource, error) {
	if len(hints) == 0 {
		hints = c.Locations[namespace]
	}
	if len(hints) == 0 {
		return nil, fmt.Errorf("%s: %w", namespace, ErrNotFound)
	}
	return c.Next.Resolve(ctx, namespace, hints)
}

// Memory holds library modules registered by the host. It ignores the
// location hints and is safe for concurrent use.
type Memory struct {
	mu      sync.RWMutex
	modules map[string][]xpath.ModuleSource
}

func NewMemory() *Memory {
	return &Memory{
		modules: make(map[string][]xpath.ModuleSource),
	}
}

func (m *Memory) Add(namespace, uri, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	src := xpath.ModuleSource{
		URI:  uri,
		Text: text,
	}
	list := m.modules[namespace]
	ix := slices.IndexFunc(list, func(s xpath.ModuleSource) bool {
		return s.URI == uri
	})
	if ix >= 0 {
		list[ix] = src
		return
	}
	m.modules[namespace] = append(list, src)
}

func (m *Memory) Resolve(_ context.Context, namespace string, _ []string) ([]xpath.ModuleSource, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	list, ok := m.modules[namespace]
	if !ok {
		return nil, fmt.Errorf("%s: %w", namespace, ErrNotFound)
	}
	return slices.Clone(list), nil
}

// Cache keeps the sources returned by another resolver so that the queries
// compiled by a same host fetch a module only once.
type Cache struct {
	next xpath.ModuleResolver

	mu    sync.Mutex
	cache map[string][]xpath.ModuleSource
}

func NewCache(next xpath.ModuleResolver) *Cache {
	return &Cache{
		next:  next,
		cache: make(map[string][]xpath.ModuleSource),
	}
}

func (c *Cache) Resolve(ctx context.Context, namespace string, hints []string) ([]xpath.ModuleSource, error) {
	key := namespace + "\x00" + strings.Join(hints, "\x00")

	c.mu.Lock()
	list, ok := c.cache[key]
	c.mu.Unlock()
	if ok {
		return list, nil
	}
	list, err := c.next.Resolve(ctx, namespace, hints)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache[key] = list
	return list, nil
}
