package xpath

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"

	"golang.org/x/text/language"
)

var ErrCollation = errors.New("unsupported collation")

const (
	collationHTML = "http://www.w3.org/2005/xpath-functions/collation/html-ascii-case-insensitive"
	collationUCA  = "http://www.w3.org/2013/collation/UCA"
)

var ucaParams = map[string][]string{
	"fallback":      {"yes", "no"},
	"lang":          nil,
	"version":       nil,
	"strength":      {"primary", "secondary", "tertiary", "quaternary", "identical", "1", "2", "3", "4", "5"},
	"alternate":     {"non-ignorable", "shifted", "blanked"},
	"backwards":     {"yes", "no"},
	"normalization": {"yes", "no"},
	"caseLevel":     {"yes", "no"},
	"caseFirst":     {"upper", "lower"},
	"numeric":       {"yes", "no"},
	"reorder":       nil,
}

// resolveCollation makes a collation URI absolute against the base URI and
// checks that it names a supported collation.
func resolveCollation(uri, base string) (string, error) {
	ref, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("%s: %w", uri, ErrCollation)
	}
	if !ref.IsAbs() && base != "" {
		b, err := url.Parse(base)
		if err != nil {
			return "", fmt.Errorf("base URI %s: %w", base, ErrCollation)
		}
		ref = b.ResolveReference(ref)
	}
	str := ref.String()
	switch {
	case str == collationCodepoint || str == collationHTML:
		return str, nil
	case strings.HasPrefix(str, collationUCA):
		if err := checkUCA(ref); err != nil {
			return "", fmt.Errorf("%s: %w", str, err)
		}
		return str, nil
	default:
		return "", fmt.Errorf("%s: %w", str, ErrCollation)
	}
}

func checkUCA(ref *url.URL) error {
	if ref.Path != "/2013/collation/UCA" {
		return ErrCollation
	}
	query, err := url.ParseQuery(strings.ReplaceAll(ref.RawQuery, ";", "&"))
	if err != nil {
		return ErrCollation
	}
	fallback := query.Get("fallback") != "no"
	for key, values := range query {
		allowed, ok := ucaParams[key]
		if !ok {
			if fallback {
				continue
			}
			return fmt.Errorf("unknown parameter %s: %w", key, ErrCollation)
		}
		for _, v := range values {
			if key == "lang" {
				if _, err := language.Parse(v); err != nil && !fallback {
					return fmt.Errorf("invalid language %s: %w", v, ErrCollation)
				}
				continue
			}
			if allowed != nil && !slices.Contains(allowed, v) && !fallback {
				return fmt.Errorf("invalid value %s for %s: %w", v, key, ErrCollation)
			}
		}
	}
	return nil
}
