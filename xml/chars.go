package xml

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

var (
	ErrEntity  = errors.New("unknown entity")
	ErrCharRef = errors.New("invalid character reference")
)

type Version int8

const (
	Version10 Version = iota
	Version11
)

func (v Version) String() string {
	if v == Version11 {
		return "1.1"
	}
	return "1.0"
}

// NameChecker validates names and characters according to the rules of one
// XML version.
type NameChecker interface {
	IsNameStartChar(rune) bool
	IsNameChar(rune) bool
	IsValidChar(rune) bool
	IsNCName(string) bool
	IsQName(string) bool
}

func Checker(v Version) NameChecker {
	if v == Version11 {
		return xml11{}
	}
	return xml10{}
}

type xml10 struct{}

func (x xml10) IsNameStartChar(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func (x xml10) IsNameChar(r rune) bool {
	if x.IsNameStartChar(r) || unicode.IsDigit(r) {
		return true
	}
	switch r {
	case '.', '-', 0xB7:
		return true
	}
	return unicode.In(r, unicode.Mn, unicode.Mc, unicode.Lm)
}

func (x xml10) IsValidChar(r rune) bool {
	switch {
	case r == 0x9 || r == 0xA || r == 0xD:
		return true
	case r >= 0x20 && r <= 0xD7FF:
		return true
	case r >= 0xE000 && r <= 0xFFFD:
		return true
	default:
		return r >= 0x10000 && r <= 0x10FFFF
	}
}

func (x xml10) IsNCName(str string) bool {
	return isNCName(x, str)
}

func (x xml10) IsQName(str string) bool {
	return isQName(x, str)
}

type xml11 struct{}

func (x xml11) IsNameStartChar(r rune) bool {
	switch {
	case r == '_':
		return true
	case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z':
		return true
	case r >= 0xC0 && r <= 0xD6, r >= 0xD8 && r <= 0xF6, r >= 0xF8 && r <= 0x2FF:
		return true
	case r >= 0x370 && r <= 0x37D, r >= 0x37F && r <= 0x1FFF:
		return true
	case r >= 0x200C && r <= 0x200D, r >= 0x2070 && r <= 0x218F:
		return true
	case r >= 0x2C00 && r <= 0x2FEF, r >= 0x3001 && r <= 0xD7FF:
		return true
	case r >= 0xF900 && r <= 0xFDCF, r >= 0xFDF0 && r <= 0xFFFD:
		return true
	default:
		return r >= 0x10000 && r <= 0xEFFFF
	}
}

func (x xml11) IsNameChar(r rune) bool {
	if x.IsNameStartChar(r) {
		return true
	}
	switch {
	case r == '-' || r == '.' || r == 0xB7:
		return true
	case r >= '0' && r <= '9':
		return true
	default:
		return (r >= 0x300 && r <= 0x36F) || (r >= 0x203F && r <= 0x2040)
	}
}

func (x xml11) IsValidChar(r rune) bool {
	switch {
	case r >= 0x1 && r <= 0xD7FF:
		return true
	case r >= 0xE000 && r <= 0xFFFD:
		return true
	default:
		return r >= 0x10000 && r <= 0x10FFFF
	}
}

func (x xml11) IsNCName(str string) bool {
	return isNCName(x, str)
}

func (x xml11) IsQName(str string) bool {
	return isQName(x, str)
}

func isNCName(checker NameChecker, str string) bool {
	if str == "" {
		return false
	}
	for i, r := range str {
		if r == ':' {
			return false
		}
		if i == 0 && !checker.IsNameStartChar(r) {
			return false
		}
		if !checker.IsNameChar(r) {
			return false
		}
	}
	return true
}

func isQName(checker NameChecker, str string) bool {
	prefix, local, ok := strings.Cut(str, ":")
	if !ok {
		return isNCName(checker, str)
	}
	return isNCName(checker, prefix) && isNCName(checker, local)
}

var predefined = map[string]string{
	"lt":   "<",
	"gt":   ">",
	"amp":  "&",
	"quot": "\"",
	"apos": "'",
}

// DecodeEntity returns the replacement text of one of the five predefined
// entities.
func DecodeEntity(name string) (string, error) {
	str, ok := predefined[name]
	if !ok {
		return "", fmt.Errorf("&%s;: %w", name, ErrEntity)
	}
	return str, nil
}

// DecodeCharRef decodes the body of a character reference (the text between
// "&#" and ";", so "x41" or "65") and checks that the character is allowed
// by the given checker.
func DecodeCharRef(ref string, checker NameChecker) (rune, error) {
	var (
		base = 10
		str  = ref
	)
	if strings.HasPrefix(str, "x") {
		base, str = 16, str[1:]
	}
	if str == "" {
		return 0, fmt.Errorf("&#%s;: %w", ref, ErrCharRef)
	}
	n, err := strconv.ParseUint(str, base, 32)
	if err != nil {
		return 0, fmt.Errorf("&#%s;: %w", ref, ErrCharRef)
	}
	r := rune(n)
	if !checker.IsValidChar(r) {
		return 0, fmt.Errorf("&#%s;: %w", ref, ErrCharRef)
	}
	return r, nil
}

func IsSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}
