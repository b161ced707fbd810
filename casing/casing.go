// Package casing normalizes identifiers written in camel, pascal, snake or
// kebab case.
package casing

import (
	"iter"
	"unicode"
	"unicode/utf8"
)

func ToKebab(str string) string {
	return join(str, hyphen)
}

func ToSnake(str string) string {
	return join(str, underscore)
}

// join lowercases str and separates its words with sep. A new word starts
// after a separator or with an upper case letter following a lower case one.
func join(str string, sep rune) string {
	var (
		chars []rune
		last  rune
	)
	for r := range iterRunes(str) {
		switch {
		case isSep(r):
			chars = append(chars, sep)
		case unicode.IsUpper(r) && last != 0 && !isSep(last) && !unicode.IsUpper(last):
			chars = append(chars, sep, unicode.ToLower(r))
		default:
			chars = append(chars, unicode.ToLower(r))
		}
		last = r
	}
	if z := len(chars); z > 0 && isSep(last) {
		chars = chars[:z-1]
	}
	return string(chars)
}

const (
	hyphen     = '-'
	space      = ' '
	underscore = '_'
)

func isSep(r rune) bool {
	return r == hyphen || r == underscore || r == space
}

// iterRunes yields the letters, digits and separators of str. Leading
// separators are dropped and a run of separators is reduced to its first.
func iterRunes(str string) iter.Seq[rune] {
	skip := func(str string) int {
		var offset int
		for offset < len(str) {
			r, z := utf8.DecodeRuneInString(str[offset:])
			if !isSep(r) {
				break
			}
			offset += z
		}
		return offset
	}
	fn := func(yield func(rune) bool) {
		var (
			last   rune
			offset = skip(str)
		)
		for offset < len(str) {
			r, z := utf8.DecodeRuneInString(str[offset:])
			offset += z

			if !unicode.IsLetter(r) && !unicode.IsDigit(r) && !isSep(r) {
				continue
			} else if isSep(last) && isSep(r) {
				offset += skip(str[offset:])
				continue
			}
			if !yield(r) {
				break
			}
			last = r
		}
	}
	return fn
}
