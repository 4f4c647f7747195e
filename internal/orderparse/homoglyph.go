package orderparse

import (
	"strings"
	"unicode"
)

// latinToCyrillic maps Latin letters to the Cyrillic letters they are drawn
// identically to. Only one-to-one visual twins are listed.
var latinToCyrillic = map[rune]rune{
	'A': 'А', 'B': 'В', 'C': 'С', 'E': 'Е', 'H': 'Н', 'K': 'К', 'M': 'М',
	'O': 'О', 'P': 'Р', 'T': 'Т', 'X': 'Х',
	'a': 'а', 'c': 'с', 'e': 'е', 'o': 'о', 'p': 'р', 'x': 'х', 'y': 'у',
}

// RepairHomoglyphs walks a decoded JSON value and rewrites every string
// value, leaving object keys untouched. See RepairString.
func RepairHomoglyphs(v any) any {
	switch t := v.(type) {
	case string:
		return RepairString(t)
	case []any:
		for i := range t {
			t[i] = RepairHomoglyphs(t[i])
		}
		return t
	case map[string]any:
		for k, val := range t {
			t[k] = RepairHomoglyphs(val)
		}
		return t
	default:
		return v
	}
}

// RepairString replaces Latin twins with Cyrillic letters inside every word
// that already contains a Cyrillic letter. Purely Latin words such as
// "Espresso" are left alone.
func RepairString(s string) string {
	if !hasLatinTwin(s) {
		return s
	}
	runes := []rune(s)
	for start := 0; start < len(runes); {
		if !unicode.IsLetter(runes[start]) {
			start++
			continue
		}
		end := start
		cyrillic := false
		for end < len(runes) && unicode.IsLetter(runes[end]) {
			if unicode.Is(unicode.Cyrillic, runes[end]) {
				cyrillic = true
			}
			end++
		}
		if cyrillic {
			for i := start; i < end; i++ {
				if r, ok := latinToCyrillic[runes[i]]; ok {
					runes[i] = r
				}
			}
		}
		start = end
	}
	return string(runes)
}

// foldLatinTwins replaces every Latin twin in s, including inside purely
// Latin words. Used as a second lookup when a name misses the menu as written.
func foldLatinTwins(s string) string {
	if !hasLatinTwin(s) {
		return s
	}
	return strings.Map(func(r rune) rune {
		if c, ok := latinToCyrillic[r]; ok {
			return c
		}
		return r
	}, s)
}

func hasLatinTwin(s string) bool {
	return strings.IndexFunc(s, func(r rune) bool {
		_, ok := latinToCyrillic[r]
		return ok
	}) >= 0
}
