package slug

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	gosimple "github.com/gosimple/slug"
)

const (
	MaxPrefixLength = 30
	MaxTitleLength  = 50
	DefaultPrefix   = "news"
)

var validSlug = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// Soft and hard signs transliterate to apostrophes, which would split words.
var signRemover = strings.NewReplacer("ь", "", "Ь", "", "ъ", "", "Ъ", "", "_", " ")

// Normalize transliterates text into a lowercase ASCII slug.
func Normalize(text string) string {
	s := gosimple.Make(signRemover.Replace(text))
	return strings.Trim(strings.Join(strings.FieldsFunc(s, func(r rune) bool { return r == '-' }), "-"), "-")
}

// Truncate cuts s to at most max bytes at the last dash inside the limit, or
// hard when the first word is already too long.
func Truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	if i := strings.LastIndexByte(s[:max+1], '-'); i > 0 {
		return strings.Trim(s[:i], "-")
	}
	return strings.Trim(s[:max], "-")
}

// ForItem builds the base slug of an imported item: "{prefix}-{title}".
// An untransliteratable title falls back to a short hash of the link.
func ForItem(prefix, title, link string) string {
	p := Truncate(Normalize(prefix), MaxPrefixLength)
	if p == "" {
		p = DefaultPrefix
	}

	t := Truncate(Normalize(title), MaxTitleLength)
	if t == "" {
		t = LinkHash(link)
	}

	return p + "-" + t
}

// ForName builds the slug of a named entity such as a category or a source.
func ForName(name, fallback string) string {
	if s := Normalize(name); s != "" {
		return s
	}
	return fallback
}

// Suffixed returns base for n <= 1 and "base-n" otherwise.
func Suffixed(base string, n int) string {
	if n <= 1 {
		return base
	}
	return fmt.Sprintf("%s-%d", base, n)
}

func LinkHash(link string) string {
	sum := sha1.Sum([]byte(link))
	return hex.EncodeToString(sum[:])[:8]
}

// IsValid reports whether s is a pure transliterated slug.
func IsValid(s string) bool {
	return gosimple.IsSlug(s) && validSlug.MatchString(s)
}
