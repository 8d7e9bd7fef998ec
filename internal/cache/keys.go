package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// countryAliases maps common spellings of a country to one canonical form so
// that semantically identical lookups share a cache entry.
var countryAliases = map[string]string{
	"usa":            "us",
	"united states":  "us",
	"america":        "us",
	"uk":             "gb",
	"united kingdom": "gb",
	"britain":        "gb",
	"deutschland":    "de",
	"germany":        "de",
	"brasil":         "br",
	"brazil":         "br",
	"canada":         "ca",
	"mexico":         "mx",
	"france":         "fr",
	"espana":         "es",
	"spain":          "es",
	"india":          "in",
	"japan":          "jp",
	"australia":      "au",
	"netherlands":    "nl",
	"holland":        "nl",
}

// Normalize canonicalizes a free-text lookup input: trims, case-folds,
// collapses internal whitespace, and maps known country aliases.
func Normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.Join(strings.Fields(s), " ")
	if canonical, ok := countryAliases[s]; ok {
		return canonical
	}
	return s
}

// Key derives the deterministic cache key for a lookup kind and its
// normalized inputs. Inputs are hashed, so arbitrary text (e.g. synthesized
// voice scripts) produces fixed-length keys.
func Key(kind string, parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(Normalize(p)))
		h.Write([]byte{0}) // separator so ("ab","c") != ("a","bc")
	}
	return kind + ":" + hex.EncodeToString(h.Sum(nil))
}
