package cache

import (
	"strings"
	"testing"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"USA", "us"},
		{"usa", "us"},
		{"  United  States ", "us"},
		{"america", "us"},
		{"UK", "gb"},
		{"Deutschland", "de"},
		{"Brasil", "br"},
		{"", ""},
		{"  MiXeD Case Text  ", "mixed case text"},
		{"zz", "zz"}, // unknown values pass through case-folded
	}
	for _, tc := range cases {
		if got := Normalize(tc.in); got != tc.want {
			t.Errorf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestKeyAliasesShareEntry(t *testing.T) {
	// "USA" and "us" are the same lookup and must hit the same entry.
	a := Key("carriers", "USA")
	b := Key("carriers", "us")
	c := Key("carriers", " United States ")
	if a != b || b != c {
		t.Errorf("aliases produced distinct keys: %q %q %q", a, b, c)
	}

	if Key("carriers", "us") == Key("carriers", "gb") {
		t.Error("different countries must not share a key")
	}
	if Key("carriers", "us") == Key("pricing", "us") {
		t.Error("different kinds must not share a key")
	}
}

func TestKeyPartBoundaries(t *testing.T) {
	// Concatenation across part boundaries must not collide.
	if Key("voice", "ab", "c") == Key("voice", "a", "bc") {
		t.Error(`("ab","c") and ("a","bc") must hash differently`)
	}
}

func TestKeyShape(t *testing.T) {
	k := Key("carriers", "us")
	if !strings.HasPrefix(k, "carriers:") {
		t.Errorf("key %q should start with the kind prefix", k)
	}
	// kind + ":" + sha256 hex
	if len(k) != len("carriers:")+64 {
		t.Errorf("got key length %d, want %d", len(k), len("carriers:")+64)
	}
}
