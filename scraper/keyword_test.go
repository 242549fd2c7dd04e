package scraper

import (
	"net/url"
	"strings"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"bike", "bike"},
		{"bike rack", "bike+rack"},
		{"a&b", "a%26b"},
		{"50%", "50%25"},
		{"c++", "c%2B%2B"},
		{"[x]/{y}", "%5Bx%5D%2F%7By%7D"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q; want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeRemovesSpecialCharacters(t *testing.T) {
	// '%' and '+' are excluded: they legitimately appear in the escaped output.
	special := "/?';:[]{}|\\`!@#$,^&()="
	for _, r := range special {
		in := "a" + string(r) + "b"
		got := Normalize(in)
		if strings.ContainsRune(got, r) {
			t.Errorf("Normalize(%q) = %q still contains %q", in, got, r)
		}
	}
}

func TestNormalizeRoundTrips(t *testing.T) {
	inputs := []string{
		"bike rack",
		"100% cotton & wool",
		"c++ / go?",
		"it's [new] {boxed} |a\\b| `q` !@#$,^()=+",
	}

	for _, in := range inputs {
		got, err := url.QueryUnescape(Normalize(in))
		if err != nil {
			t.Fatalf("QueryUnescape(Normalize(%q)): %v", in, err)
		}
		if got != in {
			t.Errorf("round trip of %q gave %q", in, got)
		}

		embedded, err := url.QueryUnescape(queryParam(Normalize(in)))
		if err != nil {
			t.Fatalf("QueryUnescape(queryParam): %v", err)
		}
		if embedded != Normalize(in) {
			t.Errorf("queryParam did not round trip for %q", in)
		}
	}
}
