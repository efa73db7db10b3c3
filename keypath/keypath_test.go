package keypath

import (
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		key  string
		want []Segment
	}{
		{"root", "", nil},
		{"name", "a", []Segment{{Name: "a"}}},
		{"index", "0", []Segment{{Name: "0", Index: 0, IsIndex: true}}},
		{"mixed", "servers:12:host", []Segment{
			{Name: "servers"},
			{Name: "12", Index: 12, IsIndex: true},
			{Name: "host"},
		}},
		{"negative is a name", "a:-1", []Segment{{Name: "a"}, {Name: "-1"}}},
		{"empty segment", "a::b", []Segment{{Name: "a"}, {Name: ""}, {Name: "b"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.key)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Parse(%q) mismatch (-want +got):\n%s", tt.key, diff)
			}
			if j := Join(got); j != tt.key {
				t.Errorf("Join(Parse(%q)) = %q", tt.key, j)
			}
		})
	}
}

func TestIsIndex(t *testing.T) {
	tests := []struct {
		in     string
		want   int
		wantOK bool
	}{
		{"0", 0, true},
		{"007", 7, true},
		{"42", 42, true},
		{"", 0, false},
		{"+1", 0, false},
		{"1.5", 0, false},
		{"1e3", 0, false},
		{"9999999999999999999", 0, false},
		{"x", 0, false},
	}
	for _, tt := range tests {
		got, ok := IsIndex(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("IsIndex(%q) = (%d, %t), want (%d, %t)", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestCombineParent(t *testing.T) {
	if got := Combine("", "a"); got != "a" {
		t.Errorf("Combine root = %q", got)
	}
	if got := Combine("a:b", "3"); got != "a:b:3" {
		t.Errorf("Combine = %q", got)
	}
	p, last := Parent("a:b:3")
	if p != "a:b" || last != "3" {
		t.Errorf("Parent = (%q, %q)", p, last)
	}
	p, last = Parent("a")
	if p != "" || last != "a" {
		t.Errorf("Parent top-level = (%q, %q)", p, last)
	}
}

func TestHasPrefix(t *testing.T) {
	tests := []struct {
		key, prefix string
		want        bool
	}{
		{"a", "a", true},
		{"A:b", "a", true},
		{"a:b:c", "a:B", true},
		{"ab", "a", false},
		{"a", "a:b", false},
		{"anything", "", true},
		{"items:10", "items:1", false},
	}
	for _, tt := range tests {
		if got := HasPrefix(tt.key, tt.prefix); got != tt.want {
			t.Errorf("HasPrefix(%q, %q) = %t, want %t", tt.key, tt.prefix, got, tt.want)
		}
	}
}

func TestCompare(t *testing.T) {
	got := []string{"b", "10", "A", "2", "a", "0"}
	slices.SortFunc(got, Compare)
	want := []string{"0", "2", "10", "A", "a", "b"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("sort mismatch (-want +got):\n%s", diff)
	}
}

func TestCanonical(t *testing.T) {
	tests := map[string]string{
		"":          "",
		"a":         "a",
		"a:007:b":   "a:7:b",
		"00":        "0",
		"Servers:1": "Servers:1",
	}
	for in, want := range tests {
		if got := Canonical(in); got != want {
			t.Errorf("Canonical(%q) = %q, want %q", in, got, want)
		}
	}
}
