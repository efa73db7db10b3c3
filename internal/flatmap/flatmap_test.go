package flatmap

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/maruel/jsonkv/jsontree"
)

func mustParse(t *testing.T, s string) *jsontree.Node {
	t.Helper()
	n, err := jsontree.Parse([]byte(s))
	if err != nil {
		t.Fatalf("Parse(%q): %v", s, err)
	}
	return n
}

func snapshot(m *Map) map[string]any {
	out := make(map[string]any)
	for k, v := range m.All() {
		if v == nil {
			out[k] = nil
		} else {
			out[k] = *v
		}
	}
	return out
}

func TestBuild(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want map[string]any
	}{
		{"empty root", `{}`, map[string]any{}},
		{"nested", `{"a":{"b":"x","c":[1,true,null]}}`, map[string]any{
			"a:b":   "x",
			"a:c:0": "1",
			"a:c:1": "true",
			"a:c:2": nil,
		}},
		{"empty containers", `{"o":{},"l":[],"n":null}`, map[string]any{
			"o": nil,
			"l": nil,
			"n": nil,
		}},
		{"array of objects", `{"s":[{"h":"a"},{}]}`, map[string]any{
			"s:0:h": "a",
			"s:1":   nil,
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := Build(mustParse(t, tt.doc))
			if diff := cmp.Diff(tt.want, snapshot(m)); diff != "" {
				t.Errorf("Build() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCaseInsensitive(t *testing.T) {
	m := New()
	v := "1"
	m.Set("Server:Port", &v)
	got, ok := m.Get("server:PORT")
	if !ok || got == nil || *got != "1" {
		t.Fatalf("Get = %v, %t", got, ok)
	}
	*got = "mutated"
	if again, _ := m.Get("server:port"); *again != "1" {
		t.Error("Get returned an alias of the stored value")
	}
	if diff := cmp.Diff([]string{"Server:Port"}, m.Keys()); diff != "" {
		t.Errorf("Keys() mismatch (-want +got):\n%s", diff)
	}
	if !m.Delete("SERVER:port") || m.Len() != 0 {
		t.Error("Delete failed")
	}
}

func TestDeletePrefix(t *testing.T) {
	m := Build(mustParse(t, `{"items":[1,2,3,4,5,6,7,8,9,10,11],"itemsX":"keep","other":{"items":1}}`))
	if n := m.DeletePrefix("items:1"); n != 1 {
		t.Errorf("DeletePrefix(items:1) removed %d, want 1 (items:10 must survive)", n)
	}
	if n := m.DeletePrefix("ITEMS"); n != 10 {
		t.Errorf("DeletePrefix(ITEMS) removed %d, want 10", n)
	}
	want := []string{"itemsX", "other:items"}
	if diff := cmp.Diff(want, m.Keys()); diff != "" {
		t.Errorf("Keys() mismatch (-want +got):\n%s", diff)
	}
	if n := m.DeletePrefix(""); n != 2 || m.Len() != 0 {
		t.Errorf("DeletePrefix(root) = %d, len %d", n, m.Len())
	}
}

func TestChildren(t *testing.T) {
	m := Build(mustParse(t, `{"b":1,"a":{"x":1,"y":[1,2]},"list":[0,1,2,3,4,5,6,7,8,9,10,{}]}`))
	tests := []struct {
		prefix string
		want   []string
	}{
		{"", []string{"a", "b", "list"}},
		{"A", []string{"x", "y"}},
		{"a:y", []string{"0", "1"}},
		{"list", []string{"0", "1", "2", "3", "4", "5", "6", "7", "8", "9", "10", "11"}},
		{"b", []string{}},
		{"missing", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.prefix, func(t *testing.T) {
			got := m.Children(tt.prefix)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Children(%q) mismatch (-want +got):\n%s", tt.prefix, diff)
			}
		})
	}
}

func TestKeysOrder(t *testing.T) {
	m := Build(mustParse(t, `{"z":1,"a":[1,2,3,4,5,6,7,8,9,10,11]}`))
	keys := m.Keys()
	if keys[0] != "a:0" || keys[2] != "a:2" || keys[10] != "a:10" || keys[11] != "z" {
		t.Errorf("Keys() = %v", keys)
	}
}
