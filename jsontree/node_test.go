package jsontree

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gopkg.in/yaml.v3"
)

func TestParse(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		tests := []struct {
			name string
			in   string
			want *Node
		}{
			{"empty object", `{}`, NewObject()},
			{"scalars", `{"s":"x","n":1.50,"t":true,"z":null}`, &Node{Kind: Object, Fields: []Field{
				{"s", NewString("x")},
				{"n", NewNumber("1.50")},
				{"t", NewBool(true)},
				{"z", NewNull()},
			}}},
			{"comments and trailing commas", "// header\n{\n  \"a\": [1, 2,], /* inline */\n  \"b\": {},\n}\n", &Node{Kind: Object, Fields: []Field{
				{"a", NewArray(NewNumber("1"), NewNumber("2"))},
				{"b", NewObject()},
			}}},
			{"byte order mark", "\xEF\xBB\xBF{\"a\":\"b\"}", &Node{Kind: Object, Fields: []Field{{"a", NewString("b")}}}},
			{"duplicate keys keep first position", `{"a":1,"b":2,"A":3}`, &Node{Kind: Object, Fields: []Field{
				{"a", NewNumber("3")},
				{"b", NewNumber("2")},
			}}},
			{"top-level array", `[[], "x"]`, NewArray(NewArray(), NewString("x"))},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				got, err := Parse([]byte(tt.in))
				if err != nil {
					t.Fatalf("Parse() error = %v", err)
				}
				if diff := cmp.Diff(tt.want, got); diff != "" {
					t.Errorf("Parse() mismatch (-want +got):\n%s", diff)
				}
			})
		}
	})
	t.Run("invalid", func(t *testing.T) {
		for _, in := range []string{``, `{`, `{"a":}`, `{} {}`, `{"a" 1}`, `nope`} {
			if _, err := Parse([]byte(in)); err == nil {
				t.Errorf("Parse(%q) succeeded, want error", in)
			}
		}
	})
}

func TestEncode(t *testing.T) {
	n := &Node{Kind: Object, Fields: []Field{
		{"name", NewString("a\"b")},
		{"port", NewNumber("8080")},
		{"on", NewBool(false)},
		{"list", NewArray(NewString("x"), nil)},
		{"empty", NewObject()},
		{"none", NewArray()},
	}}
	got, err := Encode(n)
	if err != nil {
		t.Fatal(err)
	}
	want := `{
  "name": "a\"b",
  "port": 8080,
  "on": false,
  "list": [
    "x",
    null
  ],
  "empty": {},
  "none": []
}
`
	if diff := cmp.Diff(want, string(got)); diff != "" {
		t.Errorf("Encode() mismatch (-want +got):\n%s", diff)
	}
	back, err := Parse(got)
	if err != nil {
		t.Fatal(err)
	}
	// The nil placeholder comes back as an explicit null.
	n.Fields[3].Value.Items[1] = NewNull()
	if !Equal(n, back) {
		t.Errorf("round trip changed the tree:\n%s\n%s", n, back)
	}
}

func TestEncodeInvalidScalar(t *testing.T) {
	if _, err := Encode(NewNumber("0x10")); err == nil {
		t.Error("expected error for invalid number")
	}
}

func TestValidate(t *testing.T) {
	valid := []*Node{
		nil,
		NewObject(),
		NewArray(NewNumber("-1.5e3"), NewBool(false), NewNull(), nil),
		{Kind: Object, Fields: []Field{{"s", NewString("not-a-number")}}},
	}
	for _, n := range valid {
		if err := Validate(n); err != nil {
			t.Errorf("Validate(%s) = %v", n, err)
		}
	}
	invalid := []*Node{
		NewNumber("not-a-number"),
		NewNumber(""),
		NewNumber(`"1"`),
		NewNumber("[1]"),
		{Kind: Scalar, Type: Bool, Value: "yes"},
		{Kind: Scalar, Type: ScalarType(9), Value: "x"},
		{Kind: Object, Fields: []Field{{"a", NewArray(NewString("ok"), NewNumber("1x"))}}},
	}
	for _, n := range invalid {
		if err := Validate(n); err == nil {
			t.Errorf("Validate(%+v) succeeded", n)
		}
	}
}

func TestNodeMembers(t *testing.T) {
	o := NewObject()
	o.Put("Host", NewString("a"))
	o.Put("port", NewNumber("1"))
	o.Put("HOST", NewString("b"))
	if got := len(o.Fields); got != 2 {
		t.Fatalf("len = %d, want 2", got)
	}
	if o.Fields[0].Name != "Host" || o.Fields[0].Value.Value != "b" {
		t.Errorf("Put did not keep name casing and position: %+v", o.Fields[0])
	}
	if v, i := o.Lookup("host"); i != 0 || v.Value != "b" {
		t.Errorf("Lookup = %v, %d", v, i)
	}
	if !o.Delete("PORT") || o.Delete("port") {
		t.Error("Delete misbehaved")
	}
	a := NewArray()
	if old := a.Grow(2); old != 0 || len(a.Items) != 3 {
		t.Errorf("Grow: old=%d len=%d", old, len(a.Items))
	}
}

func TestLeafText(t *testing.T) {
	tests := []struct {
		name string
		n    *Node
		leaf bool
		text *string
	}{
		{"nil", nil, true, nil},
		{"null", NewNull(), true, nil},
		{"empty object", NewObject(), true, nil},
		{"empty array", NewArray(), true, nil},
		{"object", &Node{Kind: Object, Fields: []Field{{"a", nil}}}, false, nil},
		{"number", NewNumber("3"), true, ptr("3")},
		{"bool", NewBool(true), true, ptr("true")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.n.IsLeaf(); got != tt.leaf {
				t.Errorf("IsLeaf() = %t", got)
			}
			if diff := cmp.Diff(tt.text, tt.n.Text()); diff != "" {
				t.Errorf("Text() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCloneIsDeep(t *testing.T) {
	orig, err := Parse([]byte(`{"a":{"b":[1,2]}}`))
	if err != nil {
		t.Fatal(err)
	}
	c := orig.Clone()
	c.Fields[0].Value.Fields[0].Value.Items[0] = NewString("changed")
	if orig.Fields[0].Value.Fields[0].Value.Items[0].Value != "1" {
		t.Error("Clone shares array storage")
	}
}

func TestFromValue(t *testing.T) {
	type inner struct {
		Tags []string       `json:"tags"`
		Meta map[string]int `json:"meta"`
	}
	got, err := FromValue(struct {
		Name  string `json:"name"`
		Inner inner  `json:"inner"`
	}{"x", inner{Tags: []string{}, Meta: map[string]int{}}})
	if err != nil {
		t.Fatal(err)
	}
	want := `{"name":"x","inner":{"tags":[],"meta":{}}}`
	b, err := got.MarshalJSON()
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != want {
		t.Errorf("FromValue() = %s, want %s", b, want)
	}
}

func TestToYAML(t *testing.T) {
	n, err := Parse([]byte(`{"b":"1","a":[true,2.5,null],"e":{}}`))
	if err != nil {
		t.Fatal(err)
	}
	out, err := yaml.Marshal(n)
	if err != nil {
		t.Fatal(err)
	}
	want := "b: \"1\"\na:\n    - true\n    - 2.5\n    - null\ne: {}\n"
	if got := string(out); got != want {
		t.Errorf("yaml = %q, want %q", got, want)
	}
	if !strings.HasPrefix(string(out), "b:") {
		t.Error("member order lost")
	}
}

func ptr(s string) *string {
	return &s
}
