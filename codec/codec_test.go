package codec_test

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/creachadair/pipechan/code"
	"github.com/creachadair/pipechan/codec"
	"github.com/google/go-cmp/cmp"
)

type record struct {
	Text string
	N    int
}

type shape interface{ Area() float64 }

type square struct{ Side float64 }

func (s square) Area() float64 { return s.Side * s.Side }

func newRegistry(t *testing.T) *codec.Registry {
	t.Helper()
	r := codec.NewRegistry()
	codec.MustRegister[record](r, "")
	codec.MustRegister[*record](r, "")
	codec.MustRegister[square](r, "test.square")
	return r
}

var codecs = []struct {
	name string
	new  func(*codec.Registry) codec.Codec
}{
	{"JSON", codec.JSON},
	{"Gob", codec.Gob},
}

func TestRoundTrip(t *testing.T) {
	tests := []any{
		nil,
		"Hello",
		"",
		true,
		17,
		int64(-5),
		uint8(200),
		3.25,
		float32(0.5),
		[]byte("binary\x00data"),
		record{Text: "Hello", N: 1},
		record{},
		&record{Text: "ptr", N: 2},
		(*record)(nil),
		square{Side: 2},
		[]any{1, "a"},
		[]any{int64(7), 2.5, record{Text: "in", N: 3}},
		[]any(nil),
		map[string]any{"text": "Hello", "n": 1},
		map[string]any{"flag": true, "count": uint16(9)},
		map[string]any(nil),
	}
	for _, c := range codecs {
		t.Run(c.name, func(t *testing.T) {
			cc := c.new(newRegistry(t))
			for _, v := range tests {
				bits, err := cc.Encode(v)
				if err != nil {
					t.Errorf("Encode(%#v) failed: %v", v, err)
					continue
				}
				got, err := cc.Decode(bits)
				if err != nil {
					t.Errorf("Decode(Encode(%#v)) failed: %v", v, err)
					continue
				}
				if reflect.TypeOf(got) != reflect.TypeOf(v) {
					t.Errorf("Decode(Encode(%#v)): got type %T, want %T", v, got, v)
				}
				if diff := cmp.Diff(v, got); diff != "" {
					t.Errorf("Decode(Encode(%#v)) (-want, +got):\n%s", v, diff)
				}
			}
		})
	}
}

func TestInterfaceValue(t *testing.T) {
	for _, c := range codecs {
		t.Run(c.name, func(t *testing.T) {
			cc := c.new(newRegistry(t))
			var in shape = square{Side: 3}
			bits, err := cc.Encode(in)
			if err != nil {
				t.Fatalf("Encode failed: %v", err)
			}
			got, err := cc.Decode(bits)
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			s, ok := got.(shape)
			if !ok {
				t.Fatalf("Decode: got %T, which is not a shape", got)
			}
			if a := s.Area(); a != 9 {
				t.Errorf("Area: got %v, want 9", a)
			}
		})
	}
}

func TestJSONEnvelope(t *testing.T) {
	cc := codec.JSON(newRegistry(t))
	tests := []struct {
		input any
		want  string
	}{
		{nil, `{"type":"","value":null}`},
		{"Hello", `{"type":"string","value":"Hello"}`},
		{square{Side: 1}, `{"type":"test.square","value":{"Side":1}}`},
		{record{Text: "Hello", N: 1},
			`{"type":"github.com/creachadair/pipechan/codec_test.record","value":{"Text":"Hello","N":1}}`},
		{[]any{1, "a"},
			`{"type":"[]interface {}","value":[{"type":"int","value":1},{"type":"string","value":"a"}]}`},
		{map[string]any{"text": "Hello", "n": 1},
			`{"type":"map[string]interface {}","value":{"n":{"type":"int","value":1},"text":{"type":"string","value":"Hello"}}}`},
		{[]any(nil), `{"type":"[]interface {}","value":null}`},
	}
	for _, test := range tests {
		bits, err := cc.Encode(test.input)
		if err != nil {
			t.Errorf("Encode(%#v) failed: %v", test.input, err)
			continue
		}
		if got := string(bits); got != test.want {
			t.Errorf("Encode(%#v):\ngot  %s\nwant %s", test.input, got, test.want)
		}
	}
}

// Composite values nest to any depth, including nil elements.
func TestJSONNested(t *testing.T) {
	cc := codec.JSON(newRegistry(t))
	in := []any{
		[]any{int8(1), nil},
		map[string]any{"inner": []any{uint32(2)}, "none": nil},
		&record{Text: "deep", N: 4},
	}
	bits, err := cc.Encode(in)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	got, err := cc.Decode(bits)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if diff := cmp.Diff(in, got); diff != "" {
		t.Errorf("Decode(Encode(v)) (-want, +got):\n%s", diff)
	}

	// An unregistered element fails the whole value.
	if _, err := cc.Encode([]any{1, unregistered{X: 2}}); !errors.Is(err, code.UnknownType.Err()) {
		t.Errorf("Encode with unregistered element: got %v, want UnknownType", err)
	}
}

type unregistered struct{ X int }

func TestUnknownType(t *testing.T) {
	for _, c := range codecs {
		t.Run(c.name, func(t *testing.T) {
			reg := newRegistry(t)
			cc := c.new(reg)
			if _, err := cc.Encode(unregistered{X: 1}); !errors.Is(err, code.UnknownType.Err()) {
				t.Errorf("Encode(unregistered): got %v, want UnknownType", err)
			}

			// Encode with a registry that knows the type, decode with one
			// that does not.
			other := codec.NewRegistry()
			codec.MustRegister[unregistered](other, "")
			bits, err := c.new(other).Encode(unregistered{X: 2})
			if err != nil {
				t.Fatalf("Encode failed: %v", err)
			}
			if _, err := cc.Decode(bits); !errors.Is(err, code.UnknownType.Err()) {
				t.Errorf("Decode(unregistered): got %v, want UnknownType", err)
			}
		})
	}
}

func TestJSONDecodeErrors(t *testing.T) {
	cc := codec.JSON(newRegistry(t))
	tests := []string{
		``,
		`not json`,
		`{"type":"int","value":"not an int"}`,
		`["type","value"]`,
	}
	for _, test := range tests {
		if v, err := cc.Decode([]byte(test)); err == nil {
			t.Errorf("Decode(%#q): got %v, want error", test, v)
		}
	}
}

func TestRegister(t *testing.T) {
	r := codec.NewRegistry()
	if err := codec.Register[record](r, "rec"); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	// Registering the same pair again is fine.
	if err := codec.Register[record](r, "rec"); err != nil {
		t.Errorf("Register (again) failed: %v", err)
	}
	// Conflicting names or types are not.
	if err := codec.Register[square](r, "rec"); err == nil {
		t.Error("Register with a duplicate name: got nil, want error")
	}
	if err := codec.Register[record](r, "other"); err == nil {
		t.Error("Register with a duplicate type: got nil, want error")
	}
	if err := codec.Register[string](r, "text"); err == nil {
		t.Error("Register of a predeclared type under a new name: got nil, want error")
	}

	name, err := r.Name(reflect.TypeFor[record]())
	if err != nil || name != "rec" {
		t.Errorf("Name(record): got %q, %v; want rec, nil", name, err)
	}
	typ, err := r.Type("rec")
	if err != nil || typ != reflect.TypeFor[record]() {
		t.Errorf("Type(rec): got %v, %v; want record, nil", typ, err)
	}
}

func TestTypeName(t *testing.T) {
	tests := []struct {
		typ  reflect.Type
		want string
	}{
		{reflect.TypeFor[string](), "string"},
		{reflect.TypeFor[[]byte](), "[]uint8"},
		{reflect.TypeFor[record](), "github.com/creachadair/pipechan/codec_test.record"},
		{reflect.TypeFor[*record](), "*codec_test.record"},
		{reflect.TypeFor[map[string]any](), "map[string]interface {}"},
	}
	for _, test := range tests {
		if got := codec.TypeName(test.typ); got != test.want {
			t.Errorf("TypeName(%v): got %q, want %q", test.typ, got, test.want)
		}
	}
}

func TestLargeValue(t *testing.T) {
	big := strings.Repeat("ABCDefghIJKLmnopQRSTuvwxYZ!", 8000)
	for _, c := range codecs {
		cc := c.new(nil)
		bits, err := cc.Encode(big)
		if err != nil {
			t.Fatalf("%s: Encode failed: %v", c.name, err)
		}
		got, err := cc.Decode(bits)
		if err != nil {
			t.Fatalf("%s: Decode failed: %v", c.name, err)
		}
		if got != big {
			t.Errorf("%s: large value did not round trip", c.name)
		}
	}
}
