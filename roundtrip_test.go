package tagyaml

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

type foo struct {
	A int
	B string
}

func newFooRegistry(t *testing.T) *Registry {
	t.Helper()
	r := New()
	require.NoError(t, r.Register(foo{}, WithTag("ns.Foo")))
	return r
}

func TestMarshal_TaggedMapping(t *testing.T) {
	r := newFooRegistry(t)

	out, err := r.Marshal(foo{A: 1, B: "hello"})
	require.NoError(t, err)

	doc := string(out)
	require.Contains(t, doc, "!tagyaml/ns.Foo")
	require.Contains(t, doc, "a: 1")
	require.Contains(t, doc, "b: hello")
}

func TestUnmarshal_TaggedMapping(t *testing.T) {
	r := newFooRegistry(t)

	var got any
	err := r.Unmarshal([]byte("!tagyaml/ns.Foo {a: 1, b: hello}\n"), &got)
	require.NoError(t, err)
	require.Equal(t, foo{A: 1, B: "hello"}, got)
}

func TestUnmarshal_IntoConcreteType(t *testing.T) {
	r := newFooRegistry(t)

	var got foo
	err := r.Unmarshal([]byte("!tagyaml/ns.Foo {a: 3, b: world}\n"), &got)
	require.NoError(t, err)
	require.Equal(t, foo{A: 3, B: "world"}, got)
}

func TestRoundTrip(t *testing.T) {
	r := newFooRegistry(t)

	want := foo{A: 42, B: "hi there"}
	out, err := r.Marshal(want)
	require.NoError(t, err)

	var got any
	require.NoError(t, r.Unmarshal(out, &got))
	require.Equal(t, want, got)
}

func TestRoundTrip_PointerPrototype(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(&foo{}, WithTag("ns.Foo")))

	want := &foo{A: 7, B: "ptr"}
	out, err := r.Marshal(want)
	require.NoError(t, err)

	var got any
	require.NoError(t, r.Unmarshal(out, &got))
	require.Equal(t, want, got)
}

func TestUnmarshal_UnknownSuffix(t *testing.T) {
	r := newFooRegistry(t)

	var got any
	err := r.Unmarshal([]byte("!tagyaml/ns.Nope {a: 1}\n"), &got)

	var unknown UnknownTagError
	require.ErrorAs(t, err, &unknown)
	require.Equal(t, "ns.Nope", unknown.Suffix)
	require.Contains(t, err.Error(), "ns.Nope")
}

func TestRoundTrip_Embedded(t *testing.T) {
	r := newFooRegistry(t)

	in := map[string]any{
		"obj": foo{A: 1, B: "hello"},
		"num": 21,
	}
	out, err := r.Marshal(in)
	require.NoError(t, err)

	// the object is tagged even when it is not the document root
	require.Contains(t, string(out), "!tagyaml/ns.Foo")

	var got map[string]any
	require.NoError(t, r.Unmarshal(out, &got))
	require.Equal(t, foo{A: 1, B: "hello"}, got["obj"])
	require.Equal(t, 21, got["num"])
}

func TestRoundTrip_InsideSequence(t *testing.T) {
	r := newFooRegistry(t)

	in := []any{foo{A: 1, B: "x"}, "plain", 5}
	out, err := r.Marshal(in)
	require.NoError(t, err)

	var got []any
	require.NoError(t, r.Unmarshal(out, &got))
	require.Equal(t, in, got)
}

type nest struct {
	Inner foo
	Label string
}

func TestRoundTrip_RegisteredFieldInsideStruct(t *testing.T) {
	r := newFooRegistry(t)
	require.NoError(t, r.Register(nest{}, WithTag("ns.Nest")))

	want := nest{Inner: foo{A: 9, B: "deep"}, Label: "outer"}
	out, err := r.Marshal(want)
	require.NoError(t, err)
	require.Equal(t, 2, strings.Count(string(out), "!tagyaml/"))

	var got any
	require.NoError(t, r.Unmarshal(out, &got))
	require.Equal(t, want, got)
}

func TestMarshal_DeterministicOutput(t *testing.T) {
	r := newFooRegistry(t)

	in := map[string]any{"b": 2, "a": 1, "c": foo{A: 1, B: "x"}}
	first, err := r.Marshal(in)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := r.Marshal(in)
		require.NoError(t, err)
		require.Equal(t, string(first), string(again))
	}
}

type sample struct {
	A  int
	B  string
	Ns []int
}

func TestProperty_RoundTrip(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(sample{}, WithTag("ns.Sample")))

	rapid.Check(t, func(rt *rapid.T) {
		want := sample{
			A:  rapid.Int().Draw(rt, "a"),
			B:  rapid.String().Draw(rt, "b"),
			Ns: rapid.SliceOfN(rapid.Int(), 0, 8).Draw(rt, "ns"),
		}

		out, err := r.Marshal(want)
		if err != nil {
			rt.Fatalf("marshal: %v", err)
		}

		var got sample
		if err := r.Unmarshal(out, &got); err != nil {
			rt.Fatalf("unmarshal: %v", err)
		}
		if got.A != want.A || got.B != want.B {
			rt.Fatalf("round trip mismatch: got %+v, want %+v", got, want)
		}
		if len(got.Ns) != len(want.Ns) {
			rt.Fatalf("round trip mismatch: got %v, want %v", got.Ns, want.Ns)
		}
		for i := range want.Ns {
			if got.Ns[i] != want.Ns[i] {
				rt.Fatalf("round trip mismatch at %d: got %v, want %v", i, got.Ns, want.Ns)
			}
		}
	})
}
