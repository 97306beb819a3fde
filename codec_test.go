package tagyaml

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Jel1ySpot/tagyaml/internal/structmap"
)

type job struct {
	Name     string
	Priority int
}

type worker struct {
	ID string
}

// crewCodec encodes the job/worker family under one shared namespace.
type crewCodec struct{}

var crewTags = map[reflect.Type]string{
	reflect.TypeOf(job{}):    "crew.Job",
	reflect.TypeOf(worker{}): "crew.Worker",
}

func (crewCodec) Prefix() string { return "!crew/" }

func (crewCodec) Supports(suffix string) bool {
	for _, s := range crewTags {
		if s == suffix {
			return true
		}
	}
	return false
}

func (crewCodec) Types() []reflect.Type {
	types := make([]reflect.Type, 0, len(crewTags))
	for t := range crewTags {
		types = append(types, t)
	}
	return types
}

func (crewCodec) Encode(v any) (string, any, error) {
	suffix, ok := crewTags[reflect.TypeOf(v)]
	if !ok {
		return "", nil, fmt.Errorf("crewCodec cannot encode %T", v)
	}
	repr, err := structmap.ToMap(v)
	return suffix, repr, err
}

func (crewCodec) Decode(suffix string, value any) (any, error) {
	m, ok := value.(map[string]any)
	if !ok {
		return nil, ShapeError{Tag: "!crew/" + suffix, Shape: "sequence"}
	}
	switch suffix {
	case "crew.Job":
		var j job
		err := structmap.FromMap(m, &j, false)
		return j, err
	case "crew.Worker":
		var w worker
		err := structmap.FromMap(m, &w, false)
		return w, err
	}
	return nil, fmt.Errorf("unreachable suffix %q", suffix)
}

func newCrewRegistry(t *testing.T) *Registry {
	t.Helper()
	r := New()
	require.NoError(t, r.RegisterCodec(crewCodec{}))
	return r
}

func TestCodec_MarshalBothTypes(t *testing.T) {
	r := newCrewRegistry(t)

	out, err := r.Marshal(job{Name: "deploy", Priority: 2})
	require.NoError(t, err)
	require.Contains(t, string(out), "!crew/crew.Job")
	require.Contains(t, string(out), "name: deploy")

	out, err = r.Marshal(worker{ID: "w-1"})
	require.NoError(t, err)
	require.Contains(t, string(out), "!crew/crew.Worker")
	require.Contains(t, string(out), "id: w-1")
}

func TestCodec_RoundTrip(t *testing.T) {
	r := newCrewRegistry(t)

	in := map[string]any{
		"job":    job{Name: "deploy", Priority: 2},
		"worker": worker{ID: "w-1"},
	}
	out, err := r.Marshal(in)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, r.Unmarshal(out, &got))
	require.Equal(t, job{Name: "deploy", Priority: 2}, got["job"])
	require.Equal(t, worker{ID: "w-1"}, got["worker"])
}

func TestCodec_UnknownSuffix(t *testing.T) {
	r := newCrewRegistry(t)

	var got any
	err := r.Unmarshal([]byte("!crew/crew.Boss {id: b-1}\n"), &got)

	var unknown UnknownTagError
	require.ErrorAs(t, err, &unknown)
	require.Equal(t, "crew.Boss", unknown.Suffix)
	require.Equal(t, "!crew/", unknown.Prefix)
}

func TestCodec_UnsupportedShapePassesThrough(t *testing.T) {
	r := newCrewRegistry(t)

	var got any
	err := r.Unmarshal([]byte("!crew/crew.Job [deploy, 2]\n"), &got)

	var shape ShapeError
	require.ErrorAs(t, err, &shape)
}

func TestCodec_DecodeErrorWrapped(t *testing.T) {
	r := newCrewRegistry(t)

	var got any
	err := r.Unmarshal([]byte("!crew/crew.Job {priority: [1, 2]}\n"), &got)

	var de DecodeError
	require.ErrorAs(t, err, &de)
	require.Equal(t, "!crew/crew.Job", de.Tag)
}

func TestCodec_CoexistsWithSingleTypeStyle(t *testing.T) {
	r := newCrewRegistry(t)
	require.NoError(t, r.Register(foo{}, WithTag("ns.Foo")))

	in := []any{job{Name: "n", Priority: 1}, foo{A: 1, B: "b"}}
	out, err := r.Marshal(in)
	require.NoError(t, err)
	require.Contains(t, string(out), "!crew/crew.Job")
	require.Contains(t, string(out), "!tagyaml/ns.Foo")

	var got []any
	require.NoError(t, r.Unmarshal(out, &got))
	require.Equal(t, in, got)
}
