package tagyaml

import (
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"

	"github.com/Jel1ySpot/tagyaml/internal/structmap"
)

// aliasExpansionLimit caps the number of alias expansions in a single
// document, the way the engine caps expansion when decoding directly.
const aliasExpansionLimit = 10000

// decodeState tracks anchored nodes currently being walked, so a
// document whose anchor refers to itself fails instead of recursing
// forever, and counts alias expansions against aliasExpansionLimit.
type decodeState struct {
	inFlight   map[*yaml.Node]bool
	expansions int
}

func newDecodeState() *decodeState {
	return &decodeState{inFlight: make(map[*yaml.Node]bool)}
}

// Unmarshal parses a YAML document and stores the result in out.
// Nodes tagged with a registered tag are replaced by reconstructed
// objects of the registered type; everything else decodes the way the
// engine would decode it.
func Unmarshal(data []byte, out any) error { return c.Unmarshal(data, out) }

func (r *Registry) Unmarshal(data []byte, out any) error {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return err
	}
	if doc.Kind == 0 { // empty document
		return assign(nil, out, r.strict)
	}
	v, err := r.decodeNode(&doc, newDecodeState())
	if err != nil {
		return err
	}
	return assign(v, out, r.strict)
}

// Decode reads the next YAML document from rd and stores it in out.
func Decode(rd io.Reader, out any) error { return c.Decode(rd, out) }

func (r *Registry) Decode(rd io.Reader, out any) error {
	var doc yaml.Node
	if err := yaml.NewDecoder(rd).Decode(&doc); err != nil {
		return err
	}
	v, err := r.decodeNode(&doc, newDecodeState())
	if err != nil {
		return err
	}
	return assign(v, out, r.strict)
}

func (r *Registry) decodeNode(n *yaml.Node, st *decodeState) (any, error) {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil, nil
		}
		return r.decodeNode(n.Content[0], st)
	case yaml.AliasNode:
		if st.inFlight[n.Alias] {
			return nil, AliasLoopError(n.Value)
		}
		st.expansions++
		if st.expansions > aliasExpansionLimit {
			return nil, AliasLimitError{}
		}
		return r.decodeNode(n.Alias, st)
	}

	if n.Anchor != "" {
		st.inFlight[n] = true
		defer delete(st.inFlight, n)
	}

	if suffix, ok := strings.CutPrefix(n.Tag, r.root); ok {
		e, found := r.bySuffix[suffix]
		if !found {
			return nil, UnknownTagError{Prefix: r.root, Suffix: suffix}
		}
		return r.decodeEntry(e, suffix, n, st)
	}
	if ce, suffix, ok := r.codecFor(n.Tag); ok {
		return r.decodeWithCodec(ce, suffix, n, st)
	}

	switch n.Kind {
	case yaml.MappingNode:
		return r.decodeMapping(n, st)
	case yaml.SequenceNode:
		return r.decodeSequence(n, st)
	}
	var v any
	if err := n.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// decodeEntry reconstructs an instance of a registered type. Failures
// while building the object come back wrapped with the tag, the type
// and the document line, so callers get something actionable instead
// of a bare reflection error.
func (r *Registry) decodeEntry(e *entry, suffix string, n *yaml.Node, st *decodeState) (any, error) {
	tag := r.root + e.suffix
	value, err := r.nodeValue(n, st)
	if err != nil {
		return nil, err
	}

	if e.decode != nil {
		obj, err := e.decode(suffix, value)
		if err != nil {
			return nil, DecodeError{Tag: tag, Type: e.typ.String(), Line: n.Line, err: err}
		}
		return obj, nil
	}

	p := reflect.New(e.typ)
	if u, ok := p.Interface().(Unmarshaler); ok {
		if err := u.UnmarshalTagYAML(suffix, value); err != nil {
			return nil, DecodeError{Tag: tag, Type: e.typ.String(), Line: n.Line, err: err}
		}
		return e.result(p), nil
	}

	m, ok := value.(map[string]any)
	if !ok {
		return nil, ShapeError{Tag: tag, Shape: shapeOf(n)}
	}
	if err := structmap.FromMap(m, p.Interface(), r.strict); err != nil {
		return nil, DecodeError{Tag: tag, Type: e.typ.String(), Line: n.Line, err: err}
	}
	return e.result(p), nil
}

func (r *Registry) decodeWithCodec(ce *codecEntry, suffix string, n *yaml.Node, st *decodeState) (any, error) {
	if !ce.codec.Supports(suffix) {
		return nil, UnknownTagError{Prefix: ce.prefix, Suffix: suffix}
	}
	value, err := r.nodeValue(n, st)
	if err != nil {
		return nil, err
	}
	obj, err := ce.codec.Decode(suffix, value)
	if err != nil {
		var shapeErr ShapeError
		if errors.As(err, &shapeErr) {
			return nil, err
		}
		return nil, DecodeError{Tag: ce.prefix + suffix, Type: fmt.Sprintf("%T", ce.codec), Line: n.Line, err: err}
	}
	return obj, nil
}

// result returns the reconstructed object with the same pointer-ness
// as the registered prototype.
func (e *entry) result(p reflect.Value) any {
	if e.ptr {
		return p.Interface()
	}
	return p.Elem().Interface()
}

// nodeValue converts a node into the value shape handed to decode
// handlers: map[string]any, []any, or a plain scalar.
func (r *Registry) nodeValue(n *yaml.Node, st *decodeState) (any, error) {
	switch n.Kind {
	case yaml.MappingNode:
		return r.decodeMapping(n, st)
	case yaml.SequenceNode:
		return r.decodeSequence(n, st)
	case yaml.ScalarNode:
		plain := *n
		plain.Tag = "" // re-resolve without the custom tag
		var v any
		if err := plain.Decode(&v); err != nil {
			return nil, err
		}
		return v, nil
	}
	return nil, fmt.Errorf("unexpected yaml node kind %d at line %d", n.Kind, n.Line)
}

func (r *Registry) decodeMapping(n *yaml.Node, st *decodeState) (map[string]any, error) {
	m := make(map[string]any, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		kv, err := r.decodeNode(n.Content[i], st)
		if err != nil {
			return nil, err
		}
		key, err := cast.ToStringE(kv)
		if err != nil {
			return nil, fmt.Errorf("mapping key at line %d: %w", n.Content[i].Line, err)
		}
		vv, err := r.decodeNode(n.Content[i+1], st)
		if err != nil {
			return nil, err
		}
		m[key] = vv
	}
	return m, nil
}

func (r *Registry) decodeSequence(n *yaml.Node, st *decodeState) ([]any, error) {
	seq := make([]any, 0, len(n.Content))
	for _, cn := range n.Content {
		v, err := r.decodeNode(cn, st)
		if err != nil {
			return nil, err
		}
		seq = append(seq, v)
	}
	return seq, nil
}

func shapeOf(n *yaml.Node) string {
	switch n.Kind {
	case yaml.MappingNode:
		return "mapping"
	case yaml.SequenceNode:
		return "sequence"
	case yaml.ScalarNode:
		return "scalar"
	}
	return "unknown"
}

// assign stores a decoded value into out, which must be a non-nil
// pointer. Values that are not directly assignable go through the
// same field-matching construction as registered mappings.
func assign(v any, out any, strict bool) error {
	rv := reflect.ValueOf(out)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return fmt.Errorf("cannot unmarshal into %T: a non-nil pointer is required", out)
	}
	elem := rv.Elem()
	if v == nil {
		elem.Set(reflect.Zero(elem.Type()))
		return nil
	}
	if val := reflect.ValueOf(v); val.Type().AssignableTo(elem.Type()) {
		elem.Set(val)
		return nil
	}
	return structmap.Assign(v, out, strict)
}
