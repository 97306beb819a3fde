package tagyaml

import (
	"encoding"
	"fmt"
	"io"
	"reflect"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/Jel1ySpot/tagyaml/internal/structmap"
)

// Marshal serializes v into a YAML document. Instances of registered
// types anywhere in the value are emitted as nodes tagged with their
// registered tag; everything else is delegated to the engine.
func Marshal(v any) ([]byte, error) { return c.Marshal(v) }

func (r *Registry) Marshal(v any) ([]byte, error) {
	node, err := r.encodeValue(v)
	if err != nil {
		return nil, err
	}
	return yaml.Marshal(node)
}

// Encode writes v to w as a YAML document.
func Encode(w io.Writer, v any) error { return c.Encode(w, v) }

func (r *Registry) Encode(w io.Writer, v any) error {
	node, err := r.encodeValue(v)
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(node); err != nil {
		return err
	}
	return enc.Close()
}

func (r *Registry) encodeValue(v any) (*yaml.Node, error) {
	if v == nil {
		return nullNode(), nil
	}

	if e, ok := r.byType[reflect.TypeOf(v)]; ok {
		return r.encodeEntry(e, v)
	}
	if ce, ok := r.codecTypes[reflect.TypeOf(v)]; ok {
		return r.encodeCodec(ce, v)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr:
		if rv.IsNil() {
			return nullNode(), nil
		}
		return r.encodeValue(rv.Elem().Interface())
	case reflect.Map:
		return r.encodeMapping(rv)
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return nullNode(), nil
		}
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			break // byte slices belong to the engine (!!binary)
		}
		return r.encodeSequence(rv)
	case reflect.Struct:
		if _, ok := v.(yaml.Marshaler); ok {
			break
		}
		if _, ok := v.(encoding.TextMarshaler); ok {
			break // time.Time and friends
		}
		m, err := structmap.ToMap(v)
		if err != nil {
			return nil, err
		}
		return r.encodeMapping(reflect.ValueOf(m))
	}

	node := new(yaml.Node)
	if err := node.Encode(v); err != nil {
		return nil, err
	}
	return node, nil
}

// encodeEntry emits a registered instance as its representation
// (custom encoder, Marshaler, or the default attribute mapping) with
// the registered tag attached. Encoder errors propagate unmodified.
func (r *Registry) encodeEntry(e *entry, v any) (*yaml.Node, error) {
	repr, err := r.represent(e, v)
	if err != nil {
		return nil, err
	}
	node, err := r.encodeValue(repr)
	if err != nil {
		return nil, err
	}
	node.Tag = r.root + e.suffix
	return node, nil
}

func (r *Registry) represent(e *entry, v any) (any, error) {
	if e.encode != nil {
		return e.encode(v)
	}
	if m, ok := v.(Marshaler); ok {
		return m.MarshalTagYAML()
	}
	return structmap.ToMap(v)
}

func (r *Registry) encodeCodec(ce *codecEntry, v any) (*yaml.Node, error) {
	suffix, repr, err := ce.codec.Encode(v)
	if err != nil {
		return nil, err
	}
	node, err := r.encodeValue(repr)
	if err != nil {
		return nil, err
	}
	node.Tag = ce.prefix + suffix
	return node, nil
}

// encodeMapping walks a map with keys in sorted order, so output is
// deterministic and nested registered values are found.
func (r *Registry) encodeMapping(rv reflect.Value) (*yaml.Node, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}

	keys := rv.MapKeys()
	sort.Slice(keys, func(i, j int) bool {
		return fmt.Sprint(keys[i].Interface()) < fmt.Sprint(keys[j].Interface())
	})

	for _, k := range keys {
		kn := new(yaml.Node)
		if err := kn.Encode(k.Interface()); err != nil {
			return nil, err
		}
		vn, err := r.encodeValue(rv.MapIndex(k).Interface())
		if err != nil {
			return nil, err
		}
		node.Content = append(node.Content, kn, vn)
	}
	return node, nil
}

func (r *Registry) encodeSequence(rv reflect.Value) (*yaml.Node, error) {
	node := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
	for i := 0; i < rv.Len(); i++ {
		vn, err := r.encodeValue(rv.Index(i).Interface())
		if err != nil {
			return nil, err
		}
		node.Content = append(node.Content, vn)
	}
	return node, nil
}

func nullNode() *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}
}
