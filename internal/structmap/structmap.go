package structmap

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-viper/mapstructure/v2"
)

// ToMap projects the exported fields of a struct into a mapping from
// field name to raw field value. Names follow the engine's rules: the
// `yaml` tag when present, the lowercased field name otherwise, with
// "-" skipping the field and "omitempty" skipping zero values.
// Embedded structs are flattened. Field values are kept as-is so the
// caller can keep walking them.
func ToMap(v any) (map[string]any, error) {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil, fmt.Errorf("cannot project nil %s", rv.Type())
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil, fmt.Errorf("cannot project %s as a mapping", rv.Type())
	}

	m := make(map[string]any)
	projectFields(rv, m)
	return m, nil
}

func projectFields(rv reflect.Value, m map[string]any) {
	t := rv.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.PkgPath != "" { // unexported
			continue
		}
		name, omitempty := parseTag(f.Tag.Get("yaml"))
		if name == "-" {
			continue
		}

		fv := rv.Field(i)
		if f.Anonymous && name == "" {
			inner := fv
			for inner.Kind() == reflect.Ptr && !inner.IsNil() {
				inner = inner.Elem()
			}
			if inner.Kind() == reflect.Struct {
				projectFields(inner, m)
				continue
			}
		}
		if omitempty && fv.IsZero() {
			continue
		}
		if name == "" {
			name = strings.ToLower(f.Name)
		}
		m[name] = fv.Interface()
	}
}

func parseTag(tag string) (name string, omitempty bool) {
	parts := strings.Split(tag, ",")
	name = parts[0]
	for _, opt := range parts[1:] {
		if opt == "omitempty" {
			omitempty = true
		}
	}
	return name, omitempty
}

// FromMap populates out (a pointer to struct) from a decoded mapping,
// matching keys to fields by `yaml` tag or case-insensitive name, the
// keyword-argument construction of the round-trip contract. When
// strict is set, keys with no corresponding field fail the decode.
func FromMap(m map[string]any, out any, strict bool) error {
	return Assign(m, out, strict)
}

// Assign stores any decoded value into out with the same field
// matching rules as FromMap, converting container and scalar shapes
// where needed.
func Assign(v any, out any, strict bool) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:     "yaml",
		Result:      out,
		Squash:      true,
		ErrorUnused: strict,
	})
	if err != nil {
		return err
	}
	return dec.Decode(v)
}
