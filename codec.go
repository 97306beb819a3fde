package tagyaml

import "reflect"

// Codec is the multi-type registration style: one object owns a tag
// namespace and a family of types, with shared encode/decode logic
// across all of them. It assumes the same round-trip contract as
// single-type registration, so from the dispatcher's perspective both
// styles present the same (tag -> encode, prefix -> decode) mapping.
//
//   - Prefix returns the namespace owned by the codec, for example
//     "!mycodec/" (normalized to that form at registration).
//   - Supports reports whether a tag suffix found under the prefix
//     belongs to the codec; unsupported suffixes fail decoding with an
//     UnknownTagError.
//   - Types lists the types the codec encodes, used to claim instances
//     anywhere in a value being marshaled.
//   - Encode returns the tag suffix to attach and the representation
//     to serialize (mapping, sequence or scalar).
//   - Decode reconstructs an object from the suffix and the decoded
//     node value (map[string]any, []any or a scalar). Codecs that only
//     handle mappings should return a ShapeError for other shapes.
type Codec interface {
	Prefix() string
	Supports(suffix string) bool
	Types() []reflect.Type
	Encode(v any) (suffix string, repr any, err error)
	Decode(suffix string, value any) (any, error)
}

// codecFor returns the codec entry owning the given full tag, along
// with the extracted suffix.
func (r *Registry) codecFor(tag string) (*codecEntry, string, bool) {
	for _, ce := range r.codecs {
		if len(tag) > len(ce.prefix) && tag[:len(ce.prefix)] == ce.prefix {
			return ce, tag[len(ce.prefix):], true
		}
	}
	return nil, "", false
}
