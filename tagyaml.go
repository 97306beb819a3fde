package tagyaml

import (
	"fmt"
	"reflect"
	"strings"
)

// DefaultRoot is the tag namespace used by registries created without
// WithRoot. Every type registered with Register is tagged
// !tagyaml/<suffix> in the emitted document.
const DefaultRoot = "!tagyaml/"

// BadTagError denotes registering a tag suffix that is not usable,
// for example one that already carries the leading '!'.
type BadTagError string

// Error returns the formatted registration error.
func (str BadTagError) Error() string {
	return fmt.Sprintf("Bad Tag Suffix %q: the suffix must not contain the leading '!'", string(str))
}

// DuplicateTagError denotes registering a tag suffix that is already
// owned by another type in the same registry.
type DuplicateTagError struct {
	Suffix   string
	Existing string
}

// Error returns the formatted registration error.
func (e DuplicateTagError) Error() string {
	return fmt.Sprintf("Tag Suffix %q Already Registered for type %s", e.Suffix, e.Existing)
}

// DuplicatePrefixError denotes registering a codec whose prefix
// collides with the registry root or with another codec. Nested
// prefixes count as collisions: a tag can only ever match the
// shorter one during decoding, so the longer one would be dead on
// arrival.
type DuplicatePrefixError string

// Error returns the formatted registration error.
func (str DuplicatePrefixError) Error() string {
	return fmt.Sprintf("Tag Prefix %q Conflicts with an Already Registered Prefix", string(str))
}

// AlreadyRegisteredError denotes registering a type that already
// belongs to this registry under another tag.
type AlreadyRegisteredError string

// Error returns the formatted registration error.
func (str AlreadyRegisteredError) Error() string {
	return fmt.Sprintf("Type %s Already Registered", string(str))
}

// UnknownTagError denotes decoding a document whose tag carries a
// registered prefix but a suffix no type was registered for.
type UnknownTagError struct {
	Prefix string
	Suffix string
}

// Error returns the formatted decoding error.
func (e UnknownTagError) Error() string {
	return fmt.Sprintf("No Type Registered for Tag Suffix %q (prefix %q)", e.Suffix, e.Prefix)
}

// AliasLoopError denotes decoding a document whose anchored node
// contains an alias to itself.
type AliasLoopError string

// Error returns the formatted decoding error.
func (str AliasLoopError) Error() string {
	return fmt.Sprintf("Anchor %q Value Contains Itself", string(str))
}

// AliasLimitError denotes decoding a document whose aliases expand
// past the per-document limit.
type AliasLimitError struct{}

// Error returns the formatted decoding error.
func (AliasLimitError) Error() string {
	return "Excessive Alias Expansion in Document"
}

// ShapeError denotes decoding a node whose shape (sequence or scalar)
// has no handler for the resolved type.
type ShapeError struct {
	Tag   string
	Shape string
}

// Error returns the formatted decoding error.
func (e ShapeError) Error() string {
	return fmt.Sprintf("Unsupported Node Shape %q for Tag %q: provide a decoder that accepts this shape", e.Shape, e.Tag)
}

// DecodeError wraps a failure while reconstructing an object from a
// decoded node, adding the tag, target type and document line.
type DecodeError struct {
	Tag  string
	Type string
	Line int
	err  error
}

// Error returns the formatted decoding error.
func (e DecodeError) Error() string {
	return fmt.Sprintf("Decoding Tag %q into %s (line %d) Failed: %v", e.Tag, e.Type, e.Line, e.err)
}

// Unwrap returns the underlying construction error.
func (e DecodeError) Unwrap() error { return e.err }

// EncodeFunc replaces the default attribute projection for a registered
// type. It may return a mapping, a sequence or a scalar value.
type EncodeFunc func(v any) (any, error)

// DecodeFunc replaces the default construction for a registered type.
// It receives the tag suffix found in the document and the decoded
// node value (map[string]any, []any or a scalar).
type DecodeFunc func(suffix string, value any) (any, error)

// Marshaler is implemented by registered types that control their own
// representation. It may return a mapping, a sequence or a scalar.
type Marshaler interface {
	MarshalTagYAML() (any, error)
}

// Unmarshaler is implemented (with a pointer receiver) by registered
// types that control their own construction from a decoded node value.
type Unmarshaler interface {
	UnmarshalTagYAML(suffix string, value any) error
}

var c *Registry

func init() {
	c = New()
}

type entry struct {
	suffix string
	typ    reflect.Type // named base type, pointers stripped
	ptr    bool         // prototype was a pointer
	encode EncodeFunc
	decode DecodeFunc
}

type codecEntry struct {
	prefix string
	codec  Codec
}

// Registry maps a set of types to a set of namespaced tags and owns
// the encode/decode dispatch for both. Registration must happen before
// any Marshal/Unmarshal call that depends on it; a Registry is safe
// for concurrent reads once registration is done.
type Registry struct {
	root   string
	strict bool

	logger func(format string, args ...interface{})

	bySuffix   map[string]*entry
	byType     map[reflect.Type]*entry
	codecs     []*codecEntry
	codecTypes map[reflect.Type]*codecEntry
}

// New returns an initialized Registry instance.
func New(opts ...Option) *Registry {
	r := new(Registry)
	r.root = DefaultRoot
	r.logger = func(format string, args ...interface{}) {
		fmt.Printf(format+"\n", args...)
	}
	r.bySuffix = make(map[string]*entry)
	r.byType = make(map[reflect.Type]*entry)
	r.codecTypes = make(map[reflect.Type]*codecEntry)

	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Option configures a Registry created with New.
type Option func(*Registry)

// WithRoot replaces the default tag namespace. The root is normalized
// to the form "!<name>/".
func WithRoot(root string) Option {
	return func(r *Registry) { r.root = normalizePrefix(root) }
}

// WithLogger replaces the default fmt.Printf logger.
func WithLogger(logger func(format string, args ...interface{})) Option {
	return func(r *Registry) { r.logger = logger }
}

// WithStrictFields makes the default construction fail when a decoded
// mapping carries keys the target type has no field for.
func WithStrictFields(strict bool) Option {
	return func(r *Registry) { r.strict = strict }
}

func SetLogger(logger func(format string, args ...interface{})) {
	c.SetLogger(logger)
}

func (r *Registry) SetLogger(logger func(format string, args ...interface{})) {
	r.logger = logger
}

// Default returns the package-level registry used by the package-level
// functions.
func Default() *Registry {
	return c
}

// Root returns the tag namespace of this registry.
func (r *Registry) Root() string {
	return r.root
}

type registration struct {
	suffix    string
	namespace string
	encode    EncodeFunc
	decode    DecodeFunc
}

// RegisterOption configures a single-type registration.
type RegisterOption func(*registration)

// WithTag sets the complete tag suffix for the type.
func WithTag(suffix string) RegisterOption {
	return func(reg *registration) { reg.suffix = suffix }
}

// WithNamespace derives the tag suffix as "<ns>.<TypeName>".
func WithNamespace(ns string) RegisterOption {
	return func(reg *registration) { reg.namespace = ns }
}

// WithEncoder sets a custom representation function for the type.
func WithEncoder(fn EncodeFunc) RegisterOption {
	return func(reg *registration) { reg.encode = fn }
}

// WithDecoder sets a custom construction function for the type.
func WithDecoder(fn DecodeFunc) RegisterOption {
	return func(reg *registration) { reg.decode = fn }
}

// Register declares a type's participation in the registry under a
// single tag. The tag suffix defaults to the fully qualified type name
// when neither WithTag nor WithNamespace is given. Colliding suffixes
// and doubly registered types are rejected here rather than left to
// surprise during decoding.
func Register(prototype any, opts ...RegisterOption) error { return c.Register(prototype, opts...) }

func (r *Registry) Register(prototype any, opts ...RegisterOption) error {
	t := reflect.TypeOf(prototype)
	if t == nil {
		return fmt.Errorf("cannot register a nil prototype")
	}

	base, ptr := t, false
	if base.Kind() == reflect.Ptr {
		base, ptr = base.Elem(), true
	}
	if base.Name() == "" {
		return fmt.Errorf("cannot register unnamed type %s", base)
	}

	var reg registration
	for _, opt := range opts {
		opt(&reg)
	}

	suffix, err := resolveSuffix(base, reg)
	if err != nil {
		return err
	}

	if old, ok := r.bySuffix[suffix]; ok {
		return DuplicateTagError{Suffix: suffix, Existing: old.typ.String()}
	}
	if _, ok := r.byType[base]; ok {
		return AlreadyRegisteredError(base.String())
	}
	if _, ok := r.codecTypes[base]; ok {
		return AlreadyRegisteredError(base.String())
	}

	e := &entry{suffix: suffix, typ: base, ptr: ptr, encode: reg.encode, decode: reg.decode}
	r.bySuffix[suffix] = e
	r.byType[base] = e
	r.byType[reflect.PtrTo(base)] = e
	return nil
}

func resolveSuffix(base reflect.Type, reg registration) (string, error) {
	if reg.suffix != "" && reg.namespace != "" {
		return "", fmt.Errorf("only one of WithTag and WithNamespace should be provided")
	}
	suffix := reg.suffix
	switch {
	case suffix != "":
	case reg.namespace != "":
		suffix = reg.namespace + "." + base.Name()
	case base.PkgPath() != "":
		suffix = base.PkgPath() + "." + base.Name()
	default:
		suffix = base.Name()
	}
	if strings.HasPrefix(suffix, "!") {
		return "", BadTagError(suffix)
	}
	return suffix, nil
}

// RegisterCodec declares a multi-type codec's participation in the
// registry. The codec owns every tag under its prefix and every type
// it lists.
func RegisterCodec(cd Codec) error { return c.RegisterCodec(cd) }

func (r *Registry) RegisterCodec(cd Codec) error {
	prefix := normalizePrefix(cd.Prefix())
	if prefix == "!/" {
		return BadTagError(cd.Prefix())
	}
	if prefixesOverlap(prefix, r.root) {
		return DuplicatePrefixError(prefix)
	}
	for _, ce := range r.codecs {
		if prefixesOverlap(prefix, ce.prefix) {
			return DuplicatePrefixError(prefix)
		}
	}

	// validate every type first; a failed registration mutates nothing
	bases := make([]reflect.Type, 0, len(cd.Types()))
	seen := make(map[reflect.Type]bool, len(cd.Types()))
	for _, t := range cd.Types() {
		base := t
		if base.Kind() == reflect.Ptr {
			base = base.Elem()
		}
		if seen[base] {
			return AlreadyRegisteredError(base.String())
		}
		if _, ok := r.byType[base]; ok {
			return AlreadyRegisteredError(base.String())
		}
		if _, ok := r.codecTypes[base]; ok {
			return AlreadyRegisteredError(base.String())
		}
		seen[base] = true
		bases = append(bases, base)
	}

	ce := &codecEntry{prefix: prefix, codec: cd}
	for _, base := range bases {
		r.codecTypes[base] = ce
		r.codecTypes[reflect.PtrTo(base)] = ce
	}
	r.codecs = append(r.codecs, ce)
	return nil
}

// prefixesOverlap reports whether one tag prefix is a prefix of the
// other, including equality.
func prefixesOverlap(a, b string) bool {
	return strings.HasPrefix(a, b) || strings.HasPrefix(b, a)
}

// TagFor reports the full tag an instance would be encoded with.
func TagFor(v any) (string, bool) { return c.TagFor(v) }

func (r *Registry) TagFor(v any) (string, bool) {
	t := reflect.TypeOf(v)
	if t == nil {
		return "", false
	}
	if e, ok := r.byType[t]; ok {
		return r.root + e.suffix, true
	}
	if ce, ok := r.codecTypes[t]; ok {
		suffix, _, err := ce.codec.Encode(v)
		if err != nil {
			return "", false
		}
		return ce.prefix + suffix, true
	}
	return "", false
}

// normalizePrefix forces the "!<name>/" form used for tag namespaces.
func normalizePrefix(prefix string) string {
	if !strings.HasPrefix(prefix, "!") {
		prefix = "!" + prefix
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix = prefix + "/"
	}
	return prefix
}
