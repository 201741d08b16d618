// Package tag holds the immutable value types shared across the push
// engine: tag identifiers, tag values, and the query-result envelope
// that carries a value from ingress to a subscriber.
package tag

import (
	"strings"
	"time"
)

// Identifier names a tag. Equality (Equal) is over Id, compared
// ordinally; map lookups go through Key, which folds Id to lower case.
// Name is metadata only, carried for display.
type Identifier struct {
	Id   string
	Name string
}

// Equal compares two identifiers by Id, ordinal (case-sensitive).
func (i Identifier) Equal(other Identifier) bool {
	return i.Id == other.Id
}

// Key returns the cache/index lookup key for this identifier.
// Case-insensitive id lookup happens here, so every map keyed by tag
// goes through the same normalization.
func (i Identifier) Key() string {
	return strings.ToLower(i.Id)
}

// StatusCode mirrors the quality code carried alongside a sample.
type StatusCode int

const (
	StatusGood StatusCode = iota
	StatusUncertain
	StatusBad
)

// VariantKind tags which field of Variant is populated.
type VariantKind int

const (
	VariantKindNumeric VariantKind = iota
	VariantKindText
	VariantKindBoolean
	VariantKindComposite
)

// Variant carries one of a tag's possible payload shapes. Exactly one
// of the typed fields is meaningful, selected by Kind.
type Variant struct {
	Kind      VariantKind
	Numeric   float64
	Text      string
	Boolean   bool
	Composite map[string]any
}

func NumericVariant(v float64) Variant { return Variant{Kind: VariantKindNumeric, Numeric: v} }
func TextVariant(v string) Variant     { return Variant{Kind: VariantKindText, Text: v} }
func BooleanVariant(v bool) Variant    { return Variant{Kind: VariantKindBoolean, Boolean: v} }
func CompositeVariant(v map[string]any) Variant {
	cp := make(map[string]any, len(v))
	for k, val := range v {
		cp[k] = val
	}
	return Variant{Kind: VariantKindComposite, Composite: cp}
}

// Property is one (name, value) pair of a TagValue's ordered property
// list, e.g. engineering-unit metadata or a historian annotation.
type Property struct {
	Name  string
	Value any
}

// Value is an immutable, fully-built sample. Construct it via Builder;
// the zero Value is not meaningful on its own.
type Value struct {
	UtcSampleTime time.Time
	Value         Variant
	Status        StatusCode
	Units         string
	Notes         string
	Error         string
	Properties    []Property
}

// Builder assembles a Value, deep-copying the property list on Build
// and coercing UtcSampleTime to UTC.
type Builder struct {
	v Value
}

func NewBuilder() *Builder {
	return &Builder{v: Value{UtcSampleTime: time.Now().UTC()}}
}

func (b *Builder) WithSampleTime(t time.Time) *Builder {
	b.v.UtcSampleTime = t.UTC()
	return b
}

func (b *Builder) WithValue(v Variant) *Builder {
	b.v.Value = v
	return b
}

func (b *Builder) WithStatus(s StatusCode) *Builder {
	b.v.Status = s
	return b
}

func (b *Builder) WithUnits(u string) *Builder {
	b.v.Units = u
	return b
}

func (b *Builder) WithNotes(n string) *Builder {
	b.v.Notes = n
	return b
}

// WithError records an error note on the value and forces Status to
// Bad, per the invariant: a non-empty Error always implies Bad status.
func (b *Builder) WithError(e string) *Builder {
	b.v.Error = e
	if e != "" {
		b.v.Status = StatusBad
	}
	return b
}

func (b *Builder) WithProperty(name string, value any) *Builder {
	b.v.Properties = append(b.v.Properties, Property{Name: name, Value: value})
	return b
}

// Build returns the finished, immutable Value. The property list is
// deep-copied so later mutation of the builder (or reuse) cannot leak
// into a previously built Value.
func (b *Builder) Build() Value {
	out := b.v
	if len(b.v.Properties) > 0 {
		out.Properties = make([]Property, len(b.v.Properties))
		copy(out.Properties, b.v.Properties)
	}
	if out.Error != "" {
		out.Status = StatusBad
	}
	return out
}

// QueryResult is the envelope a producer submits and a subscriber
// receives: a tag identity plus the value sampled for it. Produced at
// ingress and kept referentially stable through the pipeline — nothing
// downstream of ingress mutates a QueryResult.
type QueryResult struct {
	TagId   string
	TagName string
	Value   Value
}

// Identifier reconstructs the Identifier this result was produced for.
func (r QueryResult) Identifier() Identifier {
	return Identifier{Id: r.TagId, Name: r.TagName}
}
