package statspush

import (
	"fmt"
	"math"
)

// Kind identifies which variant a Document value holds.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindMap
	KindArray
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "boolean"
	case KindInt:
		return "integer"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindMap:
		return "mapping"
	case KindArray:
		return "sequence"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Document is a structured value: null, boolean, integer, float,
// string, an ordered mapping of strings to documents, or a sequence of
// documents. Stats snapshots and published records are both
// represented as documents.
//
// The zero value is a null document.
type Document struct {
	kind Kind

	b bool
	i int64
	f float64
	s string

	elems []Element
	index map[string]int
	items []*Document
}

// Element is a single key/value pair of a mapping document.
type Element struct {
	Key   string
	Value *Document
}

// Elem is a convenience constructor for mapping elements.
func Elem(key string, value *Document) Element { return Element{Key: key, Value: value} }

func Null() *Document { return &Document{kind: KindNull} }
func Bool(v bool) *Document { return &Document{kind: KindBool, b: v} }
func Int(v int64) *Document { return &Document{kind: KindInt, i: v} }
func Float(v float64) *Document { return &Document{kind: KindFloat, f: v} }
func String(v string) *Document { return &Document{kind: KindString, s: v} }
func Array(items ...*Document) *Document {
	out := &Document{kind: KindArray, items: make([]*Document, 0, len(items))}
	for _, it := range items {
		out.Append(it)
	}
	return out
}

// Map builds a mapping document. Later elements with a repeated key
// replace the value of the earlier element in place.
func Map(elems ...Element) *Document {
	out := &Document{
		kind:  KindMap,
		elems: make([]Element, 0, len(elems)),
		index: make(map[string]int, len(elems)),
	}
	for _, e := range elems {
		out.Put(e.Key, e.Value)
	}
	return out
}

func orNull(d *Document) *Document {
	if d == nil {
		return Null()
	}
	return d
}

// Kind returns the variant of the document. A nil document is null.
func (d *Document) Kind() Kind {
	if d == nil {
		return KindNull
	}
	return d.kind
}

func (d *Document) IsNull() bool { return d.Kind() == KindNull }

func (d *Document) AsBool() (bool, bool) {
	if d.Kind() != KindBool {
		return false, false
	}
	return d.b, true
}

func (d *Document) AsInt() (int64, bool) {
	if d.Kind() != KindInt {
		return 0, false
	}
	return d.i, true
}

func (d *Document) AsFloat() (float64, bool) {
	if d.Kind() != KindFloat {
		return 0, false
	}
	return d.f, true
}

func (d *Document) AsString() (string, bool) {
	if d.Kind() != KindString {
		return "", false
	}
	return d.s, true
}

// Len returns the number of elements of a mapping or items of a
// sequence, and zero for scalars.
func (d *Document) Len() int {
	switch d.Kind() {
	case KindMap:
		return len(d.elems)
	case KindArray:
		return len(d.items)
	default:
		return 0
	}
}

// Elements returns the elements of a mapping in insertion order. The
// returned slice must not be modified.
func (d *Document) Elements() []Element {
	if d.Kind() != KindMap {
		return nil
	}
	return d.elems
}

// Keys returns the keys of a mapping in insertion order.
func (d *Document) Keys() []string {
	if d.Kind() != KindMap {
		return nil
	}
	out := make([]string, len(d.elems))
	for idx, e := range d.elems {
		out[idx] = e.Key
	}
	return out
}

// Get returns the value stored under key in a mapping.
func (d *Document) Get(key string) (*Document, bool) {
	if d.Kind() != KindMap {
		return nil, false
	}
	idx, ok := d.index[key]
	if !ok {
		return nil, false
	}
	return d.elems[idx].Value, true
}

// Put sets key in a mapping, keeping the position of an existing key.
// It returns false when the document is not a mapping.
func (d *Document) Put(key string, value *Document) bool {
	if d.Kind() != KindMap {
		return false
	}
	value = orNull(value)
	if idx, ok := d.index[key]; ok {
		d.elems[idx].Value = value
		return true
	}
	d.index[key] = len(d.elems)
	d.elems = append(d.elems, Element{Key: key, Value: value})
	return true
}

// Delete removes key from a mapping and reports whether it was there.
func (d *Document) Delete(key string) bool {
	if d.Kind() != KindMap {
		return false
	}
	idx, ok := d.index[key]
	if !ok {
		return false
	}
	d.elems = append(d.elems[:idx], d.elems[idx+1:]...)
	delete(d.index, key)
	for i := idx; i < len(d.elems); i++ {
		d.index[d.elems[i].Key] = i
	}
	return true
}

// Items returns the items of a sequence. The returned slice must not
// be modified.
func (d *Document) Items() []*Document {
	if d.Kind() != KindArray {
		return nil
	}
	return d.items
}

// At returns the item at idx of a sequence.
func (d *Document) At(idx int) (*Document, bool) {
	if d.Kind() != KindArray || idx < 0 || idx >= len(d.items) {
		return nil, false
	}
	return d.items[idx], true
}

// Append adds an item to the end of a sequence.
func (d *Document) Append(value *Document) bool {
	if d.Kind() != KindArray {
		return false
	}
	d.items = append(d.items, orNull(value))
	return true
}

// Clone returns a deep copy of the document.
func (d *Document) Clone() *Document {
	if d == nil {
		return Null()
	}
	out := &Document{kind: d.kind, b: d.b, i: d.i, f: d.f, s: d.s}
	switch d.kind {
	case KindMap:
		out.elems = make([]Element, len(d.elems))
		out.index = make(map[string]int, len(d.elems))
		for idx, e := range d.elems {
			out.elems[idx] = Element{Key: e.Key, Value: e.Value.Clone()}
			out.index[e.Key] = idx
		}
	case KindArray:
		out.items = make([]*Document, len(d.items))
		for idx, it := range d.items {
			out.items[idx] = it.Clone()
		}
	}
	return out
}

// Equal compares two documents structurally. Mapping key order is
// significant; NaN floats compare equal to each other.
func (d *Document) Equal(other *Document) bool {
	if d.Kind() != other.Kind() {
		return false
	}
	switch d.Kind() {
	case KindNull:
		return true
	case KindBool:
		return d.b == other.b
	case KindInt:
		return d.i == other.i
	case KindFloat:
		return d.f == other.f || (math.IsNaN(d.f) && math.IsNaN(other.f))
	case KindString:
		return d.s == other.s
	case KindMap:
		if len(d.elems) != len(other.elems) {
			return false
		}
		for idx := range d.elems {
			if d.elems[idx].Key != other.elems[idx].Key {
				return false
			}
			if !d.elems[idx].Value.Equal(other.elems[idx].Value) {
				return false
			}
		}
		return true
	case KindArray:
		if len(d.items) != len(other.items) {
			return false
		}
		for idx := range d.items {
			if !d.items[idx].Equal(other.items[idx]) {
				return false
			}
		}
		return true
	}
	return false
}

// String renders the document as relaxed extended JSON, for logging.
func (d *Document) String() string {
	out, err := d.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("<%s: %v>", d.Kind(), err)
	}
	return string(out)
}
