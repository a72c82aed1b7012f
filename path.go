package statspush

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Segment is one step of a Path: either a field name of a mapping or
// an index into a sequence.
type Segment struct {
	name    string
	index   int
	isIndex bool
}

func Key(name string) Segment { return Segment{name: name} }
func Index(idx int) Segment { return Segment{index: idx, isIndex: true} }

func (s Segment) IsIndex() bool { return s.isIndex }
func (s Segment) Name() string { return s.name }
func (s Segment) Idx() int { return s.index }

func (s Segment) String() string {
	if s.isIndex {
		return strconv.Itoa(s.index)
	}
	return pointerEscaper.Replace(s.name)
}

var (
	pointerEscaper   = strings.NewReplacer("~", "~0", "/", "~1")
	pointerUnescaper = strings.NewReplacer("~1", "/", "~0", "~")
)

// Path addresses a single location within a Document. Paths are
// values; none of the methods modify the receiver.
type Path []Segment

// String renders the path in JSON pointer notation (RFC 6901), e.g.
// "/workers/2/cores/1/requests".
func (p Path) String() string {
	var b strings.Builder
	for _, seg := range p {
		b.WriteByte('/')
		b.WriteString(seg.String())
	}
	return b.String()
}

// Append returns a new path with the segments added.
func (p Path) Append(segs ...Segment) Path {
	out := make(Path, 0, len(p)+len(segs))
	out = append(out, p...)
	return append(out, segs...)
}

func (p Path) Equal(other Path) bool {
	if len(p) != len(other) {
		return false
	}
	for idx := range p {
		if p[idx] != other[idx] {
			return false
		}
	}
	return true
}

// Validate checks that the path addresses something below the root:
// it is non-empty, has no empty field names, and no negative indexes.
func (p Path) Validate() error {
	if len(p) == 0 {
		return errors.New("path is empty")
	}
	for idx, seg := range p {
		if seg.isIndex && seg.index < 0 {
			return errors.Errorf("segment %d has negative index %d", idx, seg.index)
		}
		if !seg.isIndex && seg.name == "" {
			return errors.Errorf("segment %d is an empty field name", idx)
		}
	}
	return nil
}

// ParsePointer parses a JSON pointer. Segments made only of digits
// become sequence indexes; as in RFC 6901, an index other than 0 may
// not start with a zero.
func ParsePointer(ptr string) (Path, error) {
	if !strings.HasPrefix(ptr, "/") {
		return nil, errors.Errorf("pointer '%s' must start with '/'", ptr)
	}

	parts := strings.Split(ptr[1:], "/")
	out := make(Path, 0, len(parts))
	for _, part := range parts {
		if isDigits(part) {
			if len(part) > 1 && part[0] == '0' {
				return nil, errors.Errorf("index '%s' in pointer '%s' has a leading zero", part, ptr)
			}
			idx, err := strconv.Atoi(part)
			if err != nil {
				return nil, errors.Wrapf(err, "invalid index '%s' in pointer '%s'", part, ptr)
			}
			out = append(out, Index(idx))
			continue
		}
		out = append(out, Key(pointerUnescaper.Replace(part)))
	}

	if err := out.Validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid pointer '%s'", ptr)
	}
	return out, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// Lookup returns the value addressed by p. It never modifies d.
func (d *Document) Lookup(p Path) (*Document, bool) {
	cur := d
	for _, seg := range p {
		var ok bool
		if seg.isIndex {
			cur, ok = cur.At(seg.index)
		} else {
			cur, ok = cur.Get(seg.name)
		}
		if !ok {
			return nil, false
		}
	}
	return cur, cur != nil
}

// Exists reports whether anything is stored at p.
func (d *Document) Exists(p Path) bool {
	_, ok := d.Lookup(p)
	return ok
}

// SetPath stores value at p, creating intermediate mappings and
// sequences as needed. Only the addressed leaf changes: sibling data is
// never discarded. A sequence may grow by one item at its end but is
// never padded; traversing through a scalar, or indexing past the end
// of a sequence, is a PathApplyError. On error the document is left
// unmodified.
func (d *Document) SetPath(p Path, value *Document) error {
	if d == nil {
		return newPathApplyError(p, "document is nil")
	}
	if err := p.Validate(); err != nil {
		return newPathApplyError(p, "%v", err)
	}
	if err := d.checkPath(p); err != nil {
		return err
	}

	cur := d
	for idx, seg := range p {
		last := idx == len(p)-1

		if seg.isIndex {
			if seg.index == len(cur.items) {
				if last {
					cur.items = append(cur.items, orNull(value))
					return nil
				}
				child := containerFor(p[idx+1])
				cur.items = append(cur.items, child)
				cur = child
				continue
			}
			if last {
				cur.items[seg.index] = orNull(value)
				return nil
			}
			cur = cur.items[seg.index]
			continue
		}

		if last {
			cur.Put(seg.name, value)
			return nil
		}
		child, ok := cur.Get(seg.name)
		if !ok {
			child = containerFor(p[idx+1])
			cur.Put(seg.name, child)
		}
		cur = child
	}

	return nil
}

// checkPath verifies that SetPath can succeed without touching d.
func (d *Document) checkPath(p Path) error {
	cur := d
	for idx, seg := range p {
		if cur == nil {
			// everything from here on is created; a new sequence
			// can only receive its first item
			if seg.isIndex && seg.index != 0 {
				return newPathApplyError(p, "index %d of segment %d is past the end of a new sequence", seg.index, idx)
			}
			continue
		}

		if seg.isIndex {
			if cur.Kind() != KindArray {
				return newPathApplyError(p, "segment %d indexes into a %s", idx, cur.Kind())
			}
			if seg.index > len(cur.items) {
				return newPathApplyError(p, "index %d is past the end of a sequence of length %d", seg.index, len(cur.items))
			}
			cur, _ = cur.At(seg.index)
			continue
		}

		if cur.Kind() != KindMap {
			return newPathApplyError(p, "segment %d ('%s') traverses a %s", idx, seg.name, cur.Kind())
		}
		cur, _ = cur.Get(seg.name)
	}
	return nil
}

func containerFor(next Segment) *Document {
	if next.isIndex {
		return Array()
	}
	return Map()
}
