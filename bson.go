package statspush

import (
	"bytes"
	"math"
	"sort"
	"time"

	"github.com/evergreen-ci/birch"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// ParseSnapshot decodes a serialized stats snapshot. The snapshot must
// be a JSON object; anything else is a MalformedSnapshotError.
func ParseSnapshot(data []byte) (*Document, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.WithStack(&MalformedSnapshotError{Cause: errors.New("snapshot is empty")})
	}

	var raw bson.D
	if err := bson.UnmarshalExtJSON(data, false, &raw); err != nil {
		return nil, errors.WithStack(&MalformedSnapshotError{Cause: err})
	}

	doc, err := FromBSON(raw)
	if err != nil {
		return nil, errors.WithStack(&MalformedSnapshotError{Cause: err})
	}

	return doc, nil
}

// FromBSON converts a value decoded by the bson package into a
// Document.
func FromBSON(in interface{}) (*Document, error) {
	switch v := in.(type) {
	case nil, bson.Null, bson.Undefined:
		return Null(), nil
	case bool:
		return Bool(v), nil
	case int32:
		return Int(int64(v)), nil
	case int64:
		return Int(v), nil
	case int:
		return Int(int64(v)), nil
	case float64:
		return Float(v), nil
	case float32:
		return Float(float64(v)), nil
	case string:
		return String(v), nil
	case bson.ObjectID:
		return String(v.Hex()), nil
	case bson.DateTime:
		return Int(int64(v)), nil
	case time.Time:
		return Int(v.UnixMilli()), nil
	case bson.Decimal128:
		return String(v.String()), nil
	case bson.D:
		out := Map()
		for _, e := range v {
			val, err := FromBSON(e.Value)
			if err != nil {
				return nil, errors.Wrapf(err, "problem converting field '%s'", e.Key)
			}
			out.Put(e.Key, val)
		}
		return out, nil
	case bson.M:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		out := Map()
		for _, k := range keys {
			val, err := FromBSON(v[k])
			if err != nil {
				return nil, errors.Wrapf(err, "problem converting field '%s'", k)
			}
			out.Put(k, val)
		}
		return out, nil
	case bson.A:
		return fromBSONSlice(v)
	case []interface{}:
		return fromBSONSlice(v)
	default:
		return nil, errors.Errorf("cannot convert value of type %T to a document", in)
	}
}

func fromBSONSlice(in []interface{}) (*Document, error) {
	out := Array()
	for idx, it := range in {
		val, err := FromBSON(it)
		if err != nil {
			return nil, errors.Wrapf(err, "problem converting item %d", idx)
		}
		out.Append(val)
	}
	return out, nil
}

// ToBSON converts the document into bson package types: mappings
// become bson.D, sequences bson.A. Integers that fit are stored as
// int32, matching how the server's own JSON parser types them.
func ToBSON(d *Document) interface{} {
	switch d.Kind() {
	case KindBool:
		return d.b
	case KindInt:
		if d.i >= math.MinInt32 && d.i <= math.MaxInt32 {
			return int32(d.i)
		}
		return d.i
	case KindFloat:
		return d.f
	case KindString:
		return d.s
	case KindMap:
		out := make(bson.D, 0, len(d.elems))
		for _, e := range d.elems {
			out = append(out, bson.E{Key: e.Key, Value: ToBSON(e.Value)})
		}
		return out
	case KindArray:
		out := make(bson.A, 0, len(d.items))
		for _, it := range d.items {
			out = append(out, ToBSON(it))
		}
		return out
	default:
		return nil
	}
}

// MarshalJSON renders the document as relaxed extended JSON, keeping
// mapping order.
func (d *Document) MarshalJSON() ([]byte, error) {
	if d.Kind() == KindMap {
		out, err := bson.MarshalExtJSON(ToBSON(d), false, false)
		return out, errors.WithStack(err)
	}

	// extended JSON is only defined for documents, so wrap other values
	// in a single field document and strip the wrapper
	out, err := bson.MarshalExtJSON(bson.D{{Key: "v", Value: ToBSON(d)}}, false, false)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	prefix := []byte(`{"v":`)
	if !bytes.HasPrefix(out, prefix) || !bytes.HasSuffix(out, []byte("}")) {
		return nil, errors.Errorf("unexpected extended JSON rendering '%s'", out)
	}
	return out[len(prefix) : len(out)-1], nil
}

// ToBirch converts a mapping document into a birch BSON document.
func ToBirch(d *Document) (*birch.Document, error) {
	if d.Kind() != KindMap {
		return nil, errors.Errorf("cannot convert a %s to a BSON document", d.Kind())
	}
	return toBirchDocument(d), nil
}

func toBirchDocument(d *Document) *birch.Document {
	out := birch.NewDocument()
	for _, e := range d.elems {
		out.Append(toBirchElement(e.Key, e.Value))
	}
	return out
}

func toBirchArray(d *Document) *birch.Array {
	vals := make([]*birch.Value, 0, len(d.items))
	for _, it := range d.items {
		vals = append(vals, toBirchValue(it))
	}
	return birch.NewArray(vals...)
}

func toBirchElement(key string, d *Document) *birch.Element {
	switch d.Kind() {
	case KindBool:
		return birch.EC.Boolean(key, d.b)
	case KindInt:
		if d.i >= math.MinInt32 && d.i <= math.MaxInt32 {
			return birch.EC.Int32(key, int32(d.i))
		}
		return birch.EC.Int64(key, d.i)
	case KindFloat:
		return birch.EC.Double(key, d.f)
	case KindString:
		return birch.EC.String(key, d.s)
	case KindMap:
		return birch.EC.SubDocument(key, toBirchDocument(d))
	case KindArray:
		return birch.EC.Array(key, toBirchArray(d))
	default:
		return birch.EC.Null(key)
	}
}

func toBirchValue(d *Document) *birch.Value {
	switch d.Kind() {
	case KindBool:
		return birch.VC.Boolean(d.b)
	case KindInt:
		if d.i >= math.MinInt32 && d.i <= math.MaxInt32 {
			return birch.VC.Int32(int32(d.i))
		}
		return birch.VC.Int64(d.i)
	case KindFloat:
		return birch.VC.Double(d.f)
	case KindString:
		return birch.VC.String(d.s)
	case KindMap:
		return birch.VC.Document(toBirchDocument(d))
	case KindArray:
		return birch.VC.Array(toBirchArray(d))
	default:
		return birch.VC.Null()
	}
}
