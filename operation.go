package statspush

import (
	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/pkg/errors"
)

// OpKind distinguishes operations that introduce new structure from
// those that overwrite structure already present in the snapshot.
type OpKind int

const (
	OpAdd OpKind = iota
	OpReplace
)

func (k OpKind) String() string {
	if k == OpReplace {
		return "replace"
	}
	return "add"
}

// Operation sets Value at Path. Key is the metric key it came from.
type Operation struct {
	Kind  OpKind
	Path  Path
	Value *Document
	Key   string
}

// Apply performs the operation on doc.
func (op Operation) Apply(doc *Document) error {
	return errors.Wrapf(doc.SetPath(op.Path, op.Value.Clone()), "problem applying %s for metric '%s'", op.Kind, op.Key)
}

// BuildOperations converts a flat metrics mapping (dotted key to
// {"value": ...} descriptor) into operations against base, in the
// order the metrics appear. Metrics without a value are skipped
// silently; keys that cannot be transcoded, and descriptors that are
// not mappings, are logged and returned as skip errors without
// stopping the batch. base is only probed, never modified.
func BuildOperations(metrics, base *Document) ([]Operation, []error) {
	if metrics.Kind() != KindMap {
		return nil, []error{errors.Errorf("metrics must be a mapping, not a %s", metrics.Kind())}
	}

	var (
		ops     = make([]Operation, 0, metrics.Len())
		skipped []error
		seen    = make(map[string]string, metrics.Len())
	)

	for _, elem := range metrics.Elements() {
		if elem.Value.Kind() != KindMap {
			err := errors.Errorf("metric '%s' descriptor is a %s, not a mapping", elem.Key, elem.Value.Kind())
			grip.Warning(message.WrapError(err, message.Fields{
				"op":  "build metric operations",
				"key": elem.Key,
			}))
			skipped = append(skipped, err)
			continue
		}

		value, ok := elem.Value.Get("value")
		if !ok || value.IsNull() {
			grip.Debug(message.Fields{
				"op":      "build metric operations",
				"message": "metric has no value",
				"key":     elem.Key,
			})
			continue
		}

		path, err := Transcode(elem.Key)
		if err != nil {
			grip.Warning(message.WrapError(err, message.Fields{
				"op":  "build metric operations",
				"key": elem.Key,
			}))
			skipped = append(skipped, err)
			continue
		}

		pointer := path.String()
		if prev, ok := seen[pointer]; ok {
			grip.Warning(message.Fields{
				"op":       "build metric operations",
				"message":  "metrics share a path, the later metric wins",
				"path":     pointer,
				"key":      elem.Key,
				"previous": prev,
			})
		}
		seen[pointer] = elem.Key

		kind := OpAdd
		if base.Exists(path) {
			kind = OpReplace
		}

		ops = append(ops, Operation{
			Kind:  kind,
			Path:  path,
			Value: value,
			Key:   elem.Key,
		})
	}

	return ops, skipped
}
