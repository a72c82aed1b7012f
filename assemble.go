package statspush

import (
	"os"

	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/pkg/errors"
)

const metricsField = "metrics"

// Identity is stamped into every published document.
type Identity struct {
	// ID identifies the server process, conventionally the name of
	// its first socket.
	ID       string
	Hostname string
	// ProcName is only stamped when non-empty.
	ProcName string
}

// LocalIdentity builds an identity for this host.
func LocalIdentity(id, procName string) (Identity, error) {
	host, err := os.Hostname()
	if err != nil {
		return Identity{}, errors.Wrap(err, "problem resolving hostname")
	}

	return Identity{ID: id, Hostname: host, ProcName: procName}, nil
}

func (i Identity) stamp(doc *Document) {
	doc.Put("id", String(i.ID))
	doc.Put("hostname", String(i.Hostname))
	if i.ProcName != "" {
		doc.Put("procname", String(i.ProcName))
	}
}

// Assembler turns a raw stats snapshot into the document that is
// published. An Assembler is read-only after construction and may be
// shared between concurrent cycles.
type Assembler struct {
	Identity  Identity
	Overrides []Override
}

// AssemblyReport describes what happened during one assembly.
type AssemblyReport struct {
	// Operations lists the metric operations applied to the document.
	Operations []Operation
	// Skipped holds one error per metric, override, or operation that
	// could not be applied.
	Skipped []error
	// MetricsRemoved is true when the flat metrics mapping was merged
	// into the document and removed from it.
	MetricsRemoved bool
}

// Assemble builds the published document from snapshot. The snapshot
// itself is not modified. Steps run strictly in order: identity fields,
// custom overrides, then transcoded metrics, so metrics take precedence
// over overrides at a shared path. Per-item failures are logged and
// recorded in the report; only a snapshot that is not a mapping fails
// the whole call.
func (a *Assembler) Assemble(snapshot *Document) (*Document, *AssemblyReport, error) {
	if snapshot.Kind() != KindMap {
		return nil, nil, errors.WithStack(&MalformedSnapshotError{
			Cause: errors.Errorf("snapshot is a %s, not a mapping", snapshot.Kind()),
		})
	}

	doc := snapshot.Clone()
	report := &AssemblyReport{}

	a.Identity.stamp(doc)

	for _, o := range a.Overrides {
		if err := doc.SetPath(o.Path, o.Value.Clone()); err != nil {
			grip.Warning(message.WrapError(err, message.Fields{
				"op":       "apply custom override",
				"override": o.Declaration,
				"path":     o.Path.String(),
			}))
			report.Skipped = append(report.Skipped, err)
		}
	}

	metrics, ok := doc.Get(metricsField)
	switch {
	case !ok:
		return doc, report, nil
	case metrics.Kind() != KindMap:
		// leave data we cannot interpret in place rather than drop it
		err := errors.Errorf("metrics field is a %s, not a mapping", metrics.Kind())
		grip.Warning(message.WrapError(err, message.Fields{
			"op": "assemble stats document",
		}))
		report.Skipped = append(report.Skipped, err)
		return doc, report, nil
	case metrics.Len() == 0:
		doc.Delete(metricsField)
		report.MetricsRemoved = true
		return doc, report, nil
	}

	ops, skipped := BuildOperations(metrics, doc)
	report.Skipped = append(report.Skipped, skipped...)

	for _, op := range ops {
		if err := op.Apply(doc); err != nil {
			grip.Warning(message.WrapError(err, message.Fields{
				"op":   "apply metric operation",
				"key":  op.Key,
				"kind": op.Kind.String(),
				"path": op.Path.String(),
			}))
			report.Skipped = append(report.Skipped, err)
			continue
		}
		report.Operations = append(report.Operations, op)
	}

	doc.Delete(metricsField)
	report.MetricsRemoved = true

	return doc, report, nil
}
