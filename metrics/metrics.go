// Package metrics reports the Go runtime and process statistics of the
// current process as a stats snapshot, in the same shape a uWSGI
// server produces: a few top-level fields plus a flat "metrics"
// mapping of dotted keys to {"type", "value"} descriptors.
package metrics

import (
	"context"
	"os"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/mongodb/grip/message"
	"github.com/mongodb/statspush"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// Runtime provides an aggregated view of the process.
type Runtime struct {
	Golang  *message.GoRuntimeInfo `json:"golang" bson:"golang"`
	Process *message.ProcessInfo   `json:"process,omitempty" bson:"process,omitempty"`
}

func populateRuntimeData(pid int) *Runtime {
	out := &Runtime{
		Golang:  message.CollectGoStatsTotals().(*message.GoRuntimeInfo),
		Process: message.CollectProcessInfo(int32(pid)).(*message.ProcessInfo),
	}

	base := message.Base{}
	out.Golang.Base = base
	out.Process.Base = base

	return out
}

// RuntimeSource is a statspush.SnapshotSource for this process.
type RuntimeSource struct {
	count int64
}

// Snapshot collects runtime statistics. Every numeric value becomes a
// metric named by its dotted path, e.g. golang.goroutines.
func (s *RuntimeSource) Snapshot(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.WithStack(err)
	}

	pid := os.Getpid()
	data, err := bson.Marshal(populateRuntimeData(pid))
	if err != nil {
		return nil, errors.Wrap(err, "problem converting runtime stats to bson")
	}

	var raw bson.D
	if err = bson.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(err, "problem reading runtime stats")
	}

	stats, err := statspush.FromBSON(raw)
	if err != nil {
		return nil, errors.Wrap(err, "problem reading runtime stats")
	}

	metrics := statspush.Map()
	flatten(metrics, "", stats)

	snapshot := statspush.Map(
		statspush.Elem("version", statspush.String(runtime.Version())),
		statspush.Elem("pid", statspush.Int(int64(pid))),
		statspush.Elem("ts", statspush.Int(time.Now().Unix())),
		statspush.Elem("sample", statspush.Int(atomic.AddInt64(&s.count, 1))),
		statspush.Elem("metrics", metrics),
	)

	out, err := snapshot.MarshalJSON()
	return out, errors.Wrap(err, "problem rendering runtime snapshot")
}

// flatten adds a metric for every numeric value reachable through
// mappings. Sequences are skipped: numeric segments in a metric key
// denote pluralized arrays, which these documents do not have.
func flatten(metrics *statspush.Document, prefix string, doc *statspush.Document) {
	for _, elem := range doc.Elements() {
		key := elem.Key
		if prefix != "" {
			key = prefix + "." + elem.Key
		}

		switch elem.Value.Kind() {
		case statspush.KindMap:
			flatten(metrics, key, elem.Value)
		case statspush.KindInt, statspush.KindFloat:
			metrics.Put(key, statspush.Map(
				statspush.Elem("type", statspush.String("gauge")),
				statspush.Elem("value", elem.Value),
			))
		}
	}
}
