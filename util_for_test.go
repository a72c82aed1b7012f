package statspush

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

const uwsgiSnapshot = `{
	"version": "2.0.21",
	"listen_queue": 0,
	"pid": 100,
	"workers": [
		{"id": 1, "pid": 101, "requests": 10, "cores": [{"id": 0, "requests": 10}]},
		{"id": 2, "pid": 102, "requests": 5, "cores": [{"id": 0, "requests": 5}]}
	],
	"metrics": {
		"worker.0.requests": {"type": "counter", "value": 15},
		"worker.1.requests": {"type": "counter", "value": 11},
		"worker.2.core.0.requests": {"type": "counter", "value": 6},
		"worker.1.plugin.cheaper_busyness.busyness": {"type": "gauge", "value": 42},
		"worker.2.avg_response_time": {"type": "gauge", "value": 1234},
		"core.routed_signals": {"type": "counter", "value": null},
		"bad..key": {"type": "gauge", "value": 1}
	}
}`

func metric(value *Document) *Document {
	return Map(Elem("type", String("gauge")), Elem("value", value))
}

func mustParse(data string) *Document {
	doc, err := ParseSnapshot([]byte(data))
	if err != nil {
		panic(err)
	}
	return doc
}

func mustPath(ptr string) Path {
	p, err := ParsePointer(ptr)
	if err != nil {
		panic(err)
	}
	return p
}

func lookupInt(doc *Document, ptr string) (int64, bool) {
	val, ok := doc.Lookup(mustPath(ptr))
	if !ok {
		return 0, false
	}
	return val.AsInt()
}

type mockPersister struct {
	mu      sync.Mutex
	docs    []*Document
	err     error
	entered chan struct{}
	release chan struct{}
	closed  bool
}

func (p *mockPersister) Publish(ctx context.Context, doc *Document) error {
	if p.entered != nil {
		p.entered <- struct{}{}
	}
	if p.release != nil {
		select {
		case <-p.release:
		case <-ctx.Done():
			return errors.WithStack(ctx.Err())
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.docs = append(p.docs, doc)
	return nil
}

func (p *mockPersister) Close(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *mockPersister) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.docs)
}

func (p *mockPersister) Last() *Document {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.docs) == 0 {
		return nil
	}
	return p.docs[len(p.docs)-1]
}
