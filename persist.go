package statspush

import (
	"context"
	"io"
	"os"
	"sync"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// Persister durably writes finished documents. Publish is called by at
// most one cycle at a time per pusher, but a persister shared between
// pushers must be safe for concurrent use.
type Persister interface {
	Publish(context.Context, *Document) error
	Close(context.Context) error
}

// MongoPersister inserts each document into a MongoDB collection with
// a freshly generated ObjectID. Connections come from the driver's
// pool; the context passed to Publish bounds both the wait for a
// pooled connection and the write, and the connection is returned to
// the pool on every path out of the insert.
type MongoPersister struct {
	client     *mongo.Client
	collection *mongo.Collection
	name       string
}

// NewMongoPersister creates the client and its connection pool.
// Connections are established lazily by the driver.
func NewMongoPersister(opts Options) (*MongoPersister, error) {
	db, coll, err := ParseCollection(opts.Collection)
	if err != nil {
		return nil, errors.WithStack(&ConfigurationError{Cause: err})
	}

	clientOpts := options.Client().
		ApplyURI(opts.URI()).
		SetAppName("statspush")
	if opts.PoolSize > 0 {
		clientOpts.SetMaxPoolSize(uint64(opts.PoolSize))
	}

	client, err := mongo.Connect(clientOpts)
	if err != nil {
		return nil, errors.WithStack(&ConfigurationError{
			Cause: errors.Wrapf(err, "problem creating client for '%s'", opts.Address),
		})
	}

	return &MongoPersister{
		client:     client,
		collection: client.Database(db).Collection(coll),
		name:       opts.Collection,
	}, nil
}

func (p *MongoPersister) Publish(ctx context.Context, doc *Document) error {
	record, err := newRecord(doc)
	if err != nil {
		return errors.WithStack(err)
	}

	if _, err = p.collection.InsertOne(ctx, record); err != nil {
		return errors.Wrapf(err, "problem inserting stats into '%s'", p.name)
	}
	return nil
}

func (p *MongoPersister) Close(ctx context.Context) error {
	return errors.Wrap(p.client.Disconnect(ctx), "problem disconnecting client")
}

// newRecord converts doc to BSON with a new ObjectID as its first
// field. An _id carried over from the snapshot is replaced.
func newRecord(doc *Document) (bson.D, error) {
	if doc.Kind() != KindMap {
		return nil, errors.Errorf("cannot persist a %s", doc.Kind())
	}

	record := make(bson.D, 0, doc.Len()+1)
	record = append(record, bson.E{Key: "_id", Value: bson.NewObjectID()})
	for _, e := range ToBSON(doc).(bson.D) {
		if e.Key == "_id" {
			continue
		}
		record = append(record, e)
	}
	return record, nil
}

// ArchivePersister appends each document as raw BSON to a writer,
// keeping a local copy of everything published.
type ArchivePersister struct {
	mu     sync.Mutex
	out    io.Writer
	closer io.Closer
}

// NewArchivePersister writes documents to w. Close does not close w.
func NewArchivePersister(w io.Writer) *ArchivePersister {
	return &ArchivePersister{out: w}
}

// OpenArchive appends documents to the file at path, creating it if
// necessary.
func OpenArchive(path string) (*ArchivePersister, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0600)
	if err != nil {
		return nil, errors.Wrapf(err, "problem opening archive '%s'", path)
	}

	return &ArchivePersister{out: f, closer: f}, nil
}

func (p *ArchivePersister) Publish(ctx context.Context, doc *Document) error {
	if err := ctx.Err(); err != nil {
		return errors.WithStack(err)
	}

	bdoc, err := ToBirch(doc)
	if err != nil {
		return errors.Wrap(err, "problem converting document for archive")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, err = bdoc.WriteTo(p.out); err != nil {
		return errors.Wrap(err, "problem writing document to archive")
	}
	return nil
}

func (p *ArchivePersister) Close(_ context.Context) error {
	if p.closer == nil {
		return nil
	}
	return errors.WithStack(p.closer.Close())
}
