package statspush

import (
	"strings"
	"time"

	"github.com/mongodb/grip"
	"github.com/pkg/errors"
)

const (
	DefaultCollection     = "uwsgi.stats"
	DefaultFrequency      = 60 * time.Second
	DefaultPublishTimeout = 10 * time.Second
	DefaultPoolSize       = 4
)

// Options configure one publishing target. Build them once at startup,
// call Validate, and treat them as immutable afterwards.
type Options struct {
	// Address of the MongoDB deployment: host[:port] or a complete
	// mongodb:// or mongodb+srv:// connection string.
	Address string
	// Collection in the form <database>.<collection>.
	Collection string
	// Frequency of publish cycles, in whole seconds.
	Frequency time.Duration
	// PublishTimeout bounds reading one snapshot, and separately
	// acquiring a pooled connection and writing one document.
	PublishTimeout time.Duration
	PoolSize       int
	Verbose        bool
	// Custom and CustomInt hold <key>=<value> override declarations.
	Custom    []string
	CustomInt []string
	// TimestampField, when set, receives the cycle time in
	// milliseconds since the epoch in every published document.
	TimestampField string
}

// MakeDefaultOptions returns options for address with every other
// setting at its default.
func MakeDefaultOptions(address string) Options {
	return Options{
		Address:        address,
		Collection:     DefaultCollection,
		Frequency:      DefaultFrequency,
		PublishTimeout: DefaultPublishTimeout,
		PoolSize:       DefaultPoolSize,
	}
}

// Validate checks the options and fills in defaults for zero values.
// Errors are ConfigurationErrors.
func (opts *Options) Validate() error {
	if opts.Collection == "" {
		opts.Collection = DefaultCollection
	}
	if opts.Frequency == 0 {
		opts.Frequency = DefaultFrequency
	}
	if opts.PublishTimeout == 0 {
		opts.PublishTimeout = DefaultPublishTimeout
	}
	if opts.PoolSize == 0 {
		opts.PoolSize = DefaultPoolSize
	}

	catcher := grip.NewBasicCatcher()
	catcher.NewWhen(strings.TrimSpace(opts.Address) == "", "address must be specified")
	_, _, err := ParseCollection(opts.Collection)
	catcher.Add(err)
	catcher.NewWhen(opts.Frequency < time.Second, "frequency must be at least one second")
	catcher.NewWhen(opts.Frequency%time.Second != 0, "frequency must be a whole number of seconds")
	catcher.NewWhen(opts.PublishTimeout < 0, "publish timeout must not be negative")
	catcher.NewWhen(opts.PoolSize < 0, "pool size must not be negative")

	if catcher.HasErrors() {
		return errors.WithStack(&ConfigurationError{Cause: catcher.Resolve()})
	}
	return nil
}

// URI returns the connection string for the address.
func (opts Options) URI() string {
	if strings.HasPrefix(opts.Address, "mongodb://") || strings.HasPrefix(opts.Address, "mongodb+srv://") {
		return opts.Address
	}
	return "mongodb://" + opts.Address
}

// ParseCollection splits a <database>.<collection> name. The name must
// contain exactly one '.' with non-empty names on either side.
func ParseCollection(name string) (string, string, error) {
	if strings.Count(name, ".") != 1 {
		return "", "", errors.Errorf("invalid collection '%s', must be in the form db.collection", name)
	}
	db, coll, _ := strings.Cut(name, ".")
	if db == "" || coll == "" {
		return "", "", errors.Errorf("invalid collection '%s', must be in the form db.collection", name)
	}
	return db, coll, nil
}
