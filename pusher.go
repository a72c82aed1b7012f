package statspush

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/mongodb/grip/recovery"
	"github.com/pkg/errors"
)

// PusherOptions collect everything a Pusher needs for one target.
type PusherOptions struct {
	// Name identifies the target in log messages. Defaults to the
	// address and collection.
	Name      string
	Options   Options
	Identity  Identity
	Source    SnapshotSource
	Persister Persister
}

// Pusher runs publish cycles for a single target: each cycle reads a
// snapshot, assembles the document, and hands it to the persister.
// Cycles of one pusher never overlap; separate pushers are fully
// independent and may run concurrently.
type Pusher struct {
	name      string
	opts      Options
	assembler *Assembler
	source    SnapshotSource
	persister Persister
	busy      sync.Mutex
}

// CycleResult describes a completed publish cycle.
type CycleResult struct {
	ID       string
	Time     time.Time
	Duration time.Duration
	Report   *AssemblyReport
}

// NewPusher validates the options and parses custom overrides.
// Malformed overrides are logged and dropped; invalid options are a
// ConfigurationError.
func NewPusher(opts PusherOptions) (*Pusher, error) {
	conf := opts.Options
	conf.Custom = append([]string(nil), opts.Options.Custom...)
	conf.CustomInt = append([]string(nil), opts.Options.CustomInt...)
	if err := conf.Validate(); err != nil {
		return nil, errors.WithStack(err)
	}

	catcher := grip.NewBasicCatcher()
	catcher.NewWhen(opts.Source == nil, "snapshot source must be specified")
	catcher.NewWhen(opts.Persister == nil, "persister must be specified")
	if catcher.HasErrors() {
		return nil, errors.WithStack(&ConfigurationError{Cause: catcher.Resolve()})
	}

	overrides, _ := ParseOverrides(conf.Custom, conf.CustomInt)

	name := opts.Name
	if name == "" {
		name = conf.Address + "/" + conf.Collection
	}

	grip.Info(message.Fields{
		"op":             "starting stats pusher",
		"target":         name,
		"collection":     conf.Collection,
		"frequency_secs": int(conf.Frequency / time.Second),
		"overrides":      len(overrides),
	})

	return &Pusher{
		name: name,
		opts: conf,
		assembler: &Assembler{
			Identity:  opts.Identity,
			Overrides: overrides,
		},
		source:    opts.Source,
		persister: opts.Persister,
	}, nil
}

// Name returns the target name used in log messages.
func (p *Pusher) Name() string { return p.name }

// RunCycle reads a snapshot from the source and publishes it. Reading
// the snapshot and publishing the document are each bounded by the
// publish timeout.
func (p *Pusher) RunCycle(ctx context.Context, now time.Time) (*CycleResult, error) {
	if !p.busy.TryLock() {
		return nil, p.busyError()
	}
	defer p.busy.Unlock()

	id := uuid.New().String()

	srcCtx, cancel := context.WithTimeout(ctx, p.opts.PublishTimeout)
	raw, err := p.source.Snapshot(srcCtx)
	cancel()
	if err != nil {
		err = errors.Wrap(err, "problem reading stats snapshot")
		grip.Error(message.WrapError(err, message.Fields{
			"op":     "publish stats",
			"target": p.name,
			"cycle":  id,
		}))
		return nil, err
	}

	return p.push(ctx, id, raw, now)
}

// Push publishes a snapshot that was produced elsewhere.
func (p *Pusher) Push(ctx context.Context, raw []byte, now time.Time) (*CycleResult, error) {
	if !p.busy.TryLock() {
		return nil, p.busyError()
	}
	defer p.busy.Unlock()

	return p.push(ctx, uuid.New().String(), raw, now)
}

func (p *Pusher) busyError() error {
	err := errors.Errorf("previous cycle for '%s' is still running", p.name)
	grip.Warning(message.WrapError(err, message.Fields{
		"op":     "publish stats",
		"target": p.name,
	}))
	return err
}

func (p *Pusher) push(ctx context.Context, id string, raw []byte, now time.Time) (*CycleResult, error) {
	startAt := time.Now()
	fields := message.Fields{
		"op":     "publish stats",
		"target": p.name,
		"cycle":  id,
	}

	snapshot, err := ParseSnapshot(raw)
	if err != nil {
		grip.Error(message.WrapError(err, fields))
		return nil, errors.Wrap(err, "abandoning cycle")
	}

	doc, report, err := p.assembler.Assemble(snapshot)
	if err != nil {
		grip.Error(message.WrapError(err, fields))
		return nil, errors.Wrap(err, "abandoning cycle")
	}

	if p.opts.TimestampField != "" {
		doc.Put(p.opts.TimestampField, Int(now.UnixMilli()))
	}

	pubCtx, cancel := context.WithTimeout(ctx, p.opts.PublishTimeout)
	defer cancel()
	err = p.persister.Publish(pubCtx, doc)

	fields["operations"] = len(report.Operations)
	fields["skipped"] = len(report.Skipped)
	fields["duration"] = time.Since(startAt).Round(time.Millisecond)

	if err != nil {
		grip.Error(message.WrapError(err, fields))
		return nil, errors.Wrap(err, "problem publishing stats")
	}

	grip.InfoWhen(p.opts.Verbose, fields)
	grip.DebugWhen(!p.opts.Verbose, fields)

	return &CycleResult{
		ID:       id,
		Time:     now,
		Duration: time.Since(startAt),
		Report:   report,
	}, nil
}

// Run starts a blocking loop that runs a cycle every Frequency until
// ctx is canceled. Failed cycles are logged and do not affect the
// schedule.
func (p *Pusher) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.opts.Frequency)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			grip.Info(message.Fields{
				"op":     "stopping stats pusher",
				"target": p.name,
			})
			return nil
		case now := <-ticker.C:
			_, _ = p.RunCycle(ctx, now)
		}
	}
}

// Close releases the persister.
func (p *Pusher) Close(ctx context.Context) error {
	return errors.Wrapf(p.persister.Close(ctx), "problem closing persister for '%s'", p.name)
}

// RunPushers runs every pusher concurrently and blocks until all of
// them return.
func RunPushers(ctx context.Context, pushers ...*Pusher) error {
	catcher := grip.NewCatcher()
	wg := &sync.WaitGroup{}

	for _, p := range pushers {
		wg.Add(1)
		go func(p *Pusher) {
			defer wg.Done()
			defer recovery.LogStackTraceAndContinue("stats pusher " + p.Name())
			catcher.Add(p.Run(ctx))
		}(p)
	}
	wg.Wait()

	return catcher.Resolve()
}
