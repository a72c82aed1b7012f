package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mongodb/grip"
	"github.com/mongodb/grip/level"
	"github.com/mongodb/grip/message"
	"github.com/mongodb/grip/recovery"
	"github.com/mongodb/grip/send"
	"github.com/mongodb/statspush"
	"github.com/mongodb/statspush/metrics"
	"github.com/pkg/errors"
)

type stringList []string

func (l *stringList) String() string { return strings.Join(*l, ",") }

func (l *stringList) Set(v string) error {
	*l = append(*l, v)
	return nil
}

func signalListener(ctx context.Context, trigger context.CancelFunc) {
	defer recovery.LogStackTraceAndContinue("graceful shutdown")
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	select {
	case <-sigChan:
		trigger()
	case <-ctx.Done():
	}
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		addresses  stringList
		custom     stringList
		customInt  stringList
		collection string
		freq       int
		timeout    time.Duration
		poolSize   int
		verbose    bool
		tsField    string
		archive    string
		statsAddr  string
		statsFile  string
		follow     bool
		self       bool
		id         string
		procName   string
	)

	flag.Var(&addresses, "mongo-stats", "server where stats are pushed (repeatable)")
	flag.StringVar(&collection, "mongo-stats-collection", statspush.DefaultCollection, "collection where stats are pushed, as db.collection")
	flag.IntVar(&freq, "mongo-stats-freq", int(statspush.DefaultFrequency/time.Second), "stats push frequency in seconds")
	flag.Var(&custom, "mongo-stats-custom", "add key=value to every pushed document (repeatable)")
	flag.Var(&customInt, "mongo-stats-custom-int", "add key=<integer> to every pushed document (repeatable)")
	flag.DurationVar(&timeout, "mongo-stats-timeout", statspush.DefaultPublishTimeout, "maximum wait for reading a snapshot, and for a connection and write, per push")
	flag.IntVar(&poolSize, "mongo-stats-pool", statspush.DefaultPoolSize, "maximum connections per server")
	flag.BoolVar(&verbose, "mongo-stats-verbose", false, "log every push")
	flag.StringVar(&tsField, "mongo-stats-timestamp", "", "field that receives the push time, in epoch milliseconds")
	flag.StringVar(&archive, "mongo-stats-archive", "", "also append pushed documents as BSON to this file")
	flag.StringVar(&statsAddr, "stats", "", "stats server to read snapshots from (host:port or unix socket path)")
	flag.StringVar(&statsFile, "stats-file", "", "file to read snapshots from")
	flag.BoolVar(&follow, "follow", false, "follow the stats file for new newline-separated snapshots")
	flag.BoolVar(&self, "self", false, "push the runtime stats of this process")
	flag.StringVar(&id, "id", "", "identifier stamped into every document (default: the stats address or file, else hostname:pid)")
	flag.StringVar(&procName, "procname", "", "process name stamped into every document")
	flag.Parse()

	threshold := level.Info
	if verbose {
		threshold = level.Debug
	}
	grip.Warning(grip.GetSender().SetLevel(send.LevelInfo{Default: level.Info, Threshold: threshold}))

	source, err := buildSource(ctx, statsAddr, statsFile, follow, self)
	grip.EmergencyFatal(message.WrapError(err, "invalid snapshot source"))

	identity, err := statspush.LocalIdentity(defaultID(id, statsAddr, statsFile), procName)
	grip.EmergencyFatal(err)

	base := statspush.Options{
		Collection:     collection,
		Frequency:      time.Duration(freq) * time.Second,
		PublishTimeout: timeout,
		PoolSize:       poolSize,
		Verbose:        verbose,
		Custom:         custom,
		CustomInt:      customInt,
		TimestampField: tsField,
	}

	var pushers []*statspush.Pusher
	for _, addr := range addresses {
		opts := base
		opts.Address = addr

		persister, err := statspush.NewMongoPersister(opts)
		grip.EmergencyFatal(err)

		pusher, err := statspush.NewPusher(statspush.PusherOptions{
			Options:   opts,
			Identity:  identity,
			Source:    source,
			Persister: persister,
		})
		grip.EmergencyFatal(err)
		pushers = append(pushers, pusher)
	}

	if archive != "" {
		opts := base
		opts.Address = archive

		persister, err := statspush.OpenArchive(archive)
		grip.EmergencyFatal(err)

		pusher, err := statspush.NewPusher(statspush.PusherOptions{
			Name:      "archive:" + archive,
			Options:   opts,
			Identity:  identity,
			Source:    source,
			Persister: persister,
		})
		grip.EmergencyFatal(err)
		pushers = append(pushers, pusher)
	}

	if len(pushers) == 0 {
		grip.EmergencyFatal("no destination specified, use -mongo-stats or -mongo-stats-archive")
	}

	go signalListener(ctx, cancel)
	runErr := statspush.RunPushers(ctx, pushers...)

	closeCtx, closeCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer closeCancel()
	catcher := grip.NewBasicCatcher()
	catcher.Add(runErr)
	for _, p := range pushers {
		catcher.Add(p.Close(closeCtx))
	}

	if catcher.HasErrors() {
		grip.EmergencyFatal(catcher.Resolve())
	}
}

func buildSource(ctx context.Context, addr, file string, follow, self bool) (statspush.SnapshotSource, error) {
	count := 0
	for _, set := range []bool{addr != "", file != "", self} {
		if set {
			count++
		}
	}
	if count != 1 {
		return nil, errors.New("must specify exactly one of -stats, -stats-file, and -self")
	}
	if follow && file == "" {
		return nil, errors.New("-follow requires -stats-file")
	}

	switch {
	case addr != "":
		return statspush.StatsServerSource{Address: addr}, nil
	case file != "" && follow:
		src, err := statspush.NewFollowSource(ctx, file)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		return src, nil
	case file != "":
		return statspush.FileSource{Path: file}, nil
	default:
		return &metrics.RuntimeSource{}, nil
	}
}

// defaultID names the stats origin when no identifier is given: the
// stats socket, the stats file, or this process.
func defaultID(id, addr, file string) string {
	switch {
	case id != "":
		return id
	case addr != "":
		return addr
	case file != "":
		return file
	}

	host, err := os.Hostname()
	if err != nil {
		host = "localhost"
	}
	return fmt.Sprintf("%s:%d", host, os.Getpid())
}
