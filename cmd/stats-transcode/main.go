package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/mongodb/grip"
	"github.com/mongodb/grip/level"
	"github.com/mongodb/grip/send"
	"github.com/mongodb/statspush"
	"github.com/pkg/errors"
)

// stats-transcode reads one stats snapshot and prints the document
// that would be published for it, without connecting anywhere.
func main() {
	grip.Warning(grip.GetSender().SetLevel(send.LevelInfo{Default: level.Info, Threshold: level.Info}))

	var (
		path      string
		keys      bool
		custom    string
		customInt string
	)
	flag.StringVar(&path, "file", "", "read the snapshot from this file")
	flag.BoolVar(&keys, "keys", false, "print each metric key with its path instead of the document")
	flag.StringVar(&custom, "custom", "", "apply a key=value override")
	flag.StringVar(&customInt, "custom-int", "", "apply a key=<integer> override")
	flag.Parse()

	if path == "" {
		grip.EmergencyFatal("file is not specified")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		grip.EmergencyFatal(errors.Wrapf(err, "problem opening file '%s'", path))
	}

	snapshot, err := statspush.ParseSnapshot(data)
	grip.EmergencyFatal(err)

	if keys {
		metrics, _ := snapshot.Get("metrics")
		for _, key := range metrics.Keys() {
			p, err := statspush.Transcode(key)
			if err != nil {
				fmt.Printf("%s\t!%v\n", key, err)
				continue
			}
			fmt.Printf("%s\t%s\n", key, p)
		}
		return
	}

	var decls, intDecls []string
	if custom != "" {
		decls = append(decls, custom)
	}
	if customInt != "" {
		intDecls = append(intDecls, customInt)
	}
	overrides, _ := statspush.ParseOverrides(decls, intDecls)

	identity, err := statspush.LocalIdentity(path, "")
	grip.EmergencyFatal(err)

	asm := &statspush.Assembler{Identity: identity, Overrides: overrides}
	doc, report, err := asm.Assemble(snapshot)
	grip.EmergencyFatal(err)

	out, err := doc.MarshalJSON()
	grip.EmergencyFatal(err)
	fmt.Println(string(out))

	grip.Infof("applied %d metric operations, skipped %d", len(report.Operations), len(report.Skipped))
}
