package statspush

import (
	"strconv"
	"strings"
)

const (
	workersContainer = "workers"
	busynessSuffix   = "plugin.cheaper_busyness.busyness"
	busynessField    = "busyness"
)

// Transcode converts a dotted metric key (e.g. worker.2.core.0.requests)
// into the path of the matching location in the full stats document
// (e.g. /workers/1/cores/0/requests). Stored documents may not contain
// '.' in field names, so metrics are republished in nested form.
//
// A name followed by a numeric segment denotes an array and is
// pluralized (worker, core and socket become workers, cores and
// sockets); the numeric segment becomes the index.
//
// Worker numbers in metric keys are one-indexed relative to the workers
// array, and worker 0 is the aggregate record that the stats document
// already stores at its root. Keys under the top-level worker.0 are
// therefore rooted at the document itself and other top-level worker
// indexes are decremented.
//
// Keys ending in plugin.cheaper_busyness.busyness are collapsed to a
// single busyness field on the indexed element. The plugin numbers
// workers from one, which is handled here instead of by the zero
// worker rule, so worker 0 never matches for this metric.
func Transcode(key string) (Path, error) {
	if key == "" {
		return nil, newTranscodeError(key, "key is empty")
	}

	segs := strings.Split(key, ".")
	for idx, seg := range segs {
		if seg == "" {
			return nil, newTranscodeError(key, "segment %d is empty", idx)
		}
	}

	out := make(Path, 0, len(segs))
	for i := 0; i < len(segs); {
		name := segs[i]
		if i+1 == len(segs) || !startsWithDigit(segs[i+1]) {
			out = append(out, Key(name))
			i++
			continue
		}

		idx, err := strconv.Atoi(segs[i+1])
		if err != nil {
			return nil, newTranscodeError(key, "segment '%s' following '%s' is not an array index", segs[i+1], name)
		}

		container := name + "s"
		rest := strings.Join(segs[i+2:], ".")

		switch {
		case rest == busynessSuffix:
			if container == workersContainer {
				if idx == 0 {
					return nil, newTranscodeError(key, "cheaper_busyness workers are numbered from 1")
				}
				idx--
			}
			return append(out, Key(container), Index(idx), Key(busynessField)), nil
		case container == workersContainer && len(out) == 0:
			if idx == 0 {
				i += 2
				continue
			}
			idx--
		}

		out = append(out, Key(container), Index(idx))
		i += 2
	}

	if len(out) == 0 {
		return nil, newTranscodeError(key, "key addresses the document root")
	}

	return out, nil
}

func startsWithDigit(s string) bool {
	return s != "" && s[0] >= '0' && s[0] <= '9'
}
