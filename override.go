package statspush

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/pkg/errors"
)

// OverrideKind is the declared type of a custom override value.
type OverrideKind int

const (
	OverrideString OverrideKind = iota
	OverrideInt
)

func (k OverrideKind) String() string {
	if k == OverrideInt {
		return "integer"
	}
	return "string"
}

// Override is a user-configured value stamped into every published
// document. Overrides are parsed once at startup and never modified.
type Override struct {
	Path        Path
	Value       *Document
	Declaration string
}

// ParseOverride parses a declaration of the form <key>=<value>. The key
// is either a JSON pointer ("/tags/env") or a dotted key that is
// transcoded like a metric key ("tags.env").
func ParseOverride(decl string, kind OverrideKind) (Override, error) {
	fail := func(reason string, args ...interface{}) (Override, error) {
		return Override{}, errors.WithStack(&OverrideConfigError{
			Declaration: decl,
			Reason:      fmt.Sprintf(reason, args...),
		})
	}

	key, raw, found := strings.Cut(decl, "=")
	if !found {
		return fail("expected <key>=<value>")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return fail("key is empty")
	}

	var (
		path Path
		err  error
	)
	if strings.HasPrefix(key, "/") {
		path, err = ParsePointer(key)
	} else {
		path, err = Transcode(key)
	}
	if err != nil {
		return fail("%v", err)
	}

	out := Override{Path: path, Declaration: decl}
	switch kind {
	case OverrideInt:
		n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return fail("value '%s' is not an integer", raw)
		}
		out.Value = Int(n)
	default:
		out.Value = String(raw)
	}

	return out, nil
}

// ParseOverrides parses string and integer override declarations.
// Malformed declarations are logged and dropped individually; the
// returned errors describe what was dropped.
func ParseOverrides(custom, customInt []string) ([]Override, []error) {
	out := make([]Override, 0, len(custom)+len(customInt))
	var dropped []error

	parse := func(decls []string, kind OverrideKind) {
		for _, decl := range decls {
			o, err := ParseOverride(decl, kind)
			if err != nil {
				grip.Warning(message.WrapError(err, message.Fields{
					"op":          "parse custom override",
					"declaration": decl,
					"type":        kind.String(),
				}))
				dropped = append(dropped, err)
				continue
			}
			out = append(out, o)
		}
	}

	parse(custom, OverrideString)
	parse(customInt, OverrideInt)

	return out, dropped
}
