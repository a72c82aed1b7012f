package statspush

import (
	"fmt"

	"github.com/pkg/errors"
)

// TranscodeError reports a metric key that does not fit the dotted
// metric grammar. Callers skip the offending key.
type TranscodeError struct {
	Key    string
	Reason string
}

func (e *TranscodeError) Error() string {
	return fmt.Sprintf("cannot transcode metric key '%s': %s", e.Key, e.Reason)
}

func newTranscodeError(key, reason string, args ...interface{}) error {
	return errors.WithStack(&TranscodeError{Key: key, Reason: fmt.Sprintf(reason, args...)})
}

// OverrideConfigError reports a malformed custom override declaration.
type OverrideConfigError struct {
	Declaration string
	Reason      string
}

func (e *OverrideConfigError) Error() string {
	return fmt.Sprintf("invalid custom override '%s': %s", e.Declaration, e.Reason)
}

// PathApplyError reports a structural conflict when setting a value
// at a path in a document.
type PathApplyError struct {
	Path   Path
	Reason string
}

func (e *PathApplyError) Error() string {
	return fmt.Sprintf("cannot set value at '%s': %s", e.Path, e.Reason)
}

func newPathApplyError(p Path, reason string, args ...interface{}) error {
	return errors.WithStack(&PathApplyError{Path: p, Reason: fmt.Sprintf(reason, args...)})
}

// MalformedSnapshotError means the raw snapshot could not be used as a
// document at all. It abandons the current publish cycle.
type MalformedSnapshotError struct {
	Cause error
}

func (e *MalformedSnapshotError) Error() string {
	if e.Cause == nil {
		return "malformed stats snapshot"
	}
	return "malformed stats snapshot: " + e.Cause.Error()
}

// ConfigurationError is fatal to starting a pusher.
type ConfigurationError struct {
	Cause error
}

func (e *ConfigurationError) Error() string {
	return "invalid stats pusher configuration: " + e.Cause.Error()
}

func IsTranscodeError(err error) bool {
	_, ok := errors.Cause(err).(*TranscodeError)
	return ok
}

func IsOverrideConfigError(err error) bool {
	_, ok := errors.Cause(err).(*OverrideConfigError)
	return ok
}

func IsPathApplyError(err error) bool {
	_, ok := errors.Cause(err).(*PathApplyError)
	return ok
}

func IsMalformedSnapshot(err error) bool {
	_, ok := errors.Cause(err).(*MalformedSnapshotError)
	return ok
}

func IsConfigurationError(err error) bool {
	_, ok := errors.Cause(err).(*ConfigurationError)
	return ok
}
