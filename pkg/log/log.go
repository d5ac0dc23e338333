// Package log is a thin wrapper around logrus that keeps field allocation
// off the hot path unless debug logging is enabled.
package log

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
)

var (
	l     = logrus.New()
	debug = false
)

// SetDebug enables debug-level logging.
func SetDebug(to bool) {
	debug = to
	if to {
		l.Level = logrus.DebugLevel
	}
}

// SetOutput sets the destination for log output.
func SetOutput(to io.Writer) {
	l.Out = to
}

// Fields is a map of logging fields.
type Fields map[string]interface{}

// LogFields implements Fielder for Fields.
func (f Fields) LogFields() Fields {
	return f
}

// A Fielder provides Fields via the LogFields method.
type Fielder interface {
	LogFields() Fields
}

type wrappedErr struct {
	e error
}

// LogFields provides Fields for logging.
func (w wrappedErr) LogFields() Fields {
	return Fields{
		"error": w.e.Error(),
		"type":  fmt.Sprintf("%T", w.e),
	}
}

// Err wraps an error so it can be passed anywhere a Fielder is expected.
func Err(e error) Fielder {
	return wrappedErr{e}
}

func merge(fielders []Fielder) logrus.Fields {
	fields := make(logrus.Fields, len(fielders))
	for _, f := range fielders {
		if f == nil {
			continue
		}
		for k, v := range f.LogFields() {
			fields[k] = v
		}
	}
	return fields
}

// Debug logs at the debug level if debug logging is enabled.
func Debug(v interface{}, fielders ...Fielder) {
	if debug {
		l.WithFields(merge(fielders)).Debug(v)
	}
}

// Info logs at the info level.
func Info(v interface{}, fielders ...Fielder) {
	if len(fielders) != 0 {
		l.WithFields(merge(fielders)).Info(v)
	} else {
		l.Info(v)
	}
}

// Warn logs at the warning level.
func Warn(v interface{}, fielders ...Fielder) {
	if len(fielders) != 0 {
		l.WithFields(merge(fielders)).Warn(v)
	} else {
		l.Warn(v)
	}
}

// Error logs at the error level.
func Error(v interface{}, fielders ...Fielder) {
	if len(fielders) != 0 {
		l.WithFields(merge(fielders)).Error(v)
	} else {
		l.Error(v)
	}
}

// Fatal logs at the fatal level and exits with a non-zero status code.
func Fatal(v interface{}, fielders ...Fielder) {
	if len(fielders) != 0 {
		l.WithFields(merge(fielders)).Fatal(v)
	} else {
		l.Fatal(v)
	}
}
