package biophys

import (
	"errors"
	"fmt"
	"strings"

	"github.com/cropsense/s2-biophys/service"
	"github.com/cropsense/s2-biophys/service/log"
	"go.uber.org/zap/zapcore"
)

// LogFilter routes engine output lines to the right log level and remembers
// the last error line to enrich the engine exit status.
// A filter accumulates state: use a fresh instance per engine run.
type LogFilter interface {
	log.Filter
	// WrapError wraps the error with additional information from the logs
	WrapError(err error) error
}

var temporaryErrs = []string{
	"temporary failure",
	"timed out",
	"try again",
}

// SNAPLogFilter formats logs from ESA/SNAP gpt
type SNAPLogFilter struct {
	lastError string
}

// Filter implements log.Filter
func (f *SNAPLogFilter) Filter(msg string, defaultLevel zapcore.Level) (string, zapcore.Level, bool) {
	trimmedmsg := strings.TrimSpace(msg)
	if strings.HasPrefix(trimmedmsg, "java.") && strings.Contains(msg, "Exception") {
		return msg, zapcore.WarnLevel, false
	}
	if strings.HasPrefix(trimmedmsg, "at ") {
		return msg, zapcore.DebugLevel, false
	}
	if strings.HasPrefix(trimmedmsg, "INFO:") {
		return msg, zapcore.DebugLevel, false
	}
	if strings.HasPrefix(trimmedmsg, "-- org.jblas INFO") {
		return msg, zapcore.DebugLevel, false
	}
	if strings.HasPrefix(trimmedmsg, "SEVERE:") {
		return msg, zapcore.InfoLevel, false
	}
	if strings.HasPrefix(trimmedmsg, "WARNING:") {
		return msg, zapcore.WarnLevel, false
	}
	if strings.HasPrefix(trimmedmsg, "Error:") {
		f.lastError = msg
		return msg, zapcore.ErrorLevel, false
	}
	return msg, defaultLevel, false
}

// WrapError implements LogFilter
func (f *SNAPLogFilter) WrapError(err error) error {
	if f.lastError != "" && err != nil {
		if containsAny(strings.ToLower(f.lastError), temporaryErrs) {
			err = service.MakeTemporary(err)
		}
		return fmt.Errorf("%w (%v)", err, f.lastError)
	}
	return err
}

// PythonLogFilter formats logs from python wrappers
type PythonLogFilter struct {
	lastError string
}

// Filter implements log.Filter
func (f *PythonLogFilter) Filter(msg string, defaultLevel zapcore.Level) (string, zapcore.Level, bool) {
	trimmedmsg := strings.TrimSpace(msg)
	if strings.HasPrefix(trimmedmsg, "FATAL:") || strings.HasPrefix(trimmedmsg, "ERROR:") {
		f.lastError = msg
		return msg, zapcore.ErrorLevel, false
	}
	return msg, defaultLevel, false
}

// WrapError implements LogFilter
func (f *PythonLogFilter) WrapError(err error) error {
	if f.lastError == "" {
		return err
	}
	err = service.MergeErrors(true, err, errors.New(f.lastError))
	if err != nil {
		strerr := strings.ToLower(err.Error())
		if strings.Contains(strerr, "fatal") {
			return service.MakeFatal(err)
		}
		if containsAny(strerr, temporaryErrs) {
			return service.MakeTemporary(err)
		}
	}
	return err
}

// CmdLogFilter formats logs from other engine commands
type CmdLogFilter struct {
	lastError string
}

// Filter implements log.Filter
func (f *CmdLogFilter) Filter(msg string, defaultLevel zapcore.Level) (string, zapcore.Level, bool) {
	msg = strings.TrimSuffix(msg, "\n")
	trimmedmsg := strings.TrimSpace(msg)
	if strings.Contains(trimmedmsg, "ERROR:") {
		f.lastError = msg
		return msg, zapcore.ErrorLevel, false
	} else if strings.HasPrefix(trimmedmsg, "WARN:") {
		return msg, zapcore.WarnLevel, false
	}
	return msg, zapcore.DebugLevel, false
}

// WrapError implements LogFilter
func (f *CmdLogFilter) WrapError(err error) error {
	if f.lastError != "" && err != nil {
		if strings.Contains(f.lastError, "FATAL ERROR:") {
			err = service.MakeFatal(err)
		}
		if strings.Contains(f.lastError, "TEMPORARY ERROR:") {
			err = service.MakeTemporary(err)
		}
		return fmt.Errorf("%w (%v)", err, f.lastError)
	}
	return err
}

// DockerLogFilter formats the multiplexed container output of the docker
// engine, which mixes the wrapped model logs with container noise.
type DockerLogFilter struct {
	lastError string
}

// Filter implements log.Filter
func (f *DockerLogFilter) Filter(msg string, defaultLevel zapcore.Level) (string, zapcore.Level, bool) {
	msg = strings.TrimSuffix(msg, "\n")
	trimmedmsg := strings.TrimSpace(msg)
	if trimmedmsg == "" {
		return msg, defaultLevel, true
	}
	if strings.Contains(trimmedmsg, "ERROR:") || strings.HasPrefix(trimmedmsg, "Error:") {
		f.lastError = msg
		return msg, zapcore.ErrorLevel, false
	}
	if strings.HasPrefix(trimmedmsg, "WARNING:") || strings.HasPrefix(trimmedmsg, "WARN:") {
		return msg, zapcore.WarnLevel, false
	}
	return msg, defaultLevel, false
}

// WrapError implements LogFilter
func (f *DockerLogFilter) WrapError(err error) error {
	if f.lastError != "" && err != nil {
		if containsAny(strings.ToLower(f.lastError), temporaryErrs) {
			err = service.MakeTemporary(err)
		}
		return fmt.Errorf("%w (%v)", err, f.lastError)
	}
	return err
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
