package log

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type execOption struct {
	outLevel, errLevel   zapcore.Level
	outFilter, errFilter Filter
}

// ExecOption configures Exec()
type ExecOption func(eo *execOption)

// StdoutLevel sets the level at which stdout lines are logged
func StdoutLevel(l zapcore.Level) ExecOption {
	return func(eo *execOption) { eo.outLevel = l }
}

// StderrLevel sets the level at which stderr lines are logged
func StderrLevel(l zapcore.Level) ExecOption {
	return func(eo *execOption) { eo.errLevel = l }
}

// Filter rewrites a message and its level before logging.
// When the last result is true the message is dropped.
type Filter interface {
	Filter(msg string, defaultLevel zapcore.Level) (string, zapcore.Level, bool)
}

// StdoutFilter installs a filter on stdout lines
func StdoutFilter(f Filter) ExecOption {
	return func(eo *execOption) { eo.outFilter = f }
}

// StderrFilter installs a filter on stderr lines
func StderrFilter(f Filter) ExecOption {
	return func(eo *execOption) { eo.errFilter = f }
}

// Exec runs cmd, streaming its stdout/stderr line by line into Logger(ctx)
// (stdout at Info, stderr at Warn unless overridden). Streams already set on
// cmd are left alone. The process is killed if ctx is cancelled.
func Exec(ctx context.Context, cmd *exec.Cmd, options ...ExecOption) error {
	opts := execOption{
		outLevel: zapcore.InfoLevel,
		errLevel: zapcore.WarnLevel,
	}
	for _, o := range options {
		o(&opts)
	}

	logger := Logger(ctx)
	wg := sync.WaitGroup{}
	if cmd.Stdout == nil {
		stdout, err := cmd.StdoutPipe()
		if err != nil {
			return fmt.Errorf("stdout pipe: %w", err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			streamLines(stdout, lineLogger{logger, opts.outLevel, opts.outFilter})
		}()
	}
	if cmd.Stderr == nil {
		stderr, err := cmd.StderrPipe()
		if err != nil {
			return fmt.Errorf("stderr pipe: %w", err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			streamLines(stderr, lineLogger{logger, opts.errLevel, opts.errFilter})
		}()
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("cmd.start: %w", err)
	}

	done := make(chan error, 1)
	go func() {
		// pipes must be drained before Wait
		wg.Wait()
		done <- cmd.Wait()
	}()

	killed := false
	wait := ctx
	for {
		select {
		case <-wait.Done():
			killed = true
			if err := cmd.Process.Kill(); err != nil {
				logger.Sugar().Warnf("kill: %v", err)
				return wait.Err()
			}
			// the exit is collected below
			wait = context.Background()
		case err := <-done:
			if killed {
				return ctx.Err()
			}
			return err
		}
	}
}

// streamLines forwards each line of sr to the logger. Lines exceeding the
// reader buffer are clipped rather than reassembled (SNAP and python
// tracebacks can emit pathological one-liners).
func streamLines(sr io.Reader, logger lineLogger) {
	r := bufio.NewReader(sr)
	clipped := false
	for {
		line, err := r.ReadSlice('\n')
		switch {
		case err == io.EOF:
			if !clipped && len(line) > 0 {
				logger.print(string(line))
			}
			return
		case clipped:
			if err == nil {
				clipped = false
			}
		case err == bufio.ErrBufferFull:
			logger.print(fmt.Sprintf("%s ...[clipped]", line))
			clipped = true
		default:
			if len(line) > 0 {
				logger.print(string(line))
			}
		}
	}
}

type lineLogger struct {
	*zap.Logger
	level  zapcore.Level
	filter Filter
}

func (l lineLogger) print(msg string) {
	level := l.level
	if l.filter != nil {
		var drop bool
		if msg, level, drop = l.filter.Filter(msg, level); drop {
			return
		}
	}
	if ce := l.Check(level, msg); ce != nil {
		ce.Write()
	}
}
