// Package redirect routes text a computation prints on standard output to a
// logging sink for the duration of the computation.
//
// Redirection swaps the process-wide os.Stdout. Nested redirections in one
// goroutine compose: leaving the inner one restores the outer one. Independent
// goroutines redirecting at the same time is unsupported, since they share
// os.Stdout.
package redirect

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/on-the-ground/wrapkit/callkey"
	"github.com/on-the-ground/wrapkit/effects/log"
	"github.com/on-the-ground/wrapkit/wrap"
	"go.uber.org/zap"
)

const maxLine = 1 << 20

// Sink receives captured lines.
type Sink interface {
	Log(level log.LogLevel, line string)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(level log.LogLevel, line string)

func (f SinkFunc) Log(level log.LogLevel, line string) { f(level, line) }

type zapSink struct {
	logger *zap.Logger
}

func (s zapSink) Log(level log.LogLevel, line string) {
	log.Write(s.logger, log.LogPayload{Level: level, Message: line})
}

// ZapSink writes captured lines straight to logger.
func ZapSink(logger *zap.Logger) Sink {
	return zapSink{logger: logger}
}

// EffectSink forwards captured lines to the log effect handler of ctx.
// Lines are dropped when ctx has none.
func EffectSink(ctx context.Context) Sink {
	return SinkFunc(func(level log.LogLevel, line string) {
		log.Effect(ctx, level, line, map[string]interface{}{"stream": "stdout"})
	})
}

// WithRedirectedOutput runs body with os.Stdout captured. Every non-empty line,
// with surrounding whitespace trimmed, goes to sink at info level. The previous
// os.Stdout is restored when body returns, fails or panics; a panic is
// re-raised after restoring. All lines are delivered before it returns.
func WithRedirectedOutput(ctx context.Context, sink Sink, body func(context.Context) error) error {
	r, w, err := os.Pipe()
	if err != nil {
		return fmt.Errorf("redirect: open pipe: %w", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		forward(r, sink)
	}()

	prev := os.Stdout
	os.Stdout = w
	defer func() {
		p := recover()
		os.Stdout = prev
		_ = w.Close()
		<-done
		_ = r.Close()
		if p != nil {
			panic(p)
		}
	}()

	return body(ctx)
}

func forward(r io.Reader, sink Sink) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), maxLine)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			sink.Log(log.LogInfo, line)
		}
	}
	if err := scanner.Err(); err != nil {
		sink.Log(log.LogWarn, "redirect: output discarded: "+err.Error())
		// Keep draining so writers never block on a full pipe.
		_, _ = io.Copy(io.Discard, r)
	}
}

// Layer captures the wrapped Invoker's standard output into sink.
// A nil sink forwards to the log effect of each call's context.
func Layer[R any](sink Sink) wrap.Middleware[R] {
	return func(next wrap.Invoker[R]) wrap.Invoker[R] {
		return wrap.InvokerFunc[R](func(ctx context.Context, args callkey.Args) (res R, err error) {
			s := sink
			if s == nil {
				s = EffectSink(ctx)
			}
			err = WithRedirectedOutput(ctx, s, func(ctx context.Context) error {
				var innerErr error
				res, innerErr = next.Invoke(ctx, args)
				return innerErr
			})
			return res, err
		})
	}
}
