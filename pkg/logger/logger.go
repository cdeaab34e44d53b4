// Package logger contains the sinks a contract reports violations to.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/lmittmann/tint"

	"github.com/cgast/contr/pkg/state"
)

// DefaultTag is attached to every violation record.
const DefaultTag = "contract-failed"

// DefaultLevel is the level violation records are emitted at.
const DefaultLevel = slog.LevelDebug

// Logger receives the snapshot of every violated invocation. Delivery is best
// effort: Log has no error to return.
type Logger interface {
	Log(ctx context.Context, s state.State)
}

// Func adapts a function to Logger.
type Func func(ctx context.Context, s state.State)

func (f Func) Log(ctx context.Context, s state.State) { f(ctx, s) }

// Multi forwards every snapshot to each logger in order.
type Multi []Logger

func (m Multi) Log(ctx context.Context, s state.State) {
	for _, l := range m {
		if l != nil {
			l.Log(ctx, s)
		}
	}
}

// Option configures a Slog logger.
type Option func(*Slog)

// WithLevel sets the level violation records are emitted at.
func WithLevel(level slog.Level) Option {
	return func(l *Slog) {
		l.level = level
	}
}

// WithTag sets the tag attached to every record.
func WithTag(tag string) Option {
	return func(l *Slog) {
		l.tag = tag
	}
}

// Slog writes one structured record per violation through a slog handler.
// The message is the tag; the snapshot fields are attributes.
type Slog struct {
	logger *slog.Logger
	level  slog.Level
	tag    string
	inline bool
}

func newSlog(build func(level slog.Level) slog.Handler, inline bool, opts []Option) *Slog {
	l := &Slog{level: DefaultLevel, tag: DefaultTag, inline: inline}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = slog.New(build(l.level))
	return l
}

// NewJSON logs JSON lines to w. This is the default contract logger.
func NewJSON(w io.Writer, opts ...Option) *Slog {
	return newSlog(func(level slog.Level) slog.Handler {
		return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	}, true, opts)
}

// NewConsole logs colourised, human-readable lines to w.
func NewConsole(w io.Writer, noColor bool, opts ...Option) *Slog {
	return newSlog(func(level slog.Level) slog.Handler {
		return tint.NewHandler(w, &tint.Options{
			Level:      level,
			TimeFormat: "15:04:05.000",
			NoColor:    noColor,
		})
	}, false, opts)
}

// NewHandler logs through an arbitrary handler.
func NewHandler(h slog.Handler, opts ...Option) *Slog {
	return newSlog(func(slog.Level) slog.Handler { return h }, true, opts)
}

// Tag returns the tag attached to records.
func (l *Slog) Tag() string { return l.tag }

// Level returns the level records are emitted at.
func (l *Slog) Level() slog.Level { return l.level }

func (l *Slog) Log(ctx context.Context, s state.State) {
	s.Tag = l.tag
	l.logger.LogAttrs(ctx, l.level, l.tag, attrs(s, l.inline)...)
}

// attrs flattens a snapshot. Structured handlers get args and result as
// embedded JSON; text handlers get them as strings.
func attrs(s state.State, inline bool) []slog.Attr {
	var failed, ok, args, result slog.Attr
	if inline {
		failed = slog.Any("failed_rules", s.FailedRules)
		ok = slog.Any("ok_rules", s.OKRules)
		args = slog.Any("args", s.Args)
		result = slog.Any("result", s.Result)
	} else {
		failed = slog.String("failed_rules", minimized(s.FailedRules))
		ok = slog.String("ok_rules", minimized(s.OKRules))
		args = slog.String("args", string(s.Args))
		result = slog.String("result", string(s.Result))
	}

	out := []slog.Attr{
		slog.String("id", s.ID),
		slog.String("ts", s.TS),
		slog.String("contract_name", s.ContractName),
		failed,
		ok,
		slog.Bool("async", s.Async),
		args,
		result,
	}
	if s.DumpInfo != nil {
		out = append(out, slog.Group("dump_info", slog.String("path", s.DumpInfo.Path)))
	}
	return append(out, slog.String("tag", s.Tag))
}

func minimized(outcomes []state.RuleOutcome) string {
	tuples := make([][]any, len(outcomes))
	for i, o := range outcomes {
		tuples[i] = o.Minimized()
	}
	return fmt.Sprint(tuples)
}
