package config

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/cgast/contr/pkg/contract"
	"github.com/cgast/contr/pkg/events"
	"github.com/cgast/contr/pkg/logger"
	"github.com/cgast/contr/pkg/pool"
	"github.com/cgast/contr/pkg/sampler"
)

// Runtime holds the contract options built from a Config together with the
// resources they own.
type Runtime struct {
	Options []contract.Option
	// Store is nil when sampling is disabled.
	Store   sampler.Store
	closers []io.Closer
}

// Close releases owned resources in reverse order of creation.
func (r *Runtime) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	return errors.Join(errs...)
}

func (r *Runtime) own(c io.Closer) {
	if c != nil {
		r.closers = append(r.closers, c)
	}
}

// Build validates cfg and turns it into contract options. When bus is not
// nil violations are also published on it. The caller must Close the
// returned Runtime.
func Build(cfg Config, bus events.EventBus) (*Runtime, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	rt := &Runtime{}
	fail := func(err error) (*Runtime, error) {
		rt.Close()
		return nil, err
	}

	store, closer, err := OpenStore(cfg.Sampler)
	if err != nil {
		return fail(err)
	}
	rt.own(closer)
	if store != nil {
		rt.Store = store
		rt.Options = append(rt.Options, contract.WithSampler(store))
	} else {
		rt.Options = append(rt.Options, contract.WithSampler(nil))
	}

	l, err := rt.buildLogger(cfg, bus)
	if err != nil {
		return fail(err)
	}
	rt.Options = append(rt.Options, contract.WithLogger(l))

	mainPool, err := rt.buildPool(cfg.Pools.Main)
	if err != nil {
		return fail(err)
	}
	rt.Options = append(rt.Options, contract.WithMainPool(mainPool))

	rules, err := rt.buildPool(cfg.Pools.Rules)
	if err != nil {
		return fail(err)
	}
	rt.Options = append(rt.Options, contract.WithRulesPool(rules))

	if cfg.Inline {
		rt.Options = append(rt.Options, contract.WithInline(true))
	}
	return rt, nil
}

// OpenStore opens the sampler a config selects. It returns a nil store for
// kind "none" and a nil closer when there is nothing to release.
func OpenStore(cfg SamplerConfig) (sampler.Store, io.Closer, error) {
	period, err := parseDuration(cfg.Period)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: sampler.period: %v", ErrInvalidConfig, err)
	}
	var opts []sampler.Option
	if period > 0 {
		opts = append(opts, sampler.WithPeriod(period))
	}

	switch cfg.Kind {
	case "none":
		return nil, nil, nil
	case "", "file":
		if cfg.Folder != "" {
			opts = append(opts, sampler.WithFolder(cfg.Folder))
		}
		if cfg.PathTemplate != "" {
			opts = append(opts, sampler.WithPathTemplate(cfg.PathTemplate))
		}
		f, err := sampler.NewFile(opts...)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		return f, nil, nil
	case "bolt":
		path := cfg.BoltPath
		if path == "" {
			folder := cfg.Folder
			if folder == "" {
				folder = sampler.DefaultFolder()
			}
			path = filepath.Join(folder, "samples.db")
		}
		b, err := sampler.OpenBolt(path, opts...)
		if err != nil {
			return nil, nil, err
		}
		return b, b, nil
	default:
		return nil, nil, fmt.Errorf("%w: unknown sampler kind %q", ErrInvalidConfig, cfg.Kind)
	}
}

func (rt *Runtime) buildLogger(cfg Config, bus events.EventBus) (logger.Logger, error) {
	var sinks logger.Multi

	lc := cfg.Logger
	if lc.Kind != "none" {
		level, err := ParseLevel(lc.Level)
		if err != nil {
			return nil, fmt.Errorf("%w: logger.level: %v", ErrInvalidConfig, err)
		}
		w, closer, err := openOutput(lc.Output)
		if err != nil {
			return nil, err
		}
		rt.own(closer)

		opts := []logger.Option{logger.WithLevel(level)}
		if lc.Tag != "" {
			opts = append(opts, logger.WithTag(lc.Tag))
		}
		if lc.Kind == "console" {
			sinks = append(sinks, logger.NewConsole(w, lc.NoColor, opts...))
		} else {
			sinks = append(sinks, logger.NewJSON(w, opts...))
		}
	}

	if bus != nil {
		sinks = append(sinks, logger.NewEvents(bus, lc.Tag))
	}

	if gc := cfg.GitHub; gc.Repo != "" {
		var opts []logger.GitHubOption
		if len(gc.Labels) > 0 {
			opts = append(opts, logger.WithLabels(gc.Labels...))
		}
		if gc.BaseURL != "" {
			opts = append(opts, logger.WithBaseURL(gc.BaseURL))
		}
		issues, err := logger.NewGitHubIssues(gc.Token, gc.Repo, opts...)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		sinks = append(sinks, issues)
	}

	switch len(sinks) {
	case 0:
		return nil, nil
	case 1:
		return sinks[0], nil
	default:
		return sinks, nil
	}
}

func (rt *Runtime) buildPool(pc PoolConfig) (pool.Pool, error) {
	switch pc.Kind {
	case "none":
		return nil, nil
	case "global_io":
		return pool.GlobalIO(), nil
	case "", "fixed":
		var opts []pool.FixedOption
		if pc.MaxWorkers > 0 {
			opts = append(opts, pool.WithMaxWorkers(pc.MaxWorkers))
		}
		idle, err := parseDuration(pc.IdleTimeout)
		if err != nil {
			return nil, fmt.Errorf("%w: idle_timeout: %v", ErrInvalidConfig, err)
		}
		if idle > 0 {
			opts = append(opts, pool.WithIdleTimeout(idle))
		}
		p := pool.NewFixed(opts...)
		rt.own(p)
		return p, nil
	default:
		return nil, fmt.Errorf("%w: unknown pool kind %q", ErrInvalidConfig, pc.Kind)
	}
}
