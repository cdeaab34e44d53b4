// Package sampler persists contract violation snapshots, at most one per
// contract per time period.
package sampler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cgast/contr/pkg/state"
)

// DefaultPeriod is the dedup window length.
const DefaultPeriod = 10 * time.Minute

// DefaultPathTemplate names a sample file relative to the sampler folder.
const DefaultPathTemplate = "{{.ContractName}}/{{.PeriodID}}.dump"

// ErrInvalidLocation is returned by Read when neither a path nor both a
// contract name and a period id are given.
var ErrInvalidLocation = errors.New("sampler: either path or contract name and period id should be defined")

// Sampler persists a snapshot unless one already exists for the current
// period. It returns nil DumpInfo when nothing was written.
type Sampler interface {
	Sample(ctx context.Context, s state.State) (*state.DumpInfo, error)
}

// Store is a Sampler whose samples can be read back and enumerated.
type Store interface {
	Sampler
	Read(ctx context.Context, loc Location) (state.State, error)
	List(ctx context.Context) ([]Info, error)
}

// Location identifies a stored sample either by path or by its components.
type Location struct {
	Path         string
	ContractName string
	PeriodID     *int64
}

// AtPath locates a sample by the path reported in its DumpInfo.
func AtPath(path string) Location {
	return Location{Path: path}
}

// At locates the sample of contract for the given period.
func At(contract string, periodID int64) Location {
	return Location{ContractName: contract, PeriodID: &periodID}
}

// Info describes a stored sample.
type Info struct {
	Path         string    `json:"path"`
	ID           string    `json:"id"`
	ContractName string    `json:"contract_name"`
	TS           string    `json:"ts"`
	FailedRules  int       `json:"failed_rules"`
	StoredAt     time.Time `json:"stored_at"`
}

func infoFor(path string, s state.State, storedAt time.Time) Info {
	return Info{
		Path:         path,
		ID:           s.ID,
		ContractName: s.ContractName,
		TS:           s.TS,
		FailedRules:  len(s.FailedRules),
		StoredAt:     storedAt,
	}
}

// PeriodID returns the index of the period t falls into. Periods are aligned
// to the Unix epoch; times before it fall into negative periods.
func PeriodID(t time.Time, period time.Duration) int64 {
	ns, p := t.UnixNano(), int64(period)
	id := ns / p
	if ns%p != 0 && ns < 0 {
		id--
	}
	return id
}

// Option configures a sampler.
type Option func(*options)

type options struct {
	folder       string
	pathTemplate string
	period       time.Duration
	now          func() time.Time
}

func defaultOptions() options {
	return options{
		folder:       DefaultFolder(),
		pathTemplate: DefaultPathTemplate,
		period:       DefaultPeriod,
		now:          time.Now,
	}
}

func (o *options) apply(opts []Option) error {
	for _, opt := range opts {
		opt(o)
	}
	if o.period < time.Second {
		return fmt.Errorf("sampler: period must be at least one second, got %s", o.period)
	}
	return nil
}

func (o *options) periodID() int64 {
	return PeriodID(o.now(), o.period)
}

// DefaultFolder is where file samples go unless configured otherwise.
func DefaultFolder() string {
	return filepath.Join(os.TempDir(), "contracts")
}

// WithFolder sets the root folder of file samples.
func WithFolder(folder string) Option {
	return func(o *options) {
		o.folder = folder
	}
}

// WithPathTemplate sets the text/template used to name sample files. It
// receives .ContractName and .PeriodID.
func WithPathTemplate(tmpl string) Option {
	return func(o *options) {
		o.pathTemplate = tmpl
	}
}

// WithPeriod sets the dedup window length.
func WithPeriod(d time.Duration) Option {
	return func(o *options) {
		o.period = d
	}
}

// WithClock overrides the time source used to compute period ids.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}
