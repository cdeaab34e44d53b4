// Package state defines the diagnostic snapshot produced when a contract is
// violated, together with the per-rule outcomes it carries.
package state

import (
	"encoding/json"
	"fmt"
	"time"
)

// Kind distinguishes guarantees (all must hold) from expectations (at least
// one must hold).
type Kind string

const (
	KindGuarantee   Kind = "guarantee"
	KindExpectation Kind = "expectation"
)

// Status is the outcome of evaluating a single rule.
type Status string

const (
	StatusOK              Status = "ok"
	StatusFailed          Status = "failed"
	StatusUnexpectedError Status = "unexpected_error"
)

// TimeLayout is the ISO-8601 layout used for State.TS.
const TimeLayout = "2006-01-02T15:04:05.000Z"

// RuleOutcome records the result of one rule in one invocation.
type RuleOutcome struct {
	Kind   Kind   `json:"kind"`
	Name   string `json:"name"`
	Status Status `json:"status"`
	Error  string `json:"error,omitempty"`

	// Err is the recovered evaluation error. It is not persisted; Error holds
	// its message.
	Err error `json:"-"`
}

// OK reports whether the rule held.
func (o RuleOutcome) OK() bool {
	return o.Status == StatusOK
}

// Minimized returns the outcome as a positional tuple:
// (kind, name, status) or (kind, name, status, err).
func (o RuleOutcome) Minimized() []any {
	t := []any{o.Kind, o.Name, o.Status}
	if o.Err != nil {
		t = append(t, o.Err)
	} else if o.Error != "" {
		t = append(t, o.Error)
	}
	return t
}

// DumpInfo points at a snapshot persisted by a sampler.
type DumpInfo struct {
	Path string `json:"path"`
}

// State is the snapshot built once per violated invocation. It is handed to
// the sampler first and then to the logger.
type State struct {
	ID           string          `json:"id"`
	TS           string          `json:"ts"`
	ContractName string          `json:"contract_name"`
	FailedRules  []RuleOutcome   `json:"failed_rules"`
	OKRules      []RuleOutcome   `json:"ok_rules"`
	Async        bool            `json:"async"`
	Args         json.RawMessage `json:"args"`
	Result       json.RawMessage `json:"result"`

	// Populated only on the copy handed to the logger.
	DumpInfo *DumpInfo `json:"dump_info,omitempty"`
	Tag      string    `json:"tag,omitempty"`
}

// FormatTime renders t the way State.TS expects it.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// Time parses State.TS back into a time.
func (s State) Time() (time.Time, error) {
	return time.Parse(TimeLayout, s.TS)
}

// Capture encodes an argument list or result for inclusion in a State.
// Values that cannot be JSON-encoded are captured as their %v string so a
// snapshot can always be persisted.
func Capture(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err == nil {
		return data
	}
	data, _ = json.Marshal(fmt.Sprintf("%v", v))
	return data
}
