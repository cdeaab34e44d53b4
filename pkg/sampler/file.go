package sampler

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/template"

	"github.com/cgast/contr/pkg/state"
)

// File stores each sample as a JSON file under a folder. The existence of
// the file for the current period is the dedup signal; there is no index
// and no lock, so concurrent writers may both write the same sample.
type File struct {
	opts options
	tmpl *template.Template
}

// NewFile creates a file sampler.
func NewFile(opts ...Option) (*File, error) {
	o := defaultOptions()
	if err := o.apply(opts); err != nil {
		return nil, err
	}
	tmpl, err := template.New("sample").Option("missingkey=error").Parse(o.pathTemplate)
	if err != nil {
		return nil, fmt.Errorf("sampler: parse path template: %w", err)
	}
	return &File{opts: o, tmpl: tmpl}, nil
}

// Folder returns the root folder of the samples.
func (f *File) Folder() string {
	return f.opts.folder
}

// Sample writes s unless a sample for its contract already exists in the
// current period.
func (f *File) Sample(_ context.Context, s state.State) (*state.DumpInfo, error) {
	path, err := f.path(s.ContractName, f.opts.periodID())
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); err == nil {
		return nil, nil
	}

	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal sample: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create sample dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return nil, fmt.Errorf("write sample %s: %w", path, err)
	}
	return &state.DumpInfo{Path: path}, nil
}

// Read loads a previously written sample.
func (f *File) Read(_ context.Context, loc Location) (state.State, error) {
	path := loc.Path
	if path == "" {
		if loc.ContractName == "" || loc.PeriodID == nil {
			return state.State{}, ErrInvalidLocation
		}
		var err error
		if path, err = f.path(loc.ContractName, *loc.PeriodID); err != nil {
			return state.State{}, err
		}
	}
	return readFile(path)
}

// List returns the samples under the folder, oldest first.
func (f *File) List(_ context.Context) ([]Info, error) {
	var infos []Info
	err := filepath.WalkDir(f.opts.folder, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && path == f.opts.folder {
				return filepath.SkipDir
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		s, err := readFile(path)
		if err != nil {
			// Not a sample.
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return nil
		}
		infos = append(infos, infoFor(path, s, fi.ModTime()))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list samples: %w", err)
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].StoredAt.Before(infos[j].StoredAt)
	})
	return infos, nil
}

func (f *File) path(contractName string, periodID int64) (string, error) {
	if contractName == "" {
		return "", fmt.Errorf("sampler: contract name should be defined")
	}
	var b strings.Builder
	err := f.tmpl.Execute(&b, struct {
		ContractName string
		PeriodID     int64
	}{contractName, periodID})
	if err != nil {
		return "", fmt.Errorf("sampler: render path: %w", err)
	}
	return filepath.Join(f.opts.folder, b.String()), nil
}

func readFile(path string) (state.State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return state.State{}, fmt.Errorf("read sample %s: %w", path, err)
	}
	var s state.State
	if err := json.Unmarshal(data, &s); err != nil {
		return state.State{}, fmt.Errorf("parse sample %s: %w", path, err)
	}
	return s, nil
}
