package sampler

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/cgast/contr/pkg/state"
)

const (
	boltScheme    = "bolt://"
	samplesBucket = "samples"
)

// Bolt stores samples in a bbolt database keyed by contract name and period
// id. The existence check and the write share one transaction, so unlike
// File it never writes a period twice.
type Bolt struct {
	db   *bolt.DB
	path string
	opts options
}

// OpenBolt opens (or creates) the database at path. Folder and path template
// options do not apply.
func OpenBolt(path string, opts ...Option) (*Bolt, error) {
	o := defaultOptions()
	if err := o.apply(opts); err != nil {
		return nil, err
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(samplesBucket)); err != nil {
			return fmt.Errorf("create bucket %s: %w", samplesBucket, err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init buckets: %w", err)
	}

	return &Bolt{db: db, path: path, opts: o}, nil
}

// Sample stores s unless its contract already has a sample this period.
func (b *Bolt) Sample(_ context.Context, s state.State) (*state.DumpInfo, error) {
	if s.ContractName == "" {
		return nil, fmt.Errorf("sampler: contract name should be defined")
	}
	key := sampleKey(s.ContractName, b.opts.periodID())

	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal sample: %w", err)
	}

	written := false
	err = b.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket([]byte(samplesBucket))
		if bkt.Get([]byte(key)) != nil {
			return nil
		}
		written = true
		return bkt.Put([]byte(key), data)
	})
	if err != nil {
		return nil, fmt.Errorf("store sample %s: %w", key, err)
	}
	if !written {
		return nil, nil
	}
	return &state.DumpInfo{Path: boltScheme + b.path + "#" + key}, nil
}

// Read loads a sample by its DumpInfo path, by bare key or by components.
func (b *Bolt) Read(_ context.Context, loc Location) (state.State, error) {
	var key string
	switch {
	case loc.Path != "":
		key = loc.Path
		if i := strings.LastIndex(key, "#"); strings.HasPrefix(key, boltScheme) && i >= 0 {
			key = key[i+1:]
		}
	case loc.ContractName != "" && loc.PeriodID != nil:
		key = sampleKey(loc.ContractName, *loc.PeriodID)
	default:
		return state.State{}, ErrInvalidLocation
	}

	var s state.State
	err := b.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket([]byte(samplesBucket)).Get([]byte(key))
		if data == nil {
			return fmt.Errorf("sample not found: %s", key)
		}
		return json.Unmarshal(data, &s)
	})
	if err != nil {
		return state.State{}, err
	}
	return s, nil
}

// List returns all stored samples, oldest first.
func (b *Bolt) List(_ context.Context) ([]Info, error) {
	var infos []Info
	err := b.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(samplesBucket)).ForEach(func(k, v []byte) error {
			var s state.State
			if err := json.Unmarshal(v, &s); err != nil {
				return fmt.Errorf("unmarshal key %s: %w", string(k), err)
			}
			storedAt, _ := s.Time()
			infos = append(infos, infoFor(boltScheme+b.path+"#"+string(k), s, storedAt))
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(infos, func(i, j int) bool {
		return infos[i].StoredAt.Before(infos[j].StoredAt)
	})
	return infos, nil
}

// Close closes the database.
func (b *Bolt) Close() error {
	return b.db.Close()
}

func sampleKey(contractName string, periodID int64) string {
	return contractName + "/" + strconv.FormatInt(periodID, 10)
}
