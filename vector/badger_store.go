package vector

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"sync"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/vmihailenco/msgpack/v5"
)

var (
	badgerRecordPrefix = []byte("r\x00")
	badgerDimKey       = []byte("m\x00dim")
)

// badgerValue is the msgpack payload stored per record.
type badgerValue struct {
	Parent   string    `msgpack:"p,omitempty"`
	Vector   []float32 `msgpack:"v"`
	Embedder string    `msgpack:"e,omitempty"`
}

// BadgerOptions configures a BadgerStore.
type BadgerOptions struct {
	// Dir is the directory for BadgerDB data files. Required unless InMemory.
	Dir string
	// InMemory runs BadgerDB without disk persistence.
	InMemory bool
	// Dimension fixes the store dimension up front; zero defers to the first Put.
	Dimension int
	// Logger receives badger warnings and errors; slog.Default when nil.
	Logger *slog.Logger
}

// BadgerStore is an embedded key-value Store backed by BadgerDB v4. Keys are
// "r\x00<id>\x00<key>" so badger's byte ordering yields (ID, Key) order.
type BadgerStore struct {
	db *badger.DB

	mu  sync.RWMutex
	dim int
}

// NewBadgerStore opens (or creates) a BadgerDB-backed store.
func NewBadgerStore(opts BadgerOptions) (*BadgerStore, error) {
	if !opts.InMemory && opts.Dir == "" {
		return nil, errors.New("vector: BadgerOptions.Dir is required for on-disk mode")
	}
	dbOpts := badger.DefaultOptions(opts.Dir)
	if opts.InMemory {
		dbOpts = dbOpts.WithInMemory(true)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	dbOpts = dbOpts.WithLogger(badgerLogger{logger: logger.With("component", "badger")})
	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, err
	}
	s := &BadgerStore{db: db, dim: opts.Dimension}
	stored, err := s.loadDimension()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	switch {
	case stored == 0:
	case s.dim == 0:
		s.dim = stored
	case stored != s.dim:
		_ = db.Close()
		return nil, DimensionError(stored, s.dim)
	}
	return s, nil
}

func (s *BadgerStore) loadDimension() (int, error) {
	var dim int
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(badgerDimKey)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if len(val) != 4 {
				return fmt.Errorf("vector: corrupt dimension entry")
			}
			dim = int(binary.LittleEndian.Uint32(val))
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, nil
	}
	return dim, err
}

func badgerKey(id, key string) ([]byte, error) {
	if strings.IndexByte(id, 0) >= 0 || strings.IndexByte(key, 0) >= 0 {
		return nil, fmt.Errorf("vector: id and key must not contain NUL")
	}
	k := make([]byte, 0, len(badgerRecordPrefix)+len(id)+1+len(key))
	k = append(k, badgerRecordPrefix...)
	k = append(k, id...)
	k = append(k, 0)
	k = append(k, key...)
	return k, nil
}

func (s *BadgerStore) Put(_ context.Context, rec Record) error {
	k, err := badgerKey(rec.ID, rec.Key)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := CheckDimension(rec.Vector, s.dim); err != nil {
		return err
	}
	val, err := msgpack.Marshal(badgerValue{Parent: rec.Parent, Vector: rec.Vector, Embedder: rec.Embedder})
	if err != nil {
		return err
	}
	fixDim := s.dim == 0
	err = s.db.Update(func(txn *badger.Txn) error {
		if fixDim {
			var d [4]byte
			binary.LittleEndian.PutUint32(d[:], uint32(len(rec.Vector)))
			if err := txn.Set(badgerDimKey, d[:]); err != nil {
				return err
			}
		}
		return txn.Set(k, val)
	})
	if err != nil {
		return fmt.Errorf("vector: put %s/%s: %w", rec.ID, rec.Key, err)
	}
	if fixDim {
		s.dim = len(rec.Vector)
	}
	return nil
}

func (s *BadgerStore) Get(_ context.Context, id, key string) (Record, error) {
	k, err := badgerKey(id, key)
	if err != nil {
		return Record{}, err
	}
	var val []byte
	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(k)
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, err
	}
	var v badgerValue
	if err := msgpack.Unmarshal(val, &v); err != nil {
		return Record{}, err
	}
	return Record{ID: id, Key: key, Parent: v.Parent, Vector: v.Vector, Embedder: v.Embedder}, nil
}

func (s *BadgerStore) Delete(_ context.Context, id, key string) error {
	k, err := badgerKey(id, key)
	if err != nil {
		return err
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(k)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil
	}
	return err
}

func (s *BadgerStore) Iterate(ctx context.Context) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		err := s.db.View(func(txn *badger.Txn) error {
			iterOpts := badger.DefaultIteratorOptions
			iterOpts.Prefix = badgerRecordPrefix
			it := txn.NewIterator(iterOpts)
			defer it.Close()

			for it.Seek(badgerRecordPrefix); it.ValidForPrefix(badgerRecordPrefix); it.Next() {
				if err := ctx.Err(); err != nil {
					return err
				}
				item := it.Item()
				rest := bytes.TrimPrefix(item.KeyCopy(nil), badgerRecordPrefix)
				sep := bytes.IndexByte(rest, 0)
				if sep < 0 {
					return fmt.Errorf("vector: corrupt record key %q", rest)
				}
				rec := Record{ID: string(rest[:sep]), Key: string(rest[sep+1:])}
				err := item.Value(func(val []byte) error {
					var v badgerValue
					if err := msgpack.Unmarshal(val, &v); err != nil {
						return err
					}
					rec.Parent, rec.Vector, rec.Embedder = v.Parent, v.Vector, v.Embedder
					return nil
				})
				if err != nil {
					return err
				}
				if !yield(rec, nil) {
					return nil
				}
			}
			return nil
		})
		if err != nil {
			yield(Record{}, err)
		}
	}
}

func (s *BadgerStore) Dimension() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dim
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}

var _ Store = (*BadgerStore)(nil)

// badgerLogger routes badger output through slog, dropping debug chatter.
type badgerLogger struct {
	logger *slog.Logger
}

func (l badgerLogger) Errorf(f string, v ...interface{}) {
	l.logger.Error(strings.TrimSpace(fmt.Sprintf(f, v...)))
}
func (l badgerLogger) Warningf(f string, v ...interface{}) {
	l.logger.Warn(strings.TrimSpace(fmt.Sprintf(f, v...)))
}
func (badgerLogger) Infof(string, ...interface{})  {}
func (badgerLogger) Debugf(string, ...interface{}) {}
