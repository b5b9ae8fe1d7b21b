// Package ledger stores named record collections as whole JSON documents.
//
// A collection is always read and written in full. Read never fails: a
// missing or corrupt document yields an empty collection. Load and Modify
// surface store failures instead, so an unreachable backend is never mistaken
// for an empty one and overwritten. Writes to the same collection are
// serialized through a per-collection mutex, and Modify holds that mutex
// across its read-modify-write so concurrent appends do not overwrite each
// other.
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/immxrtalbeast/ringcall/lib/logger/sl"
)

type Collection string

const (
	Calls    Collection = "calls"
	Users    Collection = "users"
	Sessions Collection = "sessions"
	Events   Collection = "events"
	Sales    Collection = "sales"
)

var (
	ErrDocumentNotFound = errors.New("ledger document not found")
	ErrUnavailable      = errors.New("ledger store unavailable")
)

// Store persists one opaque document per collection.
type Store interface {
	Load(ctx context.Context, collection Collection) ([]byte, error)
	Save(ctx context.Context, collection Collection, doc []byte) error
	Close() error
}

type Ledger struct {
	store Store
	log   *slog.Logger

	mu    sync.Mutex
	locks map[Collection]*sync.Mutex
}

func New(store Store, log *slog.Logger) *Ledger {
	if log == nil {
		log = slog.Default()
	}
	return &Ledger{
		store: store,
		log:   log,
		locks: make(map[Collection]*sync.Mutex),
	}
}

func (l *Ledger) Close() error {
	return l.store.Close()
}

func (l *Ledger) collectionLock(collection Collection) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()

	m, ok := l.locks[collection]
	if !ok {
		m = &sync.Mutex{}
		l.locks[collection] = m
	}
	return m
}

// Read returns every record of the collection, or an empty slice when the
// document is absent or corrupt.
func Read[T any](ctx context.Context, l *Ledger, collection Collection) []T {
	m := l.collectionLock(collection)
	m.Lock()
	defer m.Unlock()

	records, err := read[T](ctx, l, collection)
	if err != nil {
		l.log.Warn("failed to load collection, using empty default",
			slog.String("collection", string(collection)), sl.Err(err))
		return []T{}
	}
	return records
}

// Load is Read for callers that must tell an empty collection from an
// unreachable store. Absent and corrupt documents still load as empty.
func Load[T any](ctx context.Context, l *Ledger, collection Collection) ([]T, error) {
	m := l.collectionLock(collection)
	m.Lock()
	defer m.Unlock()

	return read[T](ctx, l, collection)
}

// Write replaces the whole collection with records.
func Write[T any](ctx context.Context, l *Ledger, collection Collection, records []T) error {
	m := l.collectionLock(collection)
	m.Lock()
	defer m.Unlock()

	return write(ctx, l, collection, records)
}

// Modify reads the collection, passes it to fn and writes back what fn
// returns. Nothing is written when the load or fn fails.
func Modify[T any](ctx context.Context, l *Ledger, collection Collection, fn func([]T) ([]T, error)) error {
	m := l.collectionLock(collection)
	m.Lock()
	defer m.Unlock()

	existing, err := read[T](ctx, l, collection)
	if err != nil {
		return err
	}
	records, err := fn(existing)
	if err != nil {
		return err
	}
	return write(ctx, l, collection, records)
}

// Append adds records to the end of the collection.
func Append[T any](ctx context.Context, l *Ledger, collection Collection, records ...T) error {
	return Modify(ctx, l, collection, func(existing []T) ([]T, error) {
		return append(existing, records...), nil
	})
}

func read[T any](ctx context.Context, l *Ledger, collection Collection) ([]T, error) {
	const op = "ledger.read"
	log := l.log.With(slog.String("op", op), slog.String("collection", string(collection)))

	doc, err := l.store.Load(ctx, collection)
	if err != nil {
		if errors.Is(err, ErrDocumentNotFound) {
			return []T{}, nil
		}
		return nil, fmt.Errorf("%w: load %s: %w", ErrUnavailable, collection, err)
	}

	records, err := decode[T](doc, collection)
	if err != nil {
		log.Warn("corrupt collection document, using empty default", sl.Err(err))
		return []T{}, nil
	}
	return records, nil
}

func write[T any](ctx context.Context, l *Ledger, collection Collection, records []T) error {
	if records == nil {
		records = []T{}
	}

	doc, err := sonic.ConfigStd.MarshalIndent(map[string][]T{string(collection): records}, "", "  ")
	if err != nil {
		return fmt.Errorf("ledger: encode %s: %w", collection, err)
	}

	if err := l.store.Save(ctx, collection, doc); err != nil {
		return fmt.Errorf("ledger: save %s: %w", collection, err)
	}
	return nil
}

func decode[T any](doc []byte, collection Collection) ([]T, error) {
	var wrapper map[string]json.RawMessage
	if err := sonic.ConfigStd.Unmarshal(doc, &wrapper); err != nil {
		return nil, err
	}

	raw, ok := wrapper[string(collection)]
	raw = bytes.TrimSpace(raw)
	if !ok || len(raw) == 0 || raw[0] != '[' {
		return []T{}, nil
	}

	var records []T
	if err := sonic.ConfigStd.Unmarshal(raw, &records); err != nil {
		return nil, err
	}
	if records == nil {
		records = []T{}
	}
	return records, nil
}
