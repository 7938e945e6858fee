package repository

import (
	"context"
	"reflect"
	"sort"
	"sync"

	"github.com/Mr-Midnight-101/Department-Management-system-sub000/internal/ids"
	"github.com/Mr-Midnight-101/Department-Management-system-sub000/internal/models"
)

// MemoryStore keeps collections in process memory and enforces unique indexes the
// way the database drivers do. It backs the test suites; database.Open never selects it.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]*memCollection
}

type memCollection struct {
	docs    []models.Document
	indexes []Index
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]*memCollection)}
}

func (s *MemoryStore) col(name string) *memCollection {
	c, ok := s.collections[name]
	if !ok {
		c = &memCollection{}
		s.collections[name] = c
	}
	return c
}

func (s *MemoryStore) Insert(_ context.Context, collection string, doc models.Document) (models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.col(collection)
	stored := body(doc).Clone()
	id := doc.ID()
	if id == "" {
		id = ids.New()
	}
	if c.position(id) >= 0 {
		return nil, ErrDuplicate
	}
	ts := now()
	stored[models.FieldID] = id
	stored[models.FieldCreatedAt] = ts
	stored[models.FieldUpdatedAt] = ts

	if c.violatesUnique(stored, "") {
		return nil, ErrDuplicate
	}
	c.docs = append(c.docs, stored)
	return stored.Clone(), nil
}

func (s *MemoryStore) FindByID(_ context.Context, collection, id string) (models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c := s.col(collection)
	pos := c.position(id)
	if pos < 0 {
		return nil, ErrNotFound
	}
	return c.docs[pos].Clone(), nil
}

func (s *MemoryStore) FindOne(_ context.Context, collection string, match Match) (models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, doc := range s.col(collection).docs {
		if matches(doc, match) {
			return doc.Clone(), nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) Find(_ context.Context, collection string, opts FindOptions) ([]models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.Document{}
	for _, doc := range s.col(collection).docs {
		if matches(doc, opts.Match) {
			out = append(out, doc.Clone())
		}
	}
	if opts.SortBy != "" {
		sort.SliceStable(out, func(i, j int) bool {
			return compareValues(out[i][opts.SortBy], out[j][opts.SortBy]) < 0
		})
	}
	return out, nil
}

func (s *MemoryStore) Update(_ context.Context, collection, id string, cond Match, set models.Document) (models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.col(collection)
	pos := c.position(id)
	if pos < 0 || !matches(c.docs[pos], cond) {
		return nil, ErrNotFound
	}

	assign, unset := splitSet(set)
	updated := c.docs[pos].Clone()
	for k, v := range assign {
		updated[k] = models.CloneValue(v)
	}
	for _, k := range unset {
		delete(updated, k)
	}
	updated[models.FieldUpdatedAt] = now()

	if c.violatesUnique(updated, id) {
		return nil, ErrDuplicate
	}
	c.docs[pos] = updated
	return updated.Clone(), nil
}

func (s *MemoryStore) Delete(_ context.Context, collection, id string) (models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.col(collection)
	pos := c.position(id)
	if pos < 0 {
		return nil, ErrNotFound
	}
	removed := c.docs[pos]
	c.docs = append(c.docs[:pos], c.docs[pos+1:]...)
	return removed, nil
}

func (s *MemoryStore) Count(_ context.Context, collection string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.col(collection).docs)), nil
}

func (s *MemoryStore) EnsureIndex(_ context.Context, collection string, idx Index) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.col(collection)
	idx.Name = indexName(collection, idx)
	for _, existing := range c.indexes {
		if existing.Name == idx.Name {
			return nil
		}
	}
	c.indexes = append(c.indexes, idx)
	return nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close(context.Context) error { return nil }

func (c *memCollection) position(id string) int {
	for i, doc := range c.docs {
		if doc.ID() == id {
			return i
		}
	}
	return -1
}

func (c *memCollection) violatesUnique(doc models.Document, selfID string) bool {
	for _, idx := range c.indexes {
		if !idx.Unique {
			continue
		}
		key, ok := keyValues(doc, idx.Fields)
		if !ok {
			continue
		}
		for _, other := range c.docs {
			if other.ID() == selfID {
				continue
			}
			otherKey, ok := keyValues(other, idx.Fields)
			if ok && reflect.DeepEqual(key, otherKey) {
				return true
			}
		}
	}
	return false
}

func matches(doc models.Document, match Match) bool {
	for k, want := range match {
		if !valuesEqual(doc[k], want) {
			return false
		}
	}
	return true
}

var _ Store = (*MemoryStore)(nil)
