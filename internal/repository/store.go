package repository

import (
	"context"
	"errors"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/Mr-Midnight-101/Department-Management-system-sub000/internal/models"
)

var (
	ErrNotFound  = errors.New("document not found")
	ErrDuplicate = errors.New("duplicate key")
)

// Match is an equality filter on top-level document fields; all entries must match.
type Match map[string]any

type FindOptions struct {
	Match Match
	// SortBy orders ascending by the named field. Empty keeps storage order.
	SortBy string
}

type Index struct {
	Name   string
	Fields []string
	Unique bool
}

// Store is the document database behind every collection.
type Store interface {
	// Insert stores doc. An empty id is assigned; timestamps are set by the store.
	Insert(ctx context.Context, collection string, doc models.Document) (models.Document, error)
	FindByID(ctx context.Context, collection, id string) (models.Document, error)
	FindOne(ctx context.Context, collection string, match Match) (models.Document, error)
	Find(ctx context.Context, collection string, opts FindOptions) ([]models.Document, error)
	// Update merges set into the document atomically. A nil value removes the field.
	// When cond is non-empty the write only happens if the stored document matches it,
	// otherwise ErrNotFound is returned.
	Update(ctx context.Context, collection, id string, cond Match, set models.Document) (models.Document, error)
	Delete(ctx context.Context, collection, id string) (models.Document, error)
	Count(ctx context.Context, collection string) (int64, error)
	EnsureIndex(ctx context.Context, collection string, idx Index) error
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// splitSet separates assignments from removals.
func splitSet(set models.Document) (models.Document, []string) {
	assign := make(models.Document, len(set))
	var unset []string
	for k, v := range set {
		if isManagedField(k) {
			continue
		}
		if v == nil {
			unset = append(unset, k)
			continue
		}
		assign[k] = v
	}
	sort.Strings(unset)
	return assign, unset
}

func isManagedField(k string) bool {
	return k == models.FieldID || k == models.FieldCreatedAt || k == models.FieldUpdatedAt
}

// body strips the store-managed fields.
func body(doc models.Document) models.Document {
	out := make(models.Document, len(doc))
	for k, v := range doc {
		if isManagedField(k) || v == nil {
			continue
		}
		out[k] = v
	}
	return out
}

func valuesEqual(a, b any) bool {
	if af, ok := toFloat(a); ok {
		bf, ok := toFloat(b)
		return ok && af == bf
	}
	return reflect.DeepEqual(a, b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func compareValues(a, b any) int {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		}
		return 0
	}
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return -1
		}
		return 1
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func indexName(collection string, idx Index) string {
	if idx.Name != "" {
		return idx.Name
	}
	return collection + "_" + strings.Join(idx.Fields, "_") + "_key"
}

// keyValues returns the index key of doc, or false when any part is absent.
func keyValues(doc models.Document, fields []string) ([]any, bool) {
	out := make([]any, len(fields))
	for i, f := range fields {
		v, ok := doc[f]
		if !ok || v == nil {
			return nil, false
		}
		if fv, isNum := toFloat(v); isNum && !math.IsNaN(fv) {
			v = fv
		}
		out[i] = v
	}
	return out, true
}
