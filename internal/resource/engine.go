package resource

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Mr-Midnight-101/Department-Management-system-sub000/internal/apperr"
	"github.com/Mr-Midnight-101/Department-Management-system-sub000/internal/cache"
	"github.com/Mr-Midnight-101/Department-Management-system-sub000/internal/models"
	"github.com/Mr-Midnight-101/Department-Management-system-sub000/internal/repository"
)

// Engine runs the CRUD operations of one schema against the document store.
type Engine struct {
	store  repository.Store
	counts cache.Counts
	schema Schema
}

func NewEngine(store repository.Store, counts cache.Counts, schema Schema) *Engine {
	if counts == nil {
		counts = cache.NoCounts{}
	}
	return &Engine{store: store, counts: counts, schema: schema}
}

func (e *Engine) Schema() Schema {
	return e.schema
}

// EnsureIndexes mirrors every unique key as a storage-level unique index.
func (e *Engine) EnsureIndexes(ctx context.Context) error {
	for _, key := range e.schema.Unique {
		idx := repository.Index{Name: strings.Join(key, "_") + "_key", Fields: key, Unique: true}
		if err := e.store.EnsureIndex(ctx, e.schema.Name, idx); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) Create(ctx context.Context, input map[string]any) (models.Document, error) {
	doc := models.Document{}
	var missing, invalid []string
	for _, f := range e.schema.Fields {
		raw, present := input[f.Name]
		if !present {
			if f.Required {
				missing = append(missing, fmt.Sprintf("%s is required", f.Label))
			}
			continue
		}
		v, err := normalizeValue(f, raw)
		switch {
		case errors.Is(err, errEmpty):
			if f.Required {
				missing = append(missing, fmt.Sprintf("%s is required", f.Label))
			}
		case err != nil:
			invalid = append(invalid, err.Error())
		default:
			doc[f.Name] = v
		}
	}
	if len(missing) > 0 {
		return nil, apperr.Validation("All required fields must be provided", append(missing, invalid...)...)
	}
	if len(invalid) > 0 {
		return nil, apperr.Validation(invalid[0], invalid...)
	}

	if err := e.verifyRefs(ctx, doc); err != nil {
		return nil, err
	}
	if err := e.checkConflicts(ctx, doc, ""); err != nil {
		return nil, err
	}
	if e.schema.Derive != nil {
		for k, v := range e.schema.Derive(doc) {
			doc[k] = v
		}
	}

	stored, err := e.store.Insert(ctx, e.schema.Name, doc)
	if err != nil {
		return nil, e.writeError(ctx, "create", doc, "", err)
	}
	e.counts.Invalidate(ctx, e.schema.Name)
	return e.populate(ctx, stored, newRefMemo())
}

func (e *Engine) List(ctx context.Context) ([]models.Document, error) {
	docs, err := e.store.Find(ctx, e.schema.Name, repository.FindOptions{SortBy: e.schema.SortBy})
	if err != nil {
		return nil, apperr.Internal(fmt.Sprintf("failed to list %s", e.schema.Name), err)
	}
	memo := newRefMemo()
	out := make([]models.Document, 0, len(docs))
	for _, doc := range docs {
		populated, err := e.populate(ctx, doc, memo)
		if err != nil {
			return nil, err
		}
		out = append(out, populated)
	}
	return out, nil
}

func (e *Engine) Get(ctx context.Context, id string) (models.Document, error) {
	doc, err := e.store.FindByID(ctx, e.schema.Name, id)
	if err != nil {
		return nil, e.lookupError(id, err)
	}
	return e.populate(ctx, doc, newRefMemo())
}

// Update merges the recognised fields of input into the record. Absent fields are
// untouched; an optional field sent empty is removed.
func (e *Engine) Update(ctx context.Context, id string, input map[string]any) (models.Document, error) {
	set := models.Document{}
	var invalid []string
	for _, f := range e.schema.Fields {
		raw, present := input[f.Name]
		if !present {
			continue
		}
		v, err := normalizeValue(f, raw)
		switch {
		case errors.Is(err, errEmpty):
			if f.Required {
				invalid = append(invalid, fmt.Sprintf("%s cannot be empty", f.Label))
				continue
			}
			set[f.Name] = nil
		case err != nil:
			invalid = append(invalid, err.Error())
		default:
			set[f.Name] = v
		}
	}
	if len(invalid) > 0 {
		return nil, apperr.Validation(invalid[0], invalid...)
	}
	if len(set) == 0 {
		return nil, apperr.Validation("At least one field is required to update")
	}

	existing, err := e.store.FindByID(ctx, e.schema.Name, id)
	if err != nil {
		return nil, e.lookupError(id, err)
	}
	if err := e.verifyRefs(ctx, set); err != nil {
		return nil, err
	}

	merged := existing.Clone()
	for k, v := range set {
		if v == nil {
			delete(merged, k)
			continue
		}
		merged[k] = v
	}
	if err := e.checkConflicts(ctx, merged, id); err != nil {
		return nil, err
	}
	if e.schema.Derive != nil {
		for k, v := range e.schema.Derive(merged) {
			set[k] = v
		}
	}

	stored, err := e.store.Update(ctx, e.schema.Name, id, nil, set)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, e.lookupError(id, err)
		}
		return nil, e.writeError(ctx, "update", merged, id, err)
	}
	return e.populate(ctx, stored, newRefMemo())
}

func (e *Engine) Delete(ctx context.Context, id string) (models.Document, error) {
	removed, err := e.store.Delete(ctx, e.schema.Name, id)
	if err != nil {
		return nil, e.lookupError(id, err)
	}
	e.counts.Invalidate(ctx, e.schema.Name)
	return e.populate(ctx, removed, newRefMemo())
}

func (e *Engine) Count(ctx context.Context) (int64, error) {
	if n, ok := e.counts.Get(ctx, e.schema.Name); ok {
		return n, nil
	}
	n, err := e.store.Count(ctx, e.schema.Name)
	if err != nil {
		return 0, apperr.Internal(fmt.Sprintf("failed to count %s", e.schema.Name), err)
	}
	e.counts.Set(ctx, e.schema.Name, n)
	return n, nil
}

func (e *Engine) verifyRefs(ctx context.Context, doc models.Document) error {
	for _, f := range e.schema.Fields {
		if f.Kind != KindRef || f.Ref == nil {
			continue
		}
		id, ok := doc[f.Name].(string)
		if !ok {
			continue
		}
		if _, err := e.store.FindByID(ctx, f.Ref.Collection, id); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return apperr.NotFound(fmt.Sprintf("%s not found", capitalize(f.Label)))
			}
			return apperr.Internal(fmt.Sprintf("failed to look up %s", f.Label), err)
		}
	}
	return nil
}

// checkConflicts reports the first unique key, in declaration order, that doc
// shares with a record other than selfID.
func (e *Engine) checkConflicts(ctx context.Context, doc models.Document, selfID string) error {
	for _, key := range e.schema.Unique {
		match := repository.Match{}
		complete := true
		for _, name := range key {
			v, ok := doc[name]
			if !ok || v == nil {
				complete = false
				break
			}
			match[name] = v
		}
		if !complete {
			continue
		}
		found, err := e.store.FindOne(ctx, e.schema.Name, match)
		if errors.Is(err, repository.ErrNotFound) {
			continue
		}
		if err != nil {
			return apperr.Internal(fmt.Sprintf("failed to check %s uniqueness", e.schema.Label), err)
		}
		if found.ID() != selfID {
			return e.conflict(key)
		}
	}
	return nil
}

func (e *Engine) conflict(key []string) error {
	if len(key) == 1 {
		return apperr.Conflict(fmt.Sprintf("%s with this %s already exists", e.schema.Label, e.schema.keyLabel(key)))
	}
	return apperr.Conflict(fmt.Sprintf("%s already exists for this %s", e.schema.Label, e.schema.keyLabel(key)))
}

// writeError maps a failed insert or update. A duplicate means another writer won
// the race after the pre-check; the key is detected again to name it.
func (e *Engine) writeError(ctx context.Context, op string, doc models.Document, selfID string, err error) error {
	if errors.Is(err, repository.ErrDuplicate) {
		if named := e.checkConflicts(ctx, doc, selfID); named != nil {
			return named
		}
		return apperr.Conflict(fmt.Sprintf("%s already exists", e.schema.Label))
	}
	return apperr.Internal(fmt.Sprintf("failed to %s %s", op, strings.ToLower(e.schema.Label)), err)
}

func (e *Engine) lookupError(id string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFound(fmt.Sprintf("%s not found", e.schema.Label))
	}
	return apperr.Internal(fmt.Sprintf("failed to load %s %s", strings.ToLower(e.schema.Label), id), err)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
