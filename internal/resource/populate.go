package resource

import (
	"context"
	"errors"
	"fmt"

	"github.com/Mr-Midnight-101/Department-Management-system-sub000/internal/apperr"
	"github.com/Mr-Midnight-101/Department-Management-system-sub000/internal/models"
	"github.com/Mr-Midnight-101/Department-Management-system-sub000/internal/repository"
)

// refMemo caches referenced records for the duration of one call.
type refMemo map[string]models.Document

func newRefMemo() refMemo {
	return refMemo{}
}

// populate replaces reference ids with {id, display fields...}. A dangling
// reference is shown as {id} alone.
func (e *Engine) populate(ctx context.Context, doc models.Document, memo refMemo) (models.Document, error) {
	out := doc.Clone()
	for _, f := range e.schema.Fields {
		if f.Kind != KindRef || f.Ref == nil {
			continue
		}
		id, ok := doc[f.Name].(string)
		if !ok {
			continue
		}
		ref, err := memo.load(ctx, e.store, f.Ref.Collection, id)
		if err != nil {
			return nil, apperr.Internal(fmt.Sprintf("failed to load %s", f.Label), err)
		}
		projection := map[string]any{models.FieldID: id}
		for _, name := range f.Ref.Display {
			if v, ok := ref[name]; ok {
				projection[name] = v
			}
		}
		out[f.Name] = projection
	}
	return out, nil
}

func (m refMemo) load(ctx context.Context, store repository.Store, collection, id string) (models.Document, error) {
	key := collection + "/" + id
	if doc, ok := m[key]; ok {
		return doc, nil
	}
	doc, err := store.FindByID(ctx, collection, id)
	if errors.Is(err, repository.ErrNotFound) {
		doc, err = models.Document{}, nil
	}
	if err != nil {
		return nil, err
	}
	m[key] = doc
	return doc, nil
}
