package models

import "time"

// Document is a stored record of a resource collection. The store owns the "id",
// "createdAt" and "updatedAt" keys.
type Document map[string]any

const (
	FieldID        = "id"
	FieldCreatedAt = "createdAt"
	FieldUpdatedAt = "updatedAt"
)

func (d Document) ID() string {
	id, _ := d[FieldID].(string)
	return id
}

func (d Document) String(key string) string {
	s, _ := d[key].(string)
	return s
}

func (d Document) Time(key string) time.Time {
	t, _ := d[key].(time.Time)
	return t
}

// Clone returns a deep copy of nested maps and slices.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = CloneValue(v)
	}
	return out
}

// CloneValue deep-copies maps and slices held in a document field.
func CloneValue(v any) any {
	switch val := v.(type) {
	case Document:
		return val.Clone()
	case map[string]any:
		return map[string]any(Document(val).Clone())
	case []any:
		out := make([]any, len(val))
		for i := range val {
			out[i] = CloneValue(val[i])
		}
		return out
	case []string:
		out := make([]string, len(val))
		copy(out, val)
		return out
	default:
		return v
	}
}
