// Package resource implements create, list, get, update, delete and count over
// document collections described by a Schema.
package resource

import (
	"strings"

	"github.com/Mr-Midnight-101/Department-Management-system-sub000/internal/models"
)

type Kind int

const (
	KindString Kind = iota
	KindNumber
	KindBool
	// KindDate holds a calendar date stored as YYYY-MM-DD.
	KindDate
	KindEmail
	KindEnum
	// KindRef holds the id of a record in another collection.
	KindRef
)

// Case is the normalisation applied to string input before it is stored.
type Case int

const (
	CaseTrim Case = iota
	CaseUpper
	CaseLower
	CaseTitle
)

type Ref struct {
	Collection string
	// Display lists the referenced fields shown in place of the raw id on read.
	Display []string
}

type Range struct {
	Min float64
	Max float64
}

type Field struct {
	Name     string
	Label    string
	Kind     Kind
	Required bool
	Case     Case
	Enum     []string
	Range    *Range
	Ref      *Ref
}

type Schema struct {
	// Name is the collection name and URL segment.
	Name string
	// Label is the singular display name used in messages.
	Label  string
	Fields []Field
	// Unique lists the unique keys in the order conflicts are reported.
	Unique [][]string
	SortBy string
	// Derive computes stored fields from the other fields of a complete document.
	Derive func(doc models.Document) models.Document
}

func (s Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// keyLabel names a unique key for conflict messages: "course code" or
// "student, subject and exam period".
func (s Schema) keyLabel(key []string) string {
	labels := make([]string, len(key))
	for i, name := range key {
		labels[i] = name
		if f, ok := s.Field(name); ok && f.Label != "" {
			labels[i] = f.Label
		}
	}
	if len(labels) == 1 {
		return labels[0]
	}
	return strings.Join(labels[:len(labels)-1], ", ") + " and " + labels[len(labels)-1]
}

func between(min, max float64) *Range {
	return &Range{Min: min, Max: max}
}
