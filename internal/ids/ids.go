package ids

import "github.com/segmentio/ksuid"

// New returns a new k-sortable record id.
func New() string {
	return ksuid.New().String()
}
