// Package idgen generates sortable unique identifiers.
package idgen

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// New returns a new ULID string. IDs generated in the same millisecond
// sort in generation order.
func New() string {
	return ulid.Make().String()
}

// Time extracts the creation time from an ID produced by New.
func Time(id string) (time.Time, error) {
	u, err := ulid.ParseStrict(id)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(u.Time()), nil
}
