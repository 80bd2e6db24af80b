// Package wire holds the scalar types shared by the HTTP DTOs. Domain IDs
// are 64-bit unsigned and exceed the safe-integer range of some client
// runtimes, so they cross the wire as decimal strings.
package wire

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/danielgtaylor/huma/v2"
)

// ID is a 64-bit unsigned identifier serialized as a JSON decimal string.
type ID uint64

func (id ID) MarshalJSON() ([]byte, error) {
	return []byte(`"` + strconv.FormatUint(uint64(id), 10) + `"`), nil
}

// UnmarshalJSON accepts both the string form and, for lenient clients, the
// bare number form.
func (id *ID) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*id = 0
		return nil
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid id %q: %w", s, err)
	}
	*id = ID(v)
	return nil
}

// Schema renders IDs as string-typed in OpenAPI.
func (ID) Schema(r huma.Registry) *huma.Schema {
	return &huma.Schema{
		Type:        huma.TypeString,
		Pattern:     `^[0-9]+$`,
		Description: "64-bit unsigned identifier as a decimal string",
	}
}

// IDPtr converts an optional int64 into an optional wire ID.
func IDPtr(v *int64) *ID {
	if v == nil {
		return nil
	}
	id := ID(*v)
	return &id
}

// ISK is a monetary amount serialized as a decimal string because values can
// exceed 2^53.
type ISK float64

func (v ISK) MarshalJSON() ([]byte, error) {
	return []byte(`"` + strconv.FormatFloat(float64(v), 'f', 2, 64) + `"`), nil
}

func (v *ISK) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*v = 0
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid isk value %q: %w", s, err)
	}
	*v = ISK(f)
	return nil
}

// Schema renders ISK amounts as string-typed in OpenAPI.
func (ISK) Schema(r huma.Registry) *huma.Schema {
	return &huma.Schema{
		Type:        huma.TypeString,
		Description: "ISK amount as a decimal string with two fraction digits",
	}
}
