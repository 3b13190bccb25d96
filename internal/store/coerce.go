// SPDX-License-Identifier: MIT
package store

import (
	"math"
	"strconv"

	"github.com/openestate/resosync/internal/reso"
)

// CoerceInt applies the numeric coercion policy for integer-typed columns:
// numeric input is accepted as-is, a decimal string is rounded to the nearest
// integer, anything non-numeric stores as null.
func CoerceInt(n reso.Num) *int64 {
	if n.IsNull() {
		return nil
	}
	if i, err := strconv.ParseInt(n.Raw, 10, 64); err == nil {
		return &i
	}
	if f, err := strconv.ParseFloat(n.Raw, 64); err == nil {
		i := int64(math.Round(f))
		return &i
	}
	return nil
}

// CoerceFloat parses a loosely-typed value as float64, or null.
func CoerceFloat(n reso.Num) *float64 {
	if n.IsNull() {
		return nil
	}
	if f, err := strconv.ParseFloat(n.Raw, 64); err == nil {
		return &f
	}
	return nil
}
