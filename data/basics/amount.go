// Copyright (C) 2019-2026 The Dunitrust Project Developers.
// This file is part of dunitrust
//
// dunitrust is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// dunitrust is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with dunitrust.  If not, see <https://www.gnu.org/licenses/>.

package basics

import (
	"errors"
	"math"
)

// Amount is a monetary quantity: effective units = Value * 10^Base.
// The base grows over the life of the currency as the Universal Dividend
// inflates nominal amounts.
type Amount struct {
	Value int64 `codec:"val"`
	Base  uint8 `codec:"base"`
}

// ErrAmountOverflow is returned when a sum or base conversion does not fit
// in a signed 64-bit value
var ErrAmountOverflow = errors.New("basics: amount overflow")

// AtBase converts the amount to the given base, which must not exceed the
// amount's own base. Overflow is a validation error, not a parse error.
func (a Amount) AtBase(base uint8) (int64, error) {
	if base > a.Base {
		return 0, ErrAmountOverflow
	}
	v := a.Value
	for b := a.Base; b > base; b-- {
		if v > math.MaxInt64/10 || v < math.MinInt64/10 {
			return 0, ErrAmountOverflow
		}
		v *= 10
	}
	return v, nil
}

// SumAmounts adds amounts after normalizing them to the smallest base among
// them, returning the total at that base.
func SumAmounts(amounts []Amount) (Amount, error) {
	if len(amounts) == 0 {
		return Amount{}, nil
	}
	minBase := amounts[0].Base
	for _, a := range amounts[1:] {
		if a.Base < minBase {
			minBase = a.Base
		}
	}
	var total int64
	for _, a := range amounts {
		v, err := a.AtBase(minBase)
		if err != nil {
			return Amount{}, err
		}
		sum := total + v
		if (v > 0 && sum < total) || (v < 0 && sum > total) {
			return Amount{}, ErrAmountOverflow
		}
		total = sum
	}
	return Amount{Value: total, Base: minBase}, nil
}

// Equal compares two amounts after base normalization
func (a Amount) Equal(b Amount) bool {
	low := a.Base
	if b.Base < low {
		low = b.Base
	}
	av, aerr := a.AtBase(low)
	bv, berr := b.AtBase(low)
	if aerr != nil || berr != nil {
		return false
	}
	return av == bv
}
