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

// Package timers provides a Clock abstraction useful for simulating deadlines.
package timers

import (
	"time"
)

// WallClock measures the wall time elapsed since a zero point.
type WallClock interface {
	// Zero resets the clock's zero point to now.
	Zero()

	// Since returns the time elapsed since the zero point.
	Since() time.Duration

	// TimeoutAt returns a channel that fires when the given duration has
	// elapsed since the zero point.
	TimeoutAt(delta time.Duration) <-chan time.Time
}

// MonotonicClock is a concrete WallClock backed by the runtime's monotonic reading.
type MonotonicClock struct {
	zero time.Time
}

// MakeMonotonicClock creates a monotonic clock with the given zero point.
func MakeMonotonicClock(zero time.Time) *MonotonicClock {
	return &MonotonicClock{zero: zero}
}

// Zero resets the zero point to now.
func (m *MonotonicClock) Zero() {
	m.zero = time.Now()
}

// Since returns the wall time elapsed since the zero point.
func (m *MonotonicClock) Since() time.Duration {
	return time.Since(m.zero)
}

// TimeoutAt returns a channel that fires delta after the zero point.
func (m *MonotonicClock) TimeoutAt(delta time.Duration) <-chan time.Time {
	left := delta - m.Since()
	if left < 0 {
		left = 0
	}
	return time.After(left)
}
