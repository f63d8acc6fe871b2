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

package wot

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// fullyConnected builds a graph of n members where everyone certifies
// everyone else.
func fullyConnected(n int) *WebOfTrust {
	w := Make()
	for i := 0; i < n; i++ {
		w.AddNode()
	}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i != j {
				w.AddLink(NodeID(i), NodeID(j))
			}
		}
	}
	return w
}

func TestAddRemoveLinks(t *testing.T) {
	w := Make()
	a := w.AddNode()
	b := w.AddNode()
	c := w.AddNode()

	require.True(t, w.AddLink(a, b))
	require.True(t, w.AddLink(c, b))
	require.True(t, w.HasLink(a, b))
	require.False(t, w.HasLink(b, a))

	// duplicates and self-links are rejected
	require.False(t, w.AddLink(a, b))
	require.False(t, w.AddLink(a, a))

	require.Equal(t, 2, w.ReceivedCount(b))
	require.Equal(t, 1, w.IssuedCount(a))

	require.True(t, w.RemoveLink(a, b))
	require.False(t, w.HasLink(a, b))
	require.False(t, w.RemoveLink(a, b))
	require.Equal(t, 1, w.ReceivedCount(b))
}

func TestDisableKeepsNodeID(t *testing.T) {
	w := Make()
	a := w.AddNode()
	b := w.AddNode()
	require.True(t, w.AddLink(a, b))

	require.True(t, w.SetEnabled(b, false))
	require.False(t, w.Enabled(b))
	// disabling does not remove the vertex or its edges
	require.True(t, w.Exists(b))
	require.True(t, w.HasLink(a, b))

	// new ids keep growing, never reusing b
	c := w.AddNode()
	require.Equal(t, NodeID(2), c)
	require.Equal(t, 3, w.Size())
	require.Equal(t, 2, w.EnabledCount())
}

func TestSentryRequirement(t *testing.T) {
	// ceil(N^(1/stepMax))
	require.Equal(t, 2, SentryRequirement(10, 5))
	require.Equal(t, 2, SentryRequirement(16, 4))
	require.Equal(t, 3, SentryRequirement(17, 4))
	require.Equal(t, 0, SentryRequirement(0, 5))
}

func TestSentries(t *testing.T) {
	w := fullyConnected(4)
	// everyone has in/out degree 3
	require.Len(t, w.Sentries(3), 4)
	require.Empty(t, w.Sentries(4))

	// a disabled node is not a sentry
	w.SetEnabled(0, false)
	require.Len(t, w.Sentries(3), 3)
	require.False(t, w.IsSentry(0, 3))
}

func TestDistanceFullyConnected(t *testing.T) {
	w := fullyConnected(5)
	res, ok := w.ComputeDistance(DistanceParams{
		Node:              0,
		SentryRequirement: 4,
		StepMax:           5,
		XPercent:          0.8,
	})
	require.True(t, ok)
	// node 0 is itself a sentry and is excluded from the count
	require.Equal(t, uint32(4), res.Sentries)
	require.Equal(t, uint32(4), res.Success)
	require.False(t, res.Outdistanced)
}

func TestDistanceChain(t *testing.T) {
	// 0 <- 1 <- 2 <- 3: only direct certifiers within one step
	w := Make()
	for i := 0; i < 4; i++ {
		w.AddNode()
	}
	w.AddLink(1, 0)
	w.AddLink(2, 1)
	w.AddLink(3, 2)

	res, ok := w.ComputeDistance(DistanceParams{Node: 0, SentryRequirement: 1, StepMax: 1, XPercent: 1.0})
	require.True(t, ok)
	// sentries are 1 and 2 (in and out degree >= 1); only 1 reaches node 0
	// within one step
	require.Equal(t, uint32(2), res.Sentries)
	require.Equal(t, uint32(1), res.Success)
	require.True(t, res.Outdistanced)

	// with three steps both sentries reach it
	res, ok = w.ComputeDistance(DistanceParams{Node: 0, SentryRequirement: 1, StepMax: 3, XPercent: 1.0})
	require.True(t, ok)
	require.Equal(t, uint32(2), res.Success)
	require.False(t, res.Outdistanced)

	_, ok = w.ComputeDistance(DistanceParams{Node: 99, SentryRequirement: 1, StepMax: 1, XPercent: 1.0})
	require.False(t, ok)
}

func TestDistanceWithCycle(t *testing.T) {
	// certification cycles must not hang the walk
	w := Make()
	for i := 0; i < 3; i++ {
		w.AddNode()
	}
	w.AddLink(0, 1)
	w.AddLink(1, 2)
	w.AddLink(2, 0)

	res, ok := w.ComputeDistance(DistanceParams{Node: 0, SentryRequirement: 1, StepMax: 10, XPercent: 1.0})
	require.True(t, ok)
	require.Equal(t, uint32(3), res.Reached)
}

func TestSnapshotIsolation(t *testing.T) {
	w := fullyConnected(3)
	snap := w.Snapshot()

	w.RemoveLink(0, 1)
	w.SetEnabled(2, false)
	w.AddNode()

	// the snapshot still sees the original state
	require.True(t, snap.HasLink(0, 1))
	require.True(t, snap.Enabled(2))
	require.Equal(t, 3, snap.Size())
}
