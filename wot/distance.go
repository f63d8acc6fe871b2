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
	"math"
)

// DistanceParams parameterizes one distance-rule evaluation
type DistanceParams struct {
	// Node is the vertex being evaluated
	Node NodeID

	// SentryRequirement is yMin: the in/out degree a sentry must have
	SentryRequirement int

	// StepMax is the maximum certification path length considered
	StepMax uint32

	// XPercent is the fraction of sentries that must reach the node
	XPercent float64
}

// DistanceResult reports one distance-rule evaluation
type DistanceResult struct {
	// Sentries is the number of sentries considered (the node itself,
	// when a sentry, is not counted)
	Sentries uint32

	// Success is how many of them reach the node within StepMax steps
	Success uint32

	// Reached is the number of vertices within StepMax steps of the node,
	// the node itself included
	Reached uint32

	// Outdistanced is true when Success < XPercent * Sentries
	Outdistanced bool
}

// SentryRequirement computes yMin = ceil(membersCount^(1/stepMax))
func SentryRequirement(membersCount int, stepMax uint32) int {
	if membersCount <= 0 || stepMax == 0 {
		return 0
	}
	return int(math.Ceil(math.Pow(float64(membersCount), 1.0/float64(stepMax))))
}

// ComputeDistance walks certifications backwards from the node, up to
// StepMax hops, and counts how many sentries can reach it. Returns false
// when the node does not exist.
func (w *WebOfTrust) ComputeDistance(params DistanceParams) (DistanceResult, bool) {
	var res DistanceResult
	if !w.Exists(params.Node) {
		return res, false
	}

	area := map[NodeID]bool{params.Node: true}
	border := map[NodeID]bool{params.Node: true}
	for step := uint32(0); step < params.StepMax; step++ {
		next := make(map[NodeID]bool)
		for id := range border {
			for _, src := range w.nodes[id].received {
				if !area[src] {
					next[src] = true
				}
			}
		}
		for id := range next {
			area[id] = true
		}
		border = next
	}

	sentries := w.Sentries(params.SentryRequirement)
	var success uint32
	for _, s := range sentries {
		if area[s] {
			success++
		}
	}
	total := uint32(len(sentries))
	if w.IsSentry(params.Node, params.SentryRequirement) {
		total--
		success--
	}

	res.Sentries = total
	res.Success = success
	res.Reached = uint32(len(area))
	res.Outdistanced = float64(success) < params.XPercent*float64(total)
	return res, true
}

// IsOutdistanced reports whether the node fails the distance rule
func (w *WebOfTrust) IsOutdistanced(params DistanceParams) (bool, bool) {
	res, ok := w.ComputeDistance(params)
	return res.Outdistanced, ok
}
