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

// Package wot maintains the Web of Trust: the directed certification graph
// whose vertices are members and whose edges are live certifications.
//
// The graph may contain directed cycles; edges are plain NodeID values in
// adjacency lists, never references. NodeIDs are opaque stable integers:
// removing a member only disables its vertex, IDs are never reused within
// a run.
package wot

// NodeID identifies one vertex of the graph
type NodeID uint32

// node is one vertex: its enabled flag and adjacency lists. issued holds
// the targets of certifications this node emitted; received holds their
// sources.
type node struct {
	enabled  bool
	issued   []NodeID
	received []NodeID
}

// WebOfTrust is the certification graph. It is not safe for concurrent
// mutation; the owner publishes read-only copies with Snapshot.
type WebOfTrust struct {
	nodes []node
}

// Make creates an empty web of trust
func Make() *WebOfTrust {
	return &WebOfTrust{}
}

// Size returns the number of vertices ever added, enabled or not
func (w *WebOfTrust) Size() int {
	return len(w.nodes)
}

// AddNode adds an enabled vertex and returns its id
func (w *WebOfTrust) AddNode() NodeID {
	w.nodes = append(w.nodes, node{enabled: true})
	return NodeID(len(w.nodes) - 1)
}

// Exists reports whether the id names a vertex
func (w *WebOfTrust) Exists(id NodeID) bool {
	return int(id) < len(w.nodes)
}

// Enabled reports whether the vertex is enabled
func (w *WebOfTrust) Enabled(id NodeID) bool {
	return w.Exists(id) && w.nodes[id].enabled
}

// SetEnabled flips the enabled mark of a vertex. Disabling never removes
// edges: a kicked member keeps its history until the certifications expire.
func (w *WebOfTrust) SetEnabled(id NodeID, enabled bool) bool {
	if !w.Exists(id) {
		return false
	}
	w.nodes[id].enabled = enabled
	return true
}

// HasLink reports whether from certifies to
func (w *WebOfTrust) HasLink(from, to NodeID) bool {
	if !w.Exists(from) || !w.Exists(to) {
		return false
	}
	for _, t := range w.nodes[from].issued {
		if t == to {
			return true
		}
	}
	return false
}

// AddLink inserts the edge from -> to. Duplicate edges and self-links are
// rejected.
func (w *WebOfTrust) AddLink(from, to NodeID) bool {
	if !w.Exists(from) || !w.Exists(to) || from == to || w.HasLink(from, to) {
		return false
	}
	w.nodes[from].issued = append(w.nodes[from].issued, to)
	w.nodes[to].received = append(w.nodes[to].received, from)
	return true
}

// RemoveLink removes the edge from -> to
func (w *WebOfTrust) RemoveLink(from, to NodeID) bool {
	if !w.HasLink(from, to) {
		return false
	}
	w.nodes[from].issued = removeID(w.nodes[from].issued, to)
	w.nodes[to].received = removeID(w.nodes[to].received, from)
	return true
}

func removeID(ids []NodeID, id NodeID) []NodeID {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}

// IssuedCount returns the out-degree of a vertex
func (w *WebOfTrust) IssuedCount(id NodeID) int {
	if !w.Exists(id) {
		return 0
	}
	return len(w.nodes[id].issued)
}

// ReceivedCount returns the in-degree of a vertex
func (w *WebOfTrust) ReceivedCount(id NodeID) int {
	if !w.Exists(id) {
		return 0
	}
	return len(w.nodes[id].received)
}

// Certifiers returns the sources of the certifications received by id
func (w *WebOfTrust) Certifiers(id NodeID) []NodeID {
	if !w.Exists(id) {
		return nil
	}
	return w.nodes[id].received
}

// IsSentry reports whether a vertex is a sentry for the given requirement:
// enabled, with in-degree and out-degree both at least yMin.
func (w *WebOfTrust) IsSentry(id NodeID, yMin int) bool {
	if !w.Enabled(id) {
		return false
	}
	n := &w.nodes[id]
	return len(n.issued) >= yMin && len(n.received) >= yMin
}

// Sentries returns every sentry for the given requirement
func (w *WebOfTrust) Sentries(yMin int) []NodeID {
	var out []NodeID
	for id := range w.nodes {
		if w.IsSentry(NodeID(id), yMin) {
			out = append(out, NodeID(id))
		}
	}
	return out
}

// EnabledCount returns the number of enabled vertices
func (w *WebOfTrust) EnabledCount() int {
	n := 0
	for id := range w.nodes {
		if w.nodes[id].enabled {
			n++
		}
	}
	return n
}

// Snapshot returns a deep copy, safe to read while the original keeps
// mutating. Published once per block write.
func (w *WebOfTrust) Snapshot() *WebOfTrust {
	cp := &WebOfTrust{nodes: make([]node, len(w.nodes))}
	for i := range w.nodes {
		cp.nodes[i].enabled = w.nodes[i].enabled
		cp.nodes[i].issued = append([]NodeID(nil), w.nodes[i].issued...)
		cp.nodes[i].received = append([]NodeID(nil), w.nodes[i].received...)
	}
	return cp
}
