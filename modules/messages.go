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

package modules

import (
	"errors"
	"time"

	"github.com/dunitrust/dunitrust/network"
)

// EventKind selects which broadcast events a module subscribes to
type EventKind int

// Broadcast event kinds
const (
	// EventNewHead fires when the chain head advances
	EventNewHead EventKind = iota
	// EventBlockApplied fires with every applied block's mutations
	EventBlockApplied
	// EventPeerCard fires when a fresh peer card is received
	EventPeerCard
	// EventHeadReceived fires when a network HEAD message is received
	EventHeadReceived
)

// Event is one broadcast message
type Event struct {
	Kind    EventKind
	From    string
	Payload interface{}
}

// Request is a directed message awaiting a reply
type Request struct {
	From    string
	Target  string
	Payload interface{}

	// reply receives exactly one Reply; the router's client drops it
	// after the deadline
	reply chan Reply
}

// Reply answers a Request
type Reply struct {
	Payload interface{}
	Err     string
}

// Message is what a module's inbox receives
type Message struct {
	// exactly one of the following is set
	Event    *Event
	Request  *Request
	Shutdown bool

	// Endpoints carries every registered endpoint, delivered to modules
	// subscribed at registration time
	Endpoints []network.Endpoint
}

// Respond delivers the reply for a request. Late replies after the
// caller's deadline are discarded silently.
func (r *Request) Respond(reply Reply) {
	select {
	case r.reply <- reply:
	default:
	}
}

// ErrTimeout is returned when a request's deadline elapses before a reply
var ErrTimeout = errors.New("modules: request timed out")

// ErrRouterClosed is returned when sending to a stopped router
var ErrRouterClosed = errors.New("modules: router closed")

// ErrUnknownTarget is returned for a request to an unregistered module
var ErrUnknownTarget = errors.New("modules: unknown target module")

// router-side message envelope
type routerMsg struct {
	register  *registerMsg
	subscribe *subscribeMsg
	publish   *Event
	request   *Request
	shutdown  bool
}

type registerMsg struct {
	name      string
	inbox     chan Message
	endpoints []network.Endpoint
	events    []EventKind
	ack       chan error
}

type subscribeMsg struct {
	name   string
	events []EventKind
}

// DefaultRequestTimeout bounds a Request when the caller gives none
const DefaultRequestTimeout = 10 * time.Second
