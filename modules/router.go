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

	"github.com/dunitrust/dunitrust/logging"
	"github.com/dunitrust/dunitrust/network"
	"github.com/dunitrust/dunitrust/util/timers"
)

// RegistrationDeadline is how long required modules have to register
// before the router aborts the node.
const RegistrationDeadline = 20 * time.Second

// moduleInboxSize bounds each module's pending messages
const moduleInboxSize = 64

// ErrRegistrationTimeout is returned by Run when a required module missed
// the registration deadline. Maps to exit code 2.
var ErrRegistrationTimeout = errors.New("modules: required module registration timed out")

// Router relays typed messages between modules: directed requests by
// target name, events by subscription. Messages from one sender keep
// their order; no cross-sender order is guaranteed.
type Router struct {
	log   logging.Logger
	clock timers.WallClock

	in   chan routerMsg
	done chan struct{}

	// registrationDeadline is RegistrationDeadline, shortened by tests
	registrationDeadline time.Duration

	// required lists modules that must register before the deadline
	required map[string]bool

	entries   map[string]*moduleEntry
	subs      map[EventKind]map[string]bool
	endpoints []network.Endpoint
}

type moduleEntry struct {
	name  string
	inbox chan Message
}

// MakeRouter creates a router expecting the named required modules
func MakeRouter(log logging.Logger, required []string) *Router {
	req := make(map[string]bool, len(required))
	for _, name := range required {
		req[name] = true
	}
	return &Router{
		log:                  log,
		clock:                timers.MakeMonotonicClock(time.Now()),
		in:                   make(chan routerMsg, 256),
		done:                 make(chan struct{}),
		required:             req,
		entries:              make(map[string]*moduleEntry),
		subs:                 make(map[EventKind]map[string]bool),
		registrationDeadline: RegistrationDeadline,
	}
}

// Client returns a handle for one module to talk to the router
func (r *Router) Client(name string) *Client {
	return &Client{router: r, name: name}
}

// Run executes the router loop until Shutdown or a registration timeout.
// It returns nil on clean shutdown, ErrRegistrationTimeout when a
// required module failed to register in time.
func (r *Router) Run() error {
	defer close(r.done)
	r.clock.Zero()
	deadline := r.clock.TimeoutAt(r.registrationDeadline)
	monitor := timers.MakeMonotonicDeadlineMonitor(r.clock, r.registrationDeadline)

	for {
		select {
		case <-deadline:
			if missing := r.missingRequired(); len(missing) > 0 {
				r.log.Errorf("required modules did not register: %v", missing)
				r.broadcastShutdown()
				return ErrRegistrationTimeout
			}
			deadline = nil
		case msg := <-r.in:
			switch {
			case msg.register != nil:
				r.handleRegister(msg.register, monitor)
			case msg.subscribe != nil:
				r.handleSubscribe(msg.subscribe)
			case msg.publish != nil:
				r.handlePublish(msg.publish)
			case msg.request != nil:
				r.handleRequest(msg.request)
			case msg.shutdown:
				if missing := r.missingRequired(); len(missing) > 0 && !monitor.Expired() {
					// shutting down before the deadline with modules still
					// pending is still a clean stop
					r.log.Debugf("shutdown before full registration")
				}
				r.broadcastShutdown()
				return nil
			}
		}
	}
}

func (r *Router) missingRequired() []string {
	var missing []string
	for name := range r.required {
		if _, ok := r.entries[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}

func (r *Router) handleRegister(reg *registerMsg, monitor timers.DeadlineMonitor) {
	if _, ok := r.entries[reg.name]; ok {
		reg.ack <- errors.New("modules: duplicate module name")
		return
	}
	if r.required[reg.name] && monitor.Expired() {
		// the abort already fired; the module will observe shutdown
		reg.ack <- ErrRegistrationTimeout
		return
	}
	r.entries[reg.name] = &moduleEntry{name: reg.name, inbox: reg.inbox}
	for _, kind := range reg.events {
		if r.subs[kind] == nil {
			r.subs[kind] = make(map[string]bool)
		}
		r.subs[kind][reg.name] = true
	}
	if len(reg.endpoints) > 0 {
		r.endpoints = append(r.endpoints, reg.endpoints...)
		// modules serving the peer protocol need the updated endpoint set
		r.handlePublish(&Event{Kind: EventPeerCard, From: reg.name})
		for _, entry := range r.entries {
			r.deliver(entry, Message{Endpoints: append([]network.Endpoint(nil), r.endpoints...)})
		}
	}
	r.log.With("module", reg.name).Infof("module registered")
	reg.ack <- nil
}

func (r *Router) handleSubscribe(sub *subscribeMsg) {
	if _, ok := r.entries[sub.name]; !ok {
		return
	}
	for _, kind := range sub.events {
		if r.subs[kind] == nil {
			r.subs[kind] = make(map[string]bool)
		}
		r.subs[kind][sub.name] = true
	}
}

func (r *Router) handlePublish(ev *Event) {
	for name := range r.subs[ev.Kind] {
		if name == ev.From {
			continue
		}
		if entry, ok := r.entries[name]; ok {
			r.deliver(entry, Message{Event: ev})
		}
	}
}

func (r *Router) handleRequest(req *Request) {
	entry, ok := r.entries[req.Target]
	if !ok {
		req.Respond(Reply{Err: ErrUnknownTarget.Error()})
		return
	}
	r.deliver(entry, Message{Request: req})
}

func (r *Router) deliver(entry *moduleEntry, msg Message) {
	select {
	case entry.inbox <- msg:
	default:
		// a wedged module must not stall the router
		r.log.With("module", entry.name).Warnf("inbox full, dropping message")
	}
}

func (r *Router) broadcastShutdown() {
	for _, entry := range r.entries {
		r.deliver(entry, Message{Shutdown: true})
	}
}

// Shutdown asks the router to broadcast shutdown and stop. Safe to call
// from any goroutine; returns once the router loop has exited.
func (r *Router) Shutdown() {
	select {
	case r.in <- routerMsg{shutdown: true}:
	case <-r.done:
		return
	}
	<-r.done
}

// Client is one module's handle to the router. All methods are safe for
// the owning module's goroutine.
type Client struct {
	router *Router
	name   string
	inbox  chan Message
}

// Name returns the module name this client speaks for
func (c *Client) Name() string { return c.name }

// Register announces the module. Must be called before any other method;
// the returned inbox carries every message addressed to the module.
func (c *Client) Register(events []EventKind, endpoints []network.Endpoint) (<-chan Message, error) {
	c.inbox = make(chan Message, moduleInboxSize)
	ack := make(chan error, 1)
	msg := routerMsg{register: &registerMsg{
		name:      c.name,
		inbox:     c.inbox,
		endpoints: endpoints,
		events:    events,
		ack:       ack,
	}}
	select {
	case c.router.in <- msg:
	case <-c.router.done:
		return nil, ErrRouterClosed
	}
	select {
	case err := <-ack:
		if err != nil {
			return nil, err
		}
		return c.inbox, nil
	case <-c.router.done:
		return nil, ErrRouterClosed
	}
}

// Subscribe adds event kinds to the module's subscriptions
func (c *Client) Subscribe(events ...EventKind) {
	select {
	case c.router.in <- routerMsg{subscribe: &subscribeMsg{name: c.name, events: events}}:
	case <-c.router.done:
	}
}

// Publish broadcasts an event to every subscribed module
func (c *Client) Publish(kind EventKind, payload interface{}) {
	select {
	case c.router.in <- routerMsg{publish: &Event{Kind: kind, From: c.name, Payload: payload}}:
	case <-c.router.done:
	}
}

// Request sends a directed request and waits for the reply or the
// deadline. An elapsed deadline returns ErrTimeout; the callee's late
// reply is discarded.
func (c *Client) Request(target string, payload interface{}, timeout time.Duration) (Reply, error) {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	req := &Request{
		From:    c.name,
		Target:  target,
		Payload: payload,
		reply:   make(chan Reply, 1),
	}
	select {
	case c.router.in <- routerMsg{request: req}:
	case <-c.router.done:
		return Reply{}, ErrRouterClosed
	}
	select {
	case reply := <-req.reply:
		if reply.Err == ErrUnknownTarget.Error() {
			return reply, ErrUnknownTarget
		}
		return reply, nil
	case <-time.After(timeout):
		return Reply{}, ErrTimeout
	case <-c.router.done:
		return Reply{}, ErrRouterClosed
	}
}
