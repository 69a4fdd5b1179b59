/*
Copyright 2026 jr42.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package autoenable implements the auto-enable bus (spec.md §4.7):
// dependent services (e.g. an SRP server) register to be started the
// first time BRM reaches the running state, and stopped whenever it
// leaves it. It is grounded on the teacher's CompositeReceiver registry
// bookkeeping (internal/prefix/composite_receiver.go), generalized from
// a fixed primary/fallback pair to an arbitrary named service registry
// guarded the same way with sync.RWMutex.
package autoenable

import "sync"

// Service is a dependent service paired with BRM's run state.
type Service interface {
	Start() error
	Stop() error
}

type entry struct {
	svc     Service
	on      bool
	started bool
}

// Bus tracks registered services and BRM's own running/not-running
// state, and drives Start/Stop transitions as each changes.
type Bus struct {
	mu      sync.RWMutex
	entries map[string]*entry
	running bool
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{entries: map[string]*entry{}}
}

// Register adds or replaces the service bound to name. It does not
// itself change the service's started/stopped state.
func (b *Bus) Register(name string, svc Service) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries[name] = &entry{svc: svc}
}

// SetAutoEnable toggles auto-enable for name (spec.md §4.7:
// `setAutoEnable(service, on)`). Turning it on while BRM is already
// running starts the service immediately; turning it off never stops
// an already-started service.
func (b *Bus) SetAutoEnable(name string, on bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.entries[name]
	if !ok {
		return nil
	}
	e.on = on
	if on && b.running && !e.started {
		if err := e.svc.Start(); err != nil {
			return err
		}
		e.started = true
	}
	return nil
}

// Enabled reports whether name currently has auto-enable turned on.
func (b *Bus) Enabled(name string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	e, ok := b.entries[name]
	return ok && e.on
}

// EnterRunning starts every auto-enabled service that has not already
// been started (spec.md §4.7: "the first time it reaches running").
func (b *Bus) EnterRunning() []error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.running = true
	var errs []error
	for _, e := range b.entries {
		if e.on && !e.started {
			if err := e.svc.Start(); err != nil {
				errs = append(errs, err)
				continue
			}
			e.started = true
		}
	}
	return errs
}

// LeaveRunning stops every service that is currently started, whether
// or not its auto-enable flag is still on (spec.md §4.7: "...whenever
// it leaves running").
func (b *Bus) LeaveRunning() []error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.running = false
	var errs []error
	for _, e := range b.entries {
		if e.started {
			if err := e.svc.Stop(); err != nil {
				errs = append(errs, err)
				continue
			}
			e.started = false
		}
	}
	return errs
}
