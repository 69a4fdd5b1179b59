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

// Package netdata models the slice of Thread Network Data that BRM
// reads from and writes into: other nodes' OMR prefixes and domain
// prefix, and BRM's own published OMR prefix / external route / NAT64
// route. BRM never deletes entries it doesn't own (spec.md §5: "Network
// Data is shared ... BRM only touches entries it owns").
package netdata

import "github.com/jr42/brm/internal/ip6prefix"

// Preference mirrors RFC 4191 route preference as used throughout
// Thread Network Data: Low < Medium < High.
type Preference int8

const (
	PreferenceLow    Preference = -1
	PreferenceMedium Preference = 0
	PreferenceHigh   Preference = 1
)

func (p Preference) String() string {
	switch p {
	case PreferenceLow:
		return "low"
	case PreferenceHigh:
		return "high"
	default:
		return "medium"
	}
}

// RouteKind identifies which external route BRM is allowed to publish
// (spec.md §4.2: "BRM publishes into Network Data exactly one external
// route covering off-mesh destinations").
type RouteKind uint8

const (
	RouteKindDefault RouteKind = iota // ::/0
	RouteKindULA                      // fc00::/7
)

func (k RouteKind) String() string {
	if k == RouteKindDefault {
		return "default-route"
	}
	return "ula-route"
}

// OmrEntry describes one OMR prefix as it appears in Network Data,
// whether published by BRM or observed from another node (e.g. a
// Backbone Router's domain prefix).
type OmrEntry struct {
	Prefix     ip6prefix.Prefix
	Preference Preference
	// Infrastructure reports whether this prefix is "infrastructure
	// derived" per spec.md §4.2: local OMR is not; a Backbone Router
	// domain prefix and a DHCPv6-PD-sourced prefix are.
	Infrastructure bool
	// Domain marks the Backbone Router domain prefix specifically.
	Domain bool
}

// ExternalRoute is the single off-mesh route BRM publishes.
//
// AdvPIO is exposed verbatim from the original implementation with no
// further semantics asserted here: spec.md §9's "Don't-guess cases"
// flags this as a field whose downstream consumer behavior is
// undocumented upstream. It is set by the routing policy to reflect
// whether BRM is actively advertising the on-link PIO on infra-if
// (`advertisedOnLink == localOnLink`) and must be treated as opaque by
// callers.
type ExternalRoute struct {
	Kind   RouteKind
	AdvPIO bool
}

// Snapshot is a read-only view of the externally-owned parts of Network
// Data that the routing policy (internal/policy) evaluates against. It
// is assembled by the brm package from whatever the platform's Network
// Data accessor reports; BRM never mutates it directly.
type Snapshot struct {
	// PeerOmrPrefixes are all OMR prefixes currently in Network Data
	// that were NOT published by this BRM instance (other Thread
	// devices' on-mesh prefixes, plus any domain prefix).
	PeerOmrPrefixes []OmrEntry
}

// Publisher is the platform-facing Network Data write surface BRM uses
// to publish/withdraw its own entries (spec.md §6: "Network Data
// reads/writes"). All calls must be non-blocking. BRM logs a failed call
// and does not retry it: the Manager records the entry as published (or
// withdrawn) either way, and calls again only when a later evaluation
// changes that entry.
type Publisher interface {
	// PublishOmr publishes or updates BRM's OMR prefix entry. Passing
	// the zero OmrEntry is invalid; use WithdrawOmr to remove it.
	PublishOmr(entry OmrEntry) error
	WithdrawOmr() error

	PublishExternalRoute(route ExternalRoute) error
	WithdrawExternalRoute() error

	PublishNat64(prefix ip6prefix.Prefix) error
	WithdrawNat64() error

	// Read reports the current shared Network Data state BRM must
	// react to (other routers' OMR/domain prefixes).
	Read() Snapshot
}
