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

// Package nat64 implements the NAT64 adaptor (spec.md §4.6): BRM
// advertises a deterministic local /96 derived from the mesh identity
// unless a better, infrastructure-discovered NAT64 prefix is already
// known and an infrastructure-derived OMR route makes it reachable.
package nat64

import "github.com/jr42/brm/internal/ip6prefix"

// Adaptor tracks BRM's NAT64 publication state.
type Adaptor struct {
	enabled       bool
	local         ip6prefix.Prefix
	discovered    ip6prefix.Prefix
	hasDiscovered bool
}

// NewAdaptor creates a disabled adaptor bound to the given deterministic
// local NAT64 prefix (ip6prefix.DeriveLocalNat64).
func NewAdaptor(local ip6prefix.Prefix) *Adaptor {
	return &Adaptor{local: local}
}

// SetLocal updates the deterministic local /96 (e.g. after an Extended
// PAN ID change) without disturbing enabled/discovered state.
func (a *Adaptor) SetLocal(local ip6prefix.Prefix) {
	a.local = local
}

// SetEnabled toggles publication (spec.md §6: `setNat64Enabled`).
func (a *Adaptor) SetEnabled(enabled bool) {
	a.enabled = enabled
	if !enabled {
		a.hasDiscovered = false
		a.discovered = ip6prefix.Prefix{}
	}
}

// SetDiscovered records (or clears, passing ok=false) the infra NAT64
// prefix reported by the platform's discovery routine.
func (a *Adaptor) SetDiscovered(prefix ip6prefix.Prefix, ok bool) {
	a.hasDiscovered = ok
	if ok {
		a.discovered = prefix
	} else {
		a.discovered = ip6prefix.Prefix{}
	}
}

// Decision is the outcome of one NAT64 evaluation.
type Decision struct {
	Publish   bool
	Prefix    ip6prefix.Prefix
	FromInfra bool
}

// Evaluate computes whether, and which, NAT64 prefix BRM should publish
// (spec.md §4.6): the local /96 when no infra NAT64 is known OR no
// infrastructure-derived OMR prefix is present; otherwise the
// discovered infra prefix.
func (a *Adaptor) Evaluate(infrastructureOmrPresent bool) Decision {
	if !a.enabled {
		return Decision{}
	}
	if !a.hasDiscovered || !infrastructureOmrPresent {
		return Decision{Publish: true, Prefix: a.local}
	}
	return Decision{Publish: true, Prefix: a.discovered, FromInfra: true}
}
