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

package brm

import (
	"net/netip"
	"time"

	"github.com/jr42/brm/internal/ip6prefix"
	"github.com/jr42/brm/internal/raxmit"
)

// Platform bundles most of spec.md §6's "platform-facing (consumed)"
// surface: the ICMPv6 send primitive, the infra-if address query, NAT64
// discovery and the single millisecond alarm. Infra-if state changes
// arrive through Manager.SetInfraIfState, and Settings read/write is
// passed to NewManager separately. Manager holds exactly one Platform and never touches a
// socket, goroutine or real clock directly itself — grounded on the
// teacher's narrow per-concern interfaces (prefix.Receiver,
// prefix.ReceiverFactory) rather than one monolithic client.
type Platform interface {
	raxmit.IcmpSender

	// InfraIfHasAddress answers "is-this-my-address" for the infra
	// interface (spec.md §6: `platInfraIfHasAddress`).
	InfraIfHasAddress(addr netip.Addr) bool

	// DiscoverNat64Prefix kicks off asynchronous NAT64 prefix discovery
	// (spec.md §6: `platInfraIfDiscoverNat64Prefix`); the result arrives
	// later via Manager.OnNat64Discovered, mirroring
	// `platInfraIfDiscoverNat64PrefixDone`.
	DiscoverNat64Prefix()

	// AlarmStartAt (re)arms the single process-wide timer to fire at
	// t0+dt; AlarmStop cancels it. GetNow reports the platform clock.
	AlarmStartAt(t0 time.Time, dt time.Duration)
	AlarmStop()
	GetNow() time.Time
}

// Settings is re-exported for convenience so callers implementing a
// Platform don't need to import internal/persist directly to satisfy
// the persistence surface; Manager is constructed
// with one separately (see NewManager), matching spec.md's own
// separation of the Network-Data and Settings read/write surfaces from
// the ICMPv6/timer surface.
type Settings = ifaceSettings

type ifaceSettings interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte) error
}

// Identity is the mesh-identity input used to derive BRM's deterministic
// local prefixes (spec.md §3: Extended PAN ID → localOnLink/localNat64,
// Mesh-Local prefix → localOmr).
type Identity struct {
	ExtPanID        [8]byte
	MeshLocalPrefix ip6prefix.Prefix
}
