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

// Package raxmit builds and schedules the ICMPv6 Router Solicitations,
// Router Advertisements and Neighbor Solicitations BRM emits on infra-if
// (spec.md §4.3), using **github.com/mdlayher/ndp** — the teacher's own
// choice for *receiving* RAs in ra_receiver.go, used here to *build*
// them too. Struct surface grounded on
// other_examples/ff75f48c_grimm-is-glacic (sendRA's
// ndp.RouterAdvertisement/ndp.PrefixInformation construction) and
// other_examples/94b9de32_YutaroHayakawa-go-radv (RouteInformation,
// RecursiveDNSServer, Preference constants).
package raxmit

import (
	"net/netip"
	"time"

	"github.com/mdlayher/ndp"

	"github.com/jr42/brm/internal/dpt"
	"github.com/jr42/brm/internal/ip6prefix"
	"github.com/jr42/brm/internal/lifetime"
	"github.com/jr42/brm/internal/netdata"
	"github.com/jr42/brm/internal/policy"
)

// Intervals grounded on OpenThread's kMaxRaTxInterval = 196s
// (original_source/tests/unit/test_routing_manager.cpp:2339).
const (
	DefaultMinInterval = 4 * time.Second
	DefaultMaxInterval = 196 * time.Second

	// OnLinkPioLifetime is the (valid, preferred) pair BRM uses while
	// actively advertising its own on-link prefix (spec.md §4.3).
	OnLinkPioLifetime = lifetime.Seconds(1800)
	// OmrRioLifetime is the RIO lifetime while BRM publishes its own
	// favored OMR prefix.
	OmrRioLifetime = lifetime.Seconds(1800)
	// OmrWithdrawRioLifetime is the RIO lifetime BRM advertises for OMR
	// prefixes it is in the process of withdrawing.
	OmrWithdrawRioLifetime = lifetime.Seconds(300)

	// StartupRsBurstCount and StartupRsJitter govern the RS burst sent
	// on the enabled→running transition (spec.md §4.3).
	StartupRsBurstCount = 3
	StartupRsJitter     = time.Second

	// ProbeCount/ProbeInterval mirror dpt's NS probe budget for callers
	// that want to echo them when sending NS directly.
	ProbeCount    = dpt.DefaultProbeAttempts
	ProbeInterval = dpt.DefaultProbeInterval

	// DefaultCurrentHopLimit is the RA header hop limit BRM advertises,
	// matching the teacher's ra-service.go sendRA default of 64.
	DefaultCurrentHopLimit = 64
)

// RA wraps an *ndp.RouterAdvertisement with the Thread SNAC ("stub")
// flag, which mdlayher/ndp does not model as a struct field since it is
// a reserved RFC4861 header bit repurposed by Thread 1.4 and outside
// RFC4861 itself. Per spec.md §1 ("wire parsing of Neighbor-Discovery
// options is assumed available as a helper"), setting this bit on the
// wire is left to the platform's ICMPv6 sender.
type RA struct {
	Advertisement *ndp.RouterAdvertisement
	Snac          bool
}

// IcmpSender is the platform-facing "send-ICMPv6-ND primitive on the
// infra interface" (spec.md §1). BRM never opens a raw socket itself;
// the platform wires this to an mdlayher/ndp connection on the infra
// interface.
type IcmpSender interface {
	SendRA(dst netip.Addr, ra *RA) error
	SendRS(dst netip.Addr) error
	SendNS(dst, target netip.Addr) error
}

// Trickle is the interval timer driving unsolicited RA emission
// (spec.md §4.3): grows up to DefaultMaxInterval and resets to the
// minimum whenever its owner calls Reset. brm.Manager does so on
// entering running, on a policy decision change and on an Extended PAN
// ID change; received RAs never reset it, and there is no separate
// "re-advertise now" call.
type Trickle struct {
	Min, Max time.Duration
	current  time.Duration
	next     time.Time
}

// NewTrickle creates a timer starting at its minimum interval.
func NewTrickle(min, max time.Duration) *Trickle {
	return &Trickle{Min: min, Max: max, current: min}
}

// Reset collapses the interval back to the minimum and schedules the
// next fire one minimum interval after now.
func (t *Trickle) Reset(now time.Time) {
	t.current = t.Min
	t.next = now.Add(t.current)
}

// Fire advances the timer on expiry, doubling the interval up to Max,
// and returns the new deadline.
func (t *Trickle) Fire(now time.Time) time.Time {
	t.current *= 2
	if t.current > t.Max || t.current <= 0 {
		t.current = t.Max
	}
	t.next = now.Add(t.current)
	return t.next
}

// NextFire reports the currently scheduled deadline.
func (t *Trickle) NextFire() time.Time { return t.next }

// AggregateMO computes the RA header's M and O flags as the logical OR,
// across all DPT routers whose S-flag is clear, of their M and O flags
// (spec.md §4.3).
func AggregateMO(routers []dpt.Router) (managed, other bool) {
	for _, r := range routers {
		if r.Snac {
			continue
		}
		managed = managed || r.Managed
		other = other || r.Other
	}
	return managed, other
}

// BuildInput bundles everything needed to construct one outgoing RA.
type BuildInput struct {
	Now time.Time

	RouterLifetime lifetime.Seconds
	Managed, Other bool

	AdvertiseLocalOnLink bool
	LocalOnLink          ip6prefix.Prefix
	DeprecatingOnLink    []policy.DeprecatingEntry

	PublishOwnOmr  bool
	FavoredOmr     ip6prefix.Prefix
	DeprecatingOmr []policy.DeprecatingEntry
}

// BuildRA constructs the RA a trickle fire should emit, per spec.md
// §4.3's enumerated option list. BRM never advertises RDNSS itself (it
// only reports received ones), so no RDNSS option is ever added here.
func BuildRA(in BuildInput) *RA {
	ra := &ndp.RouterAdvertisement{
		CurrentHopLimit:           DefaultCurrentHopLimit,
		ManagedConfiguration:      in.Managed,
		OtherConfiguration:        in.Other,
		RouterSelectionPreference: ndp.Medium,
		RouterLifetime:            in.RouterLifetime.Duration(),
	}

	if in.AdvertiseLocalOnLink {
		ra.Options = append(ra.Options, &ndp.PrefixInformation{
			PrefixLength:      ip6prefix.OnLinkLength,
			OnLink:            true,
			ValidLifetime:     OnLinkPioLifetime.Duration(),
			PreferredLifetime: OnLinkPioLifetime.Duration(),
			Prefix:            in.LocalOnLink.Addr,
		})
	}
	for _, d := range in.DeprecatingOnLink {
		remaining := d.Remaining(in.Now)
		if remaining == 0 {
			continue
		}
		ra.Options = append(ra.Options, &ndp.PrefixInformation{
			PrefixLength:      ip6prefix.OnLinkLength,
			OnLink:            true,
			ValidLifetime:     remaining.Duration(),
			PreferredLifetime: 0,
			Prefix:            d.Prefix.Addr,
		})
	}

	if in.PublishOwnOmr {
		ra.Options = append(ra.Options, &ndp.RouteInformation{
			PrefixLength:  in.FavoredOmr.Length,
			Preference:    ndp.Medium,
			RouteLifetime: OmrRioLifetime.Duration(),
			Prefix:        in.FavoredOmr.Addr,
		})
	}
	for _, d := range in.DeprecatingOmr {
		remaining := d.OmrRemaining(in.Now)
		if remaining == 0 {
			continue
		}
		ra.Options = append(ra.Options, &ndp.RouteInformation{
			PrefixLength:  d.Prefix.Length,
			Preference:    ndp.Low,
			RouteLifetime: remaining.Duration(),
			Prefix:        d.Prefix.Addr,
		})
	}

	return &RA{Advertisement: ra, Snac: true}
}

// BuildFinalRA constructs the single RA emitted on running→stopped,
// deprecating everything BRM had published (spec.md §4.3 "Final RA").
func BuildFinalRA(now time.Time, localOnLink ip6prefix.Prefix, deprecatingOnLink []policy.DeprecatingEntry, publishedOmr ip6prefix.Prefix, hasPublishedOmr bool) *RA {
	final := append(append([]policy.DeprecatingEntry{}, deprecatingOnLink...), policy.DeprecatingEntry{Prefix: localOnLink, DeprecateStart: now})
	in := BuildInput{
		Now:                  now,
		AdvertiseLocalOnLink: false,
		DeprecatingOnLink:    final,
	}
	if hasPublishedOmr {
		in.DeprecatingOmr = []policy.DeprecatingEntry{{Prefix: publishedOmr, DeprecateStart: now}}
	}
	// Force the just-deprecated local on-link prefix to valid=0 rather
	// than the usual decaying value: a final RA withdraws immediately.
	ra := BuildRA(in)
	for _, opt := range ra.Advertisement.Options {
		if pio, ok := opt.(*ndp.PrefixInformation); ok && pio.Prefix == localOnLink.Addr {
			pio.ValidLifetime = 0
		}
	}
	return ra
}

// DecodeRA translates a received *ndp.RouterAdvertisement into the
// semantic dpt.RAInput the Discovered Prefix Table ingests, applying
// the RFC4191/RFC8106 option decode that spec.md §1 treats as an
// assumed-available helper.
func DecodeRA(from netip.Addr, isLocalDevice, snac bool, ra *ndp.RouterAdvertisement) dpt.RAInput {
	in := dpt.RAInput{
		From:           from,
		IsLocalDevice:  isLocalDevice,
		Managed:        ra.ManagedConfiguration,
		Other:          ra.OtherConfiguration,
		Snac:           snac,
		RouterLifetime: lifetime.FromDuration(ra.RouterLifetime),
	}
	for _, opt := range ra.Options {
		switch o := opt.(type) {
		case *ndp.PrefixInformation:
			in.Prefixes = append(in.Prefixes, dpt.PrefixOption{
				Prefix:    ip6prefix.Prefix{Addr: o.Prefix, Length: o.PrefixLength},
				OnLink:    o.OnLink,
				Valid:     lifetime.FromDuration(o.ValidLifetime),
				Preferred: lifetime.FromDuration(o.PreferredLifetime),
			})
		case *ndp.RouteInformation:
			in.Routes = append(in.Routes, dpt.RouteOption{
				Prefix:     ip6prefix.Prefix{Addr: o.Prefix, Length: o.PrefixLength},
				Lifetime:   lifetime.FromDuration(o.RouteLifetime),
				Preference: ndpPreferenceToNetdata(o.Preference),
			})
		case *ndp.RecursiveDNSServer:
			addrs := make([]netip.Addr, 0, len(o.Servers))
			for _, ip := range o.Servers {
				if a, ok := netip.AddrFromSlice(ip); ok {
					addrs = append(addrs, a.Unmap())
				}
			}
			in.Rdnss = append(in.Rdnss, dpt.RdnssOption{Addrs: addrs, Lifetime: lifetime.FromDuration(o.Lifetime)})
		}
	}
	return in
}

func ndpPreferenceToNetdata(p ndp.Preference) netdata.Preference {
	switch p {
	case ndp.Low:
		return netdata.PreferenceLow
	case ndp.High:
		return netdata.PreferenceHigh
	default:
		return netdata.PreferenceMedium
	}
}
