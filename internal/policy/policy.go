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

// Package policy implements the routing policy (spec.md §4.2): a pure
// function from a Discovered Prefix Table snapshot, a Network Data
// snapshot and local configuration/state to a Decision. It performs no
// I/O and reads no clock beyond the `Now` it is handed, grounded on the
// teacher's factory.go pattern of evaluating a decision from a spec
// struct with no side effects (ReceiverFactory.CreateReceiver).
package policy

import (
	"time"

	"github.com/jr42/brm/internal/dpt"
	"github.com/jr42/brm/internal/ip6prefix"
	"github.com/jr42/brm/internal/lifetime"
	"github.com/jr42/brm/internal/netdata"
)

// Bounds grounded on spec.md §3 ("deprecatingOnLinks[] ... bounded (≥3),
// newest-wins on overflow") and §4.3's ~1800s/300s decay windows.
const (
	DeprecatingOnLinksMax = 3
	OnLinkDeprecateWindow = 1800 * time.Second
	OmrDeprecateWindow    = 300 * time.Second
	// FavoredOnLinkMinPreferred is the minimum PIO preferred lifetime a
	// peer's on-link entry must carry to be eligible as favored
	// (spec.md §4.2: "preferred ≥ 1800 s").
	FavoredOnLinkMinPreferred = lifetime.Seconds(1800)
)

// OmrMode selects how BRM's own OMR prefix is sourced (spec.md §4.2 "OMR
// config overrides").
type OmrMode uint8

const (
	OmrAuto OmrMode = iota
	OmrCustom
	OmrDisabled
)

// OmrConfig is the `omrConfig` local-state field.
type OmrConfig struct {
	Mode       OmrMode
	Custom     ip6prefix.Prefix
	CustomPref netdata.Preference
}

// DeprecatingEntry is one member of a bounded deprecating-prefix queue
// (used for both deprecatingOnLinks and the OMR withdrawal RIO window).
type DeprecatingEntry struct {
	Prefix         ip6prefix.Prefix
	DeprecateStart time.Time
}

// Remaining returns the valid lifetime remaining for a deprecating
// on-link entry, decaying from OnLinkDeprecateWindow since
// DeprecateStart (spec.md §4.2: "a valid lifetime that decays from the
// ~1800s at which deprecation began").
func (d DeprecatingEntry) Remaining(now time.Time) lifetime.Seconds {
	return lifetime.Remaining(lifetime.FromDuration(OnLinkDeprecateWindow), d.DeprecateStart, now)
}

// OmrRemaining returns the RIO lifetime remaining for a withdrawn OMR
// prefix, decaying from OmrDeprecateWindow.
func (d DeprecatingEntry) OmrRemaining(now time.Time) lifetime.Seconds {
	return lifetime.Remaining(lifetime.FromDuration(OmrDeprecateWindow), d.DeprecateStart, now)
}

// LocalState is the subset of spec.md §3 "Local state" that the policy
// reads and updates across evaluations.
type LocalState struct {
	LocalOnLink       ip6prefix.Prefix
	LocalOmr          ip6prefix.Prefix
	AdvertisingLocal  bool // was BRM advertising LocalOnLink as of the last evaluation
	DeprecatingOnLink []DeprecatingEntry

	Config        OmrConfig
	Dhcp6PdActive bool
	Dhcp6PdPrefix ip6prefix.Prefix

	// PublishedOmr is the OMR prefix BRM last actually published into
	// Network Data, if any.
	PublishedOmr    ip6prefix.Prefix
	HasPublishedOmr bool
	DeprecatingOmr  []DeprecatingEntry
}

// OmrCandidate is one contender for the favored OMR prefix.
type OmrCandidate struct {
	Prefix         ip6prefix.Prefix
	Preference     netdata.Preference
	Infrastructure bool
}

// Input bundles everything Evaluate needs: a read-only view of the DPT,
// the Network Data snapshot, and local state, all as of Now.
type Input struct {
	Now time.Time

	OnLinkEntries []dpt.OnLinkEntry
	RouteEntries  []dpt.RouteEntry

	NetData netdata.Snapshot
	Local   LocalState
}

// Decision is the outcome of one policy evaluation.
type Decision struct {
	FavoredOnLink        ip6prefix.Prefix
	AdvertiseLocalOnLink bool
	DeprecatingOnLink    []DeprecatingEntry

	FavoredOmr    OmrCandidate
	HasFavoredOmr bool
	PublishOwnOmr bool
	OwnOmr        OmrCandidate
	DeprecatingOmr []DeprecatingEntry

	ExternalRoute netdata.ExternalRoute
	// InfrastructureOmrPresent mirrors the same condition the external
	// route kind is derived from (spec.md §4.2 "Default route vs ULA
	// route"); internal/nat64 reuses it as the "infrastructure-derived
	// OMR present" input to its own publication rule (spec.md §4.6).
	InfrastructureOmrPresent bool
}

// Evaluate computes the routing policy decision for one point in time.
// Callers persist the returned DeprecatingOnLink/DeprecatingOmr queues
// back into LocalState for the next evaluation.
func Evaluate(in Input) Decision {
	var d Decision

	d.FavoredOnLink = favoredOnLink(in)
	d.AdvertiseLocalOnLink = d.FavoredOnLink.Equal(in.Local.LocalOnLink)
	d.DeprecatingOnLink = nextDeprecatingOnLinks(in, d.AdvertiseLocalOnLink)

	ownOmrCandidates := ownOmrCandidates(in.Local)
	allOmr := make([]OmrCandidate, 0, len(in.NetData.PeerOmrPrefixes)+len(ownOmrCandidates))
	for _, e := range in.NetData.PeerOmrPrefixes {
		allOmr = append(allOmr, OmrCandidate{Prefix: e.Prefix, Preference: e.Preference, Infrastructure: e.Infrastructure})
	}
	allOmr = append(allOmr, ownOmrCandidates...)
	if len(allOmr) > 0 {
		d.FavoredOmr = pickFavoredOmr(allOmr)
		d.HasFavoredOmr = true
		for _, c := range ownOmrCandidates {
			if c.Prefix.Equal(d.FavoredOmr.Prefix) {
				d.PublishOwnOmr = true
				d.OwnOmr = c
				break
			}
		}
	}
	d.DeprecatingOmr = nextDeprecatingOmr(in, d.PublishOwnOmr)

	infraPresent := false
	for _, c := range allOmr {
		if c.Infrastructure {
			infraPresent = true
			break
		}
	}
	hasNonUlaRoute := false
	for _, r := range in.RouteEntries {
		if r.Prefix.Length == 0 || !ip6prefix.IsULA(r.Prefix) {
			hasNonUlaRoute = true
			break
		}
	}
	kind := netdata.RouteKindULA
	if infraPresent && hasNonUlaRoute {
		kind = netdata.RouteKindDefault
	}
	d.ExternalRoute = netdata.ExternalRoute{Kind: kind, AdvPIO: d.AdvertiseLocalOnLink}
	d.InfrastructureOmrPresent = infraPresent

	return d
}

func favoredOnLink(in Input) ip6prefix.Prefix {
	var best ip6prefix.Prefix
	found := false
	consider := func(p ip6prefix.Prefix) {
		if !found || ip6prefix.Less(p, best) {
			best, found = p, true
		}
	}
	for _, e := range in.OnLinkEntries {
		if e.Preferred >= FavoredOnLinkMinPreferred {
			consider(e.Prefix)
		}
	}
	if in.Local.AdvertisingLocal {
		consider(in.Local.LocalOnLink)
	}
	if !found {
		// No peer qualifies and BRM was not already advertising: it
		// re-adopts its own local prefix by default (spec.md §4.2:
		// "Re-adoption is allowed when no peer qualifies").
		return in.Local.LocalOnLink
	}
	return best
}

func nextDeprecatingOnLinks(in Input, advertisingLocal bool) []DeprecatingEntry {
	out := make([]DeprecatingEntry, 0, len(in.Local.DeprecatingOnLink)+1)
	for _, e := range in.Local.DeprecatingOnLink {
		if e.Prefix.Equal(in.Local.LocalOnLink) {
			// Re-adopted: the invariant `localOnLink ∉
			// deprecatingOnLinks` (spec.md §3) must hold whenever BRM
			// is actively advertising it again.
			if advertisingLocal {
				continue
			}
		}
		if e.Remaining(in.Now) == 0 {
			continue
		}
		out = append(out, e)
	}
	if !advertisingLocal && in.Local.AdvertisingLocal {
		// Just lost the favored on-link contest this round: start
		// deprecating the current local value.
		already := false
		for _, e := range out {
			if e.Prefix.Equal(in.Local.LocalOnLink) {
				already = true
				break
			}
		}
		if !already {
			out = append(out, DeprecatingEntry{Prefix: in.Local.LocalOnLink, DeprecateStart: in.Now})
		}
	}
	if len(out) > DeprecatingOnLinksMax {
		out = out[len(out)-DeprecatingOnLinksMax:]
	}
	return out
}

func nextDeprecatingOmr(in Input, publishingOwn bool) []DeprecatingEntry {
	out := make([]DeprecatingEntry, 0, len(in.Local.DeprecatingOmr)+1)
	for _, e := range in.Local.DeprecatingOmr {
		if e.OmrRemaining(in.Now) == 0 {
			continue
		}
		out = append(out, e)
	}
	if !publishingOwn && in.Local.HasPublishedOmr {
		already := false
		for _, e := range out {
			if e.Prefix.Equal(in.Local.PublishedOmr) {
				already = true
				break
			}
		}
		if !already {
			out = append(out, DeprecatingEntry{Prefix: in.Local.PublishedOmr, DeprecateStart: in.Now})
		}
	}
	return out
}

func ownOmrCandidates(ls LocalState) []OmrCandidate {
	switch ls.Config.Mode {
	case OmrDisabled:
		return nil
	case OmrCustom:
		return []OmrCandidate{{Prefix: ls.Config.Custom, Preference: ls.Config.CustomPref}}
	default:
		if ls.Dhcp6PdActive {
			return []OmrCandidate{{Prefix: ls.Dhcp6PdPrefix, Preference: netdata.PreferenceMedium, Infrastructure: true}}
		}
		return []OmrCandidate{{Prefix: ls.LocalOmr, Preference: netdata.PreferenceMedium}}
	}
}

// pickFavoredOmr chooses the highest-preference candidate, breaking ties
// lexicographically smallest (spec.md §4.2: "pick by preference: first
// route-preference high>med>low, then lexicographic tie-break").
func pickFavoredOmr(cands []OmrCandidate) OmrCandidate {
	best := cands[0]
	for _, c := range cands[1:] {
		switch {
		case c.Preference > best.Preference:
			best = c
		case c.Preference == best.Preference && ip6prefix.Less(c.Prefix, best.Prefix):
			best = c
		}
	}
	return best
}

// HandleExtPanIDChange must be called by the owner (brm.Manager) before
// Evaluate whenever the Extended PAN ID changes and a new localOnLink is
// derived: the previous value is moved into the deprecating queue
// (spec.md §4.2 "Ext-PAN-ID change").
func HandleExtPanIDChange(oldLocalOnLink ip6prefix.Prefix, deprecating []DeprecatingEntry, now time.Time) []DeprecatingEntry {
	out := append([]DeprecatingEntry{}, deprecating...)
	out = append(out, DeprecatingEntry{Prefix: oldLocalOnLink, DeprecateStart: now})
	if len(out) > DeprecatingOnLinksMax {
		out = out[len(out)-DeprecatingOnLinksMax:]
	}
	return out
}
