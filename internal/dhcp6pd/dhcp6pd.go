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

// Package dhcp6pd ingests an already-formed DHCPv6-PD report and exposes
// the best delegated /64-ish prefix as an OMR candidate to the routing
// policy (spec.md §4.5). It uses **github.com/insomniacslk/dhcp/dhcpv6**
// for the option codec only (`OptIAPD`, `OptIAPrefix`), grounded on the
// teacher's dhcpv6pd_receiver.go `processIAPDReply`. BRM does not run
// the SOLICIT/REQUEST/RENEW/REBIND exchange itself — that belongs to an
// external DHCPv6-PD client feeding BRM the report (spec.md §1 non-goal
// boundary) — so nclient6 is deliberately not imported here.
package dhcp6pd

import (
	"errors"
	"net/netip"
	"time"

	"github.com/insomniacslk/dhcp/dhcpv6"

	"github.com/jr42/brm/internal/ip6prefix"
	"github.com/jr42/brm/internal/lifetime"
)

// HoldOff is the "waiting to swap" settle time before BRM commits to a
// newly reported delegated prefix that differs from the one it is
// currently using, grounded on the teacher's T1/T2 renewal bookkeeping
// style (dhcpv6pd_receiver.go's lease struct) generalized to a single
// settle window rather than a full lease state machine, since BRM is
// not itself the DHCPv6-PD client.
const HoldOff = 5 * time.Second

// State mirrors spec.md §3's `dhcp6PdState`.
type State uint8

const (
	StateDisabled State = iota
	StateStopped
	StateRunning
)

var (
	ErrDisabled      = errors.New("dhcp6pd: adaptor is disabled")
	ErrNoPrefix      = errors.New("dhcp6pd: report contained no usable IA_PD prefix")
	ErrInvalidAddr   = errors.New("dhcp6pd: malformed prefix address in report")
	ErrPrefixTooLong = errors.New("dhcp6pd: delegated prefix is longer than /64")
)

type pendingSwap struct {
	prefix            ip6prefix.Prefix
	validLifetime     lifetime.Seconds
	preferredLifetime lifetime.Seconds
	since             time.Time
}

// Adaptor tracks BRM's view of the delegated prefix across reports.
type Adaptor struct {
	state State

	prefix            ip6prefix.Prefix
	hasPrefix         bool
	validLifetime     lifetime.Seconds
	preferredLifetime lifetime.Seconds
	lastUpdate        time.Time

	pending *pendingSwap
}

// New creates a disabled adaptor.
func New() *Adaptor {
	return &Adaptor{state: StateDisabled}
}

// SetEnabled toggles the adaptor; disabling clears all learned state.
func (a *Adaptor) SetEnabled(enabled bool) {
	if enabled {
		if a.state == StateDisabled {
			a.state = StateStopped
		}
		return
	}
	a.state = StateDisabled
	a.hasPrefix = false
	a.prefix = ip6prefix.Prefix{}
	a.pending = nil
}

// State reports the current dhcp6PdState.
func (a *Adaptor) State() State { return a.state }

// PdPrefix reports the currently accepted delegated prefix, if any.
func (a *Adaptor) PdPrefix() (ip6prefix.Prefix, bool) {
	return a.prefix, a.hasPrefix
}

// PreferredRemaining reports the remaining preferred lifetime of the
// current PdPrefix as of now.
func (a *Adaptor) PreferredRemaining(now time.Time) lifetime.Seconds {
	return lifetime.Remaining(a.preferredLifetime, a.lastUpdate, now)
}

// Deadline reports the absolute time the current PdPrefix's valid
// lifetime will cross zero, for the event loop to schedule the next
// alarm fire around (mirrors dpt.Table.NextExpiryDeadline's style).
func (a *Adaptor) Deadline() (time.Time, bool) {
	if !a.hasPrefix || a.validLifetime.IsInfinite() {
		return time.Time{}, false
	}
	return lifetime.Deadline(a.validLifetime, a.lastUpdate), true
}

// Expire drops the current prefix once its valid lifetime elapses,
// returning to the stopped state.
func (a *Adaptor) Expire(now time.Time) bool {
	if !a.hasPrefix {
		return false
	}
	if !lifetime.IsExpired(a.validLifetime, a.lastUpdate, now) {
		return false
	}
	a.hasPrefix = false
	a.prefix = ip6prefix.Prefix{}
	a.pending = nil
	if a.state == StateRunning {
		a.state = StateStopped
	}
	return true
}

// ProcessReport decodes a DHCPv6-shaped report and updates the
// adaptor's state. It returns whether the exposed PdPrefix changed.
//
// Among all IA_PD prefixes in the report, the one with the longest
// preferred lifetime is selected (spec.md §4.5: "exposes the best /64
// as an OMR candidate"). If it differs from the prefix BRM is currently
// using, the swap is held off for HoldOff to avoid thrashing on a
// single noisy report.
func (a *Adaptor) ProcessReport(raw []byte, now time.Time) (changed bool, err error) {
	if a.state == StateDisabled {
		return false, ErrDisabled
	}

	msg, err := dhcpv6.FromBytes(raw)
	if err != nil {
		return false, err
	}

	best, ok := bestPrefix(msg)
	if !ok {
		return false, ErrNoPrefix
	}

	addr, ok := netip.AddrFromSlice(best.Prefix.IP)
	if !ok {
		return false, ErrInvalidAddr
	}
	ones, _ := best.Prefix.Mask.Size()
	if ones > ip6prefix.OnLinkLength {
		return false, ErrPrefixTooLong
	}
	// Spec §4.5: a delegated prefix shorter than /64 is right-padded
	// with zeros out to /64 before it is exposed as an OMR candidate.
	// Masking at `ones` first guarantees the padding bits are actually
	// zero rather than whatever the report happened to carry past the
	// delegated length.
	masked, err := addr.Unmap().Prefix(ones)
	if err != nil {
		return false, ErrInvalidAddr
	}
	candidate := ip6prefix.Prefix{Addr: masked.Addr(), Length: ip6prefix.OnLinkLength}
	validLt := lifetime.FromDuration(best.ValidLifetime)
	preferredLt := lifetime.FromDuration(best.PreferredLifetime)

	if !a.hasPrefix {
		a.commit(candidate, validLt, preferredLt, now)
		return true, nil
	}

	if candidate.Equal(a.prefix) {
		a.validLifetime, a.preferredLifetime, a.lastUpdate = validLt, preferredLt, now
		a.pending = nil
		return false, nil
	}

	if a.pending == nil || !a.pending.prefix.Equal(candidate) {
		a.pending = &pendingSwap{prefix: candidate, validLifetime: validLt, preferredLifetime: preferredLt, since: now}
		return false, nil
	}
	a.pending.validLifetime, a.pending.preferredLifetime = validLt, preferredLt
	if now.Sub(a.pending.since) >= HoldOff {
		a.commit(candidate, validLt, preferredLt, now)
		a.pending = nil
		return true, nil
	}
	return false, nil
}

func (a *Adaptor) commit(prefix ip6prefix.Prefix, valid, preferred lifetime.Seconds, now time.Time) {
	a.prefix = prefix
	a.hasPrefix = true
	a.validLifetime = valid
	a.preferredLifetime = preferred
	a.lastUpdate = now
	a.state = StateRunning
}

func bestPrefix(msg *dhcpv6.Message) (*dhcpv6.OptIAPrefix, bool) {
	var best *dhcpv6.OptIAPrefix
	for _, opt := range msg.Options.Get(dhcpv6.OptionIAPD) {
		iapd, ok := opt.(*dhcpv6.OptIAPD)
		if !ok {
			continue
		}
		for _, p := range iapd.Options.Prefixes() {
			if p.ValidLifetime <= 0 {
				continue
			}
			if best == nil || p.PreferredLifetime > best.PreferredLifetime {
				best = p
			}
		}
	}
	return best, best != nil
}
