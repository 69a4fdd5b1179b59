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

// Package dpt implements the Discovered Prefix Table (spec.md §4.1): the
// set of on-link, route and RDNSS entries learned from Router
// Advertisements received on infra-if, keyed by the advertising router.
//
// Router presence is derived rather than stored explicitly (spec.md §9,
// "Prefix-table ownership"): a router record exists in the table as
// long as it owns at least one entry, is the local device, or is
// mid-probe; entries live in flat per-class slices rather than being
// owned by their router, so iteration and eviction don't need to walk a
// router→entry graph.
package dpt

import (
	"net/netip"
	"time"

	"github.com/jr42/brm/internal/ip6prefix"
	"github.com/jr42/brm/internal/lifetime"
	"github.com/jr42/brm/internal/netdata"
)

// Tunables grounded on OpenThread's TestRouterNsProbe
// (original_source/tests/unit/test_routing_manager.cpp): a router is
// probed after ~180s of silence, with 3 NS attempts before it is
// declared unreachable (spec.md §4.1: "≈10 s total budget").
const (
	DefaultRouterActiveWindow = 180 * time.Second
	DefaultProbeInterval      = 4 * time.Second
	DefaultProbeAttempts      = 3
	// DefaultCapacity bounds entries per class; overflow evicts the
	// oldest entry of that class (spec.md §3, §7).
	DefaultCapacity = 64
)

// Router is a stable, read-only snapshot of one router's record, used by
// the iterator API and by the routing policy.
type Router struct {
	Addr          netip.Addr
	IsLocalDevice bool
	Managed       bool
	Other         bool
	Snac          bool
	LastHeard     time.Time
}

// OnLinkEntry is a snapshot of one (router, on-link prefix) entry.
type OnLinkEntry struct {
	Router     netip.Addr
	Prefix     ip6prefix.Prefix
	Valid      lifetime.Seconds
	Preferred  lifetime.Seconds
	LastUpdate time.Time
}

// IsDeprecated reports preferred == 0, valid > 0 (spec.md §3).
func (e OnLinkEntry) IsDeprecated() bool {
	return e.Preferred == 0 && e.Valid > 0
}

// RouteEntry is a snapshot of one (router, route prefix) entry.
type RouteEntry struct {
	Router     netip.Addr
	Prefix     ip6prefix.Prefix
	Lifetime   lifetime.Seconds
	Preference netdata.Preference
	LastUpdate time.Time
}

// RdnssEntry is a snapshot of one (router, RDNSS address) entry.
type RdnssEntry struct {
	Router     netip.Addr
	Addr       netip.Addr
	Lifetime   lifetime.Seconds
	LastUpdate time.Time
}

// PrefixOption is a decoded PIO, independent of wire representation (the
// spec treats ND option wire parsing as an assumed-available helper;
// internal/raxmit performs the mdlayher/ndp decode and builds these).
type PrefixOption struct {
	Prefix    ip6prefix.Prefix
	OnLink    bool
	Valid     lifetime.Seconds
	Preferred lifetime.Seconds
}

// RouteOption is a decoded RIO.
type RouteOption struct {
	Prefix     ip6prefix.Prefix
	Lifetime   lifetime.Seconds
	Preference netdata.Preference
}

// RdnssOption is a decoded RDNSS option (one option may list several
// server addresses sharing one lifetime).
type RdnssOption struct {
	Addrs    []netip.Addr
	Lifetime lifetime.Seconds
}

// RAInput is the semantic content of a received Router Advertisement,
// already decoded from wire options (internal/raxmit.DecodeRA produces
// this from an *ndp.RouterAdvertisement plus the raw header flags).
type RAInput struct {
	From           netip.Addr
	IsLocalDevice  bool
	Managed        bool
	Other          bool
	Snac           bool
	RouterLifetime lifetime.Seconds
	Prefixes       []PrefixOption
	Routes         []RouteOption
	Rdnss          []RdnssOption
}

type routerRecord struct {
	addr                   netip.Addr
	isLocalDevice          bool
	managed, other, snac   bool
	lastHeard              time.Time
	routerLifetimeLearned  lifetime.Seconds
	routerLifetimeIsLearnt bool
	probing                bool
	probeAttempts          int
	lastProbeSent          time.Time
}

// Table is the Discovered Prefix Table.
type Table struct {
	routers map[netip.Addr]*routerRecord
	onLink  []OnLinkEntry
	routes  []RouteEntry
	rdnss   []RdnssEntry

	generation uint64
	capacity   int

	routerActiveWindow time.Duration
	probeInterval      time.Duration
	probeAttempts      int

	overflowCount uint64
}

// New creates an empty table with the default bounds.
func New() *Table {
	return &Table{
		routers:            make(map[netip.Addr]*routerRecord),
		capacity:           DefaultCapacity,
		routerActiveWindow: DefaultRouterActiveWindow,
		probeInterval:      DefaultProbeInterval,
		probeAttempts:      DefaultProbeAttempts,
	}
}

// Generation returns the current structural-change counter; callers use
// it to detect iterator invalidation (spec.md §4.1 "Iteration").
func (t *Table) Generation() uint64 { return t.generation }

// OverflowCount returns how many entries have been evicted due to
// capacity overflow since the table was created (spec.md §7: DPT
// overflow is "surfaced as a counter, not an error").
func (t *Table) OverflowCount() uint64 { return t.overflowCount }

func (t *Table) bump() { t.generation++ }

func (t *Table) routerFor(addr netip.Addr, isLocal bool, now time.Time) *routerRecord {
	r, ok := t.routers[addr]
	if !ok {
		r = &routerRecord{addr: addr, isLocalDevice: isLocal, lastHeard: now}
		t.routers[addr] = r
		t.bump()
	}
	return r
}

// Ingest applies a received RA to the table per spec.md §4.1. localOnLink
// is BRM's own local on-link prefix (used to suppress self-reflection).
// It returns whether the table changed (an entry added, revived or
// removed, a router's M/O/S flags changed, or an outstanding probe
// resolved; lifetime-only refreshes do not count), and whether the set
// of RDNSS addresses or their router ownership changed (lifetime-only
// changes do not count, per spec.md §4.1 step 6).
func (t *Table) Ingest(now time.Time, in RAInput, localOnLink ip6prefix.Prefix) (changed, rdnssChanged bool) {
	r := t.routerFor(in.From, in.IsLocalDevice, now)
	r.isLocalDevice = r.isLocalDevice || in.IsLocalDevice
	r.lastHeard = now
	// Reception always resolves any outstanding reachability probe.
	if r.probing {
		r.probing = false
		r.probeAttempts = 0
		changed = true
	}

	if r.managed != in.Managed || r.other != in.Other || r.snac != in.Snac {
		r.managed, r.other, r.snac = in.Managed, in.Other, in.Snac
		changed = true
	}

	if r.isLocalDevice {
		r.routerLifetimeLearned = in.RouterLifetime
		r.routerLifetimeIsLearnt = true
	}

	for _, pio := range in.Prefixes {
		if pio.Prefix.Length != ip6prefix.OnLinkLength || !pio.OnLink {
			continue
		}
		if r.isLocalDevice && pio.Prefix.Equal(localOnLink) {
			// Our own PIO reflected back by the platform; not a real
			// peer claim (spec.md §4.1 step 3).
			continue
		}
		if t.upsertOnLink(in.From, pio, now) {
			changed = true
		}
	}

	for _, rio := range in.Routes {
		if t.upsertRoute(in.From, rio, now) {
			changed = true
		}
	}

	for _, opt := range in.Rdnss {
		for _, addr := range opt.Addrs {
			upserted, removed, structural := t.upsertRdnss(in.From, addr, opt.Lifetime, now)
			if structural {
				rdnssChanged = true
				changed = true
			}
			_ = upserted
			_ = removed
		}
	}

	return changed, rdnssChanged
}

func (t *Table) upsertOnLink(router netip.Addr, pio PrefixOption, now time.Time) bool {
	for i := range t.onLink {
		e := &t.onLink[i]
		if e.Router == router && e.Prefix.Equal(pio.Prefix) {
			structural := e.Valid == 0 && pio.Valid > 0
			e.Valid, e.Preferred, e.LastUpdate = pio.Valid, pio.Preferred, now
			if structural {
				t.bump()
			}
			return structural
		}
	}
	if pio.Valid == 0 {
		// Zero valid lifetime for an unknown entry: nothing to record.
		return false
	}
	t.evictIfFullOnLink()
	t.onLink = append(t.onLink, OnLinkEntry{
		Router: router, Prefix: pio.Prefix, Valid: pio.Valid, Preferred: pio.Preferred, LastUpdate: now,
	})
	t.bump()
	return true
}

func (t *Table) upsertRoute(router netip.Addr, rio RouteOption, now time.Time) bool {
	for i := range t.routes {
		e := &t.routes[i]
		if e.Router == router && e.Prefix.Equal(rio.Prefix) {
			structural := e.Lifetime == 0 && rio.Lifetime > 0
			e.Lifetime, e.Preference, e.LastUpdate = rio.Lifetime, rio.Preference, now
			if structural {
				t.bump()
			}
			return structural
		}
	}
	if rio.Lifetime == 0 {
		return false
	}
	t.evictIfFullRoute()
	t.routes = append(t.routes, RouteEntry{
		Router: router, Prefix: rio.Prefix, Lifetime: rio.Lifetime, Preference: rio.Preference, LastUpdate: now,
	})
	t.bump()
	return true
}

// upsertRdnss returns whether the entry was updated/inserted, whether it
// was removed (lifetime==0), and whether the change was structural
// (address added/removed) as opposed to lifetime-only.
func (t *Table) upsertRdnss(router, addr netip.Addr, lt lifetime.Seconds, now time.Time) (upserted, removed, structural bool) {
	for i := range t.rdnss {
		e := &t.rdnss[i]
		if e.Router == router && e.Addr == addr {
			if lt == 0 {
				t.rdnss = append(t.rdnss[:i], t.rdnss[i+1:]...)
				t.bump()
				return false, true, true
			}
			e.Lifetime, e.LastUpdate = lt, now
			return true, false, false
		}
	}
	if lt == 0 {
		return false, false, false
	}
	t.evictIfFullRdnss()
	t.rdnss = append(t.rdnss, RdnssEntry{Router: router, Addr: addr, Lifetime: lt, LastUpdate: now})
	t.bump()
	return true, false, true
}

func (t *Table) evictIfFullOnLink() {
	if len(t.onLink) < t.capacity {
		return
	}
	oldest := 0
	for i := range t.onLink {
		if t.onLink[i].LastUpdate.Before(t.onLink[oldest].LastUpdate) {
			oldest = i
		}
	}
	t.onLink = append(t.onLink[:oldest], t.onLink[oldest+1:]...)
	t.overflowCount++
}

func (t *Table) evictIfFullRoute() {
	if len(t.routes) < t.capacity {
		return
	}
	oldest := 0
	for i := range t.routes {
		if t.routes[i].LastUpdate.Before(t.routes[oldest].LastUpdate) {
			oldest = i
		}
	}
	t.routes = append(t.routes[:oldest], t.routes[oldest+1:]...)
	t.overflowCount++
}

func (t *Table) evictIfFullRdnss() {
	if len(t.rdnss) < t.capacity {
		return
	}
	oldest := 0
	for i := range t.rdnss {
		if t.rdnss[i].LastUpdate.Before(t.rdnss[oldest].LastUpdate) {
			oldest = i
		}
	}
	t.rdnss = append(t.rdnss[:oldest], t.rdnss[oldest+1:]...)
	t.overflowCount++
}

// Expire removes entries whose lifetime has elapsed as of now, then
// prunes routers left with no entries (except the local device and any
// router still mid-probe). It returns whether anything changed.
func (t *Table) Expire(now time.Time) bool {
	changed := false

	onLink := t.onLink[:0]
	for _, e := range t.onLink {
		if lifetime.IsExpired(e.Valid, e.LastUpdate, now) {
			changed = true
			continue
		}
		onLink = append(onLink, e)
	}
	t.onLink = onLink

	routes := t.routes[:0]
	for _, e := range t.routes {
		if lifetime.IsExpired(e.Lifetime, e.LastUpdate, now) {
			changed = true
			continue
		}
		routes = append(routes, e)
	}
	t.routes = routes

	rdnss := t.rdnss[:0]
	for _, e := range t.rdnss {
		if lifetime.IsExpired(e.Lifetime, e.LastUpdate, now) {
			changed = true
			continue
		}
		rdnss = append(rdnss, e)
	}
	t.rdnss = rdnss

	for addr, r := range t.routers {
		if r.isLocalDevice || r.probing {
			continue
		}
		if t.entryCountFor(addr) == 0 {
			delete(t.routers, addr)
			changed = true
		}
	}

	if changed {
		t.bump()
	}
	return changed
}

func (t *Table) entryCountFor(addr netip.Addr) int {
	n := 0
	for _, e := range t.onLink {
		if e.Router == addr {
			n++
		}
	}
	for _, e := range t.routes {
		if e.Router == addr {
			n++
		}
	}
	for _, e := range t.rdnss {
		if e.Router == addr {
			n++
		}
	}
	return n
}

// NextExpiryDeadline returns the earliest time at which some entry will
// cross its lifetime, for the event loop to schedule the next timer
// fire (spec.md §4.1: "A single timer fires when the next entry would
// cross now - lastUpdateTime ≥ lifetime").
func (t *Table) NextExpiryDeadline() (time.Time, bool) {
	var best time.Time
	found := false
	consider := func(lt lifetime.Seconds, lastUpdate time.Time) {
		if lt.IsInfinite() {
			return
		}
		d := lifetime.Deadline(lt, lastUpdate)
		if !found || d.Before(best) {
			best, found = d, true
		}
	}
	for _, e := range t.onLink {
		consider(e.Valid, e.LastUpdate)
	}
	for _, e := range t.routes {
		consider(e.Lifetime, e.LastUpdate)
	}
	for _, e := range t.rdnss {
		consider(e.Lifetime, e.LastUpdate)
	}
	return best, found
}

// DueForProbe returns the non-local routers that need an NS now: those
// not yet probing that have been silent for at least the router-active
// window, and those mid-probe whose next attempt is due (spec.md §4.1
// "NS probe / reachability").
func (t *Table) DueForProbe(now time.Time) []netip.Addr {
	var due []netip.Addr
	for addr, r := range t.routers {
		if r.isLocalDevice {
			continue
		}
		if !r.probing {
			if now.Sub(r.lastHeard) >= t.routerActiveWindow {
				due = append(due, addr)
			}
			continue
		}
		if r.probeAttempts < t.probeAttempts && now.Sub(r.lastProbeSent) >= t.probeInterval {
			due = append(due, addr)
		}
	}
	return due
}

// ResolveProbe marks addr as having answered an outstanding NS probe
// with a Neighbor Advertisement, independent of a full RA (spec.md
// §4.1: "If no NA arrives within the retransmit window ... declared
// unreachable").
func (t *Table) ResolveProbe(addr netip.Addr) {
	r, ok := t.routers[addr]
	if !ok || !r.probing {
		return
	}
	r.probing = false
	r.probeAttempts = 0
	// The answer proves the router was alive when the probe went out, so
	// its router-active window restarts from there.
	r.lastHeard = r.lastProbeSent
	t.bump()
}

// RecordProbeSent marks that an NS was just sent to addr.
func (t *Table) RecordProbeSent(addr netip.Addr, now time.Time) {
	r, ok := t.routers[addr]
	if !ok {
		return
	}
	r.probing = true
	r.probeAttempts++
	r.lastProbeSent = now
}

// Unreachable returns, and purges, routers whose probe budget has been
// exhausted without a response (spec.md §4.1: "declared unreachable:
// all its entries are removed"). Call after RecordProbeSent has been
// applied for the current round.
func (t *Table) Unreachable(now time.Time) []netip.Addr {
	var gone []netip.Addr
	for addr, r := range t.routers {
		if r.isLocalDevice || !r.probing {
			continue
		}
		if r.probeAttempts >= t.probeAttempts && now.Sub(r.lastProbeSent) >= t.probeInterval {
			gone = append(gone, addr)
		}
	}
	for _, addr := range gone {
		t.purgeRouter(addr)
	}
	if len(gone) > 0 {
		t.bump()
	}
	return gone
}

func (t *Table) purgeRouter(addr netip.Addr) {
	delete(t.routers, addr)

	onLink := t.onLink[:0]
	for _, e := range t.onLink {
		if e.Router != addr {
			onLink = append(onLink, e)
		}
	}
	t.onLink = onLink

	routes := t.routes[:0]
	for _, e := range t.routes {
		if e.Router != addr {
			routes = append(routes, e)
		}
	}
	t.routes = routes

	rdnss := t.rdnss[:0]
	for _, e := range t.rdnss {
		if e.Router != addr {
			rdnss = append(rdnss, e)
		}
	}
	t.rdnss = rdnss
}

// NextStaleDeadline reports the earliest time at which the table's
// knowledge of some distinct prefix could become entirely stale: the
// minimum, over all distinct prefixes appearing in the table, of the
// *latest* per-prefix entry deadline (the point at which the very last
// router still vouching for that prefix would time out).
//
// This is deliberately not the deadline of the single soonest-expiring
// entry: spec.md's stale-time-extension scenario (§8 S5) requires that
// overlapping reports from multiple routers extend staleness to the
// longest-lived one, so BRM does not re-solicit prematurely just
// because one of several routers advertising the same prefix goes
// quiet first.
func (t *Table) NextStaleDeadline(now time.Time) (time.Time, bool) {
	latest := make(map[ip6prefix.Prefix]time.Time)
	note := func(p ip6prefix.Prefix, lt lifetime.Seconds, lastUpdate time.Time) {
		if lt.IsInfinite() {
			return
		}
		d := lifetime.Deadline(lt, lastUpdate)
		if cur, ok := latest[p]; !ok || d.After(cur) {
			latest[p] = d
		}
	}
	for _, e := range t.onLink {
		note(e.Prefix, e.Valid, e.LastUpdate)
	}
	for _, e := range t.routes {
		note(e.Prefix, e.Lifetime, e.LastUpdate)
	}

	var best time.Time
	found := false
	for _, d := range latest {
		if !found || d.Before(best) {
			best, found = d, true
		}
	}
	return best, found
}

// --- Stable iteration ---

// PrefixEntries returns a stable snapshot of all on-link entries.
func (t *Table) PrefixEntries() []OnLinkEntry {
	out := make([]OnLinkEntry, len(t.onLink))
	copy(out, t.onLink)
	return out
}

// RouteEntries returns a stable snapshot of all route entries.
func (t *Table) RouteEntries() []RouteEntry {
	out := make([]RouteEntry, len(t.routes))
	copy(out, t.routes)
	return out
}

// RdnssEntries returns a stable snapshot of all RDNSS entries.
func (t *Table) RdnssEntries() []RdnssEntry {
	out := make([]RdnssEntry, len(t.rdnss))
	copy(out, t.rdnss)
	return out
}

// Routers returns a stable snapshot of all known routers.
func (t *Table) Routers() []Router {
	out := make([]Router, 0, len(t.routers))
	for _, r := range t.routers {
		out = append(out, Router{
			Addr:          r.addr,
			IsLocalDevice: r.isLocalDevice,
			Managed:       r.managed,
			Other:         r.other,
			Snac:          r.snac,
			LastHeard:     r.lastHeard,
		})
	}
	return out
}

// LocalRouterLifetime returns the RA header router lifetime last
// learned from our own address, if any (spec.md §4.1 step 2, used by
// internal/raxmit to fill in "raHeaderLearned").
func (t *Table) LocalRouterLifetime() (lifetime.Seconds, bool) {
	for _, r := range t.routers {
		if r.isLocalDevice && r.routerLifetimeIsLearnt {
			return r.routerLifetimeLearned, true
		}
	}
	return 0, false
}
