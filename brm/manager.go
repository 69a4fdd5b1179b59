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

// Package brm implements the Border Routing Manager: the event loop
// glue (spec.md §4.8, §5, C10) that wires the Discovered Prefix Table
// (internal/dpt), the routing policy (internal/policy), the RA/RS/NS
// transmitter (internal/raxmit), persistence (internal/persist), the
// DHCPv6-PD adaptor (internal/dhcp6pd), the NAT64 adaptor
// (internal/nat64) and the auto-enable bus (internal/autoenable) into
// one single-threaded, cooperative state machine.
//
// All mutation happens synchronously inside the methods below, invoked
// by whatever single goroutine owns the platform's event loop (spec.md
// §5: "there are no internal locks ... must be invoked from the same
// task"). Manager itself never spawns a goroutine; the teacher's
// channel/goroutine-fanout idiom (CompositeReceiver.mergeEvents,
// RAReceiver.receiveLoop) is deliberately not replicated here — this is
// the one place SPEC_FULL.md overrides the teacher's concurrency style.
package brm

import (
	"errors"
	"net/netip"
	"time"

	"github.com/go-logr/logr"
	"github.com/mdlayher/ndp"

	"github.com/jr42/brm/internal/autoenable"
	"github.com/jr42/brm/internal/dhcp6pd"
	"github.com/jr42/brm/internal/dpt"
	"github.com/jr42/brm/internal/ip6prefix"
	"github.com/jr42/brm/internal/lifetime"
	"github.com/jr42/brm/internal/nat64"
	"github.com/jr42/brm/internal/netdata"
	"github.com/jr42/brm/internal/persist"
	"github.com/jr42/brm/internal/policy"
	"github.com/jr42/brm/internal/raxmit"
)

// allNodesMulticast is the destination RAs and RSes are sent to; unicast
// NS probes instead target the specific router address (spec.md §4.1,
// §4.3).
var allNodesMulticast = netip.MustParseAddr("ff02::1")

// State mirrors spec.md §4.8's `Disabled → Stopped ↔ Running`.
type State uint8

const (
	StateDisabled State = iota
	StateStopped
	StateRunning
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateRunning:
		return "running"
	default:
		return "disabled"
	}
}

// ErrConfigConflict is returned by configuration calls made while BRM
// cannot honor them (spec.md §7: "Configuration-state conflict ...
// returns a recoverable error code; no state change").
var ErrConfigConflict = errors.New("brm: configuration call conflicts with current state")

// Manager is the Border Routing Manager.
type Manager struct {
	platform Platform
	netData  netdata.Publisher
	persist  *persist.Store
	log      logr.Logger

	state          State
	enabled        bool
	infraIfRunning bool
	threadAttached bool

	identity Identity
	local    policy.LocalState

	table      *dpt.Table
	trickle    *raxmit.Trickle
	dhcp       *dhcp6pd.Adaptor
	nat        *nat64.Adaptor
	autoEnable *autoenable.Bus

	lastDecision     policy.Decision
	haveLastDecision bool

	publishedExternalRoute netdata.ExternalRoute
	haveExternalRoute      bool
	publishedNat64         ip6prefix.Prefix
	haveNat64              bool

	rdnssCallback func([]dpt.RdnssEntry)
	lastRdnssKeys map[string]struct{}

	lastStaleRSDeadline time.Time
	startupRsRemaining  int
	startupRsNextAt     time.Time
}

// NewManager creates a disabled Manager bound to platform, netData and
// settings. Call SetIdentity before the first SetEnabled(true).
func NewManager(platform Platform, netData netdata.Publisher, settings persist.Settings, log logr.Logger) *Manager {
	return &Manager{
		platform:   platform,
		netData:    netData,
		persist:    persist.NewStore(settings),
		log:        log,
		table:      dpt.New(),
		dhcp:       dhcp6pd.New(),
		nat:        nat64.NewAdaptor(ip6prefix.Prefix{}),
		autoEnable: autoenable.New(),
	}
}

// SetIdentity records the mesh identity used to derive BRM's local
// prefixes (spec.md §3). Safe to call before enabling; see SetExtPanID
// for updating it while running.
func (m *Manager) SetIdentity(id Identity) {
	m.identity = id
	m.nat.SetLocal(ip6prefix.DeriveLocalNat64(id.ExtPanID))
}

// RegisterAutoEnableService binds name to svc for later SetAutoEnable
// calls (spec.md §4.7).
func (m *Manager) RegisterAutoEnableService(name string, svc autoenable.Service) {
	m.autoEnable.Register(name, svc)
}

// SetAutoEnable toggles auto-enable for a registered service name.
func (m *Manager) SetAutoEnable(name string, on bool) error {
	return m.autoEnable.SetAutoEnable(name, on)
}

// IsEnabled reports whether SetEnabled(true) is currently in effect.
func (m *Manager) IsEnabled() bool { return m.enabled }

// State reports the current lifecycle state.
func (m *Manager) State() State { return m.state }

// SetEnabled implements spec.md §6's `setEnabled`.
func (m *Manager) SetEnabled(enabled bool) error {
	now := m.platform.GetNow()
	if enabled {
		if m.state != StateDisabled {
			return nil
		}
		m.enabled = true
		m.local = policy.LocalState{
			LocalOnLink: ip6prefix.DeriveLocalOnLink(m.identity.ExtPanID),
			LocalOmr:    ip6prefix.DeriveLocalOmr(m.identity.MeshLocalPrefix),
			Config:      policy.OmrConfig{Mode: policy.OmrAuto},
		}
		for _, rec := range m.persist.Load(now) {
			if e, ok := restoreDeprecating(rec, now); ok {
				m.local.DeprecatingOnLink = append(m.local.DeprecatingOnLink, e)
			}
		}
		m.trickle = raxmit.NewTrickle(raxmit.DefaultMinInterval, raxmit.DefaultMaxInterval)
		m.table = dpt.New()
		m.state = StateStopped
		m.maybeEnterRunning(now)
		m.rearmAlarm(now)
		return nil
	}

	if m.state == StateDisabled {
		return nil
	}
	if m.state == StateRunning {
		m.leaveRunning(now)
	}
	m.state = StateDisabled
	m.enabled = false
	m.local = policy.LocalState{}
	m.haveLastDecision = false
	m.platform.AlarmStop()
	return nil
}

// restoreDeprecating reconstructs a DeprecatingEntry whose Remaining(now)
// reproduces the decayed valid lifetime recorded at SavedAt (spec.md
// §4.4: "restored into deprecatingOnLinks verbatim; entries whose
// remaining valid lifetime is ≤0 are dropped").
func restoreDeprecating(rec persist.Record, now time.Time) (policy.DeprecatingEntry, bool) {
	remaining := lifetime.Decrement(rec.ValidAtSave, lifetime.Elapsed(rec.SavedAt, now))
	if remaining == 0 {
		return policy.DeprecatingEntry{}, false
	}
	elapsedEquivalent := policy.OnLinkDeprecateWindow - remaining.Duration()
	if elapsedEquivalent < 0 {
		elapsedEquivalent = 0
	}
	return policy.DeprecatingEntry{Prefix: rec.Prefix, DeprecateStart: now.Add(-elapsedEquivalent)}, true
}

// SetExtPanID updates the Extended PAN ID and, if it changed while BRM
// is enabled, deprecates the old localOnLink per spec.md §4.2 "Ext-PAN-
// ID change".
func (m *Manager) SetExtPanID(extPanID [8]byte) {
	old := m.identity.ExtPanID
	m.identity.ExtPanID = extPanID
	m.nat.SetLocal(ip6prefix.DeriveLocalNat64(extPanID))
	if m.state == StateDisabled || old == extPanID {
		return
	}
	now := m.platform.GetNow()
	oldOnLink := m.local.LocalOnLink
	m.local.LocalOnLink = ip6prefix.DeriveLocalOnLink(extPanID)
	m.local.DeprecatingOnLink = policy.HandleExtPanIDChange(oldOnLink, m.local.DeprecatingOnLink, now)
	m.local.AdvertisingLocal = false
	if m.trickle != nil {
		m.trickle.Reset(now)
	}
	m.reEvaluate(now)
	m.rearmAlarm(now)
}

// SetMeshLocalPrefix updates the Mesh-Local prefix localOmr derives
// from.
func (m *Manager) SetMeshLocalPrefix(p ip6prefix.Prefix) {
	m.identity.MeshLocalPrefix = p
	if m.state == StateDisabled {
		return
	}
	m.local.LocalOmr = ip6prefix.DeriveLocalOmr(p)
	now := m.platform.GetNow()
	m.reEvaluate(now)
	m.rearmAlarm(now)
}

// SetInfraIfState implements `platInfraIfStateChanged`.
func (m *Manager) SetInfraIfState(running bool) {
	now := m.platform.GetNow()
	m.infraIfRunning = running
	if running {
		m.maybeEnterRunning(now)
	} else {
		m.maybeLeaveRunning(now)
	}
	m.rearmAlarm(now)
}

// SetThreadAttached records Thread mesh attachment state, one of the
// §4.8 "mesh role" preconditions for entering Running.
func (m *Manager) SetThreadAttached(attached bool) {
	now := m.platform.GetNow()
	m.threadAttached = attached
	if attached {
		m.maybeEnterRunning(now)
	} else {
		m.maybeLeaveRunning(now)
	}
	m.rearmAlarm(now)
}

func (m *Manager) maybeEnterRunning(now time.Time) {
	if m.state != StateStopped || !m.enabled || !m.infraIfRunning || !m.threadAttached {
		return
	}
	m.state = StateRunning
	m.trickle.Reset(now)
	m.startupRsRemaining = raxmit.StartupRsBurstCount
	m.sendNextStartupRS(now)
	if errs := m.autoEnable.EnterRunning(); len(errs) > 0 {
		for _, err := range errs {
			m.log.Error(err, "auto-enable service failed to start")
		}
	}
	// Kick off NAT64 prefix discovery immediately on entering running;
	// the result arrives later via OnNat64Discovered (spec.md §6
	// `platInfraIfDiscoverNat64Prefix`).
	m.platform.DiscoverNat64Prefix()
	m.reEvaluate(now)
}

func (m *Manager) maybeLeaveRunning(now time.Time) {
	if m.state != StateRunning || (m.enabled && m.infraIfRunning && m.threadAttached) {
		return
	}
	m.leaveRunning(now)
	m.state = StateStopped
}

func (m *Manager) leaveRunning(now time.Time) {
	ra := raxmit.BuildFinalRA(now, m.local.LocalOnLink, m.local.DeprecatingOnLink, m.local.PublishedOmr, m.local.HasPublishedOmr)
	if err := m.platform.SendRA(allNodesMulticast, ra); err != nil {
		m.log.Error(err, "failed to send final RA")
	}
	m.persistDeprecating(now)
	if errs := m.autoEnable.LeaveRunning(); len(errs) > 0 {
		for _, err := range errs {
			m.log.Error(err, "auto-enable service failed to stop")
		}
	}
	if m.local.HasPublishedOmr {
		_ = m.netData.WithdrawOmr()
		m.local.HasPublishedOmr = false
	}
	if m.haveExternalRoute {
		_ = m.netData.WithdrawExternalRoute()
		m.haveExternalRoute = false
	}
	if m.haveNat64 {
		_ = m.netData.WithdrawNat64()
		m.haveNat64 = false
	}
	m.haveLastDecision = false
	m.log.Info("left running state")
}

func (m *Manager) persistDeprecating(now time.Time) {
	recs := make([]persist.Record, 0, len(m.local.DeprecatingOnLink))
	for _, e := range m.local.DeprecatingOnLink {
		recs = append(recs, persist.Record{Prefix: e.Prefix, ValidAtSave: e.Remaining(now), SavedAt: now})
	}
	m.persist.Save(now, recs)
}

func (m *Manager) sendNextStartupRS(now time.Time) {
	if m.startupRsRemaining <= 0 {
		return
	}
	if err := m.platform.SendRS(allNodesMulticast); err != nil {
		m.log.Error(err, "failed to send startup RS")
	}
	m.startupRsRemaining--
	m.startupRsNextAt = now.Add(raxmit.StartupRsJitter)
}

// --- Inbound events (event loop glue, C10) ---

// OnReceiveRA dispatches a received Router Advertisement into the DPT
// and re-evaluates policy (spec.md §5 "A received RA is fully applied
// to DPT before any policy re-evaluation"). snac carries the Thread
// SNAC header bit, decoded by the platform's ND parser since
// mdlayher/ndp has no field for it (see internal/raxmit.RA).
func (m *Manager) OnReceiveRA(from netip.Addr, isLocalDevice, snac bool, ra *ndp.RouterAdvertisement) {
	if m.state != StateRunning {
		return
	}
	now := m.platform.GetNow()
	in := raxmit.DecodeRA(from, isLocalDevice, snac, ra)
	changed, _ := m.table.Ingest(now, in, m.local.LocalOnLink)
	m.checkRdnssCallback()

	// Any received RA cancels the remaining startup RS retransmits
	// (spec.md §4.3 "each received RA cancels remaining retransmits for
	// that burst").
	m.startupRsRemaining = 0

	if changed {
		m.reEvaluate(now)
	}
	m.rearmAlarm(now)
}

// OnReceiveNA resolves an outstanding NS probe without requiring a full
// RA (spec.md §4.1 NS probe / reachability).
func (m *Manager) OnReceiveNA(from netip.Addr) {
	if m.state != StateRunning {
		return
	}
	m.table.ResolveProbe(from)
	m.rearmAlarm(m.platform.GetNow())
}

// OnNat64Discovered delivers the result of an earlier
// platInfraIfDiscoverNat64Prefix call (spec.md §6
// `platInfraIfDiscoverNat64PrefixDone`).
func (m *Manager) OnNat64Discovered(prefix ip6prefix.Prefix, ok bool) {
	m.nat.SetDiscovered(prefix, ok)
	if m.state == StateRunning {
		now := m.platform.GetNow()
		m.reEvaluate(now)
		m.rearmAlarm(now)
	}
}

// OnTimerFire is the single millisecond alarm's callback (spec.md §6
// `platAlarmStartAt`): it sweeps DPT expiry, drives NS probes and the
// stale-time Router Solicitation, fires the trickle timer, and
// re-arms the next deadline.
func (m *Manager) OnTimerFire(now time.Time) {
	if m.state == StateDisabled {
		return
	}

	changed := m.table.Expire(now)

	for _, addr := range m.table.DueForProbe(now) {
		if err := m.platform.SendNS(addr, addr); err != nil {
			m.log.Error(err, "failed to send NS probe", "router", addr)
		}
		m.table.RecordProbeSent(addr, now)
	}
	if unreachable := m.table.Unreachable(now); len(unreachable) > 0 {
		changed = true
	}
	m.checkRdnssCallback()

	if staleDeadline, ok := m.table.NextStaleDeadline(now); ok && !now.Before(staleDeadline) && staleDeadline.After(m.lastStaleRSDeadline) {
		if err := m.platform.SendRS(allNodesMulticast); err != nil {
			m.log.Error(err, "failed to send stale-time RS")
		}
		m.lastStaleRSDeadline = staleDeadline
	}

	if m.startupRsRemaining > 0 && !now.Before(m.startupRsNextAt) {
		m.sendNextStartupRS(now)
	}

	if changed {
		m.reEvaluate(now)
	}

	if m.state == StateRunning && m.trickle != nil && !now.Before(m.trickle.NextFire()) {
		m.sendRA(now)
		m.trickle.Fire(now)
	}

	if m.dhcp.Expire(now) {
		m.local.Dhcp6PdActive = false
		m.reEvaluate(now)
	}

	m.rearmAlarm(now)
}

func (m *Manager) sendRA(now time.Time) {
	managed, other := raxmit.AggregateMO(m.table.Routers())
	routerLifetime, _ := m.table.LocalRouterLifetime()
	in := raxmit.BuildInput{
		Now:                  now,
		RouterLifetime:       routerLifetime,
		Managed:              managed,
		Other:                other,
		AdvertiseLocalOnLink: m.local.AdvertisingLocal,
		LocalOnLink:          m.local.LocalOnLink,
		DeprecatingOnLink:    m.local.DeprecatingOnLink,
		PublishOwnOmr:        m.local.HasPublishedOmr,
		FavoredOmr:           m.local.PublishedOmr,
		DeprecatingOmr:       m.local.DeprecatingOmr,
	}
	ra := raxmit.BuildRA(in)
	if err := m.platform.SendRA(allNodesMulticast, ra); err != nil {
		m.log.Error(err, "failed to send periodic RA")
	}
}

// reEvaluate runs the routing policy and applies its decision (spec.md
// §4.2). It is the only place Network Data entries are published;
// leaveRunning withdraws them.
func (m *Manager) reEvaluate(now time.Time) {
	if m.state != StateRunning {
		return
	}
	in := policy.Input{
		Now:           now,
		OnLinkEntries: m.table.PrefixEntries(),
		RouteEntries:  m.table.RouteEntries(),
		NetData:       m.netData.Read(),
		Local:         m.local,
	}
	decision := policy.Evaluate(in)

	significant := !m.haveLastDecision || decisionChanged(m.lastDecision, decision)
	m.applyDecision(now, decision)
	if significant && m.trickle != nil {
		m.trickle.Reset(now)
	}
}

func decisionChanged(a, b policy.Decision) bool {
	if !a.FavoredOnLink.Equal(b.FavoredOnLink) || a.AdvertiseLocalOnLink != b.AdvertiseLocalOnLink {
		return true
	}
	if a.HasFavoredOmr != b.HasFavoredOmr {
		return true
	}
	if a.HasFavoredOmr && !a.FavoredOmr.Prefix.Equal(b.FavoredOmr.Prefix) {
		return true
	}
	if a.PublishOwnOmr != b.PublishOwnOmr {
		return true
	}
	return a.ExternalRoute != b.ExternalRoute
}

func (m *Manager) applyDecision(now time.Time, d policy.Decision) {
	advertisingChanged := m.local.AdvertisingLocal != d.AdvertiseLocalOnLink
	deprecatingChanged := len(m.local.DeprecatingOnLink) != len(d.DeprecatingOnLink)

	m.local.AdvertisingLocal = d.AdvertiseLocalOnLink
	m.local.DeprecatingOnLink = d.DeprecatingOnLink
	m.local.DeprecatingOmr = d.DeprecatingOmr

	if advertisingChanged || deprecatingChanged {
		m.persistDeprecating(now)
	}

	if d.PublishOwnOmr {
		if !m.local.HasPublishedOmr || !m.local.PublishedOmr.Equal(d.OwnOmr.Prefix) {
			if err := m.netData.PublishOmr(netdata.OmrEntry{
				Prefix: d.OwnOmr.Prefix, Preference: d.OwnOmr.Preference, Infrastructure: d.OwnOmr.Infrastructure,
			}); err != nil {
				m.log.Error(err, "failed to publish OMR prefix")
			}
			m.local.PublishedOmr = d.OwnOmr.Prefix
			m.local.HasPublishedOmr = true
		}
	} else if m.local.HasPublishedOmr {
		if err := m.netData.WithdrawOmr(); err != nil {
			m.log.Error(err, "failed to withdraw OMR prefix")
		}
		m.local.HasPublishedOmr = false
	}

	if !m.haveExternalRoute || m.publishedExternalRoute != d.ExternalRoute {
		if err := m.netData.PublishExternalRoute(d.ExternalRoute); err != nil {
			m.log.Error(err, "failed to publish external route")
		}
		m.publishedExternalRoute = d.ExternalRoute
		m.haveExternalRoute = true
	}

	natDecision := m.nat.Evaluate(d.InfrastructureOmrPresent)
	if natDecision.Publish {
		if !m.haveNat64 || !m.publishedNat64.Equal(natDecision.Prefix) {
			if err := m.netData.PublishNat64(natDecision.Prefix); err != nil {
				m.log.Error(err, "failed to publish NAT64 prefix")
			}
			m.publishedNat64 = natDecision.Prefix
			m.haveNat64 = true
		}
	} else if m.haveNat64 {
		if err := m.netData.WithdrawNat64(); err != nil {
			m.log.Error(err, "failed to withdraw NAT64 prefix")
		}
		m.haveNat64 = false
	}

	m.lastDecision = d
	m.haveLastDecision = true
}

func (m *Manager) checkRdnssCallback() {
	if m.rdnssCallback == nil {
		return
	}
	entries := m.table.RdnssEntries()
	keys := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		keys[e.Router.String()+"|"+e.Addr.String()] = struct{}{}
	}
	if mapKeysEqual(keys, m.lastRdnssKeys) {
		return
	}
	m.lastRdnssKeys = keys
	m.rdnssCallback(entries)
}

func mapKeysEqual(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}

func (m *Manager) rearmAlarm(now time.Time) {
	var best time.Time
	found := false
	consider := func(t time.Time, ok bool) {
		if ok && (!found || t.Before(best)) {
			best, found = t, true
		}
	}
	consider(m.table.NextExpiryDeadline())
	consider(m.table.NextStaleDeadline(now))
	consider(m.dhcp.Deadline())
	if m.state == StateRunning && m.trickle != nil {
		consider(m.trickle.NextFire(), true)
	}
	if m.startupRsRemaining > 0 {
		consider(m.startupRsNextAt, true)
	}
	if !found {
		m.platform.AlarmStop()
		return
	}
	if best.Before(now) {
		best = now
	}
	m.platform.AlarmStartAt(now, best.Sub(now))
}

// --- Getters (spec.md §6 consumer-facing API) ---

func (m *Manager) GetOnLinkPrefix() ip6prefix.Prefix { return m.local.LocalOnLink }

func (m *Manager) GetFavoredOnLinkPrefix() (ip6prefix.Prefix, bool) {
	return m.lastDecision.FavoredOnLink, m.haveLastDecision
}

func (m *Manager) GetOmrPrefix() ip6prefix.Prefix { return m.local.LocalOmr }

func (m *Manager) GetFavoredOmrPrefix() (policy.OmrCandidate, bool) {
	return m.lastDecision.FavoredOmr, m.lastDecision.HasFavoredOmr
}

func (m *Manager) GetNat64Prefix() (ip6prefix.Prefix, bool) {
	infra := m.haveLastDecision && m.lastDecision.InfrastructureOmrPresent
	d := m.nat.Evaluate(infra)
	return d.Prefix, d.Publish
}

func (m *Manager) SetNat64Enabled(enabled bool) {
	m.nat.SetEnabled(enabled)
	if m.state == StateRunning {
		if enabled {
			m.platform.DiscoverNat64Prefix()
		}
		now := m.platform.GetNow()
		m.reEvaluate(now)
		m.rearmAlarm(now)
	}
}

func (m *Manager) SetOmrConfig(cfg policy.OmrConfig) error {
	if m.state == StateDisabled {
		return ErrConfigConflict
	}
	m.local.Config = cfg
	now := m.platform.GetNow()
	m.reEvaluate(now)
	m.rearmAlarm(now)
	return nil
}

func (m *Manager) GetOmrConfig() policy.OmrConfig { return m.local.Config }

func (m *Manager) SetDhcp6PdEnabled(enabled bool) {
	m.dhcp.SetEnabled(enabled)
	m.local.Dhcp6PdActive = false
	if m.state == StateRunning {
		now := m.platform.GetNow()
		m.reEvaluate(now)
		m.rearmAlarm(now)
	}
}

func (m *Manager) ProcessDhcp6PdReport(raw []byte) error {
	now := m.platform.GetNow()
	changed, err := m.dhcp.ProcessReport(raw, now)
	if err != nil {
		return err
	}
	if changed {
		prefix, _ := m.dhcp.PdPrefix()
		m.local.Dhcp6PdActive = true
		m.local.Dhcp6PdPrefix = prefix
		m.reEvaluate(now)
		m.rearmAlarm(now)
	}
	return nil
}

func (m *Manager) GetDhcp6PdOmrPrefix() (ip6prefix.Prefix, bool) { return m.dhcp.PdPrefix() }

func (m *Manager) SetRdnssCallback(fn func([]dpt.RdnssEntry)) { m.rdnssCallback = fn }

// --- Iteration (spec.md §6) ---

// Iterator is a stable snapshot over the DPT's three tables, taken at
// InitPrefixIterator time (spec.md §4.1 "Iteration": "invalidated only
// by structural change").
type Iterator struct {
	prefixes []dpt.OnLinkEntry
	routers  []dpt.Router
	rdnss    []dpt.RdnssEntry

	pIdx, rIdx, dIdx int
	generation       uint64
}

func (m *Manager) InitPrefixIterator() *Iterator {
	return &Iterator{
		prefixes:   m.table.PrefixEntries(),
		routers:    m.table.Routers(),
		rdnss:      m.table.RdnssEntries(),
		generation: m.table.Generation(),
	}
}

// Generation reports the table generation this iterator snapshots;
// compare against Manager.Generation to detect invalidation.
func (it *Iterator) Generation() uint64 { return it.generation }

func (m *Manager) Generation() uint64 { return m.table.Generation() }

func (it *Iterator) NextPrefixEntry() (dpt.OnLinkEntry, bool) {
	if it.pIdx >= len(it.prefixes) {
		return dpt.OnLinkEntry{}, false
	}
	e := it.prefixes[it.pIdx]
	it.pIdx++
	return e, true
}

func (it *Iterator) NextRdnssEntry() (dpt.RdnssEntry, bool) {
	if it.dIdx >= len(it.rdnss) {
		return dpt.RdnssEntry{}, false
	}
	e := it.rdnss[it.dIdx]
	it.dIdx++
	return e, true
}

func (it *Iterator) NextRouterEntry() (dpt.Router, bool) {
	if it.rIdx >= len(it.routers) {
		return dpt.Router{}, false
	}
	e := it.routers[it.rIdx]
	it.rIdx++
	return e, true
}
