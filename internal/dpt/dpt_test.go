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

package dpt

import (
	"net/netip"
	"testing"
	"time"

	"github.com/jr42/brm/internal/ip6prefix"
	"github.com/jr42/brm/internal/lifetime"
	"github.com/jr42/brm/internal/netdata"
)

func mustPrefix(s string) ip6prefix.Prefix {
	return ip6prefix.FromNetip(netip.MustParsePrefix(s))
}

func TestIngestUpsertsOnLinkEntry(t *testing.T) {
	tbl := New()
	now := time.Unix(1000, 0)
	from := netip.MustParseAddr("fe80::1")
	localOnLink := mustPrefix("fd00:1::/64")

	in := RAInput{
		From: from,
		Prefixes: []PrefixOption{
			{Prefix: mustPrefix("2001:db8::/64"), OnLink: true, Valid: 1800, Preferred: 1800},
		},
	}

	changed, rdnssChanged := tbl.Ingest(now, in, localOnLink)
	if !changed {
		t.Fatal("expected a structural change on first ingest")
	}
	if rdnssChanged {
		t.Error("did not expect rdnssChanged with no RDNSS options")
	}
	entries := tbl.PrefixEntries()
	if len(entries) != 1 {
		t.Fatalf("expected 1 on-link entry, got %d", len(entries))
	}
	if !entries[0].Prefix.Equal(mustPrefix("2001:db8::/64")) {
		t.Errorf("unexpected prefix %s", entries[0].Prefix)
	}

	// Re-ingesting the same entry with the same lifetime is not
	// structural (only the refresh timestamp moves).
	changed, _ = tbl.Ingest(now.Add(time.Second), in, localOnLink)
	if changed {
		t.Error("expected a no-op refresh to not be structural")
	}
}

func TestIngestDropsSelfReflectedOnLinkPrefix(t *testing.T) {
	tbl := New()
	now := time.Unix(1000, 0)
	local := netip.MustParseAddr("fe80::abcd")
	localOnLink := mustPrefix("fd00:1::/64")

	in := RAInput{
		From:          local,
		IsLocalDevice: true,
		Prefixes: []PrefixOption{
			{Prefix: localOnLink, OnLink: true, Valid: 1800, Preferred: 1800},
		},
	}
	tbl.Ingest(now, in, localOnLink)
	if len(tbl.PrefixEntries()) != 0 {
		t.Error("expected self-reflected localOnLink PIO to be dropped")
	}
}

func TestIngestKeepsPeerClaimOfLocalOnLink(t *testing.T) {
	// spec.md §4.2: a genuine peer advertising the same /64 value as our
	// local on-link prefix is retained for stale-timer accounting, even
	// though the value happens to coincide with ours.
	tbl := New()
	now := time.Unix(1000, 0)
	peer := netip.MustParseAddr("fe80::2")
	localOnLink := mustPrefix("fd00:1::/64")

	in := RAInput{
		From: peer,
		Prefixes: []PrefixOption{
			{Prefix: localOnLink, OnLink: true, Valid: 1800, Preferred: 1800},
		},
	}
	tbl.Ingest(now, in, localOnLink)
	if len(tbl.PrefixEntries()) != 1 {
		t.Fatal("expected peer's claim of localOnLink to be retained")
	}
}

func TestIngestRouteAndRdnss(t *testing.T) {
	tbl := New()
	now := time.Unix(1000, 0)
	from := netip.MustParseAddr("fe80::3")
	localOnLink := mustPrefix("fd00:1::/64")
	dns := netip.MustParseAddr("2001:db8::53")

	in := RAInput{
		From: from,
		Routes: []RouteOption{
			{Prefix: mustPrefix("::/0"), Lifetime: 1800, Preference: netdata.PreferenceHigh},
		},
		Rdnss: []RdnssOption{
			{Addrs: []netip.Addr{dns}, Lifetime: 600},
		},
	}
	changed, rdnssChanged := tbl.Ingest(now, in, localOnLink)
	if !changed || !rdnssChanged {
		t.Fatalf("expected both changed and rdnssChanged on first sighting, got changed=%v rdnssChanged=%v", changed, rdnssChanged)
	}
	if len(tbl.RouteEntries()) != 1 {
		t.Fatalf("expected 1 route entry, got %d", len(tbl.RouteEntries()))
	}
	if len(tbl.RdnssEntries()) != 1 {
		t.Fatalf("expected 1 RDNSS entry, got %d", len(tbl.RdnssEntries()))
	}

	// Refreshing the RDNSS lifetime without changing the address set must
	// not report rdnssChanged (spec.md §4.1 step 6).
	_, rdnssChanged = tbl.Ingest(now.Add(time.Second), in, localOnLink)
	if rdnssChanged {
		t.Error("lifetime-only RDNSS refresh must not report rdnssChanged")
	}

	// Lifetime 0 removes the RDNSS entry, which IS structural.
	withdraw := RAInput{
		From:  from,
		Rdnss: []RdnssOption{{Addrs: []netip.Addr{dns}, Lifetime: 0}},
	}
	_, rdnssChanged = tbl.Ingest(now.Add(2*time.Second), withdraw, localOnLink)
	if !rdnssChanged {
		t.Error("expected RDNSS withdrawal to report rdnssChanged")
	}
	if len(tbl.RdnssEntries()) != 0 {
		t.Error("expected RDNSS entry to be removed")
	}
}

func TestExpireRemovesStaleEntriesAndPrunesRouter(t *testing.T) {
	tbl := New()
	now := time.Unix(1000, 0)
	from := netip.MustParseAddr("fe80::4")
	localOnLink := mustPrefix("fd00:1::/64")

	in := RAInput{
		From: from,
		Prefixes: []PrefixOption{
			{Prefix: mustPrefix("2001:db8::/64"), OnLink: true, Valid: 100, Preferred: 100},
		},
	}
	tbl.Ingest(now, in, localOnLink)
	if len(tbl.Routers()) != 1 {
		t.Fatal("expected router to be recorded")
	}

	later := now.Add(200 * time.Second)
	changed := tbl.Expire(later)
	if !changed {
		t.Error("expected expiry to report a change")
	}
	if len(tbl.PrefixEntries()) != 0 {
		t.Error("expected expired on-link entry to be removed")
	}
	if len(tbl.Routers()) != 0 {
		t.Error("expected router with no remaining entries to be pruned")
	}
}

func TestNextExpiryDeadlinePicksSoonest(t *testing.T) {
	tbl := New()
	now := time.Unix(1000, 0)
	localOnLink := mustPrefix("fd00:1::/64")

	tbl.Ingest(now, RAInput{
		From: netip.MustParseAddr("fe80::5"),
		Prefixes: []PrefixOption{
			{Prefix: mustPrefix("2001:db8:1::/64"), OnLink: true, Valid: 500, Preferred: 500},
		},
	}, localOnLink)
	tbl.Ingest(now, RAInput{
		From: netip.MustParseAddr("fe80::6"),
		Prefixes: []PrefixOption{
			{Prefix: mustPrefix("2001:db8:2::/64"), OnLink: true, Valid: 100, Preferred: 100},
		},
	}, localOnLink)

	deadline, ok := tbl.NextExpiryDeadline()
	if !ok {
		t.Fatal("expected a deadline")
	}
	want := now.Add(100 * time.Second)
	if !deadline.Equal(want) {
		t.Errorf("NextExpiryDeadline() = %v, want %v", deadline, want)
	}
}

func TestDueForProbeAfterSilence(t *testing.T) {
	tbl := New()
	now := time.Unix(1000, 0)
	localOnLink := mustPrefix("fd00:1::/64")
	from := netip.MustParseAddr("fe80::7")

	tbl.Ingest(now, RAInput{
		From: from,
		Routes: []RouteOption{
			{Prefix: mustPrefix("::/0"), Lifetime: lifetime.Infinite, Preference: netdata.PreferenceMedium},
		},
	}, localOnLink)

	if due := tbl.DueForProbe(now.Add(10 * time.Second)); len(due) != 0 {
		t.Error("did not expect a probe this soon after hearing from the router")
	}

	silentUntil := now.Add(DefaultRouterActiveWindow + time.Second)
	due := tbl.DueForProbe(silentUntil)
	if len(due) != 1 || due[0] != from {
		t.Fatalf("expected %s due for probe, got %v", from, due)
	}
}

func TestUnreachableAfterExhaustingProbeBudget(t *testing.T) {
	tbl := New()
	now := time.Unix(1000, 0)
	localOnLink := mustPrefix("fd00:1::/64")
	from := netip.MustParseAddr("fe80::8")

	tbl.Ingest(now, RAInput{
		From: from,
		Routes: []RouteOption{
			{Prefix: mustPrefix("::/0"), Lifetime: lifetime.Infinite, Preference: netdata.PreferenceMedium},
		},
	}, localOnLink)

	t1 := now.Add(DefaultRouterActiveWindow + time.Second)
	for i := 0; i < DefaultProbeAttempts; i++ {
		due := tbl.DueForProbe(t1)
		if len(due) != 1 {
			t.Fatalf("attempt %d: expected router still due for probe, got %v", i, due)
		}
		tbl.RecordProbeSent(from, t1)
		t1 = t1.Add(DefaultProbeInterval)
	}

	gone := tbl.Unreachable(t1)
	if len(gone) != 1 || gone[0] != from {
		t.Fatalf("expected router declared unreachable, got %v", gone)
	}
	if len(tbl.RouteEntries()) != 0 {
		t.Error("expected all entries of the unreachable router to be purged")
	}
	if len(tbl.Routers()) != 0 {
		t.Error("expected the unreachable router itself to be purged")
	}
}

func TestIngestResolvesOutstandingProbe(t *testing.T) {
	tbl := New()
	now := time.Unix(1000, 0)
	localOnLink := mustPrefix("fd00:1::/64")
	from := netip.MustParseAddr("fe80::9")

	in := RAInput{
		From: from,
		Routes: []RouteOption{
			{Prefix: mustPrefix("::/0"), Lifetime: lifetime.Infinite, Preference: netdata.PreferenceMedium},
		},
	}
	tbl.Ingest(now, in, localOnLink)

	probeTime := now.Add(DefaultRouterActiveWindow + time.Second)
	tbl.RecordProbeSent(from, probeTime)

	// A fresh RA arrives before the probe budget is exhausted.
	tbl.Ingest(probeTime.Add(time.Second), in, localOnLink)

	if due := tbl.DueForProbe(probeTime.Add(2 * time.Second)); len(due) != 0 {
		t.Errorf("expected probe state cleared after hearing from router again, got %v", due)
	}
}

func TestResolveProbeClearsOutstandingProbeWithoutFullRA(t *testing.T) {
	tbl := New()
	now := time.Unix(1000, 0)
	localOnLink := mustPrefix("fd00:1::/64")
	from := netip.MustParseAddr("fe80::c")

	tbl.Ingest(now, RAInput{
		From: from,
		Routes: []RouteOption{
			{Prefix: mustPrefix("::/0"), Lifetime: lifetime.Infinite, Preference: netdata.PreferenceMedium},
		},
	}, localOnLink)

	probeTime := now.Add(DefaultRouterActiveWindow + time.Second)
	tbl.RecordProbeSent(from, probeTime)
	tbl.ResolveProbe(from)

	if due := tbl.DueForProbe(probeTime.Add(time.Second)); len(due) != 0 {
		t.Errorf("expected ResolveProbe to clear probing state, got due=%v", due)
	}
}

func TestNextStaleDeadlineUsesLongestLivedEntryForSharedPrefix(t *testing.T) {
	// spec.md §8 S5: two routers advertise the same prefix with
	// different lifetimes; staleness must track the longer one.
	tbl := New()
	now := time.Unix(1000, 0)
	localOnLink := mustPrefix("fd00:1::/64")
	shared := mustPrefix("2001:db8:9::/64")

	tbl.Ingest(now, RAInput{
		From: netip.MustParseAddr("fe80::a"),
		Routes: []RouteOption{
			{Prefix: shared, Lifetime: 200, Preference: netdata.PreferenceMedium},
		},
	}, localOnLink)
	tbl.Ingest(now, RAInput{
		From: netip.MustParseAddr("fe80::b"),
		Routes: []RouteOption{
			{Prefix: shared, Lifetime: 800, Preference: netdata.PreferenceMedium},
		},
	}, localOnLink)

	deadline, ok := tbl.NextStaleDeadline(now)
	if !ok {
		t.Fatal("expected a stale deadline")
	}
	wantNotBefore := now.Add(600 * time.Second)
	if deadline.Before(wantNotBefore) {
		t.Errorf("NextStaleDeadline() = %v, must not be before %v", deadline, wantNotBefore)
	}
	want := now.Add(800 * time.Second)
	if !deadline.Equal(want) {
		t.Errorf("NextStaleDeadline() = %v, want %v", deadline, want)
	}
}

func TestCapacityEvictsOldestOnLinkEntry(t *testing.T) {
	tbl := New()
	tbl.capacity = 2
	localOnLink := mustPrefix("fd00:1::/64")
	base := time.Unix(1000, 0)

	for i, addrSuffix := range []string{"::10", "::11", "::12"} {
		tbl.Ingest(base.Add(time.Duration(i)*time.Second), RAInput{
			From: netip.MustParseAddr("fe80" + addrSuffix),
			Prefixes: []PrefixOption{
				{Prefix: mustPrefix("2001:db8:" + string(rune('a'+i)) + "::/64"), OnLink: true, Valid: 1800, Preferred: 1800},
			},
		}, localOnLink)
	}

	if len(tbl.PrefixEntries()) != 2 {
		t.Fatalf("expected capacity to bound entries at 2, got %d", len(tbl.PrefixEntries()))
	}
	if tbl.OverflowCount() != 1 {
		t.Errorf("expected 1 overflow eviction, got %d", tbl.OverflowCount())
	}
}
