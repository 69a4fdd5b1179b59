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

package dhcp6pd

import (
	"net"
	"net/netip"
	"testing"
	"time"

	"github.com/insomniacslk/dhcp/dhcpv6"
)

func replyWithPrefix(t *testing.T, cidr string, preferred, valid time.Duration) []byte {
	t.Helper()
	_, ipnet, err := net.ParseCIDR(cidr)
	if err != nil {
		t.Fatalf("ParseCIDR(%s): %v", cidr, err)
	}
	msg, err := dhcpv6.NewMessage()
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}
	msg.MessageType = dhcpv6.MessageTypeReply
	msg.AddOption(&dhcpv6.OptIAPD{
		IaId: [4]byte{1, 2, 3, 4},
		Options: dhcpv6.PDOptions{
			Options: dhcpv6.Options{
				&dhcpv6.OptIAPrefix{
					PreferredLifetime: preferred,
					ValidLifetime:     valid,
					Prefix:            ipnet,
				},
			},
		},
	})
	return msg.ToBytes()
}

func TestProcessReportAcceptsFirstPrefixImmediately(t *testing.T) {
	a := New()
	a.SetEnabled(true)
	now := time.Unix(1000, 0)

	raw := replyWithPrefix(t, "2001:db8:1::/56", 1800*time.Second, 3600*time.Second)
	changed, err := a.ProcessReport(raw, now)
	if err != nil {
		t.Fatalf("ProcessReport: %v", err)
	}
	if !changed {
		t.Error("expected the first learned prefix to report changed=true")
	}
	p, ok := a.PdPrefix()
	if !ok || p.Length != 64 {
		t.Fatalf("unexpected PdPrefix: %+v ok=%v", p, ok)
	}
	if p.Addr != netip.MustParseAddr("2001:db8:1::") {
		t.Fatalf("expected a /56 delegation zero-padded to /64, got %s", p.Addr)
	}
	if a.State() != StateRunning {
		t.Errorf("expected StateRunning, got %v", a.State())
	}
}

func TestProcessReportHoldsOffOnDifferentPrefix(t *testing.T) {
	a := New()
	a.SetEnabled(true)
	now := time.Unix(1000, 0)

	first := replyWithPrefix(t, "2001:db8:1::/56", 1800*time.Second, 3600*time.Second)
	a.ProcessReport(first, now)

	second := replyWithPrefix(t, "2001:db8:2::/56", 1800*time.Second, 3600*time.Second)
	changed, err := a.ProcessReport(second, now.Add(time.Second))
	if err != nil {
		t.Fatalf("ProcessReport: %v", err)
	}
	if changed {
		t.Error("expected a differing candidate to be held off before committing")
	}
	p, _ := a.PdPrefix()
	if p.Length != 64 || p.Addr != netip.MustParseAddr("2001:db8:1::") {
		t.Fatalf("expected still-original prefix during hold-off")
	}

	// Repeated sighting of the same candidate past HoldOff commits it.
	changed, err = a.ProcessReport(second, now.Add(HoldOff+time.Second))
	if err != nil {
		t.Fatalf("ProcessReport: %v", err)
	}
	if !changed {
		t.Error("expected the swap to commit once the hold-off elapses")
	}
}

func TestProcessReportSelectsLongestPreferredLifetime(t *testing.T) {
	t.Helper()
	_, ipnet1, _ := net.ParseCIDR("2001:db8:1::/56")
	_, ipnet2, _ := net.ParseCIDR("2001:db8:2::/56")

	msg, err := dhcpv6.NewMessage()
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}
	msg.MessageType = dhcpv6.MessageTypeReply
	msg.AddOption(&dhcpv6.OptIAPD{
		IaId: [4]byte{1, 2, 3, 4},
		Options: dhcpv6.PDOptions{
			Options: dhcpv6.Options{
				&dhcpv6.OptIAPrefix{PreferredLifetime: 900 * time.Second, ValidLifetime: 3600 * time.Second, Prefix: ipnet1},
				&dhcpv6.OptIAPrefix{PreferredLifetime: 1800 * time.Second, ValidLifetime: 3600 * time.Second, Prefix: ipnet2},
			},
		},
	})

	a := New()
	a.SetEnabled(true)
	_, err = a.ProcessReport(msg.ToBytes(), time.Unix(1000, 0))
	if err != nil {
		t.Fatalf("ProcessReport: %v", err)
	}
	p, _ := a.PdPrefix()
	wantAddr, _ := netip.AddrFromSlice(ipnet2.IP)
	if p.Addr != wantAddr.Unmap() {
		t.Fatalf("expected the longer-preferred prefix %s to be selected, got %s", wantAddr, p.Addr)
	}
}

func TestProcessReportWhileDisabled(t *testing.T) {
	a := New()
	raw := replyWithPrefix(t, "2001:db8:1::/56", 1800*time.Second, 3600*time.Second)
	if _, err := a.ProcessReport(raw, time.Unix(1000, 0)); err != ErrDisabled {
		t.Errorf("expected ErrDisabled, got %v", err)
	}
}

func TestExpireDropsPrefixAfterValidLifetime(t *testing.T) {
	a := New()
	a.SetEnabled(true)
	now := time.Unix(1000, 0)
	raw := replyWithPrefix(t, "2001:db8:1::/56", 100*time.Second, 200*time.Second)
	a.ProcessReport(raw, now)

	if a.Expire(now.Add(150 * time.Second)) {
		t.Error("did not expect expiry before the valid lifetime elapses")
	}
	if !a.Expire(now.Add(250 * time.Second)) {
		t.Error("expected expiry after the valid lifetime elapses")
	}
	if _, ok := a.PdPrefix(); ok {
		t.Error("expected PdPrefix to be cleared after expiry")
	}
	if a.State() != StateStopped {
		t.Errorf("expected StateStopped after expiry, got %v", a.State())
	}
}

func TestProcessReportZeroPadsShorterDelegationToOnLinkLength(t *testing.T) {
	a := New()
	a.SetEnabled(true)
	now := time.Unix(1000, 0)

	// A /48 delegation is exposed as a /64 whose bits past bit 48 are
	// zero.
	raw := replyWithPrefix(t, "2001:db8:ab::/48", 1800*time.Second, 3600*time.Second)
	if _, err := a.ProcessReport(raw, now); err != nil {
		t.Fatalf("ProcessReport: %v", err)
	}
	p, ok := a.PdPrefix()
	if !ok || p.Length != 64 {
		t.Fatalf("unexpected PdPrefix: %+v ok=%v", p, ok)
	}
	if p.Addr != netip.MustParseAddr("2001:db8:ab::") {
		t.Fatalf("expected the /48 delegation's trailing bits zeroed at /64, got %s", p.Addr)
	}
}

func TestProcessReportRejectsDelegationLongerThanOnLinkLength(t *testing.T) {
	a := New()
	a.SetEnabled(true)
	now := time.Unix(1000, 0)

	raw := replyWithPrefix(t, "2001:db8:1:2::/80", 1800*time.Second, 3600*time.Second)
	_, err := a.ProcessReport(raw, now)
	if err != ErrPrefixTooLong {
		t.Fatalf("expected ErrPrefixTooLong, got %v", err)
	}
	if _, ok := a.PdPrefix(); ok {
		t.Error("expected no PdPrefix to be committed for an over-long delegation")
	}
}
