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

package nat64

import (
	"net/netip"
	"testing"

	"github.com/jr42/brm/internal/ip6prefix"
)

func mustPrefix(s string) ip6prefix.Prefix {
	return ip6prefix.FromNetip(netip.MustParsePrefix(s))
}

func TestEvaluateDisabledPublishesNothing(t *testing.T) {
	a := NewAdaptor(mustPrefix("fd00:1:2:3::/96"))
	d := a.Evaluate(true)
	if d.Publish {
		t.Fatalf("expected no publication while disabled, got %+v", d)
	}
}

func TestEvaluatePublishesLocalWhenNoInfraDiscovered(t *testing.T) {
	a := NewAdaptor(mustPrefix("fd00:1:2:3::/96"))
	a.SetEnabled(true)

	d := a.Evaluate(true)
	if !d.Publish || d.FromInfra {
		t.Fatalf("expected local publication with no infra discovery, got %+v", d)
	}
	if !d.Prefix.Equal(mustPrefix("fd00:1:2:3::/96")) {
		t.Errorf("unexpected prefix: %s", d.Prefix)
	}
}

func TestEvaluatePublishesLocalWhenNoInfrastructureOmr(t *testing.T) {
	a := NewAdaptor(mustPrefix("fd00:1:2:3::/96"))
	a.SetEnabled(true)
	a.SetDiscovered(mustPrefix("2001:db8:64::/96"), true)

	// Infra NAT64 is known, but no infrastructure-derived OMR route
	// exists to reach it: BRM must still publish its own local /96.
	d := a.Evaluate(false)
	if !d.Publish || d.FromInfra {
		t.Fatalf("expected local fallback when no infra OMR is present, got %+v", d)
	}
	if !d.Prefix.Equal(mustPrefix("fd00:1:2:3::/96")) {
		t.Errorf("unexpected prefix: %s", d.Prefix)
	}
}

func TestEvaluatePublishesInfraWhenBothKnownAndReachable(t *testing.T) {
	a := NewAdaptor(mustPrefix("fd00:1:2:3::/96"))
	a.SetEnabled(true)
	a.SetDiscovered(mustPrefix("2001:db8:64::/96"), true)

	d := a.Evaluate(true)
	if !d.Publish || !d.FromInfra {
		t.Fatalf("expected infra publication, got %+v", d)
	}
	if !d.Prefix.Equal(mustPrefix("2001:db8:64::/96")) {
		t.Errorf("unexpected prefix: %s", d.Prefix)
	}
}

func TestSetDiscoveredClearReverysToLocal(t *testing.T) {
	a := NewAdaptor(mustPrefix("fd00:1:2:3::/96"))
	a.SetEnabled(true)
	a.SetDiscovered(mustPrefix("2001:db8:64::/96"), true)
	a.SetDiscovered(ip6prefix.Prefix{}, false)

	d := a.Evaluate(true)
	if !d.Publish || d.FromInfra {
		t.Fatalf("expected local publication after infra discovery cleared, got %+v", d)
	}
}

func TestSetEnabledFalseClearsDiscovered(t *testing.T) {
	a := NewAdaptor(mustPrefix("fd00:1:2:3::/96"))
	a.SetEnabled(true)
	a.SetDiscovered(mustPrefix("2001:db8:64::/96"), true)
	a.SetEnabled(false)
	a.SetEnabled(true)

	d := a.Evaluate(true)
	if !d.Publish || d.FromInfra {
		t.Fatalf("expected discovered prefix to be forgotten across disable, got %+v", d)
	}
}
