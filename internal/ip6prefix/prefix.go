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

// Package ip6prefix implements IPv6 prefix arithmetic: bit-exact
// equality/containment over an arbitrary prefix length, and the
// deterministic derivation of BRM's local on-link, OMR and NAT64
// prefixes from the mesh identity.
package ip6prefix

import (
	"crypto/sha256"
	"fmt"
	"net/netip"
)

// Prefix is an IPv6 prefix: the first Length bits of Addr are significant.
type Prefix struct {
	Addr   netip.Addr
	Length uint8
}

// Infra, OMR and on-link prefixes BRM manages are always /64 except
// where spec.md notes otherwise (RIOs may carry other lengths).
const OnLinkLength = 64

// FromNetip builds a Prefix from a netip.Prefix, masking host bits.
func FromNetip(p netip.Prefix) Prefix {
	m := p.Masked()
	return Prefix{Addr: m.Addr(), Length: uint8(m.Bits())}
}

// Netip converts back to a netip.Prefix.
func (p Prefix) Netip() netip.Prefix {
	pfx, _ := p.Addr.Prefix(int(p.Length))
	return pfx
}

// IsValid reports whether the prefix is a well-formed IPv6 prefix.
func (p Prefix) IsValid() bool {
	return p.Addr.Is6() && p.Length <= 128
}

// String implements fmt.Stringer.
func (p Prefix) String() string {
	return fmt.Sprintf("%s/%d", p.Addr, p.Length)
}

// Equal reports bit-exact equality over the first Length bits of both
// prefixes, per spec.md §3: "Equality is bit-exact over the first length
// bits."
func (p Prefix) Equal(o Prefix) bool {
	if p.Length != o.Length {
		return false
	}
	return maskedEqual(p.Addr, o.Addr, p.Length)
}

// Contains reports whether p (the outer, shorter-or-equal prefix)
// contains o (bit-exact over p's length).
func (p Prefix) Contains(o Prefix) bool {
	if o.Length < p.Length {
		return false
	}
	return maskedEqual(p.Addr, o.Addr, p.Length)
}

func maskedEqual(a, b netip.Addr, length uint8) bool {
	ap, err := a.Prefix(int(length))
	if err != nil {
		return false
	}
	bp, err := b.Prefix(int(length))
	if err != nil {
		return false
	}
	return ap.Addr() == bp.Addr()
}

// IsULA reports whether the prefix is a Unique Local Address, i.e. its
// first byte is 0xFC or 0xFD (spec.md §3).
func IsULA(p Prefix) bool {
	if !p.Addr.Is6() {
		return false
	}
	b := p.Addr.As16()
	return b[0] == 0xFC || b[0] == 0xFD
}

// IsULAAddr reports the same condition for a bare address.
func IsULAAddr(a netip.Addr) bool {
	if !a.Is6() {
		return false
	}
	b := a.As16()
	return (b[0] & 0xFE) == 0xFC
}

// IsGlobalUnicast reports whether addr is a Global Unicast Address
// (2000::/3), mirroring the teacher's ra_receiver.go classification. The
// routing policy does not consult it: favored prefixes are chosen by
// preference and numeric order (Less).
func IsGlobalUnicast(a netip.Addr) bool {
	if !a.Is6() {
		return false
	}
	b := a.As16()
	return (b[0] & 0xE0) == 0x20
}

// Less provides the lexicographic tie-break used by the routing policy
// ("numerically smallest /64", spec.md §4.2) and the favored-OMR
// tie-break.
func Less(a, b Prefix) bool {
	ab, bb := a.Addr.As16(), b.Addr.As16()
	for i := range ab {
		if ab[i] != bb[i] {
			return ab[i] < bb[i]
		}
	}
	return a.Length < b.Length
}

// DeriveLocalOnLink computes BRM's deterministic local on-link /64 from
// the Thread network's Extended PAN ID (8 bytes), per spec.md §3
// ("localOnLink — deterministic /64 derived from the active Extended PAN
// ID"). The derivation is a stable ULA generator in the style of RFC
// 4193 §3.2.2: hash the identity, use 40 bits of digest as the ULA
// global ID, zero the subnet ID (single /64 mesh-wide prefix).
func DeriveLocalOnLink(extPanID [8]byte) Prefix {
	return deriveULA("brm-on-link-v1", extPanID[:])
}

// DeriveLocalOmr derives BRM's local OMR /64. In Thread, the OMR prefix
// is the Mesh-Local Prefix itself, so this simply masks the supplied
// mesh-local prefix to /64; kept as a named function (rather than an
// inline Masked() call at every call site) because spec.md treats
// "localOmr" as a first-class derived local-state field.
func DeriveLocalOmr(meshLocalPrefix Prefix) Prefix {
	pfx := meshLocalPrefix.Netip().Masked()
	p, _ := pfx.Addr().Prefix(64)
	return Prefix{Addr: p.Addr(), Length: 64}
}

// DeriveLocalNat64 computes BRM's deterministic local NAT64 /96 from the
// mesh identity (spec.md §4.6: "Local NAT64 /96 is derived
// deterministically from the mesh identity").
func DeriveLocalNat64(extPanID [8]byte) Prefix {
	return deriveULA("brm-nat64-v1", extPanID[:])
}

func deriveULA(domain string, identity []byte) Prefix {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write(identity)
	sum := h.Sum(nil)

	var b [16]byte
	b[0] = 0xFD // RFC 4193 ULA, L bit set
	copy(b[1:6], sum[:5])
	// bytes 6-7 (subnet ID) left zero: BRM advertises a single mesh-wide
	// on-link/OMR prefix, not a subnetted ULA block.
	length := uint8(64)
	if domain == "brm-nat64-v1" {
		length = 96
	}
	addr := netip.AddrFrom16(b)
	masked, _ := addr.Prefix(int(length))
	return Prefix{Addr: masked.Addr(), Length: length}
}
