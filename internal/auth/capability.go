package auth

import (
	"fmt"
	"sort"
)

// Capability is one admin console area. The set is closed: anything not
// listed here is rejected when permissions are assigned.
type Capability uint16

const (
	CapDashboard Capability = 1 << iota
	CapUsers
	CapStores
	CapStoreRequests
	CapProducts
	CapCategories
	CapOrders
	CapReports
	CapReviews
)

var capabilityNames = map[Capability]string{
	CapDashboard:     "dashboard",
	CapUsers:         "users",
	CapStores:        "stores",
	CapStoreRequests: "store_requests",
	CapProducts:      "products",
	CapCategories:    "categories",
	CapOrders:        "orders",
	CapReports:       "reports",
	CapReviews:       "reviews",
}

func (c Capability) String() string {
	if n, ok := capabilityNames[c]; ok {
		return n
	}
	return fmt.Sprintf("capability(%d)", uint16(c))
}

// CapabilitySet is a bitmask of capabilities.
type CapabilitySet uint16

// AllCapabilities is held by admins and super admins.
const AllCapabilities = CapabilitySet(CapDashboard | CapUsers | CapStores | CapStoreRequests |
	CapProducts | CapCategories | CapOrders | CapReports | CapReviews)

func NewCapabilitySet(caps ...Capability) CapabilitySet {
	var s CapabilitySet
	for _, c := range caps {
		s |= CapabilitySet(c)
	}
	return s
}

func (s CapabilitySet) Has(c Capability) bool { return s&CapabilitySet(c) != 0 }

func (s CapabilitySet) Empty() bool { return s == 0 }

// Names returns the capability names in a stable order for persistence.
func (s CapabilitySet) Names() []string {
	out := make([]string, 0, len(capabilityNames))
	for c, n := range capabilityNames {
		if s.Has(c) {
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return out
}

// ParseCapabilities converts stored names into a set. Unknown names are an
// error so typos never silently grant or drop access.
func ParseCapabilities(names []string) (CapabilitySet, error) {
	var s CapabilitySet
	for _, n := range names {
		c, ok := lookupCapability(n)
		if !ok {
			return 0, fmt.Errorf("unknown capability %q", n)
		}
		s |= CapabilitySet(c)
	}
	return s, nil
}

func lookupCapability(name string) (Capability, bool) {
	for c, n := range capabilityNames {
		if n == name {
			return c, true
		}
	}
	return 0, false
}
