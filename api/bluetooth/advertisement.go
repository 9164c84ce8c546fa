package bluetooth

import "slices"

// Advertisement describes a single advertisement observed during a scan.
// It is only valid for the duration of the callback that produced it.
type Advertisement struct {
	ID       PeripheralID `json:"address,omitempty"`
	Name     string       `json:"name,omitempty"`
	Services []ServiceID  `json:"services,omitempty"`
	RSSI     int16        `json:"rssi,omitempty"`
}

// MatchCriteria describes the condition a peripheral must satisfy to be selected.
type MatchCriteria struct {
	RequiredService ServiceID `json:"required_service"`
}

// AdvFilter reports whether an advertisement is of interest.
type AdvFilter func(a Advertisement) bool

// Matches returns true if the advertisement lists the required service.
func (c MatchCriteria) Matches(a Advertisement) bool {
	return Matches(a, c)
}

// Filter returns the criteria as an AdvFilter.
func (c MatchCriteria) Filter() AdvFilter {
	return c.Matches
}

// Matches returns true if criteria.RequiredService is a member of the
// advertised services. An empty service set never matches.
func Matches(a Advertisement, criteria MatchCriteria) bool {
	return slices.Contains(a.Services, criteria.RequiredService)
}
