package store

// Provider is a service provider profile. The core treats profiles as
// read-mostly; only the availability flag is toggled during an active
// assignment window.
type Provider struct {
	ID   int32
	Name string
	// Phone is the direct contact number surfaced on the emergency
	// contact-list fallback.
	Phone string
	// Categories are the service categories the provider offers.
	Categories []string
	// Zone is the provider's home zone; CoverageZones are the additional
	// zones the provider serves.
	Zone          string
	CoverageZones []string
	// Rating is 0..5.
	Rating float64
	// AvgResponseMins is the rolling average response time in minutes.
	AvgResponseMins float64
	Available       bool
	CreatedTs       int64
	UpdatedTs       int64
}

// ServesCategory reports whether the provider offers the given category.
func (p *Provider) ServesCategory(category string) bool {
	for _, c := range p.Categories {
		if c == category {
			return true
		}
	}
	return false
}

// CoversZone reports whether the zone is the provider's home zone or in
// its coverage list.
func (p *Provider) CoversZone(zone string) bool {
	if p.Zone == zone {
		return true
	}
	for _, z := range p.CoverageZones {
		if z == zone {
			return true
		}
	}
	return false
}

type FindProvider struct {
	ID *int32
	// Category filters providers offering the category.
	Category *string
	// Available filters on the availability flag.
	Available *bool
	Limit     *int
}

type UpdateProvider struct {
	ID              int32
	Available       *bool
	Rating          *float64
	AvgResponseMins *float64
}
