package osm

const (
	// API endpoints
	NominatimBaseURL = "https://nominatim.openstreetmap.org"
	OverpassBaseURL  = "https://overpass-api.de/api/interpreter"

	// Service names used for rate limiting and metrics
	ServiceNominatim = "nominatim"
	ServiceOverpass  = "overpass"
)

// Services returns the rate-limited services in a stable order.
func Services() []string {
	return []string{ServiceOverpass, ServiceNominatim}
}
