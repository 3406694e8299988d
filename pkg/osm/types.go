package osm

// OverpassResponse is the JSON document returned by the Overpass API.
type OverpassResponse struct {
	Version   float64           `json:"version"`
	Generator string            `json:"generator"`
	Remark    string            `json:"remark,omitempty"`
	Elements  []OverpassElement `json:"elements"`
}

// LatLon is one coordinate of an Overpass geometry.
type LatLon struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// OverpassBounds is the bounding box attached to ways and relations by
// "out geom".
type OverpassBounds struct {
	MinLat float64 `json:"minlat"`
	MinLon float64 `json:"minlon"`
	MaxLat float64 `json:"maxlat"`
	MaxLon float64 `json:"maxlon"`
}

// OverpassMember is a relation member. With "out geom" way members carry
// their geometry inline.
type OverpassMember struct {
	Type     string   `json:"type"`
	Ref      int64    `json:"ref"`
	Role     string   `json:"role"`
	Lat      float64  `json:"lat,omitempty"`
	Lon      float64  `json:"lon,omitempty"`
	Geometry []LatLon `json:"geometry,omitempty"`
}

// OverpassElement represents an element returned from the Overpass API
type OverpassElement struct {
	ID       int64             `json:"id"`
	Type     string            `json:"type"`
	Lat      float64           `json:"lat,omitempty"`
	Lon      float64           `json:"lon,omitempty"`
	Center   *LatLon           `json:"center,omitempty"`
	Bounds   *OverpassBounds   `json:"bounds,omitempty"`
	Tags     map[string]string `json:"tags,omitempty"`
	Nodes    []int64           `json:"nodes,omitempty"`
	Geometry []LatLon          `json:"geometry,omitempty"`
	Members  []OverpassMember  `json:"members,omitempty"`
}

// NominatimPlace is one search result from Nominatim. The bounding box is
// [south, north, west, east] encoded as strings.
type NominatimPlace struct {
	PlaceID     int64    `json:"place_id"`
	OSMType     string   `json:"osm_type"`
	OSMID       int64    `json:"osm_id"`
	Lat         string   `json:"lat"`
	Lon         string   `json:"lon"`
	DisplayName string   `json:"display_name"`
	Class       string   `json:"class"`
	Type        string   `json:"type"`
	Importance  float64  `json:"importance"`
	BoundingBox []string `json:"boundingbox"`
}
