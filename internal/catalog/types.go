package catalog

import "encoding/json"

// timestampLayout is ISO-8601 UTC with millisecond precision, as accepted by
// the FDSN starttime/endtime parameters.
const timestampLayout = "2006-01-02T15:04:05.000Z"

// CountResponse is the count endpoint body.
type CountResponse struct {
	Count      int `json:"count"`
	MaxAllowed int `json:"maxAllowed"`
}

// FeatureCollection is the GeoJSON query endpoint body.
// Only metadata fields we log are parsed; features stay opaque.
type FeatureCollection struct {
	Type     string            `json:"type"`
	Metadata Metadata          `json:"metadata"`
	Features []json.RawMessage `json:"features"`
}

// Metadata is the FeatureCollection metadata block.
type Metadata struct {
	Generated int64  `json:"generated"`
	URL       string `json:"url"`
	Title     string `json:"title"`
	Status    int    `json:"status"`
	Count     int    `json:"count"`
}
