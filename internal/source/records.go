// Package source adapts the two upstream certification APIs, Achahada and
// AVS, into the engine's pre-canonical record shape, and fetches their
// filter-partitioned listings over HTTP.
package source

import (
	"bytes"
	"encoding/json"
)

// looseString decodes a JSON value that upstream sometimes serializes as a
// string and sometimes as a bare number. Non-string scalars are kept verbatim
// as their JSON text; null becomes the empty string.
type looseString string

func (l *looseString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*l = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*l = looseString(s)
		return nil
	}
	*l = looseString(data)
	return nil
}

// AchahadaRecord is the raw shape returned by the Achahada store locator.
// Coordinates arrive as strings; ids have been observed both ways.
type AchahadaRecord struct {
	ID      looseString `json:"id"`
	Store   string      `json:"store"`
	Lat     looseString `json:"lat"`
	Lng     looseString `json:"lng"`
	Address string      `json:"address"`
	Zip     looseString `json:"zip"`
	City    string      `json:"city"`
}

// AVSRecord is the raw shape returned by the AVS establishment directory.
type AVSRecord struct {
	ID        looseString `json:"id"`
	Name      string      `json:"name"`
	Latitude  looseString `json:"latitude"`
	Longitude looseString `json:"longitude"`
	Address   string      `json:"address"`
	ZipCode   looseString `json:"zipCode"`
	City      string      `json:"city"`
}

// Query is one filter-partitioned sub-request against an upstream source.
type Query struct {
	Category string
	Filter   int
}

// The category partitions each source exposes. Filter codes are the sources'
// own numeric identifiers and travel through to the UI filter controls.
var (
	achahadaQueries = []Query{
		{Category: "Restaurant", Filter: 1},
		{Category: "Boucherie", Filter: 2},
		{Category: "Fournisseur", Filter: 3},
	}
	avsQueries = []Query{
		{Category: "Restaurant", Filter: 1},
		{Category: "Boucherie", Filter: 2},
	}
)
