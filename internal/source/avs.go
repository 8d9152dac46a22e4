package source

import (
	"strings"

	"github.com/YouuSer/certified/internal/engine"
)

// SourceAVS is the provenance label stamped on AVS entities.
const SourceAVS = "AVS"

// AdaptAVS maps one raw AVS record into a pre-canonical entity. Same failure
// policy as the Achahada adapter: never errors, bad fields degrade later.
func AdaptAVS(rec AVSRecord, category string, filterCode int, syncTimestamp string) engine.RawEntity {
	return engine.RawEntity{
		ID:         "avs-" + strings.TrimSpace(string(rec.ID)),
		Name:       strings.TrimSpace(rec.Name),
		Address:    joinAddress(rec.Address, string(rec.ZipCode), rec.City),
		City:       rec.City,
		Source:     SourceAVS,
		Lat:        string(rec.Latitude),
		Lng:        string(rec.Longitude),
		Categories: []any{category},
		Filter:     []any{filterCode},
		UpdatedAt:  syncTimestamp,
	}
}
