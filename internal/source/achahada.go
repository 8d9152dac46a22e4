package source

import (
	"fmt"
	"strings"

	"github.com/YouuSer/certified/internal/engine"
)

// SourceAchahada is the provenance label stamped on Achahada entities.
const SourceAchahada = "Achahada"

// AdaptAchahada maps one raw Achahada record into a pre-canonical entity.
// It never fails: unparseable fields travel through as-is and are degraded
// to nil by the shape normalizer.
func AdaptAchahada(rec AchahadaRecord, category string, filterCode int, syncTimestamp string) engine.RawEntity {
	return engine.RawEntity{
		ID:         "ach-" + strings.TrimSpace(string(rec.ID)),
		Name:       strings.TrimSpace(rec.Store),
		Address:    joinAddress(rec.Address, string(rec.Zip), rec.City),
		City:       rec.City,
		Source:     SourceAchahada,
		Lat:        string(rec.Lat),
		Lng:        string(rec.Lng),
		Categories: []any{category},
		Filter:     []any{filterCode},
		UpdatedAt:  syncTimestamp,
	}
}

// joinAddress renders "{address}, {zip} {city}" and trims the result, the
// format both upstream UIs display.
func joinAddress(address, zip, city string) string {
	return strings.TrimSpace(fmt.Sprintf("%s, %s %s", strings.TrimSpace(address), strings.TrimSpace(zip), strings.TrimSpace(city)))
}
