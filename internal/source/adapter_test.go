package source

import (
	"encoding/json"
	"testing"

	"github.com/YouuSer/certified/internal/engine"
)

const testSyncTS = "2024-01-01T00:00:00.000Z"

func TestAdaptAchahada(t *testing.T) {
	t.Parallel()

	raw := AdaptAchahada(AchahadaRecord{
		ID:      "123",
		Store:   " Boucherie Amine ",
		Lat:     "48.8566",
		Lng:     "2.3522",
		Address: "10 Rue du Temple",
		Zip:     "75004",
		City:    "Paris",
	}, "Boucherie", 2, testSyncTS)

	if raw.ID != "ach-123" {
		t.Fatalf("id = %q", raw.ID)
	}
	if raw.Name != "Boucherie Amine" {
		t.Fatalf("name = %v", raw.Name)
	}
	if raw.Address != "10 Rue du Temple, 75004 Paris" {
		t.Fatalf("address = %v", raw.Address)
	}
	if raw.Source != SourceAchahada {
		t.Fatalf("source = %v", raw.Source)
	}
	if raw.UpdatedAt != testSyncTS {
		t.Fatalf("updatedAt = %q", raw.UpdatedAt)
	}

	e := engine.NormalizeShape(raw)
	if e.Lat == nil || *e.Lat != 48.8566 {
		t.Fatalf("normalized lat = %v", e.Lat)
	}
	if len(e.Categories) != 1 || e.Categories[0] != "Boucherie" {
		t.Fatalf("categories = %v", e.Categories)
	}
	if len(e.Filter) != 1 || e.Filter[0] != 2 {
		t.Fatalf("filter = %v", e.Filter)
	}
}

func TestAdaptAVS(t *testing.T) {
	t.Parallel()

	raw := AdaptAVS(AVSRecord{
		ID:        "42",
		Name:      "Le Gourmet",
		Latitude:  "45.7640",
		Longitude: "4.8357",
		Address:   "5 Place Bellecour",
		ZipCode:   "69002",
		City:      "Lyon",
	}, "Restaurant", 1, testSyncTS)

	if raw.ID != "avs-42" {
		t.Fatalf("id = %q", raw.ID)
	}
	if raw.Address != "5 Place Bellecour, 69002 Lyon" {
		t.Fatalf("address = %v", raw.Address)
	}
	if raw.Source != SourceAVS {
		t.Fatalf("source = %v", raw.Source)
	}
}

func TestAdapterNeverFailsOnBadCoordinates(t *testing.T) {
	t.Parallel()

	raw := AdaptAchahada(AchahadaRecord{ID: "9", Store: "Sans Position", Lat: "n/a", Lng: ""}, "Restaurant", 1, testSyncTS)
	e := engine.NormalizeShape(raw)

	if e.Lat != nil || e.Lng != nil {
		t.Fatalf("bad coordinates must normalize to nil: lat=%v lng=%v", e.Lat, e.Lng)
	}
	if e.ID != "ach-9" {
		t.Fatalf("record must still produce an entity: %q", e.ID)
	}
}

func TestLooseStringAcceptsNumbers(t *testing.T) {
	t.Parallel()

	var rec AchahadaRecord
	payload := `{"id": 77, "store": "Num Id", "lat": 48.1, "lng": "2.2", "zip": 75011, "city": "Paris"}`
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if rec.ID != "77" {
		t.Fatalf("id = %q", rec.ID)
	}
	if rec.Lat != "48.1" {
		t.Fatalf("lat = %q", rec.Lat)
	}
	if rec.Zip != "75011" {
		t.Fatalf("zip = %q", rec.Zip)
	}
}
