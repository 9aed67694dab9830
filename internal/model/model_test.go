package model

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestIDAcceptsNumbersAndStrings(t *testing.T) {
	var got struct {
		A ID `json:"a"`
		B ID `json:"b"`
		C ID `json:"c"`
	}
	if err := json.Unmarshal([]byte(`{"a": 42, "b": "7f3c", "c": null}`), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.A != "42" || got.B != "7f3c" || !got.C.IsZero() {
		t.Fatalf("unexpected ids: %+v", got)
	}
	if err := json.Unmarshal([]byte(`{"a": true}`), &got); err == nil {
		t.Fatal("expected error for boolean id")
	}
}

func TestMissingFields(t *testing.T) {
	in := RestaurantInput{Name: "Luigi's", Description: "  ", Address: "1 Main St"}
	want := []string{"cuisine", "description"}
	if diff := cmp.Diff(want, in.MissingFields()); diff != "" {
		t.Fatalf("MissingFields mismatch (-want +got):\n%s", diff)
	}

	full := RestaurantInput{Name: "a", Description: "b", Address: "c", Cuisine: "d"}
	if m := full.MissingFields(); len(m) != 0 {
		t.Fatalf("MissingFields = %v, want none", m)
	}
}

func TestRestaurantDecodeEmbeddedOwner(t *testing.T) {
	var r Restaurant
	body := `{"id":3,"name":"Sushi Bar","cuisine":"Japanese","heroImage":{"thumbnail":"https://cdn/t.jpg"},"owner":{"id":1,"name":"Demo"}}`
	if err := json.Unmarshal([]byte(body), &r); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if r.OwnerName() != "Demo" || r.HeroImage.Thumbnail() != "https://cdn/t.jpg" {
		t.Fatalf("unexpected restaurant: %+v", r)
	}
	if (Restaurant{}).OwnerName() != "N/A" {
		t.Fatal("expected N/A for missing owner")
	}
}
