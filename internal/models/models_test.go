package models

import "testing"

func TestRenderCollections(t *testing.T) {
	session := &RunSession{
		Products: []Product{
			{ID: 11, Title: "Wall Rack"},
			{ID: 22, Title: "Floor Stand"},
			{ID: 33, Title: "Hook Set"},
		},
		Collections: map[string][]int{
			"Bike Storage": {1, 3},
			"Other":        {2},
		},
	}

	rendered := session.RenderCollections()

	storage := rendered["Bike Storage"]
	if len(storage) != 2 {
		t.Fatalf("Bike Storage has %d entries, want 2", len(storage))
	}
	if storage[0].Title != "Wall Rack" || storage[1].Title != "Hook Set" {
		t.Errorf("unexpected titles: %+v", storage)
	}
	if storage[0].Index != 1 || storage[1].Index != 3 {
		t.Errorf("unexpected indices: %+v", storage)
	}
	if rendered["Other"][0].Title != "Floor Stand" {
		t.Errorf("unexpected Other entry: %+v", rendered["Other"])
	}
}

func TestRenderCollectionsSkipsOutOfRange(t *testing.T) {
	session := &RunSession{
		Products:    []Product{{ID: 1, Title: "Only"}},
		Collections: map[string][]int{"Gear": {0, 1, 2}},
	}

	entries := session.RenderCollections()["Gear"]
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Index != 1 {
		t.Errorf("Index = %d, want 1", entries[0].Index)
	}
}
