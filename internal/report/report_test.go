package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/parquet-go/parquet-go"
	"gopkg.in/yaml.v3"

	"github.com/merchtools/collectioner/internal/models"
	"github.com/merchtools/collectioner/internal/sync"
)

func sampleReport() Report {
	session := &models.RunSession{
		ShopURL: "test-shop.myshopify.com",
		Tag:     "pedals",
		Products: []models.Product{
			{ID: 1, Title: "Clipless Pedals"},
			{ID: 2, Title: "Flat Pedals"},
		},
	}
	summary := &sync.Summary{
		Created: 1,
		Added:   1,
		Failed:  1,
		Outcomes: []models.SyncOutcome{
			{Collection: "Bike Parts", ProductID: 1, Title: "Clipless Pedals", Status: models.MemberAdded},
			{Collection: "Bike Parts", ProductID: 2, Title: "Flat Pedals", Status: models.MemberFailed, Error: "server error"},
		},
	}
	return FromRun(session, summary)
}

func TestFromRun(t *testing.T) {
	report := sampleReport()
	if report.Shop != "test-shop.myshopify.com" {
		t.Errorf("Shop = %q", report.Shop)
	}
	if report.Products != 2 {
		t.Errorf("Products = %d, want 2", report.Products)
	}
	if len(report.Records) != 2 {
		t.Fatalf("Records = %d, want 2", len(report.Records))
	}
	if report.Records[1].Error != "server error" {
		t.Errorf("Records[1].Error = %q", report.Records[1].Error)
	}
}

func TestSaveJSONL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.jsonl")
	if err := sampleReport().Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	var record Record
	if err := json.Unmarshal([]byte(lines[0]), &record); err != nil {
		t.Fatalf("line 0 is not valid JSON: %v", err)
	}
	if record.Collection != "Bike Parts" || record.ProductID != 1 {
		t.Errorf("unexpected record: %+v", record)
	}
}

func TestSaveYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	if err := sampleReport().Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var loaded Report
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		t.Fatalf("not valid YAML: %v", err)
	}
	if loaded.Tag != "pedals" || len(loaded.Records) != 2 {
		t.Errorf("unexpected report: %+v", loaded)
	}
}

func TestSaveParquet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.parquet")
	if err := sampleReport().Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		t.Fatal(err)
	}

	reader := parquet.NewGenericReader[Record](file)
	defer reader.Close()
	rows := make([]Record, 2)
	n, _ := reader.Read(rows)
	if n != 2 {
		t.Fatalf("expected 2 rows, got %d (file size %d)", n, info.Size())
	}
	if rows[0].Collection != "Bike Parts" {
		t.Errorf("rows[0].Collection = %q", rows[0].Collection)
	}
	if rows[1].Status != string(models.MemberFailed) {
		t.Errorf("rows[1].Status = %q", rows[1].Status)
	}
}

func TestSaveRejectsUnknownExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.csv")
	if err := sampleReport().Save(path); err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestSaveCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports", "nested", "run.yaml")
	if err := sampleReport().Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("report file missing: %v", err)
	}
}
