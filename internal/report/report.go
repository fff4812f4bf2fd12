package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"
	"gopkg.in/yaml.v3"

	"github.com/merchtools/collectioner/internal/models"
	"github.com/merchtools/collectioner/internal/sync"
)

// Record is one flattened sync outcome row.
type Record struct {
	Collection string `json:"collection" yaml:"collection" parquet:"collection"`
	ProductID  int64  `json:"product_id" yaml:"product_id" parquet:"product_id"`
	Title      string `json:"title" yaml:"title" parquet:"title"`
	Status     string `json:"status" yaml:"status" parquet:"status"`
	Error      string `json:"error,omitempty" yaml:"error,omitempty" parquet:"error,optional"`
}

// Report captures everything worth keeping from one sync run.
type Report struct {
	Shop          string   `json:"shop" yaml:"shop"`
	Tag           string   `json:"tag" yaml:"tag"`
	Timestamp     string   `json:"timestamp" yaml:"timestamp"`
	Products      int      `json:"products" yaml:"products"`
	Created       int      `json:"collections_created" yaml:"collections_created"`
	Reused        int      `json:"collections_reused" yaml:"collections_reused"`
	Added         int      `json:"members_added" yaml:"members_added"`
	AlreadyMember int      `json:"members_already" yaml:"members_already"`
	Failed        int      `json:"members_failed" yaml:"members_failed"`
	Records       []Record `json:"records" yaml:"records"`
}

// FromRun flattens a session and its sync summary into a report.
func FromRun(session *models.RunSession, summary *sync.Summary) Report {
	report := Report{
		Shop:          session.ShopURL,
		Tag:           session.Tag,
		Timestamp:     time.Now().Format("2006-01-02_15-04-05"),
		Products:      len(session.Products),
		Created:       summary.Created,
		Reused:        summary.Reused,
		Added:         summary.Added,
		AlreadyMember: summary.AlreadyMember,
		Failed:        summary.Failed,
	}
	for _, outcome := range summary.Outcomes {
		report.Records = append(report.Records, Record{
			Collection: outcome.Collection,
			ProductID:  outcome.ProductID,
			Title:      outcome.Title,
			Status:     string(outcome.Status),
			Error:      outcome.Error,
		})
	}
	return report
}

// Save writes the report in the format implied by the file extension:
// .parquet, .jsonl, or .yaml/.yml.
func (r Report) Save(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create report directory: %w", err)
		}
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".parquet":
		return r.saveParquet(path)
	case ".jsonl":
		return r.saveJSONL(path)
	case ".yaml", ".yml":
		return r.saveYAML(path)
	default:
		return fmt.Errorf("unsupported report format: %s (supported: .parquet, .jsonl, .yaml)", ext)
	}
}

func (r Report) saveParquet(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create parquet file: %w", err)
	}
	defer file.Close()

	writer := parquet.NewGenericWriter[Record](file)
	if _, err := writer.Write(r.Records); err != nil {
		return fmt.Errorf("failed to write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize parquet file: %w", err)
	}
	return nil
}

func (r Report) saveJSONL(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	for _, record := range r.Records {
		if err := encoder.Encode(record); err != nil {
			return fmt.Errorf("failed to write report line: %w", err)
		}
	}
	return nil
}

func (r Report) saveYAML(path string) error {
	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write report file: %w", err)
	}
	return nil
}
