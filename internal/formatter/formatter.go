// package formatter exports migration reports to various formats (CSV, Markdown, plain text, JSON)
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/tiagowl/ImgMigrator/internal/models"
	"github.com/tiagowl/ImgMigrator/internal/shared"
)

// Report pairs a migration with the items it processed, in processing order.
type Report struct {
	Migration *models.Migration
	Items     []models.TransferItem
}

// NewReport builds a [Report] from a migration and its item logs.
func NewReport(m *models.Migration, logs []*models.MigrationLog) *Report {
	items := make([]models.TransferItem, 0, len(logs))
	for _, l := range logs {
		items = append(items, l.Item())
	}
	return &Report{Migration: m, Items: items}
}

// Failed returns the items that could not be transferred.
func (r *Report) Failed() []models.TransferItem {
	var failed []models.TransferItem
	for _, item := range r.Items {
		if item.Status == models.ItemFailed {
			failed = append(failed, item)
		}
	}
	return failed
}

// TransferredBytes sums the sizes of completed items.
func (r *Report) TransferredBytes() int64 {
	var total int64
	for _, item := range r.Items {
		if item.Status == models.ItemCompleted {
			total += item.SizeBytes
		}
	}
	return total
}

// summary is the JSON document written next to CSV exports.
type summary struct {
	Migration        models.MigrationView `json:"migration"`
	LoggedItems      int                  `json:"logged_items"`
	TransferredBytes int64                `json:"transferred_bytes"`
	GeneratedAt      time.Time            `json:"generated_at"`
}

// ExportToCSV converts a Report to CSV format with columns: ID, Filename, Size, MimeType, Status, RemoteID, Error
func ExportToCSV(report *Report) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "Filename", "Size", "MimeType", "Status", "RemoteID", "Error"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, item := range report.Items {
		record := []string{
			item.SourceID,
			item.DisplayName,
			strconv.FormatInt(item.SizeBytes, 10),
			item.MimeType,
			string(item.Status),
			item.RemoteID,
			item.ErrorMessage,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown converts a Report to a Markdown summary with a table of failed items
func ExportToMarkdown(report *Report) ([]byte, error) {
	var buf bytes.Buffer
	m := report.Migration
	p := m.Progress()

	buf.WriteString(fmt.Sprintf("# Migration %s\n\n", m.ID()))
	buf.WriteString(fmt.Sprintf("**Route**: %s → %s\n", m.SourceService(), m.SinkService()))
	buf.WriteString(fmt.Sprintf("**Status**: %s\n", m.Status()))

	total := strconv.Itoa(p.TotalItems)
	if p.Estimated {
		total = "~" + total
	}
	buf.WriteString(fmt.Sprintf("**Progress**: %d/%s transferred (%.1f%%), %d failed\n",
		p.TransferredItems, total, p.ProgressPercent, p.FailedItems))
	buf.WriteString(fmt.Sprintf("**Transferred**: %s\n", shared.FormatBytes(report.TransferredBytes())))

	if started := m.StartedAt(); started != nil {
		buf.WriteString(fmt.Sprintf("**Started**: %s\n", started.Format(time.RFC3339)))
	}
	if completed := m.CompletedAt(); completed != nil {
		buf.WriteString(fmt.Sprintf("**Finished**: %s\n", completed.Format(time.RFC3339)))
	}
	if msg := m.ErrorMessage(); msg != "" {
		buf.WriteString(fmt.Sprintf("\n> %s\n", msg))
	}

	failed := report.Failed()
	if len(failed) == 0 {
		return buf.Bytes(), nil
	}

	buf.WriteString("\n## Failed Items\n\n")
	buf.WriteString("| ID | Filename | Error |\n|---|---|---|\n")
	for _, item := range failed {
		buf.WriteString(fmt.Sprintf("| %s | %s | %s |\n", item.SourceID, item.DisplayName, item.ErrorMessage))
	}

	return buf.Bytes(), nil
}

// ExportToText converts a Report to plain text format
func ExportToText(report *Report) ([]byte, error) {
	var buf bytes.Buffer
	m := report.Migration

	buf.WriteString(fmt.Sprintf("Migration: %s\n", m.ID()))
	buf.WriteString(fmt.Sprintf("Status: %s\n", m.Status()))
	buf.WriteString(fmt.Sprintf("Items: %d transferred, %d failed\n\n", m.TransferredItems(), m.FailedItems()))

	for i, item := range report.Items {
		line := fmt.Sprintf("%d. [%s] %s", i+1, item.Status, item.DisplayName)
		if item.ErrorMessage != "" {
			line += ": " + item.ErrorMessage
		}
		buf.WriteString(line + "\n")
	}

	return buf.Bytes(), nil
}

// ToSummaryJSON generates a JSON summary of the migration (without items)
func ToSummaryJSON(report *Report) ([]byte, error) {
	return shared.MarshalJSON(summary{
		Migration:        report.Migration.View(),
		LoggedItems:      len(report.Items),
		TransferredBytes: report.TransferredBytes(),
		GeneratedAt:      time.Now().UTC(),
	}, true)
}

// ExportToJSON generates a JSON document containing the migration and every logged item
func ExportToJSON(report *Report) ([]byte, error) {
	return shared.MarshalJSON(struct {
		Migration models.MigrationView  `json:"migration"`
		Items     []models.TransferItem `json:"items"`
	}{report.Migration.View(), report.Items}, true)
}

// CSVExportResult contains the paths of files created by WriteCSVExport
type CSVExportResult struct {
	ItemsFile   string
	SummaryFile string
}

// WriteCSVExport exports a report to CSV format with an accompanying summary JSON file.
//
// Defaults to the migration ID as the base filename & creates {base}_items.csv and {base}_summary.json
func WriteCSVExport(report *Report, baseFilepath string) (*CSVExportResult, error) {
	if baseFilepath == "" {
		baseFilepath = report.Migration.ID()
	}

	csvData, err := ExportToCSV(report)
	if err != nil {
		return nil, fmt.Errorf("failed to generate CSV: %w", err)
	}

	itemsFile := baseFilepath + "_items.csv"
	if err := os.WriteFile(itemsFile, csvData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write CSV file: %w", err)
	}

	summaryJSON, err := ToSummaryJSON(report)
	if err != nil {
		return nil, fmt.Errorf("failed to generate summary JSON: %w", err)
	}

	summaryFile := baseFilepath + "_summary.json"
	if err := os.WriteFile(summaryFile, summaryJSON, 0644); err != nil {
		return nil, fmt.Errorf("failed to write summary file: %w", err)
	}

	return &CSVExportResult{ItemsFile: itemsFile, SummaryFile: summaryFile}, nil
}

// WriteMarkdownExport writes the Markdown report to {dir}/README.md.
//
// Directory name defaults to the migration ID.
func WriteMarkdownExport(report *Report, outputDir string) (string, error) {
	if outputDir == "" {
		outputDir = report.Migration.ID()
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	mdData, err := ExportToMarkdown(report)
	if err != nil {
		return "", fmt.Errorf("failed to generate Markdown: %w", err)
	}

	mdFile := filepath.Join(outputDir, "README.md")
	if err := os.WriteFile(mdFile, mdData, 0644); err != nil {
		return "", fmt.Errorf("failed to write Markdown file: %w", err)
	}
	return mdFile, nil
}

// WriteTextExport exports a report to plain text format.
//
// Defaults to {migration.ID}_items.txt as the filename.
func WriteTextExport(report *Report, path string) (string, error) {
	if path == "" {
		path = fmt.Sprintf("%s_items.txt", report.Migration.ID())
	}

	textData, err := ExportToText(report)
	if err != nil {
		return "", fmt.Errorf("failed to generate text: %w", err)
	}

	if err := os.WriteFile(path, textData, 0644); err != nil {
		return "", fmt.Errorf("failed to write text file: %w", err)
	}
	return path, nil
}

// WriteJSONExport writes the full JSON report.
//
// Defaults to {migration.ID}.json as the filename.
func WriteJSONExport(report *Report, path string) (string, error) {
	if path == "" {
		path = report.Migration.ID() + ".json"
	}

	data, err := ExportToJSON(report)
	if err != nil {
		return "", fmt.Errorf("failed to generate JSON: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write JSON file: %w", err)
	}
	return path, nil
}
