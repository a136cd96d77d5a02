package collector

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// Format is an export file format.
type Format string

// export formats
const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ErrUnknownFormat is returned for formats other than json, csv and xlsx.
var ErrUnknownFormat = fmt.Errorf("format must be one of %s, %s, %s", FormatJSON, FormatCSV, FormatXLSX)

const xlsxSheet = "Messages"

// tabular export columns
var exportColumns = []string{
	"channel", "channel_title", "message_id", "date", "text",
	"views", "forwards", "media_type", "url",
}

// ParseFormat accepts a format name in any case; empty means json.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatJSON, nil
	case FormatJSON, FormatCSV, FormatXLSX:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// ContentType returns the MIME type served for the format.
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "application/json"
	}
}

// FileName returns telegram_scrape_YYYYMMDD_HHMMSS.<ext> for t.
func FileName(f Format, t time.Time) string {
	return fmt.Sprintf("telegram_scrape_%s.%s", t.Format("20060102_150405"), f)
}

// WriteReport encodes report in the given format.
func WriteReport(w io.Writer, f Format, report *ScrapeReport) error {
	switch f {
	case FormatJSON:
		return writeJSON(w, report)
	case FormatCSV:
		return writeCSV(w, report)
	case FormatXLSX:
		return writeXLSX(w, report)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, f)
	}
}

// SaveReport writes report into dir under a timestamped name and returns the path.
func SaveReport(dir string, f Format, report *ScrapeReport) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	path := filepath.Join(dir, FileName(f, report.ScrapedAt.Local()))
	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create export file: %w", err)
	}

	if err := WriteReport(file, f, report); err != nil {
		file.Close()
		return "", err
	}
	if err := file.Close(); err != nil {
		return "", fmt.Errorf("close export file: %w", err)
	}
	return path, nil
}

func writeJSON(w io.Writer, report *ScrapeReport) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}

func writeCSV(w io.Writer, report *ScrapeReport) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(exportColumns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, row := range exportRows(report) {
		record := make([]string, len(row))
		for i, v := range row {
			record[i] = cellString(v)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeXLSX(w io.Writer, report *ScrapeReport) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", xlsxSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	header := make([]interface{}, len(exportColumns))
	for i, c := range exportColumns {
		header[i] = c
	}
	if err := f.SetSheetRow(xlsxSheet, "A1", &header); err != nil {
		return fmt.Errorf("write xlsx header: %w", err)
	}

	for i, row := range exportRows(report) {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		// ids and counters stay numeric, missing counters stay blank
		if err := f.SetSheetRow(xlsxSheet, cell, &row); err != nil {
			return fmt.Errorf("write xlsx row %d: %w", i+2, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}

// exportRows flattens the report into one row per message.
// message_id is an int, views and forwards are an int or nil.
func exportRows(report *ScrapeReport) [][]interface{} {
	var rows [][]interface{}
	for _, ch := range report.Channels {
		title := ""
		if ch.ChannelTitle != nil {
			title = *ch.ChannelTitle
		}
		for _, msg := range ch.Messages {
			date := ""
			if msg.Timestamp != nil {
				date = msg.Timestamp.UTC().Format(time.RFC3339)
			}
			rows = append(rows, []interface{}{
				ch.Channel,
				title,
				msg.ID,
				date,
				msg.Text,
				optionalInt(msg.Views),
				optionalInt(msg.Forwards),
				string(msg.MediaType),
				msg.Permalink,
			})
		}
	}
	return rows
}

func optionalInt(v *int) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func cellString(v interface{}) string {
	switch v := v.(type) {
	case nil:
		return ""
	case int:
		return strconv.Itoa(v)
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}
