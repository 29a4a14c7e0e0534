package orchestrator

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	apperrors "agency-assistant/internal/common/errors"
	"agency-assistant/internal/models"
)

// Base CSV columns in output order. Metadata keys follow, sorted, prefixed
// with "metadata." when they collide with a base column.
var baseColumns = []string{"source", "source_type", "title", "snippet", "url", "published_at", "content"}

// LoadCorpus reads a corpus file: a report object or an item array (.json),
// a CSV export (.csv), or plain text split into paragraphs (anything else).
func LoadCorpus(path string) (*models.VeilleReport, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, apperrors.NewNotFoundError(path)
	}
	if err != nil {
		return nil, apperrors.NewStorageError("read corpus", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return decodeCorpusJSON(data)
	case ".csv":
		items, err := decodeItemsCSV(data)
		if err != nil {
			return nil, apperrors.NewInvalidFormatError("csv", err)
		}
		return &models.VeilleReport{Items: items}, nil
	}
	return textReport(filepath.Base(path), paragraphs(string(data))), nil
}

func decodeCorpusJSON(data []byte) (*models.VeilleReport, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var items []models.VeilleItem
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, apperrors.NewInvalidFormatError("json", err)
		}
		return &models.VeilleReport{Items: items}, nil
	}
	var report models.VeilleReport
	if err := json.Unmarshal(trimmed, &report); err != nil {
		return nil, apperrors.NewInvalidFormatError("json", err)
	}
	return &report, nil
}

func paragraphs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var out []string
	for _, p := range strings.Split(text, "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, strings.Join(strings.Fields(p), " "))
		}
	}
	return out
}

func textReport(source string, texts []string) *models.VeilleReport {
	items := make([]models.VeilleItem, 0, len(texts))
	for _, t := range texts {
		if strings.TrimSpace(t) == "" {
			continue
		}
		items = append(items, models.VeilleItem{Source: source, Content: t})
	}
	return &models.VeilleReport{Items: items, SourcesSucceeded: []string{source}}
}

// SaveReport writes the report as CSV when path ends in .csv and as the
// full JSON report otherwise.
func SaveReport(path string, report *models.VeilleReport) error {
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		data, err := encodeItemsCSV(report.Items)
		if err != nil {
			return apperrors.NewStorageError("encode csv", err)
		}
		return writeAtomic(path, data)
	}
	return SaveJSON(path, report)
}

// SaveJSON writes value as indented JSON.
func SaveJSON(path string, value interface{}) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return apperrors.NewStorageError("encode json", err)
	}
	return writeAtomic(path, append(data, '\n'))
}

func encodeItemsCSV(items []models.VeilleItem) ([]byte, error) {
	rows := make([]map[string]string, len(items))
	used := make(map[string]bool)
	meta := make(map[string]bool)
	for i := range items {
		row := itemRow(&items[i])
		rows[i] = row
		for k := range row {
			used[k] = true
		}
		for k := range items[i].Metadata {
			meta[metaColumn(k)] = true
		}
	}

	var header []string
	for _, c := range baseColumns {
		if used[c] {
			header = append(header, c)
		}
	}
	metaCols := make([]string, 0, len(meta))
	for c := range meta {
		metaCols = append(metaCols, c)
	}
	sort.Strings(metaCols)
	header = append(header, metaCols...)

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return nil, err
	}
	record := make([]string, len(header))
	for _, row := range rows {
		for i, c := range header {
			record[i] = row[c]
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func itemRow(item *models.VeilleItem) map[string]string {
	row := make(map[string]string)
	set := func(k, v string) {
		if v != "" {
			row[k] = v
		}
	}
	set("source", item.Source)
	set("source_type", string(item.SourceType))
	set("title", item.Title)
	set("snippet", item.Snippet)
	set("url", item.URL)
	if item.PublishedAt != nil {
		set("published_at", item.PublishedAt.UTC().Format(time.RFC3339))
	}
	set("content", item.Content)
	for k, v := range item.Metadata {
		set(metaColumn(k), fmt.Sprint(v))
	}
	return row
}

func metaColumn(key string) string {
	for _, c := range baseColumns {
		if c == key {
			return "metadata." + key
		}
	}
	return key
}

func decodeItemsCSV(data []byte) ([]models.VeilleItem, error) {
	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	header := records[0]
	items := make([]models.VeilleItem, 0, len(records)-1)
	for _, rec := range records[1:] {
		var item models.VeilleItem
		for i, col := range header {
			if i >= len(rec) || rec[i] == "" {
				continue
			}
			v := rec[i]
			switch col {
			case "source":
				item.Source = v
			case "source_type":
				item.SourceType = models.SourceType(v)
			case "title":
				item.Title = v
			case "snippet":
				item.Snippet = v
			case "url":
				item.URL = v
			case "published_at":
				if t, err := time.Parse(time.RFC3339, v); err == nil {
					item.PublishedAt = &t
				}
			case "content":
				item.Content = v
			default:
				if item.Metadata == nil {
					item.Metadata = make(map[string]interface{})
				}
				item.Metadata[strings.TrimPrefix(col, "metadata.")] = v
			}
		}
		items = append(items, item)
	}
	return items, nil
}

// writeAtomic writes through a temp file in the target directory so a
// failed write leaves no partial file behind.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return apperrors.NewStorageError("create directory", err)
	}
	tmp, err := os.CreateTemp(dir, ".agency-*")
	if err != nil {
		return apperrors.NewStorageError("create temp file", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return apperrors.NewStorageError("write", err)
	}
	if err := tmp.Close(); err != nil {
		return apperrors.NewStorageError("close", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return apperrors.NewStorageError("rename", err)
	}
	return nil
}
