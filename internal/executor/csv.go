package executor

import (
	"context"
	"encoding/csv"
	"fmt"
	"strings"
)

const (
	// KindCSVParser — тип узла разбора CSV.
	KindCSVParser = "csv_parser"

	// Ключи конфигурации.
	configDelimiter = "delimiter"
	configHasHeader = "has_header"
	configTrim      = "trim_spaces"
)

// CSVParserExecutor — узел разбора CSV.
//
// С заголовком каждая строка становится map колонка→значение,
// без заголовка — списком значений.
//
// Конфигурация:
//
//	{
//	    "source_field": "file.content",  // dot-path к CSV во входе; пусто — весь вход
//	    "delimiter": ";",                // по умолчанию ","
//	    "has_header": true,              // по умолчанию true
//	    "trim_spaces": false
//	}
//
// Output:
//
//	{"rows": [{"sku": "A-1", "qty": "2"}], "count": 1, "columns": ["sku", "qty"]}
type CSVParserExecutor struct{}

// NewCSVParserExecutor создаёт новый CSVParserExecutor.
func NewCSVParserExecutor() *CSVParserExecutor {
	return &CSVParserExecutor{}
}

// Kind возвращает тип узла.
func (e *CSVParserExecutor) Kind() string {
	return KindCSVParser
}

// Execute разбирает CSV из входных данных.
func (e *CSVParserExecutor) Execute(ctx context.Context, req *Request) (*Result, error) {
	payload, err := stringPayload(req.Input, GetConfigString(req.Config, configSourceField), "csv")
	if err != nil {
		return nil, err
	}

	reader := csv.NewReader(strings.NewReader(payload))
	if delim := GetConfigString(req.Config, configDelimiter); delim != "" {
		runes := []rune(delim)
		if len(runes) != 1 {
			return nil, fmt.Errorf("%w: delimiter must be a single character, got %q",
				ErrInvalidConfig, delim)
		}
		reader.Comma = runes[0]
	}
	reader.TrimLeadingSpace = GetConfigBool(req.Config, configTrim, false)

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: csv: %v", ErrFormat, err)
	}

	trim := GetConfigBool(req.Config, configTrim, false)
	if GetConfigBool(req.Config, configHasHeader, true) {
		return e.withHeader(records, trim)
	}
	return e.withoutHeader(records, trim), nil
}

// withHeader собирает строки в map по именам колонок.
func (e *CSVParserExecutor) withHeader(records [][]string, trim bool) (*Result, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: csv: missing header row", ErrFormat)
	}

	columns := records[0]
	if trim {
		for i := range columns {
			columns[i] = strings.TrimSpace(columns[i])
		}
	}

	rows := make([]any, 0, len(records)-1)
	for _, record := range records[1:] {
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			value := ""
			if i < len(record) {
				value = record[i]
			}
			if trim {
				value = strings.TrimSpace(value)
			}
			row[col] = value
		}
		rows = append(rows, row)
	}

	cols := make([]any, len(columns))
	for i, c := range columns {
		cols[i] = c
	}

	return &Result{Output: map[string]any{
		"rows":    rows,
		"count":   len(rows),
		"columns": cols,
	}}, nil
}

// withoutHeader возвращает строки списками значений.
func (e *CSVParserExecutor) withoutHeader(records [][]string, trim bool) *Result {
	rows := make([]any, 0, len(records))
	for _, record := range records {
		row := make([]any, len(record))
		for i, value := range record {
			if trim {
				value = strings.TrimSpace(value)
			}
			row[i] = value
		}
		rows = append(rows, row)
	}

	return &Result{Output: map[string]any{
		"rows":  rows,
		"count": len(rows),
	}}
}
