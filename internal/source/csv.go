package source

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	apperrors "wuuf-analytics/internal/errors"
	"wuuf-analytics/internal/models"
)

// CSVLoader reads tables from <Dir>/<Table>.csv, the layout written by
// `wuufctl export`.
type CSVLoader struct {
	Dir string
}

func NewCSVLoader(dir string) *CSVLoader {
	return &CSVLoader{Dir: dir}
}

func (l *CSVLoader) LoadTable(ctx context.Context, name string) (*models.RawTable, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := filepath.Join(l.Dir, name+".csv")
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			available, listErr := l.SheetTitles(ctx)
			if listErr != nil {
				return nil, listErr
			}
			return nil, &apperrors.TableNotFoundError{Table: name, Available: available}
		}
		return nil, fmt.Errorf("%w: open %s: %v", apperrors.ErrSourceUnavailable, path, err)
	}
	defer f.Close()

	table, err := ReadCSV(name, f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return StripIncomplete(table), nil
}

// SheetTitles lists the tables present in Dir.
func (l *CSVLoader) SheetTitles(ctx context.Context) ([]string, error) {
	if _, err := os.Stat(l.Dir); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrSourceUnavailable, err)
	}
	matches, err := filepath.Glob(filepath.Join(l.Dir, "*.csv"))
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, strings.TrimSuffix(filepath.Base(m), ".csv"))
	}
	sort.Strings(names)
	return names, nil
}

// ReadCSV parses a header-first CSV stream into a raw table. Cells stay text
// so identifiers such as phone numbers keep their leading zeros; blank cells
// become nil.
func ReadCSV(name string, r io.Reader) (*models.RawTable, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return &models.RawTable{Name: name}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	header[0] = strings.TrimPrefix(header[0], "\ufeff")

	table := &models.RawTable{Name: name, Columns: header}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", len(table.Rows)+2, err)
		}

		row := make(models.RawRow, len(header))
		for i, col := range header {
			if i < len(record) {
				row[col] = parseCell(record[i])
			} else {
				row[col] = nil
			}
		}
		table.Rows = append(table.Rows, row)
	}

	return table, nil
}

func parseCell(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}

// WriteCSV writes a raw table in the layout ReadCSV accepts.
func WriteCSV(w io.Writer, table *models.RawTable) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(table.Columns); err != nil {
		return err
	}

	record := make([]string, len(table.Columns))
	for _, row := range table.Rows {
		for i, col := range table.Columns {
			record[i] = FormatCell(row[col])
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

// FormatCell renders a raw cell as text.
func FormatCell(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprint(val)
	}
}
