// Package export writes pipeline outputs to disk as JSON documents and
// flattened metric tables (CSV or XLSX). Nothing written here is read back.
package export

import (
	"encoding/csv"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/xuri/excelize/v2"

	"github.com/okian/hoopstat/pkg/logger"
)

// Format names an export encoding.
type Format string

const (
	JSON Format = "json"
	CSV  Format = "csv"
	XLSX Format = "xlsx"
)

const (
	dirPerm   = 0o755
	filePerm  = 0o644
	sheetName = "Metrics"
	// TimestampLayout is used in generated file names.
	TimestampLayout = "20060102_150405"
)

// ParseFormat converts a name such as "csv" into a Format.
func ParseFormat(name string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(name))); f {
	case JSON, CSV, XLSX:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, name)
	}
}

// Row is one flattened metric.
type Row struct {
	Metric string
	Value  string
}

// Option configures a Writer.
type Option func(*Writer)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(w *Writer) {
		if l != nil {
			w.log = l
		}
	}
}

// WithClock overrides the time source used for file names.
func WithClock(now func() time.Time) Option {
	return func(w *Writer) {
		if now != nil {
			w.now = now
		}
	}
}

// Writer writes files under one directory, creating it on first use.
type Writer struct {
	dir string
	log logger.Logger
	now func() time.Time
}

// New creates a Writer rooted at dir.
func New(dir string, opts ...Option) *Writer {
	w := &Writer{dir: dir, log: logger.Nop(), now: time.Now}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Dir returns the output directory.
func (w *Writer) Dir() string { return w.dir }

// Now returns the writer's current time.
func (w *Writer) Now() time.Time { return w.now() }

// SafeName turns a player or report name into a file name stem.
func SafeName(name string) string {
	r := strings.NewReplacer(" ", "_", "/", "_", `\`, "_", "..", "_")
	return r.Replace(strings.TrimSpace(name))
}

// Stamped returns "<stem>_<YYYYMMDD_HHMMSS>.<ext>" using the writer's clock.
func (w *Writer) Stamped(stem string, f Format) string {
	return fmt.Sprintf("%s_%s.%s", stem, w.now().Format(TimestampLayout), f)
}

// WriteJSON encodes v as indented JSON into file and returns its path.
func (w *Writer) WriteJSON(file string, v any) (string, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", file, err)
	}
	return w.write(file, func(path string) error {
		return os.WriteFile(path, b, filePerm)
	})
}

// WriteTable flattens v and writes it in the given format. JSON writes v
// unflattened.
func (w *Writer) WriteTable(file string, f Format, v any) (string, error) {
	if f == JSON {
		return w.WriteJSON(file, v)
	}
	rows, err := Flatten(v)
	if err != nil {
		return "", err
	}
	switch f {
	case CSV:
		return w.write(file, func(path string) error { return writeCSV(path, rows) })
	case XLSX:
		return w.write(file, func(path string) error { return writeXLSX(path, rows) })
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, f)
	}
}

func (w *Writer) write(file string, fn func(path string) error) (string, error) {
	if err := os.MkdirAll(w.dir, dirPerm); err != nil {
		return "", fmt.Errorf("create %s: %w", w.dir, err)
	}
	path := filepath.Join(w.dir, file)
	if err := fn(path); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}

// Flatten encodes v as a JSON object and lists its leaves as metric rows.
// Nested keys are joined with "_" and rows are sorted by metric name.
func Flatten(v any) ([]Row, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var obj map[string]any
	if err := json.Unmarshal(b, &obj); err != nil || obj == nil {
		return nil, ErrNotTabular
	}
	var rows []Row
	flattenInto(&rows, "", obj)
	return rows, nil
}

func flattenInto(rows *[]Row, prefix string, obj map[string]any) {
	for _, k := range slices.Sorted(maps.Keys(obj)) {
		key := k
		if prefix != "" {
			key = prefix + "_" + k
		}
		switch val := obj[k].(type) {
		case map[string]any:
			flattenInto(rows, key, val)
		default:
			*rows = append(*rows, Row{Metric: key, Value: cell(val)})
		}
	}
}

func cell(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		b, _ := json.Marshal(val)
		return string(b)
	}
}

func writeCSV(path string, rows []Row) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, filePerm)
	if err != nil {
		return err
	}
	cw := csv.NewWriter(f)
	_ = cw.Write([]string{"Metric", "Value"})
	for _, r := range rows {
		_ = cw.Write([]string{r.Metric, r.Value})
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func writeXLSX(path string, rows []Row) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return err
	}
	if err := f.SetSheetRow(sheetName, "A1", &[]any{"Metric", "Value"}); err != nil {
		return err
	}
	for i, r := range rows {
		var value any = r.Value
		if n, err := strconv.ParseFloat(r.Value, 64); err == nil {
			value = n
		}
		cellRef, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheetName, cellRef, &[]any{r.Metric, value}); err != nil {
			return err
		}
	}
	return f.SaveAs(path)
}
