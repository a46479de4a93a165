package export

// Dataset export as CSV (file and clipboard)

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/tturner/gpdplot/internal/gpd"
)

// Header is the column order of every export, matching the service's JSON keys.
var Header = []string{"x", "u", "d", "xu", "xd"}

// WriteCSV writes the header and one row per point, in point order.
func WriteCSV(w io.Writer, points []gpd.DataPoint) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write CSV header: %w", err)
	}
	for _, p := range points {
		record := []string{
			gpd.FormatValue(p.X),
			gpd.FormatValue(p.U),
			gpd.FormatValue(p.D),
			gpd.FormatValue(p.XU),
			gpd.FormatValue(p.XD),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write CSV record: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// FileExporter writes CSV files into Dir.
type FileExporter struct {
	Dir string
}

// NewFileExporter creates an exporter writing into dir ("" means the working directory).
func NewFileExporter(dir string) *FileExporter {
	return &FileExporter{Dir: dir}
}

// Export writes points to Dir/filename. Only the base name of filename is used
// and ".csv" is appended when it has no extension.
func (e *FileExporter) Export(points []gpd.DataPoint, filename string) error {
	path, err := e.Path(filename)
	if err != nil {
		return err
	}
	if e.Dir != "" {
		if err := os.MkdirAll(e.Dir, 0o755); err != nil {
			return fmt.Errorf("create export dir: %w", err)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create CSV file: %w", err)
	}
	if err := WriteCSV(file, points); err != nil {
		file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close CSV file: %w", err)
	}
	return nil
}

// Path resolves where filename would be written.
func (e *FileExporter) Path(filename string) (string, error) {
	name := filepath.Base(strings.TrimSpace(filename))
	if name == "." || name == string(filepath.Separator) || name == "" {
		return "", fmt.Errorf("invalid export filename %q", filename)
	}
	if filepath.Ext(name) == "" {
		name += ".csv"
	}
	return filepath.Join(e.Dir, name), nil
}

// ClipboardExporter copies the CSV text to the system clipboard. The filename
// is ignored.
type ClipboardExporter struct {
	write func(string) error
}

// NewClipboardExporter uses the system clipboard.
func NewClipboardExporter() *ClipboardExporter {
	return &ClipboardExporter{write: clipboard.WriteAll}
}

// Export copies points as CSV text.
func (e *ClipboardExporter) Export(points []gpd.DataPoint, _ string) error {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, points); err != nil {
		return err
	}
	if err := e.write(buf.String()); err != nil {
		return fmt.Errorf("copy to clipboard: %w", err)
	}
	return nil
}

// Exporter is anything that can export one dataset.
type Exporter interface {
	Export(points []gpd.DataPoint, filename string) error
}

// Multi runs every exporter and joins their errors.
type Multi []Exporter

// Export calls each exporter in order, even after a failure.
func (m Multi) Export(points []gpd.DataPoint, filename string) error {
	var errs []error
	for _, e := range m {
		if err := e.Export(points, filename); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
