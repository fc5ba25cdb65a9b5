package analysis

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
)

// Output formats
const (
	FormatTable = "table"
	FormatCSV   = "csv"
	FormatJSON  = "json"
)

// Writer writes results in one output format.
type Writer interface {
	Write(r Result) error
	Flush() error
}

// NewWriter returns a writer for format.
func NewWriter(w io.Writer, format string) (Writer, error) {
	switch format {
	case FormatTable, "":
		return &tableWriter{tw: tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)}, nil
	case FormatCSV:
		return newCSVWriter(w)
	case FormatJSON:
		return &jsonWriter{enc: json.NewEncoder(w)}, nil
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}
}

type tableWriter struct {
	tw          *tabwriter.Writer
	wroteHeader bool
}

func (t *tableWriter) Write(r Result) error {
	if !t.wroteHeader {
		if _, err := fmt.Fprintln(t.tw, "File\tRank\tId\tName\tConfidence"); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
		t.wroteHeader = true
	}

	if r.Err != nil {
		_, err := fmt.Fprintf(t.tw, "%s\t-\t-\terror: %s\t-\n", r.Path, r.Err)
		return err
	}
	if len(r.Recognitions) == 0 {
		_, err := fmt.Fprintf(t.tw, "%s\t-\t-\t(none above threshold)\t-\n", r.Path)
		return err
	}
	for i, rec := range r.Recognitions {
		if _, err := fmt.Fprintf(t.tw, "%s\t%d\t%s\t%s\t%.4f\n", r.Path, i+1, rec.ID, rec.Name, rec.Confidence); err != nil {
			return fmt.Errorf("failed to write result: %w", err)
		}
	}
	return nil
}

func (t *tableWriter) Flush() error {
	return t.tw.Flush()
}

type csvWriter struct {
	w *csv.Writer
}

func newCSVWriter(w io.Writer) (*csvWriter, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"File", "Rank", "Id", "Name", "Confidence", "Error"}); err != nil {
		return nil, fmt.Errorf("failed to write header to CSV: %w", err)
	}
	return &csvWriter{w: cw}, nil
}

func (c *csvWriter) Write(r Result) error {
	if r.Err != nil {
		return c.w.Write([]string{r.Path, "", "", "", "", r.Err.Error()})
	}
	for i, rec := range r.Recognitions {
		row := []string{
			r.Path,
			strconv.Itoa(i + 1),
			rec.ID,
			rec.Name,
			strconv.FormatFloat(float64(rec.Confidence), 'f', 4, 32),
			"",
		}
		if err := c.w.Write(row); err != nil {
			return fmt.Errorf("failed to write result to CSV: %w", err)
		}
	}
	return nil
}

func (c *csvWriter) Flush() error {
	c.w.Flush()
	return c.w.Error()
}

// jsonWriter writes one JSON object per line.
type jsonWriter struct {
	enc *json.Encoder
}

type jsonResult struct {
	Path         string `json:"path"`
	Recognitions any    `json:"recognitions"`
	ElapsedMs    int64  `json:"elapsed_ms"`
	Error        string `json:"error,omitempty"`
}

func (j *jsonWriter) Write(r Result) error {
	return j.enc.Encode(jsonResult{
		Path:         r.Path,
		Recognitions: r.Recognitions,
		ElapsedMs:    r.Elapsed.Milliseconds(),
		Error:        r.ErrorMessage(),
	})
}

func (j *jsonWriter) Flush() error { return nil }
