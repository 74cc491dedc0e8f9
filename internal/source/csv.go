// Package source turns delimited click-stream files into a lazy sequence of
// rows. Only the columns aggregation needs are kept; the reader reuses its
// record buffer so memory stays flat regardless of file size.
package source

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/radiusdt/campaign-aggregator/internal/models"
)

var (
	// ErrNoHeader is returned when the input has no header line.
	ErrNoHeader = errors.New("input has no header row")
	// ErrMissingColumn is returned when a required column is absent from the header.
	ErrMissingColumn = errors.New("missing required column")
	// ErrShortRecord marks a record with fewer fields than a required column index.
	ErrShortRecord = errors.New("record has too few fields")
)

// RecordError describes a single record that could not be read. The reader
// stays usable after returning one.
type RecordError struct {
	Line int
	Err  error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

// CSVSource yields rows from a CSV stream with a header line. It is single
// pass: once Next has returned io.EOF it keeps returning io.EOF.
type CSVSource struct {
	r       *csv.Reader
	closers []io.Closer
	index   [5]int
	maxIdx  int
	done    bool
}

// Open opens path for reading. Files ending in ".gz" are decompressed on the fly.
// The caller must Close the returned source.
func Open(path string) (*CSVSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}

	var r io.Reader = f
	closers := []io.Closer{f}

	if strings.HasSuffix(strings.ToLower(path), ".gz") {
		zr, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to open gzip stream: %w", err)
		}
		r = zr
		// gzip reader must close before the file underneath it.
		closers = []io.Closer{zr, f}
	}

	src, err := NewReader(r)
	if err != nil {
		closeAll(closers)
		return nil, err
	}
	src.closers = closers
	return src, nil
}

// NewReader reads the header from r and prepares the column mapping.
func NewReader(r io.Reader) (*CSVSource, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, ErrNoHeader
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	positions := make(map[string]int, len(header))
	for i, name := range header {
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		name = strings.ToLower(strings.TrimSpace(name))
		if _, dup := positions[name]; !dup {
			positions[name] = i
		}
	}

	src := &CSVSource{r: cr}
	var missing []string
	for i, col := range models.RequiredColumns {
		pos, ok := positions[col]
		if !ok {
			missing = append(missing, col)
			continue
		}
		src.index[i] = pos
		if pos > src.maxIdx {
			src.maxIdx = pos
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))
	}

	return src, nil
}

// Next returns the next row. It returns io.EOF after the last row, a
// *RecordError for a record that cannot be split into fields, and any other
// error for failures of the underlying stream.
func (s *CSVSource) Next() (models.Row, error) {
	if s.done {
		return models.Row{}, io.EOF
	}

	for {
		rec, err := s.r.Read()
		if err == io.EOF {
			s.done = true
			return models.Row{}, io.EOF
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				return models.Row{}, &RecordError{Line: perr.StartLine, Err: perr.Err}
			}
			return models.Row{}, fmt.Errorf("failed to read record: %w", err)
		}

		line, _ := s.r.FieldPos(0)

		// Whitespace-only lines carry no data.
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
			continue
		}

		if len(rec) <= s.maxIdx {
			return models.Row{}, &RecordError{Line: line, Err: ErrShortRecord}
		}

		return models.Row{
			Line:        line,
			CampaignID:  rec[s.index[0]],
			Impressions: rec[s.index[1]],
			Clicks:      rec[s.index[2]],
			Spend:       rec[s.index[3]],
			Conversions: rec[s.index[4]],
		}, nil
	}
}

// Close releases the underlying file handle, if any.
func (s *CSVSource) Close() error {
	err := closeAll(s.closers)
	s.closers = nil
	return err
}

func closeAll(closers []io.Closer) error {
	var first error
	for _, c := range closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
