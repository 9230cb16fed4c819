package fetcher

import (
	"context"
	"encoding/csv"
	"io"
	"strings"

	"github.com/rotisserie/eris"
)

const utf8BOM = "\ufeff"

// CSVOptions configures the streaming CSV parser.
type CSVOptions struct {
	Delimiter  rune            // default ','
	HasHeader  bool            // if true, first row is sent to HeaderCh instead of the row channel
	HeaderCh   chan<- []string // optional: receives the header row
	LazyQuotes bool
}

// StreamCSV reads CSV records and sends them to a channel. Fields are
// trimmed and a leading byte order mark is dropped. Both channels are closed
// when processing completes.
func StreamCSV(ctx context.Context, r io.Reader, opts CSVOptions) (<-chan []string, <-chan error) {
	rowCh := make(chan []string, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		reader := csv.NewReader(r)
		if opts.Delimiter != 0 {
			reader.Comma = opts.Delimiter
		}
		reader.LazyQuotes = opts.LazyQuotes
		reader.FieldsPerRecord = -1

		first := true
		for {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}

			record, err := reader.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				errCh <- eris.Wrap(err, "csv: read row")
				return
			}

			for i, field := range record {
				record[i] = strings.TrimSpace(field)
			}

			if first {
				first = false
				if len(record) > 0 {
					record[0] = strings.TrimPrefix(record[0], utf8BOM)
				}
				if opts.HasHeader {
					if opts.HeaderCh != nil {
						select {
						case opts.HeaderCh <- record:
						case <-ctx.Done():
							errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled sending header")
							return
						}
					}
					continue
				}
			}

			select {
			case rowCh <- record:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}
		}
	}()

	return rowCh, errCh
}

// ReadCSV reads a whole CSV document, returning its header and data rows.
func ReadCSV(ctx context.Context, r io.Reader) ([]string, [][]string, error) {
	headerCh := make(chan []string, 1)
	rowCh, errCh := StreamCSV(ctx, r, CSVOptions{HasHeader: true, HeaderCh: headerCh, LazyQuotes: true})

	var rows [][]string
	for row := range rowCh {
		rows = append(rows, row)
	}
	if err := <-errCh; err != nil {
		return nil, nil, err
	}

	select {
	case header := <-headerCh:
		return header, rows, nil
	default:
		return nil, nil, eris.New("csv: empty document")
	}
}
