package exporter

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"surveycli/pkg/contracts/domain"
)

// utf8BOM marks exported documents as UTF-8 so spreadsheet tools pick the
// right encoding when opening them.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// SerializeOptions configures CSV rendering behavior.
type SerializeOptions struct {
	IncludeBOM bool // prefix the document with the UTF-8 BOM
	UseCRLF    bool // CRLF line endings instead of LF
}

// DefaultSerializeOptions returns the rendering defaults: BOM on, LF line
// endings.
func DefaultSerializeOptions() SerializeOptions {
	return SerializeOptions{IncludeBOM: true}
}

// Serialize renders the table as one CSV document, header row first. Fields
// are quoted only when they carry a comma, a double quote or a line break;
// embedded quotes are doubled. The output is deterministic for a given
// table, so re-serializing unchanged data yields identical bytes.
func Serialize(table domain.Table, opts SerializeOptions) ([]byte, error) {
	var buf bytes.Buffer
	if opts.IncludeBOM {
		buf.Write(utf8BOM)
	}

	w := csv.NewWriter(&buf)
	w.UseCRLF = opts.UseCRLF

	if err := w.Write(table.Headers); err != nil {
		return nil, fmt.Errorf("failed to write header row: %w", err)
	}
	for i := range table.Rows {
		if err := w.Write(table.Rows[i]); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush csv document: %w", err)
	}

	return buf.Bytes(), nil
}
