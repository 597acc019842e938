// Package ingest parses uploaded batch files into raw rows. Type
// confusion is handled here, at the boundary: by the time rows reach the
// normalize pipeline every field is a plain string and subnet masks have
// been reduced to bare prefix lengths.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/panops/panorama-address-manager/internal/domain"
)

// Expected header columns, in any order, matched case-insensitively.
const (
	colName        = "customername"
	colIPAddress   = "customeripaddress"
	colSubnetMask  = "ipsubnetmask"
	colServiceCode = "servicecode"
)

// Parse dispatches on the file extension. Unsupported formats and any
// structural problem in the file abort the whole batch with
// domain.ErrMalformedBatch; no rows are returned.
func Parse(filename string, r io.Reader) ([]domain.RawRow, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return ParseCSV(r)
	case ".xlsx", ".xls":
		return ParseXLSX(r)
	default:
		return nil, fmt.Errorf("%w: unsupported file format %q", domain.ErrMalformedBatch, filepath.Ext(filename))
	}
}

// ParseCSV reads a header-plus-rows CSV batch.
func ParseCSV(r io.Reader) ([]domain.RawRow, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: missing header row", domain.ErrMalformedBatch)
	}
	cols, err := mapHeader(header)
	if err != nil {
		return nil, err
	}

	var rows []domain.RawRow
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// csv.Reader enforces a consistent field count; a short or
			// long row lands here and is batch-fatal.
			return nil, fmt.Errorf("%w: %v", domain.ErrMalformedBatch, err)
		}
		rows = append(rows, rowFromRecord(record, cols))
	}
	return rows, nil
}

// ParseXLSX reads the first sheet of a workbook with the same header
// contract as CSV.
func ParseXLSX(r io.Reader) ([]domain.RawRow, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: unreadable workbook: %v", domain.ErrMalformedBatch, err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, fmt.Errorf("%w: workbook has no sheets", domain.ErrMalformedBatch)
	}
	records, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("%w: reading sheet %q: %v", domain.ErrMalformedBatch, sheet, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: missing header row", domain.ErrMalformedBatch)
	}

	cols, err := mapHeader(records[0])
	if err != nil {
		return nil, err
	}

	var rows []domain.RawRow
	for i, record := range records[1:] {
		if isEmptyRecord(record) {
			continue
		}
		// excelize trims trailing empty cells; pad back to header width
		// so an optional final column does not fail the arity check.
		for len(record) < len(records[0]) {
			record = append(record, "")
		}
		if len(record) != len(records[0]) {
			return nil, fmt.Errorf("%w: row %d has %d cells, want %d",
				domain.ErrMalformedBatch, i+2, len(record), len(records[0]))
		}
		rows = append(rows, rowFromRecord(record, cols))
	}
	return rows, nil
}

// columns holds the index of each required column in the header.
type columns struct {
	name, ip, mask, code int
}

func mapHeader(header []string) (columns, error) {
	cols := columns{name: -1, ip: -1, mask: -1, code: -1}
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case colName:
			cols.name = i
		case colIPAddress:
			cols.ip = i
		case colSubnetMask:
			cols.mask = i
		case colServiceCode:
			cols.code = i
		}
	}
	if cols.name < 0 || cols.ip < 0 || cols.mask < 0 || cols.code < 0 {
		return cols, fmt.Errorf("%w: header must contain CustomerName, CustomerIPAddress, IPSubnetMask, ServiceCode",
			domain.ErrMalformedBatch)
	}
	return cols, nil
}

func rowFromRecord(record []string, cols columns) domain.RawRow {
	cell := func(i int) string {
		if i < len(record) {
			return record[i]
		}
		return ""
	}
	return NormalizeRow(domain.RawRow{
		Name:        cell(cols.name),
		IPAddress:   cell(cols.ip),
		SubnetMask:  cell(cols.mask),
		ServiceCode: cell(cols.code),
	})
}

// NormalizeRow applies the boundary conversions to one raw row, whatever
// its source: fields are trimmed, the service code is uppercased, and
// the subnet mask is reduced to a bare prefix length.
func NormalizeRow(row domain.RawRow) domain.RawRow {
	return domain.RawRow{
		Name:        strings.TrimSpace(row.Name),
		IPAddress:   strings.TrimSpace(row.IPAddress),
		SubnetMask:  NormalizeMask(row.SubnetMask),
		ServiceCode: strings.ToUpper(strings.TrimSpace(row.ServiceCode)),
	}
}

func isEmptyRecord(record []string) bool {
	for _, c := range record {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// NormalizeMask converts the mask forms accepted at the boundary to a
// bare prefix length: "/24" -> "24", "255.255.255.0" -> "24". Anything
// unrecognized is returned unchanged so the pipeline rejects the row
// with invalid_mask rather than the batch failing.
func NormalizeMask(mask string) string {
	mask = strings.TrimSpace(mask)
	if strings.HasPrefix(mask, "/") {
		return strings.TrimPrefix(mask, "/")
	}
	if strings.Contains(mask, ".") {
		if prefix, ok := dottedToPrefix(mask); ok {
			return strconv.Itoa(prefix)
		}
	}
	return mask
}

// dottedToPrefix converts a dotted-quad netmask to its prefix length.
// Only contiguous masks qualify.
func dottedToPrefix(mask string) (int, bool) {
	parts := strings.Split(mask, ".")
	if len(parts) != 4 {
		return 0, false
	}
	var bits uint32
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || n > 255 {
			return 0, false
		}
		bits = bits<<8 | uint32(n)
	}
	ones := 0
	for ones < 32 && bits&(1<<(31-ones)) != 0 {
		ones++
	}
	// Everything after the leading ones must be zero.
	if ones < 32 && bits<<ones != 0 {
		return 0, false
	}
	return ones, true
}
