// Package normalize implements the customer-record pipeline: raw rows in,
// validated records plus recorded rejections out. It is a pure in-memory
// transform - no storage or network access happens here.
package normalize

import (
	"github.com/panops/panorama-address-manager/internal/domain"
	"github.com/panops/panorama-address-manager/internal/validation"
)

// ServiceCatalog maps service codes to the descriptive tags applied to the
// resulting address objects.
type ServiceCatalog map[string][]string

// DefaultServiceCatalog is the catalog shipped with the binary. Every tag
// here satisfies validation.ValidateTag.
func DefaultServiceCatalog() ServiceCatalog {
	return ServiceCatalog{
		"RETAIL":     {"Retail"},
		"WHOLESALE":  {"Wholesale"},
		"ENTERPRISE": {"Enterprise"},
		"SMB":        {"Small-Business"},
		"GOV":        {"Government", "Compliance"},
	}
}

// Rejection is one input row that failed validation, with its reason.
type Rejection struct {
	RowNumber int
	Row       domain.RawRow
	Reason    string
}

// Normalizer validates raw rows and derives address-object records.
// The service catalog is fixed at construction; a Normalizer is safe to
// reuse across batches and holds no per-run state.
type Normalizer struct {
	catalog ServiceCatalog
}

// New creates a Normalizer with a private copy of the given catalog.
// A nil catalog gets the default one.
func New(catalog ServiceCatalog) *Normalizer {
	if catalog == nil {
		catalog = DefaultServiceCatalog()
	}
	own := make(ServiceCatalog, len(catalog))
	for code, tags := range catalog {
		own[code] = append([]string(nil), tags...)
	}
	return &Normalizer{catalog: own}
}

// Lookup returns the tags for a service code.
func (n *Normalizer) Lookup(code string) ([]string, bool) {
	tags, ok := n.catalog[code]
	if !ok {
		return nil, false
	}
	return append([]string(nil), tags...), true
}

// Run processes one batch. Accepted records and rejections each preserve
// input order, and both carry their 1-based input row number. Duplicate
// object names within the batch are rejected; the first row wins.
func (n *Normalizer) Run(rows []domain.RawRow) (accepted []domain.Customer, rejected []Rejection) {
	seen := make(map[string]bool, len(rows))

	for i, row := range rows {
		rec, reason := n.normalizeRow(row)
		if reason == "" && seen[rec.ObjectName] {
			reason = domain.ReasonDuplicateObjectName
		}
		if reason != "" {
			rejected = append(rejected, Rejection{RowNumber: i + 1, Row: row, Reason: reason})
			continue
		}
		seen[rec.ObjectName] = true
		rec.RowNumber = i + 1
		accepted = append(accepted, rec)
	}
	return accepted, rejected
}

// NormalizeRow validates a single row, as used by manual entry. The
// returned reason is empty on success. Duplicate checking against
// already-stored records is the caller's concern.
func (n *Normalizer) NormalizeRow(row domain.RawRow) (domain.Customer, string) {
	return n.normalizeRow(row)
}

func (n *Normalizer) normalizeRow(row domain.RawRow) (domain.Customer, string) {
	if err := validation.ValidateIPAddress(row.IPAddress); err != nil {
		return domain.Customer{}, domain.ReasonInvalidIP
	}

	mask, err := validation.ParseSubnetMask(row.SubnetMask)
	if err != nil {
		return domain.Customer{}, domain.ReasonInvalidMask
	}

	tags, ok := n.catalog[row.ServiceCode]
	if !ok || len(tags) == 0 {
		return domain.Customer{}, domain.ReasonUnknownServiceCode
	}

	return domain.Customer{
		Name:        row.Name,
		IPAddress:   row.IPAddress,
		SubnetMask:  mask,
		ServiceCode: row.ServiceCode,
		Tags:        append([]string(nil), tags...),
		ObjectName:  validation.DeriveObjectName(row.Name, row.IPAddress, mask),
	}, ""
}
