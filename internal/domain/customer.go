package domain

import (
	"strings"
	"time"
)

// Customer is a validated customer network record. ObjectName is derived
// from the name, IP, and mask and is unique across all stored customers.
// RowNumber is the record's 1-based position in its batch's input and
// orders records within a batch.
type Customer struct {
	ID          string    `json:"id" db:"id"`
	BatchID     string    `json:"batch_id" db:"batch_id"`
	RowNumber   int       `json:"row_number" db:"row_number"`
	Name        string    `json:"name" db:"name"`
	IPAddress   string    `json:"ip_address" db:"ip_address"`
	SubnetMask  int       `json:"subnet_mask" db:"subnet_mask"`
	ServiceCode string    `json:"service_code" db:"service_code"`
	Tags        []string  `json:"tags" db:"-"`
	TagsRaw     string    `json:"-" db:"tags"` // comma-joined for storage
	ObjectName  string    `json:"object_name" db:"object_name"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// PackTags fills TagsRaw from Tags before storage.
func (c *Customer) PackTags() {
	c.TagsRaw = strings.Join(c.Tags, ",")
}

// UnpackTags fills Tags from TagsRaw after loading.
func (c *Customer) UnpackTags() {
	if c.TagsRaw == "" {
		c.Tags = nil
		return
	}
	c.Tags = strings.Split(c.TagsRaw, ",")
}

// RawRow is one unvalidated input row as it leaves the parsing boundary.
// Fields are already typed; the pipeline only checks values.
type RawRow struct {
	Name        string `json:"name"`
	IPAddress   string `json:"ip_address"`
	SubnetMask  string `json:"subnet_mask"`
	ServiceCode string `json:"service_code"`
}

// Rejection reasons recorded for rows that fail validation.
const (
	ReasonInvalidIP           = "invalid_ip"
	ReasonInvalidMask         = "invalid_mask"
	ReasonUnknownServiceCode  = "unknown_service_code"
	ReasonDuplicateObjectName = "duplicate_object_name"
)

// RejectedRow is an input row that failed validation, kept for reporting.
type RejectedRow struct {
	ID          string    `json:"id" db:"id"`
	BatchID     string    `json:"batch_id" db:"batch_id"`
	RowNumber   int       `json:"row_number" db:"row_number"`
	Name        string    `json:"name" db:"name"`
	IPAddress   string    `json:"ip_address" db:"ip_address"`
	SubnetMask  string    `json:"subnet_mask" db:"subnet_mask"`
	ServiceCode string    `json:"service_code" db:"service_code"`
	Reason      string    `json:"reason" db:"reason"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// UpdateCustomerRequest is the request body for updating a customer.
// Zero-valued fields keep their current value.
type UpdateCustomerRequest struct {
	Name        string `json:"name,omitempty"`
	IPAddress   string `json:"ip_address,omitempty"`
	SubnetMask  *int   `json:"subnet_mask,omitempty"`
	ServiceCode string `json:"service_code,omitempty"`
}
