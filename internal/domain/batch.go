package domain

import "time"

// Batch statuses.
const (
	BatchStatusOpen      = "open"
	BatchStatusCompleted = "completed"
)

// Batch groups the records from one upload or manual-entry session.
type Batch struct {
	ID            string    `json:"id" db:"id"`
	Source        string    `json:"source" db:"source"` // file name or "manual"
	Status        string    `json:"status" db:"status"`
	AcceptedCount int       `json:"accepted_count" db:"accepted_count"`
	RejectedCount int       `json:"rejected_count" db:"rejected_count"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// CreateBatchRequest is the JSON request body for creating a batch.
// Rows may be empty for a manual-entry batch that is filled one record
// at a time.
type CreateBatchRequest struct {
	Source string   `json:"source"`
	Rows   []RawRow `json:"rows"`
}

// AddCustomerRequest is the request body for manual entry into a batch.
type AddCustomerRequest struct {
	Name        string `json:"name"`
	IPAddress   string `json:"ip_address"`
	SubnetMask  string `json:"subnet_mask"`
	ServiceCode string `json:"service_code"`
}

// RejectionReport describes one rejected row in a batch report.
type RejectionReport struct {
	RowNumber int    `json:"row_number"`
	Name      string `json:"name"`
	Reason    string `json:"reason"`
}

// BatchReport is the per-batch validation summary returned to callers.
// Records lists the batch's accepted customers in input order; every
// rejected row appears with its recorded reason.
type BatchReport struct {
	Batch      *Batch            `json:"batch"`
	Accepted   int               `json:"accepted"`
	Rejected   int               `json:"rejected"`
	Records    []*Customer       `json:"records"`
	Rejections []RejectionReport `json:"rejections"`
}
