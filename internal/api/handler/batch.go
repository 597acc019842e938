package handler

import (
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/panops/panorama-address-manager/internal/domain"
	"github.com/panops/panorama-address-manager/internal/ingest"
	"github.com/panops/panorama-address-manager/internal/normalize"
	"github.com/panops/panorama-address-manager/internal/service"
	"github.com/panops/panorama-address-manager/internal/storage"
)

// maxUploadSize bounds batch file uploads.
const maxUploadSize = 16 << 20 // 16 MiB

// BatchHandler handles batch endpoints.
type BatchHandler struct {
	store       storage.Storage
	normalizer  *normalize.Normalizer
	pushService *service.PushService
}

// NewBatchHandler creates a new BatchHandler.
func NewBatchHandler(store storage.Storage, normalizer *normalize.Normalizer, pushService *service.PushService) *BatchHandler {
	return &BatchHandler{store: store, normalizer: normalizer, pushService: pushService}
}

// Create creates a new batch. A multipart request carries a CSV or XLSX
// file under the "file" field; a JSON request carries rows inline. A
// JSON request with no rows opens a manual-entry batch.
func (h *BatchHandler) Create(w http.ResponseWriter, r *http.Request) {
	var (
		source string
		rows   []domain.RawRow
		manual bool
	)

	if isMultipart(r) {
		if err := r.ParseMultipartForm(maxUploadSize); err != nil {
			respondError(w, http.StatusBadRequest, "invalid multipart request")
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			respondError(w, http.StatusBadRequest, "file field is required")
			return
		}
		defer file.Close()

		rows, err = ingest.Parse(header.Filename, file)
		if err != nil {
			handleError(w, err)
			return
		}
		source = header.Filename
	} else {
		var req domain.CreateBatchRequest
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		source = req.Source
		if source == "" {
			source = "manual"
		}
		// Inline rows get the same boundary conversions as file rows.
		rows = make([]domain.RawRow, len(req.Rows))
		for i, row := range req.Rows {
			rows[i] = ingest.NormalizeRow(row)
		}
		manual = len(rows) == 0
	}

	now := time.Now()
	batch := &domain.Batch{
		ID:        generateID(),
		Source:    source,
		Status:    domain.BatchStatusCompleted,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if manual {
		batch.Status = domain.BatchStatusOpen
	}

	if err := h.store.CreateBatch(r.Context(), batch); err != nil {
		handleError(w, err)
		return
	}

	accepted, rejected := h.normalizer.Run(rows)
	if err := h.persistResults(r, batch, accepted, rejected); err != nil {
		handleError(w, err)
		return
	}

	report, err := h.report(r, batch.ID)
	if err != nil {
		handleError(w, err)
		return
	}

	if batch.AcceptedCount > 0 {
		h.pushService.TriggerPush()
	}

	respondJSON(w, http.StatusCreated, report)
}

// persistResults stores accepted customers and rejections and updates
// the batch counts, all in one transaction. A record from an earlier
// batch may already own an object name; that row becomes a duplicate
// rejection at its input position rather than failing the batch.
func (h *BatchHandler) persistResults(r *http.Request, batch *domain.Batch, accepted []domain.Customer, rejected []normalize.Rejection) error {
	ctx := r.Context()
	now := time.Now()

	tx, err := h.store.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, rec := range accepted {
		_, err := tx.GetCustomerByObjectName(ctx, rec.ObjectName)
		if err == nil {
			rejected = append(rejected, normalize.Rejection{
				RowNumber: rec.RowNumber,
				Row: domain.RawRow{
					Name:        rec.Name,
					IPAddress:   rec.IPAddress,
					SubnetMask:  strconv.Itoa(rec.SubnetMask),
					ServiceCode: rec.ServiceCode,
				},
				Reason: domain.ReasonDuplicateObjectName,
			})
			continue
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return err
		}

		rec.ID = generateID()
		rec.BatchID = batch.ID
		rec.CreatedAt = now
		rec.UpdatedAt = now
		if err := tx.CreateCustomer(ctx, &rec); err != nil {
			return err
		}
		batch.AcceptedCount++
	}

	// Cross-batch duplicates were appended after the pipeline's own
	// rejections; restore input order for the report.
	sort.Slice(rejected, func(i, j int) bool {
		return rejected[i].RowNumber < rejected[j].RowNumber
	})

	for _, rej := range rejected {
		row := &domain.RejectedRow{
			ID:          generateID(),
			BatchID:     batch.ID,
			RowNumber:   rej.RowNumber,
			Name:        rej.Row.Name,
			IPAddress:   rej.Row.IPAddress,
			SubnetMask:  rej.Row.SubnetMask,
			ServiceCode: rej.Row.ServiceCode,
			Reason:      rej.Reason,
			CreatedAt:   now,
		}
		if err := tx.CreateRejectedRow(ctx, row); err != nil {
			return err
		}
	}
	batch.RejectedCount = len(rejected)

	if err := tx.UpdateBatch(ctx, batch); err != nil {
		return err
	}
	return tx.Commit()
}

// report assembles the validation summary for a batch.
func (h *BatchHandler) report(r *http.Request, batchID string) (*domain.BatchReport, error) {
	ctx := r.Context()

	batch, err := h.store.GetBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}
	rejections, err := h.store.ListRejectedRowsForBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}

	records, err := h.store.ListCustomersForBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}

	report := &domain.BatchReport{
		Batch:    batch,
		Accepted: batch.AcceptedCount,
		Rejected: batch.RejectedCount,
		Records:  records,
	}
	for _, rej := range rejections {
		report.Rejections = append(report.Rejections, domain.RejectionReport{
			RowNumber: rej.RowNumber,
			Name:      rej.Name,
			Reason:    rej.Reason,
		})
	}
	return report, nil
}

// List lists all batches.
func (h *BatchHandler) List(w http.ResponseWriter, r *http.Request) {
	batches, err := h.store.ListBatches(r.Context())
	if err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, batches)
}

// Get returns the validation report for a batch.
func (h *BatchHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "id is required")
		return
	}

	report, err := h.report(r, id)
	if err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, report)
}

// Rejections lists the rejected rows for a batch with their reasons.
func (h *BatchHandler) Rejections(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "id is required")
		return
	}

	if _, err := h.store.GetBatch(r.Context(), id); err != nil {
		handleError(w, err)
		return
	}

	rows, err := h.store.ListRejectedRowsForBatch(r.Context(), id)
	if err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, rows)
}

// Delete deletes a batch and its customers and rejections.
func (h *BatchHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "id is required")
		return
	}

	if err := h.store.DeleteBatch(r.Context(), id); err != nil {
		handleError(w, err)
		return
	}

	h.pushService.TriggerPush()
	w.WriteHeader(http.StatusNoContent)
}

// AddCustomer runs one manually entered row through the pipeline and
// stores it in an open batch.
func (h *BatchHandler) AddCustomer(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "id is required")
		return
	}

	batch, err := h.store.GetBatch(r.Context(), id)
	if err != nil {
		handleError(w, err)
		return
	}
	if batch.Status != domain.BatchStatusOpen {
		handleError(w, domain.ErrBatchClosed)
		return
	}

	var req domain.AddCustomerRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	row := ingest.NormalizeRow(domain.RawRow{
		Name:        req.Name,
		IPAddress:   req.IPAddress,
		SubnetMask:  req.SubnetMask,
		ServiceCode: req.ServiceCode,
	})

	rec, reason := h.normalizer.NormalizeRow(row)
	if reason != "" {
		respondValidationError(w, reasonField(reason), reasonValue(reason, row), reason)
		return
	}

	if _, err := h.store.GetCustomerByObjectName(r.Context(), rec.ObjectName); err == nil {
		respondValidationError(w, "object_name", rec.ObjectName, domain.ReasonDuplicateObjectName)
		return
	} else if !errors.Is(err, domain.ErrNotFound) {
		handleError(w, err)
		return
	}

	now := time.Now()
	rec.ID = generateID()
	rec.BatchID = batch.ID
	rec.RowNumber = batch.AcceptedCount + 1
	rec.CreatedAt = now
	rec.UpdatedAt = now

	if err := h.store.CreateCustomer(r.Context(), &rec); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			respondValidationError(w, "object_name", rec.ObjectName, domain.ReasonDuplicateObjectName)
			return
		}
		handleError(w, err)
		return
	}

	batch.AcceptedCount++
	if err := h.store.UpdateBatch(r.Context(), batch); err != nil {
		handleError(w, err)
		return
	}

	h.pushService.TriggerPush()
	respondJSON(w, http.StatusCreated, &rec)
}

// Complete closes a manual-entry batch.
func (h *BatchHandler) Complete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "id is required")
		return
	}

	batch, err := h.store.GetBatch(r.Context(), id)
	if err != nil {
		handleError(w, err)
		return
	}

	batch.Status = domain.BatchStatusCompleted
	if err := h.store.UpdateBatch(r.Context(), batch); err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, batch)
}

func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data")
}

// reasonField maps a rejection reason to the offending field name.
func reasonField(reason string) string {
	switch reason {
	case domain.ReasonInvalidIP:
		return "ip_address"
	case domain.ReasonInvalidMask:
		return "subnet_mask"
	case domain.ReasonUnknownServiceCode:
		return "service_code"
	default:
		return "object_name"
	}
}

// reasonValue returns the offending value for a rejection reason.
func reasonValue(reason string, row domain.RawRow) string {
	switch reason {
	case domain.ReasonInvalidIP:
		return row.IPAddress
	case domain.ReasonInvalidMask:
		return row.SubnetMask
	case domain.ReasonUnknownServiceCode:
		return row.ServiceCode
	default:
		return row.Name
	}
}
