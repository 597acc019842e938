package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/panops/panorama-address-manager/internal/domain"
	"github.com/panops/panorama-address-manager/internal/normalize"
	"github.com/panops/panorama-address-manager/internal/service"
	"github.com/panops/panorama-address-manager/internal/storage"
	"github.com/panops/panorama-address-manager/internal/validation"
)

// CustomerHandler handles customer record endpoints.
type CustomerHandler struct {
	store       storage.Storage
	normalizer  *normalize.Normalizer
	pushService *service.PushService
}

// NewCustomerHandler creates a new CustomerHandler.
func NewCustomerHandler(store storage.Storage, normalizer *normalize.Normalizer, pushService *service.PushService) *CustomerHandler {
	return &CustomerHandler{store: store, normalizer: normalizer, pushService: pushService}
}

// List lists all stored customer records.
func (h *CustomerHandler) List(w http.ResponseWriter, r *http.Request) {
	customers, err := h.store.ListCustomers(r.Context())
	if err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, customers)
}

// Get returns a single customer record.
func (h *CustomerHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "id is required")
		return
	}

	customer, err := h.store.GetCustomer(r.Context(), id)
	if err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, customer)
}

// Update edits a stored record. Changed fields pass through the same
// validation as ingest, and the object name is re-derived so it always
// matches the current name, IP, and mask.
func (h *CustomerHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "id is required")
		return
	}

	customer, err := h.store.GetCustomer(r.Context(), id)
	if err != nil {
		handleError(w, err)
		return
	}

	var req domain.UpdateCustomerRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Name != "" {
		customer.Name = req.Name
	}
	if req.IPAddress != "" {
		customer.IPAddress = req.IPAddress
	}
	if req.SubnetMask != nil {
		customer.SubnetMask = *req.SubnetMask
	}
	if req.ServiceCode != "" {
		customer.ServiceCode = req.ServiceCode
	}

	// Collect every field failure so the caller sees them all at once.
	var verrs validation.ValidationErrors
	if err := validation.ValidateIPAddress(customer.IPAddress); err != nil {
		verrs.Add("ip_address", customer.IPAddress, domain.ReasonInvalidIP)
	}
	if err := validation.ValidatePrefixLength(customer.SubnetMask); err != nil {
		verrs.Add("subnet_mask", strconv.Itoa(customer.SubnetMask), domain.ReasonInvalidMask)
	}
	tags, ok := h.normalizer.Lookup(customer.ServiceCode)
	if !ok {
		verrs.Add("service_code", customer.ServiceCode, domain.ReasonUnknownServiceCode)
	}
	if verrs.HasErrors() {
		respondJSON(w, http.StatusBadRequest, verrs)
		return
	}
	customer.Tags = tags
	customer.ObjectName = validation.DeriveObjectName(customer.Name, customer.IPAddress, customer.SubnetMask)
	customer.UpdatedAt = time.Now()

	if err := h.store.UpdateCustomer(r.Context(), customer); err != nil {
		handleError(w, err)
		return
	}

	h.pushService.TriggerPush()
	respondJSON(w, http.StatusOK, customer)
}

// Delete removes a customer record.
func (h *CustomerHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "id is required")
		return
	}

	if err := h.store.DeleteCustomer(r.Context(), id); err != nil {
		handleError(w, err)
		return
	}

	h.pushService.TriggerPush()
	w.WriteHeader(http.StatusNoContent)
}
