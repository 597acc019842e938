package api_test

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/panops/panorama-address-manager/internal/api"
	"github.com/panops/panorama-address-manager/internal/domain"
	"github.com/panops/panorama-address-manager/internal/normalize"
	"github.com/panops/panorama-address-manager/internal/panorama"
	"github.com/panops/panorama-address-manager/internal/service"
	"github.com/panops/panorama-address-manager/internal/storage/memory"
)

// testServer creates a test server with in-memory storage and a file
// shim in place of a real device.
type testServer struct {
	handler      http.Handler
	store        *memory.Store
	shim         *panorama.FileShim
	bootstrapKey string
}

func newTestServer() *testServer {
	store := memory.New()
	shim := panorama.NewFileShim("")
	bootstrapKey := "test-bootstrap-key"

	pushService := service.NewPushService(store, shim, "branch-firewalls", 5*time.Second, false)
	handler := api.NewRouter(store, normalize.New(nil), pushService, bootstrapKey)

	return &testServer{
		handler:      handler,
		store:        store,
		shim:         shim,
		bootstrapKey: bootstrapKey,
	}
}

func (ts *testServer) request(method, path string, body any, apiKey string) *httptest.ResponseRecorder {
	var reqBody io.Reader
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		reqBody = bytes.NewReader(jsonBytes)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	return rr
}

// upload posts a multipart file to the batch endpoint.
func (ts *testServer) upload(filename, content, apiKey string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, _ := mw.CreateFormFile("file", filename)
	_, _ = io.WriteString(fw, content)
	_ = mw.Close()

	req := httptest.NewRequest("POST", "/api/v1/batches", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	return rr
}

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer()

	rr := ts.request("GET", "/health", nil, "")

	if rr.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rr.Code)
	}

	var resp map[string]string
	_ = json.Unmarshal(rr.Body.Bytes(), &resp)
	if resp["status"] != "ok" {
		t.Errorf("Expected status ok, got %s", resp["status"])
	}
}

func TestAuthRequired(t *testing.T) {
	ts := newTestServer()

	// Request without auth header
	rr := ts.request("GET", "/api/v1/customers", nil, "")
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", rr.Code)
	}

	// Request with invalid auth header format
	req := httptest.NewRequest("GET", "/api/v1/customers", nil)
	req.Header.Set("Authorization", "Basic invalid")
	rr = httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", rr.Code)
	}

	// Request with a key that matches nothing
	rr = ts.request("GET", "/api/v1/customers", nil, "invalid-key")
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", rr.Code)
	}
}

func TestBootstrapKeyAuth(t *testing.T) {
	ts := newTestServer()

	// Bootstrap key works while no API keys exist
	rr := ts.request("GET", "/api/v1/customers", nil, ts.bootstrapKey)
	if rr.Code != http.StatusOK {
		t.Errorf("Expected status 200 with bootstrap key, got %d", rr.Code)
	}
}

func TestAPIKeyLifecycle(t *testing.T) {
	ts := newTestServer()

	createReq := domain.CreateAPIKeyRequest{Name: "Test Key"}
	rr := ts.request("POST", "/api/v1/keys", createReq, ts.bootstrapKey)
	if rr.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}

	var createResp domain.CreateAPIKeyResponse
	_ = json.Unmarshal(rr.Body.Bytes(), &createResp)
	if createResp.Key == "" {
		t.Error("Expected key to be returned on creation")
	}
	if !strings.HasPrefix(createResp.Key, "pam_") {
		t.Errorf("Expected key with pam_ prefix, got %s", createResp.Key)
	}

	// Use the new API key
	rr = ts.request("GET", "/api/v1/customers", nil, createResp.Key)
	if rr.Code != http.StatusOK {
		t.Errorf("Expected status 200 with new API key, got %d", rr.Code)
	}

	// Bootstrap key stops working once a real key exists
	rr = ts.request("GET", "/api/v1/customers", nil, ts.bootstrapKey)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401 for bootstrap key after key creation, got %d", rr.Code)
	}

	// List keys
	rr = ts.request("GET", "/api/v1/keys", nil, createResp.Key)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	var keys []*domain.APIKey
	_ = json.Unmarshal(rr.Body.Bytes(), &keys)
	if len(keys) != 1 {
		t.Errorf("Expected 1 key, got %d", len(keys))
	}

	// Delete the key
	rr = ts.request("DELETE", "/api/v1/keys/"+createResp.ID, nil, createResp.Key)
	if rr.Code != http.StatusNoContent {
		t.Errorf("Expected status 204, got %d", rr.Code)
	}
}

func TestBatchUploadCSV(t *testing.T) {
	ts := newTestServer()

	csv := "CustomerName,CustomerIPAddress,IPSubnetMask,ServiceCode\n" +
		"Family Mart,192.168.1.1,24,RETAIL\n" +
		"Sam's Club,10.0.0.1,255.255.255.0,WHOLESALE\n" +
		"Broken,999.1.1.1,24,RETAIL\n"

	rr := ts.upload("customers.csv", csv, ts.bootstrapKey)
	if rr.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}

	var report domain.BatchReport
	_ = json.Unmarshal(rr.Body.Bytes(), &report)
	if report.Accepted != 2 {
		t.Errorf("Expected 2 accepted, got %d", report.Accepted)
	}
	if report.Rejected != 1 {
		t.Errorf("Expected 1 rejected, got %d", report.Rejected)
	}
	if len(report.Rejections) != 1 {
		t.Fatalf("Expected 1 rejection entry, got %d", len(report.Rejections))
	}
	if report.Rejections[0].Reason != domain.ReasonInvalidIP {
		t.Errorf("Expected reason %s, got %s", domain.ReasonInvalidIP, report.Rejections[0].Reason)
	}
	if report.Rejections[0].RowNumber != 3 {
		t.Errorf("Expected rejection at row 3, got %d", report.Rejections[0].RowNumber)
	}
	if report.Batch.Source != "customers.csv" {
		t.Errorf("Expected source customers.csv, got %s", report.Batch.Source)
	}
	if len(report.Records) != 2 || report.Records[0].ObjectName != "familymart_192.168.1.1_24" {
		t.Errorf("Expected accepted records in the report in input order, got %+v", report.Records)
	}

	// The accepted records are visible
	rr = ts.request("GET", "/api/v1/customers", nil, ts.bootstrapKey)
	var customers []*domain.Customer
	_ = json.Unmarshal(rr.Body.Bytes(), &customers)
	if len(customers) != 2 {
		t.Fatalf("Expected 2 customers, got %d", len(customers))
	}
	if customers[0].ObjectName != "familymart_192.168.1.1_24" {
		t.Errorf("Expected object name familymart_192.168.1.1_24, got %s", customers[0].ObjectName)
	}
	if customers[1].ObjectName != "samsclub_10.0.0.1_24" {
		t.Errorf("Expected object name samsclub_10.0.0.1_24, got %s", customers[1].ObjectName)
	}
}

func TestBatchUploadMalformedCSV(t *testing.T) {
	ts := newTestServer()

	// Short row aborts the whole batch
	csv := "CustomerName,CustomerIPAddress,IPSubnetMask,ServiceCode\n" +
		"Family Mart,192.168.1.1,24\n"

	rr := ts.upload("customers.csv", csv, ts.bootstrapKey)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for malformed batch, got %d", rr.Code)
	}

	rr = ts.upload("customers.pdf", "junk", ts.bootstrapKey)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for unsupported format, got %d", rr.Code)
	}
}

func TestBatchCreateJSON(t *testing.T) {
	ts := newTestServer()

	// Inline rows pass through the same boundary conversions as file
	// rows: dotted-quad and slash masks, lowercase service codes.
	req := domain.CreateBatchRequest{
		Source: "api",
		Rows: []domain.RawRow{
			{Name: "Family Mart", IPAddress: "192.168.1.1", SubnetMask: "24", ServiceCode: "RETAIL"},
			{Name: "Sam's Club", IPAddress: "10.0.0.1", SubnetMask: "255.255.255.0", ServiceCode: "wholesale"},
			{Name: "Corner Shop", IPAddress: "10.1.2.3", SubnetMask: "/24", ServiceCode: "SMB"},
		},
	}
	rr := ts.request("POST", "/api/v1/batches", req, ts.bootstrapKey)
	if rr.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}

	var report domain.BatchReport
	_ = json.Unmarshal(rr.Body.Bytes(), &report)
	if report.Accepted != 3 || report.Rejected != 0 {
		t.Errorf("Expected 3 accepted and 0 rejected, got %d and %d", report.Accepted, report.Rejected)
	}
	if report.Batch.Status != domain.BatchStatusCompleted {
		t.Errorf("Expected completed batch, got %s", report.Batch.Status)
	}
	if len(report.Records) != 3 {
		t.Fatalf("Expected 3 records in the report, got %d", len(report.Records))
	}
	if report.Records[1].ObjectName != "samsclub_10.0.0.1_24" {
		t.Errorf("Expected dotted-quad mask converted, got %s", report.Records[1].ObjectName)
	}
	if report.Records[2].SubnetMask != 24 {
		t.Errorf("Expected slash mask converted to 24, got %d", report.Records[2].SubnetMask)
	}
	if report.Records[1].ServiceCode != "WHOLESALE" {
		t.Errorf("Expected service code uppercased, got %s", report.Records[1].ServiceCode)
	}
}

func TestCrossBatchDuplicateRejected(t *testing.T) {
	ts := newTestServer()

	req := domain.CreateBatchRequest{
		Source: "first",
		Rows: []domain.RawRow{
			{Name: "Family Mart", IPAddress: "192.168.1.1", SubnetMask: "24", ServiceCode: "RETAIL"},
		},
	}
	rr := ts.request("POST", "/api/v1/batches", req, ts.bootstrapKey)
	if rr.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d", rr.Code)
	}

	// Same record again in a second batch
	req.Source = "second"
	rr = ts.request("POST", "/api/v1/batches", req, ts.bootstrapKey)
	if rr.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}

	var report domain.BatchReport
	_ = json.Unmarshal(rr.Body.Bytes(), &report)
	if report.Accepted != 0 {
		t.Errorf("Expected 0 accepted, got %d", report.Accepted)
	}
	if report.Rejected != 1 {
		t.Fatalf("Expected 1 rejected, got %d", report.Rejected)
	}
	if report.Rejections[0].Reason != domain.ReasonDuplicateObjectName {
		t.Errorf("Expected reason %s, got %s", domain.ReasonDuplicateObjectName, report.Rejections[0].Reason)
	}
	// The rejection keeps the row's input position.
	if report.Rejections[0].RowNumber != 1 {
		t.Errorf("Expected rejection at row 1, got %d", report.Rejections[0].RowNumber)
	}
}

func TestManualEntry(t *testing.T) {
	ts := newTestServer()

	// Open a manual batch
	rr := ts.request("POST", "/api/v1/batches", domain.CreateBatchRequest{}, ts.bootstrapKey)
	if rr.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var report domain.BatchReport
	_ = json.Unmarshal(rr.Body.Bytes(), &report)
	if report.Batch.Status != domain.BatchStatusOpen {
		t.Fatalf("Expected open batch, got %s", report.Batch.Status)
	}
	batchID := report.Batch.ID

	// Add a record; slash mask form is accepted at the boundary
	add := domain.AddCustomerRequest{
		Name: "Corner Shop", IPAddress: "10.1.2.3", SubnetMask: "/24", ServiceCode: "SMB",
	}
	rr = ts.request("POST", "/api/v1/batches/"+batchID+"/customers", add, ts.bootstrapKey)
	if rr.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var customer domain.Customer
	_ = json.Unmarshal(rr.Body.Bytes(), &customer)
	if customer.ObjectName != "cornershop_10.1.2.3_24" {
		t.Errorf("Expected object name cornershop_10.1.2.3_24, got %s", customer.ObjectName)
	}

	// Invalid rows are rejected with a field error
	bad := domain.AddCustomerRequest{
		Name: "Bad", IPAddress: "999.1.1.1", SubnetMask: "24", ServiceCode: "SMB",
	}
	rr = ts.request("POST", "/api/v1/batches/"+batchID+"/customers", bad, ts.bootstrapKey)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rr.Code)
	}

	// Duplicate of a stored record is rejected
	rr = ts.request("POST", "/api/v1/batches/"+batchID+"/customers", add, ts.bootstrapKey)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for duplicate, got %d", rr.Code)
	}

	// Close the batch; further entry is refused
	rr = ts.request("POST", "/api/v1/batches/"+batchID+"/complete", nil, ts.bootstrapKey)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	late := domain.AddCustomerRequest{
		Name: "Late", IPAddress: "10.9.9.9", SubnetMask: "24", ServiceCode: "SMB",
	}
	rr = ts.request("POST", "/api/v1/batches/"+batchID+"/customers", late, ts.bootstrapKey)
	if rr.Code != http.StatusConflict {
		t.Errorf("Expected status 409 for closed batch, got %d", rr.Code)
	}
}

func TestBatchRejectionsEndpoint(t *testing.T) {
	ts := newTestServer()

	req := domain.CreateBatchRequest{
		Source: "api",
		Rows: []domain.RawRow{
			{Name: "Bad IP", IPAddress: "300.1.1.1", SubnetMask: "24", ServiceCode: "RETAIL"},
			{Name: "Bad Mask", IPAddress: "10.0.0.1", SubnetMask: "64", ServiceCode: "RETAIL"},
		},
	}
	rr := ts.request("POST", "/api/v1/batches", req, ts.bootstrapKey)
	var report domain.BatchReport
	_ = json.Unmarshal(rr.Body.Bytes(), &report)

	rr = ts.request("GET", "/api/v1/batches/"+report.Batch.ID+"/rejections", nil, ts.bootstrapKey)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}

	var rows []*domain.RejectedRow
	_ = json.Unmarshal(rr.Body.Bytes(), &rows)
	if len(rows) != 2 {
		t.Fatalf("Expected 2 rejected rows, got %d", len(rows))
	}
	if rows[0].Reason != domain.ReasonInvalidIP || rows[1].Reason != domain.ReasonInvalidMask {
		t.Errorf("Wrong reasons: %s, %s", rows[0].Reason, rows[1].Reason)
	}
	// The original input values are preserved for reporting
	if rows[0].IPAddress != "300.1.1.1" {
		t.Errorf("Expected original IP preserved, got %s", rows[0].IPAddress)
	}
}

func TestBatchDeleteRemovesCustomers(t *testing.T) {
	ts := newTestServer()

	req := domain.CreateBatchRequest{
		Source: "api",
		Rows: []domain.RawRow{
			{Name: "Family Mart", IPAddress: "192.168.1.1", SubnetMask: "24", ServiceCode: "RETAIL"},
		},
	}
	rr := ts.request("POST", "/api/v1/batches", req, ts.bootstrapKey)
	var report domain.BatchReport
	_ = json.Unmarshal(rr.Body.Bytes(), &report)

	rr = ts.request("DELETE", "/api/v1/batches/"+report.Batch.ID, nil, ts.bootstrapKey)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("Expected status 204, got %d", rr.Code)
	}

	rr = ts.request("GET", "/api/v1/customers", nil, ts.bootstrapKey)
	var customers []*domain.Customer
	_ = json.Unmarshal(rr.Body.Bytes(), &customers)
	if len(customers) != 0 {
		t.Errorf("Expected no customers after batch delete, got %d", len(customers))
	}

	rr = ts.request("GET", "/api/v1/batches/"+report.Batch.ID, nil, ts.bootstrapKey)
	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 for deleted batch, got %d", rr.Code)
	}
}

func TestCustomerUpdateRederivesObjectName(t *testing.T) {
	ts := newTestServer()

	req := domain.CreateBatchRequest{
		Source: "api",
		Rows: []domain.RawRow{
			{Name: "Family Mart", IPAddress: "192.168.1.1", SubnetMask: "24", ServiceCode: "RETAIL"},
		},
	}
	rr := ts.request("POST", "/api/v1/batches", req, ts.bootstrapKey)
	if rr.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d", rr.Code)
	}

	rr = ts.request("GET", "/api/v1/customers", nil, ts.bootstrapKey)
	var customers []*domain.Customer
	_ = json.Unmarshal(rr.Body.Bytes(), &customers)
	if len(customers) != 1 {
		t.Fatalf("Expected 1 customer, got %d", len(customers))
	}
	id := customers[0].ID

	update := domain.UpdateCustomerRequest{IPAddress: "192.168.1.2", ServiceCode: "GOV"}
	rr = ts.request("PUT", "/api/v1/customers/"+id, update, ts.bootstrapKey)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var updated domain.Customer
	_ = json.Unmarshal(rr.Body.Bytes(), &updated)
	if updated.ObjectName != "familymart_192.168.1.2_24" {
		t.Errorf("Expected re-derived object name familymart_192.168.1.2_24, got %s", updated.ObjectName)
	}
	if len(updated.Tags) != 2 || updated.Tags[0] != "Government" {
		t.Errorf("Expected GOV tags, got %v", updated.Tags)
	}

	// Invalid updates are refused
	badUpdate := domain.UpdateCustomerRequest{IPAddress: "999.1.1.1"}
	rr = ts.request("PUT", "/api/v1/customers/"+id, badUpdate, ts.bootstrapKey)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for invalid IP, got %d", rr.Code)
	}

	// Every failing field is reported in one response
	mask := 40
	multiBad := domain.UpdateCustomerRequest{IPAddress: "999.1.1.1", SubnetMask: &mask, ServiceCode: "NOPE"}
	rr = ts.request("PUT", "/api/v1/customers/"+id, multiBad, ts.bootstrapKey)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("Expected status 400, got %d", rr.Code)
	}
	var fieldErrors []map[string]string
	_ = json.Unmarshal(rr.Body.Bytes(), &fieldErrors)
	if len(fieldErrors) != 3 {
		t.Fatalf("Expected 3 field errors, got %d: %s", len(fieldErrors), rr.Body.String())
	}
	if fieldErrors[0]["field"] != "ip_address" || fieldErrors[0]["message"] != domain.ReasonInvalidIP {
		t.Errorf("First field error wrong: %+v", fieldErrors[0])
	}
	if fieldErrors[1]["field"] != "subnet_mask" || fieldErrors[2]["field"] != "service_code" {
		t.Errorf("Field errors wrong: %+v", fieldErrors)
	}
}

func TestCustomerDelete(t *testing.T) {
	ts := newTestServer()

	req := domain.CreateBatchRequest{
		Source: "api",
		Rows: []domain.RawRow{
			{Name: "Family Mart", IPAddress: "192.168.1.1", SubnetMask: "24", ServiceCode: "RETAIL"},
		},
	}
	rr := ts.request("POST", "/api/v1/batches", req, ts.bootstrapKey)
	if rr.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d", rr.Code)
	}

	rr = ts.request("GET", "/api/v1/customers", nil, ts.bootstrapKey)
	var customers []*domain.Customer
	_ = json.Unmarshal(rr.Body.Bytes(), &customers)
	id := customers[0].ID

	rr = ts.request("DELETE", "/api/v1/customers/"+id, nil, ts.bootstrapKey)
	if rr.Code != http.StatusNoContent {
		t.Errorf("Expected status 204, got %d", rr.Code)
	}

	rr = ts.request("GET", "/api/v1/customers/"+id, nil, ts.bootstrapKey)
	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", rr.Code)
	}
}

func TestExportArtifact(t *testing.T) {
	ts := newTestServer()

	req := domain.CreateBatchRequest{
		Source: "api",
		Rows: []domain.RawRow{
			{Name: "Family Mart", IPAddress: "192.168.1.1", SubnetMask: "24", ServiceCode: "RETAIL"},
		},
	}
	rr := ts.request("POST", "/api/v1/batches", req, ts.bootstrapKey)
	if rr.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d", rr.Code)
	}

	rr = ts.request("GET", "/api/v1/export", nil, ts.bootstrapKey)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/x-yaml" {
		t.Errorf("Expected application/x-yaml, got %s", ct)
	}

	body := rr.Body.String()
	for _, want := range []string{
		"customers:",
		"CustomerName: Family Mart",
		"CustomerIPAddress: 192.168.1.1",
		"IPSubnetMask: 24",
		"ObjectName: familymart_192.168.1.1_24",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("Export missing %q:\n%s", want, body)
		}
	}
}

func TestPushFlow(t *testing.T) {
	ts := newTestServer()

	req := domain.CreateBatchRequest{
		Source: "api",
		Rows: []domain.RawRow{
			{Name: "Family Mart", IPAddress: "192.168.1.1", SubnetMask: "24", ServiceCode: "RETAIL"},
		},
	}
	rr := ts.request("POST", "/api/v1/batches", req, ts.bootstrapKey)
	if rr.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d", rr.Code)
	}

	// Preview shows the artifact without touching the device
	rr = ts.request("GET", "/api/v1/push/preview", nil, ts.bootstrapKey)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	if len(ts.shim.Calls()) != 0 {
		t.Errorf("Expected no device calls from preview, got %v", ts.shim.Calls())
	}

	// Sync pushes
	rr = ts.request("POST", "/api/v1/push/sync", nil, ts.bootstrapKey)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp domain.PushResponse
	_ = json.Unmarshal(rr.Body.Bytes(), &resp)
	if resp.Status != domain.PushStatusSuccess {
		t.Fatalf("Expected success, got %s (stage %s: %s)", resp.Status, resp.Stage, resp.Error)
	}
	if resp.VersionNumber != 1 {
		t.Errorf("Expected version 1, got %d", resp.VersionNumber)
	}

	calls := ts.shim.Calls()
	want := []string{"ensure_addresses", "commit", "push"}
	if len(calls) != 3 || calls[0] != want[0] || calls[1] != want[1] || calls[2] != want[2] {
		t.Errorf("Expected stage order %v, got %v", want, calls)
	}

	// Versions lists the push
	rr = ts.request("GET", "/api/v1/push/versions", nil, ts.bootstrapKey)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	var versions []*domain.PushVersion
	_ = json.Unmarshal(rr.Body.Bytes(), &versions)
	if len(versions) != 1 {
		t.Fatalf("Expected 1 version, got %d", len(versions))
	}

	// Redeploy the recorded version
	rr = ts.request("POST", "/api/v1/push/redeploy/"+resp.VersionID, nil, ts.bootstrapKey)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var redeploy domain.PushResponse
	_ = json.Unmarshal(rr.Body.Bytes(), &redeploy)
	if redeploy.VersionNumber != 2 {
		t.Errorf("Expected redeploy version 2, got %d", redeploy.VersionNumber)
	}
}

func TestPushVersionsPagination(t *testing.T) {
	ts := newTestServer()

	rr := ts.request("GET", "/api/v1/push/versions?limit=0", nil, ts.bootstrapKey)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for limit=0, got %d", rr.Code)
	}

	rr = ts.request("GET", "/api/v1/push/versions?limit=500", nil, ts.bootstrapKey)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for limit=500, got %d", rr.Code)
	}

	rr = ts.request("GET", "/api/v1/push/versions?offset=-1", nil, ts.bootstrapKey)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for negative offset, got %d", rr.Code)
	}

	rr = ts.request("GET", "/api/v1/push/versions?limit=5&offset=0", nil, ts.bootstrapKey)
	if rr.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rr.Code)
	}
}
