package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/medstore/medstore/internal/service"
	"go.uber.org/zap"
)

// Every error response carries the standard structure with code and message,
// and the code matches the failure class.
func TestProperty_ErrorResponseStructure(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("All error responses follow standard structure with code, message, and optional details", prop.ForAll(
		func(errorScenario string) bool {
			gin.SetMode(gin.TestMode)
			store := service.NewMedStore(&memorySnapshotRepo{}, zap.NewNop())
			h := NewMedStoreHandler(store, zap.NewNop())
			router := gin.New()
			h.RegisterRoutes(router)

			var req *http.Request
			var expectedCode string
			var expectedStatus int

			switch errorScenario {
			case "invalid_json_add":
				req = httptest.NewRequest("POST", "/api/v1/meds", bytes.NewBufferString("{invalid json"))
				expectedCode = "VALIDATION_ERROR"
				expectedStatus = http.StatusBadRequest

			case "wrong_json_type_add":
				req = httptest.NewRequest("POST", "/api/v1/meds", bytes.NewBufferString(`[1,2,3]`))
				expectedCode = "VALIDATION_ERROR"
				expectedStatus = http.StatusBadRequest

			case "non_numeric_index":
				req = httptest.NewRequest("DELETE", "/api/v1/meds/not-a-number", nil)
				expectedCode = "VALIDATION_ERROR"
				expectedStatus = http.StatusBadRequest

			case "index_out_of_range":
				req = httptest.NewRequest("POST", "/api/v1/meds/7/toggle", bytes.NewBufferString(`{}`))
				expectedCode = "INDEX_OUT_OF_RANGE"
				expectedStatus = http.StatusNotFound

			case "missing_dose_index":
				req = httptest.NewRequest("POST", "/api/v1/meds/0/doses", bytes.NewBufferString(`{}`))
				expectedCode = "VALIDATION_ERROR"
				expectedStatus = http.StatusBadRequest

			case "malformed_updates":
				req = httptest.NewRequest("PUT", "/api/v1/meds/0", bytes.NewBufferString(`{"updates": {"dose": }`))
				expectedCode = "VALIDATION_ERROR"
				expectedStatus = http.StatusBadRequest

			default:
				return true
			}

			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			// Verify status code
			if w.Code != expectedStatus {
				t.Logf("Scenario %s: Expected status code %d, got %d", errorScenario, expectedStatus, w.Code)
				return false
			}

			// Parse response body
			var errorResp ErrorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &errorResp); err != nil {
				t.Logf("Scenario %s: Failed to parse error response: %v, body: %s", errorScenario, err, w.Body.String())
				return false
			}

			// Verify required fields exist
			if errorResp.Code == "" {
				t.Logf("Scenario %s: Error response missing 'code' field", errorScenario)
				return false
			}

			if errorResp.Message == "" {
				t.Logf("Scenario %s: Error response missing 'message' field", errorScenario)
				return false
			}

			// Verify code matches expected
			if errorResp.Code != expectedCode {
				t.Logf("Scenario %s: Expected error code '%s', got '%s'", errorScenario, expectedCode, errorResp.Code)
				return false
			}

			return true
		},
		gen.OneConstOf(
			"invalid_json_add",
			"wrong_json_type_add",
			"non_numeric_index",
			"index_out_of_range",
			"missing_dose_index",
			"malformed_updates",
		),
	))

	properties.TestingRun(t)
}

// Out-of-range indices never mutate the store, whatever the operation.
func TestProperty_OutOfRangeIsNoOp(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("operations on bad indices leave the store unchanged", prop.ForAll(
		func(size int, badOffset int, op string) bool {
			gin.SetMode(gin.TestMode)
			store := service.NewMedStore(&memorySnapshotRepo{}, zap.NewNop())
			h := NewMedStoreHandler(store, zap.NewNop())
			router := gin.New()
			h.RegisterRoutes(router)

			for i := 0; i < size; i++ {
				w := doJSON(t, router, http.MethodPost, "/api/v1/meds", `{"med_data": {"timing": ["08:00"]}}`)
				if w.Code != http.StatusOK {
					return false
				}
			}

			badIndex := size + badOffset
			path := "/api/v1/meds/" + strconv.Itoa(badIndex)
			var req *http.Request
			switch op {
			case "delete":
				req = httptest.NewRequest("DELETE", path, nil)
			case "update":
				req = httptest.NewRequest("PUT", path, bytes.NewBufferString(`{"updates": {"name": "x"}}`))
			case "toggle":
				req = httptest.NewRequest("POST", path+"/toggle", bytes.NewBufferString(`{}`))
			case "take_dose":
				req = httptest.NewRequest("POST", path+"/doses", bytes.NewBufferString(`{"dose_index": 0}`))
			case "add_refill":
				req = httptest.NewRequest("POST", path+"/refills", bytes.NewBufferString(`{}`))
			}
			req.Header.Set("Content-Type", "application/json")

			stateBefore := getState(t, router)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != http.StatusNotFound {
				t.Logf("op %s at index %d: expected 404, got %d", op, badIndex, w.Code)
				return false
			}

			stateAfter := getState(t, router)
			if stateAfter.State != stateBefore.State {
				return false
			}
			for i := range stateAfter.Attributes.Meds {
				if stateAfter.Attributes.Meds[i].Name != stateBefore.Attributes.Meds[i].Name {
					return false
				}
			}
			return true
		},
		gen.IntRange(0, 5),
		gen.IntRange(0, 10),
		gen.OneConstOf("delete", "update", "toggle", "take_dose", "add_refill"),
	))

	properties.TestingRun(t)
}
