package utils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteJSON(t *testing.T) {
	t.Run("successful write", func(t *testing.T) {
		w := httptest.NewRecorder()
		data := map[string]string{"message": "test"}

		err := WriteJSON(w, http.StatusOK, data)
		require.NoError(t, err)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

		var response map[string]string
		err = json.NewDecoder(w.Body).Decode(&response)
		require.NoError(t, err)
		assert.Equal(t, "test", response["message"])
	})

	t.Run("nil data", func(t *testing.T) {
		w := httptest.NewRecorder()

		err := WriteJSON(w, http.StatusNoContent, nil)
		require.NoError(t, err)

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Empty(t, w.Body.String())
	})
}

func TestWriteMessage(t *testing.T) {
	w := httptest.NewRecorder()

	err := WriteMessage(w, http.StatusCreated, "User registered successfully")
	require.NoError(t, err)

	assert.Equal(t, http.StatusCreated, w.Code)

	var response map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, "User registered successfully", response["message"])
	assert.Len(t, response, 1)
}

func TestWriteOK(t *testing.T) {
	w := httptest.NewRecorder()
	data := map[string]string{"result": "success"}

	err := WriteOK(w, data)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, w.Code)

	var response SuccessResponse
	err = json.NewDecoder(w.Body).Decode(&response)
	require.NoError(t, err)

	dataMap := response.Data.(map[string]interface{})
	assert.Equal(t, "success", dataMap["result"])
}

func TestWriteBadRequest(t *testing.T) {
	w := httptest.NewRecorder()
	details := map[string]interface{}{"email": "invalid format"}

	err := WriteBadRequest(w, "Validation failed", details)
	require.NoError(t, err)

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var response ErrorResponse
	err = json.NewDecoder(w.Body).Decode(&response)
	require.NoError(t, err)

	assert.Equal(t, "Validation failed", response.Error)
	assert.Equal(t, "bad_request", response.Code)
	assert.Equal(t, "invalid format", response.Details["email"])
}

func TestWriteDefaultMessages(t *testing.T) {
	tests := []struct {
		name     string
		write    func(w http.ResponseWriter) error
		status   int
		expected string
	}{
		{
			name:     "unauthorized",
			write:    func(w http.ResponseWriter) error { return WriteUnauthorized(w, "") },
			status:   http.StatusUnauthorized,
			expected: "Authentication required",
		},
		{
			name:     "forbidden",
			write:    func(w http.ResponseWriter) error { return WriteForbidden(w, "") },
			status:   http.StatusForbidden,
			expected: "Access forbidden",
		},
		{
			name:     "not found",
			write:    func(w http.ResponseWriter) error { return WriteNotFound(w, "") },
			status:   http.StatusNotFound,
			expected: "Resource not found",
		},
		{
			name:     "method not allowed",
			write:    func(w http.ResponseWriter) error { return WriteMethodNotAllowed(w, "") },
			status:   http.StatusMethodNotAllowed,
			expected: "Method not allowed",
		},
		{
			name:     "internal error",
			write:    func(w http.ResponseWriter) error { return WriteInternalServerError(w, "") },
			status:   http.StatusInternalServerError,
			expected: "Internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			require.NoError(t, tt.write(w))

			assert.Equal(t, tt.status, w.Code)

			var response ErrorResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
			assert.Equal(t, tt.expected, response.Error)
		})
	}
}

func TestWriteNotFound(t *testing.T) {
	w := httptest.NewRecorder()

	err := WriteNotFound(w, "Event not found")
	require.NoError(t, err)

	var response map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, "Event not found", response["error"])
	assert.Equal(t, "not_found", response["code"])
	assert.NotContains(t, response, "details")
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		name         string
		status       int
		message      string
		expectedCode string
	}{
		{
			name:         "bad request",
			status:       http.StatusBadRequest,
			message:      "Invalid input",
			expectedCode: "bad_request",
		},
		{
			name:         "unauthorized",
			status:       http.StatusUnauthorized,
			message:      "Not authenticated",
			expectedCode: "unauthorized",
		},
		{
			name:         "forbidden",
			status:       http.StatusForbidden,
			message:      "No access",
			expectedCode: "forbidden",
		},
		{
			name:         "not found",
			status:       http.StatusNotFound,
			message:      "Not found",
			expectedCode: "not_found",
		},
		{
			name:         "method not allowed",
			status:       http.StatusMethodNotAllowed,
			message:      "Method not allowed",
			expectedCode: "method_not_allowed",
		},
		{
			name:         "service unavailable",
			status:       http.StatusServiceUnavailable,
			message:      "Down",
			expectedCode: "unavailable",
		},
		{
			name:         "unknown status defaults to internal error",
			status:       http.StatusTeapot,
			message:      "I'm a teapot",
			expectedCode: "internal_error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()

			err := WriteError(w, tt.status, tt.message, nil)
			require.NoError(t, err)

			assert.Equal(t, tt.status, w.Code)

			var response ErrorResponse
			err = json.NewDecoder(w.Body).Decode(&response)
			require.NoError(t, err)

			assert.Equal(t, tt.expectedCode, response.Code)
			assert.Equal(t, tt.message, response.Error)
		})
	}
}
