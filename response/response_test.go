package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, rec *httptest.ResponseRecorder) V1Response {
	var envelope V1Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&envelope))
	return envelope
}

func TestWriteResponse(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/", nil)

	WriteResponse(rec, req, map[string]string{"hello": "world"})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	envelope := decode(t, rec)
	assert.Empty(t, envelope.Messages)
	assert.Equal(t, map[string]interface{}{"hello": "world"}, envelope.Result)
}

func TestWriteError(t *testing.T) {
	t.Run("detail messages take precedence", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/", nil)

		WriteError(rec, req, ErrBadRequest().AddMessages("Value cannot be negative"))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		envelope := decode(t, rec)
		assert.Equal(t, []string{"Value cannot be negative"}, envelope.Messages)
	})

	t.Run("fallback message when no details were added", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/", nil)

		WriteError(rec, req, ErrUnauthorized())

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		envelope := decode(t, rec)
		assert.Equal(t, []string{"Unauthorized"}, envelope.Messages)
	})
}
