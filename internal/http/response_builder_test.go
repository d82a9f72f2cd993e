package http

import (
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJSONResponseBuilder(t *testing.T) {
	rec := httptest.NewRecorder()
	err := NewJSONResponse().
		Status(http.StatusCreated).
		Header("X-Custom", "yes").
		Body(map[string]int{"expense_id": 3}).
		Write(rec)

	assert.NoError(t, err)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "yes", rec.Header().Get("X-Custom"))
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"expense_id":3}`, rec.Body.String())
}

func TestJSONResponseBuilderEncodingFailure(t *testing.T) {
	rec := httptest.NewRecorder()
	err := NewJSONResponse().Body(math.Inf(1)).Write(rec)

	assert.Error(t, err)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"error":"internal server error"}`, rec.Body.String())
}

func TestErrorResponses(t *testing.T) {
	tests := []struct {
		builder *JSONResponseBuilder
		status  int
		body    string
	}{
		{BadRequestError("bad"), http.StatusBadRequest, `{"error":"bad"}`},
		{UnprocessableEntityError("Expense incomplete"), http.StatusUnprocessableEntity, `{"error":"Expense incomplete"}`},
		{InternalServerError(), http.StatusInternalServerError, `{"error":"internal server error"}`},
		{TooManyRequestsError(), http.StatusTooManyRequests, `{"error":"rate limit exceeded, retry later"}`},
	}

	for _, tt := range tests {
		rec := httptest.NewRecorder()
		assert.NoError(t, tt.builder.Write(rec))
		assert.Equal(t, tt.status, rec.Code)
		assert.JSONEq(t, tt.body, rec.Body.String())
	}
}
