package httpx_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrflow/hrflow/internal/platform/httpx"
	"github.com/hrflow/hrflow/internal/shared"
)

func TestRespondErrorMapsSentinels(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("role: %w", shared.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("role name: %w", shared.ErrConflict), http.StatusConflict},
		{fmt.Errorf("bad input: %w", shared.ErrValidation), http.StatusUnprocessableEntity},
		{fmt.Errorf("system role: %w", shared.ErrForbidden), http.StatusForbidden},
		{shared.ErrUnauthorized, http.StatusUnauthorized},
		{shared.ErrInvalidCredentials, http.StatusUnauthorized},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		httpx.RespondError(rec, tc.err)
		assert.Equal(t, tc.status, rec.Code, tc.err.Error())
		assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	}
}

func TestRespondErrorHidesInternalDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	httpx.RespondError(rec, errors.New("dial tcp 10.0.0.1:5432: refused"))

	var body httpx.ProblemDetail
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "Internal Error", body.Title)
	assert.Empty(t, body.Detail)
}

type bindTarget struct {
	Name   string `json:"name" validate:"required"`
	Status string `json:"status" validate:"omitempty,oneof=approved rejected"`
}

func bind(body string) (*httptest.ResponseRecorder, bool) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	var target bindTarget
	return rec, httpx.Bind(rec, req, &target)
}

func TestBind(t *testing.T) {
	rec, ok := bind(`{"name":"Annual"}`)
	assert.True(t, ok)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, ok = bind(`{"name":`)
	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, ok = bind(`{"name":"x","extra":1}`)
	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, ok = bind(`{"status":"pending"}`)
	assert.False(t, ok)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var body httpx.ProblemDetail
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "is required", body.Errors["name"])
	assert.Equal(t, "must be one of: approved rejected", body.Errors["status"])
}

func TestOptionalID(t *testing.T) {
	var body struct {
		A httpx.OptionalID `json:"a"`
		B httpx.OptionalID `json:"b"`
		C httpx.OptionalID `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":7,"b":null}`), &body))
	assert.True(t, body.A.Present)
	require.NotNil(t, body.A.Value)
	assert.Equal(t, int64(7), *body.A.Value)
	assert.True(t, body.B.Present)
	assert.Nil(t, body.B.Value)
	assert.False(t, body.C.Present)

	assert.Error(t, json.Unmarshal([]byte(`{"a":"x"}`), &body))
}
