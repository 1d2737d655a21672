package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/habitstreak/internal/model"
)

func TestMapAPIErrorToHTTPStatus(t *testing.T) {
	tests := []struct {
		err  *model.APIError
		want int
	}{
		{model.NewAuthRequiredError(), http.StatusUnauthorized},
		{model.NewInvalidCredentialsError(""), http.StatusUnauthorized},
		{model.NewForbiddenError(), http.StatusForbidden},
		{model.NewGoalNotFoundError("g"), http.StatusNotFound},
		{model.NewUserNotFoundError(), http.StatusNotFound},
		{model.NewOrphanNotFoundError(), http.StatusNotFound},
		{model.NewInvalidGoalError("x"), http.StatusBadRequest},
		{model.NewInvalidSignUpError("x"), http.StatusBadRequest},
		{model.NewInvalidRoleError("x"), http.StatusBadRequest},
		{invalidRequestError(), http.StatusBadRequest},
		{model.NewEmailTakenError(), http.StatusConflict},
		{model.NewOAuthFailedError(), http.StatusBadGateway},
		{model.NewProviderError(), http.StatusBadGateway},
		{model.NewStoreUnavailableError(), http.StatusServiceUnavailable},
		{model.NewDirectoryListFailedError(), http.StatusServiceUnavailable},
		{model.NewMergeFailedError(), http.StatusInternalServerError},
		{&model.APIError{Code: "SOMETHING_NEW"}, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := mapAPIErrorToHTTPStatus(tt.err); got != tt.want {
			t.Errorf("%s: status = %d, want %d", tt.err.Code, got, tt.want)
		}
	}
}

func TestWriteAPIErrorResponse_Format(t *testing.T) {
	w := httptest.NewRecorder()
	writeAPIErrorResponse(w, http.StatusNotFound, model.NewGoalNotFoundError("goal-9"))

	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	var got apiErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Code != model.ErrCodeGoalNotFound || got.Category != "goal" || got.Action == "" {
		t.Errorf("response = %+v", got)
	}
	if !containsStr(got.Message, "goal-9") {
		t.Errorf("message = %q, should contain goal id", got.Message)
	}
}

func TestClientToday(t *testing.T) {
	now := time.Date(2026, 12, 31, 20, 0, 0, 0, time.UTC)

	req := httptest.NewRequest(http.MethodGet, "/api/goals?tz=Pacific/Auckland", nil)
	if got := clientToday(req, now); got != "2027-01-01" {
		t.Errorf("Auckland today = %q, want 2027-01-01", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/goals", nil)
	req.Header.Set("X-Timezone", "America/Los_Angeles")
	if got := clientToday(req, now); got != "2026-12-31" {
		t.Errorf("Los Angeles today = %q, want 2026-12-31", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/goals", nil)
	req.Header.Set("X-Client-Date", "2026-13-01")
	if got := clientToday(req, now); got != "2026-12-31" {
		t.Errorf("invalid client date should fall back to UTC, got %q", got)
	}
}

func TestClientLocation(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/goals", nil)
	if _, ok := ClientLocation(req); ok {
		t.Error("no timezone should not resolve")
	}

	req.Header.Set("X-Timezone", "Europe/Berlin")
	loc, ok := ClientLocation(req)
	if !ok || loc.String() != "Europe/Berlin" {
		t.Errorf("ClientLocation = (%v, %v), want Europe/Berlin", loc, ok)
	}
}
