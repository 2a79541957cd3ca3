package responses

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	pkgerrors "github.com/angelmondragon/gearshare-backend/pkg/errors"
	"github.com/angelmondragon/gearshare-backend/pkg/logger"
)

func TestWriteSuccessStatus(t *testing.T) {
	w := httptest.NewRecorder()
	WriteSuccessStatus(w, http.StatusCreated, map[string]string{"hello": "world"})

	if w.Code != http.StatusCreated {
		t.Fatalf("expected status 201 but got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("unexpected content type %q", ct)
	}
	var body SuccessEnvelope
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode success envelope: %v", err)
	}
	if body.Data.(map[string]any)["hello"] != "world" {
		t.Fatalf("unexpected payload %v", body.Data)
	}
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) APIError {
	t.Helper()
	var body ErrorEnvelope
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error envelope: %v", err)
	}
	return body.Error
}

func TestWriteErrorTooEarlyCarriesDaysRemaining(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(context.Background(), logger.Nop(), w, pkgerrors.TooEarly(3))

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422 but got %d", w.Code)
	}
	apiErr := decodeError(t, w)
	if apiErr.Code != string(pkgerrors.CodeTooEarly) {
		t.Fatalf("unexpected code %s", apiErr.Code)
	}
	details, ok := apiErr.Details.(map[string]any)
	if !ok || details["days_remaining"] != float64(3) {
		t.Fatalf("expected days_remaining detail, got %v", apiErr.Details)
	}
}

func TestWriteErrorKeepsDescriptiveMessage(t *testing.T) {
	w := httptest.NewRecorder()
	err := fmt.Errorf("approve: %w", pkgerrors.New(pkgerrors.CodeForbidden, "only the owner may approve"))
	WriteError(context.Background(), nil, w, err)

	if w.Code != http.StatusForbidden {
		t.Fatalf("expected status 403 but got %d", w.Code)
	}
	apiErr := decodeError(t, w)
	if apiErr.Message != "only the owner may approve" {
		t.Fatalf("unexpected message %q", apiErr.Message)
	}
	if apiErr.Details != nil {
		t.Fatalf("forbidden must not expose details")
	}
}

func TestWriteErrorHidesInfrastructureMessages(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(context.Background(), logger.Nop(), w, pkgerrors.Wrap(pkgerrors.CodeDB, errors.New("relation missing"), "insert booking"))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500 but got %d", w.Code)
	}
	if apiErr := decodeError(t, w); apiErr.Message != "database error" {
		t.Fatalf("unexpected message %q", apiErr.Message)
	}
}

func TestWriteErrorDefaultsToInternalForUntypedErrors(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(context.Background(), nil, w, errors.New("boom"))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500 but got %d", w.Code)
	}
	apiErr := decodeError(t, w)
	if apiErr.Code != string(pkgerrors.CodeInternal) || apiErr.Message == "boom" {
		t.Fatalf("unexpected error payload %+v", apiErr)
	}
}
