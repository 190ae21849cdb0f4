package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MarcoPoloResearchLab/daybook/internal/notes"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type stubNotesStore struct {
	guest      notes.Guest
	notes      []notes.Note
	note       notes.Note
	err        error
	rangeCalls int
	lastGuest  int64
	lastNoteID notes.NoteID
}

func (s *stubNotesStore) AddGuest(ctx context.Context) (notes.Guest, error) {
	return s.guest, s.err
}

func (s *stubNotesStore) GetNotesInRange(ctx context.Context, start, end notes.Date, guestID int64) ([]notes.Note, error) {
	s.rangeCalls++
	s.lastGuest = guestID
	return s.notes, s.err
}

func (s *stubNotesStore) AddNote(ctx context.Context, date notes.Date, content string, guestID int64) (notes.Note, error) {
	s.lastGuest = guestID
	return s.note, s.err
}

func (s *stubNotesStore) UpdateNote(ctx context.Context, id notes.NoteID, date notes.Date, content string) (notes.Note, error) {
	s.lastNoteID = id
	return s.note, s.err
}

func (s *stubNotesStore) DeleteNote(ctx context.Context, id notes.NoteID) (notes.Note, error) {
	s.lastNoteID = id
	return s.note, s.err
}

func newTestContext(method, target, body string) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	context, _ := gin.CreateTestContext(recorder)
	var request *http.Request
	if body == "" {
		request = httptest.NewRequest(method, target, http.NoBody)
	} else {
		request = httptest.NewRequest(method, target, strings.NewReader(body))
		request.Header.Set("Content-Type", "application/json")
	}
	context.Request = request
	return context, recorder
}

func decodeErrorPayload(testContext *testing.T, recorder *httptest.ResponseRecorder) map[string]any {
	testContext.Helper()
	var payload map[string]any
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		testContext.Fatalf("failed to decode payload: %v", err)
	}
	return payload
}

func TestHandleListNotesValidationFailures(testContext *testing.T) {
	testCases := []struct {
		name   string
		target string
	}{
		{name: "missing-start", target: "/api/notes?end=2024-01-31&guest_id=1"},
		{name: "missing-end", target: "/api/notes?start=2024-01-01&guest_id=1"},
		{name: "missing-guest", target: "/api/notes?start=2024-01-01&end=2024-01-31"},
		{name: "non-integer-guest", target: "/api/notes?start=2024-01-01&end=2024-01-31&guest_id=abc"},
		{name: "empty-guest", target: "/api/notes?start=2024-01-01&end=2024-01-31&guest_id="},
		{name: "oversized-guest", target: "/api/notes?start=2024-01-01&end=2024-01-31&guest_id=99999999999"},
		{name: "malformed-start", target: "/api/notes?start=01/01/2024&end=2024-01-31&guest_id=1"},
		{name: "malformed-end", target: "/api/notes?start=2024-01-01&end=2024-1-31&guest_id=1"},
	}

	for _, testCase := range testCases {
		testContext.Run(testCase.name, func(testContext *testing.T) {
			context, recorder := newTestContext(http.MethodGet, testCase.target, "")
			store := &stubNotesStore{}
			handler := &httpHandler{store: store, logger: zap.NewNop()}

			handler.handleListNotes(context)

			if recorder.Code != http.StatusBadRequest {
				testContext.Fatalf("unexpected status: got %d want %d", recorder.Code, http.StatusBadRequest)
			}
			if payload := decodeErrorPayload(testContext, recorder); payload["error"] != "invalid_request" {
				testContext.Fatalf("unexpected error payload %v", payload)
			}
			if store.rangeCalls != 0 {
				testContext.Fatalf("store should not be called on invalid input")
			}
		})
	}
}

func TestHandleListNotesReturnsEmptyArray(testContext *testing.T) {
	context, recorder := newTestContext(http.MethodGet, "/api/notes?start=2024-01-01&end=2024-01-31&guest_id=7", "")
	store := &stubNotesStore{}
	handler := &httpHandler{store: store, logger: zap.NewNop()}

	handler.handleListNotes(context)

	if recorder.Code != http.StatusOK {
		testContext.Fatalf("unexpected status %d", recorder.Code)
	}
	if recorder.Body.String() != "[]" {
		testContext.Fatalf("expected empty array, got %s", recorder.Body.String())
	}
	if store.lastGuest != 7 {
		testContext.Fatalf("expected guest id 7 to reach the store, got %d", store.lastGuest)
	}
}

func TestHandleAddNoteValidationFailures(testContext *testing.T) {
	testCases := []struct {
		name string
		body string
	}{
		{name: "empty-body", body: `{}`},
		{name: "missing-date", body: `{"content":"hi","guest_id":1}`},
		{name: "missing-content", body: `{"date":"2024-01-10","guest_id":1}`},
		{name: "missing-guest", body: `{"date":"2024-01-10","content":"hi"}`},
		{name: "malformed-date", body: `{"date":"2024/01/10","content":"hi","guest_id":1}`},
		{name: "timestamp-date", body: `{"date":"2024-01-10T00:00:00Z","content":"hi","guest_id":1}`},
		{name: "string-guest", body: `{"date":"2024-01-10","content":"hi","guest_id":"one"}`},
		{name: "oversized-guest", body: `{"date":"2024-01-10","content":"hi","guest_id":99999999999}`},
		{name: "not-json", body: `date=2024-01-10`},
	}

	for _, testCase := range testCases {
		testContext.Run(testCase.name, func(testContext *testing.T) {
			context, recorder := newTestContext(http.MethodPost, "/api/notes", testCase.body)
			handler := &httpHandler{store: &stubNotesStore{}, logger: zap.NewNop()}

			handler.handleAddNote(context)

			if recorder.Code != http.StatusBadRequest {
				testContext.Fatalf("unexpected status: got %d want %d", recorder.Code, http.StatusBadRequest)
			}
			if payload := decodeErrorPayload(testContext, recorder); payload["error"] != "invalid_request" {
				testContext.Fatalf("unexpected error payload %v", payload)
			}
		})
	}
}

func TestHandleAddNoteAcceptsEmptyContent(testContext *testing.T) {
	context, recorder := newTestContext(http.MethodPost, "/api/notes", `{"date":"2024-01-10","content":"","guest_id":3}`)
	store := &stubNotesStore{note: notes.Note{ID: 9, Date: notes.NewDate(2024, 1, 10)}}
	handler := &httpHandler{store: store, logger: zap.NewNop()}

	handler.handleAddNote(context)

	if recorder.Code != http.StatusOK {
		testContext.Fatalf("unexpected status %d: %s", recorder.Code, recorder.Body.String())
	}
	expected := `{"id":9,"date":"2024-01-10","content":""}`
	if recorder.Body.String() != expected {
		testContext.Fatalf("unexpected response body: %s", recorder.Body.String())
	}
}

func TestHandleNoteByIDRejectsInvalidIdentifier(testContext *testing.T) {
	testCases := []struct {
		name   string
		method string
		invoke func(*httpHandler, *gin.Context)
	}{
		{name: "update", method: http.MethodPut, invoke: (*httpHandler).handleUpdateNote},
		{name: "delete", method: http.MethodDelete, invoke: (*httpHandler).handleDeleteNote},
	}

	for _, testCase := range testCases {
		testContext.Run(testCase.name, func(testContext *testing.T) {
			context, recorder := newTestContext(testCase.method, "/api/notes/abc", `{"date":"2024-01-10","content":"x"}`)
			context.Params = gin.Params{{Key: "note_id", Value: "abc"}}
			handler := &httpHandler{store: &stubNotesStore{}, logger: zap.NewNop()}

			testCase.invoke(handler, context)

			if recorder.Code != http.StatusBadRequest {
				testContext.Fatalf("unexpected status: got %d want %d", recorder.Code, http.StatusBadRequest)
			}
			expected := `{"error":"invalid_note_id"}`
			if recorder.Body.String() != expected {
				testContext.Fatalf("unexpected response body: %s", recorder.Body.String())
			}
		})
	}
}

func TestHandleDeleteNoteForwardsNonPositiveIdentifier(testContext *testing.T) {
	for _, rawID := range []string{"0", "-3"} {
		testContext.Run(rawID, func(testContext *testing.T) {
			context, recorder := newTestContext(http.MethodDelete, "/api/notes/"+rawID, "")
			context.Params = gin.Params{{Key: "note_id", Value: rawID}}
			store := &stubNotesStore{err: fmt.Errorf("wrapped: %w", notes.ErrNoteNotFound), lastNoteID: 99}
			handler := &httpHandler{store: store, logger: zap.NewNop()}

			handler.handleDeleteNote(context)

			if recorder.Code != http.StatusNotFound {
				testContext.Fatalf("unexpected status: got %d want %d", recorder.Code, http.StatusNotFound)
			}
			if store.lastNoteID == 99 {
				testContext.Fatalf("expected note id %s to reach the store", rawID)
			}
		})
	}
}

func TestHandlersMapStoreErrors(testContext *testing.T) {
	testCases := []struct {
		name       string
		err        error
		wantStatus int
		wantError  string
	}{
		{
			name:       "note-not-found",
			err:        fmt.Errorf("wrapped: %w", notes.ErrNoteNotFound),
			wantStatus: http.StatusNotFound,
			wantError:  "note_not_found",
		},
		{
			name:       "guest-not-found",
			err:        fmt.Errorf("wrapped: %w", notes.ErrGuestNotFound),
			wantStatus: http.StatusUnprocessableEntity,
			wantError:  "guest_not_found",
		},
		{
			name:       "connectivity",
			err:        errors.New("dial tcp: connection refused"),
			wantStatus: http.StatusInternalServerError,
			wantError:  "internal_error",
		},
	}

	for _, testCase := range testCases {
		testContext.Run(testCase.name, func(testContext *testing.T) {
			context, recorder := newTestContext(http.MethodPut, "/api/notes/5", `{"date":"2024-01-10","content":"x"}`)
			context.Params = gin.Params{{Key: "note_id", Value: "5"}}
			store := &stubNotesStore{err: testCase.err}
			handler := &httpHandler{store: store, logger: zap.NewNop()}

			handler.handleUpdateNote(context)

			if recorder.Code != testCase.wantStatus {
				testContext.Fatalf("unexpected status: got %d want %d", recorder.Code, testCase.wantStatus)
			}
			if payload := decodeErrorPayload(testContext, recorder); payload["error"] != testCase.wantError {
				testContext.Fatalf("expected error %s, got %v", testCase.wantError, payload["error"])
			}
			if store.lastNoteID != 5 {
				testContext.Fatalf("expected note id 5 to reach the store, got %d", store.lastNoteID)
			}
		})
	}
}

func TestHandleAddGuestIncludesServiceErrorCode(testContext *testing.T) {
	context, recorder := newTestContext(http.MethodPost, "/api/guests", "")
	handler := &httpHandler{
		store:  &notes.Store{},
		logger: zap.NewNop(),
	}

	handler.handleAddGuest(context)

	if recorder.Code != http.StatusInternalServerError {
		testContext.Fatalf("expected internal server error status, got %d", recorder.Code)
	}
	payload := decodeErrorPayload(testContext, recorder)
	if payload["code"] != "notes.add_guest.missing_database" {
		testContext.Fatalf("expected service error code, got %v", payload["code"])
	}
}

func TestHandleHealthReturnsOK(testContext *testing.T) {
	context, recorder := newTestContext(http.MethodGet, "/_health", "")
	handler := &httpHandler{store: &stubNotesStore{}, logger: zap.NewNop()}

	handler.handleHealth(context)

	if recorder.Code != http.StatusOK || recorder.Body.String() != "ok" {
		testContext.Fatalf("unexpected health response %d %q", recorder.Code, recorder.Body.String())
	}
}
