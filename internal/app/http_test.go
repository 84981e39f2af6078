package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"podium/api/internal/sharing"
	"podium/api/internal/store"
)

func newTestServer(f *fakeStore) *httptest.Server {
	return httptest.NewServer(NewHTTPServer(newTestService(f), "*").Handler())
}

func decodeResponse(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var payload map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return payload
}

func TestHealthEndpoint(t *testing.T) {
	server := newTestServer(&fakeStore{})
	defer server.Close()

	resp, err := http.Get(server.URL + "/api/health")
	if err != nil {
		t.Fatalf("GET /api/health: %v", err)
	}
	payload := decodeResponse(t, resp)
	if resp.StatusCode != http.StatusOK || payload["ok"] != true {
		t.Fatalf("expected healthy response, got %d %+v", resp.StatusCode, payload)
	}
}

func TestMissingIdentityHeader(t *testing.T) {
	server := newTestServer(&fakeStore{})
	defer server.Close()

	resp, err := http.Get(server.URL + "/api/boards")
	if err != nil {
		t.Fatalf("GET /api/boards: %v", err)
	}
	payload := decodeResponse(t, resp)
	if resp.StatusCode != http.StatusUnauthorized || payload["code"] != "UNAUTHORIZED" {
		t.Fatalf("expected 401 without X-User-ID, got %d %+v", resp.StatusCode, payload)
	}
}

func TestListBoardsEnvelope(t *testing.T) {
	fs := &fakeStore{
		listBoardsByOwnerFn: func(_ context.Context, ownerID string, _ bool) ([]store.Board, error) {
			return []store.Board{{ID: "brd-1", OwnerID: ownerID, Name: "Season 12"}}, nil
		},
	}
	server := newTestServer(fs)
	defer server.Close()

	req, _ := http.NewRequest(http.MethodGet, server.URL+"/api/boards", nil)
	req.Header.Set("X-User-ID", "owner-1")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /api/boards: %v", err)
	}
	payload := decodeResponse(t, resp)
	boards, _ := payload["boards"].([]any)
	if resp.StatusCode != http.StatusOK || len(boards) != 1 {
		t.Fatalf("expected one board in envelope, got %d %+v", resp.StatusCode, payload)
	}
	first, _ := boards[0].(map[string]any)
	if first["name"] != "Season 12" || first["cardCount"] != float64(0) {
		t.Fatalf("unexpected board summary: %+v", first)
	}
}

func TestReorderRequiresBothPositions(t *testing.T) {
	server := newTestServer(&fakeStore{})
	defer server.Close()

	req, _ := http.NewRequest(http.MethodPost, server.URL+"/api/boards/brd-1/reorder",
		strings.NewReader(`{"from": 1}`))
	req.Header.Set("X-User-ID", "owner-1")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST reorder: %v", err)
	}
	payload := decodeResponse(t, resp)
	if resp.StatusCode != http.StatusUnprocessableEntity || payload["code"] != "VALIDATION_ERROR" {
		t.Fatalf("expected 422 for partial body, got %d %+v", resp.StatusCode, payload)
	}
}

func TestPublicShareLinkSkipsIdentity(t *testing.T) {
	fs := &fakeStore{
		getBoardByLinkFn: func(_ context.Context, linkID string) (store.Board, error) {
			return store.Board{
				ID:      "brd-1",
				OwnerID: "owner-1",
				Name:    "Shared Board",
				Sharing: sharing.Policy{
					Visibility:        sharing.VisibilityPublic,
					PublicLinkEnabled: true,
					PublicLinkID:      linkID,
				},
			}, nil
		},
	}
	server := newTestServer(fs)
	defer server.Close()

	resp, err := http.Get(server.URL + "/share/lnk-abc")
	if err != nil {
		t.Fatalf("GET /share/lnk-abc: %v", err)
	}
	payload := decodeResponse(t, resp)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("share links must not require identity: %d %+v", resp.StatusCode, payload)
	}
	if payload["readOnly"] != true || payload["name"] != "Shared Board" {
		t.Fatalf("unexpected share payload: %+v", payload)
	}
}

func TestUnknownRoute(t *testing.T) {
	server := newTestServer(&fakeStore{})
	defer server.Close()

	req, _ := http.NewRequest(http.MethodGet, server.URL+"/api/nope", nil)
	req.Header.Set("X-User-ID", "owner-1")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /api/nope: %v", err)
	}
	payload := decodeResponse(t, resp)
	if resp.StatusCode != http.StatusNotFound || payload["code"] != "NOT_FOUND" {
		t.Fatalf("expected 404, got %d %+v", resp.StatusCode, payload)
	}
}
