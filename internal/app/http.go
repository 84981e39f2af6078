package app

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"podium/api/internal/search"
)

type HTTPServer struct {
	service    *Service
	corsOrigin string
}

func NewHTTPServer(service *Service, corsOrigin string) *HTTPServer {
	return &HTTPServer{service: service, corsOrigin: corsOrigin}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		writeJSON(w, http.StatusNoContent, map[string]any{})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := "ready"
		statusCode := http.StatusOK
		checks := map[string]any{
			"database": map[string]any{"status": "ok"},
		}

		if err := s.service.Ping(ctx); err != nil {
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
			checks["database"] = map[string]any{
				"status": "error",
				"error":  err.Error(),
			}
		}

		writeJSON(w, statusCode, map[string]any{
			"ok":     status == "ready",
			"status": status,
			"checks": checks,
		})
		return
	}

	// Public share links need no identity header.
	if r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/share/") {
		linkID := strings.TrimPrefix(r.URL.Path, "/share/")
		if linkID != "" {
			payload, err := s.service.ResolvePublicLink(r.Context(), linkID, r.URL.Query().Get("password"))
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, payload)
			return
		}
	}

	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	parts := splitPath(r.URL.Path)

	if r.Method == http.MethodGet && r.URL.Path == "/api/search" {
		query := search.Query{
			Text:          strings.TrimSpace(r.URL.Query().Get("q")),
			FilterType:    search.ResultType(strings.TrimSpace(r.URL.Query().Get("type"))),
			FilterBoardID: strings.TrimSpace(r.URL.Query().Get("boardId")),
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil {
				writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "limit must be an integer", nil)
				return
			}
			query.Limit = parsed
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("offset")); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil {
				writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "offset must be an integer", nil)
				return
			}
			query.Offset = parsed
		}
		writeJSON(w, http.StatusOK, s.service.Search(r.Context(), userID, query))
		return
	}

	if r.URL.Path == "/api/boards" {
		switch r.Method {
		case http.MethodGet:
			includeDeleted := r.URL.Query().Get("includeDeleted") == "true"
			items, err := s.service.ListBoards(r.Context(), userID, includeDeleted)
			if err != nil {
				s.fail(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"boards": items})
		case http.MethodPost:
			var body struct {
				Name       string `json:"name"`
				TemplateID string `json:"templateId"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			payload, err := s.service.CreateBoard(r.Context(), userID, body.Name, body.TemplateID)
			if err != nil {
				s.fail(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, payload)
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return
	}

	// /api/boards/{id}...
	if len(parts) >= 3 && parts[0] == "api" && parts[1] == "boards" {
		boardID := parts[2]
		rest := parts[3:]
		s.handleBoard(w, r, userID, boardID, rest)
		return
	}

	if r.URL.Path == "/api/shared" && r.Method == http.MethodGet {
		payload, err := s.service.SharedWithMe(r.Context(), userID)
		if err != nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)
		return
	}

	if r.URL.Path == "/api/friends" {
		switch r.Method {
		case http.MethodGet:
			friendIDs, err := s.service.ListFriends(r.Context(), userID)
			if err != nil {
				s.fail(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"friends": friendIDs})
		case http.MethodPost:
			var body struct {
				FriendID string `json:"friendId"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			payload, err := s.service.AddFriend(r.Context(), userID, body.FriendID)
			if err != nil {
				s.fail(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, payload)
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return
	}

	if r.URL.Path == "/api/sync" && r.Method == http.MethodPost {
		payload, err := s.service.SyncNow(r.Context(), userID)
		if err != nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)
		return
	}

	if r.URL.Path == "/api/templates" {
		switch r.Method {
		case http.MethodGet:
			items, err := s.service.ListTemplates(r.Context())
			if err != nil {
				s.fail(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"templates": items})
		case http.MethodPost:
			var body struct {
				Name  string              `json:"name"`
				Items []TemplateItemInput `json:"items"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			payload, err := s.service.CreateTemplate(r.Context(), body.Name, body.Items)
			if err != nil {
				s.fail(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, payload)
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return
	}

	if r.URL.Path == "/api/thumbnails" && r.Method == http.MethodPost {
		contentType := r.Header.Get("Content-Type")
		ext := extensionForContentType(contentType)
		if ext == "" {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "unsupported image content type", nil)
			return
		}
		payload, err := s.service.UploadThumbnail(r.Context(), userID, ext, contentType, r.Body, r.ContentLength)
		if err != nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, payload)
		return
	}

	if r.URL.Path == "/api/thumbnails/url" && r.Method == http.MethodGet {
		payload, err := s.service.ThumbnailURL(r.Context(), r.URL.Query().Get("ref"))
		if err != nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleBoard(w http.ResponseWriter, r *http.Request, userID, boardID string, rest []string) {
	if len(rest) == 0 {
		switch r.Method {
		case http.MethodGet:
			payload, err := s.service.GetBoard(r.Context(), userID, boardID)
			if err != nil {
				s.fail(w, err)
				return
			}
			writeJSON(w, http.StatusOK, payload)
		case http.MethodPut:
			var body struct {
				Name          string  `json:"name"`
				CoverImageRef *string `json:"coverImageRef"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			payload, err := s.service.UpdateBoard(r.Context(), userID, boardID, body.Name, body.CoverImageRef)
			if err != nil {
				s.fail(w, err)
				return
			}
			writeJSON(w, http.StatusOK, payload)
		case http.MethodDelete:
			if err := s.service.DeleteBoard(r.Context(), userID, boardID); err != nil {
				s.fail(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return
	}

	switch {
	case rest[0] == "restore" && len(rest) == 1 && r.Method == http.MethodPost:
		payload, err := s.service.RestoreBoard(r.Context(), userID, boardID)
		if err != nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)

	case rest[0] == "purge" && len(rest) == 1 && r.Method == http.MethodDelete:
		if err := s.service.PurgeBoard(r.Context(), userID, boardID); err != nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})

	case rest[0] == "cards" && len(rest) == 1:
		switch r.Method {
		case http.MethodPost:
			var body CardInput
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			payload, err := s.service.AddCard(r.Context(), userID, boardID, body)
			if err != nil {
				s.fail(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, payload)
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}

	case rest[0] == "cards" && len(rest) == 2:
		cardID := rest[1]
		switch r.Method {
		case http.MethodPut:
			var body CardPatchInput
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			payload, err := s.service.UpdateCard(r.Context(), userID, boardID, cardID, body)
			if err != nil {
				s.fail(w, err)
				return
			}
			writeJSON(w, http.StatusOK, payload)
		case http.MethodDelete:
			payload, err := s.service.RemoveCard(r.Context(), userID, boardID, cardID)
			if err != nil {
				s.fail(w, err)
				return
			}
			writeJSON(w, http.StatusOK, payload)
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}

	case rest[0] == "reorder" && len(rest) == 1 && r.Method == http.MethodPost:
		var body struct {
			From *int `json:"from"`
			To   *int `json:"to"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if body.From == nil || body.To == nil {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "from and to are required", nil)
			return
		}
		payload, err := s.service.ReorderCards(r.Context(), userID, boardID, *body.From, *body.To)
		if err != nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)

	case rest[0] == "snapshots" && len(rest) == 1:
		switch r.Method {
		case http.MethodGet:
			items, err := s.service.ListSnapshots(r.Context(), userID, boardID)
			if err != nil {
				s.fail(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"snapshots": items})
		case http.MethodPost:
			var body struct {
				Episode *int   `json:"episode"`
				Label   string `json:"label"`
				Notes   string `json:"notes"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			payload, err := s.service.CaptureSnapshot(r.Context(), userID, boardID, body.Episode, body.Label, body.Notes)
			if err != nil {
				s.fail(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, payload)
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}

	case rest[0] == "snapshots" && len(rest) == 2 && r.Method == http.MethodGet:
		payload, err := s.service.GetSnapshot(r.Context(), userID, boardID, rest[1])
		if err != nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)

	case rest[0] == "trajectories" && len(rest) == 1 && r.Method == http.MethodGet:
		items, err := s.service.Trajectories(r.Context(), userID, boardID)
		if err != nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"trajectories": items})

	case rest[0] == "trajectories" && len(rest) == 2 && r.Method == http.MethodGet:
		payload, err := s.service.CardTrajectory(r.Context(), userID, boardID, rest[1])
		if err != nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)

	case rest[0] == "movement" && len(rest) == 1 && r.Method == http.MethodGet:
		raw := strings.TrimSpace(r.URL.Query().Get("baseline"))
		baseline, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "baseline must be an episode number", nil)
			return
		}
		payload, err := s.service.Movements(r.Context(), userID, boardID, baseline)
		if err != nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)

	case rest[0] == "compare" && len(rest) == 1 && r.Method == http.MethodGet:
		friendBoardID := strings.TrimSpace(r.URL.Query().Get("with"))
		if friendBoardID == "" {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "with is required", nil)
			return
		}
		payload, err := s.service.CompareBoards(r.Context(), userID, boardID, friendBoardID)
		if err != nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)

	case rest[0] == "sharing" && len(rest) == 1 && r.Method == http.MethodPut:
		var body SharingInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.UpdateSharing(r.Context(), userID, boardID, body)
		if err != nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) fail(w http.ResponseWriter, err error) {
	status, code, message, details := mapError(err)
	writeError(w, status, code, message, details)
}

// requireUser reads the caller identity from the X-User-ID header. Device
// pairing happens out of band; the API trusts the gateway in front of it.
func (s *HTTPServer) requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := strings.TrimSpace(r.Header.Get("X-User-ID"))
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing X-User-ID header", nil)
		return "", false
	}
	return userID, true
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		log.Printf(`{"request_id":"%s","method":"%s","path":"%s","status":%d,"duration_ms":%d}`,
			requestID,
			r.Method,
			r.URL.Path,
			writer.status,
			time.Since(started).Milliseconds(),
		)
	})
}

type requestIDKey struct{}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, X-User-ID, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func extensionForContentType(contentType string) string {
	switch strings.ToLower(strings.TrimSpace(contentType)) {
	case "image/png":
		return ".png"
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	default:
		return ""
	}
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	if errors.Is(err, sql.ErrNoRows) {
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
