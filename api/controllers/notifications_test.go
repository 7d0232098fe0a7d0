package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/qline-app/qline-backend/api/middleware"
	"github.com/qline-app/qline-backend/internal/notifications"
	"github.com/qline-app/qline-backend/pkg/db/models"
	"github.com/qline-app/qline-backend/pkg/enums"
)

type stubNotificationsService struct {
	listResult *notifications.ListResult
	listParams notifications.ListParams
	markedUser uuid.UUID
	markedID   uuid.UUID
	updated    int64
	err        error
}

func (s *stubNotificationsService) List(ctx context.Context, params notifications.ListParams) (*notifications.ListResult, error) {
	s.listParams = params
	return s.listResult, s.err
}

func (s *stubNotificationsService) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	s.markedUser = userID
	s.markedID = notificationID
	return s.err
}

func (s *stubNotificationsService) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	s.markedUser = userID
	return s.updated, s.err
}

func withActor(req *http.Request, userID uuid.UUID) *http.Request {
	return req.WithContext(middleware.WithUserID(req.Context(), userID.String()))
}

func TestListNotificationsPassesQueryParams(t *testing.T) {
	userID := uuid.New()
	svc := &stubNotificationsService{listResult: &notifications.ListResult{
		Items: []models.Notification{{
			ID:     uuid.New(),
			UserID: userID,
			Type:   enums.NotificationTypeQueueCurrent,
			Title:  "You're up",
		}},
		Cursor: "next-cursor",
	}}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/notifications?limit=5&unreadOnly=true&cursor=abc", nil)
	resp := httptest.NewRecorder()
	ListNotifications(svc, nil).ServeHTTP(resp, withActor(req, userID))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if svc.listParams.UserID != userID {
		t.Fatalf("expected list scoped to %s got %s", userID, svc.listParams.UserID)
	}
	if svc.listParams.Limit != 5 || !svc.listParams.UnreadOnly || svc.listParams.Cursor != "abc" {
		t.Fatalf("unexpected list params: %+v", svc.listParams)
	}

	var envelope struct {
		Data notifications.ListResult `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(envelope.Data.Items) != 1 || envelope.Data.Cursor != "next-cursor" {
		t.Fatalf("unexpected payload: %+v", envelope.Data)
	}
}

func TestListNotificationsRejectsBadLimit(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/notifications?limit=zero", nil)
	resp := httptest.NewRecorder()
	ListNotifications(&stubNotificationsService{}, nil).ServeHTTP(resp, withActor(req, uuid.New()))

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestListNotificationsRequiresActor(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/notifications", nil)
	resp := httptest.NewRecorder()
	ListNotifications(&stubNotificationsService{}, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestMarkNotificationRead(t *testing.T) {
	userID := uuid.New()
	notificationID := uuid.New()
	svc := &stubNotificationsService{}

	router := chi.NewRouter()
	router.Post("/notifications/{notificationId}/read", MarkNotificationRead(svc, nil))

	req := httptest.NewRequest(http.MethodPost, "/notifications/"+notificationID.String()+"/read", bytes.NewReader(nil))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, withActor(req, userID))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if svc.markedUser != userID || svc.markedID != notificationID {
		t.Fatalf("expected mark for %s/%s got %s/%s", userID, notificationID, svc.markedUser, svc.markedID)
	}
}

func TestMarkNotificationReadRejectsBadID(t *testing.T) {
	router := chi.NewRouter()
	router.Post("/notifications/{notificationId}/read", MarkNotificationRead(&stubNotificationsService{}, nil))

	req := httptest.NewRequest(http.MethodPost, "/notifications/not-a-uuid/read", bytes.NewReader(nil))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, withActor(req, uuid.New()))

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestMarkAllNotificationsRead(t *testing.T) {
	userID := uuid.New()
	svc := &stubNotificationsService{updated: 4}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/notifications/read-all", bytes.NewReader(nil))
	resp := httptest.NewRecorder()
	MarkAllNotificationsRead(svc, nil).ServeHTTP(resp, withActor(req, userID))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}

	var envelope struct {
		Data struct {
			Updated int64 `json:"updated"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.Updated != 4 {
		t.Fatalf("expected 4 updated got %d", envelope.Data.Updated)
	}
	if svc.markedUser != userID {
		t.Fatalf("expected mark-all for %s got %s", userID, svc.markedUser)
	}
}
