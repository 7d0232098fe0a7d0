package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/qline-app/qline-backend/internal/auth"
	"github.com/qline-app/qline-backend/internal/users"
	"github.com/qline-app/qline-backend/pkg/enums"
	pkgerrors "github.com/qline-app/qline-backend/pkg/errors"
)

type stubRegisterService struct {
	resp *auth.RegisterResponse
	err  error
}

func (s stubRegisterService) Register(ctx context.Context, req auth.RegisterRequest) (*auth.RegisterResponse, error) {
	return s.resp, s.err
}

func TestAuthRegisterSuccess(t *testing.T) {
	user := testUserDTO(enums.UserRoleCustomer)
	handler := AuthRegister(
		stubRegisterService{resp: &auth.RegisterResponse{User: user}},
		stubAuthService{resp: &auth.LoginResponse{
			AccessToken:  "new-token",
			RefreshToken: "refresh",
			User:         user,
		}},
		nil,
	)

	body := []byte(`{
		"first_name": "Alice",
		"last_name": "Customer",
		"email": "alice@example.com",
		"password": "Secret123!",
		"phone": "+15550100",
		"accept_tos": true
	}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	respRec := httptest.NewRecorder()

	handler.ServeHTTP(respRec, req)

	if respRec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", respRec.Code)
	}
	if got := respRec.Header().Get("X-QL-Token"); got != "new-token" {
		t.Fatalf("expected X-QL-Token %q got %q", "new-token", got)
	}

	var envelope struct {
		Data struct {
			User *users.UserDTO `json:"user"`
		} `json:"data"`
	}
	if err := json.NewDecoder(respRec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.User == nil || envelope.Data.User.Email != user.Email {
		t.Fatalf("expected registered user in payload got %+v", envelope.Data.User)
	}
}

func TestAuthRegisterInvalidPayload(t *testing.T) {
	handler := AuthRegister(stubRegisterService{}, stubAuthService{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", bytes.NewReader([]byte(`{"email":"alice@example.com","password":"short"}`)))
	req.Header.Set("Content-Type", "application/json")
	respRec := httptest.NewRecorder()

	handler.ServeHTTP(respRec, req)

	if respRec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", respRec.Code)
	}
}

func TestAuthRegisterPropagatesError(t *testing.T) {
	handler := AuthRegister(stubRegisterService{err: pkgerrors.New(pkgerrors.CodeConflict, "duplicate")}, stubAuthService{}, nil)

	body := []byte(`{
		"first_name": "Alice",
		"last_name": "Customer",
		"email": "alice@example.com",
		"password": "Secret123!",
		"accept_tos": true
	}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	respRec := httptest.NewRecorder()

	handler.ServeHTTP(respRec, req)

	if respRec.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", respRec.Code)
	}
}
