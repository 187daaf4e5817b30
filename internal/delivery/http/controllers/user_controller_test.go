package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sunnyside/internal/delivery/http/helpers"
	"sunnyside/internal/delivery/http/middleware"
	"sunnyside/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// decodeEnvelope decodes the response envelope and, when data is non-nil,
// re-decodes envelope.Data into it.
func decodeEnvelope(t *testing.T, rr *httptest.ResponseRecorder, data any) helpers.APIResponse {
	t.Helper()
	var envelope helpers.APIResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&envelope))
	if data != nil && envelope.Data != nil {
		raw, err := json.Marshal(envelope.Data)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(raw, data))
	}
	return envelope
}

// fakeUserService implements domain.UserService for handler tests.
type fakeUserService struct {
	signUpUser  *domain.User
	signUpErr   error
	lastSignUp  []string
	loginToken  string
	loginUser   *domain.User
	loginErr    error
	getByIDUser *domain.User
	getByIDErr  error
}

func (f *fakeUserService) SignUp(ctx context.Context, email, name, password string) (*domain.User, error) {
	f.lastSignUp = []string{email, name, password}
	if f.signUpErr != nil {
		return nil, f.signUpErr
	}
	return f.signUpUser, nil
}

func (f *fakeUserService) Login(ctx context.Context, email, password string) (string, *domain.User, error) {
	if f.loginErr != nil {
		return "", nil, f.loginErr
	}
	return f.loginToken, f.loginUser, nil
}

func (f *fakeUserService) GetByID(ctx context.Context, id string) (*domain.User, error) {
	if f.getByIDErr != nil {
		return nil, f.getByIDErr
	}
	return f.getByIDUser, nil
}

func TestUserController_SignUp(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name           string
		body           string
		fakeErr        error
		wantStatus     int
		wantBodyCode   string
		wantBodySubstr string
	}{
		{
			name:       "success",
			body:       `{"email":"ana@example.com","password":"supersecret","name":"Ana"}`,
			wantStatus: http.StatusCreated,
		},
		{
			name:           "short password",
			body:           `{"email":"ana@example.com","password":"short","name":"Ana"}`,
			wantStatus:     http.StatusBadRequest,
			wantBodyCode:   helpers.ErrCodeBadRequest,
			wantBodySubstr: "password",
		},
		{
			name:           "bad email and missing name",
			body:           `{"email":"nope","password":"supersecret"}`,
			wantStatus:     http.StatusBadRequest,
			wantBodyCode:   helpers.ErrCodeBadRequest,
			wantBodySubstr: "name is required",
		},
		{
			name:           "unknown field",
			body:           `{"email":"ana@example.com","password":"supersecret","name":"Ana","role":"admin"}`,
			wantStatus:     http.StatusBadRequest,
			wantBodyCode:   helpers.ErrCodeBadRequest,
			wantBodySubstr: "unknown field",
		},
		{
			name:         "duplicate email",
			body:         `{"email":"ana@example.com","password":"supersecret","name":"Ana"}`,
			fakeErr:      domain.ErrDuplicateEmail,
			wantStatus:   http.StatusConflict,
			wantBodyCode: helpers.ErrCodeConflict,
		},
		{
			name:         "service error",
			body:         `{"email":"ana@example.com","password":"supersecret","name":"Ana"}`,
			fakeErr:      assert.AnError,
			wantStatus:   http.StatusInternalServerError,
			wantBodyCode: helpers.ErrCodeInternalError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeUserService{
				signUpUser: &domain.User{ID: "u1", Email: "ana@example.com", Name: "Ana", PasswordHash: "secret-hash", CreatedAt: now, UpdatedAt: now},
				signUpErr:  tt.fakeErr,
			}
			ctrl := NewUserController(testLogger(), fake)
			req := httptest.NewRequest(http.MethodPost, "http://test/auth/signup", bytes.NewBufferString(tt.body))
			rr := httptest.NewRecorder()

			ctrl.SignUp(rr, req)

			require.Equal(t, tt.wantStatus, rr.Code)
			if tt.wantStatus == http.StatusCreated {
				assert.NotContains(t, rr.Body.String(), "secret-hash")
				var u domain.User
				envelope := decodeEnvelope(t, rr, &u)
				require.Nil(t, envelope.Error)
				assert.Equal(t, "u1", u.ID)
				assert.Equal(t, []string{"ana@example.com", "Ana", "supersecret"}, fake.lastSignUp)
				return
			}
			envelope := decodeEnvelope(t, rr, nil)
			require.NotNil(t, envelope.Error)
			assert.Equal(t, tt.wantBodyCode, envelope.Error.Code)
			if tt.wantBodySubstr != "" {
				assert.Contains(t, envelope.Error.Message, tt.wantBodySubstr)
			}
		})
	}
}

func TestUserController_Login(t *testing.T) {
	tests := []struct {
		name         string
		body         string
		fakeErr      error
		wantStatus   int
		wantBodyCode string
	}{
		{"success", `{"email":"ana@example.com","password":"supersecret"}`, nil, http.StatusOK, ""},
		{"missing password", `{"email":"ana@example.com"}`, nil, http.StatusBadRequest, helpers.ErrCodeBadRequest},
		{"wrong credentials", `{"email":"ana@example.com","password":"nope-nope"}`, domain.ErrInvalidCredentials, http.StatusUnauthorized, helpers.ErrCodeUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeUserService{loginToken: "jwt", loginUser: &domain.User{ID: "u1"}, loginErr: tt.fakeErr}
			ctrl := NewUserController(testLogger(), fake)
			req := httptest.NewRequest(http.MethodPost, "http://test/auth/login", bytes.NewBufferString(tt.body))
			rr := httptest.NewRecorder()

			ctrl.Login(rr, req)

			require.Equal(t, tt.wantStatus, rr.Code)
			var resp LoginResponse
			envelope := decodeEnvelope(t, rr, &resp)
			if tt.wantStatus == http.StatusOK {
				require.Nil(t, envelope.Error)
				assert.Equal(t, "jwt", resp.Token)
				assert.Equal(t, "Bearer", resp.TokenType)
				assert.Equal(t, "u1", resp.User.ID)
				return
			}
			require.NotNil(t, envelope.Error)
			assert.Equal(t, tt.wantBodyCode, envelope.Error.Code)
		})
	}
}

func TestUserController_GetMe(t *testing.T) {
	tests := []struct {
		name          string
		contextUserID string
		fakeErr       error
		wantStatus    int
		wantBodyCode  string
	}{
		{"success", "u1", nil, http.StatusOK, ""},
		{"no user in context", "", nil, http.StatusUnauthorized, helpers.ErrCodeUnauthorized},
		{"user not found", "u1", domain.ErrNotFound, http.StatusNotFound, helpers.ErrCodeNotFound},
		{"service error", "u1", assert.AnError, http.StatusInternalServerError, helpers.ErrCodeInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeUserService{getByIDUser: &domain.User{ID: "u1", Name: "Ana"}, getByIDErr: tt.fakeErr}
			ctrl := NewUserController(testLogger(), fake)
			req := httptest.NewRequest(http.MethodGet, "http://test/users/me", nil)
			if tt.contextUserID != "" {
				req = req.WithContext(middleware.SetUserID(req.Context(), tt.contextUserID))
			}
			rr := httptest.NewRecorder()

			ctrl.GetMe(rr, req)

			require.Equal(t, tt.wantStatus, rr.Code)
			var u domain.User
			envelope := decodeEnvelope(t, rr, &u)
			if tt.wantStatus == http.StatusOK {
				require.Nil(t, envelope.Error)
				assert.Equal(t, "Ana", u.Name)
				return
			}
			require.NotNil(t, envelope.Error)
			assert.Equal(t, tt.wantBodyCode, envelope.Error.Code)
		})
	}
}
