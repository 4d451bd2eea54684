package rest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heartmarshall/nfc-fortune-backend/internal/domain"
	usersvc "github.com/heartmarshall/nfc-fortune-backend/internal/service/user"
)

type userServiceMock struct {
	RegisterFunc func(ctx context.Context, in usersvc.RegisterInput) (*domain.User, error)
}

func (m *userServiceMock) Register(ctx context.Context, in usersvc.RegisterInput) (*domain.User, error) {
	if m.RegisterFunc == nil {
		panic("userServiceMock.RegisterFunc: method is nil")
	}
	return m.RegisterFunc(ctx, in)
}

func newUserRouter(svc userService) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRouter(Routes{
		Fortune: NewFortuneHandler(&fortuneServiceMock{}, time.Minute, logger),
		User:    NewUserHandler(svc, logger),
		Health:  NewHealthHandler(&dbPingerMock{}, "test"),
	})
}

func postUsers(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/users", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestUserHandler_Register_Created(t *testing.T) {
	t.Parallel()

	var got usersvc.RegisterInput
	id := uuid.New()
	svc := &userServiceMock{
		RegisterFunc: func(_ context.Context, in usersvc.RegisterInput) (*domain.User, error) {
			got = in
			g := domain.GenderMale
			return &domain.User{
				ID: id, NFCUID: in.NFCUID, Name: "张三", Gender: &g,
				DateOfBirth: time.Date(1950, 3, 15, 0, 0, 0, 0, time.UTC), BirthPlace: in.BirthPlace,
				Status: domain.UserStatusRegistered,
			}, nil
		},
	}

	rec := postUsers(t, newUserRouter(svc),
		`{"nfcUid":"PROD_A1B2C3D4","name":"张三","gender":"male","dateOfBirth":"1950-03-15","birthPlace":"北京"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	assert.Equal(t, "PROD_A1B2C3D4", got.NFCUID)
	assert.Equal(t, "1950-03-15", got.DateOfBirth)
	require.NotNil(t, got.Gender)
	assert.Equal(t, "male", *got.Gender)

	var body registerResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "用户注册成功", body.Message)
	assert.Equal(t, id.String(), body.User.ID)
	assert.Equal(t, "1950-03-15", body.User.DateOfBirth)
	require.NotNil(t, body.User.BirthPlace)
	assert.Equal(t, "北京", *body.User.BirthPlace)
}

func TestUserHandler_Register_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
		wantError  string
	}{
		{"malformed json", `{"nfcUid":`, nil, http.StatusBadRequest, "请求格式不正确"},
		{"validation", `{"nfcUid":"T"}`, domain.NewValidationError("name", "required"), http.StatusBadRequest, "validation: name: required"},
		{"already bound", `{"nfcUid":"T"}`, usersvc.ErrAlreadyRegistered, http.StatusConflict, "该NFC已绑定用户"},
		{"unknown tag", `{"nfcUid":"T"}`, domain.ErrNotFound, http.StatusNotFound, "NFC UID未录入系统，不可注册"},
		{"store failure", `{"nfcUid":"T"}`, errors.New("db down"), http.StatusInternalServerError, "服务器内部错误"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			svc := &userServiceMock{
				RegisterFunc: func(context.Context, usersvc.RegisterInput) (*domain.User, error) {
					return nil, tt.err
				},
			}

			rec := postUsers(t, newUserRouter(svc), tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code)

			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantError, body["error"])
		})
	}
}
