package rest

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/heartmarshall/nfc-fortune-backend/internal/domain"
	usersvc "github.com/heartmarshall/nfc-fortune-backend/internal/service/user"
)

const maxRegisterBody = 16 << 10

type userService interface {
	Register(ctx context.Context, in usersvc.RegisterInput) (*domain.User, error)
}

// UserHandler serves tag registration.
type UserHandler struct {
	svc userService
	log *slog.Logger
}

// NewUserHandler creates a UserHandler.
func NewUserHandler(svc userService, logger *slog.Logger) *UserHandler {
	return &UserHandler{svc: svc, log: logger.With("handler", "user")}
}

type registerRequest struct {
	NFCUID      string  `json:"nfcUid"`
	Name        string  `json:"name"`
	Gender      *string `json:"gender"`
	DateOfBirth string  `json:"dateOfBirth"`
	BirthPlace  *string `json:"birthPlace"`
}

type registerResponse struct {
	Message string       `json:"message"`
	User    userResponse `json:"user"`
}

// Register handles POST /users.
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRegisterBody))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "请求格式不正确")
		return
	}

	u, err := h.svc.Register(r.Context(), usersvc.RegisterInput{
		NFCUID:      req.NFCUID,
		Name:        req.Name,
		Gender:      req.Gender,
		DateOfBirth: req.DateOfBirth,
		BirthPlace:  req.BirthPlace,
	})
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, registerResponse{Message: "用户注册成功", User: toUserResponse(u)})
	case errors.Is(err, domain.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrAlreadyExists):
		writeError(w, http.StatusConflict, "该NFC已绑定用户")
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "NFC UID未录入系统，不可注册")
	default:
		h.log.ErrorContext(r.Context(), "register failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "服务器内部错误")
	}
}
