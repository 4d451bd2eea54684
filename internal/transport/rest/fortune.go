package rest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/heartmarshall/nfc-fortune-backend/internal/domain"
	fortunesvc "github.com/heartmarshall/nfc-fortune-backend/internal/service/fortune"
	"github.com/heartmarshall/nfc-fortune-backend/pkg/ctxutil"
)

// fortuneService is the subset of the fortune service used over HTTP.
type fortuneService interface {
	GetTodayFortuneByNFC(ctx context.Context, nfcUID, clientIP string) (*domain.Fortune, error)
	CheckUser(ctx context.Context, nfcUID string) (*fortunesvc.CheckResult, error)
	RunBatch(ctx context.Context, variant domain.BatchVariant) (*fortunesvc.BatchResult, error)
	BatchSettings() fortunesvc.BatchConfig
}

// FortuneHandler serves the fortune, user check and batch endpoints.
type FortuneHandler struct {
	svc          fortuneService
	batchTimeout time.Duration
	log          *slog.Logger
}

// NewFortuneHandler creates a FortuneHandler. batchTimeout bounds a batch run
// started over HTTP; the run is detached from the client connection.
func NewFortuneHandler(svc fortuneService, batchTimeout time.Duration, logger *slog.Logger) *FortuneHandler {
	return &FortuneHandler{
		svc:          svc,
		batchTimeout: batchTimeout,
		log:          logger.With("handler", "fortune"),
	}
}

type fortuneResponse struct {
	ID                   string    `json:"id"`
	UserID               string    `json:"userId"`
	FortuneDate          string    `json:"fortuneDate"`
	OverallRating        int       `json:"overallRating"`
	HealthFortune        string    `json:"healthFortune"`
	HealthSuggestion     string    `json:"healthSuggestion"`
	WealthFortune        string    `json:"wealthFortune"`
	InterpersonalFortune string    `json:"interpersonalFortune"`
	LuckyColor           string    `json:"luckyColor"`
	ActionSuggestion     string    `json:"actionSuggestion"`
	CreatedAt            time.Time `json:"createdAt"`
}

type checkUserResponse struct {
	Exists         bool          `json:"exists"`
	IsPreGenerated bool          `json:"isPreGenerated,omitempty"`
	Message        string        `json:"message"`
	User           *userResponse `json:"user,omitempty"`
}

type userResponse struct {
	ID          string    `json:"id"`
	NFCUID      string    `json:"nfcUid"`
	Name        string    `json:"name"`
	Gender      *string   `json:"gender,omitempty"`
	DateOfBirth string    `json:"dateOfBirth"`
	BirthPlace  *string   `json:"birthPlace,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

type batchResponse struct {
	Success             bool                `json:"success"`
	Message             string              `json:"message"`
	Variant             string              `json:"variant"`
	SuccessCount        int                 `json:"successCount"`
	FailCount           int                 `json:"failCount"`
	TotalUsers          int                 `json:"totalUsers"`
	UsersNeedingFortune int                 `json:"usersNeedingFortune"`
	ProcessingTime      int64               `json:"processingTime"`
	Errors              []string            `json:"errors"`
	Config              batchConfigResponse `json:"config"`
}

type batchConfigResponse struct {
	WindowSize    int   `json:"windowSize"`
	MaxConcurrent int   `json:"maxConcurrent"`
	ItemDelayMs   int64 `json:"delayBetweenUsers"`
	WindowDelayMs int64 `json:"delayBetweenBatches"`
	MaxErrors     int   `json:"maxErrors"`
}

// GetFortune handles GET /fortune/{nfcUid}.
func (h *FortuneHandler) GetFortune(w http.ResponseWriter, r *http.Request) {
	nfcUID := r.PathValue("nfcUid")

	f, err := h.svc.GetTodayFortuneByNFC(r.Context(), nfcUID, ctxutil.ClientIPFromCtx(r.Context()))
	if err != nil {
		h.handleError(w, r, err, "获取运势失败")
		return
	}

	writeJSON(w, http.StatusOK, toFortuneResponse(f))
}

// CheckUser handles GET /users/check/{nfcUid}.
func (h *FortuneHandler) CheckUser(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.CheckUser(r.Context(), r.PathValue("nfcUid"))
	if err != nil {
		h.handleError(w, r, err, "检查用户失败")
		return
	}

	resp := checkUserResponse{
		Exists:         res.Exists,
		IsPreGenerated: res.IsPreGenerated,
		Message:        res.Message,
	}
	if res.User != nil {
		u := toUserResponse(res.User)
		resp.User = &u
	}
	writeJSON(w, http.StatusOK, resp)
}

// RunBatch handles POST /fortune/batch?variant=default|birthplace.
func (h *FortuneHandler) RunBatch(w http.ResponseWriter, r *http.Request) {
	variant := domain.BatchVariant(r.URL.Query().Get("variant"))
	if variant == "" {
		variant = domain.BatchVariantDefault
	}
	if !variant.IsValid() {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown batch variant %q", variant))
		return
	}

	// The server's write timeout is sized for single requests.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Now().Add(h.batchTimeout + 30*time.Second)); err != nil && !errors.Is(err, http.ErrNotSupported) {
		h.log.WarnContext(r.Context(), "extend write deadline", slog.String("error", err.Error()))
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), h.batchTimeout)
	defer cancel()

	res, err := h.svc.RunBatch(ctx, variant)
	if res == nil {
		h.handleError(w, r, err, "批量生成失败")
		return
	}

	resp := h.toBatchResponse(res)
	if err != nil {
		h.log.ErrorContext(r.Context(), "batch interrupted", slog.String("error", err.Error()))
		resp.Success = false
		resp.Message = fmt.Sprintf("批量生成中断，成功: %d, 失败: %d", res.SuccessCount, res.FailCount)
		writeJSON(w, http.StatusInternalServerError, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *FortuneHandler) handleError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrUserNotRegistered):
		writeError(w, http.StatusNotFound, "用户需要先完成注册")
	case errors.Is(err, domain.ErrFortuneNotGenerated):
		writeError(w, http.StatusNotFound, "今日运势尚未生成")
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "用户不存在")
	case errors.Is(err, domain.ErrGenerationFailed):
		writeError(w, http.StatusInternalServerError, "生成运势失败，请稍后再试")
	default:
		h.log.ErrorContext(r.Context(), "internal error", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, fallback)
	}
}

func toFortuneResponse(f *domain.Fortune) fortuneResponse {
	return fortuneResponse{
		ID:                   f.ID.String(),
		UserID:               f.UserID.String(),
		FortuneDate:          f.FortuneDate.Format(time.DateOnly),
		OverallRating:        f.OverallRating,
		HealthFortune:        f.HealthFortune,
		HealthSuggestion:     f.HealthSuggestion,
		WealthFortune:        f.WealthFortune,
		InterpersonalFortune: f.InterpersonalFortune,
		LuckyColor:           f.LuckyColor,
		ActionSuggestion:     f.ActionSuggestion,
		CreatedAt:            f.CreatedAt,
	}
}

func toUserResponse(u *domain.User) userResponse {
	resp := userResponse{
		ID:          u.ID.String(),
		NFCUID:      u.NFCUID,
		Name:        u.Name,
		DateOfBirth: u.DateOfBirth.Format(time.DateOnly),
		BirthPlace:  u.BirthPlace,
		CreatedAt:   u.CreatedAt,
	}
	if u.Gender != nil {
		g := u.Gender.String()
		resp.Gender = &g
	}
	return resp
}

func (h *FortuneHandler) toBatchResponse(res *fortunesvc.BatchResult) batchResponse {
	cfg := h.svc.BatchSettings()

	var msg string
	switch {
	case res.TotalUsers == 0:
		msg = "没有找到符合条件的已注册用户"
	case res.UsersNeedingFortune == 0:
		msg = "所有用户今日运势已存在，无需生成"
	default:
		msg = fmt.Sprintf("批量生成完成，成功: %d, 失败: %d", res.SuccessCount, res.FailCount)
	}

	errs := res.Errors
	if errs == nil {
		errs = []string{}
	}

	return batchResponse{
		Success:             true,
		Message:             msg,
		Variant:             res.Variant.String(),
		SuccessCount:        res.SuccessCount,
		FailCount:           res.FailCount,
		TotalUsers:          res.TotalUsers,
		UsersNeedingFortune: res.UsersNeedingFortune,
		ProcessingTime:      res.ProcessingTime.Milliseconds(),
		Errors:              errs,
		Config: batchConfigResponse{
			WindowSize:    cfg.WindowSize,
			MaxConcurrent: cfg.MaxConcurrent,
			ItemDelayMs:   cfg.ItemDelay.Milliseconds(),
			WindowDelayMs: cfg.WindowDelay.Milliseconds(),
			MaxErrors:     cfg.MaxErrors,
		},
	}
}
