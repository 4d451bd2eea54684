package app

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/heartmarshall/nfc-fortune-backend/internal/config"
	"github.com/heartmarshall/nfc-fortune-backend/internal/domain"
)

// BatchOptions select how a pre-generation run is started. With ServerURL
// set the run is triggered on a running server, otherwise it runs in process.
type BatchOptions struct {
	ConfigPath string
	Variant    domain.BatchVariant
	ServerURL  string
	Token      string
	// Timeout bounds a remote run. In-process runs use batch.timeout.
	Timeout time.Duration
}

// BatchReport is the outcome of one run in either mode.
type BatchReport struct {
	Success             bool     `json:"success"`
	Message             string   `json:"message"`
	Variant             string   `json:"variant"`
	TotalUsers          int      `json:"totalUsers"`
	UsersNeedingFortune int      `json:"usersNeedingFortune"`
	SuccessCount        int      `json:"successCount"`
	FailCount           int      `json:"failCount"`
	ProcessingTimeMs    int64    `json:"processingTime"`
	Errors              []string `json:"errors"`
}

// RunBatch starts a pre-generation run and waits for it to finish. A non-nil
// report is returned whenever the run got far enough to count users, even
// when err is also set.
func RunBatch(ctx context.Context, opts BatchOptions) (*BatchReport, error) {
	if !opts.Variant.IsValid() {
		return nil, domain.NewValidationError("variant", "must be default or birthplace")
	}
	if opts.ServerURL != "" {
		client := &http.Client{Timeout: opts.Timeout}
		return triggerRemoteBatch(ctx, client, opts)
	}
	return runLocalBatch(ctx, opts)
}

func runLocalBatch(ctx context.Context, opts BatchOptions) (*BatchReport, error) {
	cfg, err := config.LoadFrom(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	logger := NewLogger(cfg.Log)

	stack, err := NewStack(ctx, cfg, logger, cfg.Database.AutoMigrate)
	if err != nil {
		return nil, err
	}
	defer stack.Close()

	ctx, cancel := context.WithTimeout(ctx, cfg.Batch.Timeout)
	defer cancel()

	logger.InfoContext(ctx, "batch started",
		slog.String("variant", opts.Variant.String()),
		slog.Duration("timeout", cfg.Batch.Timeout),
	)

	res, runErr := stack.Fortune.RunBatch(ctx, opts.Variant)
	if res == nil {
		return nil, runErr
	}

	report := &BatchReport{
		Success:             runErr == nil,
		Variant:             res.Variant.String(),
		TotalUsers:          res.TotalUsers,
		UsersNeedingFortune: res.UsersNeedingFortune,
		SuccessCount:        res.SuccessCount,
		FailCount:           res.FailCount,
		ProcessingTimeMs:    res.ProcessingTime.Milliseconds(),
		Errors:              res.Errors,
	}
	if runErr != nil {
		report.Message = runErr.Error()
	} else {
		report.Message = fmt.Sprintf("processed %d users", res.UsersNeedingFortune)
	}
	return report, runErr
}

// triggerRemoteBatch posts to /fortune/batch and decodes the server's report.
func triggerRemoteBatch(ctx context.Context, client *http.Client, opts BatchOptions) (*BatchReport, error) {
	endpoint, err := url.JoinPath(strings.TrimRight(opts.ServerURL, "/"), "fortune", "batch")
	if err != nil {
		return nil, fmt.Errorf("server url: %w", err)
	}
	endpoint += "?variant=" + url.QueryEscape(opts.Variant.String())

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if opts.Token != "" {
		req.Header.Set("Authorization", "Bearer "+opts.Token)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("trigger batch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var payload struct {
		BatchReport
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("batch endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	report := payload.BatchReport

	if resp.StatusCode != http.StatusOK || !report.Success {
		msg := cmp.Or(payload.Error, report.Message, http.StatusText(resp.StatusCode))
		err := fmt.Errorf("batch endpoint returned %d: %s", resp.StatusCode, msg)
		if report.Variant == "" {
			return nil, err
		}
		return &report, err
	}
	return &report, nil
}
