// Package jobs invokes the separately deployed connectivity-test and menu-sync jobs.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	integrationapp "github.com/pos/backend/internal/application/integration"
	"github.com/pos/backend/internal/domain/integration"
	"github.com/pos/backend/internal/infrastructure/config"
)

// ErrNotConfigured is returned when no job endpoint is configured
var ErrNotConfigured = errors.New("jobs: base URL is not configured")

const defaultTimeout = 60 * time.Second

// connectionRequest is the body sent to the connectivity job
type connectionRequest struct {
	IntegrationID  uuid.UUID            `json:"integration_id"`
	OrganizationID uuid.UUID            `json:"organization_id"`
	Provider       integration.Provider `json:"provider"`
	StoreID        string               `json:"store_id"`
}

// Invoker calls job functions at {base_url}/{function} over HTTP
type Invoker struct {
	client               *resty.Client
	connectivityFunction string
	menuSyncFunction     string
	logger               *zap.Logger
	configured           bool
}

// NewInvoker creates an invoker from the jobs configuration
func NewInvoker(cfg config.JobsConfig, logger *zap.Logger) *Invoker {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetHeader("Content-Type", "application/json")
	if cfg.APIKey != "" {
		client.SetAuthToken(cfg.APIKey)
	}

	return &Invoker{
		client:               client,
		connectivityFunction: cfg.ConnectivityFunction,
		menuSyncFunction:     cfg.MenuSyncFunction,
		logger:               logger.Named("jobs"),
		configured:           cfg.BaseURL != "",
	}
}

// CheckConnection runs the connectivity job for one integration
func (j *Invoker) CheckConnection(ctx context.Context, i *integration.Integration) (*integrationapp.JobResult, error) {
	return j.invoke(ctx, j.connectivityFunction, connectionRequest{
		IntegrationID:  i.ID,
		OrganizationID: i.OrganizationID,
		Provider:       i.Provider,
		StoreID:        i.StoreID,
	})
}

// SyncMenu runs the batch menu-sync job
func (j *Invoker) SyncMenu(ctx context.Context, req integrationapp.MenuSyncRequest) (*integrationapp.JobResult, error) {
	return j.invoke(ctx, j.menuSyncFunction, req)
}

// invoke posts body to the function and decodes its {success, message, details} reply.
// A non-2xx reply carrying that shape is returned as a result, not an error.
func (j *Invoker) invoke(ctx context.Context, function string, body any) (*integrationapp.JobResult, error) {
	if !j.configured {
		return nil, ErrNotConfigured
	}

	start := time.Now()
	resp, err := j.client.R().
		SetContext(ctx).
		SetBody(body).
		Post("/" + function)
	if err != nil {
		j.logger.Warn("job invocation failed",
			zap.String("function", function),
			zap.Error(err))
		return nil, fmt.Errorf("failed to invoke job %s: %w", function, err)
	}

	var result integrationapp.JobResult
	decodeErr := json.Unmarshal(resp.Body(), &result)

	if resp.StatusCode() >= http.StatusBadRequest {
		j.logger.Warn("job returned error status",
			zap.String("function", function),
			zap.Int("status", resp.StatusCode()),
			zap.Duration("elapsed", time.Since(start)))
		if decodeErr != nil || result.Message == "" {
			return nil, fmt.Errorf("job %s returned status %d", function, resp.StatusCode())
		}
		result.Success = false
		return &result, nil
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("failed to decode job %s response: %w", function, decodeErr)
	}

	j.logger.Debug("job invoked",
		zap.String("function", function),
		zap.Bool("success", result.Success),
		zap.Duration("elapsed", time.Since(start)))
	return &result, nil
}

var (
	_ integrationapp.ConnectivityChecker = (*Invoker)(nil)
	_ integrationapp.MenuSyncInvoker     = (*Invoker)(nil)
)
