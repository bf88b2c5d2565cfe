package disbursement

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"tokenshop-backend/internal/domain"
	"tokenshop-backend/internal/logger"
)

const serviceName = "hcb"

// HCBClient talks to an HCB organization endpoint, e.g.
// https://hcb.hackclub.com/api/v4/organizations/<slug>.
type HCBClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewHCBClient(baseURL, apiKey string, timeout time.Duration) *HCBClient {
	return &HCBClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *HCBClient) CreateGrant(ctx context.Context, req domain.GrantRequest) (*domain.GrantResult, error) {
	logger.ExternalServiceCall(serviceName, "CreateGrant", "email", req.Email, "amount_cents", req.AmountCents)

	var res domain.GrantResult
	err := c.do(ctx, http.MethodPost, "/card_grants", "CreateGrant", req, &res)
	logger.ExternalServiceResult(serviceName, "CreateGrant", err, "email", req.Email, "grant_id", res.ID)
	if err != nil {
		return nil, err
	}
	if res.AmountCents == 0 {
		res.AmountCents = req.AmountCents
	}
	if res.Email == "" {
		res.Email = req.Email
	}
	return &res, nil
}

func (c *HCBClient) OrganizationBalance(ctx context.Context) (decimal.Decimal, error) {
	logger.ExternalServiceCall(serviceName, "OrganizationBalance")

	var org struct {
		BalanceCents int64 `json:"balance_cents"`
	}
	err := c.do(ctx, http.MethodGet, "", "OrganizationBalance", nil, &org)
	logger.ExternalServiceResult(serviceName, "OrganizationBalance", err, "balance_cents", org.BalanceCents)
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.New(org.BalanceCents, -2), nil
}

func (c *HCBClient) do(ctx context.Context, method, path, operation string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", operation, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build %s request: %w", operation, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: hcb %s: %v", domain.ErrExternalService, operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{Operation: operation, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(text))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode hcb %s response: %v", domain.ErrExternalService, operation, err)
	}
	return nil
}
