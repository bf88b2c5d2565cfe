package recordstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"tokenshop-backend/internal/domain"
	"tokenshop-backend/internal/logger"
)

const serviceName = "airtable"

type Tables struct {
	Orders      string
	ShopItems   string
	Signups     string
	Submissions string
}

type record struct {
	ID     string         `json:"id,omitempty"`
	Fields map[string]any `json:"fields"`
}

type listResponse struct {
	Records []record `json:"records"`
	Offset  string   `json:"offset,omitempty"`
}

type AirtableClient struct {
	baseURL         string
	baseID          string
	apiKey          string
	tables          Tables
	approvedFormula string
	httpClient      *http.Client
}

func NewAirtableClient(baseURL, baseID, apiKey string, tables Tables, approvedFormula string, timeout time.Duration) *AirtableClient {
	return &AirtableClient{
		baseURL:         strings.TrimRight(baseURL, "/"),
		baseID:          baseID,
		apiKey:          apiKey,
		tables:          tables,
		approvedFormula: approvedFormula,
		httpClient:      &http.Client{Timeout: timeout},
	}
}

func (c *AirtableClient) ApprovedEmails(ctx context.Context) (map[string]struct{}, error) {
	records, err := c.listRecords(ctx, c.tables.Submissions, c.approvedFormula)
	if err != nil {
		return nil, err
	}

	emails := make(map[string]struct{}, len(records))
	for _, r := range records {
		email, _ := r.Fields["Email"].(string)
		email = strings.ToLower(strings.TrimSpace(email))
		if email != "" {
			emails[email] = struct{}{}
		}
	}
	logger.Info("Fetched approved emails", "records", len(records), "unique_emails", len(emails))
	return emails, nil
}

func (c *AirtableClient) UpsertOrder(ctx context.Context, rec OrderRecord, existingID *string) (string, error) {
	fields := map[string]any{
		"Item Name":    rec.ItemName,
		"Email":        rec.Email,
		"priceAtOrder": rec.PriceAtOrder,
		"status":       capitalize(string(rec.Status)),
	}
	if rec.UserRecordID != nil && *rec.UserRecordID != "" {
		fields["userId"] = []string{*rec.UserRecordID}
	}
	if rec.ShopItemRecordID != nil && *rec.ShopItemRecordID != "" {
		fields["shopItemId"] = []string{*rec.ShopItemRecordID}
	}

	if existingID != nil && *existingID != "" {
		if err := c.updateRecord(ctx, c.tables.Orders, *existingID, fields); err != nil {
			return "", err
		}
		return *existingID, nil
	}
	created, err := c.createRecord(ctx, c.tables.Orders, fields)
	if err != nil {
		return "", err
	}
	return created.ID, nil
}

func (c *AirtableClient) FindShopItemRecordID(ctx context.Context, name string) (string, error) {
	formula := fmt.Sprintf(`{name} = "%s"`, strings.ReplaceAll(name, `"`, `\"`))
	records, err := c.listRecords(ctx, c.tables.ShopItems, formula)
	if err != nil {
		return "", err
	}
	if len(records) == 0 {
		return "", nil
	}
	return records[0].ID, nil
}

// AddPointsRedeemed is a read-modify-write on the signup record; concurrent
// callers may lose an increment.
func (c *AirtableClient) AddPointsRedeemed(ctx context.Context, userRecordID string, points int64) error {
	var current record
	path := c.tablePath(c.tables.Signups) + "/" + url.PathEscape(userRecordID)
	if err := c.do(ctx, http.MethodGet, path, "GetSignup", nil, &current); err != nil {
		return err
	}

	redeemed, _ := current.Fields["Points Redeemed"].(float64)
	fields := map[string]any{"Points Redeemed": int64(redeemed) + points}
	return c.updateRecord(ctx, c.tables.Signups, userRecordID, fields)
}

// listRecords follows the offset cursor until the response carries none.
func (c *AirtableClient) listRecords(ctx context.Context, table, formula string) ([]record, error) {
	logger.ExternalServiceCall(serviceName, "ListRecords", "table", table)

	var all []record
	offset := ""
	pages := 0
	for {
		params := url.Values{}
		if formula != "" {
			params.Set("filterByFormula", formula)
		}
		if offset != "" {
			params.Set("offset", offset)
		}
		path := c.tablePath(table)
		if len(params) > 0 {
			path += "?" + params.Encode()
		}

		var page listResponse
		if err := c.do(ctx, http.MethodGet, path, "ListRecords", nil, &page); err != nil {
			logger.ExternalServiceResult(serviceName, "ListRecords", err, "table", table, "pages", pages)
			return nil, err
		}
		pages++
		all = append(all, page.Records...)
		if page.Offset == "" {
			break
		}
		offset = page.Offset
	}

	logger.ExternalServiceResult(serviceName, "ListRecords", nil, "table", table, "pages", pages, "records", len(all))
	return all, nil
}

func (c *AirtableClient) createRecord(ctx context.Context, table string, fields map[string]any) (*record, error) {
	logger.ExternalServiceCall(serviceName, "CreateRecord", "table", table)
	var created record
	err := c.do(ctx, http.MethodPost, c.tablePath(table), "CreateRecord", record{Fields: fields}, &created)
	logger.ExternalServiceResult(serviceName, "CreateRecord", err, "table", table, "record_id", created.ID)
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func (c *AirtableClient) updateRecord(ctx context.Context, table, id string, fields map[string]any) error {
	logger.ExternalServiceCall(serviceName, "UpdateRecord", "table", table, "record_id", id)
	path := c.tablePath(table) + "/" + url.PathEscape(id)
	err := c.do(ctx, http.MethodPatch, path, "UpdateRecord", record{Fields: fields}, nil)
	logger.ExternalServiceResult(serviceName, "UpdateRecord", err, "table", table, "record_id", id)
	return err
}

func (c *AirtableClient) tablePath(table string) string {
	return "/" + url.PathEscape(c.baseID) + "/" + url.PathEscape(table)
}

func (c *AirtableClient) do(ctx context.Context, method, path, operation string, body, out any) error {
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
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: airtable %s: %v", domain.ErrExternalService, operation, err)
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
		return fmt.Errorf("%w: decode airtable %s response: %v", domain.ErrExternalService, operation, err)
	}
	return nil
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
