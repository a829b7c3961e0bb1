package xero

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	apperrors "portal-backend/internal/errors"
	"portal-backend/internal/models"
)

// Default endpoints, swappable as a set for tests.
var (
	defaultTokenURL    = "https://identity.xero.com/connect/token"
	defaultInvoicesURL = "https://api.xero.com/api.xro/2.0/Invoices"
	defaultItemsURL    = "https://api.xero.com/api.xro/2.0/Items"
)

// Client talks to the Xero accounting API for one company's credentials.
// Endpoints are overridable for tests.
type Client struct {
	HTTPClient  *http.Client
	TokenURL    string
	InvoicesURL string
	ItemsURL    string

	settings *models.XeroSettings
}

// NewClient builds a client with the 30 s absolute timeout every outbound
// call carries.
func NewClient(settings *models.XeroSettings) *Client {
	return &Client{
		HTTPClient:  &http.Client{Timeout: 30 * time.Second},
		TokenURL:    defaultTokenURL,
		InvoicesURL: defaultInvoicesURL,
		ItemsURL:    defaultItemsURL,
		settings:    settings,
	}
}

// FetchAccessToken exchanges the stored refresh token for an access token.
func (c *Client) FetchAccessToken(ctx context.Context) (string, error) {
	form := url.Values{
		"grant_type":    []string{"refresh_token"},
		"refresh_token": []string{c.settings.RefreshToken},
		"client_id":     []string{c.settings.ClientID},
		"client_secret": []string{c.settings.ClientSecret},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.TokenURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.CodeUpstreamError, "token exchange failed")
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", apperrors.Newf(apperrors.CodeUpstreamFailed,
			"token exchange returned %d", resp.StatusCode)
	}

	var token struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.Unmarshal(body, &token); err != nil {
		return "", apperrors.Wrap(err, apperrors.CodeUpstreamError, "unparseable token response")
	}
	if token.AccessToken == "" {
		return "", apperrors.New(apperrors.CodeUpstreamFailed, "token response missing access_token")
	}
	return token.AccessToken, nil
}

// InvoiceRequest is the exact request the journal records before sending.
type InvoiceRequest struct {
	URL     string
	Headers map[string]string
	Body    string
}

// BuildInvoiceRequest serializes the invoice payload with the headers Xero
// requires.
func (c *Client) BuildInvoiceRequest(accessToken string, invoice *Invoice) (*InvoiceRequest, error) {
	payload, err := json.Marshal(map[string]interface{}{
		"Invoices": []*Invoice{invoice},
	})
	if err != nil {
		return nil, err
	}
	return &InvoiceRequest{
		URL: c.InvoicesURL,
		Headers: map[string]string{
			"Authorization":  "Bearer " + accessToken,
			"xero-tenant-id": c.settings.TenantID,
			"Content-Type":   "application/json",
			"Accept":         "application/json",
		},
		Body: string(payload),
	}, nil
}

// InvoiceResponse captures what the POST observed, verbatim.
type InvoiceResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
}

// OK reports a 2xx response.
func (r *InvoiceResponse) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// InvoiceNumber parses the invoice number out of a successful response.
func (r *InvoiceResponse) InvoiceNumber() string {
	var parsed struct {
		Invoices []struct {
			InvoiceNumber string `json:"InvoiceNumber"`
		} `json:"Invoices"`
	}
	if err := json.Unmarshal([]byte(r.Body), &parsed); err != nil {
		return ""
	}
	if len(parsed.Invoices) == 0 {
		return ""
	}
	return parsed.Invoices[0].InvoiceNumber
}

// PostInvoice transmits a prepared request. A transport error returns err;
// an HTTP error status returns a response with OK() false.
func (c *Client) PostInvoice(ctx context.Context, request *InvoiceRequest) (*InvoiceResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, request.URL,
		strings.NewReader(request.Body))
	if err != nil {
		return nil, err
	}
	for k, v := range request.Headers {
		req.Header.Set(k, v)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeUpstreamError, "invoice POST failed")
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	headers := make(map[string]string, len(resp.Header))
	for k, values := range resp.Header {
		if len(values) > 0 {
			headers[k] = values[0]
		}
	}
	return &InvoiceResponse{
		StatusCode: resp.StatusCode,
		Body:       string(body),
		Headers:    headers,
	}, nil
}

// FetchItemRates looks up sales unit prices for the given item codes. Best
// effort enrichment: any failure returns an empty map.
func (c *Client) FetchItemRates(ctx context.Context, accessToken string, codes []string) map[string]float64 {
	rates := map[string]float64{}
	if len(codes) == 0 {
		return rates
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.ItemsURL, nil)
	if err != nil {
		return rates
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("xero-tenant-id", c.settings.TenantID)
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		logrus.WithError(err).Debug("item rate lookup failed")
		return rates
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return rates
	}

	var parsed struct {
		Items []struct {
			Code         string `json:"Code"`
			SalesDetails struct {
				UnitPrice float64 `json:"UnitPrice"`
			} `json:"SalesDetails"`
		} `json:"Items"`
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err := json.Unmarshal(body, &parsed); err != nil {
		return rates
	}

	wanted := make(map[string]bool, len(codes))
	for _, code := range codes {
		wanted[code] = true
	}
	for _, item := range parsed.Items {
		if wanted[item.Code] {
			rates[item.Code] = item.SalesDetails.UnitPrice
		}
	}
	return rates
}

func describeStatus(code int) string {
	return fmt.Sprintf("%d %s", code, http.StatusText(code))
}
