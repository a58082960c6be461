package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

// AppleReceiptRequest is the verifyReceipt request body.
type AppleReceiptRequest struct {
	ReceiptData            string `json:"receipt-data"`
	Password               string `json:"password,omitempty"`
	ExcludeOldTransactions bool   `json:"exclude-old-transactions"`
}

// AppleReceiptGateway posts a receipt to a verifyReceipt endpoint and returns
// the decoded JSON response. Numbers are kept as json.Number.
type AppleReceiptGateway interface {
	PostReceipt(ctx context.Context, url string, req AppleReceiptRequest) (map[string]any, error)
}

type appleHTTPGateway struct {
	client *http.Client
}

// NewAppleHTTPGateway returns a gateway bounded by a connect timeout and a
// total per-call timeout.
func NewAppleHTTPGateway(connectTimeout, timeout time.Duration) AppleReceiptGateway {
	dialer := &net.Dialer{Timeout: connectTimeout}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = dialer.DialContext
	return &appleHTTPGateway{
		client: &http.Client{Timeout: timeout, Transport: transport},
	}
}

// NewAppleGatewayWithClient is used when the caller owns the http.Client.
func NewAppleGatewayWithClient(client *http.Client) AppleReceiptGateway {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &appleHTTPGateway{client: client}
}

func (g *appleHTTPGateway) PostReceipt(ctx context.Context, url string, body AppleReceiptRequest) (map[string]any, error) {
	buf, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode receipt request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(buf))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("apple verifyReceipt: %s (%s)", resp.Status, strings.TrimSpace(string(raw)))
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("decode verifyReceipt response: %w", err)
	}
	if out == nil {
		return nil, fmt.Errorf("apple verifyReceipt: empty response")
	}
	return out, nil
}
