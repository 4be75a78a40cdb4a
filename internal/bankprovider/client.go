// Package bankprovider wraps the bank provider's card-issuance endpoint.
// The provider is the source of truth for card material; this client does a
// single network call per invocation and classifies the outcome into two
// failure categories the issuance flow understands.
package bankprovider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Failure categories for a provider call. Errors returned by IssueCard wrap
// exactly one of these.
var (
	// ErrClientRejected means the provider reports the request itself is
	// invalid, e.g. the user is unknown to it.
	ErrClientRejected = errors.New("provider rejected the request")
	// ErrUnavailable means the provider errored, could not be reached, or
	// answered with something that cannot be interpreted.
	ErrUnavailable = errors.New("provider unavailable")
)

const issuePath = "/api/v2/card/"

// DefaultTimeout bounds the provider round-trip; the upstream contract
// specifies none, so an explicit limit is imposed here.
const DefaultTimeout = 10 * time.Second

// Provider color codes. The user-facing color vocabulary is mapped before
// anything goes on the wire.
const (
	colorCodePink  = "COLOR_1"
	colorCodeBlack = "COLOR_2"
)

// Client calls the bank provider's card endpoint. It keeps no state between
// calls and never retries; retry policy belongs to callers.
type Client struct {
	base string
	http *http.Client
}

// New creates a provider client for the given base URL. A zero timeout
// selects DefaultTimeout.
func New(base string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: timeout},
	}
}

// IssuedCard is the provider's successful response. ExpirationDate is the
// raw ISO-8601 string as received (possibly empty, possibly offset-less);
// normalization is the caller's concern.
type IssuedCard struct {
	ID             string `json:"id"`
	Color          string `json:"color"`
	Status         string `json:"status"`
	ExpirationDate string `json:"expiration_date"`
}

type issueRequest struct {
	UserID string `json:"user_id"`
	Color  string `json:"color"`
}

// ColorCode translates a user-facing color into the provider's code.
func ColorCode(color string) (string, error) {
	switch color {
	case "pink":
		return colorCodePink, nil
	case "black":
		return colorCodeBlack, nil
	default:
		return "", fmt.Errorf("no provider code for color %q", color)
	}
}

// IssueCard requests one card for the given external user identity. On
// success the returned IssuedCard carries the provider's reference id,
// status and expiration verbatim. All failures wrap ErrClientRejected or
// ErrUnavailable.
func (c *Client) IssueCard(ctx context.Context, externalUserID, color string) (IssuedCard, error) {
	code, err := ColorCode(color)
	if err != nil {
		return IssuedCard{}, fmt.Errorf("%v: %w", err, ErrClientRejected)
	}

	body, err := json.Marshal(issueRequest{UserID: externalUserID, Color: code})
	if err != nil {
		return IssuedCard{}, fmt.Errorf("marshal issue request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+issuePath, bytes.NewReader(body))
	if err != nil {
		return IssuedCard{}, fmt.Errorf("build issue request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return IssuedCard{}, fmt.Errorf("calling provider: %v: %w", err, ErrUnavailable)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusCreated:
		var card IssuedCard
		if err := json.NewDecoder(resp.Body).Decode(&card); err != nil {
			return IssuedCard{}, fmt.Errorf("decoding provider response: %v: %w", err, ErrUnavailable)
		}
		return card, nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return IssuedCard{}, fmt.Errorf("provider status=%d body=%s: %w", resp.StatusCode, readBody(resp.Body), ErrClientRejected)
	default:
		return IssuedCard{}, fmt.Errorf("provider status=%d body=%s: %w", resp.StatusCode, readBody(resp.Body), ErrUnavailable)
	}
}

func readBody(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, 1024))
	return strings.TrimSpace(string(b))
}
