// Package client talks to the Sprintium HTTP API.
//
// Every authenticated call checks the session first and returns
// apperror.ErrUnauthenticated without touching the network when there is no
// credential. The credential itself is attached by oauth2.Transport, with
// the session store as its TokenSource.
//
// Error bodies ({"error": "<code>", "message": "..."}) are mapped back onto
// the apperror sentinel the server raised. Anything the client cannot
// classify (transport errors, 5xx, unknown codes) is apperror.ErrRemote.
// Nothing is retried.
package client

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

	"golang.org/x/oauth2"

	"github.com/sakif/sprintium/internal/apperror"
)

// maxErrorBody caps how much of an error response is read.
const maxErrorBody = 64 << 10

// Credentials is the part of the session store the client needs.
type Credentials interface {
	Current() (string, error)
	oauth2.TokenSource
}

// Client is an API client bound to one server and one session.
type Client struct {
	baseURL string
	creds   Credentials
	public  *http.Client
	authed  *http.Client
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient uses hc for transport. Its Transport becomes the base of
// the authenticating transport.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.public = hc }
}

// New creates a client for the API at baseURL (e.g. "http://localhost:8080").
func New(baseURL string, creds Credentials, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		creds:   creds,
		public:  &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.authed = &http.Client{
		Transport: &oauth2.Transport{Source: creds, Base: c.public.Transport},
		Timeout:   c.public.Timeout,
	}
	return c
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Field   string `json:"field"`
}

var sentinels = map[string]error{
	"unauthorized":     apperror.ErrUnauthenticated,
	"forbidden":        apperror.ErrForbidden,
	"not_found":        apperror.ErrNotFound,
	"not_a_member":     apperror.ErrNotAMember,
	"already_member":   apperror.ErrAlreadyMember,
	"validation_error": apperror.ErrValidation,
	"conflict":         apperror.ErrConflict,
}

// call performs one round-trip. in is JSON-encoded when non-nil; out is
// decoded from a successful response when non-nil.
func (c *Client) call(ctx context.Context, authed bool, method, path string, in, out any) error {
	op := method + " " + path

	hc := c.public
	if authed {
		if _, err := c.creds.Current(); err != nil {
			return err
		}
		hc = c.authed
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("client: encoding %s request: %w", op, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("client: building %s request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := hc.Do(req)
	if err != nil {
		return apperror.Remote(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(op, resp)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperror.Remote(op, fmt.Errorf("decoding response: %w", err))
	}
	return nil
}

func decodeError(op string, resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var eb errorBody
	if err := json.Unmarshal(raw, &eb); err == nil {
		if sentinel, ok := sentinels[eb.Error]; ok {
			msg := eb.Message
			if msg == "" {
				msg = sentinel.Error()
			}
			return &apperror.AppError{Err: sentinel, Message: msg, Field: eb.Field}
		}
	}

	detail := strings.TrimSpace(eb.Message)
	if detail == "" {
		detail = strings.TrimSpace(string(raw))
	}
	if detail == "" {
		detail = http.StatusText(resp.StatusCode)
	}
	return apperror.Remote(op, fmt.Errorf("HTTP %d: %s", resp.StatusCode, detail))
}

// IsRemote reports whether err is a failed round-trip rather than a
// classified answer from the server.
func IsRemote(err error) bool {
	return errors.Is(err, apperror.ErrRemote)
}
