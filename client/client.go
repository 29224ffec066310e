// Package client talks to the document store over HTTP. Every call is
// bounded by a timeout and every failure is returned to the caller.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"slidedeck/core"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

const DefaultTimeout = 10 * time.Second

type (
	Client struct {
		baseURL    string
		username   string
		timeout    time.Duration
		httpClient *http.Client
	}

	Option func(*Client)

	// Created is the store's answer to a create call.
	Created struct {
		ID       string `json:"id"`
		Revision int64  `json:"revision"`
	}

	// StatusError is a non-success HTTP response.
	StatusError struct {
		Code    int
		Message string
	}
)

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("remote store returned %d", e.Code)
	}
	return fmt.Sprintf("remote store returned %d: %s", e.Code, e.Message)
}

func (e *StatusError) Unwrap() error {
	switch e.Code {
	case http.StatusNotFound:
		return core.ErrNotFound
	case http.StatusConflict:
		return core.ErrConflict
	case http.StatusBadRequest:
		return core.ErrValidation
	default:
		return nil
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New returns a client for the store at baseURL acting as username.
func New(baseURL, username string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		username:   username,
		timeout:    DefaultTimeout,
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Username() string { return c.username }

// do performs one request. A transport failure, a timeout and any non-2xx
// status come back as a TransientError, except 403 which is a
// ForbiddenError.
func (c *Client) do(ctx context.Context, op, method, path string, body any, ifRevision int64) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%s: encode body: %w", op, err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.username != "" {
		req.Header.Set("X-Username", c.username)
	}
	if ifRevision != 0 {
		req.Header.Set("If-Match", strconv.Quote(strconv.FormatInt(ifRevision, 10)))
	}

	log := logrus.WithFields(logrus.Fields{"op": op, "method": method, "path": path})
	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.WithError(err).Warn("Remote store call failed")
		return nil, core.Transient(op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, core.Transient(op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var payload struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(data, &payload)
		log.WithField("status", resp.StatusCode).Warn("Remote store rejected call")
		if resp.StatusCode == http.StatusForbidden {
			return nil, &core.ForbiddenError{Username: c.username, Action: forbiddenAction(payload.Error)}
		}
		return nil, core.Transient(op, &StatusError{Code: resp.StatusCode, Message: payload.Error})
	}
	log.WithField("status", resp.StatusCode).Debug("Remote store call succeeded")
	return data, nil
}

// forbiddenAction extracts the refused action from the server's
// `user "x" may not <action>` message.
func forbiddenAction(msg string) string {
	if _, action, ok := strings.Cut(msg, " may not "); ok {
		return action
	}
	if msg == "" {
		return "perform this action"
	}
	return msg
}

func decodeDocument(op string, data []byte) (*core.Document, error) {
	doc, err := core.DecodeDocument(data)
	if err != nil {
		return nil, core.Transient(op, err)
	}
	return doc, nil
}

// Create posts a new document and returns the id the store assigned.
func (c *Client) Create(ctx context.Context, doc *core.Document) (Created, error) {
	data, err := c.do(ctx, "create document", http.MethodPost, "/documents", doc, 0)
	if err != nil {
		return Created{}, err
	}
	var created Created
	if err := json.Unmarshal(data, &created); err != nil || created.ID == "" {
		return Created{}, core.Transient("create document", fmt.Errorf("%w: no id in response", core.ErrInvalidDocument))
	}
	return created, nil
}

// Get fetches one document. A cachebust token defeats intermediate caches.
func (c *Client) Get(ctx context.Context, id string) (*core.Document, error) {
	q := url.Values{"cachebust": {ulid.Make().String()}}
	data, err := c.do(ctx, "load document", http.MethodGet, "/documents/"+url.PathEscape(id)+"?"+q.Encode(), nil, 0)
	if err != nil {
		return nil, err
	}
	return decodeDocument("load document", data)
}

// List fetches every document. An empty or null collection is an empty slice.
func (c *Client) List(ctx context.Context) ([]*core.Document, error) {
	data, err := c.do(ctx, "list documents", http.MethodGet, "/documents", nil, 0)
	if err != nil {
		return nil, err
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, core.Transient("list documents", fmt.Errorf("%w: %v", core.ErrInvalidDocument, err))
	}
	docs := make([]*core.Document, 0, len(raw))
	for _, r := range raw {
		doc, err := core.DecodeDocument(r)
		if err != nil {
			logrus.WithError(err).Warn("Skipping malformed document in list")
			continue
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// Replace overwrites the whole document. A non-zero ifRevision makes the
// write conditional.
func (c *Client) Replace(ctx context.Context, doc *core.Document, ifRevision int64) (*core.Document, error) {
	data, err := c.do(ctx, "save document", http.MethodPut, "/documents/"+url.PathEscape(doc.ID), doc, ifRevision)
	if err != nil {
		return nil, err
	}
	return decodeDocument("save document", data)
}

func (c *Client) Patch(ctx context.Context, id string, patch core.Patch, ifRevision int64) (*core.Document, error) {
	data, err := c.do(ctx, "patch document", http.MethodPatch, "/documents/"+url.PathEscape(id), patch, ifRevision)
	if err != nil {
		return nil, err
	}
	return decodeDocument("patch document", data)
}

// AddViewer registers username as a viewer of the document.
func (c *Client) AddViewer(ctx context.Context, id, username string) (*core.Document, error) {
	body := struct {
		Username string `json:"username"`
	}{username}
	data, err := c.do(ctx, "register viewer", http.MethodPost, "/documents/"+url.PathEscape(id)+"/viewers", body, 0)
	if err != nil {
		return nil, err
	}
	return decodeDocument("register viewer", data)
}

// IsConflict reports whether err is a revision conflict from the store.
func IsConflict(err error) bool {
	return errors.Is(err, core.ErrConflict)
}
