// lionsgeek-chat - Chat sync core for the LionsGeek mobile client.
// Copyright (C) 2026 LionsGeek
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package api implements the conversation-scoped REST contract the chat
// core consumes. Base path and bearer token come from configuration; every
// call carries a hard timeout so a stalled request degrades into a normal
// fetch or send failure instead of wedging the poll loop.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aymanboujjar/lionsgeek-chat/pkg/attach"
)

// DefaultTimeout bounds every request when the caller supplies no
// http.Client of its own. Expiry is reported as an ordinary error, which
// the poll loop retries next tick and the send path rolls back.
const DefaultTimeout = 15 * time.Second

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("server returned HTTP %d", e.Code)
	}
	return fmt.Sprintf("server returned HTTP %d: %s", e.Code, e.Body)
}

type Client struct {
	http    *http.Client
	baseURL string
	token   string
	log     zerolog.Logger
}

func NewClient(baseURL, token string, httpClient *http.Client, log zerolog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{
		http:    httpClient,
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		log:     log.With().Str("component", "api").Logger(),
	}
}

// Messages fetches the conversation's full message list in ascending
// chronological (server) order.
func (c *Client) Messages(ctx context.Context, conversationID int64) ([]Message, error) {
	var resp messagesResponse
	url := fmt.Sprintf("%s/chat/conversation/%d/messages", c.baseURL, conversationID)
	if err := c.getJSON(ctx, url, &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

// SendRequest is one outgoing message. Body may be empty when an
// attachment is present; the server rejects the reverse.
type SendRequest struct {
	Body       string
	Attachment *attach.Descriptor
}

// Send posts a message as multipart/form-data. The attachment part carries
// the resolved MIME type and the attachment_type classifier field required
// by the server whenever a file is attached.
func (c *Client) Send(ctx context.Context, conversationID int64, req SendRequest) (*Message, error) {
	body, contentType, err := buildSendBody(req)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/chat/conversation/%d/send", c.baseURL, conversationID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", contentType)
	c.authorize(httpReq)

	raw, err := c.do(httpReq)
	if err != nil {
		return nil, err
	}
	var resp sendResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse send response: %w", err)
	}
	return &resp.Message, nil
}

// MarkRead marks the whole conversation read. The response body is not
// consumed; only success or failure matters.
func (c *Client) MarkRead(ctx context.Context, conversationID int64) error {
	url := fmt.Sprintf("%s/chat/conversation/%d/read", c.baseURL, conversationID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return err
	}
	c.authorize(req)
	_, err = c.do(req)
	return err
}

func (c *Client) DeleteMessage(ctx context.Context, messageID int64) error {
	url := fmt.Sprintf("%s/chat/message/%d", c.baseURL, messageID)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return err
	}
	c.authorize(req)
	_, err = c.do(req)
	return err
}

// UnreadCount feeds the chat-entry badge.
func (c *Client) UnreadCount(ctx context.Context) (int, error) {
	var resp unreadCountResponse
	if err := c.getJSON(ctx, c.baseURL+"/chat/unread-count", &resp); err != nil {
		return 0, err
	}
	return resp.UnreadCount, nil
}

func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	c.authorize(req)
	raw, err := c.do(req)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to parse response from %s: %w", url, err)
	}
	return nil
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Accept", "application/json")
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.log.Debug().
			Int("status", resp.StatusCode).
			Str("url", req.URL.Path).
			Msg("Request failed")
		return nil, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	return raw, nil
}

// buildSendBody assembles the multipart payload in memory. Chat uploads
// are bounded by the server's attachment size limit, so streaming the file
// part buys nothing over a single buffer.
func buildSendBody(req SendRequest) (io.Reader, string, error) {
	var buf strings.Builder
	w := multipart.NewWriter(&buf)

	if err := w.WriteField("body", req.Body); err != nil {
		return nil, "", err
	}
	if att := req.Attachment; att != nil {
		part, err := w.CreatePart(attachmentPartHeader(att))
		if err != nil {
			return nil, "", err
		}
		f, err := os.Open(att.Path)
		if err != nil {
			return nil, "", fmt.Errorf("failed to open attachment: %w", err)
		}
		_, err = io.Copy(part, f)
		f.Close()
		if err != nil {
			return nil, "", fmt.Errorf("failed to read attachment: %w", err)
		}
		if err := w.WriteField("attachment_type", string(att.Kind)); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return strings.NewReader(buf.String()), w.FormDataContentType(), nil
}

// attachmentPartHeader builds the form part header for the attachment
// field, carrying the resolved MIME type instead of multipart's default
// octet-stream.
func attachmentPartHeader(att *attach.Descriptor) textproto.MIMEHeader {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="attachment"; filename=%q`, att.Name))
	h.Set("Content-Type", att.MIME)
	return h
}
