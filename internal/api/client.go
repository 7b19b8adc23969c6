// Package api is the REST collaborator client. Every backend response may
// arrive as a bare payload or nested once under a data key; unwrapping and
// field-name tolerance live here and nowhere else, so the loose wire shapes
// never leak past the decode functions.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"unichat/internal/domain"
)

// Error is a non-2xx or malformed response from the collaborator.
type Error struct {
	Status int
	Op     string
	Body   string
}

func (e *Error) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s: http %d: %s", e.Op, e.Status, e.Body)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Body)
}

// Transient reports whether an error is worth an automatic retry: network
// failures and 5xx/429 responses. Validation-class 4xx responses are not.
func Transient(err error) bool {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Status == 0 || apiErr.Status == http.StatusTooManyRequests || apiErr.Status >= 500
	}
	return err != nil
}

// Client calls the external collaborator over plain HTTP.
type Client struct {
	base  string
	token string
	http  *http.Client
	log   *zap.Logger
}

// New builds a client. timeout bounds every request.
func New(base, token string, timeout time.Duration, log *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		base:  strings.TrimRight(strings.TrimSpace(base), "/"),
		token: token,
		http:  &http.Client{Timeout: timeout},
		log:   log.Named("api"),
	}
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any) (json.RawMessage, error) {
	endpoint := c.base + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &Error{Op: method + " " + path, Body: err.Error()}
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Op: method + " " + path, Body: err.Error()}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.log.Warn("collaborator call failed",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode))
		return nil, &Error{Status: resp.StatusCode, Op: method + " " + path, Body: compactBody(payload)}
	}
	return unwrapData(payload), nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	raw, err := c.do(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return err
	}
	return decodeInto(raw, path, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	raw, err := c.do(ctx, http.MethodPost, path, nil, body)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return decodeInto(raw, path, out)
}

func decodeInto(raw json.RawMessage, path string, out any) error {
	if out == nil {
		return nil
	}
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &Error{Op: "decode " + path, Body: err.Error()}
	}
	return nil
}

// unwrapData strips at most one level of {"data": ...} nesting. Anything
// else passes through untouched.
func unwrapData(payload []byte) json.RawMessage {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return trimmed
	}
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return trimmed
	}
	if len(bytes.TrimSpace(envelope.Data)) == 0 || string(bytes.TrimSpace(envelope.Data)) == "null" {
		return trimmed
	}
	return envelope.Data
}

func compactBody(payload []byte) string {
	compact := strings.Join(strings.Fields(string(payload)), " ")
	if len(compact) > 240 {
		return compact[:237] + "..."
	}
	return compact
}

// FetchContacts lists the directory for the new-DM dialog.
func (c *Client) FetchContacts(ctx context.Context) ([]domain.Contact, error) {
	var wire []wireContact
	if err := c.get(ctx, "/contacts", nil, &wire); err != nil {
		return nil, err
	}
	contacts := make([]domain.Contact, 0, len(wire))
	for _, w := range wire {
		contacts = append(contacts, w.decode())
	}
	return contacts, nil
}

// FetchThreads lists threads for one conversation domain.
func (c *Client) FetchThreads(ctx context.Context, threadType domain.ThreadType) ([]domain.Thread, error) {
	query := url.Values{}
	query.Set("type", string(threadType))
	var wire []wireThread
	if err := c.get(ctx, "/threads", query, &wire); err != nil {
		return nil, err
	}
	threads := make([]domain.Thread, 0, len(wire))
	for _, w := range wire {
		threads = append(threads, w.decode(threadType))
	}
	return threads, nil
}

// FetchChannels lists joinable team channels.
func (c *Client) FetchChannels(ctx context.Context) ([]domain.Thread, error) {
	var wire []wireThread
	if err := c.get(ctx, "/channels", nil, &wire); err != nil {
		return nil, err
	}
	threads := make([]domain.Thread, 0, len(wire))
	for _, w := range wire {
		threads = append(threads, w.decode(domain.ThreadTeamChannel))
	}
	return threads, nil
}

// CreateChannel creates a named channel and returns the new thread id,
// tolerating thread_id, id, or data.thread_id response shapes.
func (c *Client) CreateChannel(ctx context.Context, name string) (string, error) {
	raw, err := c.do(ctx, http.MethodPost, "/channels", nil, map[string]string{"name": name})
	if err != nil {
		return "", err
	}
	return ExtractThreadID(raw)
}

// JoinChannel joins an existing channel by raw thread id.
func (c *Client) JoinChannel(ctx context.Context, threadID string) (string, error) {
	raw, err := c.do(ctx, http.MethodPost, "/channels/"+url.PathEscape(threadID)+"/join", nil, nil)
	if err != nil {
		return "", err
	}
	id, err := ExtractThreadID(raw)
	if err != nil {
		// Some deployments return an empty body on join; the input id is
		// authoritative then.
		return threadID, nil
	}
	return id, nil
}

// CreateDM opens (or returns the existing) direct-message thread with a
// contact.
func (c *Client) CreateDM(ctx context.Context, recipientID string) (string, error) {
	raw, err := c.do(ctx, http.MethodPost, "/threads", nil, map[string]string{"recipient_id": recipientID, "type": string(domain.ThreadTeamDM)})
	if err != nil {
		return "", err
	}
	return ExtractThreadID(raw)
}

// PinThread toggles pin state.
func (c *Client) PinThread(ctx context.Context, threadID string, pinned bool) error {
	return c.post(ctx, "/threads/"+url.PathEscape(threadID)+"/pin", map[string]bool{"pinned": pinned}, nil)
}

// MuteThread toggles mute state.
func (c *Client) MuteThread(ctx context.Context, threadID string, muted bool) error {
	return c.post(ctx, "/threads/"+url.PathEscape(threadID)+"/mute", map[string]bool{"muted": muted}, nil)
}

// DeleteThread removes a thread.
func (c *Client) DeleteThread(ctx context.Context, threadID string) error {
	raw, err := c.do(ctx, http.MethodDelete, "/threads/"+url.PathEscape(threadID), nil, nil)
	_ = raw
	return err
}

// FetchMessages returns a thread's messages oldest-first.
func (c *Client) FetchMessages(ctx context.Context, threadID, currentUserID string) ([]domain.Message, error) {
	var wire []wireMessage
	if err := c.get(ctx, "/threads/"+url.PathEscape(threadID)+"/messages", nil, &wire); err != nil {
		return nil, err
	}
	messages := make([]domain.Message, 0, len(wire))
	for _, w := range wire {
		messages = append(messages, w.decode(threadID, currentUserID))
	}
	return messages, nil
}

// PostMessage sends message content to a thread and returns the stored copy.
func (c *Client) PostMessage(ctx context.Context, threadID, content string, attachments []domain.Attachment) (domain.Message, error) {
	body := map[string]any{"content": content}
	if len(attachments) > 0 {
		ids := make([]string, 0, len(attachments))
		for _, att := range attachments {
			ids = append(ids, att.ID)
		}
		body["attachment_ids"] = ids
	}
	var wire wireMessage
	if err := c.post(ctx, "/threads/"+url.PathEscape(threadID)+"/messages", body, &wire); err != nil {
		return domain.Message{}, err
	}
	return wire.decode(threadID, ""), nil
}

// EditMessage replaces message content (team domain only, enforced upstream).
func (c *Client) EditMessage(ctx context.Context, threadID, messageID, content string) error {
	return c.post(ctx, "/threads/"+url.PathEscape(threadID)+"/messages/"+url.PathEscape(messageID)+"/edit", map[string]string{"content": content}, nil)
}

// DeleteMessage tombstones a message.
func (c *Client) DeleteMessage(ctx context.Context, threadID, messageID string) error {
	return c.post(ctx, "/threads/"+url.PathEscape(threadID)+"/messages/"+url.PathEscape(messageID)+"/delete", nil, nil)
}

// MarkRead clears the unread counter for a thread.
func (c *Client) MarkRead(ctx context.Context, threadID string) error {
	return c.post(ctx, "/threads/"+url.PathEscape(threadID)+"/read", nil, nil)
}

// React adds an emoji reaction to a message.
func (c *Client) React(ctx context.Context, threadID, messageID, emoji string) error {
	return c.post(ctx, "/threads/"+url.PathEscape(threadID)+"/messages/"+url.PathEscape(messageID)+"/reactions", map[string]string{"emoji": emoji}, nil)
}

// Unreact removes an emoji reaction from a message.
func (c *Client) Unreact(ctx context.Context, threadID, messageID, emoji string) error {
	return c.post(ctx, "/threads/"+url.PathEscape(threadID)+"/messages/"+url.PathEscape(messageID)+"/reactions/remove", map[string]string{"emoji": emoji}, nil)
}

// FetchReplies loads a message's reply thread.
func (c *Client) FetchReplies(ctx context.Context, threadID, messageID, currentUserID string) ([]domain.Message, error) {
	var wire []wireMessage
	if err := c.get(ctx, "/threads/"+url.PathEscape(threadID)+"/messages/"+url.PathEscape(messageID)+"/replies", nil, &wire); err != nil {
		return nil, err
	}
	messages := make([]domain.Message, 0, len(wire))
	for _, w := range wire {
		messages = append(messages, w.decode(threadID, currentUserID))
	}
	return messages, nil
}

// SetTyping reports the current user's typing state on a thread.
func (c *Client) SetTyping(ctx context.Context, threadID string, typing bool) error {
	return c.post(ctx, "/threads/"+url.PathEscape(threadID)+"/typing", map[string]bool{"typing": typing}, nil)
}

// GetPresence returns presence for a set of users.
func (c *Client) GetPresence(ctx context.Context, userIDs []string) ([]domain.Presence, error) {
	query := url.Values{}
	query.Set("ids", strings.Join(userIDs, ","))
	var wire []wirePresence
	if err := c.get(ctx, "/presence", query, &wire); err != nil {
		return nil, err
	}
	out := make([]domain.Presence, 0, len(wire))
	for _, w := range wire {
		out = append(out, w.decode())
	}
	return out, nil
}

// SetDND toggles the current user's do-not-disturb flag.
func (c *Client) SetDND(ctx context.Context, enabled bool) error {
	return c.post(ctx, "/presence/dnd", map[string]bool{"enabled": enabled}, nil)
}

// SearchScope selects what a search request covers.
type SearchScope string

const (
	ScopeThreads  SearchScope = "threads"
	ScopeContacts SearchScope = "contacts"
	ScopeMessages SearchScope = "messages"
)

// SearchResults is the unified quick-switch result set.
type SearchResults struct {
	Threads  []domain.Thread
	Contacts []domain.Contact
	Messages []domain.Message
}

// Search runs the server-side search endpoint over the given scopes.
func (c *Client) Search(ctx context.Context, queryText string, scopes []SearchScope, limit int) (SearchResults, error) {
	query := url.Values{}
	query.Set("q", queryText)
	if limit > 0 {
		query.Set("limit", fmt.Sprintf("%d", limit))
	}
	scopeNames := make([]string, 0, len(scopes))
	for _, scope := range scopes {
		scopeNames = append(scopeNames, string(scope))
	}
	query.Set("scope", strings.Join(scopeNames, ","))

	var wire struct {
		Threads  []wireThread  `json:"threads"`
		Contacts []wireContact `json:"contacts"`
		Messages []wireMessage `json:"messages"`
	}
	if err := c.get(ctx, "/search", query, &wire); err != nil {
		return SearchResults{}, err
	}
	var results SearchResults
	for _, w := range wire.Threads {
		results.Threads = append(results.Threads, w.decode(""))
	}
	for _, w := range wire.Contacts {
		results.Contacts = append(results.Contacts, w.decode())
	}
	for _, w := range wire.Messages {
		results.Messages = append(results.Messages, w.decode("", ""))
	}
	return results, nil
}

// FetchHandoffQueue lists visitors waiting for an agent.
func (c *Client) FetchHandoffQueue(ctx context.Context) ([]domain.HandoffRequest, error) {
	var wire []wireHandoff
	if err := c.get(ctx, "/visitor/handoff", nil, &wire); err != nil {
		return nil, err
	}
	out := make([]domain.HandoffRequest, 0, len(wire))
	for _, w := range wire {
		out = append(out, w.decode())
	}
	return out, nil
}

// FetchSession loads the visitor session behind a thread.
func (c *Client) FetchSession(ctx context.Context, threadID string) (domain.VisitorSession, error) {
	var wire wireSession
	if err := c.get(ctx, "/visitor/sessions/"+url.PathEscape(threadID), nil, &wire); err != nil {
		return domain.VisitorSession{}, err
	}
	return wire.decode(threadID), nil
}

// FetchCannedResponses lists predefined visitor-chat replies.
func (c *Client) FetchCannedResponses(ctx context.Context) ([]domain.CannedResponse, error) {
	var wire []wireCanned
	if err := c.get(ctx, "/visitor/canned", nil, &wire); err != nil {
		return nil, err
	}
	out := make([]domain.CannedResponse, 0, len(wire))
	for _, w := range wire {
		out = append(out, w.decode())
	}
	return out, nil
}

// SetAgentTyping reports agent typing state on a visitor thread.
func (c *Client) SetAgentTyping(ctx context.Context, threadID string, typing bool) error {
	return c.post(ctx, "/visitor/sessions/"+url.PathEscape(threadID)+"/typing", map[string]bool{"typing": typing}, nil)
}

// SendFeedback records a thumbs rating for an AI response.
func (c *Client) SendFeedback(ctx context.Context, messageID string, positive bool) error {
	return c.post(ctx, "/feedback", map[string]any{"message_id": messageID, "positive": positive}, nil)
}
