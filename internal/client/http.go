// Package client is the REST consumer used by the CLI and the sync
// stores: one HTTPClient per backend, with typed views over the
// notification and message resources.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"campuscare/internal/api/dto"
	"campuscare/internal/api/models"
	"campuscare/internal/sync/msgsync"
	"campuscare/internal/sync/notifysync"
)

type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	token      string
}

func New(apiURL string) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(apiURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *HTTPClient) SetToken(token string) {
	c.token = token
}

func (c *HTTPClient) Token() string {
	return c.token
}

// WSEndpoint derives the websocket URL from the API base URL, carrying
// the token as a query parameter because websocket dials from browsers
// cannot set headers.
func (c *HTTPClient) WSEndpoint() string {
	ws := strings.Replace(c.baseURL, "http", "ws", 1)
	return ws + "/ws?token=" + url.QueryEscape(c.token)
}

// do issues one JSON request. Non-2xx responses are turned into errors
// carrying the server's error message when one was provided.
func (c *HTTPClient) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	} else {
		reqBody = &bytes.Buffer{}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	response, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode > 299 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(response.Body).Decode(&apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s %s failed: %s", method, path, apiErr.Error)
		}
		return fmt.Errorf("%s %s failed with status: %s", method, path, response.Status)
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(response.Body).Decode(out)
}

// Login authenticates and stores the returned token for later calls.
func (c *HTTPClient) Login(ctx context.Context, email, password string) (*dto.AuthResponse, error) {
	var resp dto.AuthResponse
	err := c.do(ctx, http.MethodPost, "/auth/login", dto.LoginRequest{Email: email, Password: password}, &resp)
	if err != nil {
		return nil, err
	}
	c.token = resp.Token
	return &resp, nil
}

func (c *HTTPClient) Register(ctx context.Context, req dto.RegisterRequest) (*dto.AuthResponse, error) {
	var resp dto.AuthResponse
	if err := c.do(ctx, http.MethodPost, "/auth/register", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Notifications returns the notification resource view; it satisfies
// notifysync.API.
func (c *HTTPClient) Notifications() *NotificationAPI {
	return &NotificationAPI{c: c}
}

// Messages returns the message resource view; it satisfies msgsync.API.
func (c *HTTPClient) Messages() *MessageAPI {
	return &MessageAPI{c: c}
}

type NotificationAPI struct {
	c *HTTPClient
}

func (a *NotificationAPI) List(ctx context.Context, params notifysync.ListParams) (*notifysync.Page, error) {
	path := "/api/notifications?page=" + strconv.Itoa(params.Page) + "&limit=" + strconv.Itoa(params.Limit)
	var page notifysync.Page
	if err := a.c.do(ctx, http.MethodGet, path, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (a *NotificationAPI) UnreadCount(ctx context.Context) (int, error) {
	var resp struct {
		Count int `json:"count"`
	}
	if err := a.c.do(ctx, http.MethodGet, "/api/notifications/unread-count", nil, &resp); err != nil {
		return 0, err
	}
	return resp.Count, nil
}

func (a *NotificationAPI) Stats(ctx context.Context) (*notifysync.Stats, error) {
	var stats notifysync.Stats
	if err := a.c.do(ctx, http.MethodGet, "/api/notifications/stats", nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

func (a *NotificationAPI) MarkRead(ctx context.Context, id string) error {
	return a.c.do(ctx, http.MethodPut, "/api/notifications/"+id+"/read", nil, nil)
}

func (a *NotificationAPI) MarkManyRead(ctx context.Context, ids []string) error {
	return a.c.do(ctx, http.MethodPut, "/api/notifications/read", dto.MarkManyReadRequest{IDs: ids}, nil)
}

func (a *NotificationAPI) Delete(ctx context.Context, id string) error {
	return a.c.do(ctx, http.MethodDelete, "/api/notifications/"+id, nil, nil)
}

type MessageAPI struct {
	c *HTTPClient
}

func (a *MessageAPI) Conversation(ctx context.Context, peerID string, page, limit int) (*msgsync.ConversationPage, error) {
	path := "/api/messages/conversation/" + peerID + "?page=" + strconv.Itoa(page) + "&limit=" + strconv.Itoa(limit)
	var conv msgsync.ConversationPage
	if err := a.c.do(ctx, http.MethodGet, path, nil, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

func (a *MessageAPI) RecentConversations(ctx context.Context) ([]msgsync.ConversationSummary, error) {
	var resp struct {
		Conversations []msgsync.ConversationSummary `json:"conversations"`
	}
	if err := a.c.do(ctx, http.MethodGet, "/api/messages/conversations", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Conversations, nil
}

func (a *MessageAPI) UnreadCount(ctx context.Context) (int, error) {
	var resp struct {
		Count int `json:"count"`
	}
	if err := a.c.do(ctx, http.MethodGet, "/api/messages/unread-count", nil, &resp); err != nil {
		return 0, err
	}
	return resp.Count, nil
}

func (a *MessageAPI) Send(ctx context.Context, receiverID, content string) (*models.Message, error) {
	var message models.Message
	req := dto.SendMessageRequest{ReceiverID: receiverID, Content: content}
	if err := a.c.do(ctx, http.MethodPost, "/api/messages", req, &message); err != nil {
		return nil, err
	}
	return &message, nil
}

func (a *MessageAPI) Update(ctx context.Context, id, content string) (*models.Message, error) {
	var message models.Message
	req := dto.UpdateMessageRequest{Content: content}
	if err := a.c.do(ctx, http.MethodPut, "/api/messages/"+id, req, &message); err != nil {
		return nil, err
	}
	return &message, nil
}

func (a *MessageAPI) Delete(ctx context.Context, id string) error {
	return a.c.do(ctx, http.MethodDelete, "/api/messages/"+id, nil, nil)
}

func (a *MessageAPI) MarkManyRead(ctx context.Context, ids []string) error {
	return a.c.do(ctx, http.MethodPut, "/api/messages/read", dto.MarkManyReadRequest{IDs: ids}, nil)
}
