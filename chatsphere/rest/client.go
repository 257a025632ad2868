package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
)

// Client provides REST API access to the ChatSphere server. The chat
// engine consumes these endpoints as opaque collaborators: room lookup,
// history snapshots, attachment upload, friend and auth management.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a new REST API client.
// baseURL should be the base URL of the API, e.g., "http://localhost:8000".
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SetHTTPClient allows setting a custom HTTP client.
func (c *Client) SetHTTPClient(client *http.Client) {
	if client != nil {
		c.httpClient = client
	}
}

// SetToken sets the bearer token for authenticated requests.
func (c *Client) SetToken(token string) {
	c.token = token
}

// Authentication endpoints

// Register creates a new user account and returns a bearer token.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*TokenResponse, error) {
	var resp TokenResponse
	if err := c.post(ctx, "/auth/register", req, &resp, false); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Login authenticates with existing credentials and returns a bearer token.
func (c *Client) Login(ctx context.Context, req LoginRequest) (*TokenResponse, error) {
	var resp TokenResponse
	if err := c.post(ctx, "/auth/login", req, &resp, false); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Room endpoints

// Rooms returns all rooms visible to the authenticated user.
func (c *Client) Rooms(ctx context.Context) ([]RoomInfo, error) {
	var resp []RoomInfo
	if err := c.get(ctx, "/chats/rooms", &resp, true); err != nil {
		return nil, err
	}
	return resp, nil
}

// CreateRoom creates a named group room with the given participants.
func (c *Client) CreateRoom(ctx context.Context, req CreateRoomRequest) (*RoomInfo, error) {
	var resp RoomInfo
	if err := c.post(ctx, "/chats/rooms", req, &resp, true); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DirectRoom returns the direct room shared with a peer, creating it on
// first use. Idempotent: the same peer always yields the same room.
func (c *Client) DirectRoom(ctx context.Context, peerID string) (*RoomInfo, error) {
	var resp RoomInfo
	if err := c.post(ctx, "/chats/rooms/direct/"+url.PathEscape(peerID), nil, &resp, true); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RoomMessages retrieves the history snapshot for a room, ascending by
// creation time. limit bounds the snapshot size.
func (c *Client) RoomMessages(ctx context.Context, roomID string, limit int) ([]MessageInfo, error) {
	path := fmt.Sprintf("/chats/rooms/%s/messages?limit=%d", url.PathEscape(roomID), limit)
	var resp []MessageInfo
	if err := c.get(ctx, path, &resp, true); err != nil {
		return nil, err
	}
	return resp, nil
}

// Upload pushes an attachment and returns its resolved reference URL.
func (c *Client) Upload(ctx context.Context, filename string, r io.Reader) (*UploadResponse, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("multipart: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("multipart copy: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("multipart close: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chats/upload", &buf)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	var resp UploadResponse
	if err := c.do(req, &resp, true); err != nil {
		return nil, err
	}
	return &resp, nil
}

// User and friend endpoints

// Users returns the user directory.
func (c *Client) Users(ctx context.Context) ([]UserInfo, error) {
	var resp []UserInfo
	if err := c.get(ctx, "/users/", &resp, true); err != nil {
		return nil, err
	}
	return resp, nil
}

// Friends returns the authenticated user's friend ids.
func (c *Client) Friends(ctx context.Context) ([]string, error) {
	var resp []string
	if err := c.get(ctx, "/users/friends", &resp, true); err != nil {
		return nil, err
	}
	return resp, nil
}

// AddFriend adds a user to the friend list.
func (c *Client) AddFriend(ctx context.Context, userID string) error {
	return c.post(ctx, "/users/add-friend/"+url.PathEscape(userID), nil, nil, true)
}

// RemoveFriend removes a user from the friend list.
func (c *Client) RemoveFriend(ctx context.Context, userID string) error {
	return c.request(ctx, http.MethodDelete, "/users/remove-friend/"+url.PathEscape(userID), nil, nil, true)
}

// Helper methods

func (c *Client) post(ctx context.Context, path string, body, dest any, requireAuth bool) error {
	return c.request(ctx, http.MethodPost, path, body, dest, requireAuth)
}

func (c *Client) get(ctx context.Context, path string, dest any, requireAuth bool) error {
	return c.request(ctx, http.MethodGet, path, nil, dest, requireAuth)
}

func (c *Client) request(ctx context.Context, method, path string, body, dest any, requireAuth bool) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, dest, requireAuth)
}

func (c *Client) do(req *http.Request, dest any, requireAuth bool) error {
	req.Header.Set("X-Request-ID", uuid.NewString())
	if requireAuth && c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp ErrorResponse
		if err := json.Unmarshal(body, &errResp); err == nil && errResp.Detail != "" {
			return fmt.Errorf("api error (status %d): %s", resp.StatusCode, errResp.Detail)
		}
		return fmt.Errorf("http error: %s (status %d)", string(body), resp.StatusCode)
	}

	if dest != nil {
		if err := json.Unmarshal(body, dest); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}
