package rest

import "time"

// Authentication types

// RegisterRequest is the request body for user registration.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	Password string `json:"password"`
}

// LoginRequest is the request body for user login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// TokenResponse contains the bearer token returned after authentication.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type,omitempty"`
}

// Room types

// RoomInfo represents room metadata. Direct rooms are unnamed.
type RoomInfo struct {
	ID           string   `json:"id"`
	Name         string   `json:"name,omitempty"`
	IsGroup      bool     `json:"is_group"`
	Participants []string `json:"participants"`
}

// CreateRoomRequest is the request body for creating a group room.
type CreateRoomRequest struct {
	Name         string   `json:"name"`
	IsGroup      bool     `json:"is_group"`
	Participants []string `json:"participants"`
}

// Message history types

// MessageInfo is a single message in a history snapshot, ascending by
// creation time.
type MessageInfo struct {
	ID        string     `json:"id"`
	RoomID    string     `json:"room_id"`
	SenderID  string     `json:"sender_id"`
	Content   string     `json:"content,omitempty"`
	ImageURL  string     `json:"image_url,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
	ReadBy    []string   `json:"read_by,omitempty"`
}

// User types

// UserInfo is a user directory entry.
type UserInfo struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
}

// UploadResponse carries the resolved attachment reference.
type UploadResponse struct {
	URL string `json:"url"`
}

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Detail string `json:"detail"`
}
