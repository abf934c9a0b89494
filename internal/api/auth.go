package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"path/filepath"
	"strings"

	"github.com/iksnae/jarvis-console/internal"
)

// RegisterRequest is the body of POST /auth/register
type RegisterRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

// LoginResponse is the body returned by POST /auth/login
type LoginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	User        struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	} `json:"user"`
}

// MessageResponse is the {"message"} body several endpoints return
type MessageResponse struct {
	Message string `json:"message"`
	Avatar  string `json:"avatar,omitempty"`
}

// Register creates an account
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*MessageResponse, error) {
	var out MessageResponse
	if err := c.doJSON(ctx, http.MethodPost, "/auth/register", "", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Login exchanges an email (or user name) and password for a bearer token
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	in := map[string]string{"email": email, "password": password}
	var out LoginResponse
	if err := c.doJSON(ctx, http.MethodPost, "/auth/login", "", in, &out); err != nil {
		return nil, err
	}
	if out.AccessToken == "" {
		return nil, &internal.BackendError{Op: "POST /auth/login", Status: http.StatusOK, Detail: "no access token in response"}
	}
	return &out, nil
}

// Me fetches the profile of the token's account
func (c *Client) Me(ctx context.Context, token string) (*internal.Profile, error) {
	if err := requireToken(token); err != nil {
		return nil, err
	}
	var out internal.Profile
	if err := c.doJSON(ctx, http.MethodGet, "/auth/me", token, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateProfile renames the account
func (c *Client) UpdateProfile(ctx context.Context, token, name string) (*MessageResponse, error) {
	if err := requireToken(token); err != nil {
		return nil, err
	}
	var out MessageResponse
	if err := c.doJSON(ctx, http.MethodPut, "/auth/profile", token, map[string]string{"name": name}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ChangePassword replaces the account password
func (c *Client) ChangePassword(ctx context.Context, token, oldPassword, newPassword string) (*MessageResponse, error) {
	if err := requireToken(token); err != nil {
		return nil, err
	}
	in := map[string]string{"old_password": oldPassword, "new_password": newPassword}
	var out MessageResponse
	if err := c.doJSON(ctx, http.MethodPut, "/auth/change-password", token, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AvatarContentType returns the upload content type for a file name, or ""
// when the backend would reject the format.
func AvatarContentType(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	default:
		return ""
	}
}

// UploadAvatar sends an image as multipart form field "file"
func (c *Client) UploadAvatar(ctx context.Context, token, filename string, r io.Reader) (*MessageResponse, error) {
	if err := requireToken(token); err != nil {
		return nil, err
	}
	contentType := AvatarContentType(filename)
	if contentType == "" {
		return nil, fmt.Errorf("only JPG or PNG images can be uploaded: %s", filename)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, filepath.Base(filename)))
	header.Set("Content-Type", contentType)
	part, err := mw.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("create form part: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("read avatar: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close form: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/auth/upload-avatar", token, &buf, mw.FormDataContentType())
	if err != nil {
		return nil, err
	}
	var out MessageResponse
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
