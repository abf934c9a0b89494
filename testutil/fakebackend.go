package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
)

// Test account preloaded into every FakeBackend
const (
	TestUserName     = "Tony Stark"
	TestUserEmail    = "tony@stark.io"
	TestUserPassword = "ironman"
	TestToken        = "test-token"
)

// CommandCall is one recorded POST /command
type CommandCall struct {
	Body          map[string]any
	Authorization string
}

// Command returns the "command" field
func (c CommandCall) Command() string {
	s, _ := c.Body["command"].(string)
	return s
}

// HasChatID reports whether the payload carried a chat_id field at all
func (c CommandCall) HasChatID() bool {
	_, ok := c.Body["chat_id"]
	return ok
}

// ChatID returns the chat_id field, or ""
func (c CommandCall) ChatID() string {
	s, _ := c.Body["chat_id"].(string)
	return s
}

// Silent returns the silent flag
func (c CommandCall) Silent() bool {
	b, _ := c.Body["silent"].(bool)
	return b
}

// Response is a canned status and JSON body
type Response struct {
	Status int
	Body   any
}

type fakeUser struct {
	Name       string
	Email      string
	Password   string
	Role       string
	SecureMode bool
	Avatar     string
}

// FakeBackend is an in-process stand-in for the Jarvis backend. It records
// every call and lets tests override the responses of the endpoints the
// client's control flow depends on.
type FakeBackend struct {
	*httptest.Server

	mu        sync.Mutex
	calls     map[string]int
	commands  []CommandCall
	users     map[string]*fakeUser // by email
	tokens    map[string]string    // token -> email
	nextChat  int
	history   string
	deleted   []string
	missing   map[string]bool
	avatars   []string
	onCommand func(CommandCall) Response
	onNewChat func(token string) Response
	onMe      func(token string) Response
}

// NewFakeBackend starts a fake backend that is closed when the test ends
func NewFakeBackend(t *testing.T) *FakeBackend {
	t.Helper()
	gin.SetMode(gin.TestMode)

	fb := &FakeBackend{
		calls:   make(map[string]int),
		users:   make(map[string]*fakeUser),
		tokens:  make(map[string]string),
		missing: make(map[string]bool),
		history: "[]",
	}
	fb.users[TestUserEmail] = &fakeUser{
		Name:     TestUserName,
		Email:    TestUserEmail,
		Password: TestUserPassword,
		Role:     "user",
	}
	fb.tokens[TestToken] = TestUserEmail

	fb.Server = httptest.NewServer(fb.router())
	t.Cleanup(fb.Close)
	return fb
}

// URL returns the base URL of the fake backend
func (fb *FakeBackend) URL() string {
	return fb.Server.URL
}

func (fb *FakeBackend) router() *gin.Engine {
	r := gin.New()
	r.Use(func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		fb.mu.Lock()
		fb.calls[c.Request.Method+" "+route]++
		fb.mu.Unlock()
		c.Next()
	})

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "Jarvis is running"})
	})

	auth := r.Group("/auth")
	auth.POST("/register", fb.handleRegister)
	auth.POST("/login", fb.handleLogin)
	auth.GET("/me", fb.handleMe)
	auth.PUT("/profile", fb.handleProfile)
	auth.PUT("/change-password", fb.handleChangePassword)
	auth.POST("/upload-avatar", fb.handleUploadAvatar)
	auth.POST("/new-chat", fb.handleNewChat)
	auth.GET("/history", fb.handleHistory)
	auth.DELETE("/history/:id", fb.handleDeleteHistory)

	r.POST("/command", fb.handleCommand)
	r.POST("/chat/message", fb.handleChatMessage)
	return r
}

func bearer(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(h, "Bearer ")
}

// userFor returns the account of the request's token, or nil
func (fb *FakeBackend) userFor(c *gin.Context) *fakeUser {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	email, ok := fb.tokens[bearer(c)]
	if !ok {
		return nil
	}
	return fb.users[email]
}

func unauthorized(c *gin.Context) {
	c.JSON(http.StatusUnauthorized, gin.H{"detail": "Could not validate credentials"})
}

func (fb *FakeBackend) handleRegister(c *gin.Context) {
	var req struct {
		Name            string `json:"name"`
		Email           string `json:"email"`
		Password        string `json:"password"`
		ConfirmPassword string `json:"confirm_password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": []gin.H{{"msg": err.Error()}}})
		return
	}
	if req.Password != req.ConfirmPassword {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Passwords do not match"})
		return
	}

	fb.mu.Lock()
	defer fb.mu.Unlock()
	if _, exists := fb.users[req.Email]; exists {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "User already exists"})
		return
	}
	fb.users[req.Email] = &fakeUser{Name: req.Name, Email: req.Email, Password: req.Password, Role: "guest"}
	c.JSON(http.StatusOK, gin.H{"message": "User registered successfully"})
}

func (fb *FakeBackend) handleLogin(c *gin.Context) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	_ = c.ShouldBindJSON(&req)

	fb.mu.Lock()
	defer fb.mu.Unlock()
	var user *fakeUser
	for _, u := range fb.users {
		if u.Email == req.Email || u.Name == req.Email {
			user = u
			break
		}
	}
	if user == nil || user.Password != req.Password {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "Invalid credentials"})
		return
	}

	token := "token-" + user.Email
	fb.tokens[token] = user.Email
	c.JSON(http.StatusOK, gin.H{
		"access_token": token,
		"token_type":   "bearer",
		"user":         gin.H{"name": user.Name, "email": user.Email},
	})
}

func (fb *FakeBackend) handleMe(c *gin.Context) {
	fb.mu.Lock()
	override := fb.onMe
	fb.mu.Unlock()
	if override != nil {
		resp := override(bearer(c))
		c.JSON(resp.Status, resp.Body)
		return
	}

	user := fb.userFor(c)
	if user == nil {
		unauthorized(c)
		return
	}
	fb.mu.Lock()
	defer fb.mu.Unlock()
	var avatar any
	if user.Avatar != "" {
		avatar = user.Avatar
	}
	c.JSON(http.StatusOK, gin.H{
		"name":        user.Name,
		"email":       user.Email,
		"role":        user.Role,
		"secure_mode": user.SecureMode,
		"avatar":      avatar,
	})
}

func (fb *FakeBackend) handleProfile(c *gin.Context) {
	user := fb.userFor(c)
	if user == nil {
		unauthorized(c)
		return
	}
	var req struct {
		Name string `json:"name"`
	}
	_ = c.ShouldBindJSON(&req)

	fb.mu.Lock()
	user.Name = req.Name
	fb.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"message": "Profile updated successfully"})
}

func (fb *FakeBackend) handleChangePassword(c *gin.Context) {
	user := fb.userFor(c)
	if user == nil {
		unauthorized(c)
		return
	}
	var req struct {
		OldPassword string `json:"old_password"`
		NewPassword string `json:"new_password"`
	}
	_ = c.ShouldBindJSON(&req)

	fb.mu.Lock()
	defer fb.mu.Unlock()
	if user.Password != req.OldPassword {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Incorrect current password"})
		return
	}
	user.Password = req.NewPassword
	c.JSON(http.StatusOK, gin.H{"message": "Password updated successfully"})
}

func (fb *FakeBackend) handleUploadAvatar(c *gin.Context) {
	user := fb.userFor(c)
	if user == nil {
		unauthorized(c)
		return
	}
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": []gin.H{{"msg": "field required"}}})
		return
	}
	ct := file.Header.Get("Content-Type")
	if ct != "image/jpeg" && ct != "image/png" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Only JPG or PNG allowed"})
		return
	}

	fb.mu.Lock()
	defer fb.mu.Unlock()
	url := fmt.Sprintf("http://localhost:8000/uploads/profiles/%d.png", len(fb.avatars)+1)
	fb.avatars = append(fb.avatars, file.Filename)
	user.Avatar = url
	c.JSON(http.StatusOK, gin.H{"message": "Avatar uploaded successfully", "avatar": url})
}

func (fb *FakeBackend) handleNewChat(c *gin.Context) {
	fb.mu.Lock()
	override := fb.onNewChat
	fb.mu.Unlock()
	if override != nil {
		resp := override(bearer(c))
		c.JSON(resp.Status, resp.Body)
		return
	}

	if fb.userFor(c) == nil {
		c.JSON(http.StatusOK, gin.H{"error": "unauthorized"})
		return
	}
	fb.mu.Lock()
	fb.nextChat++
	id := fmt.Sprintf("chat-%d", fb.nextChat)
	fb.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"chat_id": id, "started_at": "2024-05-01T10:00:00.123456"})
}

func (fb *FakeBackend) handleHistory(c *gin.Context) {
	if fb.userFor(c) == nil {
		c.JSON(http.StatusOK, []any{})
		return
	}
	fb.mu.Lock()
	raw := fb.history
	fb.mu.Unlock()
	c.Data(http.StatusOK, "application/json", []byte(raw))
}

func (fb *FakeBackend) handleDeleteHistory(c *gin.Context) {
	if fb.userFor(c) == nil {
		c.JSON(http.StatusOK, gin.H{"error": "unauthorized"})
		return
	}
	id := c.Param("id")

	fb.mu.Lock()
	defer fb.mu.Unlock()
	if fb.missing[id] {
		c.JSON(http.StatusOK, gin.H{"error": "chat not found"})
		return
	}
	fb.deleted = append(fb.deleted, id)
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (fb *FakeBackend) handleCommand(c *gin.Context) {
	body := make(map[string]any)
	if err := json.NewDecoder(c.Request.Body).Decode(&body); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": []gin.H{{"msg": err.Error()}}})
		return
	}
	call := CommandCall{Body: body, Authorization: c.GetHeader("Authorization")}

	fb.mu.Lock()
	fb.commands = append(fb.commands, call)
	override := fb.onCommand
	fb.mu.Unlock()

	if override != nil {
		resp := override(call)
		c.JSON(resp.Status, resp.Body)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reply": "Done.", "intent": "echo", "confidence": 0.9})
}

func (fb *FakeBackend) handleChatMessage(c *gin.Context) {
	if fb.userFor(c) == nil {
		c.JSON(http.StatusOK, gin.H{"error": "unauthorized"})
		return
	}
	var req struct {
		Text   string `json:"text"`
		ChatID string `json:"chat_id"`
	}
	_ = c.ShouldBindJSON(&req)
	if req.Text == "" {
		c.JSON(http.StatusOK, gin.H{"error": "empty message"})
		return
	}

	fb.mu.Lock()
	if req.ChatID == "" {
		fb.nextChat++
		req.ChatID = fmt.Sprintf("chat-%d", fb.nextChat)
	}
	fb.mu.Unlock()

	reply := "I am Jarvis, ready to help you."
	if strings.Contains(strings.ToLower(req.Text), "joke") {
		reply = "Why couldn't the bicycle stand up by itself? Because it was two tired!"
	}
	c.JSON(http.StatusOK, gin.H{"chat_id": req.ChatID, "reply": reply})
}

// OnCommand overrides the POST /command response. fn runs on the server
// goroutine and may block.
func (fb *FakeBackend) OnCommand(fn func(CommandCall) Response) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.onCommand = fn
}

// OnNewChat overrides the POST /auth/new-chat response
func (fb *FakeBackend) OnNewChat(fn func(token string) Response) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.onNewChat = fn
}

// OnMe overrides the GET /auth/me response
func (fb *FakeBackend) OnMe(fn func(token string) Response) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.onMe = fn
}

// SetHistory sets the raw JSON served by GET /auth/history
func (fb *FakeBackend) SetHistory(raw string) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.history = raw
}

// MarkMissing makes DELETE /auth/history/{id} answer {"error":"chat not found"}
func (fb *FakeBackend) MarkMissing(id string) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.missing[id] = true
}

// Calls returns how often a route was hit, e.g. Calls("POST /command")
func (fb *FakeBackend) Calls(route string) int {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.calls[route]
}

// CommandCalls returns the recorded POST /command requests
func (fb *FakeBackend) CommandCalls() []CommandCall {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return append([]CommandCall(nil), fb.commands...)
}

// Deleted returns the ids removed through DELETE /auth/history/{id}
func (fb *FakeBackend) Deleted() []string {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return append([]string(nil), fb.deleted...)
}

// Avatars returns the file names of uploaded avatars
func (fb *FakeBackend) Avatars() []string {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return append([]string(nil), fb.avatars...)
}

// UserName returns the current name of an account, or ""
func (fb *FakeBackend) UserName(email string) string {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	if u, ok := fb.users[email]; ok {
		return u.Name
	}
	return ""
}
