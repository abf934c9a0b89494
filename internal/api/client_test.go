package api

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iksnae/jarvis-console/internal"
	"github.com/iksnae/jarvis-console/testutil"
)

func newTestClient(t *testing.T) (*Client, *testutil.FakeBackend) {
	t.Helper()
	fb := testutil.NewFakeBackend(t)
	return NewClient(fb.URL() + "/"), fb
}

func TestNewClientDefaults(t *testing.T) {
	c := NewClient("")
	assert.Equal(t, DefaultBaseURL, c.BaseURL())
	assert.Equal(t, DefaultTimeout, c.httpClient.Timeout)

	c = NewClient("http://example.test/", WithTimeout(time.Second))
	assert.Equal(t, "http://example.test", c.BaseURL())
	assert.Equal(t, time.Second, c.httpClient.Timeout)
}

func TestPing(t *testing.T) {
	c, _ := newTestClient(t)
	status, err := c.Ping(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Jarvis is running", status.Status)
}

func TestRegisterAndLogin(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	_, err := c.Register(ctx, RegisterRequest{Name: "Pepper", Email: "pepper@stark.io", Password: "a", ConfirmPassword: "b"})
	require.Error(t, err)
	assert.Equal(t, "Passwords do not match", internal.UserMessage(err))

	msg, err := c.Register(ctx, RegisterRequest{Name: "Pepper", Email: "pepper@stark.io", Password: "pw", ConfirmPassword: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "User registered successfully", msg.Message)

	_, err = c.Register(ctx, RegisterRequest{Name: "Pepper", Email: "pepper@stark.io", Password: "pw", ConfirmPassword: "pw"})
	assert.Equal(t, "User already exists", internal.UserMessage(err))

	login, err := c.Login(ctx, "pepper@stark.io", "pw")
	require.NoError(t, err)
	assert.NotEmpty(t, login.AccessToken)
	assert.Equal(t, "Pepper", login.User.Name)

	_, err = c.Login(ctx, "pepper@stark.io", "wrong")
	require.Error(t, err)
	assert.True(t, IsUnauthorized(err))
	assert.Equal(t, "Invalid credentials", internal.UserMessage(err))
}

func TestLoginByName(t *testing.T) {
	c, _ := newTestClient(t)
	login, err := c.Login(context.Background(), testutil.TestUserName, testutil.TestUserPassword)
	require.NoError(t, err)
	assert.Equal(t, testutil.TestUserEmail, login.User.Email)
}

func TestMe(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	profile, err := c.Me(ctx, testutil.TestToken)
	require.NoError(t, err)
	assert.Equal(t, testutil.TestUserName, profile.Name)
	assert.Equal(t, testutil.TestUserEmail, profile.Email)
	assert.Empty(t, profile.Avatar, "null avatar decodes to empty")

	_, err = c.Me(ctx, "")
	assert.ErrorIs(t, err, internal.ErrNotAuthenticated)

	_, err = c.Me(ctx, "bogus")
	assert.True(t, IsUnauthorized(err))
}

func TestProfileUpdates(t *testing.T) {
	c, fb := newTestClient(t)
	ctx := context.Background()

	_, err := c.UpdateProfile(ctx, testutil.TestToken, "Iron Man")
	require.NoError(t, err)
	assert.Equal(t, "Iron Man", fb.UserName(testutil.TestUserEmail))

	_, err = c.ChangePassword(ctx, testutil.TestToken, "nope", "new")
	assert.Equal(t, "Incorrect current password", internal.UserMessage(err))

	_, err = c.ChangePassword(ctx, testutil.TestToken, testutil.TestUserPassword, "new")
	require.NoError(t, err)

	_, err = c.UpdateProfile(ctx, "", "x")
	assert.ErrorIs(t, err, internal.ErrNotAuthenticated)
}

func TestUploadAvatar(t *testing.T) {
	c, fb := newTestClient(t)
	ctx := context.Background()

	resp, err := c.UploadAvatar(ctx, testutil.TestToken, "/tmp/me.png", bytes.NewReader(testutil.PNGHeader))
	require.NoError(t, err)
	assert.Contains(t, resp.Avatar, "/uploads/profiles/")
	assert.Equal(t, []string{"me.png"}, fb.Avatars())

	_, err = c.UploadAvatar(ctx, testutil.TestToken, "me.gif", bytes.NewReader(nil))
	require.Error(t, err)
	assert.Len(t, fb.Avatars(), 1, "rejected locally")
}

func TestAvatarContentType(t *testing.T) {
	assert.Equal(t, "image/jpeg", AvatarContentType("a.JPG"))
	assert.Equal(t, "image/jpeg", AvatarContentType("a.jpeg"))
	assert.Equal(t, "image/png", AvatarContentType("a.png"))
	assert.Equal(t, "", AvatarContentType("a.webp"))
}

func TestNewChat(t *testing.T) {
	c, fb := newTestClient(t)
	ctx := context.Background()

	chat, err := c.NewChat(ctx, testutil.TestToken)
	require.NoError(t, err)
	assert.Equal(t, "chat-1", chat.ChatID)
	assert.Equal(t, 2024, chat.StartedAt.Year())

	// the backend answers 200 {"error": ...} for a token it cannot decode
	_, err = c.NewChat(ctx, "bogus")
	require.Error(t, err)
	assert.Equal(t, "unauthorized", internal.UserMessage(err))

	fb.OnNewChat(func(string) testutil.Response {
		return testutil.Response{Status: http.StatusOK, Body: map[string]any{}}
	})
	_, err = c.NewChat(ctx, testutil.TestToken)
	require.Error(t, err, "missing chat_id is a failure")

	_, err = c.NewChat(ctx, "")
	assert.ErrorIs(t, err, internal.ErrNotAuthenticated)
}

func TestHistory(t *testing.T) {
	c, fb := newTestClient(t)
	ctx := context.Background()
	fb.SetHistory(testutil.HistoryJSON)

	convs, err := c.History(ctx, testutil.TestToken)
	require.NoError(t, err)
	require.Len(t, convs, 3)
	assert.Equal(t, "chat-1", convs[0].ID)
	assert.Equal(t, internal.RoleAssistant, convs[0].Messages[1].Role)
	assert.Equal(t, 10, convs[0].StartedAt.Hour())

	guest, err := c.History(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, guest)
	assert.Equal(t, 1, fb.Calls("GET /auth/history"), "guests are not sent")
}

func TestDeleteHistory(t *testing.T) {
	c, fb := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.DeleteHistory(ctx, testutil.TestToken, "chat-1"))
	assert.Equal(t, []string{"chat-1"}, fb.Deleted())

	fb.MarkMissing("chat-9")
	err := c.DeleteHistory(ctx, testutil.TestToken, "chat-9")
	assert.Equal(t, "chat not found", internal.UserMessage(err))
}

func TestCommandPayload(t *testing.T) {
	c, fb := newTestClient(t)
	ctx := context.Background()

	resp, err := c.Command(ctx, "", CommandRequest{Command: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "Done.", resp.Reply)
	assert.Equal(t, "echo", resp.Intent)

	_, err = c.Command(ctx, testutil.TestToken, CommandRequest{Command: "hi", ChatID: "chat-7"})
	require.NoError(t, err)

	calls := fb.CommandCalls()
	require.Len(t, calls, 2)
	assert.False(t, calls[0].HasChatID())
	assert.NotContains(t, calls[0].Body, "silent")
	assert.Empty(t, calls[0].Authorization)
	assert.Equal(t, "chat-7", calls[1].ChatID())
	assert.Equal(t, "Bearer "+testutil.TestToken, calls[1].Authorization)
}

func TestCommandErrors(t *testing.T) {
	c, fb := newTestClient(t)
	ctx := context.Background()

	fb.OnCommand(func(testutil.CommandCall) testutil.Response {
		return testutil.Response{Status: http.StatusInternalServerError, Body: map[string]any{"reply": "Engine offline"}}
	})
	_, err := c.Command(ctx, "", CommandRequest{Command: "x"})
	var be *internal.BackendError
	require.True(t, errors.As(err, &be))
	assert.Equal(t, http.StatusInternalServerError, be.Status)
	assert.Equal(t, "Engine offline", internal.UserMessage(err))

	fb.OnCommand(func(testutil.CommandCall) testutil.Response {
		return testutil.Response{Status: http.StatusBadGateway, Body: "oops"}
	})
	_, err = c.Command(ctx, "", CommandRequest{Command: "x"})
	assert.Equal(t, internal.GenericFailureReply, internal.UserMessage(err))

	fb.OnCommand(func(testutil.CommandCall) testutil.Response {
		return testutil.Response{Status: http.StatusUnprocessableEntity, Body: map[string]any{
			"detail": []map[string]any{{"msg": "field required"}},
		}}
	})
	_, err = c.Command(ctx, "", CommandRequest{Command: "x"})
	assert.Equal(t, "field required", internal.UserMessage(err))
}

func TestCommandNonStringReply(t *testing.T) {
	c, fb := newTestClient(t)
	fb.OnCommand(func(testutil.CommandCall) testutil.Response {
		return testutil.Response{Status: http.StatusOK, Body: map[string]any{"reply": 42}}
	})
	resp, err := c.Command(context.Background(), "", CommandRequest{Command: "x"})
	require.NoError(t, err)
	_, isString := resp.Reply.(string)
	assert.False(t, isString)
}

func TestNetworkError(t *testing.T) {
	fb := testutil.NewFakeBackend(t)
	c := NewClient(fb.URL())
	fb.Close()

	_, err := c.Command(context.Background(), "", CommandRequest{Command: "x"})
	var netErr *internal.NetworkError
	require.True(t, errors.As(err, &netErr))
	assert.Equal(t, internal.ConnectionFailedReply, internal.UserMessage(err))
}

func TestChatMessage(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	resp, err := c.ChatMessage(ctx, testutil.TestToken, "tell me a joke", "")
	require.NoError(t, err)
	assert.Contains(t, resp.Reply, "bicycle")
	assert.Equal(t, "chat-1", resp.ChatID)

	resp, err = c.ChatMessage(ctx, testutil.TestToken, "again", resp.ChatID)
	require.NoError(t, err)
	assert.Equal(t, "chat-1", resp.ChatID)

	_, err = c.ChatMessage(ctx, "", "hi", "")
	assert.ErrorIs(t, err, internal.ErrNotAuthenticated)
}
