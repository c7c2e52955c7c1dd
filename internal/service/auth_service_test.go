package service

import (
	"context"
	"testing"

	"sharesphere/internal/apperr"
	"sharesphere/internal/repository"
	"sharesphere/pkg/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthService_Authenticate(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	env.user(t, "alice", false)
	env.user(t, "root", true)

	tests := []struct {
		name      string
		username  string
		password  string
		wantOK    bool
		wantAdmin bool
	}{
		{name: "Valid user", username: "alice", password: password("alice"), wantOK: true},
		{name: "Valid admin", username: "root", password: password("root"), wantOK: true, wantAdmin: true},
		{name: "Wrong password", username: "alice", password: "wrong"},
		{name: "Wrong password for admin", username: "root", password: "wrong"},
		{name: "Unknown user", username: "nobody", password: password("alice")},
		{name: "Case differs", username: "Alice", password: password("alice")},
		{name: "Empty username", username: "", password: "x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, isAdmin := env.auth.Authenticate(ctx, tt.username, tt.password)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantAdmin, isAdmin)
		})
	}
}

func TestAuthService_CreateAccountDuplicate(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	first, err := env.auth.CreateAccount(ctx, "alice", "first-password", false)
	require.NoError(t, err)
	assert.NotEqual(t, "first-password", first.Password)

	_, err = env.auth.CreateAccount(ctx, "alice", "second-password", true)
	require.Error(t, err)
	assert.Equal(t, apperr.KindDuplicate, apperr.KindOf(err))

	// 第一个账号的密码不受影响
	ok, isAdmin := env.auth.Authenticate(ctx, "alice", "first-password")
	assert.True(t, ok)
	assert.False(t, isAdmin)
	ok, _ = env.auth.Authenticate(ctx, "alice", "second-password")
	assert.False(t, ok)
}

func TestAuthService_CreateAccountValidation(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		username string
		password string
	}{
		{name: "Blank password", username: "alice", password: ""},
		{name: "Whitespace password", username: "alice", password: "   "},
		{name: "Blank username", username: "", password: "secret"},
		{name: "Slash in username", username: "a/b", password: "secret"},
		{name: "Dot username", username: "..", password: "secret"},
		{name: "Padded username", username: " alice ", password: "secret"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.auth.CreateAccount(ctx, tt.username, tt.password, false)
			require.Error(t, err)
			assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
		})
	}
}

func TestAuthService_CreateAccountWithGroups(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	root := env.user(t, "root", true)
	eng, err := env.groups.CreateGroup(ctx, root, "eng")
	require.NoError(t, err)

	u, err := env.auth.CreateAccount(ctx, "bob", "secret", false, "eng", "missing")
	require.NoError(t, err)

	isMember, err := repository.NewGroupMemberRepository().IsMember(ctx, eng.ID, u.ID)
	require.NoError(t, err)
	assert.True(t, isMember)
}

func TestAuthService_Login(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	alice := env.user(t, "alice", false)

	sess, token, err := env.auth.Login(ctx, "alice", password("alice"))
	require.NoError(t, err)
	assert.Equal(t, alice.UserID, sess.UserID)
	assert.Equal(t, "alice", sess.Username)
	assert.False(t, sess.IsAdmin)

	claims, err := utils.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, alice.UserID, claims.UserID)

	// 未知用户和错误密码返回同样的错误
	_, _, errUnknown := env.auth.Login(ctx, "nobody", "x")
	_, _, errWrong := env.auth.Login(ctx, "alice", "x")
	assert.Equal(t, errUnknown.Error(), errWrong.Error())
	assert.Equal(t, "invalid username or password", errWrong.Error())
}

func TestAuthService_ResetPassword(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	alice := env.user(t, "alice", false)

	require.NoError(t, env.auth.ResetPassword(ctx, alice.UserID, "new-secret"))
	ok, _ := env.auth.Authenticate(ctx, "alice", "new-secret")
	assert.True(t, ok)
	ok, _ = env.auth.Authenticate(ctx, "alice", password("alice"))
	assert.False(t, ok)

	err := env.auth.ResetPassword(ctx, alice.UserID+100, "x")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	err = env.auth.ResetPassword(ctx, alice.UserID, "")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestAuthService_DarkModeAndProfile(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	alice := env.user(t, "alice", false)

	require.NoError(t, env.auth.SetDarkMode(ctx, alice, true))
	u, err := env.auth.Profile(ctx, alice)
	require.NoError(t, err)
	assert.True(t, u.DarkMode)

	require.NoError(t, env.auth.SetDarkMode(ctx, alice, false))
	u, err = env.auth.Profile(ctx, alice)
	require.NoError(t, err)
	assert.False(t, u.DarkMode)

	ghost := &Session{UserID: 999}
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(env.auth.SetDarkMode(ctx, ghost, true)))
	_, err = env.auth.Profile(ctx, ghost)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}
