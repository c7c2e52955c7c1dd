package repository

import (
	"context"
	"testing"

	"sharesphere/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestGroupRepository_CreateAndFind(t *testing.T) {
	setupTestDB(t)
	repo := NewGroupRepository()
	ctx := context.Background()

	alice := createUser(t, "alice")
	g := createGroup(t, "eng", alice)

	found, err := repo.FindByID(ctx, g.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "eng", found.Name)
	require.Len(t, found.Members, 1)
	assert.Equal(t, "alice", found.Members[0].User.Username)

	byName, err := repo.FindByName(ctx, "eng")
	require.NoError(t, err)
	require.NotNil(t, byName)
	assert.Equal(t, g.ID, byName.ID)

	missing, err := repo.FindByID(ctx, 999)
	assert.NoError(t, err)
	assert.Nil(t, missing)

	err = repo.Create(ctx, &model.Group{Name: "eng"})
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)
}

func TestGroupRepository_UserGroups(t *testing.T) {
	setupTestDB(t)
	repo := NewGroupRepository()
	ctx := context.Background()

	alice := createUser(t, "alice")
	bob := createUser(t, "bob")
	eng := createGroup(t, "eng", alice, bob)
	ops := createGroup(t, "ops", bob)
	createGroup(t, "empty")

	mine, err := repo.FindUserGroups(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, eng.ID, mine[0].ID)

	available, err := repo.FindAvailableGroups(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, available, 2)
	assert.Equal(t, ops.ID, available[0].ID)
	assert.Equal(t, "empty", available[1].Name)

	byNames, err := repo.FindByNames(ctx, []string{"ops", "nope", "eng"})
	require.NoError(t, err)
	assert.Len(t, byNames, 2)

	all, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Len(t, all[0].Members, 2)
}

func TestGroupMemberRepository(t *testing.T) {
	setupTestDB(t)
	repo := NewGroupMemberRepository()
	ctx := context.Background()

	alice := createUser(t, "alice")
	bob := createUser(t, "bob")
	eng := createGroup(t, "eng")
	ops := createGroup(t, "ops")

	require.NoError(t, repo.AddMember(ctx, eng.ID, alice.ID))
	// 重复加入是无操作
	require.NoError(t, repo.AddMember(ctx, eng.ID, alice.ID))
	require.NoError(t, repo.AddMember(ctx, ops.ID, alice.ID))
	require.NoError(t, repo.AddMember(ctx, ops.ID, bob.ID))

	ok, err := repo.IsMember(ctx, eng.ID, alice.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = repo.IsMember(ctx, eng.ID, bob.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	ids, err := repo.FindGroupMemberIDs(ctx, []uint{eng.ID, ops.ID})
	require.NoError(t, err)
	assert.Equal(t, []uint{alice.ID, bob.ID}, ids)

	require.NoError(t, repo.DeleteByUser(ctx, alice.ID))
	ids, err = repo.FindGroupMemberIDs(ctx, []uint{eng.ID, ops.ID})
	require.NoError(t, err)
	assert.Equal(t, []uint{bob.ID}, ids)
}
