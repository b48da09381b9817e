package database

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johnrirwin/feedmix/internal/models"
	"github.com/johnrirwin/feedmix/internal/testutil"
)

func newTestStores(t *testing.T) (*AccountStore, *SourceStore, *PostStore) {
	t.Helper()

	tdb := testutil.NewTestDB(t)
	ctx := context.Background()
	tdb.Cleanup(ctx)
	t.Cleanup(func() {
		tdb.Cleanup(ctx)
		tdb.Close()
	})

	db := &DB{DB: tdb.DB}
	return NewAccountStore(db), NewSourceStore(db), NewPostStore(db)
}

func TestAccountStore_CreateAndGet(t *testing.T) {
	accounts, _, _ := newTestStores(t)
	ctx := context.Background()

	created, err := accounts.CreateAccount(ctx, models.CreateAccountParams{Username: "alice"})
	require.NoError(t, err)

	got, err := accounts.GetAccountByUsername(ctx, "ALICE")
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Empty(t, got.Sources)
	assert.Empty(t, got.Following)

	_, err = accounts.CreateAccount(ctx, models.CreateAccountParams{Username: "alice"})
	assert.True(t, errors.Is(err, ErrAlreadyExists))

	_, err = accounts.GetAccountByUsername(ctx, "nobody")
	var lookupErr *LookupError
	assert.True(t, errors.As(err, &lookupErr))
}

func TestAccountStore_FollowUnfollow(t *testing.T) {
	accounts, _, _ := newTestStores(t)
	ctx := context.Background()

	for _, name := range []string{"alice", "bob"} {
		_, err := accounts.CreateAccount(ctx, models.CreateAccountParams{Username: name})
		require.NoError(t, err)
	}

	require.NoError(t, accounts.Follow(ctx, "alice", "bob"))
	require.NoError(t, accounts.Follow(ctx, "alice", "bob"))
	assert.ErrorIs(t, accounts.Follow(ctx, "alice", "alice"), ErrSelfFollow)

	alice, err := accounts.GetAccountByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, alice.Following)

	require.NoError(t, accounts.Unfollow(ctx, "alice", "bob"))
	assert.ErrorIs(t, accounts.Unfollow(ctx, "alice", "bob"), ErrNotFound)
}

func TestSourceStore_AddListRemove(t *testing.T) {
	accounts, sources, _ := newTestStores(t)
	ctx := context.Background()

	alice, err := accounts.CreateAccount(ctx, models.CreateAccountParams{Username: "alice"})
	require.NoError(t, err)

	src := models.Source{
		ID:    models.Fingerprint("blog.example.com"),
		Title: "Blog",
		Feed:  "blog.example.com",
		Type:  models.SourceTypeWordPress,
		Icon:  "https://blog.example.com/favicon.ico",
	}
	require.NoError(t, sources.AddSource(ctx, alice.ID, src))
	require.NoError(t, sources.AddSource(ctx, alice.ID, src))

	list, err := sources.ListSources(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, src, list[0])

	require.NoError(t, sources.RemoveSource(ctx, alice.ID, src.ID))
	assert.ErrorIs(t, sources.RemoveSource(ctx, alice.ID, src.ID), ErrNotFound)
}

func TestPostStore_PutAndGet(t *testing.T) {
	accounts, _, posts := newTestStores(t)
	ctx := context.Background()

	bob, err := accounts.CreateAccount(ctx, models.CreateAccountParams{Username: "bob"})
	require.NoError(t, err)

	put, err := posts.PutPost(ctx, *bob, models.CreatePostParams{Title: "Hello", Body: "first"})
	require.NoError(t, err)
	assert.Equal(t, models.Fingerprint("Hello"), put.ID)
	assert.Equal(t, models.PostTypeNative, put.Type)

	got, err := posts.GetPostsByAuthor(ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "bob", got[0].Author)
	assert.Equal(t, put.ID, got[0].ID)
	assert.Nil(t, got[0].Image)
	assert.Equal(t, models.NativeSource, got[0].Source)

	_, err = posts.PutPost(ctx, *bob, models.CreatePostParams{Title: "  "})
	var validationErr *models.ValidationError
	assert.True(t, errors.As(err, &validationErr))
}

func TestMigrate_RollbackAndReapply(t *testing.T) {
	tdb := testutil.NewTestDB(t)
	t.Cleanup(func() { tdb.Close() })
	db := &DB{DB: tdb.DB}

	version, err := db.Migrate()
	require.NoError(t, err)
	assert.Equal(t, uint(4), version)

	version, err = db.Rollback(1)
	require.NoError(t, err)
	assert.Equal(t, uint(3), version)

	version, err = db.Migrate()
	require.NoError(t, err)
	assert.Equal(t, uint(4), version)
}
