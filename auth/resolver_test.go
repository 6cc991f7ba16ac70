package auth_test

import (
	"context"
	"errors"
	"testing"

	"structura/apperr"
	"structura/auth"
	"structura/models"
	"structura/testutil"
	"structura/vault"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingStore struct {
	auth.AccountStore
	calls int
}

func (s *countingStore) FindByEmail(ctx context.Context, email string) (models.Account, error) {
	s.calls++
	return s.AccountStore.FindByEmail(ctx, email)
}

type failingStore struct{}

func (failingStore) Kind() models.AccountKind { return models.KindUser }
func (failingStore) FindByEmail(context.Context, string) (models.Account, error) {
	return nil, errors.New("connection reset")
}

func TestResolver_Authenticate(t *testing.T) {
	ctx := context.Background()

	t.Run("Should resolve an owner first", func(t *testing.T) {
		db := testutil.NewDB(t)
		owner := testutil.CreateOwner(t, db, "owner@structura.test", "ownerpass")
		r := auth.NewResolver(nil, auth.DefaultStores(db)...)

		id, err := r.Authenticate(ctx, "Owner@Structura.test ", "ownerpass")
		require.NoError(t, err)
		assert.Equal(t, models.KindUser, id.Kind)
		assert.Equal(t, owner.ID, id.ID)
		assert.Equal(t, string(models.RoleProjectManager), id.Role)
	})

	t.Run("Should resolve an email that only exists as a supervisor", func(t *testing.T) {
		db := testutil.NewDB(t)
		sup := testutil.CreateSupervisor(t, db, "super@structura.test", "superpass")
		r := auth.NewResolver(nil, auth.DefaultStores(db)...)

		id, err := r.Authenticate(ctx, "super@structura.test", "superpass")
		require.NoError(t, err)
		assert.Equal(t, models.KindSupervisor, id.Kind)
		assert.Equal(t, sup.ID, id.ID)
		assert.Equal(t, "Supervisor", id.Role)
		assert.Equal(t, "Sam Super", id.DisplayName)
	})

	t.Run("Should resolve a client", func(t *testing.T) {
		db := testutil.NewDB(t)
		testutil.CreateClient(t, db, "client@structura.test", "clientpass")
		r := auth.NewResolver(nil, auth.DefaultStores(db)...)

		id, err := r.Authenticate(ctx, "client@structura.test", "clientpass")
		require.NoError(t, err)
		assert.Equal(t, models.KindClient, id.Kind)
		assert.Equal(t, "Client", id.Role)
	})

	t.Run("Should stop at the first matching store on a wrong password", func(t *testing.T) {
		db := testutil.NewDB(t)
		testutil.CreateSupervisor(t, db, "shared@structura.test", "superpass")
		testutil.CreateClient(t, db, "shared@structura.test", "clientpass")
		clients := &countingStore{AccountStore: auth.NewClientStore(db)}
		r := auth.NewResolver(nil, auth.NewUserStore(db), auth.NewSupervisorStore(db), clients)

		_, err := r.Authenticate(ctx, "shared@structura.test", "clientpass")
		assert.ErrorIs(t, err, apperr.ErrInvalidCredentials)
		assert.Zero(t, clients.calls)
	})

	t.Run("Should shadow a colliding email in a later store", func(t *testing.T) {
		db := testutil.NewDB(t)
		testutil.CreateSupervisor(t, db, "shared@structura.test", "superpass")
		testutil.CreateClient(t, db, "shared@structura.test", "superpass")
		r := auth.NewResolver(nil, auth.DefaultStores(db)...)

		id, err := r.Authenticate(ctx, "shared@structura.test", "superpass")
		require.NoError(t, err)
		assert.Equal(t, models.KindSupervisor, id.Kind)
	})

	t.Run("Should report unknown emails", func(t *testing.T) {
		db := testutil.NewDB(t)
		r := auth.NewResolver(nil, auth.DefaultStores(db)...)

		_, err := r.Authenticate(ctx, "ghost@structura.test", "whatever")
		assert.ErrorIs(t, err, apperr.ErrAuthNotFound)
	})

	t.Run("Should require both fields", func(t *testing.T) {
		r := auth.NewResolver(nil)
		_, err := r.Authenticate(ctx, " ", "")
		var verr *apperr.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Contains(t, verr.Fields, "email")
		assert.Contains(t, verr.Fields, "password")
	})

	t.Run("Should propagate store failures", func(t *testing.T) {
		r := auth.NewResolver(nil, failingStore{})
		_, err := r.Authenticate(ctx, "a@b.co", "pw")
		require.Error(t, err)
		assert.NotErrorIs(t, err, apperr.ErrAuthNotFound)
	})
}

func TestAccountHooks_DoNotDoubleHash(t *testing.T) {
	db := testutil.NewDB(t)
	sup := testutil.CreateSupervisor(t, db, "hooks@structura.test", "superpass")
	first := sup.PasswordHash
	require.True(t, vault.IsHashed(first))

	// Saving the loaded record again round-trips the stored hash.
	var loaded models.Supervisor
	require.NoError(t, db.First(&loaded, sup.ID).Error)
	require.NoError(t, db.Save(&loaded).Error)
	require.NoError(t, db.First(&loaded, sup.ID).Error)
	assert.Equal(t, first, loaded.PasswordHash)

	r := auth.NewResolver(nil, auth.DefaultStores(db)...)
	_, err := r.Authenticate(context.Background(), "hooks@structura.test", "superpass")
	assert.NoError(t, err)
}
