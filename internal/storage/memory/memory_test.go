package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pribylovaa/accounts-service/internal/models"
	"github.com/pribylovaa/accounts-service/internal/storage"
)

func newUser(email string, role models.Role) *models.User {
	return &models.User{
		FullName:     "Test User",
		BirthDate:    time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC),
		Email:        email,
		PasswordHash: "hash",
		Role:         role,
		Status:       models.StatusActive,
	}
}

func TestSaveUser_AssignsIDs_AndRejectsDuplicateEmail(t *testing.T) {
	t.Parallel()

	st := New()
	ctx := context.Background()

	a := newUser("a@x.com", models.RoleUser)
	b := newUser("b@x.com", models.RoleUser)
	require.NoError(t, st.SaveUser(ctx, a))
	require.NoError(t, st.SaveUser(ctx, b))
	require.Equal(t, int64(1), a.ID)
	require.Equal(t, int64(2), b.ID)
	require.False(t, a.CreatedAt.IsZero())

	err := st.SaveUser(ctx, newUser("a@x.com", models.RoleAdmin))
	require.ErrorIs(t, err, storage.ErrAlreadyExists)

	// Регистр имеет значение.
	require.NoError(t, st.SaveUser(ctx, newUser("A@x.com", models.RoleUser)))
	_, err = st.UserByEmail(ctx, "A@X.COM")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestLookups_ReturnCopies(t *testing.T) {
	t.Parallel()

	st := New()
	ctx := context.Background()

	u := newUser("copy@x.com", models.RoleUser)
	require.NoError(t, st.SaveUser(ctx, u))

	got, err := st.UserByID(ctx, u.ID)
	require.NoError(t, err)
	got.Status = models.StatusBlocked
	got.Email = "changed@x.com"

	again, err := st.UserByEmail(ctx, "copy@x.com")
	require.NoError(t, err)
	require.Equal(t, models.StatusActive, again.Status)

	// Мутация исходной структуры после SaveUser тоже не влияет на хранилище.
	u.FullName = "Mutated"
	again, err = st.UserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, "Test User", again.FullName)

	_, err = st.UserByID(ctx, 42)
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRefreshToken_SetLookupClear(t *testing.T) {
	t.Parallel()

	st := New()
	ctx := context.Background()

	u := newUser("rt@x.com", models.RoleUser)
	other := newUser("other@x.com", models.RoleUser)
	require.NoError(t, st.SaveUser(ctx, u))
	require.NoError(t, st.SaveUser(ctx, other))

	require.NoError(t, st.UpdateRefreshToken(ctx, u.ID, "token-1"))
	got, err := st.UserByRefreshToken(ctx, "token-1")
	require.NoError(t, err)
	require.Equal(t, u.ID, got.ID)
	require.Equal(t, "token-1", got.RefreshToken)

	// Чужой токен нельзя присвоить.
	err = st.UpdateRefreshToken(ctx, other.ID, "token-1")
	require.ErrorIs(t, err, storage.ErrAlreadyExists)

	// Новый токен вытесняет старый.
	require.NoError(t, st.UpdateRefreshToken(ctx, u.ID, "token-2"))
	_, err = st.UserByRefreshToken(ctx, "token-1")
	require.ErrorIs(t, err, storage.ErrNotFound)

	cleared, err := st.ClearRefreshToken(ctx, "token-2")
	require.NoError(t, err)
	require.True(t, cleared)

	cleared, err = st.ClearRefreshToken(ctx, "token-2")
	require.NoError(t, err)
	require.False(t, cleared)

	cleared, err = st.ClearRefreshToken(ctx, "")
	require.NoError(t, err)
	require.False(t, cleared)

	_, err = st.UserByRefreshToken(ctx, "")
	require.ErrorIs(t, err, storage.ErrNotFound)

	got, err = st.UserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Empty(t, got.RefreshToken)

	err = st.UpdateRefreshToken(ctx, 999, "x")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestListAndStatus(t *testing.T) {
	t.Parallel()

	st := New()
	ctx := context.Background()

	admin1 := newUser("admin1@x.com", models.RoleAdmin)
	admin2 := newUser("admin2@x.com", models.RoleAdmin)
	user := newUser("user@x.com", models.RoleUser)
	for _, u := range []*models.User{admin1, admin2, user} {
		require.NoError(t, st.SaveUser(ctx, u))
	}

	all, err := st.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, []int64{admin1.ID, admin2.ID, user.ID}, []int64{all[0].ID, all[1].ID, all[2].ID})

	admins, err := st.ListUsersByRoleAndStatus(ctx, models.RoleAdmin, models.StatusActive)
	require.NoError(t, err)
	require.Len(t, admins, 2)

	blocked, err := st.UpdateStatus(ctx, admin2.ID, models.StatusBlocked)
	require.NoError(t, err)
	require.Equal(t, models.StatusBlocked, blocked.Status)

	admins, err = st.ListUsersByRoleAndStatus(ctx, models.RoleAdmin, models.StatusActive)
	require.NoError(t, err)
	require.Len(t, admins, 1)
	require.Equal(t, admin1.ID, admins[0].ID)

	_, err = st.UpdateStatus(ctx, 999, models.StatusBlocked)
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestCanceledContext(t *testing.T) {
	t.Parallel()

	st := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.ErrorIs(t, st.SaveUser(ctx, newUser("c@x.com", models.RoleUser)), context.Canceled)
	_, err := st.ListUsers(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.ErrorIs(t, st.Ping(ctx), context.Canceled)
}

func TestConcurrentSave_UniqueEmailWinsOnce(t *testing.T) {
	t.Parallel()

	st := New()
	ctx := context.Background()

	const n = 16
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		oks  int
		errs int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := st.SaveUser(ctx, newUser("race@x.com", models.RoleUser))
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				oks++
			} else {
				errs++
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, oks)
	require.Equal(t, n-1, errs)
}
