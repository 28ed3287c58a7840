package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/intellbee/internal/models"
)

func TestSignup_TokenSubjectIsLowercasedEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sess, err := f.users.Signup(ctx, SignupInput{Name: "Ada Lovelace", Email: "  Ada@Example.COM ", Password: "pw"})
	require.NoError(t, err)

	email, err := f.users.Verify(sess.Token)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", email)
	assert.Equal(t, "ada@example.com", sess.Email)
	assert.Equal(t, "Ada", sess.Username)
	assert.Equal(t, models.DefaultPrefs(), sess.Prefs)
}

func TestSignup_ExplicitUsername(t *testing.T) {
	f := newFixture(t)

	sess, err := f.users.Signup(context.Background(), SignupInput{Name: "Ada Lovelace", Username: "countess", Email: "a@x.io", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "countess", sess.Username)
}

func TestSignup_Validation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		in   SignupInput
	}{
		{"no name", SignupInput{Email: "a@x.io", Password: "pw"}},
		{"blank name", SignupInput{Name: "   ", Email: "a@x.io", Password: "pw"}},
		{"no email", SignupInput{Name: "Ada", Password: "pw"}},
		{"no password", SignupInput{Name: "Ada", Email: "a@x.io"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.users.Signup(context.Background(), tc.in)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
	assert.Empty(t, f.store.LoadUsers(context.Background()))
}

func TestSignup_DuplicateEmailAnyCaseConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.users.Signup(ctx, SignupInput{Name: "Ada", Email: "ada@x.io", Password: "pw"})
	require.NoError(t, err)

	_, err = f.users.Signup(ctx, SignupInput{Name: "Other", Email: "ADA@X.IO", Password: "pw2"})
	assert.ErrorIs(t, err, ErrConflict)
	assert.Len(t, f.store.LoadUsers(ctx), 1)
}

func TestSignup_ConcurrentDistinctUsersAllPersist(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for _, e := range []string{"a@x.io", "b@x.io", "c@x.io", "d@x.io"} {
		wg.Add(1)
		go func(email string) {
			defer wg.Done()
			_, err := f.users.Signup(ctx, SignupInput{Name: "N", Email: email, Password: "pw"})
			assert.NoError(t, err)
		}(e)
	}
	wg.Wait()

	assert.Len(t, f.store.LoadUsers(ctx), 4)
}

func TestSignup_StoresHashedPassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.users.Signup(ctx, SignupInput{Name: "Ada", Email: "ada@x.io", Password: "secret"})
	require.NoError(t, err)

	stored := f.store.LoadUsers(ctx)[0].Password
	assert.NotEqual(t, "secret", stored)
	assert.True(t, isBcryptHash(stored))
}

func TestSignup_BackendReadErrorKeepsExistingUsers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, e := range []string{"a@x.io", "b@x.io", "c@x.io"} {
		_, err := f.users.Signup(ctx, SignupInput{Name: "N", Email: e, Password: "pw"})
		require.NoError(t, err)
	}

	reset := errors.New("s3 get failed: connection reset")
	f.docs.failReads(1, reset)
	_, err := f.users.Signup(ctx, SignupInput{Name: "N", Email: "d@x.io", Password: "pw"})
	require.ErrorIs(t, err, reset)

	assert.Len(t, f.store.LoadUsers(ctx), 3)
	_, err = f.users.Login(ctx, "a@x.io", "pw")
	assert.NoError(t, err)
}

func TestUpdatePrefs_BackendReadErrorSavesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.users.Signup(ctx, SignupInput{Name: "Ada", Email: "ada@x.io", Password: "pw"})
	require.NoError(t, err)
	_, err = f.users.Signup(ctx, SignupInput{Name: "Bob", Email: "bob@x.io", Password: "pw"})
	require.NoError(t, err)

	reset := errors.New("connection refused")
	f.docs.failReads(1, reset)
	_, err = f.users.UpdatePrefs(ctx, "ada@x.io", "hi-IN", "male")
	require.ErrorIs(t, err, reset)

	assert.Len(t, f.store.LoadUsers(ctx), 2)
	p, err := f.users.Profile(ctx, "ada@x.io")
	require.NoError(t, err)
	assert.Equal(t, models.DefaultPrefs(), p.Prefs)
}

func TestProfile_BackendReadErrorDegrades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.users.Signup(ctx, SignupInput{Name: "Ada", Email: "ada@x.io", Password: "pw"})
	require.NoError(t, err)

	f.docs.failReads(1, errors.New("timeout"))
	_, err = f.users.Profile(ctx, "ada@x.io")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.users.Profile(ctx, "ada@x.io")
	assert.NoError(t, err)
}

func TestLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.users.Signup(ctx, SignupInput{Name: "Ada", Email: "ada@x.io", Password: "secret"})
	require.NoError(t, err)

	sess, err := f.users.Login(ctx, "ADA@x.io", "secret")
	require.NoError(t, err)
	assert.Equal(t, "ada@x.io", sess.Email)
	assert.NotEmpty(t, sess.Token)

	_, err = f.users.Login(ctx, "ada@x.io", "wrong")
	assert.ErrorIs(t, err, ErrAuth)

	_, err = f.users.Login(ctx, "nobody@x.io", "secret")
	assert.ErrorIs(t, err, ErrAuth)

	_, err = f.users.Login(ctx, "", "secret")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestLogin_LegacyPlaintextPassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.SaveUsers(ctx, []models.User{
		{Name: "Old", Username: "Old", Email: "old@x.io", Password: "plain", Prefs: models.DefaultPrefs()},
	}))

	_, err := f.users.Login(ctx, "old@x.io", "plain")
	require.NoError(t, err)

	_, err = f.users.Login(ctx, "old@x.io", "nope")
	assert.ErrorIs(t, err, ErrAuth)
}

func TestVerify_RejectsGarbage(t *testing.T) {
	f := newFixture(t)
	_, err := f.users.Verify("garbage")
	assert.ErrorIs(t, err, ErrAuth)
}

func TestProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.users.Signup(ctx, SignupInput{Name: "Ada Lovelace", Email: "ada@x.io", Password: "pw"})
	require.NoError(t, err)

	p, err := f.users.Profile(ctx, "ada@x.io")
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", p.Name)

	_, err = f.users.Profile(ctx, "ghost@x.io")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdatePrefs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.users.Signup(ctx, SignupInput{Name: "Ada", Email: "ada@x.io", Password: "pw"})
	require.NoError(t, err)

	prefs, err := f.users.UpdatePrefs(ctx, "ada@x.io", "fr-FR", "robot")
	require.NoError(t, err)
	assert.Equal(t, models.DefaultPrefs(), prefs)

	prefs, err = f.users.UpdatePrefs(ctx, "ada@x.io", "hi-IN", "male")
	require.NoError(t, err)
	assert.Equal(t, models.Prefs{Lang: "hi-IN", VoiceGender: "male"}, prefs)

	p, err := f.users.Profile(ctx, "ada@x.io")
	require.NoError(t, err)
	assert.Equal(t, "hi-IN", p.Prefs.Lang)
	assert.Equal(t, "hi-IN", f.users.PreferredLang(ctx, "ada@x.io"))

	// unsupported value keeps the previous one
	prefs, err = f.users.UpdatePrefs(ctx, "ada@x.io", "xx", "")
	require.NoError(t, err)
	assert.Equal(t, "hi-IN", prefs.Lang)
	assert.Equal(t, "male", prefs.VoiceGender)

	_, err = f.users.UpdatePrefs(ctx, "ghost@x.io", "hi-IN", "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPreferredLang_DefaultsWhenUnknown(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, models.DefaultLang, f.users.PreferredLang(context.Background(), "ghost@x.io"))
}
