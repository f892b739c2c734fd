package auth_test

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmgilman/dexkeep/internal/auth"
	"github.com/jmgilman/dexkeep/internal/auth/mocks"
)

var (
	errMissing = errors.New("missing")
	testNow    = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
)

func memStorage() *mocks.StorageMock {
	items := map[string]string{}
	return &mocks.StorageMock{
		SetFunc: func(account, secret string) error {
			items[account] = secret
			return nil
		},
		GetFunc: func(account string) (string, error) {
			v, ok := items[account]
			if !ok {
				return "", errMissing
			}
			return v, nil
		},
		DeleteFunc: func(account string) error {
			delete(items, account)
			return nil
		},
	}
}

func tokenService(now time.Time) auth.TokenService {
	return auth.TokenService{
		Secret:   []byte("test-secret"),
		Issuer:   "dexkeep-test",
		Duration: time.Hour,
		Now:      func() time.Time { return now },
	}
}

func TestCredential_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cred    auth.Credential
		wantErr bool
	}{
		{name: "jwt", cred: auth.Credential{Token: "a.b.c"}},
		{name: "empty", cred: auth.Credential{Token: "  "}, wantErr: true},
		{name: "not a jwt", cred: auth.Credential{Token: "opaque"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cred.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestCredentialStorage(t *testing.T) {
	t.Run("store and load", func(t *testing.T) {
		storage := memStorage()
		cred := auth.Credential{URL: "http://localhost:8080", Token: "a.b.c"}

		require.NoError(t, auth.StoreCredential(storage, cred))
		got, err := auth.LoadCredential(storage, errMissing)

		require.NoError(t, err)
		assert.Equal(t, cred, *got)
		require.Len(t, storage.SetCalls(), 1)
		assert.Equal(t, storage.SetCalls()[0].Account, storage.GetCalls()[0].Account)
	})

	t.Run("invalid credential is not stored", func(t *testing.T) {
		storage := memStorage()

		err := auth.StoreCredential(storage, auth.Credential{Token: ""})

		assert.Error(t, err)
		assert.Empty(t, storage.SetCalls())
	})

	t.Run("missing credential", func(t *testing.T) {
		_, err := auth.LoadCredential(memStorage(), errMissing)

		assert.ErrorIs(t, err, auth.ErrNoCredential)
	})

	t.Run("other storage errors pass through", func(t *testing.T) {
		boom := errors.New("locked")
		storage := &mocks.StorageMock{
			GetFunc: func(string) (string, error) { return "", boom },
		}

		_, err := auth.LoadCredential(storage, errMissing)

		assert.ErrorIs(t, err, boom)
	})

	t.Run("delete", func(t *testing.T) {
		storage := memStorage()
		require.NoError(t, auth.StoreCredential(storage, auth.Credential{Token: "a.b.c"}))

		require.NoError(t, auth.DeleteCredential(storage))
		_, err := auth.LoadCredential(storage, errMissing)

		assert.ErrorIs(t, err, auth.ErrNoCredential)
	})
}

func TestTokenService(t *testing.T) {
	t.Run("sign and parse", func(t *testing.T) {
		ts := tokenService(testNow)

		raw, exp, err := ts.Sign("ash")
		require.NoError(t, err)
		assert.Equal(t, testNow.Add(time.Hour), exp)

		claims, err := ts.Parse(raw)
		require.NoError(t, err)
		assert.Equal(t, "ash", claims.Actor())
		assert.Equal(t, "dexkeep-test", claims.Issuer)
	})

	t.Run("empty username", func(t *testing.T) {
		_, _, err := tokenService(testNow).Sign("")

		assert.Error(t, err)
	})

	t.Run("expired", func(t *testing.T) {
		raw, _, err := tokenService(testNow).Sign("ash")
		require.NoError(t, err)

		_, err = tokenService(testNow.Add(2 * time.Hour)).Parse(raw)

		assert.ErrorIs(t, err, auth.ErrInvalidToken)
	})

	t.Run("wrong secret", func(t *testing.T) {
		raw, _, err := tokenService(testNow).Sign("ash")
		require.NoError(t, err)

		other := tokenService(testNow)
		other.Secret = []byte("other-secret")
		_, err = other.Parse(raw)

		assert.ErrorIs(t, err, auth.ErrInvalidToken)
	})

	t.Run("other signing method", func(t *testing.T) {
		claims := auth.Claims{
			Username: "ash",
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(testNow.Add(time.Hour)),
			},
		}
		raw, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("test-secret"))
		require.NoError(t, err)

		_, err = tokenService(testNow).Parse(raw)

		assert.ErrorIs(t, err, auth.ErrInvalidToken)
	})
}

func TestParseUnverified(t *testing.T) {
	raw, _, err := tokenService(testNow).Sign("misty")
	require.NoError(t, err)

	claims, err := auth.ParseUnverified(raw)
	require.NoError(t, err)
	assert.Equal(t, "misty", claims.Actor())

	_, err = auth.ParseUnverified("not-a-token")
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestClaims_Actor(t *testing.T) {
	c := &auth.Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "brock"}}
	assert.Equal(t, "brock", c.Actor())

	c.Username = "misty"
	assert.Equal(t, "misty", c.Actor())
}
