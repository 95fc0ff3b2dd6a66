package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestPasswordHasher(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost)

	hash, err := h.Hash("secret123")
	require.NoError(t, err)
	assert.NotEqual(t, "secret123", hash)

	ok, err := h.Verify(hash, "secret123")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.Verify(hash, "wrong")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = h.Verify("not-a-hash", "secret123")
	assert.Error(t, err)
}

func TestPasswordHasherLimits(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost)

	tests := []struct {
		name     string
		password string
		wantErr  error
	}{
		{name: "too short", password: "12345", wantErr: ErrPasswordTooShort},
		{name: "six multibyte runes", password: strings.Repeat("é", 6)},
		{name: "72 ascii bytes", password: strings.Repeat("a", MaxPasswordBytes)},
		{name: "73 ascii bytes", password: strings.Repeat("a", MaxPasswordBytes+1), wantErr: ErrPasswordTooLong},
		{name: "40 runes, 80 bytes", password: strings.Repeat("é", 40), wantErr: ErrPasswordTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := h.Hash(tt.password)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, database.KindValidation, database.KindOf(err))
				return
			}
			require.NoError(t, err)
			ok, err := h.Verify(hash, tt.password)
			require.NoError(t, err)
			assert.True(t, ok)
		})
	}
}

func TestNewPasswordHasherClampsCost(t *testing.T) {
	assert.Equal(t, bcrypt.DefaultCost, NewPasswordHasher(0).cost)
	assert.Equal(t, bcrypt.DefaultCost, NewPasswordHasher(99).cost)
	assert.Equal(t, 12, NewPasswordHasher(12).cost)
}

func TestJWTTokens(t *testing.T) {
	now := time.Unix(1688443200, 0)
	tokens := NewJWTTokens("key", "test", 15*time.Minute)
	tokens.nowFunc = func() time.Time { return now }

	userID := uuid.New()
	token, err := tokens.GenerateToken(userID)
	require.NoError(t, err)

	tests := []struct {
		name     string
		token    string
		now      time.Time
		verifier *JWTTokens
		wantErr  bool
	}{
		{
			name:     "valid",
			token:    token,
			now:      now.Add(time.Minute),
			verifier: NewJWTTokens("key", "test", time.Minute),
		},
		{
			name:     "expired",
			token:    token,
			now:      now.Add(16 * time.Minute),
			verifier: NewJWTTokens("key", "test", time.Minute),
			wantErr:  true,
		},
		{
			name:     "wrong key",
			token:    token,
			now:      now,
			verifier: NewJWTTokens("other", "test", time.Minute),
			wantErr:  true,
		},
		{
			name:     "wrong issuer",
			token:    token,
			now:      now,
			verifier: NewJWTTokens("key", "elsewhere", time.Minute),
			wantErr:  true,
		},
		{
			name:     "garbage",
			token:    "not.a.token",
			now:      now,
			verifier: NewJWTTokens("key", "test", time.Minute),
			wantErr:  true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			at := tt.now
			tt.verifier.nowFunc = func() time.Time { return at }

			got, err := tt.verifier.Verify(tt.token)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, userID, got)
		})
	}
}

func TestRequireRole(t *testing.T) {
	seller := &models.User{ID: uuid.New(), Role: models.RoleSeller}
	customer := &models.User{ID: uuid.New(), Role: models.RoleCustomer}

	assert.NoError(t, RequireRole(seller, models.CatalogManagers...))
	assert.ErrorIs(t, RequireRole(customer, models.CatalogManagers...), database.ErrForbidden)
	assert.ErrorIs(t, RequireRole(nil, models.RoleAdmin), database.ErrForbidden)
}

func TestCanManageProduct(t *testing.T) {
	owner := &models.User{ID: uuid.New(), Role: models.RoleSeller}
	other := &models.User{ID: uuid.New(), Role: models.RoleSeller}
	admin := &models.User{ID: uuid.New(), Role: models.RoleAdmin}
	customer := &models.User{ID: owner.ID, Role: models.RoleCustomer}
	product := &models.Product{ID: uuid.New(), UserID: owner.ID}

	assert.True(t, CanManageProduct(owner, product))
	assert.False(t, CanManageProduct(other, product))
	assert.True(t, CanManageProduct(admin, product))
	assert.False(t, CanManageProduct(customer, product))
	assert.False(t, CanManageProduct(nil, product))
}
