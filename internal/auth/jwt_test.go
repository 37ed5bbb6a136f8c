package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/freechat/session-go/internal/errors"
)

func TestJWTService_GenerateAndValidate(t *testing.T) {
	service := NewJWTService("test-secret-key", "freechat", time.Hour)

	token, err := service.GenerateToken("user-1", []string{"team-a"})
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := service.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, []string{"team-a"}, claims.TeamIDs)
	assert.Equal(t, "freechat", claims.Issuer)
}

func TestJWTService_ValidateToken_Expired(t *testing.T) {
	service := NewJWTService("test-secret-key", "freechat", time.Hour)
	service.expiresIn = -time.Hour

	token, err := service.GenerateToken("user-1", nil)
	require.NoError(t, err)

	_, err = service.ValidateToken(token)
	require.Error(t, err)
	assert.True(t, apperrors.IsAuthorization(err))
}

func TestJWTService_ValidateToken_WrongKey(t *testing.T) {
	service := NewJWTService("test-secret-key", "freechat", time.Hour)
	other := NewJWTService("another-secret-key", "freechat", time.Hour)

	token, err := other.GenerateToken("user-1", nil)
	require.NoError(t, err)

	_, err = service.ValidateToken(token)
	require.Error(t, err)
	assert.True(t, apperrors.IsAuthorization(err))
}

func TestJWTService_ValidateToken_MissingUserID(t *testing.T) {
	service := NewJWTService("test-secret-key", "freechat", time.Hour)

	token, err := service.GenerateToken("", nil)
	require.NoError(t, err)

	_, err = service.ValidateToken(token)
	require.Error(t, err)
}

func TestExtractTokenFromHeader(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		want    string
		wantErr bool
	}{
		{name: "valid token", header: "Bearer abc123", want: "abc123"},
		{name: "empty header", header: "", wantErr: true},
		{name: "missing prefix", header: "abc123", wantErr: true},
		{name: "empty token", header: "Bearer ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := ExtractTokenFromHeader(tt.header)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, token)
		})
	}
}
