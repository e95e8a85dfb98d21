package jwttoken

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "careledger/pkg/domain-errors"
)

func newTestService() *JWTService {
	return NewJWTService("test-signing-key", "careledger", "registry-admin")
}

func TestGenerateAndValidateAdminToken(t *testing.T) {
	svc := newTestService()

	token, err := svc.GenerateAdminToken("admin-ada", time.Minute)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "admin-ada", claims.ActorID)
	assert.Equal(t, RoleRegistryAdmin, claims.Role)
}

func TestGenerateAdminTokenRequiresActor(t *testing.T) {
	svc := newTestService()
	_, err := svc.GenerateAdminToken("", time.Minute)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	svc := newTestService()

	token, err := svc.GenerateAdminToken("admin-ada", -time.Minute)
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func TestValidateTokenRejectsWrongKey(t *testing.T) {
	token, err := newTestService().GenerateAdminToken("admin-ada", time.Minute)
	require.NoError(t, err)

	other := NewJWTService("different-key", "careledger", "registry-admin")
	_, err = other.ValidateToken(token)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func TestValidateTokenRejectsWrongAudience(t *testing.T) {
	issuer := NewJWTService("test-signing-key", "careledger", "somewhere-else")
	token, err := issuer.GenerateAdminToken("admin-ada", time.Minute)
	require.NoError(t, err)

	_, err = newTestService().ValidateToken(token)
	require.Error(t, err)
}
