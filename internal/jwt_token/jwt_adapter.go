package jwttoken

import (
	"careledger/pkg/platform/middleware/auth"
)

// ValidateAdminToken adapts ValidateToken to the auth middleware's
// TokenValidator contract.
func (s *JWTService) ValidateAdminToken(tokenString string) (*auth.AdminClaims, error) {
	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	return &auth.AdminClaims{
		ActorID: claims.ActorID,
		Role:    claims.Role,
	}, nil
}
