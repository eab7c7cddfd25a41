package service

import (
	"context"
	"fmt"
	"slices"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"

	"github.com/totegamma/greenledger"
	"github.com/totegamma/greenledger/internal/domain"
	"github.com/totegamma/greenledger/jwt"
)

var tracer = otel.Tracer("auth")

// Subject is the jwt subject every registry token must carry.
const Subject = "greenledger"

type AuthService struct {
	config domain.Config
}

func NewAuthService(config domain.Config) *AuthService {
	return &AuthService{
		config: config,
	}
}

type AuthResult struct {
	Requester     string
	RequesterType int
}

func (s *AuthService) AuthJwt(ctx context.Context, token string) (*AuthResult, error) {
	_, span := tracer.Start(ctx, "Auth.Service.AuthJwt")
	defer span.End()

	header, claims, err := jwt.Validate(token)
	if err != nil {
		span.RecordError(errors.Wrap(err, "jwt validation failed"))
		return nil, err
	}

	if claims.Audience != s.config.FQDN {
		err := fmt.Errorf("jwt audience mismatch: expected %s, got %s", s.config.FQDN, claims.Audience)
		span.RecordError(err)
		return nil, err
	}

	if claims.Subject != Subject {
		err := fmt.Errorf("invalid subject")
		span.RecordError(err)
		return nil, err
	}

	keyID := header.KeyID
	if keyID == "" {
		keyID = claims.Issuer
	}

	if !greenledger.IsAddress(keyID, greenledger.AddressPrefix) {
		err := fmt.Errorf("invalid issuer")
		span.RecordError(err)
		return nil, err
	}

	requesterType := domain.LocalUser
	if slices.Contains(s.config.Admins, keyID) {
		requesterType = domain.Admin
	}

	return &AuthResult{Requester: keyID, RequesterType: requesterType}, nil
}
