package service

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/totegamma/concrnt-community"
	"github.com/totegamma/concrnt-community/internal/domain"
	"github.com/totegamma/concrnt-community/jwt"
)

var tracer = otel.Tracer("service")

type AuthService struct {
	config domain.Config
}

func NewAuthService(config domain.Config) *AuthService {
	return &AuthService{
		config: config,
	}
}

type AuthResult struct {
	CCID string
}

func (s *AuthService) AuthJwt(ctx context.Context, token string) (*AuthResult, error) {
	_, span := tracer.Start(ctx, "Auth.Service.AuthJwt")
	defer span.End()

	header, claims, err := jwt.Validate(token)
	if err != nil {
		err = errors.Wrap(err, "jwt validation failed")
		span.RecordError(err)
		return nil, err
	}

	if claims.Audience != s.config.FQDN {
		err := fmt.Errorf("jwt audience mismatch: expected %s, got %s", s.config.FQDN, claims.Audience)
		span.RecordError(err)
		return nil, err
	}

	if claims.Subject != "concrnt" {
		err := fmt.Errorf("invalid subject")
		span.RecordError(err)
		return nil, err
	}

	keyID := header.KeyID
	if keyID == "" {
		keyID = claims.Issuer
	}

	switch {
	case concrnt.IsCCID(keyID):
		span.SetAttributes(attribute.String("ccid", keyID))
		return &AuthResult{CCID: keyID}, nil
	case concrnt.IsCKID(keyID):
		// subkeys need an entity key lookup which this node does not host
		err := fmt.Errorf("ckid not supported")
		span.RecordError(err)
		return nil, err
	default:
		err := fmt.Errorf("invalid issuer")
		span.RecordError(err)
		return nil, err
	}
}
