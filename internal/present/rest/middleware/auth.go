package middleware

import (
	"context"
	"fmt"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/totegamma/greenledger/internal/domain"
	"github.com/totegamma/greenledger/internal/service"
)

var tracer = otel.Tracer("auth")

type AuthMiddleware struct {
	auth   *service.AuthService
	config domain.Config
}

func NewAuthMiddleware(
	auth *service.AuthService,
	config domain.Config,
) *AuthMiddleware {
	return &AuthMiddleware{
		auth:   auth,
		config: config,
	}
}

func (s *AuthMiddleware) IdentifyIdentity(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, span := tracer.Start(c.Request().Context(), "Auth.Service.IdentifyIdentity")
		defer span.End()

		// a missing or invalid token leaves the request anonymous; handlers
		// that need a requester answer 401 themselves
		authHeader := c.Request().Header.Get("authorization")

		if authHeader != "" {
			split := strings.Split(authHeader, " ")
			if len(split) != 2 {
				span.RecordError(fmt.Errorf("invalid authentication header"))
				goto skipCheckAuthorization
			}

			authType, token := split[0], split[1]
			if authType != "Bearer" {
				span.RecordError(fmt.Errorf("only Bearer is acceptable"))
				goto skipCheckAuthorization
			}

			result, err := s.auth.AuthJwt(ctx, token)
			if err != nil {
				span.RecordError(errors.Wrap(err, "AuthMiddleware.IdentifyIdentity: s.auth.AuthJwt failed"))
				goto skipCheckAuthorization
			}

			ctx = context.WithValue(ctx, domain.RequesterIdCtxKey, result.Requester)
			ctx = context.WithValue(ctx, domain.RequesterTypeCtxKey, result.RequesterType)
			span.SetAttributes(
				attribute.String("RequesterId", result.Requester),
				attribute.String("RequesterType", domain.RequesterTypeString(result.RequesterType)),
			)
		}

	skipCheckAuthorization:
		c.SetRequest(c.Request().WithContext(ctx))
		return next(c)
	}
}

// Requester returns the authenticated requester address, or "" for anonymous requests.
func Requester(ctx context.Context) string {
	requester, _ := ctx.Value(domain.RequesterIdCtxKey).(string)
	return requester
}
