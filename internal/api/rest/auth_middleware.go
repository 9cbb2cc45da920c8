package rest

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/davidleathers/fraud-stepup-backend/internal/domain/errors"
)

// AuthConfig holds the bearer token settings
type AuthConfig struct {
	JWTSecret []byte
	// Issuer is checked when set
	Issuer string
}

// Claims are the tenant claims carried by API tokens
type Claims struct {
	jwt.RegisteredClaims
	TenantID   string `json:"tenantId"`
	TenantName string `json:"tenantName,omitempty"`
}

// AuthMiddleware authenticates tenants with HS256 bearer tokens
type AuthMiddleware struct {
	config AuthConfig
	parser *jwt.Parser
	tracer trace.Tracer
}

// NewAuthMiddleware creates the middleware. An empty secret is rejected.
func NewAuthMiddleware(config AuthConfig) (*AuthMiddleware, error) {
	if len(config.JWTSecret) == 0 {
		return nil, stderrors.New("rest: jwt secret is required")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithExpirationRequired(),
	}
	if config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(config.Issuer))
	}

	return &AuthMiddleware{
		config: config,
		parser: jwt.NewParser(opts...),
		tracer: otel.Tracer("api.rest.auth"),
	}, nil
}

// Middleware rejects requests without a valid tenant token
func (a *AuthMiddleware) Middleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, span := a.tracer.Start(r.Context(), "auth.middleware")
			defer span.End()

			token, err := extractBearer(r)
			if err != nil {
				span.RecordError(err)
				writeError(w, r, errors.NewUnauthorizedError(err.Error()))
				return
			}

			claims, err := a.validateToken(token)
			if err != nil {
				span.RecordError(err)
				writeError(w, r, errors.NewUnauthorizedError("invalid or expired token"))
				return
			}

			span.SetAttributes(attribute.String("tenant.id", claims.TenantID))
			ctx = withTenant(ctx, Tenant{ID: claims.TenantID, Name: claims.TenantName})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GenerateToken signs a tenant token valid for ttl
func (a *AuthMiddleware) GenerateToken(tenantID, tenantName string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    a.config.Issuer,
			Subject:   tenantID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		TenantID:   tenantID,
		TenantName: tenantName,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.config.JWTSecret)
}

func (a *AuthMiddleware) validateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := a.parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.config.JWTSecret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, stderrors.New("invalid token")
	}
	if strings.TrimSpace(claims.TenantID) == "" {
		return nil, stderrors.New("token has no tenant")
	}
	return claims, nil
}

func extractBearer(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", stderrors.New("authorization required")
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "bearer") || strings.TrimSpace(token) == "" {
		return "", stderrors.New("invalid authorization header format")
	}
	return strings.TrimSpace(token), nil
}
