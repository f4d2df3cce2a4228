package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/vibast-solutions/ms-go-course-checkout/app/entity"
	"github.com/vibast-solutions/ms-go-course-checkout/app/types"
)

const buyerContextKey = "checkout.buyer"

// Claims is the payload issued by the LMS auth service.
type Claims struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	jwt.RegisteredClaims
}

func JWTAuth(secret string) echo.MiddlewareFunc {
	key := []byte(secret)
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			header := strings.TrimSpace(ctx.Request().Header.Get(echo.HeaderAuthorization))
			tokenStr, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || strings.TrimSpace(tokenStr) == "" {
				return unauthorized(ctx, "missing bearer token")
			}

			claims := &Claims{}
			token, err := parser.ParseWithClaims(strings.TrimSpace(tokenStr), claims, func(*jwt.Token) (interface{}, error) {
				return key, nil
			})
			if err != nil || !token.Valid {
				return unauthorized(ctx, "invalid token")
			}

			buyerID, err := strconv.ParseUint(claims.Subject, 10, 64)
			if err != nil || buyerID == 0 {
				return unauthorized(ctx, "invalid token subject")
			}

			ctx.Set(buyerContextKey, &entity.Buyer{
				ID:    buyerID,
				Name:  strings.TrimSpace(claims.Name),
				Email: strings.TrimSpace(claims.Email),
			})
			return next(ctx)
		}
	}
}

// BuyerFromContext returns the authenticated buyer set by JWTAuth.
func BuyerFromContext(ctx echo.Context) (*entity.Buyer, bool) {
	buyer, ok := ctx.Get(buyerContextKey).(*entity.Buyer)
	return buyer, ok && buyer != nil
}

// WithBuyer stores buyer the same way JWTAuth does.
func WithBuyer(ctx echo.Context, buyer *entity.Buyer) {
	ctx.Set(buyerContextKey, buyer)
}

func unauthorized(ctx echo.Context, message string) error {
	return ctx.JSON(http.StatusUnauthorized, &types.ErrorResponse{Error: message})
}
