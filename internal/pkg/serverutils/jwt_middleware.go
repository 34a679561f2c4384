package serverutils

import (
	"fmt"
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// AnonymousUser is set as user_id when authentication is disabled
const AnonymousUser = "anonymous"

// JwtMiddleware validates the bearer token against JWT_SECRET
func JwtMiddleware(ctx *fiber.Ctx) error {
	return NewJwtMiddleware(os.Getenv("JWT_SECRET"))(ctx)
}

// NewJwtMiddleware validates HS256 bearer tokens signed with secret.
// An empty secret disables authentication and every caller is anonymous.
func NewJwtMiddleware(secret string) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		if secret == "" {
			ctx.Locals("user_id", AnonymousUser)
			return ctx.Next()
		}

		authHeader := ctx.Get("Authorization")
		if len(authHeader) < 7 || authHeader[:7] != "Bearer " {
			return ctx.Status(fiber.StatusUnauthorized).JSON(ErrorResponse(fiber.StatusUnauthorized, "Missing token"))
		}
		tokenStr := authHeader[7:]

		token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
			return []byte(secret), nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

		if err != nil || !token.Valid {
			return ctx.Status(fiber.StatusUnauthorized).JSON(ErrorResponse(fiber.StatusUnauthorized, "Invalid token"))
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			return ctx.Status(fiber.StatusUnauthorized).JSON(ErrorResponse(fiber.StatusUnauthorized, "Invalid claims"))
		}

		uid, ok := claims["user_id"]
		if !ok || uid == nil || fmt.Sprint(uid) == "" {
			return ctx.Status(fiber.StatusUnauthorized).JSON(ErrorResponse(fiber.StatusUnauthorized, "Invalid claims"))
		}

		ctx.Locals("user_id", fmt.Sprint(uid))
		return ctx.Next()
	}
}

// UserID returns the authenticated caller set by the JWT middleware
func UserID(ctx *fiber.Ctx) string {
	if uid, ok := ctx.Locals("user_id").(string); ok {
		return uid
	}
	return AnonymousUser
}
