package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt"

	"cvvault/internal/domain"
)

var signingSecret []byte

// Init задает секрет проверки подписи токенов
func Init(secret string) {
	signingSecret = []byte(secret)
}

// VerifyToken проверяет bearer-токен запроса и возвращает действующего
// пользователя. Идентификация приходит только из токена: сервисный слой
// получает пользователя явным параметром.
func VerifyToken(r *http.Request) (domain.ActingUser, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return domain.ActingUser{}, fmt.Errorf("no authorization header")
	}

	tokenString := strings.TrimPrefix(header, "Bearer ")
	if tokenString == header {
		return domain.ActingUser{}, fmt.Errorf("authorization header is not a bearer token")
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return signingSecret, nil
	})
	if err != nil {
		return domain.ActingUser{}, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return domain.ActingUser{}, fmt.Errorf("invalid token claims")
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return domain.ActingUser{}, fmt.Errorf("token has no subject")
	}

	user := domain.ActingUser{ID: sub}

	if rawRoles, ok := claims["roles"].([]interface{}); ok {
		for _, raw := range rawRoles {
			if role, ok := raw.(string); ok {
				user.Roles = append(user.Roles, role)
			}
		}
	}

	return user, nil
}
