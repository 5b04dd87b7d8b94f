package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// ErrUnauthorized возвращается, если токен отсутствует или неизвестен.
var ErrUnauthorized = errors.New("unauthorized")

// Authenticator проверяет bearer-токен и возвращает идентификатор пользователя.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (int64, error)
}

// StaticTokens - таблица токенов из конфигурации.
type StaticTokens map[string]int64

// ParseStaticTokens разбирает строку вида "token1=1,token2=2".
func ParseStaticTokens(raw string) (StaticTokens, error) {
	tokens := make(StaticTokens)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		token, actor, ok := strings.Cut(pair, "=")
		token = strings.TrimSpace(token)
		if !ok || token == "" {
			return nil, fmt.Errorf("invalid api token entry %q", pair)
		}
		id, err := strconv.ParseInt(strings.TrimSpace(actor), 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid actor id for api token %q", token)
		}
		tokens[token] = id
	}
	return tokens, nil
}

// Authenticate реализует Authenticator.
func (t StaticTokens) Authenticate(_ context.Context, token string) (int64, error) {
	id, ok := t[token]
	if !ok {
		return 0, ErrUnauthorized
	}
	return id, nil
}

type actorKey struct{}

// ActorFromContext возвращает пользователя, прошедшего аутентификацию.
func ActorFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(actorKey{}).(int64)
	return id, ok
}

func requireBearer(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			scheme, token, ok := strings.Cut(header, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
				writeJSON(w, http.StatusUnauthorized, "missing bearer token", nil)
				return
			}

			actor, err := auth.Authenticate(r.Context(), strings.TrimSpace(token))
			if err != nil {
				writeJSON(w, http.StatusUnauthorized, ErrUnauthorized.Error(), nil)
				return
			}

			ctx := context.WithValue(r.Context(), actorKey{}, actor)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
