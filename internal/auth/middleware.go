package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/rx3lixir/astro_rtc/pkg/httputil"
)

type contextKey string

const operatorIDKey contextKey = "operator_id"

// OperatorTokenValidator checks ops API bearer tokens
type OperatorTokenValidator interface {
	ValidateOperatorToken(token string) (string, error)
}

func Middleware(tokens OperatorTokenValidator, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				httputil.RespondError(w, r, httputil.Unauthorized("authorization required"), log)
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				httputil.RespondError(w, r, httputil.Unauthorized("invalid authorization format"), log)
				return
			}

			operatorID, err := tokens.ValidateOperatorToken(parts[1])
			if err != nil {
				httputil.RespondError(w, r, &httputil.HTTPError{
					Status:  http.StatusUnauthorized,
					Message: "invalid token",
					Cause:   err,
				}, log)
				return
			}

			ctx := context.WithValue(r.Context(), operatorIDKey, operatorID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Helper function to extract from context
func GetOperatorID(ctx context.Context) string {
	operatorID, _ := ctx.Value(operatorIDKey).(string)
	return operatorID
}
