package ws

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"sfcollab/internal/security"
)

func normalizeAllowedOrigins(origins []string) map[string]struct{} {
	res := make(map[string]struct{}, len(origins))
	for _, origin := range origins {
		o := strings.TrimSpace(strings.ToLower(origin))
		if o != "" {
			res[o] = struct{}{}
		}
	}
	return res
}

// makeCheckOrigin admits requests without an Origin header (non-browser
// clients) and browser requests whose origin is listed. "*" admits all.
func makeCheckOrigin(allowedOrigins []string) func(r *http.Request) bool {
	allowed := normalizeAllowedOrigins(allowedOrigins)
	if _, ok := allowed["*"]; ok {
		return func(*http.Request) bool { return true }
	}

	return func(r *http.Request) bool {
		origin := strings.TrimSpace(strings.ToLower(r.Header.Get("Origin")))
		if origin == "" {
			return true
		}
		if _, ok := allowed[origin]; ok {
			return true
		}

		u, err := url.Parse(origin)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return false
		}
		normalized := strings.ToLower(fmt.Sprintf("%s://%s", u.Scheme, u.Host))
		_, ok := allowed[normalized]
		return ok
	}
}

// extractToken looks for the bearer credential in the Authorization header,
// then in Sec-WebSocket-Protocol ("bearer, <token>"), then in the token
// query parameter used by browser clients.
func extractToken(r *http.Request) string {
	authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(authHeader) > len("bearer ") && strings.EqualFold(authHeader[:len("bearer ")], "bearer ") {
		if token := strings.TrimSpace(authHeader[len("bearer "):]); token != "" {
			return token
		}
	}

	if protocolHeader := r.Header.Get("Sec-WebSocket-Protocol"); protocolHeader != "" {
		parts := strings.Split(protocolHeader, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		if len(parts) >= 2 && strings.EqualFold(parts[0], "bearer") && parts[1] != "" {
			return parts[1]
		}
	}

	return strings.TrimSpace(r.URL.Query().Get("token"))
}

// Gate authenticates a handshake. It holds no per-connection state.
type Gate struct {
	tokens *security.TokenService
}

func NewGate(tokens *security.TokenService) *Gate {
	return &Gate{tokens: tokens}
}

// Admit returns the user id carried by the request's credential, or the
// rejection text to send before closing.
func (g *Gate) Admit(r *http.Request) (userID string, reject string) {
	token := extractToken(r)
	if token == "" {
		return "", msgAuthRequired
	}
	claims, err := g.tokens.Parse(token)
	if err != nil {
		return "", msgInvalidToken
	}
	return claims.UserID(), ""
}
