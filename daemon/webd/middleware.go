package webd

import (
	"io"
	"net"
	"net/http"
	"os"

	ghandlers "github.com/gorilla/handlers"
)

// TokenEnv names the environment variable holding the API token.
const TokenEnv = "MOTIOND_TOKEN"

// tokenAuthenticationMiddleware is a middleware that checks for a valid token in the X-Motiond-Token header
// or the api_token query param.
// If the token is not valid, it returns a 403 Forbidden.
// If no token is set, it allows all requests.
func tokenAuthenticationMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		validToken := os.Getenv(TokenEnv)
		if validToken == "" {
			next.ServeHTTP(w, r)
			return
		}

		token := r.Header.Get("X-Motiond-Token")
		if token == "" {
			// eg. localhost:3000/fixes?api_token=asdfasdfb
			token = r.URL.Query().Get("api_token")
		}

		if token != validToken {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func permissiveCorsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Add("Access-Control-Allow-Headers", "Origin, X-Requested-With, Content-Type, Accept, Authorization, X-Motiond-Token")
		next.ServeHTTP(w, r)
	})
}

func contentTypeMiddlewareFunc(contentType string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", contentType)
			next.ServeHTTP(w, r)
		})
	}
}

// remoteHost is the client address, followed by any X-Forwarded-For hops.
func remoteHost(req *http.Request) string {
	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		host = req.RemoteAddr
	}
	for _, v := range req.Header.Values("X-Forwarded-For") {
		host += "->" + v
	}
	return host
}

// loggingMiddleware logs one line per request, with the fields of the Common Log Format.
func (s *WebDaemon) loggingMiddleware(next http.Handler) http.Handler {
	return ghandlers.CustomLoggingHandler(io.Discard, next, func(_ io.Writer, p ghandlers.LogFormatterParams) {
		uri := p.Request.RequestURI
		if uri == "" {
			uri = p.URL.RequestURI()
		}
		s.logger.Debug("Request",
			"remote", remoteHost(p.Request),
			"method", p.Request.Method,
			"uri", uri,
			"proto", p.Request.Proto,
			"status", p.StatusCode,
			"size", p.Size,
			"ts", p.TimeStamp)
	})
}
