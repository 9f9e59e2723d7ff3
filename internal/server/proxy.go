package server

import (
	"net/http"
	"net/http/httputil"
	"net/url"

	"go.uber.org/zap"
)

// backendProxy forwards /rest/v1/* to the PostgREST backend, injecting the
// anon key server-side. Browser clients run in proxy mode and never see the
// key; any Authorization header a client sends is replaced, not forwarded.
func (s *Server) backendProxy() http.Handler {
	target, err := url.Parse(s.cfg.BackendURL)
	if err != nil {
		zap.L().Error("server: invalid backend url", zap.Error(err))
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, `{"error":"backend not configured"}`, http.StatusBadGateway)
		})
	}

	proxy := &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.Out.Host = target.Host
			pr.Out.Header.Set("apikey", s.cfg.BackendAnonKey)
			pr.Out.Header.Set("Authorization", "Bearer "+s.cfg.BackendAnonKey)
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			zap.L().Warn("server: backend proxy failed",
				zap.String("path", r.URL.Path),
				zap.Error(err),
			)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadGateway)
			w.Write([]byte(`{"error":"backend unreachable"}`))
		},
	}
	return proxy
}
