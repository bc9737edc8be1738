package payment

import (
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"

	"gatekeeper-bot/internal/utils"
)

// NewRouter mounts the webhook handler and a health endpoint. When
// allowedCIDRs is non-empty, callback traffic outside those networks is
// dropped before parsing.
func NewRouter(h *Handler, webhookPath string, allowedCIDRs []string, log *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	webhook := http.Handler(http.HandlerFunc(h.HandleWebhook))
	if len(allowedCIDRs) > 0 {
		webhook = sourceFilter(webhook, allowedCIDRs, log)
	}
	r.Method(http.MethodPost, webhookPath, webhook)

	return r
}

func sourceFilter(next http.Handler, allowedCIDRs []string, log *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		if !utils.IsAllowedIP(host, allowedCIDRs) {
			log.Warn("webhook call from disallowed address", "remote", host)
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
