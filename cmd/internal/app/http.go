package app

import (
	"net/http"
	"time"
)

func registerHTTP(mux *http.ServeMux, a *App) {
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if a.cfg.ReadinessRequireDB && !a.dbEnabled {
			http.Error(w, "db not configured", http.StatusServiceUnavailable)
			return
		}
		if a.dbEnabled && a.dbPool != nil {
			if err := PingDB(r.Context(), a.dbPool, 2*time.Second); err != nil {
				http.Error(w, "db not ready", http.StatusServiceUnavailable)
				a.log.Info("readyz.db.not_ready", "err", err)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready\n"))
	})

	mux.Handle("/metrics", a.metrics.Handler())

	mux.HandleFunc("/api/auth/status", a.validator.HandleStatus)
	mux.HandleFunc("/api/device/check", a.device.HandleCheck)
	mux.HandleFunc("/api/device/register", a.device.HandleRegister)
	mux.Handle("/api/heartbeat", a.hb)

	a.panel.Register(mux)

	mux.HandleFunc("/ws", a.ws.HandleWS)
}
