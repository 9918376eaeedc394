package handlers

import "net/http"

// Health is the liveness probe. It deliberately touches no dependency: a
// degraded database already shows up as fail-open limiter logs and failed
// jobs, and the probe should not amplify an outage.
func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "pawtraits-api",
	})
}
