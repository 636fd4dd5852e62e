package handler

import "net/http"

// HealthCheck is a simple health check endpoint.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
