package app

import "net/http"

func (a *Application) healthHandler(w http.ResponseWriter, r *http.Request) {
	a.writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "semantic-firewall",
	})
}
