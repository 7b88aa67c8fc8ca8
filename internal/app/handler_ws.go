package app

import "net/http"

func (a *Application) wsHandler(w http.ResponseWriter, r *http.Request) {
	a.hub.ServeHTTP(w, r)
}
