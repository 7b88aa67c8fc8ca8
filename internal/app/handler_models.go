package app

import (
	"net/http"

	"github.com/palisade-sh/palisade/internal/adapter/detector"
	"github.com/palisade-sh/palisade/internal/core/ports"
)

func (a *Application) modelsAvailableHandler(w http.ResponseWriter, r *http.Request) {
	available := map[string][]string{
		string(ports.DetectorPromptInjection): {
			detector.ModelCustomONNX,
			detector.ModelDeberta,
			detector.ModelLlamaGuard86,
			detector.ModelLlamaGuard22,
		},
		string(ports.DetectorPII): {
			detector.ModelPresidio,
			detector.ModelPIIONNX,
			detector.ModelPIIRegex,
			detector.ModelPIIMock,
		},
		string(ports.DetectorToxicity): {
			detector.ModelDetoxify,
			detector.ModelToxicityONNX,
			detector.ModelUnbiased,
			detector.ModelMultilingual,
		},
	}

	a.writeJSON(w, http.StatusOK, map[string]any{
		"available": available,
		"defaults":  a.detectors.Defaults(),
	})
}

func (a *Application) modelsCacheHandler(w http.ResponseWriter, r *http.Request) {
	a.writeJSON(w, http.StatusOK, map[string]any{
		"cached": a.detectors.Keys(),
		"size":   a.detectors.Size(),
	})
}

func (a *Application) modelsCacheClearHandler(w http.ResponseWriter, r *http.Request) {
	a.detectors.Clear()
	a.writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}
