package api

import (
	"net/http"
)

type getStatusResponse struct {
	Phase   string `json:"phase"`
	Polls   int    `json:"polls"`
	Version string `json:"version"`
}

func (a *Api) handleGetStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res := &getStatusResponse{
			Phase:   a.controller.Phase().String(),
			Polls:   a.controller.Polls(),
			Version: a.version,
		}

		a.jsonResponse(w, res, http.StatusOK)
	}
}
