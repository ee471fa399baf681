package api

import (
	"github.com/the-lightning-land/touchstop/rundb"
	"net/http"
)

type getRunsResponse struct {
	Runs []*rundb.Run `json:"runs"`
}

func (a *Api) handleGetRuns() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res := &getRunsResponse{
			Runs: []*rundb.Run{},
		}

		if a.runs != nil {
			runs, err := a.runs.Runs()
			if err != nil {
				a.log.Errorf("Could not list runs: %v", err)
				a.jsonError(w, "Could not list runs", http.StatusInternalServerError)
				return
			}

			res.Runs = runs
		}

		a.jsonResponse(w, res, http.StatusOK)
	}
}
