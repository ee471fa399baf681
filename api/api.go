package api

import (
	"github.com/go-errors/errors"
	"github.com/gorilla/mux"
	"github.com/the-lightning-land/touchstop/controller"
	"github.com/the-lightning-land/touchstop/rundb"
	"net"
	"net/http"
)

// Controller is the part of the controller the api reports on.
type Controller interface {
	Phase() controller.Phase
	Polls() int
}

// RunLister lists the recorded runs.
type RunLister interface {
	Runs() ([]*rundb.Run, error)
}

type Config struct {
	Controller Controller
	Runs       RunLister
	Version    string
	Log        Logger
}

type Api struct {
	controller Controller
	runs       RunLister
	version    string
	router     *mux.Router
	log        Logger
}

func New(config *Config) *Api {
	api := &Api{
		controller: config.Controller,
		runs:       config.Runs,
		version:    config.Version,
		router:     mux.NewRouter(),
	}

	if config.Log != nil {
		api.log = config.Log
	} else {
		api.log = noopLogger{}
	}

	api.router.Handle("/api/v1/status", api.handleGetStatus()).Methods(http.MethodGet)
	api.router.Handle("/api/v1/runs", api.handleGetRuns()).Methods(http.MethodGet)

	return api
}

func (a *Api) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.router.ServeHTTP(w, r)
}

func (a *Api) Serve(l net.Listener) error {
	err := http.Serve(l, a.router)
	if err != nil {
		return errors.Errorf("Unable to serve api: %v", err)
	}

	return nil
}
