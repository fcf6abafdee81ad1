package server

import (
	"net/http"

	"github.com/gorilla/mux"
)

func (s Server) Router() *mux.Router {
	r := mux.NewRouter()

	api := r.PathPrefix("/api").Subrouter()
	api.Use(s.loggingMw, s.maxBytesMw)

	api.HandleFunc("/health", s.health()).Methods(http.MethodGet)
	api.HandleFunc("/auth/login", s.authLogin()).Methods(http.MethodPost)

	productAPI := api.PathPrefix("/products").Subrouter()
	productAPI.Use(s.authMw)
	productAPI.HandleFunc("", s.productAdd()).Methods(http.MethodPost)
	productAPI.HandleFunc("", s.productGetAll()).Methods(http.MethodGet)
	productAPI.HandleFunc("/{productID}", s.productGetOne()).Methods(http.MethodGet)
	productAPI.HandleFunc("/{productID}", s.productRemove()).Methods(http.MethodDelete)
	productAPI.HandleFunc("/{productID}/history", s.productHistory()).Methods(http.MethodPost)
	productAPI.HandleFunc("/{productID}/stats", s.productStats()).Methods(http.MethodGet)
	productAPI.PathPrefix("").Handler(s.notFoundHandler())

	trackerAPI := api.PathPrefix("/tracker").Subrouter()
	trackerAPI.Use(s.authMw)
	trackerAPI.HandleFunc("/update/{productID}", s.trackerUpdateOne()).Methods(http.MethodPost)
	trackerAPI.HandleFunc("/update-all", s.trackerUpdateAll()).Methods(http.MethodPost)
	trackerAPI.HandleFunc("/update-stale", s.trackerUpdateStale()).Methods(http.MethodPost)
	trackerAPI.HandleFunc("/stale", s.trackerStale()).Methods(http.MethodGet)
	trackerAPI.HandleFunc("/status", s.trackerStatus()).Methods(http.MethodGet)
	trackerAPI.HandleFunc("/jobs/{jobID}", s.trackerJob()).Methods(http.MethodGet)
	trackerAPI.PathPrefix("").Handler(s.notFoundHandler())

	api.PathPrefix("").Handler(s.notFoundHandler())

	return r
}
