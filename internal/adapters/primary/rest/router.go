package rest

import (
	"net/http"

	"github.com/gorilla/mux"
)

// NewRouter registers every API route. apiMiddleware is applied to the
// /api subtree only.
func NewRouter(weather *WeatherHandler, system *SystemHandler, apiMiddleware ...mux.MiddlewareFunc) *mux.Router {
	router := mux.NewRouter()
	notFound := http.HandlerFunc(system.NotFound)

	router.NotFoundHandler = notFound
	router.MethodNotAllowedHandler = notFound

	router.HandleFunc("/", system.Root).Methods(http.MethodGet)
	router.HandleFunc("/version", system.Version).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	api.NotFoundHandler = notFound
	api.MethodNotAllowedHandler = notFound

	for _, mw := range apiMiddleware {
		api.Use(mw)
	}

	api.HandleFunc("/health", system.Health).Methods(http.MethodGet)
	api.HandleFunc("/cities", weather.ListCities).Methods(http.MethodGet)
	api.HandleFunc("/weather/{city}", weather.GetWeather).Methods(http.MethodGet)
	api.HandleFunc("/stats", system.Stats).Methods(http.MethodGet)

	return router
}
