package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// New assembles the full API surface.
func New(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(RequestID, AccessLog, Recover, Cors)
	if d.Collector != nil {
		r.Use(Observe(d.Collector))
	}

	rh := RunsHandler{DB: d.DB, Orc: d.Orc, Hub: d.Hub, Spawn: d.Spawn, Ledger: d.Ledger, Collector: d.Collector}
	vh := VideosHandler{DB: d.DB}
	r.Route("/api/curation", func(r chi.Router) {
		r.Post("/runs", rh.Start)
		r.Get("/runs", rh.List)
		r.Get("/runs/{id}", rh.Get)
		r.Get("/runs/{id}/videos", rh.Videos)
		r.Get("/videos/{sourceID}/thumbnail", vh.Thumbnail)
		r.Get("/stats", rh.Stats)
	})

	ch := ConfigHandler{CfgVal: d.CfgVal, UserCfgPath: d.UserCfgPath, LoadCfg: d.LoadCfg}
	r.Get("/api/config", ch.Get)
	r.Put("/api/config", ch.Put)
	r.Get("/api/config/path", ch.Path)

	sh := SecretsHandler{}
	r.Post("/api/secrets/{account}", sh.Set)

	eh := EventsHandler{Hub: d.Hub}
	r.Get("/api/events", eh.ServeSSE)

	hh := HealthHandler{DB: d.DB, Hub: d.Hub, Ledger: d.Ledger}
	r.Get("/api/health", hh.Health)

	dh := DBHandler{DB: d.DB}
	r.Post("/api/db/checkpoint", dh.Checkpoint)

	if d.Collector != nil {
		r.Method(http.MethodGet, "/metrics", d.Collector.Handler())
	}

	return r
}
