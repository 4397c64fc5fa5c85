// Package gateway is the single entry point for every entity read and
// write: it parses the request envelope, resolves the caller identity,
// checks the permission matrix, invokes the matching resource handler and
// meters the call.
package gateway

import (
	"context"
	"database/sql"
	"net/http"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"hearthside.org/internal/auth"
	"hearthside.org/internal/obs"
	"hearthside.org/internal/policy"
	"hearthside.org/internal/resource"
	"hearthside.org/internal/usage"
)

// ReadyProbe checks readiness, typically by pinging the database.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// Options wires the gateway's collaborators.
type Options struct {
	ReadyProbe ReadyProbe
	Version    string

	Registry *resource.Registry
	Matrix   *policy.Matrix
	Engine   *resource.Engine
	Resolver *auth.Resolver
	Usage    *usage.Logger
	Logger   zerolog.Logger

	RateBurst    int
	RatePerSec   int
	MaxBodyBytes int64
}

// API is the HTTP layer.
type API struct {
	mux        *http.ServeMux
	readyProbe ReadyProbe
	version    string

	registry *resource.Registry
	matrix   *policy.Matrix
	engine   *resource.Engine
	resolver *auth.Resolver
	usage    *usage.Logger
	validate *validator.Validate
	log      zerolog.Logger

	rateBurst    int
	ratePerSec   int
	maxBodyBytes int64

	stop      chan struct{}
	closeOnce sync.Once
}

// New constructs the API. The permission matrix is validated against the
// registered handlers here so a policy gap fails at startup.
func New(opts Options) (*API, error) {
	if err := opts.Matrix.Validate(opts.Registry.SupportedActions()); err != nil {
		return nil, err
	}

	a := &API{
		mux:          http.NewServeMux(),
		readyProbe:   opts.ReadyProbe,
		version:      opts.Version,
		registry:     opts.Registry,
		matrix:       opts.Matrix,
		engine:       opts.Engine,
		resolver:     opts.Resolver,
		usage:        opts.Usage,
		validate:     validator.New(),
		log:          opts.Logger,
		rateBurst:    opts.RateBurst,
		ratePerSec:   opts.RatePerSec,
		maxBodyBytes: opts.MaxBodyBytes,
		stop:         make(chan struct{}),
	}
	if a.rateBurst <= 0 {
		a.rateBurst = 50
	}
	if a.ratePerSec <= 0 {
		a.ratePerSec = 25
	}
	if a.maxBodyBytes <= 0 {
		a.maxBodyBytes = 1 << 20
	}

	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)
	a.mux.Handle("/metrics", obs.Handler())
	a.mux.HandleFunc("/v1/gateway", a.Dispatch)
	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	return a, nil
}

// Handler returns the full middleware chain around the mux.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = MaxBodyBytes(h, a.maxBodyBytes)
	h = RateLimit(h, a.rateBurst, a.ratePerSec, a.stop)
	h = SecurityHeaders(h)
	h = LoggingJSON(h, a.log)
	h = RequestID(h)
	return obs.Instrument(h)
}

// Close stops background work owned by the handler chain, currently the
// rate limiter's bucket eviction loop. Safe to call more than once.
func (a *API) Close() {
	a.closeOnce.Do(func() { close(a.stop) })
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "hearthside-gateway",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "hearthside-gateway",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}
