package http

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"time"

	"ledger/internal/core"
	"ledger/internal/ledger"
	applog "ledger/internal/log"
	"ledger/internal/metrics"
	"ledger/internal/middleware/ratelimit"
	"ledger/internal/middleware/security"
	"ledger/internal/middleware/trace"
	appweb "ledger/web"
)

// Ledger is what the handlers need from the access layer.
type Ledger interface {
	ledger.Store
	Replace(ctx context.Context, id string, nc core.NewCustomer) (core.Customer, error)
	Ping(ctx context.Context) error
}

// Options carries the optional collaborators of a Server.
type Options struct {
	Logger  *applog.Logger
	Metrics *metrics.Metrics
	// WritesPerMinute caps mutating requests per client address. Zero disables it.
	WritesPerMinute int
}

type Server struct {
	http.Server
	templates *template.Template
	ledger    Ledger
	logger    *applog.Logger
	limiter   *ratelimit.Limiter
	startedAt time.Time
}

// NewServer configures routes and templates, returning a ready-to-run http.Server.
func NewServer(addr string, l Ledger, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}

	s := &Server{
		ledger:    l,
		logger:    logger.WithComponent(applog.ComponentHTTP),
		startedAt: time.Now(),
	}

	t, err := template.New("").Funcs(templateFuncs()).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		s.logger.Warn("Failed parsing templates", applog.FieldError, err, applog.FieldComponent, applog.ComponentTemplate)
	} else {
		s.templates = t
	}

	mux := http.NewServeMux()

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		s.logger.Warn("Failed to mount embedded static FS", applog.FieldError, err)
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	if opts.Metrics != nil {
		mux.Handle("GET /metrics", opts.Metrics.Handler())
	}

	// JSON API. Paths answer with and without the trailing slash.
	s.api(mux, "GET /api/customers", s.handleListCustomers)
	s.api(mux, "POST /api/customers", s.handleCreateCustomer)
	s.api(mux, "GET /api/customers/export", s.handleExportCustomers)
	s.api(mux, "GET /api/customers/{id}", s.handleGetCustomer)
	s.api(mux, "PUT /api/customers/{id}", s.handleReplaceCustomer)
	s.api(mux, "PATCH /api/customers/{id}", s.handlePatchCustomer)
	s.api(mux, "DELETE /api/customers/{id}", s.handleDeleteCustomer)
	s.api(mux, "POST /api/customers/{id}/payments", s.handleAddPayment)

	// UI
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /ui/customers", s.handleCustomersTable)
	mux.HandleFunc("POST /ui/customers", s.handleUICreateCustomer)
	mux.HandleFunc("GET /ui/customers/{id}", s.handleCustomerDetail)
	mux.HandleFunc("POST /ui/customers/{id}", s.handleUIUpdateCustomer)
	mux.HandleFunc("DELETE /ui/customers/{id}", s.handleUIDeleteCustomer)
	mux.HandleFunc("POST /ui/customers/{id}/payments", s.handleUIAddPayment)

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	var observer trace.Observer
	if opts.Metrics != nil {
		observer = opts.Metrics
	}
	tracer := trace.NewMiddleware(logger, security.ClientIP, observer)

	var handler http.Handler = mux
	if opts.WritesPerMinute > 0 {
		s.limiter = ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.WritesPerMinute})
		handler = s.limiter.Middleware(security.ClientIP)(handler)
	}

	s.Server = http.Server{
		Addr:    addr,
		Handler: tracer.Middleware(headers.Middleware(handler)),
	}
	return s
}

// Shutdown stops the write limiter and then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.limiter != nil {
		s.limiter.Stop()
	}
	return s.Server.Shutdown(ctx)
}

// api registers pattern both bare and with a trailing slash.
func (s *Server) api(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	mux.HandleFunc(pattern, h)
	mux.HandleFunc(pattern+"/{$}", h)
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"inr":   core.FormatINR,
		"plain": func(m core.Money) string { return m.String() },
	}
}
