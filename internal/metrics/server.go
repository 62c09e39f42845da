package metrics

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	hpprof "net/http/pprof"
	"strconv"
	"strings"
	"time"

	"maillog/internal/storage"
	"maillog/pkg/logx"
)

const (
	DefaultAddr = "127.0.0.1:9464"
	DefaultPath = "/metrics"

	pprofPrefix = "/debug/pprof/"

	deliveriesPath     = "/deliveries"
	deliveriesDefault  = 50
	deliveriesMaxLimit = 1000
)

var ErrInsecureBind = errors.New("metrics: non-loopback addr requires token or allow_insecure")

// ServerConfig controls the HTTP endpoint. A non-loopback Addr needs a
// Token unless AllowInsecure is set.
type ServerConfig struct {
	Addr          string
	Path          string
	Token         string
	AllowInsecure bool
	// Pprof mounts net/http/pprof under /debug/pprof/.
	Pprof bool
	// Deliveries, when set, serves recent delivery records on /deliveries.
	Deliveries DeliveryLister
}

// DeliveryLister is the read side of storage.Store.
type DeliveryLister interface {
	RecentDeliveries(ctx context.Context, limit int) ([]storage.Delivery, error)
}

// Mux returns the routes: /healthz, the metrics path and optionally
// /deliveries and pprof.
func (m *Metrics) Mux(cfg ServerConfig) *http.ServeMux {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		path = DefaultPath
	}
	auth := bearer(cfg.Token)

	mux := http.NewServeMux()
	mux.Handle("/healthz", auth(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})))
	mux.Handle(path, auth(m.Handler()))
	if cfg.Deliveries != nil {
		mux.Handle(deliveriesPath, auth(deliveriesHandler(cfg.Deliveries)))
	}
	if cfg.Pprof {
		mux.Handle(pprofPrefix, auth(http.HandlerFunc(hpprof.Index)))
		mux.Handle(pprofPrefix+"cmdline", auth(http.HandlerFunc(hpprof.Cmdline)))
		mux.Handle(pprofPrefix+"profile", auth(http.HandlerFunc(hpprof.Profile)))
		mux.Handle(pprofPrefix+"symbol", auth(http.HandlerFunc(hpprof.Symbol)))
		mux.Handle(pprofPrefix+"trace", auth(http.HandlerFunc(hpprof.Trace)))
	}
	return mux
}

// Serve runs the endpoint until ctx ends.
func (m *Metrics) Serve(ctx context.Context, cfg ServerConfig, log logx.Logger) error {
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		addr = DefaultAddr
	}
	if cfg.Token == "" && !isLoopback(addr) {
		if !cfg.AllowInsecure {
			return ErrInsecureBind
		}
		log.Warn("metrics served without token on non-loopback addr", logx.String("addr", addr))
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           m.Mux(cfg),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       time.Minute,
	}
	log.Info("metrics listening", logx.String("addr", ln.Addr().String()), logx.Bool("pprof", cfg.Pprof), logx.Bool("token_set", cfg.Token != ""))

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	}
}

// deliveriesHandler writes the newest records as a JSON array, newest
// last. ?limit= bounds the count.
func deliveriesHandler(src DeliveryLister) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limit := deliveriesDefault
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				http.Error(w, "invalid limit", http.StatusBadRequest)
				return
			}
			limit = min(n, deliveriesMaxLimit)
		}
		recs, err := src.RecentDeliveries(r.Context(), limit)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if recs == nil {
			recs = []storage.Delivery{}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(recs)
	})
}

// bearer accepts "Authorization: Bearer <token>" or ?token=. An empty
// token disables the check.
func bearer(token string) func(http.Handler) http.Handler {
	tok := []byte(strings.TrimSpace(token))
	return func(h http.Handler) http.Handler {
		if len(tok) == 0 {
			return h
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.URL.Query().Get("token")
			if got == "" {
				got, _ = strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			}
			if subtle.ConstantTimeCompare([]byte(strings.TrimSpace(got)), tok) != 1 {
				w.Header().Set("WWW-Authenticate", "Bearer")
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			h.ServeHTTP(w, r)
		})
	}
}

func isLoopback(addr string) bool {
	host, _, err := net.SplitHostPort(addr)
	if err != nil || host == "" {
		return false
	}
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
