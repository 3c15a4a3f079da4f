package api

import (
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/danielgtaylor/huma/v2"
)

// CORSConfig holds CORS configuration. AllowOrigin is "*" or a comma
// separated list of origins.
type CORSConfig struct {
	AllowOrigin  string
	AllowMethods []string
	AllowHeaders []string
	MaxAge       int
}

// DefaultCORSConfig returns permissive CORS config for internal tools
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowOrigin:  "*",
		AllowMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Content-Type", "Authorization", "X-Requested-With", requestIDHeader, "Accept", "Origin"},
		MaxAge:       86400,
	}
}

// exposedHeaders are readable by browser clients on cross-origin responses.
const exposedHeaders = requestIDHeader + ", Content-Disposition"

// corsPolicy is a CORSConfig with its header values precomputed.
type corsPolicy struct {
	wildcard bool
	origins  []string
	methods  string
	headers  string
	maxAge   string
}

func newCORSPolicy(config CORSConfig) corsPolicy {
	p := corsPolicy{
		methods: strings.Join(config.AllowMethods, ", "),
		headers: strings.Join(config.AllowHeaders, ", "),
		maxAge:  strconv.Itoa(config.MaxAge),
	}
	for _, origin := range strings.Split(config.AllowOrigin, ",") {
		origin = strings.TrimSpace(origin)
		switch origin {
		case "":
		case "*":
			p.wildcard = true
		default:
			p.origins = append(p.origins, origin)
		}
	}
	return p
}

// allowOrigin returns the Access-Control-Allow-Origin value for a request
// origin, or "" when it is not allowed. A single configured origin is
// always sent so non-browser clients see the policy.
func (p corsPolicy) allowOrigin(origin string) string {
	switch {
	case p.wildcard:
		return "*"
	case len(p.origins) == 1:
		return p.origins[0]
	case slices.Contains(p.origins, origin):
		return origin
	}
	return ""
}

// apply writes the CORS headers through set.
func (p corsPolicy) apply(origin string, set func(key, value string)) {
	allowed := p.allowOrigin(origin)
	if !p.wildcard {
		set("Vary", "Origin")
	}
	if allowed == "" {
		return
	}
	set("Access-Control-Allow-Origin", allowed)
	set("Access-Control-Allow-Methods", p.methods)
	set("Access-Control-Allow-Headers", p.headers)
	set("Access-Control-Max-Age", p.maxAge)
	set("Access-Control-Expose-Headers", exposedHeaders)
}

// NewCORSMiddleware creates CORS middleware with the given configuration
func NewCORSMiddleware(config CORSConfig) func(huma.Context, func(huma.Context)) {
	policy := newCORSPolicy(config)

	return func(ctx huma.Context, next func(huma.Context)) {
		policy.apply(ctx.Header("Origin"), ctx.SetHeader)
		if ctx.Method() == http.MethodOptions {
			ctx.SetStatus(http.StatusNoContent)
			return
		}
		next(ctx)
	}
}

// AddCORSHandler answers preflight requests on the mux, since Huma only
// routes OPTIONS for operations that declare it.
func AddCORSHandler(mux *http.ServeMux, config CORSConfig) {
	policy := newCORSPolicy(config)

	mux.HandleFunc("OPTIONS /", func(w http.ResponseWriter, r *http.Request) {
		policy.apply(r.Header.Get("Origin"), w.Header().Set)
		w.WriteHeader(http.StatusNoContent)
	})
}
