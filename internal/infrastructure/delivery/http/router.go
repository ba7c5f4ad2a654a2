package httprouter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"jusdown/internal/billing"
	"jusdown/internal/config"
	"jusdown/internal/consts"
	"jusdown/internal/entity"
	"jusdown/internal/errs"
	"jusdown/internal/identity"
	"jusdown/internal/infrastructure/delivery/http/middleware"
	"jusdown/internal/infrastructure/delivery/http/request"
	"jusdown/internal/infrastructure/delivery/http/response"
	"jusdown/internal/observability"
	"jusdown/internal/service"
)

const (
	HeaderWebhookSignature = "X-Razorpay-Signature"
	HeaderWebhookEventID   = "X-Razorpay-Event-Id"
)

// Downloader runs the download pipeline and its format and url lookups.
type Downloader interface {
	Download(ctx context.Context, req entity.DownloadRequest, id entity.Identity, deliver service.DeliverFunc) error
	Formats(ctx context.Context, req entity.DownloadRequest) ([]entity.FormatOption, error)
	DirectURL(ctx context.Context, req entity.DownloadRequest, id entity.Identity, formatID string) (string, error)
}

// IdentityResolver resolves the caller and names the session cookie.
type IdentityResolver interface {
	middleware.Resolver
	CookieName() string
}

// StatusReader looks up a user's subscription.
type StatusReader interface {
	Status(ctx context.Context, userID string) (entity.SubscriptionStatus, error)
}

// WebhookHandler verifies and applies billing events.
type WebhookHandler interface {
	Handle(ctx context.Context, body []byte, signature, eventID string) (billing.Result, error)
}

type chain []func(http.Handler) http.Handler

func (c chain) then(h http.Handler) http.Handler {
	for _, mw := range slices.Backward(c) {
		h = mw(h)
	}
	return h
}

type Router struct {
	*http.ServeMux
	log         *slog.Logger
	cfg         *config.Config
	globalChain chain
	routeChain  chain
	isSubRouter bool
	pipeline    Downloader
	resolver    IdentityResolver
	subs        StatusReader
	webhook     WebhookHandler
	metrics     *observability.Metrics
}

// DirectURLResponse is the body of POST /download-url.
type DirectURLResponse struct {
	DownloadURL string `json:"downloadUrl"`
}

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	LoggedIn   bool `json:"logged_in"`
	Subscribed bool `json:"subscribed"`
}

func New(
	log *slog.Logger,
	cfg *config.Config,
	pipeline Downloader,
	resolver IdentityResolver,
	subs StatusReader,
	webhook WebhookHandler,
	metrics *observability.Metrics,
) *Router {
	r := &Router{
		ServeMux: http.NewServeMux(),
		log:      log.With(slog.String("package", "httprouter")),
		cfg:      cfg,
		pipeline: pipeline,
		resolver: resolver,
		subs:     subs,
		webhook:  webhook,
		metrics:  metrics,
	}

	r.SetGlobalMiddlewares()
	r.SetRoutes()

	return r
}

func (r *Router) Use(middleware ...func(http.Handler) http.Handler) {
	if r.isSubRouter {
		r.routeChain = append(r.routeChain, middleware...)
	} else {
		r.globalChain = append(r.globalChain, middleware...)
	}
}

func (r *Router) Group(fn func(r *Router)) {
	subRouter := &Router{
		isSubRouter: true,
		routeChain:  slices.Clone(r.routeChain),
		ServeMux:    r.ServeMux}

	fn(subRouter)
}

func (r *Router) HandleFunc(pattern string, h http.HandlerFunc) {
	r.Handle(pattern, h)
}

func (r *Router) Handle(pattern string, h http.Handler) {
	r.ServeMux.Handle(pattern, r.routeChain.then(h))
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.globalChain.then(r.ServeMux).ServeHTTP(w, req)
}

func (r *Router) SetGlobalMiddlewares() {
	r.Use(
		middleware.Recoverer,
		middleware.RequestID,
		middleware.Logger,
		middleware.Identity(r.resolver),
		middleware.Metrics(r.metrics),
	)
}

func (r *Router) SetRoutes() {
	r.SetRoutesHealthcheck()
	r.SetRoutesDownload()
	r.SetRoutesSession()

	r.Handle("GET /metrics", observability.Handler())
}

func (r *Router) SetRoutesHealthcheck() {
	healthcheckRouter := &Router{
		ServeMux: http.NewServeMux(),
	}
	healthcheckRouter.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Handle("/v1/", http.StripPrefix("/v1", healthcheckRouter))
}

func (ro *Router) SetRoutesDownload() {
	ro.HandleFunc("POST /download", ro.Download)
	ro.HandleFunc("POST /formats", ro.Formats)
	ro.HandleFunc("POST /download-url", ro.DirectURL)
}

func (ro *Router) SetRoutesSession() {
	ro.Group(func(r *Router) {
		r.Use(withTimeout(ro.cfg.HTTP.HandlerTimeout))

		r.HandleFunc("GET /status", ro.Status)
		r.HandleFunc("POST /logout", ro.Logout)
		r.HandleFunc("POST /billing/webhook", ro.BillingWebhook)
	})
}

func withTimeout(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if d <= 0 {
				next.ServeHTTP(w, r)
				return
			}

			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (ro *Router) limitBody(w http.ResponseWriter, r *http.Request) io.Reader {
	if ro.cfg.HTTP.MaxBodyBytes <= 0 {
		return r.Body
	}

	return http.MaxBytesReader(w, r.Body, ro.cfg.HTTP.MaxBodyBytes)
}

func (ro *Router) Download(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := ro.log.With(slog.String("handler", "Download"))

	var in request.Download
	if err := json.NewDecoder(ro.limitBody(w, r)).Decode(&in); err != nil {
		log.DebugContext(ctx, consts.RespInvalidRequestBody, slog.Any("error", err))
		response.Error(w, http.StatusBadRequest, consts.RespInvalidRequestBody)

		return
	}

	req := in.ToEntity(middleware.GetRequestID(ctx))

	var started bool

	err := ro.pipeline.Download(ctx, req, identity.FromContext(ctx), serveArtifact(w, &started))
	if err == nil {
		return
	}

	// the body is already on the wire; the client sees a truncated transfer
	if started {
		return
	}

	status, message := errs.Translate(err)
	response.Error(w, status, message)
}

func (ro *Router) Formats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := ro.log.With(slog.String("handler", "Formats"))

	var in request.Lookup
	if err := json.NewDecoder(ro.limitBody(w, r)).Decode(&in); err != nil {
		log.DebugContext(ctx, consts.RespInvalidRequestBody, slog.Any("error", err))
		response.Error(w, http.StatusBadRequest, consts.RespInvalidRequestBody)

		return
	}

	formats, err := ro.pipeline.Formats(ctx, in.ToEntity(middleware.GetRequestID(ctx)))
	if err != nil {
		lookupError(w, err, consts.RespFormatsUnavailable)

		return
	}

	response.JSON(w, http.StatusOK, formats)
}

func (ro *Router) DirectURL(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := ro.log.With(slog.String("handler", "DirectURL"))

	var in request.Lookup
	if err := json.NewDecoder(ro.limitBody(w, r)).Decode(&in); err != nil {
		log.DebugContext(ctx, consts.RespInvalidRequestBody, slog.Any("error", err))
		response.Error(w, http.StatusBadRequest, consts.RespInvalidRequestBody)

		return
	}

	req := in.ToEntity(middleware.GetRequestID(ctx))

	link, err := ro.pipeline.DirectURL(ctx, req, identity.FromContext(ctx), strings.TrimSpace(in.FormatID))
	if err != nil {
		lookupError(w, err, consts.RespDirectURLUnavailable)

		return
	}

	response.JSON(w, http.StatusOK, DirectURLResponse{DownloadURL: link})
}

// lookupError writes the translated error, with unexpected failures reported as fallback.
func lookupError(w http.ResponseWriter, err error, fallback string) {
	status, message := errs.Translate(err)
	if status == http.StatusInternalServerError {
		message = fallback
	}

	response.Error(w, status, message)
}

func serveArtifact(w http.ResponseWriter, started *bool) service.DeliverFunc {
	return func(art *entity.OutputArtifact) error {
		f, err := os.Open(art.Path)
		if err != nil {
			return fmt.Errorf("open artifact: %w", err)
		}
		defer f.Close()

		h := w.Header()
		h.Set("Content-Type", art.MIMEType)
		h.Set("Content-Length", strconv.FormatInt(art.Size, 10))
		h.Set("Content-Disposition", ContentDisposition(art.Name))

		*started = true

		w.WriteHeader(http.StatusOK)

		if _, err := io.Copy(w, f); err != nil {
			return fmt.Errorf("write artifact: %w", err)
		}

		return nil
	}
}

// ContentDisposition builds an attachment header carrying an ASCII filename
// and the exact UTF-8 name as filename*.
func ContentDisposition(name string) string {
	fallback := strings.Map(func(r rune) rune {
		if r < 0x20 || r > 0x7e || r == '"' || r == '\\' {
			return '_'
		}

		return r
	}, name)

	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": fallback})
	if disposition == "" {
		disposition = "attachment"
	}

	return disposition + "; filename*=UTF-8''" + strings.ReplaceAll(url.QueryEscape(name), "+", "%20")
}

func (ro *Router) Status(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := ro.log.With(slog.String("handler", "Status"))

	id := identity.FromContext(ctx)
	if !id.Present() {
		response.JSON(w, http.StatusOK, StatusResponse{})

		return
	}

	if ro.subs == nil {
		response.JSON(w, http.StatusOK, StatusResponse{LoggedIn: true})

		return
	}

	status, err := ro.subs.Status(ctx, id.ID)
	if err != nil {
		log.ErrorContext(ctx, "subscription lookup", slog.Any("error", err))
		response.Error(w, http.StatusInternalServerError, consts.RespUnexpected)

		return
	}

	response.JSON(w, http.StatusOK, StatusResponse{LoggedIn: true, Subscribed: status.Subscribed})
}

func (ro *Router) Logout(w http.ResponseWriter, _ *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     ro.resolver.CookieName(),
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	response.OK(w, consts.RespLoggedOut, nil, nil)
}

func (ro *Router) BillingWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := ro.log.With(slog.String("handler", "BillingWebhook"))

	body, err := io.ReadAll(ro.limitBody(w, r))
	if err != nil {
		log.DebugContext(ctx, consts.RespInvalidRequestBody, slog.Any("error", err))
		response.BadRequest(w, consts.RespInvalidRequestBody, nil)

		return
	}

	result, err := ro.webhook.Handle(ctx, body, r.Header.Get(HeaderWebhookSignature), r.Header.Get(HeaderWebhookEventID))

	switch {
	case err == nil:
		response.OK(w, webhookMessage(result), result, nil)
	case result == billing.ResultRejected:
		log.WarnContext(ctx, consts.RespWebhookInvalid, slog.Any("error", err))
		response.BadRequest(w, consts.RespWebhookInvalid, nil)
	default:
		// non-2xx makes the provider retry
		log.ErrorContext(ctx, "billing event not applied", slog.Any("error", err))
		response.InternalServerError(w, consts.RespUnexpected, nil, nil)
	}
}

func webhookMessage(result billing.Result) string {
	switch result {
	case billing.ResultDuplicate:
		return consts.RespWebhookDuplicate
	case billing.ResultIgnored:
		return consts.RespWebhookIgnored
	default:
		return consts.RespWebhookAccepted
	}
}
