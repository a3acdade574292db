package sales

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/temple-erp/temple-pos/internal/platform/httpx"
	"github.com/temple-erp/temple-pos/internal/shared"
)

// ServicePort is what the handler needs from Service.
type ServicePort interface {
	Create(ctx context.Context, rc shared.RequestContext, req CreateRequest) (Order, error)
	Cancel(ctx context.Context, rc shared.RequestContext, idOrNumber string) (Order, error)
	Get(ctx context.Context, idOrNumber string) (Order, error)
	List(ctx context.Context, req ListRequest) ([]Order, shared.Pagination, error)
}

// Handler exposes the POS sales JSON API.
type Handler struct {
	logger    *slog.Logger
	service   ServicePort
	debug     bool
	rateLimit func(http.Handler) http.Handler
}

// NewHandler constructs the sales handler. writesPerMinute bounds create and
// cancel calls per actor; zero disables the limit.
func NewHandler(logger *slog.Logger, service ServicePort, debug bool, writesPerMinute int) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	limiter := func(next http.Handler) http.Handler { return next }
	if writesPerMinute > 0 {
		limiter = httprate.Limit(writesPerMinute, time.Minute, httprate.WithKeyFuncs(actorKey))
	}
	return &Handler{logger: logger, service: service, debug: debug, rateLimit: limiter}
}

func actorKey(r *http.Request) (string, error) {
	if actor, ok := shared.ActorFromContext(r.Context()); ok && actor.ID > 0 {
		return "user:" + strconv.FormatInt(actor.ID, 10), nil
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return "ip:" + r.RemoteAddr, nil
	}
	return "ip:" + host, nil
}

// MountRoutes registers sales routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.handleList)
	r.Get("/{id}", h.handleShow)
	r.Group(func(r chi.Router) {
		r.Use(h.rateLimit)
		r.Post("/", h.handleCreate)
		r.Post("/{id}/cancel", h.handleCancel)
	})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.DecodeError(err), h.debug)
		return
	}
	rc := h.requestContext(r)
	order, err := h.service.Create(r.Context(), rc, req)
	if err != nil {
		h.fail(w, r, "create sales order", err)
		return
	}
	httpx.OK(w, http.StatusCreated, "Sales order created successfully", order)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := ListRequest{
		Search:        q.Get("search"),
		Status:        q.Get("status"),
		PaymentStatus: q.Get("payment_status"),
		FromDate:      q.Get("from_date"),
		ToDate:        q.Get("to_date"),
	}
	fields := map[string]string{}
	req.Page = queryInt(q.Get("page"), "page", fields)
	req.PerPage = queryInt(q.Get("per_page"), "per_page", fields)
	if len(fields) > 0 {
		httpx.RespondError(w, shared.ValidationError(fields), h.debug)
		return
	}
	orders, pagination, err := h.service.List(r.Context(), req)
	if err != nil {
		h.fail(w, r, "list sales orders", err)
		return
	}
	httpx.Page(w, orders, pagination)
}

func (h *Handler) handleShow(w http.ResponseWriter, r *http.Request) {
	order, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "show sales order", err)
		return
	}
	httpx.OK(w, http.StatusOK, "", order)
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	order, err := h.service.Cancel(r.Context(), h.requestContext(r), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "cancel sales order", err)
		return
	}
	httpx.OK(w, http.StatusOK, "Sales order cancelled successfully", order)
}

func (h *Handler) requestContext(r *http.Request) shared.RequestContext {
	rc := shared.RequestFromContext(r.Context())
	if key := strings.TrimSpace(r.Header.Get("Idempotency-Key")); key != "" {
		rc.IdempotencyKey = key
	}
	return rc
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	if shared.KindOf(err) == shared.KindUnexpected || shared.KindOf(err) == shared.KindReversal {
		h.logger.Error(op, slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	httpx.RespondError(w, err, h.debug)
}

func queryInt(raw, field string, fields map[string]string) int {
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		fields[field] = "The " + field + " field must be an integer."
		return 0
	}
	return n
}
