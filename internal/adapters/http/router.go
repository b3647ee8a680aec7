package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/starfederation/datastar-go/datastar"
	"go.uber.org/zap"

	"github.com/devgateway/dozer-model/internal/adapters/db/sqldb"
	"github.com/devgateway/dozer-model/internal/adapters/orm"
	"github.com/devgateway/dozer-model/internal/application"
	"github.com/devgateway/dozer-model/internal/domain"
	"github.com/devgateway/dozer-model/internal/errx"
	"github.com/devgateway/dozer-model/internal/ui"
)

// OrderLister feeds the entity picker of the models page.
type OrderLister interface {
	ListOrders(ctx context.Context, limit int) ([]sqldb.OrderSummary, error)
}

type Deps struct {
	Sessions *orm.SessionFactory
	Service  *application.DetachService
	Orders   OrderLister
	Gatherer prometheus.Gatherer
	Log      *zap.Logger
}

type Handler struct {
	sessions *orm.SessionFactory
	service  *application.DetachService
	orders   OrderLister
	log      *zap.Logger
}

func NewRouter(d Deps) http.Handler {
	h := &Handler{sessions: d.Sessions, service: d.Service, orders: d.Orders, log: d.Log}
	if h.log == nil {
		h.log = zap.NewNop()
	}
	gatherer := d.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(h.accessLog)

	r.Get("/healthz", h.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Group(func(r chi.Router) {
		r.Use(h.unitOfWork)

		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/models", http.StatusSeeOther)
		})
		r.Get("/models", h.handleModelsPage)
		r.Post("/models", h.handleOpenModel)
		r.Get("/models/list", h.handleListModels)
		r.Get("/models/{handle}", h.handleResolveModel)
		r.Get("/models/{handle}/definitions", h.handleDefinitions)
		r.Delete("/models/{handle}", h.handleCloseModel)

		r.Post("/ui/models/open", h.handleUIOpen)
		r.Post("/ui/models/resolve", h.handleUIResolve)
	})

	return r
}

// unitOfWork opens one session per request and closes it once the
// response is written.
func (h *Handler) unitOfWork(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s := h.sessions.Open(r.Context())
		defer s.Close()
		next.ServeHTTP(w, r.WithContext(orm.WithSession(r.Context(), s)))
	})
}

func (h *Handler) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		h.log.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func session(r *http.Request) (*orm.Session, error) {
	s, ok := orm.SessionFrom(r.Context())
	if !ok {
		return nil, domain.ErrNoSession
	}
	return s, nil
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "models": len(h.service.Models())})
}

func (h *Handler) handleListModels(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.service.Models())
}

func (h *Handler) handleModelsPage(w http.ResponseWriter, r *http.Request) {
	orders, err := h.listOrders(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if err := ui.ModelsPage(h.service.Models(), orders).Render(r.Context(), w); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (h *Handler) listOrders(ctx context.Context) ([]ui.OrderRow, error) {
	if h.orders == nil {
		return nil, nil
	}
	rows, err := h.orders.ListOrders(ctx, 100)
	if err != nil {
		return nil, err
	}
	out := make([]ui.OrderRow, 0, len(rows))
	for _, o := range rows {
		out = append(out, ui.OrderRow{ID: o.ID, Number: o.Number, Customer: o.Customer, Items: o.Items})
	}
	return out, nil
}

type openRequest struct {
	Entity string `json:"entity"`
	ID     any    `json:"id"`
}

func (h *Handler) handleOpenModel(w http.ResponseWriter, r *http.Request) {
	var in openRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid payload"})
		return
	}
	s, err := session(r)
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := h.service.Open(r.Context(), s, in.Entity, in.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

type resolveResponse struct {
	Handle      string                    `json:"handle"`
	Root        json.RawMessage           `json:"root"`
	Definitions []domain.DefinitionRecord `json:"definitions"`
}

// resolve reattaches the model, renders the root to JSON while the session
// is open and returns what stayed detached afterwards.
func (h *Handler) resolve(r *http.Request, handle string, initialize bool) (resolveResponse, error) {
	s, err := session(r)
	if err != nil {
		return resolveResponse{}, err
	}
	var body []byte
	err = h.service.Resolve(r.Context(), s, handle, initialize, func(root any) error {
		var err error
		body, err = json.Marshal(root)
		return err
	})
	if err != nil {
		return resolveResponse{}, err
	}
	defs, err := h.service.Definitions(handle)
	if err != nil {
		return resolveResponse{}, err
	}
	return resolveResponse{Handle: handle, Root: body, Definitions: defs}, nil
}

func (h *Handler) handleResolveModel(w http.ResponseWriter, r *http.Request) {
	initialize, _ := strconv.ParseBool(r.URL.Query().Get("initialize"))
	res, err := h.resolve(r, chi.URLParam(r, "handle"), initialize)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) handleDefinitions(w http.ResponseWriter, r *http.Request) {
	defs, err := h.service.Definitions(chi.URLParam(r, "handle"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, defs)
}

func (h *Handler) handleCloseModel(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Close(chi.URLParam(r, "handle")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type modelSignals struct {
	Handle     string `json:"handle"`
	Initialize bool   `json:"initialize"`
	OrderID    string `json:"orderId"`
}

func (h *Handler) handleUIOpen(w http.ResponseWriter, r *http.Request) {
	var sig modelSignals
	if err := datastar.ReadSignals(r, &sig); err != nil {
		h.renderFlash(r.Context(), w, http.StatusBadRequest, "invalid signals")
		return
	}
	id, err := strconv.ParseUint(strings.TrimSpace(sig.OrderID), 10, 64)
	if err != nil {
		h.renderFlash(r.Context(), w, http.StatusBadRequest, "Order ID must be a number")
		return
	}
	s, err := session(r)
	if err != nil {
		h.renderFlash(r.Context(), w, http.StatusServiceUnavailable, err.Error())
		return
	}
	if _, err := h.service.Open(r.Context(), s, "Order", uint(id)); err != nil {
		h.renderFlash(r.Context(), w, statusOf(err), err.Error())
		return
	}
	renderHTMLFragments(r.Context(), w, http.StatusOK, ui.ModelTable(h.service.Models()))
}

func (h *Handler) handleUIResolve(w http.ResponseWriter, r *http.Request) {
	var sig modelSignals
	if err := datastar.ReadSignals(r, &sig); err != nil {
		h.renderFlash(r.Context(), w, http.StatusBadRequest, "invalid signals")
		return
	}
	if strings.TrimSpace(sig.Handle) == "" {
		h.renderFlash(r.Context(), w, http.StatusBadRequest, "handle is required")
		return
	}
	res, err := h.resolve(r, strings.TrimSpace(sig.Handle), sig.Initialize)
	if err != nil {
		h.renderFlash(r.Context(), w, statusOf(err), err.Error())
		return
	}
	renderHTMLFragments(r.Context(), w, http.StatusOK, ui.ModelView(res.Handle, string(res.Root), res.Definitions))
}

func statusOf(err error) int {
	switch errx.CodeOf(err) {
	case errx.CodeInvalidParam:
		return http.StatusBadRequest
	case domain.CodeModelNotFound, domain.CodeEntityNotFound, domain.CodeUnknownEntity, errx.CodeNotFound:
		return http.StatusNotFound
	case domain.CodeNoSession, domain.CodeLazyInit:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	body := map[string]any{"error": err.Error()}
	var e *errx.Error
	if errors.As(err, &e) {
		body["code"] = e.Code()
		body["error"] = e.Msg()
	}
	writeJSON(w, statusOf(err), body)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func renderHTMLFragments(ctx context.Context, w http.ResponseWriter, status int, fragments ...templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	for _, fragment := range fragments {
		if fragment == nil {
			continue
		}
		_ = fragment.Render(ctx, w)
	}
}

func (h *Handler) renderFlash(ctx context.Context, w http.ResponseWriter, status int, message string) {
	kind := "info"
	if status >= 400 {
		kind = "error"
	}
	renderHTMLFragments(ctx, w, status, ui.Flash(message, kind))
}
