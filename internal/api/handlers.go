package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/wakala/exchangedesk/internal/dispatch"
	"github.com/wakala/exchangedesk/internal/domain"
	"github.com/wakala/exchangedesk/internal/repository"
)

// maxEventBytes caps the webhook body.
const maxEventBytes = 1 << 20

// EventIntake accepts inbound bridge events for asynchronous processing.
type EventIntake interface {
	HandleEvent(ev domain.InboundEvent) error
}

// Handlers groups all HTTP handler methods and their dependencies.
type Handlers struct {
	store  *repository.Store
	intake EventIntake
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "component", "api", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 1 {
		return def
	}
	return v
}

// --- Health ---

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DB.PingContext(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- IngestEvent ---

func (h *Handlers) IngestEvent(w http.ResponseWriter, r *http.Request) {
	var ev domain.InboundEvent
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxEventBytes))
	if err := dec.Decode(&ev); err != nil {
		writeError(w, http.StatusBadRequest, "invalid event: "+err.Error())
		return
	}
	if ev.CorrespondentID == 0 || ev.ChatID == 0 {
		writeError(w, http.StatusBadRequest, "correspondent_id and chat_id are required")
		return
	}
	if ev.Attachment != nil && !ev.Attachment.Stable() && ev.MessageID == 0 {
		writeError(w, http.StatusBadRequest, "message_id is required for attachments without a stable id")
		return
	}

	if err := h.intake.HandleEvent(ev); err != nil {
		if errors.Is(err, dispatch.ErrClosed) {
			writeError(w, http.StatusServiceUnavailable, "shutting down")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// --- ListOrders ---

func (h *Handlers) ListOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := repository.OrderFilter{
		Status: q.Get("status"),
		Page:   parseIntDefault(q.Get("page"), 1),
		Limit:  parseIntDefault(q.Get("limit"), 50),
	}
	if raw := q.Get("correspondent_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "correspondent_id must be numeric")
			return
		}
		filter.CorrespondentID = id
	}

	orders, total, err := h.store.Orders.List(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if orders == nil {
		orders = []domain.Order{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"orders": orders,
		"total":  total,
		"page":   filter.Page,
		"limit":  filter.Limit,
	})
}

// --- GetOrder ---

func (h *Handlers) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "id must be numeric")
		return
	}

	order, err := h.store.Orders.Get(r.Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusNotFound, "order not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	receipts, err := h.store.Receipts.ListByOrder(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if receipts == nil {
		receipts = []domain.Receipt{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"order":    order,
		"receipts": receipts,
	})
}

// --- Pricing ---

func (h *Handlers) ListTiers(w http.ResponseWriter, r *http.Request) {
	tiers, err := h.store.Tiers.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if tiers == nil {
		tiers = []domain.PricingTier{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"tiers": tiers})
}

func (h *Handlers) ListPaymentMethods(w http.ResponseWriter, r *http.Request) {
	methods, err := h.store.PayMethods.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if methods == nil {
		methods = []domain.PaymentMethod{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"payment_methods": methods})
}

func (h *Handlers) GetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.store.Settings.Load(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// --- GetDashboard ---

func (h *Handlers) GetDashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.Orders.Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	admins, err := h.store.Admins.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"orders": map[string]int{
			"total":           stats.Total,
			"waiting_payment": stats.WaitingPayment,
			"approved":        stats.Approved,
		},
		"volume_amd": map[string]int64{
			"quoted":   stats.QuotedAMD,
			"approved": stats.ApprovedAMD,
		},
		"admins": len(admins),
	})
}
