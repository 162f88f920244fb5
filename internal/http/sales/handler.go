package sales

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/MrJamesThe3rd/salesledger/internal/http/auth"
	"github.com/MrJamesThe3rd/salesledger/internal/ledger"
	"github.com/MrJamesThe3rd/salesledger/internal/session"
)

const maxUpload = 10 << 20

type Handler struct {
	logger *zap.Logger
}

func NewHandler(logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Handler{logger: logger}
}

// Routes expects auth.Manager.Middleware to run first.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/summary", h.summary)
	r.Get("/aggregate", h.aggregate)
	r.Get("/export", h.export)
	r.Post("/save", h.save)
	r.Post("/reload", h.reload)
	r.Post("/import", h.importCSV)

	r.Group(func(r chi.Router) {
		r.Use(middleware.AllowContentType("application/json"))
		r.Post("/", h.create)
		r.Put("/{index}", h.update)
		r.Put("/id/{id}", h.updateByID)
	})

	r.Delete("/{index}", h.delete)
	r.Delete("/id/{id}", h.deleteByID)
}

type recordRequest struct {
	Product     string          `json:"product"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	CostPerUnit decimal.Decimal `json:"cost_per_unit"`
}

func (req recordRequest) params() ledger.Params {
	return ledger.Params{
		Product:     req.Product,
		Quantity:    req.Quantity,
		Price:       req.Price,
		CostPerUnit: req.CostPerUnit,
	}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	var resp ledgerResponse

	h.with(w, r, func(s *session.Session) error {
		resp = ledgerResponse{Records: toResponseList(s.Ledger()), Dirty: s.Dirty()}
		return nil
	}, func() { h.writeJSON(w, http.StatusOK, resp) })
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req recordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var resp recordResponse

	h.with(w, r, func(s *session.Session) error {
		rec, err := s.Add(r.Context(), req.params())
		if err != nil {
			return err
		}

		resp = toResponse(len(s.Ledger())-1, rec)

		return nil
	}, func() { h.writeJSON(w, http.StatusCreated, resp) })
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		http.Error(w, "invalid index", http.StatusBadRequest)
		return
	}

	var req recordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var resp recordResponse

	h.with(w, r, func(s *session.Session) error {
		if err := s.Update(r.Context(), index, req.params()); err != nil {
			return err
		}

		resp = toResponse(index, s.Ledger()[index])

		return nil
	}, func() { h.writeJSON(w, http.StatusOK, resp) })
}

func (h *Handler) updateByID(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	var req recordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var resp recordResponse

	h.with(w, r, func(s *session.Session) error {
		if err := s.UpdateByID(r.Context(), id, req.params()); err != nil {
			return err
		}

		l := s.Ledger()
		i := ledger.IndexOf(l, id)
		resp = toResponse(i, l[i])

		return nil
	}, func() { h.writeJSON(w, http.StatusOK, resp) })
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		http.Error(w, "invalid index", http.StatusBadRequest)
		return
	}

	h.with(w, r, func(s *session.Session) error {
		return s.Delete(r.Context(), index)
	}, func() { w.WriteHeader(http.StatusNoContent) })
}

func (h *Handler) deleteByID(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	h.with(w, r, func(s *session.Session) error {
		return s.DeleteByID(r.Context(), id)
	}, func() { w.WriteHeader(http.StatusNoContent) })
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	var resp summaryResponse

	h.with(w, r, func(s *session.Session) error {
		resp = toSummaryResponse(s.Summary())
		return nil
	}, func() { h.writeJSON(w, http.StatusOK, resp) })
}

func (h *Handler) aggregate(w http.ResponseWriter, r *http.Request) {
	var resp []productTotalResponse

	h.with(w, r, func(s *session.Session) error {
		resp = toProductTotals(s.ProductTotals())
		return nil
	}, func() { h.writeJSON(w, http.StatusOK, resp) })
}

func (h *Handler) save(w http.ResponseWriter, r *http.Request) {
	h.with(w, r, func(s *session.Session) error {
		return s.Save(r.Context())
	}, func() { w.WriteHeader(http.StatusNoContent) })
}

func (h *Handler) reload(w http.ResponseWriter, r *http.Request) {
	var resp ledgerResponse

	h.with(w, r, func(s *session.Session) error {
		if err := s.Reload(r.Context()); err != nil {
			return err
		}

		resp = ledgerResponse{Records: toResponseList(s.Ledger()), Dirty: s.Dirty()}

		return nil
	}, func() { h.writeJSON(w, http.StatusOK, resp) })
}

func (h *Handler) importCSV(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUpload); err != nil {
		http.Error(w, "failed to parse form: "+err.Error(), http.StatusBadRequest)
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "missing file: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()

	var resp importResponse

	h.with(w, r, func(s *session.Session) error {
		n, err := s.Import(r.Context(), file)
		if err != nil {
			return err
		}

		resp = importResponse{Imported: n, Records: len(s.Ledger())}

		return nil
	}, func() { h.writeJSON(w, http.StatusOK, resp) })
}

func (h *Handler) export(w http.ResponseWriter, r *http.Request) {
	entry, ok := auth.FromContext(r.Context())
	if !ok {
		http.Error(w, session.ErrNotLoggedIn.Error(), http.StatusUnauthorized)
		return
	}

	filename := fmt.Sprintf("sales_%s.csv", time.Now().Format("2006-01-02"))

	err := entry.Do(func(s *session.Session) error {
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

		return s.Export(w)
	})
	if err != nil {
		h.logger.Error("failed to write export", zap.Error(err))
	}
}

// with runs fn against the request's session and calls ok on success; errors
// are translated to status codes.
func (h *Handler) with(w http.ResponseWriter, r *http.Request, fn func(s *session.Session) error, ok func()) {
	entry, found := auth.FromContext(r.Context())
	if !found {
		http.Error(w, session.ErrNotLoggedIn.Error(), http.StatusUnauthorized)
		return
	}

	if err := entry.Do(fn); err != nil {
		h.writeError(w, err)
		return
	}

	ok()
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrNotLoggedIn):
		http.Error(w, err.Error(), http.StatusUnauthorized)
	case errors.Is(err, ledger.ErrValidation), errors.Is(err, ledger.ErrMalformed):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ledger.ErrIndexOutOfRange), errors.Is(err, ledger.ErrRecordNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, ledger.ErrStorageUnavailable):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	case errors.Is(err, ledger.ErrPersistence):
		h.logger.Error("ledger not persisted", zap.Error(err))
		http.Error(w, "change applied but not saved; retry POST /sales/save", http.StatusInternalServerError)
	default:
		h.logger.Error("sales request failed", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode response", zap.Error(err))
	}
}
