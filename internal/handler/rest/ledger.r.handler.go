package hrest

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"ledger-service/internal/domain"
	appmw "ledger-service/internal/middleware"
	xerrors "ledger-service/internal/pkg/errors"
	"ledger-service/internal/usecase"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

type LedgerRestHandler struct {
	ledgerUC *usecase.LedgerUsecase
	apiToken string
	logger   *zap.Logger
}

func NewLedgerRestHandler(ledgerUC *usecase.LedgerUsecase, apiToken string, logger *zap.Logger) *LedgerRestHandler {
	return &LedgerRestHandler{
		ledgerUC: ledgerUC,
		apiToken: apiToken,
		logger:   logger,
	}
}

// statusEnvelope is the wire format for every non-200 outcome and for
// successful writes. Nonce is the server timestamp, unrelated to the
// request idempotency nonce.
type statusEnvelope struct {
	Status int    `json:"status"`
	Desc   string `json:"desc"`
	Msg    string `json:"msg"`
	Nonce  string `json:"nonce"`
}

type operationPayload struct {
	Operation string `json:"operation"`
	Nonce     string `json:"nonce"`
	OwnerID   string `json:"owner_id"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeEnvelope(w http.ResponseWriter, status int, desc, msg string) {
	writeJSON(w, status, statusEnvelope{
		Status: status,
		Desc:   desc,
		Msg:    msg,
		Nonce:  time.Now().Format(time.RFC3339Nano),
	})
}

// GetBalance handles GET /ledger/{owner_id}.
func (h *LedgerRestHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	ownerID := chi.URLParam(r, "owner_id")

	balance, err := h.ledgerUC.GetBalance(r.Context(), ownerID)
	if err != nil {
		switch {
		case errors.Is(err, xerrors.ErrNotFound):
			writeEnvelope(w, http.StatusNotFound, "not-found", "User not found!")
		case errors.Is(err, xerrors.ErrEmptyAccountID):
			writeEnvelope(w, http.StatusBadRequest, "bad-request", "Owner id required!")
		default:
			h.logger.Error("balance read failed", zap.String("owner_id", ownerID), zap.Error(err))
			writeEnvelope(w, http.StatusInternalServerError, "internal-error", "Something went wrong!")
		}
		return
	}

	writeJSON(w, http.StatusOK, balance)
}

// ListEntries handles GET /ledger/{owner_id}/entries.
func (h *LedgerRestHandler) ListEntries(w http.ResponseWriter, r *http.Request) {
	ownerID := chi.URLParam(r, "owner_id")

	entries, err := h.ledgerUC.ListEntries(r.Context(), ownerID)
	if err != nil {
		switch {
		case errors.Is(err, xerrors.ErrNotFound):
			writeEnvelope(w, http.StatusNotFound, "not-found", "User not found!")
		case errors.Is(err, xerrors.ErrEmptyAccountID):
			writeEnvelope(w, http.StatusBadRequest, "bad-request", "Owner id required!")
		default:
			h.logger.Error("entry list failed", zap.String("owner_id", ownerID), zap.Error(err))
			writeEnvelope(w, http.StatusInternalServerError, "internal-error", "Something went wrong!")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"owner_id": ownerID,
		"entries":  entries,
	})
}

// ApplyOperation handles POST /ledger.
func (h *LedgerRestHandler) ApplyOperation(w http.ResponseWriter, r *http.Request) {
	var in operationPayload
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeEnvelope(w, http.StatusBadRequest, "bad-request", "Invalid request body!")
		return
	}

	_, err := h.ledgerUC.ApplyOperation(r.Context(), in.OwnerID, domain.OperationKind(in.Operation), in.Nonce)
	if err != nil {
		switch {
		case errors.Is(err, xerrors.ErrAccountNotFound):
			writeEnvelope(w, http.StatusNotFound, "not-found", "User not found!")
		case errors.Is(err, xerrors.ErrDuplicateOperation):
			writeEnvelope(w, http.StatusConflict, "conflict", "Ledger operation is already done!")
		case errors.Is(err, xerrors.ErrInsufficientFunds):
			writeEnvelope(w, http.StatusNotAcceptable, "not-acceptable", "Not enought credit!")
		case errors.Is(err, xerrors.ErrInvalidOperationKind):
			writeEnvelope(w, http.StatusBadRequest, "bad-request", "Unrecognized ledger operation!")
		case errors.Is(err, xerrors.ErrEmptyAccountID), errors.Is(err, xerrors.ErrEmptyIdempotencyKey):
			writeEnvelope(w, http.StatusBadRequest, "bad-request", "Invalid request body!")
		default:
			h.logger.Error("ledger operation failed",
				zap.String("owner_id", in.OwnerID),
				zap.String("operation", in.Operation),
				zap.Error(err),
			)
			writeEnvelope(w, http.StatusInternalServerError, "internal-error", "Something went wrong!")
		}
		return
	}

	writeEnvelope(w, http.StatusCreated, "created", "Ledger operation succesfully completed!")
}

// Router assembles the full HTTP surface, middleware included.
func (h *LedgerRestHandler) Router() chi.Router {
	r := chi.NewRouter()

	// Middlewares
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(pr chi.Router) {
		pr.Use(appmw.RequireToken(h.apiToken, func(w http.ResponseWriter) {
			writeEnvelope(w, http.StatusUnauthorized, "unauthorized", "X-Token header invalid")
		}))

		pr.Route("/ledger", func(lr chi.Router) {
			lr.Post("/", h.ApplyOperation)
			lr.Get("/{owner_id}", h.GetBalance)
			lr.Get("/{owner_id}/entries", h.ListEntries)
		})
	})

	return r
}

func (h *LedgerRestHandler) Start(addr string) error {
	server := &http.Server{
		Addr:    addr,
		Handler: h.Router(),
	}

	h.logger.Info("ledger REST service running", zap.String("addr", addr))

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
