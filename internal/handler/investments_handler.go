package handler

import (
	"net/http"

	"github.com/finchapp/finch/internal/domain"
	"github.com/finchapp/finch/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ============================================================
// Investments Handlers
// ============================================================

func listInvestmentsHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /investments")
		defer span.End()

		invs, err := svc.ListInvestments(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, invs)
	}
}

func getInvestmentHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /investments/{investmentId}")
		defer span.End()

		inv, err := svc.GetInvestment(ctx, chi.URLParam(r, "investmentId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, inv)
	}
}

func createInvestmentHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /investments")
		defer span.End()

		var inv domain.Investment
		if err := decodeBody(r, &inv); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		created, err := svc.CreateInvestment(ctx, &inv)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	}
}

func updateInvestmentHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /investments/{investmentId}")
		defer span.End()

		var inv domain.Investment
		if err := decodeBody(r, &inv); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		inv.ID = chi.URLParam(r, "investmentId")

		updated, err := svc.UpdateInvestment(ctx, &inv)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, updated)
	}
}

func deleteInvestmentHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /investments/{investmentId}")
		defer span.End()

		if err := svc.DeleteInvestment(ctx, chi.URLParam(r, "investmentId")); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func updatePriceHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /investments/{investmentId}/price")
		defer span.End()

		var body struct {
			Price float64 `json:"price"`
		}
		if err := decodeBody(r, &body); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		inv, err := svc.UpdatePrice(ctx, chi.URLParam(r, "investmentId"), body.Price)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, inv)
	}
}

func accrueWealthHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /investments/accrue")
		defer span.End()

		updated, err := svc.AccrueWealth(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"updated": updated})
	}
}
