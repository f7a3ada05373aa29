package handler

import (
	"net/http"

	"github.com/finchapp/finch/internal/domain"
	"github.com/finchapp/finch/internal/port"
	"github.com/finchapp/finch/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ============================================================
// Recurring Rules Handlers
// ============================================================

func listRulesHandler(svc *service.RecurringService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /recurring")
		defer span.End()

		filter := port.RuleFilter{
			Kind:         domain.RuleKind(r.URL.Query().Get("kind")),
			AccountID:    r.URL.Query().Get("account_id"),
			InvestmentID: r.URL.Query().Get("investment_id"),
		}
		rules, err := svc.ListRules(ctx, filter)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, rules)
	}
}

func getRuleHandler(svc *service.RecurringService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /recurring/{ruleId}")
		defer span.End()

		rule, err := svc.GetRule(ctx, chi.URLParam(r, "ruleId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, rule)
	}
}

func createRuleHandler(svc *service.RecurringService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /recurring")
		defer span.End()

		var rule domain.RecurringRule
		if err := decodeBody(r, &rule); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		rule.Enabled = true

		created, err := svc.CreateRule(ctx, &rule)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	}
}

func updateRuleHandler(svc *service.RecurringService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /recurring/{ruleId}")
		defer span.End()

		var rule domain.RecurringRule
		if err := decodeBody(r, &rule); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		rule.ID = chi.URLParam(r, "ruleId")

		updated, err := svc.UpdateRule(ctx, &rule)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, updated)
	}
}

func toggleRuleHandler(svc *service.RecurringService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /recurring/{ruleId}/toggle")
		defer span.End()

		var body struct {
			Enabled bool `json:"enabled"`
		}
		if err := decodeBody(r, &body); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		rule, err := svc.ToggleRule(ctx, chi.URLParam(r, "ruleId"), body.Enabled)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, rule)
	}
}

func deleteRuleHandler(svc *service.RecurringService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /recurring/{ruleId}")
		defer span.End()

		if err := svc.DeleteRule(ctx, chi.URLParam(r, "ruleId")); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func runNowHandler(svc *service.RecurringService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /recurring/run")
		defer span.End()

		executed, err := svc.RunNow(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"executed": executed})
	}
}
