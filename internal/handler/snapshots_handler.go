package handler

import (
	"net/http"

	"github.com/finchapp/finch/internal/service"

	"go.uber.org/zap"
)

// ============================================================
// Net Worth / Snapshots Handlers
// ============================================================

func summaryHandler(svc *service.SnapshotService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /networth")
		defer span.End()

		summary, err := svc.Summary(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, summary)
	}
}

func snapshotHistoryHandler(svc *service.SnapshotService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /networth/history")
		defer span.End()

		from := r.URL.Query().Get("from")
		to := r.URL.Query().Get("to")

		snaps, err := svc.History(ctx, from, to)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, snaps)
	}
}

func takeSnapshotHandler(svc *service.SnapshotService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /networth/snapshot")
		defer span.End()

		var body struct {
			Date string `json:"date"`
		}
		if err := decodeBody(r, &body); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if body.Date == "" {
			body.Date = todayDate()
		}

		snap, err := svc.TakeSnapshot(ctx, body.Date)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, snap)
	}
}
