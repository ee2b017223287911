package http

import (
	"context"
	"net/http"

	"previsto/internal/log"
	"previsto/internal/services"
	"previsto/internal/worker"
)

func (s *Server) handleVarianceReport(w http.ResponseWriter, r *http.Request) {
	userID, err := requestUser(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	planID := r.PathValue("id")

	if report, ok := s.reportCache.Get(worker.CacheKey(planID, userID)); ok {
		writeData(w, http.StatusOK, report)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), handlerTimeout)
	defer cancel()

	report, err := s.reports.GenerateMonthVarianceReport(ctx, planID, userID)
	if err != nil {
		s.logger.WarnContext(ctx, "Report generation failed",
			log.FieldPlanID, planID,
			log.FieldError, err.Error())
		writeServiceError(w, err)
		return
	}

	s.reportCache.Set(worker.CacheKey(planID, userID), report)
	writeData(w, http.StatusOK, report)
}

func (s *Server) handleCategoryVariances(w http.ResponseWriter, r *http.Request) {
	userID, err := requestUser(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	planID := r.PathValue("id")

	ctx, cancel := context.WithTimeout(r.Context(), handlerTimeout)
	defer cancel()

	variances, err := s.reports.VariancesByCategory(ctx, planID, userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, variances)
}

func (s *Server) handleVendorVariances(w http.ResponseWriter, r *http.Request) {
	userID, err := requestUser(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	planID := r.PathValue("id")

	ctx, cancel := context.WithTimeout(r.Context(), handlerTimeout)
	defer cancel()

	variances, err := s.reports.VariancesByVendor(ctx, planID, userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, variances)
}

func (s *Server) handleLargestVariances(w http.ResponseWriter, r *http.Request) {
	userID, err := requestUser(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	planID := r.PathValue("id")

	limit, err := parseLimit(r, services.DefaultLargestLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), handlerTimeout)
	defer cancel()

	items, err := s.reports.LargestVariances(ctx, planID, userID, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, items)
}

func (s *Server) handleCriticalVariances(w http.ResponseWriter, r *http.Request) {
	userID, err := requestUser(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	planID := r.PathValue("id")

	ctx, cancel := context.WithTimeout(r.Context(), handlerTimeout)
	defer cancel()

	items, err := s.reports.CriticalVariances(ctx, planID, userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, items)
}

func (s *Server) handleVarianceTrends(w http.ResponseWriter, r *http.Request) {
	userID, err := requestUser(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}

	start, end, err := parseMonthRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), handlerTimeout)
	defer cancel()

	trends, err := s.reports.VarianceTrends(ctx, userID, start, end)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, trends)
}
