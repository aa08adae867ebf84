package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/insightduck/insightduck/internal/cleaning"
	"github.com/insightduck/insightduck/internal/projects"
)

// mutationResponse pairs an operation report with the freshly recomputed
// profile, so clients never render stale schema.
type mutationResponse struct {
	Report  *cleaning.Report `json:"report"`
	Profile any              `json:"profile"`
}

func (s *Server) projectTable(r *http.Request) string {
	return projects.TableName(currentProject(r.Context()).ID)
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	prof, err := s.profiler.DataProfile(r.Context(), s.projectTable(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, prof)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.profiler.StatisticalSummary(r.Context(), s.projectTable(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request) {
	insights := s.profiler.Insights(r.Context(), s.projectTable(r))
	writeJSON(w, http.StatusOK, map[string]any{"insights": insights})
}

func (s *Server) handleConversionSuggestions(w http.ResponseWriter, r *http.Request) {
	suggestions, err := s.cleaner.SuggestConversions(r.Context(), s.projectTable(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"suggestions": suggestions})
}

func (s *Server) handleFindDuplicates(w http.ResponseWriter, r *http.Request) {
	report, err := s.cleaner.FindDuplicates(r.Context(), s.projectTable(r), r.URL.Query().Get("primary_key"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleChartData(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	data := s.projector.ChartData(r.Context(), s.projectTable(r),
		q.Get("chart_type"), q.Get("x_axis"), q.Get("y_axis"))
	writeJSON(w, http.StatusOK, data)
}

func (s *Server) handleChartSuggestions(w http.ResponseWriter, r *http.Request) {
	if s.suggester == nil {
		writeJSON(w, http.StatusServiceUnavailable,
			map[string]string{"detail": "chart suggestions are not configured"})
		return
	}

	suggestions, err := s.suggester.SuggestCharts(r.Context(), s.projectTable(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"suggestions": suggestions})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	csvData, err := s.loader.ExportCSVString(r.Context(), s.projectTable(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	filename := fmt.Sprintf("%s.csv", currentProject(r.Context()).ProjectName)
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	_, _ = w.Write([]byte(csvData))
}

// mutate runs op under the project lock and responds with the report plus
// a fresh profile.
func (s *Server) mutate(w http.ResponseWriter, r *http.Request, op func() (*cleaning.Report, error)) {
	project := currentProject(r.Context())

	lock := s.projectLock(project.ID)
	lock.Lock()
	defer lock.Unlock()

	report, err := op()
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	prof, err := s.profiler.DataProfile(r.Context(), projects.TableName(project.ID))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mutationResponse{Report: report, Profile: prof})
}

func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errBadRequest("invalid json body: " + err.Error())
	}
	return nil
}

type conversionsRequest struct {
	Conversions []cleaning.ConversionSpec `json:"conversions"`
}

func (s *Server) handleConversions(w http.ResponseWriter, r *http.Request) {
	var req conversionsRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if len(req.Conversions) == 0 {
		s.writeError(w, r, errBadRequest("missing conversions"))
		return
	}
	s.mutate(w, r, func() (*cleaning.Report, error) {
		return s.cleaner.ConvertColumnTypes(r.Context(), s.projectTable(r), req.Conversions)
	})
}

type handleDuplicatesRequest struct {
	Strategy string `json:"strategy"`
}

func (s *Server) handleHandleDuplicates(w http.ResponseWriter, r *http.Request) {
	var req handleDuplicatesRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.mutate(w, r, func() (*cleaning.Report, error) {
		return s.cleaner.HandleDuplicates(r.Context(), s.projectTable(r), req.Strategy)
	})
}

type imputeRequest struct {
	Imputations []cleaning.ImputationSpec `json:"imputations"`
}

func (s *Server) handleImpute(w http.ResponseWriter, r *http.Request) {
	var req imputeRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if len(req.Imputations) == 0 {
		s.writeError(w, r, errBadRequest("missing imputations"))
		return
	}
	s.mutate(w, r, func() (*cleaning.Report, error) {
		return s.cleaner.ImputeNulls(r.Context(), s.projectTable(r), req.Imputations)
	})
}

func (s *Server) handleAutoClean(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, func() (*cleaning.Report, error) {
		return s.cleaner.AutoCleanAndPrepare(r.Context(), s.projectTable(r))
	})
}
