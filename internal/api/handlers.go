package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"inquiry-core/internal/common/errors"
	flowcontroller "inquiry-core/internal/conversation/flow-controller"
	"inquiry-core/internal/conversation/session"

	"github.com/go-chi/chi/v5"
)

type answerRequest struct {
	QuestionID string `json:"questionId"`
	Answer     string `json:"answer"`
}

type questionsResponse struct {
	SessionID string                    `json:"sessionId"`
	Questions []flowcontroller.Question `json:"questions"`
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req session.StartRequest
	if err := s.decode(w, r, &req); err != nil {
		s.errors.WriteHTTP(w, r, err)
		return
	}

	result, err := s.svc.StartSession(r.Context(), &req)
	if err != nil {
		s.errors.WriteHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (s *Server) handleSubmitAnswer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := s.decode(w, r, &req); err != nil {
		s.errors.WriteHTTP(w, r, err)
		return
	}

	result, err := s.svc.SubmitAnswer(r.Context(), chi.URLParam(r, "id"), req.QuestionID, req.Answer)
	if err != nil {
		s.errors.WriteHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleNextQuestions(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("max"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			s.errors.WriteHTTP(w, r, errors.NewValidationError(fmt.Sprintf("max must be a positive integer, got %q", raw)))
			return
		}
		limit = n
	}

	id := chi.URLParam(r, "id")
	questions, err := s.svc.NextQuestions(r.Context(), id, limit)
	if err != nil {
		s.errors.WriteHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, questionsResponse{SessionID: id, Questions: questions})
}

func (s *Server) handleGenerateDiagnosis(w http.ResponseWriter, r *http.Request) {
	report, err := s.svc.GenerateDiagnosis(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.errors.WriteHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	summary, err := s.svc.EndSession(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.errors.WriteHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	body := http.MaxBytesReader(w, r.Body, s.config.MaxBodyBytes)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if err == io.EOF {
			return errors.NewValidationError("request body is empty")
		}
		return errors.NewValidationError(fmt.Sprintf("invalid request body: %v", err))
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
