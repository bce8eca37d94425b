package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/AaronLay10/SolverEngine/internal/orchestrator"
)

// ProblemDto is the JSON view of a problem.
type ProblemDto struct {
	ID          string                   `json:"id"`
	TypeID      string                   `json:"typeId"`
	Input       interface{}              `json:"input,omitempty"`
	Solution    interface{}              `json:"solution,omitempty"`
	State       string                   `json:"state"`
	SolverID    string                   `json:"solverId,omitempty"`
	Bound       *orchestrator.Bound      `json:"bound,omitempty"`
	SubProblems []SubProblemReferenceDto `json:"subProblems"`
}

// SubProblemReferenceDto lists the sub-problems created for one sub-routine.
type SubProblemReferenceDto struct {
	SubRoutine    orchestrator.SubRoutineInfo `json:"subRoutine"`
	SubProblemIDs []string                    `json:"subProblemIds"`
}

// ProblemTypeDto describes a registered problem type.
type ProblemTypeDto struct {
	ID          string `json:"id"`
	Solvers     int    `json:"solvers"`
	CanEstimate bool   `json:"canEstimate"`
}

// ProblemPatch changes a problem. Absent fields are left alone; setting
// state to SOLVING starts a solve.
type ProblemPatch struct {
	Input    json.RawMessage `json:"input,omitempty"`
	SolverID *string         `json:"solverId,omitempty"`
	State    string          `json:"state,omitempty"`
}

func newProblemDto(p orchestrator.AnyProblem) ProblemDto {
	dto := ProblemDto{
		ID:          p.ID().String(),
		TypeID:      p.Type().ID(),
		State:       string(p.State()),
		SolverID:    p.SolverID(),
		Solution:    p.SolutionValue(),
		SubProblems: []SubProblemReferenceDto{},
	}
	if input, ok := p.InputValue(); ok {
		dto.Input = input
	}
	if bound, ok := p.Bound(); ok {
		dto.Bound = &bound
	}
	for _, ref := range p.SubProblemRefs() {
		ids := make([]string, 0, len(ref.ProblemIDs))
		for _, id := range ref.ProblemIDs {
			ids = append(ids, id.String())
		}
		dto.SubProblems = append(dto.SubProblems, SubProblemReferenceDto{
			SubRoutine:    orchestrator.DescribeSubRoutine(ref.Definition),
			SubProblemIDs: ids,
		})
	}
	return dto
}

func problemDtos(problems []orchestrator.AnyProblem) []ProblemDto {
	out := make([]ProblemDto, 0, len(problems))
	for _, p := range problems {
		out = append(out, newProblemDto(p))
	}
	return out
}

type errorResponse struct {
	Error string `json:"error"`
}

var errBadRequest = errors.New("bad request")

// writeError maps orchestrator errors to status codes.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, orchestrator.ErrProblemNotFound),
		errors.Is(err, orchestrator.ErrSolverNotFound),
		errors.Is(err, orchestrator.ErrUnregisteredType),
		errors.Is(err, orchestrator.ErrNoEstimator):
		status = http.StatusNotFound
	case errors.Is(err, orchestrator.ErrNotConfigured),
		errors.Is(err, orchestrator.ErrConcurrentSolve),
		errors.Is(err, orchestrator.ErrProblemSolving),
		errors.Is(err, orchestrator.ErrSubProblemInUse):
		status = http.StatusConflict
	case errors.Is(err, orchestrator.ErrInvalidInput),
		errors.Is(err, orchestrator.ErrTypeMismatch),
		errors.Is(err, orchestrator.ErrBoundUnavailable),
		errors.Is(err, errBadRequest):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", slog.String("error", err.Error()))
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (s *Server) registerProblemRoutes(r chi.Router) {
	r.Get("/problem-types", s.handleProblemTypes)
	r.Get("/solvers/{typeId}", s.handleSolvers)
	r.Get("/sub-routines/{typeId}", s.handleSubRoutines)
	r.Get("/examples/{typeId}", s.handleExamples)

	r.Route("/problems/{typeId}", func(r chi.Router) {
		r.Get("/", s.handleListProblems)
		r.Post("/", s.handleCreateProblem)
		r.Get("/{id}", s.handleGetProblem)
		r.Patch("/{id}", s.handlePatchProblem)
		r.Delete("/{id}", s.handleDeleteProblem)
		r.Get("/{id}/history", s.handleProblemHistory)
		r.Get("/{id}/bound", s.handleEstimateBound)
		r.Get("/{id}/bound/compare", s.handleCompareBound)
	})
}

// manager resolves the {typeId} URL parameter.
func (s *Server) manager(r *http.Request) (orchestrator.AnyManager, error) {
	typeID := chi.URLParam(r, "typeId")
	m, ok := s.app.Directory.LookupID(typeID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", orchestrator.ErrUnregisteredType, typeID)
	}
	return m, nil
}

// problem resolves the {typeId} and {id} URL parameters.
func (s *Server) problem(r *http.Request) (orchestrator.AnyManager, orchestrator.AnyProblem, error) {
	m, err := s.manager(r)
	if err != nil {
		return nil, nil, err
	}
	raw := chi.URLParam(r, "id")
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: problem id %q", errBadRequest, raw)
	}
	p, ok := m.Problem(id)
	if !ok {
		return nil, nil, fmt.Errorf("%s/%s: %w", m.Type().ID(), id, orchestrator.ErrProblemNotFound)
	}
	return m, p, nil
}

// GET /problem-types
func (s *Server) handleProblemTypes(w http.ResponseWriter, r *http.Request) {
	managers := s.app.Directory.Managers()
	out := make([]ProblemTypeDto, 0, len(managers))
	for _, m := range managers {
		out = append(out, ProblemTypeDto{
			ID:          m.Type().ID(),
			Solvers:     len(m.SolverInfos()),
			CanEstimate: m.Type().CanEstimate(),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// GET /solvers/{typeId}
func (s *Server) handleSolvers(w http.ResponseWriter, r *http.Request) {
	m, err := s.manager(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m.SolverInfos())
}

// GET /sub-routines/{typeId}?solverId=
func (s *Server) handleSubRoutines(w http.ResponseWriter, r *http.Request) {
	m, err := s.manager(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	solverID := r.URL.Query().Get("solverId")
	for _, info := range m.SolverInfos() {
		if info.ID == solverID {
			writeJSON(w, http.StatusOK, info.SubRoutines)
			return
		}
	}
	s.writeError(w, fmt.Errorf("%w: %q for %s", orchestrator.ErrSolverNotFound, solverID, m.Type().ID()))
}

// GET /examples/{typeId}
func (s *Server) handleExamples(w http.ResponseWriter, r *http.Request) {
	m, err := s.manager(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, problemDtos(m.ExampleProblems()))
}

// GET /problems/{typeId}
func (s *Server) handleListProblems(w http.ResponseWriter, r *http.Request) {
	m, err := s.manager(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, problemDtos(m.Problems()))
}

func decodePatch(r *http.Request) (ProblemPatch, error) {
	var patch ProblemPatch
	if r.ContentLength == 0 {
		return patch, nil
	}
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		return patch, fmt.Errorf("%w: invalid JSON: %v", errBadRequest, err)
	}
	switch orchestrator.ProblemState(patch.State) {
	case "", orchestrator.StateSolving:
	default:
		return patch, fmt.Errorf("%w: state can only be set to %s", errBadRequest, orchestrator.StateSolving)
	}
	return patch, nil
}

func (s *Server) applyPatch(m orchestrator.AnyManager, p orchestrator.AnyProblem, patch ProblemPatch) error {
	if patch.Input != nil || patch.SolverID != nil {
		if err := m.Configure(p.ID(), orchestrator.Configuration{Input: patch.Input, SolverID: patch.SolverID}); err != nil {
			return err
		}
	}
	if patch.State == string(orchestrator.StateSolving) {
		if _, err := m.Start(s.solveCtx, p.ID()); err != nil {
			return err
		}
	}
	return nil
}

// POST /problems/{typeId}
func (s *Server) handleCreateProblem(w http.ResponseWriter, r *http.Request) {
	patch, err := decodePatch(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	m, p, err := s.app.Create(chi.URLParam(r, "typeId"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.applyPatch(m, p, patch); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newProblemDto(p))
}

// GET /problems/{typeId}/{id}
func (s *Server) handleGetProblem(w http.ResponseWriter, r *http.Request) {
	_, p, err := s.problem(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newProblemDto(p))
}

// PATCH /problems/{typeId}/{id}
func (s *Server) handlePatchProblem(w http.ResponseWriter, r *http.Request) {
	m, p, err := s.problem(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	patch, err := decodePatch(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.applyPatch(m, p, patch); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newProblemDto(p))
}

// DELETE /problems/{typeId}/{id}
func (s *Server) handleDeleteProblem(w http.ResponseWriter, r *http.Request) {
	m, p, err := s.problem(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := m.Remove(p.ID()); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /problems/{typeId}/{id}/bound
func (s *Server) handleEstimateBound(w http.ResponseWriter, r *http.Request) {
	_, p, err := s.problem(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	bound, err := p.EstimateBound(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bound)
}

// GET /problems/{typeId}/{id}/bound/compare
func (s *Server) handleCompareBound(w http.ResponseWriter, r *http.Request) {
	_, p, err := s.problem(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	cmp, err := p.CompareBound()
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cmp)
}

// GET /problems/{typeId}/{id}/history?limit=
func (s *Server) handleProblemHistory(w http.ResponseWriter, r *http.Request) {
	_, p, err := s.problem(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	limit, ok := s.historyLimit(w, r)
	if !ok {
		return
	}
	rows, err := s.app.Store.QueryProblem(r.Context(), p.ID().String(), limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// historyLimit parses ?limit= and checks that the audit trail is available.
// It writes the error response itself.
func (s *Server) historyLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	if s.app.Store == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "audit trail disabled"})
		return 0, false
	}
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			s.writeError(w, fmt.Errorf("%w: limit %q", errBadRequest, raw))
			return 0, false
		}
		limit = n
	}
	return limit, true
}
