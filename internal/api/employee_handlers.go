package api

import (
	"log/slog"
	"net/http"

	"github.com/BTreeMap/ReviewPipe/internal/models"
)

// employeeID parses the {id} path value and writes a 400 when it is invalid.
func employeeID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, ok := pathID(r, "id")
	if !ok {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid employee ID"))
	}
	return id, ok
}

// createEmployeeHandler handles POST /employees.
func (s *Server) createEmployeeHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.createEmployeeHandler invoked", "method", r.Method, "path", r.URL.Path)
	var req models.EmployeeRequest
	if err := decodeJSON(r, &req, false); err != nil {
		slog.Warn("Server.createEmployeeHandler: invalid JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := req.Validate(); err != nil {
		slog.Warn("Server.createEmployeeHandler: validation failed", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}
	emp, err := s.records.CreateEmployee(r.Context(), req.Employee(s.now()))
	if err != nil {
		slog.Error("Server.createEmployeeHandler: create failed", "error", err)
		writeStoreError(w, "Failed to create employee", err)
		return
	}
	slog.Info("Server.createEmployeeHandler: employee created", "employeeID", emp.ID)
	writeJSONResponse(w, http.StatusCreated, models.SuccessWithMessage("Employee created successfully", emp))
}

// listEmployeesHandler handles GET /employees.
func (s *Server) listEmployeesHandler(w http.ResponseWriter, r *http.Request) {
	emps, err := s.records.ListEmployees(r.Context())
	if err != nil {
		slog.Error("Server.listEmployeesHandler: list failed", "error", err)
		writeStoreError(w, "Failed to retrieve employees", err)
		return
	}
	if emps == nil {
		emps = []models.Employee{}
	}
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]interface{}{
		"employees":   emps,
		"total_count": len(emps),
	}))
}

// getEmployeeHandler handles GET /employees/{id}.
func (s *Server) getEmployeeHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := employeeID(w, r)
	if !ok {
		return
	}
	emp, err := s.records.GetEmployee(r.Context(), id)
	if err != nil {
		writeStoreError(w, "Failed to retrieve employee", err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(emp))
}

// updateEmployeeHandler handles PUT /employees/{id}.
func (s *Server) updateEmployeeHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := employeeID(w, r)
	if !ok {
		return
	}
	var upd models.EmployeeUpdate
	if err := decodeJSON(r, &upd, false); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if upd == (models.EmployeeUpdate{}) {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("No valid fields to update"))
		return
	}

	ctx := r.Context()
	emp, err := s.records.GetEmployee(ctx, id)
	if err != nil {
		writeStoreError(w, "Failed to update employee", err)
		return
	}
	if err := upd.ApplyTo(emp); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}
	if err := s.records.UpdateEmployee(ctx, *emp); err != nil {
		slog.Error("Server.updateEmployeeHandler: update failed", "error", err, "employeeID", id)
		writeStoreError(w, "Failed to update employee", err)
		return
	}
	updated, err := s.records.GetEmployee(ctx, id)
	if err != nil {
		writeStoreError(w, "Failed to update employee", err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Employee updated successfully", updated))
}

// deleteEmployeeHandler handles DELETE /employees/{id}. Interviews and their
// stage summaries go with the employee.
func (s *Server) deleteEmployeeHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := employeeID(w, r)
	if !ok {
		return
	}
	if err := s.records.DeleteEmployee(r.Context(), id); err != nil {
		writeStoreError(w, "Failed to delete employee", err)
		return
	}
	slog.Info("Server.deleteEmployeeHandler: employee deleted", "employeeID", id)
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Employee deleted successfully", nil))
}

// startInterviewHandler handles POST /employees/{id}/interviews by opening
// a new session linked to a fresh interview.
func (s *Server) startInterviewHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := employeeID(w, r)
	if !ok {
		return
	}
	resp, err := s.openSession(r.Context(), id)
	if err != nil {
		slog.Error("Server.startInterviewHandler: failed to start interview", "error", err, "employeeID", id)
		writeStoreError(w, "Failed to start interview", err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, models.SuccessWithMessage("Interview started successfully", resp))
}

// listInterviewsHandler handles GET /employees/{id}/interviews.
func (s *Server) listInterviewsHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := employeeID(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	emp, err := s.records.GetEmployee(ctx, id)
	if err != nil {
		writeStoreError(w, "Failed to retrieve interviews", err)
		return
	}
	ivs, err := s.records.ListInterviews(ctx, id)
	if err != nil {
		slog.Error("Server.listInterviewsHandler: list failed", "error", err, "employeeID", id)
		writeStoreError(w, "Failed to retrieve interviews", err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]interface{}{
		"employee":    emp,
		"interviews":  ivs,
		"total_count": len(ivs),
	}))
}

// employeeHistoryHandler handles GET /employees/{id}/history.
func (s *Server) employeeHistoryHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := employeeID(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	emp, err := s.records.GetEmployee(ctx, id)
	if err != nil {
		writeStoreError(w, "Failed to retrieve employee history", err)
		return
	}
	ivs, err := s.records.ListInterviews(ctx, id)
	if err != nil {
		writeStoreError(w, "Failed to retrieve employee history", err)
		return
	}
	history := models.EmployeeHistory{Employee: *emp, Interviews: make([]models.InterviewDetail, 0, len(ivs))}
	for _, iv := range ivs {
		detail, err := s.interviewDetail(ctx, iv)
		if err != nil {
			writeStoreError(w, "Failed to retrieve employee history", err)
			return
		}
		history.Interviews = append(history.Interviews, detail)
	}
	writeJSONResponse(w, http.StatusOK, models.Success(history))
}
