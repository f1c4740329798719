package api

import (
	"net/http"
	"strconv"
	"testing"

	"github.com/BTreeMap/ReviewPipe/internal/models"
)

func TestEmployeeCRUD(t *testing.T) {
	env := newTestEnv(t, false)

	code, resp := env.do(t, http.MethodPost, "/employees", models.EmployeeRequest{FirstName: "Ada"})
	if code != http.StatusBadRequest || resp.Message != models.ErrEmptyLastName.Error() {
		t.Errorf("expected validation error, got %d %+v", code, resp)
	}

	emp := env.createEmployee(t)
	path := "/employees/" + strconv.FormatInt(emp.ID, 10)

	code, resp = env.do(t, http.MethodGet, path, nil)
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	var got models.Employee
	decodeResult(t, resp, &got)
	if got.FullName() != "Ada Lovelace" || got.Position != "Engineer" {
		t.Errorf("unexpected employee %+v", got)
	}

	code, resp = env.do(t, http.MethodPut, path, map[string]string{"poste_equiped": "Staff Engineer"})
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d %+v", code, resp)
	}
	decodeResult(t, resp, &got)
	if got.Position != "Staff Engineer" || got.FirstName != "Ada" {
		t.Errorf("update not applied: %+v", got)
	}

	code, _ = env.do(t, http.MethodPut, path, map[string]string{})
	if code != http.StatusBadRequest {
		t.Errorf("expected 400 for empty update, got %d", code)
	}
	code, _ = env.do(t, http.MethodPut, path, map[string]string{"firstname": "  "})
	if code != http.StatusBadRequest {
		t.Errorf("expected 400 for blank name, got %d", code)
	}

	code, resp = env.do(t, http.MethodGet, "/employees", nil)
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	var list struct {
		Employees  []models.Employee `json:"employees"`
		TotalCount int               `json:"total_count"`
	}
	decodeResult(t, resp, &list)
	if list.TotalCount != 1 || len(list.Employees) != 1 {
		t.Errorf("unexpected list %+v", list)
	}

	if code, _ := env.do(t, http.MethodDelete, path, nil); code != http.StatusOK {
		t.Errorf("expected 200 on delete, got %d", code)
	}
	if code, _ := env.do(t, http.MethodGet, path, nil); code != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", code)
	}
	if code, _ := env.do(t, http.MethodDelete, path, nil); code != http.StatusNotFound {
		t.Errorf("expected 404 on second delete, got %d", code)
	}
}

func TestEmployeeInvalidID(t *testing.T) {
	env := newTestEnv(t, false)
	for _, path := range []string{"/employees/abc", "/employees/0", "/employees/-3/history"} {
		if code, _ := env.do(t, http.MethodGet, path, nil); code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", path, code)
		}
	}
}

func TestEmployeeInterviewsAndHistory(t *testing.T) {
	env := newTestEnv(t, false)
	emp := env.createEmployee(t)
	base := "/employees/" + strconv.FormatInt(emp.ID, 10)

	code, resp := env.do(t, http.MethodPost, base+"/interviews", nil)
	if code != http.StatusCreated {
		t.Fatalf("expected 201, got %d %+v", code, resp)
	}
	var started createdSession
	decodeResult(t, resp, &started)
	if started.Interview == nil || started.SessionInfo.InterviewID == 0 {
		t.Fatalf("expected a linked interview, got %+v", started)
	}
	env.createSession(t, emp.ID)

	code, resp = env.do(t, http.MethodGet, base+"/interviews", nil)
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	var ivs struct {
		Interviews []models.Interview `json:"interviews"`
		TotalCount int                `json:"total_count"`
	}
	decodeResult(t, resp, &ivs)
	if ivs.TotalCount != 2 {
		t.Errorf("expected two interviews, got %d", ivs.TotalCount)
	}

	code, resp = env.do(t, http.MethodGet, base+"/history", nil)
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	var history models.EmployeeHistory
	decodeResult(t, resp, &history)
	if history.Employee.ID != emp.ID || len(history.Interviews) != 2 {
		t.Errorf("unexpected history %+v", history)
	}
	if history.Employee.InterviewsCount != 2 {
		t.Errorf("expected interview count 2, got %d", history.Employee.InterviewsCount)
	}

	if code, _ := env.do(t, http.MethodGet, "/employees/999/interviews", nil); code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown employee, got %d", code)
	}
	if code, _ := env.do(t, http.MethodPost, "/employees/999/interviews", nil); code != http.StatusNotFound {
		t.Errorf("expected 404 starting an interview for unknown employee, got %d", code)
	}
}
