package models

import (
	"errors"
	"strings"
	"testing"

	"github.com/BTreeMap/ReviewPipe/internal/review"
)

func TestEmployeeRequestValidate(t *testing.T) {
	tests := []struct {
		name string
		req  EmployeeRequest
		want error
	}{
		{"valid", EmployeeRequest{"Ada", "Lovelace", "Engineer", "Senior"}, nil},
		{"blank first name", EmployeeRequest{"  ", "Lovelace", "Engineer", "Senior"}, ErrEmptyFirstName},
		{"missing last name", EmployeeRequest{"Ada", "", "Engineer", "Senior"}, ErrEmptyLastName},
		{"missing position", EmployeeRequest{"Ada", "Lovelace", "", "Senior"}, ErrEmptyPosition},
		{"missing experience", EmployeeRequest{"Ada", "Lovelace", "Engineer", ""}, ErrEmptyExperience},
		{"name too long", EmployeeRequest{strings.Repeat("a", MaxNameLength+1), "L", "E", "S"}, ErrFieldTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			if err := req.Validate(); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestEmployeeUpdateApplyTo(t *testing.T) {
	e := Employee{ID: 1, FirstName: "Ada", LastName: "Lovelace", Position: "Engineer", ExperienceLevel: "Mid"}

	level := " Senior "
	if err := (EmployeeUpdate{ExperienceLevel: &level}).ApplyTo(&e); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.ExperienceLevel != "Senior" || e.FirstName != "Ada" {
		t.Errorf("unexpected employee after update: %+v", e)
	}

	empty := ""
	if err := (EmployeeUpdate{FirstName: &empty}).ApplyTo(&e); !errors.Is(err, ErrEmptyFirstName) {
		t.Errorf("expected ErrEmptyFirstName, got %v", err)
	}
	if e.FirstName != "Ada" {
		t.Error("failed update must not modify the employee")
	}
}

func TestMessageRequestValidate(t *testing.T) {
	if err := (MessageRequest{Message: " \n"}).Validate(); !errors.Is(err, ErrEmptyMessage) {
		t.Errorf("expected ErrEmptyMessage, got %v", err)
	}
	if err := (MessageRequest{Message: strings.Repeat("x", MaxMessageLength+1)}).Validate(); !errors.Is(err, ErrMessageTooLong) {
		t.Errorf("expected ErrMessageTooLong, got %v", err)
	}
	if err := (MessageRequest{Message: "hello"}).Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAPIResponseBuilders(t *testing.T) {
	ok := SuccessWithMessage("created", map[string]int{"id": 1})
	if ok.Status != string(APIStatusOK) || ok.Message != "created" || ok.Result == nil {
		t.Errorf("unexpected success response: %+v", ok)
	}

	bad := ErrorWithDetail("Failed to process message", errors.New("upstream timeout"))
	if bad.Status != string(APIStatusError) || bad.Error != "upstream timeout" {
		t.Errorf("unexpected error response: %+v", bad)
	}
	if plain := ErrorWithDetail("x", nil); plain.Error != "" {
		t.Errorf("expected no detail for nil error, got %q", plain.Error)
	}
}

func TestSessionInfo(t *testing.T) {
	s := Session{ID: "abc", State: review.NewState(review.DefaultConfig(), "hi")}
	s.AttachEmployee(Employee{ID: 7, FirstName: "Ada", LastName: "Lovelace", Position: "Engineer", ExperienceLevel: "Senior"})

	info := s.Info()
	if info.SessionID != "abc" || info.CurrentStage != review.StageAdvancements || info.MessageCount != 1 {
		t.Errorf("unexpected session info: %+v", info)
	}
	if s.EmployeeName != "Ada Lovelace" || s.EmployeeID != 7 {
		t.Errorf("employee not attached: %+v", s)
	}
}
