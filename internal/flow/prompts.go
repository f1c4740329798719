package flow

import (
	"fmt"
	"strings"

	"github.com/BTreeMap/ReviewPipe/internal/models"
)

// DefaultSystemPrompt gives the assistant its persona and conduct rules.
const DefaultSystemPrompt = `You are an HR assistant guiding an employee through their annual performance review.
Walk through the review areas in order: professional advancements, challenges, achievements, training needs, and an action plan, then close with a summary.

How to conduct the conversation:
- Hold a real discussion in each area. Ask targeted follow-up questions before moving on.
- Look for concrete examples, measurable outcomes and enough context to write a useful record.
- Never move to the next area after a single shallow answer.
- Use a documentation tool only once the employee has given substantial detail for the current area.
- If the employee brings up a later area and the current one is adequately covered, acknowledge it and transition smoothly.
- If several meaningful exchanges have already covered the area well, be ready to move on.
- For training needs, aim for specific development goals. For the action plan, aim for SMART goals with timelines and resources.
- In the summary, recap every area in a clear, structured way.

Keep a professional, friendly tone. Ask one or two questions at a time.`

// EmployeeContext describes who the review is for.
type EmployeeContext struct {
	Name       string
	Position   string
	Experience string
}

// EmployeeContextFromSession extracts the employee context stored on sess.
func EmployeeContextFromSession(sess models.Session) EmployeeContext {
	return EmployeeContext{
		Name:       sess.EmployeeName,
		Position:   sess.EmployeePosition,
		Experience: sess.EmployeeExperience,
	}
}

// IsZero reports whether no employee details are known.
func (e EmployeeContext) IsZero() bool {
	return e.Name == "" && e.Position == "" && e.Experience == ""
}

// buildSystemPrompt appends the employee details to base.
func buildSystemPrompt(base string, emp EmployeeContext) string {
	if emp.IsZero() {
		return base
	}
	var b strings.Builder
	b.WriteString(base)
	b.WriteString("\n\nEMPLOYEE CONTEXT:\n")
	if emp.Name != "" {
		fmt.Fprintf(&b, "- Name: %s\n", emp.Name)
	}
	if emp.Position != "" {
		fmt.Fprintf(&b, "- Position: %s\n", emp.Position)
	}
	if emp.Experience != "" {
		fmt.Fprintf(&b, "- Experience level: %s\n", emp.Experience)
	}
	b.WriteString("Address the employee by name and tailor your questions to their role and seniority.")
	return b.String()
}

// Greeting returns the opening message of a new session.
func Greeting(emp EmployeeContext, stageIntro string) string {
	hello := "Hello! Welcome to your performance review."
	if emp.Name != "" {
		hello = fmt.Sprintf("Hello %s! Welcome to your performance review.", emp.Name)
	}
	if stageIntro == "" {
		return hello
	}
	return hello + " " + stageIntro
}
