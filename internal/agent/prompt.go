package agent

import (
	"strings"
	"text/template"

	"github.com/taskmill/mill/internal/models"
)

// promptTemplate renders the task handed to the agent. The closing
// instruction defines the completion contract ParseResult expects.
var promptTemplate = template.Must(template.New("task").Parse(`You are working on issue #{{.Task.Number}} in branch {{.Branch}}.

Title: {{.Task.Title}}
Category: {{.Category}}
{{if .Task.Body}}
Description:
{{.Task.Body}}
{{end}}
Implement this task. Make the smallest change that fully resolves the issue.
{{if .VerifyCommands}}
Your work will be verified with:
{{range .VerifyCommands}}  {{.}}
{{end}}{{end}}{{if .PreviousOutput}}
The previous attempt did not pass verification. Relevant output:

{{.PreviousOutput}}

Address these failures before anything else.
{{end}}
When finished, print exactly one final line of JSON:
{"signal":"success"} if the task is complete,
{"signal":"needs_more_work"} if another iteration is required,
{"signal":"hard_failure"} if the task cannot be done as described.`))

// PromptData is the input to the task prompt template.
type PromptData struct {
	Task           *models.Task
	Branch         string
	Category       models.Category
	VerifyCommands []string
	PreviousOutput string
}

// RenderPrompt renders the task prompt for one iteration.
func RenderPrompt(data PromptData) (string, error) {
	var b strings.Builder
	if err := promptTemplate.Execute(&b, data); err != nil {
		return "", err
	}
	return b.String(), nil
}
