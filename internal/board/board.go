// Package board adapts a GitHub project board into mill's task source.
// It shells out to the gh CLI the same way the git package shells out to git.
package board

import (
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	"github.com/taskmill/mill/internal/config"
	"github.com/taskmill/mill/internal/models"
)

// Source is the task source consumed by the session loop.
type Source interface {
	NextReadyTask() (*models.Task, error)
	ListReadyTasks() ([]*models.Task, error)
	MoveTask(task *models.Task, column string) error
	AssignTask(task *models.Task) error
	Category(task *models.Task) models.Category
}

// Categorizer resolves a category when label mappings don't. The llm
// package provides an implementation; a nil Categorizer is valid.
type Categorizer interface {
	Categorize(title, body string) (models.Category, error)
}

// GhBoard implements Source using the gh CLI.
type GhBoard struct {
	owner    string
	repo     string
	project  int
	columns  config.Columns
	mappings map[string]string
	fallback Categorizer

	// Resolved lazily from gh project metadata.
	projectID     string
	statusFieldID string
	optionIDs     map[string]string // column name -> single-select option id
}

// New creates a GhBoard from config. fallback may be nil.
func New(cfg *config.Config, fallback Categorizer) (*GhBoard, error) {
	owner, repo, ok := strings.Cut(cfg.GitHub.Repo, "/")
	if !ok || owner == "" || repo == "" {
		return nil, fmt.Errorf("github.repo must be owner/name, got %q", cfg.GitHub.Repo)
	}
	return &GhBoard{
		owner:    owner,
		repo:     repo,
		project:  cfg.GitHub.Project,
		columns:  cfg.GitHub.Columns,
		mappings: cfg.Category.Mappings,
		fallback: fallback,
	}, nil
}

func ghCmd(args ...string) (string, error) {
	out, err := exec.Command("gh", args...).Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return "", fmt.Errorf("gh %s: %s", strings.Join(args, " "), strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", fmt.Errorf("gh %s: %w", strings.Join(args, " "), err)
	}
	return strings.TrimSpace(string(out)), nil
}

// itemList mirrors the JSON shape of `gh project item-list --format json`.
type itemList struct {
	Items []boardItem `json:"items"`
}

type boardItem struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Content struct {
		Type   string   `json:"type"`
		Number int      `json:"number"`
		Title  string   `json:"title"`
		Body   string   `json:"body"`
		URL    string   `json:"url"`
		Labels []string `json:"labels"`
	} `json:"content"`
}

// NextReadyTask returns the first task in the ready column, or nil when
// the queue is empty.
func (b *GhBoard) NextReadyTask() (*models.Task, error) {
	tasks, err := b.ListReadyTasks()
	if err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return nil, nil
	}
	return tasks[0], nil
}

// ListReadyTasks returns all issues currently in the ready column.
func (b *GhBoard) ListReadyTasks() ([]*models.Task, error) {
	out, err := ghCmd("project", "item-list", fmt.Sprintf("%d", b.project),
		"--owner", b.owner, "--format", "json", "--limit", "100")
	if err != nil {
		return nil, err
	}
	return ParseReadyItems(out, b.columns.Ready)
}

// ParseReadyItems filters a project item-list JSON document down to issues
// sitting in readyColumn, preserving board order.
func ParseReadyItems(jsonDoc, readyColumn string) ([]*models.Task, error) {
	var list itemList
	if err := json.Unmarshal([]byte(jsonDoc), &list); err != nil {
		return nil, fmt.Errorf("parse project items: %w", err)
	}
	var tasks []*models.Task
	for _, item := range list.Items {
		if item.Content.Type != "Issue" || !strings.EqualFold(item.Status, readyColumn) {
			continue
		}
		tasks = append(tasks, &models.Task{
			Number: item.Content.Number,
			Title:  item.Content.Title,
			Body:   item.Content.Body,
			Labels: item.Content.Labels,
			Column: item.Status,
			URL:    item.Content.URL,
		})
	}
	return tasks, nil
}

// MoveTask moves a task to the named column by editing its status field.
func (b *GhBoard) MoveTask(task *models.Task, column string) error {
	if err := b.resolveFields(); err != nil {
		return err
	}
	optionID, ok := b.optionIDs[strings.ToLower(column)]
	if !ok {
		return fmt.Errorf("board has no column %q", column)
	}
	itemID, err := b.itemIDForIssue(task.Number)
	if err != nil {
		return err
	}
	_, err = ghCmd("project", "item-edit",
		"--id", itemID,
		"--project-id", b.projectID,
		"--field-id", b.statusFieldID,
		"--single-select-option-id", optionID)
	if err != nil {
		return err
	}
	task.Column = column
	return nil
}

// AssignTask assigns the issue to the authenticated user.
func (b *GhBoard) AssignTask(task *models.Task) error {
	_, err := ghCmd("issue", "edit", fmt.Sprintf("%d", task.Number),
		"--repo", b.owner+"/"+b.repo, "--add-assignee", "@me")
	return err
}

// resolveFields looks up the project id, status field id, and status
// option ids once per process.
func (b *GhBoard) resolveFields() error {
	if b.projectID != "" {
		return nil
	}
	out, err := ghCmd("project", "view", fmt.Sprintf("%d", b.project),
		"--owner", b.owner, "--format", "json")
	if err != nil {
		return err
	}
	var view struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal([]byte(out), &view); err != nil {
		return fmt.Errorf("parse project view: %w", err)
	}

	out, err = ghCmd("project", "field-list", fmt.Sprintf("%d", b.project),
		"--owner", b.owner, "--format", "json")
	if err != nil {
		return err
	}
	fieldID, options, err := ParseStatusField(out)
	if err != nil {
		return err
	}

	b.projectID = view.ID
	b.statusFieldID = fieldID
	b.optionIDs = options
	return nil
}

// ParseStatusField extracts the Status field id and its option ids
// (keyed by lowercased option name) from `gh project field-list` JSON.
func ParseStatusField(jsonDoc string) (string, map[string]string, error) {
	var doc struct {
		Fields []struct {
			ID      string `json:"id"`
			Name    string `json:"name"`
			Options []struct {
				ID   string `json:"id"`
				Name string `json:"name"`
			} `json:"options"`
		} `json:"fields"`
	}
	if err := json.Unmarshal([]byte(jsonDoc), &doc); err != nil {
		return "", nil, fmt.Errorf("parse field list: %w", err)
	}
	for _, f := range doc.Fields {
		if !strings.EqualFold(f.Name, "Status") {
			continue
		}
		options := make(map[string]string, len(f.Options))
		for _, opt := range f.Options {
			options[strings.ToLower(opt.Name)] = opt.ID
		}
		return f.ID, options, nil
	}
	return "", nil, fmt.Errorf("project has no Status field")
}

func (b *GhBoard) itemIDForIssue(number int) (string, error) {
	out, err := ghCmd("project", "item-list", fmt.Sprintf("%d", b.project),
		"--owner", b.owner, "--format", "json", "--limit", "100")
	if err != nil {
		return "", err
	}
	var list itemList
	if err := json.Unmarshal([]byte(out), &list); err != nil {
		return "", fmt.Errorf("parse project items: %w", err)
	}
	for _, item := range list.Items {
		if item.Content.Type == "Issue" && item.Content.Number == number {
			return item.ID, nil
		}
	}
	return "", fmt.Errorf("issue #%d not found on board", number)
}
