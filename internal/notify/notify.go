// Package notify fans task lifecycle events out to configured webhooks.
// Delivery is best-effort: a failed send is logged and swallowed, never
// surfaced to the task that triggered it.
package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/taskmill/mill/internal/config"
	"github.com/taskmill/mill/internal/mask"
)

// Event names a task or session lifecycle event.
type Event string

const (
	EventTaskStarted    Event = "task_started"
	EventTaskCompleted  Event = "task_completed"
	EventTaskFailed     Event = "task_failed"
	EventSessionStarted Event = "session_started"
	EventSessionEnded   Event = "session_ended"
)

// Payload carries the event data sent to each target. Meta is masked
// before leaving the process.
type Payload struct {
	Event      Event          `json:"event"`
	Issue      int            `json:"issue,omitempty"`
	Title      string         `json:"title,omitempty"`
	Outcome    string         `json:"outcome,omitempty"`
	Reason     string         `json:"reason,omitempty"`
	Iterations int            `json:"iterations,omitempty"`
	CostUSD    float64        `json:"cost_usd,omitempty"`
	Meta       map[string]any `json:"meta,omitempty"`
}

// Logger is the minimal logging surface the dispatcher needs.
type Logger interface {
	Warning(format string, a ...any)
	VerboseLog(format string, a ...any)
}

// Dispatcher gates and delivers events. One rate limiter covers all
// targets so an event produces at most one send per target per allowance.
type Dispatcher struct {
	cfg     config.Notifications
	limiter *RateLimiter
	client  *http.Client
	log     Logger
}

// NewDispatcher builds a dispatcher from config.
func NewDispatcher(cfg config.Notifications, log Logger) *Dispatcher {
	return &Dispatcher{
		cfg:     cfg,
		limiter: NewRateLimiter(cfg.RateLimit.MinInterval, cfg.RateLimit.BurstLimit, cfg.RateLimit.BurstWindow),
		client:  &http.Client{Timeout: 10 * time.Second},
		log:     log,
	}
}

// Notify delivers the event to every enabled target that subscribes to
// it, subject to the rate limit. Never returns an error.
func (d *Dispatcher) Notify(p Payload) {
	if !d.cfg.Enabled {
		return
	}

	targets := d.targetsFor(p.Event)
	if len(targets) == 0 {
		return
	}

	if !d.limiter.Allow() {
		d.log.VerboseLog("notification %s suppressed by rate limit", p.Event)
		return
	}

	p.Title = mask.String(p.Title)
	p.Reason = mask.String(p.Reason)
	p.Meta = mask.Map(p.Meta)

	for _, t := range targets {
		body, contentType, err := t.build(p)
		if err != nil {
			d.log.Warning("build %s notification: %v", t.name, err)
			continue
		}
		if err := d.post(t.url, contentType, body); err != nil {
			d.log.Warning("deliver %s notification: %v", t.name, mask.String(err.Error()))
		}
	}
}

type target struct {
	name  string
	url   string
	build func(Payload) ([]byte, string, error)
}

// targetsFor returns the enabled targets subscribed to event. An empty
// event list on a target means all events.
func (d *Dispatcher) targetsFor(event Event) []target {
	var targets []target
	add := func(name string, t config.Target, build func(Payload) ([]byte, string, error)) {
		if !t.Enabled || t.WebhookURL == "" {
			return
		}
		if !eventEnabled(t.Events, event) {
			return
		}
		targets = append(targets, target{name: name, url: t.WebhookURL, build: build})
	}
	add("slack", d.cfg.Slack, buildSlack)
	add("discord", d.cfg.Discord, buildDiscord)
	add("webhook", d.cfg.Webhook, buildGeneric)
	return targets
}

func eventEnabled(events []string, event Event) bool {
	if len(events) == 0 {
		return true
	}
	for _, e := range events {
		if Event(e) == event {
			return true
		}
	}
	return false
}

func (d *Dispatcher) post(url, contentType string, body []byte) error {
	resp, err := d.client.Post(url, contentType, bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned %s", resp.Status)
	}
	return nil
}

// buildGeneric produces the flat JSON event envelope.
func buildGeneric(p Payload) ([]byte, string, error) {
	env := map[string]any{
		"source":    "mill",
		"event":     p.Event,
		"timestamp": time.Now().Format(time.RFC3339),
	}
	if p.Issue != 0 {
		env["issue"] = p.Issue
		env["title"] = p.Title
	}
	if p.Outcome != "" {
		env["outcome"] = p.Outcome
	}
	if p.Reason != "" {
		env["reason"] = p.Reason
	}
	if p.Iterations != 0 {
		env["iterations"] = p.Iterations
	}
	if p.CostUSD != 0 {
		env["cost_usd"] = p.CostUSD
	}
	for k, v := range p.Meta {
		env[k] = v
	}
	data, err := json.Marshal(env)
	return data, "application/json", err
}
