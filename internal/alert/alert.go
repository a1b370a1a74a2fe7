package alert

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/hazz-dev/healthwatch/internal/checker"
	"github.com/hazz-dev/healthwatch/internal/scheduler"
	"github.com/hazz-dev/healthwatch/internal/state"
)

// Alerter sends webhook notifications when a target flips between up and down.
type Alerter struct {
	webhookURL string
	cooldown   time.Duration
	client     *http.Client
	lastAlert  map[string]time.Time
	mu         sync.Mutex
	wg         sync.WaitGroup
	logger     *slog.Logger
}

// New creates a new Alerter. Pass nil logger to use the default logger.
func New(webhookURL string, cooldown time.Duration, logger *slog.Logger) *Alerter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Alerter{
		webhookURL: webhookURL,
		cooldown:   cooldown,
		client:     &http.Client{Timeout: 10 * time.Second},
		lastAlert:  make(map[string]time.Time),
		logger:     logger,
	}
}

type webhookPayload struct {
	Target              string `json:"target"`
	URL                 string `json:"url"`
	Status              string `json:"status"`
	PreviousStatus      string `json:"previous_status"`
	Error               string `json:"error"`
	StatusCode          *int   `json:"status_code"`
	ResponseTimeMs      *int64 `json:"response_time_ms"`
	ConsecutiveFailures int    `json:"consecutive_failures"`
	CheckedAt           string `json:"checked_at"`
	RoundID             string `json:"round_id"`
	Source              string `json:"source"`
}

// Notify sends a webhook if the target changed state and the cooldown has
// elapsed. It is a scheduler result callback and never blocks on the network.
func (a *Alerter) Notify(ev scheduler.Event) {
	// First check: nothing to compare against.
	if !ev.Previous.Checked() {
		return
	}
	if ev.Previous.IsUp() == ev.Current.IsUp() {
		return
	}

	name := ev.Target.Name
	a.mu.Lock()
	last, exists := a.lastAlert[name]
	if exists && time.Since(last) < a.cooldown {
		a.mu.Unlock()
		a.logger.Info("alert suppressed by cooldown", "target", name)
		return
	}
	a.lastAlert[name] = time.Now()
	a.mu.Unlock()

	a.wg.Add(1)
	go a.send(ev)
}

// Wait blocks until all in-flight webhook deliveries have finished.
func (a *Alerter) Wait() {
	a.wg.Wait()
}

func statusOf(r state.Record) checker.Status {
	if r.IsUp() {
		return checker.StatusUp
	}
	return checker.StatusDown
}

func (a *Alerter) send(ev scheduler.Event) {
	defer a.wg.Done()

	cur := ev.Current
	payload := webhookPayload{
		Target:              ev.Target.Name,
		URL:                 ev.Target.URL,
		Status:              string(statusOf(cur)),
		PreviousStatus:      string(statusOf(ev.Previous)),
		Error:               cur.LastError,
		StatusCode:          cur.StatusCode,
		ResponseTimeMs:      cur.ResponseTimeMs,
		ConsecutiveFailures: cur.ConsecutiveFailures,
		RoundID:             ev.RoundID,
		Source:              "healthwatch",
	}
	if cur.LastCheckedAt != nil {
		payload.CheckedAt = cur.LastCheckedAt.UTC().Format(time.RFC3339)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		a.logger.Error("marshaling webhook payload", "target", ev.Target.Name, "error", err)
		return
	}

	resp, err := a.client.Post(a.webhookURL, "application/json", bytes.NewReader(body))
	if err != nil {
		a.logger.Error("sending webhook", "target", ev.Target.Name, "url", a.webhookURL, "error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		a.logger.Warn("webhook returned non-2xx status",
			"target", ev.Target.Name,
			"status", resp.StatusCode,
		)
	}
}
