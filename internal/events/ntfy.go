package events

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"aircheck/internal/config"
)

const userAgent = "Aircheck-Go/0.1.0"

// Notifier pushes operator-facing alerts. When no ntfy topic is configured a
// noop implementation is returned.
type Notifier interface {
	NotifyDetectionFinalized(ctx context.Context, event DetectionFinalized) error
	NotifyStationDegraded(ctx context.Context, event StationDegraded) error
	TestNotification(ctx context.Context) error
}

// NewNotifier builds a notifier backed by ntfy when configured.
func NewNotifier(cfg *config.Config) Notifier {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopNotifier{}
	}
	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyNotifier{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
	}
}

// AttachNotifier forwards bus events to the notifier until ctx is done.
// Detection-started events are deliberately not pushed; at chunk cadence they
// would flood a phone.
func AttachNotifier(ctx context.Context, bus *Bus, notifier Notifier) {
	if _, ok := notifier.(noopNotifier); ok {
		return
	}
	ch, cancel := bus.Subscribe()
	go func() {
		defer cancel()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-ch:
				if !ok {
					return
				}
				switch payload := event.Payload.(type) {
				case DetectionFinalized:
					_ = notifier.NotifyDetectionFinalized(ctx, payload)
				case StationDegraded:
					_ = notifier.NotifyStationDegraded(ctx, payload)
				}
			}
		}
	}()
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyNotifier struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyNotifier) NotifyDetectionFinalized(ctx context.Context, event DetectionFinalized) error {
	data := payload{
		title: "Aircheck - Play Detected",
		message: fmt.Sprintf("%s by %s played for %.0fs (%s)",
			event.Title, event.Artist, event.Duration, event.Method),
		tags: []string{"aircheck", "detection"},
	}
	return n.send(ctx, data)
}

func (n *ntfyNotifier) NotifyStationDegraded(ctx context.Context, event StationDegraded) error {
	data := payload{
		title:    "Aircheck - Station Degraded",
		message:  fmt.Sprintf("Station %s degraded: %s", event.Name, event.Reason),
		tags:     []string{"aircheck", "station", "degraded"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyNotifier) TestNotification(ctx context.Context) error {
	data := payload{
		title:   "Aircheck - Test",
		message: "Notifications are working.",
		tags:    []string{"aircheck", "test"},
	}
	return n.send(ctx, data)
}

func (n *ntfyNotifier) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopNotifier struct{}

func (noopNotifier) NotifyDetectionFinalized(context.Context, DetectionFinalized) error { return nil }
func (noopNotifier) NotifyStationDegraded(context.Context, StationDegraded) error       { return nil }
func (noopNotifier) TestNotification(context.Context) error                             { return nil }
