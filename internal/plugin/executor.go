package plugin

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultTimeout bounds a single plugin run.
const DefaultTimeout = 5 * time.Second

// Executor handles the execution of plugins with timeout support.
type Executor struct {
	timeout time.Duration
}

// NewExecutor creates a new Executor. A non-positive timeout uses DefaultTimeout.
func NewExecutor(timeout time.Duration) *Executor {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Executor{timeout: timeout}
}

// Execute runs a plugin with the given request and returns the response.
// The request is sent as JSON on stdin and stdout is parsed as a Response.
func (e *Executor) Execute(ctx context.Context, plugin *Plugin, req *Request) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, plugin.Executable)
	cmd.Dir = plugin.Path

	if req.Config == nil {
		req.Config = plugin.Manifest.Config
	}
	reqJSON, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	cmd.Stdin = bytes.NewReader(reqJSON)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, fmt.Errorf("plugin execution timeout after %s", e.timeout)
	}

	if err != nil {
		if stderr.Len() > 0 {
			return nil, fmt.Errorf("plugin execution failed: %w, stderr: %s", err, stderr.String())
		}
		return nil, fmt.Errorf("plugin execution failed: %w", err)
	}

	var response Response
	if err := json.Unmarshal(stdout.Bytes(), &response); err != nil {
		return nil, fmt.Errorf("failed to parse plugin response: %w, stdout: %s", err, stdout.String())
	}

	return &response, nil
}

// Result records the outcome of delivering an event to one plugin.
type Result struct {
	Plugin  string
	Success bool
	Message string
}

// Notifier delivers events to every subscribed plugin.
type Notifier struct {
	manager  *Manager
	executor *Executor
	log      logrus.FieldLogger
}

// NewNotifier creates a Notifier over the discovered plugins of manager.
func NewNotifier(manager *Manager, executor *Executor, log logrus.FieldLogger) *Notifier {
	return &Notifier{
		manager:  manager,
		executor: executor,
		log:      log.WithField("component", "notifier"),
	}
}

// Notify runs each subscriber of req.Event in turn and reports one Result per plugin.
// A failing plugin does not stop the others.
func (n *Notifier) Notify(ctx context.Context, req Request) []Result {
	subscribers := n.manager.Subscribers(req.Event)
	results := make([]Result, 0, len(subscribers))

	for _, p := range subscribers {
		r := req
		r.Config = nil

		entry := n.log.WithFields(logrus.Fields{"plugin": p.Manifest.Name, "event": req.Event})

		resp, err := n.executor.Execute(ctx, p, &r)
		switch {
		case err != nil:
			entry.WithError(err).Warn("plugin failed")
			results = append(results, Result{Plugin: p.Manifest.Name, Message: err.Error()})
		case !resp.Success:
			entry.WithField("error", resp.Error).Warn("plugin reported failure")
			results = append(results, Result{Plugin: p.Manifest.Name, Message: resp.Error})
		default:
			entry.Debug("plugin notified")
			results = append(results, Result{Plugin: p.Manifest.Name, Success: true, Message: resp.Message})
		}
	}

	return results
}
