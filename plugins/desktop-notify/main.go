// Package main provides a desktop notification plugin.
// It shows posture alerts through osascript on macOS and notify-send on Linux.
package main

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/ayusman/sitwell/internal/plugin"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Options is the plugin's "config" block from plugin.json.
type Options struct {
	Title string `json:"title"`
	Sound bool   `json:"sound"`
}

// Notification is a single desktop notification.
type Notification struct {
	Title   string
	Message string
	Urgent  bool
	Sound   bool
}

func main() {
	resp := handle(os.Stdin, runtime.GOOS, func(cmd *exec.Cmd) error {
		if output, err := cmd.CombinedOutput(); err != nil {
			return fmt.Errorf("%w: %s", err, strings.TrimSpace(string(output)))
		}
		return nil
	})
	json.NewEncoder(os.Stdout).Encode(resp)
}

func handle(in io.Reader, goos string, run func(*exec.Cmd) error) plugin.Response {
	var req plugin.Request
	if err := json.NewDecoder(in).Decode(&req); err != nil {
		return plugin.Response{Error: fmt.Sprintf("failed to decode request: %v", err)}
	}

	var opts Options
	if len(req.Config) > 0 {
		if err := json.Unmarshal(req.Config, &opts); err != nil {
			return plugin.Response{Error: fmt.Sprintf("invalid config: %v", err)}
		}
	}

	n, err := buildNotification(req, opts)
	if err != nil {
		return plugin.Response{Error: err.Error()}
	}

	cmd, err := notifyCommand(goos, n)
	if err != nil {
		return plugin.Response{Error: err.Error()}
	}
	if err := run(cmd); err != nil {
		return plugin.Response{Error: fmt.Sprintf("notification failed: %v", err)}
	}
	return plugin.Response{Success: true, Message: n.Title}
}

func buildNotification(req plugin.Request, opts Options) (Notification, error) {
	title := opts.Title
	switch req.Event {
	case plugin.EventPoorPosture:
		if title == "" {
			title = "Check your posture"
		}
		msg := fmt.Sprintf("Posture score %d%%.", int(req.Score*100))
		if len(req.Issues) > 0 {
			msg += " " + req.Issues[0]
		} else if len(req.Feedback) > 0 {
			msg += " " + req.Feedback[0]
		}
		return Notification{Title: title, Message: msg, Urgent: true, Sound: opts.Sound}, nil
	case plugin.EventPostureRecovered:
		if title == "" {
			title = "Posture recovered"
		}
		return Notification{Title: title, Message: fmt.Sprintf("Nice work, score back to %d%%.", int(req.Score*100))}, nil
	default:
		return Notification{}, fmt.Errorf("unknown event: %s", req.Event)
	}
}

func notifyCommand(goos string, n Notification) (*exec.Cmd, error) {
	switch goos {
	case "darwin":
		script := fmt.Sprintf("display notification %s with title %s", strconv.Quote(n.Message), strconv.Quote(n.Title))
		if n.Sound {
			script += ` sound name "Funk"`
		}
		return exec.Command("osascript", "-e", script), nil
	case "linux":
		urgency := "normal"
		if n.Urgent {
			urgency = "critical"
		}
		return exec.Command("notify-send", "--app-name=SitWell", "--urgency="+urgency, n.Title, n.Message), nil
	default:
		return nil, fmt.Errorf("notifications are not supported on %s", goos)
	}
}
