package e2e

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	jsoniter "github.com/json-iterator/go"
	"gocv.io/x/gocv"

	"github.com/ayusman/sitwell/internal/app"
	"github.com/ayusman/sitwell/internal/cache"
	"github.com/ayusman/sitwell/internal/capture"
	"github.com/ayusman/sitwell/internal/detector"
	"github.com/ayusman/sitwell/internal/log"
	"github.com/ayusman/sitwell/internal/plugin"
	"github.com/ayusman/sitwell/internal/pose"
	"github.com/ayusman/sitwell/internal/posture"
	"github.com/ayusman/sitwell/internal/render"
	"github.com/ayusman/sitwell/internal/server"
	"github.com/ayusman/sitwell/internal/store"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type assessmentView struct {
	ID       string           `json:"id"`
	Source   string           `json:"source"`
	Analysis posture.Analysis `json:"analysis"`
	Alerts   []store.Alert    `json:"alerts"`
}

// installNotifier writes a plugin that acknowledges every event.
func installNotifier(t *testing.T, dir string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("skipping test on Windows")
	}

	pluginDir := filepath.Join(dir, "recorder")
	if err := os.MkdirAll(pluginDir, 0o755); err != nil {
		t.Fatal(err)
	}
	manifest := `{"name":"recorder","version":"1.0.0","executable":"run.sh","events":["poor_posture","posture_recovered"]}`
	if err := os.WriteFile(filepath.Join(pluginDir, "plugin.json"), []byte(manifest), 0o644); err != nil {
		t.Fatal(err)
	}
	script := "#!/bin/sh\ncat > /dev/null\necho '{\"success\":true,\"message\":\"noted\"}'\n"
	if err := os.WriteFile(filepath.Join(pluginDir, "run.sh"), []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
}

func TestE2E_CompleteWorkflow(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	tmpDir := t.TempDir()

	s, err := store.New(filepath.Join(tmpDir, "data.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer s.Close()

	pluginDir := filepath.Join(tmpDir, "plugins")
	installNotifier(t, pluginDir)
	manager := plugin.NewManager(pluginDir, log.Discard())
	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() error = %v", err)
	}

	application, err := app.New(app.Config{
		Posture:         posture.DefaultConfig(),
		Store:           s,
		Cache:           cache.NewMemory(16),
		CacheTTL:        time.Minute,
		Notifier:        plugin.NewNotifier(manager, plugin.NewExecutor(plugin.DefaultTimeout), log.Discard()),
		MonitorInterval: 20 * time.Millisecond,
		AlertCooldown:   time.Hour,
	}, log.Discard())
	if err != nil {
		t.Fatalf("app.New() error = %v", err)
	}
	defer application.Close()

	mockDetector := detector.NewMockDetector()
	application.SetDetector(mockDetector)

	frame := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(50, 50, 50, 0), 480, 640, gocv.MatTypeCV8UC3)
	defer frame.Close()
	application.SetCamera(capture.NewMockCamera([]*gocv.Mat{&frame}, true))

	srv := server.New(server.Config{App: application, Store: s, Log: log.Discard()})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	client := ts.Client()

	post := func(t *testing.T, path string, body interface{}) *http.Response {
		t.Helper()
		data, _ := json.Marshal(body)
		resp, err := client.Post(ts.URL+path, "application/json", strings.NewReader(string(data)))
		if err != nil {
			t.Fatalf("POST %s error = %v", path, err)
		}
		return resp
	}

	t.Run("AnalyzeKeypoints", func(t *testing.T) {
		points := detector.SlouchedPerson().Set(pose.DefaultMinConfidence).Named()
		resp := post(t, "/api/posture/analyze", map[string]interface{}{"keypoints": points})
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
		}
		var body struct {
			IsGoodPosture bool     `json:"isGoodPosture"`
			Feedback      []string `json:"feedback"`
		}
		json.NewDecoder(resp.Body).Decode(&body)
		if body.IsGoodPosture || len(body.Feedback) == 0 {
			t.Errorf("expected poor posture with feedback, got %+v", body)
		}
	})

	t.Run("AnalyzeImage", func(t *testing.T) {
		payload, err := render.EncodeBase64PNG(frame)
		if err != nil {
			t.Fatalf("encode error = %v", err)
		}
		mockDetector.SetPeople([]detector.Person{detector.UprightPerson()})

		for i, wantCached := range []bool{false, true} {
			resp := post(t, "/api/posture/image", map[string]interface{}{"image": payload})
			var body struct {
				IsGoodPosture bool   `json:"isGoodPosture"`
				ImgWithPose   string `json:"img_with_pose"`
				Cached        bool   `json:"cached"`
			}
			json.NewDecoder(resp.Body).Decode(&body)
			resp.Body.Close()

			if !body.IsGoodPosture || !strings.HasPrefix(body.ImgWithPose, "data:image/png;base64,") {
				t.Errorf("request %d: unexpected response %+v", i, body)
			}
			if body.Cached != wantCached {
				t.Errorf("request %d: cached = %v, want %v", i, body.Cached, wantCached)
			}
		}
	})

	t.Run("HistoryAndSummary", func(t *testing.T) {
		resp, err := client.Get(ts.URL + "/api/assessments")
		if err != nil {
			t.Fatalf("list error = %v", err)
		}
		var list struct {
			Assessments []assessmentView `json:"assessments"`
			Total       int              `json:"total"`
		}
		json.NewDecoder(resp.Body).Decode(&list)
		resp.Body.Close()

		// the cached image result is not stored twice
		if list.Total != 2 {
			t.Fatalf("total = %d, want 2", list.Total)
		}

		resp, _ = client.Get(ts.URL + "/api/assessments/summary")
		var summary store.Summary
		json.NewDecoder(resp.Body).Decode(&summary)
		resp.Body.Close()

		if summary.Total != 2 || summary.Good != 1 {
			t.Errorf("unexpected summary %+v", summary)
		}
	})

	t.Run("MonitorAlerts", func(t *testing.T) {
		mockDetector.SetPeople([]detector.Person{detector.SlouchedPerson()})

		resp := post(t, "/api/monitor/start", nil)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("start status = %d", resp.StatusCode)
		}

		var alerted *assessmentView
		deadline := time.Now().Add(5 * time.Second)
		for alerted == nil && time.Now().Before(deadline) {
			time.Sleep(50 * time.Millisecond)

			resp, err := client.Get(ts.URL + "/api/assessments?limit=100")
			if err != nil {
				t.Fatalf("list error = %v", err)
			}
			var list struct {
				Assessments []assessmentView `json:"assessments"`
			}
			json.NewDecoder(resp.Body).Decode(&list)
			resp.Body.Close()

			for _, a := range list.Assessments {
				if a.Source != string(store.SourceMonitor) {
					continue
				}
				detail, _ := client.Get(ts.URL + "/api/assessments/" + a.ID)
				var view assessmentView
				json.NewDecoder(detail.Body).Decode(&view)
				detail.Body.Close()
				if len(view.Alerts) > 0 {
					alerted = &view
					break
				}
			}
		}

		resp = post(t, "/api/monitor/stop", nil)
		resp.Body.Close()

		if alerted == nil {
			t.Fatal("timed out waiting for a recorded alert")
		}
		alert := alerted.Alerts[0]
		if alert.PluginName != "recorder" || !alert.Success || alert.Event != string(plugin.EventPoorPosture) {
			t.Errorf("unexpected alert %+v", alert)
		}
	})

	t.Run("APIStillWorks", func(t *testing.T) {
		resp, _ := client.Get(ts.URL + "/api/health")
		if resp.StatusCode != http.StatusOK {
			t.Errorf("health check failed after app operations")
		}
		resp.Body.Close()
	})
}
