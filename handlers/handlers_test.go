package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"
	"github.com/sirupsen/logrus"

	"vetarchive/config"
	"vetarchive/internal/store"
	"vetarchive/internal/transcriber"
	"vetarchive/middleware"
	"vetarchive/models"
)

// stubTranscriber satisfies TranscriberInterface without a network.
type stubTranscriber struct {
	enabled    bool
	submitID   string
	submitErr  error
	pollResult *transcriber.StatusResult
	pollErr    error

	submitted []int64
	polled    []string
}

func (s *stubTranscriber) Enabled() bool { return s.enabled }

func (s *stubTranscriber) Submit(_ context.Context, videoID int64, _, _ string) (string, error) {
	s.submitted = append(s.submitted, videoID)
	return s.submitID, s.submitErr
}

func (s *stubTranscriber) Poll(_ context.Context, taskID string) (*transcriber.StatusResult, error) {
	s.polled = append(s.polled, taskID)
	return s.pollResult, s.pollErr
}

// stubThumbnailer satisfies ThumbnailerInterface without ffmpeg.
type stubThumbnailer struct {
	name  string
	err   error
	calls []int64
}

func (s *stubThumbnailer) Generate(_ context.Context, _, _ string, videoID int64) (string, error) {
	s.calls = append(s.calls, videoID)
	return s.name, s.err
}

type testEnv struct {
	app         *fiber.App
	store       *store.Store
	transcriber *stubTranscriber
	thumbnailer *stubThumbnailer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	tr := &stubTranscriber{enabled: true}
	th := &stubThumbnailer{}
	sessions := session.New()
	cfg := &config.Config{
		AdminPassword: "secret",
		CallbackToken: "cb-token",
	}

	h := NewApplicationHandler(st, tr, th, sessions, logger, cfg)

	app := fiber.New()
	app.Get("/", h.ListVideos)
	app.Get("/video/:id", h.GetVideo)
	app.Post("/login", h.Login)
	app.Get("/logout", h.Logout)
	app.Post("/api/callback", h.ReceiveTranscript)

	requireLogin := middleware.RequireLogin(sessions)
	app.Post("/add", requireLogin, h.AddVideo)
	app.Post("/delete/:id", requireLogin, h.DeleteVideo)
	app.Get("/fix_thumbs", requireLogin, h.FixThumbnails)
	app.Post("/api/upload", requireLogin, h.UploadVideos)

	return &testEnv{app: app, store: st, transcriber: tr, thumbnailer: th}
}

func jsonRequest(method, target string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// login authenticates against the test app and returns the session
// cookie to attach to subsequent requests.
func login(t *testing.T, env *testEnv) *http.Cookie {
	t.Helper()
	resp, err := env.app.Test(jsonRequest(http.MethodPost, "/login", map[string]string{"password": "secret"}))
	if err != nil {
		t.Fatalf("Login request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected login to succeed, got status %d", resp.StatusCode)
	}
	for _, c := range resp.Cookies() {
		if c.Name == "session_id" {
			return c
		}
	}
	t.Fatal("Expected a session cookie after login")
	return nil
}

func decodeEnvelope(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read response body: %v", err)
	}
	var envelope map[string]interface{}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		t.Fatalf("Failed to decode response %s: %v", raw, err)
	}
	return envelope
}

func TestLoginWrongPassword(t *testing.T) {
	env := newTestEnv(t)
	resp, err := env.app.Test(jsonRequest(http.MethodPost, "/login", map[string]string{"password": "nope"}))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("Expected 401 for wrong password, got %d", resp.StatusCode)
	}
}

func TestMutatingRoutesRequireLogin(t *testing.T) {
	env := newTestEnv(t)
	requests := []*http.Request{
		jsonRequest(http.MethodPost, "/add", map[string]string{"title": "x"}),
		jsonRequest(http.MethodPost, "/delete/1", nil),
		httptest.NewRequest(http.MethodGet, "/fix_thumbs", nil),
		jsonRequest(http.MethodPost, "/api/upload", map[string]interface{}{}),
	}
	for _, req := range requests {
		resp, err := env.app.Test(req)
		if err != nil {
			t.Fatalf("Request %s %s failed: %v", req.Method, req.URL.Path, err)
		}
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("%s %s: expected 401, got %d", req.Method, req.URL.Path, resp.StatusCode)
		}
	}
}

func TestAddVideoEndToEnd(t *testing.T) {
	env := newTestEnv(t)
	env.transcriber.submitID = "task-1"
	cookie := login(t, env)

	req := jsonRequest(http.MethodPost, "/add", models.NewVideo{
		Title: "Interview 1",
		Type:  models.TypeLocal,
		Path:  "v1.mp4",
	})
	req.AddCookie(cookie)

	resp, err := env.app.Test(req, -1)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected 201, got %d", resp.StatusCode)
	}

	envelope := decodeEnvelope(t, resp)
	data := envelope["data"].(map[string]interface{})
	id := int64(data["id"].(float64))

	v, err := env.store.Get(id)
	if err != nil {
		t.Fatalf("Created video not found: %v", err)
	}
	if v.Transcript != nil {
		t.Errorf("Expected empty transcript, got %v", v.Transcript)
	}
	if v.ColabTaskID == nil || *v.ColabTaskID != "task-1" {
		t.Errorf("Expected colab_task_id 'task-1', got %v", v.ColabTaskID)
	}
	if len(env.thumbnailer.calls) != 1 {
		t.Errorf("Expected one thumbnail attempt, got %d", len(env.thumbnailer.calls))
	}
}

func TestAddVideoSurvivesFailingSideOperations(t *testing.T) {
	env := newTestEnv(t)
	env.transcriber.submitErr = errors.New("worker unreachable")
	env.thumbnailer.err = errors.New("ffmpeg exploded")
	cookie := login(t, env)

	req := jsonRequest(http.MethodPost, "/add", models.NewVideo{
		Title: "Interview 2",
		Type:  models.TypeLocal,
		Path:  "missing.mp4",
	})
	req.AddCookie(cookie)

	resp, err := env.app.Test(req, -1)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected record creation despite side failures, got %d", resp.StatusCode)
	}

	videos, err := env.store.List("")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(videos) != 1 {
		t.Fatalf("Expected the record to exist, got %d videos", len(videos))
	}
	if videos[0].ThumbnailPath != nil {
		t.Errorf("Expected no thumbnail recorded, got %v", videos[0].ThumbnailPath)
	}
}

func TestAddVideoSkipsJobWhenTranscriptSupplied(t *testing.T) {
	env := newTestEnv(t)
	cookie := login(t, env)

	req := jsonRequest(http.MethodPost, "/add", models.NewVideo{
		Title:      "Interview 3",
		Type:       models.TypeYouTube,
		Path:       "https://youtube.com/watch?v=abc",
		Transcript: "already transcribed",
	})
	req.AddCookie(cookie)

	resp, err := env.app.Test(req, -1)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected 201, got %d", resp.StatusCode)
	}
	if len(env.transcriber.submitted) != 0 {
		t.Errorf("Expected no job submission, got %d", len(env.transcriber.submitted))
	}
}

func TestAddVideoValidation(t *testing.T) {
	env := newTestEnv(t)
	cookie := login(t, env)

	req := jsonRequest(http.MethodPost, "/add", map[string]string{"title": "no type or path"})
	req.AddCookie(cookie)

	resp, err := env.app.Test(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("Expected 400 for missing fields, got %d", resp.StatusCode)
	}
}

func TestGetVideoNotFound(t *testing.T) {
	env := newTestEnv(t)
	resp, err := env.app.Test(httptest.NewRequest(http.MethodGet, "/video/99", nil))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("Expected 404, got %d", resp.StatusCode)
	}
}

func TestGetVideoPollFallbackPersistsDone(t *testing.T) {
	env := newTestEnv(t)
	id, err := env.store.Create(models.NewVideo{Title: "Interview", Type: models.TypeLocal, Path: "v.mp4"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := env.store.UpdateJobID(id, "task-7"); err != nil {
		t.Fatalf("UpdateJobID failed: %v", err)
	}
	env.transcriber.pollResult = &transcriber.StatusResult{Status: "done", Text: "T"}

	resp, err := env.app.Test(httptest.NewRequest(http.MethodGet, fmt.Sprintf("/video/%d", id), nil), -1)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	if len(env.transcriber.polled) != 1 || env.transcriber.polled[0] != "task-7" {
		t.Fatalf("Expected one poll for task-7, got %v", env.transcriber.polled)
	}

	v, err := env.store.Get(id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if v.Transcript == nil || *v.Transcript != "T" {
		t.Errorf("Expected transcript 'T' persisted, got %v", v.Transcript)
	}

	// The response body carries the fresh transcript too.
	envelope := decodeEnvelope(t, resp)
	data := envelope["data"].(map[string]interface{})
	if data["transcript"] != "T" {
		t.Errorf("Expected transcript in response, got %v", data["transcript"])
	}
}

func TestGetVideoPollFailureLeavesStateUnchanged(t *testing.T) {
	env := newTestEnv(t)
	id, err := env.store.Create(models.NewVideo{Title: "Interview", Type: models.TypeLocal, Path: "v.mp4"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := env.store.UpdateJobID(id, "task-8"); err != nil {
		t.Fatalf("UpdateJobID failed: %v", err)
	}
	env.transcriber.pollErr = errors.New("worker down")

	resp, err := env.app.Test(httptest.NewRequest(http.MethodGet, fmt.Sprintf("/video/%d", id), nil), -1)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected detail page despite poll failure, got %d", resp.StatusCode)
	}

	v, _ := env.store.Get(id)
	if v.Transcript != nil {
		t.Errorf("Expected transcript untouched, got %v", v.Transcript)
	}
}

func TestCallbackDone(t *testing.T) {
	env := newTestEnv(t)
	id, err := env.store.Create(models.NewVideo{Title: "Interview", Type: models.TypeLocal, Path: "v.mp4"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	req := jsonRequest(http.MethodPost, "/api/callback", map[string]interface{}{
		"video_id": id,
		"status":   "done",
		"text":     "T",
	})
	req.Header.Set("X-Callback-Token", "cb-token")

	resp, err := env.app.Test(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	v, _ := env.store.Get(id)
	if v.Transcript == nil || *v.Transcript != "T" {
		t.Errorf("Expected transcript 'T', got %v", v.Transcript)
	}
}

func TestCallbackError(t *testing.T) {
	env := newTestEnv(t)
	id, err := env.store.Create(models.NewVideo{Title: "Interview", Type: models.TypeLocal, Path: "v.mp4"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	req := jsonRequest(http.MethodPost, "/api/callback", map[string]interface{}{
		"video_id":  id,
		"status":    "error",
		"error_msg": "no audio stream",
	})
	req.Header.Set("X-Callback-Token", "cb-token")

	resp, err := env.app.Test(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	v, _ := env.store.Get(id)
	if v.Transcript == nil || *v.Transcript != "transcription failed: no audio stream" {
		t.Errorf("Expected failure indicator, got %v", v.Transcript)
	}
}

func TestCallbackRejectsBadToken(t *testing.T) {
	env := newTestEnv(t)

	req := jsonRequest(http.MethodPost, "/api/callback", map[string]interface{}{
		"video_id": 1,
		"status":   "done",
		"text":     "T",
	})
	req.Header.Set("X-Callback-Token", "wrong")

	resp, err := env.app.Test(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("Expected 401 for bad token, got %d", resp.StatusCode)
	}
}

func TestCallbackUnknownVideo(t *testing.T) {
	env := newTestEnv(t)

	req := jsonRequest(http.MethodPost, "/api/callback", map[string]interface{}{
		"video_id": 12345,
		"status":   "done",
		"text":     "T",
	})
	req.Header.Set("X-Callback-Token", "cb-token")

	resp, err := env.app.Test(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("Expected 404 for unknown video, got %d", resp.StatusCode)
	}
}

func TestDeleteVideo(t *testing.T) {
	env := newTestEnv(t)
	id, err := env.store.Create(models.NewVideo{Title: "Interview", Type: models.TypeLocal, Path: "v.mp4"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	cookie := login(t, env)

	req := jsonRequest(http.MethodPost, fmt.Sprintf("/delete/%d", id), nil)
	req.AddCookie(cookie)
	resp, err := env.app.Test(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	if _, err := env.store.Get(id); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected video gone, got %v", err)
	}

	// Deleting again reports not found.
	req = jsonRequest(http.MethodPost, fmt.Sprintf("/delete/%d", id), nil)
	req.AddCookie(cookie)
	resp, err = env.app.Test(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("Expected 404 on second delete, got %d", resp.StatusCode)
	}
}

func TestListAndSearchEndpoint(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.store.Create(models.NewVideo{Title: "Blockade survivor", Category: "ww2", Type: models.TypeLocal, Path: "a.mp4"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := env.store.Create(models.NewVideo{Title: "Factory worker", Category: "civilian", Type: models.TypeLocal, Path: "b.mp4"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	resp, err := env.app.Test(httptest.NewRequest(http.MethodGet, "/?q=blockade", nil))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	envelope := decodeEnvelope(t, resp)
	data := envelope["data"].(map[string]interface{})
	videos := data["videos"].([]interface{})
	if len(videos) != 1 {
		t.Fatalf("Expected 1 search hit, got %d", len(videos))
	}

	resp, err = env.app.Test(httptest.NewRequest(http.MethodGet, "/?category=civilian", nil))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	envelope = decodeEnvelope(t, resp)
	data = envelope["data"].(map[string]interface{})
	videos = data["videos"].([]interface{})
	if len(videos) != 1 {
		t.Fatalf("Expected 1 video in category filter, got %d", len(videos))
	}
}

func TestUploadBatch(t *testing.T) {
	env := newTestEnv(t)
	cookie := login(t, env)

	req := jsonRequest(http.MethodPost, "/api/upload", map[string]interface{}{
		"videos": []models.NewVideo{
			{Title: "Scraped 1", Type: models.TypeYouTube, Path: "https://youtube.com/watch?v=a", Transcript: "text one"},
			{Title: "Scraped 2", Type: models.TypeYouTube, Path: "https://youtube.com/watch?v=b", Transcript: "text two"},
		},
	})
	req.AddCookie(cookie)

	resp, err := env.app.Test(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	videos, err := env.store.List("")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(videos) != 2 {
		t.Fatalf("Expected 2 uploaded videos, got %d", len(videos))
	}
	if len(env.transcriber.submitted) != 0 {
		t.Errorf("Expected no job submissions for uploads, got %d", len(env.transcriber.submitted))
	}
}

func TestFixThumbnailsReport(t *testing.T) {
	env := newTestEnv(t)
	env.thumbnailer.name = "thumb_0.jpg"
	if _, err := env.store.Create(models.NewVideo{Title: "Local", Type: models.TypeLocal, Path: "a.mp4"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := env.store.Create(models.NewVideo{Title: "Remote", Type: models.TypeYouTube, Path: "https://youtube.com/watch?v=a"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	cookie := login(t, env)

	req := httptest.NewRequest(http.MethodGet, "/fix_thumbs", nil)
	req.AddCookie(cookie)
	resp, err := env.app.Test(req, -1)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	envelope := decodeEnvelope(t, resp)
	data := envelope["data"].(map[string]interface{})
	if total := data["total"].(float64); total != 1 {
		t.Errorf("Expected only the local video in the report, got total %v", total)
	}
	if updated := data["updated"].(float64); updated != 1 {
		t.Errorf("Expected 1 updated thumbnail, got %v", updated)
	}
	if len(env.thumbnailer.calls) != 1 {
		t.Errorf("Expected 1 generation attempt, got %d", len(env.thumbnailer.calls))
	}
}
