package transcriber

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"

	"vetarchive/models"
)

// Job statuses reported by the external worker.
const (
	StatusDone  = "done"
	StatusError = "error"
)

// Submission is kept short so adding a video never hangs on a dead
// worker; polling gets longer because transcription results can be
// large and the worker may flush them slowly.
const (
	submitTimeout = 5 * time.Second
	pollTimeout   = 60 * time.Second
)

// Client talks to the external transcription worker. All methods are
// best-effort: the worker is expected to be unreachable some of the
// time and callers treat every failure as "no update available now".
type Client struct {
	workerURL string // base URL of the worker, "" disables submission
	publicURL string // base URL under which this site is reachable
	http      *http.Client
	logger    *logrus.Logger
}

// NewClient builds a worker client. workerURL and publicURL must not
// have trailing slashes; empty workerURL turns Submit into a no-op.
func NewClient(workerURL, publicURL string, logger *logrus.Logger) *Client {
	return &Client{
		workerURL: workerURL,
		publicURL: publicURL,
		http:      &http.Client{},
		logger:    logger,
	}
}

// Enabled reports whether a worker is configured at all.
func (c *Client) Enabled() bool {
	return c.workerURL != ""
}

type taskRequest struct {
	URL         string `json:"url"`
	VideoID     int64  `json:"video_id"`
	CallbackURL string `json:"callback_url"`
}

type taskResponse struct {
	TaskID string `json:"task_id"`
}

// StatusResult is the worker's answer to a status poll.
type StatusResult struct {
	Status   string `json:"status"`
	Text     string `json:"text"`
	ErrorMsg string `json:"error_msg"`
}

// SourceURL returns the URL the worker should download: the path itself
// for remote kinds, or a synthesized public link for local files (the
// worker cannot see this host's filesystem).
func (c *Client) SourceURL(sourceKind, path string) string {
	if sourceKind == models.TypeLocal {
		return fmt.Sprintf("%s/static/videos/%s", c.publicURL, url.PathEscape(path))
	}
	return path
}

// Submit asks the worker to transcribe a video. The request carries a
// callback URL so the worker can push the result back; the returned
// task id (if the worker supplies one) lets us poll as a fallback.
func (c *Client) Submit(ctx context.Context, videoID int64, sourceKind, path string) (string, error) {
	if !c.Enabled() {
		return "", nil
	}

	payload := taskRequest{
		URL:         c.SourceURL(sourceKind, path),
		VideoID:     videoID,
		CallbackURL: c.publicURL + "/api/callback",
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, submitTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.workerURL+"/api/task", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("submitting task for video %d: %w", videoID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("worker rejected task for video %d: %s", videoID, resp.Status)
	}

	var tr taskResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		// Some worker revisions answer with an empty body; the job is
		// still submitted, we just cannot poll for it.
		c.logger.WithField("video_id", videoID).Warn("Worker accepted task but returned no task id")
		return "", nil
	}

	c.logger.WithFields(logrus.Fields{
		"video_id": videoID,
		"task_id":  tr.TaskID,
	}).Info("Transcription task submitted")
	return tr.TaskID, nil
}

// Poll fetches the current status of a previously submitted task.
func (c *Client) Poll(ctx context.Context, taskID string) (*StatusResult, error) {
	ctx, cancel := context.WithTimeout(ctx, pollTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/api/status/%s", c.workerURL, url.PathEscape(taskID)), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("polling task %s: %w", taskID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("status poll for task %s failed: %s", taskID, resp.Status)
	}

	var sr StatusResult
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("decoding status for task %s: %w", taskID, err)
	}
	return &sr, nil
}

// FailureText is what gets persisted in the transcript column when a
// job ends in error: an indicator, never raw job metadata.
func FailureText(errorMsg string) string {
	if errorMsg == "" {
		errorMsg = "unknown error"
	}
	return "transcription failed: " + errorMsg
}
