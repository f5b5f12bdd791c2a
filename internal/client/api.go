package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"quiztake-service/internal/domain"
)

// APIClient talks to the quiz service. Every call carries a bounded timeout
// so a dead network surfaces as an error the synchronizer can turn into an
// offline fallback instead of a hang.
type APIClient struct {
	baseURL string
	httpc   *http.Client
}

func NewAPIClient(baseURL string, timeout time.Duration) *APIClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &APIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{Timeout: timeout},
	}
}

// APIError is a response the server actually produced, as opposed to a
// network-level failure. The two are handled very differently on resume.
type APIError struct {
	Status int
	Kind   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server rejected request: %s (%d)", e.Kind, e.Status)
}

func (c *APIClient) Quizzes(ctx context.Context) ([]domain.QuizInfo, error) {
	var infos []domain.QuizInfo
	if err := c.get(ctx, "/api/quizzes", &infos); err != nil {
		return nil, err
	}
	return infos, nil
}

func (c *APIClient) Start(ctx context.Context, name, quizID, userID string) (domain.StartedSession, error) {
	var started domain.StartedSession
	payload := map[string]string{"name": name, "quizId": quizID}
	if userID != "" {
		payload["userId"] = userID
	}
	if err := c.post(ctx, "/api/start", payload, &started); err != nil {
		return domain.StartedSession{}, err
	}
	return started, nil
}

// Status probes a saved session. A 404 with a decodable body is a valid
// "does not exist" answer, not an error.
func (c *APIClient) Status(ctx context.Context, sessionID, token string) (domain.SessionStatus, error) {
	path := "/api/session/" + url.PathEscape(sessionID) + "?token=" + url.QueryEscape(token)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return domain.SessionStatus{}, err
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return domain.SessionStatus{}, err
	}
	defer resp.Body.Close()

	var status domain.SessionStatus
	if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusNotFound {
		if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
			return domain.SessionStatus{}, &APIError{Status: resp.StatusCode, Kind: "unexpected_body"}
		}
		return status, nil
	}
	return domain.SessionStatus{}, decodeAPIError(resp)
}

func (c *APIClient) Submit(ctx context.Context, sessionID, token, quizID string, answers []*int) (domain.SubmitResult, error) {
	payload := map[string]any{
		"session": sessionID,
		"token":   token,
		"quizId":  quizID,
		"answers": answers,
	}
	var result domain.SubmitResult
	if err := c.post(ctx, "/api/submit", payload, &result); err != nil {
		return domain.SubmitResult{}, err
	}
	return result, nil
}

func (c *APIClient) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *APIClient) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *APIClient) do(req *http.Request, out any) error {
	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func decodeAPIError(resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&body)
	if body.Error == "" {
		body.Error = "unknown"
	}
	return &APIError{Status: resp.StatusCode, Kind: body.Error}
}
