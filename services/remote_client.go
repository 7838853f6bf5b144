// services/remote_client.go
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"achievement-sync-system/utils"
)

// ErrorKind classifies remote failures. The achievement service's contract is
// undocumented beyond its error messages, so classification stays a substring
// match over the response body — but callers only ever see the enum.
type ErrorKind string

const (
	ErrKindAlreadyEarned       ErrorKind = "already_earned"
	ErrKindUserNotFound        ErrorKind = "user_not_found"
	ErrKindAchievementNotFound ErrorKind = "achievement_not_found"
	ErrKindUnknown             ErrorKind = "unknown"
)

type RemoteError struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("achievement service error (%s, status %d): %s", e.Kind, e.StatusCode, e.Message)
}

// classifyError maps a non-2xx response to an ErrorKind. Matching heuristics
// are kept compatible with the historical client behavior.
func classifyError(statusCode int, body []byte) *RemoteError {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	_ = json.Unmarshal(body, &payload)
	message := payload.Message
	if message == "" {
		message = payload.Error
	}
	if message == "" {
		message = string(body)
	}

	folded := foldText(message)
	kind := ErrKindUnknown
	switch {
	case strings.Contains(folded, "already earned"):
		kind = ErrKindAlreadyEarned
	case strings.Contains(folded, "user not found"):
		kind = ErrKindUserNotFound
	case strings.Contains(folded, "achievement not found"), statusCode == http.StatusNotFound:
		kind = ErrKindAchievementNotFound
	}

	return &RemoteError{Kind: kind, StatusCode: statusCode, Message: message}
}

// RemoteSnapshot is the normalized result of fetching a user's remote state
type RemoteSnapshot struct {
	Records     []RawRecord
	TotalPoints int
}

// GrantRef carries the best identifiers we have for the remote grant call —
// a learned serverId when available, the slug/local id otherwise.
type GrantRef struct {
	ServerID string
	Slug     string
	ID       string
}

// RemoteClient wraps the external achievement API
type RemoteClient struct {
	BaseURL string
	Token   string // attached as bearer when set
	Client  *http.Client
}

func NewRemoteClient(baseURL, token string) *RemoteClient {
	return &RemoteClient{
		BaseURL: baseURL,
		Token:   token,
		Client:  utils.HTTPClient,
	}
}

// FetchSnapshot GETs /achievements/{userId} and normalizes every entry shape
func (c *RemoteClient) FetchSnapshot(ctx context.Context, userID string) (*RemoteSnapshot, error) {
	url := fmt.Sprintf("%s/achievements/%s", c.BaseURL, userID)

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create snapshot request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("snapshot request failed: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, classifyError(resp.StatusCode, body)
	}

	var payload struct {
		Achievements []wireEntry `json:"achievements"`
		TotalPoints  int         `json:"totalPoints"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot response: %w", err)
	}

	snap := &RemoteSnapshot{TotalPoints: payload.TotalPoints}
	for _, e := range payload.Achievements {
		snap.Records = append(snap.Records, e.raw)
	}
	return snap, nil
}

// PostGrant POSTs /achievement. A nil return means the remote accepted the
// grant; recognized failures come back as *RemoteError with their Kind set.
func (c *RemoteClient) PostGrant(ctx context.Context, userID string, ref GrantRef, totalPointsHint int) error {
	url := fmt.Sprintf("%s/achievement", c.BaseURL)

	reqBody := map[string]interface{}{
		"userId":      userID,
		"totalPoints": totalPointsHint,
	}
	// prefer the remote's own id when we've learned it, fall back to slug/id
	if ref.ServerID != "" {
		reqBody["achievementId"] = ref.ServerID
	}
	if ref.Slug != "" {
		reqBody["slug"] = ref.Slug
	} else if ref.ID != "" {
		reqBody["slug"] = ref.ID
	}
	if ref.ID != "" {
		reqBody["legacyId"] = ref.ID
	}

	jsonData, _ := json.Marshal(reqBody)

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create grant request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.Client.Do(req)
	if err != nil {
		return fmt.Errorf("grant request failed: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	return classifyError(resp.StatusCode, body)
}

func (c *RemoteClient) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
}

// wireEntry decodes the four achievement entry shapes the remote has shipped
// over the years: nested {achievement:{...}}, nested {achievement:"<id>"},
// flat {id,...}, and legacy bare-string arrays. Downstream code never branches
// on shape — everything lands in one RawRecord.
type wireEntry struct {
	raw RawRecord
}

type wireObject struct {
	ID          string          `json:"id"`
	LegacyID    string          `json:"_id"`
	Slug        string          `json:"slug"`
	ServerID    string          `json:"serverId"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Points      *int            `json:"points"`
	Earned      *bool           `json:"earned"`
	DateEarned  *string         `json:"dateEarned"`
	Achievement json.RawMessage `json:"achievement"`
}

func (e *wireEntry) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)

	// legacy shape: a bare string id — presence in the array means earned
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		e.raw = RawRecord{ID: s, ServerID: s, Earned: true}
		return nil
	}

	var obj wireObject
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return err
	}

	e.raw = rawFromWireObject(obj)

	if len(obj.Achievement) > 0 && string(obj.Achievement) != "null" {
		inner := bytes.TrimSpace(obj.Achievement)
		if inner[0] == '"' {
			var s string
			if err := json.Unmarshal(inner, &s); err != nil {
				return err
			}
			e.raw.Nested = &RawRecord{ID: s, ServerID: s}
		} else {
			var nested wireObject
			if err := json.Unmarshal(inner, &nested); err != nil {
				return err
			}
			n := rawFromWireObject(nested)
			e.raw.Nested = &n

			// hoist non-identity fields the wrapper didn't carry itself
			if !e.raw.HasPoints && n.HasPoints {
				e.raw.Points = n.Points
				e.raw.HasPoints = true
			}
			if e.raw.Description == "" {
				e.raw.Description = n.Description
			}
			if e.raw.DateEarned == nil {
				e.raw.DateEarned = n.DateEarned
			}
		}
	}

	return nil
}

func rawFromWireObject(obj wireObject) RawRecord {
	raw := RawRecord{
		ID:          obj.ID,
		LegacyID:    obj.LegacyID,
		Slug:        obj.Slug,
		ServerID:    obj.ServerID,
		Title:       obj.Title,
		Description: obj.Description,
	}
	if obj.Points != nil {
		raw.Points = *obj.Points
		raw.HasPoints = true
	}
	// historical shapes omit the earned flag — being listed meant earned
	if obj.Earned != nil {
		raw.Earned = *obj.Earned
	} else {
		raw.Earned = true
	}
	if obj.DateEarned != nil {
		if t, err := time.Parse(time.RFC3339, *obj.DateEarned); err == nil {
			raw.DateEarned = &t
		}
	}
	return raw
}
