package lms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"course_checkout/internal/pkg/config"
)

// Client 学习平台开通客户端
// 两个操作都是 find-or-create：按邮箱找账号、按 (账号, 课程) 找报名记录，
// 找到即复用，保证回调重放不会重复开通
type Client interface {
	FindOrCreateAccount(ctx context.Context, email, name string) (string, error)
	FindOrCreateEnrollment(ctx context.Context, accountID, courseID string) error
}

type httpClient struct {
	baseURL string
	apiKey  string
	hc      *http.Client
}

func NewClient() Client {
	cfg := config.GlobalConfig.LMS
	return &httpClient{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		hc:      &http.Client{Timeout: time.Duration(cfg.TimeoutSec) * time.Second},
	}
}

type account struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

type enrollment struct {
	ID        string `json:"id"`
	AccountID string `json:"accountId"`
	CourseID  string `json:"courseId"`
}

func (c *httpClient) FindOrCreateAccount(ctx context.Context, email, name string) (string, error) {
	// 先查
	var found []account
	query := "/api/accounts?email=" + url.QueryEscape(email)
	if err := c.do(ctx, http.MethodGet, query, nil, &found); err != nil {
		return "", err
	}
	if len(found) > 0 {
		return found[0].ID, nil
	}

	// 再建
	var created account
	body := map[string]string{"email": email, "name": name}
	if err := c.do(ctx, http.MethodPost, "/api/accounts", body, &created); err != nil {
		return "", err
	}
	if created.ID == "" {
		return "", fmt.Errorf("lms returned empty account id")
	}
	return created.ID, nil
}

func (c *httpClient) FindOrCreateEnrollment(ctx context.Context, accountID, courseID string) error {
	var found []enrollment
	query := fmt.Sprintf("/api/enrollments?accountId=%s&courseId=%s",
		url.QueryEscape(accountID), url.QueryEscape(courseID))
	if err := c.do(ctx, http.MethodGet, query, nil, &found); err != nil {
		return err
	}
	if len(found) > 0 {
		return nil
	}

	body := map[string]string{"accountId": accountID, "courseId": courseID}
	return c.do(ctx, http.MethodPost, "/api/enrollments", body, nil)
}

func (c *httpClient) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("lms request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("lms %s %s: unexpected status %d", method, path, resp.StatusCode)
	}

	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
