//go:build e2e
// +build e2e

package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"testing"
	"time"
)

const defaultHTTPBase = "http://localhost:8080"

type httpClient struct {
	baseURL string
	client  *http.Client
}

func newHTTPClient() *httpClient {
	base := os.Getenv("TRACKER_HTTP_URL")
	if base == "" {
		base = defaultHTTPBase
	}
	return &httpClient{
		baseURL: base,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *httpClient) doJSON(t *testing.T, method, path, accessToken string, body any) (*http.Response, []byte) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("json marshal failed: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		t.Fatalf("new request failed: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		t.Fatalf("http request failed: %v", err)
	}
	defer resp.Body.Close()

	buf := &bytes.Buffer{}
	if _, err = buf.ReadFrom(resp.Body); err != nil {
		t.Fatalf("read response failed: %v", err)
	}
	return resp, buf.Bytes()
}

func (c *httpClient) postJSON(t *testing.T, path string, body any) (*http.Response, []byte) {
	t.Helper()
	return c.doJSON(t, http.MethodPost, path, "", body)
}

func waitForHTTP(baseURL string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	client := &http.Client{Timeout: 2 * time.Second}
	for time.Now().Before(deadline) {
		req, _ := http.NewRequest(http.MethodPost, baseURL+"/api/v1/login", bytes.NewReader([]byte(`{}`)))
		req.Header.Set("Content-Type", "application/json")
		resp, err := client.Do(req)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnauthorized {
				return nil
			}
		}
		time.Sleep(500 * time.Millisecond)
	}
	return fmt.Errorf("http service not ready at %s", baseURL)
}

func TestTrackerE2E_HTTPFlow(t *testing.T) {
	httpBase := os.Getenv("TRACKER_HTTP_URL")
	if httpBase == "" {
		httpBase = defaultHTTPBase
	}

	if err := waitForHTTP(httpBase, 30*time.Second); err != nil {
		t.Fatalf("http not ready: %v", err)
	}

	client := newHTTPClient()

	state := struct {
		email           string
		password        string
		verifyToken     string
		accessToken     string
		refreshToken    string
		newRefreshToken string
		applicationID   uint64
	}{
		email:    fmt.Sprintf("e2e+%d@example.com", time.Now().UnixNano()),
		password: "StrongPass1",
	}

	abort := false
	fail := func(t *testing.T, format string, args ...any) {
		abort = true
		t.Fatalf(format, args...)
	}

	step := func(name string, fn func(t *testing.T)) {
		t.Run(name, func(t *testing.T) {
			if abort {
				t.Skip("previous step failed")
			}
			fn(t)
		})
	}

	step("LoginBeforeRegister", func(t *testing.T) {
		resp, _ := client.postJSON(t, "/api/v1/login", map[string]string{
			"email":    state.email,
			"password": state.password,
		})
		if resp.StatusCode != http.StatusUnauthorized {
			fail(t, "expected login before register to fail, got %d", resp.StatusCode)
		}
	})

	step("Register", func(t *testing.T) {
		resp, body := client.postJSON(t, "/api/v1/user/register", map[string]string{
			"first_name": "E2E",
			"last_name":  "Tester",
			"email":      state.email,
			"password":   state.password,
		})
		if resp.StatusCode != http.StatusCreated {
			fail(t, "register status: %d body: %s", resp.StatusCode, string(body))
		}

		var regRes struct {
			VerifyToken string `json:"verify_token"`
		}
		if err := json.Unmarshal(body, &regRes); err != nil {
			fail(t, "register unmarshal failed: %v", err)
		}
		if regRes.VerifyToken == "" {
			fail(t, "expected verify_token")
		}
		state.verifyToken = regRes.VerifyToken
	})

	step("RegisterWeakPassword", func(t *testing.T) {
		resp, _ := client.postJSON(t, "/api/v1/user/register", map[string]string{
			"first_name": "E2E",
			"last_name":  "Tester",
			"email":      "weak-" + state.email,
			"password":   "short",
		})
		if resp.StatusCode != http.StatusBadRequest {
			fail(t, "expected weak password register to fail, got %d", resp.StatusCode)
		}
	})

	step("RegisterDuplicate", func(t *testing.T) {
		resp, _ := client.postJSON(t, "/api/v1/user/register", map[string]string{
			"first_name": "E2E",
			"last_name":  "Tester",
			"email":      state.email,
			"password":   state.password,
		})
		if resp.StatusCode != http.StatusConflict {
			fail(t, "expected duplicate register conflict, got %d", resp.StatusCode)
		}
	})

	step("VerifyEmail", func(t *testing.T) {
		resp, body := client.postJSON(t, "/api/v1/verify-email", map[string]string{
			"token": state.verifyToken,
		})
		if resp.StatusCode != http.StatusOK {
			fail(t, "verify status: %d body: %s", resp.StatusCode, string(body))
		}
	})

	step("VerifyEmailReusedToken", func(t *testing.T) {
		resp, _ := client.postJSON(t, "/api/v1/verify-email", map[string]string{
			"token": state.verifyToken,
		})
		if resp.StatusCode != http.StatusBadRequest {
			fail(t, "expected reused verify token to fail, got %d", resp.StatusCode)
		}
	})

	step("Login", func(t *testing.T) {
		resp, body := client.postJSON(t, "/api/v1/login", map[string]string{
			"email":    state.email,
			"password": state.password,
		})
		if resp.StatusCode != http.StatusOK {
			fail(t, "login status: %d body: %s", resp.StatusCode, string(body))
		}

		var loginRes struct {
			AccessToken  string `json:"access_token"`
			RefreshToken string `json:"refresh_token"`
		}
		if err := json.Unmarshal(body, &loginRes); err != nil {
			fail(t, "login unmarshal failed: %v", err)
		}
		if loginRes.AccessToken == "" || loginRes.RefreshToken == "" {
			fail(t, "expected access and refresh tokens")
		}
		state.accessToken = loginRes.AccessToken
		state.refreshToken = loginRes.RefreshToken
	})

	step("Me", func(t *testing.T) {
		resp, body := client.doJSON(t, http.MethodGet, "/api/v1/user/me", state.accessToken, nil)
		if resp.StatusCode != http.StatusOK {
			fail(t, "me status: %d body: %s", resp.StatusCode, string(body))
		}
		var meRes struct {
			Email      string `json:"email"`
			IsVerified bool   `json:"is_verified"`
		}
		if err := json.Unmarshal(body, &meRes); err != nil {
			fail(t, "me unmarshal failed: %v", err)
		}
		if meRes.Email != state.email {
			fail(t, "expected email %s, got %s", state.email, meRes.Email)
		}
		if !meRes.IsVerified {
			fail(t, "expected account to be verified")
		}
	})

	step("MeWithoutToken", func(t *testing.T) {
		resp, _ := client.doJSON(t, http.MethodGet, "/api/v1/user/me", "", nil)
		if resp.StatusCode != http.StatusUnauthorized {
			fail(t, "expected me without token to fail, got %d", resp.StatusCode)
		}
	})

	step("RefreshToken", func(t *testing.T) {
		resp, body := client.postJSON(t, "/api/v1/refresh-token", map[string]string{
			"refresh_token": state.refreshToken,
		})
		if resp.StatusCode != http.StatusOK {
			fail(t, "refresh status: %d body: %s", resp.StatusCode, string(body))
		}
		var refreshRes struct {
			AccessToken  string `json:"access_token"`
			RefreshToken string `json:"refresh_token"`
		}
		if err := json.Unmarshal(body, &refreshRes); err != nil {
			fail(t, "refresh unmarshal failed: %v", err)
		}
		if refreshRes.AccessToken == "" || refreshRes.RefreshToken == "" {
			fail(t, "expected rotated tokens")
		}
		state.accessToken = refreshRes.AccessToken
		state.newRefreshToken = refreshRes.RefreshToken
	})

	step("RefreshTokenReused", func(t *testing.T) {
		resp, _ := client.postJSON(t, "/api/v1/refresh-token", map[string]string{
			"refresh_token": state.refreshToken,
		})
		if resp.StatusCode != http.StatusUnauthorized {
			fail(t, "expected reused refresh token to fail, got %d", resp.StatusCode)
		}
	})

	step("ForgotPasswordMasksUnknownEmail", func(t *testing.T) {
		knownResp, knownBody := client.postJSON(t, "/api/v1/forgot-password", map[string]string{
			"email": state.email,
		})
		unknownResp, unknownBody := client.postJSON(t, "/api/v1/forgot-password", map[string]string{
			"email": fmt.Sprintf("ghost+%d@example.com", time.Now().UnixNano()),
		})
		if knownResp.StatusCode != http.StatusOK || unknownResp.StatusCode != http.StatusOK {
			fail(t, "forgot password statuses: %d / %d", knownResp.StatusCode, unknownResp.StatusCode)
		}
		if !bytes.Equal(knownBody, unknownBody) {
			fail(t, "known and unknown emails must get identical responses: %s vs %s", knownBody, unknownBody)
		}
	})

	step("CreateApplication", func(t *testing.T) {
		resp, body := client.doJSON(t, http.MethodPost, "/api/v1/application", state.accessToken, map[string]string{
			"company":          "Acme",
			"position":         "Backend Engineer",
			"application_type": "Website",
		})
		if resp.StatusCode != http.StatusCreated {
			fail(t, "create application status: %d body: %s", resp.StatusCode, string(body))
		}
		var appRes struct {
			ID            uint64 `json:"id"`
			CurrentStatus *struct {
				StatusType string `json:"status_type"`
			} `json:"current_status"`
		}
		if err := json.Unmarshal(body, &appRes); err != nil {
			fail(t, "create application unmarshal failed: %v", err)
		}
		if appRes.ID == 0 {
			fail(t, "expected application id")
		}
		if appRes.CurrentStatus == nil || appRes.CurrentStatus.StatusType != "Applied" {
			fail(t, "expected implicit Applied status, got %s", string(body))
		}
		state.applicationID = appRes.ID
	})

	step("GetApplication", func(t *testing.T) {
		path := fmt.Sprintf("/api/v1/application/%d", state.applicationID)
		resp, body := client.doJSON(t, http.MethodGet, path, state.accessToken, nil)
		if resp.StatusCode != http.StatusOK {
			fail(t, "get application status: %d body: %s", resp.StatusCode, string(body))
		}
		var appRes struct {
			Company       string `json:"company"`
			CurrentStatus *struct {
				StatusType string `json:"status_type"`
			} `json:"current_status"`
		}
		if err := json.Unmarshal(body, &appRes); err != nil {
			fail(t, "get application unmarshal failed: %v", err)
		}
		if appRes.Company != "Acme" {
			fail(t, "unexpected company: %s", appRes.Company)
		}
		if appRes.CurrentStatus == nil || appRes.CurrentStatus.StatusType != "Applied" {
			fail(t, "expected current status Applied, got %s", string(body))
		}
	})

	step("UpdateApplication", func(t *testing.T) {
		path := fmt.Sprintf("/api/v1/application/%d", state.applicationID)
		resp, body := client.doJSON(t, http.MethodPatch, path, state.accessToken, map[string]string{
			"company":          "Acme Corp",
			"position":         "Staff Engineer",
			"application_type": "Email",
		})
		if resp.StatusCode != http.StatusOK {
			fail(t, "update application status: %d body: %s", resp.StatusCode, string(body))
		}
		var appRes struct {
			Company         string `json:"company"`
			Position        string `json:"position"`
			ApplicationType string `json:"application_type"`
		}
		if err := json.Unmarshal(body, &appRes); err != nil {
			fail(t, "update application unmarshal failed: %v", err)
		}
		if appRes.Company != "Acme Corp" || appRes.Position != "Staff Engineer" || appRes.ApplicationType != "Email" {
			fail(t, "unexpected updated application: %s", string(body))
		}
	})

	step("UpdateAfterwardsVisibleInGet", func(t *testing.T) {
		path := fmt.Sprintf("/api/v1/application/%d", state.applicationID)
		resp, body := client.doJSON(t, http.MethodGet, path, state.accessToken, nil)
		if resp.StatusCode != http.StatusOK {
			fail(t, "get application status: %d body: %s", resp.StatusCode, string(body))
		}
		var appRes struct {
			Company string `json:"company"`
		}
		if err := json.Unmarshal(body, &appRes); err != nil {
			fail(t, "get application unmarshal failed: %v", err)
		}
		if appRes.Company != "Acme Corp" {
			fail(t, "expected updated company, got %s", appRes.Company)
		}
	})

	step("ListApplications", func(t *testing.T) {
		resp, body := client.doJSON(t, http.MethodGet, "/api/v1/application", state.accessToken, nil)
		if resp.StatusCode != http.StatusOK {
			fail(t, "list status: %d body: %s", resp.StatusCode, string(body))
		}
		var listRes struct {
			Total int64 `json:"total"`
		}
		if err := json.Unmarshal(body, &listRes); err != nil {
			fail(t, "list unmarshal failed: %v", err)
		}
		if listRes.Total != 1 {
			fail(t, "expected one application, got %d", listRes.Total)
		}
	})

	step("AppendStatus", func(t *testing.T) {
		resp, body := client.doJSON(t, http.MethodPost, "/api/v1/application/status", state.accessToken, map[string]any{
			"application_id": state.applicationID,
			"status_type":    "Interview",
			"interview_type": "Technical",
		})
		if resp.StatusCode != http.StatusCreated {
			fail(t, "append status: %d body: %s", resp.StatusCode, string(body))
		}
	})

	step("AppendStatusDetailMismatch", func(t *testing.T) {
		resp, _ := client.doJSON(t, http.MethodPost, "/api/v1/application/status", state.accessToken, map[string]any{
			"application_id": state.applicationID,
			"status_type":    "Applied",
			"test_type":      "Technical",
		})
		if resp.StatusCode != http.StatusBadRequest {
			fail(t, "expected detail mismatch to fail, got %d", resp.StatusCode)
		}
	})

	step("StatusHistory", func(t *testing.T) {
		path := fmt.Sprintf("/api/v1/application/%d/history", state.applicationID)
		resp, body := client.doJSON(t, http.MethodGet, path, state.accessToken, nil)
		if resp.StatusCode != http.StatusOK {
			fail(t, "history status: %d body: %s", resp.StatusCode, string(body))
		}
		var historyRes struct {
			History []struct {
				StatusType string `json:"status_type"`
			} `json:"history"`
		}
		if err := json.Unmarshal(body, &historyRes); err != nil {
			fail(t, "history unmarshal failed: %v", err)
		}
		if len(historyRes.History) != 2 {
			fail(t, "expected two history entries, got %d", len(historyRes.History))
		}
		if historyRes.History[0].StatusType != "Applied" || historyRes.History[1].StatusType != "Interview" {
			fail(t, "expected chronological history, got %s", string(body))
		}
	})

	step("DeleteApplication", func(t *testing.T) {
		path := fmt.Sprintf("/api/v1/application/%d", state.applicationID)
		resp, body := client.doJSON(t, http.MethodDelete, path, state.accessToken, nil)
		if resp.StatusCode != http.StatusOK {
			fail(t, "delete application status: %d body: %s", resp.StatusCode, string(body))
		}
	})

	step("ListAfterDelete", func(t *testing.T) {
		resp, body := client.doJSON(t, http.MethodGet, "/api/v1/application", state.accessToken, nil)
		if resp.StatusCode != http.StatusOK {
			fail(t, "list status: %d body: %s", resp.StatusCode, string(body))
		}
		var listRes struct {
			Total int64 `json:"total"`
		}
		if err := json.Unmarshal(body, &listRes); err != nil {
			fail(t, "list unmarshal failed: %v", err)
		}
		if listRes.Total != 0 {
			fail(t, "expected no applications after delete, got %d", listRes.Total)
		}
	})

	step("GetAfterDelete", func(t *testing.T) {
		path := fmt.Sprintf("/api/v1/application/%d", state.applicationID)
		resp, _ := client.doJSON(t, http.MethodGet, path, state.accessToken, nil)
		if resp.StatusCode != http.StatusNotFound {
			fail(t, "expected deleted application to be hidden, got %d", resp.StatusCode)
		}
	})

	step("AppendStatusAfterDelete", func(t *testing.T) {
		resp, _ := client.doJSON(t, http.MethodPost, "/api/v1/application/status", state.accessToken, map[string]any{
			"application_id": state.applicationID,
			"status_type":    "Rejected",
		})
		if resp.StatusCode != http.StatusNotFound {
			fail(t, "expected append to deleted application to fail, got %d", resp.StatusCode)
		}
	})

	step("DeleteAccount", func(t *testing.T) {
		resp, body := client.doJSON(t, http.MethodDelete, "/api/v1/user/me", state.accessToken, nil)
		if resp.StatusCode != http.StatusOK {
			fail(t, "delete account status: %d body: %s", resp.StatusCode, string(body))
		}
	})

	step("LoginAfterDelete", func(t *testing.T) {
		resp, _ := client.postJSON(t, "/api/v1/login", map[string]string{
			"email":    state.email,
			"password": state.password,
		})
		if resp.StatusCode != http.StatusUnauthorized {
			fail(t, "expected login after delete to fail, got %d", resp.StatusCode)
		}
	})

	step("RefreshAfterDelete", func(t *testing.T) {
		resp, _ := client.postJSON(t, "/api/v1/refresh-token", map[string]string{
			"refresh_token": state.newRefreshToken,
		})
		if resp.StatusCode != http.StatusUnauthorized {
			fail(t, "expected refresh after delete to fail, got %d", resp.StatusCode)
		}
	})
}
