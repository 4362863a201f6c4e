package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/moonctl/nintendoparental/internal/auth"
)

// RefreshLead is the safety margin subtracted from the credential expiry: a
// credential inside this window is refreshed before the request is sent.
const RefreshLead = 60 * time.Second

// APIError is returned for any non-2xx Moon API response that is not an
// authorization failure handled by the guard. It passes through to the caller
// unchanged.
type APIError struct {
	// StatusCode is the HTTP status returned by the endpoint.
	StatusCode int
	// Body holds the raw response body for diagnosis.
	Body []byte
}

// Error returns a string representation of the API error.
func (e *APIError) Error() string {
	return fmt.Sprintf("moon API error with status %d", e.StatusCode)
}

// Client executes authenticated requests against the Moon API on behalf of
// the domain objects. It consults the shared session state before every call
// and delegates credential refreshes to the Authenticator.
type Client struct {
	authenticator *auth.Authenticator
	httpClient    *http.Client
	timezone      string
	language      string
	smartDeviceID string

	baseURL     string
	refreshLead time.Duration
}

// NewClient creates a Moon API client bound to the given authenticator. The
// httpClient may be nil, in which case a default client is used. Timezone and
// language are sent on every request in the X-Moon-* headers.
func NewClient(authenticator *auth.Authenticator, httpClient *http.Client, timezone, language string) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		authenticator: authenticator,
		httpClient:    httpClient,
		timezone:      timezone,
		language:      language,
		smartDeviceID: uuid.NewString(),
		baseURL:       BaseURL,
		refreshLead:   RefreshLead,
	}
}

// SetBaseURL overrides the Moon API origin, primarily for tests and mock
// servers.
func (c *Client) SetBaseURL(baseURL string) { c.baseURL = baseURL }

// AccountID returns the parental-controls account id of the authenticated
// user, empty before the first completed login.
func (c *Client) AccountID() string {
	if identity := c.authenticator.Session().Identity(); identity != nil {
		return identity.UserID
	}
	return ""
}

// Do sends an authenticated request. The guard refreshes the credential when
// it has expired or is inside the refresh lead, and on a 401/403 response it
// refreshes once more and retries exactly once; a second authorization
// failure surfaces as a ReauthenticationError. All other statuses are the
// caller's business: 2xx returns the body, anything else an *APIError.
func (c *Client) Do(ctx context.Context, method, requestURL string, body []byte) ([]byte, error) {
	if c.authenticator.Session().Credential().ExpiresWithin(c.refreshLead) {
		log.Debug("access token expired or expiring, requesting refresh")
		if err := c.authenticator.Refresh(ctx); err != nil {
			return nil, err
		}
	}

	status, responseBody, err := c.send(ctx, method, requestURL, body)
	if err != nil {
		return nil, err
	}

	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		log.Debugf("request to %s rejected with status %d, refreshing once", requestURL, status)
		if errRefresh := c.authenticator.Refresh(ctx); errRefresh != nil {
			return nil, errRefresh
		}
		status, responseBody, err = c.send(ctx, method, requestURL, body)
		if err != nil {
			return nil, err
		}
		if status == http.StatusUnauthorized || status == http.StatusForbidden {
			return nil, &auth.ReauthenticationError{
				Message: fmt.Sprintf("request still unauthorized after refresh (status %d)", status),
			}
		}
	}

	if status < 200 || status >= 300 {
		return nil, &APIError{StatusCode: status, Body: responseBody}
	}
	return responseBody, nil
}

// send performs one HTTP round trip with the current bearer token and the
// Moon headers attached.
func (c *Client) send(ctx context.Context, method, requestURL string, body []byte) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, requestURL, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}

	credential := c.authenticator.Session().Credential()
	if credential == nil {
		return 0, nil, &auth.ReauthenticationError{Message: "no access credential held"}
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+credential.AccessToken)
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("X-Moon-App-Id", MobileAppPkg)
	req.Header.Set("X-Moon-Os", OSName)
	req.Header.Set("X-Moon-Os-Version", OSVersion)
	req.Header.Set("X-Moon-Model", DeviceModel)
	req.Header.Set("X-Moon-TimeZone", c.timezone)
	req.Header.Set("X-Moon-Os-Language", c.language)
	req.Header.Set("X-Moon-App-Language", c.language)
	req.Header.Set("X-Moon-App-Display-Version", MobileAppVersion)
	req.Header.Set("X-Moon-App-Internal-Version", MobileAppBuild)
	req.Header.Set("X-Moon-Smart-Device-Id", c.smartDeviceID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, &auth.TransportError{Op: "moon API request", Err: err}
	}
	defer func() {
		if errClose := resp.Body.Close(); errClose != nil {
			log.Errorf("failed to close response body: %v", errClose)
		}
	}()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, &auth.TransportError{Op: "moon API request", Err: err}
	}
	log.Debugf("request to %s status code %d", requestURL, resp.StatusCode)
	return resp.StatusCode, responseBody, nil
}

// GetAccountDetails fetches the account document for the authenticated user.
func (c *Client) GetAccountDetails(ctx context.Context) ([]byte, error) {
	return c.Do(ctx, http.MethodGet, accountDetailsURL(c.baseURL, c.AccountID()), nil)
}

// GetAccountDevices lists the activated devices paired with the account.
func (c *Client) GetAccountDevices(ctx context.Context) ([]byte, error) {
	return c.Do(ctx, http.MethodGet, accountDevicesURL(c.baseURL, c.AccountID()), nil)
}

// GetDeviceDailySummaries fetches the per-day play summaries for a device.
func (c *Client) GetDeviceDailySummaries(ctx context.Context, deviceID string) ([]byte, error) {
	return c.Do(ctx, http.MethodGet, deviceDailySummariesURL(c.baseURL, deviceID), nil)
}

// GetDeviceMonthlySummaries fetches the per-month play summaries for a device.
func (c *Client) GetDeviceMonthlySummaries(ctx context.Context, deviceID string) ([]byte, error) {
	return c.Do(ctx, http.MethodGet, deviceMonthlySummariesURL(c.baseURL, deviceID), nil)
}

// GetParentalControlSetting fetches the current parental-control setting
// document for a device.
func (c *Client) GetParentalControlSetting(ctx context.Context, deviceID string) ([]byte, error) {
	return c.Do(ctx, http.MethodGet, deviceParentalControlSettingURL(c.baseURL, deviceID), nil)
}

// UpdateParentalControlSetting replaces the parental-control setting document
// for a device.
func (c *Client) UpdateParentalControlSetting(ctx context.Context, deviceID string, setting []byte) ([]byte, error) {
	return c.Do(ctx, http.MethodPost, deviceParentalControlSettingURL(c.baseURL, deviceID), setting)
}

// GetParentalControlSettingState fetches the device-side synchronization
// state of the parental-control setting.
func (c *Client) GetParentalControlSettingState(ctx context.Context, deviceID string) ([]byte, error) {
	return c.Do(ctx, http.MethodGet, deviceParentalControlSettingStateURL(c.baseURL, deviceID), nil)
}

// GetAlarmSettingState fetches the alarm (suspension) visibility state of a
// device. The endpoint is a POST for reads and writes alike; a read carries
// no body.
func (c *Client) GetAlarmSettingState(ctx context.Context, deviceID string) ([]byte, error) {
	return c.Do(ctx, http.MethodPost, deviceAlarmSettingStateURL(c.baseURL, deviceID), nil)
}

// UpdateAlarmSettingState updates the alarm (suspension) visibility state of
// a device.
func (c *Client) UpdateAlarmSettingState(ctx context.Context, deviceID string, body []byte) ([]byte, error) {
	return c.Do(ctx, http.MethodPost, deviceAlarmSettingStateURL(c.baseURL, deviceID), body)
}
