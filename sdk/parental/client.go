// Package parental is the public client for the Nintendo parental-controls
// (Moon) API. It exposes the paired console devices, the players seen on
// them, their application usage, and the time-restriction settings, on top of
// the PKCE login flow implemented by internal/auth.
package parental

import (
	"context"
	"net/http"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/moonctl/nintendoparental/internal/api"
	"github.com/moonctl/nintendoparental/internal/auth"
)

// UpdateObserver is invoked synchronously after a confirmed data update, once
// per refreshed device.
type UpdateObserver func(device *Device)

// Option configures a NintendoParental client.
type Option func(*options)

type options struct {
	timezone   string
	language   string
	httpClient *http.Client
	baseURL    string
}

// WithBaseURL overrides the Moon API origin, primarily for tests and mock
// servers.
func WithBaseURL(baseURL string) Option {
	return func(o *options) { o.baseURL = baseURL }
}

// WithTimezone sets the timezone reported to the Moon API. Defaults to
// Europe/London.
func WithTimezone(timezone string) Option {
	return func(o *options) { o.timezone = timezone }
}

// WithLanguage sets the language tag reported to the Moon API. Defaults to
// en-GB.
func WithLanguage(language string) Option {
	return func(o *options) { o.language = language }
}

// WithHTTPClient sets the HTTP client used for Moon API requests. The
// client's timeout policy governs; the library enforces none of its own.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(o *options) { o.httpClient = httpClient }
}

// NintendoParental aggregates the devices paired with one parental-controls
// account. All of its API calls share the authenticator's session state and
// pass through the reauthentication guard.
type NintendoParental struct {
	api *api.Client

	mu        sync.RWMutex
	devices   map[string]*Device
	observers []UpdateObserver
}

// NewClient creates a parental-controls client on top of a completed login.
// The authenticator must already hold a session (CompleteLogin,
// CompleteLoginWithStoredToken or Refresh succeeded at least once).
func NewClient(authenticator *auth.Authenticator, opts ...Option) *NintendoParental {
	o := options{timezone: "Europe/London", language: "en-GB"}
	for _, opt := range opts {
		opt(&o)
	}

	apiClient := api.NewClient(authenticator, o.httpClient, o.timezone, o.language)
	if o.baseURL != "" {
		apiClient.SetBaseURL(o.baseURL)
	}
	return &NintendoParental{
		api:     apiClient,
		devices: make(map[string]*Device),
	}
}

// AccountID returns the account id of the authenticated user.
func (n *NintendoParental) AccountID() string { return n.api.AccountID() }

// RegisterUpdateObserver adds a callback notified synchronously after each
// confirmed device update.
func (n *NintendoParental) RegisterUpdateObserver(observer UpdateObserver) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.observers = append(n.observers, observer)
}

// Devices returns the currently known devices.
func (n *NintendoParental) Devices() []*Device {
	n.mu.RLock()
	defer n.mu.RUnlock()
	devices := make([]*Device, 0, len(n.devices))
	for _, device := range n.devices {
		devices = append(devices, device)
	}
	return devices
}

// Device returns a single device by id, nil when unknown.
func (n *NintendoParental) Device(deviceID string) *Device {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.devices[deviceID]
}

// Update refreshes the device list and each device's daily summaries, then
// notifies the registered observers. Devices no longer returned by the API
// are dropped.
func (n *NintendoParental) Update(ctx context.Context) error {
	body, err := n.api.GetAccountDevices(ctx)
	if err != nil {
		return err
	}

	devices, err := parseDevices(n.api, body)
	if err != nil {
		return err
	}
	log.Debugf("found %d device(s)", len(devices))

	refreshed := make(map[string]*Device, len(devices))
	updated := make([]*Device, 0, len(devices))
	for _, listed := range devices {
		device := listed
		if existing := n.Device(listed.DeviceID); existing != nil {
			existing.applyListing(listed)
			device = existing
		}
		if errUpdate := device.UpdateDailySummaries(ctx); errUpdate != nil {
			return errUpdate
		}
		refreshed[device.DeviceID] = device
		updated = append(updated, device)
	}

	n.mu.Lock()
	n.devices = refreshed
	observers := append([]UpdateObserver(nil), n.observers...)
	n.mu.Unlock()

	for _, observer := range observers {
		for _, device := range updated {
			observer(device)
		}
	}
	return nil
}
