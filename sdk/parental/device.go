package parental

import (
	"context"
	"fmt"
	"sync"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/moonctl/nintendoparental/internal/api"
)

// AlarmSettingState is the suspension-alarm visibility state of a device.
type AlarmSettingState int

// Alarm setting states understood by the Moon API.
const (
	AlarmSuccess AlarmSettingState = iota
	AlarmToVisible
	AlarmToInvisible
)

// String returns the wire name of the alarm state.
func (s AlarmSettingState) String() string {
	switch s {
	case AlarmToVisible:
		return "TO_VISIBLE"
	case AlarmToInvisible:
		return "TO_INVISIBLE"
	default:
		return "SUCCESS"
	}
}

// alarmSettingStateFromWire maps a wire status back to its state. Unknown
// statuses map to AlarmSuccess, the vendor's steady state.
func alarmSettingStateFromWire(status string) AlarmSettingState {
	switch status {
	case "TO_VISIBLE":
		return AlarmToVisible
	case "TO_INVISIBLE":
		return AlarmToInvisible
	default:
		return AlarmSuccess
	}
}

// Device is one console paired with the parental-controls account. Its
// mutable state is guarded by a lock so callers may read a device while an
// Update is in flight.
type Device struct {
	api *api.Client

	// DeviceID identifies the console on Moon API paths. Immutable.
	DeviceID string

	mu               sync.RWMutex
	label            string
	settingUpdatedAt string
	players          []*Player
	applications     []*Application
	todayPlayingTime int64
	limitTime        int64
}

// Label returns the name the console reports.
func (d *Device) Label() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.label
}

// SettingUpdatedAt returns when the parental-control setting last
// synchronized to the console.
func (d *Device) SettingUpdatedAt() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.settingUpdatedAt
}

// Players returns the profiles seen on the device today.
func (d *Device) Players() []*Player {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]*Player(nil), d.players...)
}

// Applications returns the titles observed on the device so far.
func (d *Device) Applications() []*Application {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]*Application(nil), d.applications...)
}

// TodayPlayingTime returns the total play time recorded today, in minutes.
func (d *Device) TodayPlayingTime() int64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.todayPlayingTime
}

// LimitTime returns the configured daily play-time limit in minutes, -1 when
// no limit is set.
func (d *Device) LimitTime() int64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.limitTime
}

// parseDevices converts a device-listing response into Device values bound to
// the given API client.
func parseDevices(apiClient *api.Client, body []byte) ([]*Device, error) {
	items := gjson.GetBytes(body, "items")
	if !items.Exists() {
		return nil, fmt.Errorf("invalid device listing response: no items field")
	}

	var devices []*Device
	items.ForEach(func(_, item gjson.Result) bool {
		devices = append(devices, &Device{
			api:              apiClient,
			DeviceID:         item.Get("deviceId").String(),
			label:            item.Get("label").String(),
			settingUpdatedAt: item.Get("parentalControlSettingState.updatedAt").String(),
			limitTime:        -1,
		})
		return true
	})
	return devices, nil
}

// applyListing refreshes the listing-level fields from a newly parsed device
// while keeping the accumulated players and applications.
func (d *Device) applyListing(listed *Device) {
	d.mu.Lock()
	d.label = listed.label
	d.settingUpdatedAt = listed.settingUpdatedAt
	d.mu.Unlock()
}

// UpdateDailySummaries fetches today's summary and rebuilds the device's
// players and applications from it. The new values are parsed off-lock and
// swapped in together; previously returned slices are never written to.
func (d *Device) UpdateDailySummaries(ctx context.Context) error {
	body, err := d.api.GetDeviceDailySummaries(ctx, d.DeviceID)
	if err != nil {
		return err
	}

	today := gjson.GetBytes(body, "items.0")
	if !today.Exists() {
		d.mu.Lock()
		d.players = nil
		d.applications = nil
		d.todayPlayingTime = 0
		d.mu.Unlock()
		return nil
	}

	players := parsePlayers(today)
	var total int64
	for _, player := range players {
		total += player.PlayingTime
	}
	fresh := parseApplications(today.Get("playedApps"))

	d.mu.Lock()
	d.players = players
	d.applications = mergeApplications(d.applications, fresh)
	d.todayPlayingTime = total
	d.mu.Unlock()
	return nil
}

// UpdateMaxDailyPlaytime sets the daily play-time limit in minutes. A
// negative value removes the limit. The parental-control setting document is
// fetched, edited in place and posted back, so unrelated settings survive the
// round trip.
func (d *Device) UpdateMaxDailyPlaytime(ctx context.Context, minutes int64) error {
	setting, err := d.api.GetParentalControlSetting(ctx, d.DeviceID)
	if err != nil {
		return err
	}

	enabled := minutes >= 0
	setting, err = sjson.SetBytes(setting, "playTimerRegulations.dailyRegulations.timeToPlayInOneDay.enabled", enabled)
	if err != nil {
		return fmt.Errorf("failed to edit setting document: %w", err)
	}
	if enabled {
		setting, err = sjson.SetBytes(setting, "playTimerRegulations.dailyRegulations.timeToPlayInOneDay.limitTime", minutes)
		if err != nil {
			return fmt.Errorf("failed to edit setting document: %w", err)
		}
	}

	if _, err = d.api.UpdateParentalControlSetting(ctx, d.DeviceID, setting); err != nil {
		return err
	}

	d.mu.Lock()
	if enabled {
		d.limitTime = minutes
	} else {
		d.limitTime = -1
	}
	d.mu.Unlock()
	return nil
}

// AlarmState fetches the current suspension-alarm visibility state of the
// console.
func (d *Device) AlarmState(ctx context.Context) (AlarmSettingState, error) {
	body, err := d.api.GetAlarmSettingState(ctx, d.DeviceID)
	if err != nil {
		return AlarmSuccess, err
	}
	return alarmSettingStateFromWire(gjson.GetBytes(body, "status").String()), nil
}

// SetAlarmState changes the suspension-alarm visibility on the console.
func (d *Device) SetAlarmState(ctx context.Context, state AlarmSettingState) error {
	body, err := sjson.SetBytes([]byte(`{}`), "status", state.String())
	if err != nil {
		return fmt.Errorf("failed to build alarm state body: %w", err)
	}
	_, err = d.api.UpdateAlarmSettingState(ctx, d.DeviceID, body)
	return err
}

// SyncState fetches the device-side synchronization state of the
// parental-control setting.
func (d *Device) SyncState(ctx context.Context) (string, error) {
	body, err := d.api.GetParentalControlSettingState(ctx, d.DeviceID)
	if err != nil {
		return "", err
	}
	return gjson.GetBytes(body, "synchronizationStatus").String(), nil
}

// MonthlySummary fetches the raw monthly summaries for the device. Callers
// needing per-application detail can parse it with ApplicationsFromMonthly.
func (d *Device) MonthlySummary(ctx context.Context) ([]byte, error) {
	return d.api.GetDeviceMonthlySummaries(ctx, d.DeviceID)
}
