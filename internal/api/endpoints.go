// Package api implements the Moon (Nintendo parental controls) HTTP client.
// Every request passes through a reauthentication guard that refreshes the
// bearer credential shortly before it expires and retries exactly once when
// the vendor rejects a fresh-looking token.
package api

import "fmt"

// BaseURL is the Moon API origin the mobile application talks to.
const BaseURL = "https://api-lp1.pctl.srv.nintendo.net/moon/v1"

// Headers the Moon API expects on every request. The values mirror the
// Android build of the official application.
const (
	UserAgent        = "moon_ANDROID/1.18.0 (com.nintendo.znma; build:275; ANDROID 33)"
	MobileAppPkg     = "com.nintendo.znma"
	MobileAppVersion = "1.18.0"
	MobileAppBuild   = "275"
	OSName           = "ANDROID"
	OSVersion        = "33"
	DeviceModel      = "Pixel 6"
)

func accountDetailsURL(base, accountID string) string {
	return fmt.Sprintf("%s/users/%s", base, accountID)
}

func accountDevicesURL(base, accountID string) string {
	return fmt.Sprintf("%s/users/%s/devices?filter.device.activated.$eq=true", base, accountID)
}

func deviceDailySummariesURL(base, deviceID string) string {
	return fmt.Sprintf("%s/devices/%s/daily_summaries", base, deviceID)
}

func deviceMonthlySummariesURL(base, deviceID string) string {
	return fmt.Sprintf("%s/devices/%s/monthly_summaries", base, deviceID)
}

func deviceParentalControlSettingURL(base, deviceID string) string {
	return fmt.Sprintf("%s/devices/%s/parental_control_setting", base, deviceID)
}

func deviceParentalControlSettingStateURL(base, deviceID string) string {
	return fmt.Sprintf("%s/devices/%s/parental_control_setting_state", base, deviceID)
}

func deviceAlarmSettingStateURL(base, deviceID string) string {
	return fmt.Sprintf("%s/devices/%s/alarm_setting_state", base, deviceID)
}
