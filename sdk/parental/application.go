package parental

import (
	"time"

	"github.com/tidwall/gjson"
)

// Application is one title observed in the play summaries.
type Application struct {
	// ApplicationID identifies the title in the shop catalogue.
	ApplicationID string
	// Name is the title's display name.
	Name string
	// ImageURL is the small artwork variant.
	ImageURL string
	// ShopURL links to the title's shop page.
	ShopURL string
	// FirstPlayedDate is the first day the title was played.
	FirstPlayedDate time.Time
	// PlayingDays counts the days the title has been played.
	PlayingDays int64
	// HasUGC reports whether the title carries user-generated content.
	HasUGC bool
	// TodayPlayingTime is today's play time for this title, in minutes.
	TodayPlayingTime int64
}

// parseApplications converts a playedApps array into Application values.
func parseApplications(playedApps gjson.Result) []*Application {
	var applications []*Application
	playedApps.ForEach(func(_, raw gjson.Result) bool {
		application := &Application{
			ApplicationID:    raw.Get("applicationId").String(),
			Name:             raw.Get("title").String(),
			ImageURL:         raw.Get("imageUri.small").String(),
			ShopURL:          raw.Get("shopUri").String(),
			PlayingDays:      raw.Get("playingDays").Int(),
			HasUGC:           raw.Get("hasUgc").Bool(),
			TodayPlayingTime: raw.Get("playingTime").Int(),
		}
		if firstPlayed := raw.Get("firstPlayDate").String(); firstPlayed != "" {
			if parsed, err := time.Parse("2006-01-02", firstPlayed); err == nil {
				application.FirstPlayedDate = parsed
			}
		}
		applications = append(applications, application)
		return true
	})
	return applications
}

// ApplicationsFromMonthly parses a monthly summaries response into a
// de-duplicated application list.
func ApplicationsFromMonthly(body []byte) []*Application {
	var applications []*Application
	gjson.GetBytes(body, "items").ForEach(func(_, item gjson.Result) bool {
		applications = mergeApplications(applications, parseApplications(item.Get("playedApps")))
		return true
	})
	return applications
}

// mergeApplications folds freshly parsed applications into an existing list,
// replacing known titles with their newer parse and appending new ones. The
// result is a fresh slice; neither input nor any previously returned
// Application value is written to.
func mergeApplications(existing, fresh []*Application) []*Application {
	merged := append([]*Application(nil), existing...)
	index := make(map[string]int, len(merged))
	for i, application := range merged {
		index[application.ApplicationID] = i
	}
	for _, application := range fresh {
		if i, ok := index[application.ApplicationID]; ok {
			merged[i] = application
			continue
		}
		index[application.ApplicationID] = len(merged)
		merged = append(merged, application)
	}
	return merged
}
