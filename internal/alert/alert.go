// Package alert models the Alertmanager webhook payload.
package alert

import (
	"encoding/json"
	"maps"
	"slices"
)

// SupportedVersion is the only webhook payload version accepted.
const SupportedVersion = "4"

// Webhook is one Alertmanager notification for an alert group.
type Webhook struct {
	// Version is kept raw so a non-string version can be reported as-is.
	Version           json.RawMessage   `json:"version"`
	GroupKey          string            `json:"groupKey"`
	TruncatedAlerts   int               `json:"truncatedAlerts"`
	Status            string            `json:"status"`
	Receiver          string            `json:"receiver"`
	GroupLabels       map[string]string `json:"groupLabels"`
	CommonLabels      map[string]string `json:"commonLabels"`
	CommonAnnotations map[string]string `json:"commonAnnotations"`
	ExternalURL       string            `json:"externalURL"`
	Alerts            []Alert           `json:"alerts"`
}

// Alert is a single alert within a webhook. Timestamps are only handed to
// templates, so they are kept as sent.
type Alert struct {
	Status       string            `json:"status"`
	Labels       map[string]string `json:"labels"`
	Annotations  map[string]string `json:"annotations"`
	StartsAt     string            `json:"startsAt"`
	EndsAt       string            `json:"endsAt"`
	GeneratorURL string            `json:"generatorURL"`
	Fingerprint  string            `json:"fingerprint"`
}

// HasSupportedVersion reports whether the payload version is the string "4".
func (w *Webhook) HasSupportedVersion() bool {
	var v string
	if err := json.Unmarshal(w.Version, &v); err != nil {
		return false
	}
	return v == SupportedVersion
}

// VersionString returns the version as sent, for error messages.
func (w *Webhook) VersionString() string {
	if len(w.Version) == 0 {
		return "<missing>"
	}
	return string(w.Version)
}

// SortAlerts orders alerts by their label values, each alert's values
// sorted first. Re-deliveries of the same group in a different order
// therefore render identically. The sort is stable.
func (w *Webhook) SortAlerts() {
	type keyed struct {
		key []string
		al  Alert
	}
	ks := make([]keyed, len(w.Alerts))
	for i, al := range w.Alerts {
		ks[i] = keyed{key: sortedValues(al.Labels), al: al}
	}
	slices.SortStableFunc(ks, func(a, b keyed) int {
		return slices.Compare(a.key, b.key)
	})
	for i := range ks {
		w.Alerts[i] = ks[i].al
	}
}

func sortedValues(m map[string]string) []string {
	return slices.Sorted(maps.Values(m))
}

// TemplateData projects the webhook into the map handed to title and
// description templates. Keys use the payload's JSON names, so a title
// template reads {{ .groupLabels.alertname }}. Label and annotation maps
// are never nil.
func (w *Webhook) TemplateData() map[string]any {
	alerts := make([]map[string]any, 0, len(w.Alerts))
	for i := range w.Alerts {
		alerts = append(alerts, w.Alerts[i].templateData())
	}
	return map[string]any{
		"version":           w.versionValue(),
		"groupKey":          w.GroupKey,
		"truncatedAlerts":   w.TruncatedAlerts,
		"status":            w.Status,
		"receiver":          w.Receiver,
		"groupLabels":       orEmpty(w.GroupLabels),
		"commonLabels":      orEmpty(w.CommonLabels),
		"commonAnnotations": orEmpty(w.CommonAnnotations),
		"externalURL":       w.ExternalURL,
		"alerts":            alerts,
	}
}

func (w *Webhook) versionValue() string {
	var v string
	if err := json.Unmarshal(w.Version, &v); err != nil {
		return string(w.Version)
	}
	return v
}

func (a *Alert) templateData() map[string]any {
	return map[string]any{
		"status":       a.Status,
		"labels":       orEmpty(a.Labels),
		"annotations":  orEmpty(a.Annotations),
		"startsAt":     a.StartsAt,
		"endsAt":       a.EndsAt,
		"generatorURL": a.GeneratorURL,
		"fingerprint":  a.Fingerprint,
	}
}

func orEmpty(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}
