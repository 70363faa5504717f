// Package reconcile keeps one open tracker ticket per alert group. It
// defines the Engine (create / update / leave unchanged), its collaborators
// (Resolver, Locator, Writer), the Tracker capability they call, and the
// error taxonomy surfaced to the webhook layer.
package reconcile
