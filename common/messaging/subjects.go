package messaging

import "strings"

// Subject constants for the order event bus.
// Follow the pattern: {domain}.{action}.{resource}
const (
	// SubjectOrderEventsRaw carries raw order lifecycle events from
	// upstream producers.
	SubjectOrderEventsRaw = "orders.events.raw"

	// SubjectOrderDLQPrefix is the prefix for dead-letter subjects.
	// The rejection reason is appended as a slug: orders.dlq.<reason>
	SubjectOrderDLQPrefix = "orders.dlq"

	// SubjectOrderDLQAll matches every dead-letter subject.
	SubjectOrderDLQAll = "orders.dlq.>"
)

// Queue group names for load-balanced consumers.
// Workers in the same queue group share messages (each message processed once).
const (
	QueueOrderWorkers = "orderflow-workers"
)

// DLQSubject returns the dead-letter subject for a rejection reason.
// Reasons are free-form text; they are slugified to stay within the
// subject grammar. Example: "negative amount" -> orders.dlq.negative-amount
func DLQSubject(reason string) string {
	return SubjectOrderDLQPrefix + "." + ReasonSlug(reason)
}

// ReasonSlug converts a rejection reason into a subject token.
func ReasonSlug(reason string) string {
	slug := strings.ToLower(strings.TrimSpace(reason))
	slug = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		default:
			return '-'
		}
	}, slug)
	slug = strings.Trim(slug, "-")
	for strings.Contains(slug, "--") {
		slug = strings.ReplaceAll(slug, "--", "-")
	}
	if slug == "" {
		return "unknown"
	}
	return slug
}
