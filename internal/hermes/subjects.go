package hermes

import "strings"

const (
	SubjectRescoreCompleted = "listing.rescore.completed"

	StreamName     = "IDEALITY_EVENTS"
	StreamSubjects = "listing.>"
	StreamMaxAge   = "720h" // 30 days
)

func SubjectPropertyScored(propertyID string) string {
	return "listing.property." + propertyID + ".scored"
}

func SubjectFavoriteAdded(userID string) string {
	return "listing.favorite." + subjectToken(userID) + ".added"
}

func SubjectFavoriteRemoved(userID string) string {
	return "listing.favorite." + subjectToken(userID) + ".removed"
}

// subjectToken makes an externally supplied ID safe as a single subject
// token. Separators, wildcards and whitespace become '_'; the raw ID still
// travels in the event payload.
func subjectToken(id string) string {
	if id == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\r', '\n':
			return '_'
		}
		return r
	}, id)
}

func SubjectReportGenerated(propertyID string) string {
	return "listing.report." + propertyID + ".generated"
}

// SubjectPropertyUpdated is published by listing ingestion when a property's
// attributes change. The wildcard form is used for subscriptions.
const SubjectPropertyUpdatedAll = "listing.property.*.updated"

func SubjectPropertyUpdated(propertyID string) string {
	return "listing.property." + propertyID + ".updated"
}
