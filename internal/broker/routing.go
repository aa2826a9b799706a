package broker

import "github.com/google/uuid"

// Change events only tell subscribers to re-query; the records themselves
// live in the database.
var (
	StreamName      = "COVE"
	SubjectAll      = StreamName + ".>"
	SubjectMessages = StreamName + "." + "messages"
	SubjectProfiles = StreamName + "." + "profiles"
)

// MessageSubject is the subject carrying changes of one conversation, keyed
// by model.Pair.Key.
func MessageSubject(pairKey string) string {
	return SubjectMessages + "." + pairKey
}

// ProfileSubject is the subject carrying changes of one profile.
func ProfileSubject(userID uuid.UUID) string {
	return SubjectProfiles + "." + userID.String()
}

// AllProfilesSubject matches changes of every profile.
func AllProfilesSubject() string {
	return SubjectProfiles + ".>"
}
