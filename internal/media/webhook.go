package media

import "encoding/json"

// Webhook event names delivered by the media transport.
const (
	EventParticipantJoined = "participant_joined"
	EventParticipantLeft   = "participant_left"
	EventTrackPublished    = "track_published"
	EventTrackUnpublished  = "track_unpublished"
)

// WebhookEvent is the inbound payload posted by the transport. The call
// id rides in the room metadata; rooms created outside this system carry
// no metadata and their events are ignored.
type WebhookEvent struct {
	Event       string      `json:"event"`
	Room        Room        `json:"room"`
	Participant Participant `json:"participant"`
	Track       Track       `json:"track"`
}

// Room describes the room an event occurred in.
type Room struct {
	Name     string `json:"name"`
	Metadata string `json:"metadata"`
}

// Participant identifies the joining or leaving participant.
type Participant struct {
	Identity string `json:"identity"`
}

// Track identifies a published or unpublished track.
type Track struct {
	SID  string `json:"sid"`
	Type string `json:"type"`
}

// roomMetadata is the JSON document this system stamps into room
// metadata at creation time.
type roomMetadata struct {
	CallID string `json:"callId"`
}

// EncodeRoomMetadata renders the metadata stored on a room so later
// webhook events can be traced back to their call.
func EncodeRoomMetadata(callID string) string {
	b, _ := json.Marshal(roomMetadata{CallID: callID})
	return string(b)
}

// CallIDFromMetadata extracts the owning call id from room metadata.
// Returns "" for empty, foreign, or malformed metadata.
func CallIDFromMetadata(metadata string) string {
	if metadata == "" {
		return ""
	}
	var m roomMetadata
	if err := json.Unmarshal([]byte(metadata), &m); err != nil {
		return ""
	}
	return m.CallID
}
