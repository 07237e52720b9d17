package domain

// EventType names a registry notification.
type EventType string

const (
	EventCommunityCreated EventType = "community.created"
	EventCouncilChanged   EventType = "community.council_changed"
)

// Event is a notification emitted by a committed registry operation.
// Councils is only set for EventCouncilChanged.
type Event struct {
	Type        EventType  `json:"type"`
	Owner       Identity   `json:"owner"`
	Name        string     `json:"name"`
	CommunityID uint64     `json:"communityID"`
	Councils    []Identity `json:"councils,omitempty"`
}

func CommunityCreated(c Community) Event {
	return Event{
		Type:        EventCommunityCreated,
		Owner:       c.Owner,
		Name:        c.Name,
		CommunityID: c.ID,
	}
}

func CouncilChanged(c Community) Event {
	c = c.Clone()
	return Event{
		Type:        EventCouncilChanged,
		Owner:       c.Owner,
		Name:        c.Name,
		CommunityID: c.ID,
		Councils:    c.Councils,
	}
}
