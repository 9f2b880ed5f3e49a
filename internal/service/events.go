package service

// EventType represents the type of event in the system
type EventType int

const (
	EventPowerHint EventType = iota
	EventInteractive
	EventResume
)

// Event represents an event in the system
type Event struct {
	Type EventType
	Data interface{}
}

// PowerHintData contains the raw payload of a power hint command
type PowerHintData struct {
	Hint string
}

// InteractiveData contains the raw payload of an interactive command
type InteractiveData struct {
	Mode string
}
