package config

const (
	// TopicIngestEvent is the NSQ topic for inbound media event notifications
	// (upload webhooks and bus-delivered events).
	TopicIngestEvent = "ingest.event"
)
