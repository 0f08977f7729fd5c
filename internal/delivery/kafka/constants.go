package kafka

const (
	TopicQueueTokenChanges = "queue_tokens.changes"

	HeaderTimestamp  = "timestamp"
	HeaderChangeType = "change_type"
)
