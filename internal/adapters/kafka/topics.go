package kafka

// Event types published on the pipeline topic. The topic name itself is
// configured through KAFKA_PIPELINE_TOPIC.
const (
	EventResearchCompleted = "research.completed"
	EventResearchRefused   = "research.refused"
	EventResearchFailed    = "research.failed"
	EventEditCompleted     = "edit.completed"
	EventEditFailed        = "edit.failed"
)
