package entity

import "time"

type OutputStatus string

const (
	OutputStatusPending  OutputStatus = "pending"
	OutputStatusApproved OutputStatus = "approved"
	OutputStatusRejected OutputStatus = "rejected"
)

// AgentOutput is the reviewable content unit one agent produced. At most one
// live entry exists per agent; regeneration replaces it wholesale.
type AgentOutput struct {
	AgentId      string               `json:"agent_id"`
	Status       OutputStatus         `json:"status"`
	Content      string               `json:"content"`
	QualityScore float64              `json:"quality_score"`
	GeneratedAt  time.Time            `json:"generated_at"`
	ApprovedAt   *time.Time           `json:"approved_at,omitempty"`
	UserFeedback string               `json:"user_feedback,omitempty"`
	Metadata     *AgentOutputMetadata `json:"metadata,omitempty"`
}

type AgentOutputMetadata struct {
	TokensUsed           int           `json:"tokens_used"`
	ProcessingTime       time.Duration `json:"processing_time"`
	KnowledgeSourcesUsed []string      `json:"knowledge_sources_used,omitempty"`
	Model                string        `json:"model,omitempty"`
}

// Approve marks the output approved with optional feedback.
func (o *AgentOutput) Approve(feedback string) {
	now := time.Now().UTC()
	o.Status = OutputStatusApproved
	o.ApprovedAt = &now
	if feedback != "" {
		o.UserFeedback = feedback
	}
}
