package types

// Pure JSON contracts for the queue payload. Not DB models. Field names are
// the wire contract with the enqueuer; do not rename.

type UserProfile struct {
	Role           string   `json:"role"`         // student|professional|career_changer
	CareerStage    string   `json:"career_stage"`
	SkillLevel     string   `json:"skill_level"`     // beginner|intermediate|expert
	LearningStyle  string   `json:"learning_style"`  // hands_on|video|reading|mixed
	TimeCommitment string   `json:"time_commitment"` // 1-3|3-5|5-10|10+
	Industry       string   `json:"industry"`
	CurrentRole    string   `json:"current_role,omitempty"`
	Bio            string   `json:"bio,omitempty"`
	Interests      []string `json:"interests,omitempty"`
}

type JobMessage struct {
	ModuleID       string      `json:"module_id"`
	RoadmapID      string      `json:"roadmap_id"`
	Title          string      `json:"title"`
	Difficulty     string      `json:"difficulty"`
	UserProfile    UserProfile `json:"user_profile"`
	IdempotencyKey string      `json:"idempotency_key"`
	Timestamp      string      `json:"timestamp"` // ISO-8601
}
