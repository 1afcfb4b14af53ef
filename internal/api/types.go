package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// TaskItem describes a pipeline task in a transport-friendly format.
type TaskItem struct {
	ID                  string       `json:"id"`
	Title               string       `json:"title"`
	Stage               string       `json:"stage"`
	StageLabel          string       `json:"stageLabel"`
	HasLockedPayload    bool         `json:"hasLockedPayload"`
	PayloadRef          string       `json:"payloadRef,omitempty"`
	Claim               *ClaimInfo   `json:"claim,omitempty"`
	Notes               NotesInfo    `json:"notes"`
	Posting             *PostingInfo `json:"posting,omitempty"`
	Deadline            DeadlineInfo `json:"deadline"`
	NextAction          ActionInfo   `json:"nextAction"`
	CreatedAt           string       `json:"createdAt,omitempty"`
	UpdatedAt           string       `json:"updatedAt,omitempty"`
	LastStatusChangedAt string       `json:"lastStatusChangedAt,omitempty"`
	RecordedAt          string       `json:"recordedAt,omitempty"`
	EditedAt            string       `json:"editedAt,omitempty"`
	ReadyToPostAt       string       `json:"readyToPostAt,omitempty"`
	PostedAt            string       `json:"postedAt,omitempty"`
	RejectedAt          string       `json:"rejectedAt,omitempty"`
}

// ClaimInfo describes an active or lapsed claim on a task.
type ClaimInfo struct {
	Holder    string `json:"holder"`
	Role      string `json:"role"`
	ClaimedAt string `json:"claimedAt"`
	ExpiresAt string `json:"expiresAt"`
	Active    bool   `json:"active"`
}

// NotesInfo carries the free-form notes attached at each stage.
type NotesInfo struct {
	Recording string `json:"recording,omitempty"`
	Editor    string `json:"editor,omitempty"`
	Uploader  string `json:"uploader,omitempty"`
}

// PostingInfo describes where and when a task was published.
type PostingInfo struct {
	URL          string `json:"url,omitempty"`
	Platform     string `json:"platform,omitempty"`
	Account      string `json:"account,omitempty"`
	PostedAt     string `json:"postedAt,omitempty"`
	PostingError string `json:"postingError,omitempty"`
}

// DeadlineInfo summarizes deadline tracking for the task's current stage.
type DeadlineInfo struct {
	Status        string  `json:"status"`
	Deadline      string  `json:"deadline,omitempty"`
	AgeInStage    string  `json:"ageInStage"`
	PriorityScore float64 `json:"priorityScore"`
}

// ActionInfo is the resolver verdict for a task.
type ActionInfo struct {
	Key      string `json:"key"`
	Role     string `json:"role,omitempty"`
	Target   string `json:"target,omitempty"`
	Terminal bool   `json:"terminal"`
	Enabled  bool   `json:"enabled"`
	Reason   string `json:"reason,omitempty"`
}

// EventItem is one audit log entry in transport form.
type EventItem struct {
	Seq           int64  `json:"seq"`
	ID            string `json:"id"`
	TaskID        string `json:"taskId"`
	Type          string `json:"type"`
	FromStage     string `json:"fromStage,omitempty"`
	ToStage       string `json:"toStage,omitempty"`
	Actor         string `json:"actor,omitempty"`
	ActorRole     string `json:"actorRole,omitempty"`
	CorrelationID string `json:"correlationId,omitempty"`
	CreatedAt     string `json:"createdAt"`
	Metadata      string `json:"metadata,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool           `json:"running"`
	PID          int            `json:"pid"`
	DatabasePath string         `json:"databasePath"`
	LockFilePath string         `json:"lockFilePath"`
	QueueStats   map[string]int `json:"queueStats"`
	Workflow     WorkflowInfo   `json:"workflow"`
}

// WorkflowInfo mirrors the background loop status for API consumers.
type WorkflowInfo struct {
	Running         bool   `json:"running"`
	StartedAt       string `json:"startedAt,omitempty"`
	LastReclaim     string `json:"lastReclaim,omitempty"`
	LastStaleSweep  string `json:"lastStaleSweep,omitempty"`
	LastOverdueScan string `json:"lastOverdueScan,omitempty"`
	LastError       string `json:"lastError,omitempty"`
}

// TaskListResponse wraps a collection of tasks.
type TaskListResponse struct {
	Items []TaskItem `json:"items"`
}

// TaskItemResponse wraps a single task.
type TaskItemResponse struct {
	Item TaskItem `json:"item"`
}

// TimelineResponse wraps a task's audit history.
type TimelineResponse struct {
	Events []EventItem `json:"events"`
}

// StatsResponse provides normalized queue counts keyed by stage.
type StatsResponse struct {
	Counts map[string]int `json:"counts"`
	Total  int            `json:"total"`
}
