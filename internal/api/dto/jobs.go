package dto

// StartJobResponse is returned when an automatic matching job is accepted.
type StartJobResponse struct {
	JobID         string `json:"job_id"`
	BankAccountID string `json:"bank_account_id"`
	Status        string `json:"status"`
}

// JobResponse represents a matching job's status.
type JobResponse struct {
	JobID         string              `json:"job_id"`
	BankAccountID string              `json:"bank_account_id"`
	Status        string              `json:"status"`
	StartedAt     string              `json:"started_at"`
	CompletedAt   *string             `json:"completed_at,omitempty"`
	Progress      JobProgressResponse `json:"progress"`
	Result        *AutoMatchResponse  `json:"result,omitempty"`
	Error         *string             `json:"error,omitempty"`
}

// JobProgressResponse represents real-time progress.
type JobProgressResponse struct {
	CurrentPhase string `json:"current_phase"`
	Total        int    `json:"total"`
	Processed    int    `json:"processed"`
	Applied      int    `json:"applied"`
	Skipped      int    `json:"skipped"`
	LastUpdate   string `json:"last_update"`
}

// JobListResponse lists matching jobs.
type JobListResponse struct {
	Jobs  []JobResponse `json:"jobs"`
	Count int           `json:"count"`
}
