package job

type listResponse struct {
	Jobs []string `json:"jobs"`
}

type runResponse struct {
	Job        string `json:"job"`
	Status     string `json:"status"`
	DurationMS int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}
