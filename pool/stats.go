package pool

// Stats is a point-in-time snapshot of a pool. Total is always Idle + Active.
type Stats struct {
	Total   int `json:"total"`
	Idle    int `json:"idle"`
	Active  int `json:"active"`
	Waiting int `json:"waiting"`
}
