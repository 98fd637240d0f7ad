package model

// Run is a stored execution of a plan.
type Run struct {
	ID            string  `json:"id"`
	Seq           int64   `json:"seq"`
	PlanName      string  `json:"plan_name"`
	PlanHash      string  `json:"plan_hash"`
	DatasetHash   string  `json:"dataset_hash"`
	Source        string  `json:"source"`
	Sheet         string  `json:"sheet,omitempty"`
	Request       Request `json:"request"`
	ChartPath     string  `json:"chart_path,omitempty"`
	ChartHash     string  `json:"chart_hash,omitempty"` // options of the last chart drawn
	EngineVersion string  `json:"engine_version"`
	CreatedAt     string  `json:"created_at"` // RFC 3339, informational only

	Analysis *Analysis `json:"analysis,omitempty"`
}
