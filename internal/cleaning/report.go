package cleaning

// Item statuses used in per-item report entries.
const (
	StatusSuccess = "Success"
	StatusFailed  = "Failed"
	StatusSkipped = "Skipped"
)

// ItemReport records the outcome of one item of a batch operation. Expected
// per-item divergence lands here; only unexpected engine failures surface as
// errors.
type ItemReport struct {
	Column             string `json:"column_name"`
	Status             string `json:"status"`
	NewType            string `json:"new_type,omitempty"`
	ConversionFailures *int64 `json:"conversion_failures,omitempty"`
	FilledNulls        *int64 `json:"filled_nulls,omitempty"`
	Error              string `json:"error,omitempty"`
}

// Report is returned by every mutating operation.
type Report struct {
	Status  string       `json:"status"`
	Message string       `json:"message"`
	Items   []ItemReport `json:"report,omitempty"`
	Log     []string     `json:"operations_log,omitempty"`
}

func int64Ptr(v int64) *int64 { return &v }
