package client

// ReportRequest is the body of POST /report. Photo is base64-encoded and
// sent only when HasPhoto is set.
type ReportRequest struct {
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	Content  string  `json:"content"`
	Language string  `json:"language"`
	HasPhoto bool    `json:"hasPhoto"`
	Photo    string  `json:"photo,omitempty"`
	Category string  `json:"category"`
}

// SubmitResponse is the server's answer to a report submission.
type SubmitResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// Report is one entry from GET /reports/all.
type Report struct {
	ID        string  `json:"id,omitempty"`
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	Content   string  `json:"content"`
	Language  string  `json:"language"`
	HasPhoto  bool    `json:"hasPhoto"`
	Photo     string  `json:"photo,omitempty"`
	Category  string  `json:"category"`
	Timestamp int64   `json:"timestamp,omitempty"`
}

type reportsEnvelope struct {
	Success bool     `json:"success"`
	Reports []Report `json:"reports"`
}
