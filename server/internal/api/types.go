package api

// errorResponse is the body of every non-2xx response.
type errorResponse struct {
	Error string `json:"error"`
}

// alertRequest is the body of PUT /api/v1/clients/{id}/alerts/{metric} and
// its /test variant. Channel is ignored by the test route.
type alertRequest struct {
	Threshold  *float64 `json:"threshold"`
	Comparator string   `json:"comparator"`
	Channel    string   `json:"channel"`
}

// reportRequest is the body of POST /api/v1/clients/{id}/reports.
type reportRequest struct {
	Kind                   string `json:"kind"`
	IncludeRecommendations *bool  `json:"include_recommendations"`
}

// recommendations defaults to true when the field is omitted.
func (r reportRequest) recommendations() bool {
	return r.IncludeRecommendations == nil || *r.IncludeRecommendations
}
