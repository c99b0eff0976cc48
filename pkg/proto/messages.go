// Package proto defines the shared message types used for internal RPC
// communication between the web service and the predictor service.
//
// The types use JSON struct tags for serialization over the
// lightweight JSON-over-TCP RPC layer (see pkg/rpc).
package proto

// RPC method names served by the predictor service.
const (
	MethodPredict      = "Predictor.Predict"
	MethodPredictRange = "Predictor.PredictRange"
	MethodHealth       = "Predictor.Health"
)

// PredictRequest carries the four selections for either predictor method.
type PredictRequest struct {
	JobTitle   string `json:"job_title"`
	Category   string `json:"category"`
	Experience int    `json:"experience"`
	State      string `json:"state"`
}

// PredictResponse is the output of Predictor.Predict.
type PredictResponse struct {
	Salary float64 `json:"salary"`
}

// RangeResponse is the output of Predictor.PredictRange.
type RangeResponse struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// HealthCheckResponse reports SERVING, NOT_SERVING or UNKNOWN.
type HealthCheckResponse struct {
	Status string `json:"status"`
}
