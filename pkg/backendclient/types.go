// Package backendclient is the typed HTTP tool layer HydroChat uses to talk
// to the patient-records REST backend: retrying idempotent methods on
// transport failure, reflecting backend validation errors back into slots,
// and never letting the bearer token reach a log line.
package backendclient

import "time"

// Patient is the cached projection of a backend patient record.
type Patient struct {
	ID          int64  `json:"id"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	NationalID  string `json:"national_id"`
	Contact     string `json:"contact,omitempty"`
	DateOfBirth string `json:"date_of_birth,omitempty"`
	Details     string `json:"details,omitempty"`
}

// ScanRecord is the cached projection of a backend scan record. STLFileURL
// must never be surfaced to a user channel before an explicit STL-download
// confirmation; callers, not this package, enforce that gate.
type ScanRecord struct {
	ID               int64     `json:"id"`
	PatientID        int64     `json:"patient_id"`
	CreatedAt        time.Time `json:"created_at"`
	PreviewImageURL  string    `json:"preview_image_url"`
	VolumeEstimate   *float64  `json:"volume_estimate,omitempty"`
	STLFileURL       string    `json:"stl_file_url,omitempty"`
	DepthMap8BitURL  string    `json:"depth_map_8bit_url,omitempty"`
	DepthMap16BitURL string    `json:"depth_map_16bit_url,omitempty"`
}

// Outcome tags the shape of a Result so callers can switch on it without a
// type assertion. A Result is a closed sum type: exactly one of the payload
// fields is meaningful for a given Outcome.
type Outcome int

const (
	// Ok means the call succeeded; Payload holds the decoded response.
	Ok Outcome = iota
	// ValidationFailed means the backend rejected the request with a 400
	// field->messages map; Fields holds it.
	ValidationFailed
	// NotFound means the backend returned 404.
	NotFound
	// Conflict means the backend returned 409.
	Conflict
	// TransportError means the request never completed; Retryable reports
	// whether the retry policy already exhausted its attempts on this call.
	TransportError
	// ServerError means the backend returned a 5xx outside the retried set,
	// or a retried 5xx survived all attempts.
	ServerError
)

// Result is the outcome of one backend call. Payload is any of *Patient,
// []Patient, []ScanRecord, map[string]string (UpdatePatient's merged body on
// ValidationFailed) or nil depending on the operation and Outcome.
type Result struct {
	Outcome   Outcome
	Payload   any
	Fields    map[string][]string
	Retryable bool
	Err       error
}

func okResult(payload any) Result { return Result{Outcome: Ok, Payload: payload} }

func validationResult(fields map[string][]string) Result {
	return Result{Outcome: ValidationFailed, Fields: fields}
}

func notFoundResult() Result { return Result{Outcome: NotFound} }

func conflictResult() Result { return Result{Outcome: Conflict} }

func transportResult(retryable bool, err error) Result {
	return Result{Outcome: TransportError, Retryable: retryable, Err: err}
}

func serverErrorResult(err error) Result { return Result{Outcome: ServerError, Err: err} }
