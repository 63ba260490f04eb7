package domain

type ErrorKind string

const (
	ErrorKindNone              ErrorKind = ""
	ErrorKindArchive           ErrorKind = "archive_error"
	ErrorKindTimeout           ErrorKind = "timeout_error"
	ErrorKindNetwork           ErrorKind = "network_error"
	ErrorKindServer            ErrorKind = "server_error"
	ErrorKindUnparseableServer ErrorKind = "unparseable_server_error"
	ErrorKindStorage           ErrorKind = "storage_error"
)

// Messages surfaced when no server-provided text is available.
const (
	MessageArchive     = "Could not create the archive. Please select the files again."
	MessageTimeout     = "The request timed out. Try uploading fewer or smaller files."
	MessageNetwork     = "Could not reach the processing service. Check that it is running and reachable."
	MessageUnparseable = "Could not parse server error."
	MessageRequest     = "Request failed."
	MessageStorage     = "Could not save the generated file."
)

// Success carries a persisted artifact.
type Success struct {
	Filename string `json:"filename"`
	Bytes    []byte `json:"-"`
	Mime     string `json:"mime"`
	Path     string `json:"path,omitempty"`
	Entries  int    `json:"entries,omitempty"`
	Pages    int    `json:"pages,omitempty"`
}

// Failure is a classified, human-readable error.
type Failure struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// JobOutcome holds exactly one of Success or Failure.
type JobOutcome struct {
	Success *Success `json:"success,omitempty"`
	Failure *Failure `json:"failure,omitempty"`
}

func SuccessOutcome(s Success) JobOutcome {
	return JobOutcome{Success: &s}
}

func FailureOutcome(kind ErrorKind, message string) JobOutcome {
	if message == "" {
		message = DefaultMessage(kind)
	}
	return JobOutcome{Failure: &Failure{Kind: kind, Message: message}}
}

func (o JobOutcome) IsSuccess() bool {
	return o.Success != nil
}

// Message is the single line shown to the user.
func (o JobOutcome) Message() string {
	switch {
	case o.Success != nil:
		return "Saved " + o.Success.Filename
	case o.Failure != nil:
		return o.Failure.Message
	default:
		return ""
	}
}

func DefaultMessage(kind ErrorKind) string {
	switch kind {
	case ErrorKindArchive:
		return MessageArchive
	case ErrorKindTimeout:
		return MessageTimeout
	case ErrorKindNetwork:
		return MessageNetwork
	case ErrorKindUnparseableServer:
		return MessageUnparseable
	case ErrorKindStorage:
		return MessageStorage
	default:
		return MessageRequest
	}
}
