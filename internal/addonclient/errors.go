package addonclient

import "fmt"

// ErrorKind classifies an addon protocol failure (spec §7 taxonomy, the
// subset relevant to C1).
type ErrorKind string

const (
	KindInvalidURL  ErrorKind = "invalid_url"
	KindHTTP        ErrorKind = "http"
	KindParse       ErrorKind = "parse"
	KindValidation  ErrorKind = "validation"
	KindTimeout     ErrorKind = "timeout"
)

// Error is the typed error returned by every Client operation.
type Error struct {
	Kind    ErrorKind
	Status  int // populated only for KindHTTP
	Message string
}

func (e *Error) Error() string {
	if e.Kind == KindHTTP {
		return fmt.Sprintf("addonclient: http %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("addonclient: %s: %s", e.Kind, e.Message)
}

func invalidURL(msg string) *Error { return &Error{Kind: KindInvalidURL, Message: msg} }
func httpErr(status int, msg string) *Error {
	return &Error{Kind: KindHTTP, Status: status, Message: msg}
}
func parseErr(msg string) *Error      { return &Error{Kind: KindParse, Message: msg} }
func validationErr(msg string) *Error { return &Error{Kind: KindValidation, Message: msg} }
func timeoutErr(msg string) *Error    { return &Error{Kind: KindTimeout, Message: msg} }
