package errors

import "errors"

// ContactHint is the persistent contact line clients append to failure messages.
const ContactHint = "Still stuck? Open an issue at https://github.com/Testers-Community/android-aab-signer/issues."

// Plain-language messages. Users only ever see one of these (or a validation reason).
const (
	MsgConfiguration   = "The signing service is not configured. Please try again later."
	MsgDispatch        = "Failed to start signing. Please try again."
	MsgDiscovery       = "Could not locate the signing job. Please try again."
	MsgArtifactExpired = "The signed bundle has expired or is no longer available. Please sign your AAB again."
	MsgArtifactMissing = "Signing finished but no signed bundle was produced."
	MsgRunFailed       = "Signing failed. Please check your keystore credentials."
	MsgRunCancelled    = "Signing was cancelled."
	MsgRunNotReady     = "Signing has not finished yet."
	MsgUpstream        = "Could not reach the signing service. Please try again."
	MsgBusy            = "A signing request is already in progress."
	MsgGeneric         = "An error occurred. Please try again."
)

// Reasons the download route gives when it refuses a run. Clients match on them.
const (
	ReasonRunPending      = "Workflow not yet completed"
	ReasonRunUnsuccessful = "Workflow did not complete successfully"
)

type userEntry struct {
	err error
	msg string
}

// userEntries maps sentinels to messages. A slice keeps errors.Is chain traversal in order.
var userEntries = []userEntry{
	{ErrConfiguration, MsgConfiguration},
	{ErrDispatch, MsgDispatch},
	{ErrDiscoveryMiss, MsgDiscovery},
	{ErrArtifactExpired, MsgArtifactExpired},
	{ErrArtifactNotFound, MsgArtifactMissing},
	{ErrRunFailed, MsgRunFailed},
	{ErrRunCancelled, MsgRunCancelled},
	{ErrRunNotReady, MsgRunNotReady},
	{ErrBusy, MsgBusy},
	{ErrUpstream, MsgUpstream},
	{ErrUnexpectedResponse, MsgUpstream},
}

// UserMessage returns the plain-language message for err. Validation errors
// surface their own reason; everything else maps to a fixed message.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr.Reason
	}
	for _, e := range userEntries {
		if errors.Is(err, e.err) {
			return e.msg
		}
	}
	return MsgGeneric
}

// IsExpired reports whether err means the artifact is gone.
func IsExpired(err error) bool {
	return errors.Is(err, ErrArtifactExpired)
}
