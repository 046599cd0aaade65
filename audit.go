package resumeauth

import "github.com/MrEthical07/resumeauth/internal/audit"

// AuditEvent is one lifecycle record delivered to an [AuditSink].
type AuditEvent = audit.Event

// AuditSink receives audit events from the Engine's dispatcher goroutine.
type AuditSink = audit.Sink

// Audit event types.
const (
	AuditRegistered         = audit.EventRegistered
	AuditRegistrationFailed = audit.EventRegistrationFailed
	AuditCompensationFailed = audit.EventCompensationFailed
	AuditSignIn             = audit.EventSignIn
	AuditSignInFailed       = audit.EventSignInFailed
	AuditRefreshed          = audit.EventRefreshed
	AuditSignedOut          = audit.EventSignedOut
	AuditSignedOutAll       = audit.EventSignedOutAll
	AuditSessionEvicted     = audit.EventSessionEvicted
	AuditEmailConfirmed     = audit.EventEmailConfirmed
	AuditPasswordResetSent  = audit.EventPasswordResetSent
	AuditPasswordReset      = audit.EventPasswordReset
	AuditStatusChanged      = audit.EventStatusChanged
	AuditAccountDeleted     = audit.EventAccountDeleted
)

// NewChannelSink returns a sink that buffers events in a channel, mainly for tests.
func NewChannelSink(buffer int) *audit.ChannelSink {
	return audit.NewChannelSink(buffer)
}
