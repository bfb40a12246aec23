package tenantauth

import (
	"sync"
	"sync/atomic"
	"time"
)

// AuditEvent records one security-relevant outcome. Events are delivered
// best-effort: a slow or failing sink drops events instead of slowing the
// flows that emit them.
type AuditEvent struct {
	Time           time.Time
	Event          string
	Success        bool
	UserID         string
	OrganisationID string
	Error          string
	Detail         map[string]string
}

// AuditSink consumes audit events. Write must be safe for concurrent use.
type AuditSink interface {
	Write(event AuditEvent)
}

const (
	auditEventLoginSuccess     = "login.success"
	auditEventLoginFailure     = "login.failure"
	auditEventMFARequired      = "mfa.required"
	auditEventMFASuccess       = "mfa.success"
	auditEventMFAFailure       = "mfa.failure"
	auditEventMFARateLimited   = "mfa.rate_limited"
	auditEventRefreshSuccess   = "refresh.success"
	auditEventRefreshReuse     = "refresh.reuse"
	auditEventLogout           = "logout"
	auditEventSwitchSuccess    = "switch.success"
	auditEventPermissionDenied = "permission.denied"
	auditEventInviteAccepted   = "invite.accepted"
	auditEventPasswordReset    = "password.reset"
	auditEventEmailVerified    = "email.verified"
)

type auditDispatcher struct {
	sink    AuditSink
	events  chan AuditEvent
	dropped atomic.Uint64
	closed  atomic.Bool
	once    sync.Once
	done    chan struct{}
	wg      sync.WaitGroup
}

func newAuditDispatcher(cfg AuditConfig, sink AuditSink) *auditDispatcher {
	if !cfg.Enabled || sink == nil {
		return nil
	}
	d := &auditDispatcher{
		sink:   sink,
		events: make(chan AuditEvent, cfg.BufferSize),
		done:   make(chan struct{}),
	}
	d.wg.Add(1)
	go d.run()
	return d
}

func (d *auditDispatcher) run() {
	defer d.wg.Done()
	for {
		select {
		case event := <-d.events:
			d.sink.Write(event)
		case <-d.done:
			for {
				select {
				case event := <-d.events:
					d.sink.Write(event)
				default:
					return
				}
			}
		}
	}
}

// emit never blocks and never panics. The events channel is only ever
// signalled shut through done, not closed, so a racing emit during
// shutdown is at worst dropped.
func (d *auditDispatcher) emit(event AuditEvent) {
	if d == nil || d.closed.Load() {
		return
	}
	select {
	case d.events <- event:
	case <-d.done:
	default:
		d.dropped.Add(1)
	}
}

func (d *auditDispatcher) Close() {
	if d == nil {
		return
	}
	d.once.Do(func() {
		d.closed.Store(true)
		close(d.done)
		d.wg.Wait()
	})
}

func (d *auditDispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

func (e *Engine) emitAudit(event string, success bool, userID, organisationID string, cause error, detail map[string]string) {
	if e == nil || e.audit == nil {
		return
	}
	out := AuditEvent{
		Time:           time.Now(),
		Event:          event,
		Success:        success,
		UserID:         userID,
		OrganisationID: organisationID,
		Detail:         detail,
	}
	if cause != nil {
		out.Error = cause.Error()
	}
	e.audit.emit(out)
}

// AuditDropped reports how many audit events were discarded because the
// sink could not keep up.
func (e *Engine) AuditDropped() uint64 {
	return e.audit.Dropped()
}
