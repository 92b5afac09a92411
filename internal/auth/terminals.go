// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/tomtom215/tabline/internal/config"
	"github.com/tomtom215/tabline/internal/logging"
	"github.com/tomtom215/tabline/internal/metrics"
	"github.com/tomtom215/tabline/internal/models"
)

var (
	// ErrInvalidCredentials covers unknown terminals and wrong secrets alike.
	ErrInvalidCredentials = errors.New("invalid terminal credentials")

	// ErrLocked is matched by LockedError.
	ErrLocked = errors.New("terminal locked out")
)

// LockedError reports how long a terminal must wait before trying again.
type LockedError struct {
	Remaining time.Duration
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("terminal locked out for %s", e.Remaining.Round(time.Second))
}

// Is lets errors.Is(err, ErrLocked) match.
func (e *LockedError) Is(target error) bool {
	return target == ErrLocked
}

// AuditSink receives login outcomes. *audit.Logger satisfies it.
type AuditSink interface {
	LogAuthSuccess(ctx context.Context, actor models.Actor)
	LogAuthFailure(ctx context.Context, venueID, terminalID, reason string)
}

// TerminalRegistry authenticates enrolled terminals against bcrypt secret
// hashes and issues session tokens.
type TerminalRegistry struct {
	terminals map[string]config.TerminalEnrolment
	jwt       *JWTManager
	lockout   *LockoutManager
	audit     AuditSink

	dummyOnce sync.Once
	dummyHash []byte
}

// NewTerminalRegistry indexes the enrolled terminals by venue and terminal ID.
func NewTerminalRegistry(terminals []config.TerminalEnrolment, jwt *JWTManager, lockout *LockoutManager, audit AuditSink) *TerminalRegistry {
	idx := make(map[string]config.TerminalEnrolment, len(terminals))
	for _, t := range terminals {
		idx[terminalKey(t.VenueID, t.TerminalID)] = t
	}
	return &TerminalRegistry{
		terminals: idx,
		jwt:       jwt,
		lockout:   lockout,
		audit:     audit,
	}
}

func terminalKey(venueID, terminalID string) string {
	return venueID + "/" + terminalID
}

// Len returns the number of enrolled terminals.
func (r *TerminalRegistry) Len() int {
	return len(r.terminals)
}

// Login verifies a terminal secret and returns a signed token for it.
//
// Unknown terminals are compared against a dummy hash so the response time
// does not reveal which terminal IDs are enrolled.
func (r *TerminalRegistry) Login(ctx context.Context, req *models.TerminalLoginRequest) (*models.TerminalLoginResponse, error) {
	subject := terminalKey(req.VenueID, req.TerminalID)

	if locked, remaining := r.lockout.CheckLocked(subject); locked {
		metrics.RecordAuthAttempt("login", "locked")
		r.logFailure(ctx, req, "locked out")
		return nil, &LockedError{Remaining: remaining}
	}

	enrolment, ok := r.terminals[subject]
	hash := []byte(enrolment.SecretHash)
	if !ok {
		hash = r.dummy()
	}
	err := bcrypt.CompareHashAndPassword(hash, []byte(req.Secret))
	if !ok || err != nil {
		metrics.RecordAuthAttempt("login", "denied")
		r.logFailure(ctx, req, "invalid credentials")
		if locked, remaining := r.lockout.RecordFailedAttempt(subject); locked {
			logging.Warn().
				Str("venue_id", req.VenueID).
				Str("terminal_id", req.TerminalID).
				Dur("remaining", remaining).
				Msg("Terminal locked out after repeated login failures")
		}
		return nil, ErrInvalidCredentials
	}

	r.lockout.RecordSuccessfulLogin(subject)
	actor := models.Actor{
		VenueID:    enrolment.VenueID,
		TerminalID: enrolment.TerminalID,
		EmployeeID: req.EmployeeID,
		Role:       enrolment.Role,
	}
	token, expiresAt, err := r.jwt.GenerateToken(actor)
	if err != nil {
		return nil, err
	}

	metrics.RecordAuthAttempt("login", "ok")
	if r.audit != nil {
		r.audit.LogAuthSuccess(ctx, actor)
	}
	return &models.TerminalLoginResponse{
		Token:      token,
		ExpiresAt:  expiresAt,
		VenueID:    actor.VenueID,
		TerminalID: actor.TerminalID,
		Role:       actor.Role,
	}, nil
}

func (r *TerminalRegistry) logFailure(ctx context.Context, req *models.TerminalLoginRequest, reason string) {
	if r.audit != nil {
		r.audit.LogAuthFailure(ctx, req.VenueID, req.TerminalID, reason)
	}
}

func (r *TerminalRegistry) dummy() []byte {
	r.dummyOnce.Do(func() {
		// Error is impossible for a short fixed input.
		r.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("tabline-unenrolled"), bcrypt.DefaultCost)
	})
	return r.dummyHash
}
