// Package store is the durable mirror of session state. It has no mutation
// rights of its own: the session controller is the single writer, and the
// store only reflects the snapshots it is handed.
package store

import (
	"context"
	"errors"

	"github.com/nexusedu/exam-agent/internal/model"
)

// ErrNotFound is returned when no snapshot or pending submission exists
// for the student.
var ErrNotFound = errors.New("store: not found")

// Store persists exam session snapshots and undelivered submissions,
// scoped per student. Implementations must survive an agent restart
// (the memory driver is a test fake).
type Store interface {
	SaveSession(ctx context.Context, studentID string, snap *model.SessionSnapshot) error
	LoadSession(ctx context.Context, studentID string) (*model.SessionSnapshot, error)
	ClearSession(ctx context.Context, studentID string) error

	SavePending(ctx context.Context, studentID string, pending *model.PendingSubmission) error
	LoadPending(ctx context.Context, studentID string) (*model.PendingSubmission, error)
	ClearPending(ctx context.Context, studentID string) error

	Close() error
}
