package config

import (
	"fmt"
)

// StorageKeyStruct builds the Redis keys used by the redis store driver.
// The key shapes mirror the backend's own per-student session keys so a lab
// operator can inspect both sides with the same conventions.
type StorageKeyStruct struct{}

func NewStorageKeyStruct() *StorageKeyStruct {
	return &StorageKeyStruct{}
}

// SessionSnapshotKey returns the key holding a student's in-progress exam snapshot.
func (r *StorageKeyStruct) SessionSnapshotKey(studentID string) string {
	return fmt.Sprintf("agent:student:%s:session_snapshot", studentID)
}

// PendingSubmissionKey returns the key holding a student's undelivered submission.
func (r *StorageKeyStruct) PendingSubmissionKey(studentID string) string {
	return fmt.Sprintf("agent:student:%s:pending_submission", studentID)
}

var StorageKey = NewStorageKeyStruct()
