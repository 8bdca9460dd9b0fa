// Package mturk is amti's Remote Task Client: the requester-side calls amti
// makes against Mechanical Turk.
//
// Client is the seam every operation depends on. New returns the production
// implementation backed by aws-sdk-go-v2; internal/mturk/mturktest provides
// an in-memory fake for tests. Paginated list calls are drained inside the
// client, and transient failures are retried by the SDK's retryer, so
// callers see one synchronous call per operation.
package mturk

import (
	"context"
	"time"
)

// Client is the set of Mechanical Turk operations amti uses.
type Client interface {
	CreateHITType(ctx context.Context, props HITTypeProperties) (string, error)
	CreateHIT(ctx context.Context, in CreateHITInput) (*HIT, error)
	GetHIT(ctx context.Context, hitID string) (*HIT, error)
	ListAssignments(ctx context.Context, hitID string) ([]Assignment, error)
	ApproveAssignment(ctx context.Context, assignmentID string, overrideRejection bool) error
	RejectAssignment(ctx context.Context, assignmentID, feedback string) error
	UpdateExpiration(ctx context.Context, hitID string, expireAt time.Time) error
	DeleteHIT(ctx context.Context, hitID string) error

	CreateWorkerBlock(ctx context.Context, workerID, reason string) error
	DeleteWorkerBlock(ctx context.Context, workerID, reason string) error
	ListWorkerBlocks(ctx context.Context) ([]WorkerBlock, error)
	NotifyWorkers(ctx context.Context, subject, message string, workerIDs []string) ([]NotifyFailure, error)

	CreateQualificationType(ctx context.Context, props QualificationTypeProperties) (*QualificationType, error)
	FindQualificationType(ctx context.Context, name string) (string, bool, error)
	AssociateQualification(ctx context.Context, in AssociateInput) error
	DisassociateQualification(ctx context.Context, qualificationTypeID, workerID, reason string) error
	ListWorkersWithQualification(ctx context.Context, qualificationTypeID, status string) ([]Qualification, error)

	AccountBalance(ctx context.Context) (string, error)
}
