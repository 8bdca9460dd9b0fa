// Package mturktest provides an in-memory mturk.Client for tests.
package mturktest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/roach88/amti/internal/mturk"
)

// Call records one client method invocation.
type Call struct {
	Method string
	ID     string // primary id argument (HIT, assignment, worker, qualification)
	Detail string // secondary argument, if any
}

// Fake is an in-memory mturk.Client. HITs created through CreateHIT start
// out Assignable; tests move them along by editing HITs and Assignments.
//
// Thread-safety: all methods are safe for concurrent use.
type Fake struct {
	mu sync.Mutex

	HITs        map[string]*mturk.HIT
	Assignments map[string][]mturk.Assignment
	Blocks      map[string]string
	Quals       map[string]map[string]mturk.Qualification // qualification type id -> worker id -> grant
	QualTypes   map[string]mturk.QualificationType
	Balance     string

	// Errors makes the named method fail. CreateHITFailAfter makes
	// CreateHIT fail once that many HITs have been created.
	Errors             map[string]error
	CreateHITFailAfter int

	// NotifyFailures lists worker ids NotifyWorkers reports as unreachable.
	NotifyFailures map[string]bool

	Calls    []Call
	Notified [][]string
	Created  []mturk.CreateHITInput

	hitTypes  int
	hits      int
	qualTypes int
	now       time.Time
}

// New returns an empty fake.
func New() *Fake {
	return &Fake{
		HITs:           map[string]*mturk.HIT{},
		Assignments:    map[string][]mturk.Assignment{},
		Blocks:         map[string]string{},
		Quals:          map[string]map[string]mturk.Qualification{},
		QualTypes:      map[string]mturk.QualificationType{},
		NotifyFailures: map[string]bool{},
		Errors:         map[string]error{},
		Balance:        "10000.00",
		now:            time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (f *Fake) record(method, id, detail string) error {
	f.Calls = append(f.Calls, Call{Method: method, ID: id, Detail: detail})
	return f.Errors[method]
}

// CallsTo returns the recorded calls to method, in order.
func (f *Fake) CallsTo(method string) []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	var calls []Call
	for _, c := range f.Calls {
		if c.Method == method {
			calls = append(calls, c)
		}
	}
	return calls
}

// IDsFor returns the primary id of every call to method, in order.
func (f *Fake) IDsFor(method string) []string {
	var ids []string
	for _, c := range f.CallsTo(method) {
		ids = append(ids, c.ID)
	}
	return ids
}

// SetHITStatus changes the status of a known HIT.
func (f *Fake) SetHITStatus(hitID, status string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if h, ok := f.HITs[hitID]; ok {
		h.HITStatus = status
	}
}

// AddAssignment attaches a submission to a HIT.
func (f *Fake) AddAssignment(a mturk.Assignment) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Assignments[a.HITId] = append(f.Assignments[a.HITId], a)
}

// AssignmentStatus returns the current status of an assignment.
func (f *Fake) AssignmentStatus(assignmentID string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, as := range f.Assignments {
		for _, a := range as {
			if a.AssignmentId == assignmentID {
				return a.AssignmentStatus
			}
		}
	}
	return ""
}

func (f *Fake) CreateHITType(ctx context.Context, props mturk.HITTypeProperties) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hitTypes++
	id := fmt.Sprintf("HITTYPE%d", f.hitTypes)
	if err := f.record("CreateHITType", id, props.Title); err != nil {
		return "", err
	}
	return id, nil
}

func (f *Fake) CreateHIT(ctx context.Context, in mturk.CreateHITInput) (*mturk.HIT, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("CreateHIT", in.HITTypeID, in.Question); err != nil {
		return nil, err
	}
	if f.CreateHITFailAfter > 0 && f.hits >= f.CreateHITFailAfter {
		return nil, fmt.Errorf("create HIT: service unavailable")
	}
	f.hits++
	f.Created = append(f.Created, in)
	created := f.now
	expires := created.Add(time.Duration(in.Properties.LifetimeInSeconds) * time.Second)
	hit := &mturk.HIT{
		HITId:                        fmt.Sprintf("HIT%d", f.hits),
		HITTypeId:                    in.HITTypeID,
		HITGroupId:                   "GROUP-" + in.HITTypeID,
		CreationTime:                 &created,
		Question:                     in.Question,
		HITStatus:                    mturk.HITStatusAssignable,
		MaxAssignments:               in.Properties.MaxAssignments,
		Expiration:                   &expires,
		RequesterAnnotation:          in.RequesterAnnotation,
		AutoApprovalDelayInSeconds:   3600,
		AssignmentDurationInSeconds:  600,
		NumberOfAssignmentsAvailable: in.Properties.MaxAssignments,
	}
	f.HITs[hit.HITId] = hit
	cp := *hit
	return &cp, nil
}

func (f *Fake) GetHIT(ctx context.Context, hitID string) (*mturk.HIT, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("GetHIT", hitID, ""); err != nil {
		return nil, err
	}
	h, ok := f.HITs[hitID]
	if !ok {
		return nil, fmt.Errorf("get HIT %s: not found", hitID)
	}
	cp := *h
	return &cp, nil
}

func (f *Fake) ListAssignments(ctx context.Context, hitID string) ([]mturk.Assignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("ListAssignments", hitID, ""); err != nil {
		return nil, err
	}
	return append([]mturk.Assignment(nil), f.Assignments[hitID]...), nil
}

func (f *Fake) setAssignmentStatus(assignmentID, status, feedback string) error {
	for hitID, as := range f.Assignments {
		for i := range as {
			if as[i].AssignmentId == assignmentID {
				as[i].AssignmentStatus = status
				as[i].RequesterFeedback = feedback
				t := f.now
				if status == mturk.AssignmentApproved {
					as[i].ApprovalTime = &t
				} else {
					as[i].RejectionTime = &t
				}
				f.Assignments[hitID] = as
				return nil
			}
		}
	}
	return fmt.Errorf("assignment %s: not found", assignmentID)
}

func (f *Fake) ApproveAssignment(ctx context.Context, assignmentID string, overrideRejection bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("ApproveAssignment", assignmentID, fmt.Sprint(overrideRejection)); err != nil {
		return err
	}
	return f.setAssignmentStatus(assignmentID, mturk.AssignmentApproved, "")
}

func (f *Fake) RejectAssignment(ctx context.Context, assignmentID, feedback string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("RejectAssignment", assignmentID, feedback); err != nil {
		return err
	}
	return f.setAssignmentStatus(assignmentID, mturk.AssignmentRejected, feedback)
}

func (f *Fake) UpdateExpiration(ctx context.Context, hitID string, expireAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("UpdateExpiration", hitID, expireAt.UTC().Format(time.RFC3339)); err != nil {
		return err
	}
	h, ok := f.HITs[hitID]
	if !ok {
		return fmt.Errorf("update expiration for HIT %s: not found", hitID)
	}
	at := expireAt
	h.Expiration = &at
	return nil
}

func (f *Fake) DeleteHIT(ctx context.Context, hitID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("DeleteHIT", hitID, ""); err != nil {
		return err
	}
	delete(f.HITs, hitID)
	return nil
}

func (f *Fake) CreateWorkerBlock(ctx context.Context, workerID, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("CreateWorkerBlock", workerID, reason); err != nil {
		return err
	}
	f.Blocks[workerID] = reason
	return nil
}

func (f *Fake) DeleteWorkerBlock(ctx context.Context, workerID, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("DeleteWorkerBlock", workerID, reason); err != nil {
		return err
	}
	delete(f.Blocks, workerID)
	return nil
}

func (f *Fake) ListWorkerBlocks(ctx context.Context) ([]mturk.WorkerBlock, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("ListWorkerBlocks", "", ""); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(f.Blocks))
	for id := range f.Blocks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	blocks := make([]mturk.WorkerBlock, 0, len(ids))
	for _, id := range ids {
		blocks = append(blocks, mturk.WorkerBlock{WorkerId: id, Reason: f.Blocks[id]})
	}
	return blocks, nil
}

func (f *Fake) NotifyWorkers(ctx context.Context, subject, message string, workerIDs []string) ([]mturk.NotifyFailure, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("NotifyWorkers", subject, message); err != nil {
		return nil, err
	}
	f.Notified = append(f.Notified, append([]string(nil), workerIDs...))
	var failures []mturk.NotifyFailure
	for _, id := range workerIDs {
		if f.NotifyFailures[id] {
			failures = append(failures, mturk.NotifyFailure{
				WorkerId: id,
				Code:     "HardFailure",
				Message:  "worker not found",
			})
		}
	}
	return failures, nil
}

func (f *Fake) CreateQualificationType(ctx context.Context, props mturk.QualificationTypeProperties) (*mturk.QualificationType, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("CreateQualificationType", props.Name, props.Test); err != nil {
		return nil, err
	}
	f.qualTypes++
	created := f.now
	qt := mturk.QualificationType{
		QualificationTypeId:     fmt.Sprintf("QUAL%d", f.qualTypes),
		CreationTime:            &created,
		Name:                    props.Name,
		Description:             props.Description,
		Keywords:                props.Keywords,
		QualificationTypeStatus: props.QualificationTypeStatus,
		Test:                    props.Test,
		TestDurationInSeconds:   props.TestDurationInSeconds,
		AnswerKey:               props.AnswerKey,
		RetryDelayInSeconds:     props.RetryDelayInSeconds,
		IsRequestable:           true,
		AutoGranted:             props.AutoGranted,
		AutoGrantedValue:        props.AutoGrantedValue,
	}
	f.QualTypes[qt.QualificationTypeId] = qt
	return &qt, nil
}

func (f *Fake) FindQualificationType(ctx context.Context, name string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("FindQualificationType", name, ""); err != nil {
		return "", false, err
	}
	for id, qt := range f.QualTypes {
		if qt.Name == name {
			return id, true, nil
		}
	}
	return "", false, nil
}

func (f *Fake) AssociateQualification(ctx context.Context, in mturk.AssociateInput) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("AssociateQualification", in.WorkerID, in.QualificationTypeID); err != nil {
		return err
	}
	if f.Quals[in.QualificationTypeID] == nil {
		f.Quals[in.QualificationTypeID] = map[string]mturk.Qualification{}
	}
	granted := f.now
	f.Quals[in.QualificationTypeID][in.WorkerID] = mturk.Qualification{
		QualificationTypeId: in.QualificationTypeID,
		WorkerId:            in.WorkerID,
		GrantTime:           &granted,
		IntegerValue:        in.IntegerValue,
		Status:              mturk.QualificationGranted,
	}
	return nil
}

func (f *Fake) DisassociateQualification(ctx context.Context, qualificationTypeID, workerID, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("DisassociateQualification", workerID, qualificationTypeID); err != nil {
		return err
	}
	if q, ok := f.Quals[qualificationTypeID][workerID]; ok {
		q.Status = mturk.QualificationRevoked
		f.Quals[qualificationTypeID][workerID] = q
	}
	return nil
}

func (f *Fake) ListWorkersWithQualification(ctx context.Context, qualificationTypeID, status string) ([]mturk.Qualification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("ListWorkersWithQualification", qualificationTypeID, status); err != nil {
		return nil, err
	}
	workers := make([]string, 0, len(f.Quals[qualificationTypeID]))
	for id := range f.Quals[qualificationTypeID] {
		workers = append(workers, id)
	}
	sort.Strings(workers)
	var quals []mturk.Qualification
	for _, id := range workers {
		q := f.Quals[qualificationTypeID][id]
		if status == "" || q.Status == status {
			quals = append(quals, q)
		}
	}
	return quals, nil
}

func (f *Fake) AccountBalance(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("AccountBalance", "", ""); err != nil {
		return "", err
	}
	return f.Balance, nil
}

var _ mturk.Client = (*Fake)(nil)
