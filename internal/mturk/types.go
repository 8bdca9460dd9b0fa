package mturk

import "time"

// HIT statuses.
const (
	HITStatusAssignable   = "Assignable"
	HITStatusUnassignable = "Unassignable"
	HITStatusReviewable   = "Reviewable"
	HITStatusReviewing    = "Reviewing"
	HITStatusDisposed     = "Disposed"
)

// Assignment statuses.
const (
	AssignmentSubmitted = "Submitted"
	AssignmentApproved  = "Approved"
	AssignmentRejected  = "Rejected"
)

// Qualification statuses used when listing workers.
const (
	QualificationGranted = "Granted"
	QualificationRevoked = "Revoked"
)

// HIT is a task as returned by Mechanical Turk. Field names match the
// requester API, so saved hit.jsonl files use the same keys.
type HIT struct {
	HITId                        string                     `json:"HITId"`
	HITTypeId                    string                     `json:"HITTypeId,omitempty"`
	HITGroupId                   string                     `json:"HITGroupId,omitempty"`
	CreationTime                 *time.Time                 `json:"CreationTime"`
	Title                        string                     `json:"Title,omitempty"`
	Description                  string                     `json:"Description,omitempty"`
	Question                     string                     `json:"Question,omitempty"`
	Keywords                     string                     `json:"Keywords,omitempty"`
	HITStatus                    string                     `json:"HITStatus"`
	MaxAssignments               int32                      `json:"MaxAssignments"`
	Reward                       string                     `json:"Reward,omitempty"`
	AutoApprovalDelayInSeconds   int64                      `json:"AutoApprovalDelayInSeconds"`
	Expiration                   *time.Time                 `json:"Expiration"`
	AssignmentDurationInSeconds  int64                      `json:"AssignmentDurationInSeconds"`
	RequesterAnnotation          string                     `json:"RequesterAnnotation,omitempty"`
	QualificationRequirements    []QualificationRequirement `json:"QualificationRequirements,omitempty"`
	HITReviewStatus              string                     `json:"HITReviewStatus,omitempty"`
	NumberOfAssignmentsPending   int32                      `json:"NumberOfAssignmentsPending"`
	NumberOfAssignmentsAvailable int32                      `json:"NumberOfAssignmentsAvailable"`
	NumberOfAssignmentsCompleted int32                      `json:"NumberOfAssignmentsCompleted"`
}

// HITRecord is the envelope written to hit.jsonl.
type HITRecord struct {
	HIT HIT `json:"HIT"`
}

// Assignment is one worker's submission for a HIT.
type Assignment struct {
	AssignmentId      string     `json:"AssignmentId"`
	WorkerId          string     `json:"WorkerId"`
	HITId             string     `json:"HITId"`
	AssignmentStatus  string     `json:"AssignmentStatus"`
	AutoApprovalTime  *time.Time `json:"AutoApprovalTime"`
	AcceptTime        *time.Time `json:"AcceptTime"`
	SubmitTime        *time.Time `json:"SubmitTime"`
	ApprovalTime      *time.Time `json:"ApprovalTime"`
	RejectionTime     *time.Time `json:"RejectionTime,omitempty"`
	Deadline          *time.Time `json:"Deadline,omitempty"`
	Answer            string     `json:"Answer"`
	RequesterFeedback string     `json:"RequesterFeedback,omitempty"`
}

// Terminal reports whether the assignment has been approved or rejected.
func (a Assignment) Terminal() bool {
	return a.AssignmentStatus == AssignmentApproved || a.AssignmentStatus == AssignmentRejected
}

// Locale restricts a qualification requirement to a country or subdivision.
type Locale struct {
	Country     string `json:"Country"`
	Subdivision string `json:"Subdivision,omitempty"`
}

// QualificationRequirement gates who may work on a HIT type.
type QualificationRequirement struct {
	QualificationTypeId string   `json:"QualificationTypeId"`
	Comparator          string   `json:"Comparator"`
	IntegerValues       []int32  `json:"IntegerValues,omitempty"`
	LocaleValues        []Locale `json:"LocaleValues,omitempty"`
	ActionsGuarded      string   `json:"ActionsGuarded,omitempty"`
}

// HITTypeProperties is the content of hittypeproperties.json.
type HITTypeProperties struct {
	AutoApprovalDelayInSeconds  int64                      `json:"AutoApprovalDelayInSeconds"`
	AssignmentDurationInSeconds int64                      `json:"AssignmentDurationInSeconds"`
	Reward                      string                     `json:"Reward"`
	Title                       string                     `json:"Title"`
	Keywords                    string                     `json:"Keywords"`
	Description                 string                     `json:"Description"`
	QualificationRequirements   []QualificationRequirement `json:"QualificationRequirements,omitempty"`
}

// HITProperties is the content of hitproperties.json. The optional fields
// are passed to every create call unchanged.
type HITProperties struct {
	MaxAssignments         int32                `json:"MaxAssignments"`
	LifetimeInSeconds      int64                `json:"LifetimeInSeconds"`
	UniqueRequestToken     string               `json:"UniqueRequestToken,omitempty"`
	AssignmentReviewPolicy *ReviewPolicy        `json:"AssignmentReviewPolicy,omitempty"`
	HITReviewPolicy        *ReviewPolicy        `json:"HITReviewPolicy,omitempty"`
	HITLayoutId            string               `json:"HITLayoutId,omitempty"`
	HITLayoutParameters    []HITLayoutParameter `json:"HITLayoutParameters,omitempty"`
}

// ReviewPolicy names a Mechanical Turk review policy and its parameters.
type ReviewPolicy struct {
	PolicyName string            `json:"PolicyName"`
	Parameters []PolicyParameter `json:"Parameters,omitempty"`
}

// PolicyParameter is one review policy parameter.
type PolicyParameter struct {
	Key        string              `json:"Key"`
	Values     []string            `json:"Values,omitempty"`
	MapEntries []ParameterMapEntry `json:"MapEntries,omitempty"`
}

// ParameterMapEntry is one key of a map-valued policy parameter.
type ParameterMapEntry struct {
	Key    string   `json:"Key"`
	Values []string `json:"Values,omitempty"`
}

// HITLayoutParameter fills one placeholder of a HIT layout.
type HITLayoutParameter struct {
	Name  string `json:"Name"`
	Value string `json:"Value"`
}

// CreateHITInput describes one HIT created under an existing HIT type.
type CreateHITInput struct {
	HITTypeID           string
	Question            string
	RequesterAnnotation string
	Properties          HITProperties
}

// QualificationTypeProperties is the content of
// qualificationtypeproperties.json plus the optional test and answer key.
type QualificationTypeProperties struct {
	Name                    string `json:"Name"`
	Keywords                string `json:"Keywords"`
	Description             string `json:"Description"`
	QualificationTypeStatus string `json:"QualificationTypeStatus"`
	RetryDelayInSeconds     int64  `json:"RetryDelayInSeconds"`
	TestDurationInSeconds   int64  `json:"TestDurationInSeconds"`
	AutoGranted             bool   `json:"AutoGranted,omitempty"`
	AutoGrantedValue        *int32 `json:"AutoGrantedValue,omitempty"`
	Test                    string `json:"Test,omitempty"`
	AnswerKey               string `json:"AnswerKey,omitempty"`
}

// QualificationType is a qualification type as returned by Mechanical Turk.
type QualificationType struct {
	QualificationTypeId     string     `json:"QualificationTypeId"`
	CreationTime            *time.Time `json:"CreationTime"`
	Name                    string     `json:"Name"`
	Description             string     `json:"Description"`
	Keywords                string     `json:"Keywords,omitempty"`
	QualificationTypeStatus string     `json:"QualificationTypeStatus"`
	Test                    string     `json:"Test,omitempty"`
	TestDurationInSeconds   int64      `json:"TestDurationInSeconds,omitempty"`
	AnswerKey               string     `json:"AnswerKey,omitempty"`
	RetryDelayInSeconds     int64      `json:"RetryDelayInSeconds,omitempty"`
	IsRequestable           bool       `json:"IsRequestable"`
	AutoGranted             bool       `json:"AutoGranted"`
	AutoGrantedValue        *int32     `json:"AutoGrantedValue,omitempty"`
}

// QualificationTypeRecord is the envelope written to
// qualificationtype-<id>.jsonl.
type QualificationTypeRecord struct {
	QualificationType QualificationType `json:"QualificationType"`
}

// Qualification is a worker's grant of a qualification type.
type Qualification struct {
	QualificationTypeId string     `json:"QualificationTypeId"`
	WorkerId            string     `json:"WorkerId"`
	GrantTime           *time.Time `json:"GrantTime"`
	IntegerValue        *int32     `json:"IntegerValue,omitempty"`
	Status              string     `json:"Status"`
}

// AssociateInput grants a qualification to one worker.
type AssociateInput struct {
	QualificationTypeID string
	WorkerID            string
	IntegerValue        *int32
	SendNotification    bool
}

// WorkerBlock is a block placed on a worker.
type WorkerBlock struct {
	WorkerId string `json:"WorkerId"`
	Reason   string `json:"Reason"`
}

// NotifyFailure reports a worker a notification could not reach.
type NotifyFailure struct {
	WorkerId string `json:"WorkerId"`
	Code     string `json:"NotifyWorkersFailureCode"`
	Message  string `json:"NotifyWorkersFailureMessage"`
}
