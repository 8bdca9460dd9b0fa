package mturk

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/mturk"
	"github.com/aws/aws-sdk-go-v2/service/mturk/types"
)

// Options configures the production client.
type Options struct {
	Region      string
	Endpoint    string
	MaxAttempts int
	Logger      *slog.Logger
}

// AWSClient implements Client with aws-sdk-go-v2.
type AWSClient struct {
	api    *mturk.Client
	logger *slog.Logger
}

// New builds a client from the default AWS credential chain, pointed at the
// given region and endpoint.
func New(ctx context.Context, opts Options) (*AWSClient, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(opts.Region),
		awsconfig.WithRetryMaxAttempts(opts.MaxAttempts),
	)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	logger.Debug("creating mturk client", "region", opts.Region, "endpoint", opts.Endpoint)
	api := mturk.NewFromConfig(awsCfg, func(o *mturk.Options) {
		o.BaseEndpoint = aws.String(opts.Endpoint)
	})

	return &AWSClient{api: api, logger: logger}, nil
}

func (c *AWSClient) CreateHITType(ctx context.Context, props HITTypeProperties) (string, error) {
	out, err := c.api.CreateHITType(ctx, &mturk.CreateHITTypeInput{
		AutoApprovalDelayInSeconds:  aws.Int64(props.AutoApprovalDelayInSeconds),
		AssignmentDurationInSeconds: aws.Int64(props.AssignmentDurationInSeconds),
		Reward:                      aws.String(props.Reward),
		Title:                       aws.String(props.Title),
		Keywords:                    aws.String(props.Keywords),
		Description:                 aws.String(props.Description),
		QualificationRequirements:   toAPIRequirements(props.QualificationRequirements),
	})
	if err != nil {
		return "", fmt.Errorf("create HIT type: %w", err)
	}
	return aws.ToString(out.HITTypeId), nil
}

func (c *AWSClient) CreateHIT(ctx context.Context, in CreateHITInput) (*HIT, error) {
	props := in.Properties
	req := &mturk.CreateHITWithHITTypeInput{
		HITTypeId:              aws.String(in.HITTypeID),
		Question:               aws.String(in.Question),
		RequesterAnnotation:    aws.String(in.RequesterAnnotation),
		MaxAssignments:         aws.Int32(props.MaxAssignments),
		LifetimeInSeconds:      aws.Int64(props.LifetimeInSeconds),
		AssignmentReviewPolicy: toAPIReviewPolicy(props.AssignmentReviewPolicy),
		HITReviewPolicy:        toAPIReviewPolicy(props.HITReviewPolicy),
	}
	if props.UniqueRequestToken != "" {
		req.UniqueRequestToken = aws.String(props.UniqueRequestToken)
	}
	if props.HITLayoutId != "" {
		req.HITLayoutId = aws.String(props.HITLayoutId)
	}
	for _, p := range props.HITLayoutParameters {
		req.HITLayoutParameters = append(req.HITLayoutParameters, types.HITLayoutParameter{
			Name:  aws.String(p.Name),
			Value: aws.String(p.Value),
		})
	}
	out, err := c.api.CreateHITWithHITType(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("create HIT: %w", err)
	}
	hit := fromAPIHIT(out.HIT)
	return &hit, nil
}

func (c *AWSClient) GetHIT(ctx context.Context, hitID string) (*HIT, error) {
	out, err := c.api.GetHIT(ctx, &mturk.GetHITInput{HITId: aws.String(hitID)})
	if err != nil {
		return nil, fmt.Errorf("get HIT %s: %w", hitID, err)
	}
	hit := fromAPIHIT(out.HIT)
	return &hit, nil
}

func (c *AWSClient) ListAssignments(ctx context.Context, hitID string) ([]Assignment, error) {
	var assignments []Assignment
	pages := mturk.NewListAssignmentsForHITPaginator(c.api, &mturk.ListAssignmentsForHITInput{
		HITId: aws.String(hitID),
	})
	for page := 0; pages.HasMorePages(); page++ {
		c.logger.Debug("listing assignments", "hit_id", hitID, "page", page)
		out, err := pages.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list assignments for HIT %s: %w", hitID, err)
		}
		for _, a := range out.Assignments {
			assignments = append(assignments, fromAPIAssignment(a))
		}
	}
	return assignments, nil
}

func (c *AWSClient) ApproveAssignment(ctx context.Context, assignmentID string, overrideRejection bool) error {
	_, err := c.api.ApproveAssignment(ctx, &mturk.ApproveAssignmentInput{
		AssignmentId:      aws.String(assignmentID),
		OverrideRejection: aws.Bool(overrideRejection),
	})
	if err != nil {
		return fmt.Errorf("approve assignment %s: %w", assignmentID, err)
	}
	return nil
}

func (c *AWSClient) RejectAssignment(ctx context.Context, assignmentID, feedback string) error {
	_, err := c.api.RejectAssignment(ctx, &mturk.RejectAssignmentInput{
		AssignmentId:      aws.String(assignmentID),
		RequesterFeedback: aws.String(feedback),
	})
	if err != nil {
		return fmt.Errorf("reject assignment %s: %w", assignmentID, err)
	}
	return nil
}

func (c *AWSClient) UpdateExpiration(ctx context.Context, hitID string, expireAt time.Time) error {
	_, err := c.api.UpdateExpirationForHIT(ctx, &mturk.UpdateExpirationForHITInput{
		HITId:    aws.String(hitID),
		ExpireAt: aws.Time(expireAt),
	})
	if err != nil {
		return fmt.Errorf("update expiration for HIT %s: %w", hitID, err)
	}
	return nil
}

func (c *AWSClient) DeleteHIT(ctx context.Context, hitID string) error {
	if _, err := c.api.DeleteHIT(ctx, &mturk.DeleteHITInput{HITId: aws.String(hitID)}); err != nil {
		return fmt.Errorf("delete HIT %s: %w", hitID, err)
	}
	return nil
}

func (c *AWSClient) CreateWorkerBlock(ctx context.Context, workerID, reason string) error {
	_, err := c.api.CreateWorkerBlock(ctx, &mturk.CreateWorkerBlockInput{
		WorkerId: aws.String(workerID),
		Reason:   aws.String(reason),
	})
	if err != nil {
		return fmt.Errorf("block worker %s: %w", workerID, err)
	}
	return nil
}

func (c *AWSClient) DeleteWorkerBlock(ctx context.Context, workerID, reason string) error {
	_, err := c.api.DeleteWorkerBlock(ctx, &mturk.DeleteWorkerBlockInput{
		WorkerId: aws.String(workerID),
		Reason:   aws.String(reason),
	})
	if err != nil {
		return fmt.Errorf("unblock worker %s: %w", workerID, err)
	}
	return nil
}

func (c *AWSClient) ListWorkerBlocks(ctx context.Context) ([]WorkerBlock, error) {
	var blocks []WorkerBlock
	pages := mturk.NewListWorkerBlocksPaginator(c.api, &mturk.ListWorkerBlocksInput{
		MaxResults: aws.Int32(100),
	})
	for pages.HasMorePages() {
		out, err := pages.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list worker blocks: %w", err)
		}
		for _, b := range out.WorkerBlocks {
			blocks = append(blocks, WorkerBlock{
				WorkerId: aws.ToString(b.WorkerId),
				Reason:   aws.ToString(b.Reason),
			})
		}
	}
	return blocks, nil
}

func (c *AWSClient) NotifyWorkers(ctx context.Context, subject, message string, workerIDs []string) ([]NotifyFailure, error) {
	out, err := c.api.NotifyWorkers(ctx, &mturk.NotifyWorkersInput{
		Subject:     aws.String(subject),
		MessageText: aws.String(message),
		WorkerIds:   workerIDs,
	})
	if err != nil {
		return nil, fmt.Errorf("notify workers: %w", err)
	}
	failures := make([]NotifyFailure, 0, len(out.NotifyWorkersFailureStatuses))
	for _, f := range out.NotifyWorkersFailureStatuses {
		failures = append(failures, NotifyFailure{
			WorkerId: aws.ToString(f.WorkerId),
			Code:     string(f.NotifyWorkersFailureCode),
			Message:  aws.ToString(f.NotifyWorkersFailureMessage),
		})
	}
	return failures, nil
}

func (c *AWSClient) CreateQualificationType(ctx context.Context, props QualificationTypeProperties) (*QualificationType, error) {
	in := &mturk.CreateQualificationTypeInput{
		Name:                    aws.String(props.Name),
		Keywords:                aws.String(props.Keywords),
		Description:             aws.String(props.Description),
		QualificationTypeStatus: types.QualificationTypeStatus(props.QualificationTypeStatus),
		RetryDelayInSeconds:     aws.Int64(props.RetryDelayInSeconds),
		AutoGrantedValue:        props.AutoGrantedValue,
	}
	if props.AutoGranted {
		in.AutoGranted = aws.Bool(true)
	}
	if props.Test != "" {
		in.Test = aws.String(props.Test)
		in.TestDurationInSeconds = aws.Int64(props.TestDurationInSeconds)
	}
	if props.AnswerKey != "" {
		in.AnswerKey = aws.String(props.AnswerKey)
	}

	out, err := c.api.CreateQualificationType(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("create qualification type %q: %w", props.Name, err)
	}
	qt := fromAPIQualificationType(out.QualificationType)
	return &qt, nil
}

// FindQualificationType looks up a qualification type owned by the caller by
// its exact name.
func (c *AWSClient) FindQualificationType(ctx context.Context, name string) (string, bool, error) {
	pages := mturk.NewListQualificationTypesPaginator(c.api, &mturk.ListQualificationTypesInput{
		Query:               aws.String(name),
		MustBeRequestable:   aws.Bool(false),
		MustBeOwnedByCaller: aws.Bool(true),
		MaxResults:          aws.Int32(100),
	})
	for pages.HasMorePages() {
		out, err := pages.NextPage(ctx)
		if err != nil {
			return "", false, fmt.Errorf("list qualification types: %w", err)
		}
		for _, qt := range out.QualificationTypes {
			if aws.ToString(qt.Name) == name {
				return aws.ToString(qt.QualificationTypeId), true, nil
			}
		}
	}
	return "", false, nil
}

func (c *AWSClient) AssociateQualification(ctx context.Context, in AssociateInput) error {
	_, err := c.api.AssociateQualificationWithWorker(ctx, &mturk.AssociateQualificationWithWorkerInput{
		QualificationTypeId: aws.String(in.QualificationTypeID),
		WorkerId:            aws.String(in.WorkerID),
		IntegerValue:        in.IntegerValue,
		SendNotification:    aws.Bool(in.SendNotification),
	})
	if err != nil {
		return fmt.Errorf("associate qualification %s with worker %s: %w", in.QualificationTypeID, in.WorkerID, err)
	}
	return nil
}

func (c *AWSClient) DisassociateQualification(ctx context.Context, qualificationTypeID, workerID, reason string) error {
	in := &mturk.DisassociateQualificationFromWorkerInput{
		QualificationTypeId: aws.String(qualificationTypeID),
		WorkerId:            aws.String(workerID),
	}
	if reason != "" {
		in.Reason = aws.String(reason)
	}
	if _, err := c.api.DisassociateQualificationFromWorker(ctx, in); err != nil {
		return fmt.Errorf("disassociate qualification %s from worker %s: %w", qualificationTypeID, workerID, err)
	}
	return nil
}

func (c *AWSClient) ListWorkersWithQualification(ctx context.Context, qualificationTypeID, status string) ([]Qualification, error) {
	in := &mturk.ListWorkersWithQualificationTypeInput{
		QualificationTypeId: aws.String(qualificationTypeID),
		MaxResults:          aws.Int32(100),
	}
	if status != "" {
		in.Status = types.QualificationStatus(status)
	}

	var quals []Qualification
	pages := mturk.NewListWorkersWithQualificationTypePaginator(c.api, in)
	for pages.HasMorePages() {
		out, err := pages.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list workers with qualification %s: %w", qualificationTypeID, err)
		}
		for _, q := range out.Qualifications {
			quals = append(quals, Qualification{
				QualificationTypeId: aws.ToString(q.QualificationTypeId),
				WorkerId:            aws.ToString(q.WorkerId),
				GrantTime:           q.GrantTime,
				IntegerValue:        q.IntegerValue,
				Status:              string(q.Status),
			})
		}
	}
	return quals, nil
}

func (c *AWSClient) AccountBalance(ctx context.Context) (string, error) {
	out, err := c.api.GetAccountBalance(ctx, &mturk.GetAccountBalanceInput{})
	if err != nil {
		return "", fmt.Errorf("get account balance: %w", err)
	}
	return aws.ToString(out.AvailableBalance), nil
}

func toAPIRequirements(reqs []QualificationRequirement) []types.QualificationRequirement {
	if len(reqs) == 0 {
		return nil
	}
	out := make([]types.QualificationRequirement, 0, len(reqs))
	for _, r := range reqs {
		req := types.QualificationRequirement{
			QualificationTypeId: aws.String(r.QualificationTypeId),
			Comparator:          types.Comparator(r.Comparator),
			IntegerValues:       r.IntegerValues,
			ActionsGuarded:      types.HITAccessActions(r.ActionsGuarded),
		}
		for _, l := range r.LocaleValues {
			loc := types.Locale{Country: aws.String(l.Country)}
			if l.Subdivision != "" {
				loc.Subdivision = aws.String(l.Subdivision)
			}
			req.LocaleValues = append(req.LocaleValues, loc)
		}
		out = append(out, req)
	}
	return out
}

func fromAPIHIT(h *types.HIT) HIT {
	if h == nil {
		return HIT{}
	}
	hit := HIT{
		HITId:                        aws.ToString(h.HITId),
		HITTypeId:                    aws.ToString(h.HITTypeId),
		HITGroupId:                   aws.ToString(h.HITGroupId),
		CreationTime:                 h.CreationTime,
		Title:                        aws.ToString(h.Title),
		Description:                  aws.ToString(h.Description),
		Question:                     aws.ToString(h.Question),
		Keywords:                     aws.ToString(h.Keywords),
		HITStatus:                    string(h.HITStatus),
		MaxAssignments:               aws.ToInt32(h.MaxAssignments),
		Reward:                       aws.ToString(h.Reward),
		AutoApprovalDelayInSeconds:   aws.ToInt64(h.AutoApprovalDelayInSeconds),
		Expiration:                   h.Expiration,
		AssignmentDurationInSeconds:  aws.ToInt64(h.AssignmentDurationInSeconds),
		RequesterAnnotation:          aws.ToString(h.RequesterAnnotation),
		HITReviewStatus:              string(h.HITReviewStatus),
		NumberOfAssignmentsPending:   aws.ToInt32(h.NumberOfAssignmentsPending),
		NumberOfAssignmentsAvailable: aws.ToInt32(h.NumberOfAssignmentsAvailable),
		NumberOfAssignmentsCompleted: aws.ToInt32(h.NumberOfAssignmentsCompleted),
	}
	for _, r := range h.QualificationRequirements {
		req := QualificationRequirement{
			QualificationTypeId: aws.ToString(r.QualificationTypeId),
			Comparator:          string(r.Comparator),
			IntegerValues:       r.IntegerValues,
			ActionsGuarded:      string(r.ActionsGuarded),
		}
		for _, l := range r.LocaleValues {
			req.LocaleValues = append(req.LocaleValues, Locale{
				Country:     aws.ToString(l.Country),
				Subdivision: aws.ToString(l.Subdivision),
			})
		}
		hit.QualificationRequirements = append(hit.QualificationRequirements, req)
	}
	return hit
}

func fromAPIAssignment(a types.Assignment) Assignment {
	return Assignment{
		AssignmentId:      aws.ToString(a.AssignmentId),
		WorkerId:          aws.ToString(a.WorkerId),
		HITId:             aws.ToString(a.HITId),
		AssignmentStatus:  string(a.AssignmentStatus),
		AutoApprovalTime:  a.AutoApprovalTime,
		AcceptTime:        a.AcceptTime,
		SubmitTime:        a.SubmitTime,
		ApprovalTime:      a.ApprovalTime,
		RejectionTime:     a.RejectionTime,
		Deadline:          a.Deadline,
		Answer:            aws.ToString(a.Answer),
		RequesterFeedback: aws.ToString(a.RequesterFeedback),
	}
}

func fromAPIQualificationType(q *types.QualificationType) QualificationType {
	if q == nil {
		return QualificationType{}
	}
	return QualificationType{
		QualificationTypeId:     aws.ToString(q.QualificationTypeId),
		CreationTime:            q.CreationTime,
		Name:                    aws.ToString(q.Name),
		Description:             aws.ToString(q.Description),
		Keywords:                aws.ToString(q.Keywords),
		QualificationTypeStatus: string(q.QualificationTypeStatus),
		Test:                    aws.ToString(q.Test),
		TestDurationInSeconds:   aws.ToInt64(q.TestDurationInSeconds),
		AnswerKey:               aws.ToString(q.AnswerKey),
		RetryDelayInSeconds:     aws.ToInt64(q.RetryDelayInSeconds),
		IsRequestable:           aws.ToBool(q.IsRequestable),
		AutoGranted:             aws.ToBool(q.AutoGranted),
		AutoGrantedValue:        q.AutoGrantedValue,
	}
}

var _ Client = (*AWSClient)(nil)

func toAPIReviewPolicy(p *ReviewPolicy) *types.ReviewPolicy {
	if p == nil {
		return nil
	}
	out := &types.ReviewPolicy{PolicyName: aws.String(p.PolicyName)}
	for _, param := range p.Parameters {
		ap := types.PolicyParameter{Key: aws.String(param.Key), Values: param.Values}
		for _, e := range param.MapEntries {
			ap.MapEntries = append(ap.MapEntries, types.ParameterMapEntry{Key: aws.String(e.Key), Values: e.Values})
		}
		out.Parameters = append(out.Parameters, ap)
	}
	return out
}
