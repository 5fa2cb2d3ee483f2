package llc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/STS-Engineer/llc-backend/internal/domain/token"
	"github.com/STS-Engineer/llc-backend/internal/notify"
	"github.com/STS-Engineer/llc-backend/internal/render"
	"github.com/STS-Engineer/llc-backend/internal/repository"
	"github.com/google/uuid"
)

// Service is the workflow orchestrator. Each external action validates its
// capability token, applies the transition, and enqueues notifications inside
// one transaction; mail leaves through the outbox only after commit.
type Service struct {
	records  Repository
	units    UnitCleanup
	tokens   TokenService
	resolver TargetResolver
	outbox   Outbox
	waker    Waker
	renderer Renderer
	docs     DocumentStore
	tx       repository.Tx
	mails    notify.MailBuilder
	logger   *slog.Logger

	reviewTTL     time.Duration
	finalApprover string
}

// ServiceConfig bundles the orchestrator dependencies.
type ServiceConfig struct {
	Records       Repository
	Units         UnitCleanup
	Tokens        TokenService
	Resolver      TargetResolver
	Outbox        Outbox
	Waker         Waker // optional; nil means mail waits for the next poll
	Renderer      Renderer
	Docs          DocumentStore
	Tx            repository.Tx
	Mails         notify.MailBuilder
	Logger        *slog.Logger
	ReviewTTL     time.Duration
	FinalApprover string
}

// NewService creates a new workflow orchestrator.
func NewService(cfg ServiceConfig) *Service {
	return &Service{
		records:       cfg.Records,
		units:         cfg.Units,
		tokens:        cfg.Tokens,
		resolver:      cfg.Resolver,
		outbox:        cfg.Outbox,
		waker:         cfg.Waker,
		renderer:      cfg.Renderer,
		docs:          cfg.Docs,
		tx:            cfg.Tx,
		mails:         cfg.Mails,
		logger:        cfg.Logger,
		reviewTTL:     cfg.ReviewTTL,
		finalApprover: cfg.FinalApprover,
	}
}

// RootCauseInput is one causal-analysis row of a submission.
type RootCauseInput struct {
	RootCause                string `json:"root_cause"`
	DetailedCauseDescription string `json:"detailed_cause_description"`
	SolutionDescription      string `json:"solution_description"`
	Conclusion               string `json:"conclusion"`
	Process                  string `json:"process"`
	Origin                   string `json:"origin"`
}

// AttachmentInput references an uploaded evidence file. RootCauseIndex links
// the file to the root cause at that position in the submission, when set.
type AttachmentInput struct {
	Scope          AttachmentScope `json:"scope"`
	RootCauseIndex *int            `json:"root_cause_index,omitempty"`
	Filename       string          `json:"filename"`
	StoragePath    string          `json:"storage_path"`
}

// SubmitRequest describes a record submission. Plant and EditorEmail come
// from the authenticated principal, never from the raw payload.
type SubmitRequest struct {
	Category            string            `json:"category"`
	ProblemShort        string            `json:"problem_short"`
	ProblemDetail       string            `json:"problem_detail"`
	LlcType             string            `json:"llc_type"`
	Customer            string            `json:"customer"`
	ProductFamily       string            `json:"product_family"`
	ProductType         string            `json:"product_type"`
	QualityDetection    string            `json:"quality_detection"`
	ApplicationLabel    string            `json:"application_label"`
	ProductLineLabel    string            `json:"product_line_label"`
	PartOrMachineNumber string            `json:"part_or_machine_number"`
	Editor              string            `json:"editor"`
	EditorEmail         string            `json:"-"`
	Plant               string            `json:"-"`
	FailureMode         string            `json:"failure_mode"`
	Conclusions         string            `json:"conclusions"`
	RootCauses          []RootCauseInput  `json:"root_causes"`
	Attachments         []AttachmentInput `json:"attachments,omitempty"`
}

// DecideRequest carries a reviewer decision authorized by a capability token.
type DecideRequest struct {
	RecordID string
	Purpose  token.Purpose
	Token    string
	Approve  bool
	Reason   string
}

// ResubmitRequest re-enters a rejected record into the pipeline.
type ResubmitRequest struct {
	RecordID   string
	ActorEmail string
	ActorPlant string
	Payload    SubmitRequest
}

// Submit creates a record and enters it into the approval pipeline: report
// rendered, PM token issued, plant validator notified.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*Record, error) {
	if err := ValidateSubmitInput(req); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Plant) == "" || strings.TrimSpace(req.EditorEmail) == "" {
		return nil, ErrInvalidInput
	}

	validator, err := s.resolver.ValidatorFor(req.Plant)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	rec := &Record{
		ID:                  uuid.NewString(),
		Category:            req.Category,
		ProblemShort:        req.ProblemShort,
		ProblemDetail:       req.ProblemDetail,
		LlcType:             req.LlcType,
		Customer:            req.Customer,
		ProductFamily:       req.ProductFamily,
		ProductType:         req.ProductType,
		QualityDetection:    req.QualityDetection,
		ApplicationLabel:    req.ApplicationLabel,
		ProductLineLabel:    req.ProductLineLabel,
		PartOrMachineNumber: req.PartOrMachineNumber,
		Editor:              req.Editor,
		EditorEmail:         req.EditorEmail,
		Plant:               req.Plant,
		FailureMode:         req.FailureMode,
		Conclusions:         req.Conclusions,
		Validator:           validator,
		Status:              StatusPendingPM,
		PMDecision:          Decision{State: DecisionPending},
		FinalDecision:       Decision{State: DecisionPending},
		CreatedAt:           now,
		ModifiedAt:          now,
	}
	causes, atts := buildChildren(rec.ID, req)

	docPath, err := s.renderAndStore(ctx, rec, causes)
	if err != nil {
		return nil, err
	}
	rec.GeneratedDoc = docPath

	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.records.Create(ctx, rec, causes, atts); err != nil {
			return fmt.Errorf("creating record: %w", err)
		}
		pmTok, err := s.tokens.Issue(ctx, token.PurposePMReview, rec.ID, s.reviewTTL)
		if err != nil {
			return err
		}
		return s.outbox.Enqueue(ctx, s.mails.PMReview(validator, rec.ID, rec.ProblemShort, pmTok))
	})
	if err != nil {
		return nil, err
	}

	s.wakeMail()
	s.logger.Info("record submitted", "record_id", rec.ID, "plant", rec.Plant, "validator", validator)
	return rec, nil
}

// Decide applies a PM or final review decision. The token is consumed in the
// same transaction as the status write, so the same link cannot drive a
// second transition even before its expiry.
func (s *Service) Decide(ctx context.Context, req DecideRequest) (*Record, error) {
	if req.Purpose != token.PurposePMReview && req.Purpose != token.PurposeFinalReview {
		return nil, ErrInvalidInput
	}
	if !req.Approve {
		if err := ValidateReason(req.Reason); err != nil {
			return nil, err
		}
	}

	var rec *Record
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.tokens.Consume(ctx, req.Purpose, req.RecordID, req.Token); err != nil {
			return err
		}

		var err error
		rec, err = s.records.Get(ctx, req.RecordID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrRecordNotFound
			}
			return fmt.Errorf("loading record: %w", err)
		}

		switch req.Purpose {
		case token.PurposePMReview:
			return s.applyPMDecision(ctx, rec, req)
		default:
			return s.applyFinalDecision(ctx, rec, req)
		}
	})
	if err != nil {
		return nil, err
	}

	s.wakeMail()
	s.logger.Info("review decision recorded",
		"record_id", rec.ID, "purpose", req.Purpose, "approved", req.Approve, "status", rec.Status)
	return rec, nil
}

func (s *Service) applyPMDecision(ctx context.Context, rec *Record, req DecideRequest) error {
	if rec.Status != StatusPendingPM {
		return ErrIllegalTransition
	}

	now := time.Now()
	rec.PMDecision = Decision{DecidedAt: &now}
	rec.ModifiedAt = now

	if !req.Approve {
		rec.PMDecision.State = DecisionRejected
		rec.PMDecision.Reason = strings.TrimSpace(req.Reason)
		rec.Status = StatusEditablePMRejected
		if err := s.records.Update(ctx, rec, StatusPendingPM); err != nil {
			return fmt.Errorf("rejecting record: %w", err)
		}
		return s.outbox.Enqueue(ctx, s.mails.Rejected(rec.EditorEmail, rec.ID, "PM", rec.PMDecision.Reason))
	}

	rec.PMDecision.State = DecisionApproved
	rec.Status = StatusWaitingFinal
	if err := s.records.Update(ctx, rec, StatusPendingPM); err != nil {
		return fmt.Errorf("approving record: %w", err)
	}

	finalTok, err := s.tokens.Issue(ctx, token.PurposeFinalReview, rec.ID, s.reviewTTL)
	if err != nil {
		return err
	}
	if err := s.outbox.Enqueue(ctx, s.mails.Approved(rec.EditorEmail, rec.ID, "PM")); err != nil {
		return err
	}
	return s.outbox.Enqueue(ctx, s.mails.FinalReview(s.finalApprover, rec.ID, rec.ProblemShort, finalTok))
}

func (s *Service) applyFinalDecision(ctx context.Context, rec *Record, req DecideRequest) error {
	if rec.Status != StatusWaitingFinal {
		return ErrIllegalTransition
	}

	now := time.Now()
	rec.FinalDecision = Decision{DecidedAt: &now}
	rec.ModifiedAt = now

	if !req.Approve {
		rec.FinalDecision.State = DecisionRejected
		rec.FinalDecision.Reason = strings.TrimSpace(req.Reason)
		rec.Status = StatusEditableFinalRejected
		if err := s.records.Update(ctx, rec, StatusWaitingFinal); err != nil {
			return fmt.Errorf("rejecting record: %w", err)
		}
		return s.outbox.Enqueue(ctx, s.mails.Rejected(rec.EditorEmail, rec.ID, "final", rec.FinalDecision.Reason))
	}

	// Resolve the distribution set before committing to DISTRIBUTING. A
	// configuration gap aborts the whole transition.
	targets, err := s.resolver.Targets(rec.ProductLineLabel, rec.Plant)
	if err != nil {
		return err
	}
	if len(targets) == 0 {
		return fmt.Errorf("%w: empty target set for %q from %q",
			ErrNoDistributionTargets, rec.ProductLineLabel, rec.Plant)
	}
	contacts := make([]string, len(targets))
	for i, plant := range targets {
		contact, err := s.resolver.ContactFor(plant)
		if err != nil {
			return err
		}
		contacts[i] = contact
	}

	rec.FinalDecision.State = DecisionApproved
	rec.Status = StatusDistributing
	rec.Targets = targets
	if err := s.records.Update(ctx, rec, StatusWaitingFinal); err != nil {
		return fmt.Errorf("approving record: %w", err)
	}
	if err := s.records.SetTargets(ctx, rec.ID, targets); err != nil {
		return fmt.Errorf("storing targets: %w", err)
	}

	if err := s.outbox.Enqueue(ctx, s.mails.Approved(rec.EditorEmail, rec.ID, "final")); err != nil {
		return err
	}
	for i, plant := range targets {
		evTok, err := s.tokens.Issue(ctx, token.PurposeEvidenceSubmit, token.EvidenceResource(rec.ID, plant), s.reviewTTL)
		if err != nil {
			return err
		}
		if err := s.outbox.Enqueue(ctx, s.mails.EvidenceRequest(contacts[i], rec.ID, plant, evTok)); err != nil {
			return err
		}
	}
	return nil
}

// Resubmit re-enters an editable record into the pipeline from PENDING_PM.
// Every token from the voided cycle is invalidated and the cycle's processing
// units are removed.
func (s *Service) Resubmit(ctx context.Context, req ResubmitRequest) (*Record, error) {
	if err := ValidateSubmitInput(req.Payload); err != nil {
		return nil, err
	}

	validator, err := s.resolver.ValidatorFor(req.ActorPlant)
	if err != nil {
		return nil, err
	}

	var rec *Record
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		rec, err = s.records.Get(ctx, req.RecordID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrRecordNotFound
			}
			return fmt.Errorf("loading record: %w", err)
		}
		if !rec.Status.Editable() {
			return ErrNotEditable
		}
		if rec.EditorEmail != req.ActorEmail {
			return ErrForbidden
		}

		// Void the previous cycle: units, their tokens, the per-plant
		// evidence tokens, and the record's own review tokens.
		oldTargets, err := s.records.GetTargets(ctx, rec.ID)
		if err != nil {
			return fmt.Errorf("loading targets: %w", err)
		}
		unitIDs, err := s.units.DeleteByRecord(ctx, rec.ID)
		if err != nil {
			return fmt.Errorf("deleting units: %w", err)
		}
		resources := append([]string{rec.ID}, unitIDs...)
		for _, plant := range oldTargets {
			resources = append(resources, token.EvidenceResource(rec.ID, plant))
		}
		if err := s.tokens.InvalidateResource(ctx, resources...); err != nil {
			return err
		}
		if err := s.records.SetTargets(ctx, rec.ID, nil); err != nil {
			return fmt.Errorf("clearing targets: %w", err)
		}

		prev := rec.Status
		now := time.Now()
		p := req.Payload
		rec.Category = p.Category
		rec.ProblemShort = p.ProblemShort
		rec.ProblemDetail = p.ProblemDetail
		rec.LlcType = p.LlcType
		rec.Customer = p.Customer
		rec.ProductFamily = p.ProductFamily
		rec.ProductType = p.ProductType
		rec.QualityDetection = p.QualityDetection
		rec.ApplicationLabel = p.ApplicationLabel
		rec.ProductLineLabel = p.ProductLineLabel
		rec.PartOrMachineNumber = p.PartOrMachineNumber
		rec.Editor = p.Editor
		rec.FailureMode = p.FailureMode
		rec.Conclusions = p.Conclusions
		rec.Plant = req.ActorPlant
		rec.Validator = validator
		rec.Status = StatusPendingPM
		rec.PMDecision = Decision{State: DecisionPending}
		rec.FinalDecision = Decision{State: DecisionPending}
		rec.Targets = nil
		rec.ModifiedAt = now

		causes, atts := buildChildren(rec.ID, p)
		if err := s.records.ReplaceContent(ctx, rec, causes, atts, prev); err != nil {
			return fmt.Errorf("rewriting record: %w", err)
		}

		docPath, err := s.renderAndStore(ctx, rec, causes)
		if err != nil {
			return err
		}
		rec.GeneratedDoc = docPath
		if err := s.records.SetGeneratedDoc(ctx, rec.ID, docPath); err != nil {
			return fmt.Errorf("storing document path: %w", err)
		}

		pmTok, err := s.tokens.Issue(ctx, token.PurposePMReview, rec.ID, s.reviewTTL)
		if err != nil {
			return err
		}
		return s.outbox.Enqueue(ctx, s.mails.PMReview(validator, rec.ID, rec.ProblemShort, pmTok))
	})
	if err != nil {
		return nil, err
	}

	s.wakeMail()
	s.logger.Info("record resubmitted", "record_id", rec.ID, "plant", rec.Plant)
	return rec, nil
}

// Get returns a record with its children.
func (s *Service) Get(ctx context.Context, id string) (*Detail, error) {
	detail, err := s.records.GetDetail(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("getting record: %w", err)
	}
	return detail, nil
}

// GetForReview returns a record to an unauthenticated reviewer holding a live
// capability token. The token is validated, not consumed: viewing is free,
// deciding spends it.
func (s *Service) GetForReview(ctx context.Context, purpose token.Purpose, id, tok string) (*Detail, error) {
	if err := s.tokens.Validate(ctx, purpose, id, tok); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// List returns record references filtered by status and plant.
func (s *Service) List(ctx context.Context, opts ListOptions) ([]Ref, error) {
	return s.records.List(ctx, opts)
}

// Delete removes a record and everything attached to it: root causes,
// attachments, processing units, tokens. Administrative use only.
func (s *Service) Delete(ctx context.Context, id string) error {
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		rec, err := s.records.Get(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrRecordNotFound
			}
			return fmt.Errorf("loading record: %w", err)
		}

		targets, err := s.records.GetTargets(ctx, id)
		if err != nil {
			return fmt.Errorf("loading targets: %w", err)
		}
		unitIDs, err := s.units.DeleteByRecord(ctx, id)
		if err != nil {
			return fmt.Errorf("deleting units: %w", err)
		}
		resources := append([]string{id}, unitIDs...)
		for _, plant := range targets {
			resources = append(resources, token.EvidenceResource(id, plant))
		}
		if err := s.tokens.InvalidateResource(ctx, resources...); err != nil {
			return err
		}
		if err := s.records.Delete(ctx, id); err != nil {
			return fmt.Errorf("deleting record: %w", err)
		}

		s.logger.Info("record deleted", "record_id", id, "status", rec.Status)
		return nil
	})
	return err
}

// wakeMail asks the dispatcher to drain the outbox now that the enqueueing
// transaction has committed.
func (s *Service) wakeMail() {
	if s.waker != nil {
		s.waker.Kick()
	}
}

// renderAndStore renders the report and writes it to the document store.
// Render failure aborts the submission; it is the one synchronous collaborator.
func (s *Service) renderAndStore(ctx context.Context, rec *Record, causes []RootCause) (string, error) {
	data := buildReportData(rec, causes, s.previewTargets(rec))
	doc, err := s.renderer.Render(ctx, data)
	if err != nil {
		return "", fmt.Errorf("rendering report: %w", err)
	}

	name := fmt.Sprintf("LLC_%s_%d_%s.html", rec.ID, time.Now().UnixMilli(), rec.Customer)
	path, err := s.docs.Save(name, doc)
	if err != nil {
		return "", fmt.Errorf("storing report: %w", err)
	}
	return path, nil
}

// previewTargets computes the distribution list for display in the report.
// Unlike the final-approval path, an unknown product line renders as an empty
// list here; it only becomes a hard error when the record tries to enter
// distribution.
func (s *Service) previewTargets(rec *Record) []string {
	targets, err := s.resolver.Targets(rec.ProductLineLabel, rec.Plant)
	if err != nil {
		return nil
	}
	return targets
}

func buildChildren(recordID string, req SubmitRequest) ([]RootCause, []Attachment) {
	causes := make([]RootCause, len(req.RootCauses))
	for i, rc := range req.RootCauses {
		causes[i] = RootCause{
			ID:                       uuid.NewString(),
			RecordID:                 recordID,
			RootCause:                rc.RootCause,
			DetailedCauseDescription: rc.DetailedCauseDescription,
			SolutionDescription:      rc.SolutionDescription,
			Conclusion:               rc.Conclusion,
			Process:                  rc.Process,
			Origin:                   rc.Origin,
		}
	}

	atts := make([]Attachment, 0, len(req.Attachments))
	for _, a := range req.Attachments {
		att := Attachment{
			ID:          uuid.NewString(),
			RecordID:    recordID,
			Scope:       a.Scope,
			Filename:    a.Filename,
			StoragePath: a.StoragePath,
		}
		if a.RootCauseIndex != nil && *a.RootCauseIndex >= 0 && *a.RootCauseIndex < len(causes) {
			id := causes[*a.RootCauseIndex].ID
			att.RootCauseID = &id
			att.Scope = ScopeRootCause
		}
		atts = append(atts, att)
	}
	return causes, atts
}

func buildReportData(rec *Record, causes []RootCause, targets []string) render.ReportData {
	data := render.ReportData{
		ID:                  rec.ID,
		Category:            rec.Category,
		ProblemShort:        rec.ProblemShort,
		ProblemDetail:       rec.ProblemDetail,
		LlcType:             rec.LlcType,
		Customer:            rec.Customer,
		ProductFamily:       rec.ProductFamily,
		ProductType:         rec.ProductType,
		QualityDetection:    rec.QualityDetection,
		ApplicationLabel:    rec.ApplicationLabel,
		ProductLineLabel:    rec.ProductLineLabel,
		PartOrMachineNumber: rec.PartOrMachineNumber,
		Editor:              rec.Editor,
		Plant:               rec.Plant,
		FailureMode:         rec.FailureMode,
		Conclusions:         rec.Conclusions,
		DistributionTo:      targets,
		CreatedAt:           rec.CreatedAt.Format("02/01/2006"),
	}
	for i, rc := range causes {
		data.RootCauses = append(data.RootCauses, render.ReportRootCause{
			Index:                    i + 1,
			RootCause:                rc.RootCause,
			DetailedCauseDescription: rc.DetailedCauseDescription,
			SolutionDescription:      rc.SolutionDescription,
			Conclusion:               rc.Conclusion,
			Process:                  rc.Process,
			Origin:                   rc.Origin,
		})
	}
	return data
}
