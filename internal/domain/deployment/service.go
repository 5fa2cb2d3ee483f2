package deployment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/STS-Engineer/llc-backend/internal/domain/llc"
	"github.com/STS-Engineer/llc-backend/internal/domain/token"
	"github.com/STS-Engineer/llc-backend/internal/notify"
	"github.com/STS-Engineer/llc-backend/internal/repository"
	"github.com/google/uuid"
)

// Service handles the distribution phase: per-plant evidence submission,
// per-unit review decisions, aggregation, and rework. Every state change runs
// inside one transaction together with the token consumption that authorized
// it and the outbox rows it produces.
type Service struct {
	units     UnitRepository
	records   RecordRepository
	tokens    TokenService
	outbox    Outbox
	waker     Waker
	contacts  ContactResolver
	tx        repository.Tx
	mails     notify.MailBuilder
	logger    *slog.Logger
	reviewTTL time.Duration
	reworkTTL time.Duration

	// adminEmail receives terminal-outcome notifications.
	adminEmail string
}

// Config bundles the service dependencies.
type Config struct {
	Units      UnitRepository
	Records    RecordRepository
	Tokens     TokenService
	Outbox     Outbox
	Waker      Waker // optional; nil means mail waits for the next poll
	Contacts   ContactResolver
	Tx         repository.Tx
	Mails      notify.MailBuilder
	Logger     *slog.Logger
	ReviewTTL  time.Duration
	ReworkTTL  time.Duration
	AdminEmail string
}

// NewService creates a new deployment service.
func NewService(cfg Config) *Service {
	return &Service{
		units:      cfg.Units,
		records:    cfg.Records,
		tokens:     cfg.Tokens,
		outbox:     cfg.Outbox,
		waker:      cfg.Waker,
		contacts:   cfg.Contacts,
		tx:         cfg.Tx,
		mails:      cfg.Mails,
		logger:     cfg.Logger,
		reviewTTL:  cfg.ReviewTTL,
		reworkTTL:  cfg.ReworkTTL,
		adminEmail: cfg.AdminEmail,
	}
}

// EvidenceRequest describes a plant's deployment evidence submission.
type EvidenceRequest struct {
	RecordID       string
	Plant          string
	Token          string
	Summary        string
	Details        string
	AttachmentPath string
	SubmittedBy    string
}

// DecideRequest describes a reviewer's decision on one unit.
type DecideRequest struct {
	UnitID  string
	Token   string
	Approve bool
	Reason  string
}

// ReworkRequest describes resubmitted evidence for a rejected unit.
type ReworkRequest struct {
	UnitID         string
	Token          string
	Summary        string
	Details        string
	AttachmentPath string
	SubmittedBy    string
}

// SubmitEvidence creates the plant's processing unit. When the last target
// plant submits, the record moves to DEPLOYMENT_PROCESSING in the same
// transaction.
func (s *Service) SubmitEvidence(ctx context.Context, req EvidenceRequest) (*ProcessingUnit, error) {
	if strings.TrimSpace(req.Plant) == "" || strings.TrimSpace(req.Summary) == "" ||
		strings.TrimSpace(req.SubmittedBy) == "" {
		return nil, ErrInvalidInput
	}

	var unit *ProcessingUnit
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		resource := token.EvidenceResource(req.RecordID, req.Plant)
		if err := s.tokens.Consume(ctx, token.PurposeEvidenceSubmit, resource, req.Token); err != nil {
			return err
		}

		rec, err := s.records.Get(ctx, req.RecordID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrRecordNotFound
			}
			return fmt.Errorf("loading record: %w", err)
		}
		if rec.Status != llc.StatusDistributing {
			return ErrNotDistributing
		}

		targets, err := s.records.GetTargets(ctx, rec.ID)
		if err != nil {
			return fmt.Errorf("loading targets: %w", err)
		}
		if !contains(targets, req.Plant) {
			return ErrNotATarget
		}

		now := time.Now()
		unit = &ProcessingUnit{
			ID:             uuid.NewString(),
			RecordID:       rec.ID,
			Plant:          req.Plant,
			Summary:        req.Summary,
			Details:        req.Details,
			AttachmentPath: req.AttachmentPath,
			SubmittedBy:    req.SubmittedBy,
			Decision:       DecisionPending,
			CreatedAt:      now,
			ModifiedAt:     now,
		}
		if err := s.units.Create(ctx, unit); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return ErrDuplicateUnit
			}
			return fmt.Errorf("creating unit: %w", err)
		}

		reviewTok, err := s.tokens.Issue(ctx, token.PurposeUnitReview, unit.ID, s.reviewTTL)
		if err != nil {
			return err
		}
		if err := s.outbox.Enqueue(ctx, s.mails.UnitReview(rec.Validator, unit.ID, rec.ID, unit.Plant, reviewTok)); err != nil {
			return fmt.Errorf("enqueueing review mail: %w", err)
		}

		units, err := s.units.ListByRecord(ctx, rec.ID)
		if err != nil {
			return fmt.Errorf("listing units: %w", err)
		}
		if AllSubmitted(targets, units) {
			rec.Status = llc.StatusDeploymentProcessing
			rec.ModifiedAt = now
			if err := s.records.Update(ctx, rec, llc.StatusDistributing); err != nil {
				return fmt.Errorf("moving record to processing: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.wakeMail()
	s.logger.Info("deployment evidence submitted",
		"record_id", req.RecordID, "plant", req.Plant, "unit_id", unit.ID)
	return unit, nil
}

// Decide records one reviewer decision on a unit and recomputes the aggregate
// from a fresh read of all units inside the same transaction. A rejection
// short-circuits the whole distribution.
func (s *Service) Decide(ctx context.Context, req DecideRequest) (*ProcessingUnit, error) {
	if !req.Approve {
		if err := llc.ValidateReason(req.Reason); err != nil {
			return nil, err
		}
	}

	var unit *ProcessingUnit
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.tokens.Consume(ctx, token.PurposeUnitReview, req.UnitID, req.Token); err != nil {
			return err
		}

		var err error
		unit, err = s.units.Get(ctx, req.UnitID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrUnitNotFound
			}
			return fmt.Errorf("loading unit: %w", err)
		}
		if unit.Decision != DecisionPending {
			return ErrAlreadyDecided
		}

		rec, err := s.records.Get(ctx, unit.RecordID)
		if err != nil {
			return fmt.Errorf("loading record: %w", err)
		}
		if rec.Status != llc.StatusDistributing && rec.Status != llc.StatusDeploymentProcessing {
			return llc.ErrIllegalTransition
		}

		now := time.Now()
		unit.DecidedAt = &now
		unit.ModifiedAt = now
		if req.Approve {
			unit.Decision = DecisionApproved
		} else {
			unit.Decision = DecisionRejected
			unit.RejectReason = strings.TrimSpace(req.Reason)
		}
		if err := s.units.Update(ctx, unit, DecisionPending); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return ErrAlreadyDecided
			}
			return fmt.Errorf("updating unit: %w", err)
		}

		return s.aggregate(ctx, rec, unit, now)
	})
	if err != nil {
		return nil, err
	}

	s.wakeMail()
	s.logger.Info("deployment decision recorded",
		"unit_id", unit.ID, "record_id", unit.RecordID, "plant", unit.Plant,
		"decision", unit.Decision)
	return unit, nil
}

// aggregate re-reads the record's units and targets and applies the fan-in
// rule. It runs inside the transaction that wrote the triggering decision, so
// two concurrent "last approval" writers cannot both observe an incomplete
// aggregate: the second one re-reads after the first committed (or conflicts
// on the guarded status update).
func (s *Service) aggregate(ctx context.Context, rec *llc.Record, decided *ProcessingUnit, now time.Time) error {
	targets, err := s.records.GetTargets(ctx, rec.ID)
	if err != nil {
		return fmt.Errorf("loading targets: %w", err)
	}
	units, err := s.units.ListByRecord(ctx, rec.ID)
	if err != nil {
		return fmt.Errorf("listing units: %w", err)
	}

	switch Aggregate(targets, units) {
	case OutcomeRejected:
		from := rec.Status
		rec.Status = llc.StatusDeploymentRejected
		rec.ModifiedAt = now
		if err := s.records.Update(ctx, rec, from); err != nil {
			return fmt.Errorf("rejecting distribution: %w", err)
		}

		reworkTok, err := s.tokens.Issue(ctx, token.PurposeRework, decided.ID, s.reworkTTL)
		if err != nil {
			return err
		}
		msg := s.mails.Rework(decided.SubmittedBy, decided.ID, rec.ID, decided.Plant, decided.RejectReason, reworkTok)
		if err := s.outbox.Enqueue(ctx, msg); err != nil {
			return fmt.Errorf("enqueueing rework mail: %w", err)
		}

	case OutcomeValidated:
		rec.Status = llc.StatusDeploymentValidated
		rec.ModifiedAt = now
		if err := s.records.Update(ctx, rec, llc.StatusDeploymentProcessing); err != nil {
			return fmt.Errorf("validating distribution: %w", err)
		}
		if err := s.notifyCompletion(ctx, rec, targets); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) notifyCompletion(ctx context.Context, rec *llc.Record, targets []string) error {
	recipients := make([]string, 0, len(targets)+1)
	for _, plant := range targets {
		contact, err := s.contacts.ContactFor(plant)
		if err != nil {
			// Targets were resolved against the same configuration when the
			// record entered distribution; a gap here is logged, not fatal.
			s.logger.Warn("no contact for distribution site", "plant", plant, "record_id", rec.ID)
			continue
		}
		recipients = append(recipients, contact)
	}
	recipients = append(recipients, s.adminEmail)

	for _, to := range recipients {
		if err := s.outbox.Enqueue(ctx, s.mails.Completed(to, rec.ID, true)); err != nil {
			return fmt.Errorf("enqueueing completion mail: %w", err)
		}
	}
	return nil
}

// Rework resets a rejected unit with fresh evidence and reopens the record:
// back to DEPLOYMENT_PROCESSING when every target has submitted, back to
// DISTRIBUTING when some plants still owe evidence.
func (s *Service) Rework(ctx context.Context, req ReworkRequest) (*ProcessingUnit, error) {
	if strings.TrimSpace(req.Summary) == "" || strings.TrimSpace(req.SubmittedBy) == "" {
		return nil, ErrInvalidInput
	}

	var unit *ProcessingUnit
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.tokens.Consume(ctx, token.PurposeRework, req.UnitID, req.Token); err != nil {
			return err
		}

		var err error
		unit, err = s.units.Get(ctx, req.UnitID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrUnitNotFound
			}
			return fmt.Errorf("loading unit: %w", err)
		}
		if unit.Decision != DecisionRejected {
			return ErrNotRejected
		}

		rec, err := s.records.Get(ctx, unit.RecordID)
		if err != nil {
			return fmt.Errorf("loading record: %w", err)
		}
		if rec.Status != llc.StatusDeploymentRejected {
			return llc.ErrIllegalTransition
		}

		now := time.Now()
		unit.Summary = req.Summary
		unit.Details = req.Details
		unit.AttachmentPath = req.AttachmentPath
		unit.SubmittedBy = req.SubmittedBy
		unit.Decision = DecisionPending
		unit.DecidedAt = nil
		unit.RejectReason = ""
		unit.ModifiedAt = now
		if err := s.units.Update(ctx, unit, DecisionRejected); err != nil {
			return fmt.Errorf("resetting unit: %w", err)
		}

		reviewTok, err := s.tokens.Issue(ctx, token.PurposeUnitReview, unit.ID, s.reviewTTL)
		if err != nil {
			return err
		}
		if err := s.outbox.Enqueue(ctx, s.mails.UnitReview(rec.Validator, unit.ID, rec.ID, unit.Plant, reviewTok)); err != nil {
			return fmt.Errorf("enqueueing review mail: %w", err)
		}

		// The rejection may have landed while plants were still submitting.
		// Reopen as DISTRIBUTING in that case so the outstanding evidence
		// tokens stay usable; DEPLOYMENT_PROCESSING only ever holds a record
		// whose every target has submitted.
		targets, err := s.records.GetTargets(ctx, rec.ID)
		if err != nil {
			return fmt.Errorf("loading targets: %w", err)
		}
		units, err := s.units.ListByRecord(ctx, rec.ID)
		if err != nil {
			return fmt.Errorf("listing units: %w", err)
		}
		rec.Status = llc.StatusDeploymentProcessing
		if !AllSubmitted(targets, units) {
			rec.Status = llc.StatusDistributing
		}
		rec.ModifiedAt = now
		if err := s.records.Update(ctx, rec, llc.StatusDeploymentRejected); err != nil {
			return fmt.Errorf("reopening distribution: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.wakeMail()
	s.logger.Info("deployment evidence reworked", "unit_id", unit.ID, "record_id", unit.RecordID)
	return unit, nil
}

// wakeMail asks the dispatcher to drain the outbox now that the enqueueing
// transaction has committed.
func (s *Service) wakeMail() {
	if s.waker != nil {
		s.waker.Kick()
	}
}

// ListByRecord returns a record's units.
func (s *Service) ListByRecord(ctx context.Context, recordID string) ([]ProcessingUnit, error) {
	return s.units.ListByRecord(ctx, recordID)
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
