package deployment_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/STS-Engineer/llc-backend/internal/domain/deployment"
	"github.com/STS-Engineer/llc-backend/internal/domain/llc"
	"github.com/STS-Engineer/llc-backend/internal/domain/token"
	"github.com/STS-Engineer/llc-backend/internal/notify"
	"github.com/STS-Engineer/llc-backend/internal/repository"
	"github.com/STS-Engineer/llc-backend/internal/repository/mocks"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	adminMail     = "quality.admin@avocarbon.com"
	validatorMail = "pm.chennai@avocarbon.com"
)

type fixture struct {
	units    *mocks.UnitRepository
	records  *mocks.LlcRepository
	tokens   *mocks.TokenService
	outbox   *mocks.Outbox
	resolver *mocks.Resolver
	waker    *mocks.Waker
	svc      *deployment.Service
}

func newFixture() *fixture {
	f := &fixture{
		units:    &mocks.UnitRepository{},
		records:  &mocks.LlcRepository{},
		tokens:   &mocks.TokenService{},
		outbox:   &mocks.Outbox{},
		resolver: &mocks.Resolver{},
		waker:    &mocks.Waker{},
	}
	f.svc = deployment.NewService(deployment.Config{
		Units:      f.units,
		Records:    f.records,
		Tokens:     f.tokens,
		Outbox:     f.outbox,
		Waker:      f.waker,
		Contacts:   f.resolver,
		Tx:         mocks.TxRunner{},
		Mails:      notify.MailBuilder{BaseURL: "https://llc.avocarbon.com"},
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		ReviewTTL:  30 * 24 * time.Hour,
		ReworkTTL:  14 * 24 * time.Hour,
		AdminEmail: adminMail,
	})
	return f
}

func distributingRecord() *llc.Record {
	return &llc.Record{
		ID:        "rec-1",
		Plant:     "CHENNAI",
		Validator: validatorMail,
		Status:    llc.StatusDistributing,
	}
}

func pendingUnit(plant string) *deployment.ProcessingUnit {
	return &deployment.ProcessingUnit{
		ID:          "unit-" + plant,
		RecordID:    "rec-1",
		Plant:       plant,
		Summary:     "Deployment checked",
		SubmittedBy: "qa." + plant + "@avocarbon.com",
		Decision:    deployment.DecisionPending,
	}
}

func evidenceRequest(plant string) deployment.EvidenceRequest {
	return deployment.EvidenceRequest{
		RecordID:    "rec-1",
		Plant:       plant,
		Token:       "ev-secret",
		Summary:     "Line audited, countermeasure applied",
		SubmittedBy: "qa." + plant + "@avocarbon.com",
	}
}

func TestDeploymentService_SubmitEvidence(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	f.tokens.On("Consume", ctx, token.PurposeEvidenceSubmit,
		token.EvidenceResource("rec-1", "POITIERS"), "ev-secret").Return(nil)
	f.records.On("Get", ctx, "rec-1").Return(distributingRecord(), nil)
	f.records.On("GetTargets", ctx, "rec-1").Return([]string{"POITIERS", "KUNSHAN"}, nil)
	f.units.On("Create", ctx, mock.Anything).Return(nil)
	f.tokens.On("Issue", ctx, token.PurposeUnitReview, mock.Anything, mock.Anything).Return("review-secret", nil)
	f.units.On("ListByRecord", ctx, "rec-1").Return([]deployment.ProcessingUnit{*pendingUnit("POITIERS")}, nil)

	unit, err := f.svc.SubmitEvidence(ctx, evidenceRequest("POITIERS"))
	require.NoError(t, err)
	require.Equal(t, "POITIERS", unit.Plant)
	require.Equal(t, deployment.DecisionPending, unit.Decision)

	// Review request goes to the origin plant's validator, and the dispatcher
	// is nudged after commit.
	require.Equal(t, []string{validatorMail}, f.outbox.Recipients())
	require.Contains(t, f.outbox.Messages[0].Body, "review-secret")
	require.Equal(t, 1, f.waker.Kicks)

	// Only one of two targets has submitted: the record stays DISTRIBUTING.
	f.records.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
}

func TestDeploymentService_SubmitEvidenceLastPlantMovesRecord(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	f.tokens.On("Consume", ctx, token.PurposeEvidenceSubmit,
		token.EvidenceResource("rec-1", "KUNSHAN"), "ev-secret").Return(nil)
	f.records.On("Get", ctx, "rec-1").Return(distributingRecord(), nil)
	f.records.On("GetTargets", ctx, "rec-1").Return([]string{"POITIERS", "KUNSHAN"}, nil)
	f.units.On("Create", ctx, mock.Anything).Return(nil)
	f.tokens.On("Issue", ctx, token.PurposeUnitReview, mock.Anything, mock.Anything).Return("review-secret", nil)
	f.units.On("ListByRecord", ctx, "rec-1").Return([]deployment.ProcessingUnit{
		*pendingUnit("POITIERS"), *pendingUnit("KUNSHAN"),
	}, nil)

	var updated *llc.Record
	f.records.On("Update", ctx, mock.Anything, llc.StatusDistributing).
		Run(func(args mock.Arguments) { updated = args.Get(1).(*llc.Record) }).Return(nil)

	_, err := f.svc.SubmitEvidence(ctx, evidenceRequest("KUNSHAN"))
	require.NoError(t, err)
	require.NotNil(t, updated)
	require.Equal(t, llc.StatusDeploymentProcessing, updated.Status)
}

func TestDeploymentService_SubmitEvidenceGuards(t *testing.T) {
	ctx := context.Background()

	t.Run("bad token", func(t *testing.T) {
		f := newFixture()
		f.tokens.On("Consume", ctx, token.PurposeEvidenceSubmit,
			token.EvidenceResource("rec-1", "POITIERS"), "ev-secret").Return(token.ErrInvalidOrExpired)

		_, err := f.svc.SubmitEvidence(ctx, evidenceRequest("POITIERS"))
		require.ErrorIs(t, err, token.ErrInvalidOrExpired)
		f.units.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("record not distributing", func(t *testing.T) {
		f := newFixture()
		rec := distributingRecord()
		rec.Status = llc.StatusDeploymentProcessing
		f.tokens.On("Consume", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
		f.records.On("Get", ctx, "rec-1").Return(rec, nil)

		_, err := f.svc.SubmitEvidence(ctx, evidenceRequest("POITIERS"))
		require.ErrorIs(t, err, deployment.ErrNotDistributing)
	})

	t.Run("plant not a target", func(t *testing.T) {
		f := newFixture()
		f.tokens.On("Consume", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
		f.records.On("Get", ctx, "rec-1").Return(distributingRecord(), nil)
		f.records.On("GetTargets", ctx, "rec-1").Return([]string{"KUNSHAN"}, nil)

		_, err := f.svc.SubmitEvidence(ctx, evidenceRequest("POITIERS"))
		require.ErrorIs(t, err, deployment.ErrNotATarget)
	})

	t.Run("duplicate unit", func(t *testing.T) {
		f := newFixture()
		f.tokens.On("Consume", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
		f.records.On("Get", ctx, "rec-1").Return(distributingRecord(), nil)
		f.records.On("GetTargets", ctx, "rec-1").Return([]string{"POITIERS"}, nil)
		f.units.On("Create", ctx, mock.Anything).Return(repository.ErrDuplicate)

		_, err := f.svc.SubmitEvidence(ctx, evidenceRequest("POITIERS"))
		require.ErrorIs(t, err, deployment.ErrDuplicateUnit)
	})

	t.Run("blank summary", func(t *testing.T) {
		f := newFixture()
		req := evidenceRequest("POITIERS")
		req.Summary = "  "
		_, err := f.svc.SubmitEvidence(ctx, req)
		require.ErrorIs(t, err, deployment.ErrInvalidInput)
	})
}

func TestDeploymentService_DecideApproveKeepsOpen(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	rec := distributingRecord()
	rec.Status = llc.StatusDeploymentProcessing

	f.tokens.On("Consume", ctx, token.PurposeUnitReview, "unit-POITIERS", "rv-secret").Return(nil)
	f.units.On("Get", ctx, "unit-POITIERS").Return(pendingUnit("POITIERS"), nil)
	f.records.On("Get", ctx, "rec-1").Return(rec, nil)
	f.units.On("Update", ctx, mock.Anything, deployment.DecisionPending).Return(nil)
	f.records.On("GetTargets", ctx, "rec-1").Return([]string{"POITIERS", "KUNSHAN"}, nil)

	approved := *pendingUnit("POITIERS")
	approved.Decision = deployment.DecisionApproved
	f.units.On("ListByRecord", ctx, "rec-1").Return([]deployment.ProcessingUnit{
		approved, *pendingUnit("KUNSHAN"),
	}, nil)

	unit, err := f.svc.Decide(ctx, deployment.DecideRequest{
		UnitID:  "unit-POITIERS",
		Token:   "rv-secret",
		Approve: true,
	})
	require.NoError(t, err)
	require.Equal(t, deployment.DecisionApproved, unit.Decision)

	// One target still pending: no record transition, no mail.
	f.records.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
	require.Empty(t, f.outbox.Messages)
}

func TestDeploymentService_DecideLastApprovalValidates(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	rec := distributingRecord()
	rec.Status = llc.StatusDeploymentProcessing

	f.tokens.On("Consume", ctx, token.PurposeUnitReview, "unit-KUNSHAN", "rv-secret").Return(nil)
	f.units.On("Get", ctx, "unit-KUNSHAN").Return(pendingUnit("KUNSHAN"), nil)
	f.records.On("Get", ctx, "rec-1").Return(rec, nil)
	f.units.On("Update", ctx, mock.Anything, deployment.DecisionPending).Return(nil)
	f.records.On("GetTargets", ctx, "rec-1").Return([]string{"POITIERS", "KUNSHAN"}, nil)

	poitiers := *pendingUnit("POITIERS")
	poitiers.Decision = deployment.DecisionApproved
	kunshan := *pendingUnit("KUNSHAN")
	kunshan.Decision = deployment.DecisionApproved
	f.units.On("ListByRecord", ctx, "rec-1").Return([]deployment.ProcessingUnit{poitiers, kunshan}, nil)

	var updated *llc.Record
	f.records.On("Update", ctx, mock.Anything, llc.StatusDeploymentProcessing).
		Run(func(args mock.Arguments) { updated = args.Get(1).(*llc.Record) }).Return(nil)
	f.resolver.On("ContactFor", "POITIERS").Return("qa.poitiers@avocarbon.com", nil)
	f.resolver.On("ContactFor", "KUNSHAN").Return("qa.kunshan@avocarbon.com", nil)

	_, err := f.svc.Decide(ctx, deployment.DecideRequest{
		UnitID:  "unit-KUNSHAN",
		Token:   "rv-secret",
		Approve: true,
	})
	require.NoError(t, err)
	require.Equal(t, llc.StatusDeploymentValidated, updated.Status)

	// Completion notice reaches every target contact plus the admin.
	require.Equal(t, []string{"qa.poitiers@avocarbon.com", "qa.kunshan@avocarbon.com", adminMail},
		f.outbox.Recipients())
}

func TestDeploymentService_DecideRejectShortCircuits(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	rec := distributingRecord()
	rec.Status = llc.StatusDeploymentProcessing

	f.tokens.On("Consume", ctx, token.PurposeUnitReview, "unit-POITIERS", "rv-secret").Return(nil)
	f.units.On("Get", ctx, "unit-POITIERS").Return(pendingUnit("POITIERS"), nil)
	f.records.On("Get", ctx, "rec-1").Return(rec, nil)
	f.units.On("Update", ctx, mock.Anything, deployment.DecisionPending).Return(nil)
	f.records.On("GetTargets", ctx, "rec-1").Return([]string{"POITIERS", "KUNSHAN"}, nil)

	rejected := *pendingUnit("POITIERS")
	rejected.Decision = deployment.DecisionRejected
	rejected.RejectReason = "evidence does not cover night shift"
	rejected.SubmittedBy = "qa.POITIERS@avocarbon.com"
	kunshanApproved := *pendingUnit("KUNSHAN")
	kunshanApproved.Decision = deployment.DecisionApproved
	f.units.On("ListByRecord", ctx, "rec-1").Return([]deployment.ProcessingUnit{rejected, kunshanApproved}, nil)

	var updated *llc.Record
	f.records.On("Update", ctx, mock.Anything, llc.StatusDeploymentProcessing).
		Run(func(args mock.Arguments) { updated = args.Get(1).(*llc.Record) }).Return(nil)
	f.tokens.On("Issue", ctx, token.PurposeRework, "unit-POITIERS", 14*24*time.Hour).Return("rework-secret", nil)

	unit, err := f.svc.Decide(ctx, deployment.DecideRequest{
		UnitID:  "unit-POITIERS",
		Token:   "rv-secret",
		Approve: false,
		Reason:  "evidence does not cover night shift",
	})
	require.NoError(t, err)
	require.Equal(t, deployment.DecisionRejected, unit.Decision)
	require.Equal(t, llc.StatusDeploymentRejected, updated.Status)

	// The submitting plant gets the rework link; nobody else is notified.
	require.Equal(t, []string{unit.SubmittedBy}, f.outbox.Recipients())
	require.Contains(t, f.outbox.Messages[0].Body, "rework-secret")
}

func TestDeploymentService_DecideRejectNeedsReason(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	_, err := f.svc.Decide(ctx, deployment.DecideRequest{
		UnitID:  "unit-POITIERS",
		Token:   "rv-secret",
		Approve: false,
	})
	require.ErrorIs(t, err, llc.ErrMissingReason)
	f.tokens.AssertNotCalled(t, "Consume", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestDeploymentService_DecideAlreadyDecided(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	decided := pendingUnit("POITIERS")
	decided.Decision = deployment.DecisionApproved
	f.tokens.On("Consume", ctx, token.PurposeUnitReview, "unit-POITIERS", "rv-secret").Return(nil)
	f.units.On("Get", ctx, "unit-POITIERS").Return(decided, nil)

	_, err := f.svc.Decide(ctx, deployment.DecideRequest{
		UnitID:  "unit-POITIERS",
		Token:   "rv-secret",
		Approve: true,
	})
	require.ErrorIs(t, err, deployment.ErrAlreadyDecided)
}

func TestDeploymentService_DecideConcurrentWriterConflicts(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	rec := distributingRecord()
	rec.Status = llc.StatusDeploymentProcessing

	f.tokens.On("Consume", ctx, token.PurposeUnitReview, "unit-POITIERS", "rv-secret").Return(nil)
	f.units.On("Get", ctx, "unit-POITIERS").Return(pendingUnit("POITIERS"), nil)
	f.records.On("Get", ctx, "rec-1").Return(rec, nil)
	// Another transaction decided this unit between our read and write.
	f.units.On("Update", ctx, mock.Anything, deployment.DecisionPending).Return(repository.ErrConflict)

	_, err := f.svc.Decide(ctx, deployment.DecideRequest{
		UnitID:  "unit-POITIERS",
		Token:   "rv-secret",
		Approve: true,
	})
	require.ErrorIs(t, err, deployment.ErrAlreadyDecided)
}

func TestDeploymentService_Rework(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	rejected := pendingUnit("POITIERS")
	rejected.Decision = deployment.DecisionRejected
	rejected.RejectReason = "incomplete"
	rec := distributingRecord()
	rec.Status = llc.StatusDeploymentRejected

	f.tokens.On("Consume", ctx, token.PurposeRework, "unit-POITIERS", "rework-secret").Return(nil)
	f.units.On("Get", ctx, "unit-POITIERS").Return(rejected, nil)
	f.records.On("Get", ctx, "rec-1").Return(rec, nil)
	f.units.On("Update", ctx, mock.Anything, deployment.DecisionRejected).Return(nil)
	f.tokens.On("Issue", ctx, token.PurposeUnitReview, "unit-POITIERS", mock.Anything).Return("review-secret", nil)
	f.records.On("GetTargets", ctx, "rec-1").Return([]string{"POITIERS"}, nil)
	f.units.On("ListByRecord", ctx, "rec-1").Return([]deployment.ProcessingUnit{*rejected}, nil)

	var updated *llc.Record
	f.records.On("Update", ctx, mock.Anything, llc.StatusDeploymentRejected).
		Run(func(args mock.Arguments) { updated = args.Get(1).(*llc.Record) }).Return(nil)

	unit, err := f.svc.Rework(ctx, deployment.ReworkRequest{
		UnitID:      "unit-POITIERS",
		Token:       "rework-secret",
		Summary:     "Night shift audit added",
		SubmittedBy: "qa.poitiers@avocarbon.com",
	})
	require.NoError(t, err)
	require.Equal(t, deployment.DecisionPending, unit.Decision)
	require.Nil(t, unit.DecidedAt)
	require.Empty(t, unit.RejectReason)
	require.Equal(t, "Night shift audit added", unit.Summary)
	require.Equal(t, llc.StatusDeploymentProcessing, updated.Status)

	// The validator gets a fresh review link.
	require.Equal(t, []string{validatorMail}, f.outbox.Recipients())
	require.Contains(t, f.outbox.Messages[0].Body, "review-secret")
}

func TestDeploymentService_ReworkWithOutstandingTargetReopensDistribution(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	// POITIERS was rejected before KUNSHAN ever submitted, so the record was
	// torpedoed straight out of DISTRIBUTING. Rework must reopen it as
	// DISTRIBUTING, not DEPLOYMENT_PROCESSING, or KUNSHAN's evidence token
	// can never be spent.
	rejected := pendingUnit("POITIERS")
	rejected.Decision = deployment.DecisionRejected
	rejected.RejectReason = "incomplete"
	rec := distributingRecord()
	rec.Status = llc.StatusDeploymentRejected

	f.tokens.On("Consume", ctx, token.PurposeRework, "unit-POITIERS", "rework-secret").Return(nil)
	f.units.On("Get", ctx, "unit-POITIERS").Return(rejected, nil)
	f.records.On("Get", ctx, "rec-1").Return(rec, nil)
	f.units.On("Update", ctx, mock.Anything, deployment.DecisionRejected).Return(nil)
	f.tokens.On("Issue", ctx, token.PurposeUnitReview, "unit-POITIERS", mock.Anything).Return("review-secret", nil)
	f.records.On("GetTargets", ctx, "rec-1").Return([]string{"POITIERS", "KUNSHAN"}, nil)
	f.units.On("ListByRecord", ctx, "rec-1").Return([]deployment.ProcessingUnit{*rejected}, nil)

	var updated *llc.Record
	f.records.On("Update", ctx, mock.Anything, llc.StatusDeploymentRejected).
		Run(func(args mock.Arguments) { updated = args.Get(1).(*llc.Record) }).Return(nil)

	_, err := f.svc.Rework(ctx, deployment.ReworkRequest{
		UnitID:      "unit-POITIERS",
		Token:       "rework-secret",
		Summary:     "Night shift audit added",
		SubmittedBy: "qa.poitiers@avocarbon.com",
	})
	require.NoError(t, err)
	require.Equal(t, llc.StatusDistributing, updated.Status)
}

func TestDeploymentService_ReworkGuards(t *testing.T) {
	ctx := context.Background()

	t.Run("unit not rejected", func(t *testing.T) {
		f := newFixture()
		f.tokens.On("Consume", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
		f.units.On("Get", ctx, "unit-POITIERS").Return(pendingUnit("POITIERS"), nil)

		_, err := f.svc.Rework(ctx, deployment.ReworkRequest{
			UnitID:      "unit-POITIERS",
			Token:       "rework-secret",
			Summary:     "again",
			SubmittedBy: "qa@avocarbon.com",
		})
		require.ErrorIs(t, err, deployment.ErrNotRejected)
	})

	t.Run("record moved on", func(t *testing.T) {
		f := newFixture()
		rejected := pendingUnit("POITIERS")
		rejected.Decision = deployment.DecisionRejected
		f.tokens.On("Consume", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
		f.units.On("Get", ctx, "unit-POITIERS").Return(rejected, nil)
		f.records.On("Get", ctx, "rec-1").Return(distributingRecord(), nil)

		_, err := f.svc.Rework(ctx, deployment.ReworkRequest{
			UnitID:      "unit-POITIERS",
			Token:       "rework-secret",
			Summary:     "again",
			SubmittedBy: "qa@avocarbon.com",
		})
		require.ErrorIs(t, err, llc.ErrIllegalTransition)
	})
}
