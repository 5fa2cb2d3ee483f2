package transport

import (
	"context"
	"net/http"
	"strconv"

	"github.com/STS-Engineer/llc-backend/internal/domain/deployment"
	"github.com/STS-Engineer/llc-backend/internal/domain/llc"
	"github.com/STS-Engineer/llc-backend/internal/domain/token"
	"github.com/STS-Engineer/llc-backend/internal/domain/user"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// RecordService is the workflow orchestrator surface the API exposes.
type RecordService interface {
	Submit(ctx context.Context, req llc.SubmitRequest) (*llc.Record, error)
	Decide(ctx context.Context, req llc.DecideRequest) (*llc.Record, error)
	Resubmit(ctx context.Context, req llc.ResubmitRequest) (*llc.Record, error)
	Get(ctx context.Context, id string) (*llc.Detail, error)
	GetForReview(ctx context.Context, purpose token.Purpose, id, tok string) (*llc.Detail, error)
	List(ctx context.Context, opts llc.ListOptions) ([]llc.Ref, error)
	Delete(ctx context.Context, id string) error
}

// DeploymentService is the distribution-stage surface the API exposes.
type DeploymentService interface {
	SubmitEvidence(ctx context.Context, req deployment.EvidenceRequest) (*deployment.ProcessingUnit, error)
	Decide(ctx context.Context, req deployment.DecideRequest) (*deployment.ProcessingUnit, error)
	Rework(ctx context.Context, req deployment.ReworkRequest) (*deployment.ProcessingUnit, error)
	ListByRecord(ctx context.Context, recordID string) ([]deployment.ProcessingUnit, error)
}

// AccountService handles sign-up, sign-in, and session verification.
type AccountService interface {
	SignUp(ctx context.Context, req user.SignUpRequest) (*user.User, error)
	SignIn(ctx context.Context, email, password string) (string, *user.User, error)
	VerifySession(tok string) (*user.Principal, error)
}

// Server wires HTTP handlers.
type Server struct {
	records     RecordService
	deployments DeploymentService
	accounts    AccountService
}

// NewServer creates the API router. The session-authenticated surface is for
// editors at the origin plant; the review surface is open and authorized per
// request by single-use capability tokens carried in the payload.
func NewServer(records RecordService, deployments DeploymentService, accounts AccountService) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	srv := &Server{records: records, deployments: deployments, accounts: accounts}

	r.Get("/health", srv.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/signup", srv.handleSignUp)
		r.Post("/auth/signin", srv.handleSignIn)

		// Review surface, reached from mailed links.
		r.Get("/review/{stage}/{id}", srv.handleReviewGet)
		r.Post("/review/{stage}/{id}/decision", srv.handleReviewDecide)
		r.Post("/llc/{id}/evidence", srv.handleEvidence)
		r.Post("/units/{unitID}/decision", srv.handleUnitDecide)
		r.Post("/units/{unitID}/rework", srv.handleRework)

		// Editor surface.
		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(srv.accounts))
			r.Post("/llc", srv.handleSubmit)
			r.Get("/llc", srv.handleList)
			r.Get("/llc/{id}", srv.handleGet)
			r.Put("/llc/{id}", srv.handleResubmit)
			r.Delete("/llc/{id}", srv.handleDelete)
			r.Get("/llc/{id}/units", srv.handleListUnits)
		})
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var req user.SignUpRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	u, err := s.accounts.SignUp(r.Context(), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	tok, u, err := s.accounts.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"token": tok, "user": u})
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	p, ok := PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing session")
		return
	}

	var req llc.SubmitRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Plant = p.Plant
	req.EditorEmail = p.Email

	rec, err := s.records.Submit(r.Context(), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	opts := llc.ListOptions{
		Status: llc.Status(r.URL.Query().Get("status")),
		Plant:  r.URL.Query().Get("plant"),
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		opts.Limit = n
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid offset")
			return
		}
		opts.Offset = n
	}

	refs, err := s.records.List(r.Context(), opts)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, refs)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	detail, err := s.records.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) handleResubmit(w http.ResponseWriter, r *http.Request) {
	p, ok := PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing session")
		return
	}

	var payload llc.SubmitRequest
	if err := decode(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	payload.Plant = p.Plant
	payload.EditorEmail = p.Email

	rec, err := s.records.Resubmit(r.Context(), llc.ResubmitRequest{
		RecordID:   chi.URLParam(r, "id"),
		ActorEmail: p.Email,
		ActorPlant: p.Plant,
		Payload:    payload,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	p, ok := PrincipalFromContext(r.Context())
	if !ok || p.Role != user.RoleAdmin {
		writeError(w, http.StatusForbidden, "admin only")
		return
	}

	if err := s.records.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListUnits(w http.ResponseWriter, r *http.Request) {
	units, err := s.deployments.ListByRecord(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, units)
}

// reviewPurpose maps the URL stage segment to a token purpose.
func reviewPurpose(stage string) (token.Purpose, bool) {
	switch stage {
	case "pm":
		return token.PurposePMReview, true
	case "final":
		return token.PurposeFinalReview, true
	}
	return "", false
}

func (s *Server) handleReviewGet(w http.ResponseWriter, r *http.Request) {
	purpose, ok := reviewPurpose(chi.URLParam(r, "stage"))
	if !ok {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	detail, err := s.records.GetForReview(r.Context(), purpose,
		chi.URLParam(r, "id"), r.URL.Query().Get("token"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) handleReviewDecide(w http.ResponseWriter, r *http.Request) {
	purpose, ok := reviewPurpose(chi.URLParam(r, "stage"))
	if !ok {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	var body struct {
		Token   string `json:"token"`
		Approve bool   `json:"approve"`
		Reason  string `json:"reason"`
	}
	if err := decode(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	rec, err := s.records.Decide(r.Context(), llc.DecideRequest{
		RecordID: chi.URLParam(r, "id"),
		Purpose:  purpose,
		Token:    body.Token,
		Approve:  body.Approve,
		Reason:   body.Reason,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleEvidence(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Token          string `json:"token"`
		Plant          string `json:"plant"`
		Summary        string `json:"summary"`
		Details        string `json:"details"`
		AttachmentPath string `json:"attachment_path"`
		SubmittedBy    string `json:"submitted_by"`
	}
	if err := decode(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	unit, err := s.deployments.SubmitEvidence(r.Context(), deployment.EvidenceRequest{
		RecordID:       chi.URLParam(r, "id"),
		Plant:          body.Plant,
		Token:          body.Token,
		Summary:        body.Summary,
		Details:        body.Details,
		AttachmentPath: body.AttachmentPath,
		SubmittedBy:    body.SubmittedBy,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, unit)
}

func (s *Server) handleUnitDecide(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Token   string `json:"token"`
		Approve bool   `json:"approve"`
		Reason  string `json:"reason"`
	}
	if err := decode(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	unit, err := s.deployments.Decide(r.Context(), deployment.DecideRequest{
		UnitID:  chi.URLParam(r, "unitID"),
		Token:   body.Token,
		Approve: body.Approve,
		Reason:  body.Reason,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, unit)
}

func (s *Server) handleRework(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Token          string `json:"token"`
		Summary        string `json:"summary"`
		Details        string `json:"details"`
		AttachmentPath string `json:"attachment_path"`
		SubmittedBy    string `json:"submitted_by"`
	}
	if err := decode(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	unit, err := s.deployments.Rework(r.Context(), deployment.ReworkRequest{
		UnitID:         chi.URLParam(r, "unitID"),
		Token:          body.Token,
		Summary:        body.Summary,
		Details:        body.Details,
		AttachmentPath: body.AttachmentPath,
		SubmittedBy:    body.SubmittedBy,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, unit)
}
