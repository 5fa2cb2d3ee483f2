// Package testserver wires the full stack against an in-memory database for
// end-to-end tests. Mail is captured in the outbox instead of being delivered,
// so tests can follow the same token links real recipients would.
package testserver

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/STS-Engineer/llc-backend/internal/domain/deployment"
	"github.com/STS-Engineer/llc-backend/internal/domain/distribution"
	"github.com/STS-Engineer/llc-backend/internal/domain/llc"
	"github.com/STS-Engineer/llc-backend/internal/domain/token"
	"github.com/STS-Engineer/llc-backend/internal/domain/user"
	"github.com/STS-Engineer/llc-backend/internal/notify"
	"github.com/STS-Engineer/llc-backend/internal/render"
	"github.com/STS-Engineer/llc-backend/internal/sqlite"
	"github.com/STS-Engineer/llc-backend/internal/transport"
	"github.com/stretchr/testify/require"
)

const (
	BaseURL       = "https://llc.avocarbon.com"
	FinalApprover = "quality.director@avocarbon.com"
	AdminEmail    = "quality.admin@avocarbon.com"
)

// Plants used by the test distribution matrix.
const (
	PlantPoitiers = "POITIERS"
	PlantKunshan  = "KUNSHAN"
	PlantAmiens   = "AMIENS"
)

// TestServer is the assembled stack.
type TestServer struct {
	Server *httptest.Server
	DB     *sqlite.DB
	Outbox *sqlite.OutboxStore
}

// ValidatorFor returns the mail address configured for a plant's validator.
func ValidatorFor(plant string) string {
	return "pm." + strings.ToLower(plant) + "@avocarbon.com"
}

// ContactFor returns the mail address configured for a plant's quality contact.
func ContactFor(plant string) string {
	return "qa." + strings.ToLower(plant) + "@avocarbon.com"
}

// New builds the whole service graph on a fresh in-memory database and
// returns it behind an httptest server.
func New(t *testing.T) *TestServer {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := sqlite.New(dsn)
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations())

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	llcStore := sqlite.NewLlcStore(db)
	unitStore := sqlite.NewUnitStore(db)
	tokenStore := sqlite.NewTokenStore(db)
	userStore := sqlite.NewUserStore(db)
	outboxStore := sqlite.NewOutboxStore(db)

	plants := []string{PlantPoitiers, PlantKunshan, PlantAmiens}
	validators := make(map[string]string, len(plants))
	contacts := make(map[string]string, len(plants))
	for _, p := range plants {
		validators[p] = ValidatorFor(p)
		contacts[p] = ContactFor(p)
	}
	resolver := distribution.NewResolver(map[string][]string{
		"BRUSH HOLDERS": plants,
		"SEAL RINGS":    {PlantPoitiers, PlantKunshan},
	}, validators, contacts)

	tokenSvc := token.NewService(tokenStore, logger)
	mails := notify.MailBuilder{BaseURL: BaseURL}

	renderer, err := render.NewReportRenderer()
	require.NoError(t, err)
	docs, err := render.NewDiskStore(t.TempDir())
	require.NoError(t, err)

	recordSvc := llc.NewService(llc.ServiceConfig{
		Records:       llcStore,
		Units:         unitStore,
		Tokens:        tokenSvc,
		Resolver:      resolver,
		Outbox:        outboxStore,
		Renderer:      renderer,
		Docs:          docs,
		Tx:            db,
		Mails:         mails,
		Logger:        logger,
		ReviewTTL:     30 * 24 * time.Hour,
		FinalApprover: FinalApprover,
	})
	deploymentSvc := deployment.NewService(deployment.Config{
		Units:      unitStore,
		Records:    llcStore,
		Tokens:     tokenSvc,
		Outbox:     outboxStore,
		Contacts:   resolver,
		Tx:         db,
		Mails:      mails,
		Logger:     logger,
		ReviewTTL:  30 * 24 * time.Hour,
		ReworkTTL:  14 * 24 * time.Hour,
		AdminEmail: AdminEmail,
	})
	accountSvc := user.NewService(userStore, "test-secret", time.Hour, resolver.ValidatorFor,
		[]string{AdminEmail}, logger)

	server := httptest.NewServer(transport.NewServer(recordSvc, deploymentSvc, accountSvc))

	ts := &TestServer{Server: server, DB: db, Outbox: outboxStore}
	t.Cleanup(func() {
		server.Close()
		_ = db.Close()
	})
	return ts
}

// Mails returns every undelivered message, oldest first.
func (ts *TestServer) Mails(t *testing.T) []notify.Message {
	t.Helper()
	msgs, err := ts.Outbox.ListPending(context.Background(), 100)
	require.NoError(t, err)
	return msgs
}

// LastMailTo returns the most recent undelivered message for a recipient.
func (ts *TestServer) LastMailTo(t *testing.T, recipient string) notify.Message {
	t.Helper()
	var found *notify.Message
	for _, msg := range ts.Mails(t) {
		if msg.Recipient == recipient {
			m := msg
			found = &m
		}
	}
	require.NotNilf(t, found, "no mail for %s", recipient)
	return *found
}

var linkPattern = regexp.MustCompile(`href="` + regexp.QuoteMeta(BaseURL) + `/([\w-]+)/([\w-]+)\?token=([0-9a-f]+)"`)

// ActionLink extracts the action path, resource id and token from a mailed
// review link.
func ActionLink(t *testing.T, msg notify.Message) (path, resource, tok string) {
	t.Helper()
	m := linkPattern.FindStringSubmatch(msg.Body)
	require.NotNilf(t, m, "no action link in mail %q", msg.Subject)
	return m[1], m[2], m[3]
}
