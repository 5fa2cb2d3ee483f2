package notify

import (
	"fmt"
	"html"
	"net/url"
	"time"

	"github.com/google/uuid"
)

// MailBuilder assembles the workflow's outbound messages. Review links embed
// the capability token as a query parameter; the token never appears anywhere
// else.
type MailBuilder struct {
	BaseURL string
}

// NewMessage wraps recipient/subject/body into a pending outbox message.
func NewMessage(recipient, subject, body string) *Message {
	return &Message{
		ID:        uuid.NewString(),
		Recipient: recipient,
		Subject:   subject,
		Body:      body,
		Status:    StatusPending,
		CreatedAt: time.Now(),
	}
}

func (b MailBuilder) link(path, recordID, token string) string {
	return fmt.Sprintf("%s/%s/%s?token=%s", b.BaseURL, path, recordID, url.QueryEscape(token))
}

func actionButton(href, label string) string {
	return fmt.Sprintf(
		`<p style="margin:24px 0"><a href=%q style="background:#0e4e78;color:#ffffff;padding:12px 20px;border-radius:10px;text-decoration:none;font-weight:600;display:inline-block">%s</a></p>`,
		href, html.EscapeString(label))
}

func footer() string {
	return `<p style="font-size:12px;color:#6b7280">Ce lien est personnel et temporaire.<br/>Si vous n'êtes pas le bon validateur, ignorez ce message.</p>`
}

// PMReview asks the plant validator to review a freshly submitted card.
func (b MailBuilder) PMReview(to, recordID, problemShort, tok string) *Message {
	subject := fmt.Sprintf("LLC %s – Validation PM requise", recordID)
	body := fmt.Sprintf(`<div style="font-family:Segoe UI, Arial, sans-serif; line-height:1.6">
<h2>LLC %s – Validation requise</h2>
<p>Un <b>Lesson Learned (LLC)</b> a été soumis et nécessite votre validation.</p>
<p>%s</p>
%s%s</div>`,
		html.EscapeString(recordID),
		html.EscapeString(problemShort),
		actionButton(b.link("pm-review", recordID, tok), "Ouvrir le LLC pour validation"),
		footer())
	return NewMessage(to, subject, body)
}

// FinalReview asks the final approver to review a PM-approved card.
func (b MailBuilder) FinalReview(to, recordID, problemShort, tok string) *Message {
	subject := fmt.Sprintf("LLC %s – Validation finale requise", recordID)
	body := fmt.Sprintf(`<div style="font-family:Segoe UI, Arial, sans-serif; line-height:1.6">
<h2>LLC %s – Validation finale</h2>
<p>Le LLC a été validé par le PM et attend votre décision finale.</p>
<p>%s</p>
%s%s</div>`,
		html.EscapeString(recordID),
		html.EscapeString(problemShort),
		actionButton(b.link("final-review", recordID, tok), "Ouvrir le LLC pour validation finale"),
		footer())
	return NewMessage(to, subject, body)
}

// Rejected informs the editor that a reviewer rejected the card.
func (b MailBuilder) Rejected(to, recordID, stage, reason string) *Message {
	subject := fmt.Sprintf("LLC %s – Refusé (%s)", recordID, stage)
	body := fmt.Sprintf(`<div style="font-family:Segoe UI, Arial, sans-serif; line-height:1.6">
<h2>LLC %s – Refusé</h2>
<p>Le LLC a été refusé à l'étape <b>%s</b>.</p>
<p>Motif&nbsp;: %s</p>
<p>Vous pouvez corriger et soumettre à nouveau.</p></div>`,
		html.EscapeString(recordID), html.EscapeString(stage), html.EscapeString(reason))
	return NewMessage(to, subject, body)
}

// Approved informs the editor that a review stage passed.
func (b MailBuilder) Approved(to, recordID, stage string) *Message {
	subject := fmt.Sprintf("LLC %s – Validé (%s)", recordID, stage)
	body := fmt.Sprintf(`<div style="font-family:Segoe UI, Arial, sans-serif; line-height:1.6">
<h2>LLC %s – Validé</h2>
<p>Le LLC a passé l'étape <b>%s</b>.</p></div>`,
		html.EscapeString(recordID), html.EscapeString(stage))
	return NewMessage(to, subject, body)
}

// EvidenceRequest asks a target plant to submit deployment evidence.
func (b MailBuilder) EvidenceRequest(to, recordID, plant, tok string) *Message {
	subject := fmt.Sprintf("LLC %s – Déploiement requis (%s)", recordID, plant)
	body := fmt.Sprintf(`<div style="font-family:Segoe UI, Arial, sans-serif; line-height:1.6">
<h2>LLC %s – Déploiement</h2>
<p>Votre site <b>%s</b> doit déployer ce Lesson Learned et soumettre les preuves de déploiement.</p>
%s%s</div>`,
		html.EscapeString(recordID),
		html.EscapeString(plant),
		actionButton(b.link("deployment", recordID, tok), "Soumettre les preuves"),
		footer())
	return NewMessage(to, subject, body)
}

// UnitReview asks the record's validator to review one plant's evidence.
func (b MailBuilder) UnitReview(to, unitID, recordID, plant, tok string) *Message {
	subject := fmt.Sprintf("LLC %s – Preuves à valider (%s)", recordID, plant)
	body := fmt.Sprintf(`<div style="font-family:Segoe UI, Arial, sans-serif; line-height:1.6">
<h2>LLC %s – Preuves de déploiement</h2>
<p>Le site <b>%s</b> a soumis ses preuves de déploiement.</p>
%s%s</div>`,
		html.EscapeString(recordID),
		html.EscapeString(plant),
		actionButton(b.link("unit-review", unitID, tok), "Valider les preuves"),
		footer())
	return NewMessage(to, subject, body)
}

// Rework gives a rejected submitter a fresh window to resubmit evidence.
func (b MailBuilder) Rework(to, unitID, recordID, plant, reason, tok string) *Message {
	subject := fmt.Sprintf("LLC %s – Preuves refusées (%s)", recordID, plant)
	body := fmt.Sprintf(`<div style="font-family:Segoe UI, Arial, sans-serif; line-height:1.6">
<h2>LLC %s – Preuves refusées</h2>
<p>Les preuves de déploiement du site <b>%s</b> ont été refusées.</p>
<p>Motif&nbsp;: %s</p>
%s%s</div>`,
		html.EscapeString(recordID),
		html.EscapeString(plant),
		html.EscapeString(reason),
		actionButton(b.link("rework", unitID, tok), "Soumettre de nouvelles preuves"),
		footer())
	return NewMessage(to, subject, body)
}

// Completed announces the terminal outcome of a distribution.
func (b MailBuilder) Completed(to, recordID string, validated bool) *Message {
	outcome := "validé"
	if !validated {
		outcome = "refusé"
	}
	subject := fmt.Sprintf("LLC %s – Déploiement %s", recordID, outcome)
	body := fmt.Sprintf(`<div style="font-family:Segoe UI, Arial, sans-serif; line-height:1.6">
<h2>LLC %s – Déploiement %s</h2>
<p>Toutes les décisions de déploiement ont été rendues.</p></div>`,
		html.EscapeString(recordID), outcome)
	return NewMessage(to, subject, body)
}
