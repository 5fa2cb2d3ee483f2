package notify

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewMessageDefaults(t *testing.T) {
	msg := NewMessage("a@avocarbon.com", "subject", "body")

	require.NotEmpty(t, msg.ID)
	require.Equal(t, "a@avocarbon.com", msg.Recipient)
	require.Equal(t, StatusPending, msg.Status)
	require.Zero(t, msg.Attempts)
	require.False(t, msg.CreatedAt.IsZero())
	require.Nil(t, msg.SentAt)
}

func TestBuildersEmbedTokenLink(t *testing.T) {
	b := MailBuilder{BaseURL: "https://llc.avocarbon.com"}

	tests := []struct {
		name string
		msg  *Message
		link string
	}{
		{
			name: "pm review",
			msg:  b.PMReview("pm@avocarbon.com", "rec-1", "broken clip", "tok-pm"),
			link: "https://llc.avocarbon.com/pm-review/rec-1?token=tok-pm",
		},
		{
			name: "final review",
			msg:  b.FinalReview("final@avocarbon.com", "rec-1", "broken clip", "tok-final"),
			link: "https://llc.avocarbon.com/final-review/rec-1?token=tok-final",
		},
		{
			name: "evidence request",
			msg:  b.EvidenceRequest("qa@avocarbon.com", "rec-1", "POITIERS", "tok-ev"),
			link: "https://llc.avocarbon.com/deployment/rec-1?token=tok-ev",
		},
		{
			name: "unit review",
			msg:  b.UnitReview("pm@avocarbon.com", "unit-9", "rec-1", "POITIERS", "tok-unit"),
			link: "https://llc.avocarbon.com/unit-review/unit-9?token=tok-unit",
		},
		{
			name: "rework",
			msg:  b.Rework("qa@avocarbon.com", "unit-9", "rec-1", "POITIERS", "photos floues", "tok-rw"),
			link: "https://llc.avocarbon.com/rework/unit-9?token=tok-rw",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Contains(t, tt.msg.Body, tt.link)
			require.Contains(t, tt.msg.Subject, "rec-1")
		})
	}
}

func TestLinkEscapesToken(t *testing.T) {
	b := MailBuilder{BaseURL: "https://llc.avocarbon.com"}
	require.Equal(t,
		"https://llc.avocarbon.com/pm-review/rec-1?token=a%2Bb%3Dc",
		b.link("pm-review", "rec-1", "a+b=c"))
}

func TestBuildersEscapeUserText(t *testing.T) {
	b := MailBuilder{BaseURL: "https://llc.avocarbon.com"}

	msg := b.Rejected("editor@avocarbon.com", "rec-1", "PM", `<script>alert("x")</script>`)
	require.NotContains(t, msg.Body, "<script>")
	require.Contains(t, msg.Body, "&lt;script&gt;")

	msg = b.PMReview("pm@avocarbon.com", "rec-1", `clip <b>cassé</b>`, "tok")
	require.Contains(t, msg.Body, "clip &lt;b&gt;cassé&lt;/b&gt;")
}

func TestCompletedOutcomeWording(t *testing.T) {
	b := MailBuilder{BaseURL: "https://llc.avocarbon.com"}

	require.Contains(t, b.Completed("a@avocarbon.com", "rec-1", true).Subject, "validé")
	require.Contains(t, b.Completed("a@avocarbon.com", "rec-1", false).Subject, "refusé")
}
