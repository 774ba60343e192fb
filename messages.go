package luxflix

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/fabianMendez/luxflix/pkg/approval"
	"github.com/fabianMendez/luxflix/pkg/form"
	"github.com/go-telegram/bot/models"
)

const (
	welcomeMessage       = "Welcome to LuxFlix 🔥\nPlease send your payment proof (screenshot or text) here."
	thankYouMessage      = "Thank you for submitting your payment proof! We will verify it soon and update your membership."
	forwardFailedMessage = "Failed to forward your payment proof. Please try again or contact support."

	notAvailable = "N/A"

	// Telegram limits for captions and text messages.
	maxCaptionLength = 1024
	maxMessageLength = 4096
)

// photoTypes are the uploads sendPhoto accepts. Anything else goes out as a
// document.
var photoTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

func submissionCaption(sub form.Submission) string {
	var sb strings.Builder
	sb.WriteString("💳 New LuxFlix payment submission\n")

	for _, e := range sub.Entries() {
		value := e.Value
		if value == "" {
			value = notAvailable
		}
		fmt.Fprintf(&sb, "\n%s: %s", e.Label, value)
	}

	if a := sub.Attachment; a != nil {
		fmt.Fprintf(&sb, "\n\nProof: %s (%s, %s)", a.Filename, a.Size(), a.MimeType)
	} else {
		sb.WriteString("\n\nProof: none attached")
	}

	return sb.String()
}

func senderName(user *models.User) (string, string) {
	if user == nil {
		return "unknown sender", notAvailable + " " + notAvailable
	}

	name := fmt.Sprintf("User ID: %d", user.ID)
	if user.Username != "" {
		name = "@" + user.Username
	}

	first, last := user.FirstName, user.LastName
	if first == "" {
		first = notAvailable
	}
	if last == "" {
		last = notAvailable
	}

	return name, first + " " + last
}

func proofHeader(msg *models.Message) string {
	name, fullName := senderName(msg.From)
	return fmt.Sprintf("LuxFlix Payment Proof from %s (Name: %s)\n", name, fullName)
}

func decisionStatus(tok approval.Token, err error) string {
	switch {
	case !tok.Decision.Known():
		return fmt.Sprintf("❓ Unknown action %q for user %s", string(tok.Decision), tok.SubjectID)
	case err != nil && tok.Decision == approval.Approve:
		return fmt.Sprintf("⚠️ Could not approve user %s (%s): %v", tok.SubjectID, tok.Plan, err)
	case err != nil:
		return fmt.Sprintf("⚠️ Could not reject user %s: %v", tok.SubjectID, err)
	case tok.Decision == approval.Approve:
		return fmt.Sprintf("✅ Approved user %s, plan %s", tok.SubjectID, tok.Plan)
	default:
		return fmt.Sprintf("❌ Rejected user %s (%s), premium removed", tok.SubjectID, tok.Plan)
	}
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n-1]) + "…"
}
