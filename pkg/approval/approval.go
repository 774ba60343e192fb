// Package approval encodes membership decisions into Telegram callback
// payloads and decodes them back when an admin presses a button.
package approval

import "strings"

const (
	// Separator joins the payload fields. Only the first two occurrences are
	// significant, the plan keeps any further ones.
	Separator = "_"

	// NoPlan is the plan of a payload that carries no plan segment.
	NoPlan = "N/A"

	// MaxPayloadLength is the longest callback_data Telegram accepts.
	MaxPayloadLength = 64
)

// Decision is the tag at the head of a payload. Any value other than
// Approve or Reject is an unknown decision carrying the raw tag.
type Decision string

const (
	Approve Decision = "APPROVE"
	Reject  Decision = "REJECT"
)

// Known reports whether d is Approve or Reject.
func (d Decision) Known() bool {
	return d == Approve || d == Reject
}

func (d Decision) String() string {
	if d.Known() {
		return string(d)
	}
	return "UNKNOWN(" + string(d) + ")"
}

type Token struct {
	Decision  Decision
	SubjectID string
	Plan      string
}

// Encode joins the decision tag, the subject id and the plan. subjectID must
// not contain Separator; plan may.
func Encode(d Decision, subjectID, plan string) string {
	return string(d) + Separator + subjectID + Separator + plan
}

func (t Token) Encode() string {
	return Encode(t.Decision, t.SubjectID, t.Plan)
}

// Fits reports whether the encoded token is short enough for a button.
func (t Token) Fits() bool {
	return len(t.Encode()) <= MaxPayloadLength
}

// Decode never fails: an unrecognized tag yields an unknown Decision and a
// payload without a plan segment yields NoPlan.
func Decode(payload string) Token {
	parts := strings.SplitN(payload, Separator, 3)

	t := Token{Decision: Decision(parts[0]), Plan: NoPlan}
	if len(parts) > 1 {
		t.SubjectID = parts[1]
	}
	if len(parts) > 2 {
		t.Plan = parts[2]
	}

	return t
}

// Button is an inline keyboard button whose payload is an encoded Token.
type Button struct {
	Label   string
	Payload string
}

// Buttons returns the Approve/Reject pair for a subject and plan.
func Buttons(subjectID, plan string) []Button {
	return []Button{
		{Label: "✅ Approve", Payload: Encode(Approve, subjectID, plan)},
		{Label: "❌ Reject", Payload: Encode(Reject, subjectID, plan)},
	}
}
