package luxflix

import (
	"context"

	"github.com/fabianMendez/luxflix/pkg/approval"
	"github.com/fabianMendez/luxflix/pkg/form"
)

// Photo is either uploaded from Data or re-sent by a Telegram FileID.
type Photo struct {
	Data     []byte
	FileID   string
	Filename string
	MimeType string
	Caption  string
}

// Document is a file Telegram would not accept as a photo, such as a PDF
// receipt.
type Document struct {
	Data     []byte
	Filename string
	MimeType string
	Caption  string
}

// Notifier delivers messages to Telegram chats.
type Notifier interface {
	SendText(ctx context.Context, chatID int64, text string, buttons []approval.Button) error
	SendPhoto(ctx context.Context, chatID int64, photo Photo, buttons []approval.Button) error
	SendDocument(ctx context.Context, chatID int64, doc Document, buttons []approval.Button) error
	AnswerCallback(ctx context.Context, callbackID, text string) error
}

// UserStore updates membership records. An empty plan clears it.
type UserStore interface {
	SetPrivilegeAndPlan(ctx context.Context, uid string, privileged bool, plan string) error
}

// Mailer mirrors form submissions to the admin mailbox.
type Mailer interface {
	SendSubmission(ctx context.Context, sub form.Submission) error
}

// RemoteCallError wraps the failure of a call to Telegram, GitHub or
// mailgun.
type RemoteCallError struct {
	Call string
	Err  error
}

func (e *RemoteCallError) Error() string {
	return "could not " + e.Call + ": " + e.Err.Error()
}

func (e *RemoteCallError) Unwrap() error { return e.Err }
