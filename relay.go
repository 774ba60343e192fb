// Package luxflix relays payment proofs sent to the LuxFlix bot or through
// the website form to the admin chat, and applies the admin's
// approve/reject decision to the user's membership record.
package luxflix

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fabianMendez/luxflix/pkg/approval"
	"github.com/fabianMendez/luxflix/pkg/config"
	"github.com/fabianMendez/luxflix/pkg/form"
	"github.com/go-telegram/bot/models"
	"github.com/rs/zerolog"
)

var (
	ErrNoUserStore    = errors.New("user store not configured")
	ErrMissingSubject = errors.New("callback payload has no user id")
)

type Relay struct {
	adminChatID int64
	notifier    Notifier
	users       UserStore
	mailer      Mailer
	log         zerolog.Logger
}

type Option func(*Relay)

// WithUserStore enables approve/reject decisions.
func WithUserStore(users UserStore) Option {
	return func(r *Relay) { r.users = users }
}

// WithMailer mirrors every form submission by email.
func WithMailer(mailer Mailer) Option {
	return func(r *Relay) { r.mailer = mailer }
}

func NewRelay(settings config.Settings, notifier Notifier, logger zerolog.Logger, opts ...Option) *Relay {
	r := &Relay{
		adminChatID: settings.AdminChatID,
		notifier:    notifier,
		log:         logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// HandleSubmission notifies the admin chat of a form submission. The
// notification carries Approve/Reject buttons when the submission names a
// user. An image attachment is sent as a photo, any other file as a
// document, and without an attachment a text message is sent. The email mirror is independent of the Telegram message: both
// are attempted and their failures joined.
func (r *Relay) HandleSubmission(ctx context.Context, sub form.Submission) error {
	logger := r.log.With().
		Str("submission_id", sub.ID).
		Str("subject_id", sub.Get(form.FieldUserUID)).
		Int64("chat_id", r.adminChatID).
		Logger()

	caption := submissionCaption(sub)
	buttons, omitted := r.submissionButtons(sub)
	if omitted != "" {
		logger.Warn().Msg(omitted)
		caption = "⚠️ " + omitted + "\n\n" + caption
	}

	var err error
	switch a := sub.Attachment; {
	case a == nil:
		err = r.notifier.SendText(ctx, r.adminChatID, truncate(caption, maxMessageLength), buttons)
	case photoTypes[a.MimeType]:
		err = r.notifier.SendPhoto(ctx, r.adminChatID, Photo{
			Data:     a.Data,
			Filename: a.Filename,
			MimeType: a.MimeType,
			Caption:  truncate(caption, maxCaptionLength),
		}, buttons)
	default:
		err = r.notifier.SendDocument(ctx, r.adminChatID, Document{
			Data:     a.Data,
			Filename: a.Filename,
			MimeType: a.MimeType,
			Caption:  truncate(caption, maxCaptionLength),
		}, buttons)
	}

	var errs []error
	if err != nil {
		logger.Error().Err(err).Msg("could not notify admin of submission")
		errs = append(errs, &RemoteCallError{Call: "notify admin", Err: err})
	} else {
		logger.Info().Bool("attachment", sub.Attachment != nil).Int("buttons", len(buttons)).Msg("submission relayed")
	}

	if r.mailer != nil {
		err = r.mailer.SendSubmission(ctx, sub)
		if err != nil {
			logger.Error().Err(err).Msg("could not email submission")
			errs = append(errs, &RemoteCallError{Call: "email submission", Err: err})
		}
	}

	return errors.Join(errs...)
}

// submissionButtons returns the Approve/Reject pair for the submitting user,
// or the reason the buttons were left off.
func (r *Relay) submissionButtons(sub form.Submission) ([]approval.Button, string) {
	uid := sub.Get(form.FieldUserUID)
	if uid == "" {
		return nil, ""
	}

	// the payload would split at the separator and name another user
	if strings.Contains(uid, approval.Separator) {
		return nil, fmt.Sprintf("Approve/Reject buttons omitted: user id contains %q.", approval.Separator)
	}

	plan := sub.Get(form.FieldMembershipPlan)
	if plan == "" {
		plan = approval.NoPlan
	}

	// APPROVE is the longer tag
	if !(approval.Token{Decision: approval.Approve, SubjectID: uid, Plan: plan}).Fits() {
		return nil, "Approve/Reject buttons omitted: user id and plan are too long for a button."
	}

	return approval.Buttons(uid, plan), ""
}

// HandleUpdate processes one Telegram webhook update.
func (r *Relay) HandleUpdate(ctx context.Context, update *models.Update) error {
	switch {
	case update == nil:
		return nil
	case update.CallbackQuery != nil:
		return r.HandleCallback(ctx, update.CallbackQuery.ID, update.CallbackQuery.Data)
	case update.Message != nil:
		return r.handleMessage(ctx, update.Message)
	}

	r.log.Debug().Int64("update_id", update.ID).Msg("ignoring update")
	return nil
}

func (r *Relay) handleMessage(ctx context.Context, msg *models.Message) error {
	chatID := msg.Chat.ID
	logger := r.log.With().Int64("chat_id", chatID).Int("message_id", msg.ID).Logger()

	if strings.HasPrefix(msg.Text, "/start") {
		err := r.notifier.SendText(ctx, chatID, welcomeMessage, nil)
		if err != nil {
			logger.Error().Err(err).Msg("could not send welcome message")
			return &RemoteCallError{Call: "send welcome message", Err: err}
		}
		return nil
	}

	if chatID == r.adminChatID {
		logger.Debug().Msg("ignoring message from admin chat")
		return nil
	}

	text := proofHeader(msg)
	var err error
	switch {
	case msg.Text != "":
		text += fmt.Sprintf("User Message: \"%s\"", msg.Text)
		err = r.notifier.SendText(ctx, r.adminChatID, text, nil)
	case len(msg.Photo) > 0:
		text += " (Photo Proof)"
		if msg.Caption != "" {
			text += fmt.Sprintf("\nCaption: \"%s\"", msg.Caption)
		}
		largest := msg.Photo[len(msg.Photo)-1]
		err = r.notifier.SendPhoto(ctx, r.adminChatID, Photo{FileID: largest.FileID, Caption: truncate(text, maxCaptionLength)}, nil)
	default:
		logger.Debug().Msg("ignoring message without text or photo")
		return nil
	}

	if err != nil {
		logger.Error().Err(err).Msg("could not forward payment proof")
		errs := []error{&RemoteCallError{Call: "forward payment proof", Err: err}}

		err = r.notifier.SendText(ctx, chatID, forwardFailedMessage, nil)
		if err != nil {
			logger.Error().Err(err).Msg("could not tell user the proof was not forwarded")
			errs = append(errs, &RemoteCallError{Call: "report forward failure", Err: err})
		}
		return errors.Join(errs...)
	}

	err = r.notifier.SendText(ctx, chatID, thankYouMessage, nil)
	if err != nil {
		logger.Error().Err(err).Msg("could not thank user")
		return &RemoteCallError{Call: "thank user", Err: err}
	}

	logger.Info().Msg("payment proof forwarded")
	return nil
}

// HandleCallback applies the decision encoded in a button payload, answers
// the callback query and posts the outcome to the admin chat.
func (r *Relay) HandleCallback(ctx context.Context, callbackID, payload string) error {
	tok := approval.Decode(payload)
	logger := r.log.With().
		Str("decision", string(tok.Decision)).
		Str("subject_id", tok.SubjectID).
		Str("plan", tok.Plan).
		Int64("chat_id", r.adminChatID).
		Logger()

	status, err := r.ApplyDecision(ctx, tok)
	switch {
	case err != nil:
		logger.Error().Err(err).Msg("could not apply decision")
	case !tok.Decision.Known():
		logger.Warn().Msg("unknown decision in callback payload")
	default:
		logger.Info().Msg("decision applied")
	}

	errs := []error{err}

	if callbackID != "" {
		aerr := r.notifier.AnswerCallback(ctx, callbackID, status)
		if aerr != nil {
			logger.Error().Err(aerr).Msg("could not answer callback query")
			errs = append(errs, &RemoteCallError{Call: "answer callback", Err: aerr})
		}
	}

	serr := r.notifier.SendText(ctx, r.adminChatID, status, nil)
	if serr != nil {
		logger.Error().Err(serr).Msg("could not report decision")
		errs = append(errs, &RemoteCallError{Call: "report decision", Err: serr})
	}

	return errors.Join(errs...)
}

// ApplyDecision updates the user record for an Approve or Reject token and
// returns a status line for the admin. Unknown decisions touch nothing and
// are not an error.
func (r *Relay) ApplyDecision(ctx context.Context, tok approval.Token) (string, error) {
	if !tok.Decision.Known() {
		return decisionStatus(tok, nil), nil
	}

	var err error
	switch {
	case tok.SubjectID == "":
		err = ErrMissingSubject
	case r.users == nil:
		err = ErrNoUserStore
	case tok.Decision == approval.Approve:
		err = r.users.SetPrivilegeAndPlan(ctx, tok.SubjectID, true, tok.Plan)
	default:
		err = r.users.SetPrivilegeAndPlan(ctx, tok.SubjectID, false, "")
	}

	if err != nil && !errors.Is(err, ErrMissingSubject) && !errors.Is(err, ErrNoUserStore) {
		err = &RemoteCallError{Call: "update user " + tok.SubjectID, Err: err}
	}

	return decisionStatus(tok, err), err
}
