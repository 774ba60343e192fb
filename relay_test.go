package luxflix_test

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"net/textproto"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/fabianMendez/luxflix"
	"github.com/fabianMendez/luxflix/pkg/approval"
	"github.com/fabianMendez/luxflix/pkg/config"
	"github.com/fabianMendez/luxflix/pkg/form"
	"github.com/go-telegram/bot/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const adminChatID int64 = -1001

type sentMessage struct {
	chatID   int64
	text     string
	photo    *luxflix.Photo
	document *luxflix.Document
	buttons  []approval.Button
}

type fakeNotifier struct {
	sent     []sentMessage
	answers  []string
	sendErr  error
	photoErr error
	// failChat limits sendErr to one chat, zero fails every chat.
	failChat int64
}

func (f *fakeNotifier) SendText(ctx context.Context, chatID int64, text string, buttons []approval.Button) error {
	if f.sendErr != nil && (f.failChat == 0 || f.failChat == chatID) {
		return f.sendErr
	}
	f.sent = append(f.sent, sentMessage{chatID: chatID, text: text, buttons: buttons})
	return nil
}

func (f *fakeNotifier) SendPhoto(ctx context.Context, chatID int64, photo luxflix.Photo, buttons []approval.Button) error {
	if f.photoErr != nil {
		return f.photoErr
	}
	f.sent = append(f.sent, sentMessage{chatID: chatID, text: photo.Caption, photo: &photo, buttons: buttons})
	return nil
}

func (f *fakeNotifier) SendDocument(ctx context.Context, chatID int64, doc luxflix.Document, buttons []approval.Button) error {
	f.sent = append(f.sent, sentMessage{chatID: chatID, text: doc.Caption, document: &doc, buttons: buttons})
	return nil
}

func (f *fakeNotifier) AnswerCallback(ctx context.Context, callbackID, text string) error {
	f.answers = append(f.answers, callbackID+":"+text)
	return nil
}

type userUpdate struct {
	uid        string
	privileged bool
	plan       string
}

type fakeUsers struct {
	updates []userUpdate
	err     error
}

func (f *fakeUsers) SetPrivilegeAndPlan(ctx context.Context, uid string, privileged bool, plan string) error {
	f.updates = append(f.updates, userUpdate{uid, privileged, plan})
	return f.err
}

type fakeMailer struct {
	sent []form.Submission
	err  error
}

func (f *fakeMailer) SendSubmission(ctx context.Context, sub form.Submission) error {
	f.sent = append(f.sent, sub)
	return f.err
}

func newRelay(notifier *fakeNotifier, opts ...luxflix.Option) *luxflix.Relay {
	return luxflix.NewRelay(config.Settings{AdminChatID: adminChatID}, notifier, zerolog.Nop(), opts...)
}

func TestSubmissionToApproval(t *testing.T) {
	buf := new(bytes.Buffer)
	w := multipart.NewWriter(buf)
	require.NoError(t, w.WriteField("membership_plan", "pro_yearly"))
	require.NoError(t, w.WriteField("user_firebase_uid", "uid42"))
	pw, err := w.CreatePart(textproto.MIMEHeader{"Content-Disposition": {`form-data; name="photo"; filename="receipt.jpg"`}})
	require.NoError(t, err)
	_, err = pw.Write([]byte("jpeg-bytes"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	sub, err := form.Ingest(context.Background(), buf, w.Boundary())
	require.NoError(t, err)

	notifier := &fakeNotifier{}
	users := &fakeUsers{}
	relay := newRelay(notifier, luxflix.WithUserStore(users))

	require.NoError(t, relay.HandleSubmission(context.Background(), sub))
	require.Len(t, notifier.sent, 1)

	msg := notifier.sent[0]
	assert.Equal(t, adminChatID, msg.chatID)
	require.NotNil(t, msg.photo)
	assert.Equal(t, []byte("jpeg-bytes"), msg.photo.Data)
	assert.Equal(t, "image/jpeg", msg.photo.MimeType)
	require.Len(t, msg.buttons, 2)
	assert.Equal(t, "APPROVE_uid42_pro_yearly", msg.buttons[0].Payload)
	assert.Equal(t, "REJECT_uid42_pro_yearly", msg.buttons[1].Payload)

	err = relay.HandleUpdate(context.Background(), &models.Update{
		CallbackQuery: &models.CallbackQuery{ID: "cb1", Data: msg.buttons[0].Payload},
	})
	require.NoError(t, err)

	assert.Equal(t, []userUpdate{{uid: "uid42", privileged: true, plan: "pro_yearly"}}, users.updates)
	require.Len(t, notifier.answers, 1)
	assert.True(t, strings.HasPrefix(notifier.answers[0], "cb1:✅"))
	assert.Contains(t, notifier.sent[1].text, "Approved user uid42")
}

func TestHandleSubmissionWithoutAttachment(t *testing.T) {
	notifier := &fakeNotifier{}
	relay := newRelay(notifier)

	sub := form.Submission{ID: "s1", Fields: map[string]string{
		"name":              "Alice",
		"user_firebase_uid": "uid42",
		"coupon":            "WELCOME10",
	}}
	require.NoError(t, relay.HandleSubmission(context.Background(), sub))

	require.Len(t, notifier.sent, 1)
	msg := notifier.sent[0]
	assert.Nil(t, msg.photo)
	assert.Contains(t, msg.text, "Name: Alice")
	assert.Contains(t, msg.text, "Plan: N/A")
	assert.Contains(t, msg.text, "coupon: WELCOME10")
	assert.Contains(t, msg.text, "Proof: none attached")
	require.Len(t, msg.buttons, 2)
	assert.Equal(t, "APPROVE_uid42_N/A", msg.buttons[0].Payload)
}

func TestHandleSubmissionButtons(t *testing.T) {
	tests := []struct {
		name    string
		fields  map[string]string
		buttons int
		warning bool
	}{
		{name: "no user id", fields: map[string]string{"name": "Bob"}, buttons: 0},
		{name: "payload too long", fields: map[string]string{
			"user_firebase_uid": strings.Repeat("u", 40),
			"membership_plan":   strings.Repeat("p", 30),
		}, buttons: 0, warning: true},
		{name: "separator in user id", fields: map[string]string{
			"user_firebase_uid": "victim_x",
			"membership_plan":   "pro",
		}, buttons: 0, warning: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			notifier := &fakeNotifier{}
			require.NoError(t, newRelay(notifier).HandleSubmission(context.Background(), form.Submission{Fields: tt.fields}))
			require.Len(t, notifier.sent, 1)
			assert.Len(t, notifier.sent[0].buttons, tt.buttons)
			assert.Equal(t, tt.warning, strings.Contains(notifier.sent[0].text, "buttons omitted"))
		})
	}
}

func TestHandleSubmissionSeparatorInUserID(t *testing.T) {
	notifier := &fakeNotifier{}
	users := &fakeUsers{}
	relay := newRelay(notifier, luxflix.WithUserStore(users))

	sub := form.Submission{Fields: map[string]string{"user_firebase_uid": "victim_x", "membership_plan": "pro"}}
	require.NoError(t, relay.HandleSubmission(context.Background(), sub))

	require.Len(t, notifier.sent, 1)
	assert.Empty(t, notifier.sent[0].buttons)
	assert.True(t, strings.HasPrefix(notifier.sent[0].text, `⚠️ Approve/Reject buttons omitted: user id contains "_".`), notifier.sent[0].text)
	assert.Contains(t, notifier.sent[0].text, "User UID: victim_x")
	assert.Empty(t, users.updates)
}

func TestHandleSubmissionDocument(t *testing.T) {
	buf := new(bytes.Buffer)
	w := multipart.NewWriter(buf)
	require.NoError(t, w.WriteField("user_firebase_uid", "uid42"))
	pw, err := w.CreatePart(textproto.MIMEHeader{
		"Content-Disposition": {`form-data; name="photo"; filename="receipt.pdf"`},
		"Content-Type":        {"application/pdf"},
	})
	require.NoError(t, err)
	_, err = pw.Write([]byte("%PDF-1.4"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	sub, err := form.Ingest(context.Background(), buf, w.Boundary())
	require.NoError(t, err)

	notifier := &fakeNotifier{photoErr: errors.New("Bad Request: IMAGE_PROCESS_FAILED")}
	require.NoError(t, newRelay(notifier).HandleSubmission(context.Background(), sub))

	require.Len(t, notifier.sent, 1)
	msg := notifier.sent[0]
	assert.Nil(t, msg.photo)
	require.NotNil(t, msg.document)
	assert.Equal(t, "receipt.pdf", msg.document.Filename)
	assert.Equal(t, "application/pdf", msg.document.MimeType)
	assert.Equal(t, []byte("%PDF-1.4"), msg.document.Data)
	assert.Len(t, msg.buttons, 2)
}

func TestHandleSubmissionLongText(t *testing.T) {
	notifier := &fakeNotifier{}
	sub := form.Submission{Fields: map[string]string{
		"user_firebase_uid": "uid42",
		"notes":             strings.Repeat("é", 10000),
	}}
	require.NoError(t, newRelay(notifier).HandleSubmission(context.Background(), sub))

	require.Len(t, notifier.sent, 1)
	assert.Equal(t, 4096, utf8.RuneCountInString(notifier.sent[0].text))
	assert.True(t, strings.HasSuffix(notifier.sent[0].text, "…"))
	assert.Len(t, notifier.sent[0].buttons, 2)
}

func TestHandleSubmissionSiblingFailures(t *testing.T) {
	notifier := &fakeNotifier{photoErr: errors.New("telegram: Bad Request")}
	mailer := &fakeMailer{}
	relay := newRelay(notifier, luxflix.WithMailer(mailer))

	sub := form.Submission{
		Fields:     map[string]string{"user_firebase_uid": "uid42"},
		Attachment: &form.Attachment{Data: []byte("x"), Filename: "a.png", MimeType: "image/png"},
	}
	err := relay.HandleSubmission(context.Background(), sub)

	var remoteErr *luxflix.RemoteCallError
	require.True(t, errors.As(err, &remoteErr))
	assert.Equal(t, "notify admin", remoteErr.Call)
	assert.Len(t, mailer.sent, 1, "email is still attempted")
}

func TestHandleCallbackDecisions(t *testing.T) {
	tests := []struct {
		name      string
		payload   string
		storeErr  error
		updates   []userUpdate
		status    string
		expectErr bool
	}{
		{
			name:    "reject clears plan",
			payload: "REJECT_uid42_pro_monthly",
			updates: []userUpdate{{uid: "uid42", privileged: false, plan: ""}},
			status:  "❌ Rejected user uid42",
		},
		{
			name:    "unknown tag",
			payload: "garbage",
			status:  `❓ Unknown action "garbage"`,
		},
		{
			name:      "missing user id",
			payload:   "APPROVE",
			status:    "⚠️ Could not approve",
			expectErr: true,
		},
		{
			name:      "store failure",
			payload:   "APPROVE_uid42_pro",
			storeErr:  errors.New("quota exceeded"),
			updates:   []userUpdate{{uid: "uid42", privileged: true, plan: "pro"}},
			status:    "⚠️ Could not approve user uid42 (pro)",
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			notifier := &fakeNotifier{}
			users := &fakeUsers{err: tt.storeErr}
			relay := newRelay(notifier, luxflix.WithUserStore(users))

			err := relay.HandleCallback(context.Background(), "cb", tt.payload)
			if tt.expectErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}

			assert.Equal(t, tt.updates, users.updates)
			require.Len(t, notifier.sent, 1)
			assert.Equal(t, adminChatID, notifier.sent[0].chatID)
			assert.True(t, strings.HasPrefix(notifier.sent[0].text, tt.status), notifier.sent[0].text)
		})
	}
}

func TestApplyDecisionWithoutStore(t *testing.T) {
	relay := newRelay(&fakeNotifier{})

	_, err := relay.ApplyDecision(context.Background(), approval.Decode("APPROVE_uid42_pro"))
	assert.True(t, errors.Is(err, luxflix.ErrNoUserStore))
}

func TestHandleUpdateMessages(t *testing.T) {
	user := &models.User{ID: 7, Username: "alice", FirstName: "Alice"}

	tests := []struct {
		name     string
		message  *models.Message
		expected []sentMessage
	}{
		{
			name:    "start",
			message: &models.Message{Chat: models.Chat{ID: 7}, From: user, Text: "/start"},
			expected: []sentMessage{
				{chatID: 7, text: "Welcome to LuxFlix 🔥\nPlease send your payment proof (screenshot or text) here."},
			},
		},
		{
			name:    "text proof",
			message: &models.Message{Chat: models.Chat{ID: 7}, From: user, Text: "paid 10 USD"},
			expected: []sentMessage{
				{chatID: adminChatID, text: "LuxFlix Payment Proof from @alice (Name: Alice N/A)\nUser Message: \"paid 10 USD\""},
				{chatID: 7, text: "Thank you for submitting your payment proof! We will verify it soon and update your membership."},
			},
		},
		{
			name:     "sticker",
			message:  &models.Message{Chat: models.Chat{ID: 7}, From: user},
			expected: nil,
		},
		{
			name:     "admin chat",
			message:  &models.Message{Chat: models.Chat{ID: adminChatID}, From: user, Text: "hello"},
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			notifier := &fakeNotifier{}
			err := newRelay(notifier).HandleUpdate(context.Background(), &models.Update{Message: tt.message})
			require.NoError(t, err)
			assert.Equal(t, tt.expected, notifier.sent)
		})
	}
}

func TestHandleUpdatePhotoProof(t *testing.T) {
	notifier := &fakeNotifier{}
	msg := &models.Message{
		Chat:    models.Chat{ID: 7},
		From:    &models.User{ID: 7},
		Caption: "June",
		Photo: []models.PhotoSize{
			{FileID: "small"},
			{FileID: "large"},
		},
	}

	require.NoError(t, newRelay(notifier).HandleUpdate(context.Background(), &models.Update{Message: msg}))
	require.Len(t, notifier.sent, 2)
	require.NotNil(t, notifier.sent[0].photo)
	assert.Equal(t, "large", notifier.sent[0].photo.FileID)
	assert.Equal(t, "LuxFlix Payment Proof from User ID: 7 (Name: N/A N/A)\n (Photo Proof)\nCaption: \"June\"", notifier.sent[0].text)
	assert.Equal(t, int64(7), notifier.sent[1].chatID)
}

func TestHandleUpdateForwardFailure(t *testing.T) {
	notifier := &fakeNotifier{sendErr: errors.New("forbidden"), failChat: adminChatID}
	msg := &models.Message{Chat: models.Chat{ID: 7}, Text: "paid"}

	err := newRelay(notifier).HandleUpdate(context.Background(), &models.Update{Message: msg})

	var remoteErr *luxflix.RemoteCallError
	require.True(t, errors.As(err, &remoteErr))
	assert.Equal(t, "forward payment proof", remoteErr.Call)

	assert.Equal(t, []sentMessage{
		{chatID: 7, text: "Failed to forward your payment proof. Please try again or contact support."},
	}, notifier.sent)
}
