// Package form reads payment-form submissions from a multipart/form-data
// stream without buffering the request ahead of time.
package form

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
)

// Field names sent by the website payment form.
const (
	FieldName             = "name"
	FieldRefID            = "refID"
	FieldUserUID          = "user_firebase_uid"
	FieldUserEmail        = "user_email"
	FieldMembershipPlan   = "membership_plan"
	FieldPaymentMethod    = "payment_method"
	FieldSelectedPrice    = "selected_price"
	FieldSelectedCurrency = "selected_currency"
)

// KnownFields lists the interpreted fields in display order.
var KnownFields = []string{
	FieldName,
	FieldRefID,
	FieldUserUID,
	FieldUserEmail,
	FieldMembershipPlan,
	FieldPaymentMethod,
	FieldSelectedPrice,
	FieldSelectedCurrency,
}

var labels = map[string]string{
	FieldName:             "Name",
	FieldRefID:            "Ref ID",
	FieldUserUID:          "User UID",
	FieldUserEmail:        "Email",
	FieldMembershipPlan:   "Plan",
	FieldPaymentMethod:    "Payment method",
	FieldSelectedPrice:    "Price",
	FieldSelectedCurrency: "Currency",
}

// Label is the display name of a field. Unknown fields keep their name.
func Label(name string) string {
	if l, ok := labels[name]; ok {
		return l
	}
	return name
}

// IsKnown reports whether name is one of KnownFields.
func IsKnown(name string) bool {
	_, ok := labels[name]
	return ok
}

const (
	// DefaultMaxAttachmentSize is the Telegram photo upload limit.
	DefaultMaxAttachmentSize int64 = 10_000_000
	// MaxFieldsSize bounds the text of all field parts together.
	MaxFieldsSize int64 = 4 << 20

	maxFieldSize int64 = 1 << 20
	chunkSize          = 32 << 10
)

var (
	ErrNotMultipart       = errors.New("request is not multipart/form-data")
	ErrAttachmentTooLarge = errors.New("attachment too large")
	ErrFieldTooLarge      = errors.New("field too large")
)

// StreamError is returned by Ingest when the body could not be read to
// completion. No Submission accompanies it.
type StreamError struct {
	Err error
}

func (e *StreamError) Error() string {
	return "could not read form: " + e.Err.Error()
}

func (e *StreamError) Unwrap() error { return e.Err }

type Attachment struct {
	Data     []byte
	MimeType string
	Filename string
}

func (a Attachment) Size() string {
	return humanize.Bytes(uint64(len(a.Data)))
}

// Submission is one parsed form post. It is complete when returned by
// Ingest and must not be modified afterwards.
type Submission struct {
	ID         string
	Fields     map[string]string
	Attachment *Attachment
	ReceivedAt time.Time
}

// Get returns a field value, or "" when the field was not sent.
func (s Submission) Get(name string) string {
	return s.Fields[name]
}

// Entry is a field prepared for display.
type Entry struct {
	Name  string
	Label string
	Value string
}

// Entries lists every known field in display order, sent or not, followed
// by the other fields sorted by name.
func (s Submission) Entries() []Entry {
	entries := make([]Entry, 0, len(KnownFields)+len(s.Fields))
	for _, name := range KnownFields {
		entries = append(entries, Entry{Name: name, Label: Label(name), Value: s.Fields[name]})
	}

	var extra []string
	for name := range s.Fields {
		if !IsKnown(name) {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)

	for _, name := range extra {
		entries = append(entries, Entry{Name: name, Label: name, Value: s.Fields[name]})
	}

	return entries
}

type options struct {
	maxAttachmentSize int64
}

// Option configures Ingest.
type Option func(*options)

// WithMaxAttachmentSize bounds the bytes kept for a file part. Values <= 0
// keep the default.
func WithMaxAttachmentSize(n int64) Option {
	return func(o *options) {
		if n > 0 {
			o.maxAttachmentSize = n
		}
	}
}

// Boundary extracts the multipart boundary from a Content-Type header value.
func Boundary(contentType string) (string, error) {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNotMultipart, err)
	}

	if mediaType != "multipart/form-data" {
		return "", fmt.Errorf("%w: %s", ErrNotMultipart, mediaType)
	}

	boundary := params["boundary"]
	if boundary == "" {
		return "", fmt.Errorf("%w: missing boundary", ErrNotMultipart)
	}

	return boundary, nil
}

// Ingest reads every part of the body. Text parts become Fields, the last
// non-empty file part becomes the Attachment. It returns only after the
// closing boundary has been read, or with a *StreamError.
func Ingest(ctx context.Context, r io.Reader, boundary string, opts ...Option) (Submission, error) {
	o := options{maxAttachmentSize: DefaultMaxAttachmentSize}
	for _, opt := range opts {
		opt(&o)
	}

	fields := map[string]string{}
	var attachment *Attachment
	var fieldsSize int64

	mr := multipart.NewReader(r, boundary)
	for {
		if err := ctx.Err(); err != nil {
			return Submission{}, &StreamError{Err: err}
		}

		part, err := mr.NextPart()
		// NextPart wraps a premature EOF, only a bare io.EOF marks the end.
		if err == io.EOF {
			break
		}
		if err != nil {
			return Submission{}, &StreamError{Err: err}
		}

		if filename, isFile := partFilename(part); isFile {
			a, err := readAttachment(part, filename, o.maxAttachmentSize)
			_ = part.Close()
			if err != nil {
				return Submission{}, &StreamError{Err: err}
			}
			if a != nil {
				attachment = a
			}
			continue
		}

		value, n, err := readField(part, MaxFieldsSize-fieldsSize)
		_ = part.Close()
		if err != nil {
			return Submission{}, &StreamError{Err: err}
		}
		fieldsSize += n

		name := part.FormName()
		if name == "" {
			continue
		}
		fields[name] = value
	}

	return Submission{
		ID:         uuid.New().String(),
		Fields:     fields,
		Attachment: attachment,
		ReceivedAt: time.Now().UTC(),
	}, nil
}

// partFilename reports whether the part declares a filename parameter.
// Browsers send filename="" for an empty file input, which is still a file.
func partFilename(part *multipart.Part) (string, bool) {
	_, params, err := mime.ParseMediaType(part.Header.Get("Content-Disposition"))
	if err != nil {
		return "", false
	}

	if _, ok := params["filename"]; !ok {
		return "", false
	}

	return part.FileName(), true
}

// readField reads a text part of at most maxFieldSize bytes, and at most
// remaining bytes once earlier fields are counted. It returns the value and
// the number of bytes read.
func readField(part *multipart.Part, remaining int64) (string, int64, error) {
	limit := maxFieldSize
	if remaining < limit {
		limit = remaining
	}

	b, err := io.ReadAll(io.LimitReader(part, limit+1))
	if err != nil {
		return "", 0, fmt.Errorf("could not read field %q: %w", part.FormName(), err)
	}

	if int64(len(b)) > limit {
		if limit < maxFieldSize {
			return "", 0, fmt.Errorf("%w: fields exceed %s in total", ErrFieldTooLarge, humanize.IBytes(uint64(MaxFieldsSize)))
		}
		return "", 0, fmt.Errorf("%w: %q exceeds %s", ErrFieldTooLarge, part.FormName(), humanize.IBytes(uint64(maxFieldSize)))
	}

	return strings.ToValidUTF8(string(b), "�"), int64(len(b)), nil
}

// readAttachment keeps the chunks as they arrive and joins them once the
// part is exhausted. A zero-length part yields nil.
func readAttachment(part *multipart.Part, filename string, limit int64) (*Attachment, error) {
	var chunks [][]byte
	var size int64

	for {
		buf := make([]byte, chunkSize)
		n, err := part.Read(buf)
		if n > 0 {
			size += int64(n)
			if size > limit {
				return nil, fmt.Errorf("%w: %q exceeds %s", ErrAttachmentTooLarge, filename, humanize.IBytes(uint64(limit)))
			}
			chunks = append(chunks, buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("could not read file %q: %w", filename, err)
		}
	}

	if size == 0 {
		return nil, nil
	}

	return &Attachment{
		Data:     bytes.Join(chunks, nil),
		MimeType: DetectMimeType(part.Header.Get("Content-Type"), filename),
		Filename: filename,
	}, nil
}
