// Package api adapts HTTP requests, from API Gateway/Netlify functions or a
// plain net/http server, to the relay.
package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/fabianMendez/luxflix"
	"github.com/fabianMendez/luxflix/pkg/config"
	"github.com/fabianMendez/luxflix/pkg/form"
	"github.com/go-telegram/bot/models"
	"github.com/rs/zerolog"
)

// Relay is the part of luxflix.Relay the handlers drive.
type Relay interface {
	HandleSubmission(ctx context.Context, sub form.Submission) error
	HandleUpdate(ctx context.Context, update *models.Update) error
}

type Handler struct {
	relay             Relay
	log               zerolog.Logger
	maxAttachmentSize int64
	corsHeaders       map[string]string
}

func NewHandler(settings config.Settings, relay Relay, logger zerolog.Logger) *Handler {
	return &Handler{
		relay:             relay,
		log:               logger,
		maxAttachmentSize: settings.MaxAttachmentBytes(),
		corsHeaders: map[string]string{
			"Access-Control-Allow-Origin":  settings.AllowedOrigin,
			"Access-Control-Allow-Methods": "POST, OPTIONS",
			"Access-Control-Max-Age":       "3600",
			"Access-Control-Allow-Headers": "Content-Type",
		},
	}
}

type response struct {
	status int
	body   string
}

func jsonBody(key, value string) string {
	b, _ := json.Marshal(map[string]string{key: value})
	return string(b)
}

// submit ingests a multipart body and relays it.
func (h *Handler) submit(ctx context.Context, contentType string, body io.Reader) response {
	boundary, err := form.Boundary(contentType)
	if err != nil {
		return response{http.StatusBadRequest, jsonBody("error", err.Error())}
	}

	sub, err := form.Ingest(ctx, body, boundary, form.WithMaxAttachmentSize(h.maxAttachmentSize))
	if err != nil {
		h.log.Error().Err(err).Msg("could not ingest form submission")
		var maxBytesErr *http.MaxBytesError
		if errors.Is(err, form.ErrAttachmentTooLarge) || errors.Is(err, form.ErrFieldTooLarge) || errors.As(err, &maxBytesErr) {
			return response{http.StatusRequestEntityTooLarge, jsonBody("error", err.Error())}
		}
		return response{http.StatusInternalServerError, jsonBody("error", err.Error())}
	}

	err = h.relay.HandleSubmission(ctx, sub)
	if err != nil {
		var remoteErr *luxflix.RemoteCallError
		if errors.As(err, &remoteErr) {
			return response{http.StatusBadGateway, jsonBody("error", err.Error())}
		}
		return response{http.StatusInternalServerError, jsonBody("error", err.Error())}
	}

	return response{http.StatusOK, jsonBody("id", sub.ID)}
}

// update relays a Telegram update. Telegram redelivers anything that is not
// a 2xx, so only undecodable bodies are rejected.
func (h *Handler) update(ctx context.Context, body io.Reader) response {
	var update models.Update
	err := json.NewDecoder(body).Decode(&update)
	if err != nil {
		h.log.Warn().Err(err).Msg("could not decode telegram update")
		return response{http.StatusBadRequest, "Bad Request"}
	}

	err = h.relay.HandleUpdate(ctx, &update)
	if err != nil {
		h.log.Error().Err(err).Int64("update_id", update.ID).Msg("could not handle telegram update")
	}

	return response{http.StatusOK, "OK"}
}

func (h *Handler) webhook(ctx context.Context, method, contentType string, body io.Reader) response {
	if method != http.MethodPost {
		return response{http.StatusMethodNotAllowed, "Method Not Allowed"}
	}

	if isMultipart(contentType) {
		return h.submit(ctx, contentType, body)
	}

	return h.update(ctx, body)
}

func isMultipart(contentType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), "multipart/")
}

// Webhook is the Telegram webhook function. Multipart bodies posted to it
// are treated as form submissions.
func (h *Handler) Webhook(ctx context.Context, request events.APIGatewayProxyRequest) (*events.APIGatewayProxyResponse, error) {
	resp := h.webhook(ctx, request.HTTPMethod, header(request, "Content-Type"), requestBody(request))

	return &events.APIGatewayProxyResponse{
		StatusCode: resp.status,
		Headers:    map[string]string{"Content-Type": contentTypeOf(resp)},
		Body:       resp.body,
	}, nil
}

// Submit is the website form function. Every response carries the CORS
// headers.
func (h *Handler) Submit(ctx context.Context, request events.APIGatewayProxyRequest) (*events.APIGatewayProxyResponse, error) {
	h.log.Info().Str("method", request.HTTPMethod).Msg("payment form request")

	var resp response
	switch request.HTTPMethod {
	case http.MethodOptions:
		resp = response{http.StatusOK, ""}
	case http.MethodPost:
		resp = h.submit(ctx, header(request, "Content-Type"), requestBody(request))
	default:
		resp = response{http.StatusMethodNotAllowed, jsonBody("error", "Method Not Allowed")}
	}

	headers := map[string]string{"Content-Type": "application/json"}
	for k, v := range h.corsHeaders {
		headers[k] = v
	}

	return &events.APIGatewayProxyResponse{
		StatusCode: resp.status,
		Headers:    headers,
		Body:       resp.body,
	}, nil
}

func contentTypeOf(resp response) string {
	if strings.HasPrefix(resp.body, "{") {
		return "application/json"
	}
	return "text/plain; charset=utf-8"
}

// header looks a request header up case-insensitively, as API Gateway and
// Netlify disagree on header casing.
func header(request events.APIGatewayProxyRequest, name string) string {
	if v, ok := request.Headers[name]; ok {
		return v
	}
	for k, v := range request.Headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

func requestBody(request events.APIGatewayProxyRequest) io.Reader {
	var r io.Reader = strings.NewReader(request.Body)
	if request.IsBase64Encoded {
		r = base64.NewDecoder(base64.StdEncoding, r)
	}
	return r
}

// maxBodySize bounds a whole request body: one attachment, the text fields
// and room for part headers and boundaries.
func (h *Handler) maxBodySize() int64 {
	limit := h.maxAttachmentSize
	if limit <= 0 {
		limit = form.DefaultMaxAttachmentSize
	}
	return limit + form.MaxFieldsSize + 1<<20
}

// ServeHTTP routes /webhook and /submit for the local server, streaming the
// request body straight into the form reader.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize())

	var resp response
	switch strings.TrimSuffix(r.URL.Path, "/") {
	case "/webhook":
		resp = h.webhook(r.Context(), r.Method, r.Header.Get("Content-Type"), r.Body)
		w.Header().Set("Content-Type", contentTypeOf(resp))
	case "/submit":
		for k, v := range h.corsHeaders {
			w.Header().Set(k, v)
		}
		w.Header().Set("Content-Type", "application/json")
		switch r.Method {
		case http.MethodOptions:
			resp = response{http.StatusOK, ""}
		case http.MethodPost:
			resp = h.submit(r.Context(), r.Header.Get("Content-Type"), r.Body)
		default:
			resp = response{http.StatusMethodNotAllowed, jsonBody("error", "Method Not Allowed")}
		}
	default:
		resp = response{http.StatusNotFound, "Not Found"}
	}

	w.WriteHeader(resp.status)
	_, _ = io.WriteString(w, resp.body)
}
