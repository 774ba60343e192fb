// Package telegram sends the relay's messages through the Telegram Bot API.
package telegram

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/fabianMendez/luxflix"
	"github.com/fabianMendez/luxflix/pkg/approval"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

const (
	// maxAnswerLength is the Telegram limit for callback query answers.
	maxAnswerLength = 200

	defaultPhotoFilename    = "proof.jpg"
	defaultDocumentFilename = "proof"
)

type Client struct {
	bot *bot.Bot
}

// New creates a client that skips the getMe check so that constructing it
// in a cold function costs no request.
func New(token string, httpClient *http.Client, opts ...bot.Option) (*Client, error) {
	options := []bot.Option{bot.WithSkipGetMe()}
	if httpClient != nil {
		// long polls must end before the client gives up on them
		pollTimeout := httpClient.Timeout
		if pollTimeout == 0 {
			pollTimeout = time.Minute
		}
		options = append(options, bot.WithHTTPClient(pollTimeout, httpClient))
	}
	options = append(options, opts...)

	b, err := bot.New(token, options...)
	if err != nil {
		return nil, fmt.Errorf("could not create bot: %w", err)
	}

	return &Client{bot: b}, nil
}

// Bot exposes the underlying bot for polling and webhook management.
func (c *Client) Bot() *bot.Bot {
	return c.bot
}

func keyboard(buttons []approval.Button) models.ReplyMarkup {
	if len(buttons) == 0 {
		return nil
	}

	row := make([]models.InlineKeyboardButton, 0, len(buttons))
	for _, b := range buttons {
		row = append(row, models.InlineKeyboardButton{Text: b.Label, CallbackData: b.Payload})
	}

	return &models.InlineKeyboardMarkup{InlineKeyboard: [][]models.InlineKeyboardButton{row}}
}

func (c *Client) SendText(ctx context.Context, chatID int64, text string, buttons []approval.Button) error {
	_, err := c.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      chatID,
		Text:        text,
		ReplyMarkup: keyboard(buttons),
	})
	if err != nil {
		return fmt.Errorf("could not send message to %d: %w", chatID, err)
	}

	return nil
}

func (c *Client) SendPhoto(ctx context.Context, chatID int64, photo luxflix.Photo, buttons []approval.Button) error {
	var input models.InputFile
	if photo.FileID != "" {
		input = &models.InputFileString{Data: photo.FileID}
	} else {
		filename := photo.Filename
		if filename == "" {
			filename = defaultPhotoFilename
		}
		input = &models.InputFileUpload{Filename: filename, Data: bytes.NewReader(photo.Data)}
	}

	_, err := c.bot.SendPhoto(ctx, &bot.SendPhotoParams{
		ChatID:      chatID,
		Photo:       input,
		Caption:     photo.Caption,
		ReplyMarkup: keyboard(buttons),
	})
	if err != nil {
		return fmt.Errorf("could not send photo to %d: %w", chatID, err)
	}

	return nil
}

// SendDocument uploads a file Telegram would reject as a photo.
func (c *Client) SendDocument(ctx context.Context, chatID int64, doc luxflix.Document, buttons []approval.Button) error {
	filename := doc.Filename
	if filename == "" {
		filename = defaultDocumentFilename
	}

	_, err := c.bot.SendDocument(ctx, &bot.SendDocumentParams{
		ChatID:      chatID,
		Document:    &models.InputFileUpload{Filename: filename, Data: bytes.NewReader(doc.Data)},
		Caption:     doc.Caption,
		ReplyMarkup: keyboard(buttons),
	})
	if err != nil {
		return fmt.Errorf("could not send document to %d: %w", chatID, err)
	}

	return nil
}

func (c *Client) AnswerCallback(ctx context.Context, callbackID, text string) error {
	if utf8.RuneCountInString(text) > maxAnswerLength {
		text = string([]rune(text)[:maxAnswerLength-1]) + "…"
	}

	_, err := c.bot.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: callbackID,
		Text:            text,
	})
	if err != nil {
		return fmt.Errorf("could not answer callback %s: %w", callbackID, err)
	}

	return nil
}

// SetWebhook points Telegram at url for messages and button clicks.
func (c *Client) SetWebhook(ctx context.Context, url string) error {
	_, err := c.bot.SetWebhook(ctx, &bot.SetWebhookParams{
		URL:            url,
		AllowedUpdates: []string{"message", "callback_query"},
	})
	if err != nil {
		return fmt.Errorf("could not set webhook: %w", err)
	}

	return nil
}

func (c *Client) DeleteWebhook(ctx context.Context, dropPending bool) error {
	_, err := c.bot.DeleteWebhook(ctx, &bot.DeleteWebhookParams{DropPendingUpdates: dropPending})
	if err != nil {
		return fmt.Errorf("could not delete webhook: %w", err)
	}

	return nil
}
