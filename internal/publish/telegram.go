package publish

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"herald/internal/news"
	"herald/pkg/logging"
)

// botAPI is the slice of tgbotapi.BotAPI the publisher uses; tests
// substitute a recorder.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// PostResult is what a successful channel post yields. PermanentURL is
// the public t.me link recorded on the durable record.
type PostResult struct {
	PermanentURL string
	MessageID    int
}

// Publisher sends previews and posts through one bot account. Channels
// are referenced either by @username or by numeric chat ID.
type Publisher struct {
	bot       botAPI
	http      *http.Client
	admin     string
	primary   string
	secondary string
	logger    logging.Logger
}

func NewPublisher(bot *tgbotapi.BotAPI, admin, primary, secondary string, logger logging.Logger) *Publisher {
	return &Publisher{
		bot:       bot,
		http:      &http.Client{Timeout: 30 * time.Second},
		admin:     admin,
		primary:   primary,
		secondary: secondary,
		logger:    logger,
	}
}

// SendPreview delivers the rendered post plus an Approve/Decline
// keyboard to the admin channel. The callback data carries the record's
// correlation ID so a decision can be recovered after a restart.
func (p *Publisher) SendPreview(ctx context.Context, post news.PendingPost) error {
	if _, err := p.sendPost(ctx, p.admin, post.PostText, post.Creative); err != nil {
		return fmt.Errorf("send preview: %w", err)
	}

	keyboard := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Approve", "approve:"+post.ID),
			tgbotapi.NewInlineKeyboardButtonData("❌ Decline", "decline:"+post.ID),
		),
	)
	prompt := newMessage(p.admin, fmt.Sprintf("👆 Approve or decline the post above?\n📰 %s", post.Title))
	prompt.ReplyMarkup = keyboard
	if _, err := p.bot.Send(prompt); err != nil {
		return fmt.Errorf("send approval prompt: %w", err)
	}

	p.logger.WithFields(logging.Fields{
		"correlation_id": post.ID,
		"title":          post.Title,
	}).Info("Preview sent, awaiting approval")
	return nil
}

// SendPrimary posts to the main channel and returns the permanent URL.
func (p *Publisher) SendPrimary(ctx context.Context, post news.PendingPost) (PostResult, error) {
	msg, err := p.sendPost(ctx, p.primary, post.PostText, post.Creative)
	if err != nil {
		return PostResult{}, fmt.Errorf("post to primary channel: %w", err)
	}
	return PostResult{
		PermanentURL: PermanentURL(p.primary, msg.MessageID),
		MessageID:    msg.MessageID,
	}, nil
}

// SendSecondary posts the translated text to the secondary channel,
// reusing the original post's creative.
func (p *Publisher) SendSecondary(ctx context.Context, text string, creative news.Creative) error {
	if _, err := p.sendPost(ctx, p.secondary, text, creative); err != nil {
		return fmt.Errorf("post to secondary channel: %w", err)
	}
	return nil
}

// EditAdminMessage rewrites an admin-channel message, used to pin the
// decision outcome onto the approval prompt.
func (p *Publisher) EditAdminMessage(messageID int, text string) error {
	chatID, username := chatTarget(p.admin)
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	edit.ChannelUsername = username
	_, err := p.bot.Request(edit)
	return err
}

// sendPost delivers text with its creative to one channel, degrading
// from video/photo to plain text as sends fail. Telegram fetches media
// URLs itself and rejects many CDNs, so images are downloaded and sent
// as bytes first.
func (p *Publisher) sendPost(ctx context.Context, channel, text string, creative news.Creative) (tgbotapi.Message, error) {
	switch creative.Kind {
	case news.CreativeVideo:
		if usable(creative.URL) {
			video := newVideo(channel, tgbotapi.FileURL(creative.URL))
			video.Caption = text
			video.ParseMode = tgbotapi.ModeHTML
			return p.bot.Send(video)
		}
	case news.CreativeImage:
		if usable(creative.URL) {
			return p.sendPhoto(ctx, channel, text, creative.URL)
		}
	}

	msg := newMessage(channel, text)
	msg.ParseMode = tgbotapi.ModeHTML
	return p.bot.Send(msg)
}

func (p *Publisher) sendPhoto(ctx context.Context, channel, text, imageURL string) (tgbotapi.Message, error) {
	if data, err := p.downloadImage(ctx, imageURL); err == nil {
		photo := newPhoto(channel, tgbotapi.FileBytes{Name: "cover.jpg", Bytes: data})
		photo.Caption = text
		photo.ParseMode = tgbotapi.ModeHTML
		if msg, err := p.bot.Send(photo); err == nil {
			return msg, nil
		} else {
			p.logger.WithFields(logging.Fields{
				"url":   imageURL,
				"error": err.Error(),
			}).Warn("Photo upload failed, trying the URL directly")
		}
	} else {
		p.logger.WithFields(logging.Fields{
			"url":   imageURL,
			"error": err.Error(),
		}).Warn("Image download failed, trying the URL directly")
	}

	photo := newPhoto(channel, tgbotapi.FileURL(imageURL))
	photo.Caption = text
	photo.ParseMode = tgbotapi.ModeHTML
	if msg, err := p.bot.Send(photo); err == nil {
		return msg, nil
	}

	// Last resort keeps the post readable, just without the image.
	msg := newMessage(channel, "[Image omitted due to fetch error]\n\n"+text)
	msg.ParseMode = tgbotapi.ModeHTML
	return p.bot.Send(msg)
}

func (p *Publisher) downloadImage(ctx context.Context, imageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := p.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("image fetch returned %s", resp.Status)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 20<<20))
}

func usable(url string) bool {
	return url != "" && url != news.NoCreative
}

// PermanentURL builds the public https://t.me link for a channel
// message. Only username channels have public links; the channel
// reference is used as-is after stripping the @.
func PermanentURL(channel string, messageID int) string {
	return fmt.Sprintf("https://t.me/%s/%d", strings.TrimPrefix(channel, "@"), messageID)
}

// chatTarget splits a channel reference into the form tgbotapi wants:
// a numeric chat ID, or an @username.
func chatTarget(channel string) (chatID int64, username string) {
	if id, err := strconv.ParseInt(channel, 10, 64); err == nil {
		return id, ""
	}
	if !strings.HasPrefix(channel, "@") {
		channel = "@" + channel
	}
	return 0, channel
}

func newMessage(channel, text string) tgbotapi.MessageConfig {
	chatID, username := chatTarget(channel)
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ChannelUsername = username
	return msg
}

func newPhoto(channel string, file tgbotapi.RequestFileData) tgbotapi.PhotoConfig {
	chatID, username := chatTarget(channel)
	photo := tgbotapi.NewPhoto(chatID, file)
	photo.ChannelUsername = username
	return photo
}

func newVideo(channel string, file tgbotapi.RequestFileData) tgbotapi.VideoConfig {
	chatID, username := chatTarget(channel)
	video := tgbotapi.NewVideo(chatID, file)
	video.ChannelUsername = username
	return video
}
