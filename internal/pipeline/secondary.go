package pipeline

import (
	"context"
	"fmt"
	"strings"

	"herald/internal/news"
	"herald/internal/stage"
	"herald/pkg/llm"
	"herald/pkg/logging"
)

// minTranslationLength rejects truncated rewrites the way the composer
// rejects truncated posts.
const minTranslationLength = 30

const translateSystem = `You are an expert Telegram post writer for Russian audiences. You will receive an English post and your job is to WRITE it in natural Russian, not translate it directly.

CRITICAL RULES:
1. Maximum 700 characters (including HTML tags, emojis, whitespace)
2. Write in natural, fluent Russian that sounds completely native - as if originally written by a Russian speaker
3. Retain all HTML tags exactly as in original (<b>, <i>, <u>, <s>, <code>, <pre>, <a href="">) - no new tags, no removed tags
4. Keep all emojis in the same positions
5. Maintain overall structure and all key points from the English version
6. Your goal is to REWRITE, not translate word-for-word
7. Dont forget to change hyperlink text as well (never the url itself)

YOUR WRITING APPROACH:
- Read the English post to understand the core message and key facts
- WRITE the post fresh in Russian as if you're creating it from scratch
- Use natural Russian sentence structure, idioms, and expressions
- Choose words and phrases that native Russian speakers actually use in Telegram posts
- Avoid calques (word-for-word translations) that sound unnatural
- Don't invent new points or add information not in the original
- Keep the same tone: professional, engaging, clear

OUTPUT FORMAT:
Return only a valid JSON object with no explanations, no comments, no additional text:
{
  "post_text": "your Russian post with all html tags and emojis preserved"
}

Remember: Your task is to WRITE in Russian, not translate into Russian. The result should read as if it was originally composed by a native Russian speaker for a Russian Telegram audience.`

const reviewSystem = `You are a Russian copywriting editor. You receive a Russian Telegram post and must review it for natural, native-quality Russian.

YOUR ONLY JOB:
Check if the wording sounds natural and native. Fix any awkward phrases or word choices that don't sound like something a native Russian speaker would write.

RULES YOU MUST FOLLOW:
1. Keep ALL HTML tags exactly as they are
2. Keep ALL emojis in the same positions
3. Keep the same overall length (around 700 characters max)
4. Keep the same meaning and key information
5. Only change words/phrases that need improvement - if nothing is wrong, dont change anything

If the text is already good, keep it as is and just output it. Only fix what needs fixing.

Your output must be a single JSON object:
{
  "post_text": "the corrected Russian text with all html tags and emojis preserved"
}

No explanations. No comments. Only valid JSON with the polished Russian text.`

// SecondaryPublisher posts to the secondary-language channel.
type SecondaryPublisher interface {
	SendSecondary(ctx context.Context, text string, creative news.Creative) error
}

// Notifier alerts the operator channel.
type Notifier interface {
	ReportError(component string, err error)
}

// Translator is the secondary-channel sub-pipeline: rewrite the posted
// English text in Russian, run a quality review pass, swap the channel
// signature, and post. It runs detached after an approval; all failures
// go to the operator, never back to the reviewer.
type Translator struct {
	gen            stage.Generator
	translateModel string
	reviewModel    string
	publisher      SecondaryPublisher
	notifier       Notifier
	enSignature    string
	ruSignature    string
	logger         logging.Logger
}

func NewTranslator(gen stage.Generator, translateModel, reviewModel string, publisher SecondaryPublisher, notifier Notifier, enSignature, ruSignature string, logger logging.Logger) *Translator {
	return &Translator{
		gen:            gen,
		translateModel: translateModel,
		reviewModel:    reviewModel,
		publisher:      publisher,
		notifier:       notifier,
		enSignature:    enSignature,
		ruSignature:    ruSignature,
		logger:         logger,
	}
}

type rewriteResult struct {
	PostText string `json:"post_text"`
}

// Run executes the sub-pipeline for one posted item.
func (t *Translator) Run(ctx context.Context, post news.PendingPost) {
	ruText, err := t.rewrite(ctx, post.PostText)
	if err != nil {
		t.logger.WithFields(logging.Fields{
			"correlation_id": post.ID,
			"error":          err.Error(),
		}).Error("Russian rewrite failed, skipping secondary post")
		t.notifier.ReportError("secondary", err)
		return
	}

	ruText = t.review(ctx, ruText)
	ruText = t.swapSignature(ruText)

	if err := t.publisher.SendSecondary(ctx, ruText, post.Creative); err != nil {
		t.logger.WithFields(logging.Fields{
			"correlation_id": post.ID,
			"error":          err.Error(),
		}).Error("Secondary channel post failed")
		t.notifier.ReportError("secondary", err)
		return
	}

	t.logger.WithFields(logging.Fields{"correlation_id": post.ID}).Info("Posted to secondary channel")
}

func (t *Translator) rewrite(ctx context.Context, enText string) (string, error) {
	var result rewriteResult
	err := t.gen.CompleteJSON(ctx, llm.Request{
		Model:       t.translateModel,
		System:      translateSystem,
		Input:       "Post text: " + enText,
		Temperature: 0.7,
		MaxTokens:   1500,
	}, &result)
	if err != nil {
		return "", fmt.Errorf("rewrite post: %w", err)
	}

	ruText := strings.TrimSpace(result.PostText)
	if len(ruText) < minTranslationLength {
		return "", fmt.Errorf("rewrite post: output too short (%d chars)", len(ruText))
	}
	return ruText, nil
}

// review polishes the rewrite; any failure falls back to the
// unreviewed text, which is still postable.
func (t *Translator) review(ctx context.Context, ruText string) string {
	var result rewriteResult
	err := t.gen.CompleteJSON(ctx, llm.Request{
		Model:       t.reviewModel,
		System:      reviewSystem,
		Input:       "Post text: " + ruText,
		Temperature: 0.5,
		MaxTokens:   1500,
	}, &result)
	if err != nil {
		t.logger.WithFields(logging.Fields{"error": err.Error()}).Warn("Review pass failed, using unreviewed rewrite")
		return ruText
	}

	polished := strings.TrimSpace(result.PostText)
	if len(polished) < minTranslationLength {
		return ruText
	}
	return polished
}

func (t *Translator) swapSignature(text string) string {
	if t.enSignature == "" || t.ruSignature == "" {
		return text
	}
	return strings.ReplaceAll(text, t.enSignature, t.ruSignature)
}
