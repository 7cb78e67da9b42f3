// Package services – ContentService
//
// ContentService turns an agent's questionnaire answers into website copy.
// It builds a prompt from a template plus the answers, asks the LLM for a
// JSON document, repairs the common formatting slips before parsing, and
// then asks the LLM to score each known section of the result.

package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/tbourn/go-domain-mapper/internal/llm"
)

const systemPrompt = "You are a helpful assistant."

// DefaultContentPrompt is used when no template file is configured.
const DefaultContentPrompt = `You write website copy for a real estate agent.
Use the agent's answers below to produce a single JSON object with the keys
home_page, three_steps_carousel, about_us_page, contact_us_page,
global_settings and call_to_action. Each value is an object of short, warm,
professional text fields for that part of the site. Return only the JSON
object, with no commentary and no code fences.

# Agent answers
`

// ScoredSections are scored, in this order, when present in the result.
var ScoredSections = []string{
	"home_page",
	"three_steps_carousel",
	"about_us_page",
	"contact_us_page",
	"global_settings",
	"call_to_action",
}

var (
	// ErrUnparseableCompletion is returned when the repaired completion is not a JSON object.
	ErrUnparseableCompletion = errors.New("completion is not valid JSON")
	// ErrNoAnswers is returned for a request without sections.
	ErrNoAnswers = errors.New("agent_answers is required")
	// ErrPromptTooLong is returned when the built prompt exceeds MaxPromptRunes.
	ErrPromptTooLong = errors.New("prompt too long")
)

// AnswerSection is one questionnaire section: [question, answer] pairs.
type AnswerSection struct {
	Section   string     `json:"section" binding:"required"`
	Questions [][]string `json:"questions"`
}

// ContentRequest is the body of POST /generate-content.
type ContentRequest struct {
	AgentAnswers []AnswerSection `json:"agent_answers" binding:"required,min=1,dive"`
}

// SectionScore is the LLM's assessment of one section.
type SectionScore struct {
	Label  string  `json:"label"`
	Score  float64 `json:"score"`
	Reason string  `json:"reason"`
}

// ContentResult is the response of Generate.
type ContentResult struct {
	Status string                  `json:"status"`
	Result string                  `json:"result"`
	Data   map[string]any          `json:"data"`
	Scores map[string]SectionScore `json:"scores"`
}

// ContentService generates and scores website copy.
type ContentService struct {
	LLM            llm.Completer
	Template       string
	MaxPromptRunes int
	TitleLocale    language.Tag
	Log            zerolog.Logger
}

// NewContentService wires a ContentService. An empty template selects
// DefaultContentPrompt.
func NewContentService(c llm.Completer, template string) *ContentService {
	if template == "" {
		template = DefaultContentPrompt
	}
	return &ContentService{
		LLM:         c,
		Template:    template,
		TitleLocale: language.English,
		Log:         log.With().Str("component", "content").Logger(),
	}
}

// LoadPromptTemplate reads path, or returns DefaultContentPrompt when path is empty.
func LoadPromptTemplate(path string) (string, error) {
	if path == "" {
		return DefaultContentPrompt, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read prompt template: %w", err)
	}
	return string(b), nil
}

// BuildPrompt appends each section as "## <section>" followed by
// "- <question>" and the answer on the next line.
func BuildPrompt(template string, sections []AnswerSection) string {
	var b strings.Builder
	b.WriteString(template)
	for _, s := range sections {
		fmt.Fprintf(&b, "\n## %s\n", s.Section)
		for _, qa := range s.Questions {
			if len(qa) == 0 {
				continue
			}
			answer := ""
			if len(qa) > 1 {
				answer = qa[1]
			}
			fmt.Fprintf(&b, "- %s\n%s\n", qa[0], answer)
		}
	}
	return b.String()
}

var (
	strayEscapeRe   = regexp.MustCompile(`\\[0-9]+,?`)
	trailingCommaRe = regexp.MustCompile(`,([ \t\r\n]*[}\]])`)
)

// RepairJSON strips a surrounding code fence (and its language tag), stray
// backslash-digit escapes and trailing commas before } or ].
func RepairJSON(text string) string {
	if strings.HasPrefix(strings.TrimSpace(text), "```") {
		parts := strings.Split(text, "```")
		if len(parts) > 1 {
			text = parts[1]
		}
		if rest, ok := strings.CutPrefix(strings.TrimLeft(text, " \t"), "json"); ok {
			text = rest
		}
	}
	text = strayEscapeRe.ReplaceAllString(text, "")
	text = trailingCommaRe.ReplaceAllString(text, "$1")
	return strings.TrimSpace(text)
}

// Generate builds the prompt, requests the copy, parses it and scores
// every section in ScoredSections that the result contains.
func (s *ContentService) Generate(ctx context.Context, req ContentRequest) (ContentResult, error) {
	ctx, span := otel.Tracer("services/ContentService").Start(ctx, "Generate")
	defer span.End()

	if len(req.AgentAnswers) == 0 {
		return ContentResult{}, ErrNoAnswers
	}
	prompt := BuildPrompt(s.Template, req.AgentAnswers)
	if s.MaxPromptRunes > 0 && utf8.RuneCountInString(prompt) > s.MaxPromptRunes {
		return ContentResult{}, ErrPromptTooLong
	}
	span.SetAttributes(attribute.Int("sections", len(req.AgentAnswers)), attribute.Int("prompt_len", len(prompt)))

	raw, err := s.LLM.Complete(ctx, systemPrompt, prompt)
	if err != nil {
		return ContentResult{}, err
	}
	cleaned := RepairJSON(raw)
	var data map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		s.Log.Warn().Err(err).Int("len", len(cleaned)).Msg("completion did not parse as JSON")
		return ContentResult{}, fmt.Errorf("%w: %v", ErrUnparseableCompletion, err)
	}

	scores := make(map[string]SectionScore)
	for _, name := range ScoredSections {
		section, ok := data[name]
		if !ok {
			continue
		}
		scores[name] = s.scoreSection(ctx, name, section)
	}
	s.Log.Info().Int("keys", len(data)).Int("scored", len(scores)).Msg("content generated")

	return ContentResult{Status: "ok", Result: "success", Data: data, Scores: scores}, nil
}

// scoreSection asks for {"score","reason"}; any failure scores 1.0 with the
// failure as the reason.
func (s *ContentService) scoreSection(ctx context.Context, name string, content any) SectionScore {
	label := cases.Title(s.TitleLocale).String(strings.ReplaceAll(name, "_", " "))
	out := SectionScore{Label: label, Score: 1.0}

	body, _ := json.MarshalIndent(content, "", "  ")
	prompt := fmt.Sprintf(`Evaluate the following section for quality, completeness, and clarity. Give a score from 0.0 to 1.0 and a short reason.

Section (%q):
%s

Respond in this JSON format:
{"score": float, "reason": string}`, name, body)

	raw, err := s.LLM.Complete(ctx, "", prompt)
	if err != nil {
		out.Reason = "Failed to parse reason: " + err.Error()
		return out
	}
	var parsed struct {
		Score  *float64 `json:"score"`
		Reason *string  `json:"reason"`
	}
	if err := json.Unmarshal([]byte(RepairJSON(raw)), &parsed); err != nil {
		out.Reason = "Failed to parse reason: " + err.Error()
		return out
	}
	if parsed.Score != nil {
		out.Score = *parsed.Score
	}
	out.Reason = "No reason provided"
	if parsed.Reason != nil {
		out.Reason = *parsed.Reason
	}
	return out
}
