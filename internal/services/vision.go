package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hueai/medassist-backend/internal/assistant"
	"github.com/hueai/medassist-backend/internal/logger"
	"github.com/hueai/medassist-backend/internal/platform/apierr"
	"github.com/hueai/medassist-backend/internal/platform/openrouter"
	"github.com/hueai/medassist-backend/internal/utils"
)

const visionSystemPrompt = `You are a medical image analysis assistant. Your role is to carefully observe and describe medical images with clinical accuracy.

When analyzing an image, provide:
1. A detailed description of what you observe
2. Structured findings in JSON format with relevant medical details
3. Your confidence level in the analysis

Be objective and factual. Note any limitations in image quality or visibility. Never provide definitive diagnoses - only observations and possible considerations for a healthcare provider to evaluate.

Format your response as:
DESCRIPTION: [Your detailed narrative description]

STRUCTURED_FINDINGS: [JSON object with relevant findings]

CONFIDENCE: [HIGH/MEDIUM/LOW with brief justification]`

// VisionService interprets medical images through the multimodal model and
// feeds the result to the context assembler.
type VisionService interface {
	Analyze(ctx context.Context, imageBytes []byte, userContext string) (*assistant.ImageInterpretation, error)
}

type visionService struct {
	model openrouter.Client
	log   *logger.Logger
}

func NewVisionService(model openrouter.Client, log *logger.Logger) VisionService {
	return &visionService{
		model: model,
		log:   log.With("service", "VisionService"),
	}
}

func (s *visionService) Analyze(ctx context.Context, imageBytes []byte, userContext string) (*assistant.ImageInterpretation, error) {
	dataURI, info, err := utils.PrepareImageForAPI(imageBytes)
	if err != nil {
		return nil, apierr.InvalidArgument(fmt.Errorf("invalid image: %w", err))
	}
	s.log.Info("Analyzing medical image",
		"format", info.Format,
		"width", info.Width,
		"height", info.Height,
		"resized", info.Resized,
	)

	prompt := "Please analyze this medical image carefully. Describe what you observe in detail."
	if strings.TrimSpace(userContext) != "" {
		prompt += "\n\nContext: " + userContext
	}
	prompt += "\n\nProvide your analysis in the format specified in the system instructions."

	messages := []openrouter.Message{
		openrouter.TextMessage("system", visionSystemPrompt),
		openrouter.MultimodalUserMessage(prompt, dataURI),
	}

	completion, err := s.model.Complete(ctx, messages, nil)
	if err != nil {
		return nil, apierr.ModelCallFailure(fmt.Errorf("vision analysis failed: %w", err))
	}

	return parseVisionResponse(completion.Content), nil
}

// parseVisionResponse splits the model's sectioned reply into its parts. A
// reply that does not follow the format falls back to being a description.
func parseVisionResponse(text string) *assistant.ImageInterpretation {
	out := &assistant.ImageInterpretation{Confidence: "MEDIUM"}

	var (
		section string
		lines   []string
	)

	closeSection := func() {
		if section == "" || len(lines) == 0 {
			lines = nil
			return
		}
		body := strings.TrimSpace(strings.Join(lines, "\n"))
		switch section {
		case "description":
			out.Description = body
		case "findings":
			var obj map[string]any
			if err := json.Unmarshal([]byte(body), &obj); err == nil {
				out.StructuredFindings = obj
			} else if body != "" {
				out.StructuredFindings = map[string]any{"raw": body}
			}
		case "confidence":
			out.Confidence = body
		}
		lines = nil
	}

	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "DESCRIPTION:"):
			closeSection()
			section = "description"
			lines = append(lines, strings.TrimSpace(strings.TrimPrefix(line, "DESCRIPTION:")))
		case strings.HasPrefix(line, "STRUCTURED_FINDINGS:"):
			closeSection()
			section = "findings"
			lines = append(lines, strings.TrimSpace(strings.TrimPrefix(line, "STRUCTURED_FINDINGS:")))
		case strings.HasPrefix(line, "CONFIDENCE:"):
			closeSection()
			section = "confidence"
			lines = append(lines, strings.TrimSpace(strings.TrimPrefix(line, "CONFIDENCE:")))
		default:
			if line != "" && section != "" {
				lines = append(lines, line)
			}
		}
	}
	closeSection()

	if out.Description == "" && strings.TrimSpace(text) != "" {
		out.Description = strings.TrimSpace(text)
	}
	return out
}
