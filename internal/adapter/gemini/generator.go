package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const generationModel = "gemini-1.5-flash"

const groundingInstruction = `You are a course assistant. Answer the student's question using ONLY the provided course materials below.
If the materials do not contain enough information to answer, say so plainly instead of guessing.
Cite the material you used by its title when it helps the student find it.`

var ErrGenerationUnavailable = errors.New("generation provider unavailable")

// Generator produces grounded answers from retrieved course material.
type Generator struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

func NewGenerator(ctx context.Context, apiKey string, timeout time.Duration, opts ...option.ClientOption) (*Generator, error) {
	opts = append(opts, option.WithAPIKey(apiKey))
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return &Generator{client: client, model: generationModel, timeout: timeout}, nil
}

func (g *Generator) Close() error {
	return g.client.Close()
}

// GenerateAnswer asks the model to answer query grounded in materials.
// materials is the already-assembled context block; the caller decides
// whether there is enough context to warrant a call at all.
func (g *Generator) GenerateAnswer(ctx context.Context, query, materials string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	model := g.client.GenerativeModel(g.model)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(groundingInstruction)},
	}

	prompt := fmt.Sprintf("Course materials:\n%s\n\nQuestion: %s", materials, query)

	resp, err := model.GenerateContent(callCtx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGenerationUnavailable, err)
	}

	answer := collectText(resp)
	if answer == "" {
		return "", fmt.Errorf("%w: empty response", ErrGenerationUnavailable)
	}
	return answer, nil
}

func collectText(resp *genai.GenerateContentResponse) string {
	var b strings.Builder
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				b.WriteString(string(t))
			}
		}
	}
	return strings.TrimSpace(b.String())
}
