// Package ai wires an LLM to the gateway: an assistant that answers swap
// questions by calling the gateway tools, and an analyst that queries the
// audit tables.
package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/tmc/langchaingo/agents"
	"github.com/tmc/langchaingo/chains"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/tools"
)

const openRouterURL = "https://openrouter.ai/api/v1"

// DefaultModel is used when no model is configured.
const DefaultModel = "openai/gpt-4.1-mini"

// NewOpenRouterLLM creates an OpenAI-compatible model served by OpenRouter.
func NewOpenRouterLLM(apiKey, model string) (llms.Model, error) {
	if apiKey == "" {
		return nil, errors.New("OPENROUTER_API_KEY is required")
	}
	if model == "" {
		model = DefaultModel
	}
	llm, err := openai.New(
		openai.WithToken(apiKey),
		openai.WithBaseURL(openRouterURL),
		openai.WithModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create OpenRouter LLM: %w", err)
	}
	return llm, nil
}

// AssistantConfig holds the assistant's collaborators.
type AssistantConfig struct {
	LLM           llms.Model
	Tools         []tools.Tool
	MaxIterations int
	Logger        *logrus.Logger
}

// Assistant runs a one-shot ReAct agent over the gateway tools. It can
// quote and build instructions but never signs or sends anything.
type Assistant struct {
	executor *agents.Executor
	logger   *logrus.Logger
}

func NewAssistant(cfg AssistantConfig) (*Assistant, error) {
	if cfg.LLM == nil {
		return nil, errors.New("assistant needs an LLM")
	}
	if len(cfg.Tools) == 0 {
		return nil, errors.New("assistant needs at least one tool")
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = 5
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}

	agent := agents.NewOneShotAgent(cfg.LLM, cfg.Tools, agents.WithMaxIterations(cfg.MaxIterations))
	return &Assistant{
		executor: agents.NewExecutor(agent, agents.WithMaxIterations(cfg.MaxIterations)),
		logger:   cfg.Logger,
	}, nil
}

// Ask runs the agent on question and returns its final answer.
func (a *Assistant) Ask(ctx context.Context, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", errors.New("empty question")
	}

	a.logger.WithField("question", question).Debug("running assistant")
	answer, err := chains.Run(ctx, a.executor, question)
	if err != nil {
		return "", fmt.Errorf("assistant: %w", err)
	}
	return strings.TrimSpace(answer), nil
}
