// Package composer assembles the message sequence for one chat-completion
// request and owns the success path that records the exchange. Every request
// opens with two system messages (instruction, then the dataset profile);
// what follows depends on the configured replay policy.
package composer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/qmuntal/stateless"
	"github.com/sashabaranov/go-openai"

	"github.com/comigor/csvchat-go/internal/config"
	"github.com/comigor/csvchat-go/internal/history"
	"github.com/comigor/csvchat-go/internal/llm"
	"github.com/comigor/csvchat-go/internal/logger"
)

var (
	// ErrEmptyQuestion rejects questions that are empty after trimming.
	ErrEmptyQuestion = errors.New("question is empty")
	// ErrLLMInvocation wraps any collaborator failure: network, auth,
	// rate limit, or an empty completion. The request is terminal; no retry.
	ErrLLMInvocation = errors.New("llm invocation failed")
)

// profileLabel prefixes the rendered dataset profile in its system message.
const profileLabel = "Here is the data description:\n"

// FSM states and triggers for the request lifecycle.
type fsmState stateless.State
type fsmTrigger stateless.Trigger

var (
	stateReadyToCallLLM fsmState = "ReadyToCallLLM"
	stateDone           fsmState = "Done"
	stateError          fsmState = "Error"

	triggerAskSubmitted  fsmTrigger = "AskSubmitted"
	triggerLLMResponded  fsmTrigger = "LLMResponded"
	triggerErrorOccurred fsmTrigger = "ErrorOccurred"
)

// Composer builds per-request message sequences and records completed
// exchanges. It is stateless between requests; the history store passed to
// Ask carries all session state.
type Composer struct {
	llmClient llm.Client
	cfg       config.LLMConfig
}

// New creates a Composer.
func New(llmClient llm.Client, cfg config.LLMConfig) *Composer {
	return &Composer{llmClient: llmClient, cfg: cfg}
}

// BuildMessages assembles the ordered request sequence: system instruction,
// system profile, then either the replayed history plus the new question or
// the new question alone.
func (c *Composer) BuildMessages(profile string, exchanges []history.Exchange, question string) []openai.ChatCompletionMessage {
	instruction := c.cfg.SystemPrompt
	if instruction == "" {
		instruction = config.DefaultSystemPrompt
	}

	messages := make([]openai.ChatCompletionMessage, 0, 2+2*len(exchanges)+1)
	messages = append(messages,
		openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: instruction},
		openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: profileLabel + profile},
	)

	if c.cfg.ReplayHistory {
		for _, e := range exchanges {
			messages = append(messages,
				openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: e.Question},
				openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: e.Answer},
			)
		}
	}

	return append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: question})
}

// Ask runs one question through the collaborator. On success the exchange is
// appended to store and the answer returned; on any failure store is left
// exactly as it was.
func (c *Composer) Ask(ctx context.Context, profile string, store *history.Store, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", ErrEmptyQuestion
	}

	messages := c.BuildMessages(profile, store.Snapshot(), question)

	var answer string
	var lastError error

	fsm := stateless.NewStateMachine(stateReadyToCallLLM)

	// The machine starts in ReadyToCallLLM, but entry actions only run on a
	// transition; re-entry via the submit trigger is what makes the call.
	fsm.Configure(stateReadyToCallLLM).
		PermitReentry(triggerAskSubmitted).
		OnEntry(func(ctx context.Context, _ ...any) error {
			logger.L.Debug("calling llm", "model", c.cfg.Model, "messages", len(messages))

			callCtx := ctx
			if c.cfg.TimeoutSeconds > 0 {
				var cancel context.CancelFunc
				callCtx, cancel = context.WithTimeout(ctx, time.Duration(c.cfg.TimeoutSeconds)*time.Second)
				defer cancel()
			}

			resp, err := c.llmClient.CreateChatCompletion(callCtx, openai.ChatCompletionRequest{
				Model:       c.cfg.Model,
				Temperature: c.cfg.Temperature,
				Messages:    messages,
			})
			if err != nil {
				logger.L.Error("llm call failed", "error", err)
				lastError = fmt.Errorf("%w: %v", ErrLLMInvocation, err)
				return fsm.FireCtx(ctx, triggerErrorOccurred)
			}
			if len(resp.Choices) == 0 {
				lastError = fmt.Errorf("%w: completion had no choices", ErrLLMInvocation)
				return fsm.FireCtx(ctx, triggerErrorOccurred)
			}
			answer = resp.Choices[0].Message.Content
			return fsm.FireCtx(ctx, triggerLLMResponded)
		}).
		Permit(triggerLLMResponded, stateDone).
		Permit(triggerErrorOccurred, stateError)

	fsm.Configure(stateDone).
		OnEntry(func(_ context.Context, _ ...any) error {
			store.Append(history.Exchange{
				Question:  question,
				Answer:    answer,
				CreatedAt: time.Now().UTC(),
			})
			return nil
		})

	fsm.Configure(stateError)

	if err := fsm.FireCtx(ctx, triggerAskSubmitted); err != nil {
		if lastError != nil {
			return "", lastError
		}
		return "", fmt.Errorf("%w: %v", ErrLLMInvocation, err)
	}

	currentState, err := fsm.State(ctx)
	if err != nil {
		return "", fmt.Errorf("request state machine: %w", err)
	}
	switch currentState {
	case stateDone:
		return answer, nil
	case stateError:
		return "", lastError
	default:
		return "", fmt.Errorf("request ended in unexpected state: %v", currentState)
	}
}
