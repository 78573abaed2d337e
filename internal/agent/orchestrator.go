package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/glintcart/glintbot/internal/domain"
	"github.com/glintcart/glintbot/internal/llm"
	"github.com/glintcart/glintbot/internal/logging"
)

// maxToolIterations bounds the tool loop per incoming message. On the
// final iteration the model is told it may not call tools, forcing a
// textual answer.
const maxToolIterations = 5

// Reply is the outcome of one orchestrated turn.
type Reply struct {
	Text      string
	ToolCalls int
	Usage     llm.Usage
}

// TurnArchiver receives finished turns for durable storage. The context
// window is authoritative for prompting; the archive is write-only here.
type TurnArchiver interface {
	Append(ctx context.Context, key domain.ConversationKey, turns ...domain.ConversationTurn) error
}

// Orchestrator drives the model through the tool loop for each
// incoming customer message and maintains conversation context.
type Orchestrator struct {
	client   llm.Client
	registry *Registry
	executor *Executor
	contexts ContextStore
	archive  TurnArchiver
	log      *logging.Logger
	now      func() time.Time
}

func NewOrchestrator(client llm.Client, reg *Registry, exec *Executor, contexts ContextStore, log *logging.Logger) *Orchestrator {
	return &Orchestrator{
		client:   client,
		registry: reg,
		executor: exec,
		contexts: contexts,
		log:      log.Sub("orchestrator"),
		now:      time.Now,
	}
}

// SetArchive attaches a durable turn archive. Archive failures are
// logged, never surfaced to the customer.
func (o *Orchestrator) SetArchive(a TurnArchiver) { o.archive = a }

// HandleMessage runs one customer message through the tool loop and
// returns the assistant's reply. Only the user message and the final
// assistant text are persisted to context; intermediate tool traffic
// stays within the turn.
func (o *Orchestrator) HandleMessage(ctx context.Context, key domain.ConversationKey, text string) (*Reply, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("empty message for %s", key)
	}

	caller := CallerIdentity{Channel: key.Channel, Phone: key.CustomerPhone}
	messages := o.seedMessages(key, text)
	tools := o.registry.Definitions()

	reply := &Reply{}
	for iteration := 0; iteration < maxToolIterations; iteration++ {
		req := llm.CompletionRequest{
			Messages:   messages,
			Tools:      tools,
			ToolChoice: llm.ToolChoiceAuto,
		}
		if iteration == maxToolIterations-1 {
			req.ToolChoice = llm.ToolChoiceNone
		}

		resp, err := o.client.Complete(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("completing turn for %s: %w", key, err)
		}
		reply.Usage.Add(resp.Usage)

		if len(resp.ToolCalls) == 0 {
			reply.Text = strings.TrimSpace(resp.Content)
			if reply.Text == "" {
				reply.Text = "Sorry, I didn't catch that. Could you say it again?"
			}
			o.persist(ctx, key, text, reply.Text)
			return reply, nil
		}

		messages = append(messages, llm.Message{
			Role:      llm.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})
		for _, call := range resp.ToolCalls {
			o.log.Debug().
				Str("conversation", key.String()).
				Str("tool", call.Name).
				Int("iteration", iteration).
				Msg("executing tool call")
			result := o.executor.Execute(ctx, caller, call.Name, call.Arguments)
			reply.ToolCalls++
			messages = append(messages, llm.Message{
				Role:       llm.RoleTool,
				Content:    result,
				ToolCallID: call.ID,
			})
		}
	}

	// Unreachable while the final iteration forbids tool calls, but a
	// misbehaving provider could still emit them there.
	reply.Text = "Sorry, I couldn't finish looking that up. Please try again in a moment."
	o.persist(ctx, key, text, reply.Text)
	return reply, nil
}

func (o *Orchestrator) seedMessages(key domain.ConversationKey, text string) []llm.Message {
	history := o.contexts.History(key)
	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: SystemPrompt(key.Channel)})
	for _, turn := range history {
		messages = append(messages, llm.Message{Role: turn.Role, Content: turn.Content})
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: text})
	return messages
}

func (o *Orchestrator) persist(ctx context.Context, key domain.ConversationKey, userText, assistantText string) {
	now := o.now()
	turns := []domain.ConversationTurn{
		{Role: domain.RoleUser, Content: userText, Timestamp: now},
		{Role: domain.RoleAssistant, Content: assistantText, Timestamp: now},
	}
	o.contexts.Append(key, turns...)
	if o.archive != nil {
		if err := o.archive.Append(ctx, key, turns...); err != nil {
			o.log.Error().Err(err).Str("conversation", key.String()).Msg("archiving turns failed")
		}
	}
}
