// Package chat drives one conversational turn for an agent, including the
// bounded tool-call loop.
//
// The turn is an explicit state machine: INIT → FIRST_COMPLETION →
// (TOOL_EXEC → SECOND_COMPLETION)? → DONE. The second completion always
// runs with an empty tool catalog, so at most one tool executes per user
// turn — the invariant is structural, not conventional.
package chat

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/agentbridge/agentbridge/internal/action"
	"github.com/agentbridge/agentbridge/internal/llm"
	"github.com/agentbridge/agentbridge/internal/store"
	"github.com/agentbridge/agentbridge/pkg/models"
)

// state is one phase of the chat turn.
type state int

const (
	stateInit state = iota
	stateFirstCompletion
	stateToolExec
	stateSecondCompletion
	stateDone
)

// Orchestrator runs chat turns against the configured LLM drivers.
type Orchestrator struct {
	store    store.Store
	drivers  *llm.Registry
	executor *action.Executor
}

// NewOrchestrator creates a chat orchestrator.
func NewOrchestrator(s store.Store, drivers *llm.Registry, exec *action.Executor) *Orchestrator {
	return &Orchestrator{store: s, drivers: drivers, executor: exec}
}

// Run executes one chat turn for the agent. The apiKey is the agent's
// decrypted provider credential; messages is the caller-supplied
// conversation without the system prompt.
func (o *Orchestrator) Run(ctx context.Context, agent *models.Agent, apiKey string, messages []models.ChatMessage) (*models.ChatResult, error) {
	driver, err := o.drivers.Get(string(agent.Provider))
	if err != nil {
		return nil, err
	}

	tools, toolIndex, err := o.enabledCatalog(ctx, agent)
	if err != nil {
		return nil, fmt.Errorf("build tool catalog: %w", err)
	}

	conversation := make([]models.ChatMessage, 0, len(messages)+1)
	conversation = append(conversation, models.ChatMessage{Role: "system", Content: agent.SystemPrompt})
	conversation = append(conversation, messages...)

	var (
		first   *models.Completion
		second  *models.Completion
		call    *models.ToolCall
		execRes *models.ExecutionResult
	)

	for st := stateInit; st != stateDone; {
		switch st {
		case stateInit:
			st = stateFirstCompletion

		case stateFirstCompletion:
			first, err = driver.Chat(ctx, agent.Model, conversation, tools, apiKey)
			if err != nil {
				return nil, err
			}
			call = first.ToolCall
			if call == nil {
				st = stateDone
				break
			}
			if _, ok := toolIndex[call.Tool]; !ok {
				// A call naming a tool outside the enabled catalog is
				// silently dropped, not an error.
				log.Warn().Str("agent", agent.Name).Str("tool", call.Tool).Msg("Model requested unknown tool, ignoring")
				call = nil
				st = stateDone
				break
			}
			st = stateToolExec

		case stateToolExec:
			execRes = o.executor.Execute(ctx, toolIndex[call.Tool], call.Inputs)
			st = stateSecondCompletion

		case stateSecondCompletion:
			conversation = append(conversation,
				models.ChatMessage{Role: "assistant", Content: first.Content},
				models.ChatMessage{Role: "user", Content: toolResultMessage(call.Tool, execRes)},
			)
			// Empty tool catalog: the model cannot request a second call.
			second, err = driver.Chat(ctx, agent.Model, conversation, nil, apiKey)
			if err != nil {
				return nil, err
			}
			st = stateDone
		}
	}

	result := &models.ChatResult{Role: "assistant"}
	if second != nil {
		result.Content = second.Content
		result.ToolCalls = []models.ToolCall{*call}
		result.ToolResults = []models.ExecutionResult{*execRes}
		result.Usage = sumUsage(first.Usage, second.Usage)
	} else {
		result.Content = first.Content
		result.Usage = first.Usage
	}

	log.Info().
		Str("agent", agent.Name).
		Bool("tool_used", second != nil).
		Int64("tokens", result.Usage.TotalTokens).
		Msg("Chat turn complete")
	return result, nil
}

// enabledCatalog resolves the agent's enabled action bindings into the
// tool catalog for this turn, plus a name→actionID index.
func (o *Orchestrator) enabledCatalog(ctx context.Context, agent *models.Agent) ([]models.ToolDef, map[string]string, error) {
	var tools []models.ToolDef
	index := make(map[string]string)

	for _, b := range agent.Bindings {
		if !b.Enabled {
			continue
		}
		act, err := o.store.GetAction(ctx, b.ActionID)
		if err != nil {
			// A binding to a deleted action is skipped, not fatal.
			log.Warn().Str("agent", agent.Name).Str("action_id", b.ActionID).Msg("Bound action missing, skipping")
			continue
		}
		if _, err := o.store.GetIntegration(ctx, act.IntegrationID); err != nil {
			log.Warn().Str("agent", agent.Name).Str("action", act.Name).Msg("Action integration missing, skipping")
			continue
		}
		tools = append(tools, models.ToolDef{
			ActionID:    act.ID,
			Name:        act.Name,
			Description: act.Description,
			Variables:   act.Variables,
		})
		index[act.Name] = act.ID
	}
	return tools, index, nil
}

// toolResultMessage builds the synthetic user message that folds a tool
// result back into the conversation for the second completion.
func toolResultMessage(tool string, res *models.ExecutionResult) string {
	if !res.Success {
		return fmt.Sprintf("The tool %q failed: %s. Explain to me what went wrong, in plain language.", tool, res.Error)
	}

	payload, err := json.Marshal(res.Data)
	if err != nil {
		payload = []byte("null")
	}
	return fmt.Sprintf(
		"The tool %q returned this result:\n\n```result\n%s\n```\n\nUse it to answer my previous question conversationally. Do not mention the tool mechanics.",
		tool, payload)
}

func sumUsage(a, b models.TokenUsage) models.TokenUsage {
	return models.TokenUsage{
		InputTokens:  a.InputTokens + b.InputTokens,
		OutputTokens: a.OutputTokens + b.OutputTokens,
		TotalTokens:  a.TotalTokens + b.TotalTokens,
	}
}
