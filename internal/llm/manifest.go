// Package llm provides chat-completion drivers and the tool manifest that
// teaches a model how to invoke actions.
//
// Tool invocation rides inside the model's free text: the model emits
// exactly one fenced code block tagged `json` containing
// {"tool": <name>, "inputs": {...}}. Every driver renders the same
// manifest and parses tool calls identically; drivers differ only in
// wire shape.
package llm

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/agentbridge/agentbridge/pkg/models"
)

// toolCallBlock matches the first fenced block tagged exactly json. The
// word boundary keeps jsonc/json5 fences from matching.
var toolCallBlock = regexp.MustCompile("(?s)```json\\b\\s*(.*?)```")

// callInstruction is the fixed contract appended after the tool catalog.
const callInstruction = `To call a tool, respond with exactly one fenced code block tagged json containing an object of the form {"tool": "<tool name>", "inputs": {...}} and nothing else around it. If no tool is needed, answer the user directly.`

// BuildInstruction renders the system instruction for a chat turn. With an
// empty tool catalog the system prompt passes through unchanged; otherwise
// the catalog and the invocation contract are appended.
func BuildInstruction(systemPrompt string, tools []models.ToolDef) string {
	if len(tools) == 0 {
		return systemPrompt
	}

	var sb strings.Builder
	sb.WriteString(systemPrompt)
	sb.WriteString("\n\nYou have access to the following tools:\n")
	for _, t := range tools {
		sb.WriteString("\n- ")
		sb.WriteString(t.Name)
		sb.WriteString(": ")
		sb.WriteString(t.Description)
		if len(t.Variables) > 0 {
			sb.WriteString("\n  Inputs: ")
			for i, v := range t.Variables {
				if i > 0 {
					sb.WriteString(", ")
				}
				sb.WriteString(v.Name)
				sb.WriteString(" (")
				sb.WriteString(string(v.Type))
				sb.WriteString(")")
			}
		}
	}
	sb.WriteString("\n\n")
	sb.WriteString(callInstruction)
	return sb.String()
}

// ParseToolCall scans text for the first fenced json block and parses it
// as a tool call. Malformed or absent blocks degrade silently to nil —
// the turn then proceeds as a plain answer.
func ParseToolCall(text string) *models.ToolCall {
	m := toolCallBlock.FindStringSubmatch(text)
	if m == nil {
		return nil
	}

	var call models.ToolCall
	if err := json.Unmarshal([]byte(strings.TrimSpace(m[1])), &call); err != nil {
		return nil
	}
	if call.Tool == "" || call.Inputs == nil {
		return nil
	}
	return &call
}
