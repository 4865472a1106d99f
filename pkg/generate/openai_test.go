package generate

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	go_openai "github.com/sashabaranov/go-openai"

	"github.com/go-go-golems/mindwell/pkg/conversation"
	"github.com/go-go-golems/mindwell/pkg/tools"
)

func TestMakeCompletionMessagesOrdersToolPhase(t *testing.T) {
	history := conversation.Conversation{
		conversation.NewChatMessage(conversation.RoleUser, "find a meditation"),
		conversation.NewToolCallsMessage("", []conversation.ToolCall{
			{ID: "call-1", Name: "search_content", Arguments: json.RawMessage(`{"topic":"sleep"}`)},
		}),
		conversation.NewToolResultMessage("call-1", "search_content", `{"messageType":"content_list"}`),
		conversation.NewChatMessage(conversation.RoleAssistant, "here are some options"),
	}

	msgs := makeCompletionMessages(history)
	require.Len(t, msgs, 5)

	assert.Equal(t, go_openai.ChatMessageRoleSystem, msgs[0].Role)
	assert.Equal(t, go_openai.ChatMessageRoleUser, msgs[1].Role)

	require.Len(t, msgs[2].ToolCalls, 1)
	assert.Equal(t, "search_content", msgs[2].ToolCalls[0].Function.Name)

	assert.Equal(t, go_openai.ChatMessageRoleTool, msgs[3].Role)
	assert.Equal(t, "call-1", msgs[3].ToolCallID)

	assert.Equal(t, go_openai.ChatMessageRoleAssistant, msgs[4].Role)
}

func TestMakeToolDeclarations(t *testing.T) {
	type in struct {
		Topic string `json:"topic"`
	}
	def, err := tools.NewDefinitionFromFunc("search_content", "Search the catalog", func(a in) (string, error) {
		return "", nil
	})
	require.NoError(t, err)

	decls := makeToolDeclarations([]tools.Definition{*def})
	require.Len(t, decls, 1)
	assert.Equal(t, go_openai.ToolTypeFunction, decls[0].Type)
	assert.Equal(t, "search_content", decls[0].Function.Name)
	assert.NotNil(t, decls[0].Function.Parameters)

	assert.Nil(t, makeToolDeclarations(nil))
}
