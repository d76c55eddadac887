package scorer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/sells-group/prospect-cli/internal/model"
	"github.com/sells-group/prospect-cli/pkg/anthropic"
	"github.com/sells-group/prospect-cli/pkg/gemini"
)

type mockAnthropic struct {
	mock.Mock
}

func (m *mockAnthropic) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req)
	resp, _ := args.Get(0).(*anthropic.MessageResponse)
	return resp, args.Error(1)
}

type mockGemini struct {
	mock.Mock
}

func (m *mockGemini) GenerateJSON(ctx context.Context, req gemini.Request) (*gemini.Response, error) {
	args := m.Called(ctx, req)
	resp, _ := args.Get(0).(*gemini.Response)
	return resp, args.Error(1)
}

func TestAnthropicCompleter_ForcedTool(t *testing.T) {
	client := &mockAnthropic{}
	client.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return req.ToolChoice == gradeToolName &&
			len(req.Tools) == 1 && req.Tools[0].Name == gradeToolName &&
			req.Model == "claude-test" && req.MaxTokens == 1024 &&
			len(req.Messages) == 1 && req.Messages[0].Role == "user"
	})).Return(&anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{
			Type:  "tool_use",
			Name:  gradeToolName,
			Input: json.RawMessage(`{"score":"A","score_label":"Cible"}`),
		}},
	}, nil).Once()

	c := NewAnthropicCompleter(client, "claude-test", 0)
	comp, err := c.Complete(context.Background(), BuildPrompt(target(20_000_000)))
	require.NoError(t, err)
	assert.JSONEq(t, `{"score":"A","score_label":"Cible"}`, string(comp.Structured))
	client.AssertExpectations(t)

	res, err := ParseCompletion(comp)
	require.NoError(t, err)
	assert.Equal(t, model.GradeA, res.Grade)
}

func TestAnthropicCompleter_TextFallback(t *testing.T) {
	client := &mockAnthropic{}
	client.On("CreateMessage", mock.Anything, mock.Anything).Return(&anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: `{"score":"C"}`}},
	}, nil).Once()

	comp, err := NewAnthropicCompleter(client, "claude-test", 512).Complete(context.Background(), Prompt{User: "x"})
	require.NoError(t, err)
	assert.Empty(t, comp.Structured)
	assert.Equal(t, `{"score":"C"}`, comp.Text)
}

func TestAnthropicCompleter_Error(t *testing.T) {
	client := &mockAnthropic{}
	client.On("CreateMessage", mock.Anything, mock.Anything).Return(nil, errors.New("boom")).Once()

	_, err := NewAnthropicCompleter(client, "claude-test", 0).Complete(context.Background(), Prompt{})
	assert.EqualError(t, err, "boom")
}

func TestGeminiCompleter(t *testing.T) {
	client := &mockGemini{}
	client.On("GenerateJSON", mock.Anything, mock.MatchedBy(func(req gemini.Request) bool {
		return req.Model == gemini.DefaultModel &&
			req.Schema != nil && req.Schema.Type == genai.TypeObject &&
			len(req.Schema.Required) == 5 &&
			req.System == systemPrompt
	})).Return(&gemini.Response{Text: `{"score":"B"}`}, nil).Once()

	c := NewGeminiCompleter(client, "", 0)
	assert.Equal(t, "gemini", c.Name())

	comp, err := c.Complete(context.Background(), BuildPrompt(target(2_000_000)))
	require.NoError(t, err)
	assert.Equal(t, `{"score":"B"}`, comp.Text)
	client.AssertExpectations(t)
}
