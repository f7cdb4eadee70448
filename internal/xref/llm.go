package xref

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// DefaultJudgeModel is used when no model is configured.
const DefaultJudgeModel = openai.GPT4oMini

// judgeSystemPrompt is the fixed prompt contract: JSON in, a JSON object with
// a single "fixed_ids" key out. Keeping the candidate list in the input lets
// the model answer with ids only, which keeps responses cheap to validate.
const judgeSystemPrompt = `You are a Git commit analysis assistant.
Your task is to analyze a Git Commit Message and identify which issue ids from a specific list are explicitly fixed.

Key Rules:
1. You will be given a JSON input containing "relevant_ids" and a "commit_message".
2. Your response MUST be a valid JSON object with a single key "fixed_ids".
3. The value of "fixed_ids" MUST be a list containing only the ids from "relevant_ids" that the commit message explicitly "Fixes", "Closes", or "Resolves".
4. If no ids are explicitly fixed, return an empty list: {"fixed_ids": []}.
5. Do not include ids that are only "Related" (e.g. "See #123").

Example 1 (input):
{"relevant_ids": ["8714", "8699"], "commit_message": "Refactor ActiveFilter (#8714)\nClose #8699"}
Example 1 (response):
{"fixed_ids": ["8699"]}

Example 2 (input):
{"relevant_ids": ["8700", "8699"], "commit_message": "Work on #8699 related to #8700"}
Example 2 (response):
{"fixed_ids": []}

Example 3 (input):
{"relevant_ids": ["9001", "9002"], "commit_message": "Fixes bug #9001 and resolves issue #9002"}
Example 3 (response):
{"fixed_ids": ["9001", "9002"]}`

type judgeInput struct {
	RelevantIDs   []string `json:"relevant_ids"`
	CommitMessage string   `json:"commit_message"`
}

// LLMJudge asks an OpenAI-compatible chat model for the fixed/related split.
type LLMJudge struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

// NewLLMJudge creates a judge over the given client. An empty model selects
// DefaultJudgeModel.
func NewLLMJudge(client *openai.Client, model string, logger *zap.Logger) *LLMJudge {
	if model == "" {
		model = DefaultJudgeModel
	}
	return &LLMJudge{client: client, model: model, logger: logger}
}

// JudgeFixed returns the subset of candidateIDs the commit message explicitly
// fixes. Any transport or parse failure is returned as an error; the caller
// decides how to degrade.
func (j *LLMJudge) JudgeFixed(ctx context.Context, commitMessage string, candidateIDs []string) ([]string, error) {
	input, err := json.Marshal(judgeInput{
		RelevantIDs:   candidateIDs,
		CommitMessage: commitMessage,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal judge input: %w", err)
	}

	resp, err := j.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: j.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: judgeSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: string(input)},
		},
		Temperature: 0,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("judge completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("judge returned no choices")
	}

	fixed, err := parseJudgeResponse(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}
	j.logger.Debug("llm judge verdict",
		zap.Strings("candidates", candidateIDs),
		zap.Strings("fixed", fixed),
	)
	return fixed, nil
}

// parseJudgeResponse accepts the contract shape plus the common deviations:
// an alternate key, any single list value, or a bare top-level array.
func parseJudgeResponse(content string) ([]string, error) {
	content = strings.TrimSpace(content)

	var asObject map[string]json.RawMessage
	if err := json.Unmarshal([]byte(content), &asObject); err == nil {
		for _, key := range []string{"fixed_ids", "fix_ids", "fixed", "fix"} {
			if raw, ok := asObject[key]; ok {
				if ids, err := decodeIDList(raw); err == nil {
					return ids, nil
				}
			}
		}
		for _, raw := range asObject {
			if ids, err := decodeIDList(raw); err == nil {
				return ids, nil
			}
		}
		return nil, fmt.Errorf("judge response object has no id list: %s", content)
	}

	var asList []string
	if err := json.Unmarshal([]byte(content), &asList); err == nil {
		return asList, nil
	}
	return nil, fmt.Errorf("judge response is not valid JSON: %s", content)
}

func decodeIDList(raw json.RawMessage) ([]string, error) {
	var ids []string
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}
