package prompt

import (
	"strings"

	"review-rag-be/pkg/llm"
	"review-rag-be/pkg/rag/document"
	"review-rag-be/pkg/rag/history"
)

// HistoryMessages converts transcript turns to chat messages, oldest first.
func HistoryMessages(turns []history.Turn) []llm.Message {
	messages := make([]llm.Message, 0, len(turns))
	for _, turn := range turns {
		role := llm.RoleUser
		if turn.Role == history.RoleAssistant {
			role = llm.RoleAssistant
		}
		messages = append(messages, llm.Message{Role: role, Content: turn.Text})
	}
	return messages
}

// RewriteMessages renders [system, history..., user(input)] for the standalone-question step.
func RewriteMessages(turns []history.Turn, input string) []llm.Message {
	return compose(RewriteSystemPrompt, turns, input)
}

// QAMessages renders [system(context, input), history..., user(input)] for the answer step.
func QAMessages(docs []document.Document, turns []history.Turn, input string) []llm.Message {
	return compose(RenderQA(docs, input), turns, input)
}

// RenderQA fills the QA system template.
func RenderQA(docs []document.Document, input string) string {
	r := strings.NewReplacer("{context}", FormatContext(docs), "{input}", input)
	return r.Replace(QASystemPrompt)
}

// FormatContext joins document contents with a blank line, in retrieval order.
func FormatContext(docs []document.Document) string {
	var sb strings.Builder
	for i, d := range docs {
		if i > 0 {
			sb.WriteString(DocumentSeparator)
		}
		sb.WriteString(d.Content)
	}
	return sb.String()
}

func compose(system string, turns []history.Turn, input string) []llm.Message {
	messages := make([]llm.Message, 0, len(turns)+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: system})
	messages = append(messages, HistoryMessages(turns)...)
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: input})
	return messages
}
