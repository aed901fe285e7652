package prompt

// RewriteSystemPrompt asks the model to turn a follow-up into a self-contained question.
const RewriteSystemPrompt = "Given the chat history and user question, rewrite it as a standalone question."

// QASystemPrompt is filled with {context} (retrieved reviews) and {input} (the raw question).
const QASystemPrompt = `
You're an e-commerce bot answering product-related queries using reviews and titles.
Stick to context. Be concise and helpful.

CONTEXT:
{context}

QUESTION: {input}
`

// DocumentSeparator joins retrieved review texts inside {context}.
const DocumentSeparator = "\n\n"
