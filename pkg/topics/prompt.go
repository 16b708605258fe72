package topics

import (
	"github.com/tmc/langchaingo/prompts"
)

const topicTemplate = `You are an AI assistant that identifies relevant Wikipedia topics for a given question.
Return a JSON object in the following format:
{
    "topics": ["Topic 1", "Topic 2", "Topic 3"]
}

Examples:
Question: "What are the effects of climate change?"
Response:
{
    "topics": ["Climate change", "Global warming", "Greenhouse gases", "Sea level rise"]
}

Question: "Who invented the steam engine?"
Response:
{
    "topics": ["James Watt", "Steam engine", "Industrial Revolution"]
}

Now, answer the following:
Question: {{.question}}
Response:
`

func newPromptTemplate() prompts.PromptTemplate {
	return prompts.NewPromptTemplate(topicTemplate, []string{"question"})
}
