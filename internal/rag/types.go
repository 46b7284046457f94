package rag

// NoResultsAnswer is returned in place of a generated answer when retrieval finds nothing.
const NoResultsAnswer = "No relevant information found in the knowledge base."

// DefaultK is the number of chunks retrieved per question.
const DefaultK = 4

// Reference represents a chunk that was used to generate the answer.
type Reference struct {
	// Source is the document path relative to the corpus root.
	Source string `json:"source"`
	// Title is the document title.
	Title string `json:"title"`
	// StartIndex is the chunk's character offset inside the document.
	StartIndex int `json:"start_index"`
	// Score is the similarity between the question and the chunk.
	Score float32 `json:"score"`
}

// AskResponse represents the response from a RAG query.
type AskResponse struct {
	// Question echoes the question that was asked.
	Question string `json:"question"`
	// Answer is the generated answer, with newlines escaped as the two characters `\n`.
	Answer string `json:"answer"`
	// References are the chunks handed to the answer generator, best first.
	References []Reference `json:"references"`
}
