package services

import (
	"context"
	"unicode/utf8"

	"rag-document-platform/internal/logger"
	"rag-document-platform/models"

	"github.com/google/uuid"
)

// FailureAnswer is the fixed sentinel answer returned when any oracle call
// fails anywhere in the workflow.
const FailureAnswer = "Sorry, an internal error occurred. Please try again later."

// Retriever returns a relevance-ranked, bounded sequence of chunks for a
// question.
type Retriever interface {
	Retrieve(ctx context.Context, question string) ([]models.Chunk, error)
}

// AnswerOracle is the generation/verification side of the workflow.
// Implemented by ai.GeminiClient; faked in tests.
type AnswerOracle interface {
	GenerateAnswer(ctx context.Context, question string, contextChunks []string) (string, error)
	GenerateGeneral(ctx context.Context, question string) (string, error)
	VerifyGrounding(ctx context.Context, question, answer string, contextChunks []string) (bool, error)
}

// WorkflowState enumerates the steps of one answer-generation execution.
type WorkflowState int

const (
	StateRetrieve WorkflowState = iota
	StateGenerate
	StateVerify
	StateRewrite
	StateEnd
)

func (s WorkflowState) String() string {
	switch s {
	case StateRetrieve:
		return "retrieve"
	case StateGenerate:
		return "generate"
	case StateVerify:
		return "verify"
	case StateRewrite:
		return "rewrite"
	default:
		return "end"
	}
}

// NextState is the pure transition function of the workflow. grounded is
// only consulted on the verify edge, the single conditional branch.
func NextState(state WorkflowState, grounded bool) WorkflowState {
	switch state {
	case StateRetrieve:
		return StateGenerate
	case StateGenerate:
		return StateVerify
	case StateVerify:
		if grounded {
			return StateEnd
		}
		return StateRewrite
	case StateRewrite:
		return StateEnd
	default:
		return StateEnd
	}
}

// QueryWorkflow answers questions by retrieving context, generating a
// candidate answer, verifying it is grounded in that context, and falling
// back to a disclosed-uncertainty answer when it is not.
type QueryWorkflow struct {
	retriever  Retriever
	oracle     AnswerOracle
	snippetLen int
}

func NewQueryWorkflow(retriever Retriever, oracle AnswerOracle, snippetLen int) *QueryWorkflow {
	if snippetLen <= 0 {
		snippetLen = 200
	}
	return &QueryWorkflow{retriever: retriever, oracle: oracle, snippetLen: snippetLen}
}

// execution is the per-request state. Never shared, never persisted.
type execution struct {
	requestID  string
	question   string
	documents  []models.Chunk
	generation string
	rewritten  bool
}

// Run executes one pass of the state machine. It never returns an error:
// any oracle failure collapses into the sentinel failure response with the
// Failed flag set so the API layer can map it to a 5xx.
func (qw *QueryWorkflow) Run(ctx context.Context, question string) models.QueryResult {
	exec := &execution{
		requestID: uuid.NewString(),
		question:  question,
	}

	state := StateRetrieve
	for state != StateEnd {
		grounded, err := qw.step(ctx, state, exec)
		if err != nil {
			logger.Error("Workflow execution failed", "request_id", exec.requestID, "state", state.String(), "error", err)
			return models.QueryResult{
				Answer:  FailureAnswer,
				Sources: []models.Source{},
				Failed:  true,
			}
		}
		state = NextState(state, grounded)
	}

	return models.QueryResult{
		Answer:    exec.generation,
		Sources:   qw.sources(exec.documents),
		Rewritten: exec.rewritten,
	}
}

// step runs one state's side effects and reports the grounded decision
// (meaningful only for StateVerify).
func (qw *QueryWorkflow) step(ctx context.Context, state WorkflowState, exec *execution) (bool, error) {
	logger.Info("Workflow node", "request_id", exec.requestID, "node", state.String())

	switch state {
	case StateRetrieve:
		documents, err := qw.retriever.Retrieve(ctx, exec.question)
		if err != nil {
			return false, err
		}
		exec.documents = documents
		logger.Info("Retrieved documents", "request_id", exec.requestID, "count", len(documents))
		return false, nil

	case StateGenerate:
		generation, err := qw.oracle.GenerateAnswer(ctx, exec.question, chunkContents(exec.documents))
		if err != nil {
			return false, err
		}
		exec.generation = generation
		return false, nil

	case StateVerify:
		grounded, err := qw.oracle.VerifyGrounding(ctx, exec.question, exec.generation, chunkContents(exec.documents))
		if err != nil {
			return false, err
		}
		logger.Info("Grounding decision", "request_id", exec.requestID, "grounded", grounded)
		return grounded, nil

	case StateRewrite:
		generation, err := qw.oracle.GenerateGeneral(ctx, exec.question)
		if err != nil {
			return false, err
		}
		exec.generation = generation
		exec.rewritten = true
		return false, nil
	}
	return false, nil
}

// sources derives citations from the retrieve-stage chunks. They are
// reported even when the rewrite path produced the final answer.
func (qw *QueryWorkflow) sources(documents []models.Chunk) []models.Source {
	sources := make([]models.Source, 0, len(documents))
	for _, doc := range documents {
		filename := doc.OriginalFilename()
		if filename == "" {
			filename = "Unknown source"
		}
		snippet := doc.Content
		if len(snippet) > qw.snippetLen {
			// Back up to a rune boundary so the cut never splits a
			// multi-byte character.
			cut := qw.snippetLen
			for cut > 0 && !utf8.RuneStart(snippet[cut]) {
				cut--
			}
			snippet = snippet[:cut]
		}
		sources = append(sources, models.Source{
			Filename: filename,
			Snippet:  snippet + "...",
		})
	}
	return sources
}

func chunkContents(documents []models.Chunk) []string {
	contents := make([]string, len(documents))
	for i, doc := range documents {
		contents[i] = doc.Content
	}
	return contents
}
