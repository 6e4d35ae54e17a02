package pipeline

import "fmt"

// Kind classifies a stage failure.
type Kind string

const (
	KindIngestion Kind = "Ingestion"
	KindStore     Kind = "Store"
	KindQuery     Kind = "Query"
	KindAnalysis  Kind = "Analysis"
)

// StageError is a fatal failure of one pipeline stage.
type StageError struct {
	Stage string
	Kind  Kind
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %s error: %v", e.Stage, e.Kind, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

func stageErr(stage string, kind Kind, err error) *StageError {
	return &StageError{Stage: stage, Kind: kind, Err: err}
}
