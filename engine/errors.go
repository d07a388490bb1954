package engine

import "errors"

var (
	ErrDefinitionNotFound = errors.New("flow definition not found")
	ErrNoBranchMatched    = errors.New("no branch condition matched")
	ErrJoinBranchFailed   = errors.New("join branch failed")
	ErrUnmatchedJoin      = errors.New("context reached a join outside its fork")
	ErrNotResumable       = errors.New("context is not waiting to be resumed")
	ErrTraceFinished      = errors.New("trace already finished")

	errContextTerminated = errors.New("context terminated")
)
