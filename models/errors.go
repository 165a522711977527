package models

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by services, providers and the HTTP layer.
// Callers classify with errors.Is; every wrap keeps the cause.
var (
	ErrConfiguration = errors.New("configuration error")

	ErrUnsupportedInput   = errors.New("unsupported input")
	ErrNoValidDocuments   = fmt.Errorf("no valid documents: %w", ErrUnsupportedInput)
	ErrUnreadableDocument = fmt.Errorf("document is encrypted or unreadable: %w", ErrUnsupportedInput)
	ErrDocumentNotFound   = errors.New("document not found")

	ErrIndexNotFound = errors.New("index not found")
	ErrIndexCorrupt  = errors.New("index corrupt")
	ErrNoIndexNoSeed = errors.New("no index and no seed texts to create one")

	ErrProvider           = errors.New("provider error")
	ErrDedupInconsistency = errors.New("manifest references a fingerprint with no stored vector")

	ErrSessionNotInitialized = errors.New("session not initialized")
)
