// Package apperrors defines the error kinds shared across the agent core,
// each implementing error with Unwrap so callers can errors.As to the kind
// and errors.Is/errors.Unwrap through to the underlying cause — the same
// wrapping idiom the provider package uses for ProviderError.
package apperrors

import "fmt"

// ProviderReason classifies a ProviderError.
type ProviderReason string

const (
	ProviderTransport   ProviderReason = "transport"
	ProviderStatus      ProviderReason = "status"
	ProviderParse       ProviderReason = "parse"
	ProviderEmpty       ProviderReason = "empty"
	ProviderUnsupported ProviderReason = "unsupported"
)

// ProviderError is returned by an Adapter when the upstream call fails or
// produces an unusable reply.
type ProviderError struct {
	Reason     ProviderReason
	StatusCode int
	Body       string
	Cause      error
}

func (e *ProviderError) Error() string {
	switch e.Reason {
	case ProviderStatus:
		return fmt.Sprintf("provider: status %d: %s", e.StatusCode, e.Body)
	case ProviderEmpty:
		return "provider: empty reply (no text, no tool_use)"
	default:
		if e.Cause != nil {
			return fmt.Sprintf("provider: %s: %v", e.Reason, e.Cause)
		}
		return fmt.Sprintf("provider: %s", e.Reason)
	}
}

func (e *ProviderError) Unwrap() error { return e.Cause }

func NewProviderTransportError(cause error) *ProviderError {
	return &ProviderError{Reason: ProviderTransport, Cause: cause}
}

func NewProviderStatusError(code int, body string) *ProviderError {
	return &ProviderError{Reason: ProviderStatus, StatusCode: code, Body: body}
}

func NewProviderParseError(cause error) *ProviderError {
	return &ProviderError{Reason: ProviderParse, Cause: cause}
}

func NewProviderEmptyError() *ProviderError {
	return &ProviderError{Reason: ProviderEmpty}
}

func NewProviderUnsupportedError(msg string) *ProviderError {
	return &ProviderError{Reason: ProviderUnsupported, Body: msg}
}

// ToolReason classifies a ToolError.
type ToolReason string

const (
	ToolNotFound    ToolReason = "not_found"
	ToolNotAllowed  ToolReason = "not_allowed"
	ToolInvalidArgs ToolReason = "invalid_args"
	ToolSandbox     ToolReason = "sandbox"
	ToolTimeout     ToolReason = "timeout"
	ToolInternal    ToolReason = "internal"
)

// ToolError is returned by the tool runtime. Every reason except ToolSandbox
// is fed back to the model as a ToolResponse{is_error:true}; ToolSandbox is
// reported as a final orchestrator error.
type ToolError struct {
	Reason ToolReason
	Tool   string
	Cause  error
}

func (e *ToolError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("tool %q: %s: %v", e.Tool, e.Reason, e.Cause)
	}
	return fmt.Sprintf("tool %q: %s", e.Tool, e.Reason)
}

func (e *ToolError) Unwrap() error { return e.Cause }

// Fatal reports whether this error must abort the execution rather than be
// fed back to the model for recovery.
func (e *ToolError) Fatal() bool { return e.Reason == ToolSandbox }

func NewToolError(reason ToolReason, tool string, cause error) *ToolError {
	return &ToolError{Reason: reason, Tool: tool, Cause: cause}
}

// MemoryReason classifies a MemoryError.
type MemoryReason string

const (
	MemoryNotFound  MemoryReason = "not_found"
	MemoryConstraint MemoryReason = "constraint"
	MemoryEmbedding MemoryReason = "embedding"
)

// MemoryError is returned by the memory store.
type MemoryError struct {
	Reason MemoryReason
	Cause  error
}

func (e *MemoryError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("memory: %s: %v", e.Reason, e.Cause)
	}
	return fmt.Sprintf("memory: %s", e.Reason)
}

func (e *MemoryError) Unwrap() error { return e.Cause }

func NewMemoryError(reason MemoryReason, cause error) *MemoryError {
	return &MemoryError{Reason: reason, Cause: cause}
}

// PaymentReason classifies a PaymentError.
type PaymentReason string

const (
	PaymentNoKey          PaymentReason = "no_key"
	PaymentUnmatched      PaymentReason = "unmatched"
	PaymentRejected       PaymentReason = "rejected"
	PaymentNetworkMismatch PaymentReason = "network_mismatch"
)

// PaymentError is returned by the x402 payment flow. Every reason is fatal:
// the 402-sign-retry dance is attempted at most once.
type PaymentError struct {
	Reason PaymentReason
	Cause  error
}

func (e *PaymentError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("payment: %s: %v", e.Reason, e.Cause)
	}
	return fmt.Sprintf("payment: %s", e.Reason)
}

func (e *PaymentError) Unwrap() error { return e.Cause }

func NewPaymentError(reason PaymentReason, cause error) *PaymentError {
	return &PaymentError{Reason: reason, Cause: cause}
}

// OrchestratorReason classifies an OrchestratorError.
type OrchestratorReason string

const (
	OrchestratorIterationBudget OrchestratorReason = "iteration_budget"
	OrchestratorCancelled       OrchestratorReason = "cancelled"
	OrchestratorHookAborted     OrchestratorReason = "hook_aborted"
)

// OrchestratorError is returned by the agentic loop.
type OrchestratorError struct {
	Reason OrchestratorReason
	Cause  error
}

func (e *OrchestratorError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("orchestrator: %s: %v", e.Reason, e.Cause)
	}
	return fmt.Sprintf("orchestrator: %s", e.Reason)
}

func (e *OrchestratorError) Unwrap() error { return e.Cause }

func NewOrchestratorError(reason OrchestratorReason, cause error) *OrchestratorError {
	return &OrchestratorError{Reason: reason, Cause: cause}
}

// StorageError wraps a failure from the relational backing store.
type StorageError struct {
	Op    string
	Cause error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Cause)
}

func (e *StorageError) Unwrap() error { return e.Cause }

func NewStorageError(op string, cause error) *StorageError {
	return &StorageError{Op: op, Cause: cause}
}
