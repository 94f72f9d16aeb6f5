package core

import "fmt"

// ErrorCode is a stable, machine-readable error code for deterministic
// client-side mapping. The set mirrors the domain error taxonomy plus the
// settlement/claim/dispute codes this module adds on top of it.
type ErrorCode string

const (
	CodeMiningExhausted                      ErrorCode = "MINING_EXHAUSTED"
	CodeInvalidTransaction                   ErrorCode = "INVALID_TRANSACTION"
	CodeStateError                           ErrorCode = "STATE_ERROR"
	CodeSignatureVerificationFailed          ErrorCode = "SIGNATURE_VERIFICATION_FAILED"
	CodeDelegatedConsumeRequiresV2           ErrorCode = "DELEGATED_CONSUME_REQUIRES_V2"
	CodeDelegationProofMissing               ErrorCode = "DELEGATION_PROOF_MISSING"
	CodeValidAtMissing                       ErrorCode = "VALID_AT_MISSING"
	CodeNonceAccountMissingOrInvalid         ErrorCode = "NONCE_ACCOUNT_MISSING_OR_INVALID"
	CodeValidationContextLiveNowMissing      ErrorCode = "VALIDATION_CONTEXT_LIVE_NOW_MISSING"
	CodeValidationContextLiveMaxAgeMissing   ErrorCode = "VALIDATION_CONTEXT_LIVE_MAX_AGE_MISSING"
	CodeReferenceTimeFuture                  ErrorCode = "REFERENCE_TIME_FUTURE"
	CodeReferenceTimeTooOld                  ErrorCode = "REFERENCE_TIME_TOO_OLD"
	CodeDelegationExpiredOrNotYetValid       ErrorCode = "DELEGATION_EXPIRED_OR_NOT_YET_VALID"
	CodePrincipalBindingFailed               ErrorCode = "PRINCIPAL_BINDING_FAILED"
	CodeDelegationIssuerOwnerMismatch        ErrorCode = "DELEGATION_ISSUER_OWNER_MISMATCH"
	CodeDelegationAudienceSignerMismatch     ErrorCode = "DELEGATION_AUDIENCE_SIGNER_MISMATCH"
	CodeCapabilityLimitExceeded              ErrorCode = "CAPABILITY_LIMIT_EXCEEDED"
	CodeDelegationRevoked                    ErrorCode = "DELEGATION_REVOKED"
	CodeDelegationScopeMismatch               ErrorCode = "DELEGATION_SCOPE_MISMATCH"

	// Settlement/claim/dispute additions.
	CodeSettlementNotFound      ErrorCode = "SETTLEMENT_NOT_FOUND"
	CodeSettlementInvalidState  ErrorCode = "SETTLEMENT_INVALID_STATE"
	CodeClaimNotFound           ErrorCode = "CLAIM_NOT_FOUND"
	CodeClaimInvalidState       ErrorCode = "CLAIM_INVALID_STATE"
	CodeDisputeAlreadyOpen     ErrorCode = "DISPUTE_ALREADY_OPEN"
	CodeDisputeNotFound         ErrorCode = "DISPUTE_NOT_FOUND"
	CodeDisputeInvalidState     ErrorCode = "DISPUTE_INVALID_STATE"
	CodeUnauthorized            ErrorCode = "UNAUTHORIZED"

	// Storage/IO, kept distinct from domain errors per the error-handling design.
	CodeStorageIO       ErrorCode = "STORAGE_IO"
	CodeStorageCorrupt  ErrorCode = "STORAGE_CORRUPT"
)

// LedgerError is the flat tagged error type every validate/apply/storage/
// replay operation returns. Code is the stable machine-readable tag; Msg
// carries the human-readable detail; Err optionally wraps an underlying
// cause (I/O errors, decode errors).
type LedgerError struct {
	Code ErrorCode
	Msg  string
	Err  error
}

func (e *LedgerError) Error() string {
	if e.Msg == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

func (e *LedgerError) Unwrap() error { return e.Err }

// NewError builds a LedgerError with a formatted message.
func NewError(code ErrorCode, format string, args ...interface{}) *LedgerError {
	return &LedgerError{Code: code, Msg: fmt.Sprintf(format, args...)}
}

// WrapError builds a LedgerError that carries an underlying cause, matching
// pkg/utils.Wrap's "context: cause" convention but preserving the code so
// callers can still switch on it.
func WrapError(code ErrorCode, msg string, err error) *LedgerError {
	return &LedgerError{Code: code, Msg: msg, Err: err}
}

// CodeOf extracts the stable error code from err, if it (or something it
// wraps) is a *LedgerError. Returns "" otherwise.
func CodeOf(err error) ErrorCode {
	var le *LedgerError
	for err != nil {
		if e, ok := err.(*LedgerError); ok {
			le = e
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	if le == nil {
		return ""
	}
	return le.Code
}
