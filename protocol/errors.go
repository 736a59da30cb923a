// Package protocol implements the EDHOC wire format: message schemas,
// their CBOR codecs, the cipher suite registry, the method encoding, and
// the responder-facing error taxonomy.
package protocol

import "fmt"

// ErrorCode enumerates every distinct failure a responder run can end
// in: a small integer type with a String() method, switched on by
// callers instead of compared by sentinel error value.
type ErrorCode uint8

const (
	ErrNone ErrorCode = iota
	ErrCBORDecoding
	ErrCBOREncoding
	ErrSuiteNotSupported
	ErrSuitesIListTooLong
	ErrBufferTooSmall
	ErrCryptoOperationFailed
	ErrMACAuthenticationFailed
	ErrSignatureAuthenticationFailed
	ErrAEADAuthenticationFailed
	ErrCredentialNotFound
	ErrMessageReceived
	ErrTransport
)

var names = map[ErrorCode]string{
	ErrNone:                          "edhoc_no_error",
	ErrCBORDecoding:                  "cbor_decoding_error",
	ErrCBOREncoding:                  "cbor_encoding_error",
	ErrSuiteNotSupported:             "suite_not_supported",
	ErrSuitesIListTooLong:            "suites_i_list_to_long",
	ErrBufferTooSmall:                "buffer_to_small",
	ErrCryptoOperationFailed:         "crypto_operation_failed",
	ErrMACAuthenticationFailed:       "mac_authentication_failed",
	ErrSignatureAuthenticationFailed: "signature_authentication_failed",
	ErrAEADAuthenticationFailed:      "aead_authentication_failed",
	ErrCredentialNotFound:            "credential_not_found",
	ErrMessageReceived:               "error_message_received",
	ErrTransport:                     "transport_error",
}

func (c ErrorCode) String() string {
	if s, ok := names[c]; ok {
		return s
	}
	return "unknown_error"
}

// Error is a protocol-level failure: a closed ErrorCode for control flow,
// plus an optional human message for logs. It is distinct from the
// error chains built with github.com/pkg/errors.Wrap elsewhere in the
// module - this taxonomy ties specific failure causes to specific
// responder behavior (e.g. "send a wire error" vs "abort silently").
type Error struct {
	Code    ErrorCode
	Message string
}

func Errf(c ErrorCode, format string, a ...interface{}) *Error {
	return &Error{Code: c, Message: fmt.Sprintf(format, a...)}
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Code.String()
}

// CodeOf extracts the ErrorCode from err if it (or something it wraps)
// is a *protocol.Error, and ErrNone otherwise. Callers that need to
// switch on the taxonomy use this instead of a type assertion so that
// errors.Wrap'd chains still resolve correctly.
func CodeOf(err error) ErrorCode {
	type causer interface{ Cause() error }
	for err != nil {
		if pe, ok := err.(*Error); ok {
			return pe.Code
		}
		c, ok := err.(causer)
		if !ok {
			return ErrNone
		}
		err = c.Cause()
	}
	return ErrNone
}

// WireErrCode identifies the ERR_CODE field of an EDHOC error message
// (distinct from the internal ErrorCode enum, which never crosses the
// wire). EDHOC reserves 0 for success and defines a small set of
// negative/positive codes; here only the ones this responder ever emits
// are named.
type WireErrCode int

const (
	WireErrSuccess      WireErrCode = 0
	WireErrUnspecified  WireErrCode = 1
	WireErrWrongSelectedCipherSuite WireErrCode = 2
)

func (c WireErrCode) String() string {
	switch c {
	case WireErrSuccess:
		return "SUCCESS"
	case WireErrUnspecified:
		return "UNSPECIFIED"
	case WireErrWrongSelectedCipherSuite:
		return "WRONG_SELECTED_CIPHER_SUITE"
	default:
		return fmt.Sprintf("ERR(%d)", int(c))
	}
}
