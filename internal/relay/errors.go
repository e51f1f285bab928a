package relay

import "errors"

var (
	ErrMalformedPayload  = errors.New("payload is not a valid message event")
	ErrInvalidAttachment = errors.New("attachment data is not valid base64")
	ErrStoreUnavailable  = errors.New("message could not be stored")
)
