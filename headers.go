package ilp3

import "time"

const (
	// HeaderAmount carries the transfer amount as decimal text.
	HeaderAmount = "ILP-Amount"

	// HeaderExpiry carries the transfer expiry as an ISO-8601 timestamp.
	HeaderExpiry = "ILP-Expiry"

	// HeaderCondition carries the opaque condition commitment.
	HeaderCondition = "ILP-Condition"

	// HeaderDestination carries the opaque destination address.
	HeaderDestination = "ILP-Destination"

	// HeaderFulfillment is set on the response only when the receiver
	// fulfilled the condition.
	HeaderFulfillment = "ILP-Fulfillment"

	HeaderAuthorization = "Authorization"
	HeaderContentType   = "Content-Type"
	HeaderUserAgent     = "User-Agent"

	ContentTypeOctetStream = "application/octet-stream"

	BearerPrefix = "Bearer "
)

const (
	DefaultBodyLimit   int64 = 1 << 20
	DefaultTokenWindow       = 2000 * time.Millisecond
	MinSecretLength          = 32
)
