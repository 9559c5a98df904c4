package constants

// Error codes reported in the http exchange metrics
const (
	SUCCESS                = "0"
	NETWORK_ERROR          = "1"
	HTTP_RESPONSE_ERROR    = "2"
	HANDLER_FUNCTION_ERROR = "3"
	UNSERIALIZATION_ERROR  = "4"
	SERIALIZATION_ERROR    = "5"
)
