package contracts

// STOMP 1.2 commands used on the push channel.
const (
	StompConnect     = "CONNECT"
	StompStomp       = "STOMP"
	StompConnected   = "CONNECTED"
	StompSubscribe   = "SUBSCRIBE"
	StompUnsubscribe = "UNSUBSCRIBE"
	StompSend        = "SEND"
	StompMessage     = "MESSAGE"
	StompDisconnect  = "DISCONNECT"
	StompReceipt     = "RECEIPT"
	StompError       = "ERROR"
)

// STOMP headers.
const (
	StompHeaderAcceptVersion = "accept-version"
	StompHeaderVersion       = "version"
	StompHeaderHost          = "host"
	StompHeaderHeartBeat     = "heart-beat"
	StompHeaderDestination   = "destination"
	StompHeaderID            = "id"
	StompHeaderSubscription  = "subscription"
	StompHeaderMessageID     = "message-id"
	StompHeaderContentType   = "content-type"
	StompHeaderContentLength = "content-length"
	StompHeaderReceipt       = "receipt"
	StompHeaderReceiptID     = "receipt-id"
	StompHeaderMessage       = "message"
	StompHeaderAuthorization = "Authorization"
)

// StompVersion is the only protocol version spoken.
const StompVersion = "1.2"
