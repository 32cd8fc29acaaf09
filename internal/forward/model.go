package forward

// Attachment is one attachment lifted out of the original message. The bytes
// are carried unchanged from decomposition into the rebuilt message.
type Attachment struct {
	// Filename may be empty when the original part declared none.
	Filename string
	// MIMEType is the full declared media type, e.g. "application/pdf".
	MIMEType string
	Body     []byte
}

// DecomposedMessage is the canonical form of a parsed inbound message:
// decoded provenance headers, at most one plain and one HTML body, and the
// attachments in original part order. An empty body string means "absent".
type DecomposedMessage struct {
	// From and Subject are decoded per RFC 2047; undecodable bytes are
	// replaced, never fatal.
	From    string
	Subject string
	// Date is the raw Date header value, carried verbatim into the banner.
	Date string

	TextBody string
	HTMLBody string

	Attachments []Attachment

	// Defects lists non-fatal problems found while parsing, including
	// attachments that were dropped because their content failed to decode.
	Defects []string
}
