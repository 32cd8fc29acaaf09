// Package forward turns a raw inbound message into its canonical decomposed
// form and rebuilds that form as a new outbound forward.
package forward

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jhillyerd/enmime"
)

const dispositionAttachment = "attachment"

// Decompose parses raw RFC 822 bytes into a DecomposedMessage.
//
// Body selection is position-sensitive over a preorder walk of the part
// tree: the first text/html leaf claims the HTML body, and a text/plain leaf
// is captured only while no HTML part has been seen yet. An HTML part that
// appears after a plain part still claims the HTML slot, but a plain part
// seen after HTML is ignored. Parts with an attachment disposition are never
// body candidates, whatever their content type.
func Decompose(raw []byte) (*DecomposedMessage, error) {
	envelope, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}

	msg := &DecomposedMessage{
		From:    envelope.GetHeader("From"),
		Subject: envelope.GetHeader("Subject"),
		Date:    envelope.GetHeader("Date"),
	}

	collectParts(envelope.Root, msg)

	for _, e := range envelope.Errors {
		msg.Defects = append(msg.Defects, fmt.Sprintf("%s: %s", e.Name, e.Detail))
	}

	return msg, nil
}

// collectParts walks the part tree in preorder, mirroring the document order
// of the original message. Multipart containers are descended but are never
// bodies or attachments themselves.
func collectParts(part *enmime.Part, msg *DecomposedMessage) {
	if part == nil {
		return
	}

	if !strings.HasPrefix(part.ContentType, "multipart/") {
		classifyLeaf(part, msg)
	}

	for child := part.FirstChild; child != nil; child = child.NextSibling {
		collectParts(child, msg)
	}
}

func classifyLeaf(part *enmime.Part, msg *DecomposedMessage) {
	if part.Disposition == dispositionAttachment {
		if len(part.Content) == 0 && len(part.Errors) > 0 {
			// Content failed to decode; drop this one attachment and keep
			// the rest of the message.
			msg.Defects = append(msg.Defects,
				fmt.Sprintf("dropped attachment %q: %s", part.FileName, part.Errors[0].Detail))
			return
		}
		msg.Attachments = append(msg.Attachments, Attachment{
			Filename: part.FileName,
			MIMEType: part.ContentType,
			Body:     part.Content,
		})
		return
	}

	switch part.ContentType {
	case "text/html":
		if msg.HTMLBody == "" && len(part.Content) > 0 {
			msg.HTMLBody = string(part.Content)
		}
	case "text/plain":
		if msg.HTMLBody == "" && msg.TextBody == "" && len(part.Content) > 0 {
			msg.TextBody = string(part.Content)
		}
	}
}
