package forward

import (
	"fmt"
	"html"
	"io"
	"net/mail"

	"github.com/jhillyerd/enmime"
)

const (
	subjectPrefix      = "[AUTO-FWD] "
	noSubjectFallback  = "(No Subject)"
	noBodyPlaceholder  = "(No body)"
	forwardBannerTitle = "----- Forwarded Message -----"
)

// Outgoing is a fully built forward, ready for relay submission. Built fresh
// per forwarded message, never reused.
type Outgoing struct {
	From    string
	To      []string
	Subject string

	root *enmime.Part
}

// WriteTo encodes the message in wire format.
func (o *Outgoing) WriteTo(w io.Writer) error {
	return o.root.Encode(w)
}

// BuildForward reconstructs msg as a new outbound message from fromAddress
// to the forwarding recipients. Provenance (original From, Date, Subject) is
// preserved in a banner, Reply-To points back at the original sender, and
// every attachment is re-attached unchanged in original order.
//
// The HTML alternative exists only when the original carried an HTML body;
// otherwise the forward is plain-text-only.
func BuildForward(msg *DecomposedMessage, fromAddress string, forwardTo []string) (*Outgoing, error) {
	subject := msg.Subject
	if subject == "" {
		subject = noSubjectFallback
	}

	to := make([]mail.Address, 0, len(forwardTo))
	for _, recipient := range forwardTo {
		to = append(to, mail.Address{Address: recipient})
	}

	builder := enmime.Builder().
		From("", fromAddress).
		ToAddrs(to).
		Subject(subjectPrefix + subject).
		Text([]byte(plainRendering(msg, subject)))

	if from, err := mail.ParseAddress(msg.From); err == nil {
		builder = builder.ReplyTo(from.Name, from.Address)
	} else if msg.From != "" {
		builder = builder.Header("Reply-To", msg.From)
	}

	if msg.HTMLBody != "" {
		builder = builder.HTML([]byte(htmlBanner(msg, subject) + msg.HTMLBody))
	}

	for _, attachment := range msg.Attachments {
		builder = builder.AddAttachment(attachment.Body, attachment.MIMEType, attachment.Filename)
	}

	root, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build forward: %w", err)
	}

	return &Outgoing{
		From:    fromAddress,
		To:      append([]string(nil), forwardTo...),
		Subject: subjectPrefix + subject,
		root:    root,
	}, nil
}

// plainRendering is the banner plus exactly one of: the plain body, the HTML
// body verbatim, or the placeholder.
func plainRendering(msg *DecomposedMessage, subject string) string {
	banner := fmt.Sprintf("%s\nFrom: %s\nDate: %s\nSubject: %s\n\n",
		forwardBannerTitle, msg.From, msg.Date, subject)

	switch {
	case msg.TextBody != "":
		return banner + msg.TextBody
	case msg.HTMLBody != "":
		return banner + msg.HTMLBody
	default:
		return banner + noBodyPlaceholder
	}
}

func htmlBanner(msg *DecomposedMessage, subject string) string {
	return fmt.Sprintf(
		"<hr>\n<b>%s</b><br>\n<b>From:</b> %s<br>\n<b>Date:</b> %s<br>\n<b>Subject:</b> %s<br>\n<hr>\n",
		forwardBannerTitle,
		html.EscapeString(msg.From),
		html.EscapeString(msg.Date),
		html.EscapeString(subject),
	)
}
