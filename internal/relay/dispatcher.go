// Package relay submits built forwards to the outbound SMTP relay.
package relay

import (
	"bytes"
	"crypto/tls"
	"fmt"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"

	"github.com/vdavid/mailfwd/internal/config"
	"github.com/vdavid/mailfwd/internal/forward"
)

// Dispatcher delivers one message per call over a fresh connection. The
// connection is closed on every exit path, including send failure. A failure
// at any step surfaces as a single delivery error for that message; no
// retries happen here.
type Dispatcher struct {
	Relay config.Relay

	// DisableTLS skips both implicit TLS and STARTTLS and authenticates over
	// the plaintext connection. Only for tests against the in-process server.
	DisableTLS bool
}

// Send connects, authenticates, submits the message and quits.
func (d *Dispatcher) Send(out *forward.Outgoing) error {
	c, err := d.connect()
	if err != nil {
		return err
	}
	defer func() {
		_ = c.Close()
	}()

	auth := sasl.NewPlainClient("", d.Relay.AuthUser, d.Relay.AuthPassword)
	if err := c.Auth(auth); err != nil {
		return fmt.Errorf("failed to authenticate with relay: %w", err)
	}

	var buf bytes.Buffer
	if err := out.WriteTo(&buf); err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	if err := c.SendMail(out.From, out.To, &buf); err != nil {
		return fmt.Errorf("failed to submit message: %w", err)
	}

	if err := c.Quit(); err != nil {
		return fmt.Errorf("failed to close relay session: %w", err)
	}

	return nil
}

// connect opens the relay connection: implicit TLS when configured, an
// explicit STARTTLS upgrade otherwise.
func (d *Dispatcher) connect() (*smtp.Client, error) {
	addr := d.Relay.Addr()

	if d.DisableTLS {
		c, err := smtp.Dial(addr)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to relay: %w", err)
		}
		return c, nil
	}

	if d.Relay.UseSSL {
		c, err := smtp.DialTLS(addr, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to relay with TLS: %w", err)
		}
		return c, nil
	}

	c, err := smtp.DialStartTLS(addr, &tls.Config{ServerName: d.Relay.Server})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to relay with STARTTLS: %w", err)
	}

	return c, nil
}
