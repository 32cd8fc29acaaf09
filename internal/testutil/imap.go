// Package testutil provides in-process IMAP and SMTP servers for tests.
package testutil

import (
	"net"
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/backend/memory"
	imapclient "github.com/emersion/go-imap/client"
	"github.com/emersion/go-imap/server"
)

// TestIMAPServer is an in-process IMAP server with an in-memory backend.
// The backend creates a default user ("username"/"password") whose INBOX
// already contains one pre-existing message, which is convenient for
// exercising the baseline rule.
type TestIMAPServer struct {
	Server  *server.Server
	Address string
	Backend *memory.Backend

	username string
	password string
}

// NewTestIMAPServer starts an IMAP server on a random local port.
func NewTestIMAPServer(t *testing.T) *TestIMAPServer {
	t.Helper()

	be := memory.New()

	s := server.New(be)
	s.AllowInsecureAuth = true

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}

	go func() {
		if err := s.Serve(listener); err != nil {
			t.Logf("IMAP server error: %v", err)
		}
	}()

	// Give server time to start
	time.Sleep(100 * time.Millisecond)

	srv := &TestIMAPServer{
		Server:   s,
		Address:  listener.Addr().String(),
		Backend:  be,
		username: "username",
		password: "password",
	}
	t.Cleanup(srv.Close)

	return srv
}

// Close shuts down the server.
func (s *TestIMAPServer) Close() {
	_ = s.Server.Close()
}

// Username returns the default test username.
func (s *TestIMAPServer) Username() string {
	return s.username
}

// Password returns the default test password.
func (s *TestIMAPServer) Password() string {
	return s.password
}

// Connect opens a logged-in client connection to the server.
func (s *TestIMAPServer) Connect(t *testing.T) (*imapclient.Client, func()) {
	t.Helper()

	client, err := imapclient.Dial(s.Address)
	if err != nil {
		t.Fatalf("Failed to connect to test server: %v", err)
	}

	if err := client.Login(s.username, s.password); err != nil {
		_ = client.Logout()
		t.Fatalf("Failed to login: %v", err)
	}

	return client, func() {
		_ = client.Logout()
	}
}

// AppendRaw appends a raw message to the default user's INBOX and returns
// the UID the server assigned to it.
func (s *TestIMAPServer) AppendRaw(t *testing.T, raw string) uint32 {
	t.Helper()

	client, cleanup := s.Connect(t)
	defer cleanup()

	if err := client.Append("INBOX", nil, time.Now(), strings.NewReader(raw)); err != nil {
		t.Fatalf("Failed to append message: %v", err)
	}

	if _, err := client.Select("INBOX", false); err != nil {
		t.Fatalf("Failed to select INBOX: %v", err)
	}

	criteria := imap.NewSearchCriteria()
	criteria.Uid = new(imap.SeqSet)
	criteria.Uid.AddRange(1, 0)

	uids, err := client.UidSearch(criteria)
	if err != nil {
		t.Fatalf("Failed to search for appended message: %v", err)
	}
	if len(uids) == 0 {
		t.Fatalf("Message not found after append")
	}

	max := uids[0]
	for _, uid := range uids {
		if uid > max {
			max = uid
		}
	}

	return max
}

// HighestUID returns the highest UID currently in the default user's INBOX.
func (s *TestIMAPServer) HighestUID(t *testing.T) uint32 {
	t.Helper()

	client, cleanup := s.Connect(t)
	defer cleanup()

	if _, err := client.Select("INBOX", false); err != nil {
		t.Fatalf("Failed to select INBOX: %v", err)
	}

	criteria := imap.NewSearchCriteria()
	criteria.Uid = new(imap.SeqSet)
	criteria.Uid.AddRange(1, 0)

	uids, err := client.UidSearch(criteria)
	if err != nil {
		t.Fatalf("Failed to search INBOX: %v", err)
	}

	var max uint32
	for _, uid := range uids {
		if uid > max {
			max = uid
		}
	}

	return max
}
