// Package imap fetches unread inbox mail over IMAP for self-hosted
// mailboxes that cannot use the Gmail API.
package imap

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	imapclient "github.com/emersion/go-imap/client"

	"buildmart/internal"
	"buildmart/internal/config"
)

type Connector struct {
	addr     string
	host     string
	secure   bool
	user     string
	password string
	markSeen bool
}

func NewConnector(cfg config.Config) (*Connector, error) {
	for _, req := range []struct {
		key, val string
	}{
		{"IMAP_HOST", cfg.IMAPHost},
		{"IMAP_USER", cfg.IMAPUser},
		{"IMAP_PASSWORD", cfg.IMAPPassword},
	} {
		if err := cfg.Require(req.key, req.val); err != nil {
			return nil, err
		}
	}

	return &Connector{
		addr:     fmt.Sprintf("%s:%d", cfg.IMAPHost, cfg.IMAPPort),
		host:     cfg.IMAPHost,
		secure:   cfg.IMAPSecure,
		user:     cfg.IMAPUser,
		password: cfg.IMAPPassword,
		markSeen: cfg.IMAPMarkSeen,
	}, nil
}

// FetchInbox returns up to max unseen messages from the given mailbox,
// oldest last. Each message carries its full raw RFC 822 body.
func (c *Connector) FetchInbox(ctx context.Context, label string, max int) ([]internal.FetchedMailMessage, error) {
	session, err := c.dial()
	if err != nil {
		return nil, err
	}
	defer session.Logout()

	if err := session.Login(c.user, c.password); err != nil {
		return nil, fmt.Errorf("imap login: %w", err)
	}
	if _, err := session.Select(label, false); err != nil {
		return nil, fmt.Errorf("select %q: %w", label, err)
	}

	ids, err := c.unseenIDs(session, max)
	if err != nil || len(ids) == 0 {
		return nil, err
	}

	return c.download(ctx, session, ids)
}

func (c *Connector) dial() (*imapclient.Client, error) {
	if c.secure {
		return imapclient.DialTLS(c.addr, &tls.Config{ServerName: c.host})
	}
	return imapclient.Dial(c.addr)
}

// unseenIDs keeps only the newest max sequence numbers so a backlogged
// mailbox never floods a single cycle.
func (c *Connector) unseenIDs(session *imapclient.Client, max int) ([]uint32, error) {
	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}
	ids, err := session.Search(criteria)
	if err != nil {
		return nil, err
	}
	if len(ids) > max {
		ids = ids[len(ids)-max:]
	}
	return ids, nil
}

func (c *Connector) download(ctx context.Context, session *imapclient.Client, ids []uint32) ([]internal.FetchedMailMessage, error) {
	seqset := new(imap.SeqSet)
	seqset.AddNum(ids...)

	section := &imap.BodySectionName{}
	fetchItems := []imap.FetchItem{imap.FetchEnvelope, imap.FetchInternalDate, imap.FetchUid, section.FetchItem()}

	messages := make(chan *imap.Message, len(ids))
	fetchDone := make(chan error, 1)
	go func() { fetchDone <- session.Fetch(seqset, fetchItems, messages) }()

	out := make([]internal.FetchedMailMessage, 0, len(ids))
	for msg := range messages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if msg == nil {
			continue
		}
		converted, ok, err := convertMessage(msg, section)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		out = append(out, converted)

		if c.markSeen {
			if err := flagSeen(session, msg.SeqNum); err != nil {
				return nil, err
			}
		}
	}

	if err := <-fetchDone; err != nil {
		return nil, err
	}
	return out, nil
}

func convertMessage(msg *imap.Message, section *imap.BodySectionName) (internal.FetchedMailMessage, bool, error) {
	body := msg.GetBody(section)
	if body == nil {
		return internal.FetchedMailMessage{}, false, nil
	}
	raw, err := io.ReadAll(body)
	if err != nil {
		return internal.FetchedMailMessage{}, false, err
	}

	converted := internal.FetchedMailMessage{
		Provider:   "imap",
		ReceivedAt: time.Now().UTC().Format(time.RFC3339),
		Raw:        raw,
	}
	if env := msg.Envelope; env != nil {
		converted.MessageID = env.MessageId
		converted.Subject = env.Subject
		converted.From = joinAddresses(env.From)
	}
	if converted.MessageID == "" {
		converted.MessageID = fmt.Sprintf("imap-%d", msg.Uid)
	}
	if !msg.InternalDate.IsZero() {
		converted.ReceivedAt = msg.InternalDate.UTC().Format(time.RFC3339)
	}
	return converted, true, nil
}

func flagSeen(session *imapclient.Client, seqNum uint32) error {
	single := new(imap.SeqSet)
	single.AddNum(seqNum)
	op := imap.FormatFlagsOp(imap.AddFlags, true)
	return session.Store(single, op, []interface{}{imap.SeenFlag}, nil)
}

func joinAddresses(addrs []*imap.Address) string {
	parts := make([]string, 0, len(addrs))
	for _, a := range addrs {
		if a == nil {
			continue
		}
		email := strings.Trim(a.MailboxName+"@"+a.HostName, "@")
		if a.PersonalName != "" {
			parts = append(parts, fmt.Sprintf("%s <%s>", a.PersonalName, email))
		} else {
			parts = append(parts, email)
		}
	}
	return strings.Join(parts, ", ")
}
