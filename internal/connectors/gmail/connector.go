// Package gmail fetches inbox mail through the Gmail REST API using a
// stored OAuth refresh token.
package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"buildmart/internal"
	"buildmart/internal/config"
)

var dateLayouts = []string{time.RFC1123Z, time.RFC1123, time.RFC822Z, time.RFC822, time.RFC850, time.ANSIC}

type Connector struct {
	service *gmail.Service
}

func NewConnector(cfg config.Config) (*Connector, error) {
	for _, req := range []struct {
		key, val string
	}{
		{"GMAIL_CLIENT_ID", cfg.GmailClientID},
		{"GMAIL_CLIENT_SECRET", cfg.GmailClientSecret},
		{"GMAIL_REFRESH_TOKEN", cfg.GmailRefreshToken},
	} {
		if err := cfg.Require(req.key, req.val); err != nil {
			return nil, err
		}
	}

	oauthCfg := &oauth2.Config{
		ClientID:     cfg.GmailClientID,
		ClientSecret: cfg.GmailClientSecret,
		Endpoint:     google.Endpoint,
		RedirectURL:  cfg.GmailRedirectURI,
		Scopes:       []string{gmail.GmailReadonlyScope},
	}
	source := oauthCfg.TokenSource(context.Background(), &oauth2.Token{RefreshToken: cfg.GmailRefreshToken})

	svc, err := gmail.NewService(context.Background(), option.WithTokenSource(source))
	if err != nil {
		return nil, fmt.Errorf("gmail service: %w", err)
	}
	return &Connector{service: svc}, nil
}

// FetchInbox lists up to max messages under the given label and downloads
// each one in full. The label is a Gmail label id, e.g. "INBOX".
func (c *Connector) FetchInbox(ctx context.Context, label string, max int) ([]internal.FetchedMailMessage, error) {
	listing, err := c.service.Users.Messages.List("me").
		LabelIds(label).
		MaxResults(int64(max)).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	out := make([]internal.FetchedMailMessage, 0, len(listing.Messages))
	for _, ref := range listing.Messages {
		if ref.Id == "" {
			continue
		}
		msg, ok, err := c.fetchOne(ctx, ref.Id)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, msg)
		}
	}
	return out, nil
}

// fetchOne needs two calls: "raw" format carries the RFC 822 body but no
// parsed headers, "metadata" the headers but no body.
func (c *Connector) fetchOne(ctx context.Context, id string) (internal.FetchedMailMessage, bool, error) {
	rawResp, err := c.service.Users.Messages.Get("me", id).Format("raw").Context(ctx).Do()
	if err != nil {
		return internal.FetchedMailMessage{}, false, fmt.Errorf("get message %s: %w", id, err)
	}
	if rawResp.Raw == "" {
		return internal.FetchedMailMessage{}, false, nil
	}
	rawBytes, err := decodeBase64URL(rawResp.Raw)
	if err != nil {
		return internal.FetchedMailMessage{}, false, err
	}

	metaResp, err := c.service.Users.Messages.Get("me", id).
		Format("metadata").
		MetadataHeaders("Subject", "From", "Date", "Message-ID").
		Context(ctx).
		Do()
	if err != nil {
		return internal.FetchedMailMessage{}, false, fmt.Errorf("get metadata %s: %w", id, err)
	}

	headers := map[string]string{}
	if metaResp.Payload != nil {
		for _, h := range metaResp.Payload.Headers {
			headers[strings.ToLower(h.Name)] = h.Value
		}
	}

	msg := internal.FetchedMailMessage{
		Provider:   "gmail",
		MessageID:  headers["message-id"],
		Subject:    headers["subject"],
		From:       headers["from"],
		ReceivedAt: receivedAt(headers["date"]),
		Raw:        rawBytes,
	}
	if msg.MessageID == "" {
		msg.MessageID = id
	}
	return msg, true, nil
}

func receivedAt(dateHeader string) string {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, dateHeader); err == nil {
			return t.UTC().Format(time.RFC3339)
		}
	}
	return time.Now().UTC().Format(time.RFC3339)
}

// decodeBase64URL accepts both padded and unpadded encodings; the API has
// returned either over time.
func decodeBase64URL(input string) ([]byte, error) {
	if decoded, err := base64.RawURLEncoding.DecodeString(input); err == nil {
		return decoded, nil
	}
	decoded, err := base64.URLEncoding.DecodeString(input)
	if err != nil {
		return nil, fmt.Errorf("decode gmail raw payload: %w", err)
	}
	return decoded, nil
}
