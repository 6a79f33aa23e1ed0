package notify

import (
	"context"
	"fmt"
	"net/url"

	"github.com/rs/zerolog"

	"github.com/serenitygrove/membership-api/internal/core/domain"
)

// LogNotifier is the development delivery adapter: instead of sending email
// or SMS it writes the assembled link to the log so a developer can follow
// it. The destination is logged hashed; the raw token appears nowhere except
// the link itself. Never wire this adapter in production.
type LogNotifier struct {
	baseURL string
	log     zerolog.Logger
}

func NewLogNotifier(baseURL string, log zerolog.Logger) *LogNotifier {
	return &LogNotifier{baseURL: baseURL, log: log}
}

func (n *LogNotifier) Send(_ context.Context, rawToken, destination string, purpose domain.LinkPurpose) error {
	link := fmt.Sprintf("%s/auth/verify?token=%s", n.baseURL, url.QueryEscape(rawToken))
	n.log.Info().
		Str("destination_hash", domain.HashSensitive(destination)).
		Str("purpose", string(purpose)).
		Str("link", link).
		Msg("magic link issued (dev delivery)")
	return nil
}
