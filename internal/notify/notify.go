// Package notify fans arena notifications out to a delivery backend.
package notify

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/cryptods8/openframedl-sub001/internal/game"
)

// Dispatcher delivers one message to a set of users.
type Dispatcher interface {
	Notify(ctx context.Context, recipients []game.UserKey, title, body string) error
}

// LogDispatcher records notifications in the log instead of delivering them.
type LogDispatcher struct{}

func (LogDispatcher) Notify(_ context.Context, recipients []game.UserKey, title, body string) error {
	users := make([]string, len(recipients))
	for i, r := range recipients {
		users[i] = r.String()
	}
	log.Info().Strs("recipients", users).Str("title", title).Str("body", body).Msg("notification")
	return nil
}

// Batched splits recipients into batches of at most Size and hands each batch
// to Next. Every batch is attempted; failures are joined.
type Batched struct {
	Next Dispatcher
	Size int
}

func (b Batched) Notify(ctx context.Context, recipients []game.UserKey, title, body string) error {
	size := b.Size
	if size <= 0 {
		size = len(recipients)
	}
	var errs []error
	for start := 0; start < len(recipients); start += size {
		end := min(start+size, len(recipients))
		if err := b.Next.Notify(ctx, recipients[start:end], title, body); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
