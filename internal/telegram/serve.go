package telegram

import (
	"context"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/errgroup"

	"pactd/internal/teams"
)

const pollTimeout = 50 * time.Second

// Serve runs the bridge loops until ctx is cancelled: a long-poll loop that
// resolves pending asks from user replies, and a watcher that keeps the
// status roster in sync with the teams directory.
func (b *Bridge) Serve(ctx context.Context) error {
	if !b.configured {
		b.log.Info("bridge not configured, nothing to serve")
		return nil
	}
	defer b.Close()

	b.refreshTeams()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return b.pollLoop(ctx) })
	g.Go(func() error { return b.watchTeams(ctx) })

	err := g.Wait()
	if err == context.Canceled {
		return nil
	}
	return err
}

func (b *Bridge) pollLoop(ctx context.Context) error {
	var offset int64
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		updates, err := b.client.GetUpdates(ctx, offset, pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			b.log.Warnw("getUpdates failed, backing off", "error", err)
			select {
			case <-time.After(5 * time.Second):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}

		for _, u := range updates {
			if u.UpdateID >= offset {
				offset = u.UpdateID + 1
			}
			b.dispatch(ctx, u)
		}
	}
}

// dispatch routes one update: button presses and direct replies both
// resolve the ask tied to the original message.
func (b *Bridge) dispatch(ctx context.Context, u Update) {
	if cb := u.CallbackQuery; cb != nil {
		if err := b.client.AnswerCallback(ctx, cb.ID); err != nil {
			b.log.Debugw("answerCallbackQuery failed", "error", err)
		}
		if cb.Message != nil && b.ResolveReply(cb.Message.MessageID, cb.Data) {
			b.log.Infow("ask answered via button", "message_id", cb.Message.MessageID)
		}
		return
	}
	if msg := u.Message; msg != nil && msg.ReplyTo != nil {
		if b.ResolveReply(msg.ReplyTo.MessageID, msg.Text) {
			b.log.Infow("ask answered via reply", "message_id", msg.ReplyTo.MessageID)
		}
	}
}

// watchTeams refreshes the active-team snapshot whenever the teams
// directory changes. Without a teams directory it just blocks on ctx.
func (b *Bridge) watchTeams(ctx context.Context) error {
	if b.teamsDir == "" {
		<-ctx.Done()
		return ctx.Err()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		b.log.Warnw("fsnotify unavailable, roster will not live-update", "error", err)
		<-ctx.Done()
		return ctx.Err()
	}
	defer watcher.Close()

	if err := watcher.Add(b.teamsDir); err != nil {
		b.log.Debugw("teams dir not watchable", "dir", b.teamsDir, "error", err)
		<-ctx.Done()
		return ctx.Err()
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			b.refreshTeams()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			b.log.Debugw("watcher error", "error", err)
		}
	}
}

func (b *Bridge) refreshTeams() {
	if b.teamsDir == "" {
		return
	}
	b.setActiveTeams(teams.New(b.teamsDir, "").ActiveTeams())
}
