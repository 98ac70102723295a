// Command inboxwatch follows one user's conversations from the command line.
// It polls the portal's inbox and sent listings, logs the conversation list
// whenever it changes, and can send or delete a message or open a
// conversation to mark it read.
//
//	inboxwatch -api http://localhost:8080/api/v1 -user <id> [-open <counterparty>] [-once]
//	inboxwatch -user <id> -send <receiver> -body <text> [-subject <text>] -once
//	inboxwatch -user <id> -delete <message id> -once
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/tbourn/alumni-portal/internal/config"
	"github.com/tbourn/alumni-portal/internal/conversation"
	"github.com/tbourn/alumni-portal/internal/sysutil"
)

func main() {
	_ = godotenv.Load()
	cfg := config.MustLoad()

	var (
		api      = flag.String("api", sysutil.FirstNonEmpty(os.Getenv("PORTAL_API_URL"), "http://localhost:"+cfg.Port+cfg.APIBasePath), "API root URL")
		user     = flag.String("user", os.Getenv("PORTAL_USER_ID"), "user id to watch (X-User-ID)")
		interval = flag.Duration("interval", cfg.PollInterval, "poll interval")
		timeout  = flag.Duration("timeout", 10*time.Second, "per-request timeout")
		open     = flag.String("open", "", "counterparty whose conversation is opened (marked read) after the first refresh")
		sendTo   = flag.String("send", "", "receiver of a message sent after the first refresh")
		subject  = flag.String("subject", "", "subject of the -send message")
		body     = flag.String("body", "", "content of the -send message")
		del      = flag.String("delete", "", "id of a message deleted after the first refresh")
		once     = flag.Bool("once", sysutil.IsTruthy(os.Getenv("INBOXWATCH_ONCE")), "refresh once and exit")
	)
	flag.Parse()

	logger := sysutil.SetupLogger("inboxwatch", cfg.LogLevel, true, nil)
	if *user == "" {
		logger.Fatal().Msg("-user is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var last string
	s := &conversation.Syncer{
		Book:     conversation.NewBook(*user),
		Source:   conversation.NewHTTPSource(*api, *user, *timeout),
		Interval: *interval,
		Log:      logger,
		OnChange: func(convs []conversation.Conversation) {
			sig := signature(convs)
			if sig == last {
				return
			}
			last = sig
			report(logger, convs, conversation.UnreadTotal(convs))
		},
	}

	if *sendTo != "" && *body == "" {
		logger.Fatal().Msg("-send needs -body")
	}

	if *once || *open != "" || *sendTo != "" || *del != "" {
		if err := s.Refresh(ctx); err != nil {
			logger.Fatal().Err(err).Msg("refresh failed")
		}
		if *sendTo != "" {
			m, err := s.Send(ctx, *sendTo, *subject, *body)
			if err != nil {
				logger.Fatal().Err(err).Str("to", *sendTo).Msg("send failed")
			}
			logger.Info().Str("to", *sendTo).Str("message_id", m.ID).Msg("message sent")
		}
		if *del != "" {
			if err := s.Delete(ctx, *del); err != nil {
				logger.Fatal().Err(err).Str("message_id", *del).Msg("delete failed")
			}
			logger.Info().Str("message_id", *del).Msg("message deleted")
		}
		if *open != "" {
			ids := s.Open(ctx, *open)
			s.Wait()
			logger.Info().Str("with", *open).Int("marked_read", len(ids)).Msg("conversation opened")
		}
		if *once {
			return
		}
	}

	if err := s.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Error().Err(err).Msg("watch stopped")
	}
	s.Wait()
}

func report(logger zerolog.Logger, convs []conversation.Conversation, total int) {
	logger.Info().Int("conversations", len(convs)).Int("unread_total", total).Msg("inbox")
	for _, c := range convs {
		logger.Info().
			Str("with", c.CounterpartyID).
			Int("unread", c.UnreadCount).
			Time("last_at", c.LastMessageTime).
			Str("last", preview(c.LastMessage.Content, 60)).
			Msg("conversation")
	}
}

// signature changes whenever a conversation gains a message or an unread
// count moves.
func signature(convs []conversation.Conversation) string {
	var b strings.Builder
	for _, c := range convs {
		b.WriteString(c.CounterpartyID)
		b.WriteByte(':')
		b.WriteString(c.LastMessage.ID)
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(c.UnreadCount))
		b.WriteByte(';')
	}
	return b.String()
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
