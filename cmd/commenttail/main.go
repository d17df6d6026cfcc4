// commenttail joins a document's comment channel from the terminal and
// tails the live thread. Plain lines become comments; "reply <id> <text>"
// and "resolve <id>" drive the other actions.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"clinedit-collab/internal/config"
	"clinedit-collab/internal/entity"
	"clinedit-collab/internal/pkg/logger"
	"clinedit-collab/internal/pkg/retry"
	"clinedit-collab/internal/pkg/token"
	"clinedit-collab/internal/session"

	"github.com/fatih/color"
)

func main() {
	cfg := config.Load()

	docId := flag.String("doc", "", "document id to join (required)")
	baseURL := flag.String("url", cfg.Collab.WsBaseURL, "websocket endpoint base")
	bearer := flag.String("token", "", "bearer token")
	share := flag.String("share", "", "share token for guest access")
	name := flag.String("name", "commenttail", "display name")
	flag.Parse()

	if *docId == "" {
		fmt.Fprintln(os.Stderr, "usage: commenttail -doc <document-id> [-url ws://...] [-token ...] [-share ...]")
		os.Exit(2)
	}

	identity := entity.Identity{
		UserId:      *name,
		UserName:    *name,
		DisplayName: *name,
	}

	conn := session.NewConnectionManager(session.ConnConfig{
		BaseURL:     *baseURL,
		OpenTimeout: cfg.Collab.OpenTimeout,
		AuthTimeout: cfg.Collab.AuthTimeout,
		Policy:      retry.NewPolicy(cfg.Collab.RetryBase, cfg.Collab.RetryAttempts),
	}, token.StaticSource(*bearer), logger.NewNopLogger())

	store := session.NewCommentStore()
	tracker := session.NewSelectionTracker(nil)
	ctrl := session.NewController(conn, store, tracker, identity, *docId, *share, logger.NewNopLogger())

	seen := make(map[string]int)
	ctrl.OnUpdate = func() { render(ctrl, seen) }
	ctrl.OnConnState = func(s session.ConnState) {
		if s == session.StateDisconnected {
			color.Red("· disconnected")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	if err := ctrl.Start(ctx); err != nil {
		cancel()
		color.Red("connect failed: %v", err)
		os.Exit(1)
	}
	cancel()
	defer ctrl.Stop()

	color.Green("· joined %s", *docId)

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var err error
		switch {
		case strings.HasPrefix(line, "resolve "):
			err = ctrl.ResolveComment(strings.TrimSpace(strings.TrimPrefix(line, "resolve ")))
		case strings.HasPrefix(line, "reply "):
			rest := strings.TrimSpace(strings.TrimPrefix(line, "reply "))
			id, text, found := strings.Cut(rest, " ")
			if !found {
				err = fmt.Errorf("usage: reply <id> <text>")
			} else {
				err = ctrl.SubmitReply(id, text)
			}
		default:
			err = ctrl.SubmitComment(line)
		}
		if err != nil {
			color.Red("! %v", err)
		}
	}
}

// render prints comments and replies not shown yet. seen maps comment id to
// the number of replies already printed.
func render(ctrl *session.Controller, seen map[string]int) {
	author := color.New(color.FgCyan, color.Bold)
	quote := color.New(color.Faint)
	resolved := color.New(color.FgYellow)

	for _, c := range ctrl.Comments() {
		if c.Pending {
			continue
		}
		printed, ok := seen[c.Id]
		if !ok {
			author.Printf("%s ", c.UserName)
			fmt.Printf("[%s] %s\n", c.Id, c.Content)
			if c.SelectionText != "" {
				quote.Printf("  > %s\n", c.SelectionText)
			}
			printed = 0
		}
		for _, r := range c.Replies[printed:] {
			author.Printf("  %s ", r.UserName)
			fmt.Println(r.Content)
		}
		if c.IsResolved() && seen[c.Id+"/resolved"] == 0 {
			resolved.Printf("  ✓ resolved\n")
			seen[c.Id+"/resolved"] = 1
		}
		seen[c.Id] = len(c.Replies)
	}
}
