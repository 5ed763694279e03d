package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lucident-ai/adkchat"
	"github.com/lucident-ai/adkchat/conversation"
	"github.com/lucident-ai/adkchat/directory"
	"github.com/lucident-ai/adkchat/localstate"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Open the interactive chat",
	Long: `Open an interactive chat with the agent.

The last active session is restored, or a new one is created. Inside the
chat, lines starting with / are commands:

  /sessions      list your sessions
  /switch <n>    switch to session n from the list
  /new [name]    start a new session
  /delete        delete the current session
  /quit          exit`,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		return runChat(cmd.Context(), client)
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

func runChat(ctx context.Context, client *adkchat.Client) error {
	store := stateStore()

	// printed tracks how much of the streaming reply is already on
	// screen, so each change prints only the new suffix. Send runs on
	// this goroutine, so no extra locking is needed.
	var printed int
	var conv *conversation.Controller
	conv = conversation.New(client, conversation.WithOnChange(func() {
		if conv == nil || conv.State() != conversation.StateStreaming {
			return
		}
		msgs := conv.Messages()
		if len(msgs) == 0 {
			return
		}
		content := msgs[len(msgs)-1].Content
		if printed < len(content) {
			fmt.Print(assistantStyle.Render(content[printed:]))
			printed = len(content)
		}
	}))

	dir := directory.New(client,
		directory.WithStore(store),
		directory.WithOnSelect(func(id string) { conv.SetActiveSession(ctx, id) }),
	)

	dir.Restore(ctx)
	if dir.ActiveID() == "" {
		dir.Create(ctx, "")
	}
	printHistory(conv)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print(promptStyle.Render("you> "))
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, "/"):
			if quit := handleCommand(ctx, dir, line); quit {
				return nil
			}
		default:
			printed = 0
			fmt.Print(promptStyle.Render("agent> "))
			if err := conv.Send(ctx, line); err != nil {
				fmt.Println(warnStyle.Render(err.Error()))
				continue
			}
			fmt.Println()
			if err := conv.Err(); err != nil {
				fmt.Println(warnStyle.Render("reply interrupted: " + err.Error()))
			}
		}
	}
}

// handleCommand processes a /command line. It returns true when the user
// asked to quit.
func handleCommand(ctx context.Context, dir *directory.Controller, line string) bool {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit", "/exit":
		return true

	case "/sessions":
		printSessions(dir)

	case "/switch":
		if len(fields) < 2 {
			fmt.Println(warnStyle.Render("usage: /switch <n>"))
			return false
		}
		n, err := strconv.Atoi(fields[1])
		entries := dir.Entries()
		if err != nil || n < 1 || n > len(entries) {
			fmt.Println(warnStyle.Render("no such session"))
			return false
		}
		dir.Select(entries[n-1].ID)
		fmt.Println(titleStyle.Render("switched to " + entries[n-1].Name()))

	case "/new":
		name := strings.TrimSpace(strings.TrimPrefix(line, "/new"))
		session := dir.Create(ctx, name)
		fmt.Println(titleStyle.Render("started " + session.Name()))

	case "/delete":
		active := dir.ActiveID()
		if active == "" {
			fmt.Println(warnStyle.Render("no active session"))
			return false
		}
		if err := dir.Delete(ctx, active); err != nil {
			fmt.Println(warnStyle.Render("delete failed remotely, removed locally"))
		}
		fmt.Println(titleStyle.Render("session deleted"))

	default:
		fmt.Println(warnStyle.Render("unknown command " + fields[0]))
	}
	return false
}

func printHistory(conv *conversation.Controller) {
	for _, msg := range conv.Messages() {
		switch msg.Role {
		case adkchat.RoleUser:
			fmt.Println(promptStyle.Render("you> ") + msg.Content)
		default:
			fmt.Println(promptStyle.Render("agent> ") + assistantStyle.Render(msg.Content))
		}
	}
}

func printSessions(dir *directory.Controller) {
	entries := dir.Entries()
	if len(entries) == 0 {
		fmt.Println(dateStyle.Render("no sessions"))
		return
	}
	active := dir.ActiveID()
	for i, s := range entries {
		marker := "  "
		if s.ID == active {
			marker = activeStyle.Render("* ")
		}
		fmt.Printf("%s%2d  %s  %s  %s\n",
			marker,
			i+1,
			titleStyle.Render(s.Name()),
			dateStyle.Render(s.LastUpdate.Time().Format("2006-01-02 15:04")),
			idStyle.Render(s.ID),
		)
	}
}

// stateStore returns the persistent store, or an in-memory one when the
// config directory is unavailable.
func stateStore() localstate.Store {
	path, err := localstate.DefaultPath()
	if err != nil {
		return &localstate.Memory{}
	}
	return localstate.NewFileStore(path)
}
