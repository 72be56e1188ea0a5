// ABOUTME: Interactive command loop and the live renderer for the open conversation.
// ABOUTME: Slash commands drive the engine; plain input sends a message.

package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"

	"github.com/2389/coven-console/internal/domain"
	"github.com/2389/coven-console/internal/engine"
)

// renderLoop prints changes that matter while the operator works: new
// messages in the open conversation and status transitions. Everything
// else is available via /list and the observer endpoints.
func renderLoop(ctx context.Context, eng *engine.Engine) {
	ch, _ := eng.Subscribe(ctx)

	printed := make(map[string]bool)
	lastStatus := ""
	lastOpen := ""

	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-ch:
			if !ok {
				return
			}
		}

		open := eng.OpenConversation()
		if open != lastOpen {
			// Fresh conversation: mark everything already on screen as
			// printed so only genuinely new messages appear.
			printed = make(map[string]bool)
			for _, m := range eng.Messages(open) {
				printed[m.MessageID] = true
			}
			lastOpen = open
		}

		if open != "" {
			for _, m := range eng.Messages(open) {
				if printed[m.MessageID] {
					continue
				}
				printed[m.MessageID] = true
				printMessage(m)
			}
		}

		if s := eng.Status(); s != lastStatus {
			lastStatus = s
			if s != "" {
				color.New(color.FgHiBlack).Printf("· %s\n", s)
			}
		}
	}
}

func printMessage(m domain.Message) {
	switch m.Role {
	case domain.RoleAdmin:
		color.New(color.FgGreen).Printf("you: ")
	case domain.RoleModel, domain.RoleAI:
		color.New(color.FgCyan).Printf("agent: ")
	default:
		color.New(color.FgWhite, color.Bold).Printf("user: ")
	}
	fmt.Println(m.Content)
}

func interact(ctx context.Context, eng *engine.Engine) error {
	scanner := bufio.NewScanner(os.Stdin)

	for {
		if open := eng.OpenConversation(); open != "" {
			fmt.Printf("[%s]> ", open)
		} else {
			fmt.Print("> ")
		}

		inputCh := make(chan string, 1)
		errCh := make(chan error, 1)
		go func() {
			if scanner.Scan() {
				inputCh <- scanner.Text()
			} else {
				if err := scanner.Err(); err != nil {
					errCh <- err
				} else {
					errCh <- io.EOF
				}
			}
		}()

		var input string
		select {
		case <-ctx.Done():
			return nil
		case err := <-errCh:
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("reading input: %w", err)
		case input = <-inputCh:
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		if input == "/quit" || input == "/exit" || input == "/q" {
			return nil
		}

		if strings.HasPrefix(input, "/") {
			if err := runCommand(eng, input); err != nil {
				fmt.Printf("[error] %v\n", err)
			}
			continue
		}

		// Plain input is a message to the open conversation.
		if err := eng.Send(input); err != nil {
			fmt.Printf("[error] %v\n", err)
		}
	}
}

func runCommand(eng *engine.Engine, input string) error {
	cmd, args, _ := strings.Cut(input, " ")
	args = strings.TrimSpace(args)

	switch cmd {
	case "/help":
		printHelp()

	case "/list":
		printConversations(eng.Conversations(), eng.Unread(), eng.ActivitySnapshot())

	case "/search":
		if args == "" {
			return fmt.Errorf("usage: /search <query>")
		}
		printConversations(eng.Search(args), eng.Unread(), eng.ActivitySnapshot())

	case "/open":
		if args == "" {
			return fmt.Errorf("usage: /open <user-id>")
		}
		eng.Open(args)
		for _, m := range eng.Messages(args) {
			printMessage(m)
		}

	case "/review":
		pr := eng.PendingReview()
		if pr == nil {
			fmt.Println("No response pending review")
			return nil
		}
		color.New(color.FgYellow).Println("Drafted response awaiting review:")
		fmt.Println(pr.Content)
		fmt.Println("/approve to send, /reject [reason] to discard")

	case "/approve":
		return eng.Approve()

	case "/reject":
		return eng.Reject(args)

	case "/cancel":
		return eng.Cancel()

	case "/toggle":
		open := eng.OpenConversation()
		if open == "" {
			return fmt.Errorf("no conversation open")
		}
		switch args {
		case "on":
			eng.ToggleAgent(open, true)
		case "off":
			eng.ToggleAgent(open, false)
		default:
			return fmt.Errorf("usage: /toggle on|off")
		}

	case "/focus":
		return eng.Focus()

	case "/blur":
		eng.Blur()

	default:
		return fmt.Errorf("unknown command %s (try /help)", cmd)
	}
	return nil
}

func printHelp() {
	fmt.Println("Commands:")
	fmt.Println("  /list             List conversations (● unread, ⚙ agent working)")
	fmt.Println("  /search <query>   Filter conversations by name or id")
	fmt.Println("  /open <user-id>   Open a conversation")
	fmt.Println("  /review           Show the drafted response awaiting review")
	fmt.Println("  /approve          Approve the drafted response")
	fmt.Println("  /reject [reason]  Reject the drafted response")
	fmt.Println("  /cancel           Cancel the agent's current work")
	fmt.Println("  /toggle on|off    Enable or disable the agent for this conversation")
	fmt.Println("  /focus            Mark yourself as typing (pauses the agent)")
	fmt.Println("  /blur             Stop the typing indicator")
	fmt.Println("  /quit             Exit")
	fmt.Println()
	fmt.Println("Anything else is sent as a message to the open conversation.")
}

func printConversations(convs []domain.Conversation, unread []string, activity map[string]domain.Activity) {
	if len(convs) == 0 {
		fmt.Println("No conversations")
		return
	}

	unreadSet := make(map[string]bool, len(unread))
	for _, id := range unread {
		unreadSet[id] = true
	}

	for _, c := range convs {
		marker := "  "
		if unreadSet[c.UserID] {
			marker = color.New(color.FgRed).Sprint("● ")
		}

		name := c.DisplayName
		if name == "" {
			name = c.UserID
		}
		if c.IsNew {
			name += color.New(color.FgYellow).Sprint(" [new]")
		}
		if !c.AIEnabled {
			name += color.New(color.FgHiBlack).Sprint(" [agent off]")
		}
		if a, ok := activity[c.UserID]; ok {
			name += color.New(color.FgCyan).Sprintf(" ⚙ %s", a.Type)
		}

		fmt.Printf("%s%s  %s\n", marker, name, color.New(color.FgHiBlack).Sprint(c.UserID))
	}
}
