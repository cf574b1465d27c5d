package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
)

func (a *App) getStatus() string {
	s := ""
	if a.email != "" {
		s = a.email + " "
	}
	if a.store.Online() {
		s += "online"
	} else {
		s += "offline"
	}
	if pending := a.store.Pending(); pending > 0 {
		s += fmt.Sprintf(", %d queued", pending)
	}
	return "(" + s + ")"
}

func (a *App) Root(ctx context.Context) {
	fmt.Fprintln(a.out, "One Line Diary (type 'help' for commands)")
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Fprintf(a.out, "diary %s> ", a.getStatus())
		if !scanner.Scan() {
			break
		}
		line := scanner.Text()
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}

		cmd := parts[0]
		args := parts[1:]

		switch cmd {
		case "help":
			a.help()
		case "register":
			a.Register(ctx)
		case "login":
			a.Login(ctx)
		case "logout":
			a.Logout(ctx)
		case "today":
			a.today(ctx, args)
		case "note":
			a.note(ctx, args)
		case "show":
			a.show(ctx, args)
		case "cal":
			a.cal(ctx, args)
		case "week":
			a.week(ctx)
		case "feedback":
			a.feedback(ctx, args)
		case "sync":
			a.sync(ctx)
		case "status":
			a.status()
		case "whoami":
			a.whoami(ctx)
		case "exit", "quit":
			fmt.Fprintln(a.out, "Bye!")
			return
		default:
			fmt.Fprintln(a.out, "Unknown command:", cmd)
		}
	}
}

func (a *App) help() {
	if !a.isLoggedIn() {
		fmt.Fprintln(a.out, "Available commands: register, login, status, exit")
		return
	}
	fmt.Fprint(a.out, `Available commands:
  today [-f] [text]   save today's one-liner (-f requests AI feedback)
  note [date]         attach a longer note to a day
  show [date]         show a day's entry
  cal [YYYY-MM]       month calendar with entry indicators
  week                current week at a glance
  feedback [date]     request AI feedback for a day
  sync                push queued changes now
  status              connectivity and queue state
  whoami              show profile
  logout, exit
`)
}
