package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var errQuit = errors.New("quit")

// tableActions is what terminal commands drive; *client.Client satisfies it
type tableActions interface {
	SendChat(message string) error
	Fold() error
	Check() error
	Call() error
	Bet(amount int) error
	Raise(amount int) error
	Discard(cardIndex int) error
	SitDown(position int) error
	BuyIn(amount int) error
	StandUp() error
	ChangeSeat(position int) error
	StartGame() error
	GetGameHistory(limit int) error
	GetGameState() error
	ExitGame() error
}

const helpText = `commands:
  chat <message>   fold   check   call   bet <n>   raise <n>   discard <card>
  sit <seat>   buyin <n>   stand   seat <seat>   start   history [n]   state
  exit   quit`

// runCommand executes one line typed at the terminal
func runCommand(t tableActions, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	name, args := strings.ToLower(fields[0]), fields[1:]

	switch name {
	case "chat", "say":
		if len(args) == 0 {
			return fmt.Errorf("chat needs a message")
		}
		return t.SendChat(strings.Join(args, " "))
	case "fold":
		return t.Fold()
	case "check":
		return t.Check()
	case "call":
		return t.Call()
	case "bet":
		return withInt(args, "amount", t.Bet)
	case "raise":
		return withInt(args, "amount", t.Raise)
	case "discard":
		return withInt(args, "card index", t.Discard)
	case "sit":
		return withInt(args, "seat", t.SitDown)
	case "buyin":
		return withInt(args, "amount", t.BuyIn)
	case "stand":
		return t.StandUp()
	case "seat":
		return withInt(args, "seat", t.ChangeSeat)
	case "start":
		return t.StartGame()
	case "history":
		if len(args) == 0 {
			return t.GetGameHistory(0)
		}
		return withInt(args, "limit", t.GetGameHistory)
	case "state":
		return t.GetGameState()
	case "exit":
		return t.ExitGame()
	case "quit":
		return errQuit
	case "help":
		fmt.Println(helpText)
		return nil
	}
	return fmt.Errorf("unknown command %q (try help)", name)
}

func withInt(args []string, what string, fn func(int) error) error {
	if len(args) != 1 {
		return fmt.Errorf("expected one %s", what)
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", what, args[0], err)
	}
	return fn(n)
}
