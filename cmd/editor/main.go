// Command editor is a terminal client for the collaborative shop table.
// It signs in with an access token, mirrors the server's shop list and lock
// state, and offers a small command loop for editing fields and browsing
// change history.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/choko510/jirotter-sub000/internal/editor"
)

func main() {
	base := flag.String("base", "http://localhost:8080", "API base URL")
	token := flag.String("token", os.Getenv("EDITOR_TOKEN"), "admin access token")
	flag.Parse()

	if *token == "" {
		log.Fatal("an access token is required (-token or EDITOR_TOKEN)")
	}

	api, err := editor.NewAPIClient(*base, *token)
	if err != nil {
		log.Fatalf("api client: %v", err)
	}
	wsURL, err := editor.WSURL(*base, *token)
	if err != nil {
		log.Fatalf("ws url: %v", err)
	}

	notify := editor.LogNotifier{}
	ed := editor.New(api, nil, notify)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := ed.Init(ctx); err != nil {
		log.Fatalf("init: %v", err)
	}

	conn := editor.NewConn(wsURL, ed.HandleFrame, notify)
	ed.SetChannel(conn)
	go conn.Run(ctx, func() {
		if err := ed.Reload(ctx); err != nil {
			log.Printf("resync: %v", err)
		}
	})

	repl(ctx, ed)
}

func repl(ctx context.Context, ed *editor.Editor) {
	sc := bufio.NewScanner(os.Stdin)
	fmt.Println("commands: list [filter] | edit <id> <field> | commit <value> | cancel | history <id> | quit")
	for {
		fmt.Print("> ")
		if !sc.Scan() {
			return
		}
		args := strings.Fields(sc.Text())
		if len(args) == 0 {
			continue
		}
		switch args[0] {
		case "list":
			filter := ""
			if len(args) > 1 {
				filter = strings.Join(args[1:], " ")
			}
			printRows(ed.Rows(filter))
		case "edit":
			if len(args) != 3 {
				fmt.Println("usage: edit <id> <field>")
				continue
			}
			id, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				fmt.Println("bad id:", args[1])
				continue
			}
			cur, err := ed.StartEdit(id, args[2])
			if err != nil {
				fmt.Println(err)
				continue
			}
			fmt.Printf("editing shop %d %s (current: %q)\n", id, args[2], cur)
		case "commit":
			input := strings.Join(args[1:], " ")
			if err := ed.Commit(ctx, input); err != nil {
				fmt.Println(err)
			}
		case "cancel":
			if err := ed.Cancel(); err != nil {
				fmt.Println(err)
			}
		case "history":
			if len(args) != 2 {
				fmt.Println("usage: history <id>")
				continue
			}
			id, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				fmt.Println("bad id:", args[1])
				continue
			}
			entries, err := ed.OpenHistory(ctx, id)
			if err != nil {
				fmt.Println(err)
				continue
			}
			for _, h := range entries {
				fmt.Printf("%s  %s: %q -> %q (%s)\n",
					h.CreatedAt.Format("2006-01-02 15:04"), h.Field, h.OldValue, h.NewValue, h.EditorName)
			}
			ed.CloseHistory()
		case "quit", "exit":
			return
		default:
			fmt.Println("unknown command:", args[0])
		}
	}
}

func printRows(rows []editor.RowView) {
	for _, r := range rows {
		mark := " "
		switch {
		case r.Lock == editor.LockOther:
			mark = "L"
		case r.Editing:
			mark = "*"
		case r.Flash:
			mark = "!"
		}
		locked := ""
		if r.LockedBy != "" {
			locked = " [" + r.LockedBy + "]"
		}
		fmt.Printf("%s %4d  %-24s %-10s %s%s\n",
			mark, r.Shop.ID, r.Shop.Name, editor.FormatWaitTime(r.Shop.WaitTime), r.Shop.UpdatedBy, locked)
	}
}
