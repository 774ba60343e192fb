// Command cli manages the bot webhook and inspects button payloads.
//
//	cli set-webhook -url https://luxflix.netlify.app/.netlify/functions/webhook
//	cli delete-webhook -drop
//	cli encode -decision APPROVE -uid uid42 -plan pro_yearly
//	cli decode APPROVE_uid42_pro_yearly
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/fabianMendez/luxflix/pkg/app"
	"github.com/fabianMendez/luxflix/pkg/approval"
)

func usage() {
	fmt.Fprintln(os.Stderr, "usage: cli set-webhook|delete-webhook|encode|decode [flags]")
	os.Exit(2)
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}

	cmd, args := os.Args[1], os.Args[2:]
	switch cmd {
	case "encode":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		decision := fs.String("decision", string(approval.Approve), "APPROVE or REJECT")
		uid := fs.String("uid", "", "user id")
		plan := fs.String("plan", "", "membership plan")
		_ = fs.Parse(args)

		tok := approval.Token{Decision: approval.Decision(*decision), SubjectID: *uid, Plan: *plan}
		fmt.Println(tok.Encode())
		if !tok.Fits() {
			fmt.Fprintf(os.Stderr, "warning: payload is longer than %d bytes\n", approval.MaxPayloadLength)
		}

	case "decode":
		if len(args) != 1 {
			usage()
		}
		tok := approval.Decode(args[0])
		fmt.Println("Decision:", tok.Decision)
		fmt.Println("User:    ", tok.SubjectID)
		fmt.Println("Plan:    ", tok.Plan)

	case "set-webhook", "delete-webhook":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		url := fs.String("url", "", "public webhook url")
		drop := fs.Bool("drop", false, "drop pending updates")
		_ = fs.Parse(args)

		a, err := app.Load()
		if err != nil {
			log.Fatal(err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if cmd == "set-webhook" {
			if *url == "" {
				log.Fatal("-url is required")
			}
			err = a.Telegram.SetWebhook(ctx, *url)
		} else {
			err = a.Telegram.DeleteWebhook(ctx, *drop)
		}
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println("ok")

	default:
		usage()
	}
}
