// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Khylle Villasurda

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/KhylleVillasurda/Notequarry/internal/config"
	"github.com/KhylleVillasurda/Notequarry/internal/logger"
	"github.com/KhylleVillasurda/Notequarry/internal/remote"
	"github.com/KhylleVillasurda/Notequarry/internal/session"
	"github.com/KhylleVillasurda/Notequarry/internal/store"
	"github.com/KhylleVillasurda/Notequarry/models"
)

var (
	buildVersion string
	buildDate    string
	buildCommit  string
)

func main() {
	printBuildInfo()

	// The shell owns stdout; log lines go to a file next to the binary so
	// they do not interleave with prompt output.
	log := logger.NewFileLogger("notequarry")
	cfg, err := config.GetConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("error getting configs")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	storage, err := store.Open(ctx, cfg.Vault.Path, log)
	if err != nil {
		log.Fatal().Err(err).Msg("open vault database")
	}
	defer storage.Close()

	var blobs remote.BlobStore
	if cfg.SyncEnabled() {
		blobs, err = remote.NewHTTPBlobStore(cfg.Remote.BaseURL, cfg.Remote.Token, cfg.Remote.RequestTimeout, log)
		if err != nil {
			log.Fatal().Err(err).Msg("create remote blob store")
		}
	}

	sess := session.New(cfg, storage, blobs, log)
	defer sess.Lock()

	in := bufio.NewReader(os.Stdin)

	fmt.Print("master password: ")
	password, err := in.ReadString('\n')
	if err != nil {
		log.Fatal().Err(err).Msg("read password")
	}
	if err := sess.Unlock(ctx, strings.TrimRight(password, "\r\n")); err != nil {
		if errors.Is(err, models.ErrAuthenticationFailed) {
			fmt.Fprintln(os.Stderr, "wrong password")
			os.Exit(1)
		}
		log.Fatal().Err(err).Msg("unlock vault")
	}
	fmt.Println("vault unlocked")

	runShell(ctx, sess, in)
}

// runShell is a minimal line-oriented front end over the session. It exists
// for manual use and smoke checks; richer front ends talk to the session
// package directly.
func runShell(ctx context.Context, sess *session.Session, in *bufio.Reader) {
	const help = `commands:
  list                    list entries, newest first
  create note|book TITLE  create an entry
  show ID                 print an entry with all pages
  edit ID PAGE            replace a page's text (input ends with a single ".")
  search WORDS            ranked full-text search
  delete ID               delete an entry
  sync                    run a sync pass now
  quit`

	fmt.Println(help)
	for {
		fmt.Print("> ")
		line, err := in.ReadString('\n')
		if err != nil {
			return
		}
		if ctx.Err() != nil {
			return
		}

		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		switch cmd, args := fields[0], fields[1:]; cmd {
		case "quit", "exit":
			return
		case "help":
			fmt.Println(help)
		case "list":
			listEntries(ctx, sess)
		case "create":
			createEntry(ctx, sess, args)
		case "show":
			showEntry(ctx, sess, args)
		case "edit":
			editPage(ctx, sess, in, args)
		case "search":
			searchEntries(ctx, sess, args)
		case "delete":
			if len(args) != 1 {
				fmt.Println("usage: delete ID")
				continue
			}
			report(sess.DeleteEntry(ctx, args[0]))
		case "sync":
			report(sess.SyncNow(ctx))
		default:
			fmt.Printf("unknown command %q, try help\n", cmd)
		}
	}
}

func listEntries(ctx context.Context, sess *session.Session) {
	summaries, err := sess.ListEntries(ctx, models.ListFilter{})
	if err != nil {
		report(err)
		return
	}
	for _, s := range summaries {
		fmt.Printf("%s  %-4s  %3d pages  %5d words  %s  %s\n",
			s.ID, s.Mode, s.PageCount, s.WordCount,
			s.UpdatedAt.Local().Format(time.DateTime), s.Title)
	}
	fmt.Printf("%d entries\n", len(summaries))
}

func createEntry(ctx context.Context, sess *session.Session, args []string) {
	if len(args) < 2 {
		fmt.Println("usage: create note|book TITLE")
		return
	}
	mode := models.EntryMode(strings.ToUpper(args[0]))
	if !mode.Valid() {
		fmt.Println("mode must be note or book")
		return
	}
	entry, err := sess.CreateEntry(ctx, mode, strings.Join(args[1:], " "), nil)
	if err != nil {
		report(err)
		return
	}
	fmt.Printf("created %s\n", entry.ID)
}

func showEntry(ctx context.Context, sess *session.Session, args []string) {
	if len(args) != 1 {
		fmt.Println("usage: show ID")
		return
	}
	entry, err := sess.ReadEntry(ctx, args[0])
	if err != nil {
		report(err)
		return
	}
	fmt.Printf("%s (%s, rev %d)\n", entry.Title, entry.Mode, entry.Revision)
	if len(entry.Tags) > 0 {
		fmt.Printf("tags: %s\n", strings.Join(entry.Tags, ", "))
	}
	for _, p := range entry.Pages {
		fmt.Printf("--- page %d (%d words)\n%s\n", p.Index, p.WordCount, p.Text)
	}
	if len(entry.Checkboxes) > 0 {
		fmt.Printf("--- checkboxes (%d)\n", len(entry.Checkboxes))
		for _, cb := range entry.Checkboxes {
			mark := " "
			if cb.Checked {
				mark = "x"
			}
			fmt.Printf("[%s] %s (line %d)\n", mark, cb.Text, cb.Position)
		}
	}
}

func editPage(ctx context.Context, sess *session.Session, in *bufio.Reader, args []string) {
	if len(args) != 2 {
		fmt.Println("usage: edit ID PAGE")
		return
	}
	pageIndex, err := strconv.Atoi(args[1])
	if err != nil {
		fmt.Println("PAGE must be a number")
		return
	}

	fmt.Println("enter text, end with a single \".\" on its own line:")
	var lines []string
	for {
		line, err := in.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "." {
			break
		}
		lines = append(lines, line)
	}

	res, err := sess.UpdatePage(ctx, args[0], pageIndex, strings.Join(lines, "\n"))
	if err != nil {
		report(err)
		return
	}
	fmt.Printf("saved, rev %d, %d words\n", res.Revision, res.WordCount)
	if res.OverSoftLimit {
		fmt.Printf("note: page exceeds the soft limit of %d words\n", models.PageSoftWordLimit)
	}
}

func searchEntries(ctx context.Context, sess *session.Session, args []string) {
	hits, err := sess.Search(strings.Join(args, " "))
	if err != nil {
		report(err)
		return
	}
	for _, h := range hits {
		entry, err := sess.ReadEntry(ctx, h.EntryID)
		if err != nil {
			continue
		}
		fmt.Printf("%6.3f  %s  %s\n", h.Score, h.EntryID, entry.Title)
	}
	fmt.Printf("%d hits\n", len(hits))
}

func report(err error) {
	if err == nil {
		fmt.Println("ok")
		return
	}
	fmt.Printf("error: %v\n", err)
}

func printBuildInfo() {
	if buildVersion == "" {
		buildVersion = "N/A"
	}
	if buildDate == "" {
		buildDate = "N/A"
	}
	if buildCommit == "" {
		buildCommit = "N/A"
	}

	fmt.Printf("Build version: %s\n", buildVersion)
	fmt.Printf("Build date: %s\n", buildDate)
	fmt.Printf("Build commit: %s\n", buildCommit)
}
