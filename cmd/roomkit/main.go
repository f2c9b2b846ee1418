// Copyright (c) 2026 Tulir Asokan
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/chzyer/readline"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"go.mau.fi/util/dbutil"
	"go.mau.fi/util/exerrors"
	"go.mau.fi/util/exzerolog"
	"go.mau.fi/zeroconfig"
	"golang.org/x/sync/errgroup"
	flag "maunium.net/go/mauflag"
	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/sqlstatestore"

	"go.mau.fi/roomkit/conference"
	"go.mau.fi/roomkit/config"
	"go.mau.fi/roomkit/eventbus"
	"go.mau.fi/roomkit/matrixclient"
	"go.mau.fi/roomkit/memberinfo"
	"go.mau.fi/roomkit/roomlist"
	"go.mau.fi/roomkit/roomstore"
	"go.mau.fi/roomkit/voip"
)

var configPath = flag.MakeFull("c", "config", "The path to your config file.", "config.yaml").String()
var writeExampleConfig = flag.MakeFull("e", "generate-example-config", "Save the example config to the config path and quit.", "false").Bool()
var wantHelp, _ = flag.MakeHelpFlag()

var writerTypeReadline zeroconfig.WriterType = "readline"

func main() {
	flag.SetHelpTitles("roomkit - A Matrix room list and conference call client", "roomkit [-he] [-c <path>]")
	err := flag.Parse()
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		flag.PrintHelp()
		os.Exit(1)
	} else if *wantHelp {
		flag.PrintHelp()
		os.Exit(0)
	} else if *writeExampleConfig {
		exerrors.PanicIfNotNil(os.WriteFile(*configPath, []byte(config.ExampleConfig), 0600))
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(10)
	} else if err = cfg.Validate(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "Invalid config:", err)
		os.Exit(11)
	}

	rl := exerrors.Must(readline.New("> "))
	defer func() {
		_ = rl.Close()
	}()
	zeroconfig.RegisterWriter(writerTypeReadline, func(_ *zeroconfig.WriterConfig) (io.Writer, error) {
		return rl.Stdout(), nil
	})
	log, err := cfg.Logging.Compile()
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "Failed to initialize logger:", err)
		os.Exit(12)
	}
	exzerolog.SetupDefaults(log)

	ctx, cancel := context.WithCancel(log.WithContext(context.Background()))
	defer cancel()
	a, err := newApp(ctx, cfg, log, rl)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize")
	}
	err = a.run(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Exited with error")
	}
}

type app struct {
	log *zerolog.Logger
	rl  *readline.Instance

	client  *matrixclient.Client
	rooms   *roomstore.Store
	bus     *eventbus.Bus
	tracker *roomlist.Tracker
	bridge  *conference.Bridge
	members *memberinfo.Engine

	lastCall *voip.Call
	watcher  *memberinfo.Watcher
}

func newApp(ctx context.Context, cfg *config.Config, log *zerolog.Logger, rl *readline.Instance) (*app, error) {
	cli, err := mautrix.NewClient(cfg.Homeserver.URL, cfg.Homeserver.UserID, cfg.Homeserver.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	cli.DeviceID = cfg.Homeserver.DeviceID
	cli.Log = log.With().Str("component", "matrix").Logger()
	if cfg.Database.Type != "" {
		db, err := dbutil.NewFromConfig("roomkit", cfg.Database, dbutil.ZeroLogger(log.With().Str("db_section", "main").Logger()))
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		stateStore := sqlstatestore.NewSQLStateStore(db, dbutil.ZeroLogger(log.With().Str("db_section", "matrix_state").Logger()), false)
		err = stateStore.Upgrade(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to upgrade state store: %w", err)
		}
		cli.StateStore = stateStore
	} else {
		cli.StateStore = mautrix.NewMemoryStateStore()
	}

	a := &app{
		log:   log,
		rl:    rl,
		rooms: roomstore.New(),
		bus:   eventbus.New(),
	}
	a.client = matrixclient.New(cli, a.rooms, a.bus)
	syncer, ok := cli.Syncer.(*mautrix.DefaultSyncer)
	if !ok {
		return nil, errors.New("client syncer is not a DefaultSyncer")
	}
	a.client.Register(syncer)

	codec := cfg.Conference.Codec()
	a.tracker = roomlist.NewTracker(a.bus, a.rooms, a.client, cli.UserID, roomlist.Options{
		HideConferenceRooms: cfg.Conference.HideRooms,
		Codec:               codec,
	})
	a.tracker.OnChange(a.updatePrompt)
	a.bridge = conference.NewBridge(cli.UserID, a.client, a.rooms, &voip.Factory{Sender: a.client})
	a.bridge.Codec = codec
	a.bridge.Log = log.With().Str("component", "conference").Logger()
	a.members = memberinfo.NewEngine(cli.UserID, a.client, a.rooms)
	return a, nil
}

func (a *app) run(ctx context.Context) error {
	defer a.tracker.Close()
	err := a.client.LoadPushRules(ctx)
	if err != nil {
		a.log.Warn().Err(err).Msg("Failed to load push rules, highlights will only work after the next change")
	}

	eg, ctx := errgroup.WithContext(ctx)
	replCtx, stopRepl := context.WithCancel(ctx)
	eg.Go(func() error {
		err := a.client.Sync(replCtx)
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("sync failed: %w", err)
		}
		return nil
	})
	eg.Go(func() error {
		<-replCtx.Done()
		return a.rl.Close()
	})
	eg.Go(func() error {
		defer stopRepl()
		return a.repl(replCtx)
	})
	return eg.Wait()
}

func (a *app) updatePrompt(snapshot *roomlist.Snapshot) {
	selected := "no room"
	if snapshot.Selected != "" {
		selected = snapshot.Selected.String()
	}
	a.rl.SetPrompt(fmt.Sprintf("[%s] (%d active)> ", selected, len(snapshot.Activity)))
}
