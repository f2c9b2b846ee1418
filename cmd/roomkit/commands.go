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
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"go.mau.fi/roomkit/memberinfo"
	"go.mau.fi/roomkit/roomlist"
)

var errQuit = errors.New("quit")

type command struct {
	usage   string
	minArgs int

	// needsRoom commands act on the selected room.
	needsRoom bool
	fn        func(a *app, ctx context.Context, roomID id.RoomID, args []string) error
}

var commands map[string]*command

func init() {
	commands = map[string]*command{
		"rooms":   {usage: "rooms", fn: (*app).cmdRooms},
		"select":  {usage: "select <room ID>", minArgs: 1, fn: (*app).cmdSelect},
		"history": {usage: "history [limit]", needsRoom: true, fn: (*app).cmdHistory},
		"call":    {usage: "call [offer SDP]", needsRoom: true, fn: (*app).cmdCall},
		"hangup":  {usage: "hangup", fn: (*app).cmdHangup},
		"member":  {usage: "member <user ID>", minArgs: 1, needsRoom: true, fn: (*app).cmdMember},
		"watch":   {usage: "watch <user ID>", minArgs: 1, needsRoom: true, fn: (*app).cmdWatch},
		"unwatch": {usage: "unwatch", fn: (*app).cmdUnwatch},
		"kick":    {usage: "kick <user ID> [reason]", minArgs: 1, needsRoom: true, fn: (*app).cmdKick},
		"ban":     {usage: "ban <user ID> [reason]", minArgs: 1, needsRoom: true, fn: (*app).cmdBan},
		"mute":    {usage: "mute <user ID>", minArgs: 1, needsRoom: true, fn: (*app).cmdMute},
		"chat":    {usage: "chat <user ID>", minArgs: 1, fn: (*app).cmdChat},
		"help":    {usage: "help", fn: (*app).cmdHelp},
		"quit":    {usage: "quit", fn: func(*app, context.Context, id.RoomID, []string) error { return errQuit }},
	}
}

func (a *app) repl(ctx context.Context) error {
	for {
		line, err := a.rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		} else if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("failed to read input: %w", err)
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		err = a.execute(ctx, strings.ToLower(fields[0]), fields[1:])
		if errors.Is(err, errQuit) {
			return nil
		} else if err != nil {
			a.printf("Error: %v", err)
		}
	}
}

func (a *app) execute(ctx context.Context, name string, args []string) error {
	cmd, ok := commands[name]
	if !ok {
		return fmt.Errorf("unknown command %q, type help for a list of commands", name)
	} else if len(args) < cmd.minArgs {
		return fmt.Errorf("usage: %s", cmd.usage)
	}
	roomID := a.tracker.Snapshot().Selected
	if cmd.needsRoom && roomID == "" {
		return fmt.Errorf("no room selected")
	}
	log := a.log.With().Str("command", name).Stringer("room_id", roomID).Logger()
	return cmd.fn(a, log.WithContext(ctx), roomID, args)
}

func (a *app) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(a.rl.Stdout(), format+"\n", args...)
}

func (a *app) cmdHelp(_ context.Context, _ id.RoomID, _ []string) error {
	for _, name := range []string{"rooms", "select", "history", "call", "hangup", "member", "watch", "unwatch", "kick", "ban", "mute", "chat", "quit"} {
		a.printf("  %s", commands[name].usage)
	}
	return nil
}

func activityMarker(level roomlist.ActivityLevel) string {
	switch level {
	case roomlist.ActivityHighlight:
		return "!"
	case roomlist.ActivityUnread:
		return "*"
	default:
		return " "
	}
}

func (a *app) cmdRooms(_ context.Context, _ id.RoomID, _ []string) error {
	snapshot := a.tracker.Snapshot()
	for _, room := range snapshot.Rooms {
		selected := " "
		if room.ID == snapshot.Selected {
			selected = ">"
		}
		a.printf("%s%s %s (%s, %d members)", selected, activityMarker(snapshot.Activity.Get(room.ID)),
			room.DisplayName(), room.ID, room.JoinedMemberCount())
	}
	return nil
}

func (a *app) cmdSelect(_ context.Context, _ id.RoomID, args []string) error {
	roomID := id.RoomID(args[0])
	if a.rooms.GetRoom(roomID) == nil {
		return fmt.Errorf("unknown room %s", roomID)
	}
	a.tracker.SetSelectedRoom(roomID)
	return nil
}

func (a *app) cmdHistory(ctx context.Context, roomID id.RoomID, args []string) error {
	limit := 20
	if len(args) > 0 {
		var err error
		limit, err = strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid limit: %w", err)
		}
	}
	resp, err := a.client.Paginate(ctx, roomID, "", limit)
	if err != nil {
		return fmt.Errorf("failed to fetch history: %w", err)
	}
	for i := len(resp.Chunk) - 1; i >= 0; i-- {
		evt := resp.Chunk[i]
		a.printf("%s <%s> %s", time.UnixMilli(evt.Timestamp).Format(time.DateTime), evt.Sender, evt.Type.Type)
	}
	return nil
}

func (a *app) cmdCall(ctx context.Context, roomID id.RoomID, args []string) error {
	call, err := a.bridge.SetupConferenceCall(ctx, roomID)
	if err != nil {
		return err
	}
	a.lastCall = call
	a.printf("Conference call %s ready in %s", call.CallID, call.RoomID)
	if len(args) > 0 {
		evtID, err := call.Invite(ctx, strings.Join(args, " "), 0)
		if err != nil {
			return err
		}
		a.printf("Sent call invite %s", evtID)
	}
	return nil
}

func (a *app) cmdHangup(ctx context.Context, _ id.RoomID, _ []string) error {
	if a.lastCall == nil {
		return fmt.Errorf("no active call")
	}
	err := a.lastCall.Hangup(ctx, event.CallHangupUserHangup)
	if err != nil {
		return err
	}
	a.lastCall = nil
	return nil
}

func (a *app) printInfo(info *memberinfo.Info) {
	membership := "unknown"
	name := info.UserID.String()
	level := 0
	if info.Member != nil {
		membership = string(info.Member.Membership)
		level = info.Member.PowerLevel
		if info.Member.Displayname != "" {
			name = fmt.Sprintf("%s (%s)", info.Member.Displayname, info.UserID)
		}
	}
	presence := "unknown"
	if info.Presence != nil {
		presence = fmt.Sprintf("%s, last active %s ago", info.Presence.Presence, info.LastActiveAgo)
	}
	a.printf("%s: %s, power level %d, presence %s", name, membership, level, presence)
	a.printf("  can kick: %t, can ban: %t, can mute: %t, muted: %t", info.Can.Kick, info.Can.Ban, info.Can.Mute, info.Muted)
}

func (a *app) cmdMember(_ context.Context, roomID id.RoomID, args []string) error {
	info, err := a.members.Info(roomID, id.UserID(args[0]))
	if err != nil {
		return err
	}
	a.printInfo(info)
	return nil
}

func (a *app) cmdWatch(_ context.Context, roomID id.RoomID, args []string) error {
	if a.watcher != nil {
		a.watcher.Close()
	}
	a.watcher = a.members.Watch(a.bus, roomID, id.UserID(args[0]), a.printInfo)
	return nil
}

func (a *app) cmdUnwatch(_ context.Context, _ id.RoomID, _ []string) error {
	if a.watcher != nil {
		a.watcher.Close()
		a.watcher = nil
	}
	return nil
}

func (a *app) cmdKick(ctx context.Context, roomID id.RoomID, args []string) error {
	return a.members.Kick(ctx, roomID, id.UserID(args[0]), strings.Join(args[1:], " "))
}

func (a *app) cmdBan(ctx context.Context, roomID id.RoomID, args []string) error {
	return a.members.Ban(ctx, roomID, id.UserID(args[0]), strings.Join(args[1:], " "))
}

func (a *app) cmdMute(ctx context.Context, roomID id.RoomID, args []string) error {
	muted, err := a.members.ToggleMute(ctx, roomID, id.UserID(args[0]))
	if err != nil {
		return err
	} else if muted {
		a.printf("Muted %s", args[0])
	} else {
		a.printf("Unmuted %s", args[0])
	}
	return nil
}

func (a *app) cmdChat(ctx context.Context, _ id.RoomID, args []string) error {
	roomID, created, err := a.members.StartChat(ctx, id.UserID(args[0]))
	if err != nil {
		return err
	}
	if created {
		a.printf("Created direct chat %s", roomID)
	}
	if a.rooms.GetRoom(roomID) != nil {
		a.tracker.SetSelectedRoom(roomID)
	}
	return nil
}
