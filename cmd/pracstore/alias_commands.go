package main

import (
	"flag"
	"io"
	"strings"
	"text/tabwriter"

	"pracstore/internal/alias"
)

var aliasCommands = commandGroup{
	"list": {
		Usage:   "list [-player id]",
		Help:    "list global aliases, or one player's aliases",
		Handler: handleAliasList,
	},
	"add": {
		Usage:   "add [-player id] <alias> <command...>",
		Help:    "register a global or player alias",
		Handler: handleAliasAdd,
	},
	"rm": {
		Usage:   "rm [-player id] <alias>",
		Help:    "remove a global or player alias",
		Handler: handleAliasRemove,
	},
	"resolve": {
		Usage:   "resolve [-player id] <alias>",
		Help:    "print the command an alias expands to",
		Handler: handleAliasResolve,
	},
}

// playerFlags parses an optional -player flag ahead of positional args.
func playerFlags(args []string) (uint64, []string, error) {
	fs := flag.NewFlagSet("alias", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	player := fs.Uint64("player", 0, "player steam id")
	if err := fs.Parse(args); err != nil {
		return 0, nil, errUsage
	}
	return *player, fs.Args(), nil
}

func openAliases(env *cliEnv) (*alias.Service, error) {
	return alias.NewService(env.ctx, env.backend)
}

func handleAliasList(env *cliEnv, args []string) error {
	player, rest, err := playerFlags(args)
	if err != nil || len(rest) != 0 {
		return errUsage
	}
	svc, err := openAliases(env)
	if err != nil {
		return err
	}
	if player != 0 {
		list := svc.PlayerAliases(player)
		return env.out.emit(list, func(tw *tabwriter.Writer) {
			row(tw, "ID", "ALIAS", "COMMAND", "UPDATED")
			for _, a := range list {
				row(tw, a.ID, a.Alias, a.Command, ago(a.UpdatedUtc))
			}
		})
	}
	list := svc.Globals()
	return env.out.emit(list, func(tw *tabwriter.Writer) {
		row(tw, "ID", "ALIAS", "COMMAND", "UPDATED")
		for _, a := range list {
			row(tw, a.ID, a.Alias, a.Command, ago(a.UpdatedUtc))
		}
	})
}

func handleAliasAdd(env *cliEnv, args []string) error {
	player, rest, err := playerFlags(args)
	if err != nil || len(rest) < 2 {
		return errUsage
	}
	svc, err := openAliases(env)
	if err != nil {
		return err
	}
	name, command := rest[0], strings.Join(rest[1:], " ")
	if player != 0 {
		a, err := svc.AddPlayer(player, name, command)
		if err != nil {
			return err
		}
		return env.out.message("added alias %q for player %d (id %d)", alias.Normalize(a.Alias), player, a.ID)
	}
	a, err := svc.AddGlobal(name, command)
	if err != nil {
		return err
	}
	return env.out.message("added global alias %q (id %d)", alias.Normalize(a.Alias), a.ID)
}

func handleAliasRemove(env *cliEnv, args []string) error {
	player, rest, err := playerFlags(args)
	if err != nil || len(rest) != 1 {
		return errUsage
	}
	svc, err := openAliases(env)
	if err != nil {
		return err
	}
	if player != 0 {
		if err := svc.DeletePlayer(player, rest[0]); err != nil {
			return err
		}
	} else if err := svc.DeleteGlobal(rest[0]); err != nil {
		return err
	}
	return env.out.message("removed alias %q", alias.Normalize(rest[0]))
}

func handleAliasResolve(env *cliEnv, args []string) error {
	player, rest, err := playerFlags(args)
	if err != nil || len(rest) != 1 {
		return errUsage
	}
	svc, err := openAliases(env)
	if err != nil {
		return err
	}
	var cmd string
	if player != 0 {
		cmd, err = svc.Resolve(player, rest[0])
	} else {
		cmd, err = svc.ResolveGlobal(rest[0])
	}
	if err != nil {
		return err
	}
	return env.out.emit(map[string]string{"alias": alias.Normalize(rest[0]), "command": cmd},
		func(tw *tabwriter.Writer) { row(tw, cmd) })
}
