package main

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"pracstore/internal/backend"
)

var errUsage = errors.New("usage")

type cliEnv struct {
	ctx     context.Context
	backend *backend.Backend
	out     *printer
}

type command struct {
	Usage   string
	Help    string
	Handler func(env *cliEnv, args []string) error
}

type commandGroup map[string]command

var groups = map[string]commandGroup{
	"alias":    aliasCommands,
	"grenade":  grenadeCommands,
	"settings": settingsCommands,
}

func groupNames() []string {
	names := make([]string, 0, len(groups))
	for n := range groups {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (g commandGroup) dispatch(env *cliEnv, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: missing subcommand", errUsage)
	}
	cmd, ok := g[args[0]]
	if !ok {
		return fmt.Errorf("%w: unknown subcommand %q", errUsage, args[0])
	}
	err := cmd.Handler(env, args[1:])
	if err == errUsage {
		return fmt.Errorf("%w: %s", errUsage, cmd.Usage)
	}
	return err
}

func (g commandGroup) usage(group string) []string {
	subs := make([]string, 0, len(g))
	for s := range g {
		subs = append(subs, s)
	}
	sort.Strings(subs)
	lines := make([]string, 0, len(subs))
	for _, s := range subs {
		lines = append(lines, fmt.Sprintf("%-48s %s", group+" "+g[s].Usage, g[s].Help))
	}
	return lines
}
