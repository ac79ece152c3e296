package main

import (
	"strconv"
	"text/tabwriter"

	"pracstore/internal/settings"
)

var settingsCommands = commandGroup{
	"show": {
		Usage:   "show",
		Help:    "print the current settings",
		Handler: handleSettingsShow,
	},
	"set": {
		Usage:   "set <key> <true|false>",
		Help:    "change one setting",
		Handler: handleSettingsSet,
	},
	"reset": {
		Usage:   "reset",
		Help:    "restore default settings",
		Handler: handleSettingsReset,
	},
}

func handleSettingsShow(env *cliEnv, args []string) error {
	if len(args) != 0 {
		return errUsage
	}
	svc, err := settings.NewService(env.backend)
	if err != nil {
		return err
	}
	doc, err := svc.Get()
	if err != nil {
		return err
	}
	return env.out.emit(doc, func(tw *tabwriter.Writer) {
		for _, key := range settings.Keys() {
			v, _ := svc.Flag(key)
			row(tw, key, v)
		}
		row(tw, "updated", ago(doc.UpdatedUtc))
	})
}

func handleSettingsSet(env *cliEnv, args []string) error {
	if len(args) != 2 {
		return errUsage
	}
	value, err := strconv.ParseBool(args[1])
	if err != nil {
		return errUsage
	}
	svc, err := settings.NewService(env.backend)
	if err != nil {
		return err
	}
	if err := svc.Set(args[0], value); err != nil {
		return err
	}
	return env.out.message("%s = %t", args[0], value)
}

func handleSettingsReset(env *cliEnv, args []string) error {
	if len(args) != 0 {
		return errUsage
	}
	svc, err := settings.NewService(env.backend)
	if err != nil {
		return err
	}
	if err := svc.Reset(); err != nil {
		return err
	}
	return env.out.message("settings reset to defaults")
}
