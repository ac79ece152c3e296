package main

import (
	"flag"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"pracstore/internal/codec"
	"pracstore/internal/grenade"
)

var grenadeCommands = commandGroup{
	"list": {
		Usage:   "list [-map name]",
		Help:    "list saved throws, optionally for one map",
		Handler: handleGrenadeList,
	},
	"show": {
		Usage:   "show <id> | show -map <map> <name>",
		Help:    "print one saved throw",
		Handler: handleGrenadeShow,
	},
	"import": {
		Usage:   "import <file.json>",
		Help:    "save a throw from a JSON document",
		Handler: handleGrenadeImport,
	},
	"tag": {
		Usage:   "tag <id> <tag>",
		Help:    "tag a throw",
		Handler: handleGrenadeTag,
	},
	"untag": {
		Usage:   "untag <id> <tag>",
		Help:    "remove a tag from a throw",
		Handler: handleGrenadeUntag,
	},
	"rm": {
		Usage:   "rm <id>",
		Help:    "delete a throw",
		Handler: handleGrenadeRemove,
	},
}

func mapFlag(args []string) (string, []string, error) {
	fs := flag.NewFlagSet("grenade", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	mapName := fs.String("map", "", "map name")
	if err := fs.Parse(args); err != nil {
		return "", nil, errUsage
	}
	return *mapName, fs.Args(), nil
}

func parseID(s string) (uint64, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil || id == 0 {
		return 0, errUsage
	}
	return id, nil
}

func printGrenades(env *cliEnv, list []*grenade.Grenade) error {
	return env.out.emit(list, func(tw *tabwriter.Writer) {
		row(tw, "ID", "MAP", "NAME", "TYPE", "TAGS", "UPDATED")
		for _, g := range list {
			row(tw, g.ID, g.Map, g.Name, g.Type, len(g.Tags), ago(g.UpdatedUtc))
		}
	})
}

func handleGrenadeList(env *cliEnv, args []string) error {
	mapName, rest, err := mapFlag(args)
	if err != nil || len(rest) != 0 {
		return errUsage
	}
	svc, err := grenade.NewService(env.backend)
	if err != nil {
		return err
	}
	if mapName != "" {
		return printGrenades(env, svc.ForMap(mapName))
	}
	return printGrenades(env, svc.All())
}

func handleGrenadeShow(env *cliEnv, args []string) error {
	mapName, rest, err := mapFlag(args)
	if err != nil || len(rest) != 1 {
		return errUsage
	}
	svc, err := grenade.NewService(env.backend)
	if err != nil {
		return err
	}
	var g *grenade.Grenade
	if mapName != "" {
		g, err = svc.Get(rest[0], mapName)
	} else {
		id, perr := parseID(rest[0])
		if perr != nil {
			return perr
		}
		g, err = svc.GetByID(id)
	}
	if err != nil {
		return err
	}
	return env.out.emit(g, func(tw *tabwriter.Writer) {
		row(tw, "id", g.ID)
		row(tw, "map", g.Map)
		row(tw, "name", g.Name)
		row(tw, "type", g.Type)
		row(tw, "description", g.Description)
		row(tw, "tags", g.Tags)
		row(tw, "player", g.PlayerID)
		row(tw, "throw", g.ThrowPosition)
		row(tw, "angle", g.Angle)
		row(tw, "velocity", g.Velocity)
		row(tw, "detonation", g.DetonationPosition)
		row(tw, "created", ago(g.CreatedUtc))
		row(tw, "updated", ago(g.UpdatedUtc))
	})
}

func handleGrenadeImport(env *cliEnv, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	in, err := codec.Deserialize[*grenade.Grenade](data)
	if err != nil {
		return err
	}
	svc, err := grenade.NewService(env.backend)
	if err != nil {
		return err
	}
	g, err := svc.Add(in)
	if err != nil {
		return err
	}
	return env.out.message("saved %q on %s (id %d)", g.Name, g.Map, g.ID)
}

func editTags(env *cliEnv, args []string, edit func(g *grenade.Grenade, tag string) error) error {
	if len(args) != 2 {
		return errUsage
	}
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	svc, err := grenade.NewService(env.backend)
	if err != nil {
		return err
	}
	g, err := svc.GetByID(id)
	if err != nil {
		return err
	}
	if err := edit(g, args[1]); err != nil {
		return err
	}
	if err := svc.Update(g); err != nil {
		return err
	}
	return env.out.message("grenade %d tags: %v", g.ID, g.Tags)
}

func handleGrenadeTag(env *cliEnv, args []string) error {
	return editTags(env, args, func(g *grenade.Grenade, tag string) error {
		g.AddTag(tag)
		return nil
	})
}

func handleGrenadeUntag(env *cliEnv, args []string) error {
	return editTags(env, args, (*grenade.Grenade).RemoveTag)
}

func handleGrenadeRemove(env *cliEnv, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	svc, err := grenade.NewService(env.backend)
	if err != nil {
		return err
	}
	if err := svc.Delete(id); err != nil {
		return err
	}
	return env.out.message("deleted grenade %d", id)
}
