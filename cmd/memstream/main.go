// memstream is a debugging CLI for memory-stream URLs: mint them from raw
// capsules, decode them, and reassemble threads, with an optional on-disk
// registry.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/carlmjohnson/versioninfo"
	"github.com/urfave/cli/v2"

	"github.com/phigrid/memorystream/capsule"
	"github.com/phigrid/memorystream/chaingraph"
	"github.com/phigrid/memorystream/kaitime"
	"github.com/phigrid/memorystream/registry"
	"github.com/phigrid/memorystream/segment"
	"github.com/phigrid/memorystream/thread"
	"github.com/phigrid/memorystream/wire"
)

func main() {
	app := cli.App{
		Name:    "memstream",
		Usage:   "mint, decode, and thread self-contained memory-stream URLs",
		Version: versioninfo.Short(),
	}
	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "db",
			Usage:   "registry database directory (omit for in-memory only)",
			EnvVars: []string{"MEMSTREAM_DB"},
		},
		&cli.StringFlag{
			Name:    "base",
			Usage:   "base URL for minted stream URLs",
			Value:   "https://mem.phigrid.net/s",
			EnvVars: []string{"MEMSTREAM_BASE"},
		},
	}
	app.Commands = []*cli.Command{
		cmdNow,
		cmdPulse,
		cmdEncode,
		cmdDecode,
		cmdThread,
		cmdRegistry,
	}
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})
	slog.SetDefault(slog.New(h))
	app.RunAndExitOnError()
}

var cmdNow = &cli.Command{
	Name:  "now",
	Usage: "print the current pulse moment",
	Flags: []cli.Flag{
		&cli.Int64Flag{
			Name:  "ms",
			Usage: "epoch milliseconds to convert instead of the current time",
		},
	},
	Action: func(cctx *cli.Context) error {
		ms := cctx.Int64("ms")
		if !cctx.IsSet("ms") {
			ms = time.Now().UnixMilli()
		}
		m := kaitime.MomentFromEpochMs(ms)
		return printJSON(m)
	},
}

var cmdPulse = &cli.Command{
	Name:      "pulse",
	Usage:     "print the wall-clock instant a pulse begins",
	ArgsUsage: "<pulse>",
	Action: func(cctx *cli.Context) error {
		raw := cctx.Args().First()
		if raw == "" {
			return fmt.Errorf("need a pulse number as an argument")
		}
		pulse, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("not a pulse number: %w", err)
		}
		ts := kaitime.TimeFromPulse(pulse)
		fmt.Printf("%d\t%s\n", kaitime.EpochMsFromPulse(pulse), ts.Format(time.RFC3339Nano))
		return nil
	},
}

var cmdEncode = &cli.Command{
	Name:      "encode",
	Usage:     "mint stream URLs for a capsule JSON file (- for stdin)",
	ArgsUsage: "<capsule.json>",
	Flags: []cli.Flag{
		&cli.StringSliceFlag{
			Name:  "add",
			Usage: "ancestor reference (repeatable, oldest first)",
		},
		&cli.IntFlag{
			Name:  "cap",
			Usage: "hard URL length cap",
			Value: wire.FragmentHardCap,
		},
	},
	Action: runEncode,
}

func runEncode(cctx *cli.Context) error {
	obj, err := readCapsule(cctx.Args().First())
	if err != nil {
		return err
	}
	rootRef, err := capsule.EncodePayloadRef(obj)
	if err != nil {
		return err
	}

	var adds []capsule.PayloadRef
	for _, raw := range cctx.StringSlice("add") {
		ref, ok := thread.NormalizeRef(raw)
		if !ok {
			return fmt.Errorf("not a usable ancestor reference: %q", raw)
		}
		adds = append(adds, ref)
	}

	b := segment.NewBuilder(cctx.String("base"))
	b.HardCap = cctx.Int("cap")
	pack, err := b.BuildSegmentedPack(rootRef, adds)
	if err != nil {
		return err
	}

	reg, closeStores, err := openRegistry(cctx, registry.RoleContent)
	if err != nil {
		return err
	}
	defer closeStores()
	reg.Upsert(capsule.ContentKey(obj), pack.Primary.URL)

	fmt.Println(pack.Primary.URL)
	for _, arch := range pack.Archives {
		fmt.Println(arch.URL)
	}
	slog.Info("encoded", "key", capsule.ContentKey(obj), "adds", len(adds), "archives", len(pack.Archives))
	return nil
}

var cmdDecode = &cli.Command{
	Name:      "decode",
	Usage:     "decode a stream URL and print its capsule and chain",
	ArgsUsage: "<url>",
	Action: func(cctx *cli.Context) error {
		raw := cctx.Args().First()
		if raw == "" {
			return fmt.Errorf("need a URL as an argument")
		}
		if f, err := wire.ParseFragmentURL(raw); err == nil {
			obj, err := capsule.DecodeCapsule(f.Root)
			if err != nil {
				return err
			}
			return printJSON(map[string]any{
				"form":    "fragment",
				"version": f.Version,
				"key":     capsule.ContentKey(obj),
				"capsule": obj,
				"adds":    f.Adds,
			})
		}
		tok, err := wire.DecodePathToken(raw)
		if err != nil {
			return fmt.Errorf("URL is neither fragment nor path form: %w", err)
		}
		return printJSON(map[string]any{
			"form":    "path",
			"key":     capsule.ContentKey(tok.Capsule()),
			"capsule": tok,
		})
	},
}

var cmdThread = &cli.Command{
	Name:      "thread",
	Usage:     "assemble the conversation thread a stream URL belongs to",
	ArgsUsage: "<url>",
	Action: runThread,
}

func runThread(cctx *cli.Context) error {
	raw := cctx.Args().First()
	if raw == "" {
		return fmt.Errorf("need a URL as an argument")
	}
	reg, closeStores, err := openRegistry(cctx, registry.RoleContent)
	if err != nil {
		return err
	}
	defer closeStores()

	graph, err := chaingraph.New(chaingraph.DefaultMaxNodes)
	if err != nil {
		return err
	}
	rv := thread.NewResolver(graph, reg)
	th, err := rv.Open(cctx.Context, raw)
	if err != nil {
		return err
	}
	graph.Flush()
	return printJSON(th)
}

var cmdRegistry = &cli.Command{
	Name:  "registry",
	Usage: "list the persisted registry",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "role",
			Usage: "which store to read: content or feed",
			Value: string(registry.RoleContent),
		},
	},
	Action: func(cctx *cli.Context) error {
		reg, closeStores, err := openRegistry(cctx, registry.Role(cctx.String("role")))
		if err != nil {
			return err
		}
		defer closeStores()
		for _, e := range reg.Snapshot() {
			fmt.Printf("%s\t%d\t%s\n", e.Key, e.Depth, e.URL)
		}
		return nil
	},
}

func openRegistry(cctx *cli.Context, role registry.Role) (*registry.Registry, func(), error) {
	dir := cctx.String("db")
	if dir == "" {
		return registry.New(role, nil, nil), func() {}, nil
	}
	store, err := registry.OpenStore(dir)
	if err != nil {
		return nil, nil, err
	}
	reg := registry.New(role, store, registry.NewLocalNotifier())
	return reg, func() { store.Close() }, nil
}

func readCapsule(path string) (map[string]any, error) {
	var r io.Reader
	switch path {
	case "", "-":
		r = os.Stdin
	default:
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, fmt.Errorf("capsule is not a JSON object: %w", err)
	}
	return obj, nil
}

func printJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}
