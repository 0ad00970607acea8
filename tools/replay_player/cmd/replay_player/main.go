package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"intersection/viewer/internal/replay"
	"intersection/viewer/tools/replay_player"
)

func main() {
	path := flag.String("path", "", "Path to a session directory or manifest.json")
	out := flag.String("out", "", "Directory to write re-rendered PNG steps into")
	withPanel := flag.Bool("panel", true, "Compose the analytics panel beside the scene")
	flag.Parse()

	if *path == "" {
		fmt.Fprintln(os.Stderr, "path flag is required")
		os.Exit(1)
	}

	bundle, err := replay.Load(*path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(2)
	}

	//1.- Without an output directory print a JSON summary so callers can pipe it elsewhere.
	if *out == "" {
		summary, err := replayplayer.Summarize(bundle)
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(2)
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(summary); err != nil {
			fmt.Fprintln(os.Stderr, "encode error:", err)
			os.Exit(3)
		}
		return
	}

	//2.- Otherwise rebuild the timeline and redraw each recorded snapshot.
	steps, err := replayplayer.Timeline(bundle)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(2)
	}
	paths, err := replayplayer.RenderSteps(steps, *out, *withPanel)
	if err != nil {
		fmt.Fprintln(os.Stderr, "render error:", err)
		os.Exit(3)
	}
	fmt.Printf("wrote %d frames to %s\n", len(paths), *out)
}
