// Command replay_catalog lists recorded viewer sessions under a directory.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"intersection/viewer/internal/replay"
)

func main() {
	root := flag.String("dir", ".", "directory containing recorded viewer sessions")
	jsonFlag := flag.Bool("json", false, "emit JSON instead of human-readable output")
	flag.Parse()

	entries, err := replay.Catalog(*root)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if *jsonFlag {
		payload, err := json.MarshalIndent(entries, "", "  ")
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Println(string(payload))
		return
	}

	for _, entry := range entries {
		fmt.Printf("%s (layout %d)\n", entry.Dir, entry.Manifest.Version)
		fmt.Printf("  session: %s\n", entry.Manifest.SessionID)
		if entry.Manifest.Endpoint != "" {
			fmt.Printf("  endpoint: %s\n", entry.Manifest.Endpoint)
		}
		fmt.Printf("  created: %s\n", entry.Manifest.CreatedAt)
		if !entry.Closed() {
			fmt.Println("  unfinished: no header")
			continue
		}
		fmt.Printf("  events: %d frames: %d\n", entry.Header.Events, entry.Header.Frames)
		fmt.Printf("  closed: %s\n", entry.Header.ClosedAt)
	}
}
