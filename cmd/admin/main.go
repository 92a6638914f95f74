package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	persistlog "platesim/internal/persistence/log"
	"platesim/internal/persistence/snapshot"
	"platesim/internal/persistence/store"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "state":
			httpCmd("state", http.MethodGet, "/admin/v1/state", os.Args[2:])
			return
		case "snapshot":
			httpCmd("snapshot", http.MethodPost, "/admin/v1/snapshot", os.Args[2:])
			return
		case "pause":
			httpCmd("pause", http.MethodPost, "/admin/v1/pause", os.Args[2:])
			return
		case "resume":
			httpCmd("resume", http.MethodPost, "/admin/v1/resume", os.Args[2:])
			return
		case "audit":
			auditCmd(os.Args[2:])
			return
		case "store":
			storeCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

// listCmd prints the model directories and their newest snapshot.
func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	_ = fs.Parse(args)

	base := filepath.Join(*dataDir, "models")
	entries, err := os.ReadDir(base)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		latest := "-"
		if h, err := latestHeader(filepath.Join(base, e.Name())); err == nil {
			latest = fmt.Sprintf("step=%d", h.Step)
		}
		fmt.Printf("%s\t%s\n", e.Name(), latest)
	}
}

func auditCmd(args []string) {
	fs := flag.NewFlagSet("audit", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	modelID := fs.String("model", "", "model id")
	sinceStep := fs.Uint64("since_step", 0, "only entries at or after this step")
	action := fs.String("action", "", "only this action, e.g. SET_FIELD_TYPE")
	_ = fs.Parse(args)

	if strings.TrimSpace(*modelID) == "" {
		fmt.Fprintln(os.Stderr, "missing -model")
		os.Exit(2)
	}
	files, err := persistlog.Files(filepath.Join(*dataDir, "models", *modelID, "audit"), "audit")
	if err != nil {
		fmt.Fprintln(os.Stderr, "list audit:", err)
		os.Exit(1)
	}
	for _, seg := range files {
		if seg.Last < *sinceStep {
			continue
		}
		err := persistlog.ReadJSONL(seg.Path, func(e persistlog.AuditEntry) error {
			if e.Step < *sinceStep || (*action != "" && e.Action != *action) {
				return nil
			}
			fmt.Printf("%s\tstep=%d\t%s\t%s\t%s\n", e.At, e.Step, e.Actor, e.Action, e.Detail)
			return nil
		})
		if err != nil {
			fmt.Fprintln(os.Stderr, "read audit:", err)
			os.Exit(1)
		}
	}
}

// storeCmd manages the saved-model store offline: ls, export, import, rm.
func storeCmd(args []string) {
	fs := flag.NewFlagSet("store", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	id := fs.String("id", "", "model id (export, rm)")
	path := fs.String("snapshot", "", "snapshot path (export target, import source)")
	_ = fs.Parse(args)

	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: admin store [flags] ls|export|import|rm")
		os.Exit(2)
	}
	st, err := store.Open(filepath.Join(*dataDir, "models.sqlite"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "open store:", err)
		os.Exit(1)
	}
	defer st.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch fs.Arg(0) {
	case "ls":
		entries, err := st.List(ctx, 0)
		if err != nil {
			fmt.Fprintln(os.Stderr, "list:", err)
			os.Exit(1)
		}
		for _, e := range entries {
			fmt.Printf("%s\tstep=%d\tplates=%d\tfields=%d\t%s\t%s\n", e.ID, e.Step, e.Plates, e.Fields, e.Size(), e.CreatedAt)
		}
	case "export":
		if *id == "" || *path == "" {
			fmt.Fprintln(os.Stderr, "export needs -id and -snapshot")
			os.Exit(2)
		}
		snap, err := st.Get(ctx, *id)
		if err != nil {
			fmt.Fprintln(os.Stderr, "get:", err)
			os.Exit(1)
		}
		if err := snapshot.WriteSnapshot(*path, snap); err != nil {
			fmt.Fprintln(os.Stderr, "write:", err)
			os.Exit(1)
		}
		fmt.Printf("exported %s step=%d to %s\n", *id, snap.Header.Step, *path)
	case "import":
		if *path == "" {
			fmt.Fprintln(os.Stderr, "import needs -snapshot")
			os.Exit(2)
		}
		snap, err := snapshot.ReadSnapshot(*path)
		if err != nil {
			fmt.Fprintln(os.Stderr, "read:", err)
			os.Exit(1)
		}
		newID, err := st.Put(ctx, snap)
		if err != nil {
			fmt.Fprintln(os.Stderr, "put:", err)
			os.Exit(1)
		}
		fmt.Println(newID)
	case "rm":
		if err := st.Delete(ctx, *id); err != nil {
			fmt.Fprintln(os.Stderr, "delete:", err)
			os.Exit(1)
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown store command %q\n", fs.Arg(0))
		os.Exit(2)
	}
}

func latestHeader(modelDir string) (snapshot.Header, error) {
	matches, err := filepath.Glob(filepath.Join(modelDir, "snapshots", "*.snap.zst"))
	if err != nil || len(matches) == 0 {
		return snapshot.Header{}, os.ErrNotExist
	}
	var best snapshot.Header
	found := false
	for _, m := range matches {
		h, err := snapshot.ReadHeader(m)
		if err != nil {
			continue
		}
		if !found || h.Step > best.Step {
			best, found = h, true
		}
	}
	if !found {
		return best, os.ErrNotExist
	}
	return best, nil
}
