// Command replay loads a snapshot, prints a summary and re-runs the model
// to verify determinism: against the recorded step log when -steps_dir is
// given, and against a second restored copy otherwise.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"

	persistlog "platesim/internal/persistence/log"
	"platesim/internal/persistence/snapshot"
	"platesim/internal/sim/grid"
	"platesim/internal/sim/tectonics"
)

var errStop = errors.New("stop")

func main() {
	var (
		snapPath = flag.String("snapshot", "", "path to .snap.zst")
		stepsDir = flag.String("steps_dir", "", "dir containing steps-*.jsonl.zst to verify against (optional)")
		steps    = flag.Int("steps", 0, "steps to run when no step log is given")
		toStep   = flag.Uint64("to_step", 0, "stop at step (inclusive, optional)")
		outPath  = flag.String("out", "", "write the final model to this snapshot path (optional)")
	)
	flag.Parse()

	if *snapPath == "" {
		fmt.Fprintln(os.Stderr, "missing -snapshot")
		os.Exit(2)
	}

	snap, err := snapshot.ReadSnapshot(*snapPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read snapshot:", err)
		os.Exit(1)
	}
	var size string
	if st, err := os.Stat(*snapPath); err == nil {
		size = humanize.Bytes(uint64(st.Size()))
	}
	fmt.Printf("snapshot v%d model=%s step=%d seed=%d divisions=%d plates=%d fields=%s size=%s\n",
		snap.Header.Version, snap.Header.ModelID, snap.Header.Step, snap.Config.Seed, snap.Grid.Divisions,
		len(snap.Plates), humanize.Comma(int64(snap.FieldCount())), size)

	g, err := grid.New(tectonics.GridOptions(snap))
	if err != nil {
		fmt.Fprintln(os.Stderr, "grid:", err)
		os.Exit(1)
	}
	m, err := tectonics.DeserializeModel(g, snap)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load:", err)
		os.Exit(1)
	}
	dt := m.Config().Timestep

	if *stepsDir != "" {
		checked, err := verifyLog(m, *stepsDir, *toStep)
		if err != nil {
			fmt.Fprintln(os.Stderr, "replay:", err)
			os.Exit(1)
		}
		fmt.Printf("replay ok: checked=%d steps (from snapshot step=%d)\n", checked, snap.Header.Step)
	} else if *steps > 0 {
		twin, err := tectonics.DeserializeModel(g, snap)
		if err != nil {
			fmt.Fprintln(os.Stderr, "load:", err)
			os.Exit(1)
		}
		for i := 0; i < *steps; i++ {
			if err := m.Step(dt); err != nil {
				fmt.Fprintf(os.Stderr, "step %d: %v\n", m.StepIdx(), err)
				os.Exit(1)
			}
			if err := twin.Step(dt); err != nil {
				fmt.Fprintf(os.Stderr, "twin step %d: %v\n", twin.StepIdx(), err)
				os.Exit(1)
			}
			if a, b := m.StateDigest(), twin.StateDigest(); a != b {
				fmt.Fprintf(os.Stderr, "nondeterministic at step %d: %s != %s\n", m.StepIdx(), a, b)
				os.Exit(1)
			}
		}
		st := m.Stats()
		fmt.Printf("ran %d steps: step=%d digest=%s subducting=%d orogeny=%d subplate=%d\n",
			*steps, m.StepIdx(), m.StateDigest(), st.Subducting, st.Orogeny, st.Subplate)
	}

	if *outPath != "" {
		if err := snapshot.WriteSnapshot(*outPath, m.Serialize(snap.Header.ModelID)); err != nil {
			fmt.Fprintln(os.Stderr, "write snapshot:", err)
			os.Exit(1)
		}
		fmt.Printf("wrote %s at step %d\n", *outPath, m.StepIdx())
	}
}

// verifyLog steps m once per logged entry after the snapshot step and
// compares state digests.
func verifyLog(m *tectonics.Model, dir string, toStep uint64) (uint64, error) {
	files, err := persistlog.Files(dir, "steps")
	if err != nil {
		return 0, err
	}
	if len(files) == 0 {
		return 0, fmt.Errorf("no step logs found in %s", dir)
	}
	dt := m.Config().Timestep
	var checked uint64
	for _, seg := range files {
		if seg.Last <= m.StepIdx() {
			continue
		}
		if toStep != 0 && seg.First > toStep {
			break
		}
		err := persistlog.ReadJSONL(seg.Path, func(e tectonics.StepLogEntry) error {
			if e.Step <= m.StepIdx() {
				return nil
			}
			if toStep != 0 && e.Step > toStep {
				return errStop
			}
			if e.Step != m.StepIdx()+1 {
				return fmt.Errorf("step log gap: have step %d, next entry %d", m.StepIdx(), e.Step)
			}
			if err := m.Step(dt); err != nil {
				return fmt.Errorf("step %d: %w", e.Step, err)
			}
			if got := m.StateDigest(); got != e.Digest {
				return fmt.Errorf("digest mismatch at step %d: got %s want %s", e.Step, got, e.Digest)
			}
			checked++
			return nil
		})
		if errors.Is(err, errStop) {
			break
		}
		if err != nil {
			return checked, err
		}
	}
	return checked, nil
}
