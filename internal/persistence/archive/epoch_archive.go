package archive

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"platesim/internal/persistence/snapshot"
)

type EpochArchiveMeta struct {
	Epoch      int     `json:"epoch"`
	EndStep    uint64  `json:"end_step"`
	ModelID    string  `json:"model_id"`
	Seed       int64   `json:"seed"`
	Timestep   float64 `json:"timestep"`
	Plates     int     `json:"plates"`
	Fields     int     `json:"fields"`
	Snapshot   string  `json:"snapshot"`
	CreatedAt  string  `json:"created_at"`
	EpochSteps int     `json:"epoch_steps"`
}

// ArchiveEpochSnapshot copies the snapshot closing an epoch into
// `modelDir/archives/epoch_<NNN>/`. A snapshot closes epoch k when its step
// equals k·epochSteps. Other snapshots are left alone (archived=false).
func ArchiveEpochSnapshot(modelDir, snapshotPath string, snap snapshot.SnapshotV1, epochSteps int) (epoch int, archivedPath string, archived bool, err error) {
	if epochSteps <= 0 {
		return 0, "", false, nil
	}
	step := snap.Header.Step
	if step == 0 || step%uint64(epochSteps) != 0 {
		return 0, "", false, nil
	}
	epoch = int(step / uint64(epochSteps))

	archiveDir := filepath.Join(modelDir, "archives", fmt.Sprintf("epoch_%03d", epoch))
	if err := os.MkdirAll(archiveDir, 0o755); err != nil {
		return 0, "", false, err
	}

	dst := filepath.Join(archiveDir, filepath.Base(snapshotPath))
	if err := copyFile(snapshotPath, dst); err != nil {
		return 0, "", false, err
	}

	meta := EpochArchiveMeta{
		Epoch:      epoch,
		EndStep:    step,
		ModelID:    snap.Header.ModelID,
		Seed:       snap.Config.Seed,
		Timestep:   snap.Config.Timestep,
		Plates:     len(snap.Plates),
		Fields:     snap.FieldCount(),
		Snapshot:   filepath.Base(dst),
		CreatedAt:  time.Now().UTC().Format(time.RFC3339Nano),
		EpochSteps: epochSteps,
	}
	if b, err := json.MarshalIndent(meta, "", "  "); err == nil {
		_ = os.WriteFile(filepath.Join(archiveDir, "meta.json"), b, 0o644)
	}

	return epoch, dst, true, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
