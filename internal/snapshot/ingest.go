package snapshot

import (
	"errors"
	"fmt"
	"log/slog"
)

const (
	// MaxRefsPerObject bounds per-object work and memory against
	// pathological objects such as giant reference arrays. Truncation
	// makes the dominator relation an over-approximation; reports carry
	// the truncated count so consumers know.
	MaxRefsPerObject = 100

	// Skip-ratio early abort kicks in only after this many records.
	abortCheckAfter = 1000

	progressInterval = 25000
)

// ErrCorruptDump is returned when the skip ratio says the source is
// producing mostly garbage and further iteration is unreliable.
var ErrCorruptDump = errors.New("heap dump appears corrupt: too many unreadable objects")

// IngestOptions tunes a Populate run.
type IngestOptions struct {
	// Progress, if set, is called every 25,000 records with the running
	// processed count. The default logs through slog.
	Progress func(processed int)

	Logger *slog.Logger
}

// Populate fills the snapshot from src. One undecodable object does not
// abort the scan; it is counted in Skipped. A wholesale source failure
// leaves the snapshot partially populated and un-analyzed and is
// returned to the caller.
func (s *Snapshot) Populate(src HeapSource, opts IngestOptions) error {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	progress := opts.Progress
	if progress == nil {
		progress = func(processed int) {
			logger.Info("ingesting heap dump", "objects", processed)
		}
	}

	walkErr := src.WalkObjects(func(rec ObjectRecord) error {
		if rec.Address == 0 || rec.Size == 0 || rec.Type == "" {
			s.Skipped++
		} else {
			s.AddRecord(rec)
			s.Processed++
			if s.Processed%progressInterval == 0 {
				progress(s.Processed)
			}
		}

		if s.Processed+s.Skipped >= abortCheckAfter && s.Skipped > 2*s.Processed {
			return ErrCorruptDump
		}
		return nil
	})

	if walkErr != nil {
		if errors.Is(walkErr, ErrCorruptDump) {
			return fmt.Errorf("aborted after %d objects (%d skipped): %w",
				s.Processed, s.Skipped, ErrCorruptDump)
		}
		return fmt.Errorf("heap scan failed: %w", walkErr)
	}

	s.markAnalyzed()
	logger.Info("heap dump ingested",
		"objects", s.Processed, "skipped", s.Skipped, "truncatedRefs", s.TruncatedRefs)
	return nil
}

// AddRecord interns names, filters references and inserts one object.
// Also used by the lazy per-type scanner, which feeds records one at a
// time outside a full Populate pass.
func (s *Snapshot) AddRecord(rec ObjectRecord) *Object {
	obj := &Object{
		Address:      Address(rec.Address),
		Type:         s.Intern(rec.Type),
		ShallowSize:  rec.Size,
		Generation:   rec.Generation,
		RetainedSize: rec.Size,
		Fields:       rec.Fields,
	}

	// Filter first, cap after: the cap applies to the references that
	// actually survive, so dangling entries early in a large array do
	// not crowd out valid ones past the cutoff.
	for _, ref := range rec.References {
		// Null targets and references without type information carry no
		// edge worth keeping.
		if ref.Target == 0 || ref.TargetType == "" {
			continue
		}
		obj.References = append(obj.References, ObjectReference{
			Source:     obj.Address,
			Target:     Address(ref.Target),
			Field:      s.Intern(ref.Field),
			TargetType: s.Intern(ref.TargetType),
		})
	}
	if len(obj.References) > MaxRefsPerObject {
		s.mu.Lock()
		s.TruncatedRefs += len(obj.References) - MaxRefsPerObject
		s.mu.Unlock()
		obj.References = obj.References[:MaxRefsPerObject]
	}

	s.Add(obj)
	return obj
}
