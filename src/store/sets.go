package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/renameio/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"snapset/src/snapset"
)

// setDoc is the persisted form of a snapshot set: metadata plus the ordered
// member record IDs. Member records live in their own files.
type setDoc struct {
	ID            uuid.UUID         `json:"id"`
	Name          string            `json:"name"`
	Host          string            `json:"host"`
	CreatedAt     time.Time         `json:"created_at"`
	Status        snapset.SetStatus `json:"status"`
	BootEntry     string            `json:"boot_entry,omitempty"`
	RollbackEntry string            `json:"rollback_entry,omitempty"`
	Profile       string            `json:"profile,omitempty"`
	UnamePattern  string            `json:"uname_pattern,omitempty"`
	AutoGC        bool              `json:"autogc,omitempty"`
	Members       []uuid.UUID       `json:"members"`
}

// Loaded is the result of a full metadata load. Corrupt or unreadable
// entries are skipped, recorded in Skipped, and never fail the load.
type Loaded struct {
	Sets    []snapset.SnapshotSet
	Skipped []error
}

// LoadAll reads every persisted snapshot set and its member records.
func (s *Store) LoadAll() (*Loaded, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, setsDir))
	if err != nil {
		return nil, fmt.Errorf("read sets directory: %w", err)
	}

	loaded := &Loaded{}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		path := s.setPath(e.Name())
		set, err := s.loadSet(path)
		if err != nil {
			corrupt := &snapset.CorruptRecordError{Path: path, Err: err}
			s.log.Warn("skipping unreadable snapshot set record", zap.Error(corrupt))
			loaded.Skipped = append(loaded.Skipped, corrupt)
			continue
		}
		loaded.Sets = append(loaded.Sets, set)
	}
	sort.Slice(loaded.Sets, func(i, j int) bool {
		a, b := loaded.Sets[i], loaded.Sets[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID.String() < b.ID.String()
	})
	return loaded, nil
}

func (s *Store) loadSet(path string) (snapset.SnapshotSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return snapset.SnapshotSet{}, err
	}
	var doc setDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return snapset.SnapshotSet{}, err
	}
	set := snapset.SnapshotSet{
		ID:            doc.ID,
		Name:          doc.Name,
		Host:          doc.Host,
		CreatedAt:     doc.CreatedAt,
		Status:        doc.Status,
		BootEntry:     doc.BootEntry,
		RollbackEntry: doc.RollbackEntry,
		Profile:       doc.Profile,
		UnamePattern:  doc.UnamePattern,
		AutoGC:        doc.AutoGC,
	}
	for _, id := range doc.Members {
		rec, err := s.loadRecord(id)
		if err != nil {
			// A set must never reference a missing record; treat the
			// whole set as corrupt rather than present a partial view.
			return snapset.SnapshotSet{}, fmt.Errorf("member record %s: %w", id, err)
		}
		set.Snapshots = append(set.Snapshots, rec)
	}
	return set, nil
}

func (s *Store) loadRecord(id uuid.UUID) (snapset.SnapshotRecord, error) {
	data, err := os.ReadFile(s.snapshotPath(id.String() + ".json"))
	if err != nil {
		return snapset.SnapshotRecord{}, err
	}
	var rec snapset.SnapshotRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return snapset.SnapshotRecord{}, err
	}
	return rec, nil
}

// Write persists a snapshot set. Member record files are written first and
// the set file last, each atomically, so a crash mid-write never yields a
// set referencing missing records; the stale leftovers are orphan records
// that GC reclaims.
func (s *Store) Write(set snapset.SnapshotSet) error {
	for _, rec := range set.Snapshots {
		if err := s.writeRecord(rec); err != nil {
			return err
		}
	}
	doc := setDoc{
		ID:            set.ID,
		Name:          set.Name,
		Host:          set.Host,
		CreatedAt:     set.CreatedAt,
		Status:        set.Status,
		BootEntry:     set.BootEntry,
		RollbackEntry: set.RollbackEntry,
		Profile:       set.Profile,
		UnamePattern:  set.UnamePattern,
		AutoGC:        set.AutoGC,
		Members:       set.MemberIDs(),
	}
	return s.writeJSON(s.setPath(set.ID.String()+".json"), doc)
}

func (s *Store) writeRecord(rec snapset.SnapshotRecord) error {
	return s.writeJSON(s.snapshotPath(rec.ID.String()+".json"), rec)
}

func (s *Store) writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := renameio.WriteFile(path, append(data, '\n'), filePerm); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// Delete removes a persisted set. The set file goes first and the member
// record files second: a crash in between leaves orphan records for GC,
// never a surviving set that references missing records. Idempotent.
func (s *Store) Delete(id uuid.UUID) error {
	members, err := s.memberIDs(id)
	if err != nil {
		return err
	}
	if err := removeIgnoreMissing(s.setPath(id.String() + ".json")); err != nil {
		return err
	}
	for _, m := range members {
		if err := removeIgnoreMissing(s.snapshotPath(m.String() + ".json")); err != nil {
			return err
		}
	}
	return nil
}

// memberIDs returns the member list from the set file when readable, and
// otherwise falls back to scanning record files for the set ID so that
// Delete can finish a previously interrupted deletion.
func (s *Store) memberIDs(id uuid.UUID) ([]uuid.UUID, error) {
	data, err := os.ReadFile(s.setPath(id.String() + ".json"))
	if err == nil {
		var doc setDoc
		if jerr := json.Unmarshal(data, &doc); jerr == nil {
			return doc.Members, nil
		}
		// Corrupt set file: fall through to the scan.
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read set record: %w", err)
	}

	records, err := s.scanRecords()
	if err != nil {
		return nil, err
	}
	var members []uuid.UUID
	for _, rec := range records {
		if rec.SetID == id {
			members = append(members, rec.ID)
		}
	}
	return members, nil
}

// DeleteRecord removes a single snapshot record file. Idempotent.
func (s *Store) DeleteRecord(id uuid.UUID) error {
	return removeIgnoreMissing(s.snapshotPath(id.String() + ".json"))
}

// OrphanRecords returns snapshot records whose owning set file no longer
// exists. Orphans are the expected residue of a crash between the two
// phases of Delete; GC reclaims them.
func (s *Store) OrphanRecords() ([]snapset.SnapshotRecord, error) {
	records, err := s.scanRecords()
	if err != nil {
		return nil, err
	}
	var orphans []snapset.SnapshotRecord
	for _, rec := range records {
		_, err := os.Stat(s.setPath(rec.SetID.String() + ".json"))
		if os.IsNotExist(err) {
			orphans = append(orphans, rec)
		} else if err != nil {
			return nil, fmt.Errorf("stat set record: %w", err)
		}
	}
	sort.Slice(orphans, func(i, j int) bool {
		return orphans[i].ID.String() < orphans[j].ID.String()
	})
	return orphans, nil
}

func (s *Store) scanRecords() ([]snapset.SnapshotRecord, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, snapshotsDir))
	if err != nil {
		return nil, fmt.Errorf("read snapshots directory: %w", err)
	}
	var records []snapset.SnapshotRecord
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(s.snapshotPath(e.Name()))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("read snapshot record: %w", err)
		}
		var rec snapset.SnapshotRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			s.log.Warn("skipping unreadable snapshot record",
				zap.Error(&snapset.CorruptRecordError{Path: s.snapshotPath(e.Name()), Err: err}))
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

func removeIgnoreMissing(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	return nil
}
