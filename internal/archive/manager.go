// Package archive relocates terminal issues from the open store into the
// archive store with collision-safe naming.
package archive

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dyluth/warren/pkg/casefile"
)

// NotArchivableError indicates an archive was requested for an issue that has
// not reached a terminal status.
type NotArchivableError struct {
	IssueID string
	Status  casefile.Status
}

func (e *NotArchivableError) Error() string {
	return fmt.Sprintf("issue %q cannot be archived: status is %s (must be %s or %s)",
		e.IssueID, e.Status, casefile.StatusRejected, casefile.StatusResolved)
}

// IsNotArchivable returns true if the error is a NotArchivableError.
func IsNotArchivable(err error) bool {
	var e *NotArchivableError
	return errors.As(err, &e)
}

// Manager moves completed issues between the two storage namespaces. This is
// the one component that touches both stores; the check-then-move sequence is
// a critical section per target identifier so two concurrent archive calls
// cannot both believe a slot is free.
type Manager struct {
	open    *casefile.Store
	archive *casefile.Store

	mu    sync.Mutex
	slots map[string]*sync.Mutex // base archive identifier → critical section

	now func() time.Time // injectable clock for collision suffixes
}

// NewManager creates a manager over the open and archive stores.
func NewManager(open, archive *casefile.Store) *Manager {
	return &Manager{
		open:    open,
		archive: archive,
		slots:   make(map[string]*sync.Mutex),
		now:     time.Now,
	}
}

func (m *Manager) slot(issueID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.slots[issueID]
	if !ok {
		l = &sync.Mutex{}
		m.slots[issueID] = l
	}
	return l
}

// Archive relocates an issue's entire case file into the archive store and
// returns the identifier it was archived under.
//
// The issue must be REJECTED or RESOLVED. If the archive already holds an
// entry with the same identifier, the moved copy gets a wall-clock suffix
// (YYYYMMDD-HHMMSS) and the pre-existing entry is untouched. Collision state
// is recomputed from scratch on every call, so a run that failed mid-move is
// safe to retry. The status becomes ARCHIVED only after the move is complete.
func (m *Manager) Archive(issueID string) (string, error) {
	status, err := m.open.GetStatus(issueID)
	if err != nil {
		return "", err
	}
	if !status.Archivable() {
		return "", &NotArchivableError{IssueID: issueID, Status: status}
	}

	l := m.slot(issueID)
	l.Lock()
	defer l.Unlock()

	targetID := issueID
	if occupied, err := m.slotOccupied(issueID); err != nil {
		return "", err
	} else if occupied {
		targetID = fmt.Sprintf("%s-%s", issueID, m.now().UTC().Format(casefile.SupersedeTimeFormat))
		if occupied, err := m.slotOccupied(targetID); err != nil {
			return "", err
		} else if occupied {
			return "", fmt.Errorf("archive slot %q also occupied: retry after the current second elapses", targetID)
		}
		log.Printf("[Archive] Identifier %q already archived, relocating as %q", issueID, targetID)
	}

	if err := m.move(issueID, targetID); err != nil {
		return "", err
	}

	if err := m.archive.SetStatus(targetID, casefile.StatusArchived); err != nil {
		return "", err
	}

	return targetID, nil
}

func (m *Manager) slotOccupied(targetID string) (bool, error) {
	_, err := os.Stat(m.archive.IssueDir(targetID))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, &casefile.StoreIOError{IssueID: targetID, Op: "check archive slot", Err: err}
}

// move relocates the case file directory. A plain rename is atomic and is
// tried first; when the two roots sit on different filesystems the move falls
// back to copy-into-temp, rename, then remove the source, so a crash never
// leaves a half-populated entry under the final archive identifier.
func (m *Manager) move(issueID, targetID string) error {
	src := m.open.IssueDir(issueID)
	dst := m.archive.IssueDir(targetID)

	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}
	var linkErr *os.LinkError
	if !errors.As(err, &linkErr) {
		return &casefile.StoreIOError{IssueID: issueID, Op: "move to archive", Err: err}
	}

	tmp := filepath.Join(m.archive.Root(), ".tmp-"+targetID)
	if err := os.RemoveAll(tmp); err != nil {
		return &casefile.StoreIOError{IssueID: issueID, Op: "clear archive staging", Err: err}
	}
	if err := copyTree(src, tmp); err != nil {
		os.RemoveAll(tmp)
		return &casefile.StoreIOError{IssueID: issueID, Op: "copy to archive", Err: err}
	}
	if err := os.Rename(tmp, dst); err != nil {
		os.RemoveAll(tmp)
		return &casefile.StoreIOError{IssueID: issueID, Op: "publish archive entry", Err: err}
	}
	if err := os.RemoveAll(src); err != nil {
		return &casefile.StoreIOError{IssueID: issueID, Op: "remove archived source", Err: err}
	}

	return nil
}

func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}

		in, err := os.Open(path)
		if err != nil {
			return err
		}
		defer in.Close()

		out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
		if err != nil {
			return err
		}
		if _, err := io.Copy(out, in); err != nil {
			out.Close()
			return err
		}
		if err := out.Sync(); err != nil {
			out.Close()
			return err
		}
		return out.Close()
	})
}
