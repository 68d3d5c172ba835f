package casefile

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// metaDirName holds the provenance sidecar files inside an issue directory
	metaDirName = ".meta"

	// statusFileName holds the issue's lifecycle status
	statusFileName = ".status"

	// contentExt is the extension for artifact content files
	contentExt = ".md"

	// metaExt is the extension for artifact metadata files
	metaExt = ".json"

	// SupersedeTimeFormat is the timestamp layout used when retaining a
	// superseded artifact version and when disambiguating archive collisions.
	SupersedeTimeFormat = "20060102-150405"
)

// Store provides filesystem-backed persistence for issue case files.
// All paths are scoped under a single root directory, one subdirectory per
// issue. The store is safe for concurrent use: writes for the same issue are
// serialized, writes for different issues proceed independently.
type Store struct {
	root string

	mu    sync.Mutex
	locks map[string]*sync.Mutex // issueID → per-issue write lock
}

// NewStore creates a store rooted at the given directory, creating it if
// needed.
func NewStore(root string) (*Store, error) {
	if root == "" {
		return nil, fmt.Errorf("store root cannot be empty")
	}

	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, &StoreIOError{Op: "create store root", Err: err}
	}

	return &Store{
		root:  root,
		locks: make(map[string]*sync.Mutex),
	}, nil
}

// Root returns the store's root directory.
func (s *Store) Root() string {
	return s.root
}

// IssueDir returns the directory holding an issue's case file.
func (s *Store) IssueDir(issueID string) string {
	return filepath.Join(s.root, issueID)
}

// lock returns the write lock for an issue, creating it on first use.
func (s *Store) lock(issueID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.locks[issueID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[issueID] = l
	}
	return l
}

func (s *Store) contentPath(issueID string, kind ArtifactKind) string {
	return filepath.Join(s.IssueDir(issueID), string(kind)+contentExt)
}

func (s *Store) metaPath(issueID string, kind ArtifactKind) string {
	return filepath.Join(s.IssueDir(issueID), metaDirName, string(kind)+metaExt)
}

// Put writes a new artifact for the issue. Fails with DuplicateArtifactError
// if an artifact of that kind already exists; use Supersede to replace an
// existing artifact while retaining the prior version.
//
// The write is durable before Put returns: content and metadata are fsynced
// and renamed into place. Concurrent puts for the same issue are serialized.
func (s *Store) Put(issueID string, kind ArtifactKind, content, producedBy string) (*Artifact, error) {
	l := s.lock(issueID)
	l.Lock()
	defer l.Unlock()

	return s.putLocked(issueID, kind, content, producedBy, nil, false)
}

// PutWithDecision writes a new artifact together with the decision signal the
// producing stage returned. Same semantics as Put otherwise.
func (s *Store) PutWithDecision(issueID string, kind ArtifactKind, content, producedBy string, decision Decision) (*Artifact, error) {
	l := s.lock(issueID)
	l.Lock()
	defer l.Unlock()

	return s.putLocked(issueID, kind, content, producedBy, &decision, false)
}

// Supersede replaces an existing artifact, retaining the prior version under
// a name suffixed with its original timestamp. The overwrite is logged so the
// audit trail records that a supersede happened. If no artifact of the kind
// exists yet, Supersede behaves exactly like Put.
func (s *Store) Supersede(issueID string, kind ArtifactKind, content, producedBy string) (*Artifact, error) {
	l := s.lock(issueID)
	l.Lock()
	defer l.Unlock()

	return s.putLocked(issueID, kind, content, producedBy, nil, true)
}

func (s *Store) putLocked(issueID string, kind ArtifactKind, content, producedBy string, decision *Decision, allowSupersede bool) (*Artifact, error) {
	if err := ValidateIssueID(issueID); err != nil {
		return nil, err
	}
	if err := kind.Validate(); err != nil {
		return nil, err
	}

	artifact := &Artifact{
		ID:         uuid.New().String(),
		IssueID:    issueID,
		Kind:       kind,
		Content:    content,
		ProducedBy: producedBy,
		ProducedAt: time.Now().UTC(),
		Decision:   decision,
	}
	if err := artifact.Validate(); err != nil {
		return nil, fmt.Errorf("invalid artifact: %w", err)
	}

	contentPath := s.contentPath(issueID, kind)

	if _, err := os.Stat(contentPath); err == nil {
		if !allowSupersede {
			return nil, &DuplicateArtifactError{IssueID: issueID, Kind: kind}
		}
		if err := s.retainPriorVersion(issueID, kind); err != nil {
			return nil, err
		}
	} else if !os.IsNotExist(err) {
		return nil, &StoreIOError{IssueID: issueID, Op: "stat artifact", Err: err}
	}

	if err := os.MkdirAll(filepath.Join(s.IssueDir(issueID), metaDirName), 0o755); err != nil {
		return nil, &StoreIOError{IssueID: issueID, Op: "create issue directory", Err: err}
	}

	meta, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal artifact metadata: %w", err)
	}

	// Metadata first: the content file is the existence marker, so a crash
	// between the two writes leaves no visible artifact.
	if err := s.writeDurable(issueID, s.metaPath(issueID, kind), meta); err != nil {
		return nil, err
	}
	if err := s.writeDurable(issueID, contentPath, []byte(content)); err != nil {
		return nil, err
	}

	return artifact, nil
}

// retainPriorVersion renames the existing artifact files so the prior version
// stays in the case file under its original timestamp.
func (s *Store) retainPriorVersion(issueID string, kind ArtifactKind) error {
	prior, err := s.Get(issueID, kind)
	if err != nil {
		return err
	}

	suffix := prior.ProducedAt.Format(SupersedeTimeFormat)
	versionedContent := filepath.Join(s.IssueDir(issueID), fmt.Sprintf("%s.%s%s", kind, suffix, contentExt))
	versionedMeta := filepath.Join(s.IssueDir(issueID), metaDirName, fmt.Sprintf("%s.%s%s", kind, suffix, metaExt))

	if err := os.Rename(s.contentPath(issueID, kind), versionedContent); err != nil {
		return &StoreIOError{IssueID: issueID, Op: "retain superseded artifact", Err: err}
	}
	// Metadata sidecar may be absent for hand-written artifacts; only the
	// content rename is mandatory.
	if err := os.Rename(s.metaPath(issueID, kind), versionedMeta); err != nil && !os.IsNotExist(err) {
		return &StoreIOError{IssueID: issueID, Op: "retain superseded metadata", Err: err}
	}

	log.Printf("[Store] Superseding artifact %q for issue %q: prior version retained as %s",
		kind, issueID, filepath.Base(versionedContent))

	return nil
}

// writeDurable writes data to path via a temp file in the same directory,
// fsyncing before the rename so the write survives a crash.
func (s *Store) writeDurable(issueID, path string, data []byte) error {
	dir := filepath.Dir(path)

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return &StoreIOError{IssueID: issueID, Op: "create temp file", Err: err}
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return &StoreIOError{IssueID: issueID, Op: "write artifact", Err: err}
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return &StoreIOError{IssueID: issueID, Op: "sync artifact", Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return &StoreIOError{IssueID: issueID, Op: "close artifact", Err: err}
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return &StoreIOError{IssueID: issueID, Op: "rename artifact into place", Err: err}
	}

	return nil
}

// Get retrieves an artifact by issue and kind.
// Returns a NotFoundError if the artifact doesn't exist; use IsNotFound to
// check for it.
func (s *Store) Get(issueID string, kind ArtifactKind) (*Artifact, error) {
	if err := kind.Validate(); err != nil {
		return nil, err
	}

	content, err := os.ReadFile(s.contentPath(issueID, kind))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &NotFoundError{IssueID: issueID, Kind: kind}
		}
		return nil, &StoreIOError{IssueID: issueID, Op: "read artifact", Err: err}
	}

	artifact, err := s.readMeta(issueID, kind)
	if err != nil {
		return nil, err
	}
	artifact.Content = string(content)

	return artifact, nil
}

// readMeta loads the provenance sidecar for an artifact. Artifacts dropped
// into the case file by hand have no sidecar; provenance then falls back to
// the content file's modification time.
func (s *Store) readMeta(issueID string, kind ArtifactKind) (*Artifact, error) {
	data, err := os.ReadFile(s.metaPath(issueID, kind))
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, &StoreIOError{IssueID: issueID, Op: "read artifact metadata", Err: err}
		}

		info, statErr := os.Stat(s.contentPath(issueID, kind))
		if statErr != nil {
			return nil, &StoreIOError{IssueID: issueID, Op: "stat artifact", Err: statErr}
		}
		return &Artifact{
			ID:         uuid.New().String(),
			IssueID:    issueID,
			Kind:       kind,
			ProducedBy: "user",
			ProducedAt: info.ModTime().UTC(),
		}, nil
	}

	var artifact Artifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metadata for artifact %q of issue %q: %w", kind, issueID, err)
	}

	return &artifact, nil
}

// HasArtifact checks artifact existence without reading content.
// More efficient than Get when only presence matters.
func (s *Store) HasArtifact(issueID string, kind ArtifactKind) (bool, error) {
	_, err := os.Stat(s.contentPath(issueID, kind))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, &StoreIOError{IssueID: issueID, Op: "stat artifact", Err: err}
}

// Exists checks whether an issue exists in the store. An issue exists once
// its definition artifact has been written.
func (s *Store) Exists(issueID string) (bool, error) {
	return s.HasArtifact(issueID, KindDefinition)
}

// List returns all live artifacts for an issue, ordered by produced-at
// (oldest first, pipeline order as tie-breaker). Superseded versions are not
// included. Returns a NotFoundError if the issue directory doesn't exist.
func (s *Store) List(issueID string) ([]*Artifact, error) {
	entries, err := os.ReadDir(s.IssueDir(issueID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &NotFoundError{IssueID: issueID}
		}
		return nil, &StoreIOError{IssueID: issueID, Op: "list artifacts", Err: err}
	}

	var artifacts []*Artifact
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), contentExt) {
			continue
		}

		// Superseded versions carry a timestamp infix and fail kind
		// validation, which is exactly what excludes them here.
		kind := ArtifactKind(strings.TrimSuffix(entry.Name(), contentExt))
		if kind.Validate() != nil {
			continue
		}

		artifact, err := s.Get(issueID, kind)
		if err != nil {
			return nil, err
		}
		artifacts = append(artifacts, artifact)
	}

	sort.Slice(artifacts, func(i, j int) bool {
		if !artifacts[i].ProducedAt.Equal(artifacts[j].ProducedAt) {
			return artifacts[i].ProducedAt.Before(artifacts[j].ProducedAt)
		}
		return kindOrder[artifacts[i].Kind] < kindOrder[artifacts[j].Kind]
	})

	return artifacts, nil
}

// Issues returns the IDs of all issues under the store root, sorted.
// Directories that are not valid issue slugs are skipped.
func (s *Store) Issues() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, &StoreIOError{Op: "scan store root", Err: err}
	}

	var ids []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if ValidateIssueID(entry.Name()) != nil {
			continue
		}
		ids = append(ids, entry.Name())
	}

	sort.Strings(ids)
	return ids, nil
}

// GetStatus returns an issue's lifecycle status. An issue with a definition
// but no recorded status is OPEN. Returns a NotFoundError for unknown issues.
func (s *Store) GetStatus(issueID string) (Status, error) {
	data, err := os.ReadFile(filepath.Join(s.IssueDir(issueID), statusFileName))
	if err != nil {
		if !os.IsNotExist(err) {
			return "", &StoreIOError{IssueID: issueID, Op: "read status", Err: err}
		}

		exists, err := s.Exists(issueID)
		if err != nil {
			return "", err
		}
		if !exists {
			return "", &NotFoundError{IssueID: issueID}
		}
		return StatusOpen, nil
	}

	status := Status(strings.TrimSpace(string(data)))
	if err := status.Validate(); err != nil {
		return "", fmt.Errorf("corrupt status for issue %q: %w", issueID, err)
	}

	return status, nil
}

// SetStatus transitions an issue to a new status, enforcing the lifecycle
// rules. Returns a TransitionError if the move is illegal.
func (s *Store) SetStatus(issueID string, next Status) error {
	if err := next.Validate(); err != nil {
		return err
	}

	l := s.lock(issueID)
	l.Lock()
	defer l.Unlock()

	current, err := s.GetStatus(issueID)
	if err != nil {
		return err
	}

	if current == next {
		return nil
	}
	if !current.CanTransition(next) {
		return &TransitionError{IssueID: issueID, From: current, To: next}
	}

	return s.writeDurable(issueID, filepath.Join(s.IssueDir(issueID), statusFileName), []byte(next+"\n"))
}
