package casefile

// Registry is a pure view over a store's namespace, classifying issues as
// open or resolved. It holds no state of its own: every call is a fresh scan
// with O(1) existence checks per issue.
type Registry struct {
	store *Store
}

// NewRegistry creates a registry over the given store.
func NewRegistry(store *Store) *Registry {
	return &Registry{store: store}
}

// ListOpen returns the IDs of issues that have a definition artifact but no
// resolution artifact yet, sorted.
func (r *Registry) ListOpen() ([]string, error) {
	return r.scan(func(hasDefinition, hasResolution bool) bool {
		return hasDefinition && !hasResolution
	})
}

// ListResolved returns the IDs of issues that have a resolution artifact and
// still live under the open root (i.e. not yet archived), sorted.
func (r *Registry) ListResolved() ([]string, error) {
	return r.scan(func(hasDefinition, hasResolution bool) bool {
		return hasDefinition && hasResolution
	})
}

func (r *Registry) scan(include func(hasDefinition, hasResolution bool) bool) ([]string, error) {
	candidates, err := r.store.Issues()
	if err != nil {
		return nil, err
	}

	ids := []string{}
	for _, issueID := range candidates {
		hasDefinition, err := r.store.HasArtifact(issueID, KindDefinition)
		if err != nil {
			return nil, err
		}
		hasResolution, err := r.store.HasArtifact(issueID, KindResolution)
		if err != nil {
			return nil, err
		}

		if include(hasDefinition, hasResolution) {
			ids = append(ids, issueID)
		}
	}

	return ids, nil
}
