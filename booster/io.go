package booster

import (
	"encoding/json"
	"io"

	"github.com/YuminosukeSato/mllite/core/model"
	scigoErrors "github.com/YuminosukeSato/mllite/pkg/errors"
)

// Snapshot is the serialisable state of a trained booster.
type Snapshot struct {
	Version      int               `json:"version"`
	Params       map[string]string `json:"params"`
	NumFeature   int               `json:"num_feature"`
	FeatureNames []string          `json:"feature_names,omitempty"`
	Trees        []Tree            `json:"trees"`
	Attributes   map[string]string `json:"attributes,omitempty"`
}

const snapshotVersion = 1

// Snapshot captures the model. Training caches are not included.
func (b *Booster) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := Snapshot{
		Version:      snapshotVersion,
		Params:       b.params.Map(),
		NumFeature:   b.numFeature,
		FeatureNames: append([]string(nil), b.featureNames...),
		Attributes:   make(map[string]string, len(b.attrs)),
	}
	for _, t := range b.trees {
		s.Trees = append(s.Trees, Tree{Group: t.Group, Nodes: append([]Node(nil), t.Nodes...)})
	}
	for k, v := range b.attrs {
		s.Attributes[k] = v
	}
	return s
}

// FromSnapshot rebuilds a booster ready for prediction or further rounds.
func FromSnapshot(s Snapshot) (*Booster, error) {
	if s.Version != snapshotVersion {
		return nil, scigoErrors.NewValidationError("version", "unsupported model version", s.Version)
	}
	params, err := ParamsFromMap(s.Params)
	if err != nil {
		return nil, scigoErrors.Wrap(err, "booster.FromSnapshot")
	}
	obj, err := NewObjective(params)
	if err != nil {
		return nil, err
	}

	b, _ := New()
	b.params = params
	b.objective = obj
	if err := b.configureMetrics(); err != nil {
		return nil, err
	}
	b.numFeature = s.NumFeature
	if len(s.FeatureNames) > 0 {
		b.featureNames = append([]string(nil), s.FeatureNames...)
	}
	for i := range s.Trees {
		t := s.Trees[i]
		if err := validateTree(&t, s.NumFeature, obj.Groups()); err != nil {
			return nil, scigoErrors.NewModelError("booster.FromSnapshot", "corrupt model", scigoErrors.Wrapf(err, "tree %d", i))
		}
		b.trees = append(b.trees, &t)
	}
	for k, v := range s.Attributes {
		b.attrs[k] = v
	}
	b.rng = newRand(params.Seed, len(b.trees))
	b.configured = true
	return b, nil
}

func validateTree(t *Tree, numFeature, groups int) error {
	if len(t.Nodes) == 0 {
		return scigoErrors.NewValueError("booster.FromSnapshot", "empty tree")
	}
	if t.Group < 0 || t.Group >= groups {
		return scigoErrors.NewValueError("booster.FromSnapshot", "group out of range")
	}
	for i, n := range t.Nodes {
		if n.ID != i {
			return scigoErrors.NewValueError("booster.FromSnapshot", "node ids must match their position")
		}
		if n.IsLeaf() {
			continue
		}
		if n.Left <= i || n.Right <= i || n.Left >= len(t.Nodes) || n.Right >= len(t.Nodes) {
			return scigoErrors.NewValueError("booster.FromSnapshot", "child index out of range")
		}
		if n.Feature < 0 || n.Feature >= numFeature {
			return scigoErrors.NewValueError("booster.FromSnapshot", "feature index out of range")
		}
	}
	return nil
}

// SaveJSON writes the model as JSON.
func (b *Booster) SaveJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(b.Snapshot()); err != nil {
		return scigoErrors.Wrap(err, "Booster.SaveJSON")
	}
	return nil
}

// LoadJSON reads a model written by SaveJSON.
func LoadJSON(r io.Reader) (*Booster, error) {
	var s Snapshot
	if err := json.NewDecoder(r).Decode(&s); err != nil {
		return nil, scigoErrors.NewModelError("booster.LoadJSON", "malformed model", err)
	}
	return FromSnapshot(s)
}

// SaveModel writes the model to path in binary form.
func (b *Booster) SaveModel(path string) error {
	s := b.Snapshot()
	return model.SaveModel(&s, path)
}

// LoadModel reads a model written by SaveModel.
func LoadModel(path string) (*Booster, error) {
	var s Snapshot
	if err := model.LoadModel(&s, path); err != nil {
		return nil, err
	}
	return FromSnapshot(s)
}
