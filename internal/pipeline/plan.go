package pipeline

import (
	"fmt"
	"sort"

	"github.com/docweave/docweave/internal/catalog"
)

// Plan is the immutable ordered step sequence compiled for one job:
// pre-branching universal steps, the branching step, class-specific steps
// for the resolved class, then post-branching universal steps. An empty
// class key compiles the unresolved prefix (pre-branching + branching +
// post-branching) used before classification.
type Plan struct {
	steps    []catalog.Step
	classKey string
}

// Steps returns the ordered step sequence.
func (p *Plan) Steps() []catalog.Step {
	return p.steps
}

// Len returns the number of steps in the plan.
func (p *Plan) Len() int {
	return len(p.steps)
}

// ClassKey returns the document class the plan was compiled for, or empty
// if the class is not yet resolved.
func (p *Plan) ClassKey() string {
	return p.classKey
}

// BranchIndex returns the position of the branching step, or -1.
func (p *Plan) BranchIndex() int {
	for i := range p.steps {
		if p.steps[i].IsBranching {
			return i
		}
	}
	return -1
}

// Compile resolves the concrete step sequence for classKey from a catalog
// snapshot. It is deterministic: the same snapshot and class always yield
// the same ordering. Compilation fails with a configuration error when a
// class-specific step references an unknown or disabled class, or when
// classKey itself cannot be resolved.
func Compile(snap *catalog.Snapshot, classKey string) (*Plan, error) {
	if err := validateClassRefs(snap); err != nil {
		return nil, err
	}
	if err := validateBranching(snap); err != nil {
		return nil, err
	}

	var resolved *catalog.DocumentClass
	if classKey != "" {
		class, ok := snap.ClassByKey(classKey)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownClass, classKey)
		}
		if !class.Enabled {
			return nil, fmt.Errorf("%w: %q", ErrDisabledClass, classKey)
		}
		resolved = class
	}

	var pre, branch, classSteps, post []catalog.Step
	for _, s := range snap.Steps {
		switch {
		case s.IsBranching:
			branch = append(branch, s)
		case !s.Universal():
			if resolved != nil && *s.DocumentClassID == resolved.ID {
				classSteps = append(classSteps, s)
			}
		case s.PostBranching:
			post = append(post, s)
		default:
			pre = append(pre, s)
		}
	}

	sortSteps(pre)
	sortSteps(branch)
	sortSteps(classSteps)
	sortSteps(post)

	steps := make([]catalog.Step, 0, len(pre)+len(branch)+len(classSteps)+len(post))
	steps = append(steps, pre...)
	steps = append(steps, branch...)
	steps = append(steps, classSteps...)
	steps = append(steps, post...)

	return &Plan{steps: steps, classKey: classKey}, nil
}

// validateClassRefs checks every class-specific step against the snapshot's
// classes, catching missing-producer configuration early rather than at
// branch resolution.
func validateClassRefs(snap *catalog.Snapshot) error {
	for _, s := range snap.Steps {
		if s.Universal() {
			continue
		}
		class, ok := snap.ClassByID(*s.DocumentClassID)
		if !ok {
			return fmt.Errorf("%w: step %q references class %s", ErrUnknownClass, s.Name, s.DocumentClassID)
		}
		if !class.Enabled && s.Enabled {
			return fmt.Errorf("%w: step %q references class %q", ErrDisabledClass, s.Name, class.Key)
		}
	}
	return nil
}

// validateBranching requires an enabled branching step whenever enabled
// class-specific steps exist. Without one the class never resolves and every
// class-specific step would be silently skipped.
func validateBranching(snap *catalog.Snapshot) error {
	hasClassSteps := false
	for _, s := range snap.Steps {
		if !s.Universal() && s.Enabled {
			hasClassSteps = true
			break
		}
	}
	if !hasClassSteps {
		return nil
	}

	for _, s := range snap.Steps {
		if s.IsBranching && s.Enabled {
			return nil
		}
	}
	return ErrNoBranchingStep
}

// sortSteps orders a phase by configured order, breaking ties by name so
// compilation stays deterministic.
func sortSteps(steps []catalog.Step) {
	sort.SliceStable(steps, func(i, j int) bool {
		if steps[i].Order != steps[j].Order {
			return steps[i].Order < steps[j].Order
		}
		return steps[i].Name < steps[j].Name
	})
}
