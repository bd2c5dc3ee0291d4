package trigger

import (
	"context"
	"fmt"
	"sort"

	"github.com/flowlane-labs/flowlane-go/internal/artifacts"
	"github.com/flowlane-labs/flowlane-go/internal/domain"
)

// Validator checks a merged run spec against the template's step graph.
// Validation is fail-fast and deterministic: steps are visited in declaration
// order, parameters in declaration order, and the first violation is
// reported.
type Validator struct {
	resolver artifacts.Resolver
}

func NewValidator(resolver artifacts.Resolver) *Validator {
	return &Validator{resolver: resolver}
}

func (v *Validator) Validate(ctx context.Context, graph domain.StepGraph, spec domain.MergedRunSpec) error {
	induced := make([]domain.DependencyEdge, 0)

	for _, step := range graph.Steps {
		merged, ok := spec.Step(step.Name)
		if !ok {
			return newError(KindMissingParameter, step.Name, "",
				"merged spec is missing step %q", step.Name)
		}
		for _, param := range step.Parameters {
			mp, _ := merged.Parameter(param.Name)
			if mp.Value == nil {
				if param.Required {
					return newError(KindMissingParameter, step.Name, param.Name,
						"required parameter has no default and no override")
				}
				continue
			}
			value := *mp.Value
			if !value.MatchesType(param.Type) {
				return newError(KindTypeMismatch, step.Name, param.Name,
					"value %s is not assignable to declared type %q", describeValue(value), param.Type)
			}
			if !value.IsArtifactRef(param.Type) {
				continue
			}

			if ref := value.StepOutput; ref != nil {
				producer, ok := graph.Step(ref.FromStep)
				if !ok {
					return newError(KindDanglingArtifactRef, step.Name, param.Name,
						"references output of unknown step %q", ref.FromStep)
				}
				if !producer.DeclaresOutput(ref.Output) {
					return newError(KindDanglingArtifactRef, step.Name, param.Name,
						"step %q declares no output %q", ref.FromStep, ref.Output)
				}
				if ref.FromStep == step.Name {
					return newError(KindCycle, step.Name, param.Name,
						"step consumes its own output %q", ref.Output)
				}
				induced = append(induced, domain.DependencyEdge{From: ref.FromStep, To: step.Name})
				continue
			}

			id, ok := value.ArtifactID()
			if !ok {
				return newError(KindDanglingArtifactRef, step.Name, param.Name,
					"artifact reference is empty")
			}
			exists, err := v.resolver.Exists(ctx, id)
			if err != nil {
				return newError(KindBackendUnavailable, step.Name, param.Name,
					"artifact store unavailable: %v", err)
			}
			if !exists {
				return newError(KindDanglingArtifactRef, step.Name, param.Name,
					"artifact %q does not exist", id)
			}
		}
	}

	edges := make([]domain.DependencyEdge, 0, len(graph.Dependencies)+len(induced))
	edges = append(edges, graph.Dependencies...)
	edges = append(edges, induced...)
	if offender, cyclic := findCycle(graph, edges); cyclic {
		return newError(KindCycle, offender, "",
			"artifact references close a dependency cycle through step %q", offender)
	}
	return nil
}

// ValidateTemplate performs publish-time validation: structural shape, an
// acyclic declared graph, and defaults that conform to the declared schema.
func ValidateTemplate(tpl domain.PipelineTemplate) error {
	if err := tpl.ValidateBasicShape(); err != nil {
		return newError(KindTypeMismatch, "", "", "%v", err)
	}
	if offender, cyclic := findCycle(tpl.Graph, tpl.Graph.Dependencies); cyclic {
		return newError(KindCycle, offender, "",
			"declared dependency graph contains a cycle through step %q", offender)
	}
	for _, step := range tpl.Graph.Steps {
		defaults, ok := tpl.DefaultConfig[step.Name]
		if !ok {
			continue
		}
		for _, param := range step.Parameters {
			value, ok := defaults[param.Name]
			if !ok {
				continue
			}
			if !value.MatchesType(param.Type) {
				return newError(KindTypeMismatch, step.Name, param.Name,
					"default value %s is not assignable to declared type %q", describeValue(value), param.Type)
			}
		}
		for _, name := range sortedKeys(defaults) {
			if _, declared := step.Parameter(name); !declared {
				return newError(KindUnknownParameter, step.Name, name,
					"default names parameter %q not declared by step %q", name, step.Name)
			}
		}
	}
	for _, name := range sortedKeys(tpl.DefaultConfig) {
		if _, ok := tpl.Graph.Step(name); !ok {
			return newError(KindUnknownStep, name, "",
				"defaults name step %q not present in the graph", name)
		}
	}
	return nil
}

func sortedKeys[M ~map[string]V, V any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func describeValue(v domain.ParameterValue) string {
	if v.StepOutput != nil {
		return fmt.Sprintf("step output %s.%s", v.StepOutput.FromStep, v.StepOutput.Output)
	}
	return fmt.Sprintf("%v (%T)", v.Literal, v.Literal)
}

// findCycle runs a coloring DFS over the steps in declaration order and
// returns the first step observed on a back edge.
func findCycle(graph domain.StepGraph, edges []domain.DependencyEdge) (string, bool) {
	adj := make(map[string][]string, len(graph.Steps))
	for _, edge := range edges {
		adj[edge.From] = append(adj[edge.From], edge.To)
	}

	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := make(map[string]int, len(graph.Steps))
	var offender string
	var visit func(string) bool
	visit = func(node string) bool {
		switch state[node] {
		case visiting:
			offender = node
			return true
		case done:
			return false
		}
		state[node] = visiting
		for _, next := range adj[node] {
			if visit(next) {
				return true
			}
		}
		state[node] = done
		return false
	}

	for _, step := range graph.Steps {
		if state[step.Name] == unvisited {
			if visit(step.Name) {
				return offender, true
			}
		}
	}
	return "", false
}
