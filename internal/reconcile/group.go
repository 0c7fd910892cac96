package reconcile

import (
	"github.com/sells-group/qc-reconcile/internal/model"
)

// StepNodes holds the resolved nodes belonging to one logical step.
type StepNodes struct {
	Step  model.Step
	Nodes []model.CaptureNode
}

// GroupSteps groups nodes by task definition and splits repeated task
// executions into rework steps.
//
// A task definition with more nodes than distinct sections ran more than
// once: its nodes are split by task_id in first-seen order, the first
// task_id keeping the original step and the n-th repeat becoming rework n.
func GroupSteps(nodes []model.CaptureNode) []StepNodes {
	type taskGroup struct {
		nodes    []model.CaptureNode
		sections stringSet
	}

	var order []string
	groups := make(map[string]*taskGroup)
	for _, n := range nodes {
		g, ok := groups[n.TaskDefKey]
		if !ok {
			g = &taskGroup{sections: make(stringSet)}
			groups[n.TaskDefKey] = g
			order = append(order, n.TaskDefKey)
		}
		g.nodes = append(g.nodes, n)
		g.sections[n.Section] = struct{}{}
	}

	var out []StepNodes
	for _, taskDefKey := range order {
		g := groups[taskDefKey]
		if len(g.nodes) <= len(g.sections) {
			out = append(out, StepNodes{Step: model.OriginalStep(taskDefKey), Nodes: g.nodes})
			continue
		}
		out = append(out, splitByTask(taskDefKey, g.nodes)...)
	}
	return out
}

func splitByTask(taskDefKey string, nodes []model.CaptureNode) []StepNodes {
	position := make(map[string]int)
	var steps []StepNodes
	for _, n := range nodes {
		idx, ok := position[n.TaskID]
		if !ok {
			idx = len(steps)
			position[n.TaskID] = idx
			step := model.OriginalStep(taskDefKey)
			if idx > 0 {
				step = model.ReworkStep(taskDefKey, idx)
			}
			steps = append(steps, StepNodes{Step: step})
		}
		steps[idx].Nodes = append(steps[idx].Nodes, n)
	}
	return steps
}

// GroupRecords indexes each step's nodes by record id and section. The last
// step becomes the terminal step.
func GroupRecords(steps []StepNodes) *model.EnrichedData {
	data := &model.EnrichedData{
		Steps:    make([]*model.EnrichedStep, 0, len(steps)),
		Terminal: len(steps) - 1,
	}
	for _, sn := range steps {
		es := model.NewEnrichedStep(sn.Step)
		for _, n := range sn.Nodes {
			es.Put(n)
		}
		data.Steps = append(data.Steps, es)
	}
	return data
}
