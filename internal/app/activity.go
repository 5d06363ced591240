package app

// Tool names with structural meaning for display grouping.
const (
	// ToolNameTask delegates work to a sub-agent; its children are the
	// activities whose ParentToolUseID points back at it.
	ToolNameTask = "Task"
	// ToolNameTodoWrite reports the complete current checklist on every
	// invocation, so repeated calls collapse to the latest one.
	ToolNameTodoWrite = "TodoWrite"
)

// ActivityGroup is a sub-agent parent together with its child activities. It
// is a derived view; nothing stores groups.
type ActivityGroup struct {
	Parent   ToolActivity
	Children []ToolActivity
}

// ActivityNode is one entry in the grouped display sequence: either a plain
// activity or a group. Exactly one of the two fields is set.
type ActivityNode struct {
	Activity *ToolActivity
	Group    *ActivityGroup
}

// GroupActivities turns the flat per-session activity list into the
// display hierarchy: ghost records dropped, snapshot-style tools merged,
// sub-agent children nested under their parent. The output order is
// deterministic for identical input; callers may diff successive results.
func GroupActivities(activities []ToolActivity) []ActivityNode {
	filtered := dropGhostActivities(activities)

	// Partition into top-level entries and children of Task parents.
	parents := make(map[string]bool)
	for _, act := range filtered {
		if act.ToolName == ToolNameTask {
			parents[act.ToolUseID] = true
		}
	}

	var top []ToolActivity
	children := make(map[string][]ToolActivity)
	for _, act := range filtered {
		if act.ParentToolUseID != "" && parents[act.ParentToolUseID] {
			children[act.ParentToolUseID] = append(children[act.ParentToolUseID], act)
			continue
		}
		top = append(top, act)
	}

	top = mergeSnapshotActivities(top)

	nodes := make([]ActivityNode, 0, len(top))
	for i := range top {
		act := top[i]
		if act.ToolName == ToolNameTask {
			group := &ActivityGroup{
				Parent:   act,
				Children: mergeSnapshotActivities(children[act.ToolUseID]),
			}
			nodes = append(nodes, ActivityNode{Group: group})
			continue
		}
		nodes = append(nodes, ActivityNode{Activity: &top[i]})
	}
	return nodes
}

// dropGhostActivities removes placeholder records that never matured into a
// real call: done, no input, and no result. These appear when progress-only
// signals reference an id the stream never started properly.
func dropGhostActivities(activities []ToolActivity) []ToolActivity {
	out := make([]ToolActivity, 0, len(activities))
	for _, act := range activities {
		if act.Done && len(act.Input) == 0 && act.Result == "" {
			continue
		}
		out = append(out, act)
	}
	return out
}

// mergeSnapshotActivities collapses repeated invocations of snapshot-style
// tools at one nesting level into a single representative holding the last
// invocation's input. The merged record is done only when every invocation
// is, and flags an error when done and any invocation errored.
func mergeSnapshotActivities(activities []ToolActivity) []ToolActivity {
	var snapshots []ToolActivity
	for _, act := range activities {
		if act.ToolName == ToolNameTodoWrite {
			snapshots = append(snapshots, act)
		}
	}
	if len(snapshots) <= 1 {
		return activities
	}

	merged := snapshots[len(snapshots)-1]
	merged.Done = true
	anyError := false
	for _, s := range snapshots {
		if !s.Done {
			merged.Done = false
		}
		if s.Done && s.IsError {
			anyError = true
		}
	}
	merged.IsError = merged.Done && anyError

	// The merged record takes the position of the first snapshot; later
	// snapshots disappear.
	out := make([]ToolActivity, 0, len(activities))
	placed := false
	for _, act := range activities {
		if act.ToolName != ToolNameTodoWrite {
			out = append(out, act)
			continue
		}
		if !placed {
			out = append(out, merged)
			placed = true
		}
	}
	return out
}
