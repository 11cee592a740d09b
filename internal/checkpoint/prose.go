package checkpoint

import (
	"fmt"
	"sort"
	"strings"
)

// StepDescriptions maps step names to the human-readable descriptions
// used in refresh messages.
var StepDescriptions = map[string]string{
	"commit":                 "Committing changes to git",
	"create-pr":              "Creating pull request",
	"invoke-reviewers":       "Launching reviewer agents in parallel",
	"synthesize":             "Synthesizing reviewer findings",
	"recommendations":        "Processing review recommendations",
	"merge-ready":            "All reviews complete, PR ready for merge authorization",
	"awaiting-merge":         "Waiting for user to authorize merge",
	"awaiting_user_decision": "Waiting for user decision",

	"variety-assess": "Assessing task complexity and variety",
	"prepare":        "Running PREPARE phase - research and requirements",
	"architect":      "Running ARCHITECT phase - system design",
	"code":           "Running CODE phase - implementation",
	"test":           "Running TEST phase - testing and QA",

	"analyze": "Analyzing scope and selecting specialists",
	"consult": "Consulting specialists for planning perspectives",
	"present": "Presenting plan for user approval",

	"invoking-specialist":  "Delegating to specialist agent",
	"specialist-completed": "Specialist work completed",

	"nested-prepare":   "Running nested PREPARE phase",
	"nested-architect": "Running nested ARCHITECT phase",
	"nested-code":      "Running nested CODE phase",
	"nested-test":      "Running nested TEST phase",

	"triage":           "Triaging blocker - determining resolution path",
	"assessing-redo":   "Assessing whether to redo prior phase",
	"selecting-agents": "Selecting agents to assist with resolution",
	"resolution-path":  "Executing resolution path",
}

// ctxString renders a context value the way it would read in prose.
// JSON decoding hands integers back as float64, so whole floats are
// printed without a fraction.
func ctxString(ctx map[string]any, key, fallback string) string {
	v, ok := ctx[key]
	if !ok || v == nil {
		return fallback
	}
	switch val := v.(type) {
	case string:
		if val == "" {
			return fallback
		}
		return val
	case bool:
		if val {
			return "True"
		}
		return "False"
	case float64:
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d", int64(val))
		}
		return fmt.Sprintf("%g", val)
	default:
		return fmt.Sprintf("%v", val)
	}
}

// ctxFalsy reports whether a blocking-style value means "no blocking":
// absent, false, zero, or their string forms.
func ctxFalsy(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case bool:
		return !val
	case string:
		return val == "" || val == "0" || val == "False" || val == "false"
	case int:
		return val == 0
	case float64:
		return val == 0
	}
	return false
}

func blockingValue(ctx map[string]any, keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := ctx[k]; ok {
			return v, true
		}
	}
	return nil, false
}

// ProseContext renders the Context line body for a step: a short prose
// sentence describing where the workflow stood. Unknown steps fall back
// to the step name with its raw key=value context.
func ProseContext(step string, ctx map[string]any) string {
	if ctx == nil {
		ctx = map[string]any{}
	}
	switch step {
	case "commit":
		return "Was committing changes to git."
	case "create-pr":
		if pr := ctxString(ctx, "pr_number", ""); pr != "" {
			return fmt.Sprintf("Was creating PR #%s.", pr)
		}
		return "Was creating pull request."
	case "invoke-reviewers":
		return proseInvokeReviewers(ctx)
	case "synthesize":
		return proseSynthesize(ctx)
	case "recommendations":
		return proseRecommendations(ctx)
	case "merge-ready":
		v, _ := blockingValue(ctx, "blocking", "has_blocking")
		if ctxFalsy(v) {
			return "Completed review with no blocking issues; PR ready for merge."
		}
		return "Review complete; awaiting resolution of blocking issues."
	case "awaiting-merge", "awaiting_user_decision":
		return "Was waiting for user decision."
	case "variety-assess":
		return "Was assessing task complexity."
	case "prepare":
		if feature := ctxString(ctx, "feature", ""); feature != "" {
			return fmt.Sprintf("Was running PREPARE phase for: %s.", feature)
		}
		return "Was running PREPARE phase."
	case "architect":
		return "Was running ARCHITECT phase."
	case "code":
		if phase := ctxString(ctx, "phase", ""); phase != "" {
			return fmt.Sprintf("Was running CODE phase (%s).", phase)
		}
		return "Was running CODE phase."
	case "test":
		return "Was running TEST phase."
	case "analyze":
		return "Was analyzing scope and selecting specialists."
	case "consult":
		return "Was consulting specialists for planning perspectives."
	case "present":
		if plan := ctxString(ctx, "plan_file", ""); plan != "" {
			return fmt.Sprintf("Was presenting plan (%s) for approval.", plan)
		}
		return "Was presenting plan for user approval."
	case "invoking-specialist":
		return "Was delegating to specialist agent."
	case "specialist-completed":
		return "Specialist work had completed."
	case "nested-prepare":
		return "Was running nested PREPARE phase."
	case "nested-architect":
		return "Was running nested ARCHITECT phase."
	case "nested-code":
		return "Was running nested CODE phase."
	case "nested-test":
		return "Was running nested TEST phase."
	case "triage":
		if blocker := ctxString(ctx, "blocker", ""); blocker != "" {
			return fmt.Sprintf("Was triaging blocker: %s", blocker)
		}
		return "Was triaging a blocker to determine resolution path."
	case "assessing-redo":
		if prior := ctxString(ctx, "prior_phase", ""); prior != "" {
			return fmt.Sprintf("Was assessing whether to redo %s phase.", prior)
		}
		return "Was assessing whether to redo a prior phase."
	case "selecting-agents":
		if agents := ctxString(ctx, "agents", ""); agents != "" {
			return fmt.Sprintf("Was selecting agents to assist: %s.", agents)
		}
		return "Was selecting agents to assist with resolution."
	case "resolution-path":
		return proseResolutionPath(ctx)
	}
	return proseFallback(step, ctx)
}

func proseInvokeReviewers(ctx map[string]any) string {
	reviewers := ctxString(ctx, "reviewers", "")
	blocking := ctxString(ctx, "blocking", "0")
	if strings.Contains(reviewers, "/") {
		parts := strings.SplitN(reviewers, "/", 2)
		return fmt.Sprintf("Launched %s reviewer agents; %s had completed with %s blocking issues.",
			parts[1], parts[0], blocking)
	}
	if reviewers != "" {
		return fmt.Sprintf("Launched reviewer agents; %s had completed with %s blocking issues.",
			reviewers, blocking)
	}
	return "Was launching reviewer agents."
}

func proseSynthesize(ctx map[string]any) string {
	v, _ := blockingValue(ctx, "blocking", "has_blocking")
	minor := ctxString(ctx, "minor_count", "0")
	future := ctxString(ctx, "future_count", "0")
	if ctxFalsy(v) {
		return fmt.Sprintf("Completed synthesis with no blocking issues; %s minor, %s future recommendations.",
			minor, future)
	}
	return fmt.Sprintf("Completed synthesis with %s blocking issues.", ctxString(ctx, "blocking", "some"))
}

func proseRecommendations(ctx map[string]any) string {
	v, _ := blockingValue(ctx, "has_blocking", "blocking")
	minor := ctxString(ctx, "minor_count", "0")
	future := ctxString(ctx, "future_count", "0")
	if ctxFalsy(v) {
		return fmt.Sprintf("Processing recommendations; no blocking issues, %s minor, %s future.",
			minor, future)
	}
	return "Processing recommendations with blocking issues to address."
}

func proseResolutionPath(ctx map[string]any) string {
	switch ctxString(ctx, "outcome", "") {
	case "redo_prior_phase":
		return "Resolution: redo prior phase."
	case "augment_present_phase":
		return "Resolution: augment present phase with additional agents."
	case "invoke_repact":
		return "Resolution: invoke rePACT for nested cycle."
	case "terminate_agent":
		return "Resolution: terminate unrecoverable agent."
	case "not_truly_blocked":
		return "Resolution: not truly blocked, continue with guidance."
	case "escalate_to_user":
		return "Resolution: escalate to user for input."
	// Older outcome names still seen in existing transcripts.
	case "redo_solo":
		return "Resolution: redo prior phase solo."
	case "redo_with_help":
		return "Resolution: redo prior phase with agent assistance."
	case "proceed_with_help":
		return "Resolution: proceed with agent assistance."
	}
	return "Was executing resolution path for blocker."
}

func proseFallback(step string, ctx map[string]any) string {
	if step == "" {
		step = "unknown"
	}
	if len(ctx) == 0 {
		return fmt.Sprintf("Was in step '%s'.", step)
	}
	keys := make([]string, 0, len(ctx))
	for k := range ctx {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, fmt.Sprintf("%s=%s", k, ctxString(ctx, k, "")))
	}
	return fmt.Sprintf("Was in step '%s' (%s).", step, strings.Join(pairs, ", "))
}
