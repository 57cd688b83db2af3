// Package graph implements the Conversation Graph (spec 4.7): a fixed node
// set, a single static routing table mapping (node, token) to the next
// node, and an executor loop that runs a turn to its terminal node. A
// node's returned token that is not in the table for that node is a fatal
// internal-routing error — the turn fails closed to finalize_response
// rather than silently falling through (the anti-hallucination guard).
package graph

import (
	"context"
	"time"

	"github.com/hydrochat/hydrochat/pkg/backendclient"
	"github.com/hydrochat/hydrochat/pkg/intent"
	"github.com/hydrochat/hydrochat/pkg/llm"
	"github.com/hydrochat/hydrochat/pkg/masking"
	"github.com/hydrochat/hydrochat/pkg/metrics"
	"github.com/hydrochat/hydrochat/pkg/namecache"
	"github.com/hydrochat/hydrochat/pkg/session"
)

// Node identifies one step of the conversation graph, named exactly as in
// spec 4.7 for log/diagnostic continuity.
type Node string

const (
	NodeIngestUserMessage     Node = "ingest_user_message"
	NodeClassifyIntent        Node = "classify_intent"
	NodeHandleCancel          Node = "handle_cancel"
	NodeCollectCreateFields   Node = "collect_create_fields"
	NodeExecuteCreatePatient  Node = "execute_create_patient"
	NodeCollectUpdateFields   Node = "collect_update_fields"
	NodeExecuteUpdatePatient  Node = "execute_update_patient"
	NodeDeletePatient         Node = "delete_patient"
	NodeExecuteDeletePatient  Node = "execute_delete_patient"
	NodeListPatients          Node = "list_patients"
	NodeGetPatientDetails     Node = "get_patient_details"
	NodeGetScanResults        Node = "get_scan_results"
	NodeShowMoreScans         Node = "show_more_scans"
	NodeProvideStlLinks       Node = "provide_stl_links"
	NodeProvideDepthMaps      Node = "provide_depth_maps"
	NodeHandleConfirmation    Node = "handle_confirmation"
	NodeProvideAgentStats     Node = "provide_agent_stats"
	NodeUnknownIntent         Node = "unknown_intent"
	NodeSummarizeHistory      Node = "summarize_history"
	NodeFinalizeResponse      Node = "finalize_response"
)

// Token is a node's routing decision. The set of tokens a given node may
// legally return is exactly the set of keys present for that node in
// routingTable.
type Token string

const (
	TokenContinue            Token = "continue"
	TokenToCancel            Token = "to_cancel"
	TokenToConfirmation      Token = "to_confirmation"
	TokenToCreate            Token = "to_create"
	TokenToUpdate            Token = "to_update"
	TokenToDelete            Token = "to_delete"
	TokenToList              Token = "to_list"
	TokenToDetails           Token = "to_details"
	TokenToScans             Token = "to_scans"
	TokenToShowMore          Token = "to_show_more"
	TokenToDepthMaps         Token = "to_depth_maps"
	TokenToStats             Token = "to_stats"
	TokenToUnknown           Token = "to_unknown"
	TokenPrompt              Token = "prompt"
	TokenCancelOffer         Token = "cancel_offer"
	TokenExecute             Token = "execute"
	TokenValidationFailed    Token = "validation_failed"
	TokenSuccess             Token = "success"
	TokenError               Token = "error"
	TokenNotFound            Token = "not_found"
	TokenAmbiguous           Token = "ambiguous"
	TokenConfirmRequired     Token = "confirm_required"
	TokenAffirmativeDelete   Token = "affirmative_delete"
	TokenAffirmativeStl      Token = "affirmative_stl"
	TokenNegative            Token = "negative"
	TokenEndOfList           Token = "end_of_list"
)

// routingTable is the sole source of truth for legal transitions (spec
// 4.7). The executor validates every returned token against it.
var routingTable = map[Node]map[Token]Node{
	NodeIngestUserMessage: {
		TokenContinue: NodeClassifyIntent,
	},
	NodeClassifyIntent: {
		TokenToCancel:       NodeHandleCancel,
		TokenToConfirmation: NodeHandleConfirmation,
		TokenToCreate:       NodeCollectCreateFields,
		TokenToUpdate:       NodeCollectUpdateFields,
		TokenToDelete:       NodeDeletePatient,
		TokenToList:         NodeListPatients,
		TokenToDetails:      NodeGetPatientDetails,
		TokenToScans:        NodeGetScanResults,
		TokenToShowMore:     NodeShowMoreScans,
		TokenToDepthMaps:    NodeProvideDepthMaps,
		TokenToStats:        NodeProvideAgentStats,
		TokenToUnknown:      NodeUnknownIntent,
	},
	NodeHandleCancel: {
		TokenContinue: NodeSummarizeHistory,
	},
	NodeCollectCreateFields: {
		TokenPrompt:      NodeSummarizeHistory,
		TokenCancelOffer: NodeSummarizeHistory,
		TokenExecute:     NodeExecuteCreatePatient,
	},
	NodeExecuteCreatePatient: {
		TokenValidationFailed: NodeCollectCreateFields,
		TokenSuccess:          NodeSummarizeHistory,
		TokenError:            NodeSummarizeHistory,
	},
	NodeCollectUpdateFields: {
		TokenPrompt:      NodeSummarizeHistory,
		TokenCancelOffer: NodeSummarizeHistory,
		TokenExecute:     NodeExecuteUpdatePatient,
		TokenNotFound:    NodeSummarizeHistory,
		TokenAmbiguous:   NodeSummarizeHistory,
	},
	NodeExecuteUpdatePatient: {
		TokenValidationFailed: NodeCollectUpdateFields,
		TokenSuccess:          NodeSummarizeHistory,
		TokenError:            NodeSummarizeHistory,
	},
	NodeDeletePatient: {
		TokenConfirmRequired: NodeSummarizeHistory,
		TokenNotFound:        NodeSummarizeHistory,
		TokenAmbiguous:       NodeSummarizeHistory,
	},
	NodeExecuteDeletePatient: {
		TokenSuccess: NodeSummarizeHistory,
		TokenError:   NodeSummarizeHistory,
	},
	NodeListPatients: {
		TokenContinue: NodeSummarizeHistory,
		TokenError:    NodeSummarizeHistory,
	},
	NodeGetPatientDetails: {
		TokenSuccess:   NodeSummarizeHistory,
		TokenAmbiguous: NodeSummarizeHistory,
		TokenNotFound:  NodeSummarizeHistory,
	},
	NodeGetScanResults: {
		TokenContinue: NodeSummarizeHistory,
		TokenError:    NodeSummarizeHistory,
		TokenNotFound: NodeSummarizeHistory,
	},
	NodeShowMoreScans: {
		TokenContinue:  NodeSummarizeHistory,
		TokenEndOfList: NodeSummarizeHistory,
	},
	NodeProvideStlLinks: {
		TokenContinue: NodeSummarizeHistory,
	},
	NodeProvideDepthMaps: {
		TokenContinue: NodeSummarizeHistory,
	},
	NodeHandleConfirmation: {
		TokenAffirmativeDelete: NodeExecuteDeletePatient,
		TokenAffirmativeStl:    NodeProvideStlLinks,
		TokenNegative:          NodeSummarizeHistory,
		TokenAmbiguous:         NodeSummarizeHistory,
	},
	NodeProvideAgentStats: {
		TokenContinue: NodeSummarizeHistory,
	},
	NodeUnknownIntent: {
		TokenContinue: NodeSummarizeHistory,
	},
	NodeSummarizeHistory: {
		TokenContinue: NodeFinalizeResponse,
	},
}

// summarizeThreshold is the recent_messages length past which
// summarize_history invokes the LLM adapter (spec 4.7 node 17).
const summarizeThreshold = 5

// maxSteps bounds one turn's node visits; exceeding it is itself an
// internal-routing failure (a defect in the table or a node, never a
// legitimate multi-turn flow, since the clarification bound and
// confirmation gates keep any single turn's path short).
const maxSteps = 20

// ToolClient is the subset of backendclient.Client the graph calls.
type ToolClient interface {
	CreatePatient(ctx context.Context, fields map[string]string) backendclient.Result
	GetPatient(ctx context.Context, id int64) backendclient.Result
	UpdatePatient(ctx context.Context, id int64, fields map[string]string) backendclient.Result
	DeletePatient(ctx context.Context, id int64) backendclient.Result
	ListPatients(ctx context.Context) backendclient.Result
	ListScans(ctx context.Context, patientID *int64, limit *int) backendclient.Result
}

// NameResolver is the subset of namecache.Cache the graph calls.
type NameResolver interface {
	Resolve(ctx context.Context, fullName string) namecache.ResolveResult
	Lookup(ctx context.Context, id int64) (backendclient.Patient, bool)
	Invalidate()
	Snapshot() []backendclient.Patient
	IsFresh() bool
}

// IntentClassifier is the subset of intent.Classifier the graph calls.
type IntentClassifier interface {
	Classify(ctx context.Context, sessionID, message string, history []string) intent.Outcome
}

// MetricsRecorder is the subset of metrics.Metrics the graph calls directly
// (tool/LLM accounting flows in through the lower layers' own dependencies).
type MetricsRecorder interface {
	IncSuccessfulOps()
	IncFailedOps()
	IncAbortedOps()
	Summarize() metrics.Summary
}

// Deps bundles every collaborator the graph executor needs, passed in as
// explicit constructor parameters per the "module-level singletons ->
// explicit constructor parameters" design note. One Deps is built per
// process; tests construct one with fakes.
type Deps struct {
	Tool       ToolClient
	Names      NameResolver
	Classifier IntentClassifier
	LLM        llm.Adapter // may be nil; summarize_history then uses deterministic truncation
	Metrics    MetricsRecorder
	Masking    *masking.Service
	Now        func() time.Time
}

// AgentOp is the external envelope's agent_op field (spec 6).
type AgentOp string

const (
	AgentOpCreate AgentOp = "Create"
	AgentOpUpdate AgentOp = "Update"
	AgentOpDelete AgentOp = "Delete"
	AgentOpNone   AgentOp = "None"
)

// Result is the output of one turn, ready to serialize into the external
// response envelope (spec 6); Content is already masked.
type Result struct {
	Content             string
	AgentOp             AgentOp
	Intent              string
	AwaitingConfirmation bool
	MissingFields        []string
}

// turnContext carries transient per-turn state that is never persisted on
// SessionState, keeping State's wire shape (spec 6) exactly as defined.
type turnContext struct {
	sessionID    string
	rawMessage   string
	responseText string
	agentOp      AgentOp
	routingFault bool
}

// Executor runs the conversation graph to its terminal node for one turn.
type Executor struct {
	deps Deps
}

// New creates an Executor.
func New(deps Deps) *Executor {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Masking == nil {
		deps.Masking = masking.NewService()
	}
	return &Executor{deps: deps}
}

// Run executes one turn of the conversation graph against s, mutating it in
// place, and returns the response envelope contents. s.Touch is called by
// the caller (Converse Entry Point), not here.
func (e *Executor) Run(ctx context.Context, s *session.State, message string) Result {
	tc := &turnContext{sessionID: s.ConversationID, rawMessage: message}

	current := NodeIngestUserMessage
	steps := 0
	for current != NodeFinalizeResponse {
		steps++
		if steps > maxSteps {
			tc.routingFault = true
			masking.LogError(tc.sessionID, string(current), "turn exceeded max graph steps, failing closed")
			break
		}

		fn, ok := nodeFuncs[current]
		if !ok {
			tc.routingFault = true
			masking.LogError(tc.sessionID, string(current), "no implementation registered for node")
			break
		}

		token := fn(ctx, e, s, tc)

		next, ok := routingTable[current][token]
		if !ok {
			tc.routingFault = true
			masking.LogError(tc.sessionID, string(current), "routing violation: token not permitted for node", "token", string(token))
			break
		}
		current = next
	}

	if tc.routingFault {
		e.deps.Metrics.IncFailedOps()
		tc.responseText = "Something went wrong, please try again."
		tc.agentOp = AgentOpNone
	}

	nodeFinalizeResponse(ctx, e, s, tc)

	return Result{
		Content:              tc.responseText,
		AgentOp:              tc.agentOp,
		Intent:               s.Intent,
		AwaitingConfirmation: s.ConfirmationRequired,
		MissingFields:        append([]string(nil), s.MissingSlots...),
	}
}
