package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/hydrochat/hydrochat/pkg/backendclient"
	"github.com/hydrochat/hydrochat/pkg/intent"
	"github.com/hydrochat/hydrochat/pkg/masking"
	"github.com/hydrochat/hydrochat/pkg/namecache"
	"github.com/hydrochat/hydrochat/pkg/session"
)

type nodeFunc func(ctx context.Context, e *Executor, s *session.State, tc *turnContext) Token

var nodeFuncs = map[Node]nodeFunc{
	NodeIngestUserMessage:    nodeIngestUserMessage,
	NodeClassifyIntent:       nodeClassifyIntent,
	NodeHandleCancel:         nodeHandleCancel,
	NodeCollectCreateFields:  nodeCollectCreateFields,
	NodeExecuteCreatePatient: nodeExecuteCreatePatient,
	NodeCollectUpdateFields:  nodeCollectUpdateFields,
	NodeExecuteUpdatePatient: nodeExecuteUpdatePatient,
	NodeDeletePatient:        nodeDeletePatient,
	NodeExecuteDeletePatient: nodeExecuteDeletePatient,
	NodeListPatients:         nodeListPatients,
	NodeGetPatientDetails:    nodeGetPatientDetails,
	NodeGetScanResults:       nodeGetScanResults,
	NodeShowMoreScans:        nodeShowMoreScans,
	NodeProvideStlLinks:      nodeProvideStlLinks,
	NodeProvideDepthMaps:     nodeProvideDepthMaps,
	NodeHandleConfirmation:   nodeHandleConfirmation,
	NodeProvideAgentStats:    nodeProvideAgentStats,
	NodeUnknownIntent:        nodeUnknownIntent,
	NodeSummarizeHistory:     nodeSummarizeHistory,
}

var createRequiredSlots = []string{intent.SlotFirstName, intent.SlotLastName, intent.SlotNationalID}

var createOptionalSlots = []string{intent.SlotContact, intent.SlotDateOfBirth, intent.SlotDetails}

var updateFields = []string{intent.SlotFirstName, intent.SlotLastName, intent.SlotNationalID, intent.SlotContact, intent.SlotDateOfBirth, intent.SlotDetails}

func computeMissing(required []string, slots map[string]string) []string {
	var missing []string
	for _, r := range required {
		if slots[r] == "" {
			missing = append(missing, r)
		}
	}
	return missing
}

func selectSlots(slots map[string]string, keys ...string) map[string]string {
	out := map[string]string{}
	for _, k := range keys {
		if v := slots[k]; v != "" {
			out[k] = v
		}
	}
	return out
}

func contains(list []string, item string) bool {
	for _, v := range list {
		if v == item {
			return true
		}
	}
	return false
}

func nodeIngestUserMessage(_ context.Context, _ *Executor, s *session.State, tc *turnContext) Token {
	trimmed := strings.TrimSpace(tc.rawMessage)
	truncated := intent.Truncate(trimmed)
	tc.rawMessage = truncated
	s.AppendMessage(session.RoleUser, truncated)
	masking.LogFlow(tc.sessionID, string(NodeIngestUserMessage), "ingested user message")
	return TokenContinue
}

func nodeClassifyIntent(ctx context.Context, e *Executor, s *session.State, tc *turnContext) Token {
	history := make([]string, 0, len(s.RecentMessages))
	for _, m := range s.RecentMessages {
		history = append(history, m.Text)
	}

	outcome := e.deps.Classifier.Classify(ctx, tc.sessionID, tc.rawMessage, history)
	s.Intent = string(outcome.Intent)
	for k, v := range outcome.Slots {
		s.Slots[k] = v
	}

	// While actively collecting slots, a short plain-text reply that the
	// slot extractor could not independently parse (e.g. a bare first
	// name like "John") is taken as the value for the next missing slot,
	// rather than re-prompting for something the user just answered.
	awaitingSlots := s.PendingAction == session.PendingAwaitingSlotsForCreate || s.PendingAction == session.PendingAwaitingSlotsForUpdate
	if awaitingSlots && outcome.Intent == intent.Unknown && len(s.MissingSlots) > 0 {
		filledExisting := false
		for k := range outcome.Slots {
			if contains(s.MissingSlots, k) {
				filledExisting = true
			}
		}
		candidate := strings.TrimSpace(tc.rawMessage)
		if !filledExisting && candidate != "" && !strings.Contains(candidate, " ") {
			s.Slots[s.MissingSlots[0]] = candidate
		}
	}

	// Cancel always short-circuits, regardless of other state (spec 4.7
	// node 2: "Cancel short-circuit").
	if outcome.Intent == intent.Cancel {
		return TokenToCancel
	}

	// show_more_scans/provide_depth_maps/provide_agent_stats short-circuit
	// ahead of any pending confirmation or slot-collection resumption, but
	// only when the relevant context actually exists (spec 4.7 node 2).
	switch outcome.Intent {
	case intent.ShowMoreScans:
		if len(s.ScanBuffer) > 0 {
			return TokenToShowMore
		}
	case intent.ProvideDepthMaps:
		if len(s.ScanBuffer) > 0 {
			return TokenToDepthMaps
		}
	case intent.ProvideAgentStats:
		return TokenToStats
	}

	if s.ConfirmationRequired {
		return TokenToConfirmation
	}
	if s.PendingAction == session.PendingAwaitingSlotsForCreate {
		return TokenToCreate
	}
	if s.PendingAction == session.PendingAwaitingSlotsForUpdate {
		return TokenToUpdate
	}

	switch outcome.Intent {
	case intent.CreatePatient:
		return TokenToCreate
	case intent.UpdatePatient:
		return TokenToUpdate
	case intent.DeletePatient:
		return TokenToDelete
	case intent.ListPatients:
		return TokenToList
	case intent.GetPatientDetails:
		return TokenToDetails
	case intent.GetScanResults:
		return TokenToScans
	default:
		return TokenToUnknown
	}
}

func nodeHandleCancel(_ context.Context, e *Executor, s *session.State, tc *turnContext) Token {
	s.ResetOnCancel()
	s.MetricsDelta.AbortedOps++
	e.deps.Metrics.IncAbortedOps()
	tc.responseText = "Okay, cancelled. Let me know if there's anything else I can help with."
	tc.agentOp = AgentOpNone
	masking.LogFlow(tc.sessionID, string(NodeHandleCancel), "conversation reset on cancel")
	return TokenContinue
}

func nodeCollectCreateFields(_ context.Context, _ *Executor, s *session.State, tc *turnContext) Token {
	missing := computeMissing(createRequiredSlots, s.Slots)
	s.MissingSlots = missing

	if len(missing) > 0 {
		if s.ClarificationCount < 1 {
			s.ClarificationCount++
			s.PendingAction = session.PendingAwaitingSlotsForCreate
			tc.responseText = fmt.Sprintf("To create the patient I still need: %s.", strings.Join(missing, ", "))
			tc.agentOp = AgentOpNone
			masking.LogMissing(tc.sessionID, string(NodeCollectCreateFields), "prompting for missing create slots", "missing", missing)
			return TokenPrompt
		}
		tc.responseText = fmt.Sprintf("I still don't have %s. Reply 'cancel' to stop, or give me the missing details.", strings.Join(missing, ", "))
		tc.agentOp = AgentOpNone
		return TokenCancelOffer
	}

	s.PendingAction = session.PendingNone
	s.ClarificationCount = 0
	return TokenExecute
}

func nodeExecuteCreatePatient(ctx context.Context, e *Executor, s *session.State, tc *turnContext) Token {
	fields := selectSlots(s.Slots, append(append([]string{}, createRequiredSlots...), createOptionalSlots...)...)
	res := e.deps.Tool.CreatePatient(ctx, fields)

	switch res.Outcome {
	case backendclient.Ok:
		e.deps.Names.Invalidate()
		s.MetricsDelta.SuccessfulOps++
		e.deps.Metrics.IncSuccessfulOps()
		p, _ := res.Payload.(*backendclient.Patient)
		tc.responseText = fmt.Sprintf("Created patient %s %s (NRIC %s).", p.FirstName, p.LastName, p.NationalID)
		tc.agentOp = AgentOpCreate
		s.Slots = map[string]string{}
		s.MissingSlots = nil
		masking.LogSuccess(tc.sessionID, string(NodeExecuteCreatePatient), "patient created")
		return TokenSuccess
	case backendclient.ValidationFailed:
		for field := range res.Fields {
			if !contains(s.MissingSlots, field) {
				s.MissingSlots = append(s.MissingSlots, field)
			}
		}
		masking.LogError(tc.sessionID, string(NodeExecuteCreatePatient), "backend rejected create, reflecting fields", "fields", res.Fields)
		return TokenValidationFailed
	default:
		s.MetricsDelta.FailedOps++
		e.deps.Metrics.IncFailedOps()
		tc.responseText = "I couldn't create the patient right now. Please try again shortly."
		tc.agentOp = AgentOpNone
		masking.LogError(tc.sessionID, string(NodeExecuteCreatePatient), "create patient failed", "outcome", fmt.Sprint(res.Outcome))
		return TokenError
	}
}

func nodeCollectUpdateFields(ctx context.Context, e *Executor, s *session.State, tc *turnContext) Token {
	if s.SelectedPatientID == nil {
		p, resolution, candidates := resolveTarget(ctx, e, s)
		switch resolution {
		case resolvedUnique:
			id := p.ID
			s.SelectedPatientID = &id
		case resolvedAmbiguous:
			s.MissingSlots = []string{intent.SlotPatientID}
			tc.responseText = formatCandidates("I found more than one matching patient", candidates)
			tc.agentOp = AgentOpNone
			return TokenAmbiguous
		default:
			tc.responseText = "I couldn't find that patient. Try again with their patient id or full name."
			tc.agentOp = AgentOpNone
			return TokenNotFound
		}
	}

	fields := selectSlots(s.Slots, updateFields...)
	if len(fields) == 0 {
		if s.ClarificationCount < 1 {
			s.ClarificationCount++
			s.PendingAction = session.PendingAwaitingSlotsForUpdate
			s.MissingSlots = []string{"update_fields"}
			tc.responseText = "What would you like to update for this patient?"
			tc.agentOp = AgentOpNone
			return TokenPrompt
		}
		tc.responseText = "I still don't have anything to update. Reply 'cancel' to stop."
		tc.agentOp = AgentOpNone
		return TokenCancelOffer
	}

	s.PendingAction = session.PendingNone
	s.ClarificationCount = 0
	s.MissingSlots = nil
	return TokenExecute
}

func nodeExecuteUpdatePatient(ctx context.Context, e *Executor, s *session.State, tc *turnContext) Token {
	fields := selectSlots(s.Slots, updateFields...)
	res := e.deps.Tool.UpdatePatient(ctx, *s.SelectedPatientID, fields)

	switch res.Outcome {
	case backendclient.Ok:
		e.deps.Names.Invalidate()
		s.MetricsDelta.SuccessfulOps++
		e.deps.Metrics.IncSuccessfulOps()
		p, _ := res.Payload.(*backendclient.Patient)
		tc.responseText = fmt.Sprintf("Updated patient %s %s.", p.FirstName, p.LastName)
		tc.agentOp = AgentOpUpdate
		for _, k := range updateFields {
			delete(s.Slots, k)
		}
		masking.LogSuccess(tc.sessionID, string(NodeExecuteUpdatePatient), "patient updated")
		return TokenSuccess
	case backendclient.ValidationFailed:
		for field := range res.Fields {
			if !contains(s.MissingSlots, field) {
				s.MissingSlots = append(s.MissingSlots, field)
			}
		}
		return TokenValidationFailed
	default:
		s.MetricsDelta.FailedOps++
		e.deps.Metrics.IncFailedOps()
		tc.responseText = "I couldn't update the patient right now. Please try again shortly."
		tc.agentOp = AgentOpNone
		return TokenError
	}
}

func nodeDeletePatient(ctx context.Context, e *Executor, s *session.State, tc *turnContext) Token {
	p, resolution, candidates := resolveTarget(ctx, e, s)
	switch resolution {
	case resolvedUnique:
		id := p.ID
		s.SelectedPatientID = &id
		s.ConfirmationRequired = true
		s.ConfirmationKind = session.ConfirmationDelete
		s.PendingAction = session.PendingAwaitingDeleteConfirm
		tc.responseText = fmt.Sprintf("Are you sure you want to delete patient %s %s? (yes/no)", p.FirstName, p.LastName)
		tc.agentOp = AgentOpNone
		return TokenConfirmRequired
	case resolvedAmbiguous:
		s.MissingSlots = []string{intent.SlotPatientID}
		tc.responseText = formatCandidates("I found more than one matching patient", candidates)
		tc.agentOp = AgentOpNone
		return TokenAmbiguous
	default:
		tc.responseText = "I couldn't find that patient. Try again with their patient id or full name."
		tc.agentOp = AgentOpNone
		return TokenNotFound
	}
}

func nodeExecuteDeletePatient(ctx context.Context, e *Executor, s *session.State, tc *turnContext) Token {
	res := e.deps.Tool.DeletePatient(ctx, *s.SelectedPatientID)
	s.ConfirmationRequired = false
	s.ConfirmationKind = session.ConfirmationNone
	s.PendingAction = session.PendingNone

	switch res.Outcome {
	case backendclient.Ok:
		e.deps.Names.Invalidate()
		s.MetricsDelta.SuccessfulOps++
		e.deps.Metrics.IncSuccessfulOps()
		s.SelectedPatientID = nil
		tc.responseText = "Patient deleted."
		tc.agentOp = AgentOpDelete
		masking.LogSuccess(tc.sessionID, string(NodeExecuteDeletePatient), "patient deleted")
		return TokenSuccess
	default:
		s.MetricsDelta.FailedOps++
		e.deps.Metrics.IncFailedOps()
		tc.responseText = "I couldn't delete the patient right now. Please try again shortly."
		tc.agentOp = AgentOpNone
		return TokenError
	}
}

func nodeListPatients(ctx context.Context, e *Executor, s *session.State, tc *turnContext) Token {
	var patients []backendclient.Patient
	if e.deps.Names.IsFresh() {
		patients = e.deps.Names.Snapshot()
	} else {
		res := e.deps.Tool.ListPatients(ctx)
		if res.Outcome != backendclient.Ok {
			s.MetricsDelta.FailedOps++
			e.deps.Metrics.IncFailedOps()
			tc.responseText = "I couldn't load the patient list right now. Please try again shortly."
			tc.agentOp = AgentOpNone
			return TokenError
		}
		patients, _ = res.Payload.([]backendclient.Patient)
	}

	if len(patients) == 0 {
		tc.responseText = "There are no patients on file yet."
	} else {
		var b strings.Builder
		b.WriteString("Patients: ")
		for i, p := range patients {
			if i > 0 {
				b.WriteString("; ")
			}
			fmt.Fprintf(&b, "#%d %s %s (%s)", p.ID, p.FirstName, p.LastName, p.NationalID)
		}
		tc.responseText = b.String()
	}
	tc.agentOp = AgentOpNone
	return TokenContinue
}

func nodeGetPatientDetails(ctx context.Context, e *Executor, s *session.State, tc *turnContext) Token {
	p, resolution, candidates := resolveTarget(ctx, e, s)
	switch resolution {
	case resolvedUnique:
		s.MissingSlots = nil
		tc.responseText = formatPatientDetails(p)
		tc.agentOp = AgentOpNone
		return TokenSuccess
	case resolvedAmbiguous:
		s.MissingSlots = []string{intent.SlotPatientID}
		tc.responseText = formatCandidates("I found more than one matching patient", candidates)
		tc.agentOp = AgentOpNone
		return TokenAmbiguous
	default:
		tc.responseText = "I couldn't find that patient. Try a patient id or their full name."
		tc.agentOp = AgentOpNone
		return TokenNotFound
	}
}

func nodeGetScanResults(ctx context.Context, e *Executor, s *session.State, tc *turnContext) Token {
	pid, ok := resolveScanPatientID(s)
	if !ok {
		tc.responseText = "Which patient's scans would you like to see? Give me a patient id."
		tc.agentOp = AgentOpNone
		return TokenNotFound
	}

	res := e.deps.Tool.ListScans(ctx, &pid, nil)
	if res.Outcome != backendclient.Ok {
		s.MetricsDelta.FailedOps++
		e.deps.Metrics.IncFailedOps()
		tc.responseText = "I couldn't load scans for that patient right now."
		tc.agentOp = AgentOpNone
		return TokenError
	}

	scans, _ := res.Payload.([]backendclient.ScanRecord)
	s.ScanBuffer = scans
	s.ScanPageStart = 0
	s.ScanOffset = min(s.ScanPageSize, len(scans))
	s.DownloadStage = session.DownloadPreviewShown
	s.ConfirmationRequired = len(scans) > 0
	s.ConfirmationKind = session.ConfirmationStlDownload
	s.PendingAction = session.PendingAwaitingStlConfirmation

	tc.responseText = formatScanPage(scans[:s.ScanOffset], len(scans))
	tc.agentOp = AgentOpNone
	return TokenContinue
}

func nodeShowMoreScans(_ context.Context, _ *Executor, s *session.State, tc *turnContext) Token {
	if s.ScanOffset >= len(s.ScanBuffer) {
		tc.responseText = "That's the end of the list."
		tc.agentOp = AgentOpNone
		return TokenEndOfList
	}

	start := s.ScanOffset
	end := min(start+s.ScanPageSize, len(s.ScanBuffer))
	page := s.ScanBuffer[start:end]
	s.ScanPageStart = start
	s.ScanOffset = end
	s.DownloadStage = session.DownloadPreviewShown
	s.ConfirmationRequired = true
	s.ConfirmationKind = session.ConfirmationStlDownload
	s.PendingAction = session.PendingAwaitingStlConfirmation

	tc.responseText = formatScanPage(page, len(s.ScanBuffer))
	tc.agentOp = AgentOpNone
	return TokenContinue
}

func nodeProvideStlLinks(_ context.Context, _ *Executor, s *session.State, tc *turnContext) Token {
	start := s.ScanPageStart
	end := s.ScanOffset
	var urls []string
	for _, sc := range s.ScanBuffer[start:end] {
		if sc.STLFileURL != "" {
			urls = append(urls, sc.STLFileURL)
		}
	}

	s.DownloadStage = session.DownloadStlLinksSent
	s.ConfirmationRequired = false
	s.ConfirmationKind = session.ConfirmationNone
	s.PendingAction = session.PendingNone

	if len(urls) == 0 {
		tc.responseText = "No STL files are available for that batch."
	} else {
		tc.responseText = "STL files: " + strings.Join(urls, ", ")
	}
	tc.agentOp = AgentOpNone
	return TokenContinue
}

func nodeProvideDepthMaps(_ context.Context, _ *Executor, s *session.State, tc *turnContext) Token {
	start := s.ScanPageStart
	end := s.ScanOffset
	var lines []string
	for _, sc := range s.ScanBuffer[start:end] {
		switch {
		case sc.DepthMap8BitURL != "" && sc.DepthMap16BitURL != "":
			lines = append(lines, fmt.Sprintf("scan #%d: 8-bit %s, 16-bit %s", sc.ID, sc.DepthMap8BitURL, sc.DepthMap16BitURL))
		case sc.DepthMap8BitURL != "":
			lines = append(lines, fmt.Sprintf("scan #%d: 8-bit %s", sc.ID, sc.DepthMap8BitURL))
		case sc.DepthMap16BitURL != "":
			lines = append(lines, fmt.Sprintf("scan #%d: 16-bit %s", sc.ID, sc.DepthMap16BitURL))
		}
	}

	if len(lines) == 0 {
		tc.responseText = "No depth maps are available for that batch."
	} else {
		tc.responseText = "Depth maps: " + strings.Join(lines, "; ")
	}
	tc.agentOp = AgentOpNone
	return TokenContinue
}

func nodeHandleConfirmation(_ context.Context, e *Executor, s *session.State, tc *turnContext) Token {
	switch intent.ClassifyAffirmation(tc.rawMessage) {
	case intent.AffirmationYes:
		switch s.ConfirmationKind {
		case session.ConfirmationDelete:
			return TokenAffirmativeDelete
		case session.ConfirmationStlDownload:
			return TokenAffirmativeStl
		default:
			s.ConfirmationRequired = false
			s.ConfirmationKind = session.ConfirmationNone
			s.PendingAction = session.PendingNone
			tc.responseText = "There's nothing pending to confirm right now."
			tc.agentOp = AgentOpNone
			return TokenNegative
		}
	case intent.AffirmationNo:
		kind := s.ConfirmationKind
		s.ConfirmationRequired = false
		s.ConfirmationKind = session.ConfirmationNone
		s.PendingAction = session.PendingNone
		s.MetricsDelta.AbortedOps++
		e.deps.Metrics.IncAbortedOps()
		if kind == session.ConfirmationDelete {
			tc.responseText = "Okay, the patient was not deleted."
		} else {
			tc.responseText = "Okay, skipping the STL download."
		}
		tc.agentOp = AgentOpNone
		return TokenNegative
	default:
		tc.responseText = "Sorry, I didn't catch that — please reply yes or no."
		tc.agentOp = AgentOpNone
		return TokenAmbiguous
	}
}

func nodeProvideAgentStats(_ context.Context, e *Executor, _ *session.State, tc *turnContext) Token {
	summary := e.deps.Metrics.Summarize()
	b, err := json.Marshal(summary)
	if err != nil {
		tc.responseText = "Stats are currently unavailable."
	} else {
		tc.responseText = string(b)
	}
	tc.agentOp = AgentOpNone
	return TokenContinue
}

func nodeUnknownIntent(_ context.Context, _ *Executor, _ *session.State, tc *turnContext) Token {
	tc.responseText = "I can create, update, delete, or look up patients, show scan results, or report agent stats. " +
		"Try: \"create patient Jane Tan NRIC S1234567A\" or \"scan results for patient 7\"."
	tc.agentOp = AgentOpNone
	return TokenContinue
}

func nodeSummarizeHistory(ctx context.Context, e *Executor, s *session.State, _ *turnContext) Token {
	if len(s.RecentMessages) <= summarizeThreshold {
		return TokenContinue
	}

	texts := make([]string, len(s.RecentMessages))
	for i, m := range s.RecentMessages {
		texts[i] = string(m.Role) + ": " + m.Text
	}

	if e.deps.LLM != nil {
		summary, err := e.deps.LLM.Summarize(ctx, texts)
		if err == nil {
			s.HistorySummary = summary
			return TokenContinue
		}
		masking.LogError(s.ConversationID, string(NodeSummarizeHistory), "llm summarization failed, falling back to truncation", "error", err.Error())
	}

	s.HistorySummary = deterministicSummary(texts)
	return TokenContinue
}

func nodeFinalizeResponse(_ context.Context, e *Executor, s *session.State, tc *turnContext) Token {
	masked := e.deps.Masking.Mask(tc.responseText)
	tc.responseText = masked
	s.AppendMessage(session.RoleAssistant, masked)
	masking.LogFlow(tc.sessionID, string(NodeFinalizeResponse), "turn finalized", "agent_op", string(tc.agentOp), "routing_fault", tc.routingFault)
	return TokenContinue
}

func deterministicSummary(texts []string) string {
	joined := strings.Join(texts, " ")
	const maxLen = 280
	if len(joined) <= maxLen {
		return joined
	}
	return joined[:maxLen] + "..."
}

type resolution int

const (
	resolvedNone resolution = iota
	resolvedUnique
	resolvedAmbiguous
)

// resolveTarget finds the patient a collect/delete/details node should act
// on, preferring an already-selected id, then an explicit patient_id slot,
// then a resolved full name (spec 4.3/4.7).
func resolveTarget(ctx context.Context, e *Executor, s *session.State) (*backendclient.Patient, resolution, []backendclient.Patient) {
	if s.SelectedPatientID != nil {
		if p, ok := e.deps.Names.Lookup(ctx, *s.SelectedPatientID); ok {
			return &p, resolvedUnique, nil
		}
		return nil, resolvedNone, nil
	}
	if pidStr := s.Slots[intent.SlotPatientID]; pidStr != "" {
		id, err := strconv.ParseInt(pidStr, 10, 64)
		if err != nil {
			return nil, resolvedNone, nil
		}
		if p, ok := e.deps.Names.Lookup(ctx, id); ok {
			return &p, resolvedUnique, nil
		}
		return nil, resolvedNone, nil
	}
	first, last := s.Slots[intent.SlotFirstName], s.Slots[intent.SlotLastName]
	if first != "" && last != "" {
		res := e.deps.Names.Resolve(ctx, first+" "+last)
		switch res.Resolution {
		case namecache.Unique:
			return res.Patient, resolvedUnique, nil
		case namecache.Ambiguous:
			return nil, resolvedAmbiguous, res.Candidates
		default:
			return nil, resolvedNone, nil
		}
	}
	return nil, resolvedNone, nil
}

func resolveScanPatientID(s *session.State) (int64, bool) {
	if pidStr := s.Slots[intent.SlotPatientID]; pidStr != "" {
		if id, err := strconv.ParseInt(pidStr, 10, 64); err == nil {
			return id, true
		}
	}
	if s.SelectedPatientID != nil {
		return *s.SelectedPatientID, true
	}
	return 0, false
}

func formatCandidates(intro string, candidates []backendclient.Patient) string {
	var b strings.Builder
	b.WriteString(intro)
	b.WriteString(": ")
	for i, p := range candidates {
		if i > 0 {
			b.WriteString("; ")
		}
		fmt.Fprintf(&b, "#%d %s %s (%s)", p.ID, p.FirstName, p.LastName, p.NationalID)
	}
	b.WriteString(". Reply with the patient id you mean.")
	return b.String()
}

func formatPatientDetails(p *backendclient.Patient) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Patient #%d: %s %s, NRIC %s", p.ID, p.FirstName, p.LastName, p.NationalID)
	if p.Contact != "" {
		fmt.Fprintf(&b, ", contact %s", p.Contact)
	}
	if p.DateOfBirth != "" {
		fmt.Fprintf(&b, ", born %s", p.DateOfBirth)
	}
	if p.Details != "" {
		fmt.Fprintf(&b, ", notes: %s", p.Details)
	}
	b.WriteString(".")
	return b.String()
}

func formatScanPage(page []backendclient.ScanRecord, total int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Showing %d of %d scans: ", len(page), total)
	for i, sc := range page {
		if i > 0 {
			b.WriteString("; ")
		}
		fmt.Fprintf(&b, "scan #%d (%s) preview %s", sc.ID, sc.CreatedAt.Format("2006-01-02"), sc.PreviewImageURL)
	}
	b.WriteString(". Reply 'show more' for additional scans, or 'yes' to receive STL download links for this batch.")
	return b.String()
}
