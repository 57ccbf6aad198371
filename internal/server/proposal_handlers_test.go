package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"skillbarter/internal/models"

	"github.com/gofiber/fiber/v2"
)

func proposalRoutes(app *fiber.App, s *Server) {
	app.Post("/api/proposals", s.SubmitProposal)
	app.Get("/api/proposals/incoming", s.GetIncomingProposals)
	app.Get("/api/proposals/outgoing", s.GetOutgoingProposals)
	app.Post("/api/proposals/:id/respond", s.RespondToProposal)
	app.Post("/api/proposals/:id/confirm", s.ConfirmProposalCompletion)
	app.Delete("/api/proposals/:id", s.WithdrawProposal)
	app.Get("/api/proposals/:id", s.GetProposal)
}

func TestCreditProposalFullFlow(t *testing.T) {
	t.Parallel()

	s, db := newHandlerTestServer(t)
	proposer := createHandlerTestUser(t, db, "proposer", 10)
	receiver := createHandlerTestUser(t, db, "receiver", 0)
	skill := createHandlerTestSkill(t, db, receiver.ID, "Bike repair", 4)

	proposerApp := authedApp(proposer.ID)
	proposalRoutes(proposerApp, s)
	receiverApp := authedApp(receiver.ID)
	proposalRoutes(receiverApp, s)

	// Submit.
	body := fmt.Sprintf(`{"requested_skill_id":%d,"exchange_type":"credits"}`, skill.ID)
	resp := postJSON(t, proposerApp, "/api/proposals", body)
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var proposal models.Proposal
	if err := json.NewDecoder(resp.Body).Decode(&proposal); err != nil {
		t.Fatalf("decode proposal: %v", err)
	}
	if proposal.Status != models.ProposalStatusPending {
		t.Fatalf("expected pending, got %s", proposal.Status)
	}

	// It shows up in the receiver's incoming list.
	req := httptest.NewRequest(http.MethodGet, "/api/proposals/incoming", nil)
	listResp, err := receiverApp.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer func() { _ = listResp.Body.Close() }()
	var list struct {
		Proposals []models.Proposal `json:"proposals"`
	}
	if err := json.NewDecoder(listResp.Body).Decode(&list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list.Proposals) != 1 {
		t.Fatalf("expected 1 incoming proposal, got %d", len(list.Proposals))
	}

	// Accept with a meeting note.
	resp = postJSON(t, receiverApp, fmt.Sprintf("/api/proposals/%d/respond", proposal.ID),
		`{"accept":true,"meeting_note":"Saturday at the park"}`)
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var accepted models.Proposal
	if err := json.NewDecoder(resp.Body).Decode(&accepted); err != nil {
		t.Fatalf("decode proposal: %v", err)
	}
	if accepted.Status != models.ProposalStatusAccepted {
		t.Fatalf("expected accepted, got %s", accepted.Status)
	}
	if accepted.MeetingNote != "Saturday at the park" {
		t.Fatalf("meeting note not recorded: %q", accepted.MeetingNote)
	}
	if accepted.ConversationID == nil {
		t.Fatal("expected a conversation to be opened on accept")
	}

	// First confirmation: nothing settles yet.
	resp = postJSON(t, proposerApp, fmt.Sprintf("/api/proposals/%d/confirm", proposal.ID), `{}`)
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if got := handlerTestBalance(t, db, proposer.ID); got != 10 {
		t.Fatalf("balance moved before both confirmed: %d", got)
	}

	// Second confirmation settles: 4 credits move from proposer to receiver.
	resp = postJSON(t, receiverApp, fmt.Sprintf("/api/proposals/%d/confirm", proposal.ID), `{}`)
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var completed models.Proposal
	if err := json.NewDecoder(resp.Body).Decode(&completed); err != nil {
		t.Fatalf("decode proposal: %v", err)
	}
	if completed.Status != models.ProposalStatusCompleted {
		t.Fatalf("expected completed, got %s", completed.Status)
	}
	if got := handlerTestBalance(t, db, proposer.ID); got != 6 {
		t.Fatalf("expected proposer balance 6, got %d", got)
	}
	if got := handlerTestBalance(t, db, receiver.ID); got != 4 {
		t.Fatalf("expected receiver balance 4, got %d", got)
	}

	// Re-confirming the settled proposal moves nothing.
	resp = postJSON(t, proposerApp, fmt.Sprintf("/api/proposals/%d/confirm", proposal.ID), `{}`)
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if got := handlerTestBalance(t, db, receiver.ID); got != 4 {
		t.Fatalf("double settlement: receiver balance %d", got)
	}
}

func TestRespondRequiresDecision(t *testing.T) {
	t.Parallel()

	s, db := newHandlerTestServer(t)
	proposer := createHandlerTestUser(t, db, "proposer", 10)
	receiver := createHandlerTestUser(t, db, "receiver", 0)
	skill := createHandlerTestSkill(t, db, receiver.ID, "Bike repair", 4)

	proposerApp := authedApp(proposer.ID)
	proposalRoutes(proposerApp, s)
	receiverApp := authedApp(receiver.ID)
	proposalRoutes(receiverApp, s)

	body := fmt.Sprintf(`{"requested_skill_id":%d,"exchange_type":"credits"}`, skill.ID)
	resp := postJSON(t, proposerApp, "/api/proposals", body)
	defer func() { _ = resp.Body.Close() }()
	var proposal models.Proposal
	if err := json.NewDecoder(resp.Body).Decode(&proposal); err != nil {
		t.Fatalf("decode proposal: %v", err)
	}

	resp = postJSON(t, receiverApp, fmt.Sprintf("/api/proposals/%d/respond", proposal.ID),
		`{"meeting_note":"no decision here"}`)
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestProposalVisibilityAndWithdraw(t *testing.T) {
	t.Parallel()

	s, db := newHandlerTestServer(t)
	proposer := createHandlerTestUser(t, db, "proposer", 10)
	receiver := createHandlerTestUser(t, db, "receiver", 0)
	outsider := createHandlerTestUser(t, db, "outsider", 0)
	skill := createHandlerTestSkill(t, db, receiver.ID, "Bike repair", 4)

	proposerApp := authedApp(proposer.ID)
	proposalRoutes(proposerApp, s)
	outsiderApp := authedApp(outsider.ID)
	proposalRoutes(outsiderApp, s)

	body := fmt.Sprintf(`{"requested_skill_id":%d,"exchange_type":"credits"}`, skill.ID)
	resp := postJSON(t, proposerApp, "/api/proposals", body)
	defer func() { _ = resp.Body.Close() }()
	var proposal models.Proposal
	if err := json.NewDecoder(resp.Body).Decode(&proposal); err != nil {
		t.Fatalf("decode proposal: %v", err)
	}

	// A third party cannot read it.
	req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/proposals/%d", proposal.ID), nil)
	getResp, err := outsiderApp.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	_ = getResp.Body.Close()
	if getResp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", getResp.StatusCode)
	}

	// The proposer withdraws the pending proposal.
	req = httptest.NewRequest(http.MethodDelete, fmt.Sprintf("/api/proposals/%d", proposal.ID), nil)
	delResp, err := proposerApp.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	_ = delResp.Body.Close()
	if delResp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", delResp.StatusCode)
	}

	var count int64
	if err := db.Model(&models.Proposal{}).Count(&count).Error; err != nil {
		t.Fatalf("count proposals: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected proposal gone, found %d", count)
	}
}

func TestSubmitCreditProposalInsufficientFunds(t *testing.T) {
	t.Parallel()

	s, db := newHandlerTestServer(t)
	proposer := createHandlerTestUser(t, db, "proposer", 1)
	receiver := createHandlerTestUser(t, db, "receiver", 0)
	skill := createHandlerTestSkill(t, db, receiver.ID, "Bike repair", 4)

	app := authedApp(proposer.ID)
	proposalRoutes(app, s)

	body := fmt.Sprintf(`{"requested_skill_id":%d,"exchange_type":"credits"}`, skill.ID)
	req := httptest.NewRequest(http.MethodPost, "/api/proposals", bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusPaymentRequired {
		t.Fatalf("expected 402, got %d", resp.StatusCode)
	}
	var out models.ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if out.Code != models.CodeInsufficientFunds {
		t.Fatalf("expected %s, got %s", models.CodeInsufficientFunds, out.Code)
	}
}
