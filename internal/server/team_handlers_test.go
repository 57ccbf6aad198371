package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"skillbarter/internal/models"

	"github.com/gofiber/fiber/v2"
)

func teamRoutes(app *fiber.App, s *Server) {
	app.Post("/api/teams", s.CreateTeam)
	app.Get("/api/teams/me", s.GetMyTeams)
	app.Post("/api/teams/:id/join", s.JoinTeam)
	app.Post("/api/teams/:id/leave", s.LeaveTeam)
	app.Post("/api/teams/:id/close", s.InitiateTeamClosure)
	app.Post("/api/teams/:id/close/cancel", s.CancelTeamClosure)
	app.Post("/api/teams/:id/confirm", s.ConfirmTeamCompletion)
	app.Delete("/api/teams/:id", s.DeleteTeam)
	app.Get("/api/teams/:id", s.GetTeam)
}

func TestTeamLifecycleOverHTTP(t *testing.T) {
	t.Parallel()

	s, db := newHandlerTestServer(t)
	instructor := createHandlerTestUser(t, db, "instructor", 0)
	skill := createHandlerTestSkill(t, db, instructor.ID, "Pottery", 2)

	instructorApp := authedApp(instructor.ID)
	teamRoutes(instructorApp, s)

	// Create the team.
	body := fmt.Sprintf(`{"skill_id":%d,"title":"Pottery for beginners","description":"wheel throwing","max_members":5}`, skill.ID)
	resp := postJSON(t, instructorApp, "/api/teams", body)
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var team models.Team
	if err := json.NewDecoder(resp.Body).Decode(&team); err != nil {
		t.Fatalf("decode team: %v", err)
	}
	if team.Status != models.TeamStatusOpen {
		t.Fatalf("expected open, got %s", team.Status)
	}

	// Three members join, each paying the 2-credit seat.
	memberApps := make([]*fiber.App, 3)
	members := make([]*models.User, 3)
	for i := range members {
		members[i] = createHandlerTestUser(t, db, fmt.Sprintf("member%d", i), 5)
		memberApps[i] = authedApp(members[i].ID)
		teamRoutes(memberApps[i], s)

		joinResp := postJSON(t, memberApps[i], fmt.Sprintf("/api/teams/%d/join", team.ID), `{}`)
		_ = joinResp.Body.Close()
		if joinResp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200 on join, got %d", joinResp.StatusCode)
		}
		if got := handlerTestBalance(t, db, members[i].ID); got != 3 {
			t.Fatalf("expected member balance 3 after join, got %d", got)
		}
	}

	// Instructor initiates closure.
	resp = postJSON(t, instructorApp, fmt.Sprintf("/api/teams/%d/close", team.ID), `{}`)
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var pending models.Team
	if err := json.NewDecoder(resp.Body).Decode(&pending); err != nil {
		t.Fatalf("decode team: %v", err)
	}
	if pending.Status != models.TeamStatusPendingCompletion {
		t.Fatalf("expected pending_completion, got %s", pending.Status)
	}

	// 3 members, majority 2. One vote is not enough.
	resp = postJSON(t, memberApps[0], fmt.Sprintf("/api/teams/%d/confirm", team.ID), `{}`)
	defer func() { _ = resp.Body.Close() }()
	var afterOne models.Team
	if err := json.NewDecoder(resp.Body).Decode(&afterOne); err != nil {
		t.Fatalf("decode team: %v", err)
	}
	if afterOne.Status != models.TeamStatusPendingCompletion {
		t.Fatalf("one vote completed a 3-member team: %s", afterOne.Status)
	}

	// The second vote completes it.
	resp = postJSON(t, memberApps[1], fmt.Sprintf("/api/teams/%d/confirm", team.ID), `{}`)
	defer func() { _ = resp.Body.Close() }()
	var completed models.Team
	if err := json.NewDecoder(resp.Body).Decode(&completed); err != nil {
		t.Fatalf("decode team: %v", err)
	}
	if completed.Status != models.TeamStatusCompleted {
		t.Fatalf("expected completed, got %s", completed.Status)
	}

	// Completion moves no credits.
	for _, m := range members {
		if got := handlerTestBalance(t, db, m.ID); got != 3 {
			t.Fatalf("completion moved credits: member balance %d", got)
		}
	}
}

func TestJoinFullTeamOverHTTP(t *testing.T) {
	t.Parallel()

	s, db := newHandlerTestServer(t)
	instructor := createHandlerTestUser(t, db, "instructor", 0)
	skill := createHandlerTestSkill(t, db, instructor.ID, "Pottery", 0)

	instructorApp := authedApp(instructor.ID)
	teamRoutes(instructorApp, s)

	body := fmt.Sprintf(`{"skill_id":%d,"title":"Tiny class","max_members":1}`, skill.ID)
	resp := postJSON(t, instructorApp, "/api/teams", body)
	defer func() { _ = resp.Body.Close() }()
	var team models.Team
	if err := json.NewDecoder(resp.Body).Decode(&team); err != nil {
		t.Fatalf("decode team: %v", err)
	}

	first := createHandlerTestUser(t, db, "first", 0)
	firstApp := authedApp(first.ID)
	teamRoutes(firstApp, s)
	joinResp := postJSON(t, firstApp, fmt.Sprintf("/api/teams/%d/join", team.ID), `{}`)
	_ = joinResp.Body.Close()
	if joinResp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", joinResp.StatusCode)
	}

	late := createHandlerTestUser(t, db, "late", 0)
	lateApp := authedApp(late.ID)
	teamRoutes(lateApp, s)
	lateResp := postJSON(t, lateApp, fmt.Sprintf("/api/teams/%d/join", team.ID), `{}`)
	defer func() { _ = lateResp.Body.Close() }()
	if lateResp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", lateResp.StatusCode)
	}
	var out models.ErrorResponse
	if err := json.NewDecoder(lateResp.Body).Decode(&out); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if out.Code != models.CodeFull {
		t.Fatalf("expected %s, got %s", models.CodeFull, out.Code)
	}
}

func TestLeaveRefundsOverHTTP(t *testing.T) {
	t.Parallel()

	s, db := newHandlerTestServer(t)
	instructor := createHandlerTestUser(t, db, "instructor", 0)
	skill := createHandlerTestSkill(t, db, instructor.ID, "Pottery", 4)

	instructorApp := authedApp(instructor.ID)
	teamRoutes(instructorApp, s)

	body := fmt.Sprintf(`{"skill_id":%d,"title":"Class","max_members":5}`, skill.ID)
	resp := postJSON(t, instructorApp, "/api/teams", body)
	defer func() { _ = resp.Body.Close() }()
	var team models.Team
	if err := json.NewDecoder(resp.Body).Decode(&team); err != nil {
		t.Fatalf("decode team: %v", err)
	}

	member := createHandlerTestUser(t, db, "member", 10)
	memberApp := authedApp(member.ID)
	teamRoutes(memberApp, s)

	joinResp := postJSON(t, memberApp, fmt.Sprintf("/api/teams/%d/join", team.ID), `{}`)
	_ = joinResp.Body.Close()
	if got := handlerTestBalance(t, db, member.ID); got != 6 {
		t.Fatalf("expected 6 after join, got %d", got)
	}

	leaveResp := postJSON(t, memberApp, fmt.Sprintf("/api/teams/%d/leave", team.ID), `{}`)
	_ = leaveResp.Body.Close()
	if leaveResp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", leaveResp.StatusCode)
	}
	if got := handlerTestBalance(t, db, member.ID); got != 10 {
		t.Fatalf("expected full refund, got %d", got)
	}

	// Leaving twice finds no membership.
	leaveResp = postJSON(t, memberApp, fmt.Sprintf("/api/teams/%d/leave", team.ID), `{}`)
	_ = leaveResp.Body.Close()
	if leaveResp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", leaveResp.StatusCode)
	}
}

func TestDeleteTeamOverHTTP(t *testing.T) {
	t.Parallel()

	s, db := newHandlerTestServer(t)
	instructor := createHandlerTestUser(t, db, "instructor", 0)
	skill := createHandlerTestSkill(t, db, instructor.ID, "Pottery", 3)

	instructorApp := authedApp(instructor.ID)
	teamRoutes(instructorApp, s)

	body := fmt.Sprintf(`{"skill_id":%d,"title":"Class","max_members":5}`, skill.ID)
	resp := postJSON(t, instructorApp, "/api/teams", body)
	defer func() { _ = resp.Body.Close() }()
	var team models.Team
	if err := json.NewDecoder(resp.Body).Decode(&team); err != nil {
		t.Fatalf("decode team: %v", err)
	}

	member := createHandlerTestUser(t, db, "member", 5)
	memberApp := authedApp(member.ID)
	teamRoutes(memberApp, s)
	joinResp := postJSON(t, memberApp, fmt.Sprintf("/api/teams/%d/join", team.ID), `{}`)
	_ = joinResp.Body.Close()

	// A member cannot delete the team.
	req := httptest.NewRequest(http.MethodDelete, fmt.Sprintf("/api/teams/%d", team.ID), nil)
	memberDelete, err := memberApp.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	_ = memberDelete.Body.Close()
	if memberDelete.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", memberDelete.StatusCode)
	}

	req = httptest.NewRequest(http.MethodDelete, fmt.Sprintf("/api/teams/%d", team.ID), nil)
	delResp, err := instructorApp.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	_ = delResp.Body.Close()
	if delResp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", delResp.StatusCode)
	}

	// The member got their seat back.
	if got := handlerTestBalance(t, db, member.ID); got != 5 {
		t.Fatalf("expected refund on delete, got %d", got)
	}

	getReq := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/teams/%d", team.ID), nil)
	getResp, err := instructorApp.Test(getReq)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	_ = getResp.Body.Close()
	if getResp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", getResp.StatusCode)
	}
}
