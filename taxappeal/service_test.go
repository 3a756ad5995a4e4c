package taxappeal_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"testing"

	"github.com/jrsteele09/taxappeal-client/apiclient"
	"github.com/jrsteele09/taxappeal-client/credentials"
	"github.com/jrsteele09/taxappeal-client/internal/fakebackend"
	"github.com/jrsteele09/taxappeal-client/taxappeal"
	"github.com/stretchr/testify/require"
)

const (
	memberEmail = "member@example.com"
	caseID      = "TA-2024-0042"
	appealID    = "8c3f7e0a-1d2b-4c5d-9e6f-7a8b9c0d1e2f"
)

type testFixture struct {
	backend *fakebackend.Backend
	user    *fakebackend.User
	store   *credentials.MemoryStore
	service *taxappeal.Service
}

func setupTest(t *testing.T) *testFixture {
	t.Helper()
	b := fakebackend.New()
	t.Cleanup(b.Close)
	user := b.AddUser(fakebackend.User{
		Email:     memberEmail,
		Password:  "pw",
		FullNames: "Aline Uwase",
		Role:      "COMMITTEE_MEMBER",
	})

	store := credentials.NewMemoryStore()
	access, refresh := b.IssueSession(memberEmail)
	require.NoError(t, credentials.SaveTokenPair(context.Background(), store, access, refresh))

	client, err := apiclient.New(b.URL, store, apiclient.WithNavigator(apiclient.NavigatorFunc(func(context.Context, error) {})))
	require.NoError(t, err)
	return &testFixture{backend: b, user: user, store: store, service: taxappeal.New(client)}
}

func decodeBody(t *testing.T, r *http.Request, v any) {
	t.Helper()
	b, err := io.ReadAll(r.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(b, v))
}

func TestMyCasesRefreshesTransparently(t *testing.T) {
	f := setupTest(t)
	f.backend.HandleAuth("GET /api/v1/my-cases/my-cases", func(w http.ResponseWriter, _ *http.Request, _ *fakebackend.User) {
		fakebackend.WriteJSON(w, http.StatusOK, map[string]any{
			"status": "SUCCESS",
			"data": []map[string]any{
				{"caseId": caseID, "taxPayer": "Kigali Traders Ltd", "submittedAt": "2024-05-02", "daysLeft": "12", "status": "SUBMITTED"},
			},
		})
	})
	f.backend.ExpireAccessTokens()

	cases, err := f.service.MyCases(context.Background())
	require.NoError(t, err)
	require.Len(t, cases, 1)
	require.Equal(t, caseID, cases[0].CaseID)
	require.Equal(t, taxappeal.StatusSubmitted, cases[0].Status)
	require.Equal(t, 1, f.backend.RefreshCalls())
}

func TestAnalytics(t *testing.T) {
	f := setupTest(t)
	f.backend.HandleAuth("GET /api/v1/my-cases/analytics", func(w http.ResponseWriter, _ *http.Request, _ *fakebackend.User) {
		fakebackend.WriteJSON(w, http.StatusOK, map[string]any{
			"status": "SUCCESS",
			"data": map[string]any{
				"caseAnalytics":  []map[string]any{{"month": "JAN", "casesWithBases": 3, "casesWithoutBases": 1}},
				"attendanceList": map[string]any{"totalMembers": 7, "availableMembers": 5},
			},
		})
	})

	a, err := f.service.Analytics(context.Background())
	require.NoError(t, err)
	require.Equal(t, []taxappeal.MonthlyCases{{Month: "JAN", CasesWithBases: 3, CasesWithoutBases: 1}}, a.CaseAnalytics)
	require.Equal(t, &taxappeal.Attendance{TotalMembers: 7, AvailableMembers: 5}, a.AttendanceList)
}

func TestAgendaAndPreAppeal(t *testing.T) {
	f := setupTest(t)
	agendaCase := map[string]any{
		"caseId": caseID, "taxpayerName": "Kigali Traders Ltd", "tin": "100200300",
		"caseStatus": "READY_FOR_AGENDA", "daysLeft": 4, "appealDate": "2024-05-02",
		"amountDischarged": 1500.5, "taxToBePaid": 98000, "auditor": "J. Habimana",
	}
	f.backend.HandleAuth("GET /api/v1/agenda/", func(w http.ResponseWriter, r *http.Request, _ *fakebackend.User) {
		require.Equal(t, "1", r.URL.Query().Get("page"))
		require.Equal(t, "5", r.URL.Query().Get("size"))
		fakebackend.WriteJSON(w, http.StatusOK, map[string]any{
			"content": []any{agendaCase}, "totalPages": 2, "totalElements": 6, "number": 1, "size": 5,
		})
	})
	f.backend.HandleAuth("GET /api/v1/auth/pre-appeal/", func(w http.ResponseWriter, r *http.Request, _ *fakebackend.User) {
		require.Equal(t, "0", r.URL.Query().Get("page"))
		require.Equal(t, "10", r.URL.Query().Get("size"))
		fakebackend.WriteJSON(w, http.StatusOK, map[string]any{
			"status": "SUCCESS",
			"data":   map[string]any{"content": []any{agendaCase}, "totalPages": 1, "totalElements": 1, "number": 0},
		})
	})
	var moved string
	f.backend.HandleAuth("POST /api/v1/auth/pre-appeal/{id}/move-to-agenda", func(w http.ResponseWriter, r *http.Request, _ *fakebackend.User) {
		moved = r.PathValue("id")
		fakebackend.WriteJSON(w, http.StatusOK, map[string]string{"status": "SUCCESS"})
	})
	ctx := context.Background()

	agenda, err := f.service.Agenda(ctx, taxappeal.PageRequest{Page: 1})
	require.NoError(t, err)
	require.Len(t, agenda.Content, 1)
	require.Equal(t, taxappeal.StatusReadyForAgenda, agenda.Content[0].CaseStatus)
	require.InDelta(t, 1500.5, agenda.Content[0].AmountDischarged, 0.001)
	require.True(t, agenda.Last())

	pre, err := f.service.PreAppeal(ctx, taxappeal.PageRequest{Size: 10})
	require.NoError(t, err)
	require.Equal(t, 1, pre.TotalElements)
	require.True(t, pre.Last())

	require.NoError(t, f.service.MoveToAgenda(ctx, caseID))
	require.Equal(t, caseID, moved)
	require.Error(t, f.service.MoveToAgenda(ctx, ""))
}

func TestExplanatoryNotes(t *testing.T) {
	f := setupTest(t)
	note := taxappeal.ExplanatoryNote{
		CaseID:        caseID,
		AuditorsName:  "J. Habimana",
		CasePresenter: "Aline Uwase",
		TIN:           "100200300",
		TaxAudited: []taxappeal.AuditedTax{{
			TaxTypeAudited:          "VAT",
			PrincipalAmountToBePaid: 1000,
			UnderstatementFines:     100,
			DischargedAmount:        50,
			Appeals: []taxappeal.AppealPoint{{
				AppealPoint:       "Input VAT disallowed",
				SummarisedProblem: "Invoices rejected",
			}},
		}},
	}
	require.InDelta(t, 1050, note.TaxAudited[0].Total(), 0.001)

	var saved, created taxappeal.ExplanatoryNote
	var calls []string
	f.backend.HandleAuth("POST /api/v1/auth/explanatory_note/", func(w http.ResponseWriter, r *http.Request, _ *fakebackend.User) {
		decodeBody(t, r, &created)
		fakebackend.WriteJSON(w, http.StatusCreated, map[string]any{"status": "SUCCESS", "message": "created", "data": created})
	})
	f.backend.HandleAuth("GET /api/v1/auth/explanatory_note/{id}", func(w http.ResponseWriter, r *http.Request, _ *fakebackend.User) {
		stored := created
		stored.Status = taxappeal.StatusPending
		stored.TaxAudited[0].Appeals[0].AppealID = appealID
		fakebackend.WriteJSON(w, http.StatusOK, map[string]any{"status": "SUCCESS", "data": stored})
	})
	f.backend.HandleAuth("PUT /api/v1/auth/explanatory_note/{id}/save", func(w http.ResponseWriter, r *http.Request, _ *fakebackend.User) {
		decodeBody(t, r, &saved)
		calls = append(calls, "save:"+r.PathValue("id"))
		w.WriteHeader(http.StatusOK)
	})
	f.backend.HandleAuth("POST /api/v1/auth/explanatory_note/{id}/move-to-pre-appeal", func(w http.ResponseWriter, r *http.Request, _ *fakebackend.User) {
		calls = append(calls, "move:"+r.PathValue("id"))
		_, _ = io.WriteString(w, "moved")
	})
	f.backend.HandleAuth("DELETE /api/v1/auth/explanatory_note/{id}", func(w http.ResponseWriter, r *http.Request, _ *fakebackend.User) {
		calls = append(calls, "delete:"+r.PathValue("id"))
		w.WriteHeader(http.StatusNoContent)
	})
	f.backend.HandleAuth("POST /api/v1/auth/explanatory_note/appeal/comment/{id}", func(w http.ResponseWriter, r *http.Request, _ *fakebackend.User) {
		fakebackend.WriteJSON(w, http.StatusOK, map[string]string{"comment": "Upheld for " + r.PathValue("id")})
	})
	ctx := context.Background()

	resp, err := f.service.CreateNote(ctx, &note)
	require.NoError(t, err)
	require.Equal(t, "created", resp.Message)
	require.Equal(t, caseID, created.CaseID)

	got, err := f.service.Note(ctx, caseID)
	require.NoError(t, err)
	require.Equal(t, taxappeal.StatusPending, got.Status)
	require.Equal(t, []string{appealID}, got.AppealIDs())
	appeal, taxType, ok := got.Appeal(appealID)
	require.True(t, ok)
	require.Equal(t, "VAT", taxType)
	require.Equal(t, "Input VAT disallowed", appeal.AppealPoint)
	_, _, ok = got.Appeal("missing")
	require.False(t, ok)

	require.NoError(t, f.service.MoveToPreAppeal(ctx, caseID, &note))
	require.Equal(t, note.TIN, saved.TIN)
	require.NoError(t, f.service.DeleteNote(ctx, caseID))
	require.Equal(t, []string{"save:" + caseID, "move:" + caseID, "delete:" + caseID}, calls)

	comment, err := f.service.AppealComment(ctx, appealID)
	require.NoError(t, err)
	require.Equal(t, "Upheld for "+appealID, comment)
}

func TestVotes(t *testing.T) {
	f := setupTest(t)
	var vote taxappeal.Vote
	f.backend.HandleAuth("POST /api/appeals/{id}/vote", func(w http.ResponseWriter, r *http.Request, _ *fakebackend.User) {
		require.Equal(t, appealID, r.PathValue("id"))
		decodeBody(t, r, &vote)
		fakebackend.WriteJSON(w, http.StatusOK, map[string]string{"message": "vote recorded"})
	})
	f.backend.HandleAuth("POST /api/appeals/are-all-appeals-voted", func(w http.ResponseWriter, r *http.Request, _ *fakebackend.User) {
		var ids []string
		decodeBody(t, r, &ids)
		out := map[string]bool{}
		for _, id := range ids {
			out[id] = id == appealID
		}
		fakebackend.WriteJSON(w, http.StatusOK, out)
	})
	f.backend.HandleAuth("GET /api/appeals/{id}/all-votes", func(w http.ResponseWriter, _ *http.Request, _ *fakebackend.User) {
		fakebackend.WriteJSON(w, http.StatusOK, []map[string]string{
			{"committeeMemberName": "Aline Uwase", "committeeDecision": "WITHBASIS"},
			{"committeeMemberName": "Eric Nkusi", "committeeDecision": "NOBASIS"},
			{"committeeMemberName": "Grace Ingabire", "committeeDecision": "WITHBASIS"},
		})
	})
	ctx := context.Background()

	err := f.service.SubmitVote(ctx, appealID, &taxappeal.Vote{
		CommitteeMemberID:   f.user.ID,
		CommitteeMemberName: "Aline Uwase",
		CommitteeDecision:   taxappeal.WithBasis,
	})
	require.NoError(t, err)
	require.Equal(t, f.user.ID, vote.CommitteeMemberID)
	require.Equal(t, taxappeal.WithBasis, vote.CommitteeDecision)

	require.Error(t, f.service.SubmitVote(ctx, appealID, &taxappeal.Vote{CommitteeDecision: "MAYBE"}))

	voted, err := f.service.VotedAppeals(ctx, []string{appealID, "other"})
	require.NoError(t, err)
	require.Equal(t, map[string]bool{appealID: true, "other": false}, voted)

	empty, err := f.service.VotedAppeals(ctx, nil)
	require.NoError(t, err)
	require.Empty(t, empty)

	votes, err := f.service.AppealVotes(ctx, appealID)
	require.NoError(t, err)
	require.Equal(t, map[taxappeal.Decision]int{taxappeal.WithBasis: 2, taxappeal.NoBasis: 1}, taxappeal.Tally(votes))
}

func TestCommitteeAndUsers(t *testing.T) {
	f := setupTest(t)
	var memberBody map[string]bool
	var availability bool
	var profile map[string]string
	f.backend.HandleAuth("GET /api/v1/committee/members-availability", func(w http.ResponseWriter, _ *http.Request, _ *fakebackend.User) {
		fakebackend.WriteJSON(w, http.StatusOK, []map[string]any{
			{"id": "m1", "fullName": "Eric Nkusi", "committeeRole": "COMMITTEE_MEMBER", "availabilityStatus": true},
		})
	})
	f.backend.HandleAuth("PUT /api/v1/committee/member/{id}/availability", func(w http.ResponseWriter, r *http.Request, _ *fakebackend.User) {
		decodeBody(t, r, &memberBody)
		w.WriteHeader(http.StatusOK)
	})
	f.backend.HandleAuth("GET /api/v1/user/", func(w http.ResponseWriter, _ *http.Request, u *fakebackend.User) {
		fakebackend.WriteJSON(w, http.StatusOK, map[string]any{
			"status": "SUCCESS",
			"data":   map[string]any{"id": u.ID, "fullName": u.FullNames, "email": u.Email, "availabilityStatus": true},
		})
	})
	f.backend.HandleAuth("PUT /api/v1/user/{id}", func(w http.ResponseWriter, r *http.Request, _ *fakebackend.User) {
		decodeBody(t, r, &profile)
		w.WriteHeader(http.StatusOK)
	})
	f.backend.HandleAuth("PUT /api/v1/user/{id}/availability-status", func(w http.ResponseWriter, r *http.Request, _ *fakebackend.User) {
		decodeBody(t, r, &availability)
		w.WriteHeader(http.StatusOK)
	})
	f.backend.HandleAuth("POST /api/v1/user/generate-proxy", func(w http.ResponseWriter, _ *http.Request, _ *fakebackend.User) {
		fakebackend.WriteJSON(w, http.StatusOK, map[string]any{
			"status": "SUCCESS",
			"data":   map[string]string{"email": "proxy-1@example.com", "temporaryPassword": "Tmp-123"},
		})
	})
	ctx := context.Background()

	members, err := f.service.MembersAvailability(ctx)
	require.NoError(t, err)
	require.Len(t, members, 1)
	require.True(t, members[0].AvailabilityStatus)

	require.NoError(t, f.service.SetMemberAvailability(ctx, "m1", false))
	require.Equal(t, map[string]bool{"availabilityStatus": false}, memberBody)

	me, err := f.service.CurrentUser(ctx)
	require.NoError(t, err)
	require.Equal(t, f.user.ID, me.ID)
	require.Equal(t, "Aline Uwase", me.FullName)

	require.NoError(t, f.service.UpdateProfile(ctx, me.ID, &taxappeal.ProfileUpdate{FullName: "Aline U.", CommitteeRole: "COMMITTEE_MEMBER"}))
	require.Equal(t, "Aline U.", profile["fullName"])
	require.Equal(t, "COMMITTEE_MEMBER", profile["committee_role"])

	availability = true
	require.NoError(t, f.service.SetAvailability(ctx, me.ID, false))
	require.False(t, availability)

	creds, err := f.service.GenerateProxy(ctx)
	require.NoError(t, err)
	require.Equal(t, &taxappeal.ProxyCredentials{Email: "proxy-1@example.com", TemporaryPassword: "Tmp-123"}, creds)
}

func TestCreateMeeting(t *testing.T) {
	t.Run("link returned", func(t *testing.T) {
		f := setupTest(t)
		f.backend.HandleAuth("POST /api/v1/meetings/create", func(w http.ResponseWriter, _ *http.Request, _ *fakebackend.User) {
			fakebackend.WriteJSON(w, http.StatusOK, map[string]string{"meetLink": "https://meet.example.com/abc-defg-hij"})
		})

		link, err := f.service.CreateMeeting(context.Background())
		require.NoError(t, err)
		require.Equal(t, "https://meet.example.com/abc-defg-hij", link)
	})

	t.Run("calendar not authorized", func(t *testing.T) {
		f := setupTest(t)
		f.backend.Handle("POST /api/v1/meetings/create", func(w http.ResponseWriter, _ *http.Request) {
			fakebackend.WriteJSON(w, http.StatusUnauthorized, map[string]string{"error": "no google grant"})
		})

		_, err := f.service.CreateMeeting(context.Background())
		require.ErrorIs(t, err, taxappeal.ErrCalendarAuthorizationRequired)
		var authErr *taxappeal.CalendarAuthorizationError
		require.True(t, errors.As(err, &authErr))
		require.Equal(t, f.backend.URL+"/oauth2/authorization/google", authErr.URL)

		require.Zero(t, f.backend.RefreshCalls())
		require.NotEmpty(t, f.store.Snapshot())
	})
}

func TestUpdateMeetingInfo(t *testing.T) {
	f := setupTest(t)
	var got taxappeal.MeetingInfo
	f.backend.HandleAuth("PUT /api/v1/meeting-info/{id}", func(w http.ResponseWriter, r *http.Request, _ *fakebackend.User) {
		require.Equal(t, "3", r.PathValue("id"))
		decodeBody(t, r, &got)
		w.WriteHeader(http.StatusOK)
	})

	err := f.service.UpdateMeetingInfo(context.Background(), "3", taxappeal.MeetingInfo{Venue: "Board room", MeetingTime: "09:30"})
	require.NoError(t, err)
	require.Equal(t, taxappeal.MeetingInfo{Venue: "Board room", MeetingTime: "09:30:00"}, got)
}

func TestErrorsCarryStatus(t *testing.T) {
	f := setupTest(t)
	f.backend.HandleAuth("DELETE /api/v1/auth/explanatory_note/{id}", func(w http.ResponseWriter, _ *http.Request, _ *fakebackend.User) {
		fakebackend.WriteJSON(w, http.StatusConflict, map[string]string{"message": "Case is already on the agenda"})
	})

	err := f.service.DeleteNote(context.Background(), caseID)
	require.True(t, apiclient.IsStatus(err, http.StatusConflict))
	var statusErr *apiclient.StatusError
	require.True(t, errors.As(err, &statusErr))
	require.Equal(t, "Case is already on the agenda", statusErr.Message())
}
