package taxappeal

import (
	"context"

	"github.com/pkg/errors"
)

const (
	myCasesPath   = "/api/v1/my-cases/my-cases"
	analyticsPath = "/api/v1/my-cases/analytics"
	allCasesPath  = "/api/v1/all-cases"
	agendaPath    = "/api/v1/agenda/"
	preAppealPath = "/api/v1/auth/pre-appeal/"
)

// CaseStatus is the workflow state of a case.
type CaseStatus string

const (
	StatusPending        CaseStatus = "PENDING"
	StatusSubmitted      CaseStatus = "SUBMITTED"
	StatusPreAppeal      CaseStatus = "PRE_APPEAL"
	StatusReadyForAgenda CaseStatus = "READY_FOR_AGENDA"
	StatusResolved       CaseStatus = "RESOLVED"
)

// MyCase is a case prepared by the logged in staff member.
type MyCase struct {
	CaseID      string     `json:"caseId"`
	TaxPayer    string     `json:"taxPayer"`
	SubmittedAt string     `json:"submittedAt"`
	DaysLeft    string     `json:"daysLeft"`
	Status      CaseStatus `json:"status"`
}

// AgendaCase is a case as listed on the agenda and pre-appeal pages.
type AgendaCase struct {
	CaseID           string     `json:"caseId"`
	TaxpayerName     string     `json:"taxpayerName"`
	CasePresenter    string     `json:"casePresenter"`
	TIN              string     `json:"tin"`
	CaseStatus       CaseStatus `json:"caseStatus"`
	DaysLeft         int64      `json:"daysLeft"`
	AppealDate       string     `json:"appealDate"` // yyyy-mm-dd
	AmountDischarged float64    `json:"amountDischarged"`
	TaxToBePaid      float64    `json:"taxToBePaid"`
	Auditor          string     `json:"auditor"`
}

type MonthlyCases struct {
	Month             string `json:"month"`
	CasesWithBases    int    `json:"casesWithBases"`
	CasesWithoutBases int    `json:"casesWithoutBases"`
}

type Attendance struct {
	TotalMembers     int `json:"totalMembers"`
	AvailableMembers int `json:"availableMembers"`
}

// Analytics feeds the dashboard charts.
type Analytics struct {
	CaseAnalytics  []MonthlyCases `json:"caseAnalytics"`
	AttendanceList *Attendance    `json:"attendanceList,omitempty"`
}

func (s *Service) MyCases(ctx context.Context) ([]MyCase, error) {
	cases, err := getData[[]MyCase](ctx, s.client, myCasesPath, nil)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.MyCases]")
	}
	return cases, nil
}

func (s *Service) Analytics(ctx context.Context) (*Analytics, error) {
	a, err := getData[Analytics](ctx, s.client, analyticsPath, nil)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.Analytics]")
	}
	return &a, nil
}

func (s *Service) AllCases(ctx context.Context) ([]AgendaCase, error) {
	cases, err := getData[[]AgendaCase](ctx, s.client, allCasesPath, nil)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.AllCases]")
	}
	return cases, nil
}

// Agenda lists cases scheduled for the committee. Unlike the other list
// endpoints the page is not wrapped in a Response.
func (s *Service) Agenda(ctx context.Context, page PageRequest) (*Page[AgendaCase], error) {
	var p Page[AgendaCase]
	if err := s.client.Get(ctx, agendaPath, page.query(), &p); err != nil {
		return nil, errors.Wrap(err, "[Service.Agenda]")
	}
	return &p, nil
}

// PreAppeal lists cases waiting to be put on the agenda.
func (s *Service) PreAppeal(ctx context.Context, page PageRequest) (*Page[AgendaCase], error) {
	p, err := getData[Page[AgendaCase]](ctx, s.client, preAppealPath, page.query())
	if err != nil {
		return nil, errors.Wrap(err, "[Service.PreAppeal]")
	}
	return &p, nil
}

// MoveToAgenda schedules a pre-appeal case.
func (s *Service) MoveToAgenda(ctx context.Context, caseID string) error {
	if err := requireID("case id", caseID); err != nil {
		return err
	}
	path := preAppealPath + escape(caseID) + "/move-to-agenda"
	if err := s.client.Post(ctx, path, nil, nil); err != nil {
		return errors.Wrapf(err, "[Service.MoveToAgenda] case %s", caseID)
	}
	return nil
}
